package cg

import "testing"

func buildDiamondFunc(t *testing.T) (*Func, *BB, *BB, *BB, *BB) {
	t.Helper()
	tu := NewTU()
	f := NewFunc(tu, "diamond")
	entry := f.NewBlock()
	tb := f.NewBlock()
	fb := f.NewBlock()
	join := f.NewBlock()
	f.MarkExit(join)

	cmp := f.NewInstr(OpCmp, CondAL, entry, false)
	cmp.SetArgs(HRegArg(0), ImmArg(0))
	entry.Append(cmp)
	f.SetBranch(entry, CondGT, tb, fb)

	movT := f.NewInstr(OpMov, CondAL, tb, true)
	movT.SetArgs(ImmArg(1))
	tb.Append(movT)
	f.SetJump(tb, join)

	movF := f.NewInstr(OpMov, CondAL, fb, true)
	movF.SetArgs(ImmArg(2))
	fb.Append(movF)
	f.SetJump(fb, join)

	phi := f.NewInstr(OpPhi, CondAL, join, true)
	phi.AddPhiArg(movT, tb)
	phi.AddPhiArg(movF, fb)
	join.AppendPhi(phi)

	ret := f.NewInstr(OpRet, CondAL, join, false)
	ret.SetArgs(VReg(phi))
	join.Append(ret)

	tu.AddFunc(f)
	return f, entry, tb, fb
}

func TestBuildAndUseEdges(t *testing.T) {
	f, _, tb, fb := buildDiamondFunc(t)
	join := f.Exit
	phi := join.Phis[0]
	if len(phi.PhiArgs) != 2 {
		t.Fatalf("expected 2 phi args, got %d", len(phi.PhiArgs))
	}
	movT := tb.Instr[0]
	movF := fb.Instr[0]
	if !movT.HasUses() || !movF.HasUses() {
		t.Fatal("expected phi operands to register as uses")
	}
	ret := join.Instr[len(join.Instr)-1]
	if ret.Args[0].Def != phi {
		t.Fatal("expected ret's VREG arg to point at the phi")
	}
}

func TestGraphAdapter(t *testing.T) {
	f, entry, tb, fb := buildDiamondFunc(t)
	if f.Root() != entry.ID {
		t.Fatalf("Root() = %d, want %d", f.Root(), entry.ID)
	}
	succs := f.Succs(entry.ID)
	if len(succs) != 2 || succs[0] != tb.ID || succs[1] != fb.ID {
		t.Fatalf("expected succs [true,false], got %v", succs)
	}
}

func TestPlaceholderResolve(t *testing.T) {
	tu := NewTU()
	f := NewFunc(tu, "f")
	bb := f.NewBlock()
	f.MarkExit(bb)
	ph := f.NewPlaceholder(bb, true)
	if !ph.IsPending() {
		t.Fatal("expected fresh placeholder to be pending")
	}
	ph.Resolve(OpMov, CondAL, ImmArg(42))
	if ph.IsPending() {
		t.Fatal("expected resolved placeholder to no longer be pending")
	}
	if ph.Op != OpMov || ph.Args[0].Imm != 42 {
		t.Fatalf("unexpected resolved instruction: %+v", ph)
	}
}

func TestReplaceAllUsesWith(t *testing.T) {
	tu := NewTU()
	f := NewFunc(tu, "f")
	bb := f.NewBlock()
	f.MarkExit(bb)
	a := f.NewInstr(OpMov, CondAL, bb, true)
	a.SetArgs(ImmArg(1))
	bb.Append(a)
	b := f.NewInstr(OpMov, CondAL, bb, true)
	b.SetArgs(ImmArg(2))
	bb.Append(b)
	add := f.NewInstr(OpAdd, CondAL, bb, true)
	add.SetArgs(VReg(a), VReg(a))
	bb.Append(add)

	ReplaceAllUsesWith(a, b)
	if add.Args[0].Def != b || add.Args[1].Def != b {
		t.Fatalf("expected both args rewritten to b, got %+v", add.Args)
	}
	if a.HasUses() {
		t.Fatal("expected a to have no remaining uses")
	}
}
