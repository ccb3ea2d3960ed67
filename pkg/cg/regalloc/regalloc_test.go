package regalloc

import (
	"testing"

	"github.com/markuszzz/mycc/pkg/cg"
)

// buildDiamondPhi builds a function shaped like:
//
//	entry: cmp r0, #0; bgt tb, fb
//	tb:    t = mov #1; jmp join
//	fb:    f = mov #2; jmp join
//	join:  p = phi(t:tb, f:fb); ret p
func buildDiamondPhi(t *testing.T) *cg.Func {
	t.Helper()
	tu := cg.NewTU()
	f := cg.NewFunc(tu, "diamond")
	entry := f.NewBlock()
	tb := f.NewBlock()
	fb := f.NewBlock()
	join := f.NewBlock()
	f.MarkExit(join)

	cmp := f.NewInstr(cg.OpCmp, cg.CondAL, entry, false)
	cmp.SetArgs(cg.HRegArg(0), cg.ImmArg(0))
	entry.Append(cmp)
	f.SetBranch(entry, cg.CondGT, tb, fb)

	movT := f.NewInstr(cg.OpMov, cg.CondAL, tb, true)
	movT.SetArgs(cg.ImmArg(1))
	tb.Append(movT)
	f.SetJump(tb, join)

	movF := f.NewInstr(cg.OpMov, cg.CondAL, fb, true)
	movF.SetArgs(cg.ImmArg(2))
	fb.Append(movF)
	f.SetJump(fb, join)

	phi := f.NewInstr(cg.OpPhi, cg.CondAL, join, true)
	phi.AddPhiArg(movT, tb)
	phi.AddPhiArg(movF, fb)
	join.AppendPhi(phi)

	ret := f.NewInstr(cg.OpRet, cg.CondAL, join, false)
	ret.SetArgs(cg.VReg(phi))
	join.Append(ret)

	tu.AddFunc(f)
	return f
}

func TestAllocateDiamondPhi(t *testing.T) {
	f := buildDiamondPhi(t)
	if err := Allocate(f, Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.RA != nil {
		t.Fatal("expected f.RA to be cleared after Allocate returns")
	}

	join := f.Exit
	if len(join.Phis) != 0 {
		t.Fatalf("expected phi list dropped by cleanup, got %d", len(join.Phis))
	}
	for _, in := range join.Instr {
		if in.Op == cg.OpRet {
			t.Fatal("expected cleanup to drop the ret pseudo")
		}
	}
	last := join.Instr[len(join.Instr)-1]
	if last.Reg != 0 {
		t.Fatalf("expected the return value forced into r0 by join's last instruction, got %s writing r%d", last.Op, last.Reg)
	}
	for _, b := range f.Blocks {
		for _, in := range b.Instr {
			if in.Reg >= cg.NumHRegs {
				t.Fatalf("instr %s left with an uncoloured vreg %d", in.Op, in.Reg)
			}
		}
	}
}

// buildCountdownLoop builds:
//
//	entry: n = arg r0; jmp hdr
//	hdr:   nPhi = phi(n:entry, nNext:body); cmp nPhi,#0; ble exit; jmp body (inverted)
//	body:  nNext = nPhi - 1; jmp hdr
//	exit:  ret nPhi
func buildCountdownLoop(t *testing.T) *cg.Func {
	t.Helper()
	tu := cg.NewTU()
	f := cg.NewFunc(tu, "countdown")
	entry := f.NewBlock()
	hdr := f.NewBlock()
	body := f.NewBlock()
	exit := f.NewBlock()
	f.MarkExit(exit)

	n := f.NewInstr(cg.OpArg, cg.CondAL, entry, true)
	n.SetArgs(cg.HRegArg(0))
	entry.Append(n)
	f.Args = append(f.Args, n)
	f.SetJump(entry, hdr)

	nPhi := f.NewInstr(cg.OpPhi, cg.CondAL, hdr, true)
	hdr.AppendPhi(nPhi)
	nPhi.AddPhiArg(n, entry)

	cmp := f.NewInstr(cg.OpCmp, cg.CondAL, hdr, false)
	cmp.SetArgs(cg.VReg(nPhi), cg.ImmArg(0))
	hdr.Append(cmp)
	f.SetBranch(hdr, cg.CondLE, exit, body)

	nNext := f.NewInstr(cg.OpSub, cg.CondAL, body, true)
	nNext.SetArgs(cg.VReg(nPhi), cg.ImmArg(1))
	body.Append(nNext)
	nPhi.AddPhiArg(nNext, body)
	f.SetJump(body, hdr)

	ret := f.NewInstr(cg.OpRet, cg.CondAL, exit, false)
	ret.SetArgs(cg.VReg(nPhi))
	exit.Append(ret)

	tu.AddFunc(f)
	return f
}

func TestAllocateLoopWithBackEdgePhi(t *testing.T) {
	f := buildCountdownLoop(t)
	if err := Allocate(f, Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	hdr := f.Blocks[1]
	if len(hdr.Phis) != 0 {
		t.Fatal("expected phi list dropped by cleanup")
	}
	for _, b := range f.Blocks {
		for _, in := range b.Instr {
			if in.Reg >= cg.NumHRegs {
				t.Fatalf("instr %s left with an uncoloured vreg %d", in.Op, in.Reg)
			}
		}
	}
}

func TestAllocateLoopUnderHeavyPressureSpills(t *testing.T) {
	f := buildCountdownLoop(t)
	if err := Allocate(f, Config{MaxRegs: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.FrameSize == 0 {
		t.Fatal("expected spill slots to grow the frame under a 1-register budget")
	}
}

// buildCallSite builds a function that calls g(a, b) and returns a+result,
// forcing both a call-argument shuffle and a return-value placement.
func buildCallSite(t *testing.T) *cg.Func {
	t.Helper()
	tu := cg.NewTU()
	f := cg.NewFunc(tu, "caller")
	entry := f.NewBlock()
	f.MarkExit(entry)

	a := f.NewInstr(cg.OpArg, cg.CondAL, entry, true)
	a.SetArgs(cg.HRegArg(0))
	entry.Append(a)
	f.Args = append(f.Args, a)

	b := f.NewInstr(cg.OpArg, cg.CondAL, entry, true)
	b.SetArgs(cg.HRegArg(1))
	entry.Append(b)
	f.Args = append(f.Args, b)

	call := f.NewInstr(cg.OpCall, cg.CondAL, entry, true)
	call.SetArgs(cg.SymArg("g"), cg.VReg(b), cg.VReg(a)) // swapped vs. arg order on purpose
	entry.Append(call)

	sum := f.NewInstr(cg.OpAdd, cg.CondAL, entry, true)
	sum.SetArgs(cg.VReg(a), cg.VReg(call))
	entry.Append(sum)

	ret := f.NewInstr(cg.OpRet, cg.CondAL, entry, false)
	ret.SetArgs(cg.VReg(sum))
	entry.Append(ret)

	tu.AddFunc(f)
	return f
}

func TestAllocateCallSiteForcesABIRegisters(t *testing.T) {
	f := buildCallSite(t)
	if err := Allocate(f, Config{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var call *cg.Instr
	for _, in := range f.Entry.Instr {
		if in.Op == cg.OpCall {
			call = in
		}
	}
	if call == nil {
		t.Fatal("expected call to survive cleanup")
	}
	if call.Reg != 0 {
		t.Fatalf("expected call result pinned to r0, got r%d", call.Reg)
	}
	if call.Args[0].Kind != cg.ArgSym {
		t.Fatalf("expected callee symbol left untouched, got %+v", call.Args[0])
	}
	for i := 1; i < call.NArgs; i++ {
		want := i - 1
		if call.Args[i].Kind != cg.ArgHReg || call.Args[i].HReg != want {
			t.Fatalf("expected call arg %d forced into r%d, got %+v", i, want, call.Args[i])
		}
	}
}
