package cgsim

import (
	"testing"

	"github.com/markuszzz/mycc/pkg/cg"
)

// buildMaxViaBranch mirrors a diamond phi the way iselect would emit it
// straight out of selection: two arg registers, a compare, a two-way
// branch, and a join phi picking the larger one. Register ids here are
// plain vregs (no allocator has touched this function), exercising the
// pre-allocation shape of the machine.
func buildMaxViaBranch(t *testing.T) *cg.TU {
	t.Helper()
	tu := cg.NewTU()
	f := cg.NewFunc(tu, "max")

	entry := f.NewBlock()
	tb := f.NewBlock()
	fb := f.NewBlock()
	join := f.NewBlock()
	f.MarkExit(join)

	a0 := f.NewInstr(cg.OpArg, cg.CondAL, entry, true)
	a0.SetArgs(cg.HRegArg(0))
	entry.Append(a0)
	a1 := f.NewInstr(cg.OpArg, cg.CondAL, entry, true)
	a1.SetArgs(cg.HRegArg(1))
	entry.Append(a1)
	f.Args = []*cg.Instr{a0, a1}

	cmp := f.NewInstr(cg.OpCmp, cg.CondAL, entry, false)
	cmp.SetArgs(cg.VReg(a0), cg.VReg(a1))
	entry.Append(cmp)
	f.SetBranch(entry, cg.CondGT, tb, fb)

	f.SetJump(tb, join)
	f.SetJump(fb, join)

	phi := f.NewInstr(cg.OpPhi, cg.CondAL, join, true)
	phi.AddPhiArg(a0, tb)
	phi.AddPhiArg(a1, fb)
	join.AppendPhi(phi)

	ret := f.NewInstr(cg.OpRet, cg.CondAL, join, false)
	ret.SetArgs(cg.VReg(phi))
	join.Append(ret)

	tu.AddFunc(f)
	return tu
}

func TestRunMaxViaBranch(t *testing.T) {
	tu := buildMaxViaBranch(t)
	m := New(tu)

	got, err := m.Run("max", 3, 9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 9 {
		t.Fatalf("max(3, 9) = %d, want 9", got)
	}

	got, err = m.Run("max", 12, 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 12 {
		t.Fatalf("max(12, 4) = %d, want 12", got)
	}
}

// buildMaxPredicated is the same function after a branchpred-style fold:
// one block, both arms collapsed into a pair of conditionally executed
// movs targeting the same physical destination register, no branch left
// at all.
func buildMaxPredicated(t *testing.T) *cg.TU {
	t.Helper()
	tu := cg.NewTU()
	f := cg.NewFunc(tu, "maxp")
	entry := f.NewBlock()
	f.MarkExit(entry)

	a0 := f.NewInstr(cg.OpArg, cg.CondAL, entry, true)
	a0.Reg = 0
	a0.SetArgs(cg.HRegArg(0))
	entry.Append(a0)
	a1 := f.NewInstr(cg.OpArg, cg.CondAL, entry, true)
	a1.Reg = 1
	a1.SetArgs(cg.HRegArg(1))
	entry.Append(a1)
	f.Args = []*cg.Instr{a0, a1}

	cmp := f.NewInstr(cg.OpCmp, cg.CondAL, entry, false)
	cmp.SetArgs(cg.VReg(a0), cg.VReg(a1))
	entry.Append(cmp)

	movT := f.NewInstr(cg.OpMov, cg.CondGT, entry, true)
	movT.Reg = 2
	movT.SetArgs(cg.VReg(a0))
	entry.Append(movT)

	movF := f.NewInstr(cg.OpMov, cg.CondGT.Invert(), entry, true)
	movF.Reg = 2
	movF.SetArgs(cg.VReg(a1))
	entry.Append(movF)

	ret := f.NewInstr(cg.OpRet, cg.CondAL, entry, false)
	ret.SetArgs(cg.HRegArg(2))
	entry.Append(ret)

	tu.AddFunc(f)
	return tu
}

func TestRunMaxPredicated(t *testing.T) {
	tu := buildMaxPredicated(t)
	m := New(tu)

	if got, err := m.Run("maxp", 5, 9); err != nil || got != 9 {
		t.Fatalf("maxp(5, 9) = (%d, %v), want (9, nil)", got, err)
	}
	if got, err := m.Run("maxp", 9, 5); err != nil || got != 9 {
		t.Fatalf("maxp(9, 5) = (%d, %v), want (9, nil)", got, err)
	}
}

// buildSumPair loads two words through a base-pointer argument, adds them,
// stores the result at a third offset, and returns it — every memory op
// shape (word load, word store, byte displacement) in one function.
func buildSumPair(t *testing.T) *cg.TU {
	t.Helper()
	tu := cg.NewTU()
	f := cg.NewFunc(tu, "sumpair")
	entry := f.NewBlock()
	f.MarkExit(entry)

	ptr := f.NewInstr(cg.OpArg, cg.CondAL, entry, true)
	ptr.SetArgs(cg.HRegArg(0))
	entry.Append(ptr)
	f.Args = []*cg.Instr{ptr}

	lhs := f.NewInstr(cg.OpLdr, cg.CondAL, entry, true)
	lhs.SetArgs(cg.VReg(ptr).WithOffset(0))
	entry.Append(lhs)

	rhs := f.NewInstr(cg.OpLdr, cg.CondAL, entry, true)
	rhs.SetArgs(cg.VReg(ptr).WithOffset(4))
	entry.Append(rhs)

	sum := f.NewInstr(cg.OpAdd, cg.CondAL, entry, true)
	sum.SetArgs(cg.VReg(lhs), cg.VReg(rhs))
	entry.Append(sum)

	st := f.NewInstr(cg.OpStr, cg.CondAL, entry, false)
	st.SetArgs(cg.VReg(ptr).WithOffset(8), cg.VReg(sum))
	entry.Append(st)

	ret := f.NewInstr(cg.OpRet, cg.CondAL, entry, false)
	ret.SetArgs(cg.VReg(sum))
	entry.Append(ret)

	tu.AddFunc(f)
	return tu
}

func TestRunSumPairReadsAndWritesMemory(t *testing.T) {
	tu := buildSumPair(t)
	m := New(tu)

	base := uint32(0)
	m.WriteBytes(base, []byte{7, 0, 0, 0, 35, 0, 0, 0})

	got, err := m.Run("sumpair", int32(base))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 {
		t.Fatalf("sumpair = %d, want 42", got)
	}
	stored := m.ReadBytes(base+8, 4)
	if stored[0] != 42 || stored[1] != 0 || stored[2] != 0 || stored[3] != 0 {
		t.Fatalf("stored result bytes = %v, want [42 0 0 0]", stored)
	}
}

// buildCallChain builds a callee that clobbers r4 for its own scratch use
// (declared via Clobber, the way regalloc's cleanup stage would) and a
// caller that seeds r4 before the call and reads it back after — checking
// that the callee-saved register comes back unchanged across the call.
func buildCallChain(t *testing.T) *cg.TU {
	t.Helper()
	tu := cg.NewTU()

	callee := cg.NewFunc(tu, "callee")
	cEntry := callee.NewBlock()
	callee.MarkExit(cEntry)
	callee.Clobber = 1 << 4

	cArg := callee.NewInstr(cg.OpArg, cg.CondAL, cEntry, true)
	cArg.Reg = 0
	cArg.SetArgs(cg.HRegArg(0))
	cEntry.Append(cArg)
	callee.Args = []*cg.Instr{cArg}

	scratch := callee.NewInstr(cg.OpMov, cg.CondAL, cEntry, true)
	scratch.Reg = 4
	scratch.SetArgs(cg.ImmArg(7))
	cEntry.Append(scratch)

	plusOne := callee.NewInstr(cg.OpAdd, cg.CondAL, cEntry, true)
	plusOne.Reg = 0
	plusOne.SetArgs(cg.VReg(cArg), cg.ImmArg(1))
	cEntry.Append(plusOne)

	cRet := callee.NewInstr(cg.OpRet, cg.CondAL, cEntry, false)
	cRet.SetArgs(cg.HRegArg(0))
	cEntry.Append(cRet)
	tu.AddFunc(callee)

	caller := cg.NewFunc(tu, "caller")
	entry := caller.NewBlock()
	caller.MarkExit(entry)

	a0 := caller.NewInstr(cg.OpArg, cg.CondAL, entry, true)
	a0.Reg = 0
	a0.SetArgs(cg.HRegArg(0))
	entry.Append(a0)
	caller.Args = []*cg.Instr{a0}

	seed := caller.NewInstr(cg.OpMov, cg.CondAL, entry, true)
	seed.Reg = 4
	seed.SetArgs(cg.ImmArg(99))
	entry.Append(seed)

	call := caller.NewInstr(cg.OpCall, cg.CondAL, entry, true)
	call.Reg = 0
	call.SetArgs(cg.SymArg("callee"), cg.VReg(a0))
	entry.Append(call)

	sum := caller.NewInstr(cg.OpAdd, cg.CondAL, entry, true)
	sum.Reg = 0
	sum.SetArgs(cg.HRegArg(0), cg.HRegArg(4))
	entry.Append(sum)

	ret := caller.NewInstr(cg.OpRet, cg.CondAL, entry, false)
	ret.SetArgs(cg.HRegArg(0))
	entry.Append(ret)
	tu.AddFunc(caller)

	return tu
}

func TestRunCallChainRestoresClobberedRegister(t *testing.T) {
	tu := buildCallChain(t)
	m := New(tu)

	got, err := m.Run("caller", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// callee(10) = 11, and r4 must read back 99 (its pre-call value), not
	// 7 (the callee's internal scratch write), once the call returns.
	if got != 110 {
		t.Fatalf("caller(10) = %d, want 110 (callee result 11 + restored r4 99)", got)
	}
}

func TestRunUndefinedFunctionFails(t *testing.T) {
	m := New(cg.NewTU())
	if _, err := m.Run("nope"); err == nil {
		t.Fatal("expected an error calling an undefined function")
	}
}
