package iselect

import (
	"testing"

	"github.com/markuszzz/mycc/pkg/cg"
	"github.com/markuszzz/mycc/pkg/ir"
)

// buildAbs builds:
//
//	int abs(int n) {
//	  if (n < 0) return 0 - n;
//	  return n;
//	}
func buildAbs(t *testing.T) *ir.TU {
	t.Helper()
	tu := ir.NewTU()
	f := ir.NewFunc(tu, "abs", ir.I32, []ir.Type{ir.I32}, false)
	entry := f.NewBlock()
	neg := f.NewBlock()
	pos := f.NewBlock()
	f.MarkExit(neg)
	f.MarkExit(pos)

	n, err := f.NewGetParam(entry, 0)
	mustOK(t, err)
	zero, err := f.NewConst(entry, ir.I32, 0)
	mustOK(t, err)
	cmp, err := f.NewCompare(entry, ir.OpICmpSLT, n, zero)
	mustOK(t, err)
	mustOK(t, f.SetBranch(entry, cmp, neg, pos))

	sub, err := f.NewBinOp(neg, ir.OpSub, zero, n)
	mustOK(t, err)
	mustOK(t, f.SetReturn(neg, sub))

	mustOK(t, f.SetReturn(pos, n))

	tu.AddFunc(f)
	return tu
}

func mustOK(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLowerAbs(t *testing.T) {
	tu := buildAbs(t)
	out, err := Lower(tu)
	mustOK(t, err)

	cf := out.FindFunc("abs")
	if cf == nil {
		t.Fatal("expected function abs in lowered output")
	}
	if len(cf.Args) != 1 {
		t.Fatalf("expected 1 arg pseudo, got %d", len(cf.Args))
	}
	if cf.Args[0].Op != cg.OpArg || cf.Args[0].Args[0].HReg != 0 {
		t.Fatalf("expected arg pseudo bound to r0, got %+v", cf.Args[0])
	}

	entry := cf.Entry
	// zero folds into the cmp's immediate operand; the only mov in entry is
	// the one materialized later for sub's lhs (checked below).
	var cmp *cg.Instr
	var movs []*cg.Instr
	for _, in := range entry.Instr {
		if in.Op == cg.OpCmp {
			cmp = in
		}
		if in.Op == cg.OpMov {
			movs = append(movs, in)
		}
	}
	if cmp == nil {
		t.Fatal("expected a cmp instruction in entry")
	}
	if cmp.Args[1].Kind != cg.ArgImm || cmp.Args[1].Imm != 0 {
		t.Fatalf("expected cmp's rhs to be immediate 0, got %+v", cmp.Args[1])
	}
	// neg is created right after entry, so it is the textual fall-through
	// block; since IR's true-target is neg, iselect must invert the
	// predicate (SLT -> GE) and swap targets so true-target is pos instead.
	if entry.Cond != cg.CondGE {
		t.Fatalf("expected SLT inverted to GE by the fall-through invariant, got %s", entry.Cond)
	}
	if entry.TrueTarget != cf.Blocks[2] || entry.FalseTarget != cf.Blocks[1] {
		t.Fatalf("expected true-target=pos(2) false-target=neg(1) after inversion, got true=%d false=%d",
			entry.TrueTarget.ID, entry.FalseTarget.ID)
	}

	negBB := entry.FalseTarget
	if negBB == nil || len(negBB.Instr) == 0 {
		t.Fatal("expected neg block with a sub instruction")
	}
	var sub, ret *cg.Instr
	for _, in := range negBB.Instr {
		switch in.Op {
		case cg.OpSub:
			sub = in
		case cg.OpRet:
			ret = in
		}
	}
	if sub == nil || ret == nil {
		t.Fatalf("expected sub and ret in neg block, got %d instrs", len(negBB.Instr))
	}
	// zero - n: zero is not commutative-reorderable into operand 2 (sub), so
	// it must fold directly into operand 1's... no, our model only ever
	// folds into operand 2. Since zero is lhs of a non-commutative op, it
	// materializes as a real mov.
	if sub.Args[0].Kind != cg.ArgVReg {
		t.Fatalf("expected sub's lhs to be a materialized register (non-commutative op can't reorder), got %+v", sub.Args[0])
	}
	if len(movs) != 1 || sub.Args[0].Def != movs[0] {
		t.Fatalf("expected entry's only mov to be the materialized zero feeding sub's lhs, got %d movs", len(movs))
	}
	if sub.Args[1].Def == nil {
		t.Fatalf("expected sub's rhs to reference n's defining instr, got %+v", sub.Args[1])
	}
	if ret.Args[0].Def != sub {
		t.Fatalf("expected ret to return sub's result")
	}
}

// buildSumLoop builds:
//
//	int sum(int n) {
//	  int s = 0;
//	  while (n > 0) { s = s + n; n = n - 1; }
//	  return s;
//	}
func buildSumLoop(t *testing.T) *ir.TU {
	t.Helper()
	tu := ir.NewTU()
	f := ir.NewFunc(tu, "sum", ir.I32, []ir.Type{ir.I32}, false)
	entry := f.NewBlock()
	hdr := f.NewBlock()
	body := f.NewBlock()
	exit := f.NewBlock()
	f.MarkExit(exit)

	param, err := f.NewGetParam(entry, 0)
	mustOK(t, err)
	zero, err := f.NewConst(entry, ir.I32, 0)
	mustOK(t, err)
	mustOK(t, f.SetJump(entry, hdr))

	nPhi, err := f.NewPhi(hdr, ir.I32)
	mustOK(t, err)
	sPhi, err := f.NewPhi(hdr, ir.I32)
	mustOK(t, err)
	mustOK(t, f.AddPhiArg(nPhi, param, entry))
	mustOK(t, f.AddPhiArg(sPhi, zero, entry))
	cmp, err := f.NewCompare(hdr, ir.OpICmpSGT, nPhi, zero)
	mustOK(t, err)
	mustOK(t, f.SetBranch(hdr, cmp, body, exit))

	one, err := f.NewConst(body, ir.I32, 1)
	mustOK(t, err)
	sNext, err := f.NewBinOp(body, ir.OpAdd, sPhi, nPhi)
	mustOK(t, err)
	nNext, err := f.NewBinOp(body, ir.OpSub, nPhi, one)
	mustOK(t, err)
	mustOK(t, f.AddPhiArg(nPhi, nNext, body))
	mustOK(t, f.AddPhiArg(sPhi, sNext, body))
	mustOK(t, f.SetJump(body, hdr))

	mustOK(t, f.SetReturn(exit, sPhi))
	tu.AddFunc(f)
	return tu
}

func TestLowerSumLoopPhisAndFallThroughInversion(t *testing.T) {
	tu := buildSumLoop(t)
	out, err := Lower(tu)
	mustOK(t, err)

	cf := out.FindFunc("sum")
	hdr := cf.Blocks[1]
	if len(hdr.Phis) != 2 {
		t.Fatalf("expected 2 phis in header, got %d", len(hdr.Phis))
	}
	for _, phi := range hdr.Phis {
		if len(phi.PhiArgs) != 2 {
			t.Fatalf("expected phi to have 2 resolved args, got %d", len(phi.PhiArgs))
		}
	}

	// Header's textual-next block is body (hdr, body, exit in creation
	// order), so a true-target of body would coincide with fall-through;
	// iselect must invert the predicate (SGT -> LE... here Invert of GT is
	// LE) and swap targets so the true-target is exit.
	if hdr.TrueTarget != cf.Blocks[3] {
		t.Fatalf("expected inverted branch to target exit as true-target, got block %d", hdr.TrueTarget.ID)
	}
	if hdr.FalseTarget != cf.Blocks[2] {
		t.Fatalf("expected inverted branch's false-target to be body, got block %d", hdr.FalseTarget.ID)
	}
	if hdr.Cond != cg.CondLE {
		t.Fatalf("expected inverted SGT -> LE, got %s", hdr.Cond)
	}

	body := cf.Blocks[2]
	var addCount, subCount int
	for _, in := range body.Instr {
		switch in.Op {
		case cg.OpAdd:
			addCount++
		case cg.OpSub:
			subCount++
			// n - 1: 1 should fold into operand 2 as an immediate.
			if in.Args[1].Kind != cg.ArgImm || in.Args[1].Imm != 1 {
				t.Fatalf("expected n-1's rhs to fold to immediate 1, got %+v", in.Args[1])
			}
		}
	}
	if addCount != 1 || subCount != 1 {
		t.Fatalf("expected 1 add and 1 sub in body, got add=%d sub=%d", addCount, subCount)
	}
}

func TestLowerRejectsDivide(t *testing.T) {
	tu := ir.NewTU()
	f := ir.NewFunc(tu, "bad", ir.I32, []ir.Type{ir.I32, ir.I32}, false)
	entry := f.NewBlock()
	f.MarkExit(entry)
	a, err := f.NewGetParam(entry, 0)
	mustOK(t, err)
	b, err := f.NewGetParam(entry, 1)
	mustOK(t, err)
	d, err := f.NewBinOp(entry, ir.OpSDiv, a, b)
	mustOK(t, err)
	mustOK(t, f.SetReturn(entry, d))
	tu.AddFunc(f)

	if _, err := Lower(tu); err == nil {
		t.Fatal("expected Lower to reject sdiv as unsupported")
	}
}
