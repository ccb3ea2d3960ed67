// Package branchpred turns short, side-effect-free if/else arms into
// predicated straight-line code (spec.md §4.6), run after register
// allocation so every value the arms touch already lives in a fixed
// physical register.
package branchpred

import (
	"github.com/markuszzz/mycc/pkg/cg"
	"github.com/markuszzz/mycc/pkg/diag"
	"github.com/markuszzz/mycc/pkg/graph"
)

const maxArmLen = 2

// Run applies the three predication patterns to f, once per block, in
// block-creation order, first match wins.
func Run(f *cg.Func) {
	diag.Pass("branchpred", f.Name, nil)
	candidates := append([]*cg.BB(nil), f.Blocks...)
	for _, b := range candidates {
		if !f.CFG.Alive(graph.NodeID(b.ID)) || !b.IsConditional() {
			continue
		}
		if tryDiamond(f, b) {
			continue
		}
		if tryTriangle(f, b, b.TrueTarget, b.FalseTarget, b.Cond) {
			continue
		}
		tryTriangle(f, b, b.FalseTarget, b.TrueTarget, b.Cond.Invert())
	}

	kept := f.Blocks[:0]
	for _, b := range f.Blocks {
		if f.CFG.Alive(graph.NodeID(b.ID)) {
			kept = append(kept, b)
		}
	}
	f.Blocks = kept
}

// isArm reports whether b is eligible to be folded into its sole
// predecessor: it has exactly one predecessor, carries no more than
// maxArmLen instructions, and none of them is a call (spec.md §4.6).
func isArm(f *cg.Func, b *cg.BB) bool {
	preds := f.CFG.Preds(graph.NodeID(b.ID))
	if len(preds) != 1 {
		return false
	}
	if len(b.Instr) > maxArmLen {
		return false
	}
	for _, in := range b.Instr {
		if in.Op == cg.OpCall {
			return false
		}
	}
	return true
}

// singleSucc returns b's lone CFG successor, or nil if it doesn't have
// exactly one.
func singleSucc(f *cg.Func, b *cg.BB) *cg.BB {
	succs := f.CFG.Succs(graph.NodeID(b.ID))
	if len(succs) != 1 {
		return nil
	}
	return f.Block(int(succs[0]))
}

// tryDiamond applies pattern 1: both arms rejoin at the same block.
func tryDiamond(f *cg.Func, b *cg.BB) bool {
	tb, fb := b.TrueTarget, b.FalseTarget
	if !isArm(f, tb) || !isArm(f, fb) {
		return false
	}
	joinT, joinF := singleSucc(f, tb), singleSucc(f, fb)
	if joinT == nil || joinF == nil || joinT != joinF {
		return false
	}

	fold(b, tb, b.Cond)
	fold(b, fb, b.Cond.Invert())
	relink(f, b, tb, fb, joinT)
	return true
}

// tryTriangle applies pattern 2/3: one arm rejoins directly at the other
// branch's target. arm is the block being folded away, join is the block
// it jumps to (which must be b's other target); cond is the predicate the
// arm's instructions are tagged with.
func tryTriangle(f *cg.Func, b *cg.BB, arm, join *cg.BB, cond cg.CondCode) bool {
	if !isArm(f, arm) {
		return false
	}
	if s := singleSucc(f, arm); s == nil || s != join {
		return false
	}

	fold(b, arm, cond)
	relink(f, b, arm, nil, join)
	return true
}

// fold moves arm's instructions into b, predicated on cond.
func fold(b *cg.BB, arm *cg.BB, cond cg.CondCode) {
	for _, in := range arm.Instr {
		in.BB = b
		in.Cond = cond
	}
	b.Instr = append(b.Instr, arm.Instr...)
	arm.Instr = nil
}

// relink rewires b to jump straight to join and removes the folded arm(s)
// from the graph entirely; second may be nil for a triangle fold.
func relink(f *cg.Func, b, first, second, join *cg.BB) {
	f.CFG.DeleteNode(graph.NodeID(first.ID))
	if second != nil {
		f.CFG.DeleteNode(graph.NodeID(second.ID))
	}
	f.SetJump(b, join)
}
