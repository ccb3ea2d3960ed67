package regalloc

import "github.com/markuszzz/mycc/pkg/cg"

// enforceCallAndReturnConstraints is spec.md §4.5.f's "call and return
// constraints" paragraph: every argument must physically be in r0..r3 at
// the call, the call's result already lands in r0 by the ABI, and a ret's
// value must be in r0 before the instruction. Colour assignment biases
// toward these registers but cannot always land on them (interference),
// so this pass inserts the corrective copies — real shuffles, via
// resolveMoves, so a register swap at a call site doesn't clobber a value
// another argument still needs to read.
func enforceCallAndReturnConstraints(st *state) {
	for _, b := range st.f.Blocks {
		for _, in := range append([]*cg.Instr(nil), b.Instr...) {
			switch in.Op {
			case cg.OpCall:
				enforceCallArgs(st, in)
				if in.Reg >= 0 {
					in.Reg = 0 // the callee always leaves its result in r0
				}
			case cg.OpRet:
				enforceReturnValue(st, in)
			}
		}
	}
}

// enforceCallArgs handles a call's argument list, Args[0] is the callee
// (a symbol, never a register) and Args[1:] are the up-to-four actual
// arguments, landing in r0..r3 in that order.
func enforceCallArgs(st *state, call *cg.Instr) {
	last := call.NArgs
	if last > 5 {
		last = 5
	}
	var moves []copyMove
	for i := 1; i < last; i++ {
		a := call.Args[i]
		if a.Kind != cg.ArgVReg || a.Def == nil {
			continue
		}
		moves = append(moves, copyMove{Dst: i - 1, Src: a.Def.Reg})
	}
	resolveMoves(st.f, call.BB, call, moves)
	for i := 1; i < last; i++ {
		a := call.Args[i]
		if a.Kind != cg.ArgVReg || a.Def == nil {
			continue
		}
		removeUseEdge(a.Def, call)
		call.Args[i] = cg.HRegArg(i - 1)
	}
}

func enforceReturnValue(st *state, ret *cg.Instr) {
	if ret.NArgs == 0 || ret.Args[0].Kind != cg.ArgVReg || ret.Args[0].Def == nil {
		return
	}
	def := ret.Args[0].Def
	resolveMoves(st.f, ret.BB, ret, []copyMove{{Dst: 0, Src: def.Reg}})
	removeUseEdge(def, ret)
	ret.Args[0] = cg.HRegArg(0)
}
