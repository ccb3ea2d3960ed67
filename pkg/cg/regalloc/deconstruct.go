package regalloc

import "github.com/markuszzz/mycc/pkg/cg"

// phiCopy is one incoming-value/phi pair collected along a CFG edge
// (spec.md §4.5.g).
type phiCopy struct {
	dst, src *cg.Instr
}

// deconstructSSA is stage (g). Phi-lifting (stage a) already broke operand
// interference, but it left each predecessor's lifted mov free to be
// coloured independently of the phi it feeds — so the value it computes
// does not necessarily already sit in the phi's own register. This stage
// places, at the end of every predecessor, the copy that lands each
// incoming value where the phi's colour (or spill slot) says it belongs:
// str/ldr when either side is spilled, otherwise a plain register move —
// with every phi fed by the same predecessor resolved together as one
// parallel copy, so a register-swap pattern across a loop back-edge
// doesn't clobber itself.
func deconstructSSA(st *state) {
	byPred := make(map[*cg.BB][]phiCopy)
	var order []*cg.BB
	for _, b := range st.f.Blocks {
		for _, phi := range b.Phis {
			for _, pa := range phi.PhiArgs {
				if _, ok := byPred[pa.Pred]; !ok {
					order = append(order, pa.Pred)
				}
				byPred[pa.Pred] = append(byPred[pa.Pred], phiCopy{dst: phi, src: pa.Value})
			}
		}
	}
	for _, pred := range order {
		resolveBlockCopies(st, pred, byPred[pred])
	}
}

func resolveBlockCopies(st *state, pred *cg.BB, copies []phiCopy) {
	var plain []copyMove
	for _, c := range copies {
		if c.src == nil {
			continue
		}
		dstSlot, dstSpilled := st.slotFor(c.dst.SpillID)
		srcSlot, srcSpilled := st.slotFor(c.src.SpillID)
		switch {
		case dstSpilled && !srcSpilled:
			emitSpillStore(st, pred, c.src, dstSlot)
		case srcSpilled && !dstSpilled:
			emitSpillLoad(st, pred, c.dst.Reg, srcSlot)
		case dstSpilled && srcSpilled:
			if dstSlot != srcSlot {
				panic("regalloc: phi copy between distinct spill slots has no register-free realization")
			}
			// same slot already: the value is already where it needs to be
		default:
			plain = append(plain, copyMove{Dst: c.dst.Reg, Src: c.src.Reg})
		}
	}
	resolveMoves(st.f, pred, nil, plain)
}

func emitSpillStore(st *state, b *cg.BB, src *cg.Instr, slot int) {
	str := st.f.NewInstr(cg.OpStr, cg.CondAL, b, false)
	str.SetArgs(cg.HRegArg(cg.RegSP).WithOffset(slot*4), cg.VReg(src))
	insertBefore(b, nil, str)
}

func emitSpillLoad(st *state, b *cg.BB, dstReg, slot int) {
	ldr := st.f.NewInstr(cg.OpLdr, cg.CondAL, b, true)
	ldr.Reg = dstReg
	ldr.SetArgs(cg.HRegArg(cg.RegSP).WithOffset(slot * 4))
	insertBefore(b, nil, ldr)
}
