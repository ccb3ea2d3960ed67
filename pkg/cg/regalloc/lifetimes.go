package regalloc

import "github.com/markuszzz/mycc/pkg/cg"

// computeLifetimes is stage (b) (spec.md §4.5.b). It runs as two passes:
// first a standard fixed-point dataflow to the live-in/live-out vreg sets
// per block (this converges to the same sets the spec's single-RPO-pass
// plus explicit loop-header propagation would produce, since both compute
// the maximal fixed point of the same backward equations — see DESIGN.md),
// then a second pass that walks each block bottom-up assigning real
// positions and building the Interval for every vreg.
func computeLifetimes(st *state) {
	blocks := st.blocksRPO()
	liveIn := make(map[int]map[int]bool, len(blocks))
	liveOut := make(map[int]map[int]bool, len(blocks))
	for _, b := range blocks {
		liveIn[b.ID] = map[int]bool{}
		liveOut[b.ID] = map[int]bool{}
	}

	for changed := true; changed; {
		changed = false
		for i := len(blocks) - 1; i >= 0; i-- {
			b := blocks[i]
			newOut := map[int]bool{}
			for _, sid := range st.f.Succs(b.ID) {
				s := st.f.Block(sid)
				for _, phi := range s.Phis {
					for _, pa := range phi.PhiArgs {
						if pa.Pred == b {
							newOut[pa.Value.Reg] = true
						}
					}
				}
				for v := range liveIn[sid] {
					newOut[v] = true
				}
			}
			if !setEqual(newOut, liveOut[b.ID]) {
				liveOut[b.ID] = newOut
				changed = true
			}
			newIn := localLiveIn(b, liveOut[b.ID])
			if !setEqual(newIn, liveIn[b.ID]) {
				liveIn[b.ID] = newIn
				changed = true
			}
		}
	}

	for i, b := range blocks {
		buildBlockIntervals(st, b, i, liveOut[b.ID])
	}
}

func localLiveIn(b *cg.BB, liveOut map[int]bool) map[int]bool {
	live := make(map[int]bool, len(liveOut))
	for v := range liveOut {
		live[v] = true
	}
	for i := len(b.Instr) - 1; i >= 0; i-- {
		in := b.Instr[i]
		if in.Reg >= 0 {
			delete(live, in.Reg)
		}
		for k := 0; k < in.NArgs; k++ {
			a := in.Args[k]
			if a.Kind == cg.ArgVReg && a.Def != nil {
				live[a.Def.Reg] = true
			}
		}
	}
	for _, phi := range b.Phis {
		delete(live, phi.Reg)
	}
	return live
}

func setEqual(a, b map[int]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

// phiHeadIdx is the synthetic intra-block position a phi's result is
// considered defined at: earlier than any regular instruction, but distinct
// from the block-entry sentinel so it still has measurable width.
const phiHeadIdx = negInf + 1

func bump(p Pos) Pos {
	if p.Idx >= posInf-1 {
		return p
	}
	return Pos{Block: p.Block, Idx: p.Idx + 1}
}

func buildBlockIntervals(st *state, b *cg.BB, rpoIdx int, liveOut map[int]bool) {
	for v := range liveOut {
		st.interval(st.defOf[v]).Add(negInfAt(rpoIdx), posInfAt(rpoIdx))
	}

	lastRef := make(map[int]Pos, len(liveOut))
	for v := range liveOut {
		lastRef[v] = posInfAt(rpoIdx)
	}

	idx := posStep * (len(b.Instr) + 1)
	for i := len(b.Instr) - 1; i >= 0; i-- {
		in := b.Instr[i]
		p := Pos{Block: rpoIdx, Idx: idx}
		idx -= posStep
		st.pos[in] = p
		if in.Reg >= 0 {
			if last, ok := lastRef[in.Reg]; ok {
				st.interval(in).Add(p, bump(last))
				delete(lastRef, in.Reg)
			} else {
				st.interval(in).Add(p, bump(p))
			}
		}
		for k := 0; k < in.NArgs; k++ {
			a := in.Args[k]
			if a.Kind == cg.ArgVReg && a.Def != nil {
				if _, ok := lastRef[a.Def.Reg]; !ok {
					lastRef[a.Def.Reg] = p
				}
			}
		}
	}

	phiHead := Pos{Block: rpoIdx, Idx: phiHeadIdx}
	for _, phi := range b.Phis {
		st.pos[phi] = phiHead
		if last, ok := lastRef[phi.Reg]; ok {
			st.interval(phi).Add(phiHead, bump(last))
			delete(lastRef, phi.Reg)
		} else {
			st.interval(phi).Add(phiHead, bump(phiHead))
		}
	}

	for v, last := range lastRef {
		def := st.defOf[v]
		if def.BB == b {
			continue // defined by a regular instr in b, already handled above
		}
		st.interval(def).Add(negInfAt(rpoIdx), bump(last))
	}
}
