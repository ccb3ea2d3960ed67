package regalloc

import "github.com/markuszzz/mycc/pkg/cg"

// coalescePhiMoves is stage (d) (spec.md §4.5.d): for each mov stage (a)
// inserted, if the source's phi-web and the destination's phi-web do not
// intersect, fuse them — replace every use of the mov's result with its
// source operand directly and delete the mov.
func coalescePhiMoves(st *state) {
	for _, mov := range st.liftedMovs {
		if mov.BB == nil {
			continue // already removed by an earlier fuse in this same loop
		}
		src := mov.Args[0].Def
		if src == nil {
			continue
		}
		si, sok := st.vregIndex[src.Reg]
		di, dok := st.vregIndex[mov.Reg]
		if !sok || !dok {
			continue
		}
		sr, dr := st.phiWeb.Find(si), st.phiWeb.Find(di)
		if sr == dr {
			continue
		}
		if st.webInterval[sr].Intersects(st.webInterval[dr]) {
			continue
		}

		cg.ReplaceAllUsesWith(mov, src)
		removeFromBlock(mov)
		mov.BB = nil
		st.phiWeb.Union(si, di)
		recomputeWebIntervals(st)
	}
}

func removeFromBlock(in *cg.Instr) {
	b := in.BB
	if b == nil {
		return
	}
	if in.Op == cg.OpPhi {
		b.RemovePhi(in)
		return
	}
	b.RemoveInstr(in)
}
