package regalloc

import "github.com/markuszzz/mycc/pkg/cg"

// lowerSpillPseudos is stage (h) (spec.md §4.5.h): replace each `spill`
// pseudo with a real `str` and each `reload` pseudo with a real `ldr`
// against its spill family's slot (SetArgs handles retargeting the
// use-edges, dropping the reload's now-stale reference to its original
// def — emission only needs the slot, not the provenance).
func lowerSpillPseudos(st *state) {
	for _, b := range st.f.Blocks {
		for _, in := range append([]*cg.Instr(nil), b.Instr...) {
			switch in.Op {
			case cg.OpSpill:
				slot, _ := st.slotFor(in.SpillID)
				val := in.Args[0]
				in.Op = cg.OpStr
				in.SetArgs(cg.HRegArg(cg.RegSP).WithOffset(slot*4), val)
			case cg.OpReload:
				slot, _ := st.slotFor(in.SpillID)
				in.Op = cg.OpLdr
				in.SetArgs(cg.HRegArg(cg.RegSP).WithOffset(slot * 4))
			}
		}
	}
}
