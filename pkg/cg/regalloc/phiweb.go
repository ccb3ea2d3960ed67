package regalloc

import "github.com/markuszzz/mycc/pkg/bitset"

// buildPhiWebs is stage (c) (spec.md §4.5.c): union every phi result with
// each of its (post-lift) arguments, then compute, per representative, the
// union of all members' live intervals — the phi-web live range stage (d)
// tests for interference against.
func buildPhiWebs(st *state) {
	collectVRegs(st)
	n := len(st.indexVreg)
	st.phiWeb = bitset.NewDisjointSet(n)

	for _, b := range st.f.Blocks {
		for _, phi := range b.Phis {
			pi, ok := st.vregIndex[phi.Reg]
			if !ok {
				continue
			}
			for _, pa := range phi.PhiArgs {
				if pa.Value.Reg < 0 {
					continue
				}
				ai, ok := st.vregIndex[pa.Value.Reg]
				if !ok {
					continue
				}
				st.phiWeb.Union(pi, ai)
			}
		}
	}

	recomputeWebIntervals(st)
}

// recomputeWebIntervals rebuilds st.webInterval from scratch against the
// current union-find state. Called once after stage (c)'s unions and again
// after stage (d) commits a fuse, since a fuse changes which web a vreg
// belongs to.
func recomputeWebIntervals(st *state) {
	st.webInterval = make(map[int]*Interval)
	for i, v := range st.indexVreg {
		r := st.phiWeb.Find(i)
		web, ok := st.webInterval[r]
		if !ok {
			web = &Interval{}
			st.webInterval[r] = web
		}
		def := st.defOf[v]
		for _, rng := range st.interval(def).Ranges {
			web.Add(rng.From, rng.To)
		}
	}
}
