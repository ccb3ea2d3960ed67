// Package regalloc is the SSA register allocator: phi-lifting, lifetime
// intervals, phi-web coalescing, spill selection, colour assignment, SSA
// deconstruction, spill lowering, and cleanup (spec.md §4.5).
package regalloc

import (
	"github.com/markuszzz/mycc/pkg/cg"
	"github.com/markuszzz/mycc/pkg/diag"
)

// Allocate runs the full allocator on f, in stage order (a) through (i),
// stashing its scratch state on f.RA for the duration (SPEC_FULL.md §4.9).
func Allocate(f *cg.Func, cfg Config) error {
	diag.Pass("regalloc", f.Name, nil)
	st := newState(f, cfg)
	f.RA = st
	defer func() { f.RA = nil }()

	phiLift(st)         // (a)
	collectVRegs(st)    // vregs now include stage (a)'s lifted movs
	computeLifetimes(st) // (b)
	buildPhiWebs(st)    // (c)
	coalescePhiMoves(st) // (d)
	if err := selectSpills(st); err != nil { // (e)
		return err
	}
	assignColours(st)                        // (f)
	enforceCallAndReturnConstraints(st)       // (f, call/return constraints)
	deconstructSSA(st)                       // (g)
	lowerSpillPseudos(st)                    // (h)
	cleanup(st)                              // (i)
	return nil
}
