package regalloc

import (
	"github.com/markuszzz/mycc/pkg/bitset"
	"github.com/markuszzz/mycc/pkg/cg"
	"github.com/markuszzz/mycc/pkg/dom"
	"github.com/markuszzz/mycc/pkg/loop"
)

// Config tunes the allocator. MaxRegs is the number of general-purpose
// registers available for coloring (spec.md §4.5's max_regs); it excludes
// sp/lr/pc, which are never colour candidates.
type Config struct {
	MaxRegs int
}

func (c Config) maxRegsOrDefault() int {
	if c.MaxRegs > 0 {
		return c.MaxRegs
	}
	return cg.RegSP // r0..r12: 13 general-purpose registers
}

// state is the allocator's scratch, stashed on cg.Func.RA while a function
// is being processed and discarded (set back to nil) once stage (i)
// finishes (spec.md §3.5, SPEC_FULL.md §4.9).
type state struct {
	f   *cg.Func
	cfg Config

	rpo      []int       // block graph ids, in reverse post-order
	blockIdx map[int]int // block id -> index into rpo

	loopInfo *loop.Result

	// intervals is keyed by defining instruction pointer — every SSA value
	// has exactly one def, so this also serves as "the vreg's interval."
	intervals map[*cg.Instr]*Interval

	// defOf maps a vreg id to its defining instruction.
	defOf map[int]*cg.Instr

	// phiWeb unions every phi result with its arguments (stage c).
	phiWeb    *bitset.DisjointSet
	vregIndex map[int]int
	indexVreg []int

	// hregIntervals tracks each physical register's reserved live range so
	// stage (f) doesn't colour two interfering defs the same register. A
	// def's chosen colour is written back into its own Instr.Reg in place
	// (spec.md §3.3's vreg/hreg id-reuse design), so no separate vreg ->
	// colour table is kept: any Instr.Reg < cg.NumHRegs is already coloured.
	hregIntervals map[int]*Interval

	// spillSlot maps a spill-family representative spill id to its stack
	// slot index (stage e/h).
	spillFamily *bitset.DisjointSet
	spillSlot   map[int]int
	nextSlot    int
	nextSpillID int

	// liftedMovs holds every mov stage (a) inserted, candidates for stage
	// (d)'s coalescing pass.
	liftedMovs []*cg.Instr

	// pos records the position stage (b) assigned each instruction, reused
	// verbatim by stages (e)/(f) so live-count queries agree with how the
	// intervals were built.
	pos map[*cg.Instr]Pos

	// webInterval is the union of live intervals of every vreg in a
	// phi-web, keyed by the web's dense union-find representative index
	// (stage c/d).
	webInterval map[int]*Interval
}

func newState(f *cg.Func, cfg Config) *state {
	st := &state{
		f:             f,
		cfg:           cfg,
		intervals:     make(map[*cg.Instr]*Interval),
		defOf:         make(map[int]*cg.Instr),
		vregIndex:     make(map[int]int),
		hregIntervals: make(map[int]*Interval),
		spillSlot:     make(map[int]int),
		pos:           make(map[*cg.Instr]Pos),
	}
	st.rpo = dom.Analyze(f).RPO()
	st.blockIdx = make(map[int]int, len(st.rpo))
	for i, id := range st.rpo {
		st.blockIdx[id] = i
	}
	info, err := loop.Analyze(f)
	if err == nil {
		st.loopInfo = info
	}
	return st
}

func (st *state) loopNestDepth(blockID int) int {
	if st.loopInfo == nil {
		return 0
	}
	return st.loopInfo.NestDepth(blockID)
}

func (st *state) interval(def *cg.Instr) *Interval {
	iv, ok := st.intervals[def]
	if !ok {
		iv = &Interval{}
		st.intervals[def] = iv
	}
	return iv
}

// blocksRPO returns the function's blocks in reverse post-order.
func (st *state) blocksRPO() []*cg.BB {
	out := make([]*cg.BB, len(st.rpo))
	for i, id := range st.rpo {
		out[i] = st.f.Block(id)
	}
	return out
}

func registerVReg(st *state, in *cg.Instr) {
	if in.Reg < 0 {
		return
	}
	if _, ok := st.defOf[in.Reg]; ok {
		return
	}
	st.defOf[in.Reg] = in
	st.vregIndex[in.Reg] = len(st.indexVreg)
	st.indexVreg = append(st.indexVreg, in.Reg)
}

func collectVRegs(st *state) {
	for _, b := range st.f.Blocks {
		for _, in := range b.Phis {
			registerVReg(st, in)
		}
		for _, in := range b.Instr {
			registerVReg(st, in)
		}
	}
}
