package regalloc

import "github.com/markuszzz/mycc/pkg/cg"

// assignColours is stage (f) (spec.md §4.5.f). It first reserves the
// ABI-scratch registers r0..r3 across every call's instant, so the scan
// below never parks some unrelated value there across a call boundary,
// then walks blocks in RPO, phis before regulars in each block, picking
// for every def the highest-preference physical register whose reserved
// range doesn't intersect the def's own live range.
func assignColours(st *state) {
	reserveCallClobbers(st)
	for _, b := range st.blocksRPO() {
		for _, phi := range b.Phis {
			colourOne(st, phi)
		}
		for _, in := range b.Instr {
			colourOne(st, in)
		}
	}
}

func reserveCallClobbers(st *state) {
	max := st.cfg.maxRegsOrDefault()
	for _, b := range st.f.Blocks {
		for _, in := range b.Instr {
			if in.Op != cg.OpCall {
				continue
			}
			p, ok := st.pos[in]
			if !ok {
				continue
			}
			// [p-1, p): blocks a value live *across* the call from being
			// coloured r0..r3, without excluding the call's own result
			// (whose interval starts exactly at p).
			before := Pos{Block: p.Block, Idx: p.Idx - 1}
			for r := 0; r < 4 && r < max; r++ {
				reserveRange(st, r, Range{From: before, To: p})
			}
		}
	}
}

func reserveRange(st *state, r int, rng Range) {
	h, ok := st.hregIntervals[r]
	if !ok {
		h = &Interval{}
		st.hregIntervals[r] = h
	}
	h.Add(rng.From, rng.To)
}

func colourOne(st *state, def *cg.Instr) {
	if def.Reg < 0 {
		return
	}
	iv := st.intervals[def]
	if iv == nil || iv.IsEmpty() {
		return // a spilled phi's dropped range (stage e): nothing to colour
	}
	max := st.cfg.maxRegsOrDefault()
	best, bestScore := -1, -1
	for r := 0; r < max; r++ {
		if h, ok := st.hregIntervals[r]; ok && h.Intersects(iv) {
			continue
		}
		score := preference(st, def, r)
		if score > bestScore {
			best, bestScore = r, score
		}
	}
	if best < 0 {
		return // no free register; a stage (e) undersight, left uncoloured
	}
	def.Reg = best
	reserveForDef(st, best, iv)
}

func reserveForDef(st *state, r int, iv *Interval) {
	h, ok := st.hregIntervals[r]
	if !ok {
		h = &Interval{}
		st.hregIntervals[r] = h
	}
	for _, rng := range iv.Ranges {
		h.Add(rng.From, rng.To)
	}
}

// preference implements spec.md §4.5.f's scoring: +1 for each of a
// pre-coloured def (an `arg` pseudo wants its parameter register, a `call`
// result wants r0), each already-coloured phi argument agreeing with r,
// and each use of def where the consumer is itself a call expecting def in
// argument position r.
func preference(st *state, def *cg.Instr, r int) int {
	score := 0
	switch def.Op {
	case cg.OpArg:
		if argIndex(st, def) == r {
			score++
		}
	case cg.OpCall:
		if r == 0 {
			score++
		}
	case cg.OpPhi:
		for _, pa := range def.PhiArgs {
			if pa.Value != nil && pa.Value.Reg == r && pa.Value.Reg < cg.NumHRegs {
				score++
			}
		}
	}
	for _, user := range def.Uses {
		switch user.Op {
		case cg.OpCall:
			if pos := callArgPosition(user, def); pos == r {
				score++
			}
		case cg.OpMov, cg.OpPhi:
			// Phis come before regulars in each block and blocks are
			// walked in RPO, so a consumer already visited by the time
			// we score def has its real colour in user.Reg.
			if user.Reg == r {
				score++
			}
		}
	}
	return score
}

func argIndex(st *state, def *cg.Instr) int {
	for i, a := range st.f.Args {
		if a == def {
			return i
		}
	}
	return -1
}

// callArgPosition returns the ABI register index (0-based) def would land
// in as one of call's arguments, or -1. Args[0] is the callee symbol, so
// actual arguments start at Args[1].
func callArgPosition(call, def *cg.Instr) int {
	last := call.NArgs
	if last > 5 {
		last = 5
	}
	for i := 1; i < last; i++ {
		a := call.Args[i]
		if a.Kind == cg.ArgVReg && a.Def == def {
			return i - 1
		}
	}
	return -1
}
