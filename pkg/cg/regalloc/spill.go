package regalloc

import (
	"github.com/markuszzz/mycc/pkg/bitset"
	"github.com/markuszzz/mycc/pkg/cg"
)

// spillCost is spec.md §4.5.e's cost function: a loop-nest-weighted count of
// the def and every use.
func spillCost(st *state, def *cg.Instr) int {
	cost := 1 + 10*st.loopNestDepth(def.BB.ID)
	for _, u := range def.Uses {
		cost += 1 + 10*st.loopNestDepth(u.BB.ID)
	}
	return cost
}

// selectSpills is stage (e) (spec.md §4.5.e). It walks every block in RPO;
// at each instruction it repeatedly spills the cheapest live vreg (besides
// the instruction's own output) until the live count, plus any
// instruction-specific clobber demand, fits within max_regs.
func selectSpills(st *state) error {
	maxRegs := st.cfg.maxRegsOrDefault()
	st.nextSpillID = 1

	for _, b := range st.blocksRPO() {
		for _, in := range allInOrder(b) {
			p, ok := st.pos[in]
			if !ok {
				continue
			}
			demand := 0
			if in.Op == cg.OpCall {
				demand = 4
			}
			for {
				live := liveDefsAt(st, p)
				count := 0
				for _, d := range live {
					if d != in {
						count++
					}
				}
				if count+demand <= maxRegs {
					break
				}
				victim := pickVictim(st, live, in)
				if victim == nil {
					break
				}
				spillOne(st, victim)
			}
		}
	}

	unionSpillFamilies(st)
	assignSlots(st)
	return nil
}

func allInOrder(b *cg.BB) []*cg.Instr {
	out := make([]*cg.Instr, 0, len(b.Phis)+len(b.Instr))
	out = append(out, b.Phis...)
	out = append(out, b.Instr...)
	return out
}

func liveDefsAt(st *state, p Pos) []*cg.Instr {
	var out []*cg.Instr
	for def, iv := range st.intervals {
		if def.Reg >= 0 && iv.Covers(p) {
			out = append(out, def)
		}
	}
	return out
}

func pickVictim(st *state, live []*cg.Instr, current *cg.Instr) *cg.Instr {
	var best *cg.Instr
	bestCost := 0
	for _, d := range live {
		if d == current {
			continue
		}
		c := spillCost(st, d)
		if best == nil || c < bestCost || (c == bestCost && d.ID < best.ID) {
			best, bestCost = d, c
		}
	}
	return best
}

func spillOne(st *state, def *cg.Instr) {
	id := st.nextSpillID
	st.nextSpillID++
	def.SpillID = id

	// Snapshot def's uses before wiring the spill pseudo below: SetArgs
	// appends spillPseudo into def.Uses, and that entry must never be
	// handed to insertReload (it would reload def from a slot def hasn't
	// been stored to yet).
	users := append([]*cg.Instr(nil), def.Uses...)

	switch def.Op {
	case cg.OpPhi:
		st.interval(def).Ranges = nil
	default:
		p := st.pos[def]
		st.interval(def).Ranges = []Range{{From: p, To: bump(p)}}
		spillPseudo := st.f.NewInstr(cg.OpSpill, cg.CondAL, def.BB, false)
		spillPseudo.SpillID = id
		spillPseudo.SetArgs(cg.VReg(def))
		insertAfter(def.BB, def, spillPseudo)
		sp := bump(p)
		st.pos[spillPseudo] = sp
		st.interval(spillPseudo).Add(sp, bump(sp))
	}

	for _, user := range users {
		if user.Op == cg.OpPhi {
			continue // phi operands are rematerialized by stage (g)'s str/mov copies
		}
		insertReload(st, user, def, id)
	}
}

func insertReload(st *state, user, def *cg.Instr, spillID int) {
	reload := st.f.NewInstr(cg.OpReload, cg.CondAL, user.BB, true)
	reload.SpillID = spillID
	reload.SetArgs(cg.VReg(def))
	rewireUse(def, reload, user)
	insertBefore(user.BB, user, reload)

	up, ok := st.pos[user]
	if !ok {
		up = Pos{Block: 0, Idx: 0}
	}
	rp := Pos{Block: up.Block, Idx: up.Idx - 1}
	st.pos[reload] = rp
	st.interval(reload).Add(rp, bump(rp))
}

func rewireUse(oldDef, newDef, user *cg.Instr) {
	for i := range oldDef.Uses {
		if oldDef.Uses[i] == user {
			oldDef.Uses = append(oldDef.Uses[:i], oldDef.Uses[i+1:]...)
			break
		}
	}
	newDef.Uses = append(newDef.Uses, user)
	for i := 0; i < user.NArgs; i++ {
		if user.Args[i].Kind == cg.ArgVReg && user.Args[i].Def == oldDef {
			user.Args[i].Def = newDef
		}
	}
	for i, pa := range user.PhiArgs {
		if pa.Value == oldDef {
			user.PhiArgs[i].Value = newDef
		}
	}
}

func removeUseEdge(def, user *cg.Instr) {
	for i := range def.Uses {
		if def.Uses[i] == user {
			def.Uses = append(def.Uses[:i], def.Uses[i+1:]...)
			return
		}
	}
}

func insertAfter(b *cg.BB, after, in *cg.Instr) {
	for i, x := range b.Instr {
		if x == after {
			rest := append([]*cg.Instr{in}, b.Instr[i+1:]...)
			b.Instr = append(b.Instr[:i+1:i+1], rest...)
			return
		}
	}
	b.Instr = append(b.Instr, in)
}

// insertBefore inserts in immediately ahead of before's position in b.Instr.
// before == nil means "append at the end" (a before that is not found,
// which should not happen for a real target, inserts at the block's start)
// — used when placing a block-end parallel copy
// in a block with no trailing instruction of its own (a conditional/jump
// terminator, tracked out-of-band on BB, occupies no Instr slot).
func insertBefore(b *cg.BB, before, in *cg.Instr) {
	if before == nil {
		b.Instr = append(b.Instr, in)
		return
	}
	for i, x := range b.Instr {
		if x == before {
			rest := append([]*cg.Instr{in}, b.Instr[i:]...)
			b.Instr = append(b.Instr[:i:i], rest...)
			return
		}
	}
	b.Instr = append([]*cg.Instr{in}, b.Instr...)
}

// unionSpillFamilies merges a spilled phi's spill_id with the spill_id of
// each of its (also-spilled) lifted arguments: they share one logical
// memory location (spec.md §4.5.e).
func unionSpillFamilies(st *state) {
	st.spillFamily = bitset.NewDisjointSet(st.nextSpillID)
	for _, b := range st.f.Blocks {
		for _, phi := range b.Phis {
			if phi.SpillID == 0 {
				continue
			}
			for _, pa := range phi.PhiArgs {
				if pa.Value.SpillID != 0 {
					st.spillFamily.Union(phi.SpillID, pa.Value.SpillID)
				}
			}
		}
	}
}

func assignSlots(st *state) {
	seen := make(map[int]bool)
	for id := 1; id < st.nextSpillID; id++ {
		r := st.spillFamily.Find(id)
		if seen[r] {
			continue
		}
		seen[r] = true
		st.spillSlot[r] = st.nextSlot
		st.nextSlot++
	}
}

// slotFor returns the stack slot index for an instruction tagged with a
// spill_id (0 if untagged).
func (st *state) slotFor(spillID int) (int, bool) {
	if spillID == 0 {
		return 0, false
	}
	slot, ok := st.spillSlot[st.spillFamily.Find(spillID)]
	return slot, ok
}
