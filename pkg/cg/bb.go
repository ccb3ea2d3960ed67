package cg

// BB is one target basic block: phi instructions first, then regular
// instructions. Conditional branches carry explicit true/false targets and
// a condition code; unconditional branches have a single CFG successor
// (tracked in Func.CFG) and no targets set here (spec.md §3.3).
type BB struct {
	ID   int
	Func *Func

	Phis  []*Instr
	Instr []*Instr

	// TrueTarget/FalseTarget are set only for a conditional branch; both
	// nil means the block's single CFG successor is an unconditional jump,
	// and a nil pair with no CFG successor means this block returns.
	TrueTarget  *BB
	FalseTarget *BB
	Cond        CondCode

	IsExit bool
}

// AppendPhi appends a phi instruction.
func (b *BB) AppendPhi(in *Instr) { b.Phis = append(b.Phis, in) }

// Append appends a regular instruction.
func (b *BB) Append(in *Instr) { b.Instr = append(b.Instr, in) }

// AllInstrs returns phis followed by regular instructions, in emission
// order.
func (b *BB) AllInstrs() []*Instr {
	out := make([]*Instr, 0, len(b.Phis)+len(b.Instr))
	out = append(out, b.Phis...)
	out = append(out, b.Instr...)
	return out
}

// RemoveInstr deletes in from the block's regular-instruction list.
func (b *BB) RemoveInstr(in *Instr) {
	for i, x := range b.Instr {
		if x == in {
			b.Instr = append(b.Instr[:i], b.Instr[i+1:]...)
			return
		}
	}
}

// RemovePhi deletes in from the block's phi list.
func (b *BB) RemovePhi(in *Instr) {
	for i, x := range b.Phis {
		if x == in {
			b.Phis = append(b.Phis[:i], b.Phis[i+1:]...)
			return
		}
	}
}

// IsConditional reports whether b ends in a conditional branch.
func (b *BB) IsConditional() bool { return b.TrueTarget != nil && b.FalseTarget != nil }
