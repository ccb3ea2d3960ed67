package cg

// Arg is one instruction operand. Exactly one of Def/HReg/Imm/Sym is
// meaningful, selected by Kind. A VREG arg is an SSA edge realized as a
// direct pointer to the defining instruction (spec.md §3.3) — the
// instruction's own register identity lives on Def.Reg, so register
// allocation rewriting Def.Reg from a vreg id to a physical register
// automatically updates every use, with no separate renaming pass needed.
type Arg struct {
	Kind ArgKind
	Def  *Instr // ArgVReg: the defining instruction
	HReg int    // ArgHReg: physical register index
	Imm  int64  // ArgImm
	Sym  string // ArgSym

	// Offset is the byte displacement for a memory address operand
	// (load/store only); zero and unused otherwise.
	Offset int
}

// VReg builds a VREG argument referencing def.
func VReg(def *Instr) Arg { return Arg{Kind: ArgVReg, Def: def} }

// HRegArg builds a fixed physical-register argument, used for calling
// convention wiring where no SSA def backs the register reference (e.g.
// `sp`, `lr`).
func HRegArg(r int) Arg { return Arg{Kind: ArgHReg, HReg: r} }

// ImmArg builds an immediate argument.
func ImmArg(v int64) Arg { return Arg{Kind: ArgImm, Imm: v} }

// SymArg builds a symbol-literal argument.
func SymArg(s string) Arg { return Arg{Kind: ArgSym, Sym: s} }

// WithOffset returns a copy of a with a memory-address byte offset set.
func (a Arg) WithOffset(off int) Arg { a.Offset = off; return a }

// Instr is one target instruction: (op, cond, reg, args[5]) per spec.md
// §3.3. Reg >= 0 means this instruction defines a (virtual, then later
// physical) register; Reg == -1 means it has no output (e.g. a store, a
// call with no use, a predicated ret).
type Instr struct {
	ID   int
	Op   Op
	Cond CondCode
	Reg  int

	Args  [5]Arg
	NArgs int

	BB *BB

	// PhiArgs holds one (value, predecessor-block) pair per CFG
	// predecessor, used only when Op == OpPhi.
	PhiArgs []PhiArg

	// Uses is every instruction (or phi) that references this one via a
	// VREG Arg or PhiArg — the reverse of the SSA edges in Args/PhiArgs.
	Uses []*Instr

	// SpillID groups a spilled def with the spill/reload pseudos created
	// for it (stage (e), spill.md §4.5) so SSA deconstruction and slot
	// assignment can treat them as one logical value.
	SpillID int

	// pendingPlaceholder is true for a NewPlaceholder instruction whose
	// Op/Args have not yet been back-filled by Resolve (SPEC_FULL.md §4.8).
	pendingPlaceholder bool
}

// PhiArg is one incoming (value, predecessor-block) pair of a CG phi.
type PhiArg struct {
	Value *Instr
	Pred  *BB
}

// IsPending reports whether this instruction is a NewPlaceholder
// instruction still awaiting its real Op/Args from Resolve.
func (in *Instr) IsPending() bool { return in.pendingPlaceholder }

// DefinesReg reports whether in produces a register value.
func (in *Instr) DefinesReg() bool { return in.Reg >= 0 }

// SetArgs replaces in's argument list (up to 5) and updates use-def edges:
// removes in from the Uses list of whatever it previously referenced, and
// adds it to the Uses list of every new VREG argument.
func (in *Instr) SetArgs(args ...Arg) {
	in.clearArgUses()
	copy(in.Args[:], args)
	for i := len(args); i < len(in.Args); i++ {
		in.Args[i] = Arg{}
	}
	in.NArgs = len(args)
	for _, a := range args {
		if a.Kind == ArgVReg && a.Def != nil {
			a.Def.Uses = append(a.Def.Uses, in)
		}
	}
}

func (in *Instr) clearArgUses() {
	for i := 0; i < in.NArgs; i++ {
		a := in.Args[i]
		if a.Kind == ArgVReg && a.Def != nil {
			removeUse(a.Def, in)
		}
	}
}

func removeUse(def, user *Instr) {
	for i, u := range def.Uses {
		if u == user {
			def.Uses = append(def.Uses[:i], def.Uses[i+1:]...)
			return
		}
	}
}

// AddPhiArg appends one incoming (value, predecessor) pair.
func (in *Instr) AddPhiArg(val *Instr, pred *BB) {
	in.PhiArgs = append(in.PhiArgs, PhiArg{Value: val, Pred: pred})
	val.Uses = append(val.Uses, in)
}

// ReplaceAllUsesWith rewrites every reference to old (as a VREG Arg or
// PhiArg value) across old's current users to new, and transplants old's
// Uses list onto new. Used by phi-mem coalescing (stage d).
func ReplaceAllUsesWith(old, new *Instr) {
	for _, user := range append([]*Instr(nil), old.Uses...) {
		for i := 0; i < user.NArgs; i++ {
			if user.Args[i].Kind == ArgVReg && user.Args[i].Def == old {
				user.Args[i].Def = new
			}
		}
		for i, pa := range user.PhiArgs {
			if pa.Value == old {
				user.PhiArgs[i].Value = new
			}
		}
		new.Uses = append(new.Uses, user)
	}
	old.Uses = nil
}

// HasUses reports whether this instruction's result is referenced anywhere.
func (in *Instr) HasUses() bool { return len(in.Uses) > 0 }
