package cg

import "github.com/markuszzz/mycc/pkg/graph"

// Func is one target function: signature, entry/exit blocks, frame size,
// clobber mask and the allocator's scratch, per spec.md §3.3/§3.5.
type Func struct {
	TU   *TU
	Name string

	// Args holds the `arg` pseudo-instructions inserted in the entry block
	// by instruction selection, one per used parameter, index i meaning
	// "this value arrives in r{i}" before register allocation reassigns it
	// (spec.md §4.4 "getparam").
	Args []*Instr

	FrameSize int
	// Clobber is the callee-saved register bitset (bit i set means r{i} is
	// written somewhere in the function and must be saved/restored in the
	// prologue/epilogue), computed by regalloc stage (i) (spec.md §4.5).
	Clobber uint32

	Blocks []*BB
	Entry  *BB
	Exit   *BB

	CFG *graph.Ctx

	nextInstrID int
	nextVReg    int

	// RA is the register allocator's scratch (RPO order, phi-web
	// union-find, live intervals, spill-family union-find, slot table).
	// Populated and consumed entirely within pkg/cg/regalloc.Allocate and
	// set back to nil after stage (i) cleanup (SPEC_FULL.md §4.9) — nothing
	// outside the allocator may assume it is non-nil.
	RA any
}

// NewFunc creates an empty function.
func NewFunc(tu *TU, name string) *Func {
	return &Func{TU: tu, Name: name, CFG: graph.NewCtx(nil), nextVReg: FirstVReg}
}

// NewBlock allocates a fresh block wired into the CFG. The first block
// created becomes Entry.
func (f *Func) NewBlock() *BB {
	gid := f.CFG.NewNode()
	b := &BB{ID: int(gid), Func: f}
	f.Blocks = append(f.Blocks, b)
	if f.Entry == nil {
		f.Entry = b
	}
	return b
}

// MarkExit designates b as (one of) the function's return blocks.
func (f *Func) MarkExit(b *BB) {
	b.IsExit = true
	f.Exit = b
}

// NewVReg allocates a fresh virtual register id.
func (f *Func) NewVReg() int {
	v := f.nextVReg
	f.nextVReg++
	return v
}

// NumVRegsAllocated returns how many vreg ids have been handed out —
// regalloc sizes its per-vreg tables (live intervals, union-find) from
// this.
func (f *Func) NumVRegsAllocated() int { return f.nextVReg - FirstVReg }

func (f *Func) allocInstrID() int {
	id := f.nextInstrID
	f.nextInstrID++
	return id
}

// NewInstr allocates an instruction with a fresh id, appended to neither
// block nor any def-bookkeeping — callers place it via BB.Append/AppendPhi.
// defines selects whether this instruction produces a value (Reg is set to
// a fresh vreg) or not (Reg = -1).
func (f *Func) NewInstr(op Op, cond CondCode, bb *BB, defines bool) *Instr {
	reg := -1
	if defines {
		reg = f.NewVReg()
	}
	return &Instr{ID: f.allocInstrID(), Op: op, Cond: cond, Reg: reg, BB: bb}
}

// NewPlaceholder allocates a pending instruction (SPEC_FULL.md §4.8) with a
// stable identity and Op = OpInvalid; Resolve back-fills its Op/Cond/Args.
// Instruction selection does not use it: it lowers in dominator order, so
// each operand's def already exists when it is referenced.
func (f *Func) NewPlaceholder(bb *BB, defines bool) *Instr {
	in := f.NewInstr(OpInvalid, CondAL, bb, defines)
	in.pendingPlaceholder = true
	return in
}

// Resolve back-fills a placeholder's Op/Cond/Args once its tile runs.
func (in *Instr) Resolve(op Op, cond CondCode, args ...Arg) {
	in.Op = op
	in.Cond = cond
	in.SetArgs(args...)
	in.pendingPlaceholder = false
}

// Graph adapter methods so *Func serves directly as a loop.Graph/dom.Graph,
// matching pkg/ir.Func's approach.
func (f *Func) NumNodes() int { return len(f.Blocks) }
func (f *Func) Root() int     { return f.Entry.ID }

func (f *Func) Succs(n int) []int { return idList(f.CFG.Succs(graph.NodeID(n))) }
func (f *Func) Preds(n int) []int { return idList(f.CFG.Preds(graph.NodeID(n))) }

func idList(ids []graph.NodeID) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

// Block looks up a block by its graph node id.
func (f *Func) Block(id int) *BB {
	for _, b := range f.Blocks {
		if b.ID == id {
			return b
		}
	}
	return nil
}

// SetJump makes bb end in an unconditional branch to target.
func (f *Func) SetJump(bb, target *BB) {
	bb.TrueTarget, bb.FalseTarget = nil, nil
	f.CFG.AddEdge(graph.NodeID(bb.ID), graph.NodeID(target.ID))
}

// SetBranch makes bb end in a conditional branch: trueTarget when cond
// holds, falseTarget otherwise. CFG successor order is [trueTarget,
// falseTarget], mirroring pkg/ir's convention.
func (f *Func) SetBranch(bb *BB, cond CondCode, trueTarget, falseTarget *BB) {
	bb.Cond = cond
	bb.TrueTarget = trueTarget
	bb.FalseTarget = falseTarget
	f.CFG.AddEdge(graph.NodeID(bb.ID), graph.NodeID(trueTarget.ID))
	f.CFG.AddEdge(graph.NodeID(bb.ID), graph.NodeID(falseTarget.ID))
}
