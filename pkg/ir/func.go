package ir

import "github.com/markuszzz/mycc/pkg/graph"

// Func is one function: signature, entry/exit blocks, a CFG graph context
// keyed by BB.ID, and the list of dead (unused) SSA defs spec.md §3.2 asks
// every func to track.
type Func struct {
	TU         *TU
	Name       string
	RetType    Type
	ParamTypes []Type
	Variadic   bool

	Blocks []*BB
	Entry  *BB
	Exit   *BB

	// CFG is the directed graph of blocks, node ids equal to BB.ID. Built
	// with pkg/graph so pkg/dom and pkg/loop operate over it through the
	// same Graph adapter every other CFG client uses.
	CFG *graph.Ctx

	nextNodeID int

	// Unused holds every SSA def with zero uses, refreshed on demand by
	// RecomputeUnused. Removing a def with uses is unsafe; removing one
	// from this list is always safe (spec.md §3.2).
	Unused []*Node
}

// NewFunc creates an empty function signature with no blocks yet.
func NewFunc(tu *TU, name string, retType Type, paramTypes []Type, variadic bool) *Func {
	f := &Func{
		TU:         tu,
		Name:       name,
		RetType:    retType,
		ParamTypes: append([]Type(nil), paramTypes...),
		Variadic:   variadic,
		CFG:        graph.NewCtx(nil),
	}
	return f
}

// NewBlock allocates a fresh basic block, wired into the CFG graph context.
// The first block created becomes Entry.
func (f *Func) NewBlock() *BB {
	gid := f.CFG.NewNode()
	b := &BB{ID: int(gid), Func: f}
	f.Blocks = append(f.Blocks, b)
	if f.Entry == nil {
		f.Entry = b
	}
	return b
}

// MarkExit designates b as the function's exit block (spec.md §3.2: "entry
// /exit ir_bb").
func (f *Func) MarkExit(b *BB) {
	b.IsExit = true
	f.Exit = b
}

func (f *Func) allocNodeID() int {
	id := f.nextNodeID
	f.nextNodeID++
	return id
}

func (f *Func) trackUse(n *Node) {
	for _, a := range n.Args {
		addUse(a, n)
	}
	for _, pa := range n.PhiArgs {
		addUse(pa.Value, n)
	}
}

// RecomputeUnused rescans every block and refreshes Unused with the defs
// that currently have zero uses. Uses change as a function is built and
// transformed (phi args added after the def, coalescing dropping a use), so
// this is computed on demand rather than maintained incrementally.
func (f *Func) RecomputeUnused() {
	f.Unused = f.Unused[:0]
	for _, b := range f.Blocks {
		for _, n := range b.Phis {
			if n.Type != Void && !n.HasUses() {
				f.Unused = append(f.Unused, n)
			}
		}
		for _, n := range b.Nodes {
			if n.Type != Void && !n.HasUses() {
				f.Unused = append(f.Unused, n)
			}
		}
	}
}

// NumNodes, Root, Succs and Preds let *Func serve directly as a
// loop.Graph / dom.Graph (both share this minimal shape), so analyses run
// straight over the function's CFG without an adapter type.
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
