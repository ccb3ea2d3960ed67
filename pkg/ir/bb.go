package ir

// TermKind classifies a block's terminator.
type TermKind int

const (
	TermBranch TermKind = iota
	TermReturn
)

func (k TermKind) String() string {
	if k == TermReturn {
		return "ret"
	}
	return "br"
}

// BB is a basic block: phi nodes (always first), then regular nodes in
// program order, then a terminator. CFG edges live in Func.CFG, keyed by
// BB.ID, not on the block itself — this keeps the predecessor/successor
// lists canonical in one place (spec.md §3.1's graph substrate) instead of
// duplicated bookkeeping on every block.
type BB struct {
	ID   int
	Func *Func

	Phis  []*Node
	Nodes []*Node

	TermKind TermKind
	// Term is the sentinel terminator node (Op = OpTerm). Its single Arg is
	// the branch condition (an icmp_*, for a conditional branch) or the
	// return value, or nil for an unconditional branch or a void return.
	Term *Node

	IsExit bool
}

// AppendPhi appends a phi node to the block's phi list. Callers build the
// node via Func.NewPhi, which already set n.BB = this block.
func (b *BB) AppendPhi(n *Node) { b.Phis = append(b.Phis, n) }

// Append appends a regular (non-phi) node to the block.
func (b *BB) Append(n *Node) { b.Nodes = append(b.Nodes, n) }

// AllNodes returns phis followed by regular nodes, the canonical walk order
// instruction selection uses (spec.md §4.4: "nodes in reverse order" means
// reverse of this sequence).
func (b *BB) AllNodes() []*Node {
	out := make([]*Node, 0, len(b.Phis)+len(b.Nodes))
	out = append(out, b.Phis...)
	out = append(out, b.Nodes...)
	return out
}

// RemoveNode deletes n from the block's regular-node list. It does not
// touch n's Uses/Args bookkeeping; callers must already have detached n
// from every consumer (see ReplaceAllUsesWith) before calling this.
func (b *BB) RemoveNode(n *Node) {
	for i, x := range b.Nodes {
		if x == n {
			b.Nodes = append(b.Nodes[:i], b.Nodes[i+1:]...)
			return
		}
	}
}
