package ir

// Node is one SSA value: (op, type, bb, id) plus an op-specific payload.
// Node identity is the pointer itself — the SSA use-def graph is realized
// as direct pointer references rather than an indirection table, the way
// Go's GC lets it be done safely (SPEC_FULL.md §9, "cyclic graphs").
type Node struct {
	ID   int
	Op   Op
	Type Type
	BB   *BB

	// Args holds SSA operands in a fixed, op-dependent order: binop(lhs,
	// rhs), compare(lhs, rhs), trunc/sext/zext(src), load(addr), store(addr,
	// val), call(args...), ret(value) if non-void, br(cond) if conditional.
	// Phi uses PhiArgs instead (its arity isn't this-node-local; it is one
	// per CFG predecessor).
	Args []*Node

	// Uses is the reverse of Args: every node that references this one as
	// an operand or phi argument. Maintained incrementally by the
	// constructors and by ReplaceAllUsesWith / RemoveUse.
	Uses []*Node

	ConstVal uint64 // OpConst

	AllocaSize  int // OpAlloca
	AllocaAlign int // OpAlloca

	Symbol string // OpAddrOf target symbol, OpCall target function name

	ParamIdx int // OpGetParam

	PhiArgs []PhiArg // OpPhi

	SpillID int // allocator-owned; see pkg/cg/regalloc, unused on the IR side
}

// PhiArg is one incoming (value, predecessor-block) pair of a phi node.
type PhiArg struct {
	Value *Node
	Pred  *BB
}

// addUse records that user references def, either as a direct Arg or as a
// phi argument.
func addUse(def, user *Node) {
	if def == nil {
		return
	}
	def.Uses = append(def.Uses, user)
}

// HasUses reports whether n is referenced anywhere (as an Arg or PhiArg of
// some other node, or as the function's terminator/return value). A def
// with no uses is safe to remove (SPEC_FULL.md / spec.md §3.3 SSA
// invariant); the function tracks these in Func.Unused.
func (n *Node) HasUses() bool { return len(n.Uses) > 0 }

// RemoveUse drops one occurrence of user from def's use list (used when an
// operand is rewritten away, e.g. constant folding or phi-mem coalescing).
func RemoveUse(def, user *Node) {
	if def == nil {
		return
	}
	for i, u := range def.Uses {
		if u == user {
			def.Uses = append(def.Uses[:i], def.Uses[i+1:]...)
			return
		}
	}
}

// ReplaceAllUsesWith rewrites every Arg/PhiArg reference to old into new
// across the nodes that currently use old, and transplants old's Uses list
// onto new. Callers are responsible for removing old from its block once
// its Uses list (post-call) is empty.
func ReplaceAllUsesWith(old, new *Node) {
	for _, user := range append([]*Node(nil), old.Uses...) {
		for i, a := range user.Args {
			if a == old {
				user.Args[i] = new
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
