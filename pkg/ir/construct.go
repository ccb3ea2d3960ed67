package ir

import (
	"github.com/markuszzz/mycc/pkg/diag"
	"github.com/markuszzz/mycc/pkg/graph"
)

// This file is the constructor surface spec.md §3.2 requires: every
// invariant it lists ("phi args share phi's type", "arithmetic operands
// share type with result", ...) is checked here, at construction time, so
// an ill-formed node can never exist — the validation-failure diagnostics
// these return are exactly the ones SPEC_FULL.md §4.0/§7 routes to
// diag.ValidationFailure.

func (f *Func) newNode(bb *BB, op Op, t Type) *Node {
	n := &Node{ID: f.allocNodeID(), Op: op, Type: t, BB: bb}
	return n
}

func badType(op Op, msg string, args ...any) error {
	return diag.New(diag.ValidationFailure, "%s: "+msg, append([]any{op}, args...)...)
}

// NewConst appends an `op=const` node of type t holding val.
func (f *Func) NewConst(bb *BB, t Type, val uint64) (*Node, error) {
	if t == Void {
		return nil, badType(OpConst, "constant cannot be void")
	}
	n := f.newNode(bb, OpConst, t)
	n.ConstVal = val
	bb.Append(n)
	return n, nil
}

// NewUndef appends an `op=undef` node of type t.
func (f *Func) NewUndef(bb *BB, t Type) (*Node, error) {
	if t == Void {
		return nil, badType(OpUndef, "undef cannot be void")
	}
	n := f.newNode(bb, OpUndef, t)
	bb.Append(n)
	return n, nil
}

// NewBinOp appends an arithmetic/bitwise/shift node. Both operands and the
// result normally share lhs's type. add/sub additionally allow a pointer
// lhs with an integer rhs of the same width — address-plus-byte-offset
// arithmetic (array indexing, struct member access), the one pointer op the
// front end that used to sit on top of this IR relied on (a base address
// computed once via addr_of/alloca/getparam, then added to per element).
// The result in that case is a pointer, same as the base.
func (f *Func) NewBinOp(bb *BB, op Op, lhs, rhs *Node) (*Node, error) {
	if !op.IsArith() {
		return nil, badType(op, "not an arithmetic op")
	}
	if lhs.Type.IsPointer() {
		if op != OpAdd && op != OpSub {
			return nil, badType(op, "pointer operand only valid with add/sub, got %s", op)
		}
		if !rhs.Type.IsInteger() || rhs.Type.ByteWidth() != lhs.Type.ByteWidth() {
			return nil, badType(op, "pointer offset must be an integer of matching width, got %s", rhs.Type)
		}
		n := f.newNode(bb, op, lhs.Type)
		n.Args = []*Node{lhs, rhs}
		f.trackUse(n)
		bb.Append(n)
		return n, nil
	}
	if lhs.Type != rhs.Type {
		return nil, badType(op, "operand type mismatch: %s vs %s", lhs.Type, rhs.Type)
	}
	if !lhs.Type.IsInteger() {
		return nil, badType(op, "operands must be integer, got %s", lhs.Type)
	}
	n := f.newNode(bb, op, lhs.Type)
	n.Args = []*Node{lhs, rhs}
	f.trackUse(n)
	bb.Append(n)
	return n, nil
}

// NewCompare appends an icmp_* node; operands share a type, result is i1.
func (f *Func) NewCompare(bb *BB, op Op, lhs, rhs *Node) (*Node, error) {
	if !op.IsCompare() {
		return nil, badType(op, "not a compare op")
	}
	if lhs.Type != rhs.Type {
		return nil, badType(op, "operand type mismatch: %s vs %s", lhs.Type, rhs.Type)
	}
	n := f.newNode(bb, op, I1)
	n.Args = []*Node{lhs, rhs}
	f.trackUse(n)
	bb.Append(n)
	return n, nil
}

// NewConv appends a trunc/sext/zext node converting src to dstType. trunc
// must narrow; sext/zext must widen. Both types must be integer.
func (f *Func) NewConv(bb *BB, op Op, dstType Type, src *Node) (*Node, error) {
	if op != OpTrunc && op != OpSExt && op != OpZExt {
		return nil, badType(op, "not a conversion op")
	}
	if !dstType.IsInteger() || !src.Type.IsInteger() {
		return nil, badType(op, "conversion requires integer types, got %s -> %s", src.Type, dstType)
	}
	switch op {
	case OpTrunc:
		if dstType.ByteWidth() >= src.Type.ByteWidth() {
			return nil, badType(op, "trunc must narrow: %s -> %s", src.Type, dstType)
		}
	default: // sext, zext
		if dstType.ByteWidth() <= src.Type.ByteWidth() {
			return nil, badType(op, "sext/zext must widen: %s -> %s", src.Type, dstType)
		}
	}
	n := f.newNode(bb, op, dstType)
	n.Args = []*Node{src}
	f.trackUse(n)
	bb.Append(n)
	return n, nil
}

// NewLoad appends a load of type t from addr, which must be p32.
func (f *Func) NewLoad(bb *BB, t Type, addr *Node) (*Node, error) {
	if addr.Type != P32 {
		return nil, badType(OpLoad, "load address must be p32, got %s", addr.Type)
	}
	n := f.newNode(bb, OpLoad, t)
	n.Args = []*Node{addr}
	f.trackUse(n)
	bb.Append(n)
	return n, nil
}

// NewStore appends a void store of val to addr, which must be p32.
func (f *Func) NewStore(bb *BB, addr, val *Node) (*Node, error) {
	if addr.Type != P32 {
		return nil, badType(OpStore, "store address must be p32, got %s", addr.Type)
	}
	n := f.newNode(bb, OpStore, Void)
	n.Args = []*Node{addr, val}
	f.trackUse(n)
	bb.Append(n)
	return n, nil
}

// NewAddrOf appends a p32 node that resolves to the address of a data/func
// symbol.
func (f *Func) NewAddrOf(bb *BB, symbol string) (*Node, error) {
	n := f.newNode(bb, OpAddrOf, P32)
	n.Symbol = symbol
	bb.Append(n)
	return n, nil
}

// NewAlloca appends a p32 node reserving size bytes of frame storage at the
// given alignment.
func (f *Func) NewAlloca(bb *BB, size, align int) (*Node, error) {
	if size <= 0 {
		return nil, badType(OpAlloca, "alloca size must be positive, got %d", size)
	}
	if align <= 0 || align&(align-1) != 0 {
		return nil, badType(OpAlloca, "alloca align must be a positive power of two, got %d", align)
	}
	n := f.newNode(bb, OpAlloca, P32)
	n.AllocaSize = size
	n.AllocaAlign = align
	bb.Append(n)
	return n, nil
}

// NewCall appends a call node. paramTypes/variadic describe the callee's
// signature (nil paramTypes skips arity/type checking, e.g. for an
// extern-declared symbol with no known signature on the IR side).
func (f *Func) NewCall(bb *BB, retType Type, target string, args []*Node, paramTypes []Type, variadic bool) (*Node, error) {
	if paramTypes != nil {
		if variadic {
			if len(args) < len(paramTypes) {
				return nil, badType(OpCall, "call to %s: got %d args, need at least %d", target, len(args), len(paramTypes))
			}
		} else if len(args) != len(paramTypes) {
			return nil, badType(OpCall, "call to %s: got %d args, want %d", target, len(args), len(paramTypes))
		}
		for i, pt := range paramTypes {
			if args[i].Type != pt {
				return nil, badType(OpCall, "call to %s: arg %d type mismatch: %s vs %s", target, i, args[i].Type, pt)
			}
		}
	}
	n := f.newNode(bb, OpCall, retType)
	n.Symbol = target
	n.Args = append([]*Node(nil), args...)
	f.trackUse(n)
	bb.Append(n)
	return n, nil
}

// NewGetParam appends a node reading the idx'th parameter.
func (f *Func) NewGetParam(bb *BB, idx int) (*Node, error) {
	if idx < 0 || idx >= len(f.ParamTypes) {
		return nil, badType(OpGetParam, "parameter index %d out of range [0,%d)", idx, len(f.ParamTypes))
	}
	n := f.newNode(bb, OpGetParam, f.ParamTypes[idx])
	n.ParamIdx = idx
	bb.Append(n)
	return n, nil
}

// NewPhi appends an empty phi of type t to bb's phi list. Arguments are
// added afterward with AddPhiArg, once all predecessor values are known.
func (f *Func) NewPhi(bb *BB, t Type) (*Node, error) {
	if t == Void {
		return nil, badType(OpPhi, "phi cannot be void")
	}
	n := f.newNode(bb, OpPhi, t)
	bb.AppendPhi(n)
	return n, nil
}

// AddPhiArg adds one (value, predecessor-block) pair to phi. val's type
// must match the phi's type (spec.md §3.2 invariant).
func (f *Func) AddPhiArg(phi *Node, val *Node, pred *BB) error {
	if phi.Op != OpPhi {
		return badType(OpPhi, "AddPhiArg called on a non-phi node")
	}
	if val.Type != phi.Type {
		return badType(OpPhi, "phi arg type mismatch: %s vs %s", val.Type, phi.Type)
	}
	phi.PhiArgs = append(phi.PhiArgs, PhiArg{Value: val, Pred: pred})
	addUse(val, phi)
	return nil
}

// SetBranch makes bb end in a conditional branch on cond (an i1-typed
// value, normally an icmp_*), with trueTarget taken when cond is nonzero.
// The CFG successor order is [trueTarget, falseTarget] — instruction
// selection and branch predication rely on this ordering (spec.md §4.4).
func (f *Func) SetBranch(bb *BB, cond *Node, trueTarget, falseTarget *BB) error {
	if cond.Type != I1 {
		return badType(OpBr, "branch condition must be i1, got %s", cond.Type)
	}
	term := f.newNode(bb, OpTerm, Void)
	term.Args = []*Node{cond}
	f.trackUse(term)
	bb.TermKind = TermBranch
	bb.Term = term
	f.CFG.AddEdge(graph.NodeID(bb.ID), graph.NodeID(trueTarget.ID))
	f.CFG.AddEdge(graph.NodeID(bb.ID), graph.NodeID(falseTarget.ID))
	return nil
}

// SetJump makes bb end in an unconditional branch to target.
func (f *Func) SetJump(bb *BB, target *BB) error {
	term := f.newNode(bb, OpTerm, Void)
	bb.TermKind = TermBranch
	bb.Term = term
	f.CFG.AddEdge(graph.NodeID(bb.ID), graph.NodeID(target.ID))
	return nil
}

// SetReturn makes bb the function's return point with value val (nil for a
// void return). val's type must match the function's declared return type.
func (f *Func) SetReturn(bb *BB, val *Node) error {
	if val == nil {
		if f.RetType != Void {
			return badType(OpRet, "missing return value for non-void function")
		}
	} else if val.Type != f.RetType {
		return badType(OpRet, "return type mismatch: %s vs %s", val.Type, f.RetType)
	}
	term := f.newNode(bb, OpTerm, Void)
	if val != nil {
		term.Args = []*Node{val}
		f.trackUse(term)
	}
	bb.TermKind = TermReturn
	bb.Term = term
	return nil
}
