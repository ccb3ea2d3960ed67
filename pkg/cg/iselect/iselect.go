// Package iselect lowers machine-independent SSA IR into target-instruction
// SSA CG IR, one tile per IR op, folding small constants into immediate
// operands where the target allows it (spec.md §4.4).
package iselect

import (
	"github.com/markuszzz/mycc/pkg/cg"
	"github.com/markuszzz/mycc/pkg/diag"
	"github.com/markuszzz/mycc/pkg/dom"
	"github.com/markuszzz/mycc/pkg/ir"
)

// immFoldMax is the largest constant value that folds directly into an
// operand-2 immediate slot (spec.md §4.4: "const with value <= 0xFF").
const immFoldMax = 0xFF

// Lower translates every function and data symbol of tu into a cg.TU.
func Lower(tu *ir.TU) (*cg.TU, error) {
	out := cg.NewTU()
	for _, d := range tu.Data {
		out.AddData(&cg.Data{Name: d.Name, Size: d.Size, Align: d.Align, Init: d.Init})
	}
	for _, f := range tu.Funcs {
		diag.Pass("iselect", f.Name, nil)
		cf, err := lowerFunc(out, f)
		if err != nil {
			return nil, err
		}
		out.AddFunc(cf)
	}
	return out, nil
}

type ctx struct {
	f        *ir.Func
	cf       *cg.Func
	blockMap map[int]*cg.BB
	valueMap map[int]*cg.Instr
	allocaOff map[int]int
}

func lowerFunc(outTU *cg.TU, f *ir.Func) (*cg.Func, error) {
	cf := cg.NewFunc(outTU, f.Name)
	c := &ctx{
		f:         f,
		cf:        cf,
		blockMap:  make(map[int]*cg.BB),
		valueMap:  make(map[int]*cg.Instr),
		allocaOff: make(map[int]int),
	}

	for _, b := range f.Blocks {
		cb := cf.NewBlock()
		c.blockMap[b.ID] = cb
		if b == f.Exit {
			cf.MarkExit(cb)
		}
	}

	frame := 0
	for _, b := range f.Blocks {
		for _, n := range b.Nodes {
			if n.Op != ir.OpAlloca {
				continue
			}
			frame = alignUp(frame, n.AllocaAlign)
			c.allocaOff[n.ID] = frame
			frame += n.AllocaSize
		}
	}
	cf.FrameSize = frame

	order := dom.Analyze(f).RPO()
	for _, bid := range order {
		b := f.Block(bid)
		cb := c.blockMap[bid]
		if err := c.lowerBlock(b, cb); err != nil {
			return nil, err
		}
	}

	for _, b := range f.Blocks {
		cb := c.blockMap[b.ID]
		for i, phi := range b.Phis {
			cphi := cb.Phis[i]
			for _, pa := range phi.PhiArgs {
				val := c.materialize(pa.Value)
				cphi.AddPhiArg(val, c.blockMap[pa.Pred.ID])
			}
		}
	}

	return cf, nil
}

func alignUp(v, align int) int {
	if align <= 1 {
		return v
	}
	return (v + align - 1) / align * align
}

func (c *ctx) lowerBlock(b *ir.BB, cb *cg.BB) error {
	for _, phi := range b.Phis {
		in := c.cf.NewInstr(cg.OpPhi, cg.CondAL, cb, true)
		cb.AppendPhi(in)
		c.valueMap[phi.ID] = in
	}
	for _, n := range b.Nodes {
		if err := c.lowerNode(cb, n); err != nil {
			return err
		}
	}
	return c.lowerTerm(b, cb)
}

var binopMap = map[ir.Op]cg.Op{
	ir.OpAdd: cg.OpAdd, ir.OpSub: cg.OpSub, ir.OpMul: cg.OpMul,
	ir.OpAnd: cg.OpAnd, ir.OpOr: cg.OpOrr, ir.OpXor: cg.OpEor,
	ir.OpShl: cg.OpLsl, ir.OpLShr: cg.OpLsr, ir.OpAShr: cg.OpAsr,
}

var commutative = map[ir.Op]bool{
	ir.OpAdd: true, ir.OpMul: true, ir.OpAnd: true, ir.OpOr: true, ir.OpXor: true,
}

func isSmallConst(n *ir.Node) bool {
	return n.Op == ir.OpConst && n.ConstVal <= immFoldMax
}

func (c *ctx) lowerNode(cb *cg.BB, n *ir.Node) error {
	switch {
	case n.Op == ir.OpConst || n.Op == ir.OpUndef:
		return nil // materialized lazily at first use
	case n.Op == ir.OpAddrOf:
		in := c.cf.NewInstr(cg.OpMov, cg.CondAL, cb, true)
		in.SetArgs(cg.SymArg(n.Symbol))
		cb.Append(in)
		c.valueMap[n.ID] = in
		return nil
	case n.Op == ir.OpAlloca:
		off := c.allocaOff[n.ID]
		var in *cg.Instr
		if off == 0 {
			in = c.cf.NewInstr(cg.OpMov, cg.CondAL, cb, true)
			in.SetArgs(cg.HRegArg(cg.RegSP))
		} else {
			in = c.cf.NewInstr(cg.OpAdd, cg.CondAL, cb, true)
			in.SetArgs(cg.HRegArg(cg.RegSP), cg.ImmArg(int64(off)))
		}
		cb.Append(in)
		c.valueMap[n.ID] = in
		return nil
	case n.Op == ir.OpGetParam:
		in := c.cf.NewInstr(cg.OpArg, cg.CondAL, cb, true)
		in.SetArgs(cg.HRegArg(n.ParamIdx))
		cb.Append(in)
		c.valueMap[n.ID] = in
		c.cf.Args = append(c.cf.Args, in)
		return nil
	case n.Op == ir.OpLoad:
		addr := c.materialize(n.Args[0])
		in := c.cf.NewInstr(loadOpForWidth(n.Type.ByteWidth()), cg.CondAL, cb, true)
		in.SetArgs(cg.VReg(addr).WithOffset(0))
		cb.Append(in)
		c.valueMap[n.ID] = in
		return nil
	case n.Op == ir.OpStore:
		addr := c.materialize(n.Args[0])
		val := c.operand(n.Args[1], false)
		in := c.cf.NewInstr(storeOpForWidth(n.Args[1].Type.ByteWidth()), cg.CondAL, cb, false)
		in.SetArgs(cg.VReg(addr).WithOffset(0), val)
		cb.Append(in)
		return nil
	case n.Op == ir.OpCall:
		return c.lowerCall(cb, n)
	case n.Op == ir.OpTrunc:
		return c.lowerConv(cb, n, uxtOpForWidth(n.Type.ByteWidth()))
	case n.Op == ir.OpZExt:
		return c.lowerConv(cb, n, uxtOpForWidth(n.Args[0].Type.ByteWidth()))
	case n.Op == ir.OpSExt:
		return c.lowerConv(cb, n, sxtOpForWidth(n.Args[0].Type.ByteWidth()))
	case n.Op.IsArith():
		return c.lowerArith(cb, n)
	case n.Op.IsCompare():
		return nil // only meaningful as a terminator condition; see lowerTerm
	default:
		return diag.New(diag.Unsupported, "iselect: unhandled IR op %s", n.Op)
	}
}

func (c *ctx) lowerConv(cb *cg.BB, n *ir.Node, op cg.Op) error {
	if op == cg.OpInvalid {
		return diag.New(diag.Unsupported, "iselect: no extend/truncate tile for width %d", n.Args[0].Type.ByteWidth())
	}
	in := c.cf.NewInstr(op, cg.CondAL, cb, true)
	in.SetArgs(c.operand(n.Args[0], false))
	cb.Append(in)
	c.valueMap[n.ID] = in
	return nil
}

func (c *ctx) lowerArith(cb *cg.BB, n *ir.Node) error {
	op, ok := binopMap[n.Op]
	if !ok {
		return diag.New(diag.Unsupported, "iselect: no tile for arithmetic op %s (ISA has no divide/remainder)", n.Op)
	}
	lhsNode, rhsNode := n.Args[0], n.Args[1]
	if commutative[n.Op] && isSmallConst(lhsNode) && !isSmallConst(rhsNode) {
		lhsNode, rhsNode = rhsNode, lhsNode
	}
	lhs := c.operand(lhsNode, false)
	rhs := c.operand(rhsNode, true)
	in := c.cf.NewInstr(op, cg.CondAL, cb, true)
	in.SetArgs(lhs, rhs)
	cb.Append(in)
	c.valueMap[n.ID] = in
	return nil
}

func (c *ctx) lowerCall(cb *cg.BB, n *ir.Node) error {
	if len(n.Args) > 4 {
		return diag.New(diag.Unsupported, "iselect: call to %s has %d args, max 4 supported", n.Symbol, len(n.Args))
	}
	full := make([]cg.Arg, 0, len(n.Args)+1)
	full = append(full, cg.SymArg(n.Symbol))
	for _, a := range n.Args {
		full = append(full, c.operand(a, false))
	}
	defines := n.Type != ir.Void && n.HasUses()
	in := c.cf.NewInstr(cg.OpCall, cg.CondAL, cb, defines)
	in.SetArgs(full...)
	cb.Append(in)
	if defines {
		c.valueMap[n.ID] = in
	}
	return nil
}

// operand lowers an IR value for use as an instruction operand. When
// allowImmFold is set and n is a small constant, it folds directly into an
// immediate with no instruction emitted (spec.md §4.4); otherwise it
// materializes (possibly lazily creating) the defining instruction.
func (c *ctx) operand(n *ir.Node, allowImmFold bool) cg.Arg {
	if allowImmFold && isSmallConst(n) {
		return cg.ImmArg(int64(n.ConstVal))
	}
	return cg.VReg(c.materialize(n))
}

func (c *ctx) materialize(n *ir.Node) *cg.Instr {
	if in, ok := c.valueMap[n.ID]; ok {
		return in
	}
	cb := c.blockMap[n.BB.ID]
	var in *cg.Instr
	switch n.Op {
	case ir.OpConst:
		in = c.cf.NewInstr(cg.OpMov, cg.CondAL, cb, true)
		in.SetArgs(cg.ImmArg(int64(n.ConstVal)))
	case ir.OpUndef:
		in = c.cf.NewInstr(cg.OpUndef, cg.CondAL, cb, true)
	default:
		diag.Bugf("iselect: node %%%d (%s) referenced before being lowered", n.ID, n.Op)
	}
	cb.Append(in)
	c.valueMap[n.ID] = in
	return in
}

func condForCompare(op ir.Op) (cg.CondCode, bool) {
	switch op {
	case ir.OpICmpEQ:
		return cg.CondEQ, true
	case ir.OpICmpNE:
		return cg.CondNE, true
	case ir.OpICmpSLT:
		return cg.CondLT, true
	case ir.OpICmpSLE:
		return cg.CondLE, true
	case ir.OpICmpSGT:
		return cg.CondGT, true
	case ir.OpICmpSGE:
		return cg.CondGE, true
	default:
		return cg.CondAL, false
	}
}

func (c *ctx) isNextBlock(b *ir.BB, targetID int) bool {
	for i, bb := range c.f.Blocks {
		if bb.ID == b.ID {
			return i+1 < len(c.f.Blocks) && c.f.Blocks[i+1].ID == targetID
		}
	}
	return false
}

func (c *ctx) lowerTerm(b *ir.BB, cb *cg.BB) error {
	switch b.TermKind {
	case ir.TermReturn:
		in := c.cf.NewInstr(cg.OpRet, cg.CondAL, cb, false)
		if b.Term.Args != nil {
			in.SetArgs(cg.VReg(c.materialize(b.Term.Args[0])))
		}
		cb.Append(in)
		return nil
	case ir.TermBranch:
		succs := c.f.Succs(b.ID)
		if b.Term.Args == nil {
			c.cf.SetJump(cb, c.blockMap[succs[0]])
			return nil
		}
		cmpNode := b.Term.Args[0]
		if !cmpNode.Op.IsCompare() {
			return diag.New(diag.Unsupported, "iselect: branch condition must be an icmp, got %s", cmpNode.Op)
		}
		cond, ok := condForCompare(cmpNode.Op)
		if !ok {
			return diag.New(diag.Unsupported, "iselect: unsigned compare %s has no representable condition code", cmpNode.Op)
		}
		lhs := c.operand(cmpNode.Args[0], false)
		rhs := c.operand(cmpNode.Args[1], true)
		cmp := c.cf.NewInstr(cg.OpCmp, cg.CondAL, cb, false)
		cmp.SetArgs(lhs, rhs)
		cb.Append(cmp)

		trueID, falseID := succs[0], succs[1]
		trueBB, falseBB := c.blockMap[trueID], c.blockMap[falseID]
		if c.isNextBlock(b, trueID) {
			cond = cond.Invert()
			trueBB, falseBB = falseBB, trueBB
		}
		c.cf.SetBranch(cb, cond, trueBB, falseBB)
		return nil
	default:
		return diag.New(diag.Internal, "iselect: block %d missing terminator", b.ID)
	}
}

func loadOpForWidth(w int) cg.Op {
	switch w {
	case 1:
		return cg.OpLdrb
	case 2:
		return cg.OpLdrh
	default:
		return cg.OpLdr
	}
}

func storeOpForWidth(w int) cg.Op {
	switch w {
	case 1:
		return cg.OpStrb
	case 2:
		return cg.OpStrh
	default:
		return cg.OpStr
	}
}

func uxtOpForWidth(w int) cg.Op {
	switch w {
	case 1:
		return cg.OpUxtb
	case 2:
		return cg.OpUxth
	default:
		return cg.OpInvalid
	}
}

func sxtOpForWidth(w int) cg.Op {
	switch w {
	case 1:
		return cg.OpSxtb
	case 2:
		return cg.OpSxth
	default:
		return cg.OpInvalid
	}
}
