package ir

import (
	"fmt"
	"strings"
)

// Print renders a TU as human-readable debug text for --dump-ir /
// --dump-all, the way the teacher's pkg/inst.Catalog.Disassemble builds a
// mnemonic string incrementally with a strings.Builder rather than
// fmt.Sprintf-per-field.
func (tu *TU) Print() string {
	var b strings.Builder
	for _, d := range tu.Data {
		fmt.Fprintf(&b, "data @%s = size(%d), align(%d)", d.Name, d.Size, d.Align)
		if d.Init != nil {
			b.WriteString(", init(")
			for i, by := range d.Init {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "0x%02X", by)
			}
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	for _, f := range tu.Funcs {
		f.print(&b)
	}
	return b.String()
}

func (f *Func) print(b *strings.Builder) {
	params := make([]string, len(f.ParamTypes))
	for i, t := range f.ParamTypes {
		params[i] = t.String()
	}
	variadic := ""
	if f.Variadic {
		variadic = ", ..."
	}
	fmt.Fprintf(b, "func @%s(%s%s) -> %s {\n", f.Name, strings.Join(params, ", "), variadic, f.RetType)
	for _, bb := range f.Blocks {
		bb.print(b)
	}
	b.WriteString("}\n")
}

func (bb *BB) print(b *strings.Builder) {
	fmt.Fprintf(b, "bb%d:\n", bb.ID)
	for _, n := range bb.Phis {
		n.print(b)
	}
	for _, n := range bb.Nodes {
		n.print(b)
	}
	switch bb.TermKind {
	case TermReturn:
		if bb.Term.Args != nil {
			fmt.Fprintf(b, "  ret %%%d\n", bb.Term.Args[0].ID)
		} else {
			b.WriteString("  ret\n")
		}
	case TermBranch:
		succs := bb.Func.Succs(bb.ID)
		if bb.Term.Args != nil {
			fmt.Fprintf(b, "  br %%%d, bb%d, bb%d\n", bb.Term.Args[0].ID, succs[0], succs[1])
		} else if len(succs) > 0 {
			fmt.Fprintf(b, "  jmp bb%d\n", succs[0])
		}
	}
}

func (n *Node) print(b *strings.Builder) {
	lhs := ""
	if n.Type != Void {
		lhs = fmt.Sprintf("%%%d = ", n.ID)
	}
	switch n.Op {
	case OpConst:
		fmt.Fprintf(b, "  %s%s const %d\n", lhs, n.Type, n.ConstVal)
	case OpUndef:
		fmt.Fprintf(b, "  %s%s undef\n", lhs, n.Type)
	case OpAddrOf:
		fmt.Fprintf(b, "  %s%s addr_of @%s\n", lhs, n.Type, n.Symbol)
	case OpAlloca:
		fmt.Fprintf(b, "  %s%s alloca %d, align %d\n", lhs, n.Type, n.AllocaSize, n.AllocaAlign)
	case OpGetParam:
		fmt.Fprintf(b, "  %s%s getparam %d\n", lhs, n.Type, n.ParamIdx)
	case OpCall:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = fmt.Sprintf("%%%d", a.ID)
		}
		fmt.Fprintf(b, "  %s%s call @%s(%s)\n", lhs, n.Type, n.Symbol, strings.Join(args, ", "))
	case OpPhi:
		parts := make([]string, len(n.PhiArgs))
		for i, pa := range n.PhiArgs {
			parts[i] = fmt.Sprintf("[%%%d, bb%d]", pa.Value.ID, pa.Pred.ID)
		}
		fmt.Fprintf(b, "  %s%s phi %s\n", lhs, n.Type, strings.Join(parts, ", "))
	default:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = fmt.Sprintf("%%%d", a.ID)
		}
		fmt.Fprintf(b, "  %s%s %s %s\n", lhs, n.Type, n.Op, strings.Join(args, ", "))
	}
}
