package cgtext

import (
	"fmt"
	"strings"

	"github.com/markuszzz/mycc/pkg/cg"
	"github.com/markuszzz/mycc/pkg/graph"
)

// Print renders tu as textual CG IR (spec.md §6), the mirror image of
// Parse: Parse(strings.NewReader(Print(tu))) reproduces tu, and printing
// that result again yields byte-identical text (spec.md §8 property 8, S6).
func Print(tu *cg.TU) string {
	var b strings.Builder
	for _, d := range tu.Data {
		printData(&b, d)
	}
	for _, f := range tu.Funcs {
		printFunc(&b, f)
	}
	return b.String()
}

func printData(b *strings.Builder, d *cg.Data) {
	fmt.Fprintf(b, "@%s = size(%d), align(%d)", d.Name, d.Size, d.Align)
	if d.Init != nil {
		b.WriteString(", init(")
		for i, by := range d.Init {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "%d", by)
		}
		b.WriteString(")")
	}
	b.WriteString("\n")
}

func printFunc(b *strings.Builder, f *cg.Func) {
	fmt.Fprintf(b, "define @%s(", f.Name)
	for i, a := range f.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(regToken(a.Args[0].HReg))
	}
	b.WriteString(")")
	if f.FrameSize != 0 {
		fmt.Fprintf(b, ", frame(%d)", f.FrameSize)
	}
	if f.Clobber != 0 {
		fmt.Fprintf(b, ", clobber(%d)", f.Clobber)
	}
	b.WriteString(" {\n")
	for _, bb := range f.Blocks {
		printBlock(b, f, bb)
	}
	b.WriteString("}\n")
}

func printBlock(b *strings.Builder, f *cg.Func, bb *cg.BB) {
	fmt.Fprintf(b, "bb%d:\n", bb.ID)
	for _, phi := range bb.Phis {
		printPhi(b, phi)
	}
	for _, in := range bb.Instr {
		printInstr(b, in)
	}
	printTerminator(b, f, bb)
}

func printPhi(b *strings.Builder, in *cg.Instr) {
	fmt.Fprintf(b, "  %s = phi ", regToken(in.Reg))
	for i, pa := range in.PhiArgs {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "[%s, %s]", regToken(pa.Value.Reg), blockRefToken(pa.Pred.ID))
	}
	b.WriteString("\n")
}

func printTerminator(b *strings.Builder, f *cg.Func, bb *cg.BB) {
	if bb.IsConditional() {
		fmt.Fprintf(b, "  branch{%s} %s, %s\n", bb.Cond, blockRefToken(bb.TrueTarget.ID), blockRefToken(bb.FalseTarget.ID))
		return
	}
	succs := f.CFG.Succs(graph.NodeID(bb.ID))
	if len(succs) == 1 {
		fmt.Fprintf(b, "  branch %s\n", blockRefToken(int(succs[0])))
	}
}

func printInstr(b *strings.Builder, in *cg.Instr) {
	prefix := ""
	if in.DefinesReg() {
		prefix = regToken(in.Reg) + " = "
	}
	mnem, ok := mnemonicNames[in.Op]
	if !ok {
		mnem = "???"
	}
	mnem += condSuffix(in.Cond)

	operands := instrOperandTokens(in)
	if len(operands) == 0 {
		fmt.Fprintf(b, "  %s%s\n", prefix, mnem)
		return
	}
	fmt.Fprintf(b, "  %s%s %s\n", prefix, mnem, strings.Join(operands, ", "))
}

func instrOperandTokens(in *cg.Instr) []string {
	if isMemOp(in.Op) {
		addr := memToken(in.Args[0])
		if isLoadOp(in.Op) {
			return []string{addr}
		}
		return []string{operandToken(in.Args[1]), addr}
	}
	out := make([]string, 0, in.NArgs)
	for i := 0; i < in.NArgs; i++ {
		out = append(out, operandToken(in.Args[i]))
	}
	return out
}

func memToken(a cg.Arg) string {
	base := operandToken(a)
	if a.Offset == 0 {
		return "[" + base + "]"
	}
	return fmt.Sprintf("[%s, #%d]", base, a.Offset)
}

func operandToken(a cg.Arg) string {
	switch a.Kind {
	case cg.ArgVReg:
		return regToken(a.Def.Reg)
	case cg.ArgHReg:
		return regToken(a.HReg)
	case cg.ArgImm:
		return fmt.Sprintf("#%d", a.Imm)
	case cg.ArgSym:
		return "@" + a.Sym
	default:
		return "???"
	}
}

// regToken renders a register identity the way the grammar splits them:
// %rN for a hardware register (reg < cg.NumHRegs), %vN for a virtual one.
func regToken(reg int) string {
	if reg < cg.NumHRegs {
		return fmt.Sprintf("%%r%d", reg)
	}
	return fmt.Sprintf("%%v%d", reg)
}

func blockRefToken(id int) string { return fmt.Sprintf("%%bb%d", id) }

func condSuffix(c cg.CondCode) string {
	if c == cg.CondAL {
		return ""
	}
	return "{" + c.String() + "}"
}
