// Package emit renders a post-regalloc, post-predication cg.TU as textual
// ARM-like assembly (spec.md §4.7).
package emit

import (
	"bufio"
	"fmt"
	"io"

	"github.com/markuszzz/mycc/pkg/cg"
	"github.com/markuszzz/mycc/pkg/diag"
	"github.com/markuszzz/mycc/pkg/graph"
)

// Write renders tu's data section followed by every function's assembly to
// w, flushing before returning (spec.md §5: "scoped open/close... flushed
// and closed before exit").
func Write(tu *cg.TU, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, d := range tu.Data {
		writeData(bw, d)
	}
	for _, f := range tu.Funcs {
		diag.Pass("emit", f.Name, nil)
		writeFunc(bw, f)
	}
	return bw.Flush()
}

func writeData(w *bufio.Writer, d *cg.Data) {
	fmt.Fprintf(w, ".align %d\n", align4(d.Align))
	fmt.Fprintf(w, "%s:\n", d.Name)
	for _, b := range d.Init {
		fmt.Fprintf(w, "\t.byte 0x%02X\n", b)
	}
}

func align4(a int) int {
	if a <= 0 {
		return 4
	}
	return a
}

func writeFunc(w *bufio.Writer, f *cg.Func) {
	fmt.Fprintf(w, ".align 4\n.global %s\n.arm\n%s:\n", f.Name, f.Name)

	clobber := effectiveClobber(f)
	if clobber != 0 {
		fmt.Fprintf(w, "\tstmdb sp!, %s\n", regSet(clobber))
	}
	if f.FrameSize != 0 {
		fmt.Fprintf(w, "\tsub sp, sp, #%d\n", f.FrameSize)
	}

	for i, b := range f.Blocks {
		fmt.Fprintf(w, "%s:\n", blockLabel(f, b))
		for _, in := range b.Instr {
			writeInstr(w, in)
		}
		writeTerminator(w, f, b, i, clobber)
	}
}

func blockLabel(f *cg.Func, b *cg.BB) string {
	return fmt.Sprintf(".%s_%d", f.Name, b.ID)
}

// effectiveClobber is the push/pop register set: the callee-saved
// registers regalloc's stage (i) found written, plus lr whenever the
// function contains a call — `blx` overwrites lr as a hardware side
// effect that never shows up as an Instr.Reg write, so the clobber mask
// computed purely from register defs would otherwise miss it.
func effectiveClobber(f *cg.Func) uint32 {
	c := f.Clobber
	for _, b := range f.Blocks {
		for _, in := range b.Instr {
			if in.Op == cg.OpCall {
				c |= 1 << uint(cg.RegLR)
			}
		}
	}
	return c
}

func writeTerminator(w *bufio.Writer, f *cg.Func, b *cg.BB, idx int, clobber uint32) {
	if b.IsExit {
		if f.FrameSize != 0 {
			fmt.Fprintf(w, "\tadd sp, sp, #%d\n", f.FrameSize)
		}
		if clobber != 0 {
			fmt.Fprintf(w, "\tldmia sp!, %s\n", regSet(clobber))
		}
		fmt.Fprintf(w, "\tbx lr\n")
		return
	}

	next := nextBlock(f, idx)
	if b.IsConditional() {
		writeConditional(w, f, b, next)
		return
	}

	succs := f.CFG.Succs(graph.NodeID(b.ID))
	if len(succs) != 1 {
		return
	}
	target := f.Block(int(succs[0]))
	if target == next {
		return
	}
	fmt.Fprintf(w, "\tb %s\n", blockLabel(f, target))
}

func writeConditional(w *bufio.Writer, f *cg.Func, b *cg.BB, next *cg.BB) {
	switch next {
	case b.TrueTarget:
		fmt.Fprintf(w, "\tb%s %s\n", b.Cond.Invert(), blockLabel(f, b.FalseTarget))
	case b.FalseTarget:
		fmt.Fprintf(w, "\tb%s %s\n", b.Cond, blockLabel(f, b.TrueTarget))
	default:
		fmt.Fprintf(w, "\tb%s %s\n", b.Cond, blockLabel(f, b.TrueTarget))
		fmt.Fprintf(w, "\tb %s\n", blockLabel(f, b.FalseTarget))
	}
}

func nextBlock(f *cg.Func, idx int) *cg.BB {
	if idx+1 < len(f.Blocks) {
		return f.Blocks[idx+1]
	}
	return nil
}

func writeInstr(w *bufio.Writer, in *cg.Instr) {
	switch in.Op {
	case cg.OpMov:
		writeMov(w, in)
	case cg.OpCall:
		fmt.Fprintf(w, "\tblx%s %s\n", condSuffix(in.Cond), operandText(in.Args[0]))
	case cg.OpRet:
		return // realized entirely by the block's IsExit epilogue
	default:
		writeGeneric(w, in)
	}
}

// writeMov realizes the one literal-pool exception: a mov whose operand is
// a symbol, or an immediate too wide for the 8-bit rotated-immediate
// encoding, becomes an `ldr =...` pseudo-op (spec.md §4.7).
func writeMov(w *bufio.Writer, in *cg.Instr) {
	a := in.Args[0]
	if a.Kind == cg.ArgSym || (a.Kind == cg.ArgImm && (a.Imm < 0 || a.Imm > 0xFF)) {
		fmt.Fprintf(w, "\tldr%s %s, =%s\n", condSuffix(in.Cond), regName(in.Reg), literalText(a))
		return
	}
	fmt.Fprintf(w, "\tmov%s %s, %s\n", condSuffix(in.Cond), regName(in.Reg), operandText(a))
}

// literalText renders a literal-pool operand: a bare symbol name or a raw
// decimal value, neither carrying the `#` immediate-operand prefix.
func literalText(a cg.Arg) string {
	if a.Kind == cg.ArgSym {
		return a.Sym
	}
	return fmt.Sprintf("%d", a.Imm)
}

func writeGeneric(w *bufio.Writer, in *cg.Instr) {
	mnemonic := in.Op.String() + condSuffix(in.Cond)
	operands := instrOperands(in)
	if len(operands) == 0 {
		fmt.Fprintf(w, "\t%s\n", mnemonic)
		return
	}
	fmt.Fprintf(w, "\t%s %s\n", mnemonic, joinOperands(operands))
}

// instrOperands orders an instruction's printed operands: a defining
// instruction's own register leads; a load/store's memory operand prints
// as a bracketed `[base, #off]` group, with the value operand (if any)
// ahead of it for a store.
func instrOperands(in *cg.Instr) []string {
	if in.Op.HasMemOffset() {
		return memOperands(in)
	}
	var out []string
	if in.DefinesReg() {
		out = append(out, regName(in.Reg))
	}
	for i := 0; i < in.NArgs; i++ {
		out = append(out, operandText(in.Args[i]))
	}
	return out
}

func memOperands(in *cg.Instr) []string {
	switch in.Op {
	case cg.OpLdr, cg.OpLdrh, cg.OpLdrb:
		return []string{regName(in.Reg), memText(in.Args[0])}
	default: // str/strh/strb: value register, then the address
		return []string{operandText(in.Args[1]), memText(in.Args[0])}
	}
}

func memText(a cg.Arg) string {
	if a.Offset == 0 {
		return fmt.Sprintf("[%s]", operandText(a))
	}
	return fmt.Sprintf("[%s, #%d]", operandText(a), a.Offset)
}

func joinOperands(ops []string) string {
	out := ops[0]
	for _, o := range ops[1:] {
		out += ", " + o
	}
	return out
}

func operandText(a cg.Arg) string {
	switch a.Kind {
	case cg.ArgVReg:
		return regName(a.Def.Reg)
	case cg.ArgHReg:
		return regName(a.HReg)
	case cg.ArgImm:
		return fmt.Sprintf("#%d", a.Imm)
	case cg.ArgSym:
		return a.Sym
	default:
		return "???"
	}
}

func condSuffix(c cg.CondCode) string {
	if c == cg.CondAL {
		return ""
	}
	return c.String()
}

var regNames = [...]string{
	"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
	"r8", "r9", "r10", "r11", "r12", "sp", "lr", "pc",
}

func regName(r int) string {
	if r >= 0 && r < len(regNames) {
		return regNames[r]
	}
	return fmt.Sprintf("v%d", r)
}

func regSet(mask uint32) string {
	s := "{"
	first := true
	for r := 0; r < cg.NumHRegs; r++ {
		if mask&(1<<uint(r)) == 0 {
			continue
		}
		if !first {
			s += ", "
		}
		s += regName(r)
		first = false
	}
	return s + "}"
}
