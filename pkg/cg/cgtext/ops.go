package cgtext

import "github.com/markuszzz/mycc/pkg/cg"

// mnemonics mirrors cg's own Op.String() table (pkg/cg/types.go) in reverse;
// cgtext keeps its own copy since the textual format is an interchange
// concern that doesn't belong inside the CG IR model itself.
var mnemonics = map[string]cg.Op{
	"mov": cg.OpMov, "add": cg.OpAdd, "sub": cg.OpSub, "mul": cg.OpMul,
	"and": cg.OpAnd, "orr": cg.OpOrr, "eor": cg.OpEor,
	"lsl": cg.OpLsl, "lsr": cg.OpLsr, "asr": cg.OpAsr,
	"sxtb": cg.OpSxtb, "sxth": cg.OpSxth, "uxtb": cg.OpUxtb, "uxth": cg.OpUxth,
	"ldr": cg.OpLdr, "ldrh": cg.OpLdrh, "ldrb": cg.OpLdrb,
	"str": cg.OpStr, "strh": cg.OpStrh, "strb": cg.OpStrb,
	"cmp": cg.OpCmp, "call": cg.OpCall, "ret": cg.OpRet, "arg": cg.OpArg,
	"spill": cg.OpSpill, "reload": cg.OpReload, "undef": cg.OpUndef,
}

var mnemonicNames = reverseOpMap(mnemonics)

func reverseOpMap(m map[string]cg.Op) map[cg.Op]string {
	out := make(map[cg.Op]string, len(m))
	for name, op := range m {
		out[op] = name
	}
	return out
}

// conds mirrors CondCode.String()'s table (pkg/cg/types.go) in reverse.
var conds = map[string]cg.CondCode{
	"eq": cg.CondEQ, "ne": cg.CondNE, "lt": cg.CondLT, "le": cg.CondLE,
	"gt": cg.CondGT, "ge": cg.CondGE, "al": cg.CondAL,
}

// isMemOp reports whether op is a load/store whose sole (or second, for a
// store) operand is a bracketed memory address (pkg/cg/types.go's
// Op.HasMemOffset).
func isMemOp(op cg.Op) bool { return op.HasMemOffset() }

func isLoadOp(op cg.Op) bool {
	switch op {
	case cg.OpLdr, cg.OpLdrh, cg.OpLdrb:
		return true
	default:
		return false
	}
}
