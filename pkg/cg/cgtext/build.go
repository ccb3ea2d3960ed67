package cgtext

import (
	"github.com/markuszzz/mycc/pkg/cg"
	"github.com/markuszzz/mycc/pkg/diag"
)

// buildFunc realizes a rawFunc's parsed structure as a cg.Func. Block
// references and vreg uses may point forward in the text (a loop header's
// phi referencing a value defined in the body block that follows it), so
// this proceeds in three passes: create every block and instruction first
// (recording each vreg's defining *cg.Instr as it's minted), then wire
// branch/jump edges, then resolve every phi argument and remaining operand
// now that every def is known.
func buildFunc(tu *cg.TU, rf *rawFunc) (*cg.Func, error) {
	f := cg.NewFunc(tu, rf.name)

	blockByID := make(map[int64]*cg.BB, len(rf.blocks))
	vregByID := make(map[int64]*cg.Instr)

	for _, rb := range rf.blocks {
		bb := f.NewBlock()
		if int64(bb.ID) != rb.id {
			return nil, diag.New(diag.ParseFailure,
				"block %s declared out of creation order (expected bb%d)", blockLabel(rb.id), bb.ID)
		}
		rb.bb = bb
		blockByID[rb.id] = bb

		for _, rin := range rb.instrs {
			if rin.isPhi {
				instr := f.NewInstr(cg.OpPhi, cg.CondAL, bb, true)
				if err := bindResult(rin, instr, vregByID); err != nil {
					return nil, err
				}
				bb.AppendPhi(instr)
				rin.instr = instr
				continue
			}
			instr := f.NewInstr(rin.op, rin.cond, bb, rin.hasResult)
			if rin.hasResult {
				if err := bindResult(rin, instr, vregByID); err != nil {
					return nil, err
				}
			}
			bb.Append(instr)
			rin.instr = instr
		}

		if n := len(rb.instrs); n > 0 && rb.instrs[n-1].op == cg.OpRet {
			f.MarkExit(bb)
		}
	}

	for _, rb := range rf.blocks {
		if !rb.hasBr {
			continue
		}
		target0, ok := blockByID[rb.brTarget[0]]
		if !ok {
			return nil, diag.New(diag.ParseFailure, "branch to undeclared %s", blockLabel(rb.brTarget[0]))
		}
		if rb.brN == 1 {
			f.SetJump(rb.bb, target0)
			continue
		}
		target1, ok := blockByID[rb.brTarget[1]]
		if !ok {
			return nil, diag.New(diag.ParseFailure, "branch to undeclared %s", blockLabel(rb.brTarget[1]))
		}
		f.SetBranch(rb.bb, rb.brCond, target0, target1)
	}

	for _, rb := range rf.blocks {
		for _, rin := range rb.instrs {
			if rin.isPhi {
				for _, pa := range rin.phiArgs {
					val, ok := vregByID[pa.vreg]
					if !ok {
						return nil, diag.New(diag.ParseFailure, "phi references undefined %%v%d", pa.vreg)
					}
					pred, ok := blockByID[pa.blockID]
					if !ok {
						return nil, diag.New(diag.ParseFailure, "phi references undeclared %s", blockLabel(pa.blockID))
					}
					rin.instr.AddPhiArg(val, pred)
				}
				continue
			}
			args := make([]cg.Arg, len(rin.operands))
			for i, o := range rin.operands {
				a, err := resolveOperand(o, vregByID)
				if err != nil {
					return nil, err
				}
				args[i] = a
			}
			// A store prints as `value, [addr]` (the readable assembly
			// order) but the model's Args[0]/Args[1] convention
			// (established by iselect and relied on by emit/regalloc) is
			// [addr, value] — undo the printer's reordering here.
			if isMemOp(rin.op) && !isLoadOp(rin.op) && len(args) == 2 {
				args[0], args[1] = args[1], args[0]
			}
			rin.instr.SetArgs(args...)
		}
	}

	if err := bindArgs(f, rf); err != nil {
		return nil, err
	}
	if rf.hasFrame {
		f.FrameSize = int(rf.frame)
	}
	if rf.hasClob {
		f.Clobber = uint32(rf.clobber)
	}
	return f, nil
}

// bindResult attaches a parsed result register to instr. A %vN result must
// match the vreg id cg.Func just minted (vregs are handed out in strict
// definition order, so a mismatch means the text's numbering is out of
// sequence); a %rN result is an already-allocated physical register, so it
// simply overwrites the placeholder vreg id NewInstr minted for it — that
// id is never referenced again and is harmlessly skipped.
func bindResult(rin *rawInstr, instr *cg.Instr, vregByID map[int64]*cg.Instr) error {
	if rin.resultIsHReg {
		instr.Reg = int(rin.resultVReg)
		return nil
	}
	if int64(instr.Reg) != rin.resultVReg {
		return diag.New(diag.ParseFailure,
			"result %%v%d out of sequence (next def would be %%v%d)", rin.resultVReg, instr.Reg)
	}
	vregByID[rin.resultVReg] = instr
	return nil
}

func resolveOperand(o rawOperand, vregByID map[int64]*cg.Instr) (cg.Arg, error) {
	switch o.kind {
	case rawRegH:
		return cg.HRegArg(int(o.n)), nil
	case rawRegV:
		def, ok := vregByID[o.n]
		if !ok {
			return cg.Arg{}, diag.New(diag.ParseFailure, "reference to undefined %%v%d", o.n)
		}
		return cg.VReg(def), nil
	case rawImm:
		return cg.ImmArg(o.n), nil
	case rawSym:
		return cg.SymArg(o.sym), nil
	case rawMem:
		base, err := resolveOperand(*o.base, vregByID)
		if err != nil {
			return cg.Arg{}, err
		}
		if o.hasOff {
			base = base.WithOffset(o.off)
		}
		return base, nil
	default:
		return cg.Arg{}, diag.New(diag.ParseFailure, "malformed operand")
	}
}

// bindArgs populates f.Args from the entry block's `arg` pseudo-instructions
// (spec.md §4.4), validating them against the signature's declared register
// list.
func bindArgs(f *cg.Func, rf *rawFunc) error {
	if f.Entry == nil {
		if len(rf.argRegs) == 0 {
			return nil
		}
		return diag.New(diag.ParseFailure, "function declares %d argument(s) but has no entry block", len(rf.argRegs))
	}
	var args []*cg.Instr
	for _, in := range f.Entry.Instr {
		if in.Op == cg.OpArg {
			args = append(args, in)
		}
	}
	if len(args) != len(rf.argRegs) {
		return diag.New(diag.ParseFailure,
			"signature declares %d argument register(s) but entry block has %d `arg` instruction(s)",
			len(rf.argRegs), len(args))
	}
	for i, in := range args {
		want := int(rf.argRegs[i])
		if in.NArgs != 1 || in.Args[0].Kind != cg.ArgHReg || in.Args[0].HReg != want {
			return diag.New(diag.ParseFailure, "argument %d does not bind %%r%d as declared", i, want)
		}
	}
	f.Args = args
	return nil
}

func blockLabel(id int64) string { return "bb" + itoa(id) }

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	if neg {
		digits = append([]byte{'-'}, digits...)
	}
	return string(digits)
}
