package regalloc

import "github.com/markuszzz/mycc/pkg/cg"

// cleanup is stage (i) (spec.md §4.5.i): drop now-empty phi lists, remove
// instructions that carried only regalloc-internal bookkeeping (ret and
// undef pseudos — their real effect, forcing the return value into r0 or
// nothing at all, has already been realized) and any mov that ended up
// copying a register to itself, compute the callee-saved clobber mask, and
// grow the frame for the spill slots stage (e) allocated.
func cleanup(st *state) {
	for _, b := range st.f.Blocks {
		b.Phis = nil
		kept := b.Instr[:0]
		for _, in := range b.Instr {
			if isDropped(in) {
				continue
			}
			kept = append(kept, in)
		}
		b.Instr = kept
	}

	var clobber uint32
	for _, b := range st.f.Blocks {
		for _, in := range b.Instr {
			if in.Reg >= 4 && in.Reg < cg.NumHRegs {
				clobber |= 1 << uint(in.Reg)
			}
		}
	}
	st.f.Clobber = clobber
	st.f.FrameSize += st.nextSlot * 4
}

func isDropped(in *cg.Instr) bool {
	switch in.Op {
	case cg.OpRet, cg.OpUndef:
		return true
	case cg.OpMov:
		return isIdentityMov(in)
	default:
		return false
	}
}

func isIdentityMov(in *cg.Instr) bool {
	if in.NArgs != 1 {
		return false
	}
	a := in.Args[0]
	switch a.Kind {
	case cg.ArgVReg:
		return a.Def != nil && a.Def.Reg == in.Reg
	case cg.ArgHReg:
		return a.HReg == in.Reg
	default:
		return false
	}
}
