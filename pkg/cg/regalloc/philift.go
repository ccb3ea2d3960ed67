package regalloc

import "github.com/markuszzz/mycc/pkg/cg"

// phiLift is stage (a) (spec.md §4.5.a): for every phi `x = φ(y1,...)` in
// block B, insert `mov xi = yi` at the end of each predecessor, rewrite the
// phi's args to reference the new movs, and insert `mov x' = x` at the head
// of B, redirecting every other consumer of x to x'. This breaks every
// interference a phi's operands could otherwise have with each other or
// with the phi's own result.
func phiLift(st *state) {
	f := st.f
	for _, b := range f.Blocks {
		for _, phi := range b.Phis {
			liftOnePhi(st, f, b, phi)
		}
	}
}

func liftOnePhi(st *state, f *cg.Func, b *cg.BB, phi *cg.Instr) {
	for i, pa := range phi.PhiArgs {
		pred := pa.Pred
		val := pa.Value
		mov := f.NewInstr(cg.OpMov, cg.CondAL, pred, true)
		mov.SetArgs(cg.VReg(val))
		pred.Append(mov)
		removePhiUse(val, phi)
		phi.PhiArgs[i].Value = mov
		mov.Uses = append(mov.Uses, phi)
		st.liftedMovs = append(st.liftedMovs, mov)
	}

	alias := f.NewInstr(cg.OpMov, cg.CondAL, b, true)
	alias.SetArgs(cg.VReg(phi))
	redirectOtherUses(phi, alias)
	b.Instr = append([]*cg.Instr{alias}, b.Instr...)
	st.liftedMovs = append(st.liftedMovs, alias)
}

// removePhiUse removes phi from val's Uses list (its use-edge is about to
// be replaced by the freshly lifted mov).
func removePhiUse(val, phi *cg.Instr) {
	for i, u := range val.Uses {
		if u == phi {
			val.Uses = append(val.Uses[:i], val.Uses[i+1:]...)
			return
		}
	}
}

// redirectOtherUses rewrites every current user of old (except newUser
// itself, which already references old on purpose) to reference newUser.
func redirectOtherUses(old, newUser *cg.Instr) {
	users := append([]*cg.Instr(nil), old.Uses...)
	var kept []*cg.Instr
	for _, user := range users {
		if user == newUser {
			kept = append(kept, user)
			continue
		}
		for i := 0; i < user.NArgs; i++ {
			if user.Args[i].Kind == cg.ArgVReg && user.Args[i].Def == old {
				user.Args[i].Def = newUser
			}
		}
		for i, pa := range user.PhiArgs {
			if pa.Value == old {
				user.PhiArgs[i].Value = newUser
			}
		}
		newUser.Uses = append(newUser.Uses, user)
	}
	old.Uses = kept
}
