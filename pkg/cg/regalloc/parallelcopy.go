package regalloc

import "github.com/markuszzz/mycc/pkg/cg"

// copyMove says "whatever currently lives in physical register Src must end
// up in physical register Dst." It carries no SSA identity: at any single
// program point a physical register holds at most one live value, so
// "whatever is currently in Src" is unambiguous.
type copyMove struct {
	Dst, Src int
}

// resolveMoves inserts, immediately before `before` in block b, a safe
// instruction sequence realizing every move in moves: plain movs for any
// entry whose destination nothing else still needs to read from, and a
// 3-instruction xor-swap chain for each remaining permutation cycle
// (spec.md §4.5.g's cycle-breaking, reused here for call-argument and
// return-value shuffling per §4.5.f).
func resolveMoves(f *cg.Func, b *cg.BB, before *cg.Instr, moves []copyMove) {
	pending := make(map[int]int, len(moves))
	for _, m := range moves {
		if m.Dst != m.Src {
			pending[m.Dst] = m.Src
		}
	}
	for len(pending) > 0 {
		progressed := false
		for dst, src := range pending {
			if neededAsSource(pending, dst) {
				continue
			}
			emitMov(f, b, before, dst, src)
			delete(pending, dst)
			progressed = true
		}
		if progressed {
			continue
		}
		var start int
		for d := range pending {
			start = d
			break
		}
		breakCycle(f, b, before, pending, start)
	}
}

func neededAsSource(pending map[int]int, reg int) bool {
	for _, src := range pending {
		if src == reg {
			return true
		}
	}
	return false
}

func emitMov(f *cg.Func, b *cg.BB, before *cg.Instr, dst, src int) {
	mov := f.NewInstr(cg.OpMov, cg.CondAL, b, true)
	mov.Reg = dst
	mov.SetArgs(cg.HRegArg(src))
	insertBefore(b, before, mov)
}

func emitEor(f *cg.Func, b *cg.BB, before *cg.Instr, dst, lhs, rhs int) {
	in := f.NewInstr(cg.OpEor, cg.CondAL, b, true)
	in.Reg = dst
	in.SetArgs(cg.HRegArg(lhs), cg.HRegArg(rhs))
	insertBefore(b, before, in)
}

// breakCycle walks the permutation cycle starting at start (dst -> src ->
// src's own dst -> ... -> start) and resolves it with one 3-instruction
// xor-swap per adjacent pair: swapping cycle[i] with cycle[i+1] in order
// rotates every register's content exactly the way the cycle demands.
func breakCycle(f *cg.Func, b *cg.BB, before *cg.Instr, pending map[int]int, start int) {
	cycle := []int{start}
	cur := pending[start]
	for cur != start {
		cycle = append(cycle, cur)
		cur = pending[cur]
	}
	for i := 0; i < len(cycle)-1; i++ {
		a, c := cycle[i], cycle[i+1]
		emitEor(f, b, before, a, a, c)
		emitEor(f, b, before, c, c, a)
		emitEor(f, b, before, a, a, c)
	}
	for _, d := range cycle {
		delete(pending, d)
	}
}
