// Package cgsim interprets a cg.TU directly, register by register and
// block by block, against a flat byte-addressable memory — a software
// stand-in for the real ARM-like core the compiler actually targets, used
// to check that a compiled function produces the answer its source
// intended without needing an external assembler or hardware. It runs
// equally well against a freshly selected function (plain virtual
// registers, no frame) or a fully allocated and predicated one (physical
// registers, a nonzero frame, conditionally executed instructions), since
// every register reference — virtual or physical — is just a lookup key
// into the same register file.
package cgsim

import (
	"encoding/binary"

	"github.com/markuszzz/mycc/pkg/cg"
	"github.com/markuszzz/mycc/pkg/diag"
)

const (
	maxCallDepth = 4096
	stackSize    = 4096
)

// Machine holds one translation unit's simulated memory image and register
// file. Registers are keyed by whatever number identifies them in the
// cg.Instr that defines or references them, so the same machine serves a
// pre-allocation function (keys are virtual register ids, cg.FirstVReg and
// up) and a post-allocation one (keys are physical register indices,
// 0..cg.NumHRegs-1) without distinguishing the two.
type Machine struct {
	tu      *cg.TU
	mem     []byte
	symAddr map[string]uint32
	regs    map[int]int32

	depth int
}

// New lays out tu's data segment at the bottom of a flat memory image,
// reserves a stack region above it, and points the stack register at the
// top of that region.
func New(tu *cg.TU) *Machine {
	m := &Machine{tu: tu, symAddr: make(map[string]uint32), regs: make(map[int]int32)}

	var off uint32
	for _, d := range tu.Data {
		if d.Align > 0 {
			off = alignUp(off, uint32(d.Align))
		}
		m.symAddr[d.Name] = off
		m.ensureMem(off + uint32(d.Size))
		if d.Init != nil {
			copy(m.mem[off:], d.Init)
		}
		off += uint32(d.Size)
	}

	base := alignUp(off, 8)
	m.ensureMem(base + stackSize)
	m.regs[cg.RegSP] = int32(base + stackSize)
	return m
}

func alignUp(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func (m *Machine) ensureMem(n uint32) {
	if uint32(len(m.mem)) >= n {
		return
	}
	grown := make([]byte, n)
	copy(grown, m.mem)
	m.mem = grown
}

// Reg reads a register's current value, keyed the same way cg.Instr.Reg
// is: a virtual register id pre-allocation, a physical index 0..15 after.
func (m *Machine) Reg(key int) int32 { return m.regs[key] }

// SetReg writes a register's value directly, keyed the same way as Reg.
func (m *Machine) SetReg(key int, v int32) { m.regs[key] = v }

// WriteBytes copies b into the simulated memory starting at addr, growing
// the image if needed — used by tests to set up an input buffer a
// function will read through a pointer argument.
func (m *Machine) WriteBytes(addr uint32, b []byte) {
	m.ensureMem(addr + uint32(len(b)))
	copy(m.mem[addr:], b)
}

// ReadBytes returns a copy of n simulated memory bytes starting at addr.
func (m *Machine) ReadBytes(addr uint32, n int) []byte {
	m.ensureMem(addr + uint32(n))
	out := make([]byte, n)
	copy(out, m.mem[addr:addr+uint32(n)])
	return out
}

// SymAddr returns the simulated address New assigned to a data symbol.
func (m *Machine) SymAddr(name string) (uint32, bool) {
	a, ok := m.symAddr[name]
	return a, ok
}

// Run finds function name in the translation unit and simulates a call to
// it with args bound to its first len(args) argument registers.
func (m *Machine) Run(name string, args ...int32) (int32, error) {
	f := m.tu.FindFunc(name)
	if f == nil {
		return 0, diag.New(diag.InputFailure, "cgsim: no such function %q", name)
	}
	return m.call(f, args)
}

// frame is one call's flags latch: the operands of its most recently
// executed cmp, consulted by every conditional branch or predicated
// instruction that follows until the next cmp overwrites it. It never
// crosses a call boundary, since each call() invocation keeps its own.
type frame struct {
	cmpL, cmpR int32
}

func (m *Machine) call(f *cg.Func, args []int32) (int32, error) {
	m.depth++
	defer func() { m.depth-- }()
	if m.depth > maxCallDepth {
		return 0, diag.New(diag.Unsupported, "cgsim: call depth exceeded simulating %s (infinite recursion?)", f.Name)
	}

	// Registers cg.Func.Clobber marks (the callee-saved set regalloc
	// computed) must read back unchanged once this call returns, the same
	// guarantee the prologue/epilogue save/restore gives real code.
	var saved [cg.NumHRegs]int32
	for i := 0; i < cg.NumHRegs; i++ {
		if f.Clobber&(1<<uint(i)) != 0 {
			saved[i] = m.regs[i]
		}
	}
	if f.FrameSize != 0 {
		m.regs[cg.RegSP] -= int32(f.FrameSize)
	}
	for i, a := range args {
		m.regs[i] = a
	}

	ret, err := m.runBody(f)

	if f.FrameSize != 0 {
		m.regs[cg.RegSP] += int32(f.FrameSize)
	}
	for i := 0; i < cg.NumHRegs; i++ {
		if f.Clobber&(1<<uint(i)) != 0 {
			m.regs[i] = saved[i]
		}
	}
	return ret, err
}

func (m *Machine) runBody(f *cg.Func) (int32, error) {
	var fr frame
	var prev *cg.BB
	cur := f.Entry
	for {
		for _, phi := range cur.Phis {
			for _, pa := range phi.PhiArgs {
				if pa.Pred == prev {
					m.regs[phi.Reg] = m.regs[pa.Value.Reg]
					break
				}
			}
		}

		for _, in := range cur.Instr {
			returned, val, err := m.exec(&fr, in)
			if err != nil {
				return 0, err
			}
			if returned {
				return val, nil
			}
		}
		if cur.IsExit {
			// Register allocation's cleanup drops the ret pseudo once the
			// return value is in r0, so an exit block without one returns r0.
			return m.regs[0], nil
		}

		if cur.IsConditional() {
			prev = cur
			if evalCond(cur.Cond, fr.cmpL, fr.cmpR) {
				cur = cur.TrueTarget
			} else {
				cur = cur.FalseTarget
			}
			continue
		}
		succs := f.Succs(cur.ID)
		if len(succs) != 1 {
			return 0, diag.New(diag.Internal, "cgsim: block %d has no terminator", cur.ID)
		}
		prev = cur
		cur = f.Block(succs[0])
	}
}

// exec runs one instruction. It reports (true, value, nil) when the
// instruction is a ret, ending the current call.
func (m *Machine) exec(fr *frame, in *cg.Instr) (bool, int32, error) {
	if in.Cond != cg.CondAL && !evalCond(in.Cond, fr.cmpL, fr.cmpR) {
		return false, 0, nil
	}

	switch in.Op {
	case cg.OpMov:
		v, err := m.resolve(in.Args[0])
		if err != nil {
			return false, 0, err
		}
		m.regs[in.Reg] = v

	case cg.OpAdd, cg.OpSub, cg.OpMul, cg.OpAnd, cg.OpOrr, cg.OpEor, cg.OpLsl, cg.OpLsr, cg.OpAsr:
		a, err := m.resolve(in.Args[0])
		if err != nil {
			return false, 0, err
		}
		b, err := m.resolve(in.Args[1])
		if err != nil {
			return false, 0, err
		}
		m.regs[in.Reg] = binOp(in.Op, a, b)

	case cg.OpSxtb, cg.OpSxth, cg.OpUxtb, cg.OpUxth:
		a, err := m.resolve(in.Args[0])
		if err != nil {
			return false, 0, err
		}
		m.regs[in.Reg] = extend(in.Op, a)

	case cg.OpLdr, cg.OpLdrh, cg.OpLdrb:
		addr, err := m.addr(in.Args[0])
		if err != nil {
			return false, 0, err
		}
		m.regs[in.Reg] = m.load(addr, widthOf(in.Op))

	case cg.OpStr, cg.OpStrh, cg.OpStrb:
		addr, err := m.addr(in.Args[0])
		if err != nil {
			return false, 0, err
		}
		v, err := m.resolve(in.Args[1])
		if err != nil {
			return false, 0, err
		}
		m.store(addr, widthOf(in.Op), v)

	case cg.OpCmp:
		a, err := m.resolve(in.Args[0])
		if err != nil {
			return false, 0, err
		}
		b, err := m.resolve(in.Args[1])
		if err != nil {
			return false, 0, err
		}
		fr.cmpL, fr.cmpR = a, b

	case cg.OpCall:
		if in.Args[0].Kind != cg.ArgSym {
			return false, 0, diag.New(diag.Internal, "cgsim: call operand 0 is not a symbol")
		}
		callee := m.tu.FindFunc(in.Args[0].Sym)
		if callee == nil {
			return false, 0, diag.New(diag.Unsupported, "cgsim: call to undefined function @%s", in.Args[0].Sym)
		}
		callArgs := make([]int32, in.NArgs-1)
		for i := 1; i < in.NArgs; i++ {
			v, err := m.resolve(in.Args[i])
			if err != nil {
				return false, 0, err
			}
			callArgs[i-1] = v
		}
		result, err := m.call(callee, callArgs)
		if err != nil {
			return false, 0, err
		}
		if in.DefinesReg() {
			m.regs[in.Reg] = result
		}

	case cg.OpArg:
		v, err := m.resolve(in.Args[0])
		if err != nil {
			return false, 0, err
		}
		m.regs[in.Reg] = v

	case cg.OpRet:
		if in.NArgs == 0 {
			return true, 0, nil
		}
		v, err := m.resolve(in.Args[0])
		if err != nil {
			return false, 0, err
		}
		return true, v, nil

	case cg.OpUndef:
		m.regs[in.Reg] = 0

	default:
		return false, 0, diag.New(diag.Unsupported, "cgsim: unhandled instruction %s", in.Op)
	}
	return false, 0, nil
}

func (m *Machine) resolve(a cg.Arg) (int32, error) {
	switch a.Kind {
	case cg.ArgVReg:
		return m.regs[a.Def.Reg], nil
	case cg.ArgHReg:
		return m.regs[a.HReg], nil
	case cg.ArgImm:
		return int32(a.Imm), nil
	case cg.ArgSym:
		addr, ok := m.symAddr[a.Sym]
		if !ok {
			return 0, diag.New(diag.InputFailure, "cgsim: undefined symbol @%s", a.Sym)
		}
		return int32(addr), nil
	default:
		return 0, diag.New(diag.Internal, "cgsim: malformed operand")
	}
}

func (m *Machine) addr(a cg.Arg) (uint32, error) {
	base, err := m.resolve(a)
	if err != nil {
		return 0, err
	}
	return uint32(base + int32(a.Offset)), nil
}

func binOp(op cg.Op, a, b int32) int32 {
	switch op {
	case cg.OpAdd:
		return a + b
	case cg.OpSub:
		return a - b
	case cg.OpMul:
		return a * b
	case cg.OpAnd:
		return a & b
	case cg.OpOrr:
		return a | b
	case cg.OpEor:
		return a ^ b
	case cg.OpLsl:
		return int32(uint32(a) << (uint32(b) & 31))
	case cg.OpLsr:
		return int32(uint32(a) >> (uint32(b) & 31))
	case cg.OpAsr:
		return a >> (uint32(b) & 31)
	default:
		return 0
	}
}

func extend(op cg.Op, a int32) int32 {
	switch op {
	case cg.OpUxtb:
		return int32(uint8(a))
	case cg.OpUxth:
		return int32(uint16(a))
	case cg.OpSxtb:
		return int32(int8(a))
	case cg.OpSxth:
		return int32(int16(a))
	default:
		return a
	}
}

func widthOf(op cg.Op) int {
	switch op {
	case cg.OpLdrb, cg.OpStrb:
		return 1
	case cg.OpLdrh, cg.OpStrh:
		return 2
	default:
		return 4
	}
}

func (m *Machine) load(addr uint32, width int) int32 {
	m.ensureMem(addr + uint32(width))
	switch width {
	case 1:
		return int32(m.mem[addr])
	case 2:
		return int32(binary.LittleEndian.Uint16(m.mem[addr:]))
	default:
		return int32(binary.LittleEndian.Uint32(m.mem[addr:]))
	}
}

func (m *Machine) store(addr uint32, width int, v int32) {
	m.ensureMem(addr + uint32(width))
	switch width {
	case 1:
		m.mem[addr] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(m.mem[addr:], uint16(v))
	default:
		binary.LittleEndian.PutUint32(m.mem[addr:], uint32(v))
	}
}

func evalCond(c cg.CondCode, l, r int32) bool {
	switch c {
	case cg.CondEQ:
		return l == r
	case cg.CondNE:
		return l != r
	case cg.CondLT:
		return l < r
	case cg.CondLE:
		return l <= r
	case cg.CondGT:
		return l > r
	case cg.CondGE:
		return l >= r
	default: // CondAL
		return true
	}
}
