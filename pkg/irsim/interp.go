// Package irsim is the reference oracle SPEC_FULL.md §4.10 asks for: a
// direct interpreter over ir.Func, executed against a flat byte-addressable
// memory, used by the end-to-end tests to compare the compiled-and-simulated
// assembly result against ground truth. The CLI does not call it.
package irsim

import (
	"encoding/binary"
	"fmt"

	"github.com/markuszzz/mycc/pkg/diag"
	"github.com/markuszzz/mycc/pkg/ir"
)

const maxCallDepth = 4096

// Interp holds one translation unit's simulated memory image: the data
// segment laid out from ir.TU.Data, followed by a bump-allocated stack
// region serving alloca and call frames.
type Interp struct {
	tu      *ir.TU
	mem     []byte
	symAddr map[string]uint32

	stackTop uint32
	depth    int
}

// New lays out tu's data segment and returns a ready interpreter.
func New(tu *ir.TU) *Interp {
	in := &Interp{tu: tu, symAddr: make(map[string]uint32)}
	var off uint32
	for _, d := range tu.Data {
		if d.Align > 0 {
			off = alignUp(off, uint32(d.Align))
		}
		in.symAddr[d.Name] = off
		in.ensureMem(off + uint32(d.Size))
		if d.Init != nil {
			copy(in.mem[off:], d.Init)
		}
		off += uint32(d.Size)
	}
	in.stackTop = alignUp(off, 8)
	return in
}

func alignUp(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

func (in *Interp) ensureMem(n uint32) {
	if uint32(len(in.mem)) >= n {
		return
	}
	grown := make([]byte, n)
	copy(grown, in.mem)
	in.mem = grown
}

// frame is one call's local evaluation state: the SSA-value table (every
// def in an SSA function executes at most once along any path, so a node
// id -> value map is exact) and the alloca bump pointer.
type frame struct {
	values map[int]uint64
	next   uint32
	args   []uint64
}

// Run executes function name with the given argument values and returns its
// return value (0 for a void function).
func (in *Interp) Run(name string, args []uint64) (uint64, error) {
	f := in.tu.FindFunc(name)
	if f == nil {
		return 0, diag.New(diag.InputFailure, "irsim: no such function %q", name)
	}
	return in.call(f, args)
}

func (in *Interp) call(f *ir.Func, args []uint64) (uint64, error) {
	in.depth++
	defer func() { in.depth-- }()
	if in.depth > maxCallDepth {
		return 0, diag.New(diag.Unsupported, "irsim: call depth exceeded simulating %s (infinite recursion?)", f.Name)
	}

	base := in.stackTop
	fr := &frame{values: make(map[int]uint64), next: base, args: args}
	defer func() { in.stackTop = base }()

	var prev *ir.BB
	cur := f.Entry
	for {
		for _, phi := range cur.Phis {
			for _, pa := range phi.PhiArgs {
				if pa.Pred == prev {
					fr.values[phi.ID] = fr.values[pa.Value.ID]
					break
				}
			}
		}
		for _, n := range cur.Nodes {
			v, err := in.eval(fr, n)
			if err != nil {
				return 0, err
			}
			if n.Type != ir.Void {
				fr.values[n.ID] = v
			}
		}
		switch cur.TermKind {
		case ir.TermReturn:
			if cur.Term.Args != nil {
				return fr.values[cur.Term.Args[0].ID], nil
			}
			return 0, nil
		case ir.TermBranch:
			succs := f.Succs(cur.ID)
			prev = cur
			if cur.Term.Args != nil {
				if fr.values[cur.Term.Args[0].ID] != 0 {
					cur = f.Block(succs[0])
				} else {
					cur = f.Block(succs[1])
				}
			} else {
				cur = f.Block(succs[0])
			}
		default:
			return 0, diag.New(diag.Internal, "irsim: block %d has no terminator", cur.ID)
		}
	}
}

func (in *Interp) eval(fr *frame, n *ir.Node) (uint64, error) {
	switch n.Op {
	case ir.OpConst:
		return n.ConstVal, nil
	case ir.OpUndef:
		return 0, nil
	case ir.OpGetParam:
		return fr.args[n.ParamIdx], nil
	case ir.OpAddrOf:
		addr, ok := in.symAddr[n.Symbol]
		if !ok {
			return 0, diag.New(diag.InputFailure, "irsim: undefined symbol @%s", n.Symbol)
		}
		return uint64(addr), nil
	case ir.OpAlloca:
		addr := alignUp(fr.next, uint32(n.AllocaAlign))
		in.ensureMem(addr + uint32(n.AllocaSize))
		fr.next = addr + uint32(n.AllocaSize)
		if fr.next > in.stackTop {
			in.stackTop = fr.next
		}
		return uint64(addr), nil
	case ir.OpLoad:
		addr := uint32(fr.values[n.Args[0].ID])
		return in.load(addr, n.Type), nil
	case ir.OpStore:
		addr := uint32(fr.values[n.Args[0].ID])
		in.store(addr, n.Args[1].Type, fr.values[n.Args[1].ID])
		return 0, nil
	case ir.OpCall:
		target := in.tu.FindFunc(n.Symbol)
		if target == nil {
			return 0, diag.New(diag.Unsupported, "irsim: call to undefined function @%s", n.Symbol)
		}
		callArgs := make([]uint64, len(n.Args))
		for i, a := range n.Args {
			callArgs[i] = fr.values[a.ID]
		}
		return in.call(target, callArgs)
	case ir.OpTrunc:
		src := n.Args[0]
		return maskBits(n.Type, fr.values[src.ID]), nil
	case ir.OpSExt:
		src := n.Args[0]
		return maskBits(n.Type, uint64(signExtend(src.Type, fr.values[src.ID]))), nil
	case ir.OpZExt:
		src := n.Args[0]
		return maskBits(src.Type, fr.values[src.ID]), nil
	case ir.OpPhi:
		return fr.values[n.ID], nil // already resolved at block entry
	default:
		if n.Op.IsCompare() {
			return in.evalCompare(fr, n), nil
		}
		if n.Op.IsArith() {
			return in.evalArith(fr, n), nil
		}
		return 0, diag.New(diag.Unsupported, "irsim: unhandled op %s", n.Op)
	}
}

func (in *Interp) evalArith(fr *frame, n *ir.Node) uint64 {
	t := n.Type
	a, b := fr.values[n.Args[0].ID], fr.values[n.Args[1].ID]
	switch n.Op {
	case ir.OpAdd:
		return maskBits(t, a+b)
	case ir.OpSub:
		return maskBits(t, a-b)
	case ir.OpMul:
		return maskBits(t, a*b)
	case ir.OpSDiv:
		bs := signExtend(t, b)
		if bs == 0 {
			return 0
		}
		return maskBits(t, uint64(signExtend(t, a)/bs))
	case ir.OpUDiv:
		bb := maskBits(t, b)
		if bb == 0 {
			return 0
		}
		return maskBits(t, maskBits(t, a)/bb)
	case ir.OpSRem:
		bs := signExtend(t, b)
		if bs == 0 {
			return 0
		}
		return maskBits(t, uint64(signExtend(t, a)%bs))
	case ir.OpURem:
		bb := maskBits(t, b)
		if bb == 0 {
			return 0
		}
		return maskBits(t, maskBits(t, a)%bb)
	case ir.OpAnd:
		return maskBits(t, a&b)
	case ir.OpOr:
		return maskBits(t, a|b)
	case ir.OpXor:
		return maskBits(t, a^b)
	case ir.OpShl:
		return maskBits(t, a<<(b&63))
	case ir.OpLShr:
		return maskBits(t, maskBits(t, a)>>(b&63))
	case ir.OpAShr:
		return maskBits(t, uint64(signExtend(t, a)>>(b&63)))
	default:
		return 0
	}
}

func (in *Interp) evalCompare(fr *frame, n *ir.Node) uint64 {
	t := n.Args[0].Type
	a, b := fr.values[n.Args[0].ID], fr.values[n.Args[1].ID]
	var result bool
	switch n.Op {
	case ir.OpICmpEQ:
		result = maskBits(t, a) == maskBits(t, b)
	case ir.OpICmpNE:
		result = maskBits(t, a) != maskBits(t, b)
	case ir.OpICmpSLT:
		result = signExtend(t, a) < signExtend(t, b)
	case ir.OpICmpSLE:
		result = signExtend(t, a) <= signExtend(t, b)
	case ir.OpICmpSGT:
		result = signExtend(t, a) > signExtend(t, b)
	case ir.OpICmpSGE:
		result = signExtend(t, a) >= signExtend(t, b)
	case ir.OpICmpULT:
		result = maskBits(t, a) < maskBits(t, b)
	case ir.OpICmpULE:
		result = maskBits(t, a) <= maskBits(t, b)
	case ir.OpICmpUGT:
		result = maskBits(t, a) > maskBits(t, b)
	case ir.OpICmpUGE:
		result = maskBits(t, a) >= maskBits(t, b)
	}
	if result {
		return 1
	}
	return 0
}

func maskBits(t ir.Type, v uint64) uint64 {
	bits := t.ByteWidth() * 8
	if bits <= 0 || bits >= 64 {
		return v
	}
	return v & ((uint64(1) << uint(bits)) - 1)
}

func signExtend(t ir.Type, v uint64) int64 {
	bits := t.ByteWidth() * 8
	if bits <= 0 || bits >= 64 {
		return int64(v)
	}
	v = maskBits(t, v)
	sign := uint64(1) << uint(bits-1)
	if v&sign != 0 {
		v |= ^uint64(0) << uint(bits)
	}
	return int64(v)
}

func (in *Interp) load(addr uint32, t ir.Type) uint64 {
	width := t.ByteWidth()
	in.ensureMem(addr + uint32(width))
	switch width {
	case 1:
		return uint64(in.mem[addr])
	case 2:
		return uint64(binary.LittleEndian.Uint16(in.mem[addr:]))
	case 4:
		return uint64(binary.LittleEndian.Uint32(in.mem[addr:]))
	case 8:
		return binary.LittleEndian.Uint64(in.mem[addr:])
	default:
		panic(fmt.Sprintf("irsim: unsupported load width %d", width))
	}
}

func (in *Interp) store(addr uint32, t ir.Type, v uint64) {
	width := t.ByteWidth()
	in.ensureMem(addr + uint32(width))
	switch width {
	case 1:
		in.mem[addr] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(in.mem[addr:], uint16(v))
	case 4:
		binary.LittleEndian.PutUint32(in.mem[addr:], uint32(v))
	case 8:
		binary.LittleEndian.PutUint64(in.mem[addr:], v)
	default:
		panic(fmt.Sprintf("irsim: unsupported store width %d", width))
	}
}
