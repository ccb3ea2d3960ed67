package irsim

import (
	"testing"

	"github.com/markuszzz/mycc/pkg/ir"
)

// buildSumLoop builds: int sum(int n) { int s=0; while (n>0) { s+=n; n--; } return s; }
func buildSumLoop(t *testing.T) *ir.TU {
	t.Helper()
	tu := ir.NewTU()
	f := ir.NewFunc(tu, "sum", ir.I32, []ir.Type{ir.I32}, false)
	entry := f.NewBlock()
	hdr := f.NewBlock()
	body := f.NewBlock()
	exit := f.NewBlock()
	f.MarkExit(exit)

	n0, err := f.NewGetParam(entry, 0)
	if err != nil {
		t.Fatal(err)
	}
	zero, _ := f.NewConst(entry, ir.I32, 0)
	if err := f.SetJump(entry, hdr); err != nil {
		t.Fatal(err)
	}

	nPhi, _ := f.NewPhi(hdr, ir.I32)
	sPhi, _ := f.NewPhi(hdr, ir.I32)
	cond, err := f.NewCompare(hdr, ir.OpICmpSGT, nPhi, zero)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetBranch(hdr, cond, body, exit); err != nil {
		t.Fatal(err)
	}

	sNext, err := f.NewBinOp(body, ir.OpAdd, sPhi, nPhi)
	if err != nil {
		t.Fatal(err)
	}
	one, _ := f.NewConst(body, ir.I32, 1)
	nNext, err := f.NewBinOp(body, ir.OpSub, nPhi, one)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetJump(body, hdr); err != nil {
		t.Fatal(err)
	}

	if err := f.AddPhiArg(nPhi, n0, entry); err != nil {
		t.Fatal(err)
	}
	if err := f.AddPhiArg(nPhi, nNext, body); err != nil {
		t.Fatal(err)
	}
	if err := f.AddPhiArg(sPhi, zero, entry); err != nil {
		t.Fatal(err)
	}
	if err := f.AddPhiArg(sPhi, sNext, body); err != nil {
		t.Fatal(err)
	}
	if err := f.SetReturn(exit, sPhi); err != nil {
		t.Fatal(err)
	}
	tu.AddFunc(f)
	return tu
}

func TestSumLoop(t *testing.T) {
	tu := buildSumLoop(t)
	in := New(tu)
	got, err := in.Run("sum", []uint64{5})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 15 {
		t.Fatalf("sum(5) = %d, want 15", got)
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	tu := ir.NewTU()
	f := ir.NewFunc(tu, "store_load", ir.I32, nil, false)
	bb := f.NewBlock()
	f.MarkExit(bb)
	addr, err := f.NewAlloca(bb, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	val, _ := f.NewConst(bb, ir.I32, 0xDEADBEEF&0xFFFFFFFF)
	if _, err := f.NewStore(bb, addr, val); err != nil {
		t.Fatal(err)
	}
	loaded, err := f.NewLoad(bb, ir.I32, addr)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetReturn(bb, loaded); err != nil {
		t.Fatal(err)
	}
	tu.AddFunc(f)

	in := New(tu)
	got, err := in.Run("store_load", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Fatalf("store_load() = %#x, want 0xDEADBEEF", got)
	}
}

func TestRecursiveCall(t *testing.T) {
	tu := ir.NewTU()
	f := ir.NewFunc(tu, "fact", ir.I32, []ir.Type{ir.I32}, false)
	entry := f.NewBlock()
	baseBB := f.NewBlock()
	recBB := f.NewBlock()
	f.MarkExit(baseBB)
	f.MarkExit(recBB)

	n, err := f.NewGetParam(entry, 0)
	if err != nil {
		t.Fatal(err)
	}
	one, _ := f.NewConst(entry, ir.I32, 1)
	cond, err := f.NewCompare(entry, ir.OpICmpSLE, n, one)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetBranch(entry, cond, baseBB, recBB); err != nil {
		t.Fatal(err)
	}
	if err := f.SetReturn(baseBB, one); err != nil {
		t.Fatal(err)
	}

	nMinus1, err := f.NewBinOp(recBB, ir.OpSub, n, one)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := f.NewCall(recBB, ir.I32, "fact", []*ir.Node{nMinus1}, []ir.Type{ir.I32}, false)
	if err != nil {
		t.Fatal(err)
	}
	result, err := f.NewBinOp(recBB, ir.OpMul, n, rec)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.SetReturn(recBB, result); err != nil {
		t.Fatal(err)
	}
	tu.AddFunc(f)

	in := New(tu)
	got, err := in.Run("fact", []uint64{6})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got != 720 {
		t.Fatalf("fact(6) = %d, want 720", got)
	}
}
