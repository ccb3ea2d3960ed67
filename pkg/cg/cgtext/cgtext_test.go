package cgtext

import (
	"strings"
	"testing"

	"github.com/markuszzz/mycc/pkg/cg"
)

// buildDiamondPhi mirrors regalloc's own fixture: a function computing a
// phi-joined value from a two-way branch, plus a call and a load/store so
// every operand shape in the grammar gets exercised.
func buildDiamondPhi(t *testing.T) *cg.TU {
	t.Helper()
	tu := cg.NewTU()
	tu.AddData(&cg.Data{Name: "g_tbl", Size: 4, Align: 4, Init: []byte{1, 2, 3, 4}})

	f := cg.NewFunc(tu, "pick")
	entry := f.NewBlock()
	tb := f.NewBlock()
	fb := f.NewBlock()
	join := f.NewBlock()
	f.MarkExit(join)

	arg := f.NewInstr(cg.OpArg, cg.CondAL, entry, true)
	arg.SetArgs(cg.HRegArg(0))
	entry.Append(arg)
	f.Args = append(f.Args, arg)

	ld := f.NewInstr(cg.OpLdr, cg.CondAL, entry, true)
	ld.SetArgs(cg.VReg(arg).WithOffset(8))
	entry.Append(ld)

	cmp := f.NewInstr(cg.OpCmp, cg.CondAL, entry, false)
	cmp.SetArgs(cg.VReg(ld), cg.ImmArg(0))
	entry.Append(cmp)
	f.SetBranch(entry, cg.CondGT, tb, fb)

	call := f.NewInstr(cg.OpCall, cg.CondAL, tb, true)
	call.SetArgs(cg.SymArg("helper"), cg.VReg(arg))
	tb.Append(call)
	st := f.NewInstr(cg.OpStr, cg.CondAL, tb, false)
	st.SetArgs(cg.VReg(arg).WithOffset(4), cg.VReg(call))
	tb.Append(st)
	f.SetJump(tb, join)

	movF := f.NewInstr(cg.OpMov, cg.CondAL, fb, true)
	movF.SetArgs(cg.ImmArg(2))
	fb.Append(movF)
	f.SetJump(fb, join)

	phi := f.NewInstr(cg.OpPhi, cg.CondAL, join, true)
	phi.AddPhiArg(call, tb)
	phi.AddPhiArg(movF, fb)
	join.AppendPhi(phi)

	ret := f.NewInstr(cg.OpRet, cg.CondAL, join, false)
	ret.SetArgs(cg.VReg(phi))
	join.Append(ret)

	tu.AddFunc(f)
	return tu
}

func TestPrintThenParseRoundTrips(t *testing.T) {
	tu := buildDiamondPhi(t)
	text1 := Print(tu)

	parsed, err := Parse(strings.NewReader(text1))
	if err != nil {
		t.Fatalf("unexpected parse error:\n%s\ntext:\n%s", err, text1)
	}
	text2 := Print(parsed)

	if text1 != text2 {
		t.Fatalf("round trip mismatch:\n--- first ---\n%s\n--- second ---\n%s", text1, text2)
	}
}

func TestParseRejectsUnknownMnemonic(t *testing.T) {
	src := "define @f() {\nbb0:\n  %v16 = frobnicate #1\n  ret %v16\n}\n"
	if _, err := Parse(strings.NewReader(src)); err == nil {
		t.Fatal("expected an error for an unrecognized mnemonic")
	}
}

func TestParseRejectsOutOfSequenceVReg(t *testing.T) {
	src := "define @f() {\nbb0:\n  %v99 = mov #1\n  ret %v99\n}\n"
	if _, err := Parse(strings.NewReader(src)); err == nil {
		t.Fatal("expected an error for an out-of-sequence vreg number")
	}
}

func TestParseFunctionSignatureAndFrame(t *testing.T) {
	src := "define @caller(%r0, %r1), frame(8), clobber(16) {\n" +
		"bb0:\n" +
		"  %v16 = arg %r0\n" +
		"  %v17 = arg %r1\n" +
		"  %v18 = call @g, %v17, %v16\n" +
		"  ret %v18\n" +
		"}\n"
	tu, err := Parse(strings.NewReader(src))
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	f := tu.FindFunc("caller")
	if f == nil {
		t.Fatal("expected function caller to be present")
	}
	if f.FrameSize != 8 {
		t.Fatalf("expected frame size 8, got %d", f.FrameSize)
	}
	if f.Clobber != 16 {
		t.Fatalf("expected clobber mask 16, got %d", f.Clobber)
	}
	if len(f.Args) != 2 {
		t.Fatalf("expected 2 bound arguments, got %d", len(f.Args))
	}
	call := f.Entry.Instr[2]
	if call.Op != cg.OpCall || call.Args[0].Kind != cg.ArgSym || call.Args[0].Sym != "g" {
		t.Fatalf("expected a call to @g, got %+v", call)
	}
}

func TestPrintEmitsDataDeclaration(t *testing.T) {
	tu := cg.NewTU()
	tu.AddData(&cg.Data{Name: "buf", Size: 16, Align: 4})
	out := Print(tu)
	if !strings.Contains(out, "@buf = size(16), align(4)") {
		t.Fatalf("expected a data declaration line, got:\n%s", out)
	}
}
