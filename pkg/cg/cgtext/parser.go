package cgtext

import (
	"io"

	"github.com/markuszzz/mycc/pkg/cg"
	"github.com/markuszzz/mycc/pkg/diag"
)

// rawOperandKind identifies which field of rawOperand is meaningful.
type rawOperandKind int

const (
	rawRegH rawOperandKind = iota
	rawRegV
	rawImm
	rawSym
	rawMem
)

type rawOperand struct {
	kind rawOperandKind
	n    int64  // rawRegH/rawRegV (register number), rawImm (value)
	sym  string // rawSym
	// rawMem: base is the addressed register (rawRegH or rawRegV), off its
	// byte displacement.
	base   *rawOperand
	off    int
	hasOff bool
}

type rawPhiArg struct {
	vreg    int64
	blockID int64
}

type rawInstr struct {
	resultVReg   int64 // meaningful iff hasResult
	hasResult    bool
	resultIsHReg bool // true: result token was %rN; false: %vN
	op           cg.Op
	cond         cg.CondCode
	isPhi        bool
	operands     []rawOperand
	phiArgs      []rawPhiArg

	instr *cg.Instr // filled in during buildFunc
}

type rawBlock struct {
	id       int64
	instrs   []*rawInstr
	hasBr    bool
	brCond   cg.CondCode
	brTarget [2]int64
	brN      int

	bb *cg.BB
}

type rawFunc struct {
	name     string
	argRegs  []int64
	hasFrame bool
	frame    int64
	hasClob  bool
	clobber  int64
	blocks   []*rawBlock
}

type rawDecl struct {
	name    string
	size    int64
	align   int64
	hasInit bool
	init    []byte
}

// parser is a one-token-lookahead recursive descent parser over the
// textual CG IR grammar (spec.md §6).
type parser struct {
	lex *lexer
	cur token
}

func newParser(r io.Reader) (*parser, error) {
	p := &parser{lex: newLexer(r)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

func (p *parser) expect(k tokKind, what string) (token, error) {
	if p.cur.kind != k {
		return token{}, diag.At(diag.ParseFailure, p.cur.pos, "expected %s", what)
	}
	tok := p.cur
	return tok, p.advance()
}

// Parse reads a whole translation unit from r and returns the cg.TU it
// describes.
func Parse(r io.Reader) (*cg.TU, error) {
	p, err := newParser(r)
	if err != nil {
		return nil, err
	}

	var decls []*rawDecl
	var funcs []*rawFunc
	for p.cur.kind != tokEOF {
		if p.cur.kind == tokIdent && p.cur.text == "define" {
			f, err := p.parseFunc()
			if err != nil {
				return nil, err
			}
			funcs = append(funcs, f)
			continue
		}
		if p.cur.kind == tokSym {
			d, err := p.parseDecl()
			if err != nil {
				return nil, err
			}
			decls = append(decls, d)
			continue
		}
		return nil, diag.At(diag.ParseFailure, p.cur.pos, "expected a data declaration or a function")
	}

	tu := cg.NewTU()
	for _, d := range decls {
		tu.AddData(&cg.Data{Name: d.name, Size: int(d.size), Align: int(d.align), Init: d.init})
	}
	for _, rf := range funcs {
		f, err := buildFunc(tu, rf)
		if err != nil {
			return nil, err
		}
		tu.AddFunc(f)
	}
	return tu, nil
}

func (p *parser) parseDecl() (*rawDecl, error) {
	name, err := p.expect(tokSym, "a symbol name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEquals, "'='"); err != nil {
		return nil, err
	}
	if err := p.expectIdent("size"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	size, err := p.expect(tokNumber, "a size")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokComma, "','"); err != nil {
		return nil, err
	}
	if err := p.expectIdent("align"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	align, err := p.expect(tokNumber, "an alignment")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}

	d := &rawDecl{name: name.text, size: size.num, align: align.num}
	if p.cur.kind == tokComma {
		p.advance()
		if err := p.expectIdent("init"); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokLParen, "'('"); err != nil {
			return nil, err
		}
		d.hasInit = true
		for {
			b, err := p.expect(tokNumber, "a byte value")
			if err != nil {
				return nil, err
			}
			d.init = append(d.init, byte(b.num))
			if p.cur.kind != tokComma {
				break
			}
			p.advance()
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (p *parser) expectIdent(word string) error {
	if p.cur.kind != tokIdent || p.cur.text != word {
		return diag.At(diag.ParseFailure, p.cur.pos, "expected %q", word)
	}
	return p.advance()
}

func (p *parser) parseFunc() (*rawFunc, error) {
	if err := p.expectIdent("define"); err != nil {
		return nil, err
	}
	name, err := p.expect(tokSym, "a function name")
	if err != nil {
		return nil, err
	}
	rf := &rawFunc{name: name.text}

	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	for p.cur.kind != tokRParen {
		reg, err := p.expect(tokRegH, "a hardware register")
		if err != nil {
			return nil, err
		}
		rf.argRegs = append(rf.argRegs, reg.num)
		if p.cur.kind != tokComma {
			break
		}
		p.advance()
	}
	if _, err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}

	for p.cur.kind == tokComma {
		p.advance()
		switch {
		case p.cur.kind == tokIdent && p.cur.text == "frame":
			p.advance()
			if _, err := p.expect(tokLParen, "'('"); err != nil {
				return nil, err
			}
			n, err := p.expect(tokNumber, "a frame size")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			rf.hasFrame, rf.frame = true, n.num
		case p.cur.kind == tokIdent && p.cur.text == "clobber":
			p.advance()
			if _, err := p.expect(tokLParen, "'('"); err != nil {
				return nil, err
			}
			n, err := p.expect(tokNumber, "a clobber mask")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRParen, "')'"); err != nil {
				return nil, err
			}
			rf.hasClob, rf.clobber = true, n.num
		default:
			return nil, diag.At(diag.ParseFailure, p.cur.pos, "expected 'frame' or 'clobber'")
		}
	}

	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return nil, err
	}
	for p.cur.kind != tokRBrace {
		b, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		rf.blocks = append(rf.blocks, b)
	}
	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return rf, nil
}

func (p *parser) parseBlock() (*rawBlock, error) {
	label, err := p.expect(tokIdent, "a block label")
	if err != nil {
		return nil, err
	}
	id, ok := blockLabelID(label.text)
	if !ok {
		return nil, diag.At(diag.ParseFailure, label.pos, "malformed block label %q", label.text)
	}
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return nil, err
	}

	b := &rawBlock{id: id}
	for p.startsInstr() {
		in, err := p.parseInstr()
		if err != nil {
			return nil, err
		}
		b.instrs = append(b.instrs, in)
	}
	if p.cur.kind == tokIdent && p.cur.text == "branch" {
		if err := p.parseBranch(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// startsInstr reports whether the current token can begin an instruction
// line, as opposed to a following block label or the function's closing
// brace.
func (p *parser) startsInstr() bool {
	if p.cur.kind == tokRegV || p.cur.kind == tokRegH {
		return true
	}
	if p.cur.kind != tokIdent || p.cur.text == "branch" {
		return false
	}
	_, looksLikeLabel := blockLabelID(p.cur.text)
	return !looksLikeLabel
}

func blockLabelID(text string) (int64, bool) {
	if len(text) < 3 || text[:2] != "bb" {
		return 0, false
	}
	digits := text[2:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	if digits == "" {
		return 0, false
	}
	return parseDecimal(digits), true
}

func (p *parser) parseBranch(b *rawBlock) error {
	if err := p.expectIdent("branch"); err != nil {
		return err
	}
	cond := cg.CondAL
	if p.cur.kind == tokLBrace {
		c, err := p.parseCondGroup()
		if err != nil {
			return err
		}
		cond = c
	}
	ref, err := p.expect(tokBlockRef, "a block reference")
	if err != nil {
		return err
	}
	b.hasBr, b.brCond = true, cond
	b.brTarget[0] = ref.num
	b.brN = 1
	if p.cur.kind == tokComma {
		p.advance()
		ref2, err := p.expect(tokBlockRef, "a second block reference")
		if err != nil {
			return err
		}
		b.brTarget[1] = ref2.num
		b.brN = 2
	}
	return nil
}

func (p *parser) parseCondGroup() (cg.CondCode, error) {
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return 0, err
	}
	id, err := p.expect(tokIdent, "a condition code")
	if err != nil {
		return 0, err
	}
	c, ok := conds[id.text]
	if !ok {
		return 0, diag.At(diag.ParseFailure, id.pos, "unrecognized condition code %q", id.text)
	}
	if _, err := p.expect(tokRBrace, "'}'"); err != nil {
		return 0, err
	}
	return c, nil
}

// parseInstr parses one `[%vN =] op[{cond}] operand, …` or `%vN = phi
// [%vM, %bbX], …` line.
func (p *parser) parseInstr() (*rawInstr, error) {
	in := &rawInstr{resultVReg: -1}
	if p.cur.kind == tokRegV || p.cur.kind == tokRegH {
		reg := p.cur
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(tokEquals, "'='"); err != nil {
			return nil, err
		}
		in.hasResult, in.resultVReg, in.resultIsHReg = true, reg.num, reg.kind == tokRegH
	}

	if p.cur.kind == tokIdent && p.cur.text == "phi" {
		p.advance()
		in.isPhi = true
		if !in.hasResult || in.resultIsHReg {
			return nil, diag.At(diag.ParseFailure, p.cur.pos, "phi must assign a virtual-register result")
		}
		for {
			if _, err := p.expect(tokLBracket, "'['"); err != nil {
				return nil, err
			}
			v, err := p.expect(tokRegV, "a phi value")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokComma, "','"); err != nil {
				return nil, err
			}
			blk, err := p.expect(tokBlockRef, "a predecessor block")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket, "']'"); err != nil {
				return nil, err
			}
			in.phiArgs = append(in.phiArgs, rawPhiArg{vreg: v.num, blockID: blk.num})
			if p.cur.kind != tokComma {
				break
			}
			p.advance()
		}
		return in, nil
	}

	mnem, err := p.expect(tokIdent, "an instruction mnemonic")
	if err != nil {
		return nil, err
	}
	op, ok := mnemonics[mnem.text]
	if !ok {
		return nil, diag.At(diag.ParseFailure, mnem.pos, "unrecognized mnemonic %q", mnem.text)
	}
	in.op = op
	in.cond = cg.CondAL
	if p.cur.kind == tokLBrace {
		c, err := p.parseCondGroup()
		if err != nil {
			return nil, err
		}
		in.cond = c
	}

	for isOperandStart(p.cur.kind) {
		opnd, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		in.operands = append(in.operands, opnd)
		if p.cur.kind != tokComma {
			break
		}
		p.advance()
	}
	return in, nil
}

func isOperandStart(k tokKind) bool {
	switch k {
	case tokRegH, tokRegV, tokImm, tokSym, tokLBracket:
		return true
	default:
		return false
	}
}

func (p *parser) parseOperand() (rawOperand, error) {
	switch p.cur.kind {
	case tokRegH:
		n := p.cur.num
		return rawOperand{kind: rawRegH, n: n}, p.advance()
	case tokRegV:
		n := p.cur.num
		return rawOperand{kind: rawRegV, n: n}, p.advance()
	case tokImm:
		n := p.cur.num
		return rawOperand{kind: rawImm, n: n}, p.advance()
	case tokSym:
		s := p.cur.text
		return rawOperand{kind: rawSym, sym: s}, p.advance()
	case tokLBracket:
		return p.parseMemOperand()
	default:
		return rawOperand{}, diag.At(diag.ParseFailure, p.cur.pos, "expected an operand")
	}
}

func (p *parser) parseMemOperand() (rawOperand, error) {
	if _, err := p.expect(tokLBracket, "'['"); err != nil {
		return rawOperand{}, err
	}
	var base rawOperand
	switch p.cur.kind {
	case tokRegH:
		base = rawOperand{kind: rawRegH, n: p.cur.num}
	case tokRegV:
		base = rawOperand{kind: rawRegV, n: p.cur.num}
	default:
		return rawOperand{}, diag.At(diag.ParseFailure, p.cur.pos, "expected a base register")
	}
	if err := p.advance(); err != nil {
		return rawOperand{}, err
	}
	mem := rawOperand{kind: rawMem, base: &base}
	if p.cur.kind == tokComma {
		p.advance()
		off, err := p.expect(tokImm, "an offset")
		if err != nil {
			return rawOperand{}, err
		}
		mem.off, mem.hasOff = int(off.n), true
	}
	if _, err := p.expect(tokRBracket, "']'"); err != nil {
		return rawOperand{}, err
	}
	return mem, nil
}
