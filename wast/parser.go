// Package wast's parser type is the shared cursor used by ParseModule
// and ParseScript: a one-token lookahead over a Scanner plus the
// expect/maybe helpers the grammar productions in parser_module.go and
// parser_script.go build on. Failures panic with a *SyntaxError that
// the entry points recover.
package wast

import (
	"fmt"
	"math"
	"math/big"
)

func anyKind(t TokenKind, kinds []TokenKind) bool {
	for _, k := range kinds {
		if t == k {
			return true
		}
	}
	return false
}

type parser struct {
	s   *Scanner
	tok *Token
}

// start primes the cursor and the scanner's lookahead.
func (p *parser) start() {
	p.scan()
	p.scan()
}

func (p *parser) scan() {
	p.tok = p.s.token()
	if _, err := p.s.Scan(); err != nil {
		panic(err)
	}
}

func (p *parser) peek() TokenKind {
	return p.s.tok
}

func (p *parser) peekSExpr(word TokenKind) bool {
	return p.tok.Kind == '(' && p.peek() == word
}

func (p *parser) scanSExpr(word TokenKind) bool {
	if p.peekSExpr(word) {
		p.scan()
		p.scan()
		return true
	}
	return false
}

func (p *parser) expectSExpr(word TokenKind) {
	p.expect('(', word)
}

func (p *parser) closeSExpr() {
	p.expect(')')
}

func (p *parser) errorf(s string, args ...interface{}) error {
	return &SyntaxError{
		Line:    p.tok.Pos.Line,
		Column:  p.tok.Pos.Column,
		Message: fmt.Sprintf(s, args...),
	}
}

// expect consumes each of kinds in order, returning the value of the
// last token consumed.
func (p *parser) expect(kinds ...TokenKind) interface{} {
	var v interface{}
	for _, k := range kinds {
		if p.tok.Kind != k {
			panic(p.errorf("expected %v", k))
		}
		v = p.tok.Value
		p.scan()
	}
	return v
}

// maybe is expect without the failure: it stops at the first kind that
// doesn't match.
func (p *parser) maybe(kinds ...TokenKind) interface{} {
	var v interface{}
	for _, k := range kinds {
		if p.tok.Kind != k {
			break
		}
		v = p.tok.Value
		p.scan()
	}
	return v
}

// mustI converts a scanned integer literal to its int64 value,
// panicking with a SyntaxError when the literal does not fit.
func (p *parser) mustI(b *BigInt) int64 {
	v, err := b.I()
	if err != nil {
		panic(p.errorf("integer literal out of range"))
	}
	return v
}

func (p *parser) expectI(kinds ...TokenKind) int64 {
	return p.mustI(p.expect(kinds...).(*BigInt))
}

// I32, I64, F32, and F64 convert the current token's literal value to
// the target numeric type, reporting false for a non-numeric token.

func (p *parser) I32() (int32, bool) {
	v, ok := p.tok.Value.(*BigInt)
	if !ok {
		return 0, false
	}
	// Accept the signed and unsigned 32-bit ranges; an unsigned literal
	// above math.MaxInt64 comes back from mustI wrapped negative.
	n := p.mustI(v)
	if n < math.MinInt32 || n > math.MaxUint32 || (n < 0 && v.text[0] != '-') {
		panic(p.errorf("integer literal out of range"))
	}
	return int32(n), true
}

func (p *parser) I64() (int64, bool) {
	v, ok := p.tok.Value.(*BigInt)
	if !ok {
		return 0, false
	}
	return p.mustI(v), true
}

// bigFloatValue converts a scanned integer or float literal to a
// *big.Float, so F32/F64 can round it at their own precision.
func (p *parser) bigFloatValue() (*big.Float, bool) {
	switch v := p.tok.Value.(type) {
	case *BigInt:
		bf, err := v.F()
		if err != nil {
			panic(p.errorf("malformed numeric literal"))
		}
		return bf, true
	case *big.Float:
		// TODO: range checks
		return v, true
	default:
		return nil, false
	}
}

func (p *parser) F32() (float32, bool) {
	if v, ok := p.tok.Value.(float64); ok {
		return demoteNaN32(v), true
	}
	bf, ok := p.bigFloatValue()
	if !ok {
		return 0, false
	}
	f, _ := bf.Float32()
	return f, true
}

func (p *parser) F64() (float64, bool) {
	if v, ok := p.tok.Value.(float64); ok {
		return v, true
	}
	bf, ok := p.bigFloatValue()
	if !ok {
		return 0, false
	}
	f, _ := bf.Float64()
	return f, true
}

// demoteNaN32 narrows a scanned float64 to f32 width. The scanner
// stores every nan:0x payload at f64 width, so a NaN narrows by moving
// the quiet bit and the low payload bits into the f32 mantissa rather
// than by value conversion (which would lose the payload).
func demoteNaN32(v float64) float32 {
	if !math.IsNaN(v) {
		return float32(v)
	}

	fbits := math.Float64bits(v)
	sign := uint32(fbits >> 63)
	payload := uint32(fbits&0x7fffff) | uint32(fbits>>29)&0x00400000
	return math.Float32frombits(sign<<31 | 0x7f800000 | payload)
}
