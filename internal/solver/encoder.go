package solver

import (
	"fmt"
	"sort"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"github.com/gnoverse/impact/internal/formula"
)

// Encoder bit-blasts formulas into an and-inverter circuit. Integers are
// width-bit two's-complement values with wraparound arithmetic.
//
// Every variable is encoded once per Encoder, so formulas encoded by the same
// Encoder share the literals of their common variables.
type Encoder struct {
	c     *logic.C
	width int
	ints  map[formula.Var][]z.Lit
	bools map[formula.Var]z.Lit
}

// NewEncoder returns an encoder over a fresh circuit.
func NewEncoder(width int) *Encoder {
	return &Encoder{
		c:     logic.NewC(),
		width: width,
		ints:  make(map[formula.Var][]z.Lit),
		bools: make(map[formula.Var]z.Lit),
	}
}

// Circuit returns the underlying circuit.
func (e *Encoder) Circuit() *logic.C { return e.c }

// Width returns the integer width in bits.
func (e *Encoder) Width() int { return e.width }

// AddTo adds the clauses of the circuit cones of roots to g and asserts
// every root.
func (e *Encoder) AddTo(g *gini.Gini, roots ...z.Lit) {
	e.c.CnfSince(g, nil, roots...)
	for _, r := range roots {
		g.Add(r)
		g.Add(0)
	}
}

// Formula encodes f and returns its literal.
func (e *Encoder) Formula(f formula.Formula) (z.Lit, error) {
	c := e.c
	switch f := f.(type) {
	case formula.BoolConst:
		if f.Val {
			return c.T, nil
		}
		return c.F, nil

	case formula.Var:
		if f.Sort != formula.SortBool {
			return z.LitNull, fmt.Errorf("%w: int variable %s used as formula", ErrUnsupported, f)
		}
		return e.BoolVar(f), nil

	case formula.NotExpr:
		m, err := e.Formula(f.Operand)
		if err != nil {
			return z.LitNull, err
		}
		return m.Not(), nil

	case formula.AndExpr:
		ms, err := e.formulas(f.Operands)
		if err != nil {
			return z.LitNull, err
		}
		return c.Ands(ms...), nil

	case formula.OrExpr:
		ms, err := e.formulas(f.Operands)
		if err != nil {
			return z.LitNull, err
		}
		return c.Ors(ms...), nil

	case formula.IffExpr:
		l, err := e.Formula(f.Left)
		if err != nil {
			return z.LitNull, err
		}
		r, err := e.Formula(f.Right)
		if err != nil {
			return z.LitNull, err
		}
		return c.Xor(l, r).Not(), nil

	case formula.CmpExpr:
		a, err := e.Term(f.Left)
		if err != nil {
			return z.LitNull, err
		}
		b, err := e.Term(f.Right)
		if err != nil {
			return z.LitNull, err
		}
		switch f.Op {
		case formula.OpEq:
			return e.eq(a, b), nil
		case formula.OpNe:
			return e.eq(a, b).Not(), nil
		case formula.OpLt:
			return e.slt(a, b), nil
		case formula.OpLe:
			return e.slt(b, a).Not(), nil
		case formula.OpGt:
			return e.slt(b, a), nil
		case formula.OpGe:
			return e.slt(a, b).Not(), nil
		}

	case formula.BitExpr:
		bits, err := e.Term(f.Operand)
		if err != nil {
			return z.LitNull, err
		}
		if f.Index < 0 {
			return z.LitNull, fmt.Errorf("%w: negative bit index in %s", ErrUnsupported, f)
		}
		if f.Index >= e.width {
			return bits[e.width-1], nil
		}
		return bits[f.Index], nil
	}
	return z.LitNull, fmt.Errorf("%w: %T", ErrUnsupported, f)
}

// Term encodes t and returns its bits, least significant first.
func (e *Encoder) Term(t formula.Term) ([]z.Lit, error) {
	switch t := t.(type) {
	case formula.IntConst:
		return e.constant(t.Val), nil

	case formula.Var:
		if t.Sort != formula.SortInt {
			return nil, fmt.Errorf("%w: bool variable %s used as term", ErrUnsupported, t)
		}
		return e.IntVar(t), nil

	case formula.NegExpr:
		a, err := e.Term(t.Operand)
		if err != nil {
			return nil, err
		}
		return e.add(e.not(a), e.constant(0), e.c.T), nil

	case formula.ArithExpr:
		a, err := e.Term(t.Left)
		if err != nil {
			return nil, err
		}
		b, err := e.Term(t.Right)
		if err != nil {
			return nil, err
		}
		switch t.Op {
		case formula.OpAdd:
			return e.add(a, b, e.c.F), nil
		case formula.OpSub:
			return e.add(a, e.not(b), e.c.T), nil
		case formula.OpMul:
			return e.mul(a, b), nil
		}
	}
	return nil, fmt.Errorf("%w: %T", ErrUnsupported, t)
}

// IntVar returns the bits of an int variable, allocating inputs on first
// use.
func (e *Encoder) IntVar(v formula.Var) []z.Lit {
	if bits, ok := e.ints[v]; ok {
		return bits
	}
	bits := make([]z.Lit, e.width)
	for i := range bits {
		bits[i] = e.c.Lit()
	}
	e.ints[v] = bits
	return bits
}

// BoolVar returns the literal of a bool variable, allocating it on first
// use.
func (e *Encoder) BoolVar(v formula.Var) z.Lit {
	if m, ok := e.bools[v]; ok {
		return m
	}
	m := e.c.Lit()
	e.bools[v] = m
	return m
}

// Vars returns every variable encoded so far, sorted.
func (e *Encoder) Vars() []formula.Var {
	vars := make([]formula.Var, 0, len(e.ints)+len(e.bools))
	for v := range e.ints {
		vars = append(vars, v)
	}
	for v := range e.bools {
		vars = append(vars, v)
	}
	sort.Slice(vars, func(i, j int) bool {
		if vars[i].Name != vars[j].Name {
			return vars[i].Name < vars[j].Name
		}
		return vars[i].Index < vars[j].Index
	})
	return vars
}

// Model reads the values of every encoded variable from a solver whose
// last call returned sat.
func (e *Encoder) Model(g *gini.Gini) formula.Model {
	m := make(formula.Model, len(e.ints)+len(e.bools))
	for v, bits := range e.ints {
		var u uint64
		for i, b := range bits {
			if LitValue(g, b) {
				u |= 1 << uint(i)
			}
		}
		if e.width < 64 && u&(1<<uint(e.width-1)) != 0 {
			u |= ^uint64(0) << uint(e.width)
		}
		m[v] = int64(u)
	}
	for v, b := range e.bools {
		if LitValue(g, b) {
			m[v] = 1
		} else {
			m[v] = 0
		}
	}
	return m
}

// LitValue reads m from a solver whose last call returned sat. Variables
// the solver never saw are unconstrained and read as false.
func LitValue(g *gini.Gini, m z.Lit) bool {
	if m.Var() > g.MaxVar() {
		return false
	}
	return g.Value(m)
}

func (e *Encoder) formulas(fs []formula.Formula) ([]z.Lit, error) {
	ms := make([]z.Lit, len(fs))
	for i, f := range fs {
		m, err := e.Formula(f)
		if err != nil {
			return nil, err
		}
		ms[i] = m
	}
	return ms, nil
}

func (e *Encoder) constant(v int64) []z.Lit {
	bits := make([]z.Lit, e.width)
	for i := range bits {
		if i < 64 && uint64(v)>>uint(i)&1 == 1 {
			bits[i] = e.c.T
		} else {
			bits[i] = e.c.F
		}
	}
	return bits
}

func (e *Encoder) not(a []z.Lit) []z.Lit {
	out := make([]z.Lit, len(a))
	for i, m := range a {
		out[i] = m.Not()
	}
	return out
}

// add is a ripple-carry adder with carry-in carry.
func (e *Encoder) add(a, b []z.Lit, carry z.Lit) []z.Lit {
	c := e.c
	out := make([]z.Lit, e.width)
	for i := range out {
		axb := c.Xor(a[i], b[i])
		out[i] = c.Xor(axb, carry)
		carry = c.Or(c.And(a[i], b[i]), c.And(carry, axb))
	}
	return out
}

// mul is a shift-add multiplier truncated to the width.
func (e *Encoder) mul(a, b []z.Lit) []z.Lit {
	c := e.c
	acc := e.constant(0)
	for i := 0; i < e.width; i++ {
		partial := make([]z.Lit, e.width)
		for j := range partial {
			if j < i {
				partial[j] = c.F
			} else {
				partial[j] = c.And(a[j-i], b[i])
			}
		}
		acc = e.add(acc, partial, c.F)
	}
	return acc
}

func (e *Encoder) eq(a, b []z.Lit) z.Lit {
	c := e.c
	ms := make([]z.Lit, len(a))
	for i := range a {
		ms[i] = c.Xor(a[i], b[i]).Not()
	}
	return c.Ands(ms...)
}

// slt is signed less-than: unsigned comparison with the sign bits flipped.
func (e *Encoder) slt(a, b []z.Lit) z.Lit {
	c := e.c
	lt := c.F
	last := e.width - 1
	for i := 0; i <= last; i++ {
		ai, bi := a[i], b[i]
		if i == last {
			ai, bi = ai.Not(), bi.Not()
		}
		lt = c.Or(c.And(ai.Not(), bi), c.And(c.Xor(ai, bi).Not(), lt))
	}
	return lt
}
