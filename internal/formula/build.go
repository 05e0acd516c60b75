package formula

// True returns the constant true formula.
func True() Formula { return BoolConst{Val: true} }

// False returns the constant false formula.
func False() Formula { return BoolConst{Val: false} }

// Bool returns the constant formula for b.
func Bool(b bool) Formula { return BoolConst{Val: b} }

// Int returns an integer literal.
func Int(v int64) Term { return IntConst{Val: v} }

// NewVar returns an uninstantiated variable.
func NewVar(name string, sort Sort) Var {
	return Var{Name: name, Index: NoIndex, Sort: sort}
}

// IndexedVar returns the variable name@index.
func IndexedVar(name string, index int, sort Sort) Var {
	return Var{Name: name, Index: index, Sort: sort}
}

// IsTrue reports whether f is the constant true.
func IsTrue(f Formula) bool {
	c, ok := f.(BoolConst)
	return ok && c.Val
}

// IsFalse reports whether f is the constant false.
func IsFalse(f Formula) bool {
	c, ok := f.(BoolConst)
	return ok && !c.Val
}

// Not negates f. Double negations cancel and comparisons are negated in
// place.
func Not(f Formula) Formula {
	switch e := f.(type) {
	case BoolConst:
		return BoolConst{Val: !e.Val}
	case NotExpr:
		return e.Operand
	case CmpExpr:
		return CmpExpr{Op: e.Op.Negate(), Left: e.Left, Right: e.Right}
	}
	return NotExpr{Operand: f}
}

// And conjoins fs. Nested conjunctions are flattened, true operands are
// dropped, duplicates removed, and any false operand (or an operand next to
// its own negation) makes the result false.
func And(fs ...Formula) Formula {
	ops, absorbed := collect(fs, true)
	if absorbed {
		return False()
	}
	switch len(ops) {
	case 0:
		return True()
	case 1:
		return ops[0]
	}
	return AndExpr{Operands: ops}
}

// Or disjoins fs, dually to And.
func Or(fs ...Formula) Formula {
	ops, absorbed := collect(fs, false)
	if absorbed {
		return True()
	}
	switch len(ops) {
	case 0:
		return False()
	case 1:
		return ops[0]
	}
	return OrExpr{Operands: ops}
}

// collect flattens operands of a conjunction (conj) or disjunction (!conj).
// It reports absorbed when the absorbing constant was found.
func collect(fs []Formula, conj bool) ([]Formula, bool) {
	var ops []Formula
	seen := make(map[string]bool)
	var walk func(fs []Formula) bool
	walk = func(fs []Formula) bool {
		for _, f := range fs {
			switch e := f.(type) {
			case BoolConst:
				if e.Val != conj {
					return true
				}
				continue
			case AndExpr:
				if conj {
					if walk(e.Operands) {
						return true
					}
					continue
				}
			case OrExpr:
				if !conj {
					if walk(e.Operands) {
						return true
					}
					continue
				}
			}
			key := f.String()
			if seen[key] {
				continue
			}
			if seen[Not(f).String()] {
				return true
			}
			seen[key] = true
			ops = append(ops, f)
		}
		return false
	}
	if walk(fs) {
		return nil, true
	}
	return ops, false
}

// Implies returns a => b.
func Implies(a, b Formula) Formula {
	return Or(Not(a), b)
}

// Iff returns a <=> b.
func Iff(a, b Formula) Formula {
	switch {
	case IsTrue(a):
		return b
	case IsTrue(b):
		return a
	case IsFalse(a):
		return Not(b)
	case IsFalse(b):
		return Not(a)
	case a.String() == b.String():
		return True()
	}
	return IffExpr{Left: a, Right: b}
}

func cmp(op CmpOp, l, r Term) Formula {
	return CmpExpr{Op: op, Left: l, Right: r}
}

// Eq returns l == r.
func Eq(l, r Term) Formula { return cmp(OpEq, l, r) }

// Ne returns l != r.
func Ne(l, r Term) Formula { return cmp(OpNe, l, r) }

// Lt returns l < r.
func Lt(l, r Term) Formula { return cmp(OpLt, l, r) }

// Le returns l <= r.
func Le(l, r Term) Formula { return cmp(OpLe, l, r) }

// Gt returns l > r.
func Gt(l, r Term) Formula { return cmp(OpGt, l, r) }

// Ge returns l >= r.
func Ge(l, r Term) Formula { return cmp(OpGe, l, r) }

// Compare returns the comparison l op r.
func Compare(op CmpOp, l, r Term) Formula { return cmp(op, l, r) }

// Add returns l + r.
func Add(l, r Term) Term { return ArithExpr{Op: OpAdd, Left: l, Right: r} }

// Sub returns l - r.
func Sub(l, r Term) Term { return ArithExpr{Op: OpSub, Left: l, Right: r} }

// Mul returns l * r.
func Mul(l, r Term) Term { return ArithExpr{Op: OpMul, Left: l, Right: r} }

// Neg returns -t.
func Neg(t Term) Term {
	switch e := t.(type) {
	case IntConst:
		return IntConst{Val: -e.Val}
	case NegExpr:
		return e.Operand
	}
	return NegExpr{Operand: t}
}

// BitOf returns the formula "bit i of t is set".
func BitOf(t Term, i int) Formula {
	if c, ok := t.(IntConst); ok && i < 64 {
		return Bool(uint64(c.Val)>>uint(i)&1 == 1)
	}
	return BitExpr{Operand: t, Index: i}
}

// Equal reports whether a and b are structurally equal.
func Equal(a, b Formula) bool {
	return a.String() == b.String()
}
