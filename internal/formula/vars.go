package formula

import (
	"fmt"
	"sort"
)

// MapVars rebuilds f with every variable replaced by fn(v).
func MapVars(f Formula, fn func(Var) Var) Formula {
	switch e := f.(type) {
	case BoolConst:
		return e
	case Var:
		return fn(e)
	case NotExpr:
		return Not(MapVars(e.Operand, fn))
	case AndExpr:
		ops := make([]Formula, len(e.Operands))
		for i, op := range e.Operands {
			ops[i] = MapVars(op, fn)
		}
		return And(ops...)
	case OrExpr:
		ops := make([]Formula, len(e.Operands))
		for i, op := range e.Operands {
			ops[i] = MapVars(op, fn)
		}
		return Or(ops...)
	case IffExpr:
		return Iff(MapVars(e.Left, fn), MapVars(e.Right, fn))
	case CmpExpr:
		return Compare(e.Op, MapTermVars(e.Left, fn), MapTermVars(e.Right, fn))
	case BitExpr:
		return BitOf(MapTermVars(e.Operand, fn), e.Index)
	default:
		panic(fmt.Sprintf("formula: unexpected formula %T", f))
	}
}

// MapTermVars is MapVars for terms.
func MapTermVars(t Term, fn func(Var) Var) Term {
	switch e := t.(type) {
	case IntConst:
		return e
	case Var:
		return fn(e)
	case ArithExpr:
		return ArithExpr{Op: e.Op, Left: MapTermVars(e.Left, fn), Right: MapTermVars(e.Right, fn)}
	case NegExpr:
		return Neg(MapTermVars(e.Operand, fn))
	default:
		panic(fmt.Sprintf("formula: unexpected term %T", t))
	}
}

// Instantiate binds every variable of f to the SSA index returned by index.
func Instantiate(f Formula, index func(name string) int) Formula {
	return MapVars(f, func(v Var) Var {
		v.Index = index(v.Name)
		return v
	})
}

// InstantiateTerm is Instantiate for terms.
func InstantiateTerm(t Term, index func(name string) int) Term {
	return MapTermVars(t, func(v Var) Var {
		v.Index = index(v.Name)
		return v
	})
}

// Uninstantiate drops the SSA index of every variable of f.
func Uninstantiate(f Formula) Formula {
	return MapVars(f, Var.Uninstantiated)
}

// Walk calls fn for every formula node of f in pre-order. Terms are not
// visited.
func Walk(f Formula, fn func(Formula)) {
	fn(f)
	switch e := f.(type) {
	case NotExpr:
		Walk(e.Operand, fn)
	case AndExpr:
		for _, op := range e.Operands {
			Walk(op, fn)
		}
	case OrExpr:
		for _, op := range e.Operands {
			Walk(op, fn)
		}
	case IffExpr:
		Walk(e.Left, fn)
		Walk(e.Right, fn)
	}
}

// Vars returns the variables of f, sorted and without duplicates.
func Vars(f Formula) []Var {
	set := make(map[Var]struct{})
	Walk(f, func(g Formula) {
		switch e := g.(type) {
		case Var:
			set[e] = struct{}{}
		case CmpExpr:
			termVars(e.Left, set)
			termVars(e.Right, set)
		case BitExpr:
			termVars(e.Operand, set)
		}
	})
	return sortedVars(set)
}

// TermVars returns the variables of t, sorted and without duplicates.
func TermVars(t Term) []Var {
	set := make(map[Var]struct{})
	termVars(t, set)
	return sortedVars(set)
}

func termVars(t Term, set map[Var]struct{}) {
	switch e := t.(type) {
	case Var:
		set[e] = struct{}{}
	case ArithExpr:
		termVars(e.Left, set)
		termVars(e.Right, set)
	case NegExpr:
		termVars(e.Operand, set)
	}
}

func sortedVars(set map[Var]struct{}) []Var {
	vars := make([]Var, 0, len(set))
	for v := range set {
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

// Atoms returns the atomic formulas of f (comparisons, boolean variables and
// bit tests), in order of first occurrence and without duplicates.
func Atoms(f Formula) []Formula {
	var atoms []Formula
	seen := make(map[string]bool)
	Walk(f, func(g Formula) {
		switch g.(type) {
		case Var, CmpExpr, BitExpr:
			key := g.String()
			if !seen[key] {
				seen[key] = true
				atoms = append(atoms, g)
			}
		}
	})
	return atoms
}
