package formula

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"strconv"
)

// ErrSyntax reports an expression outside the formula fragment.
var ErrSyntax = errors.New("unsupported expression")

// Scope resolves variable names to their sorts.
type Scope interface {
	Lookup(name string) (Sort, bool)
}

// Decls is a Scope backed by a map.
type Decls map[string]Sort

func (d Decls) Lookup(name string) (Sort, bool) {
	s, ok := d[name]
	return s, ok
}

// Parse parses src, written in Go expression syntax, as a formula.
func Parse(src string, scope Scope) (Formula, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", src, err)
	}
	return FromExpr(expr, scope)
}

// ParseTerm parses src as an integer term.
func ParseTerm(src string, scope Scope) (Term, error) {
	expr, err := parser.ParseExpr(src)
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", src, err)
	}
	return TermFromExpr(expr, scope)
}

// FromExpr converts a Go expression to a formula.
func FromExpr(e ast.Expr, scope Scope) (Formula, error) {
	n, err := convert(e, scope)
	if err != nil {
		return nil, err
	}
	return asFormula(n, e)
}

// TermFromExpr converts a Go expression to an integer term.
func TermFromExpr(e ast.Expr, scope Scope) (Term, error) {
	n, err := convert(e, scope)
	if err != nil {
		return nil, err
	}
	return asTerm(n, e)
}

// IsBoolExpr reports whether e denotes a boolean in scope. It does not
// validate the rest of the expression.
func IsBoolExpr(e ast.Expr, scope Scope) bool {
	n, err := convert(e, scope)
	return err == nil && isBool(n)
}

func isBool(n any) bool {
	if v, ok := n.(Var); ok {
		return v.Sort == SortBool
	}
	_, ok := n.(Formula)
	return ok
}

func asFormula(n any, e ast.Expr) (Formula, error) {
	if !isBool(n) {
		return nil, fmt.Errorf("%w: %s is not boolean", ErrSyntax, exprString(e))
	}
	return n.(Formula), nil
}

func asTerm(n any, e ast.Expr) (Term, error) {
	if isBool(n) {
		return nil, fmt.Errorf("%w: %s is not an integer", ErrSyntax, exprString(e))
	}
	return n.(Term), nil
}

func convert(e ast.Expr, scope Scope) (any, error) {
	switch e := e.(type) {
	case *ast.ParenExpr:
		return convert(e.X, scope)

	case *ast.Ident:
		switch e.Name {
		case "true":
			return True(), nil
		case "false":
			return False(), nil
		}
		sort, ok := scope.Lookup(e.Name)
		if !ok {
			return nil, fmt.Errorf("%w: undeclared variable %s", ErrSyntax, e.Name)
		}
		return NewVar(e.Name, sort), nil

	case *ast.BasicLit:
		if e.Kind != token.INT {
			return nil, fmt.Errorf("%w: literal %s", ErrSyntax, e.Value)
		}
		v, err := strconv.ParseInt(e.Value, 0, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: literal %s: %v", ErrSyntax, e.Value, err)
		}
		return Int(v), nil

	case *ast.UnaryExpr:
		x, err := convert(e.X, scope)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case token.NOT:
			f, err := asFormula(x, e.X)
			if err != nil {
				return nil, err
			}
			return Not(f), nil
		case token.SUB:
			t, err := asTerm(x, e.X)
			if err != nil {
				return nil, err
			}
			return Neg(t), nil
		case token.ADD:
			return asTerm(x, e.X)
		}

	case *ast.BinaryExpr:
		return convertBinary(e, scope)

	case *ast.CallExpr:
		if fn, ok := e.Fun.(*ast.Ident); ok && fn.Name == "bit" && len(e.Args) == 2 {
			t, err := TermFromExpr(e.Args[0], scope)
			if err != nil {
				return nil, err
			}
			lit, ok := e.Args[1].(*ast.BasicLit)
			if !ok || lit.Kind != token.INT {
				return nil, fmt.Errorf("%w: bit index must be a literal", ErrSyntax)
			}
			i, err := strconv.Atoi(lit.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: bit index %s", ErrSyntax, lit.Value)
			}
			return BitOf(t, i), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrSyntax, exprString(e))
}

func convertBinary(e *ast.BinaryExpr, scope Scope) (any, error) {
	l, err := convert(e.X, scope)
	if err != nil {
		return nil, err
	}
	r, err := convert(e.Y, scope)
	if err != nil {
		return nil, err
	}

	switch e.Op {
	case token.LAND, token.LOR:
		lf, err := asFormula(l, e.X)
		if err != nil {
			return nil, err
		}
		rf, err := asFormula(r, e.Y)
		if err != nil {
			return nil, err
		}
		if e.Op == token.LAND {
			return And(lf, rf), nil
		}
		return Or(lf, rf), nil

	case token.EQL, token.NEQ:
		if isBool(l) != isBool(r) {
			return nil, fmt.Errorf("%w: mismatched operands in %s", ErrSyntax, exprString(e))
		}
		var f Formula
		if isBool(l) {
			f = Iff(l.(Formula), r.(Formula))
		} else {
			f = Eq(l.(Term), r.(Term))
		}
		if e.Op == token.NEQ {
			f = Not(f)
		}
		return f, nil
	}

	lt, err := asTerm(l, e.X)
	if err != nil {
		return nil, err
	}
	rt, err := asTerm(r, e.Y)
	if err != nil {
		return nil, err
	}
	switch e.Op {
	case token.LSS:
		return Lt(lt, rt), nil
	case token.LEQ:
		return Le(lt, rt), nil
	case token.GTR:
		return Gt(lt, rt), nil
	case token.GEQ:
		return Ge(lt, rt), nil
	case token.ADD:
		return Add(lt, rt), nil
	case token.SUB:
		return Sub(lt, rt), nil
	case token.MUL:
		return Mul(lt, rt), nil
	}
	return nil, fmt.Errorf("%w: operator %s", ErrSyntax, e.Op)
}

func exprString(e ast.Expr) string {
	switch e := e.(type) {
	case *ast.Ident:
		return e.Name
	case *ast.BasicLit:
		return e.Value
	case *ast.BinaryExpr:
		return exprString(e.X) + " " + e.Op.String() + " " + exprString(e.Y)
	case *ast.UnaryExpr:
		return e.Op.String() + exprString(e.X)
	case *ast.ParenExpr:
		return "(" + exprString(e.X) + ")"
	case *ast.CallExpr:
		return exprString(e.Fun) + "(...)"
	default:
		return fmt.Sprintf("%T", e)
	}
}
