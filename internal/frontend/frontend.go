// Package frontend lowers a single Go function to a control-flow automaton.
//
// The accepted subset covers int and bool locals and parameters,
// assignments, if/else, for loops with break and continue, and return.
// A few intrinsics give the verification semantics:
//
//	assume(c)      only continue when c holds
//	assert(c)      reach the error location when c fails
//	reachError()   reach the error location
//	panic(...)     reach the error location
//	nondet()       an arbitrary int
//	nondetBool()   an arbitrary bool
package frontend

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"os"

	"golang.org/x/tools/go/cfg"

	"github.com/gnoverse/impact/internal/cfa"
	"github.com/gnoverse/impact/internal/formula"
)

const (
	ErrorLocation = "error"
	ExitLocation  = "exit"
)

var (
	ErrUnsupported = errors.New("unsupported construct")
	ErrNoFunction  = errors.New("function not found")
)

// Error is a lowering error at a source position.
type Error struct {
	Pos token.Position
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Pos, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// FromFile lowers the function funcName of the Go file at path. An empty
// funcName selects main.
func FromFile(path, funcName string) (*cfa.CFA, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromSource(path, src, funcName)
}

// FromSource is FromFile for in-memory source.
func FromSource(filename string, src []byte, funcName string) (*cfa.CFA, error) {
	if funcName == "" {
		funcName = "main"
	}
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, 0)
	if err != nil {
		return nil, err
	}

	var fn *ast.FuncDecl
	for _, decl := range file.Decls {
		if d, ok := decl.(*ast.FuncDecl); ok && d.Recv == nil && d.Name.Name == funcName && d.Body != nil {
			fn = d
			break
		}
	}
	if fn == nil {
		return nil, fmt.Errorf("%w: %s in %s", ErrNoFunction, funcName, filename)
	}

	l := &lowerer{
		fset:  fset,
		b:     cfa.NewBuilder(funcName),
		fresh: make(map[int32]int),
	}
	if err := l.lower(fn); err != nil {
		return nil, err
	}
	return l.b.Build()
}

type lowerer struct {
	fset  *token.FileSet
	b     *cfa.Builder
	fresh map[int32]int
}

func (l *lowerer) errorf(pos token.Pos, format string, args ...any) error {
	return &Error{Pos: l.fset.Position(pos), Err: fmt.Errorf(format, args...)}
}

func (l *lowerer) lower(fn *ast.FuncDecl) error {
	if err := l.check(fn.Body); err != nil {
		return err
	}
	if err := l.declare(fn); err != nil {
		return err
	}

	g := cfg.New(fn.Body, mayReturn)
	l.b.SetEntry(blockLocation(g.Blocks[0]))
	l.b.MarkTarget(ErrorLocation)
	l.b.Location(ExitLocation)

	for _, blk := range g.Blocks {
		if !blk.Live {
			continue
		}
		if err := l.block(blk); err != nil {
			return err
		}
	}
	return nil
}

// check rejects statements outside the supported subset.
func (l *lowerer) check(body *ast.BlockStmt) error {
	var err error
	ast.Inspect(body, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		switch n := n.(type) {
		case *ast.SwitchStmt, *ast.TypeSwitchStmt:
			err = l.errorf(n.Pos(), "%w: switch", ErrUnsupported)
		case *ast.SelectStmt:
			err = l.errorf(n.Pos(), "%w: select", ErrUnsupported)
		case *ast.RangeStmt:
			err = l.errorf(n.Pos(), "%w: range", ErrUnsupported)
		case *ast.GoStmt:
			err = l.errorf(n.Pos(), "%w: go", ErrUnsupported)
		case *ast.DeferStmt:
			err = l.errorf(n.Pos(), "%w: defer", ErrUnsupported)
		case *ast.SendStmt:
			err = l.errorf(n.Pos(), "%w: send", ErrUnsupported)
		case *ast.FuncLit:
			err = l.errorf(n.Pos(), "%w: function literal", ErrUnsupported)
		case *ast.BranchStmt:
			if n.Tok == token.GOTO || n.Tok == token.FALLTHROUGH {
				err = l.errorf(n.Pos(), "%w: %s", ErrUnsupported, n.Tok)
			}
		}
		return err == nil
	})
	return err
}

// declare collects parameters and locals with their sorts. Redeclaring a
// name in an inner scope reuses the variable if the sort agrees.
func (l *lowerer) declare(fn *ast.FuncDecl) error {
	for _, field := range fn.Type.Params.List {
		sort, err := l.typeSort(field.Type)
		if err != nil {
			return err
		}
		for _, name := range field.Names {
			l.b.DeclareVar(name.Name, sort)
		}
	}

	var err error
	ast.Inspect(fn.Body, func(n ast.Node) bool {
		if err != nil {
			return false
		}
		switch n := n.(type) {
		case *ast.AssignStmt:
			if n.Tok != token.DEFINE {
				return true
			}
			for i, lhs := range n.Lhs {
				id, ok := lhs.(*ast.Ident)
				if !ok || id.Name == "_" || i >= len(n.Rhs) {
					continue
				}
				l.b.DeclareVar(id.Name, l.exprSort(n.Rhs[i]))
			}
		case *ast.ValueSpec:
			for i, id := range n.Names {
				if id.Name == "_" {
					continue
				}
				var sort formula.Sort
				switch {
				case n.Type != nil:
					sort, err = l.typeSort(n.Type)
					if err != nil {
						return false
					}
				case i < len(n.Values):
					sort = l.exprSort(n.Values[i])
				default:
					err = l.errorf(id.Pos(), "%w: untyped declaration of %s", ErrUnsupported, id.Name)
					return false
				}
				l.b.DeclareVar(id.Name, sort)
			}
		}
		return true
	})
	return err
}

func (l *lowerer) typeSort(e ast.Expr) (formula.Sort, error) {
	if id, ok := e.(*ast.Ident); ok {
		switch id.Name {
		case "int":
			return formula.SortInt, nil
		case "bool":
			return formula.SortBool, nil
		}
	}
	return 0, l.errorf(e.Pos(), "%w: type %s", ErrUnsupported, types.ExprString(e))
}

func (l *lowerer) exprSort(e ast.Expr) formula.Sort {
	switch intrinsic(e) {
	case "nondet":
		return formula.SortInt
	case "nondetBool":
		return formula.SortBool
	}
	if formula.IsBoolExpr(e, l.b) {
		return formula.SortBool
	}
	return formula.SortInt
}

func (l *lowerer) block(blk *cfg.Block) error {
	cur := blockLocation(blk)
	nodes := blk.Nodes
	var cond ast.Expr
	if len(blk.Succs) == 2 {
		cond = nodes[len(nodes)-1].(ast.Expr)
		nodes = nodes[:len(nodes)-1]
	}

	for _, n := range nodes {
		next, stop, err := l.node(blk, cur, n)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
		cur = next
	}

	switch len(blk.Succs) {
	case 0:
		l.b.Blank(cur, ExitLocation)
	case 1:
		l.b.Blank(cur, blockLocation(blk.Succs[0]))
	case 2:
		c, err := formula.FromExpr(cond, l.b)
		if err != nil {
			return l.errorf(cond.Pos(), "condition: %w", err)
		}
		src := types.ExprString(cond)
		l.b.Assume(cur, blockLocation(blk.Succs[0]), c).Label = "[" + src + "]"
		l.b.Assume(cur, blockLocation(blk.Succs[1]), formula.Not(c)).Label = "[!(" + src + ")]"
	}
	return nil
}

// node lowers one statement starting at cur. It returns the location after
// the statement, or stop when control does not continue.
func (l *lowerer) node(blk *cfg.Block, cur string, n ast.Node) (string, bool, error) {
	switch n := n.(type) {
	case *ast.EmptyStmt:
		return cur, false, nil

	case *ast.ReturnStmt:
		l.b.Blank(cur, ExitLocation).Label = "return"
		return "", true, nil

	case *ast.AssignStmt:
		if len(n.Lhs) != 1 || len(n.Rhs) != 1 {
			return "", false, l.errorf(n.Pos(), "%w: multiple assignment", ErrUnsupported)
		}
		id, ok := n.Lhs[0].(*ast.Ident)
		if !ok {
			return "", false, l.errorf(n.Pos(), "%w: assignment to %s", ErrUnsupported, types.ExprString(n.Lhs[0]))
		}
		if id.Name == "_" {
			return cur, false, nil
		}
		var op token.Token
		switch n.Tok {
		case token.DEFINE, token.ASSIGN:
		case token.ADD_ASSIGN:
			op = token.ADD
		case token.SUB_ASSIGN:
			op = token.SUB
		case token.MUL_ASSIGN:
			op = token.MUL
		default:
			return "", false, l.errorf(n.Pos(), "%w: operator %s", ErrUnsupported, n.Tok)
		}
		next := l.next(blk)
		return next, false, l.assign(cur, next, id, op, n.Rhs[0])

	case *ast.IncDecStmt:
		id, ok := n.X.(*ast.Ident)
		if !ok {
			return "", false, l.errorf(n.Pos(), "%w: %s of %s", ErrUnsupported, n.Tok, types.ExprString(n.X))
		}
		op := token.ADD
		if n.Tok == token.DEC {
			op = token.SUB
		}
		next := l.next(blk)
		one := &ast.BasicLit{ValuePos: n.TokPos, Kind: token.INT, Value: "1"}
		return next, false, l.assign(cur, next, id, op, one)

	case *ast.ValueSpec:
		for i, id := range n.Names {
			if id.Name == "_" {
				continue
			}
			next := l.next(blk)
			var err error
			if i < len(n.Values) {
				err = l.assign(cur, next, id, token.ILLEGAL, n.Values[i])
			} else {
				err = l.zero(cur, next, id)
			}
			if err != nil {
				return "", false, err
			}
			cur = next
		}
		return cur, false, nil

	case *ast.ExprStmt:
		return l.call(blk, cur, n)
	}
	return "", false, l.errorf(n.Pos(), "%w: %T", ErrUnsupported, n)
}

func (l *lowerer) call(blk *cfg.Block, cur string, s *ast.ExprStmt) (string, bool, error) {
	call, ok := s.X.(*ast.CallExpr)
	if !ok {
		return "", false, l.errorf(s.Pos(), "%w: expression statement", ErrUnsupported)
	}
	name := intrinsic(call)
	switch name {
	case "assume", "assert":
		if len(call.Args) != 1 {
			return "", false, l.errorf(call.Pos(), "%s takes one argument", name)
		}
		c, err := formula.FromExpr(call.Args[0], l.b)
		if err != nil {
			return "", false, l.errorf(call.Pos(), "%s: %w", name, err)
		}
		src := types.ExprString(call.Args[0])
		next := l.next(blk)
		if name == "assert" {
			l.b.Assume(cur, ErrorLocation, formula.Not(c)).Label = "[!(" + src + ")]"
		}
		l.b.Assume(cur, next, c).Label = "[" + src + "]"
		return next, false, nil

	case "reachError", "panic":
		l.b.Blank(cur, ErrorLocation).Label = name + "()"
		return "", true, nil

	case "nondet", "nondetBool":
		return cur, false, nil
	}
	return "", false, l.errorf(call.Pos(), "%w: call to %s", ErrUnsupported, types.ExprString(call.Fun))
}

// assign lowers id = rhs, or id = id op rhs when op is an arithmetic
// operator.
func (l *lowerer) assign(from, to string, id *ast.Ident, op token.Token, rhs ast.Expr) error {
	sort, ok := l.b.Lookup(id.Name)
	if !ok {
		return l.errorf(id.Pos(), "%w: %s", cfa.ErrUndeclaredVar, id.Name)
	}
	label := id.Name + " := " + types.ExprString(rhs)
	if op != token.ILLEGAL {
		label = id.Name + " := " + id.Name + " " + op.String() + " " + types.ExprString(rhs)
	}

	if k := intrinsic(rhs); k == "nondet" || k == "nondetBool" {
		if op != token.ILLEGAL {
			return l.errorf(rhs.Pos(), "%w: %s with %s", ErrUnsupported, op, k)
		}
		l.b.Havoc(from, to, id.Name)
		return nil
	}

	var value any
	switch sort {
	case formula.SortInt:
		t, err := formula.TermFromExpr(rhs, l.b)
		if err != nil {
			return l.errorf(rhs.Pos(), "assignment to %s: %w", id.Name, err)
		}
		self := formula.NewVar(id.Name, formula.SortInt)
		switch op {
		case token.ADD:
			t = formula.Add(self, t)
		case token.SUB:
			t = formula.Sub(self, t)
		case token.MUL:
			t = formula.Mul(self, t)
		}
		value = t
	case formula.SortBool:
		if op != token.ILLEGAL {
			return l.errorf(rhs.Pos(), "%w: %s on bool %s", ErrUnsupported, op, id.Name)
		}
		f, err := formula.FromExpr(rhs, l.b)
		if err != nil {
			return l.errorf(rhs.Pos(), "assignment to %s: %w", id.Name, err)
		}
		value = f
	}
	l.b.Assign(from, to, id.Name, value).Label = label
	return nil
}

// zero lowers var id T, which sets id to the zero value of T.
func (l *lowerer) zero(from, to string, id *ast.Ident) error {
	sort, ok := l.b.Lookup(id.Name)
	if !ok {
		return l.errorf(id.Pos(), "%w: %s", cfa.ErrUndeclaredVar, id.Name)
	}
	if sort == formula.SortBool {
		l.b.Assign(from, to, id.Name, formula.False()).Label = id.Name + " := false"
	} else {
		l.b.Assign(from, to, id.Name, formula.Int(0)).Label = id.Name + " := 0"
	}
	return nil
}

func (l *lowerer) next(blk *cfg.Block) string {
	l.fresh[blk.Index]++
	return fmt.Sprintf("%s.%d", blockLocation(blk), l.fresh[blk.Index])
}

func blockLocation(blk *cfg.Block) string {
	return fmt.Sprintf("b%d", blk.Index)
}

// intrinsic returns the name of the function e calls, if e is a call of a
// plain identifier.
func intrinsic(e ast.Expr) string {
	call, ok := e.(*ast.CallExpr)
	if !ok {
		return ""
	}
	if id, ok := call.Fun.(*ast.Ident); ok {
		return id.Name
	}
	return ""
}

func mayReturn(call *ast.CallExpr) bool {
	switch intrinsic(call) {
	case "panic", "reachError":
		return false
	}
	return true
}
