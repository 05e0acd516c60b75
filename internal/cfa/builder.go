package cfa

import (
	"errors"
	"fmt"

	"github.com/gnoverse/impact/internal/formula"
)

var (
	ErrNoEntry         = errors.New("cfa has no entry location")
	ErrUndeclaredVar   = errors.New("undeclared variable")
	ErrSortMismatch    = errors.New("sort mismatch")
	ErrDuplicateVar    = errors.New("variable declared twice")
	ErrUnknownLocation = errors.New("unknown location")
)

// Builder assembles a CFA. Locations are created on first mention.
// The first error is sticky and returned by Build.
type Builder struct {
	cfa *CFA
	err error
}

// NewBuilder starts a CFA called name.
func NewBuilder(name string) *Builder {
	return &Builder{cfa: &CFA{Name: name, Vars: formula.Decls{}}}
}

// Lookup lets a Builder serve as a formula.Scope while edges are added.
func (b *Builder) Lookup(name string) (formula.Sort, bool) {
	return b.cfa.Lookup(name)
}

// DeclareVar declares a program variable.
func (b *Builder) DeclareVar(name string, sort formula.Sort) *Builder {
	if s, ok := b.cfa.Vars[name]; ok && s != sort {
		b.fail(fmt.Errorf("%w: %s", ErrDuplicateVar, name))
		return b
	}
	b.cfa.Vars[name] = sort
	return b
}

// Location returns the location called name, creating it if needed.
func (b *Builder) Location(name string) *Location {
	if l := b.cfa.Location(name); l != nil {
		return l
	}
	l := &Location{id: len(b.cfa.Locations), name: name}
	b.cfa.Locations = append(b.cfa.Locations, l)
	return l
}

// SetEntry makes name the entry location.
func (b *Builder) SetEntry(name string) *Builder {
	b.cfa.Entry = b.Location(name)
	return b
}

// MarkTarget makes name a target (error) location.
func (b *Builder) MarkTarget(name string) *Builder {
	b.Location(name).target = true
	return b
}

// Blank adds an edge without effect.
func (b *Builder) Blank(from, to string) *Edge {
	return b.add(&Edge{Kind: BlankEdge}, from, to)
}

// Assume adds an edge that is taken only when cond holds.
func (b *Builder) Assume(from, to string, cond formula.Formula) *Edge {
	if err := b.checkVars(formula.Vars(cond)); err != nil {
		b.fail(fmt.Errorf("assume %s: %w", cond, err))
	}
	return b.add(&Edge{Kind: AssumeEdge, Cond: cond}, from, to)
}

// Assign adds the edge name := value. value must be a formula.Term for an
// int variable and a formula.Formula for a bool variable.
func (b *Builder) Assign(from, to, name string, value any) *Edge {
	v, err := b.variable(name)
	if err != nil {
		b.fail(fmt.Errorf("assign %s: %w", name, err))
		return b.add(&Edge{Kind: AssignEdge, Var: v, Value: value}, from, to)
	}
	switch val := value.(type) {
	case formula.Var:
		if val.Sort != v.Sort {
			b.fail(fmt.Errorf("assign %s: %w", name, ErrSortMismatch))
		}
		err = b.checkVars([]formula.Var{val})
	case formula.Term:
		if v.Sort != formula.SortInt {
			b.fail(fmt.Errorf("assign %s: %w", name, ErrSortMismatch))
		}
		err = b.checkVars(formula.TermVars(val))
	case formula.Formula:
		if v.Sort != formula.SortBool {
			b.fail(fmt.Errorf("assign %s: %w", name, ErrSortMismatch))
		}
		err = b.checkVars(formula.Vars(val))
	default:
		err = fmt.Errorf("%w: value %T", ErrSortMismatch, value)
	}
	if err != nil {
		b.fail(fmt.Errorf("assign %s: %w", name, err))
	}
	return b.add(&Edge{Kind: AssignEdge, Var: v, Value: value}, from, to)
}

// Havoc adds the edge name := *, which forgets the value of name.
func (b *Builder) Havoc(from, to, name string) *Edge {
	v, err := b.variable(name)
	if err != nil {
		b.fail(fmt.Errorf("havoc %s: %w", name, err))
	}
	return b.add(&Edge{Kind: HavocEdge, Var: v}, from, to)
}

// Build validates and returns the CFA.
func (b *Builder) Build() (*CFA, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.cfa.Entry == nil {
		return nil, ErrNoEntry
	}
	return b.cfa, nil
}

func (b *Builder) add(e *Edge, from, to string) *Edge {
	e.From = b.Location(from)
	e.To = b.Location(to)
	e.From.leaving = append(e.From.leaving, e)
	e.To.entering = append(e.To.entering, e)
	return e
}

func (b *Builder) variable(name string) (formula.Var, error) {
	sort, ok := b.cfa.Vars[name]
	if !ok {
		return formula.NewVar(name, formula.SortInt), fmt.Errorf("%w: %s", ErrUndeclaredVar, name)
	}
	return formula.NewVar(name, sort), nil
}

func (b *Builder) checkVars(vars []formula.Var) error {
	for _, v := range vars {
		sort, ok := b.cfa.Vars[v.Name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUndeclaredVar, v.Name)
		}
		if sort != v.Sort {
			return fmt.Errorf("%w: %s is %s", ErrSortMismatch, v.Name, sort)
		}
	}
	return nil
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}
