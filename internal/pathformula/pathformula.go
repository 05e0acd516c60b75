// Package pathformula encodes control-flow paths as SSA-indexed formulas.
package pathformula

import (
	"errors"
	"fmt"

	"github.com/gnoverse/impact/internal/cfa"
	"github.com/gnoverse/impact/internal/formula"
)

// ErrUnsupportedEdge is returned when an edge cannot be encoded.
var ErrUnsupportedEdge = errors.New("unsupported edge")

// PathFormula is the symbolic encoding of a path: a formula over
// SSA-indexed variables, the SSA indices in effect at the end of the path,
// and the number of edges encoded.
type PathFormula struct {
	Formula formula.Formula
	SSA     SSAMap
	Length  int
}

func (pf PathFormula) String() string {
	return fmt.Sprintf("%s %s", pf.Formula, pf.SSA)
}

// Manager builds path formulas edge by edge.
type Manager struct{}

// NewManager returns a path-formula manager.
func NewManager() *Manager {
	return &Manager{}
}

// MakeEmptyPathFormula returns the path formula of the empty path.
func (m *Manager) MakeEmptyPathFormula() PathFormula {
	return PathFormula{Formula: formula.True()}
}

// MakeEmptyPathFormulaFrom returns a path formula with formula true that
// continues the SSA indices of pf.
func (m *Manager) MakeEmptyPathFormulaFrom(pf PathFormula) PathFormula {
	return PathFormula{Formula: formula.True(), SSA: pf.SSA, Length: pf.Length}
}

// MakeAnd extends pf by the edge e.
func (m *Manager) MakeAnd(pf PathFormula, e *cfa.Edge) (PathFormula, error) {
	step, ssa, err := m.encode(pf.SSA, e)
	if err != nil {
		return PathFormula{}, fmt.Errorf("encoding edge %s -> %s (%s): %w", e.From, e.To, e, err)
	}
	return PathFormula{
		Formula: formula.And(pf.Formula, step),
		SSA:     ssa,
		Length:  pf.Length + 1,
	}, nil
}

func (m *Manager) encode(ssa SSAMap, e *cfa.Edge) (formula.Formula, SSAMap, error) {
	switch e.Kind {
	case cfa.BlankEdge:
		return formula.True(), ssa, nil

	case cfa.AssumeEdge:
		if e.Cond == nil {
			return nil, ssa, fmt.Errorf("%w: assume without condition", ErrUnsupportedEdge)
		}
		return formula.Instantiate(e.Cond, ssa.Index), ssa, nil

	case cfa.HavocEdge:
		next, _ := ssa.Fresh(e.Var.Name)
		return formula.True(), next, nil

	case cfa.AssignEdge:
		next, idx := ssa.Fresh(e.Var.Name)
		lhs := formula.IndexedVar(e.Var.Name, idx, e.Var.Sort)
		switch e.Var.Sort {
		case formula.SortInt:
			rhs, ok := e.Value.(formula.Term)
			if !ok || isBoolVar(e.Value) {
				return nil, ssa, fmt.Errorf("%w: int %s assigned %T", ErrUnsupportedEdge, e.Var.Name, e.Value)
			}
			return formula.Eq(lhs, formula.InstantiateTerm(rhs, ssa.Index)), next, nil
		case formula.SortBool:
			rhs, ok := e.Value.(formula.Formula)
			if !ok || isIntVar(e.Value) {
				return nil, ssa, fmt.Errorf("%w: bool %s assigned %T", ErrUnsupportedEdge, e.Var.Name, e.Value)
			}
			return formula.Iff(lhs, formula.Instantiate(rhs, ssa.Index)), next, nil
		}
	}
	return nil, ssa, fmt.Errorf("%w: %s", ErrUnsupportedEdge, e.Kind)
}

func isBoolVar(v any) bool {
	x, ok := v.(formula.Var)
	return ok && x.Sort == formula.SortBool
}

func isIntVar(v any) bool {
	x, ok := v.(formula.Var)
	return ok && x.Sort == formula.SortInt
}
