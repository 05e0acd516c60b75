package interpolation

import (
	"fmt"

	"github.com/go-air/gini"
	"github.com/go-air/gini/z"

	"github.com/gnoverse/impact/internal/formula"
	"github.com/gnoverse/impact/internal/solver"
)

// bitInterpolant enumerates the models of prefix projected onto the bits of
// the shared variables. Each projection is generalized to the failed
// assumptions of the suffix solver, so the result is a DNF over shared bits
// that prefix implies and that refutes suffix.
func (m *Manager) bitInterpolant(prefix, suffix formula.Formula, shared []formula.Var) (formula.Formula, error) {
	enc := solver.NewEncoder(m.prover.Config().IntWidth)
	pRoot, err := enc.Formula(prefix)
	if err != nil {
		return nil, err
	}
	sRoot, err := enc.Formula(suffix)
	if err != nil {
		return nil, err
	}

	// Literal variable of every shared bit, mapped back to its atom.
	atoms := make(map[z.Var]formula.Formula)
	var lits []z.Lit
	for _, v := range shared {
		if v.Sort == formula.SortBool {
			lit := enc.BoolVar(v)
			atoms[lit.Var()] = v
			lits = append(lits, lit)
			continue
		}
		for i, b := range enc.IntVar(v) {
			atoms[b.Var()] = formula.BitOf(v, i)
			lits = append(lits, b)
		}
	}

	gp, err := m.prover.NewSAT()
	if err != nil {
		return nil, err
	}
	gs, err := m.prover.NewSAT()
	if err != nil {
		return nil, err
	}
	enc.AddTo(gp, pRoot)
	enc.AddTo(gs, sRoot)
	top := z.Var(enc.Circuit().Len() - 1)
	reserve(gp, top)
	reserve(gs, top)

	var cubes []formula.Formula
	for {
		res, err := m.prover.Solve(gp)
		if err != nil {
			return nil, err
		}
		if res < 0 {
			break
		}
		if len(cubes) >= m.cfg.MaxCubes {
			return nil, fmt.Errorf("%w (%d)", ErrTooManyCubes, m.cfg.MaxCubes)
		}

		assumed := make([]z.Lit, len(lits))
		for i, b := range lits {
			if solver.LitValue(gp, b) {
				assumed[i] = b
			} else {
				assumed[i] = b.Not()
			}
		}
		gs.Assume(assumed...)
		res, err = m.prover.Solve(gs)
		if err != nil {
			return nil, err
		}
		if res > 0 {
			return nil, ErrNotRefuted
		}

		core := gs.Why(nil)
		cube := make([]formula.Formula, 0, len(core))
		for _, c := range core {
			atom := atoms[c.Var()]
			if c.IsPos() {
				cube = append(cube, atom)
			} else {
				cube = append(cube, formula.Not(atom))
			}
			gp.Add(c.Not())
		}
		gp.Add(0)
		cubes = append(cubes, formula.And(cube...))
		if len(core) == 0 {
			break
		}
	}
	return formula.Or(cubes...), nil
}

// reserve makes sure g knows every variable up to top, so literals that no
// clause mentions can still be assumed and read.
func reserve(g *gini.Gini, top z.Var) {
	for g.MaxVar() < top {
		g.Lit()
	}
}
