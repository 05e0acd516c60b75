package interpolation

import (
	"github.com/gnoverse/impact/internal/formula"
)

// atomInterpolant tries to build an interpolant as a conjunction of trace
// atoms (or their negations) re-instantiated at the versions shared by the
// cut. ok is false when the implied atoms do not refute suffix.
func (m *Manager) atomInterpolant(prefix, suffix formula.Formula, shared []formula.Var, trace []formula.Formula) (formula.Formula, bool, error) {
	versions := make(map[string]int, len(shared))
	ambiguous := make(map[string]bool)
	for _, v := range shared {
		if _, ok := versions[v.Name]; ok {
			ambiguous[v.Name] = true
		}
		versions[v.Name] = v.Index
	}

	var conj []formula.Formula
	for _, c := range candidates(trace, versions, ambiguous) {
		ok, err := m.prover.Implies(prefix, c)
		if err != nil {
			return nil, false, err
		}
		if ok {
			conj = append(conj, c)
			continue
		}
		nc := formula.Not(c)
		ok, err = m.prover.Implies(prefix, nc)
		if err != nil {
			return nil, false, err
		}
		if ok {
			conj = append(conj, nc)
		}
	}
	if len(conj) == 0 {
		return nil, false, nil
	}

	refutes := func(cs []formula.Formula) (bool, error) {
		return m.prover.IsUnsat(formula.And(append(cs[:len(cs):len(cs)], suffix)...))
	}
	ok, err := refutes(conj)
	if err != nil || !ok {
		return nil, false, err
	}

	// Greedy minimization: drop every conjunct the refutation survives
	// without.
	for i := 0; i < len(conj); {
		rest := make([]formula.Formula, 0, len(conj)-1)
		rest = append(rest, conj[:i]...)
		rest = append(rest, conj[i+1:]...)
		ok, err := refutes(rest)
		if err != nil {
			return nil, false, err
		}
		if ok {
			conj = rest
			continue
		}
		i++
	}
	return formula.And(conj...), true, nil
}

// candidates collects the distinct atoms of trace, stripped of their
// versions and re-instantiated at the shared ones. Atoms over a name that
// is not shared, or shared at more than one version, are dropped.
func candidates(trace []formula.Formula, versions map[string]int, ambiguous map[string]bool) []formula.Formula {
	var out []formula.Formula
	seen := make(map[string]bool)
	var atoms []formula.Formula
	for _, f := range trace {
		atoms = append(atoms, formula.Atoms(f)...)
	}
	for _, a := range atoms {
		a = formula.Uninstantiate(a)
		vars := formula.Vars(a)
		if len(vars) == 0 {
			continue
		}
		usable := true
		for _, v := range vars {
			if _, ok := versions[v.Name]; !ok || ambiguous[v.Name] {
				usable = false
				break
			}
		}
		if !usable {
			continue
		}
		c := formula.Instantiate(a, func(name string) int { return versions[name] })
		if key := c.String(); !seen[key] {
			seen[key] = true
			out = append(out, c)
		}
	}
	return out
}
