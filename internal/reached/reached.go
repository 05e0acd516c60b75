// Package reached exposes the unwinding of a finished run: the invariant
// map, the counterexample trace and tree exports.
package reached

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/gnoverse/impact/internal/formula"
	"github.com/gnoverse/impact/internal/impact"
)

// Set is the reached set of a run.
type Set struct {
	res *impact.Result
}

// FromResult wraps res.
func FromResult(res *impact.Result) *Set {
	return &Set{res: res}
}

// Verdict returns the verdict of the run.
func (s *Set) Verdict() impact.Verdict { return s.res.Verdict }

// Vertices returns every vertex in creation order.
func (s *Set) Vertices() []*impact.Vertex { return s.res.Vertices }

// Invariants maps every location to the disjunction of the state formulas
// of its uncovered, reachable vertices. For a safe run this is an inductive
// invariant that excludes the target locations.
func (s *Set) Invariants() map[string]formula.Formula {
	parts := make(map[string][]formula.Formula)
	for _, v := range s.res.Vertices {
		name := v.Location().Name()
		if _, ok := parts[name]; !ok {
			parts[name] = nil
		}
		if v.IsCovered() || v.IsBlocked() {
			continue
		}
		parts[name] = append(parts[name], v.StateFormula())
	}
	inv := make(map[string]formula.Formula, len(parts))
	for name, fs := range parts {
		inv[name] = formula.Or(fs...)
	}
	return inv
}

// Locations returns the names of the locations in Invariants, sorted.
func (s *Set) Locations() []string {
	seen := make(map[string]bool)
	var names []string
	for _, v := range s.res.Vertices {
		if name := v.Location().Name(); !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Value is the value of one variable at one step of a trace.
type Value struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Step is one vertex of a counterexample.
type Step struct {
	Location string  `json:"location"`
	Edge     string  `json:"edge,omitempty"`
	Values   []Value `json:"values,omitempty"`
}

// Trace returns the counterexample of an unsafe run, nil otherwise. Each
// step carries the values the model assigns to the variables at the SSA
// indices in effect after the step.
func (s *Set) Trace() []Step {
	cex := s.res.Counterexample
	if cex == nil {
		return nil
	}

	sorts := make(map[string]formula.Sort)
	for _, v := range cex.Model.Vars() {
		sorts[v.Name] = v.Sort
	}
	names := make([]string, 0, len(sorts))
	for name := range sorts {
		names = append(names, name)
	}
	sort.Strings(names)

	steps := make([]Step, len(cex.Path))
	for i, v := range cex.Path {
		step := Step{Location: v.Location().Name()}
		if e := v.IncomingEdge(); e != nil {
			step.Edge = e.String()
		}
		ssa := v.PathFormula().SSA
		for _, name := range names {
			val, ok := cex.Model.Lookup(name, ssa.Index(name))
			if !ok {
				continue
			}
			step.Values = append(step.Values, Value{Name: name, Value: formula.FormatValue(sorts[name], val)})
		}
		steps[i] = step
	}
	return steps
}

// Newick renders the unwinding tree in Newick format. Nodes are labeled
// with their id and location.
func (s *Set) Newick() string {
	root := s.res.Root()
	if root == nil {
		return ";"
	}
	return newick(root) + ";"
}

func newick(v *impact.Vertex) string {
	out := strings.Builder{}
	if children := v.Children(); len(children) > 0 {
		out.WriteString("(")
		for i, child := range children {
			if i > 0 {
				out.WriteString(",")
			}
			out.WriteString(newick(child))
		}
		out.WriteString(")")
	}
	out.WriteString(strconv.Quote(v.String()))
	return out.String()
}

// WriteDot renders the unwinding tree in GraphViz DOT. Tree edges are
// labeled with the CFA edge they follow and covering edges are dashed.
func (s *Set) WriteDot(w io.Writer) error {
	var b strings.Builder
	b.WriteString("digraph \"art\" {\n")
	b.WriteString("  node [shape=box];\n")

	for _, v := range s.res.Vertices {
		attrs := []string{"label=" + strconv.Quote(fmt.Sprintf("%s\n%s", v, v.StateFormula()))}
		switch {
		case v.Location().IsTarget() && !v.IsBlocked():
			attrs = append(attrs, "color=red")
		case v.IsBlocked():
			attrs = append(attrs, "color=gray")
		case v.CoveredBy() != nil:
			attrs = append(attrs, "style=dashed")
		}
		fmt.Fprintf(&b, "  v%d [%s];\n", v.ID(), strings.Join(attrs, ", "))
	}
	for _, v := range s.res.Vertices {
		if p := v.Parent(); p != nil {
			label := ""
			if e := v.IncomingEdge(); e != nil {
				label = e.String()
			}
			fmt.Fprintf(&b, "  v%d -> v%d [label=%s];\n", p.ID(), v.ID(), strconv.Quote(label))
		}
		if c := v.CoveredBy(); c != nil {
			fmt.Fprintf(&b, "  v%d -> v%d [style=dashed, constraint=false];\n", v.ID(), c.ID())
		}
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}
