// Package cfa defines control-flow automata: program locations connected by
// edges that assume a condition, assign or havoc a variable, or do nothing.
package cfa

import (
	"fmt"
	"sort"

	"github.com/gnoverse/impact/internal/formula"
)

// EdgeKind identifies the statement carried by an edge.
type EdgeKind int

const (
	BlankEdge EdgeKind = iota
	AssumeEdge
	AssignEdge
	HavocEdge
)

func (k EdgeKind) String() string {
	switch k {
	case BlankEdge:
		return "blank"
	case AssumeEdge:
		return "assume"
	case AssignEdge:
		return "assign"
	case HavocEdge:
		return "havoc"
	default:
		return "unknown"
	}
}

// Location is a program point.
type Location struct {
	id       int
	name     string
	target   bool
	leaving  []*Edge
	entering []*Edge
}

func (l *Location) ID() int { return l.id }
func (l *Location) Name() string { return l.name }
func (l *Location) IsTarget() bool { return l.target }
func (l *Location) String() string { return l.name }
func (l *Location) NumLeaving() int { return len(l.leaving) }
func (l *Location) NumEntering() int { return len(l.entering) }

// LeavingEdges returns the outgoing edges in insertion order.
func (l *Location) LeavingEdges() []*Edge { return l.leaving }

// EnteringEdges returns the incoming edges in insertion order.
func (l *Location) EnteringEdges() []*Edge { return l.entering }

// Edge is a transition between two locations.
//
// Cond is set on assume edges. Var is the assigned variable on assign and
// havoc edges; Value is the assigned expression, a formula.Term for int
// variables and a formula.Formula for bool variables.
type Edge struct {
	Kind  EdgeKind
	From  *Location
	To    *Location
	Cond  formula.Formula
	Var   formula.Var
	Value any
	Label string
}

func (e *Edge) String() string {
	if e.Label != "" {
		return e.Label
	}
	switch e.Kind {
	case AssumeEdge:
		return "[" + e.Cond.String() + "]"
	case AssignEdge:
		return fmt.Sprintf("%s := %v", e.Var.Name, e.Value)
	case HavocEdge:
		return e.Var.Name + " := *"
	default:
		return ""
	}
}

// CFA is a control-flow automaton with a single entry location.
type CFA struct {
	Name      string
	Vars      formula.Decls
	Entry     *Location
	Locations []*Location
}

// Lookup resolves a declared variable, so a CFA can serve as a
// formula.Scope.
func (c *CFA) Lookup(name string) (formula.Sort, bool) {
	s, ok := c.Vars[name]
	return s, ok
}

// Targets returns the target locations.
func (c *CFA) Targets() []*Location {
	var out []*Location
	for _, l := range c.Locations {
		if l.target {
			out = append(out, l)
		}
	}
	return out
}

// Location returns the location called name, or nil.
func (c *CFA) Location(name string) *Location {
	for _, l := range c.Locations {
		if l.name == name {
			return l
		}
	}
	return nil
}

// Edges returns every edge, grouped by source location.
func (c *CFA) Edges() []*Edge {
	var out []*Edge
	for _, l := range c.Locations {
		out = append(out, l.leaving...)
	}
	return out
}

// VarNames returns the declared variable names in sorted order.
func (c *CFA) VarNames() []string {
	names := make([]string, 0, len(c.Vars))
	for n := range c.Vars {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
