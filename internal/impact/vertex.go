package impact

import (
	"fmt"

	"github.com/gnoverse/impact/internal/cfa"
	"github.com/gnoverse/impact/internal/formula"
	"github.com/gnoverse/impact/internal/pathformula"
)

// Vertex is a node of the unwinding tree.
type Vertex struct {
	id           int
	location     *cfa.Location
	stateFormula formula.Formula
	pathFormula  pathformula.PathFormula
	parent       *Vertex
	edge         *cfa.Edge
	children     []*Vertex
	coveredBy    *Vertex
	coveredNodes []*Vertex
}

func newVertex(id int, loc *cfa.Location, pf pathformula.PathFormula, parent *Vertex, edge *cfa.Edge) *Vertex {
	v := &Vertex{
		id:           id,
		location:     loc,
		stateFormula: formula.True(),
		pathFormula:  pf,
		parent:       parent,
		edge:         edge,
	}
	if parent != nil {
		parent.children = append(parent.children, v)
	}
	return v
}

func (v *Vertex) ID() int { return v.id }
func (v *Vertex) Location() *cfa.Location { return v.location }
func (v *Vertex) StateFormula() formula.Formula { return v.stateFormula }
func (v *Vertex) PathFormula() pathformula.PathFormula { return v.pathFormula }
func (v *Vertex) Parent() *Vertex { return v.parent }
func (v *Vertex) CoveredBy() *Vertex { return v.coveredBy }

// IncomingEdge returns the edge this vertex was expanded along, nil for the
// root.
func (v *Vertex) IncomingEdge() *cfa.Edge { return v.edge }

// Children returns the children in creation order.
func (v *Vertex) Children() []*Vertex { return append([]*Vertex(nil), v.children...) }

// CoveredNodes returns the vertices covered by v.
func (v *Vertex) CoveredNodes() []*Vertex { return append([]*Vertex(nil), v.coveredNodes...) }

// IsLeaf reports whether v has not been expanded yet but could be.
func (v *Vertex) IsLeaf() bool {
	return len(v.children) == 0 && v.location.NumLeaving() > 0
}

// IsTarget reports whether v sits at a target location and is not yet
// refuted.
func (v *Vertex) IsTarget() bool {
	return v.location.IsTarget() && !formula.IsFalse(v.stateFormula)
}

// IsCovered reports whether v or one of its ancestors is covered.
func (v *Vertex) IsCovered() bool {
	for w := v; w != nil; w = w.parent {
		if w.coveredBy != nil {
			return true
		}
	}
	return false
}

// IsBlocked reports whether v or one of its ancestors has the state formula
// false. Blocked vertices are unreachable and never explored.
func (v *Vertex) IsBlocked() bool {
	for w := v; w != nil; w = w.parent {
		if formula.IsFalse(w.stateFormula) {
			return true
		}
	}
	return false
}

// IsAncestorOf reports whether v lies on the path from the root to w,
// w included.
func (v *Vertex) IsAncestorOf(w *Vertex) bool {
	for ; w != nil; w = w.parent {
		if w == v {
			return true
		}
	}
	return false
}

// IsOlderThan reports whether v was created before w.
func (v *Vertex) IsOlderThan(w *Vertex) bool { return v.id < w.id }

// SetCoveredBy records that w covers v.
func (v *Vertex) SetCoveredBy(w *Vertex) {
	if v.IsCovered() {
		panic(fmt.Sprintf("impact: covering already covered vertex %s", v))
	}
	if w.IsCovered() {
		panic(fmt.Sprintf("impact: covering %s by covered vertex %s", v, w))
	}
	if v == w {
		panic(fmt.Sprintf("impact: vertex %s covering itself", v))
	}
	v.coveredBy = w
	w.coveredNodes = append(w.coveredNodes, v)
}

// CleanCoverage uncovers every vertex covered by v and returns them.
func (v *Vertex) CleanCoverage() []*Vertex {
	if v.coveredBy != nil && len(v.coveredNodes) > 0 {
		panic(fmt.Sprintf("impact: covered vertex %s covers %d vertices", v, len(v.coveredNodes)))
	}
	uncovered := v.coveredNodes
	for _, w := range uncovered {
		w.coveredBy = nil
	}
	v.coveredNodes = nil
	return uncovered
}

// SetStateFormula replaces the state formula. Coverage relying on the old
// formula is dropped. Refuting v with false also drops the covers held by
// its descendants, which are never explored again.
func (v *Vertex) SetStateFormula(f formula.Formula) {
	if formula.IsFalse(v.stateFormula) {
		panic(fmt.Sprintf("impact: strengthening refuted vertex %s", v))
	}
	v.stateFormula = f
	if !formula.IsFalse(f) {
		v.CleanCoverage()
		return
	}
	for _, x := range v.Subtree() {
		x.CleanCoverage()
	}
}

// Subtree returns v and all its descendants, breadth first.
func (v *Vertex) Subtree() []*Vertex {
	out := []*Vertex{v}
	for i := 0; i < len(out); i++ {
		out = append(out, out[i].children...)
	}
	return out
}

// PathFromRoot returns the vertices from the root to v, both included.
func (v *Vertex) PathFromRoot() []*Vertex {
	var path []*Vertex
	for w := v; w != nil; w = w.parent {
		path = append(path, w)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (v *Vertex) String() string {
	return fmt.Sprintf("%d@%s", v.id, v.location)
}
