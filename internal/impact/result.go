package impact

import (
	"errors"
	"time"

	"github.com/gnoverse/impact/internal/formula"
)

// ErrBoundExceeded is returned when the unwinding grows past the configured
// vertex bound.
var ErrBoundExceeded = errors.New("vertex bound exceeded")

// Verdict is the outcome of a run.
type Verdict int

const (
	VerdictSafe Verdict = iota
	VerdictUnsafe
	VerdictCancelled
)

func (v Verdict) String() string {
	switch v {
	case VerdictSafe:
		return "safe"
	case VerdictUnsafe:
		return "unsafe"
	case VerdictCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Counterexample is a feasible path from the root to a target vertex.
type Counterexample struct {
	Path  []*Vertex
	Model formula.Model
}

// Stats collects counters of a run.
type Stats struct {
	Vertices      int
	Expansions    int
	CoverChecks   int
	Covers        int
	Refinements   int
	ProverQueries int
	RefineTime    time.Duration
	Duration      time.Duration
}

// Result is what a run produces. Vertices holds the whole unwinding in
// creation order, also for unsafe and cancelled runs.
type Result struct {
	Verdict        Verdict
	Counterexample *Counterexample
	Vertices       []*Vertex
	Stats          Stats
}

// Root returns the root of the unwinding, nil if there is none.
func (r *Result) Root() *Vertex {
	if len(r.Vertices) == 0 {
		return nil
	}
	return r.Vertices[0]
}
