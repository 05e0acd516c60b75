package types

import (
	"time"

	"github.com/gnoverse/impact/internal/reached"
)

// Status is the outcome of verifying one program file.
type Status string

const (
	StatusSafe      Status = "safe"
	StatusUnsafe    Status = "unsafe"
	StatusCancelled Status = "cancelled"
	// StatusUnknown marks runs stopped by the vertex bound.
	StatusUnknown Status = "unknown"
	StatusError   Status = "error"
)

// Invariant is the reachable-state formula of one location.
type Invariant struct {
	Location string `json:"location"`
	Formula  string `json:"formula"`
}

// Stats summarizes a run.
type Stats struct {
	Vertices      int           `json:"vertices"`
	Expansions    int           `json:"expansions"`
	Covers        int           `json:"covers"`
	Refinements   int           `json:"refinements"`
	ProverQueries int           `json:"prover_queries"`
	CacheHits     int           `json:"cache_hits"`
	Duration      time.Duration `json:"duration"`
}

// Report represents the verification result of a program file.
type Report struct {
	Filename   string         `json:"filename"`
	Program    string         `json:"program"`
	Status     Status         `json:"status"`
	Trace      []reached.Step `json:"trace,omitempty"`
	Invariants []Invariant    `json:"invariants,omitempty"`
	Stats      Stats          `json:"stats"`
	Error      string         `json:"error,omitempty"`
}

// Failed reports whether the file should fail a batch run.
func (r Report) Failed() bool {
	return r.Status == StatusUnsafe || r.Status == StatusError
}
