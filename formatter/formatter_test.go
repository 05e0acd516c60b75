package formatter

import (
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"

	"github.com/gnoverse/impact/internal/reached"
	tt "github.com/gnoverse/impact/internal/types"
)

func init() {
	color.NoColor = true
}

func TestFormatSafeReport(t *testing.T) {
	t.Parallel()

	report := tt.Report{
		Filename: "testdata/guarded.yaml",
		Program:  "guarded",
		Status:   tt.StatusSafe,
		Invariants: []tt.Invariant{
			{Location: "error", Formula: "false"},
			{Location: "mid", Formula: "(x > 0)"},
			{Location: "start", Formula: "true"},
		},
		Stats: tt.Stats{Vertices: 3, Refinements: 1, Covers: 0, ProverQueries: 4, Duration: 1500 * time.Microsecond},
	}

	expected := `safe: guarded
 --> testdata/guarded.yaml
  | invariants:
  | error  false
  | mid    (x > 0)
  | start  true
  = 3 vertices, 1 refinements, 0 covers, 4 queries in 1.5ms
`
	assert.Equal(t, expected, GenerateFormattedReport([]tt.Report{report}))
}

func TestFormatUnsafeReport(t *testing.T) {
	t.Parallel()

	report := tt.Report{
		Filename: "reachable.yaml",
		Program:  "reachable",
		Status:   tt.StatusUnsafe,
		Trace: []reached.Step{
			{Location: "start"},
			{Location: "mid", Edge: "x := 3", Values: []reached.Value{{Name: "x", Value: "3"}}},
			{Location: "error", Edge: "[x > 2]", Values: []reached.Value{{Name: "x", Value: "3"}}},
		},
		Stats: tt.Stats{Vertices: 3, ProverQueries: 1, Duration: time.Millisecond},
	}

	expected := `unsafe: reachable
 --> reachable.yaml
  | counterexample:
  | 0  start
  | 1  mid    x := 3  {x=3}
  | 2  error  [x > 2]  {x=3}
  = 3 vertices, 0 refinements, 0 covers, 1 queries in 1ms
`
	assert.Equal(t, expected, GenerateFormattedReport([]tt.Report{report}))
}

func TestFormatGeneralReports(t *testing.T) {
	t.Parallel()

	reports := []tt.Report{
		{Filename: "broken.yaml", Status: tt.StatusError, Error: "decoding program: yaml: line 1"},
		{Filename: "big.yaml", Program: "big", Status: tt.StatusUnknown, Error: "vertex bound exceeded: 10"},
		{Filename: "slow.yaml", Program: "slow", Status: tt.StatusCancelled, Stats: tt.Stats{Vertices: 7, Duration: time.Second}},
	}

	expected := `error: -
 --> broken.yaml
  = decoding program: yaml: line 1

unknown: big
 --> big.yaml
  = vertex bound exceeded: 10

cancelled: slow
 --> slow.yaml
  = 7 vertices, 0 refinements, 0 covers, 0 queries in 1s
`
	assert.Equal(t, expected, GenerateFormattedReport(reports))
}

func TestSummary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "0 files", Summary(nil))
	assert.Equal(t, "1 file: 1 safe", Summary([]tt.Report{{Status: tt.StatusSafe}}))
	assert.Equal(t, "4 files: 2 safe, 1 unsafe, 1 error", Summary([]tt.Report{
		{Status: tt.StatusError},
		{Status: tt.StatusSafe},
		{Status: tt.StatusUnsafe},
		{Status: tt.StatusSafe},
	}))
}
