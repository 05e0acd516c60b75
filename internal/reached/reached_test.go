package reached

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gnoverse/impact/internal/cfa"
	"github.com/gnoverse/impact/internal/impact"
	"github.com/gnoverse/impact/internal/interpolation"
	"github.com/gnoverse/impact/internal/pathformula"
	"github.com/gnoverse/impact/internal/solver"
)

func verify(t *testing.T, src string) *Set {
	t.Helper()
	c, err := cfa.Load(strings.NewReader(src))
	require.NoError(t, err)

	prover, err := solver.NewProver(solver.DefaultConfig())
	require.NoError(t, err)
	itp := interpolation.NewManager(prover, interpolation.DefaultConfig(), zap.NewNop())
	res, err := impact.New(c, pathformula.NewManager(), prover, itp).Run(context.Background())
	require.NoError(t, err)
	return FromResult(res)
}

const guarded = `
name: guarded
variables: {x: int}
entry: start
targets: [error]
edges:
  - {from: start, to: mid, assume: "x > 0"}
  - {from: mid, to: error, assume: "x <= 0"}
`

func TestInvariants(t *testing.T) {
	t.Parallel()

	s := verify(t, guarded)
	require.Equal(t, impact.VerdictSafe, s.Verdict())

	inv := s.Invariants()
	assert.Equal(t, []string{"error", "mid", "start"}, s.Locations())
	assert.Equal(t, "true", inv["start"].String())
	assert.Equal(t, "(x > 0)", inv["mid"].String())
	assert.Equal(t, "false", inv["error"].String())
	assert.Nil(t, s.Trace())
}

func TestTrace(t *testing.T) {
	t.Parallel()

	s := verify(t, `
name: assigned
variables: {x: int, b: bool}
entry: start
targets: [error]
edges:
  - {from: start, to: mid, assign: "x := 5"}
  - {from: mid, to: flag, assign: "b := x > 3"}
  - {from: flag, to: error, assume: "b"}
`)
	require.Equal(t, impact.VerdictUnsafe, s.Verdict())

	steps := s.Trace()
	require.Len(t, steps, 4)
	assert.Equal(t, Step{Location: "start"}, steps[0])
	assert.Equal(t, Step{
		Location: "mid",
		Edge:     "x := 5",
		Values:   []Value{{Name: "x", Value: "5"}},
	}, steps[1])
	assert.Equal(t, Step{
		Location: "flag",
		Edge:     "b := x > 3",
		Values:   []Value{{Name: "b", Value: "true"}, {Name: "x", Value: "5"}},
	}, steps[2])
	assert.Equal(t, "error", steps[3].Location)
	assert.Equal(t, "[b]", steps[3].Edge)
}

func TestNewick(t *testing.T) {
	t.Parallel()

	s := verify(t, guarded)
	assert.Equal(t, `(("2@error")"1@mid")"0@start";`, s.Newick())
}

func TestWriteDot(t *testing.T) {
	t.Parallel()

	s := verify(t, `
name: loop
entry: head
edges:
  - {from: head, to: head}
`)
	var buf bytes.Buffer
	require.NoError(t, s.WriteDot(&buf))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "digraph \"art\" {\n"))
	assert.Contains(t, out, `v0 -> v1 [label=""];`)
	assert.Contains(t, out, `v1 -> v0 [style=dashed, constraint=false];`)
	assert.Contains(t, out, `v1 [label="1@head\ntrue", style=dashed];`)
}
