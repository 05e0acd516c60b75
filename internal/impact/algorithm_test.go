package impact

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/gnoverse/impact/internal/cfa"
	"github.com/gnoverse/impact/internal/formula"
	"github.com/gnoverse/impact/internal/interpolation"
	"github.com/gnoverse/impact/internal/pathformula"
	"github.com/gnoverse/impact/internal/solver"
)

func loadCFA(t *testing.T, src string) *cfa.CFA {
	t.Helper()
	c, err := cfa.Load(strings.NewReader(src))
	require.NoError(t, err)
	return c
}

func newAlgorithm(t *testing.T, c *cfa.CFA, strategy interpolation.Strategy, opts ...Option) *Algorithm {
	t.Helper()
	prover, err := solver.NewProver(solver.DefaultConfig())
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	itp := interpolation.NewManager(prover, interpolation.Config{Strategy: strategy}, logger)
	opts = append([]Option{WithLogger(logger)}, opts...)
	return New(c, pathformula.NewManager(), prover, itp, opts...)
}

func run(t *testing.T, src string, opts ...Option) (*Algorithm, *Result) {
	t.Helper()
	a := newAlgorithm(t, loadCFA(t, src), interpolation.StrategyAtoms, opts...)
	res, err := a.Run(context.Background())
	require.NoError(t, err)
	return a, res
}

func locations(path []*Vertex) []string {
	names := make([]string, len(path))
	for i, v := range path {
		names[i] = v.Location().Name()
	}
	return names
}

// checkCoverings asserts that every covering relation in res is sound and
// acyclic.
func checkCoverings(t *testing.T, res *Result) {
	t.Helper()
	p, err := solver.NewProver(solver.DefaultConfig())
	require.NoError(t, err)

	for _, v := range res.Vertices {
		w := v.CoveredBy()
		if w == nil {
			continue
		}
		assert.NotSame(t, v, w)
		assert.False(t, v.IsAncestorOf(w), "%s covered by its descendant %s", v, w)
		assert.Nil(t, w.CoveredBy(), "%s covered by covered vertex %s", v, w)
		assert.False(t, w.IsBlocked(), "%s covered by refuted vertex %s", v, w)
		assert.Empty(t, v.CoveredNodes(), "covered vertex %s covers others", v)
		assert.True(t, w.IsOlderThan(v))

		ok, err := p.Implies(v.StateFormula(), w.StateFormula())
		require.NoError(t, err)
		assert.True(t, ok, "%s does not imply %s", v.StateFormula(), w.StateFormula())
	}
}

const scenarioA = `
name: a
entry: start
targets: [error]
edges:
  - {from: start, to: error}
`

const scenarioB = `
name: b
variables: {x: int}
entry: start
targets: [error]
edges:
  - {from: start, to: mid, assume: "x > 0"}
  - {from: mid, to: error, assume: "x <= 0"}
`

const scenarioC = `
name: c
entry: head
edges:
  - {from: head, to: head}
`

func TestScenarioUnsafeBlankPath(t *testing.T) {
	t.Parallel()

	_, res := run(t, scenarioA)
	assert.Equal(t, VerdictUnsafe, res.Verdict)
	require.NotNil(t, res.Counterexample)
	assert.Equal(t, []string{"start", "error"}, locations(res.Counterexample.Path))
	assert.Equal(t, 1, res.Stats.Refinements)
	assert.Len(t, res.Vertices, 2)
}

func TestScenarioSpuriousGuard(t *testing.T) {
	t.Parallel()

	for _, strategy := range []interpolation.Strategy{interpolation.StrategyAtoms, interpolation.StrategyBits} {
		strategy := strategy
		t.Run(string(strategy), func(t *testing.T) {
			t.Parallel()

			a := newAlgorithm(t, loadCFA(t, scenarioB), strategy)
			res, err := a.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, VerdictSafe, res.Verdict)
			assert.Nil(t, res.Counterexample)
			require.Len(t, res.Vertices, 3)

			root, mid, target := res.Vertices[0], res.Vertices[1], res.Vertices[2]
			assert.True(t, formula.IsTrue(root.StateFormula()))
			assert.False(t, formula.IsTrue(mid.StateFormula()))
			assert.True(t, formula.IsFalse(target.StateFormula()))
			assert.False(t, target.IsTarget())
			assert.Equal(t, 1, res.Stats.Refinements)
		})
	}

	_, res := run(t, scenarioB)
	assert.Equal(t, "(x > 0)", res.Vertices[1].StateFormula().String())
}

func TestScenarioSelfLoopIsCovered(t *testing.T) {
	t.Parallel()

	a, res := run(t, scenarioC)
	assert.Equal(t, VerdictSafe, res.Verdict)
	require.Len(t, res.Vertices, 2)

	root, child := res.Vertices[0], res.Vertices[1]
	assert.Same(t, root, child.CoveredBy())
	assert.Equal(t, []*Vertex{child}, root.CoveredNodes())
	assert.Equal(t, 1, res.Stats.Expansions)
	checkCoverings(t, res)

	// closing a covered vertex again changes nothing
	require.NoError(t, a.close(child))
	require.NoError(t, a.close(child))
	assert.Same(t, root, child.CoveredBy())
	assert.Len(t, root.CoveredNodes(), 1)
	assert.Equal(t, 1, a.stats.Covers)
}

func TestLoops(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		verdict Verdict
		path    []string
	}{
		{
			name: "bounded counter",
			src: `
name: counter
variables: {x: int}
entry: start
targets: [error]
edges:
  - {from: start, to: loop, assign: "x := 0"}
  - {from: loop, to: loop, assume: "x < 3", assign: "x := x + 1"}
  - {from: loop, to: exit, assume: "x >= 3"}
  - {from: exit, to: error, assume: "x < 0"}
`,
			verdict: VerdictSafe,
		},
		{
			name: "reachable count",
			src: `
name: reach
variables: {x: int}
entry: start
targets: [error]
edges:
  - {from: start, to: loop, assign: "x := 0"}
  - {from: loop, to: loop, assume: "x < 3", assign: "x := x + 1"}
  - {from: loop, to: error, assume: "x == 2"}
`,
			verdict: VerdictUnsafe,
			path:    []string{"start", "loop", "loop.1", "loop", "loop.1", "loop", "error"},
		},
		{
			name: "flag",
			src: `
name: flag
variables: {x: int, b: bool}
entry: start
targets: [error]
edges:
  - {from: start, to: next, havoc: x}
  - {from: next, to: check, assign: "b := x > 3"}
  - {from: check, to: error, assume: "b && x < 2"}
  - {from: check, to: start}
`,
			verdict: VerdictSafe,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, res := run(t, tt.src, WithMaxVertices(1000))
			assert.Equal(t, tt.verdict, res.Verdict)
			checkCoverings(t, res)
			for _, v := range res.Vertices {
				if v.Location().IsTarget() && tt.verdict == VerdictSafe {
					assert.True(t, v.IsBlocked() || v.IsCovered(), "target vertex %s left open", v)
				}
			}
			if tt.path != nil {
				require.NotNil(t, res.Counterexample)
				assert.Equal(t, tt.path, locations(res.Counterexample.Path))
			}
		})
	}
}

// The branch through a is infeasible. Its l vertex covers the l reached
// through p before a is refuted, and that cover must not outlive the
// refutation.
const refutedCoverer = `
name: refuted
variables: {n: int}
entry: r
targets: [err]
edges:
  - {from: r, to: a, assume: "n < 0 && n > 0"}
  - {from: r, to: q, assume: "n == 5"}
  - {from: r, to: p}
  - {from: p, to: l}
  - {from: a, to: l}
  - {from: a, to: q}
  - {from: l, to: q}
  - {from: q, to: err, assume: "n != 5"}
`

func TestRefutedBranchDropsCovers(t *testing.T) {
	t.Parallel()

	for _, strategy := range []interpolation.Strategy{interpolation.StrategyAtoms, interpolation.StrategyBits} {
		strategy := strategy
		t.Run(string(strategy), func(t *testing.T) {
			t.Parallel()

			a := newAlgorithm(t, loadCFA(t, refutedCoverer), strategy, WithMaxVertices(1000))
			res, err := a.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, VerdictUnsafe, res.Verdict)
			require.NotNil(t, res.Counterexample)
			assert.Equal(t, []string{"r", "p", "l", "q", "err"}, locations(res.Counterexample.Path))
			checkCoverings(t, res)

			for _, v := range res.Vertices {
				if v.IsBlocked() {
					assert.Empty(t, v.CoveredNodes(), "refuted vertex %s still covers", v)
				}
			}
		})
	}

	control := strings.Replace(refutedCoverer, `  - {from: r, to: a, assume: "n < 0 && n > 0"}
`, "", 1)
	_, res := run(t, control)
	assert.Equal(t, VerdictUnsafe, res.Verdict)
}

func TestRunSummaryLog(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core).With(zap.String("cfa", "b"))

	prover, err := solver.NewProver(solver.DefaultConfig())
	require.NoError(t, err)
	itp := interpolation.NewManager(prover, interpolation.DefaultConfig(), logger)
	a := New(loadCFA(t, scenarioB), pathformula.NewManager(), prover, itp, WithLogger(logger))
	_, err = a.Run(context.Background())
	require.NoError(t, err)

	entries := logs.FilterMessage("Unwinding finished").All()
	require.Len(t, entries, 1)
	keys := 0
	for _, f := range entries[0].Context {
		if f.Key == "cfa" {
			keys++
		}
	}
	assert.Equal(t, 1, keys)
	assert.Equal(t, "safe", entries[0].ContextMap()["verdict"])
}

func TestCounterexampleModel(t *testing.T) {
	t.Parallel()

	_, res := run(t, `
name: model
variables: {x: int}
entry: start
targets: [error]
edges:
  - {from: start, to: error, assume: "x > 5 && x < 7"}
`)
	require.Equal(t, VerdictUnsafe, res.Verdict)
	require.NotNil(t, res.Counterexample)
	assert.Equal(t, int64(6), res.Counterexample.Model[formula.IndexedVar("x", 1, formula.SortInt)])
}

func TestTargetRoot(t *testing.T) {
	t.Parallel()

	_, res := run(t, `
name: root
entry: error
targets: [error]
edges:
  - {from: error, to: error}
`)
	assert.Equal(t, VerdictUnsafe, res.Verdict)
	assert.Equal(t, []string{"error"}, locations(res.Counterexample.Path))
}

func TestBoundExceeded(t *testing.T) {
	t.Parallel()

	a := newAlgorithm(t, loadCFA(t, scenarioB), interpolation.StrategyAtoms, WithMaxVertices(2))
	_, err := a.Run(context.Background())
	assert.ErrorIs(t, err, ErrBoundExceeded)
}

func TestUnsupportedEdge(t *testing.T) {
	t.Parallel()

	b := cfa.NewBuilder("broken")
	b.SetEntry("start").MarkTarget("error")
	b.Blank("start", "error").Kind = cfa.EdgeKind(42)
	c, err := b.Build()
	require.NoError(t, err)

	a := newAlgorithm(t, c, interpolation.StrategyAtoms)
	_, err = a.Run(context.Background())
	assert.ErrorIs(t, err, pathformula.ErrUnsupportedEdge)
	assert.Len(t, a.Vertices(), 1)
}

func TestCancelledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := newAlgorithm(t, loadCFA(t, scenarioB), interpolation.StrategyAtoms)
	res, err := a.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, VerdictCancelled, res.Verdict)
	assert.Len(t, res.Vertices, 1)

	_, err = a.Run(context.Background())
	assert.Error(t, err)
}

type mockProver struct {
	mock.Mock
}

func (m *mockProver) IsUnsat(f formula.Formula) (bool, error) {
	args := m.Called(f.String())
	return args.Bool(0), args.Error(1)
}

func (m *mockProver) Close() error {
	return m.Called().Error(0)
}

type mockInterpolation struct {
	mock.Mock
}

func (m *mockInterpolation) BuildCounterexampleTrace(ctx context.Context, trace []formula.Formula) (*interpolation.CounterexampleTraceInfo, error) {
	args := m.Called(len(trace))
	info, _ := args.Get(0).(*interpolation.CounterexampleTraceInfo)
	return info, args.Error(1)
}

func TestCollaboratorErrors(t *testing.T) {
	t.Parallel()

	errSolver := errors.New("solver crashed")
	spurious := &interpolation.CounterexampleTraceInfo{
		Spurious:     true,
		Interpolants: []formula.Formula{formula.Gt(formula.IndexedVar("x", 1, formula.SortInt), formula.Int(0))},
	}

	tests := []struct {
		name    string
		setup   func(p *mockProver, itp *mockInterpolation)
		wantErr error
		verdict Verdict
	}{
		{
			name: "interpolation error",
			setup: func(p *mockProver, itp *mockInterpolation) {
				itp.On("BuildCounterexampleTrace", 2).Return(nil, errSolver).Once()
			},
			wantErr: errSolver,
		},
		{
			name: "prover error during refinement",
			setup: func(p *mockProver, itp *mockInterpolation) {
				itp.On("BuildCounterexampleTrace", 2).Return(spurious, nil).Once()
				p.On("IsUnsat", "(x <= 0)").Return(false, errSolver).Once()
			},
			wantErr: errSolver,
		},
		{
			name: "cancelled refinement",
			setup: func(p *mockProver, itp *mockInterpolation) {
				itp.On("BuildCounterexampleTrace", 2).Return(nil, context.Canceled).Once()
			},
			verdict: VerdictCancelled,
		},
		{
			name: "spurious then safe",
			setup: func(p *mockProver, itp *mockInterpolation) {
				itp.On("BuildCounterexampleTrace", 2).Return(spurious, nil).Once()
				p.On("IsUnsat", "(x <= 0)").Return(false, nil).Once()
			},
			verdict: VerdictSafe,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p, itp := new(mockProver), new(mockInterpolation)
			p.On("Close").Return(nil).Once()
			tt.setup(p, itp)

			a := New(loadCFA(t, scenarioB), pathformula.NewManager(), p, itp)
			res, err := a.Run(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.verdict, res.Verdict)
			}
			require.NoError(t, a.Close())
			p.AssertExpectations(t)
			itp.AssertExpectations(t)
		})
	}
}

func TestCloseError(t *testing.T) {
	t.Parallel()

	p := new(mockProver)
	p.On("Close").Return(errors.New("leak")).Once()
	itp := new(mockInterpolation)

	a := New(loadCFA(t, scenarioC), pathformula.NewManager(), p, itp)
	res, err := a.Run(context.Background())
	assert.Error(t, err)
	assert.Nil(t, res)
	p.AssertExpectations(t)
}
