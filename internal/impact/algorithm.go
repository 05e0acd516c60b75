// Package impact implements lazy abstraction with interpolants: it unwinds a
// control-flow automaton into a tree of vertices labeled with state formulas,
// refines the labels along spurious error paths and stops exploring vertices
// whose states are covered by older ones.
package impact

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gnoverse/impact/internal/cfa"
	"github.com/gnoverse/impact/internal/formula"
	"github.com/gnoverse/impact/internal/interpolation"
	"github.com/gnoverse/impact/internal/pathformula"
)

// PathFormulaManager computes successor path formulas.
type PathFormulaManager interface {
	MakeEmptyPathFormula() pathformula.PathFormula
	// MakeEmptyPathFormulaFrom keeps the SSA indices of pf with formula
	// true.
	MakeEmptyPathFormulaFrom(pf pathformula.PathFormula) pathformula.PathFormula
	MakeAnd(pf pathformula.PathFormula, e *cfa.Edge) (pathformula.PathFormula, error)
}

// Prover decides satisfiability. The algorithm owns it and closes it when
// the run ends.
type Prover interface {
	IsUnsat(f formula.Formula) (bool, error)
	Close() error
}

// InterpolationManager checks error traces.
type InterpolationManager interface {
	BuildCounterexampleTrace(ctx context.Context, trace []formula.Formula) (*interpolation.CounterexampleTraceInfo, error)
}

// Option configures an Algorithm.
type Option func(*Algorithm)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Algorithm) { a.logger = logger }
}

// WithMaxVertices bounds the number of vertices. Zero means unbounded.
func WithMaxVertices(n int) Option {
	return func(a *Algorithm) { a.maxVertices = n }
}

// Algorithm is a single verification run. It is not safe for concurrent
// use and can only be run once.
type Algorithm struct {
	cfa    *cfa.CFA
	pfm    PathFormulaManager
	prover Prover
	itp    InterpolationManager
	logger *zap.Logger

	maxVertices int

	vertices []*Vertex
	stats    Stats
	ran      bool

	closeOnce sync.Once
	closeErr  error
}

// New returns an algorithm over c. It takes ownership of prover.
func New(c *cfa.CFA, pfm PathFormulaManager, prover Prover, itp InterpolationManager, opts ...Option) *Algorithm {
	a := &Algorithm{
		cfa:    c,
		pfm:    pfm,
		prover: prover,
		itp:    itp,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Close releases the prover. It is safe to call more than once.
func (a *Algorithm) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.prover.Close()
	})
	return a.closeErr
}

// Vertices returns the unwinding in creation order.
func (a *Algorithm) Vertices() []*Vertex { return append([]*Vertex(nil), a.vertices...) }

// Run unwinds the CFA until it is proven safe, a counterexample is found or
// ctx is done. Cancellation yields VerdictCancelled and no error.
func (a *Algorithm) Run(ctx context.Context) (res *Result, err error) {
	if a.ran {
		return nil, errors.New("impact: algorithm already ran")
	}
	a.ran = true
	defer func() {
		if cerr := a.Close(); cerr != nil && err == nil {
			res, err = nil, fmt.Errorf("closing prover: %w", cerr)
		}
	}()

	start := time.Now()
	a.init()
	cex, err := a.unwind(ctx)
	a.stats.Duration = time.Since(start)
	a.stats.Vertices = len(a.vertices)

	res = &Result{Vertices: a.Vertices(), Stats: a.stats}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		res.Verdict = VerdictCancelled
	case err != nil:
		return nil, err
	case cex != nil:
		res.Verdict = VerdictUnsafe
		res.Counterexample = cex
	default:
		res.Verdict = VerdictSafe
	}

	a.logger.Info("Unwinding finished",
		zap.Stringer("verdict", res.Verdict),
		zap.Int("vertices", a.stats.Vertices),
		zap.Int("refinements", a.stats.Refinements),
		zap.Int("covers", a.stats.Covers),
		zap.Duration("duration", a.stats.Duration))
	return res, nil
}

func (a *Algorithm) init() {
	if len(a.vertices) > 0 {
		return
	}
	root := newVertex(0, a.cfa.Entry, a.pfm.MakeEmptyPathFormula(), nil, nil)
	a.vertices = append(a.vertices, root)
}

func (a *Algorithm) unwind(ctx context.Context) (*Counterexample, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v := a.nextLeaf()
		if v == nil {
			return nil, nil
		}

		path := v.PathFromRoot()
		for _, w := range path[:len(path)-1] {
			if err := a.close(w); err != nil {
				return nil, err
			}
		}

		cex, err := a.dfs(ctx, v)
		if err != nil || cex != nil {
			return cex, err
		}
	}
}

// nextLeaf returns the oldest vertex that still needs work: an uncovered,
// unblocked vertex without children that is either expandable or an
// unrefined target.
func (a *Algorithm) nextLeaf() *Vertex {
	for _, v := range a.vertices {
		if len(v.children) > 0 || !(v.IsLeaf() || v.IsTarget()) {
			continue
		}
		if v.IsCovered() || v.IsBlocked() {
			continue
		}
		return v
	}
	return nil
}

func (a *Algorithm) dfs(ctx context.Context, v *Vertex) (*Counterexample, error) {
	if err := a.close(v); err != nil {
		return nil, err
	}
	if v.IsCovered() || v.IsBlocked() {
		return nil, nil
	}

	if v.IsTarget() {
		cex, err := a.refine(ctx, v)
		if err != nil || cex != nil {
			return cex, err
		}
		for _, w := range v.PathFromRoot() {
			if err := a.close(w); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	if !v.IsLeaf() {
		return nil, nil
	}
	children, err := a.expand(v)
	if err != nil {
		return nil, err
	}
	for _, w := range children {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cex, err := a.dfs(ctx, w)
		if err != nil || cex != nil {
			return cex, err
		}
	}
	return nil, nil
}

// expand creates one child per leaving edge of v. Either all children are
// created or none.
func (a *Algorithm) expand(v *Vertex) ([]*Vertex, error) {
	if !v.IsLeaf() || v.IsCovered() {
		panic(fmt.Sprintf("impact: expanding %s which is not an uncovered leaf", v))
	}
	edges := v.location.LeavingEdges()
	if a.maxVertices > 0 && len(a.vertices)+len(edges) > a.maxVertices {
		return nil, fmt.Errorf("%w: %d", ErrBoundExceeded, a.maxVertices)
	}

	pfs := make([]pathformula.PathFormula, len(edges))
	for i, e := range edges {
		pf, err := a.pfm.MakeAnd(a.pfm.MakeEmptyPathFormulaFrom(v.pathFormula), e)
		if err != nil {
			return nil, fmt.Errorf("expanding %s: %w", v, err)
		}
		pfs[i] = pf
	}

	children := make([]*Vertex, len(edges))
	for i, e := range edges {
		w := newVertex(len(a.vertices), e.To, pfs[i], v, e)
		a.vertices = append(a.vertices, w)
		children[i] = w
	}
	a.stats.Expansions++
	a.logger.Debug("Expanded vertex",
		zap.Stringer("vertex", v),
		zap.Int("children", len(children)))
	return children, nil
}

// close tries to cover v by an older vertex at the same location. It is a
// no-op for covered and blocked vertices.
func (a *Algorithm) close(v *Vertex) error {
	if v.IsCovered() || v.IsBlocked() {
		return nil
	}
	for _, w := range a.vertices {
		if !w.IsOlderThan(v) {
			break
		}
		if w.location != v.location || w.IsCovered() || w.IsBlocked() {
			continue
		}
		ok, err := a.cover(v, w)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return nil
}

// cover covers v by w if the state of v implies the state of w.
func (a *Algorithm) cover(v, w *Vertex) (bool, error) {
	if v.location != w.location {
		panic(fmt.Sprintf("impact: covering %s by %s at another location", v, w))
	}
	if v.IsCovered() || w.IsCovered() {
		panic(fmt.Sprintf("impact: covering %s by %s with one of them covered", v, w))
	}
	if v.IsAncestorOf(w) {
		panic(fmt.Sprintf("impact: covering %s by its descendant %s", v, w))
	}

	a.stats.CoverChecks++
	ok, err := a.implies(v.stateFormula, w.stateFormula)
	if err != nil {
		return false, fmt.Errorf("covering %s by %s: %w", v, w, err)
	}
	if !ok {
		return false, nil
	}
	for _, x := range v.Subtree() {
		x.CleanCoverage()
	}
	v.SetCoveredBy(w)
	a.stats.Covers++
	a.logger.Debug("Covered vertex",
		zap.Stringer("vertex", v),
		zap.Stringer("by", w))
	return true, nil
}

// refine checks the path to the target v. A feasible path is returned as a
// counterexample. Otherwise the path is labeled with the interpolants and v
// is refuted.
func (a *Algorithm) refine(ctx context.Context, v *Vertex) (*Counterexample, error) {
	if !v.IsTarget() {
		panic(fmt.Sprintf("impact: refining non-target vertex %s", v))
	}
	start := time.Now()
	defer func() { a.stats.RefineTime += time.Since(start) }()
	a.stats.Refinements++

	path := v.PathFromRoot()
	trace := make([]formula.Formula, 0, len(path)-1)
	for _, w := range path[1:] {
		trace = append(trace, w.pathFormula.Formula)
	}

	info, err := a.itp.BuildCounterexampleTrace(ctx, trace)
	if err != nil {
		return nil, fmt.Errorf("refining %s: %w", v, err)
	}
	if !info.Spurious {
		a.logger.Debug("Found feasible error path", zap.Stringer("target", v))
		return &Counterexample{Path: path, Model: info.Model}, nil
	}
	if len(trace) > 0 && len(info.Interpolants) != len(trace)-1 {
		panic(fmt.Sprintf("impact: got %d interpolants for a trace of length %d", len(info.Interpolants), len(trace)))
	}

	for i, raw := range info.Interpolants {
		w := path[i+1]
		itp := formula.Uninstantiate(raw)
		if formula.IsTrue(itp) {
			continue
		}
		ok, err := a.implies(w.stateFormula, itp)
		if err != nil {
			return nil, fmt.Errorf("refining %s: %w", w, err)
		}
		if ok {
			continue
		}
		w.SetStateFormula(formula.And(w.stateFormula, itp))
		a.logger.Debug("Strengthened vertex",
			zap.Stringer("vertex", w),
			zap.Stringer("state", w.stateFormula))
	}
	v.SetStateFormula(formula.False())
	return nil, nil
}

// implies reports whether x entails y.
func (a *Algorithm) implies(x, y formula.Formula) (bool, error) {
	f := formula.And(x, formula.Not(y))
	if formula.IsFalse(f) {
		return true, nil
	}
	a.stats.ProverQueries++
	return a.prover.IsUnsat(f)
}
