// Package interpolation checks candidate error traces and computes sequence
// interpolants for the infeasible ones.
package interpolation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/gnoverse/impact/internal/formula"
	"github.com/gnoverse/impact/internal/solver"
)

// Strategy selects how interpolants are computed.
type Strategy string

const (
	// StrategyAtoms builds interpolants from the atoms of the trace and
	// falls back to StrategyBits when they are not strong enough.
	StrategyAtoms Strategy = "atoms"
	// StrategyBits enumerates cubes over the bits of the shared variables.
	StrategyBits Strategy = "bits"
)

const DefaultMaxCubes = 4096

var (
	// ErrTooManyCubes is returned when bit-level enumeration exceeds its
	// bound.
	ErrTooManyCubes = errors.New("interpolant exceeds the cube limit")
	// ErrNotRefuted is returned when a prefix model satisfies the suffix,
	// i.e. the trace was not infeasible at that position.
	ErrNotRefuted = errors.New("suffix not refuted by prefix")
)

// Config holds interpolation settings.
type Config struct {
	Strategy Strategy `yaml:"strategy"`
	MaxCubes int      `yaml:"max_cubes"`
}

// DefaultConfig returns the atoms strategy with the default cube bound.
func DefaultConfig() Config {
	return Config{Strategy: StrategyAtoms, MaxCubes: DefaultMaxCubes}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Strategy {
	case StrategyAtoms, StrategyBits:
	default:
		return fmt.Errorf("unknown interpolation strategy %q", c.Strategy)
	}
	if c.MaxCubes < 0 {
		return fmt.Errorf("negative cube limit %d", c.MaxCubes)
	}
	return nil
}

// CounterexampleTraceInfo is the outcome of checking a trace. Interpolants
// are set for spurious traces, Model for feasible ones.
type CounterexampleTraceInfo struct {
	Spurious     bool
	Interpolants []formula.Formula
	Model        formula.Model
}

// Manager computes interpolants with a solver.Prover.
type Manager struct {
	prover *solver.Prover
	cfg    Config
	logger *zap.Logger
}

// NewManager returns a manager that queries prover.
func NewManager(prover *solver.Prover, cfg Config, logger *zap.Logger) *Manager {
	if cfg.MaxCubes == 0 {
		cfg.MaxCubes = DefaultMaxCubes
	}
	if cfg.Strategy == "" {
		cfg.Strategy = StrategyAtoms
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{prover: prover, cfg: cfg, logger: logger}
}

// BuildCounterexampleTrace checks the conjunction of trace. If it is
// satisfiable the trace is feasible and a model is returned. Otherwise one
// interpolant is returned per cut between consecutive formulas: for
// len(trace) formulas there are len(trace)-1 interpolants I_1..I_{n-1} with
//
//	I_{i-1} && A_i => I_i    (I_0 = true)
//	I_i && A_{i+1} && ... && A_n is unsatisfiable
//
// and I_i mentions only variables shared by both sides of the cut.
func (m *Manager) BuildCounterexampleTrace(ctx context.Context, trace []formula.Formula) (*CounterexampleTraceInfo, error) {
	model, err := m.prover.Model(formula.And(trace...))
	switch {
	case err == nil:
		return &CounterexampleTraceInfo{Spurious: false, Model: model}, nil
	case !errors.Is(err, solver.ErrUnsatisfiable):
		return nil, fmt.Errorf("checking trace feasibility: %w", err)
	}

	itps := make([]formula.Formula, 0, len(trace))
	prev := formula.True()
	for i := 0; i+1 < len(trace); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prefix := formula.And(prev, trace[i])
		suffix := formula.And(trace[i+1:]...)
		itp, err := m.interpolate(prefix, suffix, trace)
		if err != nil {
			return nil, fmt.Errorf("interpolating at position %d: %w", i+1, err)
		}
		m.logger.Debug("Computed interpolant",
			zap.Int("position", i+1),
			zap.Stringer("interpolant", itp))
		itps = append(itps, itp)
		prev = itp
	}
	return &CounterexampleTraceInfo{Spurious: true, Interpolants: itps}, nil
}

func (m *Manager) interpolate(prefix, suffix formula.Formula, trace []formula.Formula) (formula.Formula, error) {
	unsat, err := m.prover.IsUnsat(prefix)
	if err != nil {
		return nil, err
	}
	if unsat {
		return formula.False(), nil
	}
	unsat, err = m.prover.IsUnsat(suffix)
	if err != nil {
		return nil, err
	}
	if unsat {
		return formula.True(), nil
	}

	shared := sharedVars(prefix, suffix)
	if m.cfg.Strategy == StrategyAtoms {
		itp, ok, err := m.atomInterpolant(prefix, suffix, shared, trace)
		if err != nil {
			return nil, err
		}
		if ok {
			return itp, nil
		}
		m.logger.Debug("Atom candidates too weak, enumerating bits")
	}
	return m.bitInterpolant(prefix, suffix, shared)
}

// sharedVars returns the variables occurring on both sides of a cut,
// sorted.
func sharedVars(prefix, suffix formula.Formula) []formula.Var {
	inPrefix := make(map[formula.Var]bool)
	for _, v := range formula.Vars(prefix) {
		inPrefix[v] = true
	}
	var shared []formula.Var
	for _, v := range formula.Vars(suffix) {
		if inPrefix[v] {
			shared = append(shared, v)
		}
	}
	return shared
}
