// Package solver decides formulas by bit-blasting them to SAT.
package solver

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-air/gini"

	"github.com/gnoverse/impact/internal/formula"
)

var (
	// ErrUnknown is returned when the solver gives up, e.g. on timeout.
	ErrUnknown = errors.New("solver returned unknown")
	// ErrUnsupported is returned for formulas outside the encodable fragment.
	ErrUnsupported = errors.New("unsupported formula")
	// ErrClosed is returned when a closed prover is queried.
	ErrClosed = errors.New("prover is closed")
	// ErrUnsatisfiable is returned by Model for unsatisfiable formulas.
	ErrUnsatisfiable = errors.New("formula is unsatisfiable")
)

const (
	DefaultIntWidth = 8
	MaxIntWidth     = 64
)

// Config holds prover settings.
type Config struct {
	// IntWidth is the number of bits of every integer.
	IntWidth int `yaml:"int_width"`
	// Timeout bounds each query. Zero means no bound.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns 8-bit integers without timeout.
func DefaultConfig() Config {
	return Config{IntWidth: DefaultIntWidth}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.IntWidth < 2 || c.IntWidth > MaxIntWidth {
		return fmt.Errorf("int width %d out of range [2, %d]", c.IntWidth, MaxIntWidth)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("negative timeout %s", c.Timeout)
	}
	return nil
}

// Stats counts prover queries by outcome.
type Stats struct {
	Queries int
	Sat     int
	Unsat   int
	Unknown int
}

// Prover is a theorem-prover session. Each query is solved on a fresh
// circuit and SAT instance, so queries are independent of each other.
// A Prover is not safe for concurrent use.
type Prover struct {
	cfg    Config
	stats  Stats
	closed bool
}

// NewProver opens a prover session.
func NewProver(cfg Config) (*Prover, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Prover{cfg: cfg}, nil
}

// Config returns the session configuration.
func (p *Prover) Config() Config { return p.cfg }

// Stats returns the query counters.
func (p *Prover) Stats() Stats { return p.stats }

// IsUnsat reports whether f has no model.
func (p *Prover) IsUnsat(f formula.Formula) (bool, error) {
	res, _, err := p.check(f, false)
	if err != nil {
		return false, err
	}
	return res < 0, nil
}

// Implies reports whether a entails b.
func (p *Prover) Implies(a, b formula.Formula) (bool, error) {
	return p.IsUnsat(formula.And(a, formula.Not(b)))
}

// Model returns a model of f. It returns ErrUnsatisfiable if there is none.
func (p *Prover) Model(f formula.Formula) (formula.Model, error) {
	res, m, err := p.check(f, true)
	if err != nil {
		return nil, err
	}
	if res < 0 {
		return nil, ErrUnsatisfiable
	}
	return m, nil
}

// Close ends the session. Closing twice is a no-op.
func (p *Prover) Close() error {
	p.closed = true
	return nil
}

// NewSAT returns an empty SAT instance for callers that drive gini
// directly, such as interpolation.
func (p *Prover) NewSAT() (*gini.Gini, error) {
	if p.closed {
		return nil, ErrClosed
	}
	return gini.New(), nil
}

// Solve runs g under the session timeout and returns 1 (sat) or -1
// (unsat). A timeout is reported as ErrUnknown.
func (p *Prover) Solve(g *gini.Gini) (int, error) {
	if p.closed {
		return 0, ErrClosed
	}
	p.stats.Queries++
	var res int
	if p.cfg.Timeout > 0 {
		res = g.Try(p.cfg.Timeout)
	} else {
		res = g.Solve()
	}
	switch res {
	case 1:
		p.stats.Sat++
	case -1:
		p.stats.Unsat++
	default:
		p.stats.Unknown++
		return 0, ErrUnknown
	}
	return res, nil
}

func (p *Prover) check(f formula.Formula, wantModel bool) (int, formula.Model, error) {
	if p.closed {
		return 0, nil, ErrClosed
	}
	enc := NewEncoder(p.cfg.IntWidth)
	root, err := enc.Formula(f)
	if err != nil {
		return 0, nil, err
	}
	g := gini.New()
	enc.AddTo(g, root)

	res, err := p.Solve(g)
	if err != nil {
		return 0, nil, fmt.Errorf("checking %s: %w", f, err)
	}
	if res > 0 && wantModel {
		return res, enc.Model(g), nil
	}
	return res, nil, nil
}
