package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/gnoverse/impact/internal/cfa"
	"github.com/gnoverse/impact/internal/frontend"
	"github.com/gnoverse/impact/internal/impact"
	"github.com/gnoverse/impact/internal/interpolation"
	"github.com/gnoverse/impact/internal/pathformula"
	"github.com/gnoverse/impact/internal/reached"
	"github.com/gnoverse/impact/internal/solver"
	tt "github.com/gnoverse/impact/internal/types"
)

var programExtensions = map[string]bool{
	".yaml": true,
	".yml":  true,
	".go":   true,
	".gno":  true,
}

// ProgramExtensions lists the file extensions the engine can verify.
func ProgramExtensions() []string {
	return []string{".yaml", ".yml", ".go", ".gno"}
}

// IsProgramFile reports whether path has a verifiable extension.
func IsProgramFile(path string) bool {
	return programExtensions[filepath.Ext(path)]
}

func isSourceFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".go" || ext == ".gno"
}

// Options configures an Engine.
type Options struct {
	Solver        solver.Config
	Interpolation interpolation.Config
	// MaxVertices bounds each unwinding. Zero means unbounded.
	MaxVertices int
	// FuncName selects the function lowered from Go sources.
	FuncName string
	// Debounce is the quiet period of the watch loop.
	Debounce time.Duration
}

const defaultDebounce = 100 * time.Millisecond

// Validate checks the options.
func (o Options) Validate() error {
	if err := o.Solver.Validate(); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if err := o.Interpolation.Validate(); err != nil {
		return fmt.Errorf("interpolation: %w", err)
	}
	if o.MaxVertices < 0 {
		return fmt.Errorf("negative vertex bound %d", o.MaxVertices)
	}
	return nil
}

// Engine verifies program files.
type Engine struct {
	opts   Options
	logger *zap.Logger
	cache  *Cache

	watch *watchState
}

// NewEngine creates a new verification engine.
func NewEngine(opts Options, logger *zap.Logger) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	return &Engine{opts: opts, logger: logger}, nil
}

// SetCache enables the verdict cache. A nil cache disables it.
func (e *Engine) SetCache(c *Cache) {
	e.cache = c
}

// Load builds the CFA of a program file.
func (e *Engine) Load(filename string) (*cfa.CFA, error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", filename, err)
	}
	return e.LoadSource(filename, source)
}

// LoadSource builds the CFA of source, picking the front end by the
// extension of filename.
func (e *Engine) LoadSource(filename string, source []byte) (*cfa.CFA, error) {
	if isSourceFile(filename) {
		return frontend.FromSource(filename, source, e.opts.FuncName)
	}
	if !IsProgramFile(filename) {
		return nil, fmt.Errorf("unsupported program file %s", filename)
	}
	c, err := cfa.Load(bytes.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", filename, err)
	}
	return c, nil
}

// Run verifies the given file and returns its report. Cached reports are
// reused while the file is unchanged.
func (e *Engine) Run(ctx context.Context, filename string) (tt.Report, error) {
	if e.cache != nil {
		if r, ok := e.cache.Get(filename, e.opts.FuncName); ok {
			e.logger.Debug("Cache hit", zap.String("file", filename))
			return r, nil
		}
	}

	source, err := os.ReadFile(filename)
	if err != nil {
		return tt.Report{}, fmt.Errorf("error reading %s: %w", filename, err)
	}
	r, err := e.RunSource(ctx, filename, source)
	if err != nil {
		return tt.Report{}, err
	}

	if e.cache != nil && r.Status != tt.StatusCancelled {
		if err := e.cache.Set(filename, e.opts.FuncName, r); err != nil {
			e.logger.Warn("Failed to cache report", zap.String("file", filename), zap.Error(err))
		}
	}
	return r, nil
}

// RunSource verifies source as if it were read from filename.
func (e *Engine) RunSource(ctx context.Context, filename string, source []byte) (tt.Report, error) {
	c, err := e.LoadSource(filename, source)
	if err != nil {
		return tt.Report{}, err
	}
	res, hits, err := e.verify(ctx, c)
	if errors.Is(err, impact.ErrBoundExceeded) {
		return tt.Report{
			Filename: filename,
			Program:  c.Name,
			Status:   tt.StatusUnknown,
			Error:    err.Error(),
		}, nil
	}
	if err != nil {
		return tt.Report{}, fmt.Errorf("error verifying %s: %w", filename, err)
	}
	r := NewReport(filename, c, res)
	r.Stats.CacheHits = hits
	return r, nil
}

// Verify runs the unwinding algorithm on c with a fresh prover.
func (e *Engine) Verify(ctx context.Context, c *cfa.CFA) (*impact.Result, error) {
	res, _, err := e.verify(ctx, c)
	return res, err
}

func (e *Engine) verify(ctx context.Context, c *cfa.CFA) (*impact.Result, int, error) {
	prover, err := solver.NewProver(e.opts.Solver)
	if err != nil {
		return nil, 0, err
	}
	cached := solver.NewCachingProver(prover)
	itp := interpolation.NewManager(prover, e.opts.Interpolation, e.logger)
	alg := impact.New(c, pathformula.NewManager(), cached, itp,
		impact.WithLogger(e.logger.With(zap.String("cfa", c.Name))),
		impact.WithMaxVertices(e.opts.MaxVertices))
	res, err := alg.Run(ctx)
	return res, cached.Stats().Hits, err
}

// NewReport summarizes a finished run.
func NewReport(filename string, c *cfa.CFA, res *impact.Result) tt.Report {
	set := reached.FromResult(res)
	r := tt.Report{
		Filename: filename,
		Program:  c.Name,
		Stats: tt.Stats{
			Vertices:      res.Stats.Vertices,
			Expansions:    res.Stats.Expansions,
			Covers:        res.Stats.Covers,
			Refinements:   res.Stats.Refinements,
			ProverQueries: res.Stats.ProverQueries,
			Duration:      res.Stats.Duration,
		},
	}

	switch res.Verdict {
	case impact.VerdictSafe:
		r.Status = tt.StatusSafe
		inv := set.Invariants()
		for _, loc := range set.Locations() {
			r.Invariants = append(r.Invariants, tt.Invariant{Location: loc, Formula: inv[loc].String()})
		}
	case impact.VerdictUnsafe:
		r.Status = tt.StatusUnsafe
		r.Trace = set.Trace()
	default:
		r.Status = tt.StatusCancelled
	}
	return r
}
