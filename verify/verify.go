// Package verify checks program files for reachability of their error
// locations, one file or a whole directory tree at a time.
package verify

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sort"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gnoverse/impact/internal"
	tt "github.com/gnoverse/impact/internal/types"
	"github.com/gnoverse/impact/scanner"
)

// Verifier produces the report of one program file.
type Verifier interface {
	Run(ctx context.Context, filename string) (tt.Report, error)
}

// Options tune New beyond the configuration file.
type Options struct {
	// ConfigPath is the configuration file. Empty means DefaultConfigFile.
	ConfigPath string
	// FuncName selects the function verified in Go sources. Empty means main.
	FuncName string
	// NoCache disables the verdict cache.
	NoCache bool
}

// New creates an engine from the configuration file named in opts.
func New(logger *zap.Logger, opts Options) (*internal.Engine, error) {
	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = DefaultConfigFile
	}
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	engine, err := internal.NewEngine(config.Options(opts.FuncName), logger)
	if err != nil {
		return nil, err
	}
	if !opts.NoCache && config.Cache.Dir != "" {
		cache, err := internal.NewCache(config.Cache.Dir, config.Cache.MaxAge, configPath)
		if err != nil {
			return nil, err
		}
		engine.SetCache(cache)
	}
	return engine, nil
}

// ProcessFile verifies a single file.
func ProcessFile(ctx context.Context, engine Verifier, filePath string) (tt.Report, error) {
	return engine.Run(ctx, filePath)
}

// ProcessFiles verifies every path in turn. Reports come back sorted by
// file name.
func ProcessFiles(
	ctx context.Context,
	logger *zap.Logger,
	engine Verifier,
	paths []string,
	processor func(context.Context, Verifier, string) (tt.Report, error),
) ([]tt.Report, error) {
	var allReports []tt.Report
	for _, path := range paths {
		reports, err := ProcessPath(ctx, logger, engine, path, processor)
		allReports = append(allReports, reports...)
		if err != nil {
			if logger != nil {
				logger.Error("Error processing path", zap.String("path", path), zap.Error(err))
			}
			return allReports, err
		}
	}

	sortReports(allReports)
	return allReports, nil
}

// ProcessPath verifies path, or every program file below it when it is a
// directory. A file that fails to verify yields an error report rather
// than stopping the batch. The returned error is reserved for an
// inaccessible path and for cancellation, in which case the reports
// finished so far are returned with it.
func ProcessPath(
	ctx context.Context,
	logger *zap.Logger,
	engine Verifier,
	path string,
	processor func(context.Context, Verifier, string) (tt.Report, error),
) ([]tt.Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing %s: %w", path, err)
	}

	if !info.IsDir() {
		if !internal.IsProgramFile(path) {
			logger.Debug("Skipping non-program file", zap.String("path", path))
			return []tt.Report{}, nil
		}
		return []tt.Report{processOne(ctx, logger, engine, path, processor)}, nil
	}

	files, err := scanner.New(path, internal.ProgramExtensions()...).Scan()
	if err != nil {
		return nil, fmt.Errorf("error walking directory %s: %w", path, err)
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(path),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))

	results := make([]*tt.Report, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, file := range files {
		if gctx.Err() != nil {
			break
		}
		i, fp := i, file.Path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r := processOne(gctx, logger, engine, fp, processor)
			results[i] = &r
			_ = bar.Add(1)
			return nil
		})
	}
	err = g.Wait()
	_ = bar.Finish()
	if err == nil {
		err = ctx.Err()
	}

	reports := make([]tt.Report, 0, len(files))
	for _, r := range results {
		if r != nil {
			reports = append(reports, *r)
		}
	}
	sortReports(reports)
	return reports, err
}

func processOne(
	ctx context.Context,
	logger *zap.Logger,
	engine Verifier,
	path string,
	processor func(context.Context, Verifier, string) (tt.Report, error),
) tt.Report {
	r, err := processor(ctx, engine, path)
	if err != nil {
		logger.Error("Error processing file", zap.String("file", path), zap.Error(err))
		return tt.Report{Filename: path, Status: tt.StatusError, Error: err.Error()}
	}
	return r
}

func sortReports(reports []tt.Report) {
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].Filename < reports[j].Filename
	})
}

// HasFailures reports whether any report is unsafe or errored.
func HasFailures(reports []tt.Report) bool {
	for _, r := range reports {
		if r.Failed() {
			return true
		}
	}
	return false
}
