package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoverse/impact/formatter"
	"github.com/gnoverse/impact/internal"
	tt "github.com/gnoverse/impact/internal/types"
	"github.com/gnoverse/impact/verify"
)

var (
	verifyJsonOutput bool
	outPath          string
	funcName         string
	watchMode        bool
	noCache          bool
)

// ExitError signals that some files failed verification. The reports have
// already been printed.
type ExitError struct {
	Failed int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%d file(s) failed verification", e.Failed)
}

var verifyCmd = &cobra.Command{
	Use:   "verify [paths...]",
	Short: "Verify program files and directories",
	Long: `Checks that the error locations of each program are unreachable.
Programs are CFAs written in YAML (.yaml, .yml) or Go functions (.go, .gno).
Example) impact verify --func check ./programs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("please provide file or directory paths")
		}

		engine, err := verify.New(logger, verify.Options{
			ConfigPath: cfgFile,
			FuncName:   funcName,
			NoCache:    noCache,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize verification engine: %w", err)
		}

		if watchMode {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return runWatch(ctx, logger, engine, args, cmd.OutOrStdout())
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return runVerification(ctx, logger, engine, args, cmd.OutOrStdout(), verifyJsonOutput, outPath)
	},
}

func init() {
	verifyCmd.Flags().BoolVar(&verifyJsonOutput, "json", false, "Output reports in JSON format")
	verifyCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (when using JSON)")
	verifyCmd.Flags().StringVar(&funcName, "func", "", "Function to verify in Go sources (default main)")
	verifyCmd.Flags().BoolVar(&watchMode, "watch", false, "Re-verify files whenever they change")
	verifyCmd.Flags().BoolVar(&noCache, "no-cache", false, "Ignore and do not update the verdict cache")
}

func runVerification(
	ctx context.Context,
	logger *zap.Logger,
	engine verify.Verifier,
	paths []string,
	out io.Writer,
	isJson bool,
	jsonOutput string,
) error {
	reports, err := verify.ProcessFiles(ctx, logger, engine, paths, verify.ProcessFile)
	if err != nil {
		logger.Error("Error processing files", zap.Error(err))
	}

	if printErr := printReports(reports, out, isJson, jsonOutput); printErr != nil {
		return printErr
	}
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range reports {
		if r.Failed() {
			failed++
		}
	}
	if failed > 0 {
		return &ExitError{Failed: failed}
	}
	return nil
}

func printReports(reports []tt.Report, out io.Writer, isJson bool, jsonOutput string) error {
	if !isJson {
		fmt.Fprint(out, formatter.GenerateFormattedReport(reports))
		fmt.Fprintln(out)
		fmt.Fprintln(out, formatter.Summary(reports))
		return nil
	}

	d, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling reports to JSON: %w", err)
	}
	if jsonOutput == "" {
		_, err = fmt.Fprintln(out, string(d))
		return err
	}
	if err := os.WriteFile(jsonOutput, d, 0o644); err != nil {
		return fmt.Errorf("error writing JSON output file: %w", err)
	}
	return nil
}

func runWatch(ctx context.Context, logger *zap.Logger, engine *internal.Engine, paths []string, out io.Writer) error {
	var dirs []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("error accessing %s: %w", path, err)
		}
		if info.IsDir() {
			dirs = append(dirs, path)
		}
	}
	if len(dirs) == 0 {
		return fmt.Errorf("watch mode needs at least one directory")
	}

	if err := engine.StartWatching(dirs...); err != nil {
		return err
	}
	logger.Info("Watching for changes", zap.Strings("dirs", dirs))
	return engine.Watch(ctx, func(r tt.Report) {
		fmt.Fprint(out, formatter.GenerateFormattedReport([]tt.Report{r}))
	})
}
