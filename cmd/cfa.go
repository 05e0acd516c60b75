package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoverse/impact/internal/cfa"
	"github.com/gnoverse/impact/verify"
)

var output string

var cfaCmd = &cobra.Command{
	Use:   "cfa [file]",
	Short: "Print the control-flow automaton of a program",
	Long: `Outputs the CFA of a program in GraphViz DOT format, or renders it to a file.
Example) impact cfa --func check prog.go -o check.svg`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		// timeout is a global variable declared in root.go
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return runCFA(ctx, logger, args[0], cmd.OutOrStdout())
	},
}

func init() {
	cfaCmd.Flags().StringVar(&funcName, "func", "", "Function to lower from Go sources (default main)")
	cfaCmd.Flags().StringVarP(&output, "output", "o", "", "Output path for rendered GraphViz file")
}

func runCFA(ctx context.Context, logger *zap.Logger, path string, out io.Writer) error {
	engine, err := verify.New(logger, verify.Options{ConfigPath: cfgFile, FuncName: funcName, NoCache: true})
	if err != nil {
		return err
	}
	c, err := engine.Load(path)
	if err != nil {
		return err
	}

	var buf strings.Builder
	if err := cfa.WriteDot(&buf, c); err != nil {
		return err
	}
	if output == "" {
		_, err := io.WriteString(out, buf.String())
		return err
	}
	if err := cfa.RenderToGraphVizFile(ctx, []byte(buf.String()), output); err != nil {
		return fmt.Errorf("failed to render CFA to GraphViz file: %w", err)
	}
	fmt.Fprintf(out, "GraphViz file created: %s\n", output)
	return nil
}
