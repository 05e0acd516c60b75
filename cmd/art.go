package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gnoverse/impact/internal/cfa"
	"github.com/gnoverse/impact/internal/reached"
	"github.com/gnoverse/impact/verify"
)

var newick bool

var artCmd = &cobra.Command{
	Use:   "art [file]",
	Short: "Print the abstract reachability tree of a verified program",
	Long: `Verifies a program and outputs the final unwinding tree in GraphViz DOT
format (covering edges are dashed) or in Newick format.
Example) impact art --newick prog.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return runART(ctx, logger, args[0], cmd.OutOrStdout())
	},
}

func init() {
	artCmd.Flags().StringVar(&funcName, "func", "", "Function to lower from Go sources (default main)")
	artCmd.Flags().BoolVar(&newick, "newick", false, "Output the tree in Newick format")
	artCmd.Flags().StringVarP(&output, "output", "o", "", "Output path (DOT is rendered with GraphViz)")
}

func runART(ctx context.Context, logger *zap.Logger, path string, out io.Writer) error {
	engine, err := verify.New(logger, verify.Options{ConfigPath: cfgFile, FuncName: funcName, NoCache: true})
	if err != nil {
		return err
	}
	c, err := engine.Load(path)
	if err != nil {
		return err
	}
	res, err := engine.Verify(ctx, c)
	if err != nil {
		return err
	}
	set := reached.FromResult(res)
	logger.Info("Unwinding complete", zap.String("file", path), zap.Stringer("verdict", set.Verdict()))

	if newick {
		tree := set.Newick() + "\n"
		if output == "" {
			_, err := io.WriteString(out, tree)
			return err
		}
		return os.WriteFile(output, []byte(tree), 0o644)
	}

	var buf strings.Builder
	if err := set.WriteDot(&buf); err != nil {
		return err
	}
	if output == "" {
		_, err := io.WriteString(out, buf.String())
		return err
	}
	if err := cfa.RenderToGraphVizFile(ctx, []byte(buf.String()), output); err != nil {
		return fmt.Errorf("failed to render tree to GraphViz file: %w", err)
	}
	fmt.Fprintf(out, "GraphViz file created: %s\n", output)
	return nil
}
