package cfa

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// WriteDot writes c in GraphViz DOT format. Target locations are drawn as
// double circles and the entry location is bold.
func WriteDot(w io.Writer, c *CFA) error {
	var buf strings.Builder
	fmt.Fprintf(&buf, "digraph %s {\n", strconv.Quote(c.Name))
	buf.WriteString("\tnode [shape=circle];\n")
	for _, l := range c.Locations {
		var attrs []string
		attrs = append(attrs, "label="+strconv.Quote(l.name))
		if l.target {
			attrs = append(attrs, "shape=doublecircle", "color=red")
		}
		if l == c.Entry {
			attrs = append(attrs, "style=bold")
		}
		fmt.Fprintf(&buf, "\tn%d [%s];\n", l.id, strings.Join(attrs, ", "))
	}
	for _, e := range c.Edges() {
		fmt.Fprintf(&buf, "\tn%d -> n%d [label=%s];\n", e.From.id, e.To.id, strconv.Quote(e.String()))
	}
	buf.WriteString("}\n")

	_, err := io.WriteString(w, buf.String())
	return err
}

// RenderToGraphVizFile renders dot with the GraphViz dot tool. The output
// format follows the extension of output and defaults to png.
func RenderToGraphVizFile(ctx context.Context, dot []byte, output string) error {
	format := strings.TrimPrefix(filepath.Ext(output), ".")
	if format == "" {
		format = "png"
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "dot", "-T"+format, "-o", output)
	cmd.Stdin = bytes.NewReader(dot)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running dot: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
