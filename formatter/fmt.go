package formatter

import (
	"fmt"
	"strings"

	tt "github.com/gnoverse/impact/internal/types"
)

// GenerateFormattedReport formats reports into a human-readable string,
// one block per file separated by blank lines.
func GenerateFormattedReport(reports []tt.Report) string {
	var builder strings.Builder
	for i, report := range reports {
		if i > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(buildReport(report, getReportFormatter(report.Status)))
	}
	return builder.String()
}

var summaryOrder = []tt.Status{
	tt.StatusSafe,
	tt.StatusUnsafe,
	tt.StatusUnknown,
	tt.StatusCancelled,
	tt.StatusError,
}

// Summary counts reports by status, e.g. "3 files: 2 safe, 1 unsafe".
func Summary(reports []tt.Report) string {
	counts := make(map[tt.Status]int)
	for _, r := range reports {
		counts[r.Status]++
	}

	noun := "files"
	if len(reports) == 1 {
		noun = "file"
	}
	var parts []string
	for _, s := range summaryOrder {
		if counts[s] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[s], s))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d %s", len(reports), noun)
	}
	return fmt.Sprintf("%d %s: %s", len(reports), noun, strings.Join(parts, ", "))
}
