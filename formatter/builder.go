package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/fatih/color"

	"github.com/gnoverse/impact/internal/reached"
	tt "github.com/gnoverse/impact/internal/types"
)

var (
	unsafeStyle  = color.New(color.FgRed, color.Bold)
	safeStyle    = color.New(color.FgGreen, color.Bold)
	unknownStyle = color.New(color.FgHiYellow, color.Bold)
	programStyle = color.New(color.FgYellow, color.Bold)
	fileStyle    = color.New(color.FgCyan, color.Bold)
	lineStyle    = color.New(color.FgHiBlue, color.Bold)
	messageStyle = color.New(color.FgRed, color.Bold)
	valueStyle   = color.New(color.FgGreen)
	noStyle      = color.New(color.FgWhite)
)

// reportFormatter is the interface that wraps the ReportTemplate method.
// Implementations render the body of reports with one particular status.
type reportFormatter interface {
	ReportTemplate() string
}

// getReportFormatter returns the formatter for the given status. Statuses
// without a dedicated formatter share the general one.
func getReportFormatter(status tt.Status) reportFormatter {
	switch status {
	case tt.StatusSafe:
		return &SafeReportFormatter{}
	case tt.StatusUnsafe:
		return &UnsafeReportFormatter{}
	default:
		return &GeneralReportFormatter{}
	}
}

/***** Report Formatter Builder *****/

type ReportData struct {
	Status     string
	Program    string
	Filename   string
	Padding    string
	Message    string
	Trace      []reached.Step
	Invariants []tt.Invariant
	Stats      tt.Stats
}

func buildReport(report tt.Report, formatter reportFormatter) string {
	data := ReportData{
		Status:     string(report.Status),
		Program:    report.Program,
		Filename:   report.Filename,
		Padding:    "  ",
		Message:    report.Error,
		Trace:      report.Trace,
		Invariants: report.Invariants,
		Stats:      report.Stats,
	}

	funcMap := template.FuncMap{
		"header":     header,
		"trace":      trace,
		"invariants": invariants,
		"stats":      stats,
		"message":    message,
	}

	tmpl := template.Must(template.New("report").Funcs(funcMap).Parse(formatter.ReportTemplate()))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting report: %v", err)
	}
	return buf.String()
}

// utils functions used in the text templates

func header(status, program, filename string) string {
	var endString string
	switch tt.Status(status) {
	case tt.StatusSafe:
		endString = safeStyle.Sprintf("%s: ", status)
	case tt.StatusUnsafe, tt.StatusError:
		endString = unsafeStyle.Sprintf("%s: ", status)
	default:
		endString = unknownStyle.Sprintf("%s: ", status)
	}

	if program == "" {
		program = "-"
	}
	endString += programStyle.Sprintf("%s\n", program)
	endString += lineStyle.Sprint(" --> ")
	endString += fileStyle.Sprintf("%s\n", filename)
	return endString
}

func trace(steps []reached.Step, padding string) string {
	if len(steps) == 0 {
		return ""
	}

	width := 0
	for _, s := range steps {
		if len(s.Location) > width {
			width = len(s.Location)
		}
	}
	digits := len(fmt.Sprintf("%d", len(steps)-1))

	var b strings.Builder
	b.WriteString(lineStyle.Sprintf("%s| ", padding) + noStyle.Sprint("counterexample:\n"))
	for i, s := range steps {
		b.WriteString(lineStyle.Sprintf("%s| ", padding))
		b.WriteString(fmt.Sprintf("%*d  %-*s", digits, i, width, s.Location))
		if s.Edge != "" {
			b.WriteString("  " + s.Edge)
		}
		if len(s.Values) > 0 {
			vals := make([]string, len(s.Values))
			for j, v := range s.Values {
				vals[j] = v.Name + "=" + v.Value
			}
			b.WriteString("  " + valueStyle.Sprintf("{%s}", strings.Join(vals, ", ")))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func invariants(inv []tt.Invariant, padding string) string {
	if len(inv) == 0 {
		return ""
	}

	width := 0
	for _, i := range inv {
		if len(i.Location) > width {
			width = len(i.Location)
		}
	}

	var b strings.Builder
	b.WriteString(lineStyle.Sprintf("%s| ", padding) + noStyle.Sprint("invariants:\n"))
	for _, i := range inv {
		b.WriteString(lineStyle.Sprintf("%s| ", padding))
		b.WriteString(fmt.Sprintf("%-*s  %s\n", width, i.Location, i.Formula))
	}
	return b.String()
}

func stats(s tt.Stats, padding string) string {
	return lineStyle.Sprintf("%s= ", padding) + fmt.Sprintf(
		"%d vertices, %d refinements, %d covers, %d queries in %s\n",
		s.Vertices, s.Refinements, s.Covers, s.ProverQueries, s.Duration.Round(time.Microsecond))
}

func message(msg, padding string) string {
	if msg == "" {
		return ""
	}
	return lineStyle.Sprintf("%s= ", padding) + messageStyle.Sprintf("%s\n", msg)
}
