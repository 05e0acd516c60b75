package formatter

type SafeReportFormatter struct{}

func (f *SafeReportFormatter) ReportTemplate() string {
	return `{{header .Status .Program .Filename -}}
{{invariants .Invariants .Padding -}}
{{stats .Stats .Padding}}`
}
