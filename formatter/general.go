package formatter

// GeneralReportFormatter renders errored, cancelled and unknown reports.
type GeneralReportFormatter struct{}

func (f *GeneralReportFormatter) ReportTemplate() string {
	return `{{header .Status .Program .Filename -}}
{{message .Message .Padding -}}
{{if .Stats.Vertices}}{{stats .Stats .Padding}}{{end}}`
}
