package formatter

type UnsafeReportFormatter struct{}

func (f *UnsafeReportFormatter) ReportTemplate() string {
	return `{{header .Status .Program .Filename -}}
{{trace .Trace .Padding -}}
{{stats .Stats .Padding}}`
}
