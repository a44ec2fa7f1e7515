package composer

import (
	"text/template"
	"time"
)

// TimeLayout renders event and reminder times.
const TimeLayout = "Jan 02 at 03:04 PM"

func newTemplates(loc *time.Location) *template.Template {
	funcs := template.FuncMap{
		"when": func(t time.Time) string {
			return t.In(loc).Format(TimeLayout)
		},
	}

	t := template.New("responses").Funcs(funcs)
	template.Must(t.New("calendar_query").Parse(
		`{{- if .Events -}}
{{.Heading}}{{if .Keyword}} related to {{.Keyword}}{{end}}:
{{- range $i, $e := .Events}}{{if $i}};{{end}} {{$e.Title}} on {{when $e.Start}}{{if $e.Until}} until {{when $e.End}}{{end}}{{if $e.Location}} at {{$e.Location}}{{end}}{{end}}.
{{- else -}}
You have no {{.Label}}{{if .Keyword}} related to {{.Keyword}}{{end}} between {{when .From}} and {{when .To}}.
{{- end}}`))

	template.Must(t.New("send_notification").Parse(
		`Done. I sent you a reminder: {{.Message}}{{if .When}} ({{.When}}){{end}}.`))

	template.Must(t.New("send_email").Parse(
		`Your email to {{.Recipient}} with the subject "{{.Subject}}" has been sent.`))

	template.Must(t.New("failure").Parse(
		`Sorry, {{.Capability}} failed: {{.Reason}}.`))

	template.Must(t.New("invalid").Parse(
		`Sorry, I couldn't {{.Action}}: {{.Reason}}.`))

	return t
}

type calendarView struct {
	Heading string
	Label   string
	Keyword string
	From    time.Time
	To      time.Time
	Events  []eventView
}

type eventView struct {
	Title    string
	Start    time.Time
	End      time.Time
	Until    bool
	Location string
}

type notificationView struct {
	Message string
	When    string
}

type emailView struct {
	Recipient string
	Subject   string
}

type failureView struct {
	Capability string
	Action     string
	Reason     string
}
