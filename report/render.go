// Package report builds the hourly counter activity report, sends it and
// purges the events it covered.
package report

import (
	"bytes"
	htmltemplate "html/template"
	"text/template"

	"counter-pipeline/domain"
)

const (
	subjectLayout    = "2006-01-02 15:04"
	reportTimeLayout = "2006-01-02 15:04:05"
	eventTimeLayout  = "15:04:05"
)

// Message is a rendered report ready for dispatch.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

type view struct {
	ReportTime      string
	TotalIncrements int
	FirstEventTime  string
	LastEventTime   string
}

var textTmpl = template.Must(template.New("text").Parse(`Counter Activity Summary
=========================

Report generated: {{.ReportTime}} UTC
Total increments processed: {{.TotalIncrements}}

Time Range:
- First event: {{.FirstEventTime}} UTC
- Last event: {{.LastEventTime}} UTC

All events have been processed and cleared from the system.

--
This is an automated message from the Counter Message Processor service.`))

var htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Hourly Counter Report</title>
</head>
<body>
    <div style="font-family: Arial, sans-serif; max-width: 500px; margin: 0 auto;">
        <h2 style="color: #333;">Counter Activity Summary</h2>
        <div style="background-color: #f5f5f5; padding: 15px; border-radius: 5px; margin: 10px;">
            <p><strong>Report generated:</strong> {{.ReportTime}} UTC</p>
            <p><strong>Total increments processed:</strong> <span style="color: #007bff; font-size: 18px;">{{.TotalIncrements}}</span></p>
            <h3 style="color: #333;">Time Range</h3>
            <p><strong>First event:</strong> {{.FirstEventTime}} UTC</p>
            <p><strong>Last event:</strong> {{.LastEventTime}} UTC</p>
        </div>
        <p style="margin-top: 20px; color: #666; font-size: 14px;">
            All events have been processed and cleared from the system.
        </p>
        <hr style="margin: 20px 0; border: none; border-top: 1px solid #ddd;"/>
        <p style="color: #999; font-size: 12px;">
            This is an automated message from the Counter Message Processor service.
        </p>
    </div>
</body>
</html>`))

// Subject formats the mail subject for a report generated at s.ReportTime.
func Subject(s domain.Summary) string {
	return "Hourly Counter Report - " + s.ReportTime.UTC().Format(subjectLayout)
}

// Render produces the subject, plain text and HTML bodies of a summary.
func Render(s domain.Summary) (Message, error) {
	v := view{
		ReportTime:      s.ReportTime.UTC().Format(reportTimeLayout),
		TotalIncrements: s.TotalIncrements,
		FirstEventTime:  s.FirstEventTime.UTC().Format(eventTimeLayout),
		LastEventTime:   s.LastEventTime.UTC().Format(eventTimeLayout),
	}
	var text, html bytes.Buffer
	if err := textTmpl.Execute(&text, v); err != nil {
		return Message{}, err
	}
	if err := htmlTmpl.Execute(&html, v); err != nil {
		return Message{}, err
	}
	return Message{Subject: Subject(s), Text: text.String(), HTML: html.String()}, nil
}
