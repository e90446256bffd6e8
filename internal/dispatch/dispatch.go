// Package dispatch routes one inbound chat message to a reply.
package dispatch

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"ragbot/internal/domain"
	"ragbot/internal/logger"
)

// Intent is the category a message falls into.
type Intent int

const (
	IntentEmpty Intent = iota
	IntentGreeting
	IntentListReports
	IntentFetchReport
	IntentQuestion
)

func (i Intent) String() string {
	switch i {
	case IntentEmpty:
		return "empty"
	case IntentGreeting:
		return "greeting"
	case IntentListReports:
		return "list_reports"
	case IntentFetchReport:
		return "fetch_report"
	default:
		return "question"
	}
}

// Message is an inbound text in raw and normalized (trimmed, lower-cased) form.
type Message struct {
	Raw        string
	Normalized string
}

// NewMessage normalizes raw text.
func NewMessage(raw string) Message {
	return Message{Raw: raw, Normalized: strings.ToLower(strings.TrimSpace(raw))}
}

// Segment is one outbound message, optionally carrying a media attachment.
type Segment struct {
	Text     string
	MediaURL string
}

// Reply is what gets sent back for one inbound message.
type Reply struct {
	Intent   Intent
	Segments []Segment
}

func textReply(intent Intent, text string) Reply {
	return Reply{Intent: intent, Segments: []Segment{{Text: text}}}
}

// Text joins the text of all segments.
func (r Reply) Text() string {
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n")
}

const (
	emptyReply        = "Please enter a valid question."
	noReportsReply    = "No reports found."
	reportReply       = "Here is your report:"
	invalidNumber     = "Invalid report number."
	reportFormatReply = "Please use the format: report <number>"
)

// greetingWords triggers the welcome reply when any of them appears as a word.
// None of them is "report", which is the only reason a greeting check placed before the
// report rules cannot swallow a report command. Extending this set must keep that true.
var greetingWords = map[string]struct{}{
	"hi":        {},
	"hello":     {},
	"hey":       {},
	"greetings": {},
}

type rule struct {
	intent Intent
	match  func(Message) bool
}

// rules are evaluated top to bottom; the first match wins.
var rules = []rule{
	{IntentEmpty, func(m Message) bool { return m.Normalized == "" }},
	{IntentGreeting, func(m Message) bool {
		for _, w := range strings.Fields(m.Normalized) {
			if _, ok := greetingWords[w]; ok {
				return true
			}
		}
		return false
	}},
	{IntentListReports, func(m Message) bool { return m.Normalized == "get report" }},
	{IntentFetchReport, func(m Message) bool { return strings.HasPrefix(m.Normalized, "report") }},
}

// Classify returns the intent of msg. It has no side effects.
func Classify(msg Message) Intent {
	for _, r := range rules {
		if r.match(msg) {
			return r.intent
		}
	}
	return IntentQuestion
}

// ParseReportNumber extracts the 1-based number from a fetch command. The
// first word is already known to start with "report" and is not checked
// further, so "reports 2" works too. Anything but exactly two fields with an
// all-digit second field is a MalformedCommand.
func ParseReportNumber(normalized string) (int, error) {
	fields := strings.Fields(normalized)
	if len(fields) != 2 || !allDigits(fields[1]) {
		return 0, domain.NewMalformedCommand(normalized)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil {
		// digits only, so this is an overflow
		return 0, domain.NewMalformedCommand(normalized)
	}
	return n, nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Dispatcher holds the collaborators the rules hand off to.
type Dispatcher struct {
	subject  string
	answerer domain.Answerer
	reports  domain.ReportStore
	log      *logger.Logger
}

// New creates a Dispatcher.
func New(subject string, answerer domain.Answerer, reports domain.ReportStore, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Nop()
	}
	return &Dispatcher{subject: subject, answerer: answerer, reports: reports, log: log.WithComponent("dispatch")}
}

// Greeting is the welcome text for the configured subject.
func (d *Dispatcher) Greeting() string {
	return "Hello there! Welcome to the " + d.subject + " chatbot. How can I help you today?\n\n" +
		"Type your question, or type 'get report' to view available reports."
}

// Dispatch classifies text and produces the reply. It never returns an error:
// failures are turned into reply text.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) Reply {
	msg := NewMessage(text)
	intent := Classify(msg)
	d.log.Debug("classified", logger.F("intent", intent.String()))

	switch intent {
	case IntentEmpty:
		return textReply(intent, emptyReply)
	case IntentGreeting:
		return textReply(intent, d.Greeting())
	case IntentListReports:
		return d.listReports(ctx)
	case IntentFetchReport:
		return d.fetchReport(ctx, msg)
	default:
		res := d.answerer.Answer(ctx, strings.TrimSpace(msg.Raw))
		return textReply(intent, res.Display())
	}
}

func (d *Dispatcher) listReports(ctx context.Context) Reply {
	reports, err := d.reports.List(ctx)
	if err != nil {
		d.log.Error("listing reports", logger.Err(err))
		return textReply(IntentListReports, domain.Result{Err: err}.Display())
	}
	if len(reports) == 0 {
		return textReply(IntentListReports, noReportsReply)
	}
	var sb strings.Builder
	sb.WriteString("Available reports:\n")
	for i, r := range reports {
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(". ")
		sb.WriteString(r.Name)
		sb.WriteString("\n")
	}
	sb.WriteString("\nType 'report <number>' to receive the report.")
	return textReply(IntentListReports, sb.String())
}

func (d *Dispatcher) fetchReport(ctx context.Context, msg Message) Reply {
	n, err := ParseReportNumber(msg.Normalized)
	if err != nil {
		d.log.Debug("bad report command", logger.Err(err))
		return textReply(IntentFetchReport, reportFormatReply)
	}
	reports, err := d.reports.List(ctx)
	if err != nil {
		d.log.Error("listing reports", logger.Err(err))
		return textReply(IntentFetchReport, domain.Result{Err: err}.Display())
	}
	if n < 1 || n > len(reports) {
		d.log.Debug("report out of range", logger.Err(domain.NewOutOfRangeReport(n, len(reports))))
		return textReply(IntentFetchReport, invalidNumber)
	}
	ref, err := d.reports.RefByIndex(n - 1)
	if err != nil {
		if errors.Is(err, domain.ErrOutOfRangeReport) {
			return textReply(IntentFetchReport, invalidNumber)
		}
		d.log.Error("resolving report", logger.Err(err))
		return textReply(IntentFetchReport, domain.Result{Err: err}.Display())
	}
	return Reply{Intent: IntentFetchReport, Segments: []Segment{{Text: reportReply, MediaURL: ref}}}
}
