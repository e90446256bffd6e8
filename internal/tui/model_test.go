package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"ragbot/internal/dispatch"
)

type recordingDispatcher struct {
	got []string
}

func (r *recordingDispatcher) Dispatch(_ context.Context, text string) dispatch.Reply {
	r.got = append(r.got, text)
	return dispatch.Reply{
		Intent:   dispatch.IntentFetchReport,
		Segments: []dispatch.Segment{{Text: "Here is your report:", MediaURL: "http://localhost/report/0"}},
	}
}

func TestModel_EnterDispatchesAndRendersReply(t *testing.T) {
	d := &recordingDispatcher{}
	var m tea.Model = New(d, "PureDrop Filters", "A short summary.", 0)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})

	for _, r := range "report 1" {
		m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should return a dispatch command")
	}
	if got := m.(Model).input.Value(); got != "" {
		t.Errorf("input not cleared: %q", got)
	}

	m, _ = m.Update(cmd())
	if len(d.got) != 1 || d.got[0] != "report 1" {
		t.Fatalf("dispatched %q", d.got)
	}
	transcript := m.(Model).renderTranscript()
	for _, want := range []string{"report 1", "Here is your report:", "http://localhost/report/0"} {
		if !strings.Contains(transcript, want) {
			t.Errorf("transcript missing %q:\n%s", want, transcript)
		}
	}
	if view := m.View(); !strings.Contains(view, "A short summary.") {
		t.Errorf("summary missing from view:\n%s", view)
	}
}

func TestModel_IgnoresEnterWhilePending(t *testing.T) {
	var m tea.Model = New(&recordingDispatcher{}, "X", "", 0)
	m, first := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if first == nil {
		t.Fatal("expected a command")
	}
	if _, second := m.Update(tea.KeyMsg{Type: tea.KeyEnter}); second != nil {
		t.Error("second enter while waiting should be ignored")
	}
}
