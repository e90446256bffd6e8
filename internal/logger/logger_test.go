package logger

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestVerboseGating(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("server", false, &buf)

	l.Debug("hidden")
	l.Info("hidden too")
	if buf.Len() != 0 {
		t.Fatalf("expected no output in quiet mode, got %q", buf.String())
	}

	l.Warn("shown")
	l.Error("also shown", Err(errors.New("boom")))
	out := buf.String()
	if !strings.Contains(out, "WARN [server] shown") {
		t.Errorf("missing warn line in %q", out)
	}
	if !strings.Contains(out, "ERROR [server] also shown [error=boom]") {
		t.Errorf("missing error line in %q", out)
	}
}

func TestWithFieldsAndComponent(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("", true, &buf).WithComponent("dispatch").With(F("request_id", "abc"))

	l.Info("routed", F("intent", "greeting"), Count(2))
	out := buf.String()
	if !strings.Contains(out, "INFO [dispatch] routed [request_id=abc intent=greeting count=2]") {
		t.Errorf("unexpected line %q", out)
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("discarded")
	if l.IsVerbose() {
		t.Error("Nop logger should not be verbose")
	}
}
