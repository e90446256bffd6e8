package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"ragbot/internal/logger"
)

const testDocument = `PureDrop filters remove chlorine and lead from tap water.
Replace the cartridge every six months.
The warranty lasts two years.`

// writeTestConfig lays out a document, a reports directory and a config file
// pointing the generator at endpoint.
func writeTestConfig(t *testing.T, endpoint string, reportNames ...string) string {
	t.Helper()
	dir := t.TempDir()
	doc := filepath.Join(dir, "manual.txt")
	if err := os.WriteFile(doc, []byte(testDocument), 0o600); err != nil {
		t.Fatal(err)
	}
	reportsDir := filepath.Join(dir, "Reports")
	if err := os.Mkdir(reportsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, n := range reportNames {
		if err := os.WriteFile(filepath.Join(reportsDir, n), []byte(n), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	cfg := "document:\n  path: " + doc + "\n" +
		"chunker:\n  size: 60\n  overlap: 10\n" +
		"generator:\n  endpoint_url: " + endpoint + "\n  timeout_secs: 5\n" +
		"reports:\n  dir: " + reportsDir + "\n  public_base_url: https://bot.example.com\n"
	path := filepath.Join(dir, "ragbot.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand("1.2.3", "abc123", "2026-01-01")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func fakeModel(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"generated_text":"` + reply + `"}]`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "ragbot 1.2.3 (abc123) built on 2026-01-01") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestAskCommand(t *testing.T) {
	srv := fakeModel(t, "Every six months.")
	cfg := writeTestConfig(t, srv.URL, "q1.pdf", "q2.pdf")

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"How", "often", "do", "I", "replace", "the", "cartridge?"}, "Every six months.\n"},
		{[]string{"hello"}, "Welcome to the PureDrop Filters chatbot"},
		{[]string{"get", "report"}, "Available reports:\n1. q1.pdf\n2. q2.pdf\n"},
		{[]string{"report", "2"}, "Here is your report:\n[attachment] https://bot.example.com/report/1\n"},
		{[]string{"report", "3"}, "Invalid report number.\n"},
	}
	for _, tt := range tests {
		out, err := run(t, append([]string{"--config", cfg, "ask"}, tt.args...)...)
		if err != nil {
			t.Fatalf("ask %v: %v", tt.args, err)
		}
		if !strings.Contains(out, tt.want) {
			t.Errorf("ask %v = %q, want it to contain %q", tt.args, out, tt.want)
		}
	}
}

func TestAskCommand_HuggingFaceEmbedder(t *testing.T) {
	var embedCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/embed", func(w http.ResponseWriter, r *http.Request) {
		embedCalls.Add(1)
		var req struct {
			Inputs []string `json:"inputs"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		out := make([][]float64, len(req.Inputs))
		for i, in := range req.Inputs {
			out[i] = []float64{float64(len(in)), 1}
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/generate", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"generated_text":"Two years."}]`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	cfg := writeTestConfig(t, srv.URL+"/generate")
	f, err := os.OpenFile(cfg, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.WriteString("embedder:\n  type: huggingface\n  huggingface:\n    endpoint_url: " + srv.URL + "/embed\n")
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "--config", cfg, "ask", "How long is the warranty?")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Two years.") {
		t.Errorf("ask = %q", out)
	}
	// one batch for the chunks, one for the question
	if embedCalls.Load() < 2 {
		t.Errorf("expected the document and the question to be embedded remotely, got %d calls", embedCalls.Load())
	}
}

func TestAskCommand_MissingDocumentFails(t *testing.T) {
	srv := fakeModel(t, "unused")
	cfg := writeTestConfig(t, srv.URL)
	t.Setenv("RAGBOT_DOCUMENT_PATH", filepath.Join(t.TempDir(), "missing.pdf"))

	if _, err := run(t, "--config", cfg, "ask", "anything"); err == nil {
		t.Fatal("expected startup error for a missing document")
	}
}

func TestConfigInitAndShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ragbot.yaml")
	if _, err := run(t, "config", "init", path); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "config", "init", path); err == nil {
		t.Error("init should refuse to overwrite without --force")
	}
	out, err := run(t, "--config", path, "config", "show")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"subject: PureDrop Filters", "size: 800", "model: HuggingFaceH4/zephyr-7b-beta"} {
		if !strings.Contains(out, want) {
			t.Errorf("config show missing %q:\n%s", want, out)
		}
	}
}

func TestConsoleLogger_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.log")
	log, closeLog, err := consoleLogger(path, false)
	if err != nil {
		t.Fatal(err)
	}
	log.Warn("report lookup failed", logger.F("index", 3))
	log.Info("hidden without verbose")
	if err := closeLog(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, "WARN [ragbot] report lookup failed") || !strings.Contains(got, "index=3") {
		t.Errorf("log file = %q", got)
	}
	if strings.Contains(got, "hidden") {
		t.Errorf("info line written without verbose: %q", got)
	}
}

func TestConsoleLogger_EmptyPathDiscards(t *testing.T) {
	log, closeLog, err := consoleLogger("", true)
	if err != nil {
		t.Fatal(err)
	}
	log.Error("dropped")
	if err := closeLog(); err != nil {
		t.Errorf("close: %v", err)
	}
}

func TestConsoleLogger_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "chat.log")
	if _, _, err := consoleLogger(path, false); err == nil {
		t.Fatal("expected an error for an unwritable log path")
	}
}
