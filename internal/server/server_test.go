package server

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"ragbot/internal/dispatch"
	"ragbot/internal/domain"
	"ragbot/internal/reports"
)

type echoAnswerer struct{}

func (echoAnswerer) Answer(_ context.Context, q string) domain.Result {
	return domain.Result{Text: "answer to: " + q}
}

type twimlResponse struct {
	XMLName  xml.Name `xml:"Response"`
	Messages []struct {
		Text  string   `xml:",chardata"`
		Body  string   `xml:"Body"`
		Media []string `xml:"Media"`
	} `xml:"Message"`
}

func newTestRouter(t *testing.T, reportNames ...string) http.Handler {
	t.Helper()
	dir := t.TempDir()
	for _, n := range reportNames {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("contents of "+n), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	store, err := reports.NewDirStore(dir, "https://bot.example.com", nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	d := dispatch.New("PureDrop Filters", echoAnswerer{}, store, nil)
	h := NewHandler(d, store, Status{Subject: "PureDrop Filters", Chunks: 7}, nil)
	return NewRouter(h)
}

func postMessage(t *testing.T, h http.Handler, path, body string) twimlResponse {
	t.Helper()
	form := url.Values{"Body": {body}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("missing X-Request-Id")
	}
	var out twimlResponse
	if err := xml.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode twiml: %v", err)
	}
	return out
}

func messageText(r twimlResponse, i int) string {
	return strings.TrimSpace(r.Messages[i].Text + r.Messages[i].Body)
}

func TestIndex(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK || w.Body.String() != "Chatbot is running." {
		t.Fatalf("GET / = %d %q", w.Code, w.Body.String())
	}
}

func TestWebhook_Greeting(t *testing.T) {
	for _, path := range []string{"/whatsapp", "/"} {
		out := postMessage(t, newTestRouter(t), path, "Hello")
		if len(out.Messages) != 1 {
			t.Fatalf("%s: expected 1 message, got %+v", path, out)
		}
		if got := messageText(out, 0); !strings.HasPrefix(got, "Hello there! Welcome to the PureDrop Filters chatbot.") {
			t.Errorf("%s: got %q", path, got)
		}
	}
}

func TestWebhook_ReportWithMedia(t *testing.T) {
	out := postMessage(t, newTestRouter(t, "a.pdf", "b.pdf", "c.pdf"), "/whatsapp", "report 2")
	if len(out.Messages) != 1 {
		t.Fatalf("expected 1 message, got %+v", out)
	}
	if got := messageText(out, 0); got != "Here is your report:" {
		t.Errorf("text = %q", got)
	}
	if len(out.Messages[0].Media) != 1 || out.Messages[0].Media[0] != "https://bot.example.com/report/1" {
		t.Errorf("media = %v", out.Messages[0].Media)
	}
}

func TestWebhook_QuestionAndEmpty(t *testing.T) {
	h := newTestRouter(t)
	if got := messageText(postMessage(t, h, "/whatsapp", "  What does it filter?  "), 0); got != "answer to: What does it filter?" {
		t.Errorf("question reply = %q", got)
	}
	if got := messageText(postMessage(t, h, "/whatsapp", ""), 0); got != "Please enter a valid question." {
		t.Errorf("empty reply = %q", got)
	}
}

func TestReportDownload(t *testing.T) {
	h := newTestRouter(t, "a.pdf", "b.pdf")

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/report/1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "contents of b.pdf" {
		t.Errorf("body = %q", w.Body.String())
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") || !strings.Contains(cd, "b.pdf") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	for _, path := range []string{"/report/2", "/report/-1", "/report/abc"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "Report not found") {
			t.Errorf("GET %s = %d %q", path, w.Code, w.Body.String())
		}
	}
}

func TestHealth(t *testing.T) {
	w := httptest.NewRecorder()
	newTestRouter(t).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var st Status
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if st.Status != "ok" || st.Chunks != 7 {
		t.Errorf("health = %+v", st)
	}
}

func TestEncodeTwiML_MultipleSegments(t *testing.T) {
	body, err := EncodeTwiML(dispatch.Reply{Segments: []dispatch.Segment{{Text: "one"}, {Text: "two & three"}}})
	if err != nil {
		t.Fatal(err)
	}
	var out twimlResponse
	if err := xml.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("invalid xml %q: %v", body, err)
	}
	if len(out.Messages) != 2 || messageText(out, 1) != "two & three" {
		t.Errorf("decoded %+v from %q", out, body)
	}
}

func TestServer_ShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(ln.Addr().String(), newTestRouter(t), time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if string(b) != "Chatbot is running." {
		t.Errorf("body = %q", b)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
