package server

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/twilio/twilio-go/twiml"

	"ragbot/internal/dispatch"
	"ragbot/internal/logger"
)

// Dispatcher turns one inbound message into a reply.
type Dispatcher interface {
	Dispatch(ctx context.Context, text string) dispatch.Reply
}

// ReportFiles resolves a 0-based report index to a file on disk.
type ReportFiles interface {
	Open(index int) (string, error)
}

// Status is reported by GET /healthz.
type Status struct {
	Status   string `json:"status"`
	Subject  string `json:"subject"`
	Document string `json:"document"`
	Chunks   int    `json:"chunks"`
	Embedder string `json:"embedder"`
}

// Handler holds the dependencies for HTTP handlers.
type Handler struct {
	dispatcher Dispatcher
	reports    ReportFiles
	status     Status
	log        *logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(d Dispatcher, reports ReportFiles, status Status, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if status.Status == "" {
		status.Status = "ok"
	}
	return &Handler{dispatcher: d, reports: reports, status: status, log: log.WithComponent("http")}
}

// HandleIndex handles GET / as a liveness check.
func (h *Handler) HandleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Chatbot is running."))
}

// HandleWebhook handles POST / and POST /whatsapp. The message text is the form field Body;
// the reply is TwiML.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return
	}
	reply := h.dispatcher.Dispatch(r.Context(), r.PostForm.Get("Body"))
	h.log.Debug("replying",
		logger.F("request_id", RequestID(r.Context())),
		logger.F("intent", reply.Intent.String()),
		logger.Count(len(reply.Segments)))

	body, err := EncodeTwiML(reply)
	if err != nil {
		h.log.Error("encoding twiml", logger.Err(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	_, _ = w.Write([]byte(body))
}

// EncodeTwiML renders a reply as a messaging response, one <Message> per segment.
func EncodeTwiML(reply dispatch.Reply) (string, error) {
	verbs := make([]twiml.Element, 0, len(reply.Segments))
	for _, seg := range reply.Segments {
		if seg.MediaURL == "" {
			verbs = append(verbs, &twiml.MessagingMessage{Body: seg.Text})
			continue
		}
		verbs = append(verbs, &twiml.MessagingMessage{
			InnerElements: []twiml.Element{
				&twiml.MessagingBody{Message: seg.Text},
				&twiml.MessagingMedia{Url: seg.MediaURL},
			},
		})
	}
	return twiml.Messages(verbs)
}

// HandleReport handles GET /report/{id}, sending the file as an attachment.
func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id < 0 {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}
	path, err := h.reports.Open(id)
	if err != nil {
		http.Error(w, "Report not found", http.StatusNotFound)
		return
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "Report not found", http.StatusNotFound)
			return
		}
		h.log.Error("opening report", logger.F("path", path), logger.Err(err))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	name := filepath.Base(path)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	sendJSON(w, http.StatusOK, h.status)
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
