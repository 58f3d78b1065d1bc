package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/starford/ansuz/internal/apperr"
	"github.com/starford/ansuz/internal/command"
	"github.com/starford/ansuz/internal/pipeline"
	"github.com/starford/ansuz/internal/sink"
	"github.com/starford/ansuz/internal/storage"
)

// maxIngestBytes bounds a single ingest payload.
const maxIngestBytes = 1 << 20

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// Handler holds API route handlers.
type Handler struct {
	pipe  *pipeline.Pipeline
	store storage.Provider
	sink  *sink.Sink
}

// NewHandler creates a new Handler.
func NewHandler(pipe *pipeline.Pipeline, store storage.Provider, s *sink.Sink) *Handler {
	return &Handler{pipe: pipe, store: store, sink: s}
}

type ingestRequest struct {
	Source string `json:"source"`
	Raw    string `json:"raw"`
}

type ingestResponse struct {
	Committed int `json:"committed"`
}

// Ingest handles POST /api/ingest: one raw capture payload, processed to
// completion before responding so callers see the sink's back-pressure.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid json body"))
		return
	}
	if strings.TrimSpace(req.Raw) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("raw is required"))
		return
	}
	source := req.Source
	if source == "" {
		source = "http"
	}

	committed, err := h.pipe.Handle(r.Context(), source, req.Raw)
	if err != nil {
		// Client went away mid-payload; nothing useful to send.
		slog.Warn("api: ingest aborted", slog.String("source", source), slog.String("error", err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, ingestResponse{Committed: committed})
}

// Stats handles GET /api/stats.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.pipe.Stats().Snapshot())
}

// ReadLog handles GET /api/logs?kind=note|task&date=YYYY-MM-DD.
// Date defaults to today.
func (h *Handler) ReadLog(w http.ResponseWriter, r *http.Request) {
	kind, ok := command.ParseKind(r.URL.Query().Get("kind"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("kind must be note or task"))
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}
	if !dateRe.MatchString(date) {
		writeJSON(w, http.StatusBadRequest, errorBody("date must be YYYY-MM-DD"))
		return
	}

	data, err := h.store.Read(h.sink.LogPath(kind, date))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("no log for that date"))
			return
		}
		slog.Error("api: read log failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
