package qserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/tracing"
)

const defaultHeartbeat = 30 * time.Second

// Handler exposes a Mock over HTTP.
type Handler struct {
	mock      *Mock
	tracer    trace.Tracer
	heartbeat time.Duration
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithTracer wraps every route in a server span.
func WithTracer(t trace.Tracer) HandlerOption {
	return func(h *Handler) { h.tracer = t }
}

// WithHeartbeat sets the SSE keep-alive interval.
func WithHeartbeat(d time.Duration) HandlerOption {
	return func(h *Handler) { h.heartbeat = d }
}

// NewHandler returns a handler for m.
func NewHandler(m *Mock, opts ...HandlerOption) *Handler {
	h := &Handler{mock: m, heartbeat: defaultHeartbeat}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns every endpoint behind CORS and tracing.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /status", h.Status)
	mux.HandleFunc("GET /queue/status", h.QueueStatus)
	mux.HandleFunc("POST /queue/add", h.Add)
	mux.HandleFunc("POST /queue/clear", h.Clear)
	mux.HandleFunc("POST /queue/start", h.Start)
	mux.HandleFunc("POST /queue/stop", h.Stop)
	mux.HandleFunc("POST /environment/destroy", h.DestroyEnvironment)

	mux.HandleFunc("GET /plans", h.ListPlans)
	mux.HandleFunc("POST /plans", h.SavePlan)

	mux.HandleFunc("GET /runs", h.ListRuns)
	mux.HandleFunc("GET /runs/{uid}/documents", h.RunDocuments)

	mux.HandleFunc("GET /events", h.StreamDocuments)

	return cors(tracing.Middleware(h.tracer)(mux))
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Status reports the server as online.
// GET /status
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.mock.Status())
}

// QueueStatus returns the running item, queue and history.
// GET /queue/status
func (h *Handler) QueueStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, h.mock.QueueStatus())
}

// Add queues a plan. An empty body queues a default plan.
// POST /queue/add
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.writeJSON(w, http.StatusOK, AddResponse{Result: "ok", Item: h.mock.Add(req)})
}

// Clear empties the queue.
// POST /queue/clear
func (h *Handler) Clear(w http.ResponseWriter, _ *http.Request) {
	h.mock.Clear()
	h.writeJSON(w, http.StatusOK, ResultResponse{Result: "ok"})
}

// Start runs the head of the queue.
// POST /queue/start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	ok, err := h.mock.Start(r.Context())
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "start_failed", "Failed to start plan", err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, ResultResponse{Result: result(ok)})
}

// Stop aborts the running item.
// POST /queue/stop
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, ResultResponse{Result: result(h.mock.Stop(r.Context()))})
}

// DestroyEnvironment toggles the environment flag.
// POST /environment/destroy
func (h *Handler) DestroyEnvironment(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, EnvironmentResponse{EnvironmentDestroy: h.mock.ToggleEnvironmentDestroy()})
}

// ListPlans returns saved plan names.
// GET /plans
func (h *Handler) ListPlans(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, PlansResponse{Plans: h.mock.Plans()})
}

// SavePlan stores plan code.
// POST /plans
func (h *Handler) SavePlan(w http.ResponseWriter, r *http.Request) {
	var req SavePlanRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.writeJSON(w, http.StatusOK, SavePlanResponse{Result: "ok", Name: h.mock.SavePlan(req.Name, req.Code)})
}

// ListRuns returns known run uids, running first.
// GET /runs
func (h *Handler) ListRuns(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, RunsResponse{Runs: h.mock.RunUIDs()})
}

// RunDocuments returns the stored documents of one run. Unknown runs have
// no documents.
// GET /runs/{uid}/documents
func (h *Handler) RunDocuments(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")
	documents, err := h.mock.Documents(r.Context(), uid)
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, "store_error", "Failed to read documents", err.Error())
		return
	}
	if documents == nil {
		documents = []docs.Document{}
	}
	h.writeJSON(w, http.StatusOK, DocumentsResponse{UID: uid, Documents: documents})
}

// StreamDocuments streams documents as server-sent events named after the
// document kind.
// GET /events
func (h *Handler) StreamDocuments(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		h.writeError(w, r, http.StatusInternalServerError, "streaming_unsupported", "Streaming not supported", "")
		return
	}

	ctx := r.Context()
	events := h.mock.Subscribe(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	_, _ = fmt.Fprintf(w, "event: connected\ndata: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Payload)
			if err != nil {
				log.ErrorErr(log.CatServer, "Failed to marshal document", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Payload.Name, data)
			flusher.Flush()
		}
	}
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "no-op"
}

// decode reads an optional JSON body into v. It writes a 400 and returns
// false for malformed JSON.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	h.writeError(w, r, http.StatusBadRequest, "invalid_json", "Invalid JSON body", err.Error())
	return false
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error(log.CatServer, "Failed to encode JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message, details string) {
	log.Warn(log.CatServer, "Request failed", "path", r.URL.Path, "code", code, "trace_id", tracing.TraceID(r.Context()))
	h.writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: details})
}
