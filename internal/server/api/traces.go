package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/cursorflow/internal/config"
	"github.com/ayusman/cursorflow/internal/detector"
	"github.com/ayusman/cursorflow/internal/predict"
	"github.com/ayusman/cursorflow/internal/store"
	"github.com/ayusman/cursorflow/internal/tuning"
)

// TraceReplayer switches the engine's detection source to a stored trace.
type TraceReplayer interface {
	ReplayTrace(id string, loop bool) error
}

// engineConfig is implemented by replayers that expose the live tuning.
type engineConfig interface {
	Engine() config.Config
}

// TraceHandler handles HTTP requests for recorded detection traces.
type TraceHandler struct {
	store    *store.Store
	replayer TraceReplayer
}

// NewTraceHandler creates a new TraceHandler. replayer may be nil.
func NewTraceHandler(s *store.Store, replayer TraceReplayer) *TraceHandler {
	return &TraceHandler{store: s, replayer: replayer}
}

// ServeHTTP implements the http.Handler interface.
// Expected paths: /api/traces, /api/traces/{id},
// /api/traces/{id}/detections, /api/traces/{id}/replay and
// /api/traces/{id}/evaluate
func (h *TraceHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/traces")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	parts := strings.Split(path, "/")
	traceID := parts[0]

	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, traceID)
		case http.MethodDelete:
			h.delete(w, r, traceID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "detections":
		switch r.Method {
		case http.MethodGet:
			h.detections(w, r, traceID)
		case http.MethodPost:
			h.appendDetections(w, r, traceID)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	case len(parts) == 2 && parts[1] == "replay":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.replay(w, r, traceID)
	case len(parts) == 2 && parts[1] == "evaluate":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.evaluate(w, r, traceID)
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type createTraceRequest struct {
	Name string `json:"name"`
}

type appendDetectionsRequest struct {
	Detections []detector.Detection `json:"detections"`
}

type replayRequest struct {
	Loop bool `json:"loop"`
}

type evaluateRequest struct {
	Kinds []predict.Kind `json:"kinds"`
}

type evaluateResponse struct {
	TraceID string          `json:"trace_id"`
	Reports []tuning.Report `json:"reports"`
}

type listTracesResponse struct {
	Traces []*store.Trace `json:"traces"`
}

type detectionsResponse struct {
	TraceID    string               `json:"trace_id"`
	Detections []detector.Detection `json:"detections"`
}

func writeTraceError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Trace not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to "+action)
}

// list handles GET /api/traces
func (h *TraceHandler) list(w http.ResponseWriter, r *http.Request) {
	traces, err := h.store.Traces().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list traces")
		return
	}
	if traces == nil {
		traces = []*store.Trace{}
	}

	writeJSON(w, http.StatusOK, listTracesResponse{Traces: traces})
}

// create handles POST /api/traces and starts an empty trace.
func (h *TraceHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createTraceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	trace, err := h.store.Traces().Create(req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create trace")
		return
	}
	writeJSON(w, http.StatusCreated, trace)
}

// get handles GET /api/traces/{id}
func (h *TraceHandler) get(w http.ResponseWriter, r *http.Request, traceID string) {
	trace, err := h.store.Traces().GetByID(traceID)
	if err != nil {
		writeTraceError(w, err, "get trace")
		return
	}
	writeJSON(w, http.StatusOK, trace)
}

// delete handles DELETE /api/traces/{id}
func (h *TraceHandler) delete(w http.ResponseWriter, r *http.Request, traceID string) {
	if err := h.store.Traces().Delete(traceID); err != nil {
		writeTraceError(w, err, "delete trace")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// detections handles GET /api/traces/{id}/detections
func (h *TraceHandler) detections(w http.ResponseWriter, r *http.Request, traceID string) {
	detections, err := h.store.Traces().Detections(traceID)
	if err != nil {
		writeTraceError(w, err, "list detections")
		return
	}
	if detections == nil {
		detections = []detector.Detection{}
	}

	writeJSON(w, http.StatusOK, detectionsResponse{TraceID: traceID, Detections: detections})
}

// appendDetections handles POST /api/traces/{id}/detections, used to import
// traces recorded elsewhere.
func (h *TraceHandler) appendDetections(w http.ResponseWriter, r *http.Request, traceID string) {
	var req appendDetectionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if len(req.Detections) == 0 {
		writeError(w, http.StatusBadRequest, "At least one detection is required")
		return
	}
	for _, d := range req.Detections {
		if d.Timestamp.IsZero() {
			writeError(w, http.StatusBadRequest, "Every detection needs timestamp_ms")
			return
		}
	}

	if err := h.store.Traces().Append(traceID, req.Detections); err != nil {
		writeTraceError(w, err, "save detections")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "ok"})
}

// replay handles POST /api/traces/{id}/replay. The body is optional.
func (h *TraceHandler) replay(w http.ResponseWriter, r *http.Request, traceID string) {
	if h.replayer == nil {
		writeError(w, http.StatusServiceUnavailable, "Engine not running")
		return
	}

	var req replayRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}

	if err := h.replayer.ReplayTrace(traceID, req.Loop); err != nil {
		writeTraceError(w, err, "replay trace")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "replaying", "trace_id": traceID, "loop": req.Loop})
}

// evaluate handles POST /api/traces/{id}/evaluate. It scores the requested
// predictor kinds, or all of them, against the trace using the live tuning.
func (h *TraceHandler) evaluate(w http.ResponseWriter, r *http.Request, traceID string) {
	var req evaluateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid JSON")
			return
		}
	}
	for _, kind := range req.Kinds {
		if !kind.Valid() {
			writeError(w, http.StatusBadRequest, "Unknown predictor kind: "+string(kind))
			return
		}
	}

	detections, err := h.store.Traces().Detections(traceID)
	if err != nil {
		writeTraceError(w, err, "list detections")
		return
	}

	base := predict.DefaultConfig()
	if ec, ok := h.replayer.(engineConfig); ok {
		base = ec.Engine().Predictor
	}

	reports, err := tuning.Compare(base, detections, req.Kinds...)
	if err != nil {
		if errors.Is(err, tuning.ErrTraceTooShort) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to evaluate trace")
		return
	}

	writeJSON(w, http.StatusOK, evaluateResponse{TraceID: traceID, Reports: reports})
}
