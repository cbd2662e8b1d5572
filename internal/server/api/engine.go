package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/ayusman/cursorflow/internal/app"
	"github.com/ayusman/cursorflow/internal/config"
	"github.com/ayusman/cursorflow/internal/detector"
	"github.com/ayusman/cursorflow/internal/geom"
	"github.com/ayusman/cursorflow/internal/path"
	"github.com/ayusman/cursorflow/internal/predict"
)

// maxConfigBytes bounds a YAML configuration upload.
const maxConfigBytes = 1 << 20

// EngineHandler exposes the running engine: detections in, predictions and
// paths out, plus the aim signal, cursor and live configuration.
type EngineHandler struct {
	app *app.App
}

// NewEngineHandler creates a new EngineHandler for a.
func NewEngineHandler(a *app.App) *EngineHandler {
	return &EngineHandler{app: a}
}

// ServeHTTP routes the engine endpoints.
func (h *EngineHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/detections":
		h.route(w, r, nil, h.pushDetections)
	case "/api/prediction":
		h.route(w, r, h.prediction, nil)
	case "/api/aim":
		h.route(w, r, h.getAim, h.setAim)
	case "/api/enabled":
		h.route(w, r, h.getEnabled, h.setEnabled)
	case "/api/cursor":
		h.route(w, r, h.getCursor, h.setCursor)
	case "/api/paths":
		h.route(w, r, nil, h.generatePath)
	case "/api/stats":
		h.route(w, r, h.stats, nil)
	case "/api/config":
		switch r.Method {
		case http.MethodGet:
			h.getConfig(w, r)
		case http.MethodPut:
			h.putConfig(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

// route dispatches GET to get and POST to post; a nil handler means the
// method is not allowed.
func (h *EngineHandler) route(w http.ResponseWriter, r *http.Request, get, post http.HandlerFunc) {
	switch {
	case r.Method == http.MethodGet && get != nil:
		get(w, r)
	case r.Method == http.MethodPost && post != nil:
		post(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type aimRequest struct {
	Held bool `json:"held"`
}

type aimResponse struct {
	Held bool `json:"held"`
}

type enabledRequest struct {
	Enabled bool `json:"enabled"`
}

type enabledResponse struct {
	Enabled bool `json:"enabled"`
}

type pushDetectionsResponse struct {
	Accepted int `json:"accepted"`
}

type pathRequest struct {
	Start *geom.Point `json:"start"`
	End   *geom.Point `json:"end"`
}

type pathResponse struct {
	Style     path.Style   `json:"style"`
	Path      []geom.Point `json:"path"`
	Overshoot float64      `json:"overshoot"`
}

type statsResponse struct {
	app.Stats
	Enabled   bool   `json:"enabled"`
	AimHeld   bool   `json:"aim_held"`
	Predictor string `json:"predictor"`
	Style     string `json:"style"`
	TraceID   string `json:"trace_id,omitempty"`
}

// pushDetections handles POST /api/detections. The body is one detection
// object or an array of them.
func (h *EngineHandler) pushDetections(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	var detections []detector.Detection
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &detections)
	} else {
		var d detector.Detection
		err = json.Unmarshal(trimmed, &d)
		detections = []detector.Detection{d}
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	for _, d := range detections {
		if err := h.app.PushDetection(d); err != nil {
			if errors.Is(err, app.ErrNotPushable) {
				writeError(w, http.StatusConflict, err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "Failed to push detection")
			return
		}
	}

	writeJSON(w, http.StatusAccepted, pushDetectionsResponse{Accepted: len(detections)})
}

// prediction handles GET /api/prediction.
func (h *EngineHandler) prediction(w http.ResponseWriter, r *http.Request) {
	p, err := h.app.Prediction()
	if err != nil {
		if errors.Is(err, predict.ErrNotInitialized) {
			writeError(w, http.StatusServiceUnavailable, "No prediction yet")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to estimate target")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *EngineHandler) getAim(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, aimResponse{Held: h.app.AimHeld()})
}

// setAim handles POST /api/aim.
func (h *EngineHandler) setAim(w http.ResponseWriter, r *http.Request) {
	var req aimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	h.app.SetAimHeld(req.Held)
	writeJSON(w, http.StatusOK, aimResponse{Held: req.Held})
}

func (h *EngineHandler) getEnabled(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, enabledResponse{Enabled: h.app.IsEnabled()})
}

func (h *EngineHandler) setEnabled(w http.ResponseWriter, r *http.Request) {
	var req enabledRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	h.app.SetEnabled(req.Enabled)
	writeJSON(w, http.StatusOK, enabledResponse{Enabled: req.Enabled})
}

func (h *EngineHandler) getCursor(w http.ResponseWriter, r *http.Request) {
	pos, err := h.app.CursorPosition()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// setCursor handles POST /api/cursor for the virtual cursor.
func (h *EngineHandler) setCursor(w http.ResponseWriter, r *http.Request) {
	var pos geom.Point
	if err := json.NewDecoder(r.Body).Decode(&pos); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if err := h.app.SetCursor(pos); err != nil {
		if errors.Is(err, app.ErrCursorReadOnly) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to move cursor")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// generatePath handles POST /api/paths. It does not move the cursor. An
// omitted start means the current cursor position.
func (h *EngineHandler) generatePath(w http.ResponseWriter, r *http.Request) {
	var req pathRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.End == nil {
		writeError(w, http.StatusBadRequest, "End is required")
		return
	}

	start := req.Start
	if start == nil {
		pos, err := h.app.CursorPosition()
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		start = &pos
	}

	pts, err := h.app.GeneratePath(*start, *req.End)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, pathResponse{
		Style:     h.app.Engine().Path.Style,
		Path:      pts,
		Overshoot: path.Overshoot(*start, *req.End, pts),
	})
}

func (h *EngineHandler) stats(w http.ResponseWriter, r *http.Request) {
	engine := h.app.Engine()
	writeJSON(w, http.StatusOK, statsResponse{
		Stats:     h.app.Stats(),
		Enabled:   h.app.IsEnabled(),
		AimHeld:   h.app.AimHeld(),
		Predictor: string(engine.Predictor.Kind),
		Style:     string(engine.Path.Style),
		TraceID:   h.app.TraceID(),
	})
}

// getConfig handles GET /api/config and returns the live configuration as YAML.
func (h *EngineHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	text, err := config.Marshal(h.app.Engine())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode config")
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(text)
}

// putConfig handles PUT /api/config. The YAML body is layered over the
// defaults and applied; predictor state is discarded.
func (h *EngineHandler) putConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	cfg, err := config.Parse(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.app.ApplyConfig(cfg); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
