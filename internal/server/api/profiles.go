// Package api provides HTTP API handlers for the cursorflow engine.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/cursorflow/internal/config"
	"github.com/ayusman/cursorflow/internal/store"
)

// ProfileActivator applies a stored profile to the running engine.
type ProfileActivator interface {
	ActivateProfile(id string) error
}

// ProfileHandler handles HTTP requests for profile resources.
type ProfileHandler struct {
	store     *store.Store
	activator ProfileActivator
}

// NewProfileHandler creates a new ProfileHandler. activator may be nil, in
// which case activation is unavailable.
func NewProfileHandler(s *store.Store, activator ProfileActivator) *ProfileHandler {
	return &ProfileHandler{store: s, activator: activator}
}

// ServeHTTP routes /api/profiles, /api/profiles/{id} and
// /api/profiles/{id}/activate.
func (h *ProfileHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/profiles")
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

	if id, ok := strings.CutSuffix(path, "/activate"); ok {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.activate(w, r, id)
		return
	}

	id := path
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// Profile configurations travel as YAML text so they read the same as
// config files.
type profileRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Config      *string `json:"config"`
}

type profileResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Config      string `json:"config"`
	Active      bool   `json:"active"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

type listProfilesResponse struct {
	Profiles []profileResponse `json:"profiles"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toProfileResponse(p *store.Profile) (profileResponse, error) {
	text, err := config.Marshal(p.Config)
	if err != nil {
		return profileResponse{}, err
	}
	return profileResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Config:      string(text),
		Active:      p.Active,
		CreatedAt:   p.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}, nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func (h *ProfileHandler) writeProfile(w http.ResponseWriter, status int, p *store.Profile) {
	resp, err := toProfileResponse(p)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode profile")
		return
	}
	writeJSON(w, status, resp)
}

// list handles GET /api/profiles.
func (h *ProfileHandler) list(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.store.Profiles().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list profiles")
		return
	}

	response := listProfilesResponse{
		Profiles: make([]profileResponse, 0, len(profiles)),
	}
	for _, p := range profiles {
		resp, err := toProfileResponse(p)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to encode profile")
			return
		}
		response.Profiles = append(response.Profiles, resp)
	}

	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/profiles/{id}.
func (h *ProfileHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	profile, err := h.store.Profiles().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}

	h.writeProfile(w, http.StatusOK, profile)
}

// create handles POST /api/profiles. An omitted config means the defaults.
func (h *ProfileHandler) create(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}

	cfg := config.Default()
	if req.Config != nil {
		parsed, err := config.Parse([]byte(*req.Config))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		cfg = parsed
	}

	profile := &store.Profile{Name: req.Name, Config: cfg}
	if req.Description != nil {
		profile.Description = *req.Description
	}

	if err := h.store.Profiles().Create(profile); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			writeError(w, http.StatusConflict, "Profile name already exists")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create profile")
		return
	}

	h.writeProfile(w, http.StatusCreated, profile)
}

// update handles PUT /api/profiles/{id}. Omitted fields are left unchanged.
func (h *ProfileHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	profile, err := h.store.Profiles().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}

	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if req.Name != "" {
		profile.Name = req.Name
	}
	if req.Description != nil {
		profile.Description = *req.Description
	}
	if req.Config != nil {
		cfg, err := config.Parse([]byte(*req.Config))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		profile.Config = cfg
	}

	if err := h.store.Profiles().Update(profile); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateName):
			writeError(w, http.StatusConflict, "Profile name already exists")
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Profile not found")
		default:
			writeError(w, http.StatusInternalServerError, "Failed to update profile")
		}
		return
	}

	// An edited active profile takes effect immediately.
	if profile.Active && h.activator != nil {
		if err := h.activator.ActivateProfile(profile.ID); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to apply profile")
			return
		}
	}

	h.writeProfile(w, http.StatusOK, profile)
}

// delete handles DELETE /api/profiles/{id}.
func (h *ProfileHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	err := h.store.Profiles().Delete(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Profile not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete profile")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// activate handles POST /api/profiles/{id}/activate.
func (h *ProfileHandler) activate(w http.ResponseWriter, r *http.Request, id string) {
	if h.activator == nil {
		writeError(w, http.StatusServiceUnavailable, "Engine not running")
		return
	}

	if err := h.activator.ActivateProfile(id); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			writeError(w, http.StatusNotFound, "Profile not found")
		case errors.Is(err, config.ErrInvalid):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "Failed to activate profile")
		}
		return
	}

	profile, err := h.store.Profiles().GetByID(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get profile")
		return
	}
	h.writeProfile(w, http.StatusOK, profile)
}
