package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayusman/cursorflow/internal/config"
	"github.com/ayusman/cursorflow/internal/predict"
	"github.com/ayusman/cursorflow/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

type recordingActivator struct {
	ids []string
	err error
}

func (a *recordingActivator) ActivateProfile(id string) error {
	a.ids = append(a.ids, id)
	return a.err
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	var req *http.Request
	if reader != nil {
		req = httptest.NewRequest(method, target, reader)
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestProfileHandler_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	handler := NewProfileHandler(s, nil)

	yaml := "predictor:\n  kind: ema\n"
	rec := doJSON(t, handler, http.MethodPost, "/api/profiles", map[string]any{
		"name":        "fast",
		"description": "low latency",
		"config":      yaml,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	created := decode[profileResponse](t, rec)
	if created.ID == "" {
		t.Fatal("expected an ID")
	}
	if created.Description != "low latency" {
		t.Errorf("expected description 'low latency', got %q", created.Description)
	}

	stored, err := s.Profiles().GetByID(created.ID)
	if err != nil {
		t.Fatalf("profile not stored: %v", err)
	}
	if stored.Config.Predictor.Kind != predict.KindEMA {
		t.Errorf("expected predictor kind ema, got %s", stored.Config.Predictor.Kind)
	}
	// Omitted sections come from the defaults.
	if stored.Config.Policy != config.Default().Policy {
		t.Errorf("expected default policy, got %+v", stored.Config.Policy)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/profiles/"+created.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	got := decode[profileResponse](t, rec)
	if !strings.Contains(got.Config, "kind: ema") {
		t.Errorf("expected config YAML to contain 'kind: ema', got:\n%s", got.Config)
	}
}

func TestProfileHandler_CreateValidation(t *testing.T) {
	s := newTestStore(t)
	handler := NewProfileHandler(s, nil)

	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing name", map[string]any{"config": ""}, http.StatusBadRequest},
		{"invalid config", map[string]any{"name": "x", "config": "path:\n  segments: 0\n"}, http.StatusBadRequest},
		{"unknown key", map[string]any{"name": "x", "config": "bogus: 1\n"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/profiles", tt.body)
			if rec.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, rec.Code)
			}
			resp := decode[errorResponse](t, rec)
			if resp.Error == "" {
				t.Error("expected an error message")
			}
		})
	}

	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/profiles", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
		}
	})

	t.Run("duplicate name", func(t *testing.T) {
		doJSON(t, handler, http.MethodPost, "/api/profiles", map[string]any{"name": "dup"})
		rec := doJSON(t, handler, http.MethodPost, "/api/profiles", map[string]any{"name": "dup"})
		if rec.Code != http.StatusConflict {
			t.Errorf("expected status %d, got %d", http.StatusConflict, rec.Code)
		}
	})
}

func TestProfileHandler_ListUpdateDelete(t *testing.T) {
	s := newTestStore(t)
	handler := NewProfileHandler(s, nil)

	for _, name := range []string{"b", "a"} {
		if err := s.Profiles().Create(&store.Profile{Name: name, Config: config.Default()}); err != nil {
			t.Fatalf("failed to create profile: %v", err)
		}
	}

	rec := doJSON(t, handler, http.MethodGet, "/api/profiles", nil)
	listed := decode[listProfilesResponse](t, rec)
	if len(listed.Profiles) != 2 || listed.Profiles[0].Name != "a" {
		t.Fatalf("expected profiles [a b], got %+v", listed.Profiles)
	}

	id := listed.Profiles[0].ID
	rec = doJSON(t, handler, http.MethodPut, "/api/profiles/"+id, map[string]any{
		"name":   "renamed",
		"config": "path:\n  style: linear\n",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body)
	}
	updated, _ := s.Profiles().GetByID(id)
	if updated.Name != "renamed" || updated.Config.Path.Style != "linear" {
		t.Errorf("update not stored: %+v", updated)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/profiles/missing", map[string]any{"name": "x"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/profiles/"+id, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	rec = doJSON(t, handler, http.MethodDelete, "/api/profiles/"+id, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestProfileHandler_Activate(t *testing.T) {
	s := newTestStore(t)
	profile := &store.Profile{Name: "p", Config: config.Default()}
	if err := s.Profiles().Create(profile); err != nil {
		t.Fatalf("failed to create profile: %v", err)
	}

	t.Run("without engine", func(t *testing.T) {
		rec := doJSON(t, NewProfileHandler(s, nil), http.MethodPost, "/api/profiles/"+profile.ID+"/activate", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
		}
	})

	t.Run("with engine", func(t *testing.T) {
		activator := &recordingActivator{}
		rec := doJSON(t, NewProfileHandler(s, activator), http.MethodPost, "/api/profiles/"+profile.ID+"/activate", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if len(activator.ids) != 1 || activator.ids[0] != profile.ID {
			t.Errorf("expected activation of %s, got %v", profile.ID, activator.ids)
		}
	})

	t.Run("missing profile", func(t *testing.T) {
		activator := &recordingActivator{err: store.ErrNotFound}
		rec := doJSON(t, NewProfileHandler(s, activator), http.MethodPost, "/api/profiles/nope/activate", nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := doJSON(t, NewProfileHandler(s, nil), http.MethodGet, "/api/profiles/"+profile.ID+"/activate", nil)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}
