package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ayusman/bhangra/internal/plugin"
	"github.com/ayusman/bhangra/internal/store"
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

type fakePlugins map[string]*plugin.Plugin

func (f fakePlugins) Get(name string) (*plugin.Plugin, error) {
	p, ok := f[name]
	if !ok {
		return nil, plugin.ErrPluginNotFound
	}
	return p, nil
}

func (f fakePlugins) List() []*plugin.Plugin {
	var out []*plugin.Plugin
	for _, p := range f {
		out = append(out, p)
	}
	return out
}

func (f fakePlugins) Discover() error { return nil }

func keyboardPlugins() fakePlugins {
	return fakePlugins{
		"keyboard": {Manifest: plugin.Manifest{Name: "keyboard", Version: "1.0.0", Actions: []string{"press"}}},
	}
}

func doJSON(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBindingHandler_CreateAndList(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, keyboardPlugins())

	rec := doJSON(t, handler, http.MethodPost, "/api/bindings", map[string]any{
		"gesture":     "jumping",
		"plugin_name": "keyboard",
		"action_name": "press",
		"config":      map[string]any{"key": "space"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}

	var created bindingResponse
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if created.ID == "" || !created.Enabled {
		t.Errorf("created = %+v, want an ID and enabled", created)
	}
	if string(created.Config) != `{"key":"space"}` {
		t.Errorf("config = %s", created.Config)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/bindings?gesture=jumping", nil)
	var list listBindingsResponse
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(list.Bindings) != 1 || list.Bindings[0].ID != created.ID {
		t.Errorf("list = %+v, want the created binding", list.Bindings)
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/bindings?gesture=crouching", nil)
	list = listBindingsResponse{}
	json.NewDecoder(rec.Body).Decode(&list)
	if len(list.Bindings) != 0 {
		t.Errorf("crouching bindings = %d, want 0", len(list.Bindings))
	}
}

func TestBindingHandler_CreateValidation(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, keyboardPlugins())

	tests := []struct {
		name string
		body map[string]any
	}{
		{"neutral gesture", map[string]any{"gesture": "neutral", "plugin_name": "keyboard", "action_name": "press"}},
		{"unknown gesture", map[string]any{"gesture": "waving", "plugin_name": "keyboard", "action_name": "press"}},
		{"missing plugin", map[string]any{"gesture": "jumping", "action_name": "press"}},
		{"missing action", map[string]any{"gesture": "jumping", "plugin_name": "keyboard"}},
		{"unknown plugin", map[string]any{"gesture": "jumping", "plugin_name": "mouse", "action_name": "click"}},
		{"undeclared action", map[string]any{"gesture": "jumping", "plugin_name": "keyboard", "action_name": "type"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, handler, http.MethodPost, "/api/bindings", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/bindings", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid JSON: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestBindingHandler_UpdateGetDelete(t *testing.T) {
	s := newTestStore(t)
	handler := NewBindingHandler(s, nil)

	b := &store.Binding{Gesture: "crouching", PluginName: "keyboard", ActionName: "press", Enabled: true}
	if err := s.Bindings().Create(b); err != nil {
		t.Fatalf("failed to create binding: %v", err)
	}

	rec := doJSON(t, handler, http.MethodPut, "/api/bindings/"+b.ID, map[string]any{
		"gesture": "jumping",
		"enabled": false,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = doJSON(t, handler, http.MethodGet, "/api/bindings/"+b.ID, nil)
	var got bindingResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if got.Gesture != "jumping" || got.Enabled {
		t.Errorf("updated = %+v, want jumping and disabled", got)
	}

	rec = doJSON(t, handler, http.MethodPut, "/api/bindings/"+b.ID, map[string]any{"gesture": "neutral"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("update to neutral: expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}

	rec = doJSON(t, handler, http.MethodDelete, "/api/bindings/"+b.ID, nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete: expected status %d, got %d", http.StatusNoContent, rec.Code)
	}

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec = doJSON(t, handler, method, "/api/bindings/"+b.ID, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s after delete: expected status %d, got %d", method, http.StatusNotFound, rec.Code)
		}
	}
}

func TestBindingHandler_MethodNotAllowed(t *testing.T) {
	handler := NewBindingHandler(newTestStore(t), nil)

	rec := doJSON(t, handler, http.MethodPatch, "/api/bindings", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}

func TestPluginHandler(t *testing.T) {
	handler := NewPluginHandler(keyboardPlugins())

	for _, method := range []string{http.MethodGet, http.MethodPost} {
		rec := doJSON(t, handler, method, "/api/plugins", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected status %d, got %d", method, http.StatusOK, rec.Code)
		}

		var resp listPluginsResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(resp.Plugins) != 1 || resp.Plugins[0].Name != "keyboard" || resp.Plugins[0].Actions[0] != "press" {
			t.Errorf("%s: plugins = %+v", method, resp.Plugins)
		}
	}

	rec := doJSON(t, handler, http.MethodDelete, "/api/plugins", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
