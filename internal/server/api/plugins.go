package api

import (
	"net/http"

	"github.com/ayusman/bhangra/internal/logger"
	"github.com/ayusman/bhangra/internal/plugin"
)

// PluginCatalog lists and rescans plugins.
type PluginCatalog interface {
	List() []*plugin.Plugin
	Discover() error
}

// PluginHandler serves GET /api/plugins and POST /api/plugins (rescan).
type PluginHandler struct {
	plugins PluginCatalog
}

// NewPluginHandler creates a PluginHandler.
func NewPluginHandler(p PluginCatalog) *PluginHandler {
	return &PluginHandler{plugins: p}
}

type pluginResponse struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Actions     []string `json:"actions"`
}

type listPluginsResponse struct {
	Plugins []pluginResponse `json:"plugins"`
}

func (h *PluginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if err := h.plugins.Discover(); err != nil {
			logger.Errorf("rescan plugins: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to scan plugins")
			return
		}
	default:
		methodNotAllowed(w)
		return
	}

	plugins := h.plugins.List()
	response := listPluginsResponse{Plugins: make([]pluginResponse, 0, len(plugins))}
	for _, p := range plugins {
		actions := p.Manifest.Actions
		if actions == nil {
			actions = []string{}
		}
		response.Plugins = append(response.Plugins, pluginResponse{
			Name:        p.Manifest.Name,
			Version:     p.Manifest.Version,
			Description: p.Manifest.Description,
			Actions:     actions,
		})
	}
	writeJSON(w, http.StatusOK, response)
}
