package handlers

import (
	"net/http"

	"jgfinder/internal/extensions"
	"jgfinder/internal/logging"
	"jgfinder/internal/startup"
)

// VersionResponse is the server build and the installed plugin versions,
// keyed by folder/element.
type VersionResponse struct {
	startup.BuildInfo
	Plugins map[string]string `json:"plugins,omitempty"`
}

// GetVersion returns the build information and plugin versions.
func (h *Handlers) GetVersion(w http.ResponseWriter, r *http.Request) {
	resp := VersionResponse{BuildInfo: startup.GetBuildInfo()}

	if h.ext != nil {
		list, err := h.ext.List(r.Context())
		if err != nil {
			logging.Warn("version: listing extensions: %v", err)
		}
		for _, e := range list {
			if e.Type != extensions.TypePlugin {
				continue
			}
			if resp.Plugins == nil {
				resp.Plugins = make(map[string]string)
			}
			resp.Plugins[e.Folder+"/"+e.Element] = e.Version
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, resp)
}
