package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fleetyard/provisioning-server/interfaces"
)

// Reloader re-reads the configuration tree and publishes it atomically.
// Implemented by the concrete config store.
type Reloader interface {
	Reload() error
}

// AdminHandler serves the operator API. Reconfiguration is an explicit
// endpoint rather than a process signal: the reload builds a complete new
// snapshot, swaps it in one atomic store, and then drops the resolver cache,
// so no request ever sees a half-reloaded tree.
type AdminHandler struct {
	log      *slog.Logger
	reloader Reloader
	resolver interfaces.SpecResolver
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(reloader Reloader, resolver interfaces.SpecResolver, log *slog.Logger) *AdminHandler {
	return &AdminHandler{
		log:      log,
		reloader: reloader,
		resolver: resolver,
	}
}

// AdminRouter returns the router for the operator API.
func (h *AdminHandler) AdminRouter() chi.Router {
	r := chi.NewRouter()
	r.Post("/reload", h.handleReload)
	return r
}

// handleReload reloads the configuration tree and clears derived caches.
//
// Endpoint: POST /admin/reload
func (h *AdminHandler) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := h.reloader.Reload(); err != nil {
		h.log.Error("Configuration reload failed", "err", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    interfaces.CodeInternal,
				"message": "reload failed",
			},
		})
		return
	}

	h.resolver.Reset()
	h.log.Info("Configuration reloaded, resolver cache cleared")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"reloaded"}`))
}
