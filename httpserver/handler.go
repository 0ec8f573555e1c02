package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fleetyard/provisioning-server/interfaces"
	"github.com/fleetyard/provisioning-server/metrics"
	"github.com/fleetyard/provisioning-server/token"
)

// Handler serves spec documents. It is the single place that maps error codes
// to HTTP statuses; every other component reports typed errors and nothing
// else.
type Handler struct {
	store    interfaces.ConfigStore
	resolver interfaces.SpecResolver
	log      *slog.Logger
}

// NewHandler creates a request handler over the given store and resolver.
func NewHandler(store interfaces.ConfigStore, resolver interfaces.SpecResolver, log *slog.Logger) *Handler {
	return &Handler{
		store:    store,
		resolver: resolver,
		log:      log,
	}
}

// HandleSpec serves a resolved spec to a token-authenticated node.
//
// URL format: GET /spec/{identity}
// Required header: Authorization: Bearer <provisioning token>
//
// The token's n claim must match the URL identity; the served document is the
// one named by the token's s claim, which may differ. The response is the
// public projection only: the expanded posture never leaves the process.
func (h *Handler) HandleSpec(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")

	bearer, ok := bearerToken(r.Header.Get("Authorization"))
	if !ok {
		h.writeError(w, identity, interfaces.NewMalformedToken("token required"))
		return
	}

	key, err := h.store.SigningKey()
	if err != nil {
		h.writeError(w, identity, err)
		return
	}

	claims, err := token.Verify(bearer, key, identity)
	if err != nil {
		h.writeError(w, identity, err)
		return
	}

	// The spec served is the one the token names, not the URL identity.
	resolved, err := h.resolver.Resolve(claims.Spec)
	if err != nil {
		h.writeError(w, identity, err)
		return
	}

	metrics.SpecRequests.WithLabelValues("ok").Inc()
	h.writeJSON(w, http.StatusOK, resolved.Document())
}

// HandleSpecByURL is the trusted-network variant: no token, the URL identity
// is the lookup key. Specs whose posture demands token authentication are
// refused even here.
func (h *Handler) HandleSpecByURL(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")

	resolved, err := h.resolver.Resolve(identity)
	if err != nil {
		h.writeError(w, identity, err)
		return
	}

	if resolved.Posture.Auth.Method == "token" {
		h.writeError(w, identity, interfaces.NewInvalidSignature())
		return
	}

	metrics.SpecRequests.WithLabelValues("ok").Inc()
	h.writeJSON(w, http.StatusOK, resolved.Document())
}

// HandleSpecsList returns every known raw-spec identity, sorted ascending.
//
// URL format: GET /specs
func (h *Handler) HandleSpecsList(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.SpecNames()
	if err != nil {
		h.writeError(w, "", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"specs": names})
}

// recoverer converts handler panics into a generic E500 response.
func (h *Handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.log.Error("Panic while serving request",
					slog.String("path", r.URL.Path),
					slog.Any("panic", rec))
				h.writeErrorBody(w, interfaces.CodeInternal, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// writeError maps a typed error onto the wire error body. Internal errors are
// logged with full context and returned with a generic message.
func (h *Handler) writeError(w http.ResponseWriter, identity string, err error) {
	typed := interfaces.AsError(err)

	message := typed.Message
	if typed.Code == interfaces.CodeInternal {
		h.log.Error("Request failed",
			slog.String("identity", identity),
			slog.String("code", string(typed.Code)),
			"err", err)
		message = "internal server error"
	} else {
		h.log.Info("Request rejected",
			slog.String("identity", identity),
			slog.String("code", string(typed.Code)),
			"err", err)
	}

	metrics.SpecRequests.WithLabelValues(string(typed.Code)).Inc()
	h.writeErrorBody(w, typed.Code, message, typed.StatusCode)
}

func (h *Handler) writeErrorBody(w http.ResponseWriter, code interfaces.ErrorCode, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "err", err)
	}
}

// bearerToken extracts the credential from an Authorization header.
func bearerToken(header string) (string, bool) {
	tok, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tok == "" {
		return "", false
	}
	return tok, true
}
