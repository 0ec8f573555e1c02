package httpserver

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetyard/provisioning-server/configstore"
	"github.com/fleetyard/provisioning-server/resolver"
	"github.com/fleetyard/provisioning-server/token"
)

const testSigningKeyHex = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"

func testSigningKey(t *testing.T) []byte {
	t.Helper()
	key, err := hex.DecodeString(testSigningKeyHex)
	require.NoError(t, err)
	return key
}

// writeTree lays out the configuration tree the handler tests run against.
func writeTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	writeFile(t, root, "site.yaml", `
domain: example.com
timezone: UTC
`)
	writeFile(t, root, "secrets.yaml", `
signing_key: `+testSigningKeyHex+`
ssh_keys:
  alice: ssh-ed25519 AAAA alice@example.com
  bob: ssh-ed25519 BBBB bob@example.com
`)
	writeFile(t, root, "postures/dev.yaml", `
auth:
  method: network
ssh:
  permit_root_login: true
  password_auth: true
`)
	writeFile(t, root, "postures/prod.yaml", `
auth:
  method: token
ssh:
  permit_root_login: false
  password_auth: false
intrusion_prevention: true
`)
	writeFile(t, root, "specs/base.yaml", `{}`)
	writeFile(t, root, "specs/edge.yaml", `
identity:
  hostname: edge-gw
access:
  posture: prod
  users:
    - name: ops
      ssh_keys: [alice]
role: edge-gateway
`)
	writeFile(t, root, "specs/broken.yaml", `
access:
  posture: ghost
`)
	return root
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// setupRouter builds the full server router over a fresh tree.
func setupRouter(t *testing.T, trustNetwork bool) (http.Handler, string) {
	t.Helper()

	root := writeTree(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := configstore.New(root, logger)
	require.NoError(t, err)

	specResolver := resolver.New(store, logger)
	handler := NewHandler(store, specResolver, logger)
	admin := NewAdminHandler(store, specResolver, logger)

	srv, err := New(&HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		TrustNetwork:             trustNetwork,
		Log:                      logger,
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
		ReadTimeout:              time.Second,
		WriteTimeout:             time.Second,
	}, handler, admin)
	require.NoError(t, err)

	return srv.getRouter(), root
}

func mintToken(t *testing.T, node, spec string) string {
	t.Helper()
	tok, err := token.Mint(token.Claims{Node: node, Spec: spec}, testSigningKey(t))
	require.NoError(t, err)
	return tok
}

func doRequest(t *testing.T, router http.Handler, method, path, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// decodeError unpacks the wire error body and checks its shape.
func decodeError(t *testing.T, w *httptest.ResponseRecorder) (code, message string) {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Error.Code)
	return body.Error.Code, body.Error.Message
}

func TestHandleSpec_Success(t *testing.T) {
	router, _ := setupRouter(t, false)

	tok := mintToken(t, "edge-03", "edge")
	w := doRequest(t, router, http.MethodGet, "/spec/edge-03", tok)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))

	identity := doc["identity"].(map[string]any)
	assert.Equal(t, "edge-gw", identity["hostname"])
	assert.Equal(t, "example.com", identity["domain"])

	config := doc["config"].(map[string]any)
	assert.Equal(t, "UTC", config["timezone"])

	access := doc["access"].(map[string]any)
	assert.Equal(t, "prod", access["posture"])
	users := access["users"].([]any)
	require.Len(t, users, 1)

	// Passthrough fields survive resolution at the top level.
	assert.Equal(t, "edge-gateway", doc["role"])

	// The expanded posture must never appear in the response, under any key.
	raw := w.Body.String()
	assert.NotContains(t, raw, "_posture")
	assert.NotContains(t, raw, "permit_root_login")
	assert.NotContains(t, raw, "intrusion_prevention")
}

func TestHandleSpec_ServesClaimSpecNotURLIdentity(t *testing.T) {
	router, _ := setupRouter(t, false)

	// Token bound to node edge-03 but naming spec "base".
	tok := mintToken(t, "edge-03", "base")
	w := doRequest(t, router, http.MethodGet, "/spec/edge-03", tok)

	require.Equal(t, http.StatusOK, w.Code)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	identity := doc["identity"].(map[string]any)
	assert.Equal(t, "base", identity["hostname"])
}

func TestHandleSpec_MissingToken(t *testing.T) {
	router, _ := setupRouter(t, false)

	w := doRequest(t, router, http.MethodGet, "/spec/edge-03", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	code, message := decodeError(t, w)
	assert.Equal(t, "E300", code)
	assert.Contains(t, message, "token required")
}

func TestHandleSpec_AuthFailures(t *testing.T) {
	router, _ := setupRouter(t, false)
	valid := mintToken(t, "edge-03", "edge")

	tests := []struct {
		name   string
		path   string
		bearer string
		status int
		code   string
	}{
		{
			name:   "garbage token",
			path:   "/spec/edge-03",
			bearer: "not-a-token",
			status: http.StatusBadRequest,
			code:   "E300",
		},
		{
			name:   "tampered signature",
			path:   "/spec/edge-03",
			bearer: valid[:len(valid)-2],
			status: http.StatusUnauthorized,
			code:   "E301",
		},
		{
			name:   "identity mismatch",
			path:   "/spec/edge-04",
			bearer: valid,
			status: http.StatusUnauthorized,
			code:   "E301",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, router, http.MethodGet, tt.path, tt.bearer)
			assert.Equal(t, tt.status, w.Code)
			code, _ := decodeError(t, w)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestHandleSpec_SpecNotFound(t *testing.T) {
	router, _ := setupRouter(t, false)

	tok := mintToken(t, "missing-id", "missing-id")
	w := doRequest(t, router, http.MethodGet, "/spec/missing-id", tok)

	require.Equal(t, http.StatusNotFound, w.Code)
	code, _ := decodeError(t, w)
	assert.Equal(t, "E200", code)
}

func TestHandleSpec_PostureNotFound(t *testing.T) {
	router, _ := setupRouter(t, false)

	tok := mintToken(t, "broken", "broken")
	w := doRequest(t, router, http.MethodGet, "/spec/broken", tok)

	require.Equal(t, http.StatusNotFound, w.Code)
	code, message := decodeError(t, w)
	assert.Equal(t, "E201", code)
	assert.Contains(t, message, "ghost")
}

func TestHandleSpecsList(t *testing.T) {
	router, _ := setupRouter(t, false)

	w := doRequest(t, router, http.MethodGet, "/specs", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Specs []string `json:"specs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"base", "broken", "edge"}, body.Specs)
}

func TestTrustNetworkMode(t *testing.T) {
	router, _ := setupRouter(t, true)

	t.Run("network posture served without token", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/spec/base", "")
		require.Equal(t, http.StatusOK, w.Code)

		var doc map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
		identity := doc["identity"].(map[string]any)
		assert.Equal(t, "base", identity["hostname"])
		assert.NotContains(t, w.Body.String(), "_posture")
	})

	t.Run("token posture refused on open path", func(t *testing.T) {
		w := doRequest(t, router, http.MethodGet, "/spec/edge", "")
		require.Equal(t, http.StatusUnauthorized, w.Code)
		code, _ := decodeError(t, w)
		assert.Equal(t, "E301", code)
	})
}

func TestHealthAndDrainEndpoints(t *testing.T) {
	router, _ := setupRouter(t, false)

	w := doRequest(t, router, http.MethodGet, "/livez", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/drain", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(t, router, http.MethodGet, "/undrain", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, router, http.MethodGet, "/readyz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
