package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pvp-extractor/internal/config"
	"github.com/a3tai/mcp-pvp-extractor/internal/descriptions"
	"github.com/a3tai/mcp-pvp-extractor/internal/pdf/pdftest"
)

func TestServer_Run(t *testing.T) {
	tests := []struct {
		name    string
		mode    string
		wantErr string
	}{
		{"stdio", config.ModeStdio, "context canceled"},
		{"server", config.ModeServer, ""},
		{"invalid", "invalid", "unsupported mode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t.TempDir())
			cfg.Mode = tt.mode
			s := newTestServer(t, cfg)

			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			done := make(chan error, 1)
			go func() { done <- s.Run(ctx) }()

			select {
			case err := <-done:
				if tt.wantErr == "" {
					assert.NoError(t, err)
				} else {
					require.Error(t, err)
					assert.Contains(t, err.Error(), tt.wantErr)
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Run did not return after cancellation")
			}
		})
	}
}

func TestServer_Router(t *testing.T) {
	s := newTestServer(t, testConfig(t.TempDir()))
	router := s.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pvp_ocr_pages_total")
	assert.Contains(t, rec.Body.String(), "pvp_run_duration_seconds")

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	initialize := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"test-client","version":"1.0.0"}}}`
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initialize))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test-server")
}

func TestServer_HandleMessage(t *testing.T) {
	dir := t.TempDir()
	pdftest.Write(t, dir, "protocol.pdf", protocolPage)
	s := newTestServer(t, testConfig(dir))
	ctx := context.Background()

	send := func(msg string) string {
		t.Helper()
		resp := s.mcpServer.HandleMessage(ctx, json.RawMessage(msg))
		require.NotNil(t, resp)
		b, err := json.Marshal(resp)
		require.NoError(t, err)
		return string(b)
	}

	list := send(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	for _, name := range descriptions.GetAllToolNames() {
		assert.Contains(t, list, `"name":"`+name+`"`)
	}

	call := send(`{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"pvp_validate_file","arguments":{"path":"protocol.pdf"}}}`)
	assert.Contains(t, call, "is valid and readable")

	call = send(`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"pvp_extract","arguments":{"path":"/etc/passwd"}}}`)
	assert.Contains(t, call, `"isError":true`)
}
