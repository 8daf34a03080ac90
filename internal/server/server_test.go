package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/configs-api/pkg/configs"
	"github.com/txn2/configs-api/pkg/configstore"
	"github.com/txn2/configs-api/pkg/platform"
)

func newPlatform(t *testing.T, mutate func(*platform.Config), opts ...platform.Option) *platform.Platform {
	t.Helper()
	cfg := platform.DefaultConfig()
	cfg.Server.ShutdownTimeout = 2 * time.Second
	if mutate != nil {
		mutate(cfg)
	}
	p, err := platform.New(context.Background(), append([]platform.Option{platform.WithConfig(cfg)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "dev", Version)
}

func TestHandler_Probes(t *testing.T) {
	p := newPlatform(t, nil)
	h := Handler(p)

	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz").Code)

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)
}

func TestHandler_DelegatesToAPI(t *testing.T) {
	p := newPlatform(t, nil)
	h := Handler(p)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/configs",
		strings.NewReader(`{"name":"data-src","metadata":{"limits":{"cpu":{"enabled":true}}}}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = get(t, h, "/search?metadata.limits.cpu.enabled=true")
	require.Equal(t, http.StatusOK, rec.Code)

	var records []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "data-src", records[0]["name"])
}

func TestHandler_OptionalSurfacesDisabled(t *testing.T) {
	h := Handler(newPlatform(t, nil))

	assert.Equal(t, http.StatusNotFound, get(t, h, "/metrics").Code)
	assert.Equal(t, http.StatusNotFound, get(t, h, "/swagger/index.html").Code)
}

func TestHandler_Metrics(t *testing.T) {
	h := Handler(newPlatform(t, func(c *platform.Config) { c.Metrics.Enabled = true }))

	get(t, h, "/configs")
	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `configs_api_requests_total{code="200",route="GET /configs"} 1`)
}

func TestHandler_Swagger(t *testing.T) {
	h := Handler(newPlatform(t, func(c *platform.Config) { c.Docs.Enabled = true }))

	rec := get(t, h, "/swagger/doc.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"/configs/{name}"`)
}

func TestHandler_MCP(t *testing.T) {
	p := newPlatform(t, func(c *platform.Config) { c.MCP.Enabled = true })
	_, err := p.Service().Create(context.Background(), configs.Input{
		Name:     "data-src",
		Metadata: []byte(`{"monitoring":{"enabled":"true"}}`),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(Handler(p))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: srv.URL + "/mcp"}, nil)
	require.NoError(t, err)
	defer func() { _ = session.Close() }()

	result, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "search_configs",
		Arguments: map[string]any{"path": "metadata.monitoring.enabled", "value": "true"},
	})
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.NotEmpty(t, result.Content)

	text, ok := result.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "data-src")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	p := newPlatform(t, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, p, ln) }()

	url := "http://" + ln.Addr().String() + "/readyz"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test
		if err != nil {
			return false
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	assert.Equal(t, "draining", p.Health().State())
}

type downStore struct{ configstore.Store }

func (downStore) Ping(context.Context) error { return configstore.ErrStoreUnavailable }

func TestServe_StartFailure(t *testing.T) {
	p := newPlatform(t, nil, platform.WithStore(downStore{configstore.NewMemoryStore()}))
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	err = Serve(context.Background(), p, ln)
	require.ErrorIs(t, err, configstore.ErrStoreUnavailable)

	// The listener was closed.
	_, err = net.Dial("tcp", ln.Addr().String())
	assert.Error(t, err)
}

func TestRun_BadAddress(t *testing.T) {
	p := newPlatform(t, func(c *platform.Config) { c.Server.Address = "not-an-address" })
	err := Run(context.Background(), p)
	require.Error(t, err)
	assert.False(t, errors.Is(err, configstore.ErrStoreUnavailable))
	assert.Contains(t, err.Error(), "listening on not-an-address")
}
