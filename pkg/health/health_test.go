package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const probeWorkers = 50

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func probe(t *testing.T, h http.Handler, path string) (int, healthResponse) {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, http.NoBody))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp healthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return w.Code, resp
}

func TestChecker_States(t *testing.T) {
	hc := NewChecker()
	assert.Equal(t, "starting", hc.State())
	assert.False(t, hc.IsReady())

	hc.SetReady()
	assert.Equal(t, "ready", hc.State())
	assert.True(t, hc.IsReady())

	hc.SetDraining()
	assert.Equal(t, "draining", hc.State())
	assert.False(t, hc.IsReady())
}

func TestLivenessHandler_IgnoresState(t *testing.T) {
	hc := NewChecker()
	hc.AddDependency("store", pingerFunc(func(context.Context) error { return errors.New("down") }))

	for _, set := range []func(){func() {}, hc.SetReady, hc.SetDraining} {
		set()
		code, resp := probe(t, hc.LivenessHandler(), "/healthz")
		assert.Equal(t, http.StatusOK, code, hc.State())
		assert.Equal(t, "ok", resp.Status)
	}
}

func TestReadinessHandler_FollowsState(t *testing.T) {
	hc := NewChecker()

	code, resp := probe(t, hc.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "starting", resp.Status)

	hc.SetReady()
	code, resp = probe(t, hc.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", resp.Status)
	assert.Empty(t, resp.Dependencies)

	hc.SetDraining()
	code, resp = probe(t, hc.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "draining", resp.Status)
}

func TestReadinessHandler_StoreDependency(t *testing.T) {
	storeErr := errors.New("config store unavailable")
	var mu sync.Mutex
	failing := false

	hc := NewChecker()
	hc.AddDependency("store", pingerFunc(func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return storeErr
		}
		return nil
	}))
	hc.SetReady()

	code, _ := probe(t, hc.ReadinessHandler(), "/readyz")
	require.Equal(t, http.StatusOK, code)

	mu.Lock()
	failing = true
	mu.Unlock()

	code, resp := probe(t, hc.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, map[string]string{"store": storeErr.Error()}, resp.Dependencies)
}

func TestReadinessHandler_NotReadySkipsPing(t *testing.T) {
	pinged := false
	hc := NewChecker()
	hc.AddDependency("store", pingerFunc(func(context.Context) error {
		pinged = true
		return nil
	}))

	code, _ := probe(t, hc.ReadinessHandler(), "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.False(t, pinged)
}

func TestCheckDependencies_AppliesTimeout(t *testing.T) {
	hc := NewChecker()
	hc.pingTimeout = 10 * time.Millisecond
	hc.AddDependency("slow", pingerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))
	hc.AddDependency("fast", pingerFunc(func(context.Context) error { return nil }))

	failures := hc.CheckDependencies(context.Background())
	assert.Contains(t, failures, "slow")
	assert.NotContains(t, failures, "fast")
}

func TestChecker_ConcurrentUse(t *testing.T) {
	hc := NewChecker()
	hc.AddDependency("store", pingerFunc(func(context.Context) error { return nil }))

	var wg sync.WaitGroup
	for i := range probeWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				hc.SetReady()
			} else {
				hc.SetDraining()
			}
			_ = hc.CheckDependencies(context.Background())
			_ = hc.State()
		}()
	}
	wg.Wait()

	assert.Contains(t, []string{"ready", "draining"}, hc.State())
}
