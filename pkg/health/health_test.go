package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alwaysOK(_ context.Context) error { return nil }

func alwaysFail(msg string) CheckFunc {
	return func(_ context.Context) error { return errors.New(msg) }
}

func probeBody(t *testing.T, w *httptest.ResponseRecorder) probeResponse {
	t.Helper()
	var body probeResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func getLive(h *Health) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
	return w
}

func getReady(h *Health) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ReadyEndpoint(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	return w
}

// drive runs the probe loop body n times without starting the ticker.
func drive(p *probe, n int) {
	for range n {
		p.observe(context.Background())
	}
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("healthy before any observation", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("one", time.Second, alwaysOK)
		h.AddLivenessCheck("two", time.Second, alwaysOK)

		w := getLive(h)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "ok", probeBody(t, w).Status)
	})

	t.Run("no checks registered", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, getLive(New()).Code)
	})

	t.Run("failure below streak threshold stays healthy", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("flaky", time.Second, alwaysFail("temporary"))
		drive(h.liveness[0], failAfter-1)

		assert.Equal(t, http.StatusOK, getLive(h).Code)
	})

	t.Run("failure streak flips unhealthy with last error", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("db", time.Second, alwaysFail("connection refused"))
		drive(h.liveness[0], failAfter)

		w := getLive(h)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := probeBody(t, w)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, "connection refused", body.Checks["db"])
	})
}

func TestReadyEndpoint(t *testing.T) {
	t.Run("requires the manual gate", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("db", time.Second, alwaysOK)

		w := getReady(h)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, probeBody(t, w).Checks, "_readiness")

		h.SetReady(true)
		assert.Equal(t, http.StatusOK, getReady(h).Code)

		// Draining flips it back.
		h.SetReady(false)
		assert.Equal(t, http.StatusServiceUnavailable, getReady(h).Code)
	})

	t.Run("reports only the failing check", func(t *testing.T) {
		h := New()
		h.AddReadinessCheck("db", time.Second, alwaysOK)
		h.AddReadinessCheck("broker", time.Second, alwaysFail("no leader"))
		h.SetReady(true)
		drive(h.readiness[1], failAfter)

		w := getReady(h)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		body := probeBody(t, w)
		assert.Contains(t, body.Checks, "broker")
		assert.NotContains(t, body.Checks, "db")
	})
}

func TestIsReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("db", time.Second, alwaysOK)

	assert.False(t, h.IsReady())
	h.SetReady(true)
	assert.True(t, h.IsReady())

	h.AddReadinessCheck("broker", time.Second, alwaysFail("down"))
	drive(h.readiness[1], failAfter)
	assert.False(t, h.IsReady())
}

func TestProbeRecovers(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	p := h.liveness[0]

	drive(p, failAfter)
	ok, _ := p.status()
	require.False(t, ok)

	failing = false
	drive(p, recoverAfter)
	ok, err := p.status()
	assert.True(t, ok)
	assert.NoError(t, err)
}

func TestStartAndStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("noop", time.Second, alwaysOK)
	h.Start(context.Background(), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	h.Stop()
	h.Stop() // idempotent
}

func TestConcurrentProbeAccess(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, alwaysFail("err"))
	h.AddReadinessCheck("ready", time.Second, alwaysOK)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h.IsReady()
				getLive(h)
				getReady(h)
			}
		}()
	}
	wg.Wait()
	h.Stop()
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold")
}

func TestGCMaxPauseCheck(t *testing.T) {
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))
}
