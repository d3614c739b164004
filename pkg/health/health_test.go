package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	status string
	checks map[string]string
}

func call(t *testing.T, handler http.HandlerFunc) (int, response) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	resp := response{checks: map[string]string{}}
	err := jx.DecodeBytes(w.Body.Bytes()).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "status":
			s, err := d.Str()
			resp.status = s
			return err
		case "checks":
			return d.Obj(func(d *jx.Decoder, name string) error {
				msg, err := d.Str()
				resp.checks[name] = msg
				return err
			})
		}
		return d.Skip()
	})
	require.NoError(t, err)
	return w.Code, resp
}

func ok(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func TestLiveEndpoint(t *testing.T) {
	t.Run("no checks", func(t *testing.T) {
		code, resp := call(t, New().LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", resp.status)
	})

	t.Run("failure below threshold stays healthy", func(t *testing.T) {
		h := New()
		h.AddLiveness(Check{Name: "db", Func: failing("refused")})
		h.live[0].run(context.Background())
		h.live[0].run(context.Background())

		code, _ := call(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
	})

	t.Run("failure at threshold", func(t *testing.T) {
		h := New()
		h.AddLiveness(Check{Name: "db", Func: failing("refused")})
		for range 3 {
			h.live[0].run(context.Background())
		}

		code, resp := call(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", resp.status)
		assert.Equal(t, "refused", resp.checks["db"])
	})
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadiness(Check{Name: "postgres", Func: ok})
	h.AddReadiness(Check{Name: "redis", Func: failing("timeout"), FailureThreshold: 1})

	code, resp := call(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "service is not ready", resp.checks["_readiness"])

	h.SetReady(true)
	code, _ = call(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code, "probes start healthy")

	h.readyP[1].run(context.Background())
	code, resp = call(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, map[string]string{"redis": "timeout"}, resp.checks)
	assert.False(t, h.IsReady())
}

func TestCheckRecovery(t *testing.T) {
	var (
		mu  sync.Mutex
		err error = errors.New("down")
	)
	h := New()
	h.AddReadiness(Check{Name: "dep", FailureThreshold: 1, SuccessThreshold: 2, Func: func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		return err
	}})
	h.SetReady(true)
	p := h.readyP[0]

	p.run(context.Background())
	assert.False(t, h.IsReady())

	mu.Lock()
	err = nil
	mu.Unlock()
	p.run(context.Background())
	assert.False(t, h.IsReady(), "needs two successes")
	p.run(context.Background())
	assert.True(t, h.IsReady())
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLiveness(Check{Name: "broken", Func: failing("x"), FailureThreshold: 1})
	h.Start(context.Background(), 10*time.Millisecond)
	defer h.Stop()

	require.Eventually(t, func() bool {
		code, _ := call(t, h.LiveEndpoint)
		return code == http.StatusServiceUnavailable
	}, time.Second, 10*time.Millisecond)

	h.Stop()
	h.Stop()
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestPingCheck(t *testing.T) {
	require.NoError(t, PingCheck(pingerFunc(ok))(context.Background()))
	err := PingCheck(pingerFunc(failing("conn reset")))(context.Background())
	require.ErrorContains(t, err, "conn reset")
}

func TestGoroutineCountCheck(t *testing.T) {
	require.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	require.Error(t, GoroutineCountCheck(0)(context.Background()))
}
