package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pageclip/adapter"
	"github.com/use-agent/pageclip/config"
	"github.com/use-agent/pageclip/delivery"
	"github.com/use-agent/pageclip/metrics"
	"github.com/use-agent/pageclip/models"
	"github.com/use-agent/pageclip/orchestrator"
	"github.com/use-agent/pageclip/snapshot"
)

const apiKey = "test-key"

var article = `<html><head><title>Field notes</title></head><body>
<h1>Field notes</h1>
<p>` + strings.Repeat("The river rose slowly through the night and nobody slept. ", 2) + `</p>
<p>` + strings.Repeat("By morning the lower fields were under a hand of water. ", 2) + `</p>
<p>` + strings.Repeat("We moved the animals to the ridge before the road closed. ", 2) + `</p>
</body></html>`

type harness struct {
	router   *gin.Engine
	settings *config.MemoryStore
	sinkHits *atomic.Int32
	received chan delivery.WireMessage
}

func newHarness(t *testing.T, withSink bool) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{sinkHits: &atomic.Int32{}, received: make(chan delivery.WireMessage, 4)}
	sink := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.sinkHits.Add(1)
		var msg delivery.WireMessage
		if err := json.NewDecoder(r.Body).Decode(&msg); err == nil {
			h.received <- msg
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(sink.Close)

	sinkURL := ""
	if withSink {
		sinkURL = sink.URL
	}
	h.settings = config.NewMemoryStore(sinkURL)

	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{apiKey}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
	reg, err := adapter.Default(adapter.Options{})
	require.NoError(t, err)
	promReg := prometheus.NewRegistry()
	m := metrics.New(promReg)

	svc := delivery.NewService(config.DeliveryConfig{
		BucketCapacity: 2,
		RefillInterval: 10 * time.Millisecond,
		MaxAttempts:    1,
		BackoffBase:    10 * time.Millisecond,
		Timeout:        2 * time.Second,
	}, h.settings, delivery.WithMetrics(m))

	overrides := orchestrator.DefaultOverrides(reg)
	sessions := orchestrator.NewSessions(orchestrator.Config{
		Cooldown:         3 * time.Second,
		AckTimeout:       5 * time.Second,
		MinContentLength: 1,
	}, orchestrator.Deps{
		Registry:  reg,
		Overrides: overrides,
		Deliverer: svc,
		Metrics:   m,
	}, time.Hour, 16)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.router = NewRouter(ctx, Deps{
		Config:    cfg,
		Sessions:  sessions,
		Registry:  reg,
		Overrides: overrides,
		Settings:  h.settings,
		Snapshots: &snapshot.Sources{},
		Gatherer:  promReg,
		StartTime: time.Now(),
	})
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestCaptureDeliversToSink(t *testing.T) {
	h := newHarness(t, true)

	w := h.do(t, http.MethodPost, "/api/v1/capture", models.CaptureRequest{
		ContextID: "tab-1",
		URL:       "https://blog.example.org/posts/flood",
		HTML:      article,
		Idea:      "keep for the report",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[models.CaptureResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, adapter.NameGeneric, resp.Adapter)
	assert.NotEmpty(t, resp.CaptureID)
	require.Len(t, resp.Signals, 2)
	assert.Equal(t, models.SignalProcessingComplete, resp.Signals[1].Kind)
	assert.Equal(t, delivery.SuccessMessage, resp.Signals[1].Message)
	require.NotNil(t, resp.Record)
	assert.Contains(t, resp.Record.Content, "The river rose slowly")
	assert.NotContains(t, resp.Record.Content, "Field notes")

	msg := <-h.received
	assert.Equal(t, "Field notes", msg.Title)
	assert.Equal(t, "keep for the report", msg.Idea)
	assert.EqualValues(t, 1, h.sinkHits.Load())
}

func TestCaptureErrorStatuses(t *testing.T) {
	t.Run("missing sink url", func(t *testing.T) {
		h := newHarness(t, false)
		w := h.do(t, http.MethodPost, "/api/v1/capture", models.CaptureRequest{
			URL:  "https://blog.example.org/posts/flood",
			HTML: article,
		})
		assert.Equal(t, http.StatusPreconditionFailed, w.Code)
		resp := decode[models.CaptureResponse](t, w)
		require.NotNil(t, resp.Error)
		assert.Equal(t, models.ErrCodeMissingSinkURL, resp.Error.Code)
		assert.NotNil(t, resp.Record)
		assert.Zero(t, h.sinkHits.Load())
	})

	t.Run("cooldown", func(t *testing.T) {
		h := newHarness(t, true)
		req := models.CaptureRequest{URL: "https://blog.example.org/posts/flood", HTML: article}
		require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/capture", req).Code)

		w := h.do(t, http.MethodPost, "/api/v1/capture", req)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		resp := decode[models.CaptureResponse](t, w)
		assert.Equal(t, models.ErrCodeCooldown, resp.Error.Code)
		require.Len(t, resp.Signals, 1)

		// Another context has its own cooldown.
		req.ContextID = "tab-2"
		assert.Equal(t, http.StatusOK, h.do(t, http.MethodPost, "/api/v1/capture", req).Code)
	})

	t.Run("not an article", func(t *testing.T) {
		h := newHarness(t, true)
		w := h.do(t, http.MethodPost, "/api/v1/capture", models.CaptureRequest{
			URL:  "https://example.org/",
			HTML: `<html><head><title>Home</title></head><body><p>Welcome.</p></body></html>`,
		})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		resp := decode[models.CaptureResponse](t, w)
		assert.Equal(t, models.ErrCodeEmptyExtraction, resp.Error.Code)
		assert.Zero(t, h.sinkHits.Load())
	})

	t.Run("invalid input", func(t *testing.T) {
		h := newHarness(t, true)
		w := h.do(t, http.MethodPost, "/api/v1/capture", map[string]string{"url": "not a url"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decode[models.ErrorResponse](t, w)
		assert.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code)
	})

	t.Run("no snapshot source", func(t *testing.T) {
		h := newHarness(t, true)
		w := h.do(t, http.MethodPost, "/api/v1/capture", models.CaptureRequest{URL: "https://example.org/"})
		assert.Equal(t, http.StatusBadGateway, w.Code)
		assert.Equal(t, models.ErrCodeSnapshotFailed, decode[models.ErrorResponse](t, w).Error.Code)
	})
}

func TestCaptureSelection(t *testing.T) {
	h := newHarness(t, true)

	w := h.do(t, http.MethodPost, "/api/v1/capture/selection", models.SelectionRequest{
		URL:   "https://blog.example.org/posts/flood",
		Title: "Field notes",
		Text:  "We moved the animals to the ridge.",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.CaptureResponse](t, w)
	assert.Equal(t, "Excerpt from: Field notes", resp.Record.Title)
	assert.Equal(t, orchestrator.SelectionPlatform, resp.Record.Metadata.Platform)

	msg := <-h.received
	assert.Equal(t, orchestrator.SelectionPlatform, msg.Metadata.Platform)
}

func TestSettings(t *testing.T) {
	h := newHarness(t, false)

	w := h.do(t, http.MethodGet, "/api/v1/settings", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[models.SettingsResponse](t, w).Configured)

	w = h.do(t, http.MethodPut, "/api/v1/settings", models.SettingsRequest{SinkURL: "https://sink.example.org/hook"})
	require.Equal(t, http.StatusOK, w.Code)

	got, err := h.settings.SinkURL(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://sink.example.org/hook", got)

	w = h.do(t, http.MethodPut, "/api/v1/settings", map[string]string{"sink_url": "nope"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdapters(t *testing.T) {
	h := newHarness(t, true)

	w := h.do(t, http.MethodGet, "/api/v1/adapters", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[models.AdaptersResponse](t, w)
	assert.Equal(t, adapter.NameGeneric, resp.Fallback)
	assert.Equal(t, []string{adapter.NameDeepSeek, adapter.NameJike, adapter.NameZsxq}, resp.Priority)
	assert.Len(t, resp.Adapters, 16)
}

func TestAuthAndOpenRoutes(t *testing.T) {
	h := newHarness(t, true)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, models.ErrCodeUnauthorized, decode[models.ErrorResponse](t, w).Error.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/settings", nil)
	req.Header.Set("X-API-Key", "wrong")
	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	for _, path := range []string{"/api/v1/health", "/api/v1/stamp.js", "/metrics"} {
		w := httptest.NewRecorder()
		h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stamp.js", nil))
	assert.Contains(t, w.Header().Get("Content-Type"), "javascript")
	assert.True(t, strings.HasPrefix(w.Body.String(), "(() =>"))
}
