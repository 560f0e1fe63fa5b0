package orchestrator

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/pageclip/adapter"
	"github.com/use-agent/pageclip/clock"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

var start = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

const body = "A paragraph long enough to count as the body of a captured page."

type stubAdapter struct {
	name string
	fn   func(page *dom.Page) (*models.ContentRecord, error)
}

func (s stubAdapter) Name() string { return s.name }

func (s stubAdapter) Extract(_ context.Context, page *dom.Page) (*models.ContentRecord, error) {
	return s.fn(page)
}

func staticAdapter(name, content string) stubAdapter {
	return stubAdapter{name: name, fn: func(page *dom.Page) (*models.ContentRecord, error) {
		return &models.ContentRecord{Title: "Stub title", Content: content}, nil
	}}
}

// stubDeliverer hands out channels produced by fn and counts calls.
type stubDeliverer struct {
	calls atomic.Int32
	fn    func(rec models.ContentRecord) <-chan models.Outcome
}

func (d *stubDeliverer) Deliver(_ context.Context, rec models.ContentRecord) <-chan models.Outcome {
	d.calls.Add(1)
	return d.fn(rec)
}

func succeed() *stubDeliverer {
	return &stubDeliverer{fn: func(models.ContentRecord) <-chan models.Outcome {
		ch := make(chan models.Outcome, 1)
		ch <- models.Succeeded("saved")
		close(ch)
		return ch
	}}
}

func never() *stubDeliverer {
	return &stubDeliverer{fn: func(models.ContentRecord) <-chan models.Outcome {
		return make(chan models.Outcome)
	}}
}

func testConfig() Config {
	return Config{Cooldown: 3 * time.Second, AckTimeout: 10 * time.Second, MinContentLength: 1}
}

func newTest(t *testing.T, a adapter.Adapter, d Deliverer) (*Orchestrator, *clock.Fake) {
	t.Helper()
	fc := clock.NewFake(start)
	o := New("tab-1", testConfig(), Deps{
		Registry:  adapter.NewRegistry(a, nil),
		Deliverer: d,
		Notifier:  NotifierFunc(func(models.Signal) {}),
		Clock:     fc,
	})
	return o, fc
}

func page(t *testing.T, rawURL string) *dom.Page {
	t.Helper()
	p, err := dom.Parse(rawURL, "<html><head><title>Page title</title></head><body><p>"+body+"</p></body></html>", 0)
	require.NoError(t, err)
	return p
}

func TestTriggerCooldown(t *testing.T) {
	o, fc := newTest(t, staticAdapter("stub", body), succeed())
	ctx := context.Background()

	_, err := o.Trigger(ctx, page(t, "https://example.com/a"), "", nil)
	require.NoError(t, err)

	fc.Advance(2999 * time.Millisecond)
	_, err = o.Trigger(ctx, page(t, "https://example.com/a"), "", nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeCooldown, models.CodeOf(err))

	fc.Advance(time.Millisecond)
	_, err = o.Trigger(ctx, page(t, "https://example.com/a"), "", nil)
	require.NoError(t, err)
}

func TestTriggerRejectsWhileBusy(t *testing.T) {
	release := make(chan models.Outcome, 1)
	d := &stubDeliverer{fn: func(models.ContentRecord) <-chan models.Outcome { return release }}
	o, fc := newTest(t, staticAdapter("stub", body), d)

	done := make(chan error, 1)
	go func() {
		_, err := o.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntil(ctx, 1))
	assert.Equal(t, Delivering, o.State())

	fc.Advance(5 * time.Second)
	_, err := o.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeCooldown, models.CodeOf(err))
	assert.Contains(t, err.Error(), "delivering")

	release <- models.Succeeded("saved")
	require.NoError(t, <-done)
	assert.Equal(t, Idle, o.State())
}

func TestTriggerAckTimeoutReturnsToIdle(t *testing.T) {
	d := never()
	o, fc := newTest(t, staticAdapter("stub", body), d)

	done := make(chan error, 1)
	go func() {
		_, err := o.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
		done <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, fc.BlockUntil(ctx, 1))
	fc.Advance(10 * time.Second)

	err := <-done
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeDeliveryFailed, models.CodeOf(err))
	assert.Equal(t, Idle, o.State())

	// The cooldown has long passed, so the orchestrator accepts again.
	go func() {
		_, err := o.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
		done <- err
	}()
	require.NoError(t, fc.BlockUntil(ctx, 1))
	fc.Advance(10 * time.Second)
	assert.Equal(t, models.ErrCodeDeliveryFailed, models.CodeOf(<-done))
	assert.EqualValues(t, 2, d.calls.Load())
}

func TestTriggerClosedChannelFails(t *testing.T) {
	d := &stubDeliverer{fn: func(models.ContentRecord) <-chan models.Outcome {
		ch := make(chan models.Outcome)
		close(ch)
		return ch
	}}
	o, _ := newTest(t, staticAdapter("stub", body), d)

	_, err := o.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeDeliveryFailed, models.CodeOf(err))
	assert.Equal(t, Idle, o.State())
}

func TestTriggerSignals(t *testing.T) {
	tests := []struct {
		name    string
		adapter adapter.Adapter
		wantOK  bool
		code    string
	}{
		{name: "success", adapter: staticAdapter("stub", body), wantOK: true},
		{name: "empty", adapter: staticAdapter("stub", ""), code: models.ErrCodeEmptyExtraction},
		{
			name: "adapter error",
			adapter: stubAdapter{name: "stub", fn: func(*dom.Page) (*models.ContentRecord, error) {
				return nil, models.NewCaptureError(models.ErrCodeExtractionFailed, "stub: title not found", nil)
			}},
			code: models.ErrCodeExtractionFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _ := newTest(t, tt.adapter, succeed())
			rec := &Recorder{}

			capture, err := o.Trigger(context.Background(), page(t, "https://example.com/a"), "", rec)
			require.Len(t, rec.Signals, 2)
			assert.Equal(t, models.SignalProcessingStarted, rec.Signals[0].Kind)
			last := rec.Signals[1]
			assert.Equal(t, models.SignalProcessingComplete, last.Kind)
			assert.Equal(t, capture.CaptureID, last.CaptureID)
			assert.Equal(t, "tab-1", last.ContextID)
			assert.Equal(t, tt.wantOK, last.Success)
			if tt.wantOK {
				require.NoError(t, err)
				assert.Nil(t, last.Error)
				return
			}
			require.Error(t, err)
			require.NotNil(t, last.Error)
			assert.Equal(t, tt.code, last.Error.Code)
		})
	}
}

func TestTriggerCooldownEmitsOneCompletion(t *testing.T) {
	o, _ := newTest(t, staticAdapter("stub", body), succeed())
	_, err := o.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
	require.NoError(t, err)

	rec := &Recorder{}
	_, err = o.Trigger(context.Background(), page(t, "https://example.com/a"), "", rec)
	require.Error(t, err)
	require.Len(t, rec.Signals, 1)
	assert.Equal(t, models.SignalProcessingComplete, rec.Signals[0].Kind)
	assert.Equal(t, models.ErrCodeCooldown, rec.Signals[0].Error.Code)
}

func TestTriggerRecoversAdapterPanic(t *testing.T) {
	d := succeed()
	o, fc := newTest(t, stubAdapter{name: "broken", fn: func(*dom.Page) (*models.ContentRecord, error) {
		panic("index out of range")
	}}, d)

	capture, err := o.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeExtractionFailed, models.CodeOf(err))
	assert.Contains(t, err.Error(), "index out of range")
	assert.Equal(t, "broken", capture.Adapter)
	assert.Equal(t, Idle, o.State())
	assert.Zero(t, d.calls.Load())

	// A failed attempt still starts the cooldown window.
	_, err = o.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
	assert.Equal(t, models.ErrCodeCooldown, models.CodeOf(err))

	fc.Advance(3 * time.Second)
	_, err = o.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
	assert.Equal(t, models.ErrCodeExtractionFailed, models.CodeOf(err))
}

func TestTriggerEmptyExtractionIsNotDelivered(t *testing.T) {
	d := succeed()
	o, _ := newTest(t, staticAdapter("stub", " \n​\n "), d)

	_, err := o.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeEmptyExtraction, models.CodeOf(err))
	assert.Zero(t, d.calls.Load())
	assert.Equal(t, Idle, o.State())
}

func TestTriggerMinContentLength(t *testing.T) {
	fc := clock.NewFake(start)
	d := succeed()
	cfg := testConfig()
	cfg.MinContentLength = 200
	o := New("tab-1", cfg, Deps{
		Registry:  adapter.NewRegistry(staticAdapter("stub", body), nil),
		Deliverer: d,
		Clock:     fc,
	})

	_, err := o.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
	assert.Equal(t, models.ErrCodeEmptyExtraction, models.CodeOf(err))
	assert.Zero(t, d.calls.Load())
}

func TestTriggerNormalizesRecord(t *testing.T) {
	var got models.ContentRecord
	d := &stubDeliverer{fn: func(rec models.ContentRecord) <-chan models.Outcome {
		got = rec
		ch := make(chan models.Outcome, 1)
		ch <- models.Succeeded("saved")
		return ch
	}}
	a := stubAdapter{name: "stub", fn: func(*dom.Page) (*models.ContentRecord, error) {
		return &models.ContentRecord{Content: "  first   line \n\n\n\nsecond line  "}, nil
	}}
	o, _ := newTest(t, a, d)

	capture, err := o.Trigger(context.Background(), page(t, "https://example.com/a?b=1"), "  worth keeping ", nil)
	require.NoError(t, err)

	rec := capture.Record
	assert.Equal(t, "Page title", rec.Title)
	assert.Equal(t, "https://example.com/a?b=1", rec.URL)
	assert.Equal(t, "first line\n\nsecond line", rec.Content)
	assert.Equal(t, "worth keeping", rec.Idea)
	assert.Equal(t, "worth keeping", rec.Metadata.UserIdea)
	assert.Equal(t, "2026-03-01T08:00:00Z", rec.Metadata.ExtractionTime)
	assert.Equal(t, models.UnknownAuthor, rec.Metadata.Author)
	assert.Equal(t, models.DefaultPlatform, rec.Metadata.Platform)
	assert.NotNil(t, rec.Metadata.Tags)
	assert.NotNil(t, rec.Metadata.Images)
	assert.Equal(t, *rec, got)
}

func TestTriggerMissingTitle(t *testing.T) {
	a := stubAdapter{name: "stub", fn: func(*dom.Page) (*models.ContentRecord, error) {
		return &models.ContentRecord{Content: body}, nil
	}}
	o, _ := newTest(t, a, succeed())
	p, err := dom.Parse("https://example.com/a", "<html><body><p>"+body+"</p></body></html>", 0)
	require.NoError(t, err)

	_, err = o.Trigger(context.Background(), p, "", nil)
	assert.Equal(t, models.ErrCodeExtractionFailed, models.CodeOf(err))
}

func TestTriggerUsesOverrideBeforeRegistry(t *testing.T) {
	fc := clock.NewFake(start)
	hosts := map[string]adapter.Adapter{"chat.deepseek.com": staticAdapter("registry", body)}
	o := New("tab-1", testConfig(), Deps{
		Registry: adapter.NewRegistry(staticAdapter("generic", body), hosts),
		Overrides: []Override{{
			Name:    "override",
			Match:   domainOrSubdomain("deepseek.com"),
			Adapter: staticAdapter("override", body),
		}},
		Deliverer: succeed(),
		Clock:     fc,
	})

	capture, err := o.Trigger(context.Background(), page(t, "https://chat.deepseek.com/a/chat/s/1"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "override", capture.Adapter)

	fc.Advance(3 * time.Second)
	capture, err = o.Trigger(context.Background(), page(t, "https://example.org/"), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "generic", capture.Adapter)
}

func TestDefaultOverridesZsxqPrecheck(t *testing.T) {
	reg, err := adapter.Default(adapter.Options{})
	require.NoError(t, err)
	overrides := DefaultOverrides(reg)

	names := make([]string, 0, len(overrides))
	for _, ov := range overrides {
		names = append(names, ov.Name)
	}
	assert.Equal(t, []string{adapter.NameDeepSeek, adapter.NameJike, adapter.NameZsxq}, names)

	d := succeed()
	o := New("tab-1", testConfig(), Deps{
		Registry:  reg,
		Overrides: overrides,
		Deliverer: d,
		Clock:     clock.NewFake(start),
	})
	_, err = o.Trigger(context.Background(), page(t, "https://wx.zsxq.com/group/1"), "", nil)
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeExtractionFailed, models.CodeOf(err))
	assert.Contains(t, err.Error(), "detail panel")
	assert.Zero(t, d.calls.Load())
}

func TestDomainOrSubdomain(t *testing.T) {
	match := domainOrSubdomain("zsxq.com")
	assert.True(t, match("zsxq.com"))
	assert.True(t, match("wx.zsxq.com"))
	assert.False(t, match("notzsxq.com"))
	assert.False(t, match("zsxq.com.evil.net"))
}

func TestCaptureSelectionBypassesCooldown(t *testing.T) {
	var got models.ContentRecord
	d := &stubDeliverer{fn: func(rec models.ContentRecord) <-chan models.Outcome {
		got = rec
		ch := make(chan models.Outcome, 1)
		ch <- models.Succeeded("saved")
		return ch
	}}
	o, _ := newTest(t, staticAdapter("stub", body), d)

	_, err := o.Trigger(context.Background(), page(t, "https://example.com/a"), "", nil)
	require.NoError(t, err)

	rec := &Recorder{}
	capture, err := o.CaptureSelection(context.Background(), models.SelectionRequest{
		URL:   "https://example.com/a",
		Title: "Page title",
		Text:  "  the quoted   sentence ",
		Idea:  "quote",
	}, rec)
	require.NoError(t, err)
	require.Len(t, rec.Signals, 2)
	assert.True(t, rec.Signals[1].Success)

	assert.Equal(t, "Excerpt from: Page title", got.Title)
	assert.Equal(t, "the quoted sentence", got.Content)
	assert.Equal(t, SelectionPlatform, got.Metadata.Platform)
	assert.Equal(t, SelectionSource, got.Metadata.Source)
	assert.Equal(t, "quote", got.Metadata.UserIdea)
	assert.Equal(t, 19, got.Metadata.Extra["selectionLength"])
	assert.Equal(t, KindSelection, capture.Adapter)
	assert.Equal(t, Idle, o.State())
}

func TestCaptureSelectionEmpty(t *testing.T) {
	d := succeed()
	o, _ := newTest(t, staticAdapter("stub", body), d)

	_, err := o.CaptureSelection(context.Background(), models.SelectionRequest{
		URL:  "https://example.com/a",
		Text: strings.Repeat(" ", 4),
	}, nil)
	assert.Equal(t, models.ErrCodeEmptyExtraction, models.CodeOf(err))
	assert.Zero(t, d.calls.Load())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "extracting", Extracting.String())
	assert.Equal(t, "delivering", Delivering.String())
	assert.Equal(t, "state(7)", State(7).String())
}
