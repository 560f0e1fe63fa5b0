package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/use-agent/pageclip/clock"
	"github.com/use-agent/pageclip/config"
	"github.com/use-agent/pageclip/metrics"
	"github.com/use-agent/pageclip/models"
)

// SuccessMessage is the outcome message of a delivered record.
const SuccessMessage = "content saved to sink"

// Service delivers records to the sink named by the settings store.
// It is safe for concurrent use; the bucket and the in-flight set are shared
// by every caller.
type Service struct {
	settings config.SettingsStore
	sender   *Sender
	budget   *RateBudget
	policy   Policy
	clock    clock.Clock
	metrics  *metrics.Metrics

	mu       sync.Mutex
	inflight map[uint64]struct{}
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces the wall clock used for pacing and backoff.
func WithClock(c clock.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithMetrics records attempts and outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService builds the delivery service from its configuration.
func NewService(cfg config.DeliveryConfig, settings config.SettingsStore, opts ...Option) *Service {
	s := &Service{
		settings: settings,
		sender:   NewSender(cfg.Timeout, cfg.Secret),
		policy: Policy{
			MaxAttempts: cfg.MaxAttempts,
			Backoff:     LinearBackoff(cfg.BackoffBase),
		},
		clock:    clock.Real{},
		inflight: make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.budget = NewRateBudget(cfg.BucketCapacity, cfg.RefillInterval, s.clock)
	return s
}

// Deliver sends rec in the background and reports exactly one outcome on
// the returned channel. Cancelling ctx does not abort the delivery: the
// caller may stop waiting, the send still runs to completion.
func (s *Service) Deliver(ctx context.Context, rec models.ContentRecord) <-chan models.Outcome {
	out := make(chan models.Outcome, 1)
	rec = rec.Clone()
	bg := context.WithoutCancel(ctx)

	go func() {
		defer close(out)
		defer func() {
			if r := recover(); r != nil {
				slog.Error("delivery panicked", "url", rec.URL, "panic", r)
				out <- models.Failed(models.NewCaptureError(models.ErrCodeInternal,
					fmt.Sprintf("delivery panicked: %v", r), nil))
			}
		}()

		if err := s.Send(bg, rec); err != nil {
			out <- models.Failed(err)
			return
		}
		out <- models.Succeeded(SuccessMessage)
	}()
	return out
}

// Send delivers rec synchronously. A missing sink URL and a malformed
// record fail before any network attempt.
func (s *Service) Send(ctx context.Context, rec models.ContentRecord) (err error) {
	defer func() {
		code := metrics.ResultOK
		if err != nil {
			code = models.CodeOf(err)
		}
		s.metrics.DeliveryOutcome(code)
	}()

	sinkURL, err := s.settings.SinkURL(ctx)
	if err != nil {
		return models.NewCaptureError(models.ErrCodeInternal, "read settings", err)
	}
	if sinkURL == "" {
		return models.NewCaptureError(models.ErrCodeMissingSinkURL, "sink url is not configured", nil)
	}

	body, err := Encode(rec, s.clock.Now())
	if err != nil {
		return err
	}

	key := inflightKey(rec)
	if !s.claim(key) {
		return models.NewCaptureError(models.ErrCodeDeliveryFailed, "record is already in flight", nil)
	}
	defer s.release(key)

	err = s.policy.Do(ctx, s.clock, func(ctx context.Context, attempt int) error {
		wait, err := s.budget.Acquire(ctx)
		if err != nil {
			return Permanent(err)
		}
		s.metrics.RateWait(wait)

		err = s.sender.Post(ctx, sinkURL, body)
		s.metrics.DeliveryAttempt(attemptResult(err))
		return err
	})
	if err != nil {
		slog.Error("delivery failed",
			"url", rec.URL,
			"error", err,
		)
		return models.NewCaptureError(models.ErrCodeDeliveryFailed, "deliver to sink", err)
	}

	slog.Info("record delivered",
		"url", rec.URL,
		"bytes", len(body),
	)
	return nil
}

func (s *Service) claim(key uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return false
	}
	s.inflight[key] = struct{}{}
	return true
}

func (s *Service) release(key uint64) {
	s.mu.Lock()
	delete(s.inflight, key)
	s.mu.Unlock()
}

// inflightKey identifies one operator action's record.
func inflightKey(rec models.ContentRecord) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(rec.URL)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(rec.Metadata.ExtractionTime)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(rec.Content)
	return d.Sum64()
}

func attemptResult(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsPermanent(err):
		return "permanent"
	default:
		return "retryable"
	}
}
