// Package orchestrator runs one capture at a time per page context: it
// enforces the cooldown, dispatches to an adapter, normalizes the record,
// hands it to delivery and waits, bounded, for the outcome.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/use-agent/pageclip/adapter"
	"github.com/use-agent/pageclip/clock"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/metrics"
	"github.com/use-agent/pageclip/models"
)

// State is the orchestrator's position in Idle → Extracting → Delivering → Idle.
type State int

const (
	Idle State = iota
	Extracting
	Delivering
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Extracting:
		return "extracting"
	case Delivering:
		return "delivering"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Trigger kinds, used as the metrics label.
const (
	KindPage      = "page"
	KindSelection = "selection"
)

// Deliverer is the delivery boundary. The channel yields one outcome.
type Deliverer interface {
	Deliver(ctx context.Context, rec models.ContentRecord) <-chan models.Outcome
}

// Config holds the orchestrator limits.
type Config struct {
	Cooldown         time.Duration
	AckTimeout       time.Duration
	MinContentLength int
}

// Deps are the collaborators shared by every orchestrator of a process.
type Deps struct {
	Registry  *adapter.Registry
	Overrides []Override
	Deliverer Deliverer
	Notifier  Notifier
	Clock     clock.Clock
	Metrics   *metrics.Metrics
}

// Capture is the result of one trigger.
type Capture struct {
	CaptureID string
	Adapter   string
	Record    *models.ContentRecord
	Outcome   models.Outcome
}

// Orchestrator owns the capture state of one page context.
type Orchestrator struct {
	contextID string
	cfg       Config
	deps      Deps

	mu          sync.Mutex
	state       State
	lastTrigger time.Time
	lastUsed    time.Time
}

// New returns an idle orchestrator for contextID.
func New(contextID string, cfg Config, deps Deps) *Orchestrator {
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Notifier == nil {
		deps.Notifier = LogNotifier{}
	}
	if cfg.MinContentLength < 1 {
		cfg.MinContentLength = 1
	}
	return &Orchestrator{
		contextID: contextID,
		cfg:       cfg,
		deps:      deps,
		lastUsed:  deps.Clock.Now(),
	}
}

// ContextID returns the page context the orchestrator serves.
func (o *Orchestrator) ContextID() string { return o.contextID }

// State returns the current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// evictable reports when the orchestrator was last used and whether it can
// be dropped at now: it must be idle and untouched for a full cooldown, so
// a replacement for the same context cannot skip the cooldown window.
func (o *Orchestrator) evictable(now time.Time) (time.Time, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != Idle {
		return o.lastUsed, false
	}
	return o.lastUsed, now.Sub(o.lastUsed) >= o.cfg.Cooldown
}

// Trigger captures page. It is rejected with COOLDOWN while a capture runs
// or within the cooldown window of the previous accepted trigger. Every call
// emits exactly one processingComplete signal, to the orchestrator's
// notifier and to notify when it is non-nil.
func (o *Orchestrator) Trigger(ctx context.Context, page *dom.Page, idea string, notify Notifier) (*Capture, error) {
	emit := fanout{o.deps.Notifier, notify}
	capture := &Capture{CaptureID: uuid.NewString()}

	if err := o.begin(); err != nil {
		o.deps.Metrics.Trigger(KindPage, models.CodeOf(err))
		o.complete(emit, capture, models.Failed(err))
		return capture, err
	}
	o.deps.Metrics.Trigger(KindPage, metrics.ResultOK)
	emit.Notify(o.signal(models.SignalProcessingStarted, capture.CaptureID, models.Outcome{}))

	log := slog.With(
		"context_id", o.contextID,
		"capture_id", capture.CaptureID,
		"hostname", page.Hostname(),
	)

	a, err := o.selectAdapter(page)
	if err == nil {
		capture.Adapter = a.Name()
		log = log.With("adapter", capture.Adapter)
		var rec *models.ContentRecord
		rec, err = o.extract(ctx, a, page)
		if err == nil {
			err = o.normalize(rec, page, idea)
		}
		if err == nil {
			capture.Record = rec
		}
	}
	o.deps.Metrics.Extraction(adapterLabel(capture.Adapter), codeOf(err))
	if err != nil {
		log.Warn("extraction failed", "error", err)
		o.setState(Idle)
		o.complete(emit, capture, models.Failed(err))
		return capture, err
	}
	log.Info("extraction complete", "content_runes", len([]rune(capture.Record.Content)))

	o.setState(Delivering)
	out := o.awaitDelivery(ctx, *capture.Record)
	o.setState(Idle)
	o.complete(emit, capture, out)
	return capture, out.Err
}

// CaptureSelection delivers operator-selected text as a record. It skips
// extraction and the cooldown and leaves the state machine untouched.
func (o *Orchestrator) CaptureSelection(ctx context.Context, sel models.SelectionRequest, notify Notifier) (*Capture, error) {
	emit := fanout{o.deps.Notifier, notify}
	capture := &Capture{CaptureID: uuid.NewString(), Adapter: KindSelection}
	o.deps.Metrics.Trigger(KindSelection, metrics.ResultOK)
	emit.Notify(o.signal(models.SignalProcessingStarted, capture.CaptureID, models.Outcome{}))

	rec, err := o.selectionRecord(sel)
	if err != nil {
		o.complete(emit, capture, models.Failed(err))
		return capture, err
	}
	capture.Record = rec

	out := o.awaitDelivery(ctx, *rec)
	o.touch()
	o.complete(emit, capture, out)
	return capture, out.Err
}

// begin moves Idle → Extracting or reports COOLDOWN.
func (o *Orchestrator) begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.deps.Clock.Now()
	if o.state != Idle {
		return models.NewCaptureError(models.ErrCodeCooldown,
			fmt.Sprintf("a capture is already %s", o.state), nil)
	}
	if !o.lastTrigger.IsZero() {
		if since := now.Sub(o.lastTrigger); since < o.cfg.Cooldown {
			return models.NewCaptureError(models.ErrCodeCooldown,
				fmt.Sprintf("wait %s before the next capture", (o.cfg.Cooldown - since).Round(time.Millisecond)), nil)
		}
	}
	o.state = Extracting
	o.lastTrigger = now
	o.lastUsed = now
	return nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.lastUsed = o.deps.Clock.Now()
	o.mu.Unlock()
}

func (o *Orchestrator) touch() {
	o.mu.Lock()
	o.lastUsed = o.deps.Clock.Now()
	o.mu.Unlock()
}

// selectAdapter applies the overrides in order, then the registry.
func (o *Orchestrator) selectAdapter(page *dom.Page) (adapter.Adapter, error) {
	host := page.Hostname()
	for _, ov := range o.deps.Overrides {
		if !ov.Match(host) {
			continue
		}
		if ov.Precheck != nil {
			if err := ov.Precheck(page); err != nil {
				return nil, err
			}
		}
		return ov.Adapter, nil
	}
	return o.deps.Registry.Resolve(host), nil
}

// extract runs the adapter, turning a panic into EXTRACTION_FAILED.
func (o *Orchestrator) extract(ctx context.Context, a adapter.Adapter, page *dom.Page) (rec *models.ContentRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("adapter panicked",
				"context_id", o.contextID,
				"adapter", a.Name(),
				"panic", r,
			)
			rec, err = nil, extractionFailed(fmt.Sprintf("%s: adapter panicked: %v", a.Name(), r), nil)
		}
	}()

	rec, err = a.Extract(ctx, page)
	if err != nil {
		if models.CodeOf(err) == models.ErrCodeInternal {
			err = extractionFailed(a.Name()+": extraction failed", err)
		}
		return nil, err
	}
	if rec == nil {
		return nil, extractionFailed(a.Name()+": adapter returned no record", nil)
	}
	return rec, nil
}

// awaitDelivery races the delivery outcome against the ack timeout. The
// loser is discarded; either way the caller returns to Idle.
func (o *Orchestrator) awaitDelivery(ctx context.Context, rec models.ContentRecord) models.Outcome {
	if o.deps.Deliverer == nil {
		return models.Failed(models.NewCaptureError(models.ErrCodeInternal, "no delivery boundary configured", nil))
	}
	ch := o.deps.Deliverer.Deliver(ctx, rec.Clone())

	select {
	case out, ok := <-ch:
		if !ok {
			return models.Failed(models.NewCaptureError(models.ErrCodeDeliveryFailed,
				"delivery ended without an outcome", nil))
		}
		return out
	case <-o.deps.Clock.After(o.cfg.AckTimeout):
		slog.Warn("delivery acknowledgment timed out",
			"context_id", o.contextID,
			"timeout", o.cfg.AckTimeout,
		)
		return models.Failed(models.NewCaptureError(models.ErrCodeDeliveryFailed,
			fmt.Sprintf("no delivery acknowledgment within %s", o.cfg.AckTimeout), nil))
	case <-ctx.Done():
		return models.Failed(models.NewCaptureError(models.ErrCodeDeliveryFailed,
			"stopped waiting for delivery", ctx.Err()))
	}
}

func (o *Orchestrator) complete(emit Notifier, capture *Capture, out models.Outcome) {
	capture.Outcome = out
	emit.Notify(o.signal(models.SignalProcessingComplete, capture.CaptureID, out))
}

func (o *Orchestrator) signal(kind models.SignalKind, captureID string, out models.Outcome) models.Signal {
	sig := models.Signal{
		Kind:      kind,
		ContextID: o.contextID,
		CaptureID: captureID,
		At:        o.deps.Clock.Now(),
	}
	if kind == models.SignalProcessingComplete {
		sig.Success = out.Success
		sig.Message = out.Message
		sig.Error = models.DetailOf(out.Err)
	}
	return sig
}

func extractionFailed(msg string, err error) error {
	return models.NewCaptureError(models.ErrCodeExtractionFailed, msg, err)
}

func codeOf(err error) string {
	if err == nil {
		return metrics.ResultOK
	}
	return models.CodeOf(err)
}

func adapterLabel(name string) string {
	if name == "" {
		return "none"
	}
	return name
}

func (d Deps) clock() clock.Clock {
	if d.Clock == nil {
		return clock.Real{}
	}
	return d.Clock
}
