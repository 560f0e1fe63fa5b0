package orchestrator

import (
	"log/slog"

	"github.com/use-agent/pageclip/models"
)

// Notifier receives operator-facing signals.
type Notifier interface {
	Notify(sig models.Signal)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(sig models.Signal)

func (f NotifierFunc) Notify(sig models.Signal) { f(sig) }

// LogNotifier writes every signal to the default logger.
type LogNotifier struct{}

func (LogNotifier) Notify(sig models.Signal) {
	attrs := []any{
		"context_id", sig.ContextID,
		"capture_id", sig.CaptureID,
		"kind", sig.Kind,
	}
	if sig.Kind == models.SignalProcessingStarted {
		slog.Debug("capture signal", attrs...)
		return
	}
	attrs = append(attrs, "success", sig.Success)
	if sig.Error != nil {
		attrs = append(attrs, "code", sig.Error.Code, "error", sig.Error.Message)
		slog.Warn("capture signal", attrs...)
		return
	}
	slog.Info("capture signal", append(attrs, "message", sig.Message)...)
}

// Recorder collects the signals of one call, in order.
type Recorder struct {
	Signals []models.Signal
}

func (r *Recorder) Notify(sig models.Signal) { r.Signals = append(r.Signals, sig) }

type fanout []Notifier

func (f fanout) Notify(sig models.Signal) {
	for _, n := range f {
		if n != nil {
			n.Notify(sig)
		}
	}
}
