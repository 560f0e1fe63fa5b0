package models

import "time"

// SignalKind names an operator-facing notification.
type SignalKind string

const (
	SignalProcessingStarted  SignalKind = "processingStarted"
	SignalProcessingComplete SignalKind = "processingComplete"
)

// Signal is emitted by the orchestrator toward the operator UI.
type Signal struct {
	Kind      SignalKind   `json:"kind"`
	ContextID string       `json:"context_id"`
	CaptureID string       `json:"capture_id"`
	Success   bool         `json:"success"`
	Message   string       `json:"message,omitempty"`
	Error     *ErrorDetail `json:"error,omitempty"`
	At        time.Time    `json:"at"`
}

// Outcome is the single terminal result of one delivery.
type Outcome struct {
	Success bool
	Message string
	Err     error
}

// Succeeded builds a successful outcome.
func Succeeded(message string) Outcome {
	return Outcome{Success: true, Message: message}
}

// Failed builds a failed outcome.
func Failed(err error) Outcome {
	return Outcome{Err: err}
}
