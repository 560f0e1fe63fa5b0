package models

// CaptureResponse is the response for the capture endpoints.
type CaptureResponse struct {
	// Success is true when the record reached the sink.
	Success bool `json:"success"`

	CaptureID string `json:"capture_id,omitempty"`

	// Adapter names the extraction strategy that produced the record.
	Adapter string `json:"adapter,omitempty"`

	// Signals are the operator notifications emitted for this capture, in order.
	Signals []Signal `json:"signals"`

	// Record is the delivered record, present once extraction succeeded.
	Record *ContentRecord `json:"record,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// SettingsResponse is the response for the settings endpoints.
type SettingsResponse struct {
	SinkURL    string `json:"sink_url"`
	Configured bool   `json:"configured"`
}

// AdapterInfo describes one registered hostname.
type AdapterInfo struct {
	Hostname string `json:"hostname"`
	Adapter  string `json:"adapter"`
}

// AdaptersResponse lists the registry table.
type AdaptersResponse struct {
	Fallback string        `json:"fallback"`
	Priority []string      `json:"priority"`
	Adapters []AdapterInfo `json:"adapters"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Browser  bool   `json:"browser"`
	Uptime   string `json:"uptime"`
}

// ErrorResponse is the body of a request rejected before it reached a
// handler, or of a malformed request.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
