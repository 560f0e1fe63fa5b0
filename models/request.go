package models

// CaptureRequest is the payload for POST /api/v1/capture.
type CaptureRequest struct {
	// ContextID identifies the operator's page context (one browser tab).
	// Each context owns its own cooldown. Default: "default".
	ContextID string `json:"context_id,omitempty" binding:"omitempty,max=128"`

	// URL is the page being captured. Required.
	URL string `json:"url" binding:"required,url"`

	// HTML is the page snapshot. When empty the server renders or fetches URL.
	HTML string `json:"html,omitempty"`

	// Title overrides the snapshot's <title>.
	Title string `json:"title,omitempty"`

	// Idea is the operator's free-text annotation.
	Idea string `json:"idea,omitempty" binding:"omitempty,max=4000"`

	// ViewportHeight is the operator's viewport height in CSS pixels.
	ViewportHeight int `json:"viewport_height,omitempty" binding:"omitempty,min=0,max=20000"`

	// Render selects the server-side snapshot source when HTML is empty.
	// Allowed: "browser" (default), "http".
	Render string `json:"render,omitempty" binding:"omitempty,oneof=browser http"`
}

// Defaults applies default values to unset fields.
func (r *CaptureRequest) Defaults() {
	if r.ContextID == "" {
		r.ContextID = "default"
	}
	if r.Render == "" {
		r.Render = "browser"
	}
}

// SelectionRequest is the payload for POST /api/v1/capture/selection.
type SelectionRequest struct {
	ContextID string `json:"context_id,omitempty" binding:"omitempty,max=128"`
	URL       string `json:"url" binding:"required,url"`
	Title     string `json:"title,omitempty"`
	Text      string `json:"text" binding:"required"`
	Idea      string `json:"idea,omitempty" binding:"omitempty,max=4000"`
}

// Defaults applies default values to unset fields.
func (r *SelectionRequest) Defaults() {
	if r.ContextID == "" {
		r.ContextID = "default"
	}
}

// SettingsRequest is the payload for PUT /api/v1/settings.
type SettingsRequest struct {
	SinkURL string `json:"sink_url" binding:"required,url"`
}
