package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
	"github.com/use-agent/pageclip/orchestrator"
)

// Snapshotter turns a capture request into a page. release must be called
// once extraction is done.
type Snapshotter interface {
	Take(ctx context.Context, req models.CaptureRequest) (page *dom.Page, release func(), err error)
}

// Capture returns a handler for POST /api/v1/capture.
//
// Flow:
//  1. Parse & validate request, apply defaults.
//  2. Snapshot the page (posted HTML, browser render, or fetch).
//  3. Trigger the context's orchestrator and collect its signals.
//  4. Respond with the record and signals; the status follows the error code.
func Capture(sessions *orchestrator.Sessions, snap Snapshotter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CaptureRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		req.Defaults()

		page, release, err := snap.Take(c.Request.Context(), req)
		if err != nil {
			respondError(c, err)
			return
		}
		defer release()

		signals := &orchestrator.Recorder{}
		capture, err := sessions.Get(req.ContextID).Trigger(c.Request.Context(), page, req.Idea, signals)
		respondCapture(c, capture, signals, err)
	}
}

// CaptureSelection returns a handler for POST /api/v1/capture/selection.
func CaptureSelection(sessions *orchestrator.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SelectionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
		req.Defaults()

		signals := &orchestrator.Recorder{}
		capture, err := sessions.Get(req.ContextID).CaptureSelection(c.Request.Context(), req, signals)
		respondCapture(c, capture, signals, err)
	}
}

func respondCapture(c *gin.Context, capture *orchestrator.Capture, signals *orchestrator.Recorder, err error) {
	resp := models.CaptureResponse{
		Success:   err == nil,
		CaptureID: capture.CaptureID,
		Adapter:   capture.Adapter,
		Signals:   signals.Signals,
		Record:    capture.Record,
		Error:     models.DetailOf(err),
	}
	if resp.Signals == nil {
		resp.Signals = []models.Signal{}
	}
	status := http.StatusOK
	if err != nil {
		status = StatusOf(resp.Error.Code)
	}
	c.JSON(status, resp)
}
