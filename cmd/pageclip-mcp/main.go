package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/pageclip/models"
)

func main() {
	apiURL := os.Getenv("PAGECLIP_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("PAGECLIP_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "PAGECLIP_API_KEY is required")
		os.Exit(1)
	}

	c := &client{
		http:   &http.Client{Timeout: 120 * time.Second},
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
	}

	s := server.NewMCPServer(
		"pageclip",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	capturePageTool := mcp.NewTool("capture_page",
		mcp.WithDescription("Capture a web page: extract its title, body and platform metadata, then deliver the record to the configured sink. Each context_id accepts one capture every few seconds."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page to capture"),
		),
		mcp.WithString("idea",
			mcp.Description("Free-text note stored with the record"),
		),
		mcp.WithString("context_id",
			mcp.Description("Page context id; captures in one context share a cooldown (default: 'mcp')"),
		),
		mcp.WithString("render",
			mcp.Description("Snapshot source: 'browser' (default, renders JavaScript) or 'http' (static fetch)"),
			mcp.Enum("browser", "http"),
		),
	)
	s.AddTool(capturePageTool, c.handleCapturePage)

	captureSelectionTool := mcp.NewTool("capture_selection",
		mcp.WithDescription("Deliver a piece of text selected from a page as its own record. No extraction and no cooldown."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the page the text comes from"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The selected text"),
		),
		mcp.WithString("title",
			mcp.Description("Title of the source page"),
		),
		mcp.WithString("idea",
			mcp.Description("Free-text note stored with the record"),
		),
	)
	s.AddTool(captureSelectionTool, c.handleCaptureSelection)

	setSinkTool := mcp.NewTool("set_sink",
		mcp.WithDescription("Set the URL records are delivered to."),
		mcp.WithString("sink_url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL of the sink endpoint"),
		),
	)
	s.AddTool(setSinkTool, c.handleSetSink)

	listAdaptersTool := mcp.NewTool("list_adapters",
		mcp.WithDescription("List the hostnames that have a dedicated extraction adapter."),
	)
	s.AddTool(listAdaptersTool, c.handleListAdapters)

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

type client struct {
	http   *http.Client
	apiURL string
	apiKey string
}

// call sends a request to the pageclip API and decodes the JSON body into
// out, whatever the status code.
func (c *client) call(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("parse response (HTTP %d): %w", resp.StatusCode, err)
	}
	return nil
}

func (c *client) handleCapturePage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}

	payload := models.CaptureRequest{
		ContextID: request.GetString("context_id", "mcp"),
		URL:       url,
		Idea:      request.GetString("idea", ""),
		Render:    request.GetString("render", ""),
	}
	var resp models.CaptureResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/capture", payload, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("capture request failed: %v", err)), nil
	}
	return captureResult(resp), nil
}

func (c *client) handleCaptureSelection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}
	text, err := request.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError("text is required"), nil
	}

	payload := models.SelectionRequest{
		ContextID: "mcp",
		URL:       url,
		Text:      text,
		Title:     request.GetString("title", ""),
		Idea:      request.GetString("idea", ""),
	}
	var resp models.CaptureResponse
	if err := c.call(ctx, http.MethodPost, "/api/v1/capture/selection", payload, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("selection request failed: %v", err)), nil
	}
	return captureResult(resp), nil
}

func (c *client) handleSetSink(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sinkURL, err := request.RequireString("sink_url")
	if err != nil {
		return mcp.NewToolResultError("sink_url is required"), nil
	}

	var resp struct {
		models.SettingsResponse
		Error *models.ErrorDetail `json:"error"`
	}
	payload := models.SettingsRequest{SinkURL: sinkURL}
	if err := c.call(ctx, http.MethodPut, "/api/v1/settings", payload, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("settings request failed: %v", err)), nil
	}
	if resp.Error != nil {
		return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)), nil
	}
	return mcp.NewToolResultText("sink set to " + resp.SinkURL), nil
}

func (c *client) handleListAdapters(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp models.AdaptersResponse
	if err := c.call(ctx, http.MethodGet, "/api/v1/adapters", nil, &resp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("adapters request failed: %v", err)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Fallback: %s\n", resp.Fallback)
	fmt.Fprintf(&sb, "Checked first: %s\n\n", strings.Join(resp.Priority, ", "))
	for _, a := range resp.Adapters {
		fmt.Fprintf(&sb, "%s → %s\n", a.Hostname, a.Adapter)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func captureResult(resp models.CaptureResponse) *mcp.CallToolResult {
	if !resp.Success {
		errMsg := "capture failed"
		if resp.Error != nil {
			errMsg = fmt.Sprintf("[%s] %s", resp.Error.Code, resp.Error.Message)
		}
		return mcp.NewToolResultError(errMsg)
	}

	var sb strings.Builder
	if rec := resp.Record; rec != nil {
		fmt.Fprintf(&sb, "Title: %s\n", rec.Title)
		fmt.Fprintf(&sb, "Source: %s\n", rec.URL)
		fmt.Fprintf(&sb, "Adapter: %s\n", resp.Adapter)
		fmt.Fprintf(&sb, "Capture: %s\n\n", resp.CaptureID)
		sb.WriteString(rec.Content)
	}
	return mcp.NewToolResultText(sb.String())
}
