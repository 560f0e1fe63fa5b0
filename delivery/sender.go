package delivery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SignatureHeader carries the HMAC-SHA256 of the request body when a
// signing secret is configured: "sha256=<hex>".
const SignatureHeader = "X-Pageclip-Signature"

const userAgent = "Pageclip-Delivery/1.0"

// StatusError is a non-2xx sink response.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("delivery: sink returned status %d", e.StatusCode)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusRequestTimeout ||
		e.StatusCode == http.StatusTooManyRequests ||
		e.StatusCode >= 500
}

// Sender POSTs one encoded message to the sink.
type Sender struct {
	client *http.Client
	secret string
}

// NewSender returns a sender whose requests time out after timeout. An
// empty secret disables signing.
func NewSender(timeout time.Duration, secret string) *Sender {
	return &Sender{
		client: &http.Client{Timeout: timeout},
		secret: secret,
	}
}

// Post sends body to sinkURL. Transport failures and retryable statuses are
// returned as is; other failures are wrapped with Permanent.
func (s *Sender) Post(ctx context.Context, sinkURL string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sinkURL, bytes.NewReader(body))
	if err != nil {
		return Permanent(fmt.Errorf("delivery: create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if s.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(s.secret, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("delivery: post: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	serr := &StatusError{StatusCode: resp.StatusCode}
	if serr.Retryable() {
		return serr
	}
	return Permanent(serr)
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
