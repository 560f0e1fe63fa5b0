package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	tls2 "github.com/refraction-networking/utls"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
)

const (
	chromeUA     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	maxBodyBytes = 10 << 20
)

// Fetcher retrieves static snapshots over HTTP/1.1 with a Chrome TLS
// fingerprint. Static snapshots carry no layout stamps.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher. proxy may be an http(s) proxy URL or empty.
func NewFetcher(timeout time.Duration, proxy string) *Fetcher {
	transport := &http.Transport{
		DialTLSContext:      dialTLSChrome,
		TLSHandshakeTimeout: timeout,
		MaxIdleConns:        16,
		IdleConnTimeout:     90 * time.Second,
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil && (proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &Fetcher{client: &http.Client{Transport: transport, Timeout: timeout}}
}

// Fetch downloads rawURL and parses it into a static page.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, viewportHeight int) (*dom.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeInvalidInput, "invalid url", err)
	}
	req.Header.Set("User-Agent", chromeUA)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9,en;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeSnapshotFailed, "fetch failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, models.NewCaptureError(models.ErrCodeSnapshotFailed,
			fmt.Sprintf("fetch returned HTTP %d", resp.StatusCode), nil)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeSnapshotFailed, "read body", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeSnapshotFailed, "parse html", err)
	}
	return dom.NewPage(resp.Request.URL, doc, float64(viewportHeight)), nil
}

// dialTLSChrome establishes a TLS connection with a Chrome fingerprint. ALPN
// offers only http/1.1 because net/http cannot speak h2 over a custom
// dialed conn.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	rawConn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	spec, err := tls2.UTLSIdToSpec(tls2.HelloChrome_Auto)
	if err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("chrome hello spec: %w", err)
	}
	for _, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls2.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
		}
	}

	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls2.UClient(rawConn, &tls2.Config{ServerName: host}, tls2.HelloCustom)
	if err := tlsConn.ApplyPreset(&spec); err != nil {
		rawConn.Close()
		return nil, fmt.Errorf("apply chrome hello: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		rawConn.Close()
		return nil, err
	}
	return tlsConn, nil
}
