package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/pageclip/config"
	"github.com/use-agent/pageclip/dom"
	"github.com/use-agent/pageclip/models"
	"github.com/ysmood/gson"
)

const (
	viewportWidth = 1280
	maxPages      = 4
)

// Browser renders URLs in a shared headless browser and returns live
// snapshots. It is safe for concurrent use.
type Browser struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	navTimeout  time.Duration
	activePages atomic.Int32
}

// NewBrowser launches a headless browser with the stealth launch flags.
func NewBrowser(browserCfg config.BrowserConfig, snapCfg config.SnapshotConfig) (*Browser, error) {
	l := launcher.New().
		Headless(browserCfg.Headless).
		NoSandbox(browserCfg.NoSandbox)

	if browserCfg.BrowserBin != "" {
		l = l.Bin(browserCfg.BrowserBin)
	}
	if browserCfg.Proxy != "" {
		l = l.Proxy(browserCfg.Proxy)
	}

	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewCaptureError(models.ErrCodeSnapshotFailed, "failed to launch browser", err)
	}
	slog.Info("browser launched", "control_url", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewCaptureError(models.ErrCodeSnapshotFailed, "failed to connect to browser", err)
	}

	return &Browser{
		browser:    browser,
		pagePool:   rod.NewPagePool(maxPages),
		navTimeout: snapCfg.NavigationTimeout,
	}, nil
}

// ActivePages returns the number of tabs currently lent out.
func (b *Browser) ActivePages() int { return int(b.activePages.Load()) }

// Open navigates to rawURL and returns a stamped, live snapshot. The caller
// must call release once extraction is done; it returns the tab to the
// pool.
func (b *Browser) Open(ctx context.Context, rawURL string, viewportHeight int) (page *dom.Page, release func(), err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, models.NewCaptureError(models.ErrCodeInvalidInput, "invalid url", err)
	}

	tab, err := b.pagePool.Get(func() (*rod.Page, error) {
		return b.browser.Page(proto.TargetCreateTarget{})
	})
	if err != nil {
		return nil, nil, models.NewCaptureError(models.ErrCodeSnapshotFailed, "failed to acquire browser tab", err)
	}
	b.activePages.Add(1)
	router := setupHijack(tab)
	release = func() {
		_ = router.Stop()
		if navErr := tab.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		b.pagePool.Put(tab)
		b.activePages.Add(-1)
	}
	defer func() {
		if err != nil {
			release()
			release = nil
		}
	}()

	if _, evalErr := tab.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}
	_ = proto.NetworkSetExtraHTTPHeaders{
		Headers: toHeadersMap(map[string]string{
			"Referer":         "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
		}),
	}.Call(tab)
	if viewportHeight > 0 {
		_ = tab.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             viewportWidth,
			Height:            viewportHeight,
			DeviceScaleFactor: 1,
		})
	}

	navCtx, cancel := context.WithTimeout(ctx, b.navTimeout)
	defer cancel()
	p := tab.Context(navCtx)
	if navErr := p.Navigate(rawURL); navErr != nil {
		return nil, nil, categorizeError(navErr, "navigation to target URL failed")
	}
	if stableErr := p.WaitDOMStable(300*time.Millisecond, 0.1); stableErr != nil {
		slog.Debug("WaitDOMStable did not converge, proceeding with current DOM", "error", stableErr)
	}
	removeOverlays(p)

	live := &livePage{tab: tab}
	doc, err := live.Refresh(navCtx)
	if err != nil {
		return nil, nil, categorizeError(err, "failed to read rendered page")
	}
	if final := evalStringOrEmpty(p, `() => window.location.href`); final != "" {
		if fu, parseErr := url.Parse(final); parseErr == nil {
			u = fu
		}
	}

	page = dom.NewPage(u, doc, float64(viewportHeight)).WithLive(live)
	if page.Title == "" {
		page.Title = evalStringOrEmpty(p, `() => document.title`)
	}
	return page, release, nil
}

// Close drains the tab pool and kills the browser process.
func (b *Browser) Close() {
	slog.Info("browser shutting down: draining page pool")
	b.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	if err := b.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
}

// livePage re-stamps and re-reads a rendered tab.
type livePage struct {
	tab *rod.Page
}

func (l *livePage) Refresh(ctx context.Context) (*goquery.Document, error) {
	p := l.tab.Context(ctx)
	if _, err := p.Eval(StampJS); err != nil {
		return nil, fmt.Errorf("stamp layout: %w", err)
	}
	raw, err := p.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html: %w", err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(raw))
}

func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}

// removeOverlays drops fixed or sticky layers with a high z-index, which are
// typically login walls and cookie banners covering the content.
func removeOverlays(p *rod.Page) {
	const js = `() => {
		for (const el of document.querySelectorAll('*')) {
			const style = window.getComputedStyle(el);
			if (style.position !== 'fixed' && style.position !== 'sticky') continue;
			const z = parseInt(style.zIndex, 10);
			if (z >= 900) el.remove();
		}
		const selectors = [
			'[class*="cookie"]', '[class*="consent"]', '[class*="overlay"]',
			'[class*="popup"]', '[class*="login-guide"]', '[class*="mask"]',
		];
		for (const sel of selectors) {
			document.querySelectorAll(sel).forEach(el => {
				const pos = window.getComputedStyle(el).position;
				if (pos === 'fixed' || pos === 'sticky' || pos === 'absolute') el.remove();
			});
		}
		document.documentElement.style.overflow = '';
		if (document.body) document.body.style.overflow = '';
	}`
	_, _ = p.Eval(js)
}

func categorizeError(err error, msg string) *models.CaptureError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewCaptureError(models.ErrCodeSnapshotFailed, msg+": timed out", err)
	case errors.Is(err, context.Canceled):
		return models.NewCaptureError(models.ErrCodeSnapshotFailed, "request canceled", err)
	default:
		return models.NewCaptureError(models.ErrCodeSnapshotFailed, msg, err)
	}
}
