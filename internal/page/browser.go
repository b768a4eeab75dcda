package page

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"pagebrain/internal/logging"
)

// BrowserOptions configures the Chrome instance behind BrowserSource.
type BrowserOptions struct {
	DebuggerURL       string // existing DevTools endpoint; empty launches Chrome
	Bin               string // Chrome binary; empty lets the launcher find one
	Headless          bool
	NavigationTimeout time.Duration
}

// BrowserSource reads the rendered DOM of a page through Chrome DevTools, so
// script-built content is seen the way a user sees it.
type BrowserSource struct {
	opts BrowserOptions

	mu         sync.Mutex
	browser    *rod.Browser
	controlURL string
}

// NewBrowserSource creates a source; Chrome is started on first Load.
func NewBrowserSource(opts BrowserOptions) *BrowserSource {
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	return &BrowserSource{opts: opts}
}

// connect attaches to the configured debugger or launches a browser, reusing
// a healthy existing connection.
func (b *BrowserSource) connect() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browser != nil {
		if _, err := b.browser.Version(); err == nil {
			return b.browser, nil
		}
		logging.BrowserWarn("Stale browser connection detected, reconnecting")
		_ = b.browser.Close()
		b.browser = nil
		b.controlURL = ""
	}

	controlURL := b.opts.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(b.opts.Headless)
		if b.opts.Bin != "" {
			l = l.Bin(b.opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	b.browser = browser
	b.controlURL = controlURL
	logging.Browser("Connected to chrome at %s", controlURL)
	return browser, nil
}

// Load opens rawURL in a fresh tab, waits for the load event and extracts the
// rendered document. The tab is closed afterwards.
func (b *BrowserSource) Load(ctx context.Context, rawURL string) (Page, error) {
	browser, err := b.connect()
	if err != nil {
		return Page{}, err
	}

	timer := logging.StartTimer(logging.CategoryBrowser, "render "+rawURL)
	defer timer.StopWithThreshold(b.opts.NavigationTimeout / 2)

	tab, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return Page{}, fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = tab.Close() }()

	p := tab.Context(ctx).Timeout(b.opts.NavigationTimeout)
	defer p.CancelTimeout()

	if err := p.Navigate(rawURL); err != nil {
		return Page{}, fmt.Errorf("navigate %s: %w", rawURL, err)
	}
	if err := p.WaitLoad(); err != nil {
		return Page{}, fmt.Errorf("wait for %s: %w", rawURL, err)
	}

	doc, err := p.HTML()
	if err != nil {
		return Page{}, fmt.Errorf("read DOM of %s: %w", rawURL, err)
	}

	finalURL := rawURL
	if info, err := p.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	result, err := Parse(strings.NewReader(doc), finalURL)
	if err != nil {
		return Page{}, err
	}
	logging.Browser("Rendered %s (%d chars)", finalURL, len(result.Content))
	return result, nil
}

// ControlURL returns the DevTools endpoint in use, empty before first Load.
func (b *BrowserSource) ControlURL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.controlURL
}

// Close disconnects from Chrome.
func (b *BrowserSource) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.browser == nil {
		return nil
	}
	err := b.browser.Close()
	b.browser = nil
	b.controlURL = ""
	return err
}
