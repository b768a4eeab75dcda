package main

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"pagebrain/internal/config"
	"pagebrain/internal/llm"
	"pagebrain/internal/logging"
	"pagebrain/internal/overview"
	"pagebrain/internal/page"
	"pagebrain/internal/research"
	"pagebrain/internal/session"
	"pagebrain/internal/settings"
	"pagebrain/internal/store"
)

// app is everything a command needs besides its surface.
type app struct {
	cfg      *config.Config
	kv       store.KV
	closeKV  func() error
	settings *settings.Store
	notes    *research.Notes
	client   *llm.Client
	source   page.Source
	browser  *page.BrowserSource
}

// openStore opens the configured key-value store and loads the persisted
// settings and research notes concurrently.
func openStore(ctx context.Context, cfg *config.Config) (*app, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "open store")
	defer timer.Stop()

	kv, closeKV, err := store.Open(cfg.Storage.Driver, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	a := &app{cfg: cfg, kv: kv, closeKV: closeKV, client: llm.NewClient(cfg.GetHTTPTimeout())}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		st, err := settings.Load(gctx, kv, defaultSettings(cfg))
		if err != nil {
			return err
		}
		a.settings = st
		return nil
	})
	g.Go(func() error {
		notes, err := research.LoadNotes(gctx, kv)
		if err != nil {
			return err
		}
		a.notes = notes
		return nil
	})
	if err := g.Wait(); err != nil {
		_ = closeKV()
		return nil, err
	}
	return a, nil
}

// bootstrap opens the store and, in parallel with loading the persisted
// state, fetches the first page so the session opens it without waiting.
func bootstrap(ctx context.Context, cfg *config.Config, firstURL string) (*app, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "bootstrap")
	defer timer.Stop()

	live := buildSource(cfg)

	var (
		a        *app
		first    page.Page
		firstErr error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		a, err = openStore(gctx, cfg)
		return err
	})
	if firstURL != "" {
		g.Go(func() error {
			// A failed prefetch is not fatal; the session reports it.
			first, firstErr = live.Load(gctx, firstURL)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if b, ok := live.(*browserRouter); ok {
			_ = b.browser.Close()
		}
		return nil, err
	}

	a.source = live
	if b, ok := live.(*browserRouter); ok {
		a.browser = b.browser
	}
	if firstURL != "" && firstErr == nil {
		a.source = &prefetched{Source: live, url: firstURL, page: first}
	}
	return a, nil
}

// browserRouter is a page.Router whose web pages come from Chrome.
type browserRouter struct {
	page.Router
	browser *page.BrowserSource
}

func buildSource(cfg *config.Config) page.Source {
	files := &page.FileSource{MaxBytes: cfg.HTTP.MaxPageBytes}
	if !cfg.Browser.Enabled {
		return page.Router{
			Web:   page.NewHTTPSource(cfg.GetHTTPTimeout(), cfg.HTTP.MaxPageBytes),
			Files: files,
		}
	}
	b := page.NewBrowserSource(page.BrowserOptions{
		DebuggerURL:       cfg.Browser.DebuggerURL,
		Bin:               cfg.Browser.Bin,
		Headless:          cfg.Browser.Headless,
		NavigationTimeout: cfg.GetNavigationTimeout(),
	})
	return &browserRouter{Router: page.Router{Web: b, Files: files}, browser: b}
}

// prefetched serves one already loaded page once, then defers to Source.
type prefetched struct {
	page.Source
	url  string
	page page.Page

	once sync.Once
}

func (p *prefetched) Load(ctx context.Context, rawURL string) (page.Page, error) {
	served := false
	if rawURL == p.url {
		p.once.Do(func() { served = true })
	}
	if served {
		logging.BrowserDebug("Serving prefetched %s", rawURL)
		return p.page, nil
	}
	return p.Source.Load(ctx, rawURL)
}

func defaultSettings(cfg *config.Config) settings.Config {
	return settings.Config{
		LLM:       cfg.Assistant.Model,
		Prompt:    cfg.Assistant.Prompt,
		ChatURL:   cfg.Assistant.ChatURL,
		ModelsURL: cfg.Assistant.ModelsURL,
		APIToken:  cfg.Assistant.APIToken,
	}
}

// newSession builds a session over the app. One-shot commands pass
// autoAnalyze false and run the research pass explicitly.
func (a *app) newSession(surface session.Surface, autoAnalyze bool) (*session.Session, error) {
	return session.New(session.Deps{
		Settings:    a.settings,
		Notes:       a.notes,
		Client:      a.client,
		Source:      a.source,
		Surface:     surface,
		Overview:    overview.NewAgent(a.client, a.cfg.Overview.ChunkSize, a.cfg.Overview.Overlap),
		AutoAnalyze: autoAnalyze,
	})
}

// watch starts a watcher when rawURL is a local document. It returns nil for
// web pages.
func (a *app) watch(ctx context.Context, rawURL string, onChange func()) (*page.Watcher, error) {
	normalized, local := page.Normalize(rawURL)
	if !local {
		return nil, nil
	}
	path, err := page.LocalPath(normalized)
	if err != nil {
		return nil, err
	}
	w, err := page.NewWatcher(path, onChange)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		return nil, err
	}
	logging.Boot("Watching %s for changes", path)
	return w, nil
}

// Close releases the browser and the store.
func (a *app) Close() {
	if a.browser != nil {
		if err := a.browser.Close(); err != nil {
			logging.BootWarn("Closing browser: %v", err)
		}
	}
	if a.closeKV != nil {
		if err := a.closeKV(); err != nil {
			logging.BootWarn("Closing store: %v", err)
		}
	}
}
