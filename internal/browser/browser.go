package browser

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Browser owns one playwright driver and one launched Chromium instance.
// It is shared by all concurrent visits; per-visit state lives in Session.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	Locale         string
	ExtraHeaders   map[string]string
	// BlockedResourceTypes are aborted by the session route handler.
	BlockedResourceTypes []string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:             true,
		UserAgent:            "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/115.0.0.0 Safari/537.36",
		ViewportWidth:        1280,
		ViewportHeight:       800,
		Locale:               "en-US",
		BlockedResourceTypes: []string{"image", "stylesheet", "font"},
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &opts.Headless,
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
			"--disable-setuid-sandbox",
		},
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

// NewSession opens an isolated browser context with its own cookies and
// identity, installs the resource-blocking route and opens one page in it.
func (b *Browser) NewSession() (*Session, error) {
	contextOpts := playwright.BrowserNewContextOptions{
		UserAgent:         &b.opts.UserAgent,
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Viewport: &playwright.Size{
			Width:  b.opts.ViewportWidth,
			Height: b.opts.ViewportHeight,
		},
	}
	if b.opts.Locale != "" {
		contextOpts.Locale = &b.opts.Locale
	}
	if len(b.opts.ExtraHeaders) > 0 {
		contextOpts.ExtraHttpHeaders = b.opts.ExtraHeaders
	}

	bctx, err := b.browser.NewContext(contextOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	blocked := newResourceFilter(b.opts.BlockedResourceTypes)
	if err := bctx.Route("**/*", func(route playwright.Route) {
		if blocked.blocks(route.Request().ResourceType()) {
			if err := route.Abort(); err != nil {
				b.logger.Debug("failed to abort request", "url", route.Request().URL(), "error", err)
			}
			return
		}
		if err := route.Continue(); err != nil {
			b.logger.Debug("failed to continue request", "url", route.Request().URL(), "error", err)
		}
	}); err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to install request route: %w", err)
	}

	page, err := bctx.NewPage()
	if err != nil {
		bctx.Close()
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	return &Session{context: bctx, page: page}, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Session is one isolated browser context holding a single page.
type Session struct {
	context playwright.BrowserContext
	page    playwright.Page
}

// Navigate loads url and waits for the load event, bounded by timeout.
func (s *Session) Navigate(url string, timeout time.Duration) error {
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

// WaitReady blocks until selector is visible, bounded by timeout.
func (s *Session) WaitReady(selector string, timeout time.Duration) error {
	err := s.page.Locator(selector).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("failed waiting for %q: %w", selector, err)
	}
	return nil
}

// Content returns the rendered DOM serialized as HTML.
func (s *Session) Content() (string, error) {
	html, err := s.page.Content()
	if err != nil {
		return "", fmt.Errorf("failed to get page content: %w", err)
	}
	return html, nil
}

// Close releases the page and its browser context. It is safe to call once
// per session on every exit path.
func (s *Session) Close() error {
	var errs []error
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close page: %w", err))
		}
	}
	if s.context != nil {
		if err := s.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}
	return errors.Join(errs...)
}

// IsTimeout reports whether err came from a playwright timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, playwright.ErrTimeout)
}

type resourceFilter map[string]struct{}

func newResourceFilter(types []string) resourceFilter {
	f := make(resourceFilter, len(types))
	for _, t := range types {
		f[t] = struct{}{}
	}
	return f
}

func (f resourceFilter) blocks(resourceType string) bool {
	_, ok := f[resourceType]
	return ok
}
