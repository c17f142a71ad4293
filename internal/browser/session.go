package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/playwright-community/playwright-go"
)

// Backend names accepted by Launch.
const (
	Chromium = "chromium"
	Firefox  = "firefox"
	WebKit   = "webkit"
	HTML     = "html"
)

// Backends lists every backend name Launch understands.
var Backends = []string{Chromium, Firefox, WebKit, HTML}

// Options configures Launch.
type Options struct {
	// Backend is one of Backends.
	Backend string
	// Headless only applies to Playwright backends.
	Headless bool
	// ActionTimeout overrides Playwright's default per-action timeout when
	// positive.
	ActionTimeout time.Duration
	// InstallDriver downloads the Playwright driver and browser first.
	InstallDriver bool
	// HTTPClient is used by the html backend.
	HTTPClient *http.Client
}

// Session owns a page and whatever had to be started to get it.
type Session struct {
	page    Page
	closers []func() error
}

// Page returns the session's page.
func (s *Session) Page() Page {
	return s.page
}

// Close closes the page and shuts down the backend in reverse start order.
func (s *Session) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Launch starts the requested backend and opens one page.
func Launch(ctx context.Context, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.Backend == HTML {
		page := NewHTMLPage(opts.HTTPClient)
		return &Session{page: page, closers: []func() error{page.Close}}, nil
	}

	switch opts.Backend {
	case Chromium, Firefox, WebKit, "":
	default:
		return nil, fmt.Errorf("unknown browser backend %q", opts.Backend)
	}

	if opts.InstallDriver {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{backendOrDefault(opts.Backend)}}); err != nil {
			return nil, fmt.Errorf("install playwright: %w", err)
		}
	}
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}
	s := &Session{closers: []func() error{pw.Stop}}

	var bt playwright.BrowserType
	switch opts.Backend {
	case Chromium, "":
		bt = pw.Chromium
	case Firefox:
		bt = pw.Firefox
	case WebKit:
		bt = pw.WebKit
	}

	b, err := bt.Launch(playwright.BrowserTypeLaunchOptions{Headless: playwright.Bool(opts.Headless)})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("launch %s: %w", opts.Backend, err)
	}
	s.closers = append(s.closers, func() error { return b.Close() })

	page, err := b.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("new page: %w", err)
	}
	if opts.ActionTimeout > 0 {
		page.SetDefaultTimeout(float64(opts.ActionTimeout.Milliseconds()))
	}
	pp := NewPlaywrightPage(page)
	s.page = pp
	s.closers = append(s.closers, pp.Close)
	return s, nil
}

func backendOrDefault(name string) string {
	if name == "" {
		return Chromium
	}
	return name
}
