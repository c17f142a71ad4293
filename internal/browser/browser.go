// Package browser is the boundary between scenario logic and the automation
// backend driving the device UI.
package browser

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Context is the part of a browser that scenarios query or steer directly.
// Both calls execute inside the browser, not in the test process.
type Context interface {
	// CurrentURL returns the page's current navigation URL.
	CurrentURL(ctx context.Context) (string, error)
	// Reload forces a full reload of the current page, discarding UI state.
	Reload(ctx context.Context) error
}

// Page is one automated browser tab.
type Page interface {
	Context

	Goto(ctx context.Context, url string) error
	Click(ctx context.Context, s Selector) error
	// Fill replaces the value of a text input.
	Fill(ctx context.Context, s Selector, value string) error
	// SelectOption picks the option whose value attribute equals value.
	SelectOption(ctx context.Context, s Selector, value string) error
	InputValue(ctx context.Context, s Selector) (string, error)

	// Count returns how many elements match s. It never waits.
	Count(ctx context.Context, s Selector) (int, error)
	InnerText(ctx context.Context, s Selector) (string, error)
	Visible(ctx context.Context, s Selector) (bool, error)

	Close() error
}

var (
	// ErrNoElement is returned when an action targets a selector with no
	// match.
	ErrNoElement = errors.New("no element matches selector")
	// ErrURLTimeout is returned by WaitForURL.
	ErrURLTimeout = errors.New("timed out waiting for URL")
	// ErrCountTimeout is returned by WaitForCount.
	ErrCountTimeout = errors.New("timed out waiting for element count")
)

const pollInterval = 50 * time.Millisecond

// WaitForURL polls c until its URL equals want or timeout elapses.
func WaitForURL(ctx context.Context, c Context, want string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var last string
	for {
		got, err := c.CurrentURL(ctx)
		if err == nil {
			if got == want {
				return nil
			}
			last = got
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w %q after %s (last %q)", ErrURLTimeout, want, timeout, last)
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// WaitForCount polls p until s matches exactly want elements or timeout
// elapses. It returns the last count seen; on timeout the error wraps
// ErrCountTimeout. Client-rendered pages fill in after navigation, so a
// single Count right after Goto or Reload can see a stale or empty DOM.
func WaitForCount(ctx context.Context, p Page, s Selector, want int, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	last := -1
	for {
		n, err := p.Count(ctx, s)
		if err == nil {
			if n == want {
				return n, nil
			}
			last = n
		}
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return last, fmt.Errorf("%w: %s: want %d, last %d after %s", ErrCountTimeout, s, want, last, timeout)
			}
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
