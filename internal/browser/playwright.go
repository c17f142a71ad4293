package browser

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightPage drives a real browser tab through Playwright.
type PlaywrightPage struct {
	page playwright.Page
}

// NewPlaywrightPage wraps an existing Playwright page.
func NewPlaywrightPage(page playwright.Page) *PlaywrightPage {
	return &PlaywrightPage{page: page}
}

// locator translates s into a Playwright locator chain. Playwright only
// understands -1 among negative indexes, so other negative picks count the
// matches first and resolve to a forward index.
func (p *PlaywrightPage) locator(s Selector) (playwright.Locator, error) {
	var loc playwright.Locator
	for i, st := range s.steps {
		switch st.kind {
		case stepFind:
			if i == 0 {
				loc = p.page.Locator(st.css)
			} else {
				loc = loc.Locator(st.css)
			}
		case stepNth:
			switch {
			case st.index >= 0:
				loc = loc.Nth(st.index)
			case st.index == -1:
				loc = loc.Last()
			default:
				n, err := loc.Count()
				if err != nil {
					return nil, fmt.Errorf("count %s: %w", s, err)
				}
				if n+st.index < 0 {
					return nil, fmt.Errorf("%w: %s", ErrNoElement, s)
				}
				loc = loc.Nth(n + st.index)
			}
		case stepChildText:
			exact := regexp.MustCompile(`^\s*` + regexp.QuoteMeta(st.text) + `\s*$`)
			loc = loc.Filter(playwright.LocatorFilterOptions{
				Has: p.page.Locator(st.css, playwright.PageLocatorOptions{HasText: exact}),
			})
		}
	}
	return loc, nil
}

func (p *PlaywrightPage) Goto(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.page.Goto(url, playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateNetworkidle}); err != nil {
		return fmt.Errorf("goto %s: %w", url, err)
	}
	return nil
}

// CurrentURL evaluates window.location.href in the page.
func (p *PlaywrightPage) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	v, err := p.page.Evaluate(`() => window.location.href`)
	if err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	href, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("read location: unexpected %T", v)
	}
	return href, nil
}

func (p *PlaywrightPage) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := p.page.Reload(playwright.PageReloadOptions{WaitUntil: playwright.WaitUntilStateNetworkidle}); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return nil
}

func (p *PlaywrightPage) Click(ctx context.Context, s Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc, err := p.locator(s)
	if err != nil {
		return err
	}
	if err := loc.Click(); err != nil {
		return fmt.Errorf("click %s: %w", s, err)
	}
	return nil
}

func (p *PlaywrightPage) Fill(ctx context.Context, s Selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc, err := p.locator(s)
	if err != nil {
		return err
	}
	if err := loc.Fill(value); err != nil {
		return fmt.Errorf("fill %s: %w", s, err)
	}
	return nil
}

func (p *PlaywrightPage) SelectOption(ctx context.Context, s Selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	loc, err := p.locator(s)
	if err != nil {
		return err
	}
	if _, err := loc.SelectOption(playwright.SelectOptionValues{Values: &[]string{value}}); err != nil {
		return fmt.Errorf("select %s %q: %w", s, value, err)
	}
	return nil
}

func (p *PlaywrightPage) InputValue(ctx context.Context, s Selector) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	loc, err := p.locator(s)
	if err != nil {
		return "", err
	}
	v, err := loc.InputValue()
	if err != nil {
		return "", fmt.Errorf("input value %s: %w", s, err)
	}
	return v, nil
}

func (p *PlaywrightPage) Count(ctx context.Context, s Selector) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	loc, err := p.locator(s)
	if errors.Is(err, ErrNoElement) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := loc.Count()
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s, err)
	}
	return n, nil
}

func (p *PlaywrightPage) InnerText(ctx context.Context, s Selector) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	loc, err := p.locator(s)
	if err != nil {
		return "", err
	}
	text, err := loc.InnerText()
	if err != nil {
		return "", fmt.Errorf("inner text %s: %w", s, err)
	}
	return text, nil
}

func (p *PlaywrightPage) Visible(ctx context.Context, s Selector) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	loc, err := p.locator(s)
	if errors.Is(err, ErrNoElement) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	ok, err := loc.IsVisible()
	if err != nil {
		return false, fmt.Errorf("visible %s: %w", s, err)
	}
	return ok, nil
}

func (p *PlaywrightPage) Close() error {
	return p.page.Close()
}
