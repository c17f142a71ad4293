package browser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// HTMLPage drives a server-rendered UI without a JavaScript engine: it loads
// pages over HTTP, follows links and submits forms the way a browser would.
// It is not safe for concurrent use.
type HTMLPage struct {
	client *http.Client
	url    *url.URL
	doc    *goquery.Document
}

// NewHTMLPage returns a page using client, or a client with a cookie jar when
// client is nil.
func NewHTMLPage(client *http.Client) *HTMLPage {
	if client == nil {
		jar, _ := cookiejar.New(nil)
		client = &http.Client{Jar: jar}
	}
	return &HTMLPage{client: client}
}

func (p *HTMLPage) resolve(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", ref, err)
	}
	if p.url != nil {
		u = p.url.ResolveReference(u)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("url %q is not absolute", ref)
	}
	return u, nil
}

// load performs req and replaces the current document with the response.
// Error statuses still render, as in a browser.
func (p *HTMLPage) load(req *http.Request) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("parse %s: %w", resp.Request.URL, err)
	}
	p.doc = doc
	p.url = resp.Request.URL
	return nil
}

func (p *HTMLPage) get(ctx context.Context, u *url.URL) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	return p.load(req)
}

func (p *HTMLPage) Goto(ctx context.Context, rawURL string) error {
	u, err := p.resolve(rawURL)
	if err != nil {
		return err
	}
	return p.get(ctx, u)
}

func (p *HTMLPage) CurrentURL(context.Context) (string, error) {
	if p.url == nil {
		return "about:blank", nil
	}
	return p.url.String(), nil
}

func (p *HTMLPage) Reload(ctx context.Context) error {
	if p.url == nil {
		return fmt.Errorf("reload: no page loaded")
	}
	return p.get(ctx, p.url)
}

func (p *HTMLPage) Close() error {
	p.client.CloseIdleConnections()
	p.doc, p.url = nil, nil
	return nil
}

func (p *HTMLPage) query(s Selector) *goquery.Selection {
	if p.doc == nil {
		return &goquery.Selection{}
	}
	sel := p.doc.Selection
	for _, st := range s.steps {
		switch st.kind {
		case stepFind:
			sel = sel.Find(st.css)
		case stepNth:
			sel = sel.Eq(st.index)
		case stepChildText:
			css, text := st.css, st.text
			sel = sel.FilterFunction(func(_ int, el *goquery.Selection) bool {
				return el.Find(css).FilterFunction(func(_ int, c *goquery.Selection) bool {
					return innerText(c) == text
				}).Length() > 0
			})
		}
	}
	return sel
}

func (p *HTMLPage) first(s Selector) (*goquery.Selection, error) {
	sel := p.query(s)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoElement, s)
	}
	return sel.First(), nil
}

func (p *HTMLPage) Click(ctx context.Context, s Selector) error {
	el, err := p.first(s)
	if err != nil {
		return err
	}
	switch goquery.NodeName(el) {
	case "a":
		href, ok := el.Attr("href")
		if !ok {
			return nil
		}
		return p.Goto(ctx, href)
	case "option":
		selectOption(el.ParentsFiltered("select").First(), el)
		return nil
	case "button":
		if t := strings.ToLower(el.AttrOr("type", "submit")); t != "submit" {
			return nil
		}
		return p.submit(ctx, el.Closest("form"))
	case "input":
		if t := strings.ToLower(el.AttrOr("type", "text")); t != "submit" && t != "image" {
			return nil
		}
		return p.submit(ctx, el.Closest("form"))
	}
	return nil
}

func (p *HTMLPage) Fill(_ context.Context, s Selector, value string) error {
	el, err := p.first(s)
	if err != nil {
		return err
	}
	switch goquery.NodeName(el) {
	case "input":
		el.SetAttr("value", value)
	case "textarea":
		el.SetText(value)
	default:
		return fmt.Errorf("fill %s: element is a <%s>, not an input", s, goquery.NodeName(el))
	}
	return nil
}

func (p *HTMLPage) SelectOption(_ context.Context, s Selector, value string) error {
	el, err := p.first(s)
	if err != nil {
		return err
	}
	if goquery.NodeName(el) != "select" {
		return fmt.Errorf("select %s: element is a <%s>, not a select", s, goquery.NodeName(el))
	}
	opt := el.Find("option").FilterFunction(func(_ int, o *goquery.Selection) bool {
		return optionValue(o) == value
	}).First()
	if opt.Length() == 0 {
		return fmt.Errorf("%w: %s option %q", ErrNoElement, s, value)
	}
	selectOption(el, opt)
	return nil
}

func (p *HTMLPage) InputValue(_ context.Context, s Selector) (string, error) {
	el, err := p.first(s)
	if err != nil {
		return "", err
	}
	switch goquery.NodeName(el) {
	case "input":
		return el.AttrOr("value", ""), nil
	case "textarea":
		return el.Text(), nil
	case "select":
		return selectedValue(el), nil
	}
	return "", fmt.Errorf("input value %s: element is a <%s>", s, goquery.NodeName(el))
}

func (p *HTMLPage) Count(_ context.Context, s Selector) (int, error) {
	return p.query(s).Length(), nil
}

func (p *HTMLPage) InnerText(_ context.Context, s Selector) (string, error) {
	el, err := p.first(s)
	if err != nil {
		return "", err
	}
	return innerText(el), nil
}

// Visible reports whether s matches an element that neither it nor any
// ancestor hides.
func (p *HTMLPage) Visible(_ context.Context, s Selector) (bool, error) {
	sel := p.query(s)
	if sel.Length() == 0 {
		return false, nil
	}
	el := sel.First()
	if goquery.NodeName(el) == "input" && strings.EqualFold(el.AttrOr("type", ""), "hidden") {
		return false, nil
	}
	visible := true
	el.AddSelection(el.Parents()).EachWithBreak(func(_ int, n *goquery.Selection) bool {
		if hidden(n) {
			visible = false
		}
		return visible
	})
	return visible, nil
}

func (p *HTMLPage) submit(ctx context.Context, form *goquery.Selection) error {
	if form.Length() == 0 {
		return nil
	}
	action, err := p.resolve(form.AttrOr("action", ""))
	if err != nil {
		return err
	}
	values := formValues(form)

	var req *http.Request
	if strings.EqualFold(form.AttrOr("method", "get"), http.MethodPost) {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(values.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		u := *action
		u.RawQuery = values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return err
		}
	}
	return p.load(req)
}

func formValues(form *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input[name], select[name], textarea[name]").Each(func(_ int, el *goquery.Selection) {
		if _, disabled := el.Attr("disabled"); disabled {
			return
		}
		name := el.AttrOr("name", "")
		switch goquery.NodeName(el) {
		case "input":
			switch strings.ToLower(el.AttrOr("type", "text")) {
			case "submit", "button", "image", "reset", "file":
				return
			case "checkbox", "radio":
				if _, checked := el.Attr("checked"); !checked {
					return
				}
				values.Add(name, el.AttrOr("value", "on"))
				return
			}
			values.Add(name, el.AttrOr("value", ""))
		case "select":
			values.Add(name, selectedValue(el))
		case "textarea":
			values.Add(name, el.Text())
		}
	})
	return values
}

func selectOption(sel, opt *goquery.Selection) {
	sel.Find("option").RemoveAttr("selected")
	opt.SetAttr("selected", "")
}

func selectedValue(sel *goquery.Selection) string {
	opt := sel.Find("option[selected]").First()
	if opt.Length() == 0 {
		opt = sel.Find("option").First()
	}
	if opt.Length() == 0 {
		return ""
	}
	return optionValue(opt)
}

func optionValue(opt *goquery.Selection) string {
	if v, ok := opt.Attr("value"); ok {
		return v
	}
	return innerText(opt)
}

func hidden(n *goquery.Selection) bool {
	if _, ok := n.Attr("hidden"); ok {
		return true
	}
	style := strings.ReplaceAll(strings.ToLower(n.AttrOr("style", "")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

// innerText approximates the rendered text of el: trimmed, with runs of
// whitespace collapsed.
func innerText(el *goquery.Selection) string {
	return strings.Join(strings.Fields(el.Text()), " ")
}
