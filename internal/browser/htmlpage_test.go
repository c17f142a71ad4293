package browser_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/treyturner/ninjaone-e2e/internal/browser"
)

const listHTML = `<!DOCTYPE html>
<html><body>
<a class="submitButton" href="/add">ADD</a>
<div class="box"><span class="name">  ALPHA  </span><span class="kind">MAC</span></div>
<div class="box"><span class="name">BRAVO</span><span class="kind">WINDOWS
  SERVER</span></div>
<div class="box" hidden><span class="name">HIDDEN</span></div>
<div style="display: none"><span class="name">STYLED</span></div>
<input type="hidden" id="token" value="x">
</body></html>`

const formHTML = `<!DOCTYPE html>
<html><body>
<form method="post" action="/add">
  <input id="name" name="name" type="text">
  <select id="kind" name="kind">
    <option value="WINDOWS_WORKSTATION">WINDOWS WORKSTATION</option>
    <option value="MAC">MAC</option>
  </select>
  <input id="agree" name="agree" type="checkbox">
  <input name="disabled" value="nope" disabled>
  <textarea id="notes" name="notes"></textarea>
  <button id="cancel" type="button">CANCEL</button>
  <button class="submitButton" type="submit">SAVE</button>
</form>
</body></html>`

// testApp serves a list page and a form that records its last submission.
type testApp struct {
	mu   sync.Mutex
	last map[string][]string
}

func (a *testApp) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listHTML)
	})
	mux.HandleFunc("GET /add", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, formHTML)
	})
	mux.HandleFunc("POST /add", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		a.mu.Lock()
		a.last = r.PostForm
		a.mu.Unlock()
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
	return mux
}

func newTestPage(t *testing.T) (*browser.HTMLPage, *testApp, string) {
	t.Helper()
	app := &testApp{}
	srv := httptest.NewServer(app.handler())
	t.Cleanup(srv.Close)

	p := browser.NewHTMLPage(srv.Client())
	t.Cleanup(func() { p.Close() })
	if err := p.Goto(context.Background(), srv.URL+"/"); err != nil {
		t.Fatalf("Goto: %v", err)
	}
	return p, app, srv.URL
}

func TestHTMLPage_QueryAndText(t *testing.T) {
	p, _, _ := newTestPage(t)
	ctx := context.Background()
	boxes := browser.Query(".box")

	n, err := p.Count(ctx, boxes)
	if err != nil || n != 3 {
		t.Fatalf("Count: got %d, %v; want 3", n, err)
	}

	tests := []struct {
		sel  browser.Selector
		want string
	}{
		{boxes.Nth(0).Find(".name"), "ALPHA"},
		{boxes.Nth(1).Find(".kind"), "WINDOWS SERVER"},
		{boxes.Nth(-1).Find(".name"), "HIDDEN"},
		{boxes.WithChildText(".name", "BRAVO").Find(".kind"), "WINDOWS SERVER"},
	}
	for _, tt := range tests {
		got, err := p.InnerText(ctx, tt.sel)
		if err != nil {
			t.Errorf("InnerText(%s): %v", tt.sel, err)
			continue
		}
		if got != tt.want {
			t.Errorf("InnerText(%s): got %q, want %q", tt.sel, got, tt.want)
		}
	}
}

func TestHTMLPage_WithChildTextIsExact(t *testing.T) {
	p, _, _ := newTestPage(t)
	n, _ := p.Count(context.Background(), browser.Query(".box").WithChildText(".name", "ALPH"))
	if n != 0 {
		t.Errorf("partial text should not match, got %d", n)
	}
}

func TestHTMLPage_MissingElement(t *testing.T) {
	p, _, _ := newTestPage(t)
	_, err := p.InnerText(context.Background(), browser.Query(".box").Nth(7))
	if !errors.Is(err, browser.ErrNoElement) {
		t.Errorf("expected ErrNoElement, got %v", err)
	}
	if err := p.Click(context.Background(), browser.Query("#nope")); !errors.Is(err, browser.ErrNoElement) {
		t.Errorf("Click: expected ErrNoElement, got %v", err)
	}
}

func TestHTMLPage_Visible(t *testing.T) {
	p, _, _ := newTestPage(t)
	ctx := context.Background()

	tests := []struct {
		sel  browser.Selector
		want bool
	}{
		{browser.Query(".box").Nth(0).Find(".name"), true},
		{browser.Query(".box").Nth(2).Find(".name"), false},
		{browser.Query(".box").WithChildText(".name", "STYLED"), false},
		{browser.Query("div").WithChildText(".name", "STYLED").Find(".name"), false},
		{browser.Query("#token"), false},
		{browser.Query(".missing"), false},
	}
	for _, tt := range tests {
		got, err := p.Visible(ctx, tt.sel)
		if err != nil {
			t.Errorf("Visible(%s): %v", tt.sel, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Visible(%s): got %v, want %v", tt.sel, got, tt.want)
		}
	}
}

func TestHTMLPage_FormRoundTrip(t *testing.T) {
	p, app, base := newTestPage(t)
	ctx := context.Background()

	if err := p.Click(ctx, browser.Query(".submitButton")); err != nil {
		t.Fatalf("Click link: %v", err)
	}
	if u, _ := p.CurrentURL(ctx); u != base+"/add" {
		t.Fatalf("CurrentURL after link: got %q, want %q", u, base+"/add")
	}

	if err := p.Fill(ctx, browser.Query("#name"), "USER-1"); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if err := p.Fill(ctx, browser.Query("#notes"), "hello"); err != nil {
		t.Fatalf("Fill textarea: %v", err)
	}
	if err := p.SelectOption(ctx, browser.Query("#kind"), "MAC"); err != nil {
		t.Fatalf("SelectOption: %v", err)
	}
	for sel, want := range map[string]string{"#name": "USER-1", "#kind": "MAC", "#notes": "hello"} {
		got, err := p.InputValue(ctx, browser.Query(sel))
		if err != nil || got != want {
			t.Errorf("InputValue(%s): got %q, %v; want %q", sel, got, err, want)
		}
	}

	// A non-submit button must not send the form.
	if err := p.Click(ctx, browser.Query("#cancel")); err != nil {
		t.Fatalf("Click cancel: %v", err)
	}
	if u, _ := p.CurrentURL(ctx); u != base+"/add" {
		t.Fatalf("type=button navigated to %q", u)
	}

	if err := p.Click(ctx, browser.Query("button.submitButton")); err != nil {
		t.Fatalf("Click submit: %v", err)
	}
	if u, _ := p.CurrentURL(ctx); u != base+"/" {
		t.Errorf("CurrentURL after submit: got %q, want %q", u, base+"/")
	}

	app.mu.Lock()
	defer app.mu.Unlock()
	want := map[string]string{"name": "USER-1", "kind": "MAC", "notes": "hello"}
	for k, v := range want {
		if got := strings.Join(app.last[k], ","); got != v {
			t.Errorf("submitted %s: got %q, want %q", k, got, v)
		}
	}
	for _, k := range []string{"agree", "disabled"} {
		if _, ok := app.last[k]; ok {
			t.Errorf("field %q should not be submitted", k)
		}
	}
}

func TestHTMLPage_ClickOptionSelectsIt(t *testing.T) {
	p, _, base := newTestPage(t)
	ctx := context.Background()
	if err := p.Goto(ctx, base+"/add"); err != nil {
		t.Fatalf("Goto: %v", err)
	}
	if v, _ := p.InputValue(ctx, browser.Query("#kind")); v != "WINDOWS_WORKSTATION" {
		t.Errorf("default select value: got %q", v)
	}
	if err := p.Click(ctx, browser.Query("#kind").Find(`option[value="MAC"]`)); err != nil {
		t.Fatalf("Click option: %v", err)
	}
	if v, _ := p.InputValue(ctx, browser.Query("#kind")); v != "MAC" {
		t.Errorf("select value after click: got %q, want MAC", v)
	}
	if err := p.SelectOption(ctx, browser.Query("#kind"), "LINUX"); !errors.Is(err, browser.ErrNoElement) {
		t.Errorf("unknown option: expected ErrNoElement, got %v", err)
	}
}

func TestHTMLPage_ReloadDiscardsState(t *testing.T) {
	p, _, base := newTestPage(t)
	ctx := context.Background()
	if err := p.Goto(ctx, "/add"); err != nil {
		t.Fatalf("Goto relative: %v", err)
	}
	if err := p.Fill(ctx, browser.Query("#name"), "TYPED"); err != nil {
		t.Fatalf("Fill: %v", err)
	}
	if err := p.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if v, _ := p.InputValue(ctx, browser.Query("#name")); v != "" {
		t.Errorf("value after reload: got %q, want empty", v)
	}
	if u, _ := p.CurrentURL(ctx); u != base+"/add" {
		t.Errorf("CurrentURL after reload: got %q", u)
	}
}

func TestHTMLPage_BeforeFirstLoad(t *testing.T) {
	p := browser.NewHTMLPage(nil)
	if u, _ := p.CurrentURL(context.Background()); u != "about:blank" {
		t.Errorf("CurrentURL: got %q, want about:blank", u)
	}
	if err := p.Reload(context.Background()); err == nil {
		t.Error("Reload without a page: expected error")
	}
	if err := p.Goto(context.Background(), "/relative"); err == nil {
		t.Error("relative Goto without a page: expected error")
	}
	if n, _ := p.Count(context.Background(), browser.Query("div")); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}
