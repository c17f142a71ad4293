package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/treyturner/ninjaone-e2e/internal/db"
	"github.com/treyturner/ninjaone-e2e/internal/handlers"
	"github.com/treyturner/ninjaone-e2e/internal/models"
	"github.com/treyturner/ninjaone-e2e/internal/scenario"
)

const testToken = "cli-token"

type stub struct {
	db     *db.DB
	apiURL string
	uiURL  string
}

func newStub(t *testing.T) *stub {
	t.Helper()
	for _, name := range []string{"API_URL", "UI_URL", "API_TOKEN", "BROWSER", "HEADLESS", "URL_TIMEOUT", "SETTLE_TIMEOUT", "LOG_LEVEL", "LOG_FORMAT"} {
		t.Setenv("DEVICECHECK_"+name, "")
	}

	d, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	h := &handlers.Handler{DB: d}
	api := httptest.NewServer(h.APIRoutes(testToken, nil))
	t.Cleanup(api.Close)
	ui := httptest.NewServer(h.UIRoutes(nil))
	t.Cleanup(ui.Close)
	return &stub{db: d, apiURL: api.URL, uiURL: ui.URL}
}

func (s *stub) args(args ...string) []string {
	return append(args, "--api-url", s.apiURL, "--ui-url", s.uiURL, "--api-token", testToken, "--browser", "html")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScenariosCommand(t *testing.T) {
	out, err := execute(t, "scenarios")
	if err != nil {
		t.Fatalf("scenarios: %v", err)
	}
	got := strings.Fields(out)
	if strings.Join(got, ",") != strings.Join(scenario.Names(), ",") {
		t.Errorf("got %v, want %v", got, scenario.Names())
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, Name+" "+Version) {
		t.Errorf("got %q", out)
	}
}

func TestListCommand(t *testing.T) {
	s := newStub(t)
	if err := s.db.Create(&models.Device{ID: "id-1", SystemName: "MAC-LOCAL", Type: models.Mac, HDDCapacity: "256"}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	out, err := execute(t, s.args("list")...)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"SYSTEM NAME", "MAC-LOCAL", "256 GB"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, s.args("list", "--json")...)
	if err != nil {
		t.Fatalf("list --json: %v", err)
	}
	var devices []models.Device
	if err := json.Unmarshal([]byte(out), &devices); err != nil {
		t.Fatalf("decode JSON output: %v\n%s", err, out)
	}
	if len(devices) != 1 || devices[0].SystemName != "MAC-LOCAL" {
		t.Errorf("got %+v", devices)
	}
}

func TestListCommand_Unauthorized(t *testing.T) {
	s := newStub(t)
	_, err := execute(t, "list", "--api-url", s.apiURL, "--api-token", "wrong")
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Errorf("expected a 401 error, got %v", err)
	}
}

func TestRunCommand_AllPass(t *testing.T) {
	s := newStub(t)
	out, err := execute(t, s.args("run", "--run-id", "CLIRUN01")...)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if n := strings.Count(out, "PASS"); n != len(scenario.Names()) {
		t.Errorf("expected %d PASS lines, got %d:\n%s", len(scenario.Names()), n, out)
	}
}

func TestRunCommand_SelectedScenario(t *testing.T) {
	s := newStub(t)
	out, err := execute(t, s.args("run", "create-device", "--run-id", "CLIRUN02")...)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, out)
	}
	if _, err := s.db.FindByName("USER-CLIRUN02"); err != nil {
		t.Errorf("created device: %v", err)
	}
	if strings.Contains(out, "list-consistency") {
		t.Errorf("only create-device should run:\n%s", out)
	}
}

func TestRunCommand_ReportsFailure(t *testing.T) {
	s := newStub(t)
	if err := s.db.Create(&models.Device{ID: "id-1", SystemName: "GHOST", Type: models.Mac, HDDCapacity: "1"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	// A UI that renders no devices at all.
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "<html><body></body></html>")
	}))
	t.Cleanup(empty.Close)

	out, err := execute(t, "run", "list-consistency",
		"--api-url", s.apiURL, "--ui-url", empty.URL, "--api-token", testToken, "--browser", "html",
		"--settle-timeout", "200ms")
	if err == nil {
		t.Fatalf("expected failure, got nil\n%s", out)
	}
	if !strings.Contains(err.Error(), "1 of 1 scenarios failed") {
		t.Errorf("error: got %v", err)
	}
	if !strings.Contains(out, "FAIL") || !strings.Contains(out, "card count") {
		t.Errorf("output should show the failed assertion:\n%s", out)
	}
}

func TestRunCommand_Validation(t *testing.T) {
	s := newStub(t)
	tests := []struct {
		name string
		args []string
	}{
		{"unknown scenario", s.args("run", "nope")},
		{"unknown browser", append(s.args("run"), "--browser", "netscape")},
		{"zero timeout", append(s.args("run"), "--url-timeout", "0s")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestFlagsOverrideEnvironment(t *testing.T) {
	s := newStub(t)
	t.Setenv("DEVICECHECK_API_URL", "http://env-only.invalid:1")
	t.Setenv("DEVICECHECK_API_TOKEN", testToken)

	// The flag wins over the unreachable env URL; the token still comes from
	// the environment.
	if _, err := execute(t, "list", "--api-url", s.apiURL); err != nil {
		t.Errorf("list: %v", err)
	}
}
