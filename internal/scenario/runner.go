// Package scenario cross-checks the device UI against the device API.
//
// Each scenario drives the UI through a browser.Page, reads back what it
// renders and compares it with API ground truth or with the values it
// submitted. Any mismatch aborts the scenario with an *AssertionError.
package scenario

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/treyturner/ninjaone-e2e/internal/browser"
	"github.com/treyturner/ninjaone-e2e/internal/models"
	"github.com/treyturner/ninjaone-e2e/internal/names"
)

const (
	// DefaultURLTimeout bounds the wait for a post-submission URL change.
	DefaultURLTimeout = 3 * time.Second
	// DefaultSettleTimeout bounds the wait for the list page to render the
	// expected cards after navigation.
	DefaultSettleTimeout = 3 * time.Second
)

var (
	// ErrNoMatchingRecord means a UI card names a device the API does not
	// report.
	ErrNoMatchingRecord = errors.New("no API record matches")
	// ErrNameTaken means the generated device name already exists, so
	// creating it would overwrite another record.
	ErrNameTaken = errors.New("device name already exists")
	// ErrUnknownScenario is reported by Run for names not in Names().
	ErrUnknownScenario = errors.New("unknown scenario")
)

// AssertionError is a mismatch between observed and expected state.
type AssertionError struct {
	Scenario string
	Field    string
	Got      string
	Want     string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: %s: got %q, want %q", e.Scenario, e.Field, e.Got, e.Want)
}

// DeviceAPI is the ground-truth side of every comparison. *apiclient.Client
// implements it.
type DeviceAPI interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	FindByName(ctx context.Context, name string) (*models.Device, error)
	CreateDevice(ctx context.Context, d models.Device) (*models.Device, error)
	UpdateDevice(ctx context.Context, d models.Device) (*models.Device, error)
	DeleteDevice(ctx context.Context, id string) error
}

// Runner holds what every scenario needs. The zero value of each optional
// field picks a default.
type Runner struct {
	API   DeviceAPI
	Page  browser.Page
	UIURL string

	// Optional.
	URLTimeout    time.Duration
	SettleTimeout time.Duration
	RunID         string
	Rand          *rand.Rand
	Logger        *slog.Logger
	Selectors     *UISelectors
}

// Result is the outcome of one scenario.
type Result struct {
	Name     string
	Err      error
	Duration time.Duration
}

// OK reports whether the scenario passed.
func (r Result) OK() bool { return r.Err == nil }

type scenarioFunc func(*Runner, context.Context) error

var registry = []struct {
	name string
	fn   scenarioFunc
}{
	{"list-consistency", (*Runner).ListConsistency},
	{"create-device", (*Runner).CreateDevice},
	{"external-update", (*Runner).ExternalUpdate},
	{"external-delete", (*Runner).ExternalDelete},
}

// Names lists the scenarios in the order Run executes them by default.
func Names() []string {
	out := make([]string, len(registry))
	for i, s := range registry {
		out[i] = s.name
	}
	return out
}

func lookup(name string) scenarioFunc {
	for _, s := range registry {
		if s.name == name {
			return s.fn
		}
	}
	return nil
}

// Run executes the named scenarios one after another, or all of them when
// names is empty. A failed scenario does not stop the ones after it.
func (r *Runner) Run(ctx context.Context, names ...string) []Result {
	if len(names) == 0 {
		names = Names()
	}
	results := make([]Result, 0, len(names))
	for _, name := range names {
		res := Result{Name: name}
		fn := lookup(name)
		switch {
		case fn == nil:
			res.Err = fmt.Errorf("%w %q", ErrUnknownScenario, name)
		case ctx.Err() != nil:
			res.Err = ctx.Err()
		default:
			start := time.Now()
			res.Err = fn(r, ctx)
			res.Duration = time.Since(start)
		}

		if res.Err != nil {
			r.logger().ErrorContext(ctx, "scenario failed", "scenario", name, "duration", res.Duration, "error", res.Err)
		} else {
			r.logger().InfoContext(ctx, "scenario passed", "scenario", name, "duration", res.Duration)
		}
		results = append(results, res)
	}
	return results
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) sel() *UISelectors {
	if r.Selectors != nil {
		return r.Selectors
	}
	return DefaultSelectors()
}

func (r *Runner) urlTimeout() time.Duration {
	if r.URLTimeout > 0 {
		return r.URLTimeout
	}
	return DefaultURLTimeout
}

func (r *Runner) settleTimeout() time.Duration {
	if r.SettleTimeout > 0 {
		return r.SettleTimeout
	}
	return DefaultSettleTimeout
}

// runID is generated on first use and kept for the rest of the run.
func (r *Runner) runID() string {
	if r.RunID == "" {
		r.RunID = names.NewRunID(r.Rand)
	}
	return r.RunID
}

func (r *Runner) intN(n int) int {
	if r.Rand != nil {
		return r.Rand.IntN(n)
	}
	return rand.IntN(n)
}

func (r *Runner) uiURL(path string) string {
	return strings.TrimRight(r.UIURL, "/") + path
}
