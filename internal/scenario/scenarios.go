package scenario

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/treyturner/ninjaone-e2e/internal/browser"
	"github.com/treyturner/ninjaone-e2e/internal/models"
	"github.com/treyturner/ninjaone-e2e/internal/names"
)

// ListConsistency checks that the list page shows exactly the devices the API
// reports, each with its controls and with matching fields.
func (r *Runner) ListConsistency(ctx context.Context) error {
	const scenario = "list-consistency"
	s := r.sel()

	devices, err := r.API.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("%s: list devices: %w", scenario, err)
	}
	if err := r.openList(ctx); err != nil {
		return fmt.Errorf("%s: %w", scenario, err)
	}

	n := len(devices)
	if err := r.waitCount(ctx, scenario, "card count", s.cards(), n); err != nil {
		return err
	}

	for i := range n {
		c, err := r.readCard(ctx, scenario, s.cards().Nth(i))
		if err != nil {
			return err
		}
		want := findRecord(devices, c.name)
		if want == nil {
			return fmt.Errorf("%s: card %d %q: %w", scenario, i, c.name, ErrNoMatchingRecord)
		}
		if err := c.compare(scenario, *want); err != nil {
			return err
		}
	}

	for _, d := range devices {
		n, err := r.Page.Count(ctx, s.cardNamed(d.SystemName))
		if err != nil {
			return fmt.Errorf("%s: count cards named %q: %w", scenario, d.SystemName, err)
		}
		if n != 1 {
			return &AssertionError{scenario, "cards named " + d.SystemName, strconv.Itoa(n), "1"}
		}
	}
	return nil
}

// CreateDevice submits the add form with fresh values and checks the new card.
func (r *Runner) CreateDevice(ctx context.Context) error {
	const scenario = "create-device"
	s := r.sel()
	want := models.Device{
		SystemName:  "USER-" + r.runID(),
		Type:        models.WindowsWorkstation,
		HDDCapacity: models.Capacity(strconv.Itoa(r.intN(1000))),
	}

	// The backend may overwrite a record with the same name, so refuse to
	// create one.
	existing, err := r.API.FindByName(ctx, want.SystemName)
	if err != nil {
		return fmt.Errorf("%s: find %q: %w", scenario, want.SystemName, err)
	}
	if existing != nil {
		return fmt.Errorf("%s: %q (id %s): %w", scenario, want.SystemName, existing.ID, ErrNameTaken)
	}

	if err := r.openList(ctx); err != nil {
		return fmt.Errorf("%s: %w", scenario, err)
	}
	if err := r.Page.Click(ctx, browser.Query(s.Submit).Nth(0)); err != nil {
		return fmt.Errorf("%s: open add form: %w", scenario, err)
	}
	if err := browser.WaitForURL(ctx, r.Page, r.uiURL(s.AddPath), r.urlTimeout()); err != nil {
		return fmt.Errorf("%s: %w", scenario, err)
	}

	if err := r.Page.Fill(ctx, browser.Query(s.NameInput), want.SystemName); err != nil {
		return fmt.Errorf("%s: fill name: %w", scenario, err)
	}
	n, err := r.Page.Count(ctx, s.option(string(want.Type)))
	if err != nil {
		return fmt.Errorf("%s: count type options: %w", scenario, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: type option %q: %w", scenario, want.Type, browser.ErrNoElement)
	}
	if err := r.Page.SelectOption(ctx, browser.Query(s.TypeSelect), string(want.Type)); err != nil {
		return fmt.Errorf("%s: select type: %w", scenario, err)
	}
	if err := r.Page.Fill(ctx, browser.Query(s.CapacityInput), string(want.HDDCapacity)); err != nil {
		return fmt.Errorf("%s: fill capacity: %w", scenario, err)
	}

	for _, f := range []struct{ field, css, want string }{
		{"name input", s.NameInput, want.SystemName},
		{"type select", s.TypeSelect, string(want.Type)},
		{"capacity input", s.CapacityInput, string(want.HDDCapacity)},
	} {
		got, err := r.Page.InputValue(ctx, browser.Query(f.css))
		if err != nil {
			return fmt.Errorf("%s: read %s: %w", scenario, f.field, err)
		}
		if got != f.want {
			return &AssertionError{scenario, f.field, got, f.want}
		}
	}

	if err := r.Page.Click(ctx, browser.Query(s.Submit).Nth(0)); err != nil {
		return fmt.Errorf("%s: submit: %w", scenario, err)
	}
	if err := browser.WaitForURL(ctx, r.Page, r.uiURL(s.ListPath), r.urlTimeout()); err != nil {
		return fmt.Errorf("%s: %w", scenario, err)
	}

	newCard := s.cardNamed(want.SystemName)
	if err := r.waitCount(ctx, scenario, "cards named "+want.SystemName, newCard, 1); err != nil {
		return err
	}
	c, err := r.readCard(ctx, scenario, newCard)
	if err != nil {
		return err
	}
	return c.compare(scenario, want)
}

// ExternalUpdate renames the first listed device through the API and checks
// that a reload shows the new name in place of the old one.
func (r *Runner) ExternalUpdate(ctx context.Context) error {
	const scenario = "external-update"
	s := r.sel()

	devices, err := r.ensureDevice(ctx, scenario)
	if err != nil {
		return err
	}
	oldName, err := r.Page.InnerText(ctx, s.cards().Nth(0).Find(s.Name))
	if err != nil {
		return fmt.Errorf("%s: read first card: %w", scenario, err)
	}
	rec := findRecord(devices, oldName)
	if rec == nil {
		return fmt.Errorf("%s: first card %q: %w", scenario, oldName, ErrNoMatchingRecord)
	}
	newName, err := names.DeriveNewName(oldName)
	if err != nil {
		return fmt.Errorf("%s: %w", scenario, err)
	}

	update := *rec
	update.SystemName = newName
	if _, err := r.API.UpdateDevice(ctx, update); err != nil {
		return fmt.Errorf("%s: rename %q to %q: %w", scenario, oldName, newName, err)
	}
	if err := r.Page.Reload(ctx); err != nil {
		return fmt.Errorf("%s: reload: %w", scenario, err)
	}

	// The renamed card shows up once the reloaded list has rendered; until
	// then the first card may still be the old one or missing.
	n, err := browser.WaitForCount(ctx, r.Page, s.cardNamed(newName), 1, r.settleTimeout())
	if err != nil && !errors.Is(err, browser.ErrCountTimeout) {
		return fmt.Errorf("%s: wait for %q: %w", scenario, newName, err)
	}
	got, err := r.Page.InnerText(ctx, s.cards().Nth(0).Find(s.Name))
	if err != nil {
		if n < 1 {
			return &AssertionError{scenario, "cards named " + newName, strconv.Itoa(max(n, 0)), "1"}
		}
		return fmt.Errorf("%s: read first card after reload: %w", scenario, err)
	}
	if got != newName {
		return &AssertionError{scenario, "first card name", got, newName}
	}
	return r.waitCount(ctx, scenario, "cards named "+oldName, s.cardNamed(oldName), 0)
}

// ExternalDelete removes the last listed device through the API and checks
// that a reload no longer shows it.
func (r *Runner) ExternalDelete(ctx context.Context) error {
	const scenario = "external-delete"
	s := r.sel()

	devices, err := r.ensureDevice(ctx, scenario)
	if err != nil {
		return err
	}
	name, err := r.Page.InnerText(ctx, s.cards().Nth(-1).Find(s.Name))
	if err != nil {
		return fmt.Errorf("%s: read last card: %w", scenario, err)
	}
	rec := findRecord(devices, name)
	if rec == nil {
		return fmt.Errorf("%s: last card %q: %w", scenario, name, ErrNoMatchingRecord)
	}

	if err := r.API.DeleteDevice(ctx, rec.ID); err != nil {
		return fmt.Errorf("%s: delete %q: %w", scenario, name, err)
	}
	if err := r.Page.Reload(ctx); err != nil {
		return fmt.Errorf("%s: reload: %w", scenario, err)
	}

	// An empty DOM has no card with the deleted name either, so the list
	// must first settle on the remaining cards.
	want := len(devices) - 1
	n, err := browser.WaitForCount(ctx, r.Page, s.cards(), want, r.settleTimeout())
	if err != nil && !errors.Is(err, browser.ErrCountTimeout) {
		return fmt.Errorf("%s: wait for cards: %w", scenario, err)
	}
	settled := err == nil
	named, err := r.Page.Count(ctx, s.cardNamed(name))
	if err != nil {
		return fmt.Errorf("%s: count cards named %q: %w", scenario, name, err)
	}
	if named != 0 {
		return &AssertionError{scenario, "cards named " + name, strconv.Itoa(named), "0"}
	}
	if !settled {
		return &AssertionError{scenario, "card count", strconv.Itoa(max(n, 0)), strconv.Itoa(want)}
	}
	return nil
}

// waitCount waits for sel to match want elements, reporting a timeout as an
// assertion failure on field.
func (r *Runner) waitCount(ctx context.Context, scenario, field string, sel browser.Selector, want int) error {
	n, err := browser.WaitForCount(ctx, r.Page, sel, want, r.settleTimeout())
	switch {
	case errors.Is(err, browser.ErrCountTimeout):
		return &AssertionError{scenario, field, strconv.Itoa(max(n, 0)), strconv.Itoa(want)}
	case err != nil:
		return fmt.Errorf("%s: wait for %s: %w", scenario, field, err)
	}
	return nil
}

func (r *Runner) openList(ctx context.Context) error {
	u := r.uiURL(r.sel().ListPath)
	if err := r.Page.Goto(ctx, u); err != nil {
		return fmt.Errorf("open %s: %w", u, err)
	}
	return nil
}

// ensureDevice returns API ground truth with the list page loaded, creating a
// seed device first when the API has none.
func (r *Runner) ensureDevice(ctx context.Context, scenario string) ([]models.Device, error) {
	devices, err := r.API.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: list devices: %w", scenario, err)
	}
	if len(devices) == 0 {
		seed, err := r.API.CreateDevice(ctx, models.Device{
			SystemName:  "SEED-" + r.runID(),
			Type:        models.WindowsServer,
			HDDCapacity: models.Capacity(strconv.Itoa(r.intN(1000))),
		})
		if err != nil {
			return nil, fmt.Errorf("%s: seed device: %w", scenario, err)
		}
		r.logger().InfoContext(ctx, "seeded device", "scenario", scenario, "id", seed.ID, "system_name", seed.SystemName)
		devices = []models.Device{*seed}
	}
	if err := r.openList(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", scenario, err)
	}
	if err := r.waitCount(ctx, scenario, "card count", r.sel().cards(), len(devices)); err != nil {
		return nil, err
	}
	return devices, nil
}

// card is what the list page renders for one device.
type card struct {
	name, typ, capacity string
}

// readCard checks that every part of the card at sel is visible and reads its
// fields.
func (r *Runner) readCard(ctx context.Context, scenario string, sel browser.Selector) (card, error) {
	s := r.sel()
	for _, part := range []string{s.Name, s.Type, s.Capacity, s.Edit, s.Remove} {
		ok, err := r.Page.Visible(ctx, sel.Find(part))
		if err != nil {
			return card{}, fmt.Errorf("%s: %s: %w", scenario, sel.Find(part), err)
		}
		if !ok {
			return card{}, &AssertionError{scenario, sel.Find(part).String() + " visible", "false", "true"}
		}
	}

	var c card
	for _, f := range []struct {
		css string
		dst *string
	}{
		{s.Name, &c.name},
		{s.Type, &c.typ},
		{s.Capacity, &c.capacity},
	} {
		text, err := r.Page.InnerText(ctx, sel.Find(f.css))
		if err != nil {
			return card{}, fmt.Errorf("%s: read %s: %w", scenario, sel.Find(f.css), err)
		}
		*f.dst = text
	}
	return c, nil
}

// compare checks c against d. The type label is matched to the stored value
// through models.SameType and only the numeric part of the capacity counts.
func (c card) compare(scenario string, d models.Device) error {
	if c.name != d.SystemName {
		return &AssertionError{scenario, "name", c.name, d.SystemName}
	}
	if !models.SameType(c.typ, string(d.Type)) {
		return &AssertionError{scenario, c.name + " type", c.typ, d.Type.Label()}
	}
	if got := models.CapacityValue(c.capacity); got != string(d.HDDCapacity) {
		return &AssertionError{scenario, c.name + " capacity", got, string(d.HDDCapacity)}
	}
	return nil
}

func findRecord(devices []models.Device, name string) *models.Device {
	for i := range devices {
		if devices[i].SystemName == name {
			return &devices[i]
		}
	}
	return nil
}
