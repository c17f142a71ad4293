package scenario

import "github.com/treyturner/ninjaone-e2e/internal/browser"

// UISelectors names the stable hooks the scenarios rely on.
type UISelectors struct {
	// List page.
	Card     string
	Name     string
	Type     string
	Capacity string
	Edit     string
	Remove   string
	Submit   string

	// Add form.
	NameInput     string
	TypeSelect    string
	TypeOption    string
	CapacityInput string

	ListPath string
	AddPath  string
}

// DefaultSelectors matches the device inventory demo UI.
func DefaultSelectors() *UISelectors {
	return &UISelectors{
		Card:          ".device-main-box",
		Name:          ".device-name",
		Type:          ".device-type",
		Capacity:      ".device-capacity",
		Edit:          ".device-edit",
		Remove:        ".device-remove",
		Submit:        ".submitButton",
		NameInput:     "#system_name",
		TypeSelect:    "#type",
		TypeOption:    "option",
		CapacityInput: "#hdd_capacity",
		ListPath:      "/",
		AddPath:       "/devices/add",
	}
}

func (s *UISelectors) cards() browser.Selector {
	return browser.Query(s.Card)
}

// cardNamed matches every card whose name element reads exactly name.
func (s *UISelectors) cardNamed(name string) browser.Selector {
	return s.cards().WithChildText(s.Name, name)
}

func (s *UISelectors) option(value string) browser.Selector {
	return browser.Query(s.TypeSelect).Find(s.TypeOption + `[value="` + value + `"]`)
}
