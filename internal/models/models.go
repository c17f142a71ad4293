package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Device is a single inventory record as served by the device API and
// rendered by the UI.
type Device struct {
	ID          string   `json:"id"`
	SystemName  string   `json:"system_name"`
	HDDCapacity Capacity `json:"hdd_capacity"`
	Type        Type     `json:"type"`
}

// Type is the canonical machine value of a device category.
type Type string

const (
	WindowsWorkstation Type = "WINDOWS_WORKSTATION"
	WindowsServer      Type = "WINDOWS_SERVER"
	Mac                Type = "MAC"
)

// ValidTypes is the set of allowed canonical type values.
var ValidTypes = map[Type]bool{
	WindowsWorkstation: true,
	WindowsServer:      true,
	Mac:                true,
}

// AllTypes lists the canonical types in display order.
var AllTypes = []Type{WindowsWorkstation, WindowsServer, Mac}

// Label returns the human-readable form of t, as shown in option text and on
// the device list.
func (t Type) Label() string {
	return strings.ReplaceAll(string(t), "_", " ")
}

// CanonicalType maps either a label or a canonical value onto the canonical
// value. It is the only normalization rule for types; the stub write path and
// the UI/API comparison both go through it.
func CanonicalType(s string) Type {
	return Type(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
}

// SameType reports whether a displayed type and a stored type denote the same
// category.
func SameType(shown, stored string) bool {
	return CanonicalType(shown) == CanonicalType(stored)
}

// Capacity is a storage capacity kept as decimal text. It decodes from either
// a JSON string or a JSON number and always encodes as a string.
type Capacity string

func (c *Capacity) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Capacity(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("hdd_capacity: %w", err)
	}
	*c = Capacity(n.String())
	return nil
}

func (c Capacity) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

// CapacityValue returns the numeric prefix of a rendered capacity: everything
// before the first space.
func CapacityValue(text string) string {
	text = strings.TrimSpace(text)
	value, _, _ := strings.Cut(text, " ")
	return value
}

// FormatCapacity renders c with its unit suffix.
func FormatCapacity(c Capacity) string {
	return string(c) + " GB"
}
