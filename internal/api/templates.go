package api

import (
	"fmt"
	"strings"
)

// FieldSpec describes one positional field of a switch command.
//
// Required fields with no default must be supplied by the caller; a miss
// is a validation error at render time, never a silent blank.
type FieldSpec struct {
	Name     string
	Default  string
	Required bool
}

// Template is an ordered list of fields rendered into the comma-separated
// command string the controller's /setFunctionManually endpoint expects.
type Template struct {
	Fields []FieldSpec
}

// Render fills the template from values, applying defaults.
//
// Returns a validation error naming the first required field that is
// neither supplied nor defaulted.
func (t Template) Render(endpoint string, values map[string]string) (string, error) {
	parts := make([]string, 0, len(t.Fields))
	for _, f := range t.Fields {
		v, ok := values[f.Name]
		if !ok || v == "" {
			v = f.Default
		}
		if v == "" && f.Required {
			return "", &Error{
				Kind:     KindValidation,
				Endpoint: endpoint,
				Message:  fmt.Sprintf("missing template field %q", f.Name),
			}
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, ","), nil
}

// switchTemplates maps device keys to their command shape. Keys absent
// here fall back to genericTemplate. The descriptors are checked once at
// package load so a malformed entry is caught before first use.
var switchTemplates = map[string]Template{
	"PUMP": {Fields: []FieldSpec{
		{Name: "key", Required: true},
		{Name: "action", Required: true},
		{Name: "duration", Default: "0"},
		{Name: "speed", Default: "2"},
	}},
	"LIGHT": {Fields: []FieldSpec{
		{Name: "key", Required: true},
		{Name: "action", Required: true},
		{Name: "duration", Default: "0"},
		{Name: "color", Default: "0"},
	}},
	"PVSURPLUS": {Fields: []FieldSpec{
		{Name: "key", Required: true},
		{Name: "action", Required: true},
		{Name: "speed", Default: "2"},
	}},
	"DOS_1_CL": {Fields: []FieldSpec{
		{Name: "key", Required: true},
		{Name: "action", Required: true},
		{Name: "duration", Required: true},
	}},
	"DOS_4_PHM": {Fields: []FieldSpec{
		{Name: "key", Required: true},
		{Name: "action", Required: true},
		{Name: "duration", Required: true},
	}},
	"DOS_5_PHP": {Fields: []FieldSpec{
		{Name: "key", Required: true},
		{Name: "action", Required: true},
		{Name: "duration", Required: true},
	}},
	"DOS_6_FLOC": {Fields: []FieldSpec{
		{Name: "key", Required: true},
		{Name: "action", Required: true},
		{Name: "duration", Required: true},
	}},
}

// genericTemplate is the fallback key,action,duration,value shape used for
// any device key without a dedicated entry.
var genericTemplate = Template{Fields: []FieldSpec{
	{Name: "key", Required: true},
	{Name: "action", Required: true},
	{Name: "duration", Default: "0"},
	{Name: "value", Default: "0"},
}}

// templateFor returns the command template for a device key.
func templateFor(key string) Template {
	if t, ok := switchTemplates[key]; ok {
		return t
	}
	return genericTemplate
}

// validateTemplates checks every descriptor for structural mistakes:
// empty field names, duplicate names, and a missing leading key field.
func validateTemplates() error {
	check := func(name string, t Template) error {
		if len(t.Fields) == 0 {
			return fmt.Errorf("template %s has no fields", name)
		}
		if t.Fields[0].Name != "key" {
			return fmt.Errorf("template %s must start with the key field", name)
		}
		seen := make(map[string]bool, len(t.Fields))
		for _, f := range t.Fields {
			if f.Name == "" {
				return fmt.Errorf("template %s has an unnamed field", name)
			}
			if seen[f.Name] {
				return fmt.Errorf("template %s has duplicate field %q", name, f.Name)
			}
			seen[f.Name] = true
		}
		return nil
	}

	for name, t := range switchTemplates {
		if err := check(name, t); err != nil {
			return err
		}
	}
	return check("generic", genericTemplate)
}

func init() {
	if err := validateTemplates(); err != nil {
		panic("api: " + err.Error())
	}
}
