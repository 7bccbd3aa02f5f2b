package validation

import (
	"encoding/json"
	"fmt"
)

// FieldType is the input kind of a catalog field.
type FieldType string

const (
	FieldText        FieldType = "text"
	FieldTextarea    FieldType = "textarea"
	FieldEmail       FieldType = "email"
	FieldURL         FieldType = "url"
	FieldTel         FieldType = "tel"
	FieldNumber      FieldType = "number"
	FieldDate        FieldType = "date"
	FieldSelect      FieldType = "select"
	FieldMultiselect FieldType = "multiselect"
	FieldRadio       FieldType = "radio"
	FieldCheckbox    FieldType = "checkbox"
	FieldFile        FieldType = "file"
)

var fieldTypes = map[FieldType]struct{}{
	FieldText: {}, FieldTextarea: {}, FieldEmail: {}, FieldURL: {}, FieldTel: {}, FieldNumber: {},
	FieldDate: {}, FieldSelect: {}, FieldMultiselect: {}, FieldRadio: {}, FieldCheckbox: {}, FieldFile: {},
}

func (t FieldType) Valid() bool {
	_, ok := fieldTypes[t]
	return ok
}

// HasOptions reports whether values of this type are picked from an option list.
func (t FieldType) HasOptions() bool {
	switch t {
	case FieldSelect, FieldMultiselect, FieldRadio, FieldCheckbox:
		return true
	}
	return false
}

// Option is one choice of a select-like field. Accepts a bare string or {label, value}.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

func (o *Option) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		o.Label, o.Value = s, s
		return nil
	}
	type plain Option
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("option: expected string or object: %w", err)
	}
	*o = Option(p)
	if o.Label == "" {
		o.Label = o.Value
	}
	return nil
}

// ConfiguredField is a catalog Field as placed inside one form.
type ConfiguredField struct {
	FieldID       string    `json:"fieldId"`
	Name          string    `json:"name"`
	Label         string    `json:"label"`
	CustomLabel   string    `json:"customLabel,omitempty"`
	Type          FieldType `json:"type"`
	CategoryID    string    `json:"categoryId,omitempty"`
	SubcategoryID string    `json:"subcategoryId,omitempty"`
	Options       []Option  `json:"options,omitempty"`
	Validation    []Rule    `json:"validation,omitempty"`
	IsVisible     bool      `json:"isVisible"`
	IsRequired    bool      `json:"isRequired"`
	Order         int       `json:"order"`
}

// DisplayLabel prefers the per-form label override.
func (f ConfiguredField) DisplayLabel() string {
	if f.CustomLabel != "" {
		return f.CustomLabel
	}
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// Required is true when the field is flagged required or carries a required rule.
func (f ConfiguredField) Required() bool {
	if f.IsRequired {
		return true
	}
	for _, r := range f.Validation {
		if r.Type == RuleRequired {
			return true
		}
	}
	return false
}

func (f ConfiguredField) hasOption(v string) bool {
	for _, o := range f.Options {
		if o.Value == v {
			return true
		}
	}
	return false
}
