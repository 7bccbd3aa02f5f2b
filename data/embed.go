package data

import (
	_ "embed"
)

// ValidationRulesSchema is the JSON Schema for a field's validation rule array.
//
//go:embed schemas/validation-rules.json
var ValidationRulesSchema string

// FieldOptionsSchema is the JSON Schema for a field's options array.
//
//go:embed schemas/field-options.json
var FieldOptionsSchema string
