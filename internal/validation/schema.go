package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/localnerve/jam-build-intakedb/data"
	"github.com/xeipuuv/gojsonschema"
)

// FieldNamePattern is the machine key format of catalog fields.
var FieldNamePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)

var (
	rulesSchemaOnce   sync.Once
	rulesSchema       *gojsonschema.Schema
	optionsSchemaOnce sync.Once
	optionsSchema     *gojsonschema.Schema
)

func loadSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("embedded schema does not compile: %v", err))
	}
	return schema
}

// structuralErrors runs a gojsonschema check and flattens its result.
func structuralErrors(schema *gojsonschema.Schema, document interface{}, field string) []FieldError {
	result, err := schema.Validate(gojsonschema.NewGoLoader(document))
	if err != nil {
		return []FieldError{{Field: field, Rule: RuleTypeMismatch, Message: err.Error()}}
	}
	if result.Valid() {
		return nil
	}
	out := make([]FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		out = append(out, FieldError{Field: field, Rule: RuleTypeMismatch, Message: desc.String()})
	}
	return out
}

// CheckRules verifies a rule list at authoring time: known rule types, compilable patterns,
// numeric bounds and registered custom checks. fieldType may be empty when unknown.
func CheckRules(field string, fieldType FieldType, rules []Rule) []FieldError {
	if len(rules) == 0 {
		return nil
	}
	rulesSchemaOnce.Do(func() { rulesSchema = loadSchema(data.ValidationRulesSchema) })

	// round trip so gojsonschema sees plain JSON types
	raw, err := json.Marshal(rules)
	if err != nil {
		return []FieldError{{Field: field, Rule: RuleTypeMismatch, Message: err.Error()}}
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return []FieldError{{Field: field, Rule: RuleTypeMismatch, Message: err.Error()}}
	}
	if errs := structuralErrors(rulesSchema, doc, field); len(errs) > 0 {
		return errs
	}

	var errs []FieldError
	for _, r := range rules {
		switch r.Type {
		case RulePattern:
			if _, err := compilePattern(r.stringValue()); err != nil {
				errs = append(errs, FieldError{Field: field, Rule: r.Type, Message: fmt.Sprintf("pattern does not compile: %v", err)})
			}
		case RuleMinLength, RuleMaxLength:
			if n, ok := r.numberValue(); !ok || n < 0 {
				errs = append(errs, FieldError{Field: field, Rule: r.Type, Message: "value must be a non-negative number"})
			}
		case RuleMin, RuleMax:
			if fieldType == FieldDate {
				if _, ok := r.dateValue(); !ok {
					errs = append(errs, FieldError{Field: field, Rule: r.Type, Message: "value must be a date"})
				}
			} else if _, ok := r.numberValue(); !ok {
				errs = append(errs, FieldError{Field: field, Rule: r.Type, Message: "value must be a number"})
			}
		case RuleCustom:
			if _, ok := lookupCustom(r.stringValue()); !ok {
				errs = append(errs, FieldError{Field: field, Rule: r.Type, Message: fmt.Sprintf("unknown custom check %q, expected one of %s", r.stringValue(), strings.Join(CustomCheckNames(), ", "))})
			}
		}
	}
	return errs
}

// CheckOptions verifies a select-like field's option list.
func CheckOptions(field string, fieldType FieldType, options []Option) []FieldError {
	optionsSchemaOnce.Do(func() { optionsSchema = loadSchema(data.FieldOptionsSchema) })

	doc := make([]interface{}, 0, len(options))
	seen := make(map[string]struct{}, len(options))
	var errs []FieldError
	for _, o := range options {
		doc = append(doc, map[string]interface{}{"label": o.Label, "value": o.Value})
		if _, dup := seen[o.Value]; dup {
			errs = append(errs, FieldError{Field: field, Rule: RuleOption, Message: fmt.Sprintf("duplicate option %q", o.Value)})
		}
		seen[o.Value] = struct{}{}
	}
	if serrs := structuralErrors(optionsSchema, doc, field); len(serrs) > 0 {
		return serrs
	}
	if fieldType.HasOptions() && fieldType != FieldCheckbox && len(options) == 0 {
		errs = append(errs, FieldError{Field: field, Rule: RuleOption, Message: fmt.Sprintf("%s fields need at least one option", fieldType)})
	}
	return errs
}
