// engine.go
//
// Tenant-scoped intake forms and application review service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-intakedb.
// jam-build-intakedb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-intakedb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-intakedb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

// Package validation checks submitted payloads against a form's configured fields.
// The package does no I/O; its only shared state is a regexp cache.
package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Mode selects how strictly required fields are enforced.
type Mode int

const (
	// Strict is used on submit: required fields must be present.
	Strict Mode = iota
	// Lenient is used for drafts: missing required values are tolerated, present values are still checked.
	Lenient
)

func (m Mode) String() string {
	if m == Lenient {
		return "lenient"
	}
	return "strict"
}

// FieldError is the first failing rule of one field.
type FieldError struct {
	Field   string   `json:"field"`
	Rule    RuleType `json:"rule"`
	Message string   `json:"message"`
}

// Result of validating a payload.
type Result struct {
	Valid  bool         `json:"valid"`
	Errors []FieldError `json:"errors"`
}

// Validate checks payload against fields. Invisible fields and unknown payload keys are ignored.
// At most one FieldError is produced per field, ordered by field order then name.
func Validate(fields []ConfiguredField, payload Payload, mode Mode) Result {
	errs := make([]FieldError, 0)
	for _, f := range Ordered(fields) {
		if !f.IsVisible {
			continue
		}
		v, ok := payload[f.Name]
		if !ok {
			v = Null()
		}
		if fe := validateField(f, v, mode); fe != nil {
			errs = append(errs, *fe)
		}
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// Ordered returns a copy of fields sorted by order, then name.
func Ordered(fields []ConfiguredField) []ConfiguredField {
	out := make([]ConfiguredField, len(fields))
	copy(out, fields)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func validateField(f ConfiguredField, v Value, mode Mode) *FieldError {
	if isEmpty(f, v) {
		if f.Required() && mode == Strict {
			return failure(f, requiredRule(f), fmt.Sprintf("%s is required", f.DisplayLabel()))
		}
		return nil
	}

	if fe := checkType(f, v); fe != nil {
		return fe
	}

	for _, r := range orderedRules(f.Validation) {
		if r.Type == RuleRequired {
			continue
		}
		if fe := checkRule(f, r, v); fe != nil {
			return fe
		}
	}
	return nil
}

func requiredRule(f ConfiguredField) Rule {
	for _, r := range f.Validation {
		if r.Type == RuleRequired {
			return r
		}
	}
	return Rule{Type: RuleRequired}
}

func orderedRules(rules []Rule) []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Type.priority() < out[j].Type.priority()
	})
	return out
}

func failure(f ConfiguredField, r Rule, fallback string) *FieldError {
	msg := r.Message
	if msg == "" {
		msg = fallback
	}
	return &FieldError{Field: f.Name, Rule: r.Type, Message: msg}
}

func isEmpty(f ConfiguredField, v Value) bool {
	switch v.Kind {
	case KindNull:
		return true
	case KindString:
		return strings.TrimSpace(v.Str) == ""
	case KindList:
		return len(v.List) == 0
	case KindFile:
		return len(v.Files) == 0
	case KindBool:
		// an unticked single checkbox does not satisfy required
		return f.Type == FieldCheckbox && len(f.Options) == 0 && !v.Bool
	}
	return false
}

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func isEmail(s string) bool {
	if !emailRe.MatchString(s) {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}

func isURL(s string) bool {
	u, err := url.ParseRequestURI(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func numberOf(v Value) (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Num, true
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64)
		return n, err == nil
	}
	return 0, false
}

func isScalar(v Value) bool {
	return v.Kind == KindString || v.Kind == KindNumber || v.Kind == KindBool
}

// checkType enforces the shape implied by the field type.
func checkType(f ConfiguredField, v Value) *FieldError {
	label := f.DisplayLabel()
	mismatch := func(msg string) *FieldError {
		return &FieldError{Field: f.Name, Rule: RuleTypeMismatch, Message: msg}
	}

	switch f.Type {
	case FieldText, FieldTextarea, FieldTel:
		if !isScalar(v) {
			return mismatch(fmt.Sprintf("%s must be text", label))
		}
	case FieldEmail:
		if v.Kind != KindString || !isEmail(strings.TrimSpace(v.Str)) {
			return failure(f, ruleOf(f, RuleEmail), fmt.Sprintf("%s must be a valid email address", label))
		}
	case FieldURL:
		if v.Kind != KindString || !isURL(strings.TrimSpace(v.Str)) {
			return failure(f, ruleOf(f, RuleURL), fmt.Sprintf("%s must be a valid URL", label))
		}
	case FieldNumber:
		if _, ok := numberOf(v); !ok {
			return mismatch(fmt.Sprintf("%s must be a number", label))
		}
	case FieldDate:
		if v.Kind != KindString {
			return mismatch(fmt.Sprintf("%s must be a date", label))
		}
		if _, ok := parseDate(v.Str); !ok {
			return mismatch(fmt.Sprintf("%s must be a date (YYYY-MM-DD)", label))
		}
	case FieldSelect, FieldRadio:
		if !isScalar(v) {
			return mismatch(fmt.Sprintf("%s must be a single choice", label))
		}
		if len(f.Options) > 0 && !f.hasOption(v.Strings()[0]) {
			return &FieldError{Field: f.Name, Rule: RuleOption, Message: fmt.Sprintf("%s has an invalid choice", label)}
		}
	case FieldMultiselect:
		return checkChoices(f, v, mismatch)
	case FieldCheckbox:
		if len(f.Options) == 0 {
			if v.Kind != KindBool {
				return mismatch(fmt.Sprintf("%s must be true or false", label))
			}
			return nil
		}
		return checkChoices(f, v, mismatch)
	case FieldFile:
		switch v.Kind {
		case KindFile:
			for _, ref := range v.Files {
				if !ref.valid() {
					return mismatch(fmt.Sprintf("%s must reference an uploaded file", label))
				}
			}
		case KindString:
			// a bare id or url of an uploaded file
		default:
			return mismatch(fmt.Sprintf("%s must reference an uploaded file", label))
		}
	}
	return nil
}

func checkChoices(f ConfiguredField, v Value, mismatch func(string) *FieldError) *FieldError {
	var choices []string
	switch {
	case v.Kind == KindList:
		choices = v.List
	case v.Kind == KindString:
		choices = []string{v.Str}
	default:
		return mismatch(fmt.Sprintf("%s must be a list of choices", f.DisplayLabel()))
	}
	if len(f.Options) == 0 {
		return nil
	}
	for _, c := range choices {
		if !f.hasOption(c) {
			return &FieldError{Field: f.Name, Rule: RuleOption, Message: fmt.Sprintf("%s has an invalid choice: %s", f.DisplayLabel(), c)}
		}
	}
	return nil
}

// ruleOf returns the configured rule of type t, so its message wins, or a bare rule.
func ruleOf(f ConfiguredField, t RuleType) Rule {
	for _, r := range f.Validation {
		if r.Type == t {
			return r
		}
	}
	return Rule{Type: t}
}

func checkRule(f ConfiguredField, r Rule, v Value) *FieldError {
	label := f.DisplayLabel()

	switch r.Type {
	case RuleEmail:
		for _, s := range v.Strings() {
			if !isEmail(strings.TrimSpace(s)) {
				return failure(f, r, fmt.Sprintf("%s must be a valid email address", label))
			}
		}

	case RuleURL:
		for _, s := range v.Strings() {
			if !isURL(strings.TrimSpace(s)) {
				return failure(f, r, fmt.Sprintf("%s must be a valid URL", label))
			}
		}

	case RulePattern:
		re, err := compilePattern(r.stringValue())
		if err != nil {
			return nil
		}
		for _, s := range v.Strings() {
			if !re.MatchString(s) {
				return failure(f, r, fmt.Sprintf("%s has an invalid format", label))
			}
		}

	case RuleMin, RuleMax:
		return checkBound(f, r, v)

	case RuleMinLength, RuleMaxLength:
		limit, ok := r.numberValue()
		if !ok {
			return nil
		}
		n := lengthOf(v)
		if r.Type == RuleMinLength && float64(n) < limit {
			return failure(f, r, fmt.Sprintf("%s must be at least %s characters", label, formatNumber(limit)))
		}
		if r.Type == RuleMaxLength && float64(n) > limit {
			return failure(f, r, fmt.Sprintf("%s must be at most %s characters", label, formatNumber(limit)))
		}

	case RuleCustom:
		check, ok := lookupCustom(r.stringValue())
		if !ok {
			return failure(f, r, fmt.Sprintf("%s uses an unknown check", label))
		}
		for _, s := range v.Strings() {
			if !check(s) {
				return failure(f, r, fmt.Sprintf("%s is invalid", label))
			}
		}
	}
	return nil
}

func checkBound(f ConfiguredField, r Rule, v Value) *FieldError {
	label := f.DisplayLabel()
	word := "at least"
	if r.Type == RuleMax {
		word = "at most"
	}

	if f.Type == FieldDate {
		bound, ok := r.dateValue()
		if !ok {
			return nil
		}
		got, ok := parseDate(v.Str)
		if !ok {
			return failure(f, r, fmt.Sprintf("%s must be a date", label))
		}
		if (r.Type == RuleMin && got.Before(bound)) || (r.Type == RuleMax && got.After(bound)) {
			return failure(f, r, fmt.Sprintf("%s must be %s %s", label, word, bound.Format("2006-01-02")))
		}
		return nil
	}

	bound, ok := r.numberValue()
	if !ok {
		return nil
	}
	got, ok := numberOf(v)
	if !ok {
		return failure(f, r, fmt.Sprintf("%s must be a number", label))
	}
	if (r.Type == RuleMin && got < bound) || (r.Type == RuleMax && got > bound) {
		return failure(f, r, fmt.Sprintf("%s must be %s %s", label, word, formatNumber(bound)))
	}
	return nil
}

func lengthOf(v Value) int {
	switch v.Kind {
	case KindList:
		return len(v.List)
	case KindFile:
		return len(v.Files)
	}
	s := v.Strings()
	if len(s) == 0 {
		return 0
	}
	return utf8.RuneCountInString(s[0])
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
