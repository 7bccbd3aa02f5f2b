package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// RuleType names a validation rule. The "type" and "option" names are reported for
// failures of the field type itself rather than a configured rule.
type RuleType string

const (
	RuleRequired  RuleType = "required"
	RuleMinLength RuleType = "minLength"
	RuleMaxLength RuleType = "maxLength"
	RulePattern   RuleType = "pattern"
	RuleMin       RuleType = "min"
	RuleMax       RuleType = "max"
	RuleEmail     RuleType = "email"
	RuleURL       RuleType = "url"
	RuleCustom    RuleType = "custom"

	RuleTypeMismatch RuleType = "type"
	RuleOption       RuleType = "option"

	// authoring failures
	RuleReference RuleType = "reference"
	RuleUnique    RuleType = "unique"
)

// priority orders rule evaluation within one field; lower runs first.
func (r RuleType) priority() int {
	switch r {
	case RuleRequired:
		return 0
	case RuleTypeMismatch, RuleOption, RuleEmail, RuleURL:
		return 1
	case RulePattern:
		return 2
	case RuleMin, RuleMax:
		return 3
	case RuleMinLength, RuleMaxLength:
		return 4
	case RuleCustom:
		return 5
	}
	return 6
}

// Rule is one configured check on a field.
type Rule struct {
	Type    RuleType    `json:"type"`
	Value   interface{} `json:"value,omitempty"`
	Message string      `json:"message,omitempty"`
}

func (r Rule) stringValue() string {
	switch v := r.Value.(type) {
	case string:
		return v
	case nil:
		return ""
	}
	return fmt.Sprint(r.Value)
}

func (r Rule) numberValue() (float64, bool) {
	switch v := r.Value.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		n, err := v.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(v, 64)
		return n, err == nil
	}
	return 0, false
}

func (r Rule) dateValue() (time.Time, bool) {
	s, ok := r.Value.(string)
	if !ok {
		return time.Time{}, false
	}
	return parseDate(s)
}

var patternCache sync.Map

func compilePattern(expr string) (*regexp.Regexp, error) {
	if re, ok := patternCache.Load(expr); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	patternCache.Store(expr, re)
	return re, nil
}

// CustomCheck is a named check usable from a "custom" rule.
type CustomCheck func(s string) bool

var (
	alphaRe        = regexp.MustCompile(`^[\p{L} '\-]+$`)
	alphanumericRe = regexp.MustCompile(`^[\p{L}\p{N}]+$`)
	digitsRe       = regexp.MustCompile(`^[0-9]+$`)
	phoneRe        = regexp.MustCompile(`^\+?[0-9 ()\-.]{7,20}$`)
	postalCodeRe   = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 \-]{1,8}[A-Za-z0-9]$`)
	whitespaceRe   = regexp.MustCompile(`\s`)
)

var customChecks = map[string]CustomCheck{
	"alpha":        alphaRe.MatchString,
	"alphanumeric": alphanumericRe.MatchString,
	"digits":       digitsRe.MatchString,
	"phone":        phoneRe.MatchString,
	"postalCode":   postalCodeRe.MatchString,
	"noWhitespace": func(s string) bool { return !whitespaceRe.MatchString(s) },
}

// CustomCheckNames lists the registered custom checks.
func CustomCheckNames() []string {
	return []string{"alpha", "alphanumeric", "digits", "phone", "postalCode", "noWhitespace"}
}

func lookupCustom(name string) (CustomCheck, bool) {
	c, ok := customChecks[name]
	return c, ok
}
