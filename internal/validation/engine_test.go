package validation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func emailField() ConfiguredField {
	return ConfiguredField{
		FieldID:    "f-email",
		Name:       "email",
		Label:      "Email",
		Type:       FieldEmail,
		Validation: []Rule{{Type: RuleEmail}},
		IsVisible:  true,
		IsRequired: true,
		Order:      1,
	}
}

func TestValidateEmailScenario(t *testing.T) {
	fields := []ConfiguredField{emailField()}

	res := Validate(fields, Payload{"email": String("not-an-email")}, Strict)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "email", res.Errors[0].Field)
	assert.Equal(t, RuleEmail, res.Errors[0].Rule)

	res = Validate(fields, Payload{}, Strict)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, RuleRequired, res.Errors[0].Rule)

	res = Validate(fields, Payload{"email": String("a@b.co")}, Strict)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidateDraftLeniency(t *testing.T) {
	fields := []ConfiguredField{emailField()}

	assert.True(t, Validate(fields, Payload{}, Lenient).Valid)
	assert.True(t, Validate(fields, Payload{"email": String("  ")}, Lenient).Valid)

	// present values are still checked in lenient mode
	res := Validate(fields, Payload{"email": String("nope")}, Lenient)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, RuleEmail, res.Errors[0].Rule)
}

func TestValidateIgnoresInvisibleAndUnknown(t *testing.T) {
	hidden := emailField()
	hidden.IsVisible = false
	res := Validate([]ConfiguredField{hidden}, Payload{"email": String("x"), "other": Number(1)}, Strict)
	assert.True(t, res.Valid)
}

func TestValidateErrorOrder(t *testing.T) {
	fields := []ConfiguredField{
		{Name: "zeta", Type: FieldText, IsVisible: true, IsRequired: true, Order: 2},
		{Name: "beta", Type: FieldText, IsVisible: true, IsRequired: true, Order: 1},
		{Name: "alpha", Type: FieldText, IsVisible: true, IsRequired: true, Order: 2},
	}
	res := Validate(fields, Payload{}, Strict)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, []string{"beta", "alpha", "zeta"}, []string{res.Errors[0].Field, res.Errors[1].Field, res.Errors[2].Field})
}

func TestValidateRulePriority(t *testing.T) {
	f := ConfiguredField{
		Name:      "code",
		Type:      FieldText,
		IsVisible: true,
		Validation: []Rule{
			{Type: RuleMinLength, Value: float64(5)},
			{Type: RuleCustom, Value: "digits"},
			{Type: RulePattern, Value: "^[A-Z]+$", Message: "upper case only"},
		},
	}
	res := Validate([]ConfiguredField{f}, Payload{"code": String("ab")}, Strict)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, RulePattern, res.Errors[0].Rule)
	assert.Equal(t, "upper case only", res.Errors[0].Message)

	res = Validate([]ConfiguredField{f}, Payload{"code": String("AB")}, Strict)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, RuleMinLength, res.Errors[0].Rule)

	res = Validate([]ConfiguredField{f}, Payload{"code": String("ABCDE")}, Strict)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, RuleCustom, res.Errors[0].Rule)
}

func TestValidateTypes(t *testing.T) {
	cases := []struct {
		name  string
		field ConfiguredField
		value Value
		rule  RuleType
	}{
		{"number ok", ConfiguredField{Type: FieldNumber}, String("12.5"), ""},
		{"number bad", ConfiguredField{Type: FieldNumber}, String("twelve"), RuleTypeMismatch},
		{"number min", ConfiguredField{Type: FieldNumber, Validation: []Rule{{Type: RuleMin, Value: float64(18)}}}, Number(17), RuleMin},
		{"number max", ConfiguredField{Type: FieldNumber, Validation: []Rule{{Type: RuleMax, Value: "100"}}}, Number(100), ""},
		{"date iso", ConfiguredField{Type: FieldDate}, String("2026-01-31"), ""},
		{"date rfc3339", ConfiguredField{Type: FieldDate}, String("2026-01-31T10:00:00Z"), ""},
		{"date bad", ConfiguredField{Type: FieldDate}, String("31/01/2026"), RuleTypeMismatch},
		{"date min", ConfiguredField{Type: FieldDate, Validation: []Rule{{Type: RuleMin, Value: "2000-01-01"}}}, String("1999-12-31"), RuleMin},
		{"url ok", ConfiguredField{Type: FieldURL}, String("https://example.com/x"), ""},
		{"url bad", ConfiguredField{Type: FieldURL}, String("example"), RuleURL},
		{"select ok", ConfiguredField{Type: FieldSelect, Options: []Option{{Value: "a"}, {Value: "b"}}}, String("b"), ""},
		{"select bad", ConfiguredField{Type: FieldSelect, Options: []Option{{Value: "a"}}}, String("z"), RuleOption},
		{"multiselect ok", ConfiguredField{Type: FieldMultiselect, Options: []Option{{Value: "a"}, {Value: "b"}}}, List("a", "b"), ""},
		{"multiselect bad", ConfiguredField{Type: FieldMultiselect, Options: []Option{{Value: "a"}}}, List("a", "c"), RuleOption},
		{"multiselect max", ConfiguredField{Type: FieldMultiselect, Validation: []Rule{{Type: RuleMaxLength, Value: float64(1)}}}, List("a", "b"), RuleMaxLength},
		{"checkbox bool", ConfiguredField{Type: FieldCheckbox}, Bool(true), ""},
		{"checkbox not bool", ConfiguredField{Type: FieldCheckbox}, String("yes"), RuleTypeMismatch},
		{"file ok", ConfiguredField{Type: FieldFile}, Files(FileRef{URL: "/uploads/cv.pdf"}), ""},
		{"file missing ref", ConfiguredField{Type: FieldFile}, Files(FileRef{Name: "cv.pdf"}), RuleTypeMismatch},
		{"text list", ConfiguredField{Type: FieldText}, List("a"), RuleTypeMismatch},
		{"text maxLength runes", ConfiguredField{Type: FieldText, Validation: []Rule{{Type: RuleMaxLength, Value: float64(3)}}}, String("äöü"), ""},
		{"custom phone", ConfiguredField{Type: FieldTel, Validation: []Rule{{Type: RuleCustom, Value: "phone"}}}, String("+1 (555) 010-9999"), ""},
		{"custom noWhitespace", ConfiguredField{Type: FieldText, Validation: []Rule{{Type: RuleCustom, Value: "noWhitespace"}}}, String("a b"), RuleCustom},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := tc.field
			f.Name = "value"
			f.IsVisible = true
			res := Validate([]ConfiguredField{f}, Payload{"value": tc.value}, Strict)
			if tc.rule == "" {
				assert.True(t, res.Valid, "%+v", res.Errors)
				return
			}
			require.Len(t, res.Errors, 1)
			assert.Equal(t, tc.rule, res.Errors[0].Rule)
		})
	}
}

func TestValidateRequiredCheckbox(t *testing.T) {
	f := ConfiguredField{Name: "terms", Type: FieldCheckbox, IsVisible: true, IsRequired: true}
	res := Validate([]ConfiguredField{f}, Payload{"terms": Bool(false)}, Strict)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, RuleRequired, res.Errors[0].Rule)
	assert.True(t, Validate([]ConfiguredField{f}, Payload{"terms": Bool(true)}, Strict).Valid)
}

func TestStrictIsSupersetOfLenient(t *testing.T) {
	fields := []ConfiguredField{
		emailField(),
		{Name: "age", Type: FieldNumber, IsVisible: true, IsRequired: true, Validation: []Rule{{Type: RuleMin, Value: float64(16)}}, Order: 2},
		{Name: "bio", Type: FieldTextarea, IsVisible: true, Validation: []Rule{{Type: RuleMaxLength, Value: float64(10)}}, Order: 3},
	}
	payloads := []Payload{
		{},
		{"email": String("a@b.co")},
		{"email": String("a@b.co"), "age": Number(20)},
		{"email": String("bad"), "age": Number(10)},
		{"age": Number(30), "bio": String("much too long for this")},
		{"email": String("a@b.co"), "age": Number(20), "bio": String("short")},
	}

	for i, p := range payloads {
		strict := Validate(fields, p, Strict)
		lenient := Validate(fields, p, Lenient)
		if strict.Valid {
			assert.True(t, lenient.Valid, "payload %d", i)
		}
		lenientFields := map[string]bool{}
		for _, e := range lenient.Errors {
			lenientFields[e.Field] = true
		}
		for _, e := range strict.Errors {
			if e.Rule != RuleRequired {
				assert.True(t, lenientFields[e.Field], "payload %d field %s", i, e.Field)
			}
		}
		assert.LessOrEqual(t, len(lenient.Errors), len(strict.Errors), "payload %d", i)
	}
}

func TestPayloadFromJSON(t *testing.T) {
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "Ada",
		"age": 36,
		"subscribed": true,
		"topics": ["math", "engines"],
		"cv": {"url": "/uploads/cv.pdf", "name": "cv.pdf", "size": 1200},
		"photos": [{"id": "p1"}, {"id": "p2"}],
		"middle": null
	}`), &raw))

	p := PayloadFromMap(raw)
	assert.Equal(t, KindString, p["name"].Kind)
	assert.Equal(t, float64(36), p["age"].Num)
	assert.Equal(t, KindBool, p["subscribed"].Kind)
	assert.Equal(t, []string{"math", "engines"}, p["topics"].List)
	assert.Equal(t, KindFile, p["cv"].Kind)
	assert.Equal(t, int64(1200), p["cv"].Files[0].Size)
	assert.Len(t, p["photos"].Files, 2)
	assert.Equal(t, KindNull, p["middle"].Kind)

	var v Value
	require.NoError(t, json.Unmarshal([]byte(`[1, 2]`), &v))
	assert.Equal(t, []string{"1", "2"}, v.List)
	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `["1","2"]`, string(out))
}

func TestOptionUnmarshal(t *testing.T) {
	var opts []Option
	require.NoError(t, json.Unmarshal([]byte(`["Yes", {"value": "no"}, {"label": "Maybe", "value": "m"}]`), &opts))
	assert.Equal(t, []Option{{Label: "Yes", Value: "Yes"}, {Label: "no", Value: "no"}, {Label: "Maybe", Value: "m"}}, opts)
}
