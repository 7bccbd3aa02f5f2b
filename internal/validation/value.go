package validation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind tags the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindList
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindFile:
		return "file"
	}
	return "null"
}

// FileRef points at a stored upload. Binary content never passes through here.
type FileRef struct {
	ID       string `json:"id,omitempty"`
	URL      string `json:"url,omitempty"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

func (f FileRef) valid() bool {
	return strings.TrimSpace(f.ID) != "" || strings.TrimSpace(f.URL) != ""
}

// Value is one submitted answer.
type Value struct {
	Kind  Kind
	Str   string
	Num   float64
	Bool  bool
	List  []string
	Files []FileRef
}

func Null() Value                 { return Value{Kind: KindNull} }
func String(s string) Value       { return Value{Kind: KindString, Str: s} }
func Number(n float64) Value      { return Value{Kind: KindNumber, Num: n} }
func Bool(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func List(items ...string) Value  { return Value{Kind: KindList, List: items} }
func Files(refs ...FileRef) Value { return Value{Kind: KindFile, Files: refs} }

// FromAny converts a decoded JSON value (encoding/json generic form) into a Value.
func FromAny(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case string:
		return String(t)
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case json.Number:
		if n, err := t.Float64(); err == nil {
			return Number(n)
		}
		return String(t.String())
	case map[string]interface{}:
		return Files(fileRefFromMap(t))
	case []string:
		return List(t...)
	case []interface{}:
		if len(t) > 0 && allMaps(t) {
			refs := make([]FileRef, 0, len(t))
			for _, item := range t {
				refs = append(refs, fileRefFromMap(item.(map[string]interface{})))
			}
			return Files(refs...)
		}
		items := make([]string, 0, len(t))
		for _, item := range t {
			if item == nil {
				continue
			}
			items = append(items, scalarString(item))
		}
		return List(items...)
	}
	return String(fmt.Sprint(v))
}

func allMaps(items []interface{}) bool {
	for _, item := range items {
		if _, ok := item.(map[string]interface{}); !ok {
			return false
		}
	}
	return true
}

func fileRefFromMap(m map[string]interface{}) FileRef {
	ref := FileRef{
		ID:       stringField(m, "id"),
		URL:      stringField(m, "url"),
		Name:     stringField(m, "name"),
		MimeType: stringField(m, "mimeType"),
	}
	if size, ok := m["size"].(float64); ok {
		ref.Size = int64(size)
	}
	return ref
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key]; ok && v != nil {
		return scalarString(v)
	}
	return ""
}

func scalarString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return fmt.Sprint(v)
}

// UnmarshalJSON decodes any JSON value into the matching variant.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// MarshalJSON writes the variant back to its natural JSON form.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindString:
		return json.Marshal(v.Str)
	case KindNumber:
		return json.Marshal(v.Num)
	case KindBool:
		return json.Marshal(v.Bool)
	case KindList:
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	case KindFile:
		if len(v.Files) == 1 {
			return json.Marshal(v.Files[0])
		}
		return json.Marshal(v.Files)
	}
	return []byte("null"), nil
}

// Strings returns the textual form of each element; scalars yield one element.
func (v Value) Strings() []string {
	switch v.Kind {
	case KindString:
		return []string{v.Str}
	case KindNumber:
		return []string{strconv.FormatFloat(v.Num, 'f', -1, 64)}
	case KindBool:
		return []string{strconv.FormatBool(v.Bool)}
	case KindList:
		return v.List
	}
	return nil
}

// Payload maps a ConfiguredField name to its submitted value.
type Payload map[string]Value

// PayloadFromMap converts a decoded JSON object into a Payload.
func PayloadFromMap(raw map[string]interface{}) Payload {
	p := make(Payload, len(raw))
	for k, v := range raw {
		p[k] = FromAny(v)
	}
	return p
}
