package service

import (
	"bytes"
	"encoding/json"
	"strings"

	"gorm.io/datatypes"
)

type listKind int

const (
	listAbsent listKind = iota
	listText
	listItems
	listUnsupported
)

// ListValue is the decoded shape of a list valued field: free text (CSV or
// JSON array text) or a native JSON array.
type ListValue struct {
	kind  listKind
	text  string
	items []interface{}
}

// UnmarshalJSON accepts strings and arrays; any other JSON value is kept as
// unsupported and rejected during normalization.
func (v *ListValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")):
		*v = ListValue{kind: listAbsent}
	case trimmed[0] == '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		*v = ListValue{kind: listText, text: text}
	case trimmed[0] == '[':
		var items []interface{}
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*v = ListValue{kind: listItems, items: items}
	default:
		*v = ListValue{kind: listUnsupported}
	}
	return nil
}

// TextList builds a ListValue from free text.
func TextList(text string) ListValue {
	return ListValue{kind: listText, text: text}
}

// ItemList builds a ListValue from native items.
func ItemList(items ...interface{}) ListValue {
	return ListValue{kind: listItems, items: items}
}

// IsPresent reports whether the field was supplied with a non-empty value.
func (v ListValue) IsPresent() bool {
	switch v.kind {
	case listAbsent:
		return false
	case listText:
		return v.text != ""
	default:
		return true
	}
}

// NormalizeList converts a list value into its canonical encoding: a compact
// JSON array. Blank results come back as nil so the column stays NULL.
func NormalizeList(v ListValue) (datatypes.JSON, bool) {
	if !v.IsPresent() {
		return nil, true
	}
	switch v.kind {
	case listText:
		if strings.HasPrefix(strings.TrimSpace(v.text), "[") {
			return compactJSONArray(v.text)
		}
		return encodeStrings(splitCSV(v.text))
	case listItems:
		kept := make([]string, 0, len(v.items))
		for _, item := range v.items {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				kept = append(kept, s)
			}
		}
		return encodeStrings(kept)
	default:
		return nil, false
	}
}

// DecodeList reads a canonical list back into strings; non-string entries are
// skipped and an empty list comes back as nil.
func DecodeList(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func splitCSV(text string) []string {
	parts := strings.Split(text, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

func compactJSONArray(text string) (datatypes.JSON, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		return nil, false
	}
	if len(items) == 0 {
		return nil, true
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(strings.TrimSpace(text))); err != nil {
		return nil, false
	}
	return datatypes.JSON(buf.Bytes()), true
}

func encodeStrings(items []string) (datatypes.JSON, bool) {
	if len(items) == 0 {
		return nil, true
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(items); err != nil {
		return nil, false
	}
	return datatypes.JSON(bytes.TrimRight(buf.Bytes(), "\n")), true
}
