package service

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeList(t *testing.T) {
	cases := []struct {
		name  string
		value ListValue
		want  string
		ok    bool
	}{
		{"absent", ListValue{}, "", true},
		{"empty text", TextList(""), "", true},
		{"csv keeps duplicates drops blanks", TextList("a, b, b,  "), `["a","b","b"]`, true},
		{"csv only blanks", TextList(" , ,"), "", true},
		{"json text compacted", TextList(`[ "go", "web" ]`), `["go","web"]`, true},
		{"json text empty array", TextList("[]"), "", true},
		{"json text malformed", TextList(`["go",`), "", false},
		{"native items", ItemList("a", " ", 3, nil, "b"), `["a","b"]`, true},
		{"native items untrimmed", ItemList(" padded "), `[" padded "]`, true},
		{"native only blanks", ItemList("", "  "), "", true},
		{"html is not escaped", TextList("<b>bold</b>, a&b"), `["<b>bold</b>","a&b"]`, true},
		{"unsupported", ListValue{kind: listUnsupported}, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NormalizeList(tc.value)
			assert.Equal(t, tc.ok, ok)
			if tc.want == "" {
				assert.Nil(t, got)
				return
			}
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestListValueUnmarshalJSON(t *testing.T) {
	var payload struct {
		Text    ListValue `json:"text"`
		Items   ListValue `json:"items"`
		Null    ListValue `json:"null"`
		Number  ListValue `json:"number"`
		Object  ListValue `json:"object"`
		Missing ListValue `json:"missing"`
	}
	body := `{"text":"a,b","items":["x",1],"null":null,"number":7,"object":{"a":1}}`
	require.NoError(t, json.Unmarshal([]byte(body), &payload))

	assert.Equal(t, TextList("a,b"), payload.Text)
	assert.Equal(t, listItems, payload.Items.kind)
	assert.Equal(t, listAbsent, payload.Null.kind)
	assert.Equal(t, listUnsupported, payload.Number.kind)
	assert.Equal(t, listUnsupported, payload.Object.kind)
	assert.Equal(t, listAbsent, payload.Missing.kind)

	assert.True(t, payload.Text.IsPresent())
	assert.False(t, payload.Missing.IsPresent())
}

func TestDecodeList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, DecodeList([]byte(`["a",2,"b"]`)))
	assert.Nil(t, DecodeList(nil))
	assert.Nil(t, DecodeList([]byte("not json")))
	assert.Empty(t, DecodeList([]byte("null")))
}
