package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	assert.Equal(t, `{"a":1}`, ExtractJSONObject(`prefix {"a":1} suffix`))
	assert.Equal(t, "", ExtractJSONObject("nothing"))
	assert.Equal(t, `["x","y"]`, ExtractJSONArray(`items: ["x","y"].`))
	assert.Equal(t, "", ExtractJSONArray("] ["))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, "plain", StripFences("  plain "))
}

func TestDecodeJSON(t *testing.T) {
	var obj map[string]any
	lenient, err := DecodeJSON(`{"summary":"ok"}`, &obj)
	require.NoError(t, err)
	assert.False(t, lenient)
	assert.Equal(t, "ok", obj["summary"])

	var list []string
	lenient, err = DecodeJSON("Action items:\n[\"@ana ship it\", \"@bo review\"]", &list)
	require.NoError(t, err)
	assert.True(t, lenient)
	assert.Equal(t, []string{"@ana ship it", "@bo review"}, list)

	var relaxed map[string]any
	lenient, err = DecodeJSON("{summary: 'trailing', decisions: ['a',],}", &relaxed)
	require.NoError(t, err)
	assert.True(t, lenient)
	assert.Equal(t, "trailing", relaxed["summary"])

	var quoted map[string]any
	lenient, err = DecodeJSON(`Here you go: {summary: 'it\'s "done"', note: "don't panic",}`, &quoted)
	require.NoError(t, err)
	assert.True(t, lenient)
	assert.Equal(t, `it's "done"`, quoted["summary"])
	assert.Equal(t, "don't panic", quoted["note"])

	var none map[string]any
	_, err = DecodeJSON("no json here", &none)
	assert.ErrorIs(t, err, ErrNoJSON)
}

func TestSingleToDoubleQuotes(t *testing.T) {
	cases := map[string]string{
		`{a: 'x'}`:             `{a: "x"}`,
		`{"a": "it's"}`:        `{"a": "it's"}`,
		`['say "hi"']`:         `["say \"hi\""]`,
		`{a: 'o\'neil'}`:       `{a: "o'neil"}`,
		`{a: 'tab\tend'}`:      `{a: "tab\tend"}`,
		`{"a": "q\"", b: 'c'}`: `{"a": "q\"", b: "c"}`,
		`no quotes`:            `no quotes`,
	}
	for in, want := range cases {
		assert.Equal(t, want, SingleToDoubleQuotes(in), in)
	}
}

func TestImagePart_DataURI(t *testing.T) {
	p := ImagePart{MIMEType: "image/png", Data: []byte("hi")}
	assert.Equal(t, "data:image/png;base64,aGk=", p.DataURI())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrRateLimited))
	assert.True(t, IsTransient(ErrUnavailable))
	assert.False(t, IsTransient(ErrBadRequest))
}
