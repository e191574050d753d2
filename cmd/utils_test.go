package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnumValue(t *testing.T) {
	e := NewEnumValue("text", map[string]string{
		"text": "Human-readable",
		"json": "Machine-readable",
	})

	assert.Equal(t, "text", e.Value())
	assert.Equal(t, []string{"json", "text"}, e.AllowedKeys())
	assert.Equal(t, "[json, text]", e.HelpString())

	require.NoError(t, e.Set("json"))
	assert.Equal(t, "json", e.Value())

	assert.Error(t, e.Set("xml"))
	assert.Equal(t, "json", e.Value())
}

func TestEnumValueBadDefault(t *testing.T) {
	assert.Panics(t, func() {
		NewEnumValue("nope", map[string]string{"text": ""})
	})
}
