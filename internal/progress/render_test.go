package progress

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func testReport() *Report {
	return &Report{
		Version:   "GAME01",
		Revision:  "abc123def456",
		Available: true,
		Modules: []ModuleReport{{
			Module: 0,
			Categories: []CategoryReport{{
				ID: "game", Name: "Game Code",
				Code: Fraction{Matched: 100, Total: 150},
			}},
			Overall: CategoryReport{
				ID: "all", Name: "Overall",
				Code: Fraction{Matched: 150, Total: 200},
			},
			Fancy:      []FancyStat{{Value: 22.5, Out: 30, Item: "ship parts"}},
			Unmeasured: []string{"engine/render"},
		}},
	}
}

func TestRenderJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, testReport(), FormatJSON))

	var decoded Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, testReport(), &decoded)
}

func TestRenderYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, testReport(), FormatYAML))

	var decoded Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, testReport(), &decoded)
}

func TestRenderText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, testReport(), FormatText))

	out := buf.String()
	assert.Contains(t, out, "GAME01")
	assert.Contains(t, out, "abc123def456")
	assert.Contains(t, out, "Game Code")
	assert.Contains(t, out, "ship parts")
	assert.Contains(t, out, "engine/render")
}

func TestRenderTextUnavailable(t *testing.T) {
	var buf bytes.Buffer
	report := &Report{Version: "GAME01"}
	require.NoError(t, Render(&buf, report, FormatText))
	assert.Contains(t, strings.ToLower(buf.String()), "unavailable")
}

func TestRenderUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Render(&buf, testReport(), "xml"))
}
