package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSONLeniently_PlainObject(t *testing.T) {
	var dst struct {
		A int `json:"a"`
	}
	err := ParseJSONLeniently(`{"a": 42}`, &dst)
	require.NoError(t, err)
	assert.Equal(t, 42, dst.A)
}

func TestParseJSONLeniently_CodeFenced(t *testing.T) {
	var dst struct {
		Ok bool `json:"ok"`
	}
	err := ParseJSONLeniently("```json\n{\"ok\": true}\n```", &dst)
	require.NoError(t, err)
	assert.True(t, dst.Ok)
}

func TestParseJSONLeniently_LeadingProse(t *testing.T) {
	var dst struct {
		Summary string `json:"summary"`
	}
	err := ParseJSONLeniently(`Sure, here is the analysis: {"summary": "looks good"} -- end`, &dst)
	require.NoError(t, err)
	assert.Equal(t, "looks good", dst.Summary)
}

func TestParseJSONLeniently_NestedBraces(t *testing.T) {
	var dst struct {
		Outer struct {
			Inner int `json:"inner"`
		} `json:"outer"`
	}
	err := ParseJSONLeniently(`{"outer": {"inner": 7}}`, &dst)
	require.NoError(t, err)
	assert.Equal(t, 7, dst.Outer.Inner)
}

func TestParseJSONLeniently_NoJSON(t *testing.T) {
	var dst map[string]any
	err := ParseJSONLeniently("no json here at all", &dst)
	assert.Error(t, err)
}

func TestParseJSONLeniently_BraceInsideString(t *testing.T) {
	var dst struct {
		Text string `json:"text"`
	}
	err := ParseJSONLeniently(`{"text": "a { b } c"}`, &dst)
	require.NoError(t, err)
	assert.Equal(t, "a { b } c", dst.Text)
}
