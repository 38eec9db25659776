package utils

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 10))
	assert.Equal(t, "anything", tp.TruncateText("anything", 0))
	assert.Equal(t, "abc"+TruncationMarker, tp.TruncateText("abcdef", 3))
}

func TestTruncateText_KeepsRunesWhole(t *testing.T) {
	tp := NewTextProcessor(nil)

	// "é" is two bytes; cutting after three bytes would split the second one
	out := tp.TruncateText("éé-tail", 3)

	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, "é"+TruncationMarker, out)
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(nil)

	assert.Equal(t, "valid", tp.SanitizeUTF8("valid"))
	assert.Equal(t, "ab", tp.SanitizeUTF8("a\xffb"))
}

func TestProcessText(t *testing.T) {
	tp := NewTextProcessor(nil)

	out := tp.ProcessText(strings.Repeat("x", 20)+"\xff", 10)

	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasPrefix(out, strings.Repeat("x", 10)))
}

func TestExtractJSONObject(t *testing.T) {
	type reply struct {
		Probability float64 `json:"probability"`
		Explanation string  `json:"explanation"`
	}

	tests := []struct {
		name string
		text string
	}{
		{"bare", `{"probability": 0.8, "explanation": "lure"}`},
		{"prose", `Here is my answer: {"probability": 0.8, "explanation": "lure"} Thanks.`},
		{"fenced", "```json\n{\"probability\": 0.8, \"explanation\": \"lure\"}\n```"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r reply
			require.NoError(t, ExtractJSONObject(tt.text, &r))
			assert.Equal(t, 0.8, r.Probability)
			assert.Equal(t, "lure", r.Explanation)
		})
	}
}

func TestExtractJSONObject_Errors(t *testing.T) {
	var out map[string]interface{}

	assert.ErrorIs(t, ExtractJSONObject("no json here", &out), ErrNoJSONObject)
	assert.ErrorIs(t, ExtractJSONObject("} backwards {", &out), ErrNoJSONObject)
	assert.Error(t, ExtractJSONObject("{not: valid}", &out))
}

func TestParseProbabilityReply(t *testing.T) {
	reply, err := ParseProbabilityReply("Sure! {\"probability\": 0.0, \"explanation\": \"newsletter\"}")
	require.NoError(t, err)
	require.NotNil(t, reply.Probability)
	assert.Equal(t, 0.0, *reply.Probability)
	assert.Equal(t, "newsletter", reply.Explanation)

	_, err = ParseProbabilityReply(`{"explanation": "forgot the number"}`)
	assert.Error(t, err)

	_, err = ParseProbabilityReply("I cannot help with that")
	assert.Error(t, err)
}

func TestBuildPhishingPrompt(t *testing.T) {
	prompt := BuildPhishingPrompt("verify your account")

	assert.Contains(t, prompt, "Email body:\nverify your account\n")
	assert.NotContains(t, prompt, "%s")
}
