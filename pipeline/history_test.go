package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHistory(t *testing.T) {
	turns, err := ParseHistory([]byte(`[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]`))
	require.NoError(t, err)
	assert.Equal(t, []Turn{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}}, turns)
}

func TestParseHistoryLenientTurns(t *testing.T) {
	turns, err := ParseHistory([]byte(`[
		{"role":"user","content":5},
		{"role":"assistant","content":null},
		{"role":"user"},
		"stray",
		null,
		{"role":7,"content":{"a":1}}
	]`))
	require.NoError(t, err)
	assert.Equal(t, []Turn{
		{Role: "user", Content: "5"},
		{Role: "assistant", Content: ""},
		{Role: "user", Content: ""},
		{Role: "7", Content: `{"a":1}`},
	}, turns)
	assert.Equal(t, "\n\nCONVERSATION CONTEXT:\nUser: 5\nAssistant: \nUser: \nAssistant: {\"a\":1}\n\n", BuildContext(turns))
}

func TestParseHistoryEmpty(t *testing.T) {
	for _, raw := range []string{"", "  ", "null", "[]"} {
		turns, err := ParseHistory([]byte(raw))
		assert.NoError(t, err, raw)
		assert.Empty(t, turns, raw)
	}
}

func TestParseHistoryMalformed(t *testing.T) {
	for _, raw := range []string{"[{not json", `{"role":"user"}`, `"history"`, "42"} {
		_, err := ParseHistory([]byte(raw))
		assert.Error(t, err, raw)
	}
}
