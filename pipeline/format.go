package pipeline

import (
	"regexp"
	"strings"
)

// FallbackAnswer is returned when the model produced nothing displayable.
const FallbackAnswer = "I'm not sure how to answer that."

// space is the body of a character class matching any Unicode whitespace,
// including the vertical tab, no-break and line/paragraph separators.
const space = `\s\v\p{Z}\x{85}\x1c-\x1f`

// Rule is a single rewrite step of the response formatter.
type Rule struct {
	Name  string
	Apply func(string) string
}

func replace(pattern, replacement string) func(string) string {
	re := regexp.MustCompile(pattern)
	return func(s string) string {
		return re.ReplaceAllString(s, replacement)
	}
}

// Rules is the ordered formatting chain. Later rules depend on the shape left by
// earlier ones, so the order must not change.
var Rules = []Rule{
	{"trim", strings.TrimSpace},

	// markdown markers
	{"asterisks", replace(`\*+`, "")},
	{"emphasis", replace("[_~`]+", "")},
	{"whitespace", replace(`[`+space+`]+`, " ")},

	// paragraph structure
	{"heading-line", replace(`\n([A-Z][A-Z`+space+`:]+:)\n`, "\n\n${1}\n")},
	{"heading-break", replace(`([A-Z][A-Z`+space+`]+:)([^\n])`, "${1}\n${2}")},
	{"numbered", replace(`\n(\d+\.)`, "\n\n${1}")},
	{"bullet", replace(`\n(-\s)`, "\n\n${1}")},
	{"sentence", replace(`([.!?])[`+space+`]*\n([A-Z])`, "${1}\n\n${2}")},

	{"blank-lines", replace(`\n{4,}`, "\n\n")},
	{"spaces", replace(`[ \t]+`, " ")},
	{"final-trim", strings.TrimSpace},
}

// Format cleans raw model output for display. The result is never empty.
func Format(text string) string {
	if strings.TrimSpace(text) == "" {
		return FallbackAnswer
	}

	for _, r := range Rules {
		text = r.Apply(text)
	}

	if text == "" {
		return FallbackAnswer
	}
	return text
}
