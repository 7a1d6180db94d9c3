package pipeline

import "strings"

// HistoryWindow is the number of most recent turns fed back to the model.
const HistoryWindow = 10

const contextHeader = "\n\nCONVERSATION CONTEXT:\n"

// Turn is one message exchanged between the user and the assistant.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Window returns the last HistoryWindow turns, order preserved.
func Window(history []Turn) []Turn {
	if len(history) > HistoryWindow {
		return history[len(history)-HistoryWindow:]
	}
	return history
}

// BuildContext renders recent conversation turns as a text block for the prompt.
// Empty history yields an empty string.
func BuildContext(history []Turn) string {
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(contextHeader)
	for _, t := range Window(history) {
		b.WriteString(roleLabel(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	return b.String()
}

func roleLabel(role string) string {
	if role == "user" {
		return "User"
	}
	return "Assistant"
}
