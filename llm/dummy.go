package llm

import (
	"context"
	"fmt"
	"strings"
)

// Dummy answers without any API call. Useful for local runs.
type Dummy struct {
	Prefix string
}

func NewDummy(prefix string) *Dummy {
	if strings.TrimSpace(prefix) == "" {
		prefix = "Dummy response:"
	}
	return &Dummy{Prefix: prefix}
}

// Generate echoes the last non-empty line of the prompt.
func (d *Dummy) Generate(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	lines := strings.Split(p.Text, "\n")
	var last string
	for i := len(lines) - 1; i >= 0; i-- {
		if candidate := strings.TrimSpace(lines[i]); candidate != "" {
			last = candidate
			break
		}
	}
	if last == "" {
		last = "<empty prompt>"
	}
	if p.Attachment != nil {
		return fmt.Sprintf("%s %s [%s, %d bytes]", d.Prefix, last, p.Attachment.MIMEType, len(p.Attachment.Data)), nil
	}

	return fmt.Sprintf("%s %s", d.Prefix, last), nil
}

var _ Generator = (*Dummy)(nil)
