package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	log "github.com/sirupsen/logrus"
)

const (
	pGemini = "gemini"
	pOpenAI = "openai"
	pOllama = "ollama"
	pDummy  = "dummy"
)

var ErrEmptyResponse = errors.New("model returned no content")

// Attachment is binary content sent next to the prompt text.
type Attachment struct {
	MIMEType string
	Data     []byte
}

// Encoded returns the attachment bytes as standard base64.
func (a Attachment) Encoded() string {
	return base64.StdEncoding.EncodeToString(a.Data)
}

// Prompt is the payload of one model call.
type Prompt struct {
	Text       string
	Attachment *Attachment
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (string, error)
}

// Settings are the sampling parameters shared by all providers.
type Settings struct {
	Provider        string
	Model           string
	APIKey          string
	BaseURL         string
	Temperature     float32
	TopP            float32
	TopK            int32
	MaxOutputTokens int32
	CandidateCount  int32
}

// New builds the generator for the configured provider.
func New(ctx context.Context, s Settings) (Generator, error) {
	switch strings.ToLower(s.Provider) {
	case pGemini, "google", "":
		return NewGemini(ctx, s)
	case pOpenAI:
		return NewOpenAI(s)
	case pOllama:
		return NewOllama(s)
	case pDummy:
		return NewDummy(s.Model), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", s.Provider)
	}
}

// ReplyKind tags the outcome of a model call.
type ReplyKind int

const (
	ReplyOK ReplyKind = iota
	ReplyEmpty
	ReplyUnavailable
	ReplyFailed
	ReplyTimeout
)

func (k ReplyKind) String() string {
	switch k {
	case ReplyOK:
		return "ok"
	case ReplyEmpty:
		return "empty"
	case ReplyUnavailable:
		return "unavailable"
	case ReplyFailed:
		return "failed"
	case ReplyTimeout:
		return "timeout"
	}
	return "unknown"
}

// Reply is the result of Invoke. Err is set for ReplyFailed and ReplyTimeout.
type Reply struct {
	Text string
	Kind ReplyKind
	Err  error
}

// Invoke calls the generator once, bounded by timeout when it is positive.
// A nil generator yields ReplyUnavailable without any call.
func Invoke(ctx context.Context, g Generator, p Prompt, timeout time.Duration) Reply {
	if g == nil {
		return Reply{Kind: ReplyUnavailable}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	text, err := g.Generate(ctx, p)
	switch {
	case err == nil && strings.TrimSpace(text) == "":
		return Reply{Kind: ReplyEmpty}
	case err == nil:
		return Reply{Text: text, Kind: ReplyOK}
	case errors.Is(err, ErrEmptyResponse):
		return Reply{Kind: ReplyEmpty}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return Reply{Kind: ReplyTimeout, Err: err}
	default:
		return Reply{Kind: ReplyFailed, Err: err}
	}
}

// WaitReady sends a short prompt and retries with exponential backoff until the model
// answers or maxElapsed passes. maxElapsed also bounds an attempt that hangs.
func WaitReady(ctx context.Context, g Generator, maxElapsed time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, maxElapsed)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxElapsed

	return backoff.Retry(func() error {
		text, err := g.Generate(ctx, Prompt{Text: "Hello"})
		if err != nil {
			log.WithField("error", err).Warn("model readiness check failed")
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if strings.TrimSpace(text) == "" {
			return ErrEmptyResponse
		}
		return nil
	}, backoff.WithContext(b, ctx))
}
