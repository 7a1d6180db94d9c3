package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/ollama/ollama/api"
	log "github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/schema"
)

const (
	defaultOllamaHost = "http://localhost:11434"
	ollamaNumCtx      = 16000
)

// Ollama generates through the langchaingo ollama model and manages installed
// models through the ollama api client.
type Ollama struct {
	Client   *api.Client
	LLM      *ollama.LLM
	Settings Settings
}

func NewOllama(s Settings) (*Ollama, error) {
	host := s.BaseURL
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = defaultOllamaHost
	}

	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	// request deadlines come from the caller's context
	httpClient := &http.Client{}
	model, err := ollama.New(
		ollama.WithModel(s.Model),
		ollama.WithServerURL(host),
		ollama.WithHTTPClient(httpClient),
		ollama.WithRunnerNumCtx(ollamaNumCtx),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama init: %w", err)
	}

	return &Ollama{Client: api.NewClient(u, httpClient), LLM: model, Settings: s}, nil
}

func (o *Ollama) Generate(ctx context.Context, p Prompt) (string, error) {
	parts := []llms.ContentPart{llms.TextPart(p.Text)}
	if p.Attachment != nil {
		parts = append(parts, llms.BinaryPart(p.Attachment.MIMEType, p.Attachment.Data))
	}

	resp, err := o.LLM.GenerateContent(ctx,
		[]llms.MessageContent{{Role: schema.ChatMessageTypeHuman, Parts: parts}},
		llms.WithTemperature(float64(o.Settings.Temperature)),
		llms.WithTopP(float64(o.Settings.TopP)),
		llms.WithTopK(int(o.Settings.TopK)),
		llms.WithMaxTokens(int(o.Settings.MaxOutputTokens)),
	)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Content, nil
}

// ModelNames lists the models installed on the ollama host.
func (o *Ollama) ModelNames(ctx context.Context) ([]string, error) {
	models, err := o.Client.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(models.Models))
	for _, model := range models.Models {
		names = append(names, model.Name)
	}
	return names, nil
}

// EnsureModel pulls the configured model when the host does not have it yet.
func (o *Ollama) EnsureModel(ctx context.Context) error {
	names, err := o.ModelNames(ctx)
	if err != nil {
		return err
	}
	want := modelTag(o.Settings.Model)
	for _, name := range names {
		if modelTag(name) == want {
			return nil
		}
	}

	log.WithField("model", o.Settings.Model).Info("Model does not exist, pulling it")
	var last string
	return o.Client.Pull(ctx, &api.PullRequest{Model: o.Settings.Model}, func(progress api.ProgressResponse) error {
		if pct := pullPercentage(progress); pct != last {
			log.WithField("model", o.Settings.Model).Info("Pulling model: ", pct)
			last = pct
		}
		return nil
	})
}

// modelTag spells out the implicit ":latest" tag so "llama3" and
// "llama3:latest" compare equal.
func modelTag(name string) string {
	name = strings.TrimSpace(name)
	if name != "" && !strings.Contains(name, ":") {
		return name + ":latest"
	}
	return name
}

func pullPercentage(progress api.ProgressResponse) string {
	return fmt.Sprintf("%d%%", (progress.Completed*100)/(progress.Total+1))
}
