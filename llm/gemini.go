package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini talks to Google's Generative Language API.
type Gemini struct {
	Client *genai.Client
	model  *genai.GenerativeModel
}

func NewGemini(ctx context.Context, s Settings) (*Gemini, error) {
	apiKey := s.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("missing GEMINI_API_KEY or GOOGLE_API_KEY")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}

	model := client.GenerativeModel(s.Model)
	model.SetTemperature(s.Temperature)
	model.SetTopP(s.TopP)
	model.SetTopK(s.TopK)
	model.SetMaxOutputTokens(s.MaxOutputTokens)
	model.SetCandidateCount(s.CandidateCount)

	return &Gemini{Client: client, model: model}, nil
}

func (g *Gemini) Generate(ctx context.Context, p Prompt) (string, error) {
	parts := []genai.Part{genai.Text(p.Text)}
	if p.Attachment != nil {
		parts = append(parts, genai.Blob{MIMEType: p.Attachment.MIMEType, Data: p.Attachment.Data})
	}

	resp, err := g.model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}

	return b.String(), nil
}

func (g *Gemini) Close() error {
	return g.Client.Close()
}
