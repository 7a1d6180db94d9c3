package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sashabaranov/go-openai"
)

type OpenAI struct {
	Client   *openai.Client
	Settings Settings
}

func NewOpenAI(s Settings) (*OpenAI, error) {
	apiKey := s.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("missing OPENAI_API_KEY")
	}

	conf := openai.DefaultConfig(apiKey)
	if s.BaseURL != "" {
		conf.BaseURL = s.BaseURL
	}

	return &OpenAI{Client: openai.NewClientWithConfig(conf), Settings: s}, nil
}

func (o *OpenAI) Generate(ctx context.Context, p Prompt) (string, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if p.Attachment == nil {
		msg.Content = p.Text
	} else {
		msg.MultiContent = []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: p.Text},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    fmt.Sprintf("data:%s;base64,%s", p.Attachment.MIMEType, p.Attachment.Encoded()),
					Detail: openai.ImageURLDetailAuto,
				},
			},
		}
	}

	resp, err := o.Client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.Settings.Model,
		Messages:    []openai.ChatCompletionMessage{msg},
		Temperature: o.Settings.Temperature,
		TopP:        o.Settings.TopP,
		MaxTokens:   int(o.Settings.MaxOutputTokens),
		N:           int(o.Settings.CandidateCount),
	})
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Message.Content, nil
}
