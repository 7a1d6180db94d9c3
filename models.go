package main

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tectiv3/gemini-web/llm"
	"github.com/tectiv3/gemini-web/uploads"
)

var Log = logrus.New()

// config struct for loading a configuration file
type config struct {
	ListenAddr string `json:"listen_addr"`
	UploadDir  string `json:"upload_dir"`

	// bytes; larger uploads are rejected
	MaxUploadBytes int64 `json:"max_upload_bytes"`

	// model api
	Provider        string  `json:"provider"`
	Model           string  `json:"model"`
	GeminiAPIKey    string  `json:"gemini_api_key"`
	OpenAIAPIKey    string  `json:"openai_api_key"`
	OllamaURL       string  `json:"ollama_url"`
	Temperature     float32 `json:"temperature"`
	TopP            float32 `json:"top_p"`
	TopK            int32   `json:"top_k"`
	MaxOutputTokens int32   `json:"max_output_tokens"`

	ModelTimeoutSeconds int `json:"model_timeout_seconds"`
	ReadyTimeoutSeconds int `json:"ready_timeout_seconds"`

	// other configurations
	LogLevel string `json:"log_level"`
	Verbose  bool   `json:"verbose,omitempty"`
}

func (c config) modelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSeconds) * time.Second
}

func (c config) readyTimeout() time.Duration {
	return time.Duration(c.ReadyTimeoutSeconds) * time.Second
}

// settings maps the config onto provider settings.
func (c config) settings() llm.Settings {
	s := llm.Settings{
		Provider:        c.Provider,
		Model:           c.Model,
		Temperature:     c.Temperature,
		TopP:            c.TopP,
		TopK:            c.TopK,
		MaxOutputTokens: c.MaxOutputTokens,
		CandidateCount:  1,
	}
	switch c.Provider {
	case "openai":
		s.APIKey = c.OpenAIAPIKey
	case "ollama":
		s.BaseURL = c.OllamaURL
	default:
		s.APIKey = c.GeminiAPIKey
	}
	return s
}

type Server struct {
	conf  config
	model llm.Generator // nil when the model could not be initialized
	store *uploads.Store
}
