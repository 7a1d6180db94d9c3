package main

// server.go

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tectiv3/gemini-web/llm"
	"github.com/tectiv3/gemini-web/uploads"
)

const (
	defaultListenAddr     = ":5000"
	defaultUploadDir      = "static/uploads"
	defaultProvider       = "gemini"
	defaultModel          = "gemini-1.5-flash"
	defaultModelTimeout   = 60
	defaultReadyTimeout   = 30
	defaultTemperature    = 0.85
	defaultTopP           = 0.9
	defaultTopK           = 40
	defaultMaxOutputToken = 2048

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

// load config at given path; a missing file leaves the defaults and environment
func loadConfig(fpath string) (conf config, err error) {
	var bytes []byte
	if bytes, err = os.ReadFile(fpath); err == nil {
		if err = json.Unmarshal(bytes, &conf); err != nil {
			return config{}, fmt.Errorf("parse %s: %w", fpath, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return config{}, err
	}

	if err = applyEnv(&conf); err != nil {
		return config{}, err
	}
	applyDefaults(&conf)

	if err = validateConfig(conf); err != nil {
		return config{}, err
	}

	return conf, nil
}

func applyEnv(conf *config) error {
	str := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v := strings.TrimSpace(os.Getenv(key)); v != "" {
				*dst = v
				return
			}
		}
	}

	str(&conf.GeminiAPIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	str(&conf.OpenAIAPIKey, "OPENAI_API_KEY")
	str(&conf.OllamaURL, "OLLAMA_HOST")
	str(&conf.Provider, "CHAT_PROVIDER")
	str(&conf.Model, "CHAT_MODEL")
	str(&conf.ListenAddr, "CHAT_LISTEN_ADDR")
	str(&conf.UploadDir, "CHAT_UPLOAD_DIR")
	str(&conf.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("CHAT_MODEL_TIMEOUT_SECONDS"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: CHAT_MODEL_TIMEOUT_SECONDS must be a number", ErrInvalidFormat)
		}
		conf.ModelTimeoutSeconds = seconds
	}
	if v := os.Getenv("CHAT_TEMPERATURE"); v != "" {
		temp, err := ValidateTemperature(v)
		if err != nil {
			return err
		}
		conf.Temperature = float32(temp)
	}

	return nil
}

func applyDefaults(conf *config) {
	conf.Provider = strings.ToLower(conf.Provider)
	if conf.Provider == "" {
		conf.Provider = defaultProvider
	}
	if conf.Model == "" {
		conf.Model = defaultModel
	}
	if conf.ListenAddr == "" {
		conf.ListenAddr = defaultListenAddr
	}
	if conf.UploadDir == "" {
		conf.UploadDir = defaultUploadDir
	}
	if conf.MaxUploadBytes <= 0 {
		conf.MaxUploadBytes = MaxFileSize
	}
	if conf.ModelTimeoutSeconds <= 0 {
		conf.ModelTimeoutSeconds = defaultModelTimeout
	}
	if conf.ReadyTimeoutSeconds <= 0 {
		conf.ReadyTimeoutSeconds = defaultReadyTimeout
	}
	if conf.Temperature == 0 {
		conf.Temperature = defaultTemperature
	}
	if conf.TopP == 0 {
		conf.TopP = defaultTopP
	}
	if conf.TopK == 0 {
		conf.TopK = defaultTopK
	}
	if conf.MaxOutputTokens == 0 {
		conf.MaxOutputTokens = defaultMaxOutputToken
	}
	if conf.LogLevel == "" {
		conf.LogLevel = "info"
	}
}

func validateConfig(conf config) error {
	if _, err := logrus.ParseLevel(conf.LogLevel); err != nil {
		return fmt.Errorf("%w: log level %q", ErrInvalidFormat, conf.LogLevel)
	}
	if _, err := ValidateTemperature(strconv.FormatFloat(float64(conf.Temperature), 'f', -1, 32)); err != nil {
		return err
	}

	switch conf.Provider {
	case "gemini", "google":
		if conf.GeminiAPIKey == "" {
			return fmt.Errorf("%w: GEMINI_API_KEY is not set", ErrInvalidInput)
		}
	case "openai":
		if conf.OpenAIAPIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrInvalidInput)
		}
	case "ollama", "dummy":
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidInput, conf.Provider)
	}

	return nil
}

// newServer builds the server. A model that fails to initialize or pass the
// readiness check leaves the server running without one.
func newServer(ctx context.Context, conf config) (*Server, error) {
	store, err := uploads.New(conf.UploadDir)
	if err != nil {
		return nil, err
	}

	s := &Server{conf: conf, store: store}

	model, err := llm.New(ctx, conf.settings())
	if err != nil {
		Log.WithField("provider", conf.Provider).WithField("error", err).Error("failed to initialize model")
		return s, nil
	}

	if o, ok := model.(*llm.Ollama); ok {
		if err := o.EnsureModel(ctx); err != nil {
			Log.WithField("model", conf.Model).WithField("error", err).Warn("failed to check ollama model")
		}
	}

	if err := llm.WaitReady(ctx, model, conf.readyTimeout()); err != nil {
		Log.WithField("provider", conf.Provider).WithField("error", err).Error("model did not answer the readiness check")
		if c, ok := model.(io.Closer); ok {
			_ = c.Close()
		}
		return s, nil
	}

	Log.WithField("provider", conf.Provider).WithField("model", conf.Model).Info("model initialized")
	s.model = model
	return s, nil
}

// launch server with given parameters
func runServer(conf config) {
	if level, err := logrus.ParseLevel(conf.LogLevel); err == nil {
		Log.SetLevel(level)
	}
	if conf.Verbose {
		Log.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := newServer(ctx, conf)
	if err != nil {
		Log.WithField("error", err).Error("failed to start server")
		return
	}
	if c, ok := s.model.(io.Closer); ok {
		defer c.Close()
	}

	srv := &http.Server{
		Addr:              conf.ListenAddr,
		Handler:           s.setupWebServer(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		Log.WithField("addr", conf.ListenAddr).Info("launching server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Log.WithField("error", err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	Log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		Log.WithField("error", err).Error("shutdown failed")
	}
}
