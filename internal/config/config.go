// Package config aggregates service configuration from the
// environment. Provider-level settings live with their packages; this
// collects the app-level knobs the serve command wires together.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/codetutor/codetutor/internal/chat"
	"github.com/codetutor/codetutor/internal/embedding"
	"github.com/codetutor/codetutor/internal/llm"
	"github.com/codetutor/codetutor/internal/prompt"
	"github.com/codetutor/codetutor/internal/transport"
)

// App is the full service configuration.
type App struct {
	LLM       llm.Config
	Embedding embedding.Config
	Chat      chat.Config
	Prompt    prompt.Config
	Server    transport.Config

	// AnchorsPath points at the precomputed anchor file. Empty means
	// topic filters run with no anchors and never fire.
	AnchorsPath string

	// AuthEntries configure the static token authenticator, each
	// "token=id:name:prog:maths".
	AuthEntries []string

	LogLevel string
}

// FromEnv reads the configuration. Unset variables keep their
// defaults; only malformed values error.
func FromEnv() (App, error) {
	app := App{
		LLM:         llm.ConfigFromEnv(),
		Embedding:   embedding.ConfigFromEnv(),
		Chat:        chat.DefaultConfig(),
		Prompt:      prompt.DefaultConfig(),
		Server:      transport.DefaultConfig(),
		AnchorsPath: os.Getenv("CODETUTOR_ANCHORS"),
		LogLevel:    os.Getenv("CODETUTOR_LOG_LEVEL"),
	}

	if v := os.Getenv("CODETUTOR_ADDR"); v != "" {
		app.Server.Addr = v
	}
	if v := os.Getenv("CODETUTOR_AUTH"); v != "" {
		app.AuthEntries = strings.Split(v, ",")
	}

	var err error
	if app.Chat.DailyTokenCap, err = intEnv("CODETUTOR_DAILY_TOKEN_CAP", app.Chat.DailyTokenCap); err != nil {
		return app, err
	}
	if app.Chat.MaxInputTokens, err = intEnv("CODETUTOR_MAX_INPUT_TOKENS", app.Chat.MaxInputTokens); err != nil {
		return app, err
	}
	if app.Chat.RequestsPerMinute, err = intEnv("CODETUTOR_REQUESTS_PER_MINUTE", app.Chat.RequestsPerMinute); err != nil {
		return app, err
	}
	if app.Chat.MaxResponseTokens, err = intEnv("CODETUTOR_MAX_RESPONSE_TOKENS", app.Chat.MaxResponseTokens); err != nil {
		return app, err
	}
	if app.Prompt.TokenBudget, err = intEnv("CODETUTOR_PROMPT_BUDGET", app.Prompt.TokenBudget); err != nil {
		return app, err
	}
	if v := os.Getenv("CODETUTOR_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return app, fmt.Errorf("CODETUTOR_SHUTDOWN_TIMEOUT: %w", err)
		}
		app.Server.ShutdownTimeout = d
	}

	return app, nil
}

func intEnv(name string, def int) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %w", name, err)
	}
	return n, nil
}
