package llm

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config holds all LLM provider configuration.
type Config struct {
	// Providers is the failover order. The first entry is the primary;
	// the rest are attempted in order when a provider is exhausted.
	// Values: "anthropic", "openai", "gemini", "mock"
	Providers []string

	Anthropic AnthropicConfig
	OpenAI    OpenAIConfig
	Gemini    GeminiConfig
	Retry     RetryConfig

	// Timeout bounds a single provider request, independent of the
	// retry backoff timers. Default: 30s.
	Timeout time.Duration
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string
	Model  string // Default: "claude-sonnet"
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string // Default: "gpt-4o-mini"
	BaseURL string // Optional. Override for OpenAI-compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string
	Model  string // Default: "gemini-flash"
}

// RetryConfig configures retry behavior for transient failures
// within a single provider.
type RetryConfig struct {
	MaxAttempts int
	InitialWait time.Duration
	MaxWait     time.Duration
	Multiplier  float64
}

// DefaultConfig returns a Config with sensible defaults: 3 attempts per
// provider with 1s/2s/4s backoff, 30s request timeout.
func DefaultConfig() Config {
	return Config{
		Providers: []string{"anthropic", "openai", "gemini"},
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet",
		},
		OpenAI: OpenAIConfig{
			Model: "gpt-4o-mini",
		},
		Gemini: GeminiConfig{
			Model: "gemini-flash",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 1 * time.Second,
			MaxWait:     4 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 30 * time.Second,
	}
}

// ConfigFromEnv builds a Config from environment variables, falling back
// to defaults for unset values. The standard key variables
// (ANTHROPIC_API_KEY, OPENAI_API_KEY, GEMINI_API_KEY) are honored; the
// CODETUTOR_-prefixed variables override them.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if p := os.Getenv("CODETUTOR_LLM_PROVIDERS"); p != "" {
		cfg.Providers = splitList(p)
	}

	cfg.Anthropic.APIKey = firstEnv("CODETUTOR_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	if m := os.Getenv("CODETUTOR_ANTHROPIC_MODEL"); m != "" {
		cfg.Anthropic.Model = m
	}

	cfg.OpenAI.APIKey = firstEnv("CODETUTOR_OPENAI_API_KEY", "OPENAI_API_KEY")
	if m := os.Getenv("CODETUTOR_OPENAI_MODEL"); m != "" {
		cfg.OpenAI.Model = m
	}
	if u := os.Getenv("CODETUTOR_OPENAI_BASE_URL"); u != "" {
		cfg.OpenAI.BaseURL = u
	}

	cfg.Gemini.APIKey = firstEnv("CODETUTOR_GEMINI_API_KEY", "GEMINI_API_KEY")
	if m := os.Getenv("CODETUTOR_GEMINI_MODEL"); m != "" {
		cfg.Gemini.Model = m
	}

	if t := os.Getenv("CODETUTOR_LLM_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	return cfg
}

// Validate checks that every configured provider has its required API key.
func (c Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("at least one LLM provider must be configured")
	}
	for _, p := range c.Providers {
		switch p {
		case "anthropic":
			if c.Anthropic.APIKey == "" {
				return fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
			}
		case "openai":
			if c.OpenAI.APIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
			}
		case "gemini":
			if c.Gemini.APIKey == "" {
				return fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
			}
		case "mock":
			// No API key needed.
		default:
			return fmt.Errorf("unknown LLM provider: %q", p)
		}
	}
	return nil
}

// ConfiguredProviders returns the subset of c.Providers whose API keys are
// actually set, preserving order. Lets a deployment list the full failover
// chain and run with whatever keys are present.
func (c Config) ConfiguredProviders() []string {
	var out []string
	for _, p := range c.Providers {
		switch p {
		case "anthropic":
			if c.Anthropic.APIKey != "" {
				out = append(out, p)
			}
		case "openai":
			if c.OpenAI.APIKey != "" {
				out = append(out, p)
			}
		case "gemini":
			if c.Gemini.APIKey != "" {
				out = append(out, p)
			}
		case "mock":
			out = append(out, p)
		}
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
