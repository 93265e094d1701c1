package embedding

import (
	"fmt"
	"os"
	"time"
)

// Config holds embedding provider configuration. The failover order is
// fixed by Providers, primary first.
type Config struct {
	// Providers values: "openai", "gemini", "mock".
	Providers []string

	OpenAIAPIKey string
	OpenAIModel  string // Default: "text-embedding-3-small"

	GeminiAPIKey string
	GeminiModel  string // Default: "text-embedding-004"

	// Timeout bounds a single embedding request. Embeddings gate every
	// chat turn, so this stays much shorter than the LLM timeout.
	Timeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Providers:   []string{"openai", "gemini"},
		OpenAIModel: "text-embedding-3-small",
		GeminiModel: "text-embedding-004",
		Timeout:     10 * time.Second,
	}
}

// ConfigFromEnv builds a Config from environment variables, sharing the
// provider API keys with the LLM gateway config.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()

	if k := os.Getenv("CODETUTOR_OPENAI_API_KEY"); k != "" {
		cfg.OpenAIAPIKey = k
	} else {
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if k := os.Getenv("CODETUTOR_GEMINI_API_KEY"); k != "" {
		cfg.GeminiAPIKey = k
	} else {
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if m := os.Getenv("CODETUTOR_EMBEDDING_OPENAI_MODEL"); m != "" {
		cfg.OpenAIModel = m
	}
	if m := os.Getenv("CODETUTOR_EMBEDDING_GEMINI_MODEL"); m != "" {
		cfg.GeminiModel = m
	}

	return cfg
}

// ConfiguredProviders returns the subset of Providers whose keys are set.
func (c Config) ConfiguredProviders() []string {
	var out []string
	for _, p := range c.Providers {
		switch p {
		case "openai":
			if c.OpenAIAPIKey != "" {
				out = append(out, p)
			}
		case "gemini":
			if c.GeminiAPIKey != "" {
				out = append(out, p)
			}
		case "mock":
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that at least one provider has its key set.
func (c Config) Validate() error {
	if len(c.ConfiguredProviders()) == 0 {
		return fmt.Errorf("no embedding provider configured: set OPENAI_API_KEY or GEMINI_API_KEY")
	}
	return nil
}
