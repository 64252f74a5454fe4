// Package llm wraps the outbound text-generation providers behind a single interface.
package llm

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"civicbriefs/internal/config"
)

// ErrDisabled is returned by the no-op generator when no provider is configured.
var ErrDisabled = errors.New("llm: generation disabled")

// Generator produces text for a prompt. Callers apply their own timeouts via ctx.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Disabled is a Generator that always fails with ErrDisabled.
type Disabled struct{}

// Generate implements Generator.
func (Disabled) Generate(context.Context, string) (string, error) {
	return "", ErrDisabled
}

// New builds the generator selected by cfg.Provider.
func New(ctx context.Context, cfg config.AI) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, 0), nil
	case config.ProviderNone, "":
		return Disabled{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")

// StripCodeFence removes a surrounding markdown code fence, which models often add around JSON.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFence.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}
