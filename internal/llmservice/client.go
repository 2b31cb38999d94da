package llmservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"

	"ecoroute/internal/config"
)

// ErrServiceUnavailable marks a failed or unreachable model call. Callers
// report it to the user and carry on.
var ErrServiceUnavailable = errors.New("language model service unavailable")

// Client answers a single text prompt.
type Client interface {
	Answer(ctx context.Context, prompt string) (string, error)
}

// Ollama calls a locally served model through langchaingo.
type Ollama struct {
	llm         llms.Model
	model       string
	temperature float64
	timeout     time.Duration
}

// NewOllama builds a client from the llm section of the config
func NewOllama(llmConfig *config.LLMConfig) (*Ollama, error) {
	log.Debug().Str("base_url", llmConfig.BaseURL).Str("model", llmConfig.Model).Msg("Creating LLM client")
	llm, err := ollama.New(
		ollama.WithServerURL(llmConfig.BaseURL),
		ollama.WithModel(llmConfig.Model),
	)
	if err != nil {
		return nil, err
	}
	return NewWithModel(llm, llmConfig), nil
}

// NewWithModel wraps any langchaingo model with the configured timeout and temperature.
func NewWithModel(llm llms.Model, llmConfig *config.LLMConfig) *Ollama {
	return &Ollama{
		llm:         llm,
		model:       llmConfig.Model,
		temperature: llmConfig.Temperature,
		timeout:     llmConfig.Timeout,
	}
}

// Answer sends prompt and returns the model text verbatim. Any failure,
// including the call timing out, is wrapped in ErrServiceUnavailable.
func (o *Ollama) Answer(ctx context.Context, prompt string) (string, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt, llms.WithTemperature(o.temperature))
	if err != nil {
		log.Error().Err(err).Str("model", o.model).Dur("elapsed", time.Since(start)).Msg("LLM call failed")
		return "", fmt.Errorf("%w: %s: %v", ErrServiceUnavailable, o.model, err)
	}
	log.Debug().Str("model", o.model).Dur("elapsed", time.Since(start)).Int("chars", len(out)).Msg("LLM answered")
	return out, nil
}
