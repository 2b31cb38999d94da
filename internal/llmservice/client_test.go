package llmservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"ecoroute/internal/config"
)

type fakeModel struct {
	reply   string
	err     error
	block   bool
	prompts []string
	temps   []float64
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}
	f.temps = append(f.temps, opts.Temperature)
	for _, m := range messages {
		for _, p := range m.Parts {
			if tc, ok := p.(llms.TextContent); ok {
				f.prompts = append(f.prompts, tc.Text)
			}
		}
	}
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestOllamaAnswer(t *testing.T) {
	cfg := &config.LLMConfig{Model: "granite3-dense:8b", Timeout: time.Second}

	t.Run("ShouldReturnModelTextVerbatim", func(t *testing.T) {
		model := &fakeModel{reply: "  Take the metro.\n"}
		client := NewWithModel(model, cfg)
		out, err := client.Answer(context.Background(), "Which mode is greenest?")
		require.NoError(t, err)
		assert.Equal(t, "  Take the metro.\n", out)
		assert.Equal(t, []string{"Which mode is greenest?"}, model.prompts)
		assert.Equal(t, []float64{0}, model.temps)
	})
	t.Run("ShouldWrapModelErrors", func(t *testing.T) {
		client := NewWithModel(&fakeModel{err: errors.New("connection refused")}, cfg)
		_, err := client.Answer(context.Background(), "q")
		require.ErrorIs(t, err, ErrServiceUnavailable)
		assert.Contains(t, err.Error(), "connection refused")
	})
	t.Run("ShouldEnforceTimeout", func(t *testing.T) {
		client := NewWithModel(&fakeModel{block: true}, &config.LLMConfig{Model: "slow", Timeout: 20 * time.Millisecond})
		start := time.Now()
		_, err := client.Answer(context.Background(), "q")
		require.ErrorIs(t, err, ErrServiceUnavailable)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
	t.Run("ShouldPassTemperature", func(t *testing.T) {
		model := &fakeModel{reply: "ok"}
		client := NewWithModel(model, &config.LLMConfig{Model: "m", Timeout: time.Second, Temperature: 0.7})
		_, err := client.Answer(context.Background(), "q")
		require.NoError(t, err)
		assert.Equal(t, []float64{0.7}, model.temps)
	})
}
