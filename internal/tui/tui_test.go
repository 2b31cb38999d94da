package tui

import (
	"context"
	"fmt"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecoroute/internal/emission"
	"ecoroute/internal/llmservice"
	"ecoroute/internal/models"
	"ecoroute/internal/rag"
	"ecoroute/internal/session"
)

type fakeQA struct {
	err error
}

func (f *fakeQA) Ask(_ context.Context, question string) (models.PromptResponse, error) {
	if f.err != nil {
		return models.PromptResponse{}, f.err
	}
	return models.PromptResponse{Query: question, Content: "Metro Rail is the greenest option."}, nil
}

func newModel(t *testing.T, qa rag.Answerer, sess *session.Session) *Model {
	t.Helper()
	table, err := emission.Builtin(emission.TableIndia)
	require.NoError(t, err)
	return New(context.Background(), table, qa, sess, 0)
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

// drain runs cmd and any batched commands, returning their messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	batch, ok := msg.(tea.BatchMsg)
	if !ok {
		return []tea.Msg{msg}
	}
	var msgs []tea.Msg
	for _, c := range batch {
		msgs = append(msgs, drain(c)...)
	}
	return msgs
}

func selectMode(m *Model, mode string) {
	m.Update(key(tea.KeyTab))
	for m.modes[m.mode] != mode {
		m.Update(key(tea.KeyRight))
	}
}

func TestCalculator(t *testing.T) {
	t.Run("ShouldShowFormattedEmissions", func(t *testing.T) {
		m := newModel(t, nil, nil)
		m.distance.SetValue("10")
		selectMode(m, "Metro")

		_, cmd := m.Update(key(tea.KeyEnter))
		assert.Nil(t, cmd)
		assert.NoError(t, m.err)
		assert.Equal(t, "Estimated CO2 emission: 0.11 kg", m.output)
		assert.Contains(t, m.View(), "Estimated CO2 emission: 0.11 kg")
	})
	t.Run("ShouldShowZeroEmissionMessage", func(t *testing.T) {
		m := newModel(t, nil, nil)
		m.distance.SetValue("5")
		selectMode(m, "Walking")

		m.Update(key(tea.KeyEnter))
		assert.Contains(t, m.output, emission.ZeroEmissionsMessage)
	})
	t.Run("ShouldReportBadDistance", func(t *testing.T) {
		m := newModel(t, nil, nil)
		m.distance.SetValue("ten")

		m.Update(key(tea.KeyEnter))
		assert.ErrorIs(t, m.err, emission.ErrInvalidDistance)
		assert.Empty(t, m.output)
		assert.Contains(t, m.View(), "Error:")
	})
	t.Run("ShouldWrapModeSelection", func(t *testing.T) {
		m := newModel(t, nil, nil)
		m.Update(key(tea.KeyTab))
		m.Update(key(tea.KeyLeft))
		assert.Equal(t, "Cycling", m.modes[m.mode])
		m.Update(key(tea.KeyRight))
		assert.Equal(t, "SUV", m.modes[m.mode])
	})
}

func TestQuestion(t *testing.T) {
	t.Run("ShouldAnswerAndRecordTurn", func(t *testing.T) {
		sess, err := session.NewManager(10).Start()
		require.NoError(t, err)
		m := newModel(t, &fakeQA{}, sess)
		m.question.SetValue("Which mode is greenest?")

		_, cmd := m.Update(key(tea.KeyEnter))
		require.NotNil(t, cmd)
		assert.True(t, m.loading)
		assert.Contains(t, m.View(), "Asking the assistant")

		for _, msg := range drain(cmd) {
			m.Update(msg)
		}
		assert.False(t, m.loading)
		assert.Equal(t, "Metro Rail is the greenest option.", m.output)
		require.Len(t, sess.History(), 1)
		assert.Equal(t, "Which mode is greenest?", sess.History()[0].Question)
	})
	t.Run("ShouldShowServiceErrorInStatusLine", func(t *testing.T) {
		m := newModel(t, &fakeQA{err: fmt.Errorf("%w: refused", llmservice.ErrServiceUnavailable)}, nil)
		m.question.SetValue("Is the bus green?")

		_, cmd := m.Update(key(tea.KeyEnter))
		for _, msg := range drain(cmd) {
			m.Update(msg)
		}
		assert.ErrorIs(t, m.err, llmservice.ErrServiceUnavailable)
		assert.Contains(t, m.View(), "language model service unavailable")
	})
	t.Run("ShouldComplainWithoutAssistant", func(t *testing.T) {
		table, err := emission.Builtin(emission.TableIndia)
		require.NoError(t, err)
		m := New(context.Background(), table, nil, nil, 0)
		m.question.SetValue("Is the bus green?")

		_, cmd := m.Update(key(tea.KeyEnter))
		assert.Nil(t, cmd)
		assert.Error(t, m.err)
	})
}
