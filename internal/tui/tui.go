package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ecoroute/internal/emission"
	"ecoroute/internal/models"
	"ecoroute/internal/rag"
	"ecoroute/internal/session"
)

const (
	focusDistance = iota
	focusMode
	focusQuestion
	focusCount
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("34"))
	labelStyle   = lipgloss.NewStyle().Width(10).Foreground(lipgloss.Color("245"))
	focusedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("69")).Bold(true)
	resultStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("34")).Padding(0, 1)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type answerMsg struct {
	resp models.PromptResponse
	err  error
}

// Model is the calculator page: distance field, mode selector and question
// field. Enter answers the question when one is typed, otherwise it looks
// up the emissions of the selected mode.
type Model struct {
	ctx      context.Context
	table    *emission.Table
	qa       rag.Answerer
	session  *session.Session
	timeout  time.Duration
	modes    []string
	mode     int
	focus    int
	distance textinput.Model
	question textinput.Model
	spinner  spinner.Model
	loading  bool
	output   string
	err      error
}

// New builds the page. qa may be nil, leaving only the calculator.
func New(ctx context.Context, table *emission.Table, qa rag.Answerer, sess *session.Session, timeout time.Duration) *Model {
	distance := textinput.New()
	distance.Placeholder = "10"
	distance.CharLimit = 8
	distance.Prompt = ""
	distance.Focus()

	question := textinput.New()
	question.Placeholder = "Which mode is greenest for a 10 km commute?"
	question.CharLimit = 500
	question.Prompt = ""

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("69"))

	return &Model{
		ctx:      ctx,
		table:    table,
		qa:       qa,
		session:  sess,
		timeout:  timeout,
		modes:    table.Modes(),
		distance: distance,
		question: question,
		spinner:  s,
	}
}

func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "tab", "down":
			return m, m.setFocus((m.focus + 1) % focusCount)
		case "shift+tab", "up":
			return m, m.setFocus((m.focus + focusCount - 1) % focusCount)
		case "left":
			if m.focus == focusMode {
				m.mode = (m.mode + len(m.modes) - 1) % len(m.modes)
				return m, nil
			}
		case "right":
			if m.focus == focusMode {
				m.mode = (m.mode + 1) % len(m.modes)
				return m, nil
			}
		case "enter":
			if m.loading {
				return m, nil
			}
			return m, m.submit()
		}

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case answerMsg:
		m.loading = false
		m.err = msg.err
		m.output = ""
		if msg.err == nil {
			m.output = msg.resp.Content
		}
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusDistance:
		m.distance, cmd = m.distance.Update(msg)
	case focusQuestion:
		m.question, cmd = m.question.Update(msg)
	}
	return m, cmd
}

func (m *Model) setFocus(f int) tea.Cmd {
	m.focus = f
	m.distance.Blur()
	m.question.Blur()
	switch f {
	case focusDistance:
		return m.distance.Focus()
	case focusQuestion:
		return m.question.Focus()
	}
	return nil
}

// submit answers the question or, when it is empty, runs the lookup.
func (m *Model) submit() tea.Cmd {
	m.err = nil
	if q := strings.TrimSpace(m.question.Value()); q != "" {
		if m.qa == nil {
			m.err = errors.New("question answering is not configured")
			return nil
		}
		m.loading = true
		m.output = ""
		return tea.Batch(m.spinner.Tick, m.ask(q))
	}

	distance, err := strconv.ParseFloat(strings.TrimSpace(m.distance.Value()), 64)
	if err != nil {
		m.err = fmt.Errorf("%w: %q", emission.ErrInvalidDistance, m.distance.Value())
		m.output = ""
		return nil
	}
	res, err := m.table.Calculate(m.modes[m.mode], distance)
	if err != nil {
		m.err = err
		m.output = ""
		return nil
	}
	m.output = res.Summary()
	return nil
}

func (m *Model) ask(question string) tea.Cmd {
	return func() tea.Msg {
		ctx := m.ctx
		if m.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.timeout)
			defer cancel()
		}
		resp, err := m.qa.Ask(ctx, question)
		if m.session != nil {
			turn := session.Turn{Question: question, Answer: resp.Content, Context: resp.Source}
			if err != nil {
				turn.Err = err.Error()
			}
			m.session.Append(turn)
		}
		return answerMsg{resp: resp, err: err}
	}
}

func (m *Model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("EcoRoute: commute emissions"))
	b.WriteString("\n\n")

	b.WriteString(m.row(focusDistance, "Distance", m.distance.View()+" km"))
	b.WriteString(m.row(focusMode, "Mode", "< "+m.modes[m.mode]+" >"))
	b.WriteString(m.row(focusQuestion, "Question", m.question.View()))
	b.WriteString("\n")

	switch {
	case m.loading:
		b.WriteString(m.spinner.View() + " Asking the assistant...\n")
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: "+m.err.Error()) + "\n")
	case m.output != "":
		b.WriteString(resultStyle.Render(m.output) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("tab: next field • ←/→: change mode • enter: submit • esc: quit"))
	return b.String()
}

func (m *Model) row(field int, label, value string) string {
	cursor := "  "
	l := labelStyle.Render(label)
	if m.focus == field {
		cursor = focusedStyle.Render("> ")
		l = focusedStyle.Width(10).Render(label)
	}
	return cursor + l + value + "\n"
}

// Run starts the program in the alternate screen and blocks until it exits.
func Run(m *Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx)).Run()
	return err
}
