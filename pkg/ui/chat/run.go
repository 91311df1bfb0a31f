package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrAborted is returned when the operator quits a prompt without answering.
var ErrAborted = errors.New("input aborted")

// Console is a running chat window. Replies are posted into it from any
// goroutine.
type Console struct {
	ctx     context.Context
	program *tea.Program
	out     io.Writer
}

// NewConsole prepares the chat window. Typed lines go to submit.
func NewConsole(ctx context.Context, submit SubmitFunc, info Info, out io.Writer) *Console {
	program := tea.NewProgram(
		newModel(ctx, submit, info),
		tea.WithContext(ctx),
		tea.WithOutput(out),
		tea.WithMouseCellMotion(),
	)
	return &Console{ctx: ctx, program: program, out: out}
}

// Post appends an entry to the transcript.
func (c *Console) Post(entry Entry) {
	c.program.Send(entryMsg(entry))
}

// Run blocks until the operator quits or ctx ends.
func (c *Console) Run() error {
	_, err := c.program.Run()
	if err != nil && !(errors.Is(err, tea.ErrProgramKilled) && c.ctx.Err() != nil) {
		return err
	}

	fmt.Fprint(c.out, "\033[H\033[2J")
	fmt.Fprintln(c.out, renderGoodbyeBanner())
	return nil
}

// AskLine shows a one-line input under label and returns the trimmed answer.
func AskLine(ctx context.Context, label string, placeholder string) (string, error) {
	m := newAskModel(label, placeholder)
	final, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}

	answer := final.(*askModel)
	if answer.aborted {
		return "", ErrAborted
	}
	return strings.TrimSpace(answer.input.Value()), nil
}

type askModel struct {
	label   string
	theme   theme
	input   textinput.Model
	aborted bool
}

func newAskModel(label string, placeholder string) *askModel {
	in := textinput.New()
	in.Prompt = "› "
	in.Placeholder = placeholder
	in.CharLimit = 32
	in.Focus()

	return &askModel{label: label, theme: defaultTheme(), input: in}
}

func (m *askModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *askModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		case "enter":
			if strings.TrimSpace(m.input.Value()) == "" {
				return m, nil
			}
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *askModel) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		m.theme.inputLabel.Render(strings.TrimSpace(m.label)),
		m.theme.promptBox.Render(m.input.View()),
		m.theme.hint.Render("Enter to confirm · Esc to cancel"),
	) + "\n"
}

func renderGoodbyeBanner() string {
	style := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("230")).
		Background(lipgloss.Color("28")).
		Padding(1, 2)

	return style.Render("🍃 Until we meet again, shinobi")
}
