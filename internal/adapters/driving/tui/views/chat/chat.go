// Package chat provides the question and answer view for the TUI.
package chat

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// Turn is one question in the transcript and, once it arrives, its answer.
type Turn struct {
	Question string
	Answer   string
	Refused  bool
	Err      error
	Pending  bool
}

// View represents the chat view with transcript, prompt, sources and status bar.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.Prompt
	sources   *list.SourceList
	statusbar *status.Bar

	chatService driving.ChatService
	ctx         context.Context

	turns      []Turn
	width      int
	height     int
	ready      bool
	err        error
	focusInput bool
}

// NewView creates a new chat view.
func NewView(s *styles.Styles, km *keymap.KeyMap, chatService driving.ChatService) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &View{
		styles:      s,
		keymap:      km,
		input:       input.NewPrompt(s, "Ask:", "Type a question about your documents..."),
		sources:     list.NewSourceList(s),
		statusbar:   status.NewBar(s, km),
		chatService: chatService,
		ctx:         context.Background(),
		width:       80,
		height:      24,
		focusInput:  true,
	}
}

// WithContext sets the context used for chat requests.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the chat view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.AnswerReceived:
		v.handleAnswer(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.err = msg.Err
		v.failPending(msg.Err)
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return v, nil
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) handleKeyMsg(msg tea.KeyMsg) (*View, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		return v, func() tea.Msg {
			return messages.ViewChanged{View: messages.ViewMenu}
		}
	}

	switch {
	case keymap.Matches(msg.String(), v.keymap.Clear):
		v.Reset()
		return v, nil

	case keymap.Matches(msg.String(), v.keymap.Focus):
		v.toggleFocus()
		return v, nil
	}

	if !v.focusInput {
		var cmd tea.Cmd
		v.sources, cmd = v.sources.Update(msg)
		return v, cmd
	}

	if msg.Type == tea.KeyEnter {
		if v.Thinking() {
			return v, nil
		}
		question := v.input.Submit()
		if question == "" {
			return v, nil
		}
		v.turns = append(v.turns, Turn{Question: question, Pending: true})
		v.err = nil
		v.statusbar.SetState(status.StateThinking)
		v.statusbar.SetMessage("")
		return v, v.ask(question)
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) toggleFocus() {
	if v.focusInput {
		if v.sources.IsEmpty() {
			return
		}
		v.focusInput = false
		v.input.Blur()
		v.statusbar.SetState(status.StateSources)
		return
	}
	v.focusInput = true
	v.input.Focus()
	v.statusbar.SetState(status.StateReady)
}

// ask runs the question through the chat service off the UI loop.
func (v *View) ask(question string) tea.Cmd {
	chatService, ctx := v.chatService, v.ctx
	return func() tea.Msg {
		if chatService == nil {
			return messages.ErrorOccurred{Err: ErrNoChatService}
		}
		ex, err := chatService.Ask(ctx, question)
		return messages.AnswerReceived{Question: question, Exchange: ex, Err: err}
	}
}

func (v *View) handleAnswer(msg messages.AnswerReceived) {
	idx := v.pendingTurn(msg.Question)
	if idx < 0 {
		return
	}
	turn := &v.turns[idx]
	turn.Pending = false

	if msg.Err != nil {
		turn.Err = msg.Err
		v.err = msg.Err
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
		return
	}

	v.err = nil
	turn.Answer = msg.Exchange.Answer
	turn.Refused = msg.Exchange.Refused
	if msg.Exchange.Context != nil {
		v.sources.SetChunks(msg.Exchange.Context.Chunks)
	} else {
		v.sources.SetChunks(nil)
	}

	v.statusbar.SetState(status.StateReady)
	v.statusbar.SetTurns(v.answered())
	if n := v.sources.Count(); n > 0 {
		v.statusbar.SetMessage(fmt.Sprintf("%d sources", n))
	} else {
		v.statusbar.SetMessage("")
	}
}

// pendingTurn returns the index of the oldest pending turn for question.
func (v *View) pendingTurn(question string) int {
	for i := range v.turns {
		if v.turns[i].Pending && v.turns[i].Question == question {
			return i
		}
	}
	return -1
}

func (v *View) failPending(err error) {
	for i := range v.turns {
		if v.turns[i].Pending {
			v.turns[i].Pending = false
			v.turns[i].Err = err
		}
	}
}

func (v *View) answered() int {
	n := 0
	for _, t := range v.turns {
		if !t.Pending && t.Err == nil {
			n++
		}
	}
	return n
}

// View renders the chat view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := make([]string, 0, 10)
	sections = append(sections, v.styles.Title.Render("docchat"), "")

	sourcesView := ""
	if !v.focusInput {
		sourcesView = v.sources.View()
	}

	budget := max(v.height-8-lipgloss.Height(sourcesView), 3)
	sections = append(sections, v.renderTranscript(budget), "", v.input.View())

	if sourcesView != "" {
		sections = append(sections, "", sourcesView)
	}

	sections = append(sections, "", v.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderTranscript renders the turns and keeps the last maxLines lines.
func (v *View) renderTranscript(maxLines int) string {
	if len(v.turns) == 0 {
		return v.styles.Muted.Render("Ask a question to get started.")
	}

	wrap := max(v.width-4, 20)
	blocks := make([]string, 0, len(v.turns))
	for _, t := range v.turns {
		var b strings.Builder
		b.WriteString(v.styles.Question.Render("You: " + t.Question))
		b.WriteString("\n")
		switch {
		case t.Pending:
			b.WriteString(v.styles.Muted.PaddingLeft(2).Render("..."))
		case t.Err != nil:
			b.WriteString(v.styles.Error.PaddingLeft(2).Width(wrap).Render("Error: " + t.Err.Error()))
		case t.Refused:
			b.WriteString(v.styles.Refusal.Width(wrap).Render(t.Answer))
		default:
			b.WriteString(v.styles.Answer.Width(wrap).Render(t.Answer))
		}
		blocks = append(blocks, b.String())
	}

	lines := strings.Split(strings.Join(blocks, "\n\n"), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true

	v.input.SetWidth(width)
	v.sources.SetDimensions(width, max(height/2, 6))
	v.statusbar.SetWidth(width)
}

// Ready returns whether the view is ready to render.
func (v *View) Ready() bool {
	return v.ready
}

// Turns returns the transcript.
func (v *View) Turns() []Turn {
	return v.turns
}

// Thinking reports whether a question is awaiting its answer.
func (v *View) Thinking() bool {
	for _, t := range v.turns {
		if t.Pending {
			return true
		}
	}
	return false
}

// Sources returns the chunks cited by the latest answer.
func (v *View) Sources() *list.SourceList {
	return v.sources
}

// Err returns the current error, if any.
func (v *View) Err() error {
	return v.err
}

// InputFocused returns whether the prompt has focus.
func (v *View) InputFocused() bool {
	return v.focusInput
}

// Reset clears the transcript and returns focus to the prompt.
func (v *View) Reset() {
	v.turns = nil
	v.err = nil
	v.focusInput = true
	v.input.Focus()
	v.input.Reset()
	v.sources.SetChunks(nil)
	v.statusbar.Clear()
}
