// Package ingest provides the directory ingestion view for the TUI.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// DefaultPath is used when neither the user nor the configuration names a directory.
const DefaultPath = "docs"

// maxListed caps how many succeeded or skipped sources are listed by name.
const maxListed = 8

// ErrNoIngestionService is returned when ingestion is not configured.
var ErrNoIngestionService = errors.New("ingestion service not available")

// View lets the user ingest a directory and shows the resulting report.
type View struct {
	styles    *styles.Styles
	input     *input.Prompt
	statusbar *status.Bar

	ingestion driving.IngestionService
	ctx       context.Context

	defaultPath string
	running     string
	lastPath    string
	report      *domain.IngestReport
	err         error

	width  int
	height int
	ready  bool
}

// NewView creates an ingest view. defaultPath pre-fills the prompt.
func NewView(s *styles.Styles, km *keymap.KeyMap, ingestion driving.IngestionService, defaultPath string) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if defaultPath == "" {
		defaultPath = DefaultPath
	}

	v := &View{
		styles:      s,
		input:       input.NewPrompt(s, "Path:", defaultPath),
		statusbar:   status.NewBar(s, km),
		ingestion:   ingestion,
		ctx:         context.Background(),
		defaultPath: defaultPath,
		width:       80,
		height:      24,
	}
	v.statusbar.SetState(status.StateIdle)
	return v
}

// WithContext sets the context used for ingestion.
func (v *View) WithContext(ctx context.Context) *View {
	v.ctx = ctx
	return v
}

// Init initialises the view.
func (v *View) Init() tea.Cmd {
	return v.input.Init()
}

// Update handles messages for the ingest view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.SetDimensions(msg.Width, msg.Height)
		return v, nil

	case tea.KeyMsg:
		return v.handleKeyMsg(msg)

	case messages.IngestCompleted:
		v.handleCompleted(msg)
		return v, nil

	case messages.ErrorOccurred:
		v.running = ""
		v.err = msg.Err
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

	if msg.Type == tea.KeyEnter {
		if v.Running() {
			return v, nil
		}
		path := v.input.Submit()
		if path == "" {
			path = v.defaultPath
		}
		v.running = path
		v.report = nil
		v.err = nil
		v.statusbar.SetState(status.StateIngesting)
		v.statusbar.SetMessage(path)
		return v, v.ingest(path)
	}

	var cmd tea.Cmd
	v.input, cmd = v.input.Update(msg)
	return v, cmd
}

func (v *View) ingest(path string) tea.Cmd {
	ingestion, ctx := v.ingestion, v.ctx
	return func() tea.Msg {
		if ingestion == nil {
			return messages.ErrorOccurred{Err: ErrNoIngestionService}
		}
		report, err := ingestion.IngestDirectory(ctx, path)
		return messages.IngestCompleted{Path: path, Report: report, Err: err}
	}
}

func (v *View) handleCompleted(msg messages.IngestCompleted) {
	if msg.Path != v.running {
		return
	}
	v.running = ""
	v.lastPath = msg.Path
	v.report = msg.Report
	v.err = msg.Err

	switch {
	case msg.Err != nil:
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(msg.Err.Error())
	case !msg.Report.OK():
		v.statusbar.SetState(status.StateError)
		v.statusbar.SetMessage(fmt.Sprintf("%d of %d documents failed", len(msg.Report.Failures), msg.Report.Documents))
	default:
		v.statusbar.SetState(status.StateIdle)
		v.statusbar.SetMessage("")
	}
}

// View renders the ingest view.
func (v *View) View() string {
	if !v.ready {
		return "Initialising..."
	}

	sections := []string{
		v.styles.Title.Render("Ingest documents"),
		"",
		v.styles.Muted.Render("Enter a directory to load into the vector store. Leave blank for " + v.defaultPath + "."),
		"",
		v.input.View(),
		"",
	}

	switch {
	case v.Running():
		sections = append(sections, v.styles.Muted.Render("Ingestion started for directory: "+v.running))
	case v.err != nil:
		sections = append(sections, v.styles.Error.Render("Error: "+v.err.Error()))
	case v.report != nil:
		sections = append(sections, v.renderReport())
	}

	sections = append(sections, "", v.statusbar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (v *View) renderReport() string {
	r := v.report
	var b strings.Builder

	b.WriteString(v.styles.Subtitle.Render("Ingested " + v.lastPath))
	b.WriteString("\n")
	b.WriteString(v.styles.Normal.Render(fmt.Sprintf(
		"%d documents, %d chunks in %s", r.Documents, r.Chunks, r.Duration.Round(time.Millisecond))))
	b.WriteString("\n")

	writeList := func(label string, items []string, style lipgloss.Style) {
		if len(items) == 0 {
			return
		}
		b.WriteString("\n")
		b.WriteString(style.Render(fmt.Sprintf("%s (%d)", label, len(items))))
		for i, item := range items {
			if i == maxListed {
				b.WriteString("\n" + v.styles.Muted.Render(fmt.Sprintf("  ... and %d more", len(items)-maxListed)))
				break
			}
			b.WriteString("\n  " + item)
		}
		b.WriteString("\n")
	}

	writeList("Succeeded", r.Succeeded, v.styles.Success)
	writeList("Skipped", r.Skipped, v.styles.Warning)

	if len(r.Failures) > 0 {
		b.WriteString("\n")
		b.WriteString(v.styles.Error.Render(fmt.Sprintf("Failed (%d)", len(r.Failures))))
		for _, f := range r.Failures {
			b.WriteString("\n  " + v.styles.Error.Render(f.Error()))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// SetDimensions sets the view dimensions.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.ready = true
	v.input.SetWidth(width)
	v.statusbar.SetWidth(width)
}

// Running reports whether an ingestion is in flight.
func (v *View) Running() bool {
	return v.running != ""
}

// Report returns the last completed report.
func (v *View) Report() *domain.IngestReport {
	return v.report
}

// Err returns the last error, if any.
func (v *View) Err() error {
	return v.err
}

// Reset clears the last outcome. An in-flight ingestion keeps running.
func (v *View) Reset() {
	v.report = nil
	v.err = nil
	v.input.Reset()
	v.input.Focus()
	if !v.Running() {
		v.statusbar.SetState(status.StateIdle)
		v.statusbar.SetMessage("")
	}
}
