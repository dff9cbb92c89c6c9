// Package list provides list display components for the TUI.
package list

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/docchat/internal/core/domain"
)

// SourceList displays the chunks an answer was grounded on.
type SourceList struct {
	chunks   []domain.ScoredChunk
	selected int
	expanded bool
	styles   *styles.Styles
	width    int
	height   int
}

// NewSourceList creates an empty source list.
func NewSourceList(s *styles.Styles) *SourceList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &SourceList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the list.
func (r *SourceList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (r *SourceList) Update(msg tea.Msg) (*SourceList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		case "enter":
			r.expanded = !r.expanded
		}
	}
	return r, nil
}

// View renders the list. The selected chunk shows its full text when
// expanded and a one-line preview otherwise.
func (r *SourceList) View() string {
	if len(r.chunks) == 0 {
		return r.styles.Muted.Render("No sources")
	}

	lines := make([]string, 0, len(r.chunks)+2)
	lines = append(lines, r.styles.Subtitle.Render(fmt.Sprintf("Sources (%d)", len(r.chunks))), "")

	// Each entry takes two lines.
	visible := max((r.height-2)/2, 1)
	start := 0
	if r.selected >= visible {
		start = r.selected - visible + 1
	}
	end := min(start+visible, len(r.chunks))

	for i := start; i < end; i++ {
		lines = append(lines, r.renderChunk(i, &r.chunks[i]))
	}

	return strings.Join(lines, "\n")
}

func (r *SourceList) renderChunk(index int, sc *domain.ScoredChunk) string {
	source := SourceName(sc)
	maxSource := max(r.width-20, 10)
	source = truncate(source, maxSource)
	score := fmt.Sprintf("%.2f", sc.Score)

	var head string
	if index == r.selected {
		head = r.styles.Selected.Render(fmt.Sprintf("> %-*s  %s", maxSource, source, score))
	} else {
		head = r.styles.Source.Render(fmt.Sprintf("  %-*s  ", maxSource, source)) +
			r.styles.Muted.Render(score)
	}

	body := strings.Join(strings.Fields(sc.Chunk.Content), " ")
	if index == r.selected && r.expanded {
		return head + "\n" + r.styles.Normal.Width(max(r.width-4, 20)).PaddingLeft(4).Render(sc.Chunk.Content)
	}
	return head + "\n" + r.styles.Muted.Render("    "+truncate(body, max(r.width-6, 20)))
}

// SourceName returns the chunk's source path, falling back to its document ID.
func SourceName(sc *domain.ScoredChunk) string {
	if s := sc.Chunk.Metadata[domain.MetaSource]; s != "" {
		return s
	}
	return sc.Chunk.DocumentID
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// SetChunks replaces the listed chunks and resets the selection.
func (r *SourceList) SetChunks(chunks []domain.ScoredChunk) {
	r.chunks = chunks
	r.selected = 0
	r.expanded = false
}

// Chunks returns the listed chunks.
func (r *SourceList) Chunks() []domain.ScoredChunk {
	return r.chunks
}

// Selected returns the index of the selected chunk.
func (r *SourceList) Selected() int {
	return r.selected
}

// SelectedChunk returns the selected chunk, or nil if the list is empty.
func (r *SourceList) SelectedChunk() *domain.ScoredChunk {
	if r.selected < 0 || r.selected >= len(r.chunks) {
		return nil
	}
	return &r.chunks[r.selected]
}

// Expanded reports whether the selected chunk shows its full text.
func (r *SourceList) Expanded() bool {
	return r.expanded
}

// MoveUp moves selection up.
func (r *SourceList) MoveUp() {
	if r.selected > 0 {
		r.selected--
		r.expanded = false
	}
}

// MoveDown moves selection down.
func (r *SourceList) MoveDown() {
	if r.selected < len(r.chunks)-1 {
		r.selected++
		r.expanded = false
	}
}

// SetDimensions sets the component dimensions.
func (r *SourceList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of chunks.
func (r *SourceList) Count() int {
	return len(r.chunks)
}

// IsEmpty returns whether the list is empty.
func (r *SourceList) IsEmpty() bool {
	return len(r.chunks) == 0
}
