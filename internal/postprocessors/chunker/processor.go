// Package chunker splits document text into bounded, overlapping chunks.
//
// Sizes are measured in runes. A chunk ends at the latest paragraph break
// in its window, failing that the latest line break, sentence end, or word
// break, and only as a last resort mid-word. Every chunk is at most
// chunkSize runes and the next chunk starts exactly overlap runes before the
// previous one ended, so dropping the first overlap runes of every chunk
// after the first and concatenating reproduces the input.
package chunker

import (
	"context"
	"fmt"
	"iter"

	"github.com/google/uuid"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of runes per chunk.
const DefaultChunkSize = 300

// DefaultChunkOverlap is the default number of overlapping runes.
const DefaultChunkOverlap = 20

// Ensure Processor implements the interface.
var _ driven.PostProcessor = (*Processor)(nil)

// Span is one chunk of text and its rune offset in the source.
type Span struct {
	Text  string
	Start int
}

// Processor splits document content into chunks.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the maximum chunk size in runes.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the overlap between adjacent chunks in runes.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a chunker. It fails when chunkSize is not positive or
// overlap is not in [0, chunkSize).
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(p)
	}

	if p.chunkSize <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidInput, p.chunkSize)
	}
	if p.overlap < 0 || p.overlap >= p.chunkSize {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", domain.ErrInvalidInput, p.overlap, p.chunkSize)
	}
	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// ChunkSize returns the configured maximum chunk size.
func (p *Processor) ChunkSize() int { return p.chunkSize }

// Overlap returns the configured overlap.
func (p *Processor) Overlap() int { return p.overlap }

// Split returns the chunks of text as a lazy sequence. Each iteration starts
// over from the beginning of text.
func (p *Processor) Split(text string) iter.Seq[Span] {
	return func(yield func(Span) bool) {
		runes := []rune(text)
		n := len(runes)
		start := 0

		for start < n {
			end := start + p.chunkSize
			if end >= n {
				yield(Span{Text: string(runes[start:n]), Start: start})
				return
			}

			// The cut must leave room for progress past the overlap and
			// should not produce chunks smaller than half the window.
			lo := max(start+p.overlap+1, start+p.chunkSize/2)
			cut := boundary(runes, lo, end)

			if !yield(Span{Text: string(runes[start:cut]), Start: start}) {
				return
			}
			start = cut - p.overlap
		}
	}
}

// boundary returns the best cut position in [lo, hi]. A cut at i means the
// chunk is runes[:i].
func boundary(runes []rune, lo, hi int) int {
	for _, match := range []func([]rune, int) bool{isParagraphBreak, isLineBreak, isSentenceEnd, isWordBreak} {
		for i := hi; i >= lo; i-- {
			if match(runes, i) {
				return i
			}
		}
	}
	return hi
}

func isParagraphBreak(r []rune, i int) bool {
	return i >= 2 && r[i-1] == '\n' && r[i-2] == '\n'
}

func isLineBreak(r []rune, i int) bool {
	return i >= 1 && r[i-1] == '\n'
}

func isSentenceEnd(r []rune, i int) bool {
	if i < 2 || (r[i-1] != ' ' && r[i-1] != '\t') {
		return false
	}
	switch r[i-2] {
	case '.', '!', '?', '…':
		return true
	}
	return false
}

func isWordBreak(r []rune, i int) bool {
	return i >= 1 && (r[i-1] == ' ' || r[i-1] == '\t')
}

// Process splits the document content into chunks. Input chunks are
// ignored; this processor creates new chunks from document content.
func (p *Processor) Process(ctx context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	if doc.Content == "" {
		return nil, nil
	}

	estimated := len(doc.Content)/(p.chunkSize-p.overlap) + 1
	chunks := make([]domain.Chunk, 0, estimated)

	for span := range p.Split(doc.Content) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		position := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Content:    span.Text,
			Position:   position,
			Offset:     span.Start,
			Metadata:   domain.NewChunkMetadata(doc.Metadata, doc.ID, position, span.Start),
		})
	}

	return chunks, nil
}
