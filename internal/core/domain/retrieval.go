package domain

// ScoredChunk pairs a stored chunk with its similarity to a query.
type ScoredChunk struct {
	// Chunk is the matched text segment.
	Chunk Chunk

	// Score is the normalised similarity in [0, 1]; higher is closer.
	Score float64
}

// RetrievedContext is the ranked set of chunks found for one question.
// Chunks are ordered by descending score.
type RetrievedContext struct {
	// Query is the question that produced this context.
	Query string

	// Chunks are the matches that cleared the minimum score.
	Chunks []ScoredChunk
}

// IsEmpty reports whether no chunk cleared the threshold.
func (c *RetrievedContext) IsEmpty() bool {
	return c == nil || len(c.Chunks) == 0
}

// Texts returns the chunk texts in rank order.
func (c *RetrievedContext) Texts() []string {
	if c == nil {
		return nil
	}
	texts := make([]string, len(c.Chunks))
	for i, sc := range c.Chunks {
		texts[i] = sc.Chunk.Content
	}
	return texts
}

// ChatExchange is one question and its grounded answer.
type ChatExchange struct {
	Question string
	Answer   string

	// Refused is true when the answer is the configured refusal text
	// because retrieval found nothing relevant.
	Refused bool

	// Context is the retrieved material the answer was grounded on.
	Context *RetrievedContext
}
