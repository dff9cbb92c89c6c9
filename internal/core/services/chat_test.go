package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
)

const refusal = "There is no such information in the provided context."

func chatOpts() GenerationOptions {
	return GenerationOptions{Refusal: refusal, RetryDelay: time.Millisecond}
}

func contextWith(texts ...string) *domain.RetrievedContext {
	rc := &domain.RetrievedContext{}
	for i, text := range texts {
		rc.Chunks = append(rc.Chunks, scored(text, 0.9-float64(i)/10))
	}
	return rc
}

func TestChat_RefusesWithoutCallingModelWhenContextEmpty(t *testing.T) {
	llm := new(mockLLM)
	svc := NewChatService(&mockRetriever{context: contextWith()}, llm, &mockPrompts{}, chatOpts())

	answer, err := svc.Chat(context.Background(), "Who won the 1930 world cup?")

	require.NoError(t, err)
	assert.Equal(t, refusal, answer)
	llm.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything, mock.Anything)
}

func TestChat_LowScoringMatchIsRefused(t *testing.T) {
	store := newMockStore(testDim)
	store.results = []domain.ScoredChunk{scored("barely related", 0.5)}
	retriever := NewRetriever(newMockEmbedder(testDim), store, 5, 0.9)
	llm := new(mockLLM)
	svc := NewChatService(retriever, llm, &mockPrompts{}, chatOpts())

	exchange, err := svc.Ask(context.Background(), "question")

	require.NoError(t, err)
	assert.Equal(t, refusal, exchange.Answer)
	assert.True(t, exchange.Refused)
	llm.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything, mock.Anything)
}

func TestChat_GroundedPrompt(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Chat", mock.Anything, mock.MatchedBy(func(msgs []driven.ChatMessage) bool {
		return len(msgs) == 2 &&
			msgs[0].Role == driven.RoleSystem &&
			strings.Contains(msgs[0].Content, refusal) &&
			msgs[1].Role == driven.RoleUser &&
			strings.Contains(msgs[1].Content, "[1] Paris is the capital of France.") &&
			strings.Contains(msgs[1].Content, "[2] France is in Europe.") &&
			strings.HasSuffix(msgs[1].Content, "Question: What is the capital of France?")
	}), mock.Anything).Return("  Paris.  ", nil).Once()

	retriever := &mockRetriever{context: contextWith("Paris is the capital of France.", "France is in Europe.")}
	svc := NewChatService(retriever, llm, &mockPrompts{}, chatOpts())

	exchange, err := svc.Ask(context.Background(), "What is the capital of France?")

	require.NoError(t, err)
	assert.Equal(t, "Paris.", exchange.Answer)
	assert.False(t, exchange.Refused)
	assert.Len(t, exchange.Context.Chunks, 2)
	llm.AssertExpectations(t)
}

func TestChat_ModelRefusalIsFlagged(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return(refusal, nil)
	svc := NewChatService(&mockRetriever{context: contextWith("unrelated")}, llm, &mockPrompts{}, chatOpts())

	exchange, err := svc.Ask(context.Background(), "q")

	require.NoError(t, err)
	assert.True(t, exchange.Refused)
}

func TestChat_ModelFailure(t *testing.T) {
	original := errors.New("model overloaded")
	llm := new(mockLLM)
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return("", original)
	svc := NewChatService(&mockRetriever{context: contextWith("text")}, llm, &mockPrompts{}, chatOpts())

	answer, err := svc.Chat(context.Background(), "q")

	assert.Empty(t, answer)
	assert.ErrorIs(t, err, domain.ErrGenerationService)
	assert.ErrorIs(t, err, original)

	var genErr *domain.GenerationServiceError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 1, genErr.Attempts)
	assert.Equal(t, "mock-llm", genErr.Model)
	llm.AssertNumberOfCalls(t, "Chat", 1)
}

func TestChat_Retries(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("503")).Once()
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return("answer", nil).Once()

	opts := chatOpts()
	opts.MaxRetries = 2
	svc := NewChatService(&mockRetriever{context: contextWith("text")}, llm, &mockPrompts{}, opts)

	answer, err := svc.Chat(context.Background(), "q")

	require.NoError(t, err)
	assert.Equal(t, "answer", answer)
	llm.AssertNumberOfCalls(t, "Chat", 2)
}

func TestChat_RetriesExhausted(t *testing.T) {
	llm := new(mockLLM)
	llm.On("Chat", mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("503"))

	opts := chatOpts()
	opts.MaxRetries = 2
	svc := NewChatService(&mockRetriever{context: contextWith("text")}, llm, &mockPrompts{}, opts)

	_, err := svc.Chat(context.Background(), "q")

	var genErr *domain.GenerationServiceError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, 3, genErr.Attempts)
}

func TestChat_RetrievalFailureIsRequestFailure(t *testing.T) {
	llm := new(mockLLM)
	retriever := &mockRetriever{err: &domain.EmbeddingServiceError{Op: "embed", Err: errors.New("refused")}}
	svc := NewChatService(retriever, llm, &mockPrompts{}, chatOpts())

	_, err := svc.Chat(context.Background(), "q")

	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	llm.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything, mock.Anything)
}

func TestChat_EmptyQuestion(t *testing.T) {
	retriever := &mockRetriever{context: contextWith()}
	svc := NewChatService(retriever, new(mockLLM), &mockPrompts{}, chatOpts())

	_, err := svc.Chat(context.Background(), " \t")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, retriever.calls)
}

func TestChat_PromptLoadFailure(t *testing.T) {
	svc := NewChatService(&mockRetriever{context: contextWith("x")}, new(mockLLM),
		&mockPrompts{err: errors.New("disk")}, chatOpts())

	_, err := svc.Chat(context.Background(), "q")

	assert.ErrorContains(t, err, "grounded_system")
}

func TestBackoff(t *testing.T) {
	assert.Zero(t, backoff(0, 3))
	for attempt := 1; attempt <= 4; attempt++ {
		base := 10 * time.Millisecond << (attempt - 1)
		d := backoff(10*time.Millisecond, attempt)
		assert.GreaterOrEqual(t, d, base)
		assert.LessOrEqual(t, d, base+base/2)
	}
}
