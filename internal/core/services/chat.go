package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/custodia-labs/docchat/internal/core/domain"
	"github.com/custodia-labs/docchat/internal/core/ports/driven"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// chatState is a step of answering one question.
type chatState string

const (
	stateIdle       chatState = "idle"
	stateRetrieving chatState = "retrieving"
	stateGenerating chatState = "generating"
	stateDone       chatState = "done"
)

// GenerationOptions tunes grounded answering.
type GenerationOptions struct {
	// Refusal is returned verbatim when the context cannot answer.
	Refusal string

	// MaxRetries is the number of extra attempts after a failed model call.
	MaxRetries int

	// RetryDelay is the base delay between attempts; it doubles each retry.
	RetryDelay time.Duration

	// Chat is passed through to the model.
	Chat driven.ChatOptions
}

// ChatService answers questions using only the retrieved context.
type ChatService struct {
	retriever driving.Retriever
	llm       driven.LLMService
	prompts   driven.PromptStore
	opts      GenerationOptions
}

// NewChatService creates a grounded chat service.
func NewChatService(
	retriever driving.Retriever,
	llm driven.LLMService,
	prompts driven.PromptStore,
	opts GenerationOptions,
) *ChatService {
	return &ChatService{
		retriever: retriever,
		llm:       llm,
		prompts:   prompts,
		opts:      opts,
	}
}

// Chat returns the grounded answer to question.
func (s *ChatService) Chat(ctx context.Context, question string) (string, error) {
	exchange, err := s.Ask(ctx, question)
	if err != nil {
		return "", err
	}
	return exchange.Answer, nil
}

// Ask retrieves context for question and generates an answer from it.
// When nothing relevant is found the refusal text is returned and the
// model is not called.
func (s *ChatService) Ask(ctx context.Context, question string) (*domain.ChatExchange, error) {
	logger.Section("Chat")
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}

	state := stateIdle
	transition := func(next chatState) {
		logger.Debug("chat: %s -> %s", state, next)
		state = next
	}

	transition(stateRetrieving)
	retrieved, err := s.retriever.Retrieve(ctx, question)
	if err != nil {
		return nil, err
	}

	exchange := &domain.ChatExchange{Question: question, Context: retrieved}
	if retrieved.IsEmpty() {
		transition(stateDone)
		exchange.Answer = s.opts.Refusal
		exchange.Refused = true
		return exchange, nil
	}

	transition(stateGenerating)
	messages, err := s.buildMessages(question, retrieved)
	if err != nil {
		return nil, err
	}

	answer, err := s.generate(ctx, messages)
	if err != nil {
		return nil, err
	}
	transition(stateDone)

	exchange.Answer = answer
	exchange.Refused = answer == s.opts.Refusal
	return exchange, nil
}

// buildMessages renders the grounded system and user prompts.
func (s *ChatService) buildMessages(question string, rc *domain.RetrievedContext) ([]driven.ChatMessage, error) {
	system, err := s.prompts.Load(driven.PromptGroundedSystem)
	if err != nil {
		return nil, fmt.Errorf("load prompt %s: %w", driven.PromptGroundedSystem, err)
	}
	user, err := s.prompts.Load(driven.PromptGroundedUser)
	if err != nil {
		return nil, fmt.Errorf("load prompt %s: %w", driven.PromptGroundedUser, err)
	}

	return []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: fmt.Sprintf(system, s.opts.Refusal)},
		{Role: driven.RoleUser, Content: fmt.Sprintf(user, formatPassages(rc), question)},
	}, nil
}

// formatPassages numbers each retrieved chunk in rank order.
func formatPassages(rc *domain.RetrievedContext) string {
	var b strings.Builder
	for i, text := range rc.Texts() {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, text)
	}
	return b.String()
}

// generate calls the model, retrying up to MaxRetries times.
func (s *ChatService) generate(ctx context.Context, messages []driven.ChatMessage) (string, error) {
	var lastErr error
	attempts := 0

	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := backoff(s.opts.RetryDelay, attempt)
			logger.Debug("retrying model call in %s (attempt %d)", delay, attempt+1)
			select {
			case <-ctx.Done():
				return "", s.generationError(attempts, errors.Join(lastErr, ctx.Err()))
			case <-time.After(delay):
			}
		}

		attempts++
		answer, err := s.llm.Chat(ctx, messages, s.opts.Chat)
		if err == nil {
			return strings.TrimSpace(answer), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return "", s.generationError(attempts, lastErr)
}

func (s *ChatService) generationError(attempts int, err error) error {
	return &domain.GenerationServiceError{Model: s.llm.ModelName(), Attempts: attempts, Err: err}
}

// backoff returns base * 2^(attempt-1) plus up to 50% jitter.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := base << (attempt - 1)
	return d + time.Duration(rand.Int64N(int64(d)/2+1))
}
