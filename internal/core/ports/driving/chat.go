package driving

import (
	"context"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

// Retriever finds the stored chunks most relevant to a query.
type Retriever interface {
	// Retrieve embeds query and returns the ranked context. A context with no
	// chunks is a valid result, not an error.
	Retrieve(ctx context.Context, query string) (*domain.RetrievedContext, error)
}

// ChatService answers questions strictly from retrieved context.
type ChatService interface {
	// Chat returns the grounded answer to question.
	Chat(ctx context.Context, question string) (string, error)

	// Ask is Chat with the retrieved context and refusal flag attached.
	Ask(ctx context.Context, question string) (*domain.ChatExchange, error)
}
