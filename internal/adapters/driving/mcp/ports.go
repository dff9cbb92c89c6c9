package mcp

import (
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server exposes.
type Ports struct {
	// Chat answers questions from retrieved context.
	Chat driving.ChatService

	// Retriever exposes the raw ranked context. Optional.
	Retriever driving.Retriever

	// Ingest loads directories into the store. Optional.
	Ingest driving.IngestionService

	// Jobs backs asynchronous ingestion and the job resources. Optional.
	Jobs driving.IngestJobs
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Chat == nil {
		return ErrMissingChatService
	}
	return nil
}
