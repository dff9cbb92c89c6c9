// Package tui provides an interactive terminal user interface for docchat.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI talks to.
type Ports struct {
	// Chat answers questions. Required.
	Chat driving.ChatService

	// Ingestion loads directories into the store. When nil the ingest
	// view reports that ingestion is unavailable.
	Ingestion driving.IngestionService

	// DefaultPath pre-fills the ingest view.
	DefaultPath string
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(chat driving.ChatService, ingestion driving.IngestionService) *Ports {
	return &Ports{
		Chat:      chat,
		Ingestion: ingestion,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Chat == nil {
		return ErrMissingChatService
	}
	return nil
}
