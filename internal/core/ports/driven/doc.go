// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Interfaces
//
//   - DocumentLoader: Reads raw documents from a directory or a single file
//   - Normaliser: Extracts text from a raw document
//   - NormaliserRegistry: Selects the appropriate normaliser
//   - PostProcessor: Sanitises and chunks document text
//   - EmbeddingService: Turns text into fixed-dimension vectors
//   - VectorStore: Persists embedded chunks and answers similarity queries
//   - LLMService: Chat-capable language model
//   - PromptStore: Prompt templates, overridable on disk
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, loader, or normaliser package
package driven
