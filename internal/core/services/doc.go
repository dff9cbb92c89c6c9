// Package services implements the driving port interfaces.
//
// IngestionService runs the load, normalise, sanitise, chunk, embed and
// store pipeline. Retriever embeds a question and ranks stored chunks.
// ChatService grounds a prompt in retrieved context and applies the
// refusal policy. IngestJobs runs ingestion batches in the background.
//
// Services depend only on domain types and driven ports; concrete
// adapters are supplied by internal/app.
package services
