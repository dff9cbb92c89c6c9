package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/core/domain"
)

var ingestJSON bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [path]",
	Short: "Ingest a directory of documents",
	Long: `Loads every supported file (text, Markdown, HTML, PDF) under the
directory, splits it into overlapping chunks, embeds the chunks and stores
them. Each document succeeds or fails on its own; the report lists both.

Without a path the configured ingest.default_path is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "output the report as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	svc, closeFn, err := resolveServices(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	path := svc.DefaultPath
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		path = "docs"
	}

	cmd.Printf("Ingestion started for directory: %s\n", path)
	report, err := svc.Ingestion.IngestDirectory(cmd.Context(), path)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if ingestJSON {
		if err := outputReportJSON(cmd, report); err != nil {
			return err
		}
	} else {
		outputReport(cmd, report)
	}

	if !report.OK() {
		return fmt.Errorf("%d of %d documents failed", len(report.Failures), report.Documents)
	}
	return nil
}

func outputReport(cmd *cobra.Command, r *domain.IngestReport) {
	cmd.Printf("Ingested %d of %d documents (%d chunks) in %s\n",
		len(r.Succeeded), r.Documents, r.Chunks, r.Duration.Round(time.Millisecond))
	for _, s := range r.Skipped {
		cmd.Printf("  skipped  %s (no text)\n", s)
	}
	for _, f := range r.Failures {
		cmd.Printf("  failed   %s: %v\n", f.Source, f.Err)
	}
}

type reportJSON struct {
	Documents  int           `json:"documents"`
	Chunks     int           `json:"chunks"`
	Succeeded  []string      `json:"succeeded"`
	Skipped    []string      `json:"skipped"`
	Failures   []failureJSON `json:"failures"`
	DurationMS int64         `json:"duration_ms"`
}

type failureJSON struct {
	Source string `json:"source"`
	Error  string `json:"error"`
}

func outputReportJSON(cmd *cobra.Command, r *domain.IngestReport) error {
	out := reportJSON{
		Documents:  r.Documents,
		Chunks:     r.Chunks,
		Succeeded:  r.Succeeded,
		Skipped:    r.Skipped,
		Failures:   []failureJSON{},
		DurationMS: r.Duration.Milliseconds(),
	}
	for _, f := range r.Failures {
		out.Failures = append(out.Failures, failureJSON{Source: f.Source, Error: f.Err.Error()})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
