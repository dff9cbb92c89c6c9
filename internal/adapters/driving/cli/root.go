// Package cli implements the docchat command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/app"
	"github.com/custodia-labs/docchat/internal/config"
	"github.com/custodia-labs/docchat/internal/core/ports/driving"
	"github.com/custodia-labs/docchat/internal/logger"
)

var (
	version = "dev"

	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "docchat",
	Short: "Ask questions about your documents",
	Long: `docchat ingests local documents into a vector store and answers
questions strictly from the passages it retrieves. When the documents
do not contain the answer it says so instead of guessing.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./docchat.toml or ~/.docchat/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCmd.SetOut(os.Stdout)
	return rootCmd.ExecuteContext(ctx)
}

// Services are the driving ports the commands call.
type Services struct {
	Ingestion driving.IngestionService
	Jobs      driving.IngestJobs
	Retriever driving.Retriever
	Chat      driving.ChatService

	// DefaultPath is ingested when no path is given.
	DefaultPath string
}

// injected replaces application assembly when set.
var injected *Services

// SetServices makes commands use svc instead of assembling the
// application from configuration.
func SetServices(svc *Services) {
	injected = svc
}

// newApp assembles the application; replaced in tests.
var newApp = app.New

// loadApp reads the configuration and assembles the application.
func loadApp(ctx context.Context, opts ...app.Option) (*app.App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Log.Verbose {
		logger.SetVerbose(true)
	}
	return newApp(ctx, cfg, opts...)
}

// resolveServices returns the injected services or assembles them. The
// returned function releases whatever was opened.
func resolveServices(ctx context.Context) (*Services, func(), error) {
	if injected != nil {
		return injected, func() {}, nil
	}

	a, err := loadApp(ctx)
	if err != nil {
		return nil, nil, err
	}
	svc := &Services{
		Ingestion: a.Ingestion,
		Jobs:      a.Jobs,
		Retriever: a.Retriever,
		Chat:      a.Chat,

		DefaultPath: a.Config.Ingest.DefaultPath,
	}
	return svc, func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}, nil
}
