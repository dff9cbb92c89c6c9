package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docchat/internal/app"
	"github.com/custodia-labs/docchat/internal/logger"
)

var (
	serveAddr       string
	serveWatch      string
	serveSkipChecks bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the REST API:

  POST /api/ingest?path=docs[&async=true]   ingest a directory
  POST /api/ingest/upload                    ingest one multipart file ("file")
  GET  /api/ingest/jobs[/{id}]               background ingestion jobs
  POST /api/chat {"prompt": "..."}           grounded answer
  GET  /healthz                              dependency health
  GET  /metrics                              Prometheus metrics

The embedding and chat models are pinged and the embedding dimension is
checked against the store before the server accepts requests.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (overrides server.addr)")
	serveCmd.Flags().StringVarP(&serveWatch, "watch", "w", "", "directory to watch and ingest new files from")
	serveCmd.Flags().BoolVar(&serveSkipChecks, "skip-checks", false, "do not ping the model providers at startup")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if !logger.IsVerbose() {
		logger.SetLevel(zapcore.InfoLevel)
	}

	var opts []app.Option
	if serveSkipChecks {
		opts = append(opts, app.WithoutConnectivityCheck())
	}

	a, err := loadApp(cmd.Context(), opts...)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}()

	if serveAddr != "" {
		a.Config.Server.Addr = serveAddr
	}
	server := a.HTTPServer()

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		return server.Run(ctx)
	})
	if serveWatch != "" {
		g.Go(func() error {
			if err := a.Watch(ctx, serveWatch, 0); err != nil {
				return fmt.Errorf("watch %s: %w", serveWatch, err)
			}
			return nil
		})
	}

	cmd.Printf("docchat listening on %s\n", a.Config.Server.Addr)
	return g.Wait()
}
