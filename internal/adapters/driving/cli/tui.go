package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docchat/internal/adapters/driving/tui"
)

// runProgram runs the TUI; replaced in tests.
var runProgram = (*tui.App).Run

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for docchat.

The TUI lets you chat with your documents, browse the passages each
answer was grounded on, and ingest directories.

Controls:
  ↑/k, ↓/j - Navigate
  Enter    - Send / Select
  Tab      - Switch between prompt and sources
  Ctrl+L   - Clear the transcript
  Esc      - Back
  ?        - Help (from the menu)
  Ctrl+C   - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
			err = fmt.Errorf("TUI panic: %v", r)
		}
	}()

	svc, closeFn, err := resolveServices(cmd.Context())
	if err != nil {
		return err
	}
	defer closeFn()

	ports := tui.NewPorts(svc.Chat, svc.Ingestion)
	ports.DefaultPath = svc.DefaultPath

	app, err := tui.NewApp(ports)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	app.WithContext(cmd.Context())

	if err := runProgram(app); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
