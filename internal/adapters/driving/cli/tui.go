package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/finsight/internal/adapters/driving/tui"
	"github.com/custodia-labs/finsight/internal/core/domain"
)

var tuiTopK int

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for finsight.

Ask questions and browse the cited excerpts, or review and remove indexed
filings, with keyboard navigation.

Controls:
  ↑/k, ↓/j - Navigate citations or documents
  Enter    - Ask / Select
  o        - Show the source link of a citation
  Esc      - Back / Cancel
  q        - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().IntVarP(&tuiTopK, "top-k", "k", domain.DefaultTopK, "number of chunks to retrieve per question")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	// Add panic recovery to get stack traces
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	if answerService == nil {
		return errNotConfigured("answer service")
	}
	if indexService == nil {
		return errNotConfigured("index service")
	}

	app, err := tui.NewApp(&tui.Ports{Answer: answerService, Index: indexService, Eval: evalService})
	if err != nil {
		return domain.NewError(domain.KindValidation, "tui", err)
	}

	app.WithContext(cmd.Context()).WithTopK(tuiTopK)

	p := tea.NewProgram(app, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
