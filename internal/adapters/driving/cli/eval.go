package cli

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/finsight/internal/adapters/driven/evalcases"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/finsight/internal/adapters/driving/tui/views/report"
	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
)

var (
	evalModels      []string
	evalRunID       string
	evalResume      string
	evalConcurrency int
	evalJSON        bool
	evalCSV         string
	evalNoProgress  bool
)

var evalCmd = &cobra.Command{
	Use:   "eval [cases-file]",
	Short: "Evaluate models against reference answers",
	Long: `Answers every case of a CSV or YAML file with every model, scores each
answer against its reference with the judge model, and prints per-model and
per-case tables.

CSV columns: question, expected_answer, tickers, period, and optionally id
and top_k. Tickers are separated by ';' or spaces.

A failing (model, case) pair is recorded with its error and never stops the
run. Results are stored as they complete; --resume skips pairs that already
have a result.

Examples:
  finsight eval cases.csv --models gpt-5.1,claude-opus-4.5
  finsight eval cases.yaml --json > run.json
  finsight eval cases.csv --resume 3f1c... --csv results.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

var evalReportCmd = &cobra.Command{
	Use:   "report [run-id]",
	Short: "Show the report of a stored run",
	Args:  cobra.ExactArgs(1),
	RunE:  runEvalReport,
}

var evalRunsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runEvalRuns,
}

func init() {
	evalCmd.Flags().StringSliceVarP(&evalModels, "models", "m", nil, "model aliases or ids (default: eval.models setting)")
	evalCmd.Flags().StringVar(&evalRunID, "run-id", "", "name for a new run (default: generated)")
	evalCmd.Flags().StringVar(&evalResume, "resume", "", "resume the run with this id")
	evalCmd.Flags().IntVarP(&evalConcurrency, "concurrency", "c", 0, "parallel (model, case) pairs (default: eval.concurrency setting)")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "output results and report as JSON")
	evalCmd.Flags().StringVar(&evalCSV, "csv", "", "also write result rows to this CSV file")
	evalCmd.Flags().BoolVar(&evalNoProgress, "no-progress", false, "disable the interactive progress view")

	evalReportCmd.Flags().BoolVar(&evalJSON, "json", false, "output the report as JSON")

	evalCmd.AddCommand(evalReportCmd)
	evalCmd.AddCommand(evalRunsCmd)
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	if evalService == nil {
		return errNotConfigured("evaluation service")
	}

	runID := evalRunID
	if evalResume != "" {
		if runID != "" && runID != evalResume {
			return domain.NewValidationError("--run-id and --resume name different runs")
		}
		runID = evalResume
	}

	cases, err := evalcases.Load(args[0])
	if err != nil {
		return fmt.Errorf("load cases: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := driving.EvalRequest{
		RunID:       runID,
		Cases:       cases,
		Models:      evalModels,
		Concurrency: evalConcurrency,
	}

	var run *driving.EvalRun
	if useProgressView(cmd) {
		run, err = tui.RunEvalProgress(ctx, evalService, req)
	} else {
		errOut := cmd.ErrOrStderr()
		req.Progress = func(p driving.EvalProgress) {
			printProgress(errOut, p)
		}
		run, err = evalService.Run(ctx, req)
	}
	if run == nil {
		if err == nil {
			err = domain.NewError(domain.KindInternal, "eval", fmt.Errorf("no run returned"))
		}
		return fmt.Errorf("eval: %w", err)
	}

	if evalCSV != "" {
		if cerr := writeResultsCSVFile(evalCSV, run.Results); cerr != nil {
			return cerr
		}
	}

	if evalJSON {
		if jerr := writeJSON(cmd, run); jerr != nil {
			return jerr
		}
	} else {
		cmd.Println(report.Render(run.Report, styles.DefaultStyles(), terminalWidth(cmd)))
		cmd.Printf("Run %s: %d result(s).", run.RunID, len(run.Results))
		if err != nil {
			cmd.Printf(" Interrupted; resume with --resume %s", run.RunID)
		}
		cmd.Println()
	}

	if err != nil {
		return fmt.Errorf("eval: %w", err)
	}
	return nil
}

func runEvalReport(cmd *cobra.Command, args []string) error {
	if evalService == nil {
		return errNotConfigured("evaluation service")
	}

	rep, err := evalService.Report(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}

	if evalJSON {
		return writeJSON(cmd, rep)
	}
	cmd.Println(report.Render(*rep, styles.DefaultStyles(), terminalWidth(cmd)))
	return nil
}

func runEvalRuns(cmd *cobra.Command, _ []string) error {
	if evalService == nil {
		return errNotConfigured("evaluation service")
	}

	runs, err := evalService.Runs(cmd.Context())
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No stored runs.")
		return nil
	}
	for _, id := range runs {
		cmd.Println(id)
	}
	return nil
}

// useProgressView reports whether the interactive progress view should
// drive the run.
func useProgressView(cmd *cobra.Command) bool {
	if evalJSON || evalNoProgress {
		return false
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of the output terminal, or 0 when the
// output is not a terminal.
func terminalWidth(cmd *cobra.Command) int {
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}

func printProgress(w io.Writer, p driving.EvalProgress) {
	r := p.Last
	status := "score=" + formatScore(r.Score)
	switch {
	case r.NeedsReview:
		status = "needs review"
	case r.Interrupted():
		status = "interrupted"
	case r.Failed():
		status = fmt.Sprintf("error [%s]", r.ErrorKind)
	}
	fmt.Fprintf(w, "[%d/%d] %s %s %s\n", p.Done, p.Total, r.Model, r.CaseID, status)
}

func formatScore(s *float64) string {
	if s == nil {
		return "-"
	}
	return strconv.FormatFloat(*s, 'f', 2, 64)
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// resultsHeader is the column order of the CSV export.
var resultsHeader = []string{
	"run_id", "model", "case_id", "question", "answer", "score", "needs_review",
	"rationale", "input_tokens", "output_tokens", "cost", "error_kind", "error", "duration_ms",
}

func writeResultsCSVFile(path string, results []domain.EvalResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteResultsCSV(f, results); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// WriteResultsCSV writes one row per result.
func WriteResultsCSV(w io.Writer, results []domain.EvalResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resultsHeader); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	for i := range results {
		r := &results[i]
		score := ""
		if r.Score != nil {
			score = strconv.FormatFloat(*r.Score, 'f', -1, 64)
		}
		row := []string{
			r.RunID,
			r.Model,
			r.CaseID,
			r.Question,
			strings.TrimSpace(r.Answer),
			score,
			strconv.FormatBool(r.NeedsReview),
			r.Rationale,
			strconv.Itoa(r.Usage.InputTokens),
			strconv.Itoa(r.Usage.OutputTokens),
			strconv.FormatFloat(r.Usage.Cost, 'f', -1, 64),
			string(r.ErrorKind),
			r.Error,
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
