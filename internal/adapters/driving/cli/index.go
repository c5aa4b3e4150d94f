package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/finsight/internal/connectors/filesystem"
	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
	"github.com/custodia-labs/finsight/internal/logger"
)

var (
	indexTicker     string
	indexPeriod     string
	indexFilingType string
	indexTitle      string
	indexURL        string
	indexID         string
	indexWatch      bool
	indexJSON       bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path...]",
	Short: "Index filings",
	Long: `Parses, chunks, embeds and stores filings.

A directory is read as a corpus laid out as <root>/<TICKER>/<file>; the
period is taken from each filename ("Amazon - Q3 2025.pdf") unless --period
is given. A single file takes its ticker from --ticker or its parent
directory. Re-indexing unchanged content is a no-op.

Examples:
  finsight index ./corpus
  finsight index ./corpus --ticker AMZN --period Q3-2025
  finsight index report.pdf --ticker MSFT --period FY-2024
  finsight index ./corpus --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().StringVarP(&indexTicker, "ticker", "t", "", "ticker of the filing (directories: only index this ticker)")
	indexCmd.Flags().StringVarP(&indexPeriod, "period", "p", "", "reporting period, e.g. Q3-2025")
	indexCmd.Flags().StringVar(&indexFilingType, "filing-type", "", "filing type, e.g. 10-Q")
	indexCmd.Flags().StringVar(&indexTitle, "title", "", "document title (single file only)")
	indexCmd.Flags().StringVar(&indexURL, "url", "", "public URL of the filing (single file only)")
	indexCmd.Flags().StringVar(&indexID, "id", "", "document id (single file only)")
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "keep running and re-index changed files")
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "output reports as JSON")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	if indexService == nil {
		return errNotConfigured("index service")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	entries, dirs, err := collectEntries(args)
	if err != nil {
		return err
	}

	var reports []driving.IndexReport
	var failed int
	for _, e := range entries {
		report, err := indexService.IndexFile(ctx, e.Path, e.Meta)
		if err != nil {
			failed++
			logger.Error("Indexing %s failed: %v", e.Path, err)
			if !indexJSON {
				cmd.PrintErrf("  failed  %s: %v\n", e.Path, err)
			}
			reports = append(reports, driving.IndexReport{DocumentID: e.Meta.ID, Err: err})
			continue
		}
		reports = append(reports, *report)
		if !indexJSON {
			printIndexReport(cmd, e.Path, report)
		}
	}

	if indexJSON {
		if err := outputIndexJSON(cmd, reports); err != nil {
			return err
		}
	} else if len(entries) > 1 {
		cmd.Printf("\nIndexed %d of %d file(s).\n", len(entries)-failed, len(entries))
	}

	if indexWatch {
		return watchCorpus(ctx, cmd, dirs)
	}

	if failed > 0 {
		return domain.NewError(domain.KindIndex, "index", fmt.Errorf("%d of %d file(s) failed", failed, len(entries)))
	}
	return nil
}

// collectEntries expands path arguments into files to index. Directory
// arguments are returned separately for --watch.
func collectEntries(args []string) ([]filesystem.Entry, []string, error) {
	var entries []filesystem.Entry
	var dirs []string

	single := len(args) == 1
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, nil, domain.NewError(domain.KindValidation, "index", err)
		}

		if info.IsDir() {
			dirs = append(dirs, arg)
			var tickers []string
			if indexTicker != "" {
				tickers = []string{indexTicker}
			}
			found, skipped, err := filesystem.Scan(arg, tickers, indexPeriod, indexExtensions)
			if err != nil {
				return nil, nil, domain.NewError(domain.KindValidation, "index", err)
			}
			for _, s := range skipped {
				logger.Warn("Skipped %s: %s", s.Path, s.Reason)
			}
			for i := range found {
				applyMetaFlags(&found[i].Meta, false)
			}
			entries = append(entries, found...)
			continue
		}

		meta, err := fileMeta(arg)
		if err != nil {
			return nil, nil, domain.NewError(domain.KindValidation, "index "+arg, err)
		}
		applyMetaFlags(&meta, single)
		entries = append(entries, filesystem.Entry{Path: arg, Meta: meta})
	}

	if len(entries) == 0 && !(indexWatch && len(dirs) > 0) {
		return nil, nil, domain.NewValidationError("no indexable files found (supported: %s)", strings.Join(indexExtensions, ", "))
	}
	return entries, dirs, nil
}

// fileMeta derives metadata for a single file argument.
func fileMeta(path string) (domain.DocumentMeta, error) {
	if indexTicker == "" {
		return filesystem.MetaFromPath(path, indexPeriod)
	}

	period := indexPeriod
	base := filepath.Base(path)
	if period == "" {
		p, ok := filesystem.PeriodFromFilename(base)
		if !ok {
			return domain.DocumentMeta{}, errors.New("no period in filename; pass --period")
		}
		period = p
	}
	period = domain.NormalisePeriod(period)
	ticker := strings.ToUpper(indexTicker)
	stem := strings.TrimSuffix(base, filepath.Ext(base))

	return domain.DocumentMeta{
		ID:         ticker + "_" + period + "_" + stem,
		Ticker:     ticker,
		Period:     period,
		FilingType: strings.TrimPrefix(strings.ToLower(filepath.Ext(base)), "."),
		Title:      stem,
		SourceURL:  filesystem.FileURL(path),
	}, nil
}

// applyMetaFlags overrides derived metadata with explicit flags.
// Per-document flags only apply when a single file is indexed.
func applyMetaFlags(meta *domain.DocumentMeta, single bool) {
	if indexFilingType != "" {
		meta.FilingType = indexFilingType
	}
	if !single {
		return
	}
	if indexTitle != "" {
		meta.Title = indexTitle
	}
	if indexURL != "" {
		meta.SourceURL = indexURL
	}
	if indexID != "" {
		meta.ID = indexID
	}
}

func printIndexReport(cmd *cobra.Command, path string, r *driving.IndexReport) {
	if r.Embedded == 0 && r.Removed == 0 {
		cmd.Printf("  unchanged  %s (%d chunks)\n", r.DocumentID, r.Chunks)
		return
	}
	cmd.Printf("  indexed    %s: %d pages, %d chunks (%d embedded, %d removed) in %s\n",
		r.DocumentID, r.Pages, r.Chunks, r.Embedded, r.Removed, r.Duration.Round(time.Millisecond))
	logger.Debug("Indexed %s from %s", r.DocumentID, path)
}

func outputIndexJSON(cmd *cobra.Command, reports []driving.IndexReport) error {
	type reportJSON struct {
		driving.IndexReport
		Error string `json:"error,omitempty"`
	}
	out := make([]reportJSON, len(reports))
	for i, r := range reports {
		out[i] = reportJSON{IndexReport: r}
		if r.Err != nil {
			out[i].Error = r.Err.Error()
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reports: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

// watchCorpus re-indexes files under dirs as they change, until
// interrupted.
func watchCorpus(ctx context.Context, cmd *cobra.Command, dirs []string) error {
	if len(dirs) == 0 {
		return domain.NewValidationError("--watch needs a corpus directory")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.Printf("Watching %s for changes (Ctrl+C to stop)\n", strings.Join(dirs, ", "))

	g, ctx := errgroup.WithContext(ctx)
	for _, dir := range dirs {
		w := filesystem.NewWatcher(dir, indexPeriod, indexExtensions)
		g.Go(func() error {
			return w.Run(ctx, func(c filesystem.Change) {
				handleChange(ctx, cmd, c)
			})
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return domain.NewError(domain.KindIndex, "watch", err)
	}
	return nil
}

func handleChange(ctx context.Context, cmd *cobra.Command, c filesystem.Change) {
	switch c.Type {
	case filesystem.ChangeDeleted:
		n, err := indexService.DeleteDocument(ctx, c.Entry.Meta.ID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			cmd.PrintErrf("  failed   delete %s: %v\n", c.Entry.Meta.ID, err)
			return
		}
		cmd.Printf("  removed    %s (%d chunks)\n", c.Entry.Meta.ID, n)
	default:
		meta := c.Entry.Meta
		applyMetaFlags(&meta, false)
		report, err := indexService.IndexFile(ctx, c.Entry.Path, meta)
		if err != nil {
			cmd.PrintErrf("  failed   %s: %v\n", c.Entry.Path, err)
			return
		}
		printIndexReport(cmd, c.Entry.Path, report)
	}
}
