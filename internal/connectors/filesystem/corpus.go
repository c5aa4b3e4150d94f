// Package filesystem reads a local corpus of filings laid out as
// <root>/<TICKER>/<file> and watches it for changes.
package filesystem

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/logger"
)

var (
	filenameQuarter = regexp.MustCompile(`(?i)Q([1-4])\s*[-_]?\s*(\d{4})`)
	filenameFiscal  = regexp.MustCompile(`(?i)(?:FY|Annual)\s*[-_]?\s*(\d{4})`)
)

// Entry is a corpus file together with the metadata derived from its location.
type Entry struct {
	Path string
	Meta domain.DocumentMeta
}

// Skipped is a corpus file that could not be turned into an entry.
type Skipped struct {
	Path   string
	Reason string
}

// PeriodFromFilename extracts a canonical period from a filename such as
// "Amazon - Q3 2025.pdf" (Q3-2025) or "msft_FY2024.html" (FY-2024).
func PeriodFromFilename(name string) (string, bool) {
	if m := filenameQuarter.FindStringSubmatch(name); m != nil {
		return "Q" + m[1] + "-" + m[2], true
	}
	if m := filenameFiscal.FindStringSubmatch(name); m != nil {
		return "FY-" + m[1], true
	}
	return "", false
}

// MetaFromPath derives document metadata from a corpus path. The ticker
// is the parent directory; the period is taken from the filename unless
// period is given. The id is "<TICKER>_<period>_<stem>" so re-indexing
// the same file replaces its previous chunks.
func MetaFromPath(path, period string) (domain.DocumentMeta, error) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	ticker := strings.ToUpper(filepath.Base(filepath.Dir(path)))
	if !domain.ValidTicker(ticker) {
		return domain.DocumentMeta{}, fmt.Errorf("directory %q is not a ticker", filepath.Dir(path))
	}

	if period == "" {
		p, ok := PeriodFromFilename(base)
		if !ok {
			return domain.DocumentMeta{}, errors.New("no period in filename")
		}
		period = p
	}
	period = domain.NormalisePeriod(period)

	return domain.DocumentMeta{
		ID:         ticker + "_" + period + "_" + stem,
		Ticker:     ticker,
		Period:     period,
		FilingType: strings.TrimPrefix(strings.ToLower(ext), "."),
		Title:      stem,
		SourceURL:  FileURL(path),
	}, nil
}

// DiscoverTickers lists the ticker directories under root, uppercased and sorted.
func DiscoverTickers(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read corpus root: %w", err)
	}
	var tickers []string
	for _, e := range entries {
		if !e.IsDir() || isHidden(e.Name()) {
			continue
		}
		t := strings.ToUpper(e.Name())
		if domain.ValidTicker(t) {
			tickers = append(tickers, t)
		}
	}
	sort.Strings(tickers)
	return tickers, nil
}

// tickerDir finds the directory of ticker under root, accepting either case.
func tickerDir(root, ticker string) (string, bool) {
	for _, name := range []string{strings.ToUpper(ticker), strings.ToLower(ticker)} {
		dir := filepath.Join(root, name)
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir, true
		}
	}
	return "", false
}

// Scan lists the indexable files of the given tickers (all tickers when
// empty). Only files whose extension is in exts are considered. Files
// whose metadata cannot be derived are reported as skipped.
func Scan(root string, tickers []string, period string, exts []string) ([]Entry, []Skipped, error) {
	if len(tickers) == 0 {
		var err error
		if tickers, err = DiscoverTickers(root); err != nil {
			return nil, nil, err
		}
	}

	allowed := make(map[string]bool, len(exts))
	for _, e := range exts {
		allowed[strings.ToLower(e)] = true
	}

	var entries []Entry
	var skipped []Skipped
	for _, ticker := range tickers {
		dir, ok := tickerDir(root, ticker)
		if !ok {
			logger.Warn("No corpus directory for %s under %s", ticker, root)
			skipped = append(skipped, Skipped{Path: filepath.Join(root, ticker), Reason: "directory not found"})
			continue
		}
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", dir, err)
		}
		for _, f := range files {
			if f.IsDir() || isHidden(f.Name()) {
				continue
			}
			if !allowed[strings.ToLower(filepath.Ext(f.Name()))] {
				continue
			}
			path := filepath.Join(dir, f.Name())
			meta, err := MetaFromPath(path, period)
			if err != nil {
				logger.Warn("Skipping %s: %v", path, err)
				skipped = append(skipped, Skipped{Path: path, Reason: err.Error()})
				continue
			}
			entries = append(entries, Entry{Path: path, Meta: meta})
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	logger.Debug("Scanned %s: %d files, %d skipped", root, len(entries), len(skipped))
	return entries, skipped, nil
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "." || part == ".." || part == "" {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
