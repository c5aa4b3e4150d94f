package cli

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
)

// writeCorpus creates <root>/<TICKER>/<file> fixtures.
func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return root
}

func TestIndexCmd_RequiresPath(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("index")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestIndexCmd_Corpus(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	root := writeCorpus(t, map[string]string{
		"AMZN/Amazon - Q3 2025.txt": "Net sales increased 11%.",
		"msft/msft_FY2024.md":       "Revenue was $245.1 billion.",
		"AMZN/notes.csv":            "ignored",
	})

	out, err := execute("index", "--filing-type", "10-Q", root)

	require.NoError(t, err)
	require.Len(t, ts.index.indexed, 2)
	assert.Equal(t, "AMZN_Q3-2025_Amazon - Q3 2025", ts.index.indexed[0].ID)
	assert.Equal(t, "10-Q", ts.index.indexed[0].FilingType)
	assert.Equal(t, "MSFT", ts.index.indexed[1].Ticker)
	assert.Equal(t, "FY-2024", ts.index.indexed[1].Period)
	assert.Contains(t, out, "indexed    AMZN_Q3-2025_Amazon - Q3 2025: 2 pages, 5 chunks")
	assert.Contains(t, out, "Indexed 2 of 2 file(s).")
}

func TestIndexCmd_SingleFileFlags(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	root := writeCorpus(t, map[string]string{"report.txt": "Revenue grew."})

	_, err := execute("index", "--ticker", "nvda", "--period", "q2 2025", "--title", "NVIDIA Q2",
		"--url", "https://example.com/nvda.pdf", "--id", "nvda-q2", filepath.Join(root, "report.txt"))

	require.NoError(t, err)
	require.Len(t, ts.index.indexed, 1)
	meta := ts.index.indexed[0]
	assert.Equal(t, "nvda-q2", meta.ID)
	assert.Equal(t, "NVDA", meta.Ticker)
	assert.Equal(t, "Q2-2025", meta.Period)
	assert.Equal(t, "NVIDIA Q2", meta.Title)
	assert.Equal(t, "https://example.com/nvda.pdf", meta.SourceURL)
}

func TestIndexCmd_SingleFileWithoutPeriod(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	root := writeCorpus(t, map[string]string{"report.txt": "Revenue grew."})

	_, err := execute("index", "--ticker", "NVDA", filepath.Join(root, "report.txt"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "pass --period")
}

func TestIndexCmd_UnchangedReport(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.index.IndexFileFunc = func(_ context.Context, _ string, meta domain.DocumentMeta) (*driving.IndexReport, error) {
		return &driving.IndexReport{DocumentID: meta.ID, Chunks: 5, Unchanged: 5}, nil
	}

	root := writeCorpus(t, map[string]string{"AMZN/Amazon - Q3 2025.txt": "Net sales increased."})

	out, err := execute("index", root)

	require.NoError(t, err)
	assert.Contains(t, out, "unchanged  AMZN_Q3-2025_Amazon - Q3 2025 (5 chunks)")
}

func TestIndexCmd_PartialFailure(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.index.IndexFileFunc = func(_ context.Context, _ string, meta domain.DocumentMeta) (*driving.IndexReport, error) {
		if meta.Ticker == "MSFT" {
			return nil, domain.NewError(domain.KindProvider, "embed", errors.New("quota exceeded"))
		}
		return &driving.IndexReport{DocumentID: meta.ID, Chunks: 1, Embedded: 1}, nil
	}

	root := writeCorpus(t, map[string]string{
		"AMZN/Amazon - Q3 2025.txt": "a",
		"MSFT/msft_FY2024.txt":      "b",
	})

	out, err := execute("index", root)

	require.Error(t, err)
	assert.Equal(t, domain.KindIndex, errorKind(err))
	assert.Contains(t, err.Error(), "1 of 2 file(s) failed")
	assert.Contains(t, out, "quota exceeded")
	assert.Contains(t, out, "Indexed 1 of 2 file(s).")
}

func TestIndexCmd_JSONOutput(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	root := writeCorpus(t, map[string]string{"AMZN/Amazon - Q3 2025.txt": "a"})

	out, err := execute("index", "--json", root)
	require.NoError(t, err)

	var got []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "AMZN_Q3-2025_Amazon - Q3 2025", got[0]["document_id"])
	assert.NotContains(t, got[0], "error")
}

func TestIndexCmd_NoIndexableFiles(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	root := writeCorpus(t, map[string]string{"AMZN/readme.csv": "x"})

	_, err := execute("index", root)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no indexable files found")
}

func TestIndexCmd_MissingPath(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("index", filepath.Join(t.TempDir(), "missing"))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestApplyMetaFlags(t *testing.T) {
	defer resetFlags()
	indexFilingType = "10-K"
	indexTitle = "Custom"

	meta := domain.DocumentMeta{ID: "a", Title: "t", FilingType: "pdf"}
	applyMetaFlags(&meta, false)
	assert.Equal(t, "10-K", meta.FilingType)
	assert.Equal(t, "t", meta.Title)

	applyMetaFlags(&meta, true)
	assert.Equal(t, "Custom", meta.Title)
}
