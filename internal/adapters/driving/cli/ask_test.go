package cli

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

func TestAskCmd_Flags(t *testing.T) {
	for _, name := range []string{"ticker", "period", "top-k", "json", "model"} {
		assert.NotNil(t, askCmd.Flags().Lookup(name), "%s flag should exist", name)
	}
	assert.Equal(t, "8", askCmd.Flags().Lookup("top-k").DefValue)
}

func TestAskCmd_RequiresQuestion(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("ask")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires at least 1 arg(s)")
}

func TestAskCmd_TextOutput(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("ask", "-t", "AMZN", "-p", "Q3-2025", "-k", "4", "-m", "sonnet", "How", "did", "AWS", "do?")

	require.NoError(t, err)
	assert.Equal(t, "How did AWS do?", ts.answer.last.Question)
	assert.Equal(t, []string{"AMZN"}, ts.answer.last.Tickers)
	assert.Equal(t, "Q3-2025", ts.answer.last.Period)
	assert.Equal(t, 4, ts.answer.last.TopK)
	assert.Equal(t, "sonnet", ts.answer.last.Model)

	assert.Contains(t, out, "AWS segment sales increased 20%.")
	assert.Contains(t, out, "Sources:")
	assert.Contains(t, out, "[1] Amazon - Q3 2025.pdf p.4 lines 12-15 (0.74)")
	assert.Contains(t, out, "Tokens: 900 in / 40 out")
	assert.Contains(t, out, "$0.0031")
}

func TestAskCmd_JSONOutput(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	out, err := execute("ask", "--json", "How did AWS do?")
	require.NoError(t, err)

	var got struct {
		Answer    string `json:"answer"`
		Citations []struct {
			Source string `json:"source"`
			Page   int    `json:"page"`
			Lines  string `json:"lines"`
		} `json:"citations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "AWS segment sales increased 20%.", got.Answer)
	require.Len(t, got.Citations, 1)
	assert.Equal(t, 4, got.Citations[0].Page)
	assert.Equal(t, "12-15", got.Citations[0].Lines)
}

func TestAskCmd_NoMatchingFilings(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.answer.AskFunc = func(_ context.Context, q domain.Query) (*domain.Answer, error) {
		return &domain.Answer{
			Question:     q.Question,
			Text:         "No indexed filing matches TSLA.",
			Availability: map[string][]string{"AMZN": {"Q3-2025"}},
		}, nil
	}

	out, err := execute("ask", "What did TSLA earn?")

	require.NoError(t, err)
	assert.Contains(t, out, "No indexed filing matches TSLA.")
	assert.NotContains(t, out, "Sources:")
	assert.NotContains(t, out, "Tokens:")
}

func TestAskCmd_ReportsGaps(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.answer.AskFunc = func(_ context.Context, q domain.Query) (*domain.Answer, error) {
		return &domain.Answer{
			Text:    "Revenue grew. Margins widened.",
			Context: []domain.ScoredChunk{{Chunk: domain.Chunk{ID: "c1"}}},
			Gaps:    []domain.CitationGap{{SentenceIndex: 1, Sentence: "Margins widened."}},
		}, nil
	}

	out, err := execute("ask", "q")

	require.NoError(t, err)
	assert.Contains(t, out, "1 sentence(s) could not be attributed to a source.")
}

func TestAskCmd_ServiceError(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.answer.AskFunc = func(context.Context, domain.Query) (*domain.Answer, error) {
		return nil, domain.NewError(domain.KindProvider, "generate", errors.New("rate limited"))
	}

	_, err := execute("ask", "q")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrProvider)
	assert.Equal(t, domain.KindProvider, errorKind(err))
}

func TestAskCmd_NotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	answerService = nil

	_, err := execute("ask", "q")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "answer service")
}

func TestAnswerToJSON_UncitedSentences(t *testing.T) {
	a := &domain.Answer{
		Text: "One. Two.",
		Gaps: []domain.CitationGap{{SentenceIndex: 1, Sentence: "Two."}},
	}

	got, ok := AnswerToJSON(a).(answerJSON)

	require.True(t, ok)
	assert.Empty(t, got.Citations)
	assert.Equal(t, []string{"Two."}, got.Uncited)
}
