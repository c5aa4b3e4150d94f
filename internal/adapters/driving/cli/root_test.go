package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
)

// Mock services for CLI testing.

type mockAnswerService struct {
	AskFunc func(ctx context.Context, q domain.Query) (*domain.Answer, error)
	last    domain.Query
}

func (m *mockAnswerService) Ask(ctx context.Context, q domain.Query) (*domain.Answer, error) {
	m.last = q
	if m.AskFunc != nil {
		return m.AskFunc(ctx, q)
	}
	return &domain.Answer{
		Question: q.Question,
		Text:     "AWS segment sales increased 20%.",
		Model:    "gpt-5.1",
		Context:  []domain.ScoredChunk{{Chunk: domain.Chunk{ID: "c1"}, Similarity: 0.81}},
		Citations: []domain.Citation{{
			ChunkID: "c1", Source: "Amazon - Q3 2025.pdf", Ticker: "amzn", Period: "Q3-2025",
			Page: 4, StartLine: 12, EndLine: 15, Excerpt: "AWS segment sales increased 20%", Score: 0.74,
		}},
		Usage: domain.Usage{InputTokens: 900, OutputTokens: 40, Cost: 0.0031},
	}, nil
}

type mockRetrievalService struct {
	RetrieveFunc func(ctx context.Context, q domain.Query) (*domain.Retrieval, error)
}

func (m *mockRetrievalService) Retrieve(ctx context.Context, q domain.Query) (*domain.Retrieval, error) {
	if m.RetrieveFunc != nil {
		return m.RetrieveFunc(ctx, q)
	}
	return &domain.Retrieval{
		Query: q,
		Chunks: []domain.ScoredChunk{{
			Chunk: domain.Chunk{
				ID: "c1", DocumentID: "AMZN_Q3-2025_10q", Ticker: "amzn", Period: "Q3-2025",
				SourceFile: "Amazon - Q3 2025.pdf", Page: 4, StartLine: 12, EndLine: 15,
				Text: "AWS segment sales increased 20% year-over-year to $33.0 billion.",
			},
			Similarity: 0.81,
		}},
	}, nil
}

type mockIndexService struct {
	IndexFileFunc func(ctx context.Context, path string, meta domain.DocumentMeta) (*driving.IndexReport, error)
	Docs          []domain.DocumentRecord
	Avail         map[string][]string
	DeleteErr     error
	filter        domain.Filter
	indexed       []domain.DocumentMeta
}

func (m *mockIndexService) IndexFile(ctx context.Context, path string, meta domain.DocumentMeta) (*driving.IndexReport, error) {
	m.indexed = append(m.indexed, meta)
	if m.IndexFileFunc != nil {
		return m.IndexFileFunc(ctx, path, meta)
	}
	return &driving.IndexReport{DocumentID: meta.ID, Pages: 2, Chunks: 5, Embedded: 5}, nil
}

func (m *mockIndexService) IndexDocument(_ context.Context, doc *domain.Document) (*driving.IndexReport, error) {
	return &driving.IndexReport{DocumentID: doc.ID}, nil
}

func (m *mockIndexService) IndexDocuments(context.Context, []*domain.Document) []driving.IndexReport {
	return nil
}

func (m *mockIndexService) DeleteDocument(_ context.Context, id string) (int, error) {
	if m.DeleteErr != nil {
		return 0, m.DeleteErr
	}
	return 12, nil
}

func (m *mockIndexService) ListDocuments(_ context.Context, f domain.Filter) ([]domain.DocumentRecord, error) {
	m.filter = f
	return m.Docs, nil
}

func (m *mockIndexService) Availability(context.Context) (map[string][]string, error) {
	return m.Avail, nil
}

type mockEvalService struct {
	RunFunc func(ctx context.Context, req driving.EvalRequest) (*driving.EvalRun, error)
	Stored  map[string]*domain.Report
	last    driving.EvalRequest
}

func (m *mockEvalService) Run(ctx context.Context, req driving.EvalRequest) (*driving.EvalRun, error) {
	m.last = req
	if m.RunFunc != nil {
		return m.RunFunc(ctx, req)
	}
	run := &driving.EvalRun{RunID: "run-1"}
	for _, c := range req.Cases {
		r := domain.EvalResult{RunID: "run-1", CaseID: c.ID, Model: "gpt-5.1", Question: c.Question, Score: domain.Float(1)}
		run.Results = append(run.Results, r)
		if req.Progress != nil {
			req.Progress(driving.EvalProgress{Done: len(run.Results), Total: len(req.Cases), Last: r})
		}
	}
	run.Report = domain.Report{RunID: "run-1", Threshold: 0.5, Models: []domain.ModelSummary{{
		Model: "gpt-5.1", Cases: len(req.Cases), Scored: len(req.Cases), MeanScore: domain.Float(1), PassRate: domain.Float(1),
	}}}
	return run, nil
}

func (m *mockEvalService) Report(_ context.Context, runID string) (*domain.Report, error) {
	rep, ok := m.Stored[runID]
	if !ok {
		return nil, domain.NewError(domain.KindValidation, "report", fmt.Errorf("run %s: %w", runID, domain.ErrNotFound))
	}
	return rep, nil
}

func (m *mockEvalService) Runs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.Stored))
	for id := range m.Stored {
		ids = append(ids, id)
	}
	return ids, nil
}

type mockSettingsService struct {
	settings domain.AppSettings
	SetErr   error
	set      map[string]string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultAppSettings(), set: make(map[string]string)}
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettingsService) Set(key, value string) error {
	if m.SetErr != nil {
		return m.SetErr
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(domain.AIProvider, string, string) error { return nil }
func (m *mockSettingsService) SetLLMProvider(domain.AIProvider, string, string) error       { return nil }
func (m *mockSettingsService) SetIndexBackend(domain.IndexBackend) error                    { return nil }
func (m *mockSettingsService) Validate() error                                              { return nil }
func (m *mockSettingsService) GetDefaults() domain.AppSettings                              { return domain.DefaultAppSettings() }
func (m *mockSettingsService) ValidateEmbeddingConfig() error                               { return nil }
func (m *mockSettingsService) ValidateLLMConfig() error                                     { return nil }

// testServices holds the mocks wired by setupTestServices.
type testServices struct {
	answer    *mockAnswerService
	retrieval *mockRetrievalService
	index     *mockIndexService
	eval      *mockEvalService
	settings  *mockSettingsService
}

// setupTestServices wires mock services and returns a cleanup function
// that clears them and resets command flags.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		answer:    &mockAnswerService{},
		retrieval: &mockRetrievalService{},
		index:     &mockIndexService{},
		eval:      &mockEvalService{},
		settings:  newMockSettingsService(),
	}
	SetServices(&Services{
		Answer:     ts.answer,
		Retrieval:  ts.retrieval,
		Index:      ts.index,
		Eval:       ts.eval,
		Settings:   ts.settings,
		Extensions: []string{".pdf", ".txt", ".md"},
	})
	return ts, func() {
		SetServices(nil)
		resetFlags()
	}
}

// resetFlags restores package-level flag values between executions.
func resetFlags() {
	askFlags = queryFlags{topK: domain.DefaultTopK}
	askModel = ""
	searchFlags = queryFlags{topK: domain.DefaultTopK}
	indexTicker, indexPeriod, indexFilingType = "", "", ""
	indexTitle, indexURL, indexID = "", "", ""
	indexWatch, indexJSON = false, false
	evalModels, evalRunID, evalResume = nil, "", ""
	evalConcurrency, evalJSON, evalCSV, evalNoProgress = 0, false, "", false
	documentTickers, documentPeriod, documentJSON = nil, "", false
	periodsJSON = false
	verbose = false
}

// execute runs the root command with args and returns the combined output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	commandStarted = false
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	for _, want := range []string{"ask", "search", "index", "document", "periods", "eval", "settings", "mcp", "metrics", "tui", "version"} {
		assert.True(t, names[want], "%s command should be registered", want)
	}
}

func TestSetServices_Nil(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	SetServices(nil)

	assert.Nil(t, answerService)
	assert.Nil(t, indexService)
	assert.Nil(t, evalService)
}

func TestSetVersion(t *testing.T) {
	original := version
	defer func() { version = original }()

	SetVersion("")
	assert.Equal(t, original, version)

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
}

func TestErrorKind(t *testing.T) {
	defer func() { commandStarted = false }()

	tests := []struct {
		name    string
		err     error
		started bool
		want    domain.ErrorKind
	}{
		{"structured", domain.NewError(domain.KindProvider, "embed", errors.New("429")), true, domain.KindProvider},
		{"wrapped structured", fmt.Errorf("ask: %w", domain.NewError(domain.KindGeneration, "generate", errors.New("empty"))), true, domain.KindGeneration},
		{"usage error", errors.New(`unknown flag: --bogus`), false, domain.KindValidation},
		{"plain failure", errors.New("boom"), true, domain.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			commandStarted = tt.started
			assert.Equal(t, tt.want, errorKind(tt.err))
		})
	}
}

func TestPrintError(t *testing.T) {
	buf := new(bytes.Buffer)

	printError(buf, domain.NewValidationError("invalid ticker %q", "AM ZN"))

	assert.Equal(t, "error [validation]: validation: invalid ticker \"AM ZN\"\n", buf.String())
}

func TestErrNotConfigured(t *testing.T) {
	err := errNotConfigured("answer service")

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "answer service")
	assert.Contains(t, err.Error(), "finsight settings show")
}

func TestUnknownFlag_IsValidationError(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("ask", "--bogus", "q")

	assert.Error(t, err)
	assert.Equal(t, domain.KindValidation, errorKind(err))
}
