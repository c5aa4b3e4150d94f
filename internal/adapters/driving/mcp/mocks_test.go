package mcp

import (
	"context"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	retrieval *domain.Retrieval
	err       error
	lastQuery domain.Query
}

func (m *mockRetrievalService) Retrieve(_ context.Context, q domain.Query) (*domain.Retrieval, error) {
	m.lastQuery = q
	if m.err != nil {
		return nil, m.err
	}
	if m.retrieval == nil {
		return &domain.Retrieval{Query: q}, nil
	}
	return m.retrieval, nil
}

// mockAnswerService is a mock implementation of driving.AnswerService.
type mockAnswerService struct {
	answer    *domain.Answer
	err       error
	lastQuery domain.Query
}

func (m *mockAnswerService) Ask(_ context.Context, q domain.Query) (*domain.Answer, error) {
	m.lastQuery = q
	return m.answer, m.err
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	documents    []domain.DocumentRecord
	availability map[string][]string
	err          error
	lastFilter   domain.Filter
}

func (m *mockIndexService) IndexFile(_ context.Context, _ string, _ domain.DocumentMeta) (*driving.IndexReport, error) {
	return &driving.IndexReport{}, m.err
}

func (m *mockIndexService) IndexDocument(_ context.Context, _ *domain.Document) (*driving.IndexReport, error) {
	return &driving.IndexReport{}, m.err
}

func (m *mockIndexService) IndexDocuments(_ context.Context, _ []*domain.Document) []driving.IndexReport {
	return nil
}

func (m *mockIndexService) DeleteDocument(_ context.Context, _ string) (int, error) {
	return 0, m.err
}

func (m *mockIndexService) ListDocuments(_ context.Context, filter domain.Filter) ([]domain.DocumentRecord, error) {
	m.lastFilter = filter
	return m.documents, m.err
}

func (m *mockIndexService) Availability(_ context.Context) (map[string][]string, error) {
	return m.availability, m.err
}
