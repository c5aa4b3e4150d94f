package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/finsight/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for finsight resources.
	uriScheme = "finsight://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource mapping tickers to indexed periods.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "availability",
		Name:        "availability",
		Description: "Indexed tickers and the reporting periods available for each",
		MIMEType:    "application/json",
	}, s.handleAvailabilityResource)

	// Static resource listing every indexed document.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "documents",
		Name:        "documents",
		Description: "All indexed filings",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)

	// Template for the documents of one ticker.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "tickers/{ticker}/documents",
		Name:        "ticker-documents",
		Description: "Indexed filings of a specific ticker",
		MIMEType:    "application/json",
	}, s.handleDocumentsResource)
}

// handleAvailabilityResource returns the ticker to periods map.
func (s *Server) handleAvailabilityResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Index == nil {
		return jsonResource(req.Params.URI, map[string][]string{})
	}

	avail, err := s.ports.Index.Availability(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing availability: %w", err)
	}
	if avail == nil {
		avail = map[string][]string{}
	}
	return jsonResource(req.Params.URI, avail)
}

// handleDocumentsResource returns indexed documents, optionally for one ticker.
func (s *Server) handleDocumentsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Index == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	var filter domain.Filter
	if req.Params.URI != uriScheme+"documents" {
		// Extract ticker from URI: finsight://tickers/{ticker}/documents
		ticker := extractTicker(req.Params.URI)
		if ticker == "" || !domain.ValidTicker(ticker) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		filter = domain.NewFilter([]string{ticker}, "")
	}

	docs, err := s.ports.Index.ListDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	// Build simplified document list.
	type docInfo struct {
		ID     string `json:"id"`
		Ticker string `json:"ticker"`
		Period string `json:"period"`
		Title  string `json:"title,omitempty"`
		URL    string `json:"url,omitempty"`
		Pages  int    `json:"pages"`
		Chunks int    `json:"chunks"`
	}

	infos := make([]docInfo, len(docs))
	for i := range docs {
		infos[i] = docInfo{
			ID:     docs[i].ID,
			Ticker: strings.ToUpper(docs[i].Ticker),
			Period: docs[i].Period,
			Title:  docs[i].Title,
			URL:    docs[i].SourceURL,
			Pages:  docs[i].Pages,
			Chunks: docs[i].Chunks,
		}
	}

	return jsonResource(req.Params.URI, infos)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractTicker extracts the ticker from a URI like finsight://tickers/{ticker}/documents.
func extractTicker(uri string) string {
	const prefix = uriScheme + "tickers/"
	const suffix = "/documents"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}
