// Package mcp provides an MCP (Model Context Protocol) server adapter for finsight.
// It lets AI assistants ask cited questions about indexed filings and
// search the filing index.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")
