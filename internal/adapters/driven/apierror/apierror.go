// Package apierror converts non-2xx provider HTTP responses into typed errors
// that carry the status code.
package apierror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/finsight/internal/core/domain"
	"github.com/custodia-labs/finsight/internal/core/ports/driven"
)

// Ensure Error implements the interface.
var _ driven.StatusError = (*Error)(nil)

// maxBodyBytes bounds how much of an error body is read.
const maxBodyBytes = 4096

// Error is a provider HTTP failure.
type Error struct {
	Provider string
	Status   int
	Message  string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: API returned status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: API returned status %d: %s", e.Provider, e.Status, e.Message)
}

// StatusCode returns the HTTP status.
func (e *Error) StatusCode() int {
	return e.Status
}

// Unwrap maps 429 to domain.ErrRateLimited.
func (e *Error) Unwrap() error {
	if e.Status == http.StatusTooManyRequests {
		return domain.ErrRateLimited
	}
	return nil
}

// FromResponse builds an Error from a non-2xx response. It reads at most
// maxBodyBytes of the body and extracts the provider message when the body
// is one of the common JSON error shapes.
func FromResponse(provider string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	return &Error{
		Provider: provider,
		Status:   resp.StatusCode,
		Message:  messageFrom(body),
	}
}

// messageFrom extracts an error message from {"error":{"message":..}},
// {"error":".."} or {"message":".."}; otherwise the trimmed body.
func messageFrom(body []byte) string {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return nested.Error.Message
	}
	var flat struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &flat) == nil {
		if flat.Error != "" {
			return flat.Error
		}
		if flat.Message != "" {
			return flat.Message
		}
	}
	return strings.TrimSpace(string(body))
}

// Malformed wraps a decode failure as domain.ErrMalformedResponse.
func Malformed(provider string, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, domain.ErrMalformedResponse, err)
}

// IsStatus reports whether err is a provider Error with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == status
}
