package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is returned for any non-2xx response. Message holds the
// server-provided explanation when the body carried one.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (%d) on %s %s: %s", e.StatusCode, e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("unexpected status %d on %s %s", e.StatusCode, e.Method, e.Path)
}

// errorResponse covers the error shapes the backend uses.
type errorResponse struct {
	Erro    string `json:"erro"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{Method: method, Path: path, StatusCode: status}

	var er errorResponse
	if json.Unmarshal(body, &er) == nil {
		for _, msg := range []string{er.Erro, er.Message, er.Error} {
			if strings.TrimSpace(msg) != "" {
				apiErr.Message = msg
				break
			}
		}
	}
	return apiErr
}

// ServerMessage returns the server-provided message carried by err,
// or "" when err is not an APIError or has no message.
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// IsUnauthorized reports whether err (or any error in its chain) is an
// APIError with status 401.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}
