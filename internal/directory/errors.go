package directory

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status    int
	Message   string
	RequestID string
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
}

// Unauthorized reports whether the backend refused the caller's session.
func (e *APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// AsAPIError returns the APIError in err's chain, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsUnauthorized reports whether err is a 401 or 403 from the backend.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Unauthorized()
}

// errorBody covers the error shapes the backend produces: a detail string
// for auth and permission failures, error/message from proxies, and a map
// of field name to messages for validation failures.
type errorBody struct {
	Detail  string `json:"detail"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseError(resp *http.Response, requestID string) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, RequestID: requestID}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		switch {
		case eb.Detail != "":
			apiErr.Message = eb.Detail
			return apiErr
		case eb.Error != "":
			apiErr.Message = eb.Error
			return apiErr
		case eb.Message != "":
			apiErr.Message = eb.Message
			return apiErr
		}
	}

	var fields map[string][]string
	if err := json.Unmarshal(body, &fields); err == nil && len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(fields[k], " ")))
		}
		apiErr.Message = strings.Join(parts, "; ")
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}
