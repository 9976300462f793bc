package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/openkaraoke/studio/errors"
)

// errorBody is the error response shape for every endpoint.
type errorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		return errors.Wrap(err, "encode JSON response")
	}
	return nil
}

// writeError writes a JSON error response with an explicit code
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{
		Error:   message,
		Code:    code,
		Details: map[string]interface{}{},
	})
}

// writeDomainError maps a domain error to its HTTP status and code
func writeDomainError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errors.HTTPStatus(err))

	details := map[string]interface{}{}
	for i, d := range errors.GetAllDetails(err) {
		details[fmt.Sprintf("detail_%d", i)] = d
	}
	json.NewEncoder(w).Encode(errorBody{
		Error:   err.Error(),
		Code:    errors.Code(err),
		Details: details,
	})
}

// readJSON reads and decodes a JSON request body
func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, errors.CodeValidation,
			fmt.Sprintf("Invalid request body: %v", err))
		return err
	}
	return nil
}

// requireMethod checks if the request method matches the expected method
func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, errors.CodeValidation, "Method not allowed")
		return false
	}
	return true
}

// extractPathParts extracts path segments after removing a prefix
func extractPathParts(urlPath, prefix string) []string {
	trimmed := strings.Trim(strings.TrimPrefix(urlPath, prefix), "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// extractEscapedPathParts splits on the escaped request path, so an
// encoded slash stays inside its segment, then decodes each segment.
// Handlers that map a segment onto the filesystem must use this form:
// splitting the decoded path lets %2F smuggle separators across
// segment boundaries.
func extractEscapedPathParts(r *http.Request, prefix string) []string {
	raw := extractPathParts(r.URL.EscapedPath(), prefix)
	if raw == nil {
		return nil
	}
	parts := make([]string, len(raw))
	for i, seg := range raw {
		dec, err := url.PathUnescape(seg)
		if err != nil {
			dec = seg
		}
		parts[i] = dec
	}
	return parts
}
