package backend

import (
	"fmt"
	"strings"
)

// APIError is a non-2xx response other than a validation failure.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// FieldError is one entry of a 422 response's detail list.
type FieldError struct {
	Loc  []string
	Msg  string
	Type string
}

// ValidationError is a 422 response.
type ValidationError struct {
	Method string
	Path   string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if len(f.Loc) == 0 {
			parts = append(parts, f.Msg)
			continue
		}
		parts = append(parts, strings.Join(f.Loc, ".")+": "+f.Msg)
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s %s: validation failed", e.Method, e.Path)
	}
	return fmt.Sprintf("%s %s: validation failed: %s", e.Method, e.Path, strings.Join(parts, "; "))
}
