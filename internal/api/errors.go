package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// Error is returned when the API answers with a non-2xx status code.
type Error struct {
	Code    int
	Path    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api %s: %d %s", e.Path, e.Code, e.Message)
}

// problem is the application/problem+json body sent by the server on errors.
type problem struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

func newError(code int, path string, body []byte) *Error {
	e := &Error{Code: code, Path: path}
	if len(body) != 0 {
		p := problem{}
		if err := json.Unmarshal(body, &p); err == nil && (p.Detail != "" || p.Title != "") {
			e.Message = p.Detail
			if e.Message == "" {
				e.Message = p.Title
			}
			return e
		}
		e.Message = string(body)
		return e
	}
	e.Message = http.StatusText(code)
	return e
}

// IsNotFound reports whether err is an API error with status 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound
	}
	return false
}
