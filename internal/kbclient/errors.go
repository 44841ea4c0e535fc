package kbclient

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ServiceError is a non-2xx answer from the knowledge base.
type ServiceError struct {
	StatusCode int
	Detail     string
}

// Error returns the detail verbatim so it can be shown to the user as is.
func (e *ServiceError) Error() string {
	return e.Detail
}

// String includes the status code for logs.
func (e *ServiceError) String() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
}

// AsServiceError unwraps err into a *ServiceError if it is one.
func AsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}

// newServiceError extracts a string "detail" field from body. Anything else
// (empty body, invalid JSON, validation error lists) yields fallback.
func newServiceError(status int, body []byte, fallback string) *ServiceError {
	var payload struct {
		Detail any `json:"detail"`
	}
	detail := fallback
	if err := json.Unmarshal(body, &payload); err == nil {
		if s, ok := payload.Detail.(string); ok && s != "" {
			detail = s
		}
	}
	return &ServiceError{StatusCode: status, Detail: detail}
}
