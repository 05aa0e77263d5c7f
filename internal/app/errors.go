package app

import (
	"fmt"
	"net/http"

	"github.com/freddynasr/trailtailor/internal/rbac"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func errForbidden(action rbac.Action) *DomainError {
	return domainError(http.StatusForbidden, "FORBIDDEN", "Forbidden", map[string]any{"action": action})
}

func errSessionNotFound(sessionID string) *DomainError {
	return domainError(http.StatusNotFound, "SESSION_NOT_FOUND", "Editing session not found", map[string]any{"sessionId": sessionID})
}

func errValidation(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}

func errUnavailable(feature string) *DomainError {
	return domainError(http.StatusServiceUnavailable, "UNAVAILABLE", feature+" is not configured", nil)
}
