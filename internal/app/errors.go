package app

import (
	"fmt"
	"net/http"
	"strings"
)

// DomainError is an error with the HTTP status and machine readable code the
// API answers with.
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

func errFeatureUnavailable(feature string) *DomainError {
	return domainError(http.StatusServiceUnavailable, "FEATURE_UNAVAILABLE", feature+" is not configured", nil)
}

func errSectionNotFound(sectionID string) *DomainError {
	return domainError(http.StatusNotFound, "SECTION_NOT_FOUND", "Section not found", map[string]any{"sectionId": sectionID})
}

func errValidation(message string) *DomainError {
	return domainError(http.StatusBadRequest, "VALIDATION_ERROR", message, nil)
}

func validateOwner(ownerID string) error {
	if strings.TrimSpace(ownerID) == "" {
		return errValidation("owner is required")
	}
	return nil
}
