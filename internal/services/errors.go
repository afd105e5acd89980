package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrValidation marks caller mistakes caught before any side effect.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks registry/workflow misconfiguration; fatal to
	// the operation, never silently defaulted.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound marks missing entities.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks concurrent-modification failures (stale book
	// version, status changed underneath the caller).
	ErrConflict = errors.New("conflict")
	// ErrExternalService marks failures from the file-operations service or
	// the locality endpoint.
	ErrExternalService = errors.New("external service error")
	// ErrTransient marks everything else.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while
// tagging it with the provided marker for later classification. The marker
// should be one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
