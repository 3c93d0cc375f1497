package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrValidation        = errors.New("validation failure")
	ErrIntegrity         = errors.New("integrity violation")
	ErrPersistence       = errors.New("persistence failure")
	ErrConfiguration     = errors.New("configuration error")
	ErrVersionConflict   = errors.New("version conflict")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrPersistence
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// IsNotFound reports whether err carries the not-found marker.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsInvalidTransition reports whether err carries the invalid-transition marker.
func IsInvalidTransition(err error) bool { return errors.Is(err, ErrInvalidTransition) }

// IsIntegrity reports whether err carries the integrity-violation marker.
func IsIntegrity(err error) bool { return errors.Is(err, ErrIntegrity) }

// IsVersionConflict reports whether err carries the version-conflict marker.
func IsVersionConflict(err error) bool { return errors.Is(err, ErrVersionConflict) }

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
