package services_test

import (
	"errors"
	"strings"
	"testing"

	"labtrace/internal/services"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("disk full")
	err := services.Wrap(services.ErrPersistence, "storage", "put", "write entity", base)
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected persistence marker, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped cause to survive, got %v", err)
	}
	if !strings.Contains(err.Error(), "storage: put: write entity") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsMarker(t *testing.T) {
	err := services.Wrap(nil, "", "", "", nil)
	if !errors.Is(err, services.ErrPersistence) {
		t.Fatalf("expected default persistence marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected fallback detail, got %v", err)
	}
}

func TestClassifierHelpers(t *testing.T) {
	cases := []struct {
		name   string
		marker error
		check  func(error) bool
	}{
		{"not found", services.ErrNotFound, services.IsNotFound},
		{"invalid transition", services.ErrInvalidTransition, services.IsInvalidTransition},
		{"integrity", services.ErrIntegrity, services.IsIntegrity},
		{"version conflict", services.ErrVersionConflict, services.IsVersionConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := services.Wrap(tc.marker, "component", "op", "", nil)
			if !tc.check(err) {
				t.Fatalf("classifier did not match %v", err)
			}
			if tc.check(errors.New("plain")) {
				t.Fatal("classifier matched unrelated error")
			}
		})
	}
}
