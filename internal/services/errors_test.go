package services

import (
	"errors"
	"strings"
	"testing"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("connection refused")
	err := Wrap(ErrExternalService, "omdb", "fetch", "request failed", base)
	if !errors.Is(err, ErrExternalService) {
		t.Fatalf("expected marker to survive wrapping: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected cause to survive wrapping: %v", err)
	}
	if !strings.Contains(err.Error(), "omdb: fetch: request failed") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapNilMarkerDefaultsTransient(t *testing.T) {
	err := Wrap(nil, "imdb", "search", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient default: %v", err)
	}
}

func TestRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"configuration", Wrap(ErrConfiguration, "run", "parse stage", "", nil), false},
		{"validation", Wrap(ErrValidation, "extraction", "", "bad image", nil), false},
		{"external", Wrap(ErrExternalService, "omdb", "fetch", "", errors.New("boom")), true},
		{"plain", errors.New("boom"), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Retryable(tc.err); got != tc.want {
				t.Fatalf("Retryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
