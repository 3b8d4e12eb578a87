package services_test

import (
	"errors"
	"io/fs"
	"strings"
	"testing"

	"boxd/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "scrape", "fetch", "list page unavailable", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"scrape", "fetch", "list page unavailable"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapPreservesPathError(t *testing.T) {
	pathErr := &fs.PathError{Op: "open", Path: "/data/raw.json", Err: fs.ErrNotExist}
	err := services.Wrap(services.ErrIO, "clean", "read raw artifact", "", pathErr)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist to survive wrapping, got %v", err)
	}
	if !strings.Contains(err.Error(), "/data/raw.json") {
		t.Fatalf("expected artifact path in message, got %q", err.Error())
	}
}

func TestRetryableAndKind(t *testing.T) {
	cases := []struct {
		err       error
		retryable bool
		kind      string
	}{
		{nil, false, ""},
		{services.Wrap(services.ErrIO, "clean", "read", "", nil), true, "io"},
		{services.Wrap(services.ErrFormat, "clean", "decode", "", nil), true, "format"},
		{services.Wrap(services.ErrExternalTool, "scrape", "fetch", "", nil), true, "external"},
		{services.Wrap(services.ErrConfiguration, "load", "open", "", nil), false, "configuration"},
		{errors.New("plain"), true, "transient"},
	}
	for _, tc := range cases {
		if got := services.Retryable(tc.err); got != tc.retryable {
			t.Errorf("Retryable(%v) = %v, want %v", tc.err, got, tc.retryable)
		}
		if got := services.Kind(tc.err); got != tc.kind {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.kind)
		}
	}
}
