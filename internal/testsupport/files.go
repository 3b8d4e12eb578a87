package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"boxd/internal/artifact"
)

// WriteRawArtifact writes tooltips as a raw artifact at path.
func WriteRawArtifact(t testing.TB, path string, tooltips ...string) {
	t.Helper()

	entries := make([]artifact.RawEntry, 0, len(tooltips))
	for _, tip := range tooltips {
		entries = append(entries, artifact.RawEntry{Tooltip: tip})
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal raw artifact: %v", err)
	}
	WriteFile(t, path, string(data))
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// ReadFile returns the content of path or fails the test.
func ReadFile(t testing.TB, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}
