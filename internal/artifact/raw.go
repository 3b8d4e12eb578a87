package artifact

import (
	"bytes"
	"encoding/json"
	"os"

	"boxd/internal/fileutil"
)

// RawEntry is one element of the raw artifact array.
type RawEntry struct {
	Tooltip string `json:"tooltip"`
}

// ReadTooltips loads the raw artifact and returns the tooltip strings in file
// order. The top level must be an array of objects. A missing or null tooltip
// becomes an empty string; any other non-string value is malformed.
func ReadTooltips(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decodeTooltips(path, data)
}

func decodeTooltips(path string, data []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, malformed(path, "expected a JSON array")
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(trimmed, &entries); err != nil {
		return nil, malformed(path, "decode: %v", err)
	}

	tooltips := make([]string, 0, len(entries))
	for i, entry := range entries {
		var fields map[string]json.RawMessage
		entry = bytes.TrimSpace(entry)
		if len(entry) == 0 || entry[0] != '{' {
			return nil, malformed(path, "entry %d is not an object", i)
		}
		if err := json.Unmarshal(entry, &fields); err != nil {
			return nil, malformed(path, "entry %d: %v", i, err)
		}
		raw, ok := fields["tooltip"]
		if !ok || string(bytes.TrimSpace(raw)) == "null" {
			tooltips = append(tooltips, "")
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, malformed(path, "entry %d: tooltip is not a string", i)
		}
		tooltips = append(tooltips, text)
	}
	return tooltips, nil
}

// WriteTooltips replaces the raw artifact with one entry per tooltip, using a
// two-space indent and no HTML escaping.
func WriteTooltips(path string, tooltips []string) error {
	entries := make([]RawEntry, 0, len(tooltips))
	for _, t := range tooltips {
		entries = append(entries, RawEntry{Tooltip: t})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, buf.Bytes(), 0o644)
}
