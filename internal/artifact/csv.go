package artifact

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"boxd/internal/fileutil"
	"boxd/internal/records"
)

// Header is the first row of the records CSV.
var Header = []string{"Title", "Year", "Rating"}

// EncodeRecords renders records as CSV with a header row. Output is
// deterministic for a given input.
func EncodeRecords(recs []records.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Header); err != nil {
		return nil, err
	}
	for _, rec := range recs {
		if err := w.Write([]string{rec.Title, rec.Year, strconv.Itoa(rec.Rating)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteRecords replaces the records CSV at path. The header is written even
// when recs is empty.
func WriteRecords(path string, recs []records.Record) error {
	data, err := EncodeRecords(recs)
	if err != nil {
		return err
	}
	return fileutil.WriteFileAtomic(path, data, 0o644)
}

// ReadRecords parses a records CSV written by WriteRecords.
func ReadRecords(path string) ([]records.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(Header)
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, malformed(path, "missing header row")
	}
	if err != nil {
		return nil, malformed(path, "header: %v", err)
	}
	for i, name := range Header {
		if !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return nil, malformed(path, "unexpected header %q", strings.Join(header, ","))
		}
	}

	var recs []records.Record
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, malformed(path, "%v", err)
		}
		rating, err := strconv.Atoi(strings.TrimSpace(row[2]))
		if err != nil {
			return nil, malformed(path, "line %d: rating %q is not an integer", line, row[2])
		}
		recs = append(recs, records.Record{Title: row[0], Year: row[1], Rating: rating})
	}
	return recs, nil
}
