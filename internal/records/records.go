// Package records turns raw tooltips into the ordered, de-duplicated record
// set that is written to the tabular artifact and loaded into the sink.
package records

import "boxd/internal/tooltip"

// Record is one normalized list entry. Year stays textual: it is exactly the
// four digits captured from the tooltip.
type Record struct {
	Title  string `json:"title"`
	Year   string `json:"year"`
	Rating int    `json:"rating"`
}

// Stats summarizes one Build call.
type Stats struct {
	Input      int `json:"input"`
	Parsed     int `json:"parsed"`
	Skipped    int `json:"skipped"`
	Duplicates int `json:"duplicates"`
}

// Set is an ordered collection of unique records.
type Set struct {
	records []Record
	stats   Stats
}

// Build parses tooltips in order, drops entries that do not match the tooltip
// shape, and removes later exact duplicates of (title, year, rating) while
// keeping first-occurrence order. It cannot fail.
func Build(tooltips []string) Set {
	set := Set{
		records: make([]Record, 0, len(tooltips)),
		stats:   Stats{Input: len(tooltips)},
	}
	seen := make(map[Record]struct{}, len(tooltips))
	for _, raw := range tooltips {
		candidate, ok := tooltip.Parse(raw)
		if !ok {
			set.stats.Skipped++
			continue
		}
		set.stats.Parsed++
		rec := Record{
			Title:  candidate.Title,
			Year:   candidate.Year,
			Rating: tooltip.Rating(candidate.Stars),
		}
		if _, dup := seen[rec]; dup {
			set.stats.Duplicates++
			continue
		}
		seen[rec] = struct{}{}
		set.records = append(set.records, rec)
	}
	return set
}

// Records returns a copy of the records in set order.
func (s Set) Records() []Record {
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len reports the number of unique records.
func (s Set) Len() int {
	return len(s.records)
}

// Stats reports how the set was built.
func (s Set) Stats() Stats {
	return s.stats
}
