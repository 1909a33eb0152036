package images

import (
	"sort"
	"strings"
)

// FilterState is the user-controlled view over the current collection.
// Empty sets and a zero MinWidth mean "no restriction". Each update
// replaces the whole value; no partial mutation.
type FilterState struct {
	SelectedFormats    map[string]bool
	MinWidth           int
	SelectedSourceURLs map[string]bool
	SearchQuery        string
}

// IsActive reports whether any restriction is in effect.
func (f FilterState) IsActive() bool {
	return len(f.SelectedFormats) > 0 ||
		f.MinWidth > 0 ||
		len(f.SelectedSourceURLs) > 0 ||
		strings.TrimSpace(f.SearchQuery) != ""
}

// Filter narrows records to those passing all four conditions, preserving
// the original relative order. Pure: no side effects, deterministic for
// identical inputs.
func Filter(records []Record, f FilterState) []Record {
	query := strings.ToLower(strings.TrimSpace(f.SearchQuery))

	result := make([]Record, 0, len(records))
	for _, rec := range records {
		if len(f.SelectedFormats) > 0 && !f.SelectedFormats[rec.Format()] {
			continue
		}
		if f.MinWidth > 0 {
			w, ok := rec.Width()
			if !ok || w < f.MinWidth {
				continue
			}
		}
		if len(f.SelectedSourceURLs) > 0 && !f.SelectedSourceURLs[rec.SourceURL] {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(rec.Name), query) {
			continue
		}
		result = append(result, rec)
	}
	return result
}

// ValueCount is a filter menu entry: one distinct value and how many
// records in the unfiltered collection carry it.
type ValueCount struct {
	Value string
	Count int
}

// FormatCounts summarizes the formats present in the unfiltered
// collection, sorted alphabetically. Records without an extension are
// skipped.
func FormatCounts(records []Record) []ValueCount {
	counts := make(map[string]int)
	for _, rec := range records {
		if format := rec.Format(); format != "" {
			counts[format]++
		}
	}

	result := make([]ValueCount, 0, len(counts))
	for format, n := range counts {
		result = append(result, ValueCount{Value: format, Count: n})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Value < result[j].Value
	})
	return result
}

// SourceCounts summarizes the source URLs present in the unfiltered
// collection, ordered by first occurrence.
func SourceCounts(records []Record) []ValueCount {
	counts := make(map[string]int)
	var order []string
	for _, rec := range records {
		if rec.SourceURL == "" {
			continue
		}
		if counts[rec.SourceURL] == 0 {
			order = append(order, rec.SourceURL)
		}
		counts[rec.SourceURL]++
	}

	result := make([]ValueCount, 0, len(order))
	for _, src := range order {
		result = append(result, ValueCount{Value: src, Count: counts[src]})
	}
	return result
}
