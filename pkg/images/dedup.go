package images

// DedupResult is the outcome of collapsing duplicates in a result set.
type DedupResult struct {
	Unique            []Record
	DuplicatesRemoved int
}

// Dedup collapses duplicate images across sources. Identity is exact src
// string equality: two records with identical src are the same resource
// regardless of which page referenced them. The first occurrence in input
// order survives and keeps its id, sourceUrl and dimensions; later
// duplicates are dropped without merging metadata.
//
// Callers must iterate the union in a stable order (URL input order, then
// each URL's image list order) before calling, otherwise survivor choice
// becomes nondeterministic.
func Dedup(records []Record) DedupResult {
	seen := make(map[string]bool, len(records))
	unique := make([]Record, 0, len(records))

	for _, rec := range records {
		if seen[rec.Src] {
			continue
		}
		seen[rec.Src] = true
		unique = append(unique, rec)
	}

	return DedupResult{
		Unique:            unique,
		DuplicatesRemoved: len(records) - len(unique),
	}
}
