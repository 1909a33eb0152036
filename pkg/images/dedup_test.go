package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupFirstOccurrenceWins(t *testing.T) {
	input := []Record{
		{ID: 1, Src: "https://x/a.jpg", SourceURL: "https://page1.com", Dimensions: "800x600"},
		{ID: 2, Src: "https://x/a.jpg", SourceURL: "https://page2.com", Dimensions: "100x100"},
		{ID: 3, Src: "https://x/b.jpg"},
	}

	result := Dedup(input)

	assert.Equal(t, 1, result.DuplicatesRemoved)
	assert.Len(t, result.Unique, 2)
	// Survivor keeps its original id and metadata; nothing is merged
	assert.Equal(t, 1, result.Unique[0].ID)
	assert.Equal(t, "https://page1.com", result.Unique[0].SourceURL)
	assert.Equal(t, "800x600", result.Unique[0].Dimensions)
	assert.Equal(t, 3, result.Unique[1].ID)
}

func TestDedupIdempotent(t *testing.T) {
	input := []Record{
		{ID: 1, Src: "https://x/a.jpg"},
		{ID: 2, Src: "https://x/a.jpg"},
		{ID: 3, Src: "https://x/b.jpg"},
	}

	first := Dedup(input)
	second := Dedup(first.Unique)

	assert.Equal(t, 0, second.DuplicatesRemoved)
	assert.Equal(t, first.Unique, second.Unique)
}

func TestDedupExactStringEquality(t *testing.T) {
	// Near-duplicate URLs are distinct resources; no canonicalization
	input := []Record{
		{ID: 1, Src: "https://x/a.jpg"},
		{ID: 2, Src: "https://x/a.jpg?v=2"},
		{ID: 3, Src: "https://x/a.jpg/"},
	}

	result := Dedup(input)
	assert.Equal(t, 0, result.DuplicatesRemoved)
	assert.Len(t, result.Unique, 3)
}

func TestDedupEmpty(t *testing.T) {
	result := Dedup(nil)
	assert.Equal(t, 0, result.DuplicatesRemoved)
	assert.Empty(t, result.Unique)
}
