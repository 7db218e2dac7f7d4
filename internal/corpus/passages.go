// Package corpus loads the fixed passage collection the retriever searches
// over. Passages are read once at startup and never mutated.
package corpus

import (
	"fmt"
	"os"
	"strings"
)

// ChunkDelimiter is the literal marker each passage in the source artifact
// starts with.
const ChunkDelimiter = "--- Chunk"

// Load splits the artifact at path on ChunkDelimiter. Each segment keeps the
// delimiter prefix and is trimmed of surrounding whitespace; empty segments
// (including any header text before the first delimiter) are skipped.
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunks file %s: %w", path, err)
	}
	return Split(string(data)), nil
}

// Split is the parsing half of Load, separated so tests can feed raw text.
func Split(text string) []string {
	segments := strings.Split(text, ChunkDelimiter)
	if len(segments) == 0 {
		return nil
	}

	var passages []string
	for _, segment := range segments[1:] { // segments[0] is the pre-delimiter header
		trimmed := strings.TrimSpace(segment)
		if trimmed == "" {
			continue
		}
		passages = append(passages, ChunkDelimiter+" "+trimmed)
	}
	return passages
}
