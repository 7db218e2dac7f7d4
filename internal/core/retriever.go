package core

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
)

// Embedder maps text to fixed-length dense vectors. Implementations must
// L2-normalize their output to match the convention the vector index was
// built with; see the index package invariant.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex performs nearest-neighbour search over the passage embeddings.
// Returned ids are positions in the passage corpus; distances are squared L2
// over normalized vectors, ascending.
type VectorIndex interface {
	Search(vector []float32, k int) (distances []float32, ids []int, err error)
}

// Retriever turns a free-text query into an ordered set of context passages,
// combining semantic similarity with a lexical-overlap boost.
type Retriever struct {
	normalizer *Normalizer
	embedder   Embedder
	index      VectorIndex
	passages   []string
}

func NewRetriever(normalizer *Normalizer, embedder Embedder, index VectorIndex, passages []string) *Retriever {
	return &Retriever{
		normalizer: normalizer,
		embedder:   embedder,
		index:      index,
		passages:   passages,
	}
}

type scoredPassage struct {
	text  string
	score float32
}

// Retrieve returns up to k passage texts ranked for the query. Ranking is
// similarity (1 - distance) plus a fixed boost whenever the normalized query,
// or any whitespace-delimited token of it, appears verbatim in the passage.
// Ties keep the index's original result order.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int, boost float64) ([]string, error) {
	normalized := r.normalizer.Normalize(query)

	queryVec, err := r.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrRetrieval, err)
	}

	distances, ids, err := r.index.Search(queryVec, k)
	if err != nil {
		return nil, fmt.Errorf("%w: searching index: %v", ErrRetrieval, err)
	}

	tokens := strings.Fields(normalized)
	scored := make([]scoredPassage, 0, len(ids))
	for i, id := range ids {
		if id < 0 || id >= len(r.passages) {
			log.Printf("Index returned id %d outside passage corpus (size %d), skipping", id, len(r.passages))
			continue
		}
		passage := r.passages[id]
		score := 1 - distances[i]
		if lexicalMatch(passage, normalized, tokens) {
			score += float32(boost)
		}
		scored = append(scored, scoredPassage{text: passage, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	results := make([]string, len(scored))
	for i, sp := range scored {
		results[i] = sp.text
	}
	return results, nil
}

// lexicalMatch reports whether the query, or any token of it, occurs in the
// passage. Substring containment is deliberate: Khmer text carries no spaces
// between words, so token-boundary matching would never fire.
func lexicalMatch(passage, query string, tokens []string) bool {
	if query != "" && strings.Contains(passage, query) {
		return true
	}
	for _, token := range tokens {
		if strings.Contains(passage, token) {
			return true
		}
	}
	return false
}
