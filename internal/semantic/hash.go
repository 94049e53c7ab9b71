package semantic

import (
	"context"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/wgomg/mitreatlas/internal/utils"
)

const DefaultHashDimension = 512

// HashModel is a lexical bag-of-words embedding: every token is hashed into one
// of dim buckets. It needs no external model, so it is fully deterministic and
// suits tests and offline runs.
type HashModel struct {
	dim int
}

func NewHashModel(dim int) (*HashModel, error) {
	if dim < 1 {
		return nil, fmt.Errorf("hash model dimension must be positive, got %d", dim)
	}
	return &HashModel{dim: dim}, nil
}

func (h *HashModel) EmbedTexts(ctx context.Context, texts []string) ([]Embedding, error) {
	vectors := make([]Embedding, len(texts))
	for i, text := range texts {
		vec := make(Embedding, h.dim)
		for _, token := range utils.Tokenize(text) {
			vec[xxhash.Sum64String(token)%uint64(h.dim)] += 1
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (h *HashModel) EmbeddingDimension() int {
	return h.dim
}

func (h *HashModel) Name() string {
	return fmt.Sprintf("hash:%d", h.dim)
}

func (h *HashModel) Close() error {
	return nil
}
