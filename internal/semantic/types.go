package semantic

import "context"

type Embedding []float64

// Model turns text into fixed-length vectors. The same model and text must
// always produce the same vector.
type Model interface {
	EmbedTexts(ctx context.Context, texts []string) ([]Embedding, error)
	EmbeddingDimension() int
	Name() string
	Close() error
}

func EmbedText(ctx context.Context, m Model, text string) (Embedding, error) {
	vectors, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func batches(texts []string, size int) [][]string {
	if size < 1 {
		size = len(texts)
	}

	var out [][]string
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		out = append(out, texts[start:end])
	}
	return out
}
