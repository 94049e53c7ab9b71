package semantic

import (
	"context"
	"fmt"

	"github.com/wgomg/mitreatlas/internal/utils"
)

// DedupModel embeds each distinct text once per run. Duplicate technique
// descriptions are common in ATT&CK (sub-techniques sharing boilerplate).
type DedupModel struct {
	inner  Model
	cache  *utils.Cache[Embedding]
	logger *utils.Logger
}

func NewDedupModel(inner Model, logger *utils.Logger) *DedupModel {
	return &DedupModel{
		inner:  inner,
		cache:  utils.NewCache[Embedding](),
		logger: logger,
	}
}

func (d *DedupModel) EmbedTexts(ctx context.Context, texts []string) ([]Embedding, error) {
	missing := d.cache.Missing(texts)

	if len(missing) > 0 {
		vectors, err := d.inner.EmbedTexts(ctx, missing)
		if err != nil {
			return nil, err
		}
		if len(vectors) != len(missing) {
			return nil, fmt.Errorf("model %s returned %d embeddings for %d texts", d.inner.Name(), len(vectors), len(missing))
		}
		for i, text := range missing {
			d.cache.Add(text, vectors[i])
		}
	}

	out := make([]Embedding, len(texts))
	for i, text := range texts {
		vec, ok := d.cache.Get(text)
		if !ok {
			return nil, fmt.Errorf("embedding for text %d missing from cache", i)
		}
		out[i] = vec
	}

	d.logger.Debug("Embedded %d texts (%d new), cache_size=%d, hit_rate=%f",
		len(texts), len(missing), d.cache.Size(), d.cache.HitRate())

	return out, nil
}

func (d *DedupModel) EmbeddingDimension() int {
	return d.inner.EmbeddingDimension()
}

func (d *DedupModel) Name() string {
	return d.inner.Name()
}

func (d *DedupModel) Close() error {
	return d.inner.Close()
}
