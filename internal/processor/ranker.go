package processor

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/wgomg/mitreatlas/internal/attack"
	"github.com/wgomg/mitreatlas/internal/semantic"
	"github.com/wgomg/mitreatlas/internal/usecase"
	"github.com/wgomg/mitreatlas/internal/utils"
)

type Ranker struct {
	model  semantic.Model
	topK   int
	logger *utils.Logger
}

func NewRanker(model semantic.Model, topK int, logger *utils.Logger) *Ranker {
	return &Ranker{model: model, topK: topK, logger: logger}
}

// Map embeds every technique and every use case in one pass each and returns
// the top K techniques per use case, in input order.
func (r *Ranker) Map(ctx context.Context, taxonomy *attack.Taxonomy, useCases []usecase.UseCase) ([]Result, error) {
	techniqueTexts := make([]string, len(taxonomy.Techniques))
	for i, tech := range taxonomy.Techniques {
		techniqueTexts[i] = techniqueText(tech)
	}

	r.logger.Info("Encoding %d technique descriptions...", len(techniqueTexts))
	techniqueVectors, err := r.embed(ctx, techniqueTexts)
	if err != nil {
		return nil, fmt.Errorf("embed techniques: %w", err)
	}

	useCaseTexts := make([]string, len(useCases))
	for i, uc := range useCases {
		useCaseTexts[i] = uc.Description
	}

	r.logger.Info("Encoding %d use cases...", len(useCaseTexts))
	useCaseVectors, err := r.embed(ctx, useCaseTexts)
	if err != nil {
		return nil, fmt.Errorf("embed use cases: %w", err)
	}

	results := make([]Result, len(useCases))
	for i, uc := range useCases {
		log := r.logger.WithField("usecase", uc.Name)
		log.Debug("Parsing usecase (%d words)", utils.CountWords(uc.Description))

		matches, err := Rank(useCaseVectors[i], taxonomy.Techniques, techniqueVectors, r.topK)
		if err != nil {
			return nil, fmt.Errorf("rank use case %q: %w", uc.Name, err)
		}
		if len(matches) > 0 {
			log.Debug("Best match %s %s (%.3f)", matches[0].ID, matches[0].Name, matches[0].Score)
		}

		results[i] = Result{
			UseCase:     uc.Name,
			Description: uc.Description,
			Matches:     matches,
		}
	}

	return results, nil
}

func (r *Ranker) embed(ctx context.Context, texts []string) ([]semantic.Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := r.model.EmbedTexts(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("model %s returned %d embeddings for %d texts", r.model.Name(), len(vectors), len(texts))
	}
	return vectors, nil
}

// techniqueText is what gets embedded for a technique: its description, or
// its name when the source has no description.
func techniqueText(tech attack.Technique) string {
	if strings.TrimSpace(tech.Description) != "" {
		return tech.Description
	}
	return tech.Name
}

// Rank scores query against every technique and keeps the best k, ordered by
// descending score and then ascending technique id.
func Rank(query semantic.Embedding, techniques []attack.Technique, vectors []semantic.Embedding, k int) ([]Match, error) {
	if len(techniques) != len(vectors) {
		return nil, fmt.Errorf("%d techniques but %d embeddings", len(techniques), len(vectors))
	}

	matches := make([]Match, 0, len(techniques))
	for i, tech := range techniques {
		score, err := CosineSimilarity(query, vectors[i])
		if err != nil {
			return nil, fmt.Errorf("technique %s: %w", tech.ID, err)
		}

		matches = append(matches, Match{
			ID:     tech.ID,
			Name:   tech.Name,
			Phases: slices.Clone(tech.Phases),
			Score:  RoundScore(score),
		})
	}

	slices.SortFunc(matches, cmpMatch)

	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// CosineSimilarity returns dot(a,b) / (|a|*|b|). A zero vector scores 0.
func CosineSimilarity(a, b semantic.Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("dimension mismatch: %d vs %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return max(-1, min(1, score)), nil
}

// RoundScore rounds to 3 decimals. A result of -0 becomes 0.
func RoundScore(score float64) float64 {
	rounded := math.Round(score*1000) / 1000
	if rounded == 0 {
		return 0
	}
	return rounded
}

func cmpMatch(a, b Match) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
