package semantic

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/wgomg/mitreatlas/internal/config"
	"github.com/wgomg/mitreatlas/internal/utils"
)

const (
	hashPrefix   = "hash"
	openAIPrefix = "openai:"
)

// NewModel resolves a model identifier:
//
//	hash, hash:<dim>   lexical hashing model, no external dependency
//	openai:<model>     OpenAI embeddings API
//	anything else      sentence-transformers model run through Python
//
// The returned model embeds each distinct text only once.
func NewModel(ctx context.Context, logger *utils.Logger, cfg *config.SemanticConfig) (Model, error) {
	name := strings.TrimSpace(cfg.Model)
	logger.Info("Semantic model used: %s", name)

	var (
		model Model
		err   error
	)

	switch {
	case name == "":
		return nil, &utils.ModelLoadError{Model: name, Err: fmt.Errorf("model identifier is empty")}

	case name == hashPrefix || strings.HasPrefix(name, hashPrefix+":"):
		model, err = newHashModelFromName(name)

	case strings.HasPrefix(name, openAIPrefix):
		model, err = NewOpenAIModel(ctx, logger, cfg, strings.TrimPrefix(name, openAIPrefix))

	default:
		python := NewPythonModel(logger, cfg, name)
		if err = python.Initialize(ctx); err == nil {
			model = python
		}
	}

	if err != nil {
		return nil, err
	}

	return NewDedupModel(model, logger), nil
}

func newHashModelFromName(name string) (Model, error) {
	dim := DefaultHashDimension
	if rest, ok := strings.CutPrefix(name, hashPrefix+":"); ok {
		parsed, err := strconv.Atoi(rest)
		if err != nil {
			return nil, &utils.ModelLoadError{Model: name, Err: fmt.Errorf("invalid dimension %q", rest)}
		}
		dim = parsed
	}

	model, err := NewHashModel(dim)
	if err != nil {
		return nil, &utils.ModelLoadError{Model: name, Err: err}
	}
	return model, nil
}
