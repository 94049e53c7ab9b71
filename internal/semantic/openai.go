package semantic

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/wgomg/mitreatlas/internal/config"
	"github.com/wgomg/mitreatlas/internal/utils"
)

// OpenAIModel embeds text with the OpenAI embeddings API.
type OpenAIModel struct {
	client    openai.Client
	model     string
	maxChars  int
	batchSize int
	dim       int
	logger    *utils.Logger
}

// NewOpenAIModel builds the client and probes the model once, so a bad key or
// unknown model fails before any real work.
func NewOpenAIModel(ctx context.Context, logger *utils.Logger, cfg *config.SemanticConfig, model string) (*OpenAIModel, error) {
	if model == "" {
		return nil, &utils.ModelLoadError{Model: "openai:", Err: fmt.Errorf("model name is empty")}
	}
	if cfg.OpenAI.APIKey == "" {
		return nil, &utils.ModelLoadError{Model: model, Err: fmt.Errorf("OPENAI_API_KEY is required")}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.OpenAI.APIKey),
		option.WithMaxRetries(cfg.OpenAI.MaxRetries),
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.OpenAI.BaseURL))
	}

	m := &OpenAIModel{
		client:    openai.NewClient(opts...),
		model:     model,
		maxChars:  cfg.OpenAI.MaxChars,
		batchSize: cfg.BatchSize,
		logger:    logger,
	}

	logger.Info("Probing OpenAI embedding model %s", model)
	probe, err := EmbedText(ctx, m, "model probe")
	if err != nil {
		return nil, &utils.ModelLoadError{Model: model, Err: err}
	}
	m.dim = len(probe)
	logger.Info("OpenAI embedding model %s ready (embedding_dim=%d)", model, m.dim)

	return m, nil
}

func (m *OpenAIModel) EmbedTexts(ctx context.Context, texts []string) ([]Embedding, error) {
	vectors := make([]Embedding, 0, len(texts))
	for _, batch := range batches(texts, m.batchSize) {
		out, err := m.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, out...)
	}
	return vectors, nil
}

func (m *OpenAIModel) embedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	input := make([]string, len(texts))
	for i, text := range texts {
		text = strings.TrimSpace(text)
		if text == "" {
			return nil, fmt.Errorf("text %d is empty", i)
		}
		input[i] = utils.Truncate(text, m.maxChars)
	}

	resp, err := m.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: input,
		},
		Model: openai.EmbeddingModel(m.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	if len(resp.Data) != len(input) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(input))
	}

	vectors := make([]Embedding, len(input))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(vectors) {
			return nil, fmt.Errorf("openai returned embedding index %d out of range", d.Index)
		}
		vectors[d.Index] = Embedding(d.Embedding)
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("openai returned no embedding for text %d", i)
		}
	}

	return vectors, nil
}

func (m *OpenAIModel) EmbeddingDimension() int {
	return m.dim
}

func (m *OpenAIModel) Name() string {
	return "openai:" + m.model
}

func (m *OpenAIModel) Close() error {
	return nil
}
