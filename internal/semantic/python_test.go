package semantic

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wgomg/mitreatlas/internal/config"
	"github.com/wgomg/mitreatlas/internal/utils"
)

// fakeInterpreter writes a shell script that speaks the worker protocol
// without Python: it ignores the script argument and answers every request
// with a single 3-dim vector.
func fakeInterpreter(t *testing.T, body string) *config.SemanticConfig {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake interpreter needs /bin/sh")
	}

	dir := t.TempDir()
	interpreter := filepath.Join(dir, "python")
	require.NoError(t, os.WriteFile(interpreter, []byte("#!/bin/sh\n"+body), 0755))

	return &config.SemanticConfig{
		BatchSize: 1,
		Python: config.PythonConfig{
			ConfigDir:              filepath.Join(dir, "config"),
			Interpreter:            interpreter,
			ProcessShutdownTimeout: 2,
		},
	}
}

const readyWorker = `read config
echo '{"status":"ready","embedding_dim":3}'
while read line; do
  echo '{"embeddings":[[1,0,0.5]]}'
done
`

func TestPythonModel_EmbedTexts(t *testing.T) {
	cfg := fakeInterpreter(t, readyWorker)
	m := NewPythonModel(utils.NewDiscardLogger(), cfg, "all-MiniLM-L6-v2")
	require.NoError(t, m.Initialize(context.Background()))
	defer m.Close()

	assert.Equal(t, 3, m.EmbeddingDimension())
	assert.Equal(t, "all-MiniLM-L6-v2", m.Name())

	vectors, err := m.EmbedTexts(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, []Embedding{{1, 0, 0.5}, {1, 0, 0.5}}, vectors)

	script, err := os.ReadFile(filepath.Join(cfg.Python.ConfigDir, "python", "encoder.py"))
	require.NoError(t, err)
	assert.Equal(t, embeddedPythonScript, string(script))
}

func TestPythonModel_BatchCountMismatch(t *testing.T) {
	cfg := fakeInterpreter(t, readyWorker)
	cfg.BatchSize = 2
	m := NewPythonModel(utils.NewDiscardLogger(), cfg, "all-MiniLM-L6-v2")
	require.NoError(t, m.Initialize(context.Background()))
	defer m.Close()

	_, err := m.EmbedTexts(context.Background(), []string{"first", "second"})
	assert.ErrorContains(t, err, "returned 1 embeddings for 2 texts")
}

func TestPythonModel_InitializeFailures(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			name:    "model not found",
			body:    "read config\necho '{\"status\":\"error\",\"error\":\"no model named nope\"}'\n",
			wantMsg: "no model named nope",
		},
		{
			name:    "exits before ready",
			body:    "read config\nexit 1\n",
			wantMsg: "ready message",
		},
		{
			name:    "garbage on stdout",
			body:    "read config\necho 'Downloading model...'\n",
			wantMsg: "ready message",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := fakeInterpreter(t, tt.body)
			m := NewPythonModel(utils.NewDiscardLogger(), cfg, "nope")

			err := m.Initialize(context.Background())
			require.Error(t, err)

			var modelErr *utils.ModelLoadError
			require.True(t, errors.As(err, &modelErr))
			assert.Equal(t, "nope", modelErr.Model)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.NoError(t, m.Close())
		})
	}
}

func TestPythonModel_NotRunning(t *testing.T) {
	m := NewPythonModel(utils.NewDiscardLogger(), &config.SemanticConfig{}, "all-MiniLM-L6-v2")

	_, err := m.EmbedTexts(context.Background(), []string{"x"})
	assert.Error(t, err)
	assert.NoError(t, m.Close())
}
