package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/wgomg/mitreatlas/internal/processor"
	"github.com/wgomg/mitreatlas/internal/utils"
)

func sampleResults() []processor.Result {
	return []processor.Result{
		{
			UseCase:     "uc2",
			Description: "  User copies files to USB \"quoted\"  ",
			Matches: []processor.Match{
				{ID: "T1025", Name: "Data from Removable Media", Phases: []string{"collection"}, Score: 0.612},
				{ID: "T1200", Name: "Hardware Additions", Phases: nil, Score: 0},
			},
		},
		{
			UseCase:     "uc1",
			Description: "Nothing matches",
			Matches:     []processor.Match{},
		},
	}
}

// decoded mirrors the documented output schema; unknown keys fail decoding.
type decodedMatch struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Phases []string `json:"phases"`
	Score  *float64 `json:"score"`
}

type decodedEntry struct {
	UseCase     string         `json:"usecase"`
	Description string         `json:"description"`
	Matches     []decodedMatch `json:"matches"`
}

func decodeStrict(t *testing.T, data []byte) []decodedEntry {
	t.Helper()

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()

	var entries []decodedEntry
	require.NoError(t, decoder.Decode(&entries))
	return entries
}

func TestWrite_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	require.NoError(t, Write(path, sampleResults(), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	entries := decodeStrict(t, data)
	require.Len(t, entries, 2)

	assert.Equal(t, "uc2", entries[0].UseCase)
	assert.Equal(t, "  User copies files to USB \"quoted\"  ", entries[0].Description)
	require.Len(t, entries[0].Matches, 2)
	assert.Equal(t, "T1025", entries[0].Matches[0].ID)
	require.NotNil(t, entries[0].Matches[0].Score)
	assert.Equal(t, 0.612, *entries[0].Matches[0].Score)

	// a genuine zero score is still written
	require.NotNil(t, entries[0].Matches[1].Score)
	assert.Equal(t, 0.0, *entries[0].Matches[1].Score)

	assert.Equal(t, "uc1", entries[1].UseCase)
	assert.NotNil(t, entries[1].Matches)
	assert.Empty(t, entries[1].Matches)

	assert.Contains(t, string(data), `"phases": []`)
	assert.Contains(t, string(data), `"matches": []`)
}

func TestWrite_RemoveScore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.json")
	require.NoError(t, Write(path, sampleResults(), Options{RemoveScore: true}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.NotContains(t, string(data), "score")
	for _, e := range decodeStrict(t, data) {
		for _, m := range e.Matches {
			assert.Nil(t, m.Score)
		}
	}
}

func TestWrite_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.yaml")
	require.NoError(t, Write(path, sampleResults(), Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]any
	require.NoError(t, yaml.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "uc2", entries[0]["usecase"])

	matches := entries[0]["matches"].([]any)
	first := matches[0].(map[string]any)
	assert.Equal(t, "T1025", first["id"])
	assert.Equal(t, 0.612, first["score"])
}

func TestWrite_UnwritablePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "no-such-dir", "output.json")

	err := Write(path, sampleResults(), Options{})

	var writeErr *utils.WriteError
	require.True(t, errors.As(err, &writeErr))
	assert.Equal(t, path, writeErr.Path)
}

func TestWrite_ReplacesAndLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "output.json")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0644))

	require.NoError(t, Write(path, nil, Options{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]\n", string(data))

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatJSON, FormatFor("out.json"))
	assert.Equal(t, FormatJSON, FormatFor("out"))
	assert.Equal(t, FormatYAML, FormatFor("out.yaml"))
	assert.Equal(t, FormatYAML, FormatFor("OUT.YML"))
}

func TestConfirmOverwrite(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "output.json")
	require.NoError(t, os.WriteFile(existing, []byte("[]"), 0644))

	tests := []struct {
		name   string
		path   string
		answer string
		want   bool
		prompt bool
	}{
		{name: "missing file", path: filepath.Join(dir, "new.json"), want: true},
		{name: "yes", path: existing, answer: "y\n", want: true, prompt: true},
		{name: "yes uppercase", path: existing, answer: " Y \n", want: true, prompt: true},
		{name: "no", path: existing, answer: "n\n", want: false, prompt: true},
		{name: "anything else", path: existing, answer: "yes\n", want: false, prompt: true},
		{name: "no input", path: existing, answer: "", want: false, prompt: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			got, err := ConfirmOverwrite(tt.path, strings.NewReader(tt.answer), &out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.prompt, strings.Contains(out.String(), "Overwrite?"))
		})
	}
}

func TestConfirmOverwrite_Directory(t *testing.T) {
	_, err := ConfirmOverwrite(t.TempDir(), strings.NewReader("y\n"), &bytes.Buffer{})

	var writeErr *utils.WriteError
	assert.True(t, errors.As(err, &writeErr))
}
