package usecase

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wgomg/mitreatlas/internal/utils"
)

func TestParse(t *testing.T) {
	data := []byte(`[
		{"name": "uc2", "description": "User logs in with failed attempts"},
		{"name": "uc1", "description": "  User copies files to USB  ", "extra": 1}
	]`)

	useCases, err := Parse(data, "input.json")
	require.NoError(t, err)

	assert.Equal(t, []UseCase{
		{Name: "uc2", Description: "User logs in with failed attempts"},
		{Name: "uc1", Description: "  User copies files to USB  "},
	}, useCases)
}

func TestParse_EmptyArray(t *testing.T) {
	useCases, err := Parse([]byte(`[]`), "input.json")
	require.NoError(t, err)
	assert.Empty(t, useCases)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantMsg string
	}{
		{name: "not json", data: `{`, wantMsg: "JSON array"},
		{name: "object instead of array", data: `{"name": "uc1"}`, wantMsg: "usecase1"},
		{name: "entry not object", data: `["uc1"]`, wantMsg: "entry 0"},
		{name: "name missing", data: `[{"description": "d"}]`, wantMsg: `entry 0: "name"`},
		{name: "name empty", data: `[{"name": "  ", "description": "d"}]`, wantMsg: `"name" is missing or empty`},
		{name: "name not string", data: `[{"name": 3, "description": "d"}]`, wantMsg: "entry 0"},
		{name: "description missing", data: `[{"name": "uc1"}]`, wantMsg: `entry 0 ("uc1")`},
		{name: "description empty", data: `[{"name": "uc1", "description": ""}]`, wantMsg: `"description" is missing or empty`},
		{
			name:    "duplicate name",
			data:    `[{"name": "uc1", "description": "a"}, {"name": "uc2", "description": "b"}, {"name": "uc1", "description": "c"}]`,
			wantMsg: `duplicate use case name "uc1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data), "input.json")
			require.Error(t, err)

			var loadErr *utils.LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, "input.json", loadErr.Path)
			assert.Contains(t, loadErr.Message, tt.wantMsg)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, []byte(ExampleInput), 0644))

	useCases, err := LoadFile(path, utils.NewDiscardLogger())
	require.NoError(t, err)
	require.Len(t, useCases, 2)
	assert.Equal(t, "usecase1", useCases[0].Name)
	assert.Equal(t, "usecase2", useCases[1].Name)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"), utils.NewDiscardLogger())

	var loadErr *utils.LoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Contains(t, err.Error(), "missing")
}
