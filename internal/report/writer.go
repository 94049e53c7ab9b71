package report

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wgomg/mitreatlas/internal/processor"
	"github.com/wgomg/mitreatlas/internal/utils"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

type Options struct {
	RemoveScore bool
}

type scoredMatch struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Phases []string `json:"phases" yaml:"phases"`
	Score  float64  `json:"score" yaml:"score"`
}

// plainMatch has no score field at all, so -r drops the key rather than
// writing a zero.
type plainMatch struct {
	ID     string   `json:"id" yaml:"id"`
	Name   string   `json:"name" yaml:"name"`
	Phases []string `json:"phases" yaml:"phases"`
}

type entry[M any] struct {
	UseCase     string `json:"usecase" yaml:"usecase"`
	Description string `json:"description" yaml:"description"`
	Matches     []M    `json:"matches" yaml:"matches"`
}

// FormatFor picks YAML for .yaml/.yml paths and JSON for everything else.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Write serialises results to path. The document is written to a temporary
// file next to path and renamed into place, so a failed run leaves no partial
// report behind.
func Write(path string, results []processor.Result, opts Options) error {
	return writeFile(path, func(w io.Writer) error {
		return Encode(w, results, opts, FormatFor(path))
	})
}

func Encode(w io.Writer, results []processor.Result, opts Options, format Format) error {
	if opts.RemoveScore {
		return encode(w, build(results, func(m processor.Match) plainMatch {
			return plainMatch{ID: m.ID, Name: m.Name, Phases: phases(m.Phases)}
		}), format)
	}
	return encode(w, build(results, func(m processor.Match) scoredMatch {
		return scoredMatch{ID: m.ID, Name: m.Name, Phases: phases(m.Phases), Score: m.Score}
	}), format)
}

func build[M any](results []processor.Result, convert func(processor.Match) M) []entry[M] {
	entries := make([]entry[M], len(results))
	for i, r := range results {
		matches := make([]M, len(r.Matches))
		for j, m := range r.Matches {
			matches[j] = convert(m)
		}
		entries[i] = entry[M]{UseCase: r.UseCase, Description: r.Description, Matches: matches}
	}
	return entries
}

func phases(p []string) []string {
	if p == nil {
		return []string{}
	}
	return p
}

func encode(w io.Writer, v any, format Format) error {
	if format == FormatYAML {
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(v); err != nil {
			return err
		}
		return encoder.Close()
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func writeFile(path string, fill func(w io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &utils.WriteError{Path: path, Err: err}
	}
	defer os.Remove(tmp.Name())

	buffered := bufio.NewWriter(tmp)
	if err := fill(buffered); err != nil {
		tmp.Close()
		return &utils.WriteError{Path: path, Err: err}
	}
	if err := buffered.Flush(); err != nil {
		tmp.Close()
		return &utils.WriteError{Path: path, Err: err}
	}
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return &utils.WriteError{Path: path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &utils.WriteError{Path: path, Err: err}
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return &utils.WriteError{Path: path, Err: err}
	}
	return nil
}

// ConfirmOverwrite asks on out whether an existing path may be replaced and
// reads the answer from in. It returns true straight away when path does not
// exist.
func ConfirmOverwrite(path string, in io.Reader, out io.Writer) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return true, nil
	}
	if err != nil {
		return false, &utils.WriteError{Path: path, Err: err}
	}
	if info.IsDir() {
		return false, &utils.WriteError{Path: path, Err: fmt.Errorf("is a directory")}
	}

	fmt.Fprintf(out, "[WARNING] File '%s' already exists. Overwrite? (y/n): ", path)

	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read answer: %w", err)
	}
	return strings.ToLower(strings.TrimSpace(answer)) == "y", nil
}
