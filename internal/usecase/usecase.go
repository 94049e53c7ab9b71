package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/wgomg/mitreatlas/internal/utils"
)

// UseCase is one detection use case from the input file.
type UseCase struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ExampleInput is shown to the user when the input file has the wrong shape.
const ExampleInput = `[
  {
    "name": "usecase1",
    "description": "User copies files to and executes programs from USB removable media"
  },
  {
    "name": "usecase2",
    "description": "User logs in to multiple systems with failed login attempts in short succession"
  }
]`

type entry struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func LoadFile(path string, logger *utils.Logger) ([]UseCase, error) {
	logger.Info("Checking if %s is valid...", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &utils.LoadError{Path: path, Message: "file is missing"}
		}
		return nil, &utils.LoadError{Path: path, Message: "cannot read file", Err: err}
	}

	useCases, err := Parse(data, path)
	if err != nil {
		return nil, err
	}

	logger.Info("%s is valid! %d use cases", path, len(useCases))
	return useCases, nil
}

// Parse validates a JSON array of {name, description} objects. Both fields must
// be non-blank strings and names must be unique. Input order is kept.
func Parse(data []byte, source string) ([]UseCase, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &utils.LoadError{
			Path:    source,
			Message: "input must be a JSON array in the format of:\n" + ExampleInput,
			Err:     err,
		}
	}

	useCases := make([]UseCase, 0, len(raw))
	seen := make(map[string]int, len(raw))

	for i, item := range raw {
		var e entry
		if err := json.Unmarshal(item, &e); err != nil {
			return nil, &utils.LoadError{
				Path:    source,
				Message: fmt.Sprintf("entry %d must be an object with string \"name\" and \"description\"", i),
				Err:     err,
			}
		}

		if e.Name == nil || strings.TrimSpace(*e.Name) == "" {
			return nil, &utils.LoadError{
				Path:    source,
				Message: fmt.Sprintf("entry %d: \"name\" is missing or empty", i),
			}
		}
		name := *e.Name

		if e.Description == nil || strings.TrimSpace(*e.Description) == "" {
			return nil, &utils.LoadError{
				Path:    source,
				Message: fmt.Sprintf("entry %d (%q): \"description\" is missing or empty", i, name),
			}
		}

		if first, dup := seen[name]; dup {
			return nil, &utils.LoadError{
				Path:    source,
				Message: fmt.Sprintf("entry %d: duplicate use case name %q (first seen at entry %d)", i, name, first),
			}
		}
		seen[name] = i

		useCases = append(useCases, UseCase{Name: name, Description: *e.Description})
	}

	return useCases, nil
}
