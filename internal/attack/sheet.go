package attack

import (
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/wgomg/mitreatlas/internal/utils"
)

type sheetColumns struct {
	id, name, description, tactics, subtechnique int
	deprecated, revoked                          int
}

// LoadSheet reads the techniques sheet MITRE publishes next to the STIX data
// (enterprise-attack-vX-techniques.xlsx). Columns are found by header name.
// Optional "deprecated" and "revoked" columns follow the same policy as Parse.
func LoadSheet(path string, opts Options, logger *utils.Logger) (*Taxonomy, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &utils.LoadError{Path: path, Message: "cannot open spreadsheet", Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &utils.LoadError{Path: path, Message: "no sheets found"}
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &utils.LoadError{Path: path, Message: "cannot read sheet " + sheets[0], Err: err}
	}
	if len(rows) == 0 {
		return nil, &utils.LoadError{Path: path, Message: "sheet " + sheets[0] + " is empty"}
	}

	cols, err := findColumns(rows[0], path)
	if err != nil {
		return nil, err
	}

	taxonomy := &Taxonomy{Tactics: make(map[string]string)}
	seen := make(map[string]bool)
	stale := 0

	// skip header row
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		id := strings.TrimSpace(cell(row, cols.id))
		if id == "" {
			continue
		}
		deprecated := isTrue(cell(row, cols.deprecated)) || isTrue(cell(row, cols.revoked))
		if deprecated && !opts.IncludeDeprecated {
			continue
		}
		if seen[id] {
			logger.Warn("Skipping duplicate technique %s in row %d", id, i+1)
			continue
		}
		seen[id] = true
		if deprecated {
			stale++
		}

		var phases []string
		for _, tactic := range strings.Split(cell(row, cols.tactics), ",") {
			tactic = strings.TrimSpace(tactic)
			phase := utils.NormalizePhase(tactic)
			if phase == "" || slices.Contains(phases, phase) {
				continue
			}
			if _, ok := taxonomy.Tactics[phase]; !ok {
				taxonomy.Tactics[phase] = tactic
			}
			phases = append(phases, phase)
		}

		sub := strings.Contains(id, ".")
		if cols.subtechnique >= 0 {
			sub = isTrue(cell(row, cols.subtechnique))
		}

		taxonomy.Techniques = append(taxonomy.Techniques, Technique{
			ID:             id,
			Name:           strings.TrimSpace(cell(row, cols.name)),
			Description:    cell(row, cols.description),
			Phases:         phases,
			IsSubtechnique: sub,
			Deprecated:     deprecated,
		})
	}

	if stale > 0 {
		logger.Warn("Including %d revoked or deprecated techniques, matches may point at stale entries", stale)
	}

	taxonomy.sortTechniques()
	logTacticCounts(taxonomy, logger)
	logger.Info("Loading complete! %d techniques", taxonomy.Len())

	return taxonomy, nil
}

func findColumns(header []string, path string) (sheetColumns, error) {
	cols := sheetColumns{id: -1, name: -1, description: -1, tactics: -1, subtechnique: -1, deprecated: -1, revoked: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "id":
			cols.id = i
		case "name":
			cols.name = i
		case "description":
			cols.description = i
		case "tactics":
			cols.tactics = i
		case "is sub-technique":
			cols.subtechnique = i
		case "deprecated":
			cols.deprecated = i
		case "revoked":
			cols.revoked = i
		}
	}

	if cols.id < 0 || cols.name < 0 {
		return cols, &utils.LoadError{Path: path, Message: `header row must contain "ID" and "name" columns`}
	}
	return cols, nil
}

func isTrue(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
