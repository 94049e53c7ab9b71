package attack

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/wgomg/mitreatlas/internal/utils"
)

const (
	typeAttackPattern = "attack-pattern"
	typeTactic        = "x-mitre-tactic"
	sourceMitreAttack = "mitre-attack"
)

type stixBundle struct {
	Objects *[]stixObject `json:"objects"`
}

type stixObject struct {
	Type               string              `json:"type"`
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	Revoked            bool                `json:"revoked"`
	Deprecated         bool                `json:"x_mitre_deprecated"`
	IsSubtechnique     bool                `json:"x_mitre_is_subtechnique"`
	ShortName          string              `json:"x_mitre_shortname"`
	ExternalReferences []externalReference `json:"external_references"`
	KillChainPhases    []killChainPhase    `json:"kill_chain_phases"`
}

type externalReference struct {
	SourceName string `json:"source_name"`
	ExternalID string `json:"external_id"`
}

type killChainPhase struct {
	KillChainName string `json:"kill_chain_name"`
	PhaseName     string `json:"phase_name"`
}

// LoadFile reads a taxonomy from disk. Files ending in .xlsx are read as an
// ATT&CK technique spreadsheet, anything else as a STIX 2 bundle.
func LoadFile(path string, opts Options, logger *utils.Logger) (*Taxonomy, error) {
	logger.Info("Loading %s...", path)

	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return LoadSheet(path, opts, logger)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &utils.LoadError{
				Path:    path,
				Message: "file is missing, download it with -d or from the MITRE ATT&CK website",
			}
		}
		return nil, &utils.LoadError{Path: path, Message: "cannot read file", Err: err}
	}

	return Parse(data, path, opts, logger)
}

// Parse extracts techniques and tactics from a STIX bundle. source only names
// the document in errors and logs.
func Parse(data []byte, source string, opts Options, logger *utils.Logger) (*Taxonomy, error) {
	var bundle stixBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return nil, &utils.LoadError{Path: source, Message: "malformed ATT&CK JSON", Err: err}
	}
	if bundle.Objects == nil {
		return nil, &utils.LoadError{Path: source, Message: `missing "objects" array`}
	}

	taxonomy := &Taxonomy{Tactics: make(map[string]string)}
	seen := make(map[string]bool)
	stale := 0

	for _, obj := range *bundle.Objects {
		switch obj.Type {
		case typeTactic:
			if obj.ShortName != "" {
				taxonomy.Tactics[utils.NormalizePhase(obj.ShortName)] = obj.Name
			}

		case typeAttackPattern:
			deprecated := obj.Revoked || obj.Deprecated
			if deprecated && !opts.IncludeDeprecated {
				continue
			}

			id := externalID(obj.ExternalReferences)
			if id == "" {
				logger.Warn("Skipping technique %q without an ATT&CK id", obj.Name)
				continue
			}
			if seen[id] {
				logger.Warn("Skipping duplicate technique %s (%s)", id, obj.Name)
				continue
			}
			seen[id] = true

			if deprecated {
				stale++
			}

			taxonomy.Techniques = append(taxonomy.Techniques, Technique{
				ID:             id,
				Name:           obj.Name,
				Description:    obj.Description,
				Phases:         phaseNames(obj.KillChainPhases),
				IsSubtechnique: obj.IsSubtechnique,
				Deprecated:     deprecated,
			})
		}
	}

	if stale > 0 {
		logger.Warn("Including %d revoked or deprecated techniques, matches may point at stale entries", stale)
	}

	taxonomy.sortTechniques()
	logTacticCounts(taxonomy, logger)
	logger.Info("Loading complete! %d techniques", taxonomy.Len())

	return taxonomy, nil
}

func externalID(refs []externalReference) string {
	for _, ref := range refs {
		if ref.SourceName == sourceMitreAttack && ref.ExternalID != "" {
			return strings.TrimSpace(ref.ExternalID)
		}
	}
	for _, ref := range refs {
		if ref.ExternalID != "" {
			return strings.TrimSpace(ref.ExternalID)
		}
	}
	return ""
}

func phaseNames(phases []killChainPhase) []string {
	var names []string
	for _, p := range phases {
		name := utils.NormalizePhase(p.PhaseName)
		if name == "" || slices.Contains(names, name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

func logTacticCounts(taxonomy *Taxonomy, logger *utils.Logger) {
	techniques := make(map[string]int)
	subtechniques := make(map[string]int)
	for _, tech := range taxonomy.Techniques {
		for _, phase := range tech.Phases {
			if tech.IsSubtechnique {
				subtechniques[phase]++
			} else {
				techniques[phase]++
			}
		}
	}

	for _, phase := range taxonomy.Phases() {
		logger.Debug("%s (%s): %d techniques, %d sub-techniques found",
			taxonomy.TacticName(phase), phase, techniques[phase], subtechniques[phase])
	}
}
