package attack

import (
	"slices"
	"strings"
)

// Technique is one ATT&CK technique or sub-technique. Phases holds lower-case
// tactic short names such as "collection".
type Technique struct {
	ID             string
	Name           string
	Description    string
	Phases         []string
	IsSubtechnique bool
	Deprecated     bool
}

// Taxonomy is the flat technique list plus the tactic names found in the
// source, keyed by short name.
type Taxonomy struct {
	Techniques []Technique
	Tactics    map[string]string
}

type Options struct {
	IncludeDeprecated bool
}

func (t *Taxonomy) Len() int {
	return len(t.Techniques)
}

func (t *Taxonomy) IDs() map[string]bool {
	ids := make(map[string]bool, len(t.Techniques))
	for _, tech := range t.Techniques {
		ids[tech.ID] = true
	}
	return ids
}

// Phases returns every phase carried by at least one technique, sorted.
func (t *Taxonomy) Phases() []string {
	seen := make(map[string]bool)
	var phases []string
	for _, tech := range t.Techniques {
		for _, phase := range tech.Phases {
			if !seen[phase] {
				seen[phase] = true
				phases = append(phases, phase)
			}
		}
	}
	slices.Sort(phases)
	return phases
}

// TacticName returns the display name for a phase, or the phase itself when
// the source did not describe the tactic.
func (t *Taxonomy) TacticName(phase string) string {
	if name, ok := t.Tactics[phase]; ok && name != "" {
		return name
	}
	return phase
}

func (t *Taxonomy) sortTechniques() {
	slices.SortStableFunc(t.Techniques, func(a, b Technique) int {
		return strings.Compare(a.ID, b.ID)
	})
}
