package processor

import (
	"math"

	"github.com/wgomg/mitreatlas/internal/attack"
	"github.com/wgomg/mitreatlas/internal/config"
)

// Coverage rolls matches up per tactic. Every phase in the taxonomy gets an
// entry, sorted by phase name; phases nothing matched score 0.
func Coverage(taxonomy *attack.Taxonomy, results []Result, aggregation config.Aggregation) []CoverageEntry {
	totals := make(map[string]map[string]bool)
	for _, tech := range taxonomy.Techniques {
		for _, phase := range tech.Phases {
			if totals[phase] == nil {
				totals[phase] = make(map[string]bool)
			}
			totals[phase][tech.ID] = true
		}
	}

	known := taxonomy.IDs()
	scores := make(map[string][]float64)
	matched := make(map[string]map[string]bool)
	for _, result := range results {
		for _, m := range result.Matches {
			if !known[m.ID] {
				continue
			}
			for _, phase := range m.Phases {
				scores[phase] = append(scores[phase], m.Score)
				if matched[phase] == nil {
					matched[phase] = make(map[string]bool)
				}
				matched[phase][m.ID] = true
			}
		}
	}

	phases := taxonomy.Phases()
	entries := make([]CoverageEntry, 0, len(phases))
	for _, phase := range phases {
		total := len(totals[phase])
		hit := len(matched[phase])

		percent := 0.0
		if total > 0 {
			percent = math.Round(float64(hit)/float64(total)*100*100) / 100
		}

		entries = append(entries, CoverageEntry{
			Tactic:  phase,
			Name:    taxonomy.TacticName(phase),
			Score:   RoundScore(aggregate(scores[phase], aggregation)),
			Matched: hit,
			Total:   total,
			Percent: percent,
		})
	}

	return entries
}

func aggregate(scores []float64, aggregation config.Aggregation) float64 {
	if len(scores) == 0 {
		return 0
	}

	switch aggregation {
	case config.AggregateMean:
		var sum float64
		for _, s := range scores {
			sum += s
		}
		return sum / float64(len(scores))
	default:
		best := scores[0]
		for _, s := range scores[1:] {
			best = max(best, s)
		}
		return best
	}
}
