package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wgomg/mitreatlas/internal/attack"
	"github.com/wgomg/mitreatlas/internal/config"
)

func coverageByTactic(entries []CoverageEntry) map[string]CoverageEntry {
	out := make(map[string]CoverageEntry, len(entries))
	for _, e := range entries {
		out[e.Tactic] = e
	}
	return out
}

func coverageResults() []Result {
	return []Result{
		{
			UseCase: "usb",
			Matches: []Match{
				{ID: "T1025", Phases: []string{"collection"}, Score: 0.8},
				{ID: "T1091", Phases: []string{"lateral-movement", "initial-access"}, Score: 0.6},
			},
		},
		{
			UseCase: "logins",
			Matches: []Match{
				{ID: "T1078", Phases: []string{"defense-evasion", "persistence", "initial-access"}, Score: 0.5},
				{ID: "T1091", Phases: []string{"lateral-movement", "initial-access"}, Score: 0.2},
			},
		},
	}
}

func TestCoverage_Max(t *testing.T) {
	entries := Coverage(testTaxonomy(), coverageResults(), config.AggregateMax)

	tactics := make([]string, len(entries))
	for i, e := range entries {
		tactics[i] = e.Tactic
	}
	assert.Equal(t, []string{
		"collection", "credential-access", "defense-evasion",
		"initial-access", "lateral-movement", "persistence",
	}, tactics)

	byTactic := coverageByTactic(entries)

	assert.Equal(t, CoverageEntry{
		Tactic: "collection", Name: "Collection", Score: 0.8, Matched: 1, Total: 1, Percent: 100,
	}, byTactic["collection"])

	initial := byTactic["initial-access"]
	assert.Equal(t, 0.6, initial.Score)
	assert.Equal(t, 2, initial.Matched)
	assert.Equal(t, 3, initial.Total)
	assert.Equal(t, 66.67, initial.Percent)
	assert.Equal(t, "initial-access", initial.Name)

	assert.Equal(t, 0.0, byTactic["credential-access"].Score)
	assert.Equal(t, 0, byTactic["credential-access"].Matched)
	assert.Equal(t, 0.0, byTactic["credential-access"].Percent)
}

func TestCoverage_Mean(t *testing.T) {
	byTactic := coverageByTactic(Coverage(testTaxonomy(), coverageResults(), config.AggregateMean))

	// 0.6, 0.5 and 0.2
	assert.Equal(t, 0.433, byTactic["initial-access"].Score)
	assert.Equal(t, 0.4, byTactic["lateral-movement"].Score)
	assert.Equal(t, 0.8, byTactic["collection"].Score)
	assert.Equal(t, 0.0, byTactic["credential-access"].Score)
}

func TestCoverage_EmptyTaxonomy(t *testing.T) {
	entries := Coverage(&attack.Taxonomy{}, coverageResults(), config.AggregateMax)
	assert.Empty(t, entries)
}

func TestCoverage_NoResults(t *testing.T) {
	entries := Coverage(testTaxonomy(), nil, config.AggregateMax)
	assert.Len(t, entries, 6)
	for _, e := range entries {
		assert.Equal(t, 0.0, e.Score)
		assert.Greater(t, e.Total, 0)
	}
}

func TestCoverage_IgnoresUnknownTechniques(t *testing.T) {
	results := []Result{{
		UseCase: "stale",
		Matches: []Match{{ID: "T9999", Phases: []string{"collection"}, Score: 0.9}},
	}}

	byTactic := coverageByTactic(Coverage(testTaxonomy(), results, config.AggregateMax))
	assert.Equal(t, 0.0, byTactic["collection"].Score)
	assert.Equal(t, 0, byTactic["collection"].Matched)
}
