package processor

// Match is one ranked technique for a use case. Score is cosine similarity
// rounded to three decimals.
type Match struct {
	ID     string
	Name   string
	Phases []string
	Score  float64
}

type Result struct {
	UseCase     string
	Description string
	Matches     []Match
}

// CoverageEntry summarises one tactic. Score aggregates match scores, Matched
// and Total count distinct techniques of the tactic.
type CoverageEntry struct {
	Tactic  string  `json:"tactic"`
	Name    string  `json:"name"`
	Score   float64 `json:"score"`
	Matched int     `json:"matched"`
	Total   int     `json:"total"`
	Percent float64 `json:"coverage_percent"`
}
