package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/wgomg/mitreatlas/internal/processor"
)

const barWidth = 40

// WriteCoverage saves the per-tactic coverage entries as a JSON or YAML
// document, chosen by the file extension.
func WriteCoverage(path string, entries []processor.CoverageEntry) error {
	if entries == nil {
		entries = []processor.CoverageEntry{}
	}
	return writeFile(path, func(w io.Writer) error {
		return encode(w, entries, FormatFor(path))
	})
}

// PrintCoverage draws one bar per tactic. Colours follow fatih/color, which
// turns them off when stdout is not a terminal.
func PrintCoverage(w io.Writer, entries []processor.CoverageEntry) {
	tactic := color.New(color.FgYellow)
	bar := color.New(color.FgGreen)
	detail := color.New(color.FgBlue)

	for _, e := range entries {
		filled := int(e.Percent / 100 * barWidth)
		filled = max(0, min(barWidth, filled))

		tactic.Fprintf(w, "%-22s", e.Name)
		fmt.Fprint(w, " |")
		bar.Fprint(w, strings.Repeat("█", filled))
		fmt.Fprintf(w, "%s| %6.2f%%\n", strings.Repeat(" ", barWidth-filled), e.Percent)
		detail.Fprintf(w, "Matched %d/%d techniques, score %.3f\n\n", e.Matched, e.Total, e.Score)
	}
}
