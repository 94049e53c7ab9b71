package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/wgomg/mitreatlas/internal/config"
	"github.com/wgomg/mitreatlas/internal/utils"
)

const banner = `*-------------------------------------------------------*
  MitreAtlas
*-------------------------------------------------------*
Warning:
This tool provides a general-purpose mapping between detection descriptions and MITRE ATT&CK techniques.
Results are meant to give a high-level sense of detection coverage and should not be considered definitive.
Further manual review and deeper analysis are essential to validate and contextualize these mappings before making any security decisions.

Use at your own risk!
*-------------------------------------------------------*
`

type flags struct {
	input             string
	output            string
	mitreJSON         string
	download          bool
	model             string
	removeScore       bool
	topK              int
	aggregate         string
	noCoverage        bool
	coverageOutput    string
	includeDeprecated bool
	force             bool
	verbose           bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	cmd := &cobra.Command{
		Use:   "mitreatlas",
		Short: "Map detection use cases to MITRE ATT&CK techniques",
		Long: `mitreatlas ranks MITRE ATT&CK techniques against free-text detection use cases
by semantic similarity and reports the closest techniques per use case, plus a
per-tactic coverage summary.`,
		Example: `  mitreatlas -i usecases.json -s all-MiniLM-L6-v2
  mitreatlas -i usecases.json -s openai:text-embedding-3-small -o report.yaml -k 10
  mitreatlas -i usecases.json -s hash -d -r -f`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			applyFlags(cmd, f, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			runID := uuid.NewString()
			logger := utils.NewLogger(cfg.App.LogLevel, runID)
			logger.Debug("Environment: %s", cfg.App.Env)
			logger.Debug("Python config directory: %s", cfg.Semantic.Python.ConfigDir)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			fmt.Fprint(cmd.OutOrStdout(), banner)
			return run(ctx, cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.input, "input", "i", "", "use case JSON file (required)")
	fs.StringVarP(&f.output, "output", "o", "output.json", "report file, .yaml/.yml writes YAML")
	fs.StringVarP(&f.mitreJSON, "mitrejson", "m", "enterprise-attack.json", "ATT&CK taxonomy, STIX .json or techniques .xlsx")
	fs.BoolVarP(&f.download, "download", "d", false, "download the enterprise ATT&CK bundle to the --mitrejson path first")
	fs.StringVarP(&f.model, "semantic_model", "s", "", "embedding model: sentence-transformers name, openai:<model> or hash[:<dim>] (required)")
	fs.BoolVarP(&f.removeScore, "removescore", "r", false, "omit similarity scores from the report")
	fs.IntVarP(&f.topK, "top", "k", config.DefaultTopK, "number of techniques per use case")
	fs.StringVar(&f.aggregate, "aggregate", string(config.AggregateMax), "coverage aggregation per tactic: max or mean")
	fs.BoolVar(&f.noCoverage, "no-coverage", false, "skip the per-tactic coverage summary")
	fs.StringVar(&f.coverageOutput, "coverage-output", "", "also write coverage entries to this file")
	fs.BoolVar(&f.includeDeprecated, "include-deprecated", false, "keep revoked and deprecated techniques")
	fs.BoolVarP(&f.force, "force", "f", false, "overwrite the report without asking")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "debug logging")

	_ = cmd.MarkFlagRequired("input")

	return cmd
}

// applyFlags lays command-line values over the environment configuration.
// Flags with an environment counterpart only win when set explicitly.
func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	changed := cmd.Flags().Changed

	cfg.Output.InputFile = utils.ExpandPath(f.input)
	if changed("output") || cfg.Output.OutputFile == "" {
		cfg.Output.OutputFile = f.output
	}
	cfg.Output.OutputFile = utils.ExpandPath(cfg.Output.OutputFile)
	cfg.Output.RemoveScore = f.removeScore
	cfg.Output.Force = f.force

	if changed("mitrejson") || cfg.Attack.File == "" {
		cfg.Attack.File = f.mitreJSON
	}
	cfg.Attack.File = utils.ExpandPath(cfg.Attack.File)
	cfg.Attack.Download = f.download
	if changed("include-deprecated") {
		cfg.Attack.IncludeDeprecated = f.includeDeprecated
	}

	if changed("semantic_model") {
		cfg.Semantic.Model = f.model
	}
	if changed("top") {
		cfg.Semantic.TopK = f.topK
	}

	if changed("aggregate") {
		cfg.Coverage.Aggregation = config.Aggregation(f.aggregate)
	}
	if f.noCoverage {
		cfg.Coverage.Enabled = false
	}
	if changed("coverage-output") {
		cfg.Coverage.OutputFile = f.coverageOutput
	}
	cfg.Coverage.OutputFile = utils.ExpandPath(cfg.Coverage.OutputFile)

	if f.verbose {
		cfg.App.LogLevel = string(utils.LevelDebug)
	}
}

// execute runs the root command against the given streams. It exists so the
// whole command can be driven from tests.
func execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(in)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	return cmd.ExecuteContext(ctx)
}
