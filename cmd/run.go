package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/wgomg/mitreatlas/internal/attack"
	"github.com/wgomg/mitreatlas/internal/config"
	"github.com/wgomg/mitreatlas/internal/processor"
	"github.com/wgomg/mitreatlas/internal/report"
	"github.com/wgomg/mitreatlas/internal/semantic"
	"github.com/wgomg/mitreatlas/internal/usecase"
	"github.com/wgomg/mitreatlas/internal/utils"
)

func run(ctx context.Context, cfg *config.Config, logger *utils.Logger, in io.Reader, out io.Writer) error {
	useCases, err := usecase.LoadFile(cfg.Output.InputFile, logger)
	if err != nil {
		return err
	}

	if !cfg.Output.Force {
		ok, err := report.ConfirmOverwrite(cfg.Output.OutputFile, in, out)
		if err != nil {
			return err
		}
		if !ok {
			logger.Info("Keeping existing %s, nothing written", cfg.Output.OutputFile)
			return nil
		}
	}

	taxonomy, err := loadTaxonomy(ctx, cfg, logger)
	if err != nil {
		return err
	}

	model, err := semantic.NewModel(ctx, logger, &cfg.Semantic)
	if err != nil {
		return err
	}
	defer model.Close()

	ranker := processor.NewRanker(model, cfg.Semantic.TopK, logger)
	results, err := ranker.Map(ctx, taxonomy, useCases)
	if err != nil {
		return err
	}

	if err := report.Write(cfg.Output.OutputFile, results, report.Options{RemoveScore: cfg.Output.RemoveScore}); err != nil {
		return err
	}
	logger.Info("Output saved in %s", cfg.Output.OutputFile)

	if cfg.Coverage.Enabled {
		entries := processor.Coverage(taxonomy, results, cfg.Coverage.Aggregation)
		report.PrintCoverage(out, entries)

		if cfg.Coverage.OutputFile != "" {
			if err := report.WriteCoverage(cfg.Coverage.OutputFile, entries); err != nil {
				return err
			}
			logger.Info("Coverage saved in %s", cfg.Coverage.OutputFile)
		}
	}

	logger.Info("Mitre Atlas has completed its job. Results: %s", cfg.Output.OutputFile)
	return nil
}

func loadTaxonomy(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*attack.Taxonomy, error) {
	opts := attack.Options{IncludeDeprecated: cfg.Attack.IncludeDeprecated}

	if !cfg.Attack.Download {
		return attack.LoadFile(cfg.Attack.File, opts, logger)
	}

	if strings.EqualFold(filepath.Ext(cfg.Attack.File), ".xlsx") {
		return nil, fmt.Errorf("--download fetches STIX JSON and cannot be saved as %s", cfg.Attack.File)
	}

	client, err := attack.NewClient(&cfg.Attack, logger)
	if err != nil {
		return nil, err
	}
	return client.Fetch(ctx, cfg.Attack.File, opts)
}
