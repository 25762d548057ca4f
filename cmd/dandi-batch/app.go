package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"dandi-batch/internal/archive"
	"dandi-batch/internal/backoff"
	"dandi-batch/internal/common"
	"dandi-batch/internal/config"
	"dandi-batch/internal/lindi"
	"dandi-batch/internal/pipeline"
	"dandi-batch/internal/selector"
)

// app agrupa los clientes armados a partir de la configuracion.
type app struct {
	cfg      *config.Config
	archive  *archive.Client
	checker  *lindi.Checker
	pipeline *pipeline.Pipeline
	selector *selector.Selector
	dendro   *pipeline.Client
}

func newApp(c *config.Config, log *zap.Logger) *app {
	policy := backoff.Default()

	a := &app{cfg: c}
	a.archive = archive.NewClient(c.Archive.BaseURL,
		archive.WithHTTPClient(&http.Client{Timeout: c.ArchiveTimeout()}),
		archive.WithPageSize(c.Archive.PageSize),
		archive.WithRateLimit(c.Archive.RateLimit),
		archive.WithLogger(log.Named("archive")),
	)
	a.checker = lindi.NewChecker(c.Lindi.BaseURL,
		lindi.WithHTTPClient(&http.Client{Timeout: c.LindiTimeout()}),
		lindi.WithRetries(c.Lindi.MaxRetries, policy),
		lindi.WithRateLimit(c.Lindi.RateLimit),
		lindi.WithLogger(log.Named("lindi")),
	)
	a.pipeline = pipeline.New(c.Dendro.ProjectID)
	a.selector = selector.New(a.archive, a.checker, a.pipeline,
		selector.WithLimits(selector.Limits{
			MaxConsecutiveNonNWB:  c.Limits.MaxConsecutiveNonNWB,
			MaxConsecutiveMissing: c.Limits.MaxConsecutiveMissing,
			MaxAssets:             c.Limits.MaxAssets,
		}),
		selector.WithJobOptions(
			pipeline.WithProcessor(c.Job.Processor),
			pipeline.WithRunMethod(c.Job.RunMethod),
			pipeline.WithResources(common.RequiredResources{
				NumCPUs:  c.Job.NumCPUs,
				NumGPUs:  c.Job.NumGPUs,
				MemoryGB: c.Job.MemoryGB,
				TimeSec:  c.Job.TimeSec,
			}),
		),
		selector.WithLogger(log.Named("selector")),
	)
	a.dendro = pipeline.NewClient(c.Dendro.BaseURL, c.Dendro.APIKey,
		pipeline.WithHTTPClient(&http.Client{Timeout: c.DendroTimeout()}),
		pipeline.WithRetries(c.Dendro.MaxRetries, policy),
		pipeline.WithLogger(log.Named("dendro")),
	)
	return a
}

// walk recorre todos los dandisets configurados y llena el pipeline.
func (a *app) walk(ctx context.Context) ([]selector.Result, error) {
	dandisets := make([]common.Dandiset, 0, len(a.cfg.Dandisets))
	for _, d := range a.cfg.Dandisets {
		dandisets = append(dandisets, common.Dandiset{Identifier: d.ID, Version: d.Version})
	}
	return a.selector.RunAll(ctx, dandisets, a.cfg.Concurrency)
}

// parseRef acepta todo lo que entiende archive.ParseDandisetURL.
func parseRef(ref string) (config.DandisetConfig, error) {
	ds, err := archive.ParseDandisetURL(ref)
	if err != nil {
		return config.DandisetConfig{}, fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	return config.DandisetConfig{ID: ds.Identifier, Version: ds.Version}, nil
}

func printSummary(w io.Writer, results []selector.Result) {
	total := 0
	for _, r := range results {
		fmt.Fprintf(w, "%-24s procesados=%-4d faltantes=%-4d no-nwb=%-4d parada=%s\n",
			r.Dandiset.String(), r.Processed, r.Missing, r.SkippedNonNWB, r.StopReason)
		total += r.Processed
	}
	fmt.Fprintf(w, "%s\n%d assets agendados en total\n", strings.Repeat("-", 24), total)
}
