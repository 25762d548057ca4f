// Package selector recorre los assets de un dandiset y agenda un job por cada
// archivo NWB que ya tiene indice LINDI. El recorrido se corta antes de tiempo
// con tres umbrales: demasiados assets no-NWB seguidos, demasiados LINDI
// faltantes seguidos o demasiados assets procesados.
package selector

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"dandi-batch/internal/archive"
	"dandi-batch/internal/common"
	"dandi-batch/internal/logging"
	"dandi-batch/internal/pipeline"
)

// ErrDandisetNotFound se devuelve cuando el archivo no conoce el dandiset.
var ErrDandisetNotFound = errors.New("dandiset no encontrado")

// AssetSource es la parte del cliente del archivo que usa el selector.
type AssetSource interface {
	GetDandiset(ctx context.Context, ds common.Dandiset) (common.Dandiset, error)
	WalkAssets(ctx context.Context, ds common.Dandiset, fn func(common.Asset) error) error
}

// FileChecker verifica si el LINDI de un asset existe.
type FileChecker interface {
	URLFor(dandisetID, assetID string) string
	Exists(ctx context.Context, url string) (bool, error)
}

// JobSink recibe los assets seleccionados.
type JobSink interface {
	AddAsset(ds common.Dandiset, asset common.Asset, lindiURL string, opts ...pipeline.JobOption) error
}

// Limits son los umbrales de parada. 0 desactiva el umbral.
type Limits struct {
	MaxConsecutiveNonNWB  int
	MaxConsecutiveMissing int
	MaxAssets             int
}

func DefaultLimits() Limits {
	return Limits{
		MaxConsecutiveNonNWB:  common.DefaultMaxConsecutiveNonNWB,
		MaxConsecutiveMissing: common.DefaultMaxConsecutiveMissing,
		MaxAssets:             common.DefaultMaxAssets,
	}
}

type Selector struct {
	source  AssetSource
	checker FileChecker
	sink    JobSink
	limits  Limits
	jobOpts []pipeline.JobOption
	logger  *zap.Logger
}

type Option func(*Selector)

func WithLimits(l Limits) Option { return func(s *Selector) { s.limits = l } }
func WithJobOptions(o ...pipeline.JobOption) Option { return func(s *Selector) { s.jobOpts = o } }
func WithLogger(l *zap.Logger) Option { return func(s *Selector) { s.logger = l } }

func New(source AssetSource, checker FileChecker, sink JobSink, opts ...Option) *Selector {
	s := &Selector{
		source:  source,
		checker: checker,
		sink:    sink,
		limits:  DefaultLimits(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = logging.OrNop(s.logger)
	return s
}

// Result resume el recorrido de un dandiset.
type Result struct {
	Dandiset      common.Dandiset `json:"dandiset" yaml:"dandiset"`
	Processed     int             `json:"processed" yaml:"processed"`
	SkippedNonNWB int             `json:"skippedNonNwb" yaml:"skippedNonNwb"`
	Missing       int             `json:"missing" yaml:"missing"`
	CheckErrors   int             `json:"checkErrors" yaml:"checkErrors"`
	StopReason    string          `json:"stopReason" yaml:"stopReason"`
	Paths         []string        `json:"paths" yaml:"paths"`
}

// counters son los contadores del recorrido. Los consecutivos vuelven a cero
// cuando la condicion que los incrementa deja de cumplirse.
type counters struct {
	consecutiveNonNWB  int
	consecutiveMissing int
	processed          int
}

// Run recorre el dandiset y envia al sink cada asset seleccionado.
func (s *Selector) Run(ctx context.Context, ds common.Dandiset) (Result, error) {
	res := Result{Dandiset: ds, Paths: []string{}}
	log := s.logger.With(zap.String("dandiset", ds.Identifier))

	resolved, err := s.source.GetDandiset(ctx, ds)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			log.Warn("dandiset no encontrado")
			res.StopReason = common.StopNotFound
			return res, fmt.Errorf("%w: %s", ErrDandisetNotFound, ds)
		}
		return res, fmt.Errorf("buscando dandiset %s: %w", ds, err)
	}
	res.Dandiset = resolved
	log = log.With(zap.String("version", resolved.Version))
	log.Info("recorriendo dandiset", zap.String("name", resolved.Name))

	var c counters
	res.StopReason = common.StopExhausted

	err = s.source.WalkAssets(ctx, resolved, func(a common.Asset) error {
		if !a.IsNWB() {
			c.consecutiveNonNWB++
			res.SkippedNonNWB++
			if reached(c.consecutiveNonNWB, s.limits.MaxConsecutiveNonNWB) {
				log.Info("se detiene el dandiset: demasiados archivos no-NWB seguidos",
					zap.Int("consecutive", c.consecutiveNonNWB))
				res.StopReason = common.StopTooManyNonNWB
				return archive.ErrStop
			}
			return nil
		}
		c.consecutiveNonNWB = 0

		if reached(c.consecutiveMissing, s.limits.MaxConsecutiveMissing) {
			log.Info("se detiene el dandiset: demasiados archivos LINDI faltantes seguidos",
				zap.Int("consecutive", c.consecutiveMissing))
			res.StopReason = common.StopTooManyMissing
			return archive.ErrStop
		}
		if reached(c.processed, s.limits.MaxAssets) {
			log.Info("se detiene el dandiset: limite de assets procesados", zap.Int("processed", c.processed))
			res.StopReason = common.StopAssetLimit
			return archive.ErrStop
		}

		lindiURL := s.checker.URLFor(resolved.Identifier, a.AssetID)
		exists, err := s.checker.Exists(ctx, lindiURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Un error al verificar cuenta como faltante
			log.Warn("no se pudo verificar el archivo LINDI", zap.String("url", lindiURL), zap.Error(err))
			res.CheckErrors++
			exists = false
		}
		if !exists {
			c.consecutiveMissing++
			res.Missing++
			log.Debug("LINDI no disponible", zap.String("asset", a.Path))
			return nil
		}
		c.consecutiveMissing = 0

		log.Info("procesando archivo", zap.String("asset", a.Path), zap.Int("index", c.processed))
		if err := s.sink.AddAsset(resolved, a, lindiURL, s.jobOpts...); err != nil {
			if errors.Is(err, pipeline.ErrDuplicate) {
				log.Warn("asset ya agendado", zap.String("asset", a.Path))
				return nil
			}
			return err
		}
		c.processed++
		res.Processed++
		res.Paths = append(res.Paths, a.Path)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("recorriendo %s: %w", resolved, err)
	}

	log.Info("dandiset terminado",
		zap.Int("processed", res.Processed),
		zap.Int("missing", res.Missing),
		zap.Int("skipped_non_nwb", res.SkippedNonNWB),
		zap.String("stop_reason", res.StopReason))
	return res, nil
}

func reached(n, limit int) bool {
	return limit > 0 && n >= limit
}

// RunAll recorre varios dandisets con a lo sumo concurrency recorridos a la vez.
// Un dandiset inexistente no corta a los demas: queda con StopReason
// "dandiset-not-found". Los resultados respetan el orden de entrada.
func (s *Selector) RunAll(ctx context.Context, dandisets []common.Dandiset, concurrency int) ([]Result, error) {
	results := make([]Result, len(dandisets))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, concurrency))

	for i, ds := range dandisets {
		i, ds := i, ds
		g.Go(func() error {
			res, err := s.Run(ctx, ds)
			results[i] = res
			if errors.Is(err, ErrDandisetNotFound) {
				return nil
			}
			return err
		})
	}
	return results, g.Wait()
}
