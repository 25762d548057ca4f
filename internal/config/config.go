package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"dandi-batch/internal/common"
)

// ErrInvalid envuelve todos los errores de Validate.
var ErrInvalid = errors.New("configuracion invalida")

// Config contiene toda la configuracion de dandi-batch.
type Config struct {
	// Datasets a recorrer, en orden
	Dandisets []DandisetConfig `yaml:"dandisets"`

	Archive ArchiveConfig `yaml:"archive"`
	Lindi   LindiConfig   `yaml:"lindi"`
	Dendro  DendroConfig  `yaml:"dendro"`
	Limits  LimitsConfig  `yaml:"limits"`
	Job     JobConfig     `yaml:"job"`

	// Cuantos dandisets se recorren a la vez (1 = secuencial)
	Concurrency int `yaml:"concurrency"`

	Logging LoggingConfig `yaml:"logging"`
}

// DandisetConfig referencia un dandiset. Version vacia usa la ultima publicada.
type DandisetConfig struct {
	ID      string `yaml:"id"`
	Version string `yaml:"version"`
}

// ArchiveConfig configura el cliente REST del archivo DANDI.
type ArchiveConfig struct {
	BaseURL   string  `yaml:"base_url"`
	PageSize  int     `yaml:"page_size"`
	RateLimit float64 `yaml:"rate_limit"` // peticiones por segundo, 0 = sin limite
	Timeout   string  `yaml:"timeout"`
}

// LindiConfig configura la verificacion de existencia de archivos LINDI.
type LindiConfig struct {
	BaseURL    string  `yaml:"base_url"`
	RateLimit  float64 `yaml:"rate_limit"`
	Timeout    string  `yaml:"timeout"`
	MaxRetries int     `yaml:"max_retries"`
}

// DendroConfig configura el envio del pipeline.
type DendroConfig struct {
	BaseURL    string `yaml:"base_url"`
	ProjectID  string `yaml:"project_id"`
	APIKey     string `yaml:"api_key"`
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
}

// LimitsConfig son los umbrales de parada temprana. 0 desactiva el limite.
type LimitsConfig struct {
	MaxConsecutiveNonNWB  int `yaml:"max_consecutive_non_nwb"`
	MaxConsecutiveMissing int `yaml:"max_consecutive_missing"`
	MaxAssets             int `yaml:"max_assets"`
}

// JobConfig permite ajustar los recursos del job de autocorrelogramas.
type JobConfig struct {
	Processor string `yaml:"processor"`
	RunMethod string `yaml:"run_method"`
	NumCPUs   int    `yaml:"num_cpus"`
	NumGPUs   int    `yaml:"num_gpus"`
	MemoryGB  int    `yaml:"memory_gb"`
	TimeSec   int    `yaml:"time_sec"`
}

// LoggingConfig configura el logger de zap.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// DefaultConfig devuelve la configuracion por defecto.
func DefaultConfig() *Config {
	return &Config{
		// Large-scale recordings of head-direction cells in mouse postsubiculum
		Dandisets: []DandisetConfig{
			{ID: "000939", Version: "0.240327.2229"},
		},

		Archive: ArchiveConfig{
			BaseURL:   "https://api.dandiarchive.org/api",
			PageSize:  100,
			RateLimit: 10,
			Timeout:   "30s",
		},

		Lindi: LindiConfig{
			BaseURL:    "https://lindi.neurosift.org",
			RateLimit:  20,
			Timeout:    "15s",
			MaxRetries: 2,
		},

		Dendro: DendroConfig{
			BaseURL:    "https://dendro.vercel.app",
			ProjectID:  "d02200fd",
			Timeout:    "60s",
			MaxRetries: 3,
		},

		Limits: LimitsConfig{
			MaxConsecutiveNonNWB:  common.DefaultMaxConsecutiveNonNWB,
			MaxConsecutiveMissing: common.DefaultMaxConsecutiveMissing,
			MaxAssets:             common.DefaultMaxAssets,
		},

		Job: JobConfig{
			Processor: common.ProcessorAutocorrelograms,
			RunMethod: common.RunMethodLocal,
			NumCPUs:   4,
			NumGPUs:   0,
			MemoryGB:  16,
			TimeSec:   60 * 60 * 24,
		},

		Concurrency: 1,

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load carga la configuracion desde un archivo YAML.
// Si el archivo no existe devuelve los valores por defecto.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("no se pudo leer la configuracion: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("no se pudo parsear la configuracion: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save guarda la configuracion en un archivo YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("no se pudo crear el directorio: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("no se pudo serializar la configuracion: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("DENDRO_API_KEY"); key != "" {
		c.Dendro.APIKey = key
	}
	if id := os.Getenv("DENDRO_PROJECT_ID"); id != "" {
		c.Dendro.ProjectID = id
	}
	if url := os.Getenv("DENDRO_API_URL"); url != "" {
		c.Dendro.BaseURL = url
	}
	if url := os.Getenv("DANDI_API_URL"); url != "" {
		c.Archive.BaseURL = url
	}
	if url := os.Getenv("LINDI_BASE_URL"); url != "" {
		c.Lindi.BaseURL = url
	}
}

func (c *Config) ArchiveTimeout() time.Duration {
	return parseDuration(c.Archive.Timeout, 30*time.Second)
}

func (c *Config) LindiTimeout() time.Duration {
	return parseDuration(c.Lindi.Timeout, 15*time.Second)
}

func (c *Config) DendroTimeout() time.Duration {
	return parseDuration(c.Dendro.Timeout, 60*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// ValidRunMethods lista los metodos de ejecucion aceptados por Dendro.
var ValidRunMethods = []string{common.RunMethodLocal, common.RunMethodAWS, common.RunMethodSlurm}

// Validate verifica la configuracion. submit indica si se va a enviar el pipeline
// (en ese caso el proyecto y la API key son obligatorios).
func (c *Config) Validate(submit bool) error {
	if len(c.Dandisets) == 0 {
		return fmt.Errorf("%w: no hay dandisets configurados", ErrInvalid)
	}
	for _, d := range c.Dandisets {
		if d.ID == "" {
			return fmt.Errorf("%w: dandiset sin id", ErrInvalid)
		}
	}
	if c.Archive.BaseURL == "" || c.Lindi.BaseURL == "" {
		return fmt.Errorf("%w: base_url del archivo o de lindi vacia", ErrInvalid)
	}
	if c.Archive.PageSize <= 0 {
		return fmt.Errorf("%w: page_size debe ser mayor a cero", ErrInvalid)
	}
	if c.Limits.MaxConsecutiveNonNWB < 0 || c.Limits.MaxConsecutiveMissing < 0 || c.Limits.MaxAssets < 0 {
		return fmt.Errorf("%w: los limites no pueden ser negativos", ErrInvalid)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency debe ser al menos 1", ErrInvalid)
	}
	if c.Job.Processor == "" {
		return fmt.Errorf("%w: falta job.processor", ErrInvalid)
	}
	if c.Job.NumCPUs < 1 || c.Job.MemoryGB < 1 || c.Job.TimeSec < 1 || c.Job.NumGPUs < 0 {
		return fmt.Errorf("%w: recursos del job invalidos", ErrInvalid)
	}

	validMethod := false
	for _, m := range ValidRunMethods {
		if c.Job.RunMethod == m {
			validMethod = true
			break
		}
	}
	if !validMethod {
		return fmt.Errorf("%w: run_method %q (validos: %v)", ErrInvalid, c.Job.RunMethod, ValidRunMethods)
	}

	if submit {
		if c.Dendro.ProjectID == "" {
			return fmt.Errorf("%w: falta dendro.project_id (o DENDRO_PROJECT_ID)", ErrInvalid)
		}
		if c.Dendro.APIKey == "" {
			return fmt.Errorf("%w: falta la API key de Dendro (DENDRO_API_KEY)", ErrInvalid)
		}
	}
	return nil
}
