package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dandi-batch/internal/config"
	"dandi-batch/internal/logging"
)

var (
	// Flags globales
	verbose    bool
	configPath string
	timeout    time.Duration

	// Flags compartidos por submit y plan
	dandisetRefs []string
	projectID    string
	concurrency  int
	maxAssets    int

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "dandi-batch",
	Short: "Agenda analisis de Dendro para los archivos NWB de un dandiset",
	Long: `dandi-batch recorre los assets de uno o mas dandisets del archivo DANDI,
busca los que ya tienen indice LINDI publicado en neurosift y agenda un job
de autocorrelogramas por cada uno en un proyecto de Dendro.

El recorrido se corta despues de 20 archivos no-NWB seguidos, 20 indices
LINDI faltantes seguidos o 100 assets procesados (configurable).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if err := applyFlags(cmd, cfg); err != nil {
			return err
		}

		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format, verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log en nivel debug")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "dandi-batch.yaml", "archivo de configuracion YAML")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "tiempo maximo de la corrida (0 = sin limite)")

	for _, c := range []*cobra.Command{submitCmd, planCmd} {
		c.Flags().StringSliceVarP(&dandisetRefs, "dandiset", "d", nil, "dandiset a recorrer (id, id@version o url); reemplaza los de la configuracion")
		c.Flags().StringVarP(&projectID, "project", "p", "", "id del proyecto de Dendro")
		c.Flags().IntVar(&concurrency, "concurrency", 0, "dandisets recorridos a la vez")
		c.Flags().IntVar(&maxAssets, "max-assets", -1, "limite de assets procesados por dandiset (0 = sin limite)")
	}
	planCmd.Flags().StringVarP(&planFormat, "format", "f", "yaml", "formato de salida: yaml o json")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "", "archivo de salida (por defecto stdout)")
	assetsCmd.Flags().IntVarP(&assetsLimit, "limit", "n", 50, "cantidad maxima de assets a listar (0 = todos)")
	assetsCmd.Flags().BoolVar(&assetsCheck, "check", true, "verificar si existe el indice LINDI de cada asset NWB")

	rootCmd.AddCommand(submitCmd, planCmd, assetsCmd)
}

// applyFlags pisa la configuracion con los flags que el usuario paso.
func applyFlags(cmd *cobra.Command, c *config.Config) error {
	if len(dandisetRefs) > 0 {
		c.Dandisets = c.Dandisets[:0]
		for _, ref := range dandisetRefs {
			d, err := parseRef(ref)
			if err != nil {
				return err
			}
			c.Dandisets = append(c.Dandisets, d)
		}
	}
	if projectID != "" {
		c.Dendro.ProjectID = projectID
	}
	if concurrency > 0 {
		c.Concurrency = concurrency
	}
	if f := cmd.Flags().Lookup("max-assets"); f != nil && f.Changed {
		c.Limits.MaxAssets = maxAssets
	}
	return nil
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, timeout)
	}
	return context.WithCancel(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
