package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	planFormat string
	planOutput string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Recorre los dandisets y muestra el pipeline sin enviarlo",
	Long: `Hace el mismo recorrido que submit pero escribe el pipeline resultante
(archivos importados y jobs) en YAML o JSON en lugar de enviarlo.

Ejemplo:
  dandi-batch plan --dandiset 000939 --format json -o pipeline.json`,
	Args: cobra.NoArgs,
	RunE: runPlan,
}

func runPlan(cmd *cobra.Command, args []string) error {
	if planFormat != "yaml" && planFormat != "json" {
		return fmt.Errorf("formato desconocido: %s (yaml o json)", planFormat)
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp(cfg, logger)
	results, err := a.walk(ctx)
	if err != nil {
		return err
	}
	printSummary(cmd.ErrOrStderr(), results)

	if planOutput == "" {
		return writeSpec(cmd.OutOrStdout(), a, planFormat)
	}
	f, err := os.Create(planOutput)
	if err != nil {
		return fmt.Errorf("no se pudo crear %s: %w", planOutput, err)
	}
	if err := writeSpec(f, a, planFormat); err != nil {
		f.Close()
		return fmt.Errorf("escribiendo %s: %w", planOutput, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("cerrando %s: %w", planOutput, err)
	}
	return nil
}

func writeSpec(w io.Writer, a *app, format string) error {
	spec := a.pipeline.Spec()
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(spec)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(spec); err != nil {
		return err
	}
	return enc.Close()
}
