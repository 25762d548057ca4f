package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dandi-batch/internal/pipeline"
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Recorre los dandisets y envia el pipeline a Dendro",
	Long: `Recorre los dandisets configurados, importa en el proyecto el indice LINDI
de cada archivo NWB disponible, agenda sus autocorrelogramas y envia todo
en un solo pipeline.

Ejemplo:
  DENDRO_API_KEY=... dandi-batch submit --dandiset 000939@0.240327.2229 --project d02200fd`,
	Args: cobra.NoArgs,
	RunE: runSubmit,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(true); err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp(cfg, logger)
	results, err := a.walk(ctx)
	if err != nil {
		return err
	}
	printSummary(cmd.OutOrStdout(), results)

	logger.Info("enviando pipeline", zap.String("project", cfg.Dendro.ProjectID))
	res, err := a.dendro.Submit(ctx, a.pipeline)
	if errors.Is(err, pipeline.ErrEmpty) {
		logger.Warn("no hay archivos para agendar, no se envia el pipeline")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pipeline enviado: submission=%s pipeline=%s archivos=%d jobs=%d\n",
		res.SubmissionID, res.PipelineID, res.NumImportedFiles, res.NumJobs)
	return nil
}
