package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dandi-batch/internal/archive"
)

var (
	assetsLimit int
	assetsCheck bool
)

var assetsCmd = &cobra.Command{
	Use:   "assets [dandiset]",
	Short: "Lista los assets de un dandiset y si tienen indice LINDI",
	Long: `Lista los assets de un dandiset en orden de ruta. Para los archivos NWB
indica si el indice LINDI esta publicado.

Ejemplo:
  dandi-batch assets https://dandiarchive.org/dandiset/000939 --limit 20`,
	Args: cobra.ExactArgs(1),
	RunE: runAssets,
}

func runAssets(cmd *cobra.Command, args []string) error {
	ref, err := archive.ParseDandisetURL(args[0])
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(cmd)
	defer cancel()

	a := newApp(cfg, logger)
	ds, err := a.archive.GetDandiset(ctx, ref)
	if err != nil {
		return err
	}
	assets, err := a.archive.ListAssets(ctx, ds, assetsLimit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "# %s %s\n", ds, ds.Name)
	fmt.Fprintln(tw, "PATH\tASSET_ID\tSIZE\tLINDI")
	for _, asset := range assets {
		status := "-"
		if asset.IsNWB() && assetsCheck {
			ok, err := a.checker.Exists(ctx, a.checker.URLFor(ds.Identifier, asset.AssetID))
			switch {
			case err != nil:
				logger.Warn("no se pudo verificar", zap.String("asset", asset.Path), zap.Error(err))
				status = "error"
			case ok:
				status = "si"
			default:
				status = "no"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", asset.Path, asset.AssetID, asset.Size, status)
	}
	return tw.Flush()
}
