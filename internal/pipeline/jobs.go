package pipeline

import (
	"fmt"

	"dandi-batch/internal/common"
)

// ImportedFileName es el nombre bajo el cual se importa el LINDI de un asset:
// imported/{dandiset}/{asset path}.lindi.json
func ImportedFileName(dandisetID, assetPath string) string {
	return fmt.Sprintf("%s/%s/%s%s", common.PrefixImported, dandisetID, assetPath, common.ExtLINDI)
}

// OutputFileName es el archivo generado por el job de autocorrelogramas:
// generated/{dandiset}/{asset path}.lindi.json/autocorrelograms.nwb.lindi.json
func OutputFileName(dandisetID, assetPath string) string {
	return fmt.Sprintf("%s/%s/%s%s/autocorrelograms.nwb%s", common.PrefixGenerated, dandisetID, assetPath, common.ExtLINDI, common.ExtLINDI)
}

// DefaultAutocorrelogramsResources son los recursos del job si no se configuran otros.
var DefaultAutocorrelogramsResources = common.RequiredResources{
	NumCPUs:  4,
	NumGPUs:  0,
	MemoryGB: 16,
	TimeSec:  60 * 60 * 24,
}

type JobOption func(*common.Job)

func WithResources(r common.RequiredResources) JobOption {
	return func(j *common.Job) { j.RequiredResources = r }
}

func WithRunMethod(m string) JobOption {
	return func(j *common.Job) { j.RunMethod = m }
}

func WithProcessor(name string) JobOption {
	return func(j *common.Job) { j.ProcessorName = name }
}

// NewAutocorrelogramsJob construye el descriptor del job de autocorrelogramas:
// una entrada "input", una salida "output" con metadata y sin parametros.
func NewAutocorrelogramsJob(input, output string, metadata common.FileMetadata, opts ...JobOption) common.Job {
	j := common.Job{
		ProcessorName: common.ProcessorAutocorrelograms,
		Inputs: []common.JobInput{
			{Name: "input", FileName: input},
		},
		Outputs: []common.JobOutput{
			{Name: "output", FileName: output, Metadata: metadata},
		},
		Parameters:        []common.JobParameter{},
		RequiredResources: DefaultAutocorrelogramsResources,
		RunMethod:         common.RunMethodLocal,
	}
	for _, o := range opts {
		o(&j)
	}
	return j
}

// AddAsset importa el LINDI de un asset y agenda sus autocorrelogramas.
// Si el job no es valido no se registra nada.
func (p *Pipeline) AddAsset(ds common.Dandiset, asset common.Asset, lindiURL string, opts ...JobOption) error {
	md := common.FileMetadata{
		DandisetID:      ds.Identifier,
		DandisetVersion: ds.Version,
		DandiAssetID:    asset.AssetID,
	}
	input := ImportedFileName(ds.Identifier, asset.Path)
	imported := common.ImportedFile{FileName: input, URL: lindiURL, Metadata: md}

	md.Supplemental = true
	job := NewAutocorrelogramsJob(input, OutputFileName(ds.Identifier, asset.Path), md, opts...)

	if err := p.addImportWithJob(imported, job); err != nil {
		return fmt.Errorf("agregando %s: %w", asset.Path, err)
	}
	return nil
}
