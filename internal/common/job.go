package common

// FileMetadata es la metadata que acompaña a cada archivo importado o generado.
type FileMetadata struct {
	DandisetID      string `json:"dandisetId" yaml:"dandisetId"`
	DandisetVersion string `json:"dandisetVersion" yaml:"dandisetVersion"`
	DandiAssetID    string `json:"dandiAssetId" yaml:"dandiAssetId"`
	Supplemental    bool   `json:"supplemental,omitempty" yaml:"supplemental,omitempty"` // Solo en salidas derivadas
}

// ImportedFile es un archivo remoto que se registra en el proyecto sin copiarlo.
type ImportedFile struct {
	FileName string       `json:"fname" yaml:"fname"` // ej: "imported/000939/sub-A/sub-A.nwb.lindi.json"
	URL      string       `json:"url" yaml:"url"`
	Metadata FileMetadata `json:"metadata" yaml:"metadata"`
}

type Job struct {
	ProcessorName     string            `json:"processorName" yaml:"processorName"`
	Inputs            []JobInput        `json:"inputs" yaml:"inputs"`
	Outputs           []JobOutput       `json:"outputs" yaml:"outputs"`
	Parameters        []JobParameter    `json:"parameters" yaml:"parameters"`
	RequiredResources RequiredResources `json:"requiredResources" yaml:"requiredResources"`
	RunMethod         string            `json:"runMethod" yaml:"runMethod"` // "local", "aws_batch", "slurm"
}

type JobInput struct {
	Name     string `json:"name" yaml:"name"`
	FileName string `json:"fileName" yaml:"fileName"`
}

type JobOutput struct {
	Name     string       `json:"name" yaml:"name"`
	FileName string       `json:"fileName" yaml:"fileName"`
	Metadata FileMetadata `json:"metadata" yaml:"metadata"`
}

type JobParameter struct {
	Name  string `json:"name" yaml:"name"`
	Value any    `json:"value" yaml:"value"`
}

// RequiredResources son los recursos que el servicio debe reservar para el job.
type RequiredResources struct {
	NumCPUs  int `json:"numCpus" yaml:"numCpus"`
	NumGPUs  int `json:"numGpus" yaml:"numGpus"`
	MemoryGB int `json:"memoryGb" yaml:"memoryGb"`
	TimeSec  int `json:"timeSec" yaml:"timeSec"`
}
