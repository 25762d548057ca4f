package common

// --- Constantes del archivo, del formato LINDI y del pipeline de Dendro ---

// Extensiones de archivo (Asset.Path)
const (
	ExtNWB   = ".nwb"
	ExtLINDI = ".lindi.json"
)

// Prefijos de nombres de archivo dentro de un proyecto de Dendro
const (
	PrefixImported  = "imported"
	PrefixGenerated = "generated"
)

// Procesadores conocidos (Job.ProcessorName)
const (
	ProcessorAutocorrelograms = "neurosift-1.autocorrelograms"
)

// Metodos de ejecucion (Job.RunMethod)
const (
	RunMethodLocal = "local"
	RunMethodAWS   = "aws_batch"
	RunMethodSlurm = "slurm"
)

// Limites por defecto del recorrido de un dandiset
const (
	DefaultMaxConsecutiveNonNWB  = 20
	DefaultMaxConsecutiveMissing = 20
	DefaultMaxAssets             = 100
)

// Motivos de parada del recorrido (Result.StopReason)
const (
	StopExhausted      = "exhausted"
	StopTooManyNonNWB  = "too-many-non-nwb"
	StopTooManyMissing = "too-many-missing"
	StopAssetLimit     = "asset-limit"
	StopNotFound       = "dandiset-not-found"
)

// Estados de un envio (SubmitResult.Status)
const (
	SubmitStatusAccepted = "ACCEPTED"
	SubmitStatusSkipped  = "SKIPPED"
)
