// Package pipeline acumula los archivos importados y los jobs de un proyecto
// de Dendro y los envia en un solo lote.
package pipeline

import (
	"errors"
	"fmt"
	"sync"

	"dandi-batch/internal/common"
)

var (
	// ErrDuplicate indica un nombre de archivo ya registrado en el pipeline.
	ErrDuplicate = errors.New("archivo duplicado en el pipeline")
	// ErrEmpty indica un pipeline sin jobs ni archivos.
	ErrEmpty = errors.New("pipeline vacio")
	// ErrInvalidJob indica un descriptor de job incompleto.
	ErrInvalidJob = errors.New("job invalido")
)

// Pipeline es seguro para uso concurrente: varios recorridos pueden alimentar el mismo.
type Pipeline struct {
	mu            sync.RWMutex
	projectID     string
	importedFiles []common.ImportedFile
	jobs          []common.Job
	files         map[string]struct{} // nombres de archivo importados o generados
}

// Spec es la foto serializable del pipeline.
type Spec struct {
	ProjectID     string                `json:"projectId" yaml:"projectId"`
	ImportedFiles []common.ImportedFile `json:"importedFiles" yaml:"importedFiles"`
	Jobs          []common.Job          `json:"jobs" yaml:"jobs"`
}

func New(projectID string) *Pipeline {
	return &Pipeline{
		projectID:     projectID,
		importedFiles: make([]common.ImportedFile, 0),
		jobs:          make([]common.Job, 0),
		files:         make(map[string]struct{}),
	}
}

func (p *Pipeline) ProjectID() string { return p.projectID }

// AddImportedFile registra un archivo remoto bajo f.FileName.
func (p *Pipeline) AddImportedFile(f common.ImportedFile) error {
	if f.FileName == "" || f.URL == "" {
		return fmt.Errorf("archivo importado sin nombre o url")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.files[f.FileName]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, f.FileName)
	}
	p.files[f.FileName] = struct{}{}
	p.importedFiles = append(p.importedFiles, f)
	return nil
}

// AddJob agrega un job. Sus salidas no pueden pisar archivos ya registrados.
func (p *Pipeline) AddJob(j common.Job) error {
	if err := validateJob(j); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, out := range j.Outputs {
		if _, exists := p.files[out.FileName]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicate, out.FileName)
		}
	}
	for _, out := range j.Outputs {
		p.files[out.FileName] = struct{}{}
	}
	p.jobs = append(p.jobs, j)
	return nil
}

// addImportWithJob registra el archivo y el job juntos o ninguno de los dos.
func (p *Pipeline) addImportWithJob(f common.ImportedFile, j common.Job) error {
	if f.FileName == "" || f.URL == "" {
		return fmt.Errorf("archivo importado sin nombre o url")
	}
	if err := validateJob(j); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.files[f.FileName]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, f.FileName)
	}
	for _, out := range j.Outputs {
		if _, exists := p.files[out.FileName]; exists || out.FileName == f.FileName {
			return fmt.Errorf("%w: %s", ErrDuplicate, out.FileName)
		}
	}
	p.files[f.FileName] = struct{}{}
	for _, out := range j.Outputs {
		p.files[out.FileName] = struct{}{}
	}
	p.importedFiles = append(p.importedFiles, f)
	p.jobs = append(p.jobs, j)
	return nil
}

func validateJob(j common.Job) error {
	if j.ProcessorName == "" {
		return fmt.Errorf("%w: falta processor", ErrInvalidJob)
	}
	if len(j.Outputs) == 0 {
		return fmt.Errorf("%w: %s no tiene salidas", ErrInvalidJob, j.ProcessorName)
	}
	seen := make(map[string]bool, len(j.Outputs))
	for _, out := range j.Outputs {
		if out.FileName == "" || out.Name == "" {
			return fmt.Errorf("%w: salida sin nombre", ErrInvalidJob)
		}
		if seen[out.FileName] {
			return fmt.Errorf("%w: salida repetida %s", ErrInvalidJob, out.FileName)
		}
		seen[out.FileName] = true
	}
	for _, in := range j.Inputs {
		if in.FileName == "" || in.Name == "" {
			return fmt.Errorf("%w: entrada sin nombre", ErrInvalidJob)
		}
	}
	return nil
}

func (p *Pipeline) ImportedFiles() []common.ImportedFile {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]common.ImportedFile(nil), p.importedFiles...)
}

func (p *Pipeline) Jobs() []common.Job {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]common.Job(nil), p.jobs...)
}

// Len devuelve la cantidad de archivos importados y de jobs.
func (p *Pipeline) Len() (importedFiles, jobs int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.importedFiles), len(p.jobs)
}

func (p *Pipeline) Empty() bool {
	files, jobs := p.Len()
	return files == 0 && jobs == 0
}

// Spec devuelve una copia serializable del contenido actual.
func (p *Pipeline) Spec() Spec {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Spec{
		ProjectID:     p.projectID,
		ImportedFiles: append(make([]common.ImportedFile, 0, len(p.importedFiles)), p.importedFiles...),
		Jobs:          append(make([]common.Job, 0, len(p.jobs)), p.jobs...),
	}
}
