package pipeline

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"dandi-batch/internal/common"
)

func TestPipeline_AddImportedFile(t *testing.T) {
	p := New("proj")
	f := common.ImportedFile{FileName: "imported/a.lindi.json", URL: "https://x/a"}

	require.NoError(t, p.AddImportedFile(f))
	assert.ErrorIs(t, p.AddImportedFile(f), ErrDuplicate)
	assert.Error(t, p.AddImportedFile(common.ImportedFile{FileName: "imported/b"}))

	files, jobs := p.Len()
	assert.Equal(t, 1, files)
	assert.Equal(t, 0, jobs)
}

func TestPipeline_AddJob_Validation(t *testing.T) {
	valid := NewAutocorrelogramsJob("imported/a", "generated/a/out", common.FileMetadata{})

	tests := []struct {
		name    string
		job     common.Job
		wantErr error
	}{
		{name: "valido", job: valid},
		{name: "sin processor", job: common.Job{Outputs: valid.Outputs}, wantErr: ErrInvalidJob},
		{name: "sin salidas", job: common.Job{ProcessorName: "p"}, wantErr: ErrInvalidJob},
		{name: "salida repetida", job: common.Job{ProcessorName: "p", Outputs: []common.JobOutput{
			{Name: "a", FileName: "x"}, {Name: "b", FileName: "x"},
		}}, wantErr: ErrInvalidJob},
		{name: "entrada sin archivo", job: common.Job{ProcessorName: "p",
			Inputs:  []common.JobInput{{Name: "input"}},
			Outputs: []common.JobOutput{{Name: "o", FileName: "y"}},
		}, wantErr: ErrInvalidJob},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New("proj").AddJob(tt.job)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestPipeline_AddJob_OutputCollidesWithImport(t *testing.T) {
	p := New("proj")
	require.NoError(t, p.AddImportedFile(common.ImportedFile{FileName: "generated/a/out", URL: "https://x"}))
	err := p.AddJob(NewAutocorrelogramsJob("imported/a", "generated/a/out", common.FileMetadata{}))
	assert.ErrorIs(t, err, ErrDuplicate)
	_, jobs := p.Len()
	assert.Zero(t, jobs)
}

func TestPipeline_ConcurrentAdds(t *testing.T) {
	p := New("proj")
	ds := common.Dandiset{Identifier: "000939", Version: "draft"}

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				a := common.Asset{AssetID: fmt.Sprintf("%d-%d", w, i), Path: fmt.Sprintf("w%d/%d.nwb", w, i)}
				assert.NoError(t, p.AddAsset(ds, a, "https://lindi/"+a.AssetID))
			}
		}(w)
	}
	wg.Wait()

	files, jobs := p.Len()
	assert.Equal(t, 100, files)
	assert.Equal(t, 100, jobs)
}

func TestPipeline_SpecSerialization(t *testing.T) {
	p := New("d02200fd")
	assert.True(t, p.Empty())
	require.NoError(t, p.AddAsset(common.Dandiset{Identifier: "000939", Version: "v1"},
		common.Asset{AssetID: "a1", Path: "x.nwb"}, "https://lindi/a1"))
	assert.False(t, p.Empty())

	data, err := json.Marshal(p.Spec())
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "d02200fd", raw["projectId"])

	job := raw["jobs"].([]any)[0].(map[string]any)
	assert.Equal(t, "neurosift-1.autocorrelograms", job["processorName"])
	assert.Equal(t, []any{}, job["parameters"])
	assert.Equal(t, float64(16), job["requiredResources"].(map[string]any)["memoryGb"])

	// La metadata del archivo importado no lleva "supplemental"
	imported := raw["importedFiles"].([]any)[0].(map[string]any)
	_, hasSupp := imported["metadata"].(map[string]any)["supplemental"]
	assert.False(t, hasSupp)

	out, err := yaml.Marshal(p.Spec())
	require.NoError(t, err)
	assert.Contains(t, string(out), "processorName: neurosift-1.autocorrelograms")
}
