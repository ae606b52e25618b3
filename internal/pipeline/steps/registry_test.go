package steps

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStepRegistry(t *testing.T) {
	expectedSteps := []string{
		StageResolveRequirements, StageRetrieve, StageRerank, StageCompress,
		StagePlanBudget, StageTrim, StageAssemble,
		StageCompile, StageEmbed, StageUpsert, StageRetire,
	}

	for _, stepName := range expectedSteps {
		def, ok := StepRegistry[stepName]
		require.True(t, ok, "Step %s should be in registry", stepName)
		assert.Equal(t, stepName, def.Name)
		assert.NotEmpty(t, def.Category)
		for _, dep := range append(def.Dependencies, def.Optional...) {
			_, known := StepRegistry[dep]
			assert.True(t, known, "%s depends on unknown step %s", stepName, dep)
		}
	}
	assert.Len(t, StepRegistry, len(expectedSteps))
}

func TestStepRegistryCategories(t *testing.T) {
	categories := map[string][]string{
		CategoryRequirements: {StageResolveRequirements},
		CategoryRetrieval:    {StageRetrieve, StageRerank},
		CategorySelection:    {StageCompress, StagePlanBudget, StageTrim},
		CategoryGeneration:   {StageAssemble},
		CategoryIngestion:    {StageCompile, StageEmbed, StageUpsert, StageRetire},
	}

	for category, stepNames := range categories {
		for _, stepName := range stepNames {
			def, ok := StepRegistry[stepName]
			require.True(t, ok)
			assert.Equal(t, category, def.Category, "Step %s should be in category %s", stepName, category)
		}
	}
}

func TestDependencyError(t *testing.T) {
	err := &DependencyError{
		Step:                "test_step",
		MissingDependencies: []string{"dep1", "dep2"},
	}

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "missing dependencies")
	assert.Equal(t, "test_step", err.Step)
	assert.Equal(t, []string{"dep1", "dep2"}, err.MissingDependencies)
}

func TestValidateDependencies(t *testing.T) {
	tests := []struct {
		name      string
		completed map[string]bool
		step      string
		missing   []string
		wantErr   string
	}{
		{name: "unknown step", step: "unknown_step", wantErr: "unknown step"},
		{name: "root step", step: StageResolveRequirements},
		{name: "trim needs compress and plan", completed: map[string]bool{StageCompress: true}, step: StageTrim, missing: []string{StagePlanBudget}},
		{name: "optional rerank not required", completed: map[string]bool{StageRetrieve: true}, step: StageCompress},
		{name: "assemble after trim", completed: map[string]bool{StageTrim: true}, step: StageAssemble},
		{name: "retire before upsert", completed: map[string]bool{StageCompile: true}, step: StageRetire, missing: []string{StageUpsert}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDependencies(tt.completed, tt.step)
			switch {
			case tt.wantErr != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			case tt.missing != nil:
				var depErr *DependencyError
				require.True(t, errors.As(err, &depErr))
				assert.Equal(t, tt.step, depErr.Step)
				assert.Equal(t, tt.missing, depErr.MissingDependencies)
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	require.Error(t, tr.Begin(StageRetrieve))

	require.NoError(t, tr.Begin(StageResolveRequirements))
	tr.Complete(StageResolveRequirements)
	assert.True(t, tr.Completed(StageResolveRequirements))
	assert.NoError(t, tr.Begin(StageRetrieve))
}
