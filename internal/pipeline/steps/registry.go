// Package steps provides stage definitions and dependency validation
// for the evidence pipeline.
package steps

import "fmt"

// Stage names
const (
	StageResolveRequirements = "resolve_requirements"
	StageRetrieve            = "retrieve"
	StageRerank              = "rerank"
	StageCompress            = "compress"
	StagePlanBudget          = "plan_budget"
	StageTrim                = "trim"
	StageAssemble            = "assemble"

	StageCompile = "compile"
	StageEmbed   = "embed"
	StageUpsert  = "upsert"
	StageRetire  = "retire"
)

// Stage categories
const (
	CategoryRequirements = "requirements"
	CategoryRetrieval    = "retrieval"
	CategorySelection    = "selection"
	CategoryGeneration   = "generation"
	CategoryIngestion    = "ingestion"
)

// StepDefinition defines metadata for a pipeline stage
type StepDefinition struct {
	Name         string
	Category     string
	Dependencies []string
	Optional     []string
}

// StepRegistry holds all stage definitions
var StepRegistry = map[string]StepDefinition{
	StageResolveRequirements: {
		Name:         StageResolveRequirements,
		Category:     CategoryRequirements,
		Dependencies: []string{},
		Optional:     []string{},
	},
	StageRetrieve: {
		Name:         StageRetrieve,
		Category:     CategoryRetrieval,
		Dependencies: []string{StageResolveRequirements},
		Optional:     []string{},
	},
	StageRerank: {
		Name:         StageRerank,
		Category:     CategoryRetrieval,
		Dependencies: []string{StageRetrieve},
		Optional:     []string{},
	},
	StageCompress: {
		Name:         StageCompress,
		Category:     CategorySelection,
		Dependencies: []string{StageRetrieve},
		Optional:     []string{StageRerank},
	},
	StagePlanBudget: {
		Name:         StagePlanBudget,
		Category:     CategorySelection,
		Dependencies: []string{StageResolveRequirements},
		Optional:     []string{},
	},
	StageTrim: {
		Name:         StageTrim,
		Category:     CategorySelection,
		Dependencies: []string{StageCompress, StagePlanBudget},
		Optional:     []string{},
	},
	StageAssemble: {
		Name:         StageAssemble,
		Category:     CategoryGeneration,
		Dependencies: []string{StageTrim},
		Optional:     []string{},
	},
	StageCompile: {
		Name:         StageCompile,
		Category:     CategoryIngestion,
		Dependencies: []string{},
		Optional:     []string{},
	},
	StageEmbed: {
		Name:         StageEmbed,
		Category:     CategoryIngestion,
		Dependencies: []string{StageCompile},
		Optional:     []string{},
	},
	StageUpsert: {
		Name:         StageUpsert,
		Category:     CategoryIngestion,
		Dependencies: []string{StageCompile},
		Optional:     []string{StageEmbed},
	},
	StageRetire: {
		Name:         StageRetire,
		Category:     CategoryIngestion,
		Dependencies: []string{StageUpsert},
		Optional:     []string{},
	},
}

// DependencyError represents a dependency validation error
type DependencyError struct {
	Step                string
	MissingDependencies []string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("missing dependencies: %v", e.MissingDependencies)
}

// ValidateDependencies checks that every required dependency of a stage is in completed
func ValidateDependencies(completed map[string]bool, stepName string) error {
	def, ok := StepRegistry[stepName]
	if !ok {
		return fmt.Errorf("unknown step: %s", stepName)
	}

	var missing []string
	for _, dep := range def.Dependencies {
		if !completed[dep] {
			missing = append(missing, dep)
		}
	}

	if len(missing) > 0 {
		return &DependencyError{
			Step:                stepName,
			MissingDependencies: missing,
		}
	}
	return nil
}

// Tracker records completed stages of one run and enforces stage ordering
type Tracker struct {
	completed map[string]bool
}

// NewTracker creates an empty tracker
func NewTracker() *Tracker {
	return &Tracker{completed: make(map[string]bool)}
}

// Begin returns a *DependencyError when stepName cannot run yet
func (t *Tracker) Begin(stepName string) error {
	return ValidateDependencies(t.completed, stepName)
}

// Complete marks a stage done
func (t *Tracker) Complete(stepName string) {
	t.completed[stepName] = true
}

// Completed reports whether a stage is done
func (t *Tracker) Completed(stepName string) bool {
	return t.completed[stepName]
}
