package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-evidence/internal/cache"
	"github.com/jonathan/resume-evidence/internal/llm"
	"github.com/jonathan/resume-evidence/internal/observability"
	"github.com/jonathan/resume-evidence/internal/pipeline/steps"
	"github.com/jonathan/resume-evidence/internal/schemas"
	"github.com/jonathan/resume-evidence/internal/types"
)

// RequirementExtractor turns free job text into a requirement set
type RequirementExtractor interface {
	ExtractRequirements(ctx context.Context, jobText string) (*types.RequirementSet, error)
}

// LLMExtractor extracts requirements through a generation backend
type LLMExtractor struct {
	Client llm.Client
}

// ExtractRequirements implements RequirementExtractor
func (e LLMExtractor) ExtractRequirements(ctx context.Context, jobText string) (*types.RequirementSet, error) {
	return llm.ExtractRequirements(ctx, e.Client, jobText)
}

// ResolveRequirements extracts a requirement set from job text, caching the result by content hash.
// The extracted set is checked against the requirement set schema before it is returned or cached.
func (p *Pipeline) ResolveRequirements(ctx context.Context, jobText string) (*types.RequirementSet, error) {
	if p.deps.Extractor == nil {
		return nil, errors.New("pipeline: no requirement extractor configured")
	}

	start := time.Now()
	load := func(ctx context.Context) (*types.RequirementSet, error) {
		reqs, err := p.deps.Extractor.ExtractRequirements(ctx, jobText)
		if err != nil {
			return nil, err
		}
		if err := validateRequirements(reqs); err != nil {
			return nil, err
		}
		return reqs, nil
	}

	var (
		reqs *types.RequirementSet
		hit  bool
		err  error
	)
	key, keyErr := cache.ContentKey("requirements", jobText)
	if p.deps.Cache == nil || keyErr != nil {
		reqs, err = load(ctx)
	} else {
		reqs, hit, err = cache.GetOrLoad(ctx, p.deps.Cache, &p.group, key, load)
	}
	observability.RecordStage(p.sink, steps.StageResolveRequirements, start, err)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve requirements: %w", err)
	}

	p.logger.Debug("requirements resolved",
		zap.String("role", reqs.RoleTitle),
		zap.Int("must_haves", len(reqs.MustHaves)),
		zap.Bool("cache_hit", hit))
	p.emitProgress("", steps.StageResolveRequirements,
		fmt.Sprintf("Resolved requirements for %s (%d must-haves)", reqs.RoleTitle, len(reqs.MustHaves)), reqs)
	return reqs, nil
}

// LoadRequirements reads a requirement set from a JSON file
func LoadRequirements(path string) (*types.RequirementSet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read requirement set %s: %w", path, err)
	}
	return ParseRequirements(content)
}

// ParseRequirements validates and decodes a requirement set document
func ParseRequirements(content []byte) (*types.RequirementSet, error) {
	if err := schemas.Validate(schemas.RequirementSet, content); err != nil {
		return nil, err
	}
	var reqs types.RequirementSet
	if err := json.Unmarshal(content, &reqs); err != nil {
		return nil, fmt.Errorf("failed to parse requirement set: %w", err)
	}
	if err := reqs.Validate(); err != nil {
		return nil, fmt.Errorf("invalid requirement set: %w", err)
	}
	return &reqs, nil
}

func validateRequirements(reqs *types.RequirementSet) error {
	data, err := json.Marshal(reqs)
	if err != nil {
		return fmt.Errorf("failed to encode requirement set: %w", err)
	}
	return schemas.Validate(schemas.RequirementSet, data)
}
