package assembly

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/jonathan/resume-evidence/internal/llm"
	"github.com/jonathan/resume-evidence/internal/types"
)

// Options configures generation
type Options struct {
	MaxCompletionTokens int
	Temperature         float32
	Tier                llm.ModelTier
	Layout              string // layout instructions; empty means DefaultLayout
	RequireAllMustHaves bool
}

// Assembler renders the final prompt, calls the generation backend once and reports coverage
type Assembler struct {
	client llm.Client
	opts   Options
	logger *zap.Logger
}

// NewAssembler creates an assembler
func NewAssembler(client llm.Client, opts Options, logger *zap.Logger) *Assembler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Tier == "" {
		opts.Tier = llm.TierStandard
	}
	return &Assembler{client: client, opts: opts, logger: logger}
}

// Assemble generates the final text from retained evidence.
//
// Coverage is checked before the backend is called: with RequireAllMustHaves set, an unmet
// must-have returns a *MustHaveCoverageError and no generation happens. Backend failures
// are returned as *GenerationError.
func (a *Assembler) Assemble(ctx context.Context, reqs *types.RequirementSet, summary string, retained []types.CompressedEvidence) (*types.GenerationResult, error) {
	report := BuildCoverageReport(reqs, retained)
	if missing := types.Missing(report); len(missing) > 0 {
		if a.opts.RequireAllMustHaves {
			return nil, &MustHaveCoverageError{Missing: missing}
		}
		a.logger.Warn("must-have requirements without evidence", zap.Strings("missing", missing))
	}

	prompt, err := BuildPrompt(reqs, summary, retained, a.opts.Layout)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	if a.client == nil {
		return nil, &GenerationError{Message: "no generation backend configured"}
	}
	completion, err := a.client.Complete(ctx, llm.CompletionRequest{
		System:      prompt.System,
		User:        prompt.User,
		MaxTokens:   a.opts.MaxCompletionTokens,
		Temperature: a.opts.Temperature,
		Tier:        a.opts.Tier,
	})
	if err != nil {
		return nil, &GenerationError{Message: "completion failed", Cause: err}
	}

	result := &types.GenerationResult{
		ResumeMarkdown: completion.Text,
		CoverageReport: report,
		TokensUsed:     completion.Usage,
		Model:          completion.Model,
	}

	if unsupported := UnsupportedMetrics(completion.Text, retained); len(unsupported) > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("figures not found in evidence: %v", unsupported))
		a.logger.Warn("generated text contains figures absent from evidence", zap.Strings("metrics", unsupported))
	}

	a.logger.Debug("assembled output",
		zap.Int("prompt_tokens", completion.Usage.Prompt),
		zap.Int("completion_tokens", completion.Usage.Completion),
		zap.Int("evidence_items", len(retained)))
	return result, nil
}
