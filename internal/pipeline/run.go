// Package pipeline provides the high-level orchestration for evidence retrieval, budget planning and assembly.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jonathan/resume-evidence/internal/assembly"
	"github.com/jonathan/resume-evidence/internal/cache"
	"github.com/jonathan/resume-evidence/internal/compression"
	"github.com/jonathan/resume-evidence/internal/config"
	"github.com/jonathan/resume-evidence/internal/logger"
	"github.com/jonathan/resume-evidence/internal/observability"
	"github.com/jonathan/resume-evidence/internal/pipeline/steps"
	"github.com/jonathan/resume-evidence/internal/ranking"
	"github.com/jonathan/resume-evidence/internal/retrieval"
	"github.com/jonathan/resume-evidence/internal/selection"
	"github.com/jonathan/resume-evidence/internal/tokens"
	"github.com/jonathan/resume-evidence/internal/types"
)

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step      string `json:"step"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Content   any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Retriever runs hybrid search; *retrieval.Engine implements it
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) (retrieval.Result, error)
}

// Generator produces the final output from retained evidence; *assembly.Assembler implements it
type Generator interface {
	Assemble(ctx context.Context, reqs *types.RequirementSet, summary string, retained []types.CompressedEvidence) (*types.GenerationResult, error)
}

// Options holds the request-level knobs of a pipeline
type Options struct {
	TopKDense                  int
	TopKLexical                int
	RerankCandidates           int
	KeepAfterRerank            int
	DedupeThreshold            float64
	EvidenceTokenBudget        int
	RequirementSummaryMaxWords int
	ContextSafetyHeadroom      float64
	ModelContextTokens         int
	SystemPromptTokens         int    // zero measures the rendered system prompt
	LayoutTokens               int    // zero measures Layout
	Layout                     string // empty means assembly.DefaultLayout
	MinViableTokens            int
	RequestTimeout             time.Duration
	RetrievalCacheTTL          time.Duration // zero keeps the cache default
}

// OptionsFromConfig maps a loaded configuration onto pipeline options
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		TopKDense:                  cfg.TopKDense,
		TopKLexical:                cfg.TopKLexical,
		RerankCandidates:           cfg.RerankCandidates,
		KeepAfterRerank:            cfg.KeepAfterRerank,
		DedupeThreshold:            cfg.DedupeThreshold,
		EvidenceTokenBudget:        cfg.EvidenceTokenBudget,
		RequirementSummaryMaxWords: cfg.RequirementSummaryMaxWords,
		ContextSafetyHeadroom:      cfg.ContextSafetyHeadroom,
		ModelContextTokens:         cfg.ModelContextTokens,
		SystemPromptTokens:         cfg.SystemPromptTokens,
		LayoutTokens:               cfg.LayoutTokens,
		MinViableTokens:            cfg.MinViableTokens,
		RequestTimeout:             cfg.RequestTimeout(),
		RetrievalCacheTTL:          cfg.RetrievalCacheTTL(),
	}
}

// Dependencies are the collaborators injected at construction.
// Retriever and Compressor are required; everything else has a usable zero value.
type Dependencies struct {
	Retriever  Retriever
	Reranker   ranking.Reranker // nil keeps hybrid order
	Compressor *compression.Compressor
	Generator  Generator // nil limits the pipeline to Plan
	Extractor  RequirementExtractor
	Expander   *retrieval.QueryExpander
	Estimator  tokens.Estimator
	Cache      cache.Cache // nil disables caching
	Sink       observability.Sink
	Logger     *zap.Logger
	Printer    *observability.Printer // non-nil renders each stage for verbose mode
	OnProgress ProgressCallback
}

// Request is one retrieval + assembly request
type Request struct {
	RequestID    string
	Requirements *types.RequirementSet
	Filter       types.SearchFilter
}

// Result holds every intermediate artifact of a run
type Result struct {
	RequestID          string                     `json:"request_id"`
	Query              retrieval.Query            `json:"query"`
	Retrieved          []types.RetrievedItem      `json:"retrieved"`
	DuplicateIDs       []string                   `json:"duplicate_ids,omitempty"`
	Compressed         []types.CompressedEvidence `json:"-"`
	Retained           []types.CompressedEvidence `json:"retained"`
	RequirementSummary string                     `json:"requirement_summary"`
	Plan               *types.BudgetPlan          `json:"plan"`
	Coverage           []types.CoverageEntry      `json:"coverage"`
	Generation         *types.GenerationResult    `json:"generation,omitempty"`
	RetrievalCacheHit  bool                       `json:"retrieval_cache_hit"`
}

// Pipeline wires retrieval, reranking, compression, budgeting and assembly
type Pipeline struct {
	deps   Dependencies
	opts   Options
	logger *zap.Logger
	sink   observability.Sink
	group  singleflight.Group
}

// New creates a pipeline
func New(deps Dependencies, opts Options) (*Pipeline, error) {
	if deps.Retriever == nil {
		return nil, errors.New("pipeline: retriever is required")
	}
	if deps.Compressor == nil {
		return nil, errors.New("pipeline: compressor is required")
	}
	if deps.Estimator == nil {
		deps.Estimator = tokens.DefaultHeuristic
	}
	sink := deps.Sink
	if sink == nil {
		sink = observability.NopSink{}
	}
	if opts.Layout == "" {
		opts.Layout = assembly.DefaultLayout()
	}
	return &Pipeline{deps: deps, opts: opts, logger: logger.OrNop(deps.Logger), sink: sink}, nil
}

// emitProgress calls the progress callback if configured
func (p *Pipeline) emitProgress(requestID, step, message string, content any) {
	if p.deps.OnProgress == nil {
		return
	}
	p.deps.OnProgress(ProgressEvent{
		Step:      step,
		Category:  steps.StepRegistry[step].Category,
		Message:   message,
		RequestID: requestID,
		Content:   content,
	})
}

// stage runs fn as a named stage: it checks ordering, records timing and marks completion
func (p *Pipeline) stage(tr *steps.Tracker, name string, fn func() error) error {
	if err := tr.Begin(name); err != nil {
		return err
	}
	start := time.Now()
	err := fn()
	observability.RecordStage(p.sink, name, start, err)
	if err != nil {
		return err
	}
	tr.Complete(name)
	return nil
}

// Run executes the full pipeline: Plan followed by assembly.
// On planning failures the partial Result is returned alongside the error.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if p.deps.Generator == nil {
		return nil, errors.New("pipeline: no generator configured")
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	res, tr, err := p.plan(ctx, req)
	if err != nil {
		return res, err
	}

	log := logger.WithFields(p.logger, logger.RequestFields(res.RequestID, "")...)
	err = p.stage(tr, steps.StageAssemble, func() error {
		gen, err := p.deps.Generator.Assemble(ctx, req.Requirements, res.RequirementSummary, res.Retained)
		if err != nil {
			return err
		}
		res.Generation = gen
		return nil
	})
	if err != nil {
		var covErr *assembly.MustHaveCoverageError
		if errors.As(err, &covErr) {
			log.Warn("must-have coverage not met", zap.Strings("missing", covErr.Missing))
		}
		return res, fmt.Errorf("assembly failed: %w", err)
	}

	p.emitProgress(res.RequestID, steps.StageAssemble,
		fmt.Sprintf("Generated output (%d prompt / %d completion tokens)",
			res.Generation.TokensUsed.Prompt, res.Generation.TokensUsed.Completion), nil)
	log.Info("pipeline completed",
		zap.Int("retained", len(res.Retained)),
		zap.Int("prompt_tokens", res.Generation.TokensUsed.Prompt),
		zap.Int("completion_tokens", res.Generation.TokensUsed.Completion),
		zap.Strings("warnings", res.Generation.Warnings))
	return res, nil
}

// Plan runs every stage up to and including trimming, without calling the generation backend
func (p *Pipeline) Plan(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()
	res, _, err := p.plan(ctx, req)
	return res, err
}

func (p *Pipeline) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.RequestTimeout > 0 {
		return context.WithTimeout(ctx, p.opts.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (p *Pipeline) plan(ctx context.Context, req Request) (*Result, *steps.Tracker, error) {
	reqs := req.Requirements
	if reqs == nil {
		return nil, nil, errors.New("pipeline: requirement set is required")
	}
	if err := reqs.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid requirement set: %w", err)
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := logger.WithFields(p.logger, logger.RequestFields(requestID, "")...)
	res := &Result{RequestID: requestID}
	tr := steps.NewTracker()
	tr.Complete(steps.StageResolveRequirements)

	if p.deps.Printer != nil {
		p.deps.Printer.PrintRequirements(reqs)
	}

	// Retrieval
	err := p.stage(tr, steps.StageRetrieve, func() error {
		res.Query = retrieval.BuildQuery(reqs, p.deps.Expander, p.opts.TopKDense, p.opts.TopKLexical, req.Filter)
		items, hit, err := p.retrieve(ctx, res.Query)
		if err != nil {
			return err
		}
		res.Retrieved = items
		res.RetrievalCacheHit = hit
		return nil
	})
	if err != nil {
		return res, tr, fmt.Errorf("retrieval failed: %w", err)
	}
	p.emitProgress(requestID, steps.StageRetrieve,
		fmt.Sprintf("Retrieved %d evidence chunks", len(res.Retrieved)), nil)

	// Reranking never fails the request; Apply falls back to hybrid order
	_ = p.stage(tr, steps.StageRerank, func() error {
		items := ranking.Apply(ctx, p.deps.Reranker, res.Query.Text, res.Retrieved, p.opts.RerankCandidates, p.opts.KeepAfterRerank, log)
		items, res.DuplicateIDs = compression.SuppressNearDuplicates(items, p.opts.DedupeThreshold)
		res.Retrieved = items
		return nil
	})
	if len(res.DuplicateIDs) > 0 {
		log.Debug("suppressed near-duplicate evidence", zap.Strings("ids", res.DuplicateIDs))
	}
	if p.deps.Printer != nil {
		p.deps.Printer.PrintRetrieval(res.Retrieved)
	}
	p.emitProgress(requestID, steps.StageRerank,
		fmt.Sprintf("Kept %d chunks after reranking", len(res.Retrieved)), nil)

	_ = p.stage(tr, steps.StageCompress, func() error {
		res.Compressed = p.deps.Compressor.Compress(res.Retrieved, reqs)
		return nil
	})

	// Budget
	var plan *types.BudgetPlan
	err = p.stage(tr, steps.StagePlanBudget, func() error {
		var err error
		res.RequirementSummary = assembly.SummarizeRequirements(reqs, p.opts.RequirementSummaryMaxWords)
		plan, err = selection.PlanBudget(p.budgetInput(reqs, res.RequirementSummary))
		return err
	})
	res.Plan = plan
	if err != nil {
		var exceeded *selection.TokenBudgetExceededError
		if errors.As(err, &exceeded) {
			log.Warn("fixed prompt costs exceed the usable context",
				zap.Int("required", exceeded.Required),
				zap.Int("available", exceeded.Available))
			if p.deps.Printer != nil {
				p.deps.Printer.PrintBudgetPlan(plan)
			}
		}
		return res, tr, fmt.Errorf("budget planning failed: %w", err)
	}
	if plan.Allocations.Evidence < plan.RequestedEvidenceTokens {
		log.Warn("evidence budget clamped to available context",
			zap.Int("requested", plan.RequestedEvidenceTokens),
			zap.Int("allocated", plan.Allocations.Evidence))
	}

	// Trim
	err = p.stage(tr, steps.StageTrim, func() error {
		trimmed := selection.OptimizeForCoverage(res.Compressed, reqs, plan.Allocations.Evidence, p.opts.MinViableTokens)
		final, err := selection.FinalizePlan(plan, trimmed)
		if err != nil {
			return err
		}
		res.Retained = trimmed.Retained
		res.Plan = final
		return nil
	})
	if err != nil {
		return res, tr, fmt.Errorf("evidence trimming failed: %w", err)
	}

	res.Coverage = assembly.BuildCoverageReport(reqs, res.Retained)
	missing := types.Missing(res.Coverage)
	p.sink.Gauge(observability.MetricBudgetUtil, res.Plan.Utilization(), nil)
	p.sink.Gauge(observability.MetricDroppedEvidence, float64(len(res.Plan.DroppedEvidenceIDs)), nil)
	p.sink.Gauge(observability.MetricCoverageMissing, float64(len(missing)), nil)

	if p.deps.Printer != nil {
		p.deps.Printer.PrintEvidence(res.Retained)
		p.deps.Printer.PrintBudgetPlan(res.Plan)
		p.deps.Printer.PrintCoverage(res.Coverage)
	}
	p.emitProgress(requestID, steps.StageTrim,
		fmt.Sprintf("Retained %d evidence items (%d tokens), dropped %d",
			len(res.Retained), res.Plan.Allocations.Evidence, len(res.Plan.DroppedEvidenceIDs)), res.Plan)

	log.Debug("budget planned",
		zap.Int("available", res.Plan.Allocations.Available),
		zap.Int("total", res.Plan.Allocations.Total),
		zap.Int("evidence", res.Plan.Allocations.Evidence),
		zap.Strings("missing_must_haves", missing))
	return res, tr, nil
}

// retrieve runs the retriever through the cache, keyed by the query content.
// Degraded results are returned but never stored, so a recovered path is searched again.
func (p *Pipeline) retrieve(ctx context.Context, q retrieval.Query) ([]types.RetrievedItem, bool, error) {
	load := func(ctx context.Context) (retrieval.Result, error) {
		return p.deps.Retriever.Retrieve(ctx, q)
	}
	if p.deps.Cache == nil {
		res, err := load(ctx)
		return res.Items, false, err
	}
	key, err := cache.ContentKey("retrieval", q)
	if err != nil {
		res, err := load(ctx)
		return res.Items, false, err
	}
	expiry := func(res retrieval.Result) time.Duration {
		if res.Degraded {
			p.logger.Debug("not caching degraded retrieval", zap.String("key", key))
			return -1
		}
		return p.opts.RetrievalCacheTTL
	}
	res, hit, err := cache.GetOrLoadFor(ctx, p.deps.Cache, &p.group, key, load, expiry)
	return res.Items, hit, err
}

// budgetInput measures the fixed prompt costs of a request
func (p *Pipeline) budgetInput(reqs *types.RequirementSet, summary string) selection.BudgetInput {
	est := p.deps.Estimator
	system := p.opts.SystemPromptTokens
	if system <= 0 {
		system = est.Count(assembly.SystemPrompt())
	}
	layout := p.opts.LayoutTokens
	if layout <= 0 {
		layout = est.Count(p.opts.Layout)
	}
	layout += est.Count(assembly.PromptScaffold())
	return selection.BudgetInput{
		ModelContextTokens: p.opts.ModelContextTokens,
		SystemTokens:       system,
		LayoutTokens:       layout,
		RequirementTokens:  est.Count(assembly.RequirementSection(reqs, summary)),
		EvidenceTokens:     p.opts.EvidenceTokenBudget,
		HeadroomFraction:   p.opts.ContextSafetyHeadroom,
	}
}
