package retrieval

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/resume-evidence/internal/embedding"
	"github.com/jonathan/resume-evidence/internal/types"
)

// DenseIndex searches chunks by embedding similarity
type DenseIndex interface {
	SearchVector(ctx context.Context, vector []float32, topK int, filter types.SearchFilter) ([]types.SearchHit, error)
}

// LexicalIndex searches chunks by keyword relevance
type LexicalIndex interface {
	SearchText(ctx context.Context, query string, topK int, filter types.SearchFilter) ([]types.SearchHit, error)
}

// Options configures an Engine
type Options struct {
	MixWeight         float64       // weight of the dense score in [0,1]
	MinRelevanceScore float64       // fused scores below this are dropped
	Timeout           time.Duration // per-request retrieval deadline; zero disables it
}

// DefaultOptions biases fusion toward the dense path
func DefaultOptions() Options {
	return Options{MixWeight: 0.7}
}

// Query is one hybrid search request
type Query struct {
	Text        string   // lexical query
	DenseText   string   // text to embed; Text when empty
	Skills      []string // tag matches break score ties
	TopKDense   int
	TopKLexical int
	Filter      types.SearchFilter
}

// Engine runs hybrid retrieval
type Engine struct {
	embedder embedding.Embedder
	dense    DenseIndex
	lexical  LexicalIndex
	opts     Options
	logger   *zap.Logger
}

// NewEngine creates an engine. Either path may be nil; a nil path counts as failed on every search.
func NewEngine(embedder embedding.Embedder, dense DenseIndex, lexical LexicalIndex, opts Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MixWeight < 0 || opts.MixWeight > 1 {
		opts.MixWeight = DefaultOptions().MixWeight
	}
	return &Engine{embedder: embedder, dense: dense, lexical: lexical, opts: opts, logger: logger}
}

type pathResult struct {
	hits []types.SearchHit
	err  error
}

// Result is the fused outcome of one search. Degraded is set when a configured path failed or
// the retrieval deadline cut a path short, so the items may be incomplete.
type Result struct {
	Items    []types.RetrievedItem
	Degraded bool
}

// Search is Retrieve without the degradation flag
func (e *Engine) Search(ctx context.Context, q Query) ([]types.RetrievedItem, error) {
	res, err := e.Retrieve(ctx, q)
	return res.Items, err
}

// Retrieve runs both retrieval paths concurrently and fuses their results.
// A failed or empty path degrades to single-path ranking. When the retrieval deadline
// passes, whichever path already finished is used. When nothing survives fusion and the
// relevance floor, Retrieve returns a *RetrievalError.
func (e *Engine) Retrieve(ctx context.Context, q Query) (Result, error) {
	searchCtx := ctx
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	denseCh := make(chan pathResult, 1)
	lexicalCh := make(chan pathResult, 1)
	go func() { denseCh <- e.searchDense(searchCtx, q) }()
	go func() { lexicalCh <- e.searchLexical(searchCtx, q) }()

	var dense, lexical *pathResult
	timedOut := false
	for dense == nil || lexical == nil {
		select {
		case r := <-denseCh:
			dense = &r
		case r := <-lexicalCh:
			lexical = &r
		case <-searchCtx.Done():
			timedOut = true
			dense = collect(dense, denseCh, searchCtx.Err())
			lexical = collect(lexical, lexicalCh, searchCtx.Err())
			e.logger.Warn("retrieval deadline reached, using completed paths",
				zap.Bool("dense_done", dense.err != searchCtx.Err()),
				zap.Bool("lexical_done", lexical.err != searchCtx.Err()))
		}
	}

	if dense.err != nil {
		e.logger.Warn("dense retrieval failed", zap.Error(dense.err))
	}
	if lexical.err != nil {
		e.logger.Warn("lexical retrieval failed", zap.Error(lexical.err))
	}
	if len(dense.hits) == 0 && len(lexical.hits) == 0 {
		return Result{}, &RetrievalError{DenseErr: dense.err, LexicalErr: lexical.err}
	}

	items := Fuse(dense.hits, lexical.hits, e.opts.MixWeight, q.Skills)
	items = filterByScore(items, e.opts.MinRelevanceScore)
	if len(items) == 0 {
		e.logger.Warn("no retrieved items above relevance floor",
			zap.Float64("min_relevance_score", e.opts.MinRelevanceScore))
		return Result{}, &RetrievalError{DenseErr: dense.err, LexicalErr: lexical.err}
	}

	e.logger.Debug("hybrid retrieval complete",
		zap.Int("dense_hits", len(dense.hits)),
		zap.Int("lexical_hits", len(lexical.hits)),
		zap.Int("fused", len(items)))
	return Result{Items: items, Degraded: timedOut || failed(dense.err) || failed(lexical.err)}, nil
}

// failed reports a path error other than the path being unconfigured
func failed(err error) bool {
	return err != nil && !errors.Is(err, ErrPathDisabled)
}

// collect returns r if set, otherwise a result already waiting on ch, otherwise a failure with err
func collect(r *pathResult, ch <-chan pathResult, err error) *pathResult {
	if r != nil {
		return r
	}
	select {
	case got := <-ch:
		return &got
	default:
		return &pathResult{err: err}
	}
}

func (e *Engine) searchDense(ctx context.Context, q Query) pathResult {
	if e.dense == nil || e.embedder == nil || q.TopKDense <= 0 {
		return pathResult{err: ErrPathDisabled}
	}
	text := q.DenseText
	if text == "" {
		text = q.Text
	}
	vec, err := e.embedder.Embed(ctx, text)
	if err != nil {
		return pathResult{err: err}
	}
	hits, err := e.dense.SearchVector(ctx, vec, q.TopKDense, q.Filter)
	return pathResult{hits: hits, err: err}
}

func (e *Engine) searchLexical(ctx context.Context, q Query) pathResult {
	if e.lexical == nil || q.TopKLexical <= 0 {
		return pathResult{err: ErrPathDisabled}
	}
	hits, err := e.lexical.SearchText(ctx, q.Text, q.TopKLexical, q.Filter)
	return pathResult{hits: hits, err: err}
}

func filterByScore(items []types.RetrievedItem, minScore float64) []types.RetrievedItem {
	if minScore <= 0 {
		return items
	}
	out := items[:0]
	for _, it := range items {
		if it.Score >= minScore {
			out = append(out, it)
		}
	}
	return out
}
