package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/resume-evidence/internal/embedding"
	"github.com/jonathan/resume-evidence/internal/experience"
	"github.com/jonathan/resume-evidence/internal/logger"
	"github.com/jonathan/resume-evidence/internal/observability"
	"github.com/jonathan/resume-evidence/internal/pipeline/steps"
	"github.com/jonathan/resume-evidence/internal/types"
)

// ChunkStore persists evidence chunks.
// retrieval.MemoryIndex, db.DB and vectorstore.Qdrant implement it.
type ChunkStore interface {
	UpsertChunks(ctx context.Context, chunks []types.EvidenceChunk) error
	RetireChunks(ctx context.Context, ids []string) error
	ActiveChunkIDs(ctx context.Context, recordID string) ([]string, error)
}

// IngestOptions tunes ingestion concurrency
type IngestOptions struct {
	EmbedBatchSize   int // texts per embedding call
	EmbedConcurrency int // embedding calls in flight
	RecordLookups    int // stored-ID lookups in flight
}

// IngestReport summarizes one ingestion
type IngestReport struct {
	Records    int      `json:"records"`
	Compiled   int      `json:"compiled"`
	Added      int      `json:"added"`
	Unchanged  int      `json:"unchanged"`
	Retired    int      `json:"retired"`
	AddedIDs   []string `json:"added_ids,omitempty"`
	RetiredIDs []string `json:"retired_ids,omitempty"`
}

// Ingestor compiles records into chunks and keeps one or more stores in sync with them.
// Each store is diffed against the compiled chunks on its own, so a store that missed an
// earlier ingestion is backfilled.
type Ingestor struct {
	compiler *experience.Compiler
	embedder embedding.Embedder
	stores   []ChunkStore
	opts     IngestOptions
	logger   *zap.Logger
	sink     observability.Sink
}

// NewIngestor creates an ingestor. A nil embedder stores chunks without vectors.
func NewIngestor(compiler *experience.Compiler, embedder embedding.Embedder, opts IngestOptions, log *zap.Logger, sink observability.Sink, stores ...ChunkStore) *Ingestor {
	if opts.RecordLookups <= 0 {
		opts.RecordLookups = 4
	}
	if sink == nil {
		sink = observability.NopSink{}
	}
	return &Ingestor{
		compiler: compiler,
		embedder: embedder,
		stores:   stores,
		opts:     opts,
		logger:   logger.OrNop(log),
		sink:     sink,
	}
}

// storeDelta is the change set of one record in one store
type storeDelta struct {
	retire []string
	added  []types.EvidenceChunk
}

// recordDelta is the change set of one record, per store
type recordDelta struct {
	compiled int
	stores   []storeDelta
}

// Ingest compiles every record of the bank, embeds new chunks, upserts them into every store and
// retires the chunks each record no longer produces. Existing chunks are never modified.
// The report counts distinct chunk IDs added to or retired from any store.
func (in *Ingestor) Ingest(ctx context.Context, bank *types.RecordBank) (*IngestReport, error) {
	if len(in.stores) == 0 {
		return nil, errors.New("ingest: no chunk store configured")
	}
	if bank == nil {
		return nil, errors.New("ingest: record bank is nil")
	}
	if err := experience.ValidateBank(bank); err != nil {
		return nil, err
	}

	tr := steps.NewTracker()
	run := func(name string, fn func() error) error {
		if err := tr.Begin(name); err != nil {
			return err
		}
		start := time.Now()
		err := fn()
		observability.RecordStage(in.sink, name, start, err)
		if err == nil {
			tr.Complete(name)
		}
		return err
	}

	deltas := make([]recordDelta, len(bank.Records))
	err := run(steps.StageCompile, func() error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(in.opts.RecordLookups)
		for i, rec := range bank.Records {
			g.Go(func() error {
				compiled := in.compiler.Compile(rec)
				d := recordDelta{compiled: len(compiled), stores: make([]storeDelta, len(in.stores))}
				for j, s := range in.stores {
					stored, err := s.ActiveChunkIDs(gctx, rec.ID)
					if err != nil {
						return fmt.Errorf("failed to list chunks of record %s: %w", rec.ID, err)
					}
					d.stores[j].retire, d.stores[j].added = experience.Supersede(stored, compiled)
				}
				// each goroutine writes its own slot
				deltas[i] = d
				return nil
			})
		}
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}

	perStore := make([]storeDelta, len(in.stores))
	var added []types.EvidenceChunk
	var retired []string
	seenAdded := map[string]bool{}
	seenRetired := map[string]bool{}
	report := &IngestReport{Records: len(bank.Records)}
	for _, d := range deltas {
		report.Compiled += d.compiled
		for j, sd := range d.stores {
			perStore[j].added = append(perStore[j].added, sd.added...)
			perStore[j].retire = append(perStore[j].retire, sd.retire...)
			for _, ch := range sd.added {
				if !seenAdded[ch.ID] {
					seenAdded[ch.ID] = true
					added = append(added, ch)
				}
			}
			for _, id := range sd.retire {
				if !seenRetired[id] {
					seenRetired[id] = true
					retired = append(retired, id)
				}
			}
		}
	}
	report.Added = len(added)
	report.Unchanged = report.Compiled - report.Added
	report.Retired = len(retired)
	report.AddedIDs = experience.ChunkIDs(added)
	report.RetiredIDs = retired

	if in.embedder != nil && len(added) > 0 {
		err = run(steps.StageEmbed, func() error {
			texts := make([]string, len(added))
			for i, ch := range added {
				texts[i] = ch.Text
			}
			vecs, err := embedding.EmbedAll(ctx, in.embedder, texts, in.opts.EmbedBatchSize, in.opts.EmbedConcurrency)
			if err != nil {
				return err
			}
			byID := make(map[string][]float32, len(added))
			for i, ch := range added {
				byID[ch.ID] = vecs[i]
			}
			for j := range perStore {
				for k := range perStore[j].added {
					perStore[j].added[k].Embedding = byID[perStore[j].added[k].ID]
				}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks: %w", err)
		}
	}

	err = run(steps.StageUpsert, func() error {
		return in.eachStore(ctx, func(ctx context.Context, i int, s ChunkStore) error {
			if len(perStore[i].added) == 0 {
				return nil
			}
			return s.UpsertChunks(ctx, perStore[i].added)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store chunks: %w", err)
	}

	err = run(steps.StageRetire, func() error {
		return in.eachStore(ctx, func(ctx context.Context, i int, s ChunkStore) error {
			if len(perStore[i].retire) == 0 {
				return nil
			}
			return s.RetireChunks(ctx, perStore[i].retire)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retire chunks: %w", err)
	}

	in.logger.Info("ingested records",
		zap.Int("records", report.Records),
		zap.Int("compiled", report.Compiled),
		zap.Int("added", report.Added),
		zap.Int("retired", report.Retired))
	return report, nil
}

// eachStore applies fn to every store concurrently
func (in *Ingestor) eachStore(ctx context.Context, fn func(context.Context, int, ChunkStore) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for i, s := range in.stores {
		g.Go(func() error {
			return fn(gctx, i, s)
		})
	}
	return g.Wait()
}
