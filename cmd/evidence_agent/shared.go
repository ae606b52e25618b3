package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/jonathan/resume-evidence/internal/experience"
	"github.com/jonathan/resume-evidence/internal/pipeline"
	"github.com/jonathan/resume-evidence/internal/types"
)

// filterFlags holds the search filter options shared by retrieval commands
type filterFlags struct {
	records []string
	kinds   []string
	domains []string
	skills  []string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringSliceVar(&f.records, "record", nil, "Restrict to chunks of these record IDs")
	fs.StringSliceVar(&f.kinds, "kind", nil, "Restrict to chunk kinds (achievement, skill, context)")
	fs.StringSliceVar(&f.domains, "domain", nil, "Restrict to chunks tagged with these domains")
	fs.StringSliceVar(&f.skills, "skill", nil, "Restrict to chunks tagged with these skills")
}

func (f *filterFlags) filter() types.SearchFilter {
	kinds := make([]types.ChunkKind, 0, len(f.kinds))
	for _, k := range f.kinds {
		kinds = append(kinds, types.ChunkKind(strings.ToLower(strings.TrimSpace(k))))
	}
	return types.SearchFilter{
		SourceRecordIDs: f.records,
		Kinds:           kinds,
		Domains:         f.domains,
		Skills:          f.skills,
	}
}

// prepareStores opens the configured stores and, when recordsPath is set, ingests the records first.
// The in-memory store starts empty, so it requires records.
func prepareStores(ctx context.Context, a *app, recordsPath string) error {
	if err := a.openStores(ctx); err != nil {
		return err
	}
	if recordsPath == "" {
		if !a.persistent() {
			return errors.New("the memory vector store starts empty: pass --records or configure postgres or qdrant")
		}
		return nil
	}

	bank, err := experience.LoadRecords(recordsPath)
	if err != nil {
		return err
	}
	report, err := a.ingestor().Ingest(ctx, bank)
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	a.logger.Debug("records ingested before query",
		zap.Int("records", report.Records),
		zap.Int("added", report.Added))
	return nil
}

// resolveRequirements reads a requirement set file, or extracts one from job text through the pipeline
func resolveRequirements(ctx context.Context, p *pipeline.Pipeline, reqPath, jobPath string) (*types.RequirementSet, error) {
	switch {
	case reqPath != "":
		return pipeline.LoadRequirements(reqPath)
	case jobPath != "":
		content, err := os.ReadFile(jobPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read job file: %w", err)
		}
		return p.ResolveRequirements(ctx, string(content))
	default:
		return nil, errors.New("either --requirements or --job is required")
	}
}

// progressPrinter returns a callback that numbers pipeline stages on w
func progressPrinter(w io.Writer, total int) pipeline.ProgressCallback {
	step := 0
	return func(e pipeline.ProgressEvent) {
		step++
		_, _ = fmt.Fprintf(w, "Step %d/%d: %s\n", step, total, e.Message)
	}
}

// writeJSON writes v as indented JSON to path, or to w when path is empty
func writeJSON(w io.Writer, path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	if path == "" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
