package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-evidence/internal/assembly"
	"github.com/jonathan/resume-evidence/internal/pipeline"
	"github.com/jonathan/resume-evidence/internal/types"
)

var assembleCmd = &cobra.Command{
	Use:   "assemble",
	Short: "Run the full pipeline and generate output from cited evidence",
	Long: "Resolves requirements (from a requirement set file or by extraction from job text), retrieves, " +
		"reranks, compresses and trims evidence to the token budget, then calls the generation backend once. " +
		"With --require-all-must-haves, an uncovered must-have fails the run before generation.",
	RunE: runAssemble,
}

var (
	assembleRequirements string
	assembleJob          string
	assembleRecords      string
	assembleOut          string
	assembleReport       string
	assembleMetricsFile  string
	assembleFilter       filterFlags
)

func init() {
	assembleCmd.Flags().StringVarP(&assembleRequirements, "requirements", "q", "", "Path to the requirement set JSON")
	assembleCmd.Flags().StringVarP(&assembleJob, "job", "j", "", "Path to job posting text; requirements are extracted from it")
	assembleCmd.Flags().StringVarP(&assembleRecords, "records", "r", "", "Ingest this record bank before assembling")
	assembleCmd.Flags().StringVarP(&assembleOut, "out", "o", "", "Write the generated markdown to this file instead of stdout")
	assembleCmd.Flags().StringVar(&assembleReport, "report", "", "Write the full run report (plan, evidence, coverage) as JSON")
	assembleCmd.Flags().StringVar(&assembleMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	assembleCmd.Flags().Int("max-completion-tokens", 0, "Completion token limit (0 keeps the configured value)")
	assembleCmd.Flags().Float64("temperature", 0, "Sampling temperature (0 keeps the configured value)")
	assembleFilter.register(assembleCmd.Flags())
	addBudgetFlags(assembleCmd.Flags())
	assembleCmd.MarkFlagsMutuallyExclusive("requirements", "job")

	rootCmd.AddCommand(assembleCmd)
}

func runAssemble(cmd *cobra.Command, _ []string) error {
	if assembleRequirements == "" && assembleJob == "" {
		return errors.New("either --requirements or --job is required")
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RequestTimeout())
	defer cancel()

	client, err := a.openLLM(ctx)
	if err != nil {
		return err
	}
	if err := prepareStores(ctx, a, assembleRecords); err != nil {
		return err
	}
	stages := 4
	if assembleJob != "" {
		stages++
	}
	p, err := a.newPipeline(ctx, client, progressPrinter(os.Stderr, stages))
	if err != nil {
		return err
	}

	reqs, err := resolveRequirements(ctx, p, assembleRequirements, assembleJob)
	if err != nil {
		return err
	}

	res, runErr := p.Run(ctx, pipeline.Request{Requirements: reqs, Filter: assembleFilter.filter()})
	if err := a.writeMetrics(assembleMetricsFile); err != nil {
		return err
	}
	if res != nil && assembleReport != "" {
		if err := writeJSON(a.out, assembleReport, res); err != nil {
			return err
		}
	}
	if runErr != nil {
		var covErr *assembly.MustHaveCoverageError
		if errors.As(runErr, &covErr) && a.printer != nil {
			a.printer.PrintCoverage(res.Coverage)
		}
		return runErr
	}

	if err := writeOutput(a, res.Generation); err != nil {
		return err
	}
	for _, w := range res.Generation.Warnings {
		_, _ = fmt.Fprintf(os.Stderr, "⚠ %s\n", w)
	}
	if missing := types.Missing(res.Generation.CoverageReport); len(missing) > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "⚠ must-haves without evidence: %v\n", missing)
	}
	return nil
}

// writeOutput writes the generated markdown to --out or stdout
func writeOutput(a *app, gen *types.GenerationResult) error {
	if assembleOut == "" {
		_, err := fmt.Fprintln(a.out, gen.ResumeMarkdown)
		return err
	}
	if err := os.WriteFile(assembleOut, []byte(gen.ResumeMarkdown), 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	_, _ = fmt.Fprintf(a.out, "Wrote %s (%d prompt / %d completion tokens)\n",
		assembleOut, gen.TokensUsed.Prompt, gen.TokensUsed.Completion)
	return nil
}
