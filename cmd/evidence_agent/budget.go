package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-evidence/internal/pipeline"
	"github.com/jonathan/resume-evidence/internal/selection"
	"github.com/jonathan/resume-evidence/internal/types"
)

var budgetCmd = &cobra.Command{
	Use:   "budget",
	Short: "Plan the token budget and trim evidence without generating",
	Long: "Runs retrieval, reranking, compression, budget planning and coverage-optimized trimming, " +
		"then prints the plan, the retained evidence and the must-have coverage. The generation backend is not called.",
	RunE: runBudget,
}

var (
	budgetRequirements string
	budgetRecords      string
	budgetOut          string
	budgetMetricsFile  string
	budgetFilter       filterFlags
)

func init() {
	budgetCmd.Flags().StringVarP(&budgetRequirements, "requirements", "q", "", "Path to the requirement set JSON (required)")
	budgetCmd.Flags().StringVarP(&budgetRecords, "records", "r", "", "Ingest this record bank before planning")
	budgetCmd.Flags().StringVarP(&budgetOut, "out", "o", "", "Write the plan to this file instead of stdout")
	budgetCmd.Flags().StringVar(&budgetMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	budgetFilter.register(budgetCmd.Flags())
	addBudgetFlags(budgetCmd.Flags())

	if err := budgetCmd.MarkFlagRequired("requirements"); err != nil {
		panic(fmt.Sprintf("failed to mark requirements flag as required: %v", err))
	}

	rootCmd.AddCommand(budgetCmd)
}

func runBudget(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RequestTimeout())
	defer cancel()

	reqs, err := pipeline.LoadRequirements(budgetRequirements)
	if err != nil {
		return err
	}
	if err := prepareStores(ctx, a, budgetRecords); err != nil {
		return err
	}
	client, err := a.rerankClient(ctx)
	if err != nil {
		return err
	}
	p, err := a.newPipeline(ctx, client, progressPrinter(os.Stderr, 3))
	if err != nil {
		return err
	}

	res, runErr := p.Plan(ctx, pipeline.Request{Requirements: reqs, Filter: budgetFilter.filter()})
	var exceeded *selection.TokenBudgetExceededError
	if runErr != nil && !errors.As(runErr, &exceeded) {
		return runErr
	}

	if err := a.writeMetrics(budgetMetricsFile); err != nil {
		return err
	}
	if err := writeJSON(a.out, budgetOut, planOutput(res)); err != nil {
		return err
	}
	return runErr
}

// budgetOutput is the JSON document written by budget
type budgetOutput struct {
	RequestID string                     `json:"request_id"`
	Plan      *types.BudgetPlan          `json:"plan"`
	Retained  []types.CompressedEvidence `json:"retained"`
	Coverage  []types.CoverageEntry      `json:"coverage"`
	Missing   []string                   `json:"missing_must_haves,omitempty"`
}

// planOutput trims a pipeline result down to the planning artifacts
func planOutput(res *pipeline.Result) budgetOutput {
	return budgetOutput{
		RequestID: res.RequestID,
		Plan:      res.Plan,
		Retained:  res.Retained,
		Coverage:  res.Coverage,
		Missing:   types.Missing(res.Coverage),
	}
}
