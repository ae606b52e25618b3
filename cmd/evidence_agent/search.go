package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-evidence/internal/pipeline"
	"github.com/jonathan/resume-evidence/internal/ranking"
	"github.com/jonathan/resume-evidence/internal/retrieval"
	"github.com/jonathan/resume-evidence/internal/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run hybrid retrieval and reranking for a requirement set",
	Long: "Builds a hybrid query from a requirement set, searches the dense and lexical paths concurrently, " +
		"fuses and reranks the results and prints them as JSON.",
	RunE: runSearch,
}

var (
	searchRequirements string
	searchRecords      string
	searchOut          string
	searchFilter       filterFlags
)

func init() {
	searchCmd.Flags().StringVarP(&searchRequirements, "requirements", "q", "", "Path to the requirement set JSON (required)")
	searchCmd.Flags().StringVarP(&searchRecords, "records", "r", "", "Ingest this record bank before searching")
	searchCmd.Flags().StringVarP(&searchOut, "out", "o", "", "Write results to this file instead of stdout")
	searchFilter.register(searchCmd.Flags())
	addBudgetFlags(searchCmd.Flags())

	if err := searchCmd.MarkFlagRequired("requirements"); err != nil {
		panic(fmt.Sprintf("failed to mark requirements flag as required: %v", err))
	}

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RequestTimeout())
	defer cancel()

	reqs, err := pipeline.LoadRequirements(searchRequirements)
	if err != nil {
		return err
	}
	if err := prepareStores(ctx, a, searchRecords); err != nil {
		return err
	}

	client, err := a.rerankClient(ctx)
	if err != nil {
		return err
	}
	rr, err := a.reranker(client)
	if err != nil {
		return err
	}

	query := retrieval.BuildQuery(reqs, retrieval.NewQueryExpander(0), a.cfg.TopKDense, a.cfg.TopKLexical, searchFilter.filter())
	items, err := a.engine().Search(ctx, query)
	if err != nil {
		return err
	}
	items = ranking.Apply(ctx, rr, query.Text, items, a.cfg.RerankCandidates, a.cfg.KeepAfterRerank, a.logger.Named("rerank"))

	if a.printer != nil {
		a.printer.PrintRequirements(reqs)
		a.printer.PrintRetrieval(items)
	}
	if err := writeJSON(a.out, searchOut, searchOutput{Query: query, Items: items}); err != nil {
		return err
	}
	return nil
}

// searchOutput is the JSON document written by search
type searchOutput struct {
	Query retrieval.Query       `json:"query"`
	Items []types.RetrievedItem `json:"items"`
}
