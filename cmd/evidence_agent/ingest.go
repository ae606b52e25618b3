package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/resume-evidence/internal/experience"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Compile, embed and store evidence chunks",
	Long: "Compiles a record bank, embeds new chunks and upserts them into the configured store. " +
		"Chunks a changed record no longer produces are retired, never edited.",
	RunE: runIngest,
}

var (
	ingestRecords     string
	ingestOut         string
	ingestMetricsFile string
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestRecords, "records", "r", "", "Path to the record bank JSON (required)")
	ingestCmd.Flags().StringVarP(&ingestOut, "out", "o", "", "Write the ingestion report to this file")
	ingestCmd.Flags().StringVar(&ingestMetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")
	ingestCmd.Flags().Int("embedding-dims", 0, "Embedding width (0 keeps the configured value)")

	if err := ingestCmd.MarkFlagRequired("records"); err != nil {
		panic(fmt.Sprintf("failed to mark records flag as required: %v", err))
	}

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.RequestTimeout())
	defer cancel()

	bank, err := experience.LoadRecords(ingestRecords)
	if err != nil {
		return err
	}
	if err := a.openStores(ctx); err != nil {
		return err
	}
	if !a.persistent() {
		a.logger.Warn("memory vector store selected: ingested chunks are discarded on exit")
	}

	report, err := a.ingestor().Ingest(ctx, bank)
	if err != nil {
		return err
	}
	if err := a.writeMetrics(ingestMetricsFile); err != nil {
		return err
	}
	if ingestOut != "" {
		if err := writeJSON(a.out, ingestOut, report); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintf(a.out, "Ingested %d records: %d chunks (%d new, %d unchanged, %d retired) into %s store\n",
		report.Records, report.Compiled, report.Added, report.Unchanged, report.Retired, a.cfg.VectorStore)
	return nil
}
