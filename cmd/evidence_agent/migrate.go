package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the evidence chunk schema",
	Long: "Creates the vector extension, the evidence_chunks table and its indexes in Postgres, " +
		"or the chunk collection in Qdrant. Safe to run repeatedly.",
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().Int("embedding-dims", 0, "Embedding width of the vector column (0 keeps the configured value)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	ctx := cmd.Context()

	switch a.cfg.VectorStore {
	case "postgres":
		database, err := a.openPostgres(ctx)
		if err != nil {
			return err
		}
		if err := database.Migrate(ctx, a.cfg.EmbeddingDims); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		_, _ = fmt.Fprintf(a.out, "Migrated evidence_chunks (vector(%d))\n", a.cfg.EmbeddingDims)
	case "qdrant":
		// NewQdrant creates the collection when it is missing
		if err := a.openStores(ctx); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(a.out, "Qdrant collection %s ready\n", a.cfg.QdrantCollection)
	default:
		return fmt.Errorf("nothing to migrate for the %s vector store", a.cfg.VectorStore)
	}
	return nil
}
