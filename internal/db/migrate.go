package db

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"
	"strings"
)

//go:embed schema.sql
var schemaSQL string

// SchemaSQL returns the DDL for an embedding width of dims
func SchemaSQL(dims int) (string, error) {
	if dims <= 0 {
		return "", fmt.Errorf("embedding dimensions must be positive, got %d", dims)
	}
	return strings.ReplaceAll(schemaSQL, "__DIMS__", strconv.Itoa(dims)), nil
}

// Migrate creates the pgvector extension, the evidence_chunks table and its indexes
func (db *DB) Migrate(ctx context.Context, dims int) error {
	ddl, err := SchemaSQL(dims)
	if err != nil {
		return err
	}
	if _, err := db.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
