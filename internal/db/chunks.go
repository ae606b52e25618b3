package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/resume-evidence/internal/parsing"
	"github.com/jonathan/resume-evidence/internal/types"
)

// -----------------------------------------------------------------------------
// Chunk lifecycle
// -----------------------------------------------------------------------------

// UpsertChunks stores chunks in one transaction. Chunks are immutable, so an existing ID
// keeps its content and is only reactivated if it had been retired.
func (db *DB) UpsertChunks(ctx context.Context, chunks []types.EvidenceChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && rErr != pgx.ErrTxClosed {
			_ = rErr
		}
	}()

	batch := &pgx.Batch{}
	for _, ch := range chunks {
		row, err := toRow(ch)
		if err != nil {
			return err
		}
		batch.Queue(
			`INSERT INTO evidence_chunks
			     (id, source_record_id, kind, text, tokens, meta, skill_keys, domain_keys, search_text, embedding)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector)
			 ON CONFLICT (id) DO UPDATE SET active = TRUE, retired_at = NULL`,
			row.id, row.sourceRecordID, row.kind, row.text, row.tokens, row.meta,
			row.skillKeys, row.domainKeys, row.searchText, row.embedding,
		)
	}

	results := tx.SendBatch(ctx, batch)
	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to upsert chunk %s: %w", chunks[i].ID, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to upsert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// RetireChunks marks chunks as superseded; they stop matching searches
func (db *DB) RetireChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := db.pool.Exec(ctx,
		`UPDATE evidence_chunks SET active = FALSE, retired_at = NOW()
		 WHERE id = ANY($1) AND active`,
		ids,
	)
	if err != nil {
		return fmt.Errorf("failed to retire chunks: %w", err)
	}
	return nil
}

// ActiveChunkIDs returns the IDs of active chunks compiled from recordID, sorted
func (db *DB) ActiveChunkIDs(ctx context.Context, recordID string) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id FROM evidence_chunks WHERE source_record_id = $1 AND active ORDER BY id`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return ids, nil
}

// GetChunks loads chunks by ID, skipping unknown IDs. Embeddings are not loaded.
func (db *DB) GetChunks(ctx context.Context, ids []string) ([]types.EvidenceChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, text, tokens, meta FROM evidence_chunks WHERE id = ANY($1) ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	defer rows.Close()

	var chunks []types.EvidenceChunk
	for rows.Next() {
		ch, err := scanChunk(rows, nil)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// -----------------------------------------------------------------------------
// Search
// -----------------------------------------------------------------------------

// SearchVector implements dense search with pgvector cosine distance. Scores are cosine similarity,
// and rows under the minimum similarity are dropped.
func (db *DB) SearchVector(ctx context.Context, vector []float32, topK int, filter types.SearchFilter) ([]types.SearchHit, error) {
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}
	where, args := filterClause(filter, 2)
	if db.minSimilarity > 0 {
		where += fmt.Sprintf(" AND 1 - (embedding <=> $1::vector) >= $%d", len(args)+2)
		args = append(args, db.minSimilarity)
	}
	query := fmt.Sprintf(
		`SELECT id, text, tokens, meta, 1 - (embedding <=> $1::vector) AS score
		 FROM evidence_chunks
		 WHERE active AND embedding IS NOT NULL%s
		 ORDER BY embedding <=> $1::vector
		 LIMIT %d`, where, topK)

	rows, err := db.pool.Query(ctx, query, append([]any{VectorLiteral(vector)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}
	return collectHits(rows)
}

// SearchText implements lexical search with ts_rank_cd over the english tsvector of chunk
// text and skill tags
func (db *DB) SearchText(ctx context.Context, query string, topK int, filter types.SearchFilter) ([]types.SearchHit, error) {
	if topK <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	where, args := filterClause(filter, 2)
	sql := fmt.Sprintf(
		`SELECT id, text, tokens, meta, ts_rank_cd(tsv, q) AS score
		 FROM evidence_chunks, websearch_to_tsquery('english', $1) q
		 WHERE active AND tsv @@ q%s
		 ORDER BY score DESC, id
		 LIMIT %d`, where, topK)

	rows, err := db.pool.Query(ctx, sql, append([]any{LexicalQuery(query)}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to search text: %w", err)
	}
	return collectHits(rows)
}

func collectHits(rows pgx.Rows) ([]types.SearchHit, error) {
	defer rows.Close()

	var hits []types.SearchHit
	for rows.Next() {
		var score float64
		ch, err := scanChunk(rows, &score)
		if err != nil {
			return nil, err
		}
		hits = append(hits, types.SearchHit{Chunk: ch, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}
	return hits, nil
}

func scanChunk(rows pgx.Rows, score *float64) (types.EvidenceChunk, error) {
	var ch types.EvidenceChunk
	var meta []byte
	dest := []any{&ch.ID, &ch.Text, &ch.Tokens, &meta}
	if score != nil {
		dest = append(dest, score)
	}
	if err := rows.Scan(dest...); err != nil {
		return ch, fmt.Errorf("failed to scan chunk: %w", err)
	}
	if err := json.Unmarshal(meta, &ch.Meta); err != nil {
		return ch, fmt.Errorf("failed to decode chunk %s meta: %w", ch.ID, err)
	}
	return ch, nil
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

type chunkRow struct {
	id             string
	sourceRecordID string
	kind           string
	text           string
	tokens         int
	meta           []byte
	skillKeys      []string
	domainKeys     []string
	searchText     string
	embedding      *string
}

func toRow(ch types.EvidenceChunk) (chunkRow, error) {
	meta, err := json.Marshal(ch.Meta)
	if err != nil {
		return chunkRow{}, fmt.Errorf("failed to marshal chunk %s meta: %w", ch.ID, err)
	}
	row := chunkRow{
		id:             ch.ID,
		sourceRecordID: ch.Meta.SourceRecordID,
		kind:           string(ch.Meta.Kind),
		text:           ch.Text,
		tokens:         ch.Tokens,
		meta:           meta,
		skillKeys:      SkillKeys(ch.Meta.Skills),
		domainKeys:     lowerAll(ch.Meta.Domains),
		searchText:     SearchText(ch),
	}
	if len(ch.Embedding) > 0 {
		v := VectorLiteral(ch.Embedding)
		row.embedding = &v
	}
	return row, nil
}

// VectorLiteral renders a vector in pgvector's text input format, e.g. [0.1,0.2]
func VectorLiteral(v []float32) string {
	var sb strings.Builder
	sb.Grow(len(v) * 8)
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

// SearchText is the document indexed for lexical search: chunk text plus skill tags
func SearchText(ch types.EvidenceChunk) string {
	if len(ch.Meta.Skills) == 0 {
		return ch.Text
	}
	return ch.Text + " " + strings.Join(ch.Meta.Skills, " ")
}

// LexicalQuery turns a free-text query into an OR of its terms for websearch_to_tsquery,
// so a chunk matching any term is a candidate and ts_rank_cd orders by how many match
func LexicalQuery(query string) string {
	terms := parsing.Terms(query)
	seen := make(map[string]bool, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return strings.Join(out, " or ")
}

// SkillKeys canonicalizes skill tags for case-insensitive alias-aware filtering
func SkillKeys(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if k := strings.ToLower(parsing.NormalizeSkillName(s)); k != "" {
			out = append(out, k)
		}
	}
	return out
}

func lowerAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// filterClause renders the non-empty filter fields as AND conditions whose placeholders
// start at $next
func filterClause(f types.SearchFilter, next int) (string, []any) {
	var sb strings.Builder
	var args []any
	add := func(cond string, arg any) {
		sb.WriteString(" AND ")
		sb.WriteString(strings.ReplaceAll(cond, "$?", "$"+strconv.Itoa(next)))
		args = append(args, arg)
		next++
	}

	if len(f.SourceRecordIDs) > 0 {
		add("source_record_id = ANY($?)", f.SourceRecordIDs)
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		add("kind = ANY($?)", kinds)
	}
	if len(f.Domains) > 0 {
		add("domain_keys && $?", lowerAll(f.Domains))
	}
	if len(f.Skills) > 0 {
		add("skill_keys && $?", SkillKeys(f.Skills))
	}
	return sb.String(), args
}
