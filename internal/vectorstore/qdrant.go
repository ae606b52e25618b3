// Package vectorstore adapts Qdrant as the dense index for evidence chunks.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/jonathan/resume-evidence/internal/parsing"
	"github.com/jonathan/resume-evidence/internal/types"
)

// Payload keys
const (
	fieldChunkID  = "chunk_id"
	fieldRecordID = "source_record_id"
	fieldKind     = "kind"
	fieldText     = "text"
	fieldTokens   = "tokens"
	fieldMeta     = "meta"
	fieldSkills   = "skill_keys"
	fieldDomains  = "domain_keys"
)

const (
	defaultPort      = 6334
	upsertBatchSize  = 100
	scrollPageLimit  = 256
	defaultDistance  = qdrant.Distance_Cosine
	pointIDNamespace = "evidence-chunk"
)

// pointsClient is the subset of *qdrant.Client the store uses
type pointsClient interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Scroll(ctx context.Context, request *qdrant.ScrollPoints) ([]*qdrant.RetrievedPoint, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Close() error
}

// Config configures a Qdrant store
type Config struct {
	Host       string // host or host:port
	Port       int
	APIKey     string
	Collection string
	VectorSize int
}

// Qdrant stores chunk embeddings with their metadata as payload. Retired chunks are
// deleted from the collection; upserting them again reactivates them.
type Qdrant struct {
	client     pointsClient
	collection string
	vectorSize int
}

// NewQdrant connects to Qdrant and creates the collection if it does not exist
func NewQdrant(ctx context.Context, cfg Config) (*Qdrant, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("qdrant vector size must be positive, got %d", cfg.VectorSize)
	}
	host, port := splitHostPort(cfg.Host, cfg.Port)

	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port, APIKey: cfg.APIKey})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	store := newQdrant(client, cfg.Collection, cfg.VectorSize)
	if err := store.ensureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	return store, nil
}

func newQdrant(client pointsClient, collection string, vectorSize int) *Qdrant {
	return &Qdrant{client: client, collection: collection, vectorSize: vectorSize}
}

func (q *Qdrant) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", q.collection, err)
	}
	if exists {
		return nil
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.vectorSize),
			Distance: defaultDistance,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", q.collection, err)
	}
	return nil
}

// UpsertChunks writes chunks with embeddings in batches. Chunks without an embedding are skipped.
func (q *Qdrant) UpsertChunks(ctx context.Context, chunks []types.EvidenceChunk) error {
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, ch := range chunks {
		if len(ch.Embedding) == 0 {
			continue
		}
		if len(ch.Embedding) != q.vectorSize {
			return fmt.Errorf("chunk %s has %d dimensions, collection expects %d", ch.ID, len(ch.Embedding), q.vectorSize)
		}
		payload, err := Payload(ch)
		if err != nil {
			return err
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(PointID(ch.ID)),
			Vectors: qdrant.NewVectors(ch.Embedding...),
			Payload: payload,
		})
	}

	for i := 0; i < len(points); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(points))
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points[i:end],
		})
		if err != nil {
			return fmt.Errorf("failed to upsert points %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// RetireChunks removes chunks from the collection
func (q *Qdrant) RetireChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, len(ids))
	for i, id := range ids {
		pointIDs[i] = qdrant.NewID(PointID(id))
	}
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Points{
				Points: &qdrant.PointsIdsList{Ids: pointIDs},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

// ActiveChunkIDs returns the IDs of stored chunks compiled from recordID, sorted
func (q *Qdrant) ActiveChunkIDs(ctx context.Context, recordID string) ([]string, error) {
	limit := uint32(scrollPageLimit)
	var ids []string
	seen := make(map[string]bool)
	var offset *qdrant.PointId
	for {
		points, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Filter:         &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(fieldRecordID, recordID)}},
			Limit:          &limit,
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scroll points: %w", err)
		}
		added := 0
		for _, p := range points {
			id := p.GetPayload()[fieldChunkID].GetStringValue()
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
				added++
			}
		}
		// the offset point is returned again at the head of the next page
		if len(points) < scrollPageLimit || added == 0 {
			break
		}
		offset = points[len(points)-1].GetId()
	}
	sort.Strings(ids)
	return ids, nil
}

// SearchVector implements dense search. Scores are cosine similarity.
func (q *Qdrant) SearchVector(ctx context.Context, vector []float32, topK int, filter types.SearchFilter) ([]types.SearchHit, error) {
	if topK <= 0 || len(vector) == 0 {
		return nil, nil
	}
	limit := uint64(topK)
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         Filter(filter),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search vectors: %w", err)
	}

	hits := make([]types.SearchHit, 0, len(results))
	for _, point := range results {
		ch, err := ChunkFromPayload(point.GetPayload())
		if err != nil {
			return nil, err
		}
		hits = append(hits, types.SearchHit{Chunk: ch, Score: float64(point.GetScore())})
	}
	return hits, nil
}

// Close closes the client connection
func (q *Qdrant) Close() error {
	return q.client.Close()
}

// PointID maps a chunk ID onto a Qdrant point ID. UUID chunk IDs are used as is.
func PointID(chunkID string) string {
	if id, err := uuid.Parse(chunkID); err == nil {
		return id.String()
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(pointIDNamespace+":"+chunkID)).String()
}

// Payload renders a chunk as a Qdrant payload. Metadata is kept whole as JSON and
// the filterable fields are duplicated as keywords.
func Payload(ch types.EvidenceChunk) (map[string]*qdrant.Value, error) {
	meta, err := json.Marshal(ch.Meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chunk %s meta: %w", ch.ID, err)
	}
	return map[string]*qdrant.Value{
		fieldChunkID:  qdrant.NewValueString(ch.ID),
		fieldRecordID: qdrant.NewValueString(ch.Meta.SourceRecordID),
		fieldKind:     qdrant.NewValueString(string(ch.Meta.Kind)),
		fieldText:     qdrant.NewValueString(ch.Text),
		fieldTokens:   qdrant.NewValueInt(int64(ch.Tokens)),
		fieldMeta:     qdrant.NewValueString(string(meta)),
		fieldSkills:   stringList(skillKeys(ch.Meta.Skills)),
		fieldDomains:  stringList(lowerAll(ch.Meta.Domains)),
	}, nil
}

// ChunkFromPayload restores a chunk from its payload. The embedding is not restored.
func ChunkFromPayload(payload map[string]*qdrant.Value) (types.EvidenceChunk, error) {
	ch := types.EvidenceChunk{
		ID:     payload[fieldChunkID].GetStringValue(),
		Text:   payload[fieldText].GetStringValue(),
		Tokens: int(payload[fieldTokens].GetIntegerValue()),
	}
	if ch.ID == "" {
		return ch, fmt.Errorf("qdrant point has no %s payload", fieldChunkID)
	}
	if raw := payload[fieldMeta].GetStringValue(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &ch.Meta); err != nil {
			return ch, fmt.Errorf("failed to decode chunk %s meta: %w", ch.ID, err)
		}
	}
	return ch, nil
}

// Filter translates a search filter into Qdrant conditions. An empty filter returns nil.
func Filter(f types.SearchFilter) *qdrant.Filter {
	if f.IsEmpty() {
		return nil
	}
	var must []*qdrant.Condition
	if len(f.SourceRecordIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords(fieldRecordID, f.SourceRecordIDs...))
	}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		must = append(must, qdrant.NewMatchKeywords(fieldKind, kinds...))
	}
	if len(f.Domains) > 0 {
		must = append(must, qdrant.NewMatchKeywords(fieldDomains, lowerAll(f.Domains)...))
	}
	if len(f.Skills) > 0 {
		must = append(must, qdrant.NewMatchKeywords(fieldSkills, skillKeys(f.Skills)...))
	}
	return &qdrant.Filter{Must: must}
}

func stringList(items []string) *qdrant.Value {
	values := make([]*qdrant.Value, len(items))
	for i, s := range items {
		values[i] = qdrant.NewValueString(s)
	}
	return &qdrant.Value{Kind: &qdrant.Value_ListValue{ListValue: &qdrant.ListValue{Values: values}}}
}

func skillKeys(skills []string) []string {
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

// splitHostPort accepts "host", "host:port" or an explicit port
func splitHostPort(addr string, port int) (string, int) {
	if addr == "" {
		addr = "localhost"
	}
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	} else if p, err := strconv.Atoi(portStr); err == nil && port == 0 {
		port = p
	}
	if port <= 0 {
		port = defaultPort
	}
	return host, port
}
