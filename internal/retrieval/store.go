package retrieval

import (
	"container/heap"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cngjsskaisme/folio/internal/query"
)

// Compile-time check that SQLiteStore implements VectorStore.
var _ VectorStore = (*SQLiteStore)(nil)

// SQLiteStore provides vector storage and brute-force cosine similarity search
// backed by SQLite. Filters are evaluated in Go during the scan.
//
// The vector_collections and vectors tables must already exist (created via
// storage migrations).
type SQLiteStore struct {
	db *sql.DB

	mu    sync.RWMutex
	embed map[string]*Embedder
}

// NewSQLiteStore wraps an existing *sql.DB for vector operations.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, embed: make(map[string]*Embedder)}
}

func (s *SQLiteStore) GetOrCreateCollection(ctx context.Context, name string, embed EmbeddingFunc) error {
	if name == "" {
		return fmt.Errorf("collection name is empty")
	}
	if embed == nil {
		return fmt.Errorf("collection %s: embedding function is nil", name)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO vector_collections (name, created_at) VALUES (?, ?)`,
		name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}

	s.mu.Lock()
	s.embed[name] = NewEmbedder(embed)
	s.mu.Unlock()
	return nil
}

// embedder returns the collection's Embedder, or ErrCollectionNotFound when
// the collection does not exist or was not opened in this process.
func (s *SQLiteStore) embedder(ctx context.Context, name string) (*Embedder, error) {
	s.mu.RLock()
	e, ok := s.embed[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vector_collections WHERE name = ?`, name).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("looking up collection %s: %w", name, err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	return e, nil
}

// Add embeds documents lacking an embedding and upserts them.
func (s *SQLiteStore) Add(ctx context.Context, name string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	e, err := s.embedder(ctx, name)
	if err != nil {
		return err
	}

	var missing []int
	var texts []string
	for i, d := range docs {
		if len(d.Embedding) == 0 {
			missing = append(missing, i)
			texts = append(texts, d.Content)
		}
	}
	vecs, err := e.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	for j, i := range missing {
		docs[i].Embedding = vecs[j]
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning insert transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO vectors (id, collection, content, metadata, embedding, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, d := range docs {
		meta, err := json.Marshal(d.Metadata)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encoding metadata for %s: %w", d.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, d.ID, name, d.Content, string(meta), encodeFloat32s(d.Embedding), now); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting document %s: %w", d.ID, err)
		}
	}

	return tx.Commit()
}

// scored is a candidate row held in the top-K heap during a scan.
type scored struct {
	ID       string
	Score    float32
	Metadata map[string]string
	Content  string
}

// Query embeds each query text and scans the collection, keeping the top
// nResults matches by cosine similarity.
func (s *SQLiteStore) Query(ctx context.Context, name string, q query.StructuredQuery) (QueryResult, error) {
	where, err := compileWhere(q.Where)
	if err != nil {
		return QueryResult{}, err
	}
	whereDoc, err := compileWhereDocument(q.WhereDocument)
	if err != nil {
		return QueryResult{}, err
	}
	e, err := s.embedder(ctx, name)
	if err != nil {
		return QueryResult{}, err
	}

	var res QueryResult
	for _, text := range q.QueryTexts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return QueryResult{}, err
		}
		top, err := s.search(ctx, name, vec, q.NResults, where, whereDoc)
		if err != nil {
			return QueryResult{}, err
		}

		ids := make([]string, len(top))
		dists := make([]float64, len(top))
		metas := make([]map[string]any, len(top))
		docs := make([]string, len(top))
		for i, r := range top {
			ids[i] = r.ID
			dists[i] = 1 - float64(r.Score)
			metas[i] = metadataToAny(r.Metadata)
			docs[i] = r.Content
		}
		res.append(ids, dists, metas, docs)
	}
	return res, nil
}

func (s *SQLiteStore) search(ctx context.Context, name string, vector []float32, topK int, where metadataFilter, whereDoc documentFilter) ([]scored, error) {
	queryNorm := norm(vector)
	if queryNorm == 0 || topK <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM vectors WHERE collection = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	h := &scoredHeap{}
	heap.Init(h)

	// Reusable buffer for decoding embeddings to avoid per-row allocations.
	var buf []float32

	for rows.Next() {
		var id, content, metaJSON string
		var blob []byte
		if err := rows.Scan(&id, &content, &metaJSON, &blob); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}

		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", id, err)
		}
		if !where.matches(meta) || !whereDoc.matches(content) {
			continue
		}

		buf, err = decodeFloat32sInto(buf, blob)
		if err != nil {
			return nil, fmt.Errorf("decoding embedding for %s: %w", id, err)
		}

		score := dotProduct(vector, buf, queryNorm)
		if h.Len() < topK {
			heap.Push(h, scored{ID: id, Score: score, Metadata: meta, Content: content})
		} else if score > (*h)[0].Score {
			(*h)[0] = scored{ID: id, Score: score, Metadata: meta, Content: content}
			heap.Fix(h, 0)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	// Pop ascending, fill from the back so the result is best first.
	out := make([]scored, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(scored)
	}
	return out, nil
}

func (s *SQLiteStore) Count(ctx context.Context, name string) (int, error) {
	if _, err := s.embedder(ctx, name); err != nil {
		return 0, err
	}
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM vectors WHERE collection = ?`, name).Scan(&count)
	return count, err
}

func (s *SQLiteStore) Delete(ctx context.Context, name string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, name)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM vectors WHERE collection = ? AND id IN (?`+strings.Repeat(",?", len(ids)-1)+`)`, args...)
	if err != nil {
		return fmt.Errorf("deleting from %s: %w", name, err)
	}
	return nil
}

// encodeFloat32s serializes a float32 slice to little-endian bytes.
func encodeFloat32s(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeFloat32sInto decodes little-endian bytes into the provided buffer,
// reusing it to avoid per-row allocations during search scans.
// Returns an error if the byte slice length is not a multiple of 4 (indicates data corruption).
func decodeFloat32sInto(buf []float32, b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("byte slice length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if cap(buf) < n {
		buf = make([]float32, n)
	} else {
		buf = buf[:n]
	}
	for i := range buf {
		buf[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return buf, nil
}

// norm returns the L2 norm of a vector.
func norm(v []float32) float32 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return float32(math.Sqrt(sum))
}

// dotProduct computes cosine similarity as dot(a,b) / (aNorm * bNorm).
// aNorm is the precomputed L2 norm of vector a.
func dotProduct(a, b []float32, aNorm float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var dot float64
	var bNormSq float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		bNormSq += float64(b[i]) * float64(b[i])
	}
	bNorm := math.Sqrt(bNormSq)
	if bNorm == 0 {
		return 0
	}
	return float32(dot / (float64(aNorm) * bNorm))
}

// scoredHeap is a min-heap of scored rows ordered by Score.
type scoredHeap []scored

func (h scoredHeap) Len() int           { return len(h) }
func (h scoredHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h scoredHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scoredHeap) Push(x any)        { *h = append(*h, x.(scored)) }
func (h *scoredHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
