// Package vector is the similarity index over feedback embeddings.
//
// Vectors and their metadata live in a plain feedback_vectors table; when the
// sqlite-vec extension is compiled in, a vec0 virtual table mirrors them for
// fast KNN. Without the extension, queries fall back to a Go-side cosine scan
// over the plain table, so degraded builds keep working.
package vector

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/signalboard/signalboard/internal/logging"
)

func init() {
	sqlite_vec.Auto() // registers the vec0 virtual table with go-sqlite3
}

// Metadata is attached to every indexed vector and returned with each match
type Metadata struct {
	FeedbackID string
	ClusterID  string
	Source     string
	CreatedAt  time.Time
}

// Match is one ranked nearest neighbor
type Match struct {
	Metadata
	Score float64 // cosine similarity
}

// Index wraps the vector tables. Safe for concurrent use.
type Index struct {
	db        *sql.DB
	mu        sync.Mutex
	available bool // sqlite-vec extension loaded
	dim       int  // vec0 table dimension (0 = not yet created)
}

// New prepares the vector index on an already-open database handle
func New(db *sql.DB) (*Index, error) {
	idx := &Index{db: db}

	schema := `
	CREATE TABLE IF NOT EXISTS feedback_vectors (
		feedback_id TEXT PRIMARY KEY,
		cluster_id TEXT,
		source TEXT,
		created_at DATETIME,
		embedding BLOB NOT NULL
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create feedback_vectors: %w", err)
	}

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		logging.Info("vector", "sqlite-vec not available: %v, falling back to full scan", err)
	} else {
		logging.Info("vector", "sqlite-vec %s loaded", vecVersion)
		idx.available = true
		if err := idx.initVecTable(); err != nil {
			logging.Info("vector", "vec init warning: %v", err)
		}
	}

	return idx, nil
}

// initVecTable restores the vec0 table dimension from existing vectors after a
// restart. No-ops when the index is empty.
func (idx *Index) initVecTable() error {
	var embBytes []byte
	err := idx.db.QueryRow(`SELECT embedding FROM feedback_vectors LIMIT 1`).Scan(&embBytes)
	if err != nil {
		return nil // empty index; defer to first Upsert
	}
	var emb []float64
	if err := json.Unmarshal(embBytes, &emb); err != nil || len(emb) == 0 {
		return nil
	}
	return idx.ensureVecTable(len(emb))
}

// ensureVecTable creates the vec0 virtual table for the given dimension and
// backfills existing vectors. Idempotent for the same dim.
//
// Uses integer rowid (from feedback_vectors) + auxiliary +feedback_id column,
// avoiding vec0's TEXT PRIMARY KEY partitioning behaviour which breaks KNN.
func (idx *Index) ensureVecTable(dim int) error {
	if idx.dim == dim {
		return nil
	}
	if idx.dim != 0 && idx.dim != dim {
		return fmt.Errorf("embedding dim %d doesn't match vec table dim %d", dim, idx.dim)
	}

	_, err := idx.db.Exec(fmt.Sprintf(`
		CREATE VIRTUAL TABLE IF NOT EXISTS feedback_vec USING vec0(
			embedding float[%d],
			+feedback_id TEXT
		)
	`, dim))
	if err != nil {
		return fmt.Errorf("failed to create feedback_vec(float[%d]): %w", dim, err)
	}
	idx.dim = dim

	rows, err := idx.db.Query(`SELECT rowid, feedback_id, embedding FROM feedback_vectors`)
	if err != nil {
		return nil // backfill failure is non-fatal
	}
	defer rows.Close()

	tx, err := idx.db.Begin()
	if err != nil {
		return nil
	}

	var count int
	for rows.Next() {
		var rowid int64
		var id string
		var embBytes []byte
		if err := rows.Scan(&rowid, &id, &embBytes); err != nil {
			continue
		}
		var emb []float64
		if err := json.Unmarshal(embBytes, &emb); err != nil || len(emb) != dim {
			continue
		}
		serialized, serErr := sqlite_vec.SerializeFloat32(normalizeFloat32(float64ToFloat32(emb)))
		if serErr != nil {
			continue
		}
		// vec0 does not reliably support INSERT OR REPLACE; use DELETE + INSERT.
		tx.Exec(`DELETE FROM feedback_vec WHERE rowid = ?`, rowid)
		if _, err := tx.Exec(`INSERT INTO feedback_vec(rowid, embedding, feedback_id) VALUES (?, ?, ?)`,
			rowid, serialized, id); err != nil {
			logging.Info("vector", "vec backfill failed for %s: %v", id, err)
			continue
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return nil
	}
	if count > 0 {
		logging.Info("vector", "vec backfill: indexed %d vectors (dim=%d)", count, dim)
	}
	return nil
}

// Upsert stores a vector with its metadata. Items processed without an
// embedding are never upserted and stay invisible to future queries.
func (idx *Index) Upsert(vec []float64, md Metadata) error {
	if md.FeedbackID == "" {
		return fmt.Errorf("feedback ID is required")
	}
	if len(vec) == 0 {
		return fmt.Errorf("empty vector")
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	embBytes, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	_, err = idx.db.Exec(`
		INSERT INTO feedback_vectors (feedback_id, cluster_id, source, created_at, embedding)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(feedback_id) DO UPDATE SET
			cluster_id = excluded.cluster_id,
			source = excluded.source,
			created_at = excluded.created_at,
			embedding = excluded.embedding
	`, md.FeedbackID, md.ClusterID, md.Source, md.CreatedAt.UTC(), embBytes)
	if err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}

	if !idx.available {
		return nil
	}
	if err := idx.ensureVecTable(len(vec)); err != nil {
		logging.Info("vector", "vec table unavailable for dim %d: %v", len(vec), err)
		return nil
	}

	var rowid int64
	if err := idx.db.QueryRow(`SELECT rowid FROM feedback_vectors WHERE feedback_id = ?`, md.FeedbackID).Scan(&rowid); err != nil {
		return nil
	}
	serialized, err := sqlite_vec.SerializeFloat32(normalizeFloat32(float64ToFloat32(vec)))
	if err != nil {
		return nil
	}
	idx.db.Exec(`DELETE FROM feedback_vec WHERE rowid = ?`, rowid)
	if _, err := idx.db.Exec(`INSERT INTO feedback_vec(rowid, embedding, feedback_id) VALUES (?, ?, ?)`,
		rowid, serialized, md.FeedbackID); err != nil {
		logging.Info("vector", "vec insert failed for %s: %v", md.FeedbackID, err)
	}
	return nil
}

// Query returns the topK nearest neighbors ranked by cosine similarity,
// with metadata attached
func (idx *Index) Query(vec []float64, topK int) ([]Match, error) {
	if len(vec) == 0 || topK <= 0 {
		return nil, nil
	}
	if idx.available && idx.dim == len(vec) {
		matches, err := idx.queryVec(vec, topK)
		if err == nil {
			return matches, nil
		}
		logging.Info("vector", "vec query failed, falling back to scan: %v", err)
	}
	return idx.queryScan(vec, topK)
}

// queryVec runs a KNN query against the vec0 table. On unit-normalized
// vectors L2 distance is monotonic with cosine distance, so the vec0 ranking
// matches the cosine ranking; scores are converted back via 1 - L2²/2.
func (idx *Index) queryVec(vec []float64, topK int) ([]Match, error) {
	serialized, err := sqlite_vec.SerializeFloat32(normalizeFloat32(float64ToFloat32(vec)))
	if err != nil {
		return nil, err
	}

	rows, err := idx.db.Query(`
		SELECT v.feedback_id, v.distance, m.cluster_id, m.source, m.created_at
		FROM (
			SELECT feedback_id, distance FROM feedback_vec
			WHERE embedding MATCH ? AND k = ?
			ORDER BY distance
		) v
		JOIN feedback_vectors m ON m.feedback_id = v.feedback_id
		ORDER BY v.distance
	`, serialized, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var dist float64
		var clusterID, source sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&m.FeedbackID, &dist, &clusterID, &source, &createdAt); err != nil {
			continue
		}
		m.ClusterID = clusterID.String
		m.Source = source.String
		m.CreatedAt = createdAt.Time
		m.Score = l2ToCosineSim(dist)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// queryScan is the extension-free fallback: full cosine scan over stored vectors
func (idx *Index) queryScan(vec []float64, topK int) ([]Match, error) {
	rows, err := idx.db.Query(`
		SELECT feedback_id, cluster_id, source, created_at, embedding FROM feedback_vectors
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Match
	for rows.Next() {
		var m Match
		var clusterID, source sql.NullString
		var createdAt sql.NullTime
		var embBytes []byte
		if err := rows.Scan(&m.FeedbackID, &clusterID, &source, &createdAt, &embBytes); err != nil {
			continue
		}
		var emb []float64
		if err := json.Unmarshal(embBytes, &emb); err != nil {
			continue
		}
		m.ClusterID = clusterID.String
		m.Source = source.String
		m.CreatedAt = createdAt.Time
		m.Score = cosineSim(vec, emb)
		candidates = append(candidates, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// float64ToFloat32 converts a float64 slice to float32
func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}

// normalizeFloat32 returns a unit-length copy of the vector.
// Normalizing before storing in vec0 makes L2 distance equivalent to cosine:
//
//	cosine_dist = L2_dist² / 2   (for unit vectors)
func normalizeFloat32(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// l2ToCosineSim converts an L2 distance (on normalized vectors) to cosine
// similarity: cosine_sim = 1 - L2²/2
func l2ToCosineSim(l2dist float64) float64 {
	return 1.0 - (l2dist*l2dist)/2.0
}

// cosineSim computes cosine similarity between two embeddings
func cosineSim(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
