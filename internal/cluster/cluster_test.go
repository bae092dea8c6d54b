package cluster

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/signalboard/signalboard/internal/classify"
	"github.com/signalboard/signalboard/internal/embedding"
	"github.com/signalboard/signalboard/internal/label"
	"github.com/signalboard/signalboard/internal/store"
	"github.com/signalboard/signalboard/internal/types"
	"github.com/signalboard/signalboard/internal/vector"
)

// mapEmbedder returns a fixed vector per exact text.
type mapEmbedder struct {
	vectors map[string][]float64
}

func (m *mapEmbedder) Embed(text string) ([]float64, error) {
	v, ok := m.vectors[text]
	if !ok {
		return nil, errors.New("no vector for text")
	}
	return v, nil
}

// setupPipeline builds a full processing pipeline over a temp database.
// A nil embedder means the embedding capability is absent.
func setupPipeline(t *testing.T, embedder embedding.Embedder) (*Processor, *Manager, *store.Store) {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	idx, err := vector.New(st.DB())
	if err != nil {
		t.Fatalf("Failed to create vector index: %v", err)
	}

	lb := label.Default()
	mgr := NewManager(st, lb, NewSummarizer(nil, true))
	res := NewResolver(st, idx, lb)
	proc := NewProcessor(st, idx, embedding.NewResolver(embedder), res, classify.New(nil, false), mgr)
	return proc, mgr, st
}

func ingest(t *testing.T, st *store.Store, proc *Processor, id, text string, createdAt time.Time) *types.FeedbackItem {
	t.Helper()
	item := &types.FeedbackItem{ID: id, Source: "support", Author: "tester", Text: text, CreatedAt: createdAt}
	if err := st.InsertFeedback(item); err != nil {
		t.Fatalf("Failed to insert %s: %v", id, err)
	}
	if err := proc.Process(context.Background(), id); err != nil {
		t.Fatalf("Failed to process %s: %v", id, err)
	}
	got, err := st.GetFeedback(id)
	if err != nil {
		t.Fatalf("Failed to reload %s: %v", id, err)
	}
	return got
}

func TestKeywordFallbackConvergence(t *testing.T) {
	proc, _, st := setupPipeline(t, nil)
	now := time.Now().UTC()

	a := ingest(t, st, proc, "f1", "API responses return 504 errors under load", now)
	b := ingest(t, st, proc, "f2", "Production calls are hitting a timeout", now.Add(time.Minute))
	c := ingest(t, st, proc, "f3", "P95 latency is way up today", now.Add(2*time.Minute))

	if a.ClusterID == "" || a.ClusterID != b.ClusterID || b.ClusterID != c.ClusterID {
		t.Fatalf("Expected one shared cluster, got %q %q %q", a.ClusterID, b.ClusterID, c.ClusterID)
	}

	cl, err := st.GetCluster(a.ClusterID)
	if err != nil || cl == nil {
		t.Fatalf("Cluster missing: %v", err)
	}
	if cl.Title != "API reliability" {
		t.Errorf("Expected API reliability, got %q", cl.Title)
	}
	if cl.Count != 3 {
		t.Errorf("Expected count 3, got %d", cl.Count)
	}
	if cl.LabelStatus != types.LabelKeyword {
		t.Errorf("Expected keyword label status, got %q", cl.LabelStatus)
	}
}

func TestDuplicateTier(t *testing.T) {
	textA := "API returns 504 errors constantly"
	textB := "The API keeps returning 504s"
	emb := &mapEmbedder{vectors: map[string][]float64{
		textA: {1, 0, 0},
		textB: {0.95, 0.312, 0}, // cosine ~0.95 vs A
	}}
	proc, _, st := setupPipeline(t, emb)
	now := time.Now().UTC()

	a := ingest(t, st, proc, "fa", textA, now)
	b := ingest(t, st, proc, "fb", textB, now.Add(time.Minute))

	if b.DuplicateOf != "fa" {
		t.Fatalf("Expected fb duplicate of fa, got %q", b.DuplicateOf)
	}
	if b.ClusterID != a.ClusterID {
		t.Errorf("Duplicate should share the cluster: %q vs %q", b.ClusterID, a.ClusterID)
	}

	cl, _ := st.GetCluster(a.ClusterID)
	if cl.Count != 1 {
		t.Errorf("Duplicate must not count, got %d", cl.Count)
	}
}

func TestClusterTier(t *testing.T) {
	textA := "API returns 504 errors constantly"
	textC := "Responses from the API feel degraded"
	emb := &mapEmbedder{vectors: map[string][]float64{
		textA: {1, 0, 0},
		textC: {0.85, 0.527, 0}, // cosine ~0.85 vs A
	}}
	proc, _, st := setupPipeline(t, emb)
	now := time.Now().UTC()

	a := ingest(t, st, proc, "fa", textA, now)
	c := ingest(t, st, proc, "fc", textC, now.Add(time.Minute))

	if c.DuplicateOf != "" {
		t.Errorf("Cluster-tier match must not be a duplicate, got %q", c.DuplicateOf)
	}
	if c.ClusterID != a.ClusterID {
		t.Errorf("Expected same cluster, got %q vs %q", c.ClusterID, a.ClusterID)
	}

	cl, _ := st.GetCluster(a.ClusterID)
	if cl.Count != 2 {
		t.Errorf("Expected count 2, got %d", cl.Count)
	}
}

func TestSubThresholdNeighborReuse(t *testing.T) {
	textA := "API returns 504 errors constantly"
	textD := "Completely different topic about pricing tiers"
	emb := &mapEmbedder{vectors: map[string][]float64{
		textA: {1, 0, 0},
		textD: {0.5, 0.866, 0}, // cosine ~0.5 vs A, below both thresholds
	}}
	proc, _, st := setupPipeline(t, emb)
	now := time.Now().UTC()

	a := ingest(t, st, proc, "fa", textA, now)
	d := ingest(t, st, proc, "fd", textD, now.Add(time.Minute))

	// With no qualifying match, a known neighbor's cluster still wins over
	// creating a fresh keyword cluster.
	if d.ClusterID != a.ClusterID {
		t.Errorf("Expected neighbor cluster reuse, got %q vs %q", d.ClusterID, a.ClusterID)
	}
	if d.DuplicateOf != "" {
		t.Errorf("Sub-threshold match is not a duplicate, got %q", d.DuplicateOf)
	}
}

func TestEmbeddingFailureFallsBackToKeyword(t *testing.T) {
	// Embedder present but failing for this text.
	emb := &mapEmbedder{vectors: map[string][]float64{}}
	proc, _, st := setupPipeline(t, emb)

	item := ingest(t, st, proc, "f1", "I was charged twice on my invoice", time.Now().UTC())
	cl, _ := st.GetCluster(item.ClusterID)
	if cl == nil || cl.Title != "Billing accuracy" {
		t.Fatalf("Expected keyword cluster on embed failure, got %+v", cl)
	}
}

func TestSummarizeTriggerAtBoundary(t *testing.T) {
	_, mgr, st := setupPipeline(t, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	cl := &types.Cluster{ClusterID: "c_1", Title: "Billing accuracy", ThemeSummary: "Billing issues.", LabelStatus: types.LabelKeyword}
	if err := st.InsertCluster(cl); err != nil {
		t.Fatalf("InsertCluster failed: %v", err)
	}
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("f%d", i)
		st.InsertFeedback(&types.FeedbackItem{ID: id, Source: "support", Text: "billing broken", CreatedAt: now})
		st.ApplyClassification(id, types.DefaultClassification(), "c_1", "")
	}

	// Off the boundary: label untouched.
	st.SetClusterStats("c_1", 24, now)
	if err := mgr.MaybeSummarize(ctx, "c_1"); err != nil {
		t.Fatalf("MaybeSummarize failed: %v", err)
	}
	got, _ := st.GetCluster("c_1")
	if got.LabelStatus != types.LabelKeyword {
		t.Errorf("count 24 must not summarize, got status %q", got.LabelStatus)
	}

	// At the boundary: label regenerated.
	st.SetClusterStats("c_1", 25, now)
	if err := mgr.MaybeSummarize(ctx, "c_1"); err != nil {
		t.Fatalf("MaybeSummarize failed: %v", err)
	}
	got, _ = st.GetCluster("c_1")
	if got.LabelStatus != types.LabelModel {
		t.Errorf("count 25 should summarize, got status %q", got.LabelStatus)
	}
	if got.Title != "Mixed feedback" {
		t.Errorf("Expected dev-mode summary title, got %q", got.Title)
	}

	// Just past the boundary: the fresh label stays.
	st.SetClusterLabel("c_1", types.ClusterLabel{Title: "Billing accuracy", ThemeSummary: "Billing issues."}, types.LabelKeyword)
	st.SetClusterStats("c_1", 26, now)
	if err := mgr.MaybeSummarize(ctx, "c_1"); err != nil {
		t.Fatalf("MaybeSummarize failed: %v", err)
	}
	got, _ = st.GetCluster("c_1")
	if got.LabelStatus != types.LabelKeyword {
		t.Errorf("count 26 must not summarize, got status %q", got.LabelStatus)
	}
}

func TestSummarizeKeepsLabelWhenCapabilityAbsent(t *testing.T) {
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	// Non-dev mode with no model: summarization is absent.
	mgr := NewManager(st, label.Default(), NewSummarizer(nil, false))
	now := time.Now().UTC()

	st.InsertCluster(&types.Cluster{ClusterID: "c_1", Title: "Billing accuracy", ThemeSummary: "Billing issues.", LabelStatus: types.LabelKeyword})
	st.InsertFeedback(&types.FeedbackItem{ID: "f1", Source: "support", Text: "x", CreatedAt: now})
	st.ApplyClassification("f1", types.DefaultClassification(), "c_1", "")
	st.SetClusterStats("c_1", 25, now)

	if err := mgr.MaybeSummarize(context.Background(), "c_1"); err != nil {
		t.Fatalf("MaybeSummarize failed: %v", err)
	}
	got, _ := st.GetCluster("c_1")
	if got.Title != "Billing accuracy" || got.LabelStatus != types.LabelKeyword {
		t.Errorf("Absent capability must keep the existing label, got %+v", got)
	}
}

func TestPlaceholderReplacement(t *testing.T) {
	proc, _, st := setupPipeline(t, nil)
	now := time.Now().UTC()

	// A pre-existing placeholder cluster picks up a keyword label from the
	// first item routed into it.
	st.InsertCluster(&types.Cluster{
		ClusterID: "c_old", Title: types.PlaceholderTitle, ThemeSummary: types.PlaceholderSummary,
		LabelStatus: types.LabelUnlabeled,
	})
	item := &types.FeedbackItem{ID: "f1", Source: "support", Text: "dark mode please", CreatedAt: now, ClusterID: "c_old"}
	if err := st.InsertFeedback(item); err != nil {
		t.Fatalf("InsertFeedback failed: %v", err)
	}
	// Pre-assign the cluster the way a duplicate's metadata would.
	st.ApplyClassification("f1", types.DefaultClassification(), "c_old", "")
	if err := proc.Process(context.Background(), "f1"); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, _ := st.GetCluster("c_old")
	if got.Title != "Dark mode request" {
		t.Errorf("Expected placeholder replaced with derived label, got %q", got.Title)
	}
	if got.LabelStatus != types.LabelKeyword {
		t.Errorf("Expected keyword status, got %q", got.LabelStatus)
	}
}

func TestProcessMissingItemIsNoop(t *testing.T) {
	proc, _, _ := setupPipeline(t, nil)
	if err := proc.Process(context.Background(), "ghost"); err != nil {
		t.Errorf("Missing item should not error, got %v", err)
	}
}
