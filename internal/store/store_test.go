package store

import (
	"testing"
	"time"

	"github.com/signalboard/signalboard/internal/types"
)

// setupTestStore creates a store backed by a temp directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func addItem(t *testing.T, s *Store, id, text string, createdAt time.Time) {
	t.Helper()
	err := s.InsertFeedback(&types.FeedbackItem{
		ID: id, Source: "support", Author: "tester", Text: text, CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("Failed to insert feedback %s: %v", id, err)
	}
}

func TestFeedbackRoundTrip(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)
	addItem(t, s, "f1", "the api is slow", now)

	item, err := s.GetFeedback("f1")
	if err != nil {
		t.Fatalf("GetFeedback failed: %v", err)
	}
	if item == nil || item.Text != "the api is slow" {
		t.Fatalf("Unexpected item: %+v", item)
	}
	if item.Sentiment != "" || item.ClusterID != "" {
		t.Errorf("New item should be unprocessed: %+v", item)
	}

	missing, err := s.GetFeedback("nope")
	if err != nil {
		t.Fatalf("GetFeedback(missing) errored: %v", err)
	}
	if missing != nil {
		t.Errorf("Expected nil for missing item, got %+v", missing)
	}
}

func TestInsertFeedbackIfAbsent(t *testing.T) {
	s := setupTestStore(t)
	item := &types.FeedbackItem{ID: "f1", Source: "support", Text: "hello", CreatedAt: time.Now()}

	inserted, err := s.InsertFeedbackIfAbsent(item)
	if err != nil || !inserted {
		t.Fatalf("First insert should succeed: %v %v", inserted, err)
	}
	inserted, err = s.InsertFeedbackIfAbsent(item)
	if err != nil {
		t.Fatalf("Repeat insert errored: %v", err)
	}
	if inserted {
		t.Error("Repeat insert should be a no-op")
	}
}

func TestApplyClassification(t *testing.T) {
	s := setupTestStore(t)
	now := time.Now().UTC()
	addItem(t, s, "f1", "billing is broken", now)

	c := types.Classification{
		Sentiment: types.SentimentNegative,
		Urgency:   types.UrgencyHigh,
		Value:     types.ValueHigh,
		Summary:   "billing broken",
		Tags:      []string{"billing"},
	}
	if err := s.ApplyClassification("f1", c, "c_1", ""); err != nil {
		t.Fatalf("ApplyClassification failed: %v", err)
	}

	item, _ := s.GetFeedback("f1")
	if item.Sentiment != types.SentimentNegative || item.ClusterID != "c_1" {
		t.Errorf("Classification not persisted: %+v", item)
	}
	if item.IsDuplicate() {
		t.Error("Item without duplicate_of should not be a duplicate")
	}
	if len(item.Tags) != 1 || item.Tags[0] != "billing" {
		t.Errorf("Tags not round-tripped: %v", item.Tags)
	}

	if err := s.ApplyClassification("f1", c, "c_1", "f0"); err != nil {
		t.Fatalf("ApplyClassification with duplicate failed: %v", err)
	}
	item, _ = s.GetFeedback("f1")
	if !item.IsDuplicate() || item.DuplicateOf != "f0" {
		t.Errorf("duplicate_of not persisted: %+v", item)
	}
}

func TestBumpClusterClampsLastSeen(t *testing.T) {
	s := setupTestStore(t)
	newer := time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)
	older := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	cl := &types.Cluster{ClusterID: "c_1", Title: "t", LastSeenAt: older}
	if err := s.InsertCluster(cl); err != nil {
		t.Fatalf("InsertCluster failed: %v", err)
	}

	if err := s.BumpCluster("c_1", newer); err != nil {
		t.Fatalf("BumpCluster failed: %v", err)
	}
	got, _ := s.GetCluster("c_1")
	if got.Count != 1 {
		t.Errorf("Expected count 1, got %d", got.Count)
	}
	if !got.LastSeenAt.Equal(newer) {
		t.Errorf("Expected last_seen_at %v, got %v", newer, got.LastSeenAt)
	}

	// An out-of-order older item still counts but cannot move the timestamp back.
	if err := s.BumpCluster("c_1", older); err != nil {
		t.Fatalf("BumpCluster failed: %v", err)
	}
	got, _ = s.GetCluster("c_1")
	if got.Count != 2 {
		t.Errorf("Expected count 2, got %d", got.Count)
	}
	if !got.LastSeenAt.Equal(newer) {
		t.Errorf("last_seen_at moved backwards: %v", got.LastSeenAt)
	}
}

func TestSetClusterLabelIfUnlabeled(t *testing.T) {
	s := setupTestStore(t)
	cl := &types.Cluster{
		ClusterID: "c_1", Title: types.PlaceholderTitle, ThemeSummary: types.PlaceholderSummary,
		LabelStatus: types.LabelUnlabeled,
	}
	if err := s.InsertCluster(cl); err != nil {
		t.Fatalf("InsertCluster failed: %v", err)
	}

	replaced, err := s.SetClusterLabelIfUnlabeled("c_1", types.ClusterLabel{Title: "Billing accuracy", ThemeSummary: "Billing issues."})
	if err != nil {
		t.Fatalf("SetClusterLabelIfUnlabeled failed: %v", err)
	}
	if !replaced {
		t.Fatal("Expected placeholder to be replaced")
	}
	got, _ := s.GetCluster("c_1")
	if got.Title != "Billing accuracy" || got.LabelStatus != types.LabelKeyword {
		t.Errorf("Label not applied: %+v", got)
	}

	// Second attempt must not overwrite.
	replaced, err = s.SetClusterLabelIfUnlabeled("c_1", types.ClusterLabel{Title: "Other"})
	if err != nil {
		t.Fatalf("SetClusterLabelIfUnlabeled failed: %v", err)
	}
	if replaced {
		t.Error("Labeled cluster should not be replaced again")
	}
}

func TestClusterIDByTitle(t *testing.T) {
	s := setupTestStore(t)
	s.InsertCluster(&types.Cluster{ClusterID: "c_1", Title: "API reliability"})

	id, err := s.ClusterIDByTitle("API reliability")
	if err != nil || id != "c_1" {
		t.Errorf("Expected c_1, got %q (%v)", id, err)
	}
	id, err = s.ClusterIDByTitle("Nothing")
	if err != nil || id != "" {
		t.Errorf("Expected empty id for unknown title, got %q (%v)", id, err)
	}
}

func TestClusterGroundTruthExcludesDuplicates(t *testing.T) {
	s := setupTestStore(t)
	s.InsertCluster(&types.Cluster{ClusterID: "c_1", Title: "t"})
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	addItem(t, s, "f1", "a", base)
	addItem(t, s, "f2", "b", base.Add(time.Hour))
	addItem(t, s, "f3", "c", base.Add(2*time.Hour))
	s.ApplyClassification("f1", types.DefaultClassification(), "c_1", "")
	s.ApplyClassification("f2", types.DefaultClassification(), "c_1", "")
	s.ApplyClassification("f3", types.DefaultClassification(), "c_1", "f1")

	count, lastSeen, err := s.ClusterGroundTruth("c_1")
	if err != nil {
		t.Fatalf("ClusterGroundTruth failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Duplicates must not count, got %d", count)
	}
	if !lastSeen.Equal(base.Add(time.Hour)) {
		t.Errorf("Expected last seen from f2, got %v", lastSeen)
	}
}

func TestClusterGroundTruthSingleMember(t *testing.T) {
	s := setupTestStore(t)
	s.InsertCluster(&types.Cluster{ClusterID: "c_1", Title: "t"})
	created := time.Date(2026, 2, 3, 9, 30, 0, 0, time.UTC)

	addItem(t, s, "f1", "one member", created)
	s.ApplyClassification("f1", types.DefaultClassification(), "c_1", "")

	count, lastSeen, err := s.ClusterGroundTruth("c_1")
	if err != nil {
		t.Fatalf("ClusterGroundTruth failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected count 1, got %d", count)
	}
	if !lastSeen.Equal(created) {
		t.Errorf("Expected last seen %v, got %v", created, lastSeen)
	}
}

func TestClusterGroundTruthEmptyCluster(t *testing.T) {
	s := setupTestStore(t)
	s.InsertCluster(&types.Cluster{ClusterID: "c_1", Title: "t"})

	count, lastSeen, err := s.ClusterGroundTruth("c_1")
	if err != nil {
		t.Fatalf("ClusterGroundTruth failed: %v", err)
	}
	if count != 0 || !lastSeen.IsZero() {
		t.Errorf("Expected zero ground truth, got count=%d lastSeen=%v", count, lastSeen)
	}
}

func TestDigestsAppendOnly(t *testing.T) {
	s := setupTestStore(t)
	s.InsertDigest(types.Digest{ID: "d1", Date: "2026-01-14", ContentMD: "first"})
	s.InsertDigest(types.Digest{ID: "d2", Date: "2026-01-14", ContentMD: "second"})
	s.InsertDigest(types.Digest{ID: "d3", Date: "2026-01-13", ContentMD: "older"})

	digests, err := s.ListDigests(30)
	if err != nil {
		t.Fatalf("ListDigests failed: %v", err)
	}
	if len(digests) != 3 {
		t.Fatalf("Expected 3 digests (same-date rows are kept), got %d", len(digests))
	}
	if digests[0].ContentMD != "second" || digests[2].Date != "2026-01-13" {
		t.Errorf("Unexpected ordering: %+v", digests)
	}
}

func TestSentimentBreakdownZeroInitialized(t *testing.T) {
	s := setupTestStore(t)
	breakdown, err := s.SentimentBreakdown("")
	if err != nil {
		t.Fatalf("SentimentBreakdown failed: %v", err)
	}
	for _, k := range []types.Sentiment{types.SentimentPositive, types.SentimentNeutral, types.SentimentNegative} {
		if _, ok := breakdown[k]; !ok {
			t.Errorf("Missing zero entry for %q", k)
		}
	}
}

func TestWindowTopClusters(t *testing.T) {
	s := setupTestStore(t)
	s.InsertCluster(&types.Cluster{ClusterID: "c_1", Title: "Big"})
	s.InsertCluster(&types.Cluster{ClusterID: "c_2", Title: "Small"})
	now := time.Now().UTC()

	for i, row := range []struct {
		cluster string
		age     time.Duration
	}{
		{"c_1", time.Hour}, {"c_1", 2 * time.Hour}, {"c_2", time.Hour},
		{"c_1", 48 * time.Hour}, // outside the window
	} {
		id := string(rune('a' + i))
		addItem(t, s, id, "text", now.Add(-row.age))
		s.ApplyClassification(id, types.DefaultClassification(), row.cluster, "")
	}

	top, err := s.WindowTopClusters(now.Add(-24*time.Hour), 5)
	if err != nil {
		t.Fatalf("WindowTopClusters failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("Expected 2 window clusters, got %d", len(top))
	}
	if top[0].ClusterID != "c_1" || top[0].Count != 2 {
		t.Errorf("Expected c_1 with 2 in-window items, got %+v", top[0])
	}
	if top[1].Title != "Small" {
		t.Errorf("Expected joined title, got %+v", top[1])
	}
}
