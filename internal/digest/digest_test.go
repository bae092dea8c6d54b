package digest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/signalboard/signalboard/internal/store"
	"github.com/signalboard/signalboard/internal/types"
)

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Complete(ctx context.Context, system, prompt string, maxTokens int64) (string, error) {
	return s.response, s.err
}

func setupDigestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func addClassified(t *testing.T, st *store.Store, id, clusterID string, createdAt time.Time, c types.Classification) {
	t.Helper()
	item := &types.FeedbackItem{ID: id, Source: "support", Author: "tester", Text: "text " + id, CreatedAt: createdAt}
	if err := st.InsertFeedback(item); err != nil {
		t.Fatalf("Failed to insert %s: %v", id, err)
	}
	if err := st.ApplyClassification(id, c, clusterID, ""); err != nil {
		t.Fatalf("Failed to classify %s: %v", id, err)
	}
}

func TestFallbackAlwaysHasSections(t *testing.T) {
	sections := []string{"## Top themes", "## Fires", "## Suggested next actions"}

	empty := fallbackMarkdown(digestPayload{WindowHours: windowHours})
	for _, s := range sections {
		if !strings.Contains(empty, s) {
			t.Errorf("Empty fallback missing %q", s)
		}
	}
	if !strings.Contains(empty, "- None") {
		t.Error("Empty fallback should mark empty sections with - None")
	}

	full := fallbackMarkdown(digestPayload{
		WindowHours: windowHours,
		TopClusters: []store.WindowCluster{{ClusterID: "c_1", Count: 4, Title: "API reliability"}},
		UrgentHighValue: []urgentEntry{
			{ID: "f1", Source: "discord", Summary: "Checkout is down.", ClusterID: "c_1"},
		},
	})
	for _, s := range sections {
		if !strings.Contains(full, s) {
			t.Errorf("Populated fallback missing %q", s)
		}
	}
	if !strings.Contains(full, "API reliability (4 items)") {
		t.Errorf("Expected cluster line, got:\n%s", full)
	}
	if !strings.Contains(full, "[discord] Checkout is down.") {
		t.Errorf("Expected fire line, got:\n%s", full)
	}
}

func TestFallbackUsesIDsWhenLabelsMissing(t *testing.T) {
	md := fallbackMarkdown(digestPayload{
		TopClusters:     []store.WindowCluster{{ClusterID: "c_raw", Count: 1}},
		UrgentHighValue: []urgentEntry{{ID: "f_raw", Source: "email"}},
	})
	if !strings.Contains(md, "c_raw (1 items)") {
		t.Errorf("Expected cluster id fallback, got:\n%s", md)
	}
	if !strings.Contains(md, "[email] f_raw") {
		t.Errorf("Expected item id fallback, got:\n%s", md)
	}
}

func TestRunPersistsWithLocalDateKey(t *testing.T) {
	st := setupDigestStore(t)
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("Failed to load location: %v", err)
	}
	synth := NewSynthesizer(st, nil, loc)

	// 2am UTC on March 2nd is still March 1st in New York.
	now := time.Date(2026, 3, 2, 2, 0, 0, 0, time.UTC)
	d, err := synth.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if d.Date != "2026-03-01" {
		t.Errorf("Expected local date key 2026-03-01, got %q", d.Date)
	}

	digests, err := st.ListDigests(10)
	if err != nil {
		t.Fatalf("ListDigests failed: %v", err)
	}
	if len(digests) != 1 || digests[0].ID != d.ID {
		t.Fatalf("Expected the persisted digest, got %+v", digests)
	}
	if !strings.Contains(digests[0].ContentMD, "# Daily Digest") {
		t.Errorf("Expected fallback markdown, got:\n%s", digests[0].ContentMD)
	}
}

func TestRunWindowFiltersOldAndDuplicateItems(t *testing.T) {
	st := setupDigestStore(t)
	now := time.Now().UTC()

	st.InsertCluster(&types.Cluster{ClusterID: "c_1", Title: "API reliability", LabelStatus: types.LabelKeyword})
	fire := types.Classification{Sentiment: types.SentimentNegative, Urgency: types.UrgencyHigh, Value: types.ValueHigh, Summary: "API is down.", Tags: []string{"api"}}
	addClassified(t, st, "f_recent", "c_1", now.Add(-time.Hour), fire)
	addClassified(t, st, "f_old", "c_1", now.Add(-48*time.Hour), fire)
	// Duplicates never appear in a digest window.
	item := &types.FeedbackItem{ID: "f_dup", Source: "support", Text: "dup", CreatedAt: now.Add(-time.Hour)}
	st.InsertFeedback(item)
	st.ApplyClassification("f_dup", fire, "c_1", "f_recent")

	synth := NewSynthesizer(st, nil, time.UTC)
	d, err := synth.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(d.ContentMD, "API reliability (1 items)") {
		t.Errorf("Expected only the in-window non-duplicate item counted, got:\n%s", d.ContentMD)
	}
	if strings.Count(d.ContentMD, "API is down.") != 1 {
		t.Errorf("Expected exactly one fire line, got:\n%s", d.ContentMD)
	}
}

func TestGenerateFallsBackOnModelFailure(t *testing.T) {
	st := setupDigestStore(t)
	synth := NewSynthesizer(st, &stubCompleter{err: errors.New("api down")}, time.UTC)

	d, err := synth.Run(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(d.ContentMD, "## Suggested next actions") {
		t.Errorf("Expected fallback on model failure, got:\n%s", d.ContentMD)
	}
}

func TestGenerateUsesModelOutput(t *testing.T) {
	st := setupDigestStore(t)
	synth := NewSynthesizer(st, &stubCompleter{response: "# Digest\n\nAll quiet."}, time.UTC)

	d, err := synth.Run(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.HasPrefix(d.ContentMD, "# Digest") {
		t.Errorf("Expected model markdown, got:\n%s", d.ContentMD)
	}
}

func TestGenerateFallsBackOnEmptyOutput(t *testing.T) {
	st := setupDigestStore(t)
	synth := NewSynthesizer(st, &stubCompleter{response: "   \n"}, time.UTC)

	d, err := synth.Run(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(d.ContentMD, "# Daily Digest") {
		t.Errorf("Expected fallback on empty output, got:\n%s", d.ContentMD)
	}
}

func TestDigestRunsAppend(t *testing.T) {
	st := setupDigestStore(t)
	synth := NewSynthesizer(st, nil, time.UTC)
	now := time.Now().UTC()

	if _, err := synth.Run(context.Background(), now); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if _, err := synth.Run(context.Background(), now); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}
	digests, _ := st.ListDigests(10)
	if len(digests) != 2 {
		t.Errorf("Expected 2 digest rows for the same date, got %d", len(digests))
	}
}

func TestNextRun(t *testing.T) {
	loc := time.UTC
	before := time.Date(2026, 3, 2, 8, 59, 0, 0, loc)
	if got := nextRun(before); !got.Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, loc)) {
		t.Errorf("Expected same-day 9am, got %v", got)
	}
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, loc)
	if got := nextRun(at); !got.Equal(time.Date(2026, 3, 3, 9, 0, 0, 0, loc)) {
		t.Errorf("Expected next-day 9am when exactly at the boundary, got %v", got)
	}
	after := time.Date(2026, 3, 2, 17, 0, 0, 0, loc)
	if got := nextRun(after); !got.Equal(time.Date(2026, 3, 3, 9, 0, 0, 0, loc)) {
		t.Errorf("Expected next-day 9am, got %v", got)
	}
}
