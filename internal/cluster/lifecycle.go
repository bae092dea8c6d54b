package cluster

import (
	"context"
	"hash/fnv"
	"sync"

	"github.com/signalboard/signalboard/internal/label"
	"github.com/signalboard/signalboard/internal/logging"
	"github.com/signalboard/signalboard/internal/store"
	"github.com/signalboard/signalboard/internal/types"
)

// summarizeEvery is the amortization interval for cluster re-summarization.
const summarizeEvery = 25

const lockStripes = 64

// Manager owns cluster aggregate updates. Concurrent item workers may hit the
// same cluster row; increments are atomic in SQL and additionally serialized
// per cluster through striped mutexes so the count read feeding the
// summarization trigger is stable.
type Manager struct {
	store      *store.Store
	labeler    *label.Labeler
	summarizer *Summarizer
	locks      [lockStripes]sync.Mutex
}

// NewManager builds a lifecycle manager.
func NewManager(st *store.Store, lb *label.Labeler, sum *Summarizer) *Manager {
	return &Manager{store: st, labeler: lb, summarizer: sum}
}

func (m *Manager) lock(clusterID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(clusterID))
	return &m.locks[h.Sum32()%lockStripes]
}

// Apply records an item's cluster assignment: replaces a still-placeholder
// label with the keyword-derived one, and for non-duplicates bumps the
// cluster's count and last-seen timestamp. The timestamp is the item's own
// creation time, clamped so out-of-order processing cannot move it backwards.
func (m *Manager) Apply(item *types.FeedbackItem, d types.Decision) error {
	if d.ClusterID == "" {
		return nil
	}
	mu := m.lock(d.ClusterID)
	mu.Lock()
	defer mu.Unlock()

	derived := m.labeler.Derive(item.Text)
	replaced, err := m.store.SetClusterLabelIfUnlabeled(d.ClusterID, derived)
	if err != nil {
		return err
	}
	if replaced {
		logging.Debug("cluster", "labeled %s as %q", d.ClusterID, derived.Title)
	}

	if d.Tier == types.TierDuplicate {
		return nil
	}
	return m.store.BumpCluster(d.ClusterID, item.CreatedAt)
}

// MaybeSummarize re-reads the cluster's count after an increment and, at the
// amortization boundary, regenerates the label from the 20 most recent
// non-duplicate item summaries. A failed or absent summarization capability
// leaves the existing label in place.
func (m *Manager) MaybeSummarize(ctx context.Context, clusterID string) error {
	count, err := m.store.ClusterCount(clusterID)
	if err != nil {
		return err
	}
	if count != 0 && count%summarizeEvery != 0 {
		return nil
	}

	summaries, err := m.store.RecentClusterSummaries(clusterID, 20)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		return nil
	}

	newLabel, status := m.summarizer.Summarize(ctx, summaries)
	if status != types.CapabilityOK {
		logging.Debug("cluster", "summarization unavailable for %s, keeping label", clusterID)
		return nil
	}

	mu := m.lock(clusterID)
	mu.Lock()
	defer mu.Unlock()
	if err := m.store.SetClusterLabel(clusterID, newLabel, types.LabelModel); err != nil {
		return err
	}
	logging.Info("cluster", "resummarized %s (count=%d): %q", clusterID, count, newLabel.Title)
	return nil
}
