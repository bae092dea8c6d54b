// Package reconcile holds the maintenance jobs that repair cluster labels and
// aggregates from ground-truth feedback rows. They run on demand, off the
// ingestion path.
package reconcile

import (
	"fmt"
	"strings"
	"sync"

	"github.com/signalboard/signalboard/internal/label"
	"github.com/signalboard/signalboard/internal/logging"
	"github.com/signalboard/signalboard/internal/store"
	"github.com/signalboard/signalboard/internal/types"
)

// Jobs serializes the maintenance operations. Live item processing may run
// concurrently; recount is the authority that repairs any resulting drift.
type Jobs struct {
	store   *store.Store
	labeler *label.Labeler
	mu      sync.Mutex
}

// New builds the job runner.
func New(st *store.Store, lb *label.Labeler) *Jobs {
	return &Jobs{store: st, labeler: lb}
}

// Refresh re-derives every cluster's label from its most recent non-duplicate
// item's text and deletes clusters with no remaining items. Returns the number
// of clusters relabeled.
func (j *Jobs) Refresh() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	clusters, err := j.store.ClustersByLastSeen()
	if err != nil {
		return 0, fmt.Errorf("list clusters: %w", err)
	}

	updated := 0
	for _, c := range clusters {
		text, err := j.store.LatestClusterText(c.ClusterID)
		if err != nil {
			return updated, err
		}
		if text == "" {
			if err := j.store.DeleteCluster(c.ClusterID); err != nil {
				return updated, err
			}
			logging.Debug("reconcile", "refresh deleted empty cluster %s", c.ClusterID)
			continue
		}
		derived := j.labeler.Derive(text)
		if err := j.store.SetClusterLabel(c.ClusterID, derived, types.LabelKeyword); err != nil {
			return updated, err
		}
		updated++
	}
	logging.Info("reconcile", "refresh relabeled %d clusters", updated)
	return updated, nil
}

// Merge collapses clusters that share a normalized title into the
// most-recently-seen one, reassigning the losers' feedback rows, then runs
// Recount to restore authoritative aggregates. Returns the number of clusters
// removed.
func (j *Jobs) Merge() (int, error) {
	j.mu.Lock()
	clusters, err := j.store.ClustersByLastSeen()
	if err != nil {
		j.mu.Unlock()
		return 0, fmt.Errorf("list clusters: %w", err)
	}

	canonicalByTitle := make(map[string]string)
	var toDelete []string

	for _, c := range clusters {
		title := c.Title
		if c.LabelStatus == types.LabelUnlabeled {
			text, err := j.store.LatestClusterText(c.ClusterID)
			if err != nil {
				j.mu.Unlock()
				return 0, err
			}
			if text == "" {
				toDelete = append(toDelete, c.ClusterID)
				continue
			}
			derived := j.labeler.Derive(text)
			if err := j.store.SetClusterLabel(c.ClusterID, derived, types.LabelKeyword); err != nil {
				j.mu.Unlock()
				return 0, err
			}
			title = derived.Title
		}

		key := strings.ToLower(strings.TrimSpace(title))
		if key == "" {
			toDelete = append(toDelete, c.ClusterID)
			continue
		}
		canonical, ok := canonicalByTitle[key]
		if !ok {
			canonicalByTitle[key] = c.ClusterID
			continue
		}
		if err := j.store.ReassignCluster(c.ClusterID, canonical); err != nil {
			j.mu.Unlock()
			return 0, err
		}
		toDelete = append(toDelete, c.ClusterID)
	}

	for _, id := range toDelete {
		if err := j.store.DeleteCluster(id); err != nil {
			j.mu.Unlock()
			return 0, err
		}
	}
	j.mu.Unlock()

	if _, err := j.Recount(); err != nil {
		return len(toDelete), err
	}
	logging.Info("reconcile", "merge removed %d clusters", len(toDelete))
	return len(toDelete), nil
}

// Recount recomputes every cluster's count and last_seen_at from its
// non-duplicate feedback rows, deleting clusters whose recomputed count is
// zero. Returns the number of clusters removed.
func (j *Jobs) Recount() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ids, err := j.store.AllClusterIDs()
	if err != nil {
		return 0, fmt.Errorf("list cluster ids: %w", err)
	}

	removed := 0
	for _, id := range ids {
		count, lastSeen, err := j.store.ClusterGroundTruth(id)
		if err != nil {
			return removed, err
		}
		if count == 0 {
			if err := j.store.DeleteCluster(id); err != nil {
				return removed, err
			}
			removed++
			continue
		}
		if err := j.store.SetClusterStats(id, count, lastSeen); err != nil {
			return removed, err
		}
	}
	logging.Info("reconcile", "recount removed %d empty clusters", removed)
	return removed, nil
}
