// Package cluster assigns feedback items to clusters and maintains cluster
// labels, counts, and summaries.
package cluster

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/signalboard/signalboard/internal/embedding"
	"github.com/signalboard/signalboard/internal/label"
	"github.com/signalboard/signalboard/internal/logging"
	"github.com/signalboard/signalboard/internal/store"
	"github.com/signalboard/signalboard/internal/types"
	"github.com/signalboard/signalboard/internal/vector"
)

// Similarity tiers over cosine similarity of the best neighbor.
const (
	DuplicateThreshold = 0.90
	ClusterThreshold   = 0.82
	neighborK          = 10
)

// Resolver decides which cluster an incoming item belongs to.
type Resolver struct {
	store   *store.Store
	index   *vector.Index
	labeler *label.Labeler
}

// NewResolver builds a resolver over the given store, vector index, and
// keyword labeler.
func NewResolver(st *store.Store, idx *vector.Index, lb *label.Labeler) *Resolver {
	return &Resolver{store: st, index: idx, labeler: lb}
}

// Resolve picks a cluster for item given its embedding result, creating one
// when nothing qualifies. Only the single best neighbor is tiered; weaker
// neighbors matter only for cluster reuse on fallthrough.
func (r *Resolver) Resolve(item *types.FeedbackItem, emb embedding.Result) (types.Decision, error) {
	d := types.Decision{Tier: types.TierNone, ClusterID: item.ClusterID}

	if !emb.OK() {
		if d.ClusterID == "" {
			if err := r.assignByTitle(item, &d); err != nil {
				return d, err
			}
		}
		return d, nil
	}

	d.UpsertVector = true
	matches, err := r.index.Query(emb.Vector, neighborK)
	if err != nil {
		logging.Error("cluster", "neighbor query failed for %s: %v", item.ID, err)
		matches = nil
	}

	var best *vector.Match
	if len(matches) > 0 {
		best = &matches[0]
	}

	if best != nil {
		switch {
		case best.Score >= DuplicateThreshold:
			d.Tier = types.TierDuplicate
			d.DuplicateOf = best.Metadata.FeedbackID
			d.ClusterID = best.Metadata.ClusterID
		case best.Score >= ClusterThreshold:
			d.Tier = types.TierCluster
			d.ClusterID = best.Metadata.ClusterID
		}
	}

	if d.ClusterID == "" {
		// Sub-threshold neighbors still anchor the item to a known cluster
		// before falling back to the keyword title.
		if best != nil && best.Metadata.ClusterID != "" {
			d.ClusterID = best.Metadata.ClusterID
		} else if err := r.assignByTitle(item, &d); err != nil {
			return d, err
		}
	}
	return d, nil
}

// assignByTitle reuses the cluster whose title matches the keyword-derived
// label, or creates a fresh one carrying that label.
func (r *Resolver) assignByTitle(item *types.FeedbackItem, d *types.Decision) error {
	derived := r.labeler.Derive(item.Text)
	existing, err := r.store.ClusterIDByTitle(derived.Title)
	if err != nil {
		return fmt.Errorf("cluster lookup by title: %w", err)
	}
	if existing != "" {
		d.ClusterID = existing
		return nil
	}

	c := &types.Cluster{
		ClusterID:    "c_" + uuid.NewString(),
		Title:        derived.Title,
		ThemeSummary: derived.ThemeSummary,
		Count:        0,
		LastSeenAt:   item.CreatedAt,
		LabelStatus:  types.LabelKeyword,
	}
	if err := r.store.InsertCluster(c); err != nil {
		return fmt.Errorf("create cluster: %w", err)
	}
	d.ClusterID = c.ClusterID
	d.CreatedCluster = true
	logging.Debug("cluster", "created %s (%s) for %s", c.ClusterID, c.Title, item.ID)
	return nil
}
