package cluster

import (
	"context"
	"fmt"

	"github.com/signalboard/signalboard/internal/classify"
	"github.com/signalboard/signalboard/internal/embedding"
	"github.com/signalboard/signalboard/internal/logging"
	"github.com/signalboard/signalboard/internal/store"
	"github.com/signalboard/signalboard/internal/types"
	"github.com/signalboard/signalboard/internal/vector"
)

// Processor runs the full pipeline for one stored feedback item: embed,
// resolve a cluster decision, classify, persist, update aggregates.
type Processor struct {
	store      *store.Store
	index      *vector.Index
	embedder   *embedding.Resolver
	resolver   *Resolver
	classifier *classify.Classifier
	manager    *Manager
}

// NewProcessor wires the pipeline stages together.
func NewProcessor(st *store.Store, idx *vector.Index, emb *embedding.Resolver, res *Resolver, cls *classify.Classifier, mgr *Manager) *Processor {
	return &Processor{store: st, index: idx, embedder: emb, resolver: res, classifier: cls, manager: mgr}
}

// Process handles one feedback item by id. A missing row is not an error.
func (p *Processor) Process(ctx context.Context, feedbackID string) error {
	item, err := p.store.GetFeedback(feedbackID)
	if err != nil {
		return fmt.Errorf("load feedback %s: %w", feedbackID, err)
	}
	if item == nil {
		logging.Debug("process", "feedback %s not found, skipping", feedbackID)
		return nil
	}

	emb := p.embedder.Resolve(item.Text)
	if emb.Status == types.CapabilityFailed {
		logging.Error("process", "embedding failed for %s, using keyword path", item.ID)
	}

	d, err := p.resolver.Resolve(item, emb)
	if err != nil {
		return fmt.Errorf("resolve cluster for %s: %w", item.ID, err)
	}

	c := p.classifier.Classify(ctx, item.Text)
	if err := p.store.ApplyClassification(item.ID, c, d.ClusterID, d.DuplicateOf); err != nil {
		return fmt.Errorf("persist classification for %s: %w", item.ID, err)
	}

	if err := p.manager.Apply(item, d); err != nil {
		return fmt.Errorf("apply cluster update for %s: %w", item.ID, err)
	}

	if d.UpsertVector {
		err := p.index.Upsert(emb.Vector, vector.Metadata{
			FeedbackID: item.ID,
			ClusterID:  d.ClusterID,
			Source:     item.Source,
			CreatedAt:  item.CreatedAt,
		})
		if err != nil {
			logging.Error("process", "vector upsert failed for %s: %v", item.ID, err)
		}
	}

	if d.Tier != types.TierDuplicate && d.ClusterID != "" {
		if err := p.manager.MaybeSummarize(ctx, d.ClusterID); err != nil {
			logging.Error("process", "summarize check failed for %s: %v", d.ClusterID, err)
		}
	}

	logging.Debug("process", "done %s: cluster=%s tier=%d dup=%s", item.ID, d.ClusterID, d.Tier, d.DuplicateOf)
	return nil
}
