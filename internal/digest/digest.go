// Package digest builds the daily markdown digest from a trailing 24-hour
// window of feedback activity.
package digest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/signalboard/signalboard/internal/llm"
	"github.com/signalboard/signalboard/internal/logging"
	"github.com/signalboard/signalboard/internal/store"
	"github.com/signalboard/signalboard/internal/types"
)

const (
	windowHours    = 24
	topClusterN    = 5
	urgentItemN    = 10
	digestMaxToken = 500
)

const digestSystemPrompt = "Generate a markdown digest with sections: Top themes, Fires, Suggested next actions. Return ONLY markdown."

// Synthesizer generates and persists daily digests.
type Synthesizer struct {
	store *store.Store
	llm   llm.Completer
	loc   *time.Location
}

// NewSynthesizer builds a synthesizer. A nil completer means every digest uses
// the deterministic fallback.
func NewSynthesizer(st *store.Store, completer llm.Completer, loc *time.Location) *Synthesizer {
	return &Synthesizer{store: st, llm: completer, loc: loc}
}

type urgentEntry struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Summary   string `json:"summary"`
	ClusterID string `json:"cluster_id"`
}

type digestPayload struct {
	WindowHours     int                   `json:"window_hours"`
	TopClusters     []store.WindowCluster `json:"top_clusters"`
	UrgentHighValue []urgentEntry         `json:"urgent_high_value"`
}

// Run computes the window ending at now, generates the digest markdown, and
// appends a digest row keyed to now's date in the configured timezone.
func (s *Synthesizer) Run(ctx context.Context, now time.Time) (types.Digest, error) {
	payload, err := s.buildPayload(now)
	if err != nil {
		return types.Digest{}, err
	}

	md := s.generate(ctx, payload)
	d := types.Digest{
		ID:        uuid.NewString(),
		Date:      now.In(s.loc).Format("2006-01-02"),
		ContentMD: md,
	}
	if err := s.store.InsertDigest(d); err != nil {
		return types.Digest{}, fmt.Errorf("persist digest: %w", err)
	}
	logging.Info("digest", "generated digest for %s (%d clusters, %d fires)",
		d.Date, len(payload.TopClusters), len(payload.UrgentHighValue))
	return d, nil
}

func (s *Synthesizer) buildPayload(now time.Time) (digestPayload, error) {
	since := now.Add(-windowHours * time.Hour)

	top, err := s.store.WindowTopClusters(since, topClusterN)
	if err != nil {
		return digestPayload{}, fmt.Errorf("window clusters: %w", err)
	}
	urgent, err := s.store.WindowUrgentHighValue(since, urgentItemN)
	if err != nil {
		return digestPayload{}, fmt.Errorf("window urgent items: %w", err)
	}

	p := digestPayload{WindowHours: windowHours, TopClusters: top}
	for _, item := range urgent {
		p.UrgentHighValue = append(p.UrgentHighValue, urgentEntry{
			ID:        item.ID,
			Source:    item.Source,
			Summary:   item.Summary,
			ClusterID: item.ClusterID,
		})
	}
	return p, nil
}

// generate asks the model for the digest markdown, falling back to the
// deterministic rendering whenever the capability is absent, fails, or returns
// nothing usable.
func (s *Synthesizer) generate(ctx context.Context, p digestPayload) string {
	if s.llm == nil {
		return fallbackMarkdown(p)
	}

	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fallbackMarkdown(p)
	}
	prompt := "Create a daily digest using this JSON payload:\n" + string(raw)

	md, err := s.llm.Complete(ctx, digestSystemPrompt, prompt, digestMaxToken)
	if err != nil {
		logging.Error("digest", "generation call failed, using fallback: %v", err)
		return fallbackMarkdown(p)
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return fallbackMarkdown(p)
	}
	return md + "\n"
}

// fallbackMarkdown renders the payload directly. It always carries the same
// three section headers the model is instructed to produce.
func fallbackMarkdown(p digestPayload) string {
	var b strings.Builder
	b.WriteString("# Daily Digest\n\n")

	b.WriteString("## Top themes\n")
	if len(p.TopClusters) == 0 {
		b.WriteString("- None\n")
	}
	for _, c := range p.TopClusters {
		title := c.Title
		if title == "" {
			title = c.ClusterID
		}
		fmt.Fprintf(&b, "- %s (%d items)\n", title, c.Count)
	}

	b.WriteString("\n## Fires\n")
	if len(p.UrgentHighValue) == 0 {
		b.WriteString("- None\n")
	}
	for _, item := range p.UrgentHighValue {
		summary := item.Summary
		if summary == "" {
			summary = item.ID
		}
		fmt.Fprintf(&b, "- [%s] %s\n", item.Source, summary)
	}

	b.WriteString("\n## Suggested next actions\n")
	b.WriteString("- Review top themes\n")
	b.WriteString("- Triage urgent items\n")
	b.WriteString("- Follow up with users\n")
	return b.String()
}
