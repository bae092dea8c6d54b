package cluster

import (
	"context"
	"strings"

	"github.com/signalboard/signalboard/internal/llm"
	"github.com/signalboard/signalboard/internal/logging"
	"github.com/signalboard/signalboard/internal/types"
)

const summarizeSystemPrompt = "Return ONLY valid JSON. Schema: { title: string, theme_summary: string }"

// Summarizer condenses a cluster's recent item summaries into a fresh label.
type Summarizer struct {
	llm     llm.Completer
	devMode bool
}

// NewSummarizer builds a summarizer. A nil completer means the capability is
// absent; in dev mode a deterministic stand-in label is produced instead.
func NewSummarizer(completer llm.Completer, devMode bool) *Summarizer {
	return &Summarizer{llm: completer, devMode: devMode}
}

type summaryPayload struct {
	Title        *string `json:"title"`
	ThemeSummary *string `json:"theme_summary"`
}

// Summarize returns a new label for the cluster. A non-OK status means the
// caller should retain the cluster's existing label.
func (s *Summarizer) Summarize(ctx context.Context, summaries []string) (types.ClusterLabel, types.CapabilityStatus) {
	if s.llm == nil {
		if s.devMode {
			n := len(summaries)
			if n > 3 {
				n = 3
			}
			return types.ClusterLabel{
				Title:        "Mixed feedback",
				ThemeSummary: strings.Join(summaries[:n], " "),
			}, types.CapabilityOK
		}
		return types.ClusterLabel{}, types.CapabilityAbsent
	}

	prompt := "Summarize these feedback summaries into a theme:\n" + strings.Join(summaries, "\n")
	raw, err := s.llm.Complete(ctx, summarizeSystemPrompt, prompt, 200)
	if err != nil {
		logging.Error("cluster", "summarization call failed: %v", err)
		return types.ClusterLabel{}, types.CapabilityFailed
	}

	var payload summaryPayload
	if !llm.SalvageJSON(raw, &payload) {
		logging.Debug("cluster", "unparseable summary output: %s", logging.Truncate(raw, 200))
		return types.ClusterLabel{}, types.CapabilityFailed
	}

	out := types.ClusterLabel{Title: "Mixed feedback", ThemeSummary: "General feedback theme."}
	if payload.Title != nil && *payload.Title != "" {
		out.Title = *payload.Title
	}
	if payload.ThemeSummary != nil && *payload.ThemeSummary != "" {
		out.ThemeSummary = *payload.ThemeSummary
	}
	return out, types.CapabilityOK
}
