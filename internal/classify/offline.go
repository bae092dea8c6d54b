package classify

import (
	"strings"
	"unicode/utf8"

	"github.com/tsawler/prose/v3"

	"github.com/signalboard/signalboard/internal/types"
)

// offlineClassification is the dev-mode classifier: keyword heuristics over the
// raw text, no model call. Results are stable for a given input.
func offlineClassification(text string) types.Classification {
	lower := strings.ToLower(text)

	sentiment := types.SentimentNeutral
	switch {
	case strings.Contains(lower, "love") || strings.Contains(lower, "great"):
		sentiment = types.SentimentPositive
	case strings.Contains(lower, "hate") || strings.Contains(lower, "bug") || strings.Contains(lower, "broken"):
		sentiment = types.SentimentNegative
	}

	urgency := types.UrgencyLow
	switch {
	case strings.Contains(lower, "crash") || strings.Contains(lower, "down"):
		urgency = types.UrgencyHigh
	case strings.Contains(lower, "slow") || strings.Contains(lower, "urgent"):
		urgency = types.UrgencyMedium
	}

	value := types.ValueLow
	switch {
	case strings.Contains(lower, "billing") || strings.Contains(lower, "upgrade"):
		value = types.ValueHigh
	case strings.Contains(lower, "feature") || strings.Contains(lower, "api"):
		value = types.ValueMedium
	}

	summary := text
	if len(summary) > 120 {
		// Back the cut up to a rune boundary so emoji in the text cannot
		// produce an invalid UTF-8 summary.
		cut := 117
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut] + "..."
	}

	return types.Classification{
		Sentiment: sentiment,
		Urgency:   urgency,
		Value:     value,
		Summary:   summary,
		Tags:      offlineTags(text),
	}
}

// offlineTags pulls named entities out of the text for tag suggestions. When
// nothing is recognized the classification keeps a single marker tag so
// downstream consumers never see an empty list.
func offlineTags(text string) []string {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return []string{"mock"}
	}
	seen := make(map[string]bool)
	var tags []string
	for _, ent := range doc.Entities() {
		name := strings.ToLower(strings.TrimSpace(ent.Text))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		tags = append(tags, name)
		if len(tags) == 5 {
			break
		}
	}
	if len(tags) == 0 {
		return []string{"mock"}
	}
	return tags
}
