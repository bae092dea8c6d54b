// Package classify turns raw feedback text into a structured classification.
// Model output is treated as untrusted: anything that fails to parse or
// validate is backfilled from the generic defaults, so classification never
// blocks the pipeline.
package classify

import (
	"context"

	"github.com/signalboard/signalboard/internal/llm"
	"github.com/signalboard/signalboard/internal/logging"
	"github.com/signalboard/signalboard/internal/types"
)

const classifySystemPrompt = "You are a classifier that returns ONLY valid JSON. No markdown. Schema: " +
	"{ sentiment: 'positive|neutral|negative', urgency: 'low|medium|high', value: 'low|medium|high', summary: string, tags: string[] }"

// Classifier assigns sentiment, urgency, value, summary, and tags to feedback.
type Classifier struct {
	llm     llm.Completer
	devMode bool
}

// New builds a classifier. Pass a nil completer when no model is configured;
// the classifier then returns offline heuristics in dev mode and the generic
// defaults otherwise.
func New(completer llm.Completer, devMode bool) *Classifier {
	return &Classifier{llm: completer, devMode: devMode}
}

// classificationPayload mirrors the model's response schema. Pointer fields
// distinguish "absent" from "empty" for backfill.
type classificationPayload struct {
	Sentiment *string  `json:"sentiment"`
	Urgency   *string  `json:"urgency"`
	Value     *string  `json:"value"`
	Summary   *string  `json:"summary"`
	Tags      []string `json:"tags"`
}

// Classify returns a classification for text. It never returns an error:
// every failure mode degrades to a usable classification.
func (c *Classifier) Classify(ctx context.Context, text string) types.Classification {
	if c.llm == nil {
		if c.devMode {
			return offlineClassification(text)
		}
		return types.DefaultClassification()
	}

	prompt := "Classify the feedback and respond with JSON only:\n" + text
	raw, err := c.llm.Complete(ctx, classifySystemPrompt, prompt, 1024)
	if err != nil {
		logging.Error("classify", "model call failed, using defaults: %v", err)
		return types.DefaultClassification()
	}

	var payload classificationPayload
	if !llm.SalvageJSON(raw, &payload) {
		logging.Debug("classify", "unparseable model output: %s", logging.Truncate(raw, 200))
		return types.DefaultClassification()
	}
	return mergeWithDefaults(payload)
}

// mergeWithDefaults backfills missing or invalid fields one at a time, keeping
// whatever the model got right.
func mergeWithDefaults(p classificationPayload) types.Classification {
	out := types.DefaultClassification()
	if p.Sentiment != nil {
		if s := types.Sentiment(*p.Sentiment); s.Valid() {
			out.Sentiment = s
		}
	}
	if p.Urgency != nil {
		if u := types.Urgency(*p.Urgency); u.Valid() {
			out.Urgency = u
		}
	}
	if p.Value != nil {
		if v := types.Value(*p.Value); v.Valid() {
			out.Value = v
		}
	}
	if p.Summary != nil && *p.Summary != "" {
		out.Summary = *p.Summary
	}
	if p.Tags != nil {
		out.Tags = p.Tags
	}
	return out
}
