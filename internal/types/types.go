package types

import "time"

// Sentiment of a classified feedback item
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Valid reports whether s is one of the three known sentiments
func (s Sentiment) Valid() bool {
	return s == SentimentPositive || s == SentimentNeutral || s == SentimentNegative
}

// Urgency of a classified feedback item
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Valid reports whether u is one of the three known urgency levels
func (u Urgency) Valid() bool {
	return u == UrgencyLow || u == UrgencyMedium || u == UrgencyHigh
}

// Value is the estimated business value of a feedback item
type Value string

const (
	ValueLow    Value = "low"
	ValueMedium Value = "medium"
	ValueHigh   Value = "high"
)

// Valid reports whether v is one of the three known value levels
func (v Value) Valid() bool {
	return v == ValueLow || v == ValueMedium || v == ValueHigh
}

// Sources is the fixed set of ingestion channels
var Sources = []string{"support", "discord", "github", "email", "twitter", "forum"}

// DefaultSource is applied when an ingested item names an unknown channel
const DefaultSource = "support"

// NormalizeSource maps unknown channels to the default
func NormalizeSource(s string) string {
	for _, known := range Sources {
		if s == known {
			return s
		}
	}
	return DefaultSource
}

// Classification is the structured output of the classification capability
type Classification struct {
	Sentiment Sentiment `json:"sentiment"`
	Urgency   Urgency   `json:"urgency"`
	Value     Value     `json:"value"`
	Summary   string    `json:"summary"`
	Tags      []string  `json:"tags"`
}

// DefaultClassification is the context-insensitive fallback used when the
// classification capability is absent, fails, or returns unparseable output
func DefaultClassification() Classification {
	return Classification{
		Sentiment: SentimentNeutral,
		Urgency:   UrgencyMedium,
		Value:     ValueMedium,
		Summary:   "General product feedback.",
		Tags:      []string{"general"},
	}
}

// FeedbackItem is one piece of raw feedback plus its processing results.
// Zero-value fields (empty Sentiment, ClusterID, ...) mean "not yet processed".
type FeedbackItem struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`

	Sentiment   Sentiment `json:"sentiment,omitempty"`
	Urgency     Urgency   `json:"urgency,omitempty"`
	Value       Value     `json:"value,omitempty"`
	Summary     string    `json:"summary,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	ClusterID   string    `json:"cluster_id,omitempty"`
	DuplicateOf string    `json:"duplicate_of,omitempty"`
}

// IsDuplicate reports whether this item was flagged as a repeat of another.
// Duplicates are excluded from every cluster count, breakdown, and summary input.
func (f *FeedbackItem) IsDuplicate() bool {
	return f.DuplicateOf != ""
}

// LabelStatus tracks how a cluster got its current title/theme_summary.
// Replaces sentinel-string comparison: the placeholder strings below are kept
// as initial display values but are never used for control flow.
type LabelStatus string

const (
	LabelUnlabeled LabelStatus = "unlabeled" // placeholder label, pending replacement
	LabelKeyword   LabelStatus = "keyword"   // derived by the keyword labeler
	LabelModel     LabelStatus = "model"     // written by the summarization capability
)

// Placeholder label values assigned at cluster creation when no derived label exists
const (
	PlaceholderTitle   = "New theme"
	PlaceholderSummary = "Cluster created from feedback."
)

// Cluster is a recurring feedback theme. Count and LastSeenAt are denormalized
// and drift under concurrent processing; the recount job is the authority.
type Cluster struct {
	ClusterID    string      `json:"cluster_id"`
	Title        string      `json:"title"`
	ThemeSummary string      `json:"theme_summary"`
	Count        int         `json:"count"`
	LastSeenAt   time.Time   `json:"last_seen_at"`
	LabelStatus  LabelStatus `json:"label_status"`
}

// ClusterLabel is a (title, theme_summary) pair
type ClusterLabel struct {
	Title        string `json:"title"`
	ThemeSummary string `json:"theme_summary"`
}

// Digest is one generated daily report. Multiple rows may share a date;
// each represents a single generation run.
type Digest struct {
	ID        string `json:"id"`
	Date      string `json:"date"` // YYYY-MM-DD in the configured local timezone
	ContentMD string `json:"content_md"`
}

// CapabilityStatus tags the outcome of an external capability call so that
// fallback logic can be exhaustive instead of exception-driven
type CapabilityStatus int

const (
	CapabilityOK     CapabilityStatus = iota // usable output obtained
	CapabilityAbsent                         // capability not configured in this environment
	CapabilityFailed                         // call or decode failed
)

// MatchTier classifies the best vector match for an incoming item
type MatchTier int

const (
	TierNone      MatchTier = iota // no qualifying match; keyword fallback path
	TierCluster                    // score in [0.82, 0.90): same theme, counted
	TierDuplicate                  // score >= 0.90: same complaint, suppressed from aggregates
)

// Decision is the clustering outcome for one feedback item
type Decision struct {
	Tier           MatchTier
	ClusterID      string
	DuplicateOf    string // set only for TierDuplicate
	CreatedCluster bool   // a new cluster was created for this item
	UpsertVector   bool   // false when no embedding was obtained
}
