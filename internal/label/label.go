// Package label implements the deterministic keyword-to-theme mapping used
// whenever no vector match resolves a cluster. Rules are ordered; the first
// match wins; identical text always yields the identical label, which is what
// makes title-based cluster reuse stable.
package label

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalboard/signalboard/internal/types"
)

// Rule maps keywords to a theme label. A rule matches when every keyword in
// All is present AND (Any is empty or at least one keyword in Any is present).
// Matching is case-insensitive substring.
type Rule struct {
	Any     []string `yaml:"any,omitempty"`
	All     []string `yaml:"all,omitempty"`
	Title   string   `yaml:"title"`
	Summary string   `yaml:"summary"`
}

func (r Rule) matches(lower string) bool {
	for _, kw := range r.All {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			return false
		}
	}
	if len(r.Any) == 0 {
		return len(r.All) > 0
	}
	for _, kw := range r.Any {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// Labeler holds an ordered rule set plus the generic fallback theme.
type Labeler struct {
	rules []Rule
}

// Default returns the built-in rule set.
func Default() *Labeler {
	return &Labeler{rules: defaultRules}
}

// FromFile loads an ordered rule set from a YAML file. An empty file yields
// only the generic fallback theme.
func FromFile(path string) (*Labeler, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	for i, r := range rules {
		if r.Title == "" {
			return nil, fmt.Errorf("rule %d: missing title", i)
		}
	}
	return &Labeler{rules: rules}, nil
}

// Derive maps item text to a (title, theme_summary) pair. First matching rule
// wins; unmatched text falls to the generic product-feedback theme.
func (l *Labeler) Derive(text string) types.ClusterLabel {
	lower := strings.ToLower(text)
	for _, r := range l.rules {
		if r.matches(lower) {
			return types.ClusterLabel{Title: r.Title, ThemeSummary: r.Summary}
		}
	}
	return types.ClusterLabel{
		Title:        "Product feedback",
		ThemeSummary: "General product feedback theme.",
	}
}

var defaultRules = []Rule{
	{
		Any:     []string{"504", "timeout", "latency"},
		Title:   "API reliability",
		Summary: "API timeouts and latency regressions.",
	},
	{
		Any:     []string{"docs", "documentation", "token"},
		Title:   "Documentation clarity",
		Summary: "Users struggle with docs and onboarding steps.",
	},
	{
		Any:     []string{"billing", "invoice", "charged"},
		Title:   "Billing accuracy",
		Summary: "Billing and invoice discrepancies reported.",
	},
	{
		Any:     []string{"android", "sdk"},
		Title:   "Android stability",
		Summary: "Android SDK crashes and stability issues.",
	},
	{
		Any:     []string{"dark mode"},
		Title:   "Dark mode request",
		Summary: "Requests for a darker dashboard theme.",
	},
	{
		Any:     []string{"sso", "saml", "okta"},
		Title:   "SSO adoption blockers",
		Summary: "Enterprise SSO requirements blocking rollout.",
	},
	{
		Any:     []string{"rate limit"},
		Title:   "Rate limit UX",
		Summary: "Unclear rate limit errors and retry guidance.",
	},
	{
		All:     []string{"support"},
		Any:     []string{"fast", "helpful"},
		Title:   "Support praise",
		Summary: "Positive feedback on support responsiveness.",
	},
}
