// Package seed provides canned and generated mock feedback for demo and
// development environments.
package seed

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/signalboard/signalboard/internal/store"
	"github.com/signalboard/signalboard/internal/types"
)

// Fixtures is a fixed set of realistic feedback covering every keyword theme.
// Ids are stable so repeated seeding is idempotent.
var Fixtures = []types.FeedbackItem{
	{ID: "fb-001", Source: "github", Author: "alice-dev", CreatedAt: mustTime("2026-01-14T09:12:00Z"),
		Text: "API responses are intermittently returning 504 errors under moderate load. This started after the last deploy."},
	{ID: "fb-002", Source: "support", Author: "customer_4921", CreatedAt: mustTime("2026-01-14T10:45:00Z"),
		Text: "Our production app is timing out when calling your API. We didn’t change anything on our end."},
	{ID: "fb-003", Source: "discord", Author: "latency_issues", CreatedAt: mustTime("2026-01-14T11:02:00Z"),
		Text: "Anyone else seeing super slow API responses today? P95 latency feels way worse."},
	{ID: "fb-004", Source: "forum", Author: "new_user_88", CreatedAt: mustTime("2026-01-13T16:21:00Z"),
		Text: "Getting started docs are confusing. I couldn’t figure out how to generate an API token."},
	{ID: "fb-005", Source: "email", Author: "cto@startup.io", CreatedAt: mustTime("2026-01-13T17:10:00Z"),
		Text: "We struggled onboarding engineers because the documentation jumps between basic and advanced concepts."},
	{ID: "fb-006", Source: "twitter", Author: "@buildfast", CreatedAt: mustTime("2026-01-13T18:03:00Z"),
		Text: "Love the product but the docs need a serious overhaul. Took us hours to find auth examples."},
	{ID: "fb-007", Source: "support", Author: "billing_user_123", CreatedAt: mustTime("2026-01-12T09:40:00Z"),
		Text: "I was charged twice this month and support hasn’t resolved it yet."},
	{ID: "fb-008", Source: "email", Author: "finance@enterprise.com", CreatedAt: mustTime("2026-01-12T10:15:00Z"),
		Text: "Our invoice includes usage we can’t account for. This is blocking internal approval."},
	{ID: "fb-009", Source: "discord", Author: "angry_payer", CreatedAt: mustTime("2026-01-12T10:55:00Z"),
		Text: "Billing dashboard doesn’t match actual usage. This is pretty concerning."},
	{ID: "fb-010", Source: "github", Author: "mobile-dev", CreatedAt: mustTime("2026-01-11T08:33:00Z"),
		Text: "The Android SDK crashes when initializing on Android 14 devices."},
	{ID: "fb-011", Source: "support", Author: "app_team_lead", CreatedAt: mustTime("2026-01-11T09:02:00Z"),
		Text: "Our Android app is crashing on startup after upgrading the SDK."},
	{ID: "fb-012", Source: "forum", Author: "sdk_user", CreatedAt: mustTime("2026-01-11T09:47:00Z"),
		Text: "Any workaround for Android 14 crashes? We’re blocked from shipping."},
	{ID: "fb-013", Source: "twitter", Author: "@frontendfan", CreatedAt: mustTime("2026-01-10T14:12:00Z"),
		Text: "Dark mode for the dashboard would be amazing 👀"},
	{ID: "fb-014", Source: "forum", Author: "ui_feedback", CreatedAt: mustTime("2026-01-10T15:01:00Z"),
		Text: "The dashboard is really bright at night. A dark mode option would help."},
	{ID: "fb-015", Source: "discord", Author: "night_coder", CreatedAt: mustTime("2026-01-10T15:22:00Z"),
		Text: "Please add dark mode. My eyes hurt 😅"},
	{ID: "fb-016", Source: "support", Author: "security_team", CreatedAt: mustTime("2026-01-09T11:30:00Z"),
		Text: "We need SSO support for Okta before we can roll this out company-wide."},
	{ID: "fb-017", Source: "email", Author: "it@enterprise.org", CreatedAt: mustTime("2026-01-09T12:10:00Z"),
		Text: "Lack of SAML/SSO is currently a blocker for adoption."},
	{ID: "fb-018", Source: "github", Author: "api_user", CreatedAt: mustTime("2026-01-08T09:05:00Z"),
		Text: "Rate limit errors are hard to debug. Can we get better error messages?"},
	{ID: "fb-019", Source: "forum", Author: "dx_matters", CreatedAt: mustTime("2026-01-08T10:18:00Z"),
		Text: "When hitting rate limits, it’s unclear how long to wait before retrying."},
	{ID: "fb-020", Source: "twitter", Author: "@happyuser", CreatedAt: mustTime("2026-01-07T16:45:00Z"),
		Text: "Shoutout to the support team, super fast and helpful responses 🙌"},
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

// Insert writes the fixtures, skipping ids already present, and returns the
// ids to process.
func Insert(st *store.Store) ([]string, error) {
	ids := make([]string, 0, len(Fixtures))
	for i := range Fixtures {
		item := Fixtures[i]
		if _, err := st.InsertFeedbackIfAbsent(&item); err != nil {
			return ids, fmt.Errorf("seed %s: %w", item.ID, err)
		}
		ids = append(ids, item.ID)
	}
	return ids, nil
}

var (
	topics = []string{
		"authentication", "billing", "mobile app", "API rate limits", "dashboard UX",
		"onboarding", "docs", "performance", "exporting data", "notifications",
		"search", "integrations",
	}
	verbs = []string{
		"is confusing", "is slow", "is broken", "needs improvement", "works great",
		"feels clunky", "could be faster", "is missing key options",
		"fails intermittently", "looks great",
	}
	contexts = []string{
		"for our team", "during peak hours", "on mobile", "when using SSO",
		"after the last update", "for enterprise accounts", "with large datasets",
	}
	authors = []string{"Alex", "Sam", "Jordan", "Priya", "Lee", "Taylor", "Casey", "Morgan"}
)

// Generate inserts a random batch of synthetic feedback spread over the last
// seven days and returns the new ids. freePlan caps the batch at 150 items
// instead of 500.
func Generate(st *store.Store, freePlan bool) ([]string, error) {
	maxItems := 500
	if freePlan {
		maxItems = 150
	}
	total := randomInt(100, maxItems)

	ids := make([]string, 0, total)
	for i := 0; i < total; i++ {
		item := types.FeedbackItem{
			ID:        uuid.NewString(),
			Source:    pick(types.Sources),
			Author:    pick(authors),
			Text:      fmt.Sprintf("The %s %s %s.", pick(topics), pick(verbs), pick(contexts)),
			CreatedAt: randomWithinDays(7),
		}
		if err := st.InsertFeedback(&item); err != nil {
			return ids, fmt.Errorf("insert generated feedback: %w", err)
		}
		ids = append(ids, item.ID)
	}
	return ids, nil
}

func randomInt(min, max int) int {
	return min + rand.Intn(max-min+1)
}

func pick(items []string) string {
	return items[rand.Intn(len(items))]
}

func randomWithinDays(days int) time.Time {
	offset := time.Duration(rand.Int63n(int64(days) * int64(24*time.Hour)))
	return time.Now().Add(-offset).UTC()
}
