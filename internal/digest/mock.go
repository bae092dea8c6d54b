package digest

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/signalboard/signalboard/internal/types"
)

// MockMarkdown is a canned digest used by the mock data routes to exercise
// the digest UI without generation.
const MockMarkdown = `# Daily Digest

## Top themes
- API reliability: elevated 504s and latency under moderate load
- Documentation clarity: confusion around API tokens and onboarding
- Billing accuracy: invoice mismatches and double charges

## Fires
- API timeouts affecting production workloads
- Android 14 SDK crash blocking releases

## Suggested next actions
- Triage API latency regression and post status update
- Publish a short auth/token setup guide
- Audit recent billing changes and reconcile invoices
`

// RunMock persists the canned digest keyed to now's date.
func (s *Synthesizer) RunMock(now time.Time) (types.Digest, error) {
	d := types.Digest{
		ID:        uuid.NewString(),
		Date:      now.In(s.loc).Format("2006-01-02"),
		ContentMD: MockMarkdown,
	}
	if err := s.store.InsertDigest(d); err != nil {
		return types.Digest{}, fmt.Errorf("persist mock digest: %w", err)
	}
	return d, nil
}
