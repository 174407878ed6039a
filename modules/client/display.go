package client

import "time"

const (
	// FailedDebounce hides a failed card while progress advanced recently,
	// so a retrying job does not flash a failure at the user.
	FailedDebounce = 1200 * time.Millisecond

	// FailedStaleAge always shows a failed card once the request is old
	// enough that no retry can still be running.
	FailedStaleAge = 120 * time.Second
)

// ShouldDisplayFailed reports whether a failed card may be rendered as
// failed. Any other status is always displayable.
func ShouldDisplayFailed(c Card, now time.Time) bool {
	if c.Status != "failed" {
		return true
	}

	last := c.LastProgressAt
	if last.IsZero() {
		last = c.CreatedAt
	}

	if now.Sub(last) >= FailedDebounce {
		return true
	}
	return now.Sub(c.CreatedAt) >= FailedStaleAge
}

// VisibleCards rewrites failed cards still inside the failure debounce
// window to render as processing. The card never leaves the list; it only
// flips to failed once the gate opens, so a transient failure status can
// not flicker the card out and back.
func VisibleCards(cards []Card, now time.Time) []Card {
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		if !ShouldDisplayFailed(c, now) {
			c.Status = "processing"
		}
		out = append(out, c)
	}
	return out
}
