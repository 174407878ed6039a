package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailedHiddenRightAfterProgress(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	progressAt := created.Add(10 * time.Second)

	card := Card{
		SessionID:      "s1",
		Status:         "failed",
		Progress:       []int{40},
		CreatedAt:      created,
		LastProgressAt: progressAt,
	}

	// failure reported 0.5s after the last progress advance: still hidden
	now := progressAt.Add(500 * time.Millisecond)
	assert.False(t, ShouldDisplayFailed(card, now))

	// past the debounce window the failure shows
	now = progressAt.Add(FailedDebounce)
	assert.True(t, ShouldDisplayFailed(card, now))
}

func TestFailedShownWhenStale(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	card := Card{
		SessionID:      "s1",
		Status:         "failed",
		Progress:       []int{40},
		CreatedAt:      created,
		LastProgressAt: created.Add(10 * time.Second),
	}

	// 130s after creation with no further progress: shown as failed
	now := created.Add(130 * time.Second)
	assert.True(t, ShouldDisplayFailed(card, now))
}

func TestFailedWithZeroProgressTimestampUsesCreatedAt(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	card := Card{SessionID: "s1", Status: "failed", CreatedAt: created}

	assert.False(t, ShouldDisplayFailed(card, created.Add(time.Second)))
	assert.True(t, ShouldDisplayFailed(card, created.Add(2*time.Second)))
}

func TestNonFailedAlwaysDisplayable(t *testing.T) {
	now := time.Now().UTC()
	for _, status := range []string{"pending", "processing", "completed", "user_cancelled"} {
		card := Card{Status: status, CreatedAt: now, LastProgressAt: now}
		assert.True(t, ShouldDisplayFailed(card, now), status)
	}
}

func TestVisibleCardsRewritesSuppressedFailureToProcessing(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	now := created.Add(500 * time.Millisecond)

	cards := []Card{
		{SessionID: "s1", Status: "processing", CreatedAt: created, LastProgressAt: created},
		{SessionID: "s2", Status: "failed", CreatedAt: created, LastProgressAt: created},
	}

	visible := VisibleCards(cards, now)

	// the suppressed failure stays in place, rendered as processing
	require.Len(t, visible, 2)
	assert.Equal(t, "processing", visible[0].Status)
	assert.Equal(t, "s2", visible[1].SessionID)
	assert.Equal(t, "processing", visible[1].Status)
}

func TestVisibleCardsShowsFailureOnceGateOpens(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	cards := []Card{
		{SessionID: "s2", Status: "failed", CreatedAt: created, LastProgressAt: created},
	}

	visible := VisibleCards(cards, created.Add(2*time.Second))

	require.Len(t, visible, 1)
	assert.Equal(t, "failed", visible[0].Status)
}
