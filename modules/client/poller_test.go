package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPoller(api *fakeAPI) (*Poller, *Store) {
	store := NewStore()
	p := NewPoller(store, api, "user-1")
	return p, store
}

func TestPollHistoryEntersPollingState(t *testing.T) {
	api := &fakeAPI{
		history: []Record{
			{SessionID: "s1", Status: "processing", CreatedAt: time.Now().UTC()},
		},
		credits: 7,
	}
	p, store := newTestPoller(api)

	p.pollHistory(context.Background())

	assert.True(t, p.Polling())
	state := store.Snapshot()
	require.Len(t, state.Cards, 1)
	assert.Equal(t, 7, state.Credits)
}

func TestPollHistoryIdleWhenNothingActive(t *testing.T) {
	api := &fakeAPI{
		history: []Record{
			{SessionID: "s1", Status: "completed", CreatedAt: time.Now().UTC()},
		},
	}
	p, _ := newTestPoller(api)

	p.pollHistory(context.Background())

	assert.False(t, p.Polling())
}

func TestTerminalPollingCutoff(t *testing.T) {
	api := &fakeAPI{
		history: []Record{
			{SessionID: "s1", Status: "processing", Outputs: 1, CreatedAt: time.Now().UTC()},
		},
		progress: map[string]*ProgressResult{
			"s1": {SessionID: "s1", Status: "completed", Progress: []int{100}, URLs: []string{"https://cdn/a.webp"}},
		},
	}
	p, store := newTestPoller(api)

	p.pollHistory(context.Background())
	require.True(t, p.Polling())

	// the poll that observes the terminal state flips the poller to idle
	p.pollProgress(context.Background())
	assert.False(t, p.Polling())
	assert.Empty(t, store.ActiveSessions())

	// once idle, a progress tick issues no requests
	calls := api.progressCalls
	p.pollProgress(context.Background())
	assert.Equal(t, calls, api.progressCalls)
}

func TestApplyProgressValueEquality(t *testing.T) {
	api := &fakeAPI{}
	p, store := newTestPoller(api)

	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := created.Add(time.Second)
	p.now = func() time.Time { return current }

	store.Update(func(st *State) {
		st.Cards = []Card{{
			SessionID:      "s1",
			Status:         "processing",
			Outputs:        1,
			Progress:       []int{40},
			CreatedAt:      created,
			LastProgressAt: created,
		}}
	})

	// identical progress: LastProgressAt must not advance
	p.applyProgress("s1", &ProgressResult{Status: "processing", Progress: []int{40}})
	assert.Equal(t, created, store.Snapshot().Cards[0].LastProgressAt)

	// advanced progress: value and timestamp both move
	current = created.Add(2 * time.Second)
	p.applyProgress("s1", &ProgressResult{Status: "processing", Progress: []int{60}})
	state := store.Snapshot()
	assert.Equal(t, []int{60}, state.Cards[0].Progress)
	assert.Equal(t, current, state.Cards[0].LastProgressAt)
}

func TestApplyProgressIsMonotonic(t *testing.T) {
	api := &fakeAPI{}
	p, store := newTestPoller(api)

	store.Update(func(st *State) {
		st.Cards = []Card{{
			SessionID: "s1",
			Status:    "processing",
			Outputs:   2,
			Progress:  []int{70, 30},
			CreatedAt: time.Now().UTC(),
		}}
	})

	// a late out-of-order response must never move a slot backwards
	p.applyProgress("s1", &ProgressResult{Status: "processing", Progress: []int{50, 45}})

	assert.Equal(t, []int{70, 45}, store.Snapshot().Cards[0].Progress)
}

func TestAllSlotsDoneTriggersOutOfBandRefresh(t *testing.T) {
	api := &fakeAPI{}
	p, store := newTestPoller(api)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	p.now = func() time.Time { return current }

	store.Update(func(st *State) {
		st.Cards = []Card{{
			SessionID: "s1",
			Status:    "processing",
			Outputs:   4,
			Progress:  []int{90, 90, 90, 90},
			CreatedAt: base,
		}}
	})

	// all slots at 100 but only 2 artifact URLs: request a refresh
	p.applyProgress("s1", &ProgressResult{
		Status:   "processing",
		Progress: []int{100, 100, 100, 100},
		URLs:     []string{"u1", "u2"},
	})
	require.Len(t, p.refreshCh, 1)
	<-p.refreshCh

	// a second trigger inside the coalesce window is dropped
	current = base.Add(500 * time.Millisecond)
	p.applyProgress("s1", &ProgressResult{
		Status:   "processing",
		Progress: []int{100, 100, 100, 100},
		URLs:     []string{"u1", "u2"},
	})
	assert.Empty(t, p.refreshCh)
}

func TestRefreshCoalescing(t *testing.T) {
	api := &fakeAPI{}
	p, _ := newTestPoller(api)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	p.now = func() time.Time { return current }

	p.RequestRefresh()
	require.Len(t, p.refreshCh, 1)
	<-p.refreshCh

	current = base.Add(time.Second)
	p.RequestRefresh()
	assert.Empty(t, p.refreshCh)

	current = base.Add(3 * time.Second)
	p.RequestRefresh()
	assert.Len(t, p.refreshCh, 1)
}

func TestNewSessionPolledAfterCoalescedRefresh(t *testing.T) {
	api := &fakeAPI{
		progress: map[string]*ProgressResult{
			"s9": {SessionID: "s9", Status: "processing", Progress: []int{10}},
		},
	}
	p, store := newTestPoller(api)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	p.now = func() time.Time { return current }

	// a refresh just happened, the poller is idle
	p.RequestRefresh()
	require.Len(t, p.refreshCh, 1)
	<-p.refreshCh
	require.False(t, p.Polling())

	// a submission lands inside the coalesce window: its refresh is dropped
	current = base.Add(time.Second)
	store.Update(func(st *State) {
		st.Cards = []Card{{
			SessionID: "s9",
			Status:    "processing",
			Outputs:   1,
			Progress:  []int{0},
			CreatedAt: current,
		}}
	})
	p.RequestRefresh()
	require.Empty(t, p.refreshCh)

	// the next tick still sees the session and polls it
	assert.True(t, p.Polling())
	p.pollProgress(context.Background())
	assert.Equal(t, 1, api.progressCalls)
	assert.Equal(t, []int{10}, store.Snapshot().Cards[0].Progress)
}

func TestPollErrorsAreSwallowed(t *testing.T) {
	api := &fakeAPI{
		historyErr:  errors.New("boom"),
		progressErr: errors.New("boom"),
	}
	p, store := newTestPoller(api)

	store.Update(func(st *State) {
		st.Cards = []Card{{
			SessionID: "s1",
			Status:    "processing",
			Outputs:   1,
			Progress:  []int{40},
			CreatedAt: time.Now().UTC(),
		}}
	})
	before := store.Snapshot()

	p.pollHistory(context.Background())
	p.pollProgress(context.Background())

	// failed fetches mutate nothing
	after := store.Snapshot()
	require.Len(t, after.Cards, 1)
	assert.Equal(t, before.Cards[0].Progress, after.Cards[0].Progress)
	assert.Equal(t, before.Cards[0].Status, after.Cards[0].Status)
}
