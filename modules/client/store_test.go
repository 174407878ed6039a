package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSnapshotIsCopy(t *testing.T) {
	store := NewStore()
	store.Update(func(st *State) {
		st.Cards = []Card{{SessionID: "s1", Progress: []int{40}}}
	})

	snap := store.Snapshot()
	snap.Cards[0].Progress[0] = 99
	snap.Cards[0].SessionID = "mutated"

	fresh := store.Snapshot()
	assert.Equal(t, "s1", fresh.Cards[0].SessionID)
	assert.Equal(t, []int{40}, fresh.Cards[0].Progress)
}

func TestStoreNotifiesListeners(t *testing.T) {
	store := NewStore()

	var seen []int
	store.Subscribe(func(st State) {
		seen = append(seen, st.Credits)
	})

	store.Update(func(st *State) { st.Credits = 5 })
	store.Update(func(st *State) { st.Credits = 3 })

	require.Equal(t, []int{5, 3}, seen)
}

func TestActiveSessionsSkipsTerminalAndOptimistic(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	store.Update(func(st *State) {
		st.Cards = []Card{
			{SessionID: "s1", Status: "processing", CreatedAt: now},
			{SessionID: "s2", Status: "completed", CreatedAt: now},
			{SessionID: "s3", Status: "failed", CreatedAt: now},
			{ClientKey: "k1", Optimistic: true, Status: "pending", CreatedAt: now}, // no server id yet
		}
	})

	assert.Equal(t, []string{"s1"}, store.ActiveSessions())
}
