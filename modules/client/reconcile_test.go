package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeReplacesOptimisticByClientKey(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	local := []Card{
		{
			ID:         "optimistic-k1",
			ClientKey:  "k1",
			Optimistic: true,
			Prompt:     "a red fox",
			Status:     "pending",
			CreditCost: 3,
			CreatedAt:  created,
		},
	}
	server := []Record{
		{
			SessionID: "s1",
			ClientKey: "k1",
			Prompt:    "a red fox",
			Status:    "processing",
			CreatedAt: created,
		},
	}

	merged := Merge(local, server)

	require.Len(t, merged, 1)
	assert.Equal(t, "s1", merged[0].SessionID)
	assert.Equal(t, "k1", merged[0].ClientKey)
	assert.False(t, merged[0].Optimistic)
	assert.Equal(t, "processing", merged[0].Status)
	// locally-known cost survives until the server reports one
	assert.Equal(t, 3, merged[0].CreditCost)
}

func TestMergeNoDuplicateDisplay(t *testing.T) {
	created := time.Now().UTC()

	var local []Card
	var server []Record
	for _, key := range []string{"k1", "k2", "k3"} {
		local = append(local, Card{
			ID:         "optimistic-" + key,
			ClientKey:  key,
			Optimistic: true,
			Status:     "pending",
			CreatedAt:  created,
		})
		server = append(server, Record{
			SessionID: "s-" + key,
			ClientKey: key,
			Status:    "processing",
			CreatedAt: created,
		})
	}

	merged := Merge(local, server)

	// every clientKey matched, so max(N, M) entries, not N+M
	require.Len(t, merged, 3)
	for _, c := range merged {
		assert.NotEmpty(t, c.SessionID)
		assert.False(t, c.Optimistic)
	}
}

func TestMergeKeepsUnacknowledgedOptimistic(t *testing.T) {
	created := time.Now().UTC()

	local := []Card{
		{ID: "optimistic-k9", ClientKey: "k9", Optimistic: true, Status: "pending", CreatedAt: created},
	}
	server := []Record{
		{SessionID: "s1", ClientKey: "k1", Status: "completed", CreatedAt: created.Add(-time.Minute)},
	}

	merged := Merge(local, server)

	require.Len(t, merged, 2)
	assert.Equal(t, "optimistic-k9", merged[0].ID) // newest first
	assert.True(t, merged[0].Optimistic)
	assert.Equal(t, "s1", merged[1].SessionID)
}

func TestMergeIdenticalTimestampsDistinctIDs(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	server := []Record{
		{SessionID: "s1", Prompt: "same prompt", Status: "processing", CreatedAt: created},
		{SessionID: "s2", Prompt: "same prompt", Status: "processing", CreatedAt: created},
	}

	merged := Merge(nil, server)

	// real ids take priority over the composite fallback, so the identical
	// (prompt, createdAt, status) triples must not collapse into one
	require.Len(t, merged, 2)
	ids := []string{merged[0].SessionID, merged[1].SessionID}
	assert.ElementsMatch(t, []string{"s1", "s2"}, ids)
}

func TestMergeSortsNewestFirstStable(t *testing.T) {
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	server := []Record{
		{SessionID: "old", Status: "completed", CreatedAt: base.Add(-time.Hour)},
		{SessionID: "tie-a", Status: "completed", CreatedAt: base},
		{SessionID: "tie-b", Status: "completed", CreatedAt: base},
		{SessionID: "new", Status: "completed", CreatedAt: base.Add(time.Hour)},
	}

	merged := Merge(nil, server)

	require.Len(t, merged, 4)
	assert.Equal(t, "new", merged[0].SessionID)
	// ties keep their fetch order
	assert.Equal(t, "tie-a", merged[1].SessionID)
	assert.Equal(t, "tie-b", merged[2].SessionID)
	assert.Equal(t, "old", merged[3].SessionID)
}

func TestDedupePrefersMoreCompleteRecord(t *testing.T) {
	created := time.Now().UTC()

	cards := []Card{
		{SessionID: "s1", Status: "processing", CreatedAt: created},
		{SessionID: "s1", Status: "completed", URLs: []string{"https://cdn/x.webp"}, CreatedAt: created},
	}

	out := dedupe(cards)

	require.Len(t, out, 1)
	assert.Equal(t, "completed", out[0].Status)
	assert.Len(t, out[0].URLs, 1)
}

func TestDedupePrefersServerBackedOverOptimistic(t *testing.T) {
	created := time.Now().UTC()

	cards := []Card{
		{ID: "optimistic-k1", ClientKey: "k1", Optimistic: true, Status: "pending", CreatedAt: created},
		{ID: "s1", SessionID: "s1", ClientKey: "k1", Status: "processing", CreatedAt: created},
	}

	out := dedupe(cards)

	require.Len(t, out, 1)
	assert.Equal(t, "s1", out[0].SessionID)
	assert.False(t, out[0].Optimistic)
}

func TestMergeCompositeFallbackMatchesLegacyRecord(t *testing.T) {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// record without client key or known session id locally
	local := []Card{
		{ID: "local", Prompt: "a very specific legacy prompt", Status: "processing", CreatedAt: created},
	}
	server := []Record{
		{SessionID: "s1", Prompt: "a very specific legacy prompt", Status: "processing", CreatedAt: created},
	}

	merged := Merge(local, server)

	require.Len(t, merged, 1)
	assert.Equal(t, "s1", merged[0].SessionID)
}

func TestMergePreservesLocalProgress(t *testing.T) {
	created := time.Now().UTC()
	progressAt := created.Add(3 * time.Second)

	local := []Card{
		{
			SessionID:      "s1",
			Status:         "processing",
			Progress:       []int{40},
			CreatedAt:      created,
			LastProgressAt: progressAt,
		},
	}
	server := []Record{
		{SessionID: "s1", Status: "processing", CreatedAt: created},
	}

	merged := Merge(local, server)

	require.Len(t, merged, 1)
	assert.Equal(t, []int{40}, merged[0].Progress)
	assert.Equal(t, progressAt, merged[0].LastProgressAt)
}
