package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is a scriptable API implementation for panel tests.
type fakeAPI struct {
	submitCalls   int
	submitErr     error
	submitResult  *SubmitResult
	historyCalls  int
	history       []Record
	hasMore       bool
	historyErr    error
	progressCalls int
	progress      map[string]*ProgressResult
	progressErr   error
	credits       int
	cancelCalls   []string
}

func (f *fakeAPI) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	f.submitCalls++
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	if f.submitResult != nil {
		return f.submitResult, nil
	}
	return &SubmitResult{
		SessionID: fmt.Sprintf("s%d", f.submitCalls),
		ClientKey: req.ClientKey,
		Status:    "queued",
	}, nil
}

func (f *fakeAPI) History(ctx context.Context, userID string, limit, offset int) ([]Record, bool, error) {
	f.historyCalls++
	if f.historyErr != nil {
		return nil, false, f.historyErr
	}
	return f.history, f.hasMore, nil
}

func (f *fakeAPI) Progress(ctx context.Context, sessionID string) (*ProgressResult, error) {
	f.progressCalls++
	if f.progressErr != nil {
		return nil, f.progressErr
	}
	if r, ok := f.progress[sessionID]; ok {
		return r, nil
	}
	return &ProgressResult{SessionID: sessionID, Progress: []int{}}, nil
}

func (f *fakeAPI) Credits(ctx context.Context, userID string) (int, error) {
	return f.credits, nil
}

func (f *fakeAPI) Cancel(ctx context.Context, jobID string) error {
	f.cancelCalls = append(f.cancelCalls, jobID)
	return nil
}

func newTestSubmitter(api API, credits int) (*Submitter, *Store) {
	store := NewStore()
	store.Update(func(st *State) {
		st.Credits = credits
	})

	s := NewSubmitter(store, api, "user-1")
	keyN := 0
	s.newKey = func() string {
		keyN++
		return fmt.Sprintf("k%d", keyN)
	}
	return s, store
}

func TestSubmitOptimisticFlow(t *testing.T) {
	api := &fakeAPI{
		submitResult: &SubmitResult{SessionID: "s1", ClientKey: "k1", ReservationID: "r1", Status: "queued"},
	}
	s, store := newTestSubmitter(api, 10)

	card, err := s.Submit(context.Background(), SubmitRequest{Prompt: "a red fox", JobType: "image", Outputs: 1}, 3)
	require.NoError(t, err)

	// balance drops immediately and stays after the ack (no second deduction)
	state := store.Snapshot()
	assert.Equal(t, 7, state.Credits)
	require.Len(t, state.Cards, 1)

	// the optimistic card was updated in place with the server identity
	assert.Equal(t, "k1", state.Cards[0].ClientKey)
	assert.Equal(t, "s1", state.Cards[0].SessionID)
	assert.Equal(t, "r1", state.Cards[0].ReservationID)
	assert.True(t, state.Cards[0].Optimistic)
	assert.Equal(t, "s1", card.SessionID)
}

func TestSubmitInsufficientBalanceSkipsNetwork(t *testing.T) {
	api := &fakeAPI{}
	s, store := newTestSubmitter(api, 2)

	_, err := s.Submit(context.Background(), SubmitRequest{Prompt: "p", JobType: "image"}, 3)

	require.Error(t, err)
	assert.Equal(t, ClassInsufficientCredit, ClassOf(err))
	assert.Zero(t, api.submitCalls)
	assert.Equal(t, 2, store.Credits())
	assert.Empty(t, store.Snapshot().Cards)
}

func TestSubmitRejection402RefundsExactly(t *testing.T) {
	api := &fakeAPI{
		submitErr: &StatusError{StatusCode: 402, Code: "insufficient_credit", Message: "insufficient credits"},
	}
	s, store := newTestSubmitter(api, 10)

	_, err := s.Submit(context.Background(), SubmitRequest{Prompt: "p", JobType: "image"}, 3)

	require.Error(t, err)
	assert.Equal(t, ClassInsufficientCredit, ClassOf(err))

	// balance reverts to exactly the pre-submit value, card removed
	state := store.Snapshot()
	assert.Equal(t, 10, state.Credits)
	assert.Empty(t, state.Cards)
}

func TestSubmitTransportErrorRefunds(t *testing.T) {
	api := &fakeAPI{submitErr: errors.New("connection refused")}
	s, store := newTestSubmitter(api, 10)

	_, err := s.Submit(context.Background(), SubmitRequest{Prompt: "p", JobType: "image"}, 3)

	require.Error(t, err)
	assert.Equal(t, ClassTransientNetwork, ClassOf(err))
	assert.Equal(t, 10, store.Credits())
	assert.Empty(t, store.Snapshot().Cards)
}

func TestSubmitTransportErrorResyncsBalance(t *testing.T) {
	// local balance drifted ahead of the server: the optimistic refund
	// restores 10, but the server says 7 (the reservation went through)
	api := &fakeAPI{
		submitErr: errors.New("connection reset"),
		credits:   7,
	}
	s, store := newTestSubmitter(api, 10)
	s.resyncDelay = 0

	_, err := s.Submit(context.Background(), SubmitRequest{Prompt: "p", JobType: "image"}, 3)
	require.Error(t, err)
	require.Equal(t, ClassTransientNetwork, ClassOf(err))

	// the follow-up balance fetch wins over the local refund
	assert.Eventually(t, func() bool {
		return store.Credits() == 7
	}, time.Second, 10*time.Millisecond)
}

func TestSubmitCallerSuppliedClientKey(t *testing.T) {
	api := &fakeAPI{}
	s, store := newTestSubmitter(api, 10)

	card, err := s.Submit(context.Background(), SubmitRequest{
		ClientKey: "retry-key-1",
		Prompt:    "p",
		JobType:   "image",
	}, 1)

	require.NoError(t, err)
	assert.Equal(t, "retry-key-1", card.ClientKey)
	assert.Equal(t, "retry-key-1", store.Snapshot().Cards[0].ClientKey)
}

func TestSubmitUnauthenticatedClass(t *testing.T) {
	api := &fakeAPI{submitErr: &StatusError{StatusCode: 401, Code: "unauthenticated"}}
	s, _ := newTestSubmitter(api, 10)

	_, err := s.Submit(context.Background(), SubmitRequest{Prompt: "p", JobType: "image"}, 1)

	require.Error(t, err)
	assert.Equal(t, ClassUnauthenticated, ClassOf(err))
}

func TestSubmitDebounceDropsDuplicate(t *testing.T) {
	api := &fakeAPI{}
	s, store := newTestSubmitter(api, 10)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	current := base
	s.now = func() time.Time { return current }

	_, err := s.Submit(context.Background(), SubmitRequest{Prompt: "p", Model: "m", JobType: "image"}, 1)
	require.NoError(t, err)

	// same content 500ms later is silently dropped
	current = base.Add(500 * time.Millisecond)
	_, err = s.Submit(context.Background(), SubmitRequest{Prompt: "p", Model: "m", JobType: "image"}, 1)
	require.Error(t, err)
	assert.Equal(t, ClassDebounced, ClassOf(err))
	assert.Equal(t, 1, api.submitCalls)
	assert.Len(t, store.Snapshot().Cards, 1)

	// once the window passes, the same content submits again
	current = base.Add(3 * time.Second)
	_, err = s.Submit(context.Background(), SubmitRequest{Prompt: "p", Model: "m", JobType: "image"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, api.submitCalls)
}

func TestSubmitDifferentContentNotDebounced(t *testing.T) {
	api := &fakeAPI{}
	s, _ := newTestSubmitter(api, 10)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	_, err := s.Submit(context.Background(), SubmitRequest{Prompt: "first", JobType: "image"}, 1)
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), SubmitRequest{Prompt: "second", JobType: "image"}, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, api.submitCalls)
}
