package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DebounceWindow suppresses duplicate submissions of the same content.
	DebounceWindow = 2 * time.Second

	// CreditsResyncDelay is how long after a transient submission failure
	// the server balance is refetched.
	CreditsResyncDelay = 2 * time.Second
)

// Submitter drives optimistic request submission: it inserts a placeholder
// card and applies the credit delta before the server responds, then rolls
// both back if the submission fails.
type Submitter struct {
	store *Store
	api   API

	userID string

	mu         sync.Mutex
	lastSubmit map[string]time.Time // content key → last accepted submit

	now         func() time.Time
	newKey      func() string
	resyncDelay time.Duration
}

func NewSubmitter(store *Store, api API, userID string) *Submitter {
	return &Submitter{
		store:       store,
		api:         api,
		userID:      userID,
		lastSubmit:  make(map[string]time.Time),
		now:         time.Now,
		newKey:      uuid.NewString,
		resyncDelay: CreditsResyncDelay,
	}
}

// Submit runs the optimistic submission flow and returns the optimistic
// card on success. Failures are classified via SubmitError.
func (s *Submitter) Submit(ctx context.Context, req SubmitRequest, cost int) (*Card, error) {
	now := s.now()

	// Duplicate suppression: same content within the window is ignored.
	contentKey := fmt.Sprintf("%s|%s|%s", req.Prompt, req.Model, req.JobType)
	s.mu.Lock()
	if last, ok := s.lastSubmit[contentKey]; ok && now.Sub(last) < DebounceWindow {
		s.mu.Unlock()
		return nil, &SubmitError{Class: ClassDebounced}
	}
	s.lastSubmit[contentKey] = now
	s.mu.Unlock()

	// Local balance pre-check avoids a round trip that would be rejected.
	if s.store.Credits() < cost {
		return nil, &SubmitError{Class: ClassInsufficientCredit}
	}

	// Callers may supply their own idempotency key, for example when
	// retrying an attempt they already announced. Otherwise mint one.
	clientKey := req.ClientKey
	if clientKey == "" {
		clientKey = s.newKey()
	}
	req.ClientKey = clientKey
	req.UserID = s.userID

	outputs := req.Outputs
	if outputs < 1 {
		outputs = 1
	}

	card := Card{
		ID:             "optimistic-" + clientKey,
		ClientKey:      clientKey,
		Optimistic:     true,
		Prompt:         req.Prompt,
		Model:          req.Model,
		JobType:        req.JobType,
		Status:         "pending",
		Outputs:        outputs,
		Progress:       make([]int, outputs),
		CreditCost:     cost,
		CreatedAt:      now,
		LastProgressAt: now,
	}

	// Optimistic insert: card appears immediately, balance drops by cost.
	s.store.Update(func(st *State) {
		st.Cards = append([]Card{card}, st.Cards...)
		st.Credits -= cost
	})

	result, err := s.api.Submit(ctx, req)
	if err != nil {
		class := classifySubmitError(err)
		log.Printf("submit failed for client_key %s (%s): %v", clientKey, class, err)

		// Roll back: remove the optimistic card and refund the exact delta.
		s.store.Update(func(st *State) {
			st.Cards = removeByClientKey(st.Cards, clientKey)
			st.Credits += cost
		})

		// On a transport failure the server may still have charged the
		// reservation, so the local refund is only a guess. Refetch the
		// authoritative balance shortly after.
		if class == ClassTransientNetwork {
			go s.resyncCredits()
		}

		return nil, &SubmitError{Class: class, Err: err}
	}

	// Attach server identity; the card stays optimistic until the next
	// reconcile replaces it with the server record.
	s.store.Update(func(st *State) {
		for i := range st.Cards {
			if st.Cards[i].ClientKey == clientKey {
				st.Cards[i].SessionID = result.SessionID
				st.Cards[i].ReservationID = result.ReservationID
				break
			}
		}
	})

	card.SessionID = result.SessionID
	card.ReservationID = result.ReservationID
	return &card, nil
}

// resyncCredits replaces the locally refunded balance with the server's.
func (s *Submitter) resyncCredits() {
	if s.resyncDelay > 0 {
		time.Sleep(s.resyncDelay)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	available, err := s.api.Credits(ctx, s.userID)
	if err != nil {
		log.Printf("credits resync failed: %v", err)
		return
	}

	s.store.Update(func(st *State) {
		st.Credits = available
	})
}

// classifySubmitError maps transport and server errors to failure classes.
func classifySubmitError(err error) string {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == 402 || statusErr.Code == "insufficient_credit":
			return ClassInsufficientCredit
		case statusErr.StatusCode == 401 || statusErr.Code == "unauthenticated":
			return ClassUnauthenticated
		case statusErr.StatusCode == 400:
			return ClassProviderRejected
		case statusErr.StatusCode >= 500:
			return ClassTransientNetwork
		default:
			return ClassProviderRejected
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassTransientNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTransientNetwork
	}

	return ClassTransientNetwork
}

func removeByClientKey(cards []Card, clientKey string) []Card {
	out := cards[:0]
	for _, c := range cards {
		if c.ClientKey != clientKey {
			out = append(out, c)
		}
	}
	return out
}
