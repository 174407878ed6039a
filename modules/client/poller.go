package client

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	// HistoryPollInterval is how often the session list is refetched
	// while requests are in flight.
	HistoryPollInterval = 5 * time.Second

	// ProgressPollInterval is how often per-session progress is polled.
	ProgressPollInterval = 1 * time.Second

	// RefreshCoalesceWindow bounds out-of-band refreshes to one per window.
	RefreshCoalesceWindow = 2 * time.Second

	// HistoryPageSize is the page size used for poll fetches.
	HistoryPageSize = 10
)

// Poller keeps the store in sync with the server. It alternates between
// two states: idle when nothing is in flight, polling while at least one
// session is active. Poll errors are swallowed so a flaky network never
// tears down the panel.
type Poller struct {
	store  *Store
	api    API
	userID string

	mu          sync.Mutex
	wasPolling  bool
	lastRefresh time.Time
	refreshCh   chan struct{}

	now func() time.Time
}

func NewPoller(store *Store, api API, userID string) *Poller {
	return &Poller{
		store:     store,
		api:       api,
		userID:    userID,
		refreshCh: make(chan struct{}, 1),
		now:       time.Now,
	}
}

// Run drives the poll loop until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	// Initial fetch so the panel has data before the first tick.
	p.pollHistory(ctx)

	historyTicker := time.NewTicker(HistoryPollInterval)
	progressTicker := time.NewTicker(ProgressPollInterval)
	defer historyTicker.Stop()
	defer progressTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.refreshCh:
			p.pollHistory(ctx)
		case <-historyTicker.C:
			if p.isPolling() {
				p.pollHistory(ctx)
			}
		case <-progressTicker.C:
			if p.isPolling() {
				p.pollProgress(ctx)
			}
		}
	}
}

// RequestRefresh asks for an immediate history fetch, for example after a
// submission or a push event. Requests inside the coalesce window collapse
// into one fetch.
func (p *Poller) RequestRefresh() {
	p.mu.Lock()
	now := p.now()
	if now.Sub(p.lastRefresh) < RefreshCoalesceWindow {
		p.mu.Unlock()
		return
	}
	p.lastRefresh = now
	p.mu.Unlock()

	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

// Polling reports whether the poller currently has active sessions.
func (p *Poller) Polling() bool {
	return p.isPolling()
}

// isPolling recomputes the idle/polling state from the store on every
// call. Caching the state here would let a session added between ticks
// go unpolled when the refresh that announced it was coalesced away.
func (p *Poller) isPolling() bool {
	active := len(p.store.ActiveSessions()) > 0

	p.mu.Lock()
	if active != p.wasPolling {
		if active {
			log.Printf("poller: entering polling state")
		} else {
			log.Printf("poller: entering idle state")
		}
		p.wasPolling = active
	}
	p.mu.Unlock()

	return active
}

// pollHistory fetches the newest history page and reconciles it into the
// store.
func (p *Poller) pollHistory(ctx context.Context) {
	records, hasMore, err := p.api.History(ctx, p.userID, HistoryPageSize, 0)
	if err != nil {
		log.Printf("poller: history poll failed: %v", err)
		return
	}

	p.store.Update(func(st *State) {
		st.Cards = Merge(st.Cards, records)
		st.HasMore = hasMore
	})

	p.syncCredits(ctx)
	p.isPolling()
}

// pollProgress polls every active session once and applies changes.
func (p *Poller) pollProgress(ctx context.Context) {
	active := p.store.ActiveSessions()
	if len(active) == 0 {
		return
	}

	for _, sessionID := range active {
		result, err := p.api.Progress(ctx, sessionID)
		if err != nil {
			log.Printf("poller: progress poll failed for %s: %v", sessionID, err)
			continue
		}
		p.applyProgress(sessionID, result)
	}

	p.isPolling()
}

// applyProgress merges one progress response into the matching card.
// Updates are value-compared first so unchanged polls cause no state churn,
// displayed progress never moves backwards, and LastProgressAt only
// advances when progress actually moved.
func (p *Poller) applyProgress(sessionID string, result *ProgressResult) {
	now := p.now()
	needsRefresh := false

	p.store.Update(func(st *State) {
		for i := range st.Cards {
			c := &st.Cards[i]
			if c.SessionID != sessionID {
				continue
			}

			next := monotonicProgress(c.Progress, result.Progress)
			if !intSlicesEqual(c.Progress, next) {
				c.Progress = next
				c.LastProgressAt = now
			}

			if result.Status != "" && result.Status != c.Status {
				c.Status = result.Status
			}
			if len(result.URLs) > len(c.URLs) {
				c.URLs = append([]string(nil), result.URLs...)
			}
			if result.ErrorMessage != "" {
				c.ErrorMessage = result.ErrorMessage
			}

			// All slots done but artifacts lagging: the URL write has not
			// landed yet, so ask for an immediate history fetch.
			if allDone(c.Progress, c.Outputs) && len(c.URLs) < c.Outputs && !c.IsTerminal() {
				needsRefresh = true
			}
			return
		}
	})

	if needsRefresh {
		p.RequestRefresh()
	}
}

// monotonicProgress merges new slot values without letting any slot
// move backwards.
func monotonicProgress(current, incoming []int) []int {
	if len(incoming) == 0 {
		return current
	}

	next := append([]int(nil), incoming...)
	for i := range next {
		if i < len(current) && current[i] > next[i] {
			next[i] = current[i]
		}
	}
	return next
}

func allDone(progress []int, outputs int) bool {
	if outputs <= 0 || len(progress) < outputs {
		return false
	}
	for _, v := range progress {
		if v < 100 {
			return false
		}
	}
	return true
}

// syncCredits refreshes the local balance from the server. Errors are
// ignored; the optimistic balance stays until the next successful sync.
func (p *Poller) syncCredits(ctx context.Context) {
	available, err := p.api.Credits(ctx, p.userID)
	if err != nil {
		log.Printf("poller: credits sync failed: %v", err)
		return
	}

	p.store.Update(func(st *State) {
		st.Credits = available
	})
}

func intSlicesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
