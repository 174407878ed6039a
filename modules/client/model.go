package client

import "time"

// Card is the panel-side view of one generation request. Optimistic cards
// are created locally at submit time and later replaced in place by the
// matching server record during reconciliation.
type Card struct {
	ID            string // session_id once known, otherwise the optimistic local id
	SessionID     string // empty until the server has acknowledged the request
	ClientKey     string
	ReservationID string
	Optimistic    bool
	Prompt        string
	Model         string
	JobType       string
	Status        string
	Outputs       int
	Progress      []int
	URLs          []string
	CreditCost    int
	ErrorMessage  string
	CreatedAt     time.Time
	// LastProgressAt tracks the last time progress advanced for this card.
	// Defaults to CreatedAt so stale checks work before the first poll.
	LastProgressAt time.Time
}

// Record is a server session row normalized for the panel.
type Record struct {
	SessionID     string
	ClientKey     string
	ReservationID string
	Prompt        string
	Model         string
	JobType       string
	Status        string
	Outputs       int
	URLs          []string
	CreditCost    int
	ErrorMessage  string
	CreatedAt     time.Time
	CompletedAt   *time.Time
}

// IsTerminal reports whether the card no longer needs polling.
func (c *Card) IsTerminal() bool {
	return isTerminalStatus(c.Status)
}

func isTerminalStatus(status string) bool {
	return status == "completed" || status == "failed" || status == "user_cancelled"
}

// cardFromRecord builds a card from a server record. LastProgressAt starts
// at CreatedAt; the poller advances it when progress actually moves.
func cardFromRecord(rec Record) Card {
	return Card{
		ID:             rec.SessionID,
		SessionID:      rec.SessionID,
		ClientKey:      rec.ClientKey,
		ReservationID:  rec.ReservationID,
		Prompt:         rec.Prompt,
		Model:          rec.Model,
		JobType:        rec.JobType,
		Status:         rec.Status,
		Outputs:        rec.Outputs,
		URLs:           rec.URLs,
		CreditCost:     rec.CreditCost,
		ErrorMessage:   rec.ErrorMessage,
		CreatedAt:      rec.CreatedAt,
		LastProgressAt: rec.CreatedAt,
	}
}
