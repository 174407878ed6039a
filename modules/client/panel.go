package client

import (
	"context"
	"log"
)

// Panel wires the store, submitter, and poller into one generation panel.
// All mutating entry points funnel through the command loop.
type Panel struct {
	Store     *Store
	Submitter *Submitter
	Poller    *Poller
	Commands  *Commands

	api    API
	userID string
}

func NewPanel(api API, userID string) *Panel {
	store := NewStore()
	return &Panel{
		Store:     store,
		Submitter: NewSubmitter(store, api, userID),
		Poller:    NewPoller(store, api, userID),
		Commands:  NewCommands(32),
		api:       api,
		userID:    userID,
	}
}

// Start launches the command loop and the poller.
func (p *Panel) Start(ctx context.Context) {
	go p.Commands.Run(ctx)
	go p.Poller.Run(ctx)
}

// Submit queues an optimistic submission. The result callback fires on the
// command loop; pass nil when the caller only watches store updates.
func (p *Panel) Submit(req SubmitRequest, cost int, done func(*Card, error)) {
	p.Commands.Dispatch(func(ctx context.Context) {
		card, err := p.Submitter.Submit(ctx, req, cost)
		if err == nil {
			// A fresh fetch picks up the server record for the new card.
			p.Poller.RequestRefresh()
		}
		if done != nil {
			done(card, err)
		}
	})
}

// Cancel requests cancellation of an in-flight job.
func (p *Panel) Cancel(jobID string) {
	p.Commands.Dispatch(func(ctx context.Context) {
		if err := p.api.Cancel(ctx, jobID); err != nil {
			log.Printf("panel: cancel failed for %s: %v", jobID, err)
			return
		}
		p.Poller.RequestRefresh()
	})
}
