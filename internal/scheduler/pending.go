// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package scheduler

import (
	"context"
	"sync"
)

// Pending is the handle for a submitted request. It resolves exactly once.
type Pending struct {
	req  Request
	done chan struct{}
	once sync.Once

	outcome Outcome
	err     error
}

func newPending(req Request) *Pending {
	return &Pending{req: req, done: make(chan struct{})}
}

// Request returns the request this handle belongs to.
func (p *Pending) Request() Request { return p.req }

// Done is closed once the request resolved or was rejected.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the request resolves or ctx ends. Cancelling ctx does not
// cancel the request; use Scheduler.Enqueue for that.
func (p *Pending) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.outcome, p.err
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (p *Pending) resolve(o Outcome) bool {
	return p.finish(o, nil)
}

func (p *Pending) reject(err error) bool {
	return p.finish(Outcome{}, err)
}

func (p *Pending) finish(o Outcome, err error) bool {
	settled := false
	p.once.Do(func() {
		p.outcome = o
		p.err = err
		settled = true
		close(p.done)
	})
	return settled
}
