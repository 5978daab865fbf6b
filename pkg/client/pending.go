package client

import (
	"context"

	"github.com/fetchkit/go-apirequest/pkg/request"
)

// Pending is a call running in the background.
type Pending struct {
	done    chan struct{}
	outcome Outcome
}

// Go executes the call in a new goroutine.
func (c Client) Go(ctx context.Context, opts request.Options) *Pending {
	p := &Pending{done: make(chan struct{})}
	go func() {
		defer close(p.done)
		p.outcome = c.Execute(ctx, opts)
	}()
	return p
}

// Done is closed when the call is finished.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the call is finished.
func (p *Pending) Wait() Outcome {
	<-p.done
	return p.outcome
}
