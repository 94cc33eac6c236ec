package orchestrator

import (
	"context"
	"fmt"
	"sync"

	apperrors "crm-ai-orchestrator/internal/common/errors"
)

// Ticket is the handle for one submitted request. It completes exactly once,
// with a response or an error.
type Ticket struct {
	RequestID string

	once sync.Once
	done chan struct{}
	resp *AIResponse
	err  error
}

func newTicket(requestID string) *Ticket {
	return &Ticket{RequestID: requestID, done: make(chan struct{})}
}

func (t *Ticket) complete(resp *AIResponse, err error) {
	t.once.Do(func() {
		t.resp, t.err = resp, err
		close(t.done)
	})
}

// Done is closed once the outcome is known.
func (t *Ticket) Done() <-chan struct{} { return t.done }

// Wait blocks until the outcome is known or ctx ends. Giving up does not
// cancel the request.
func (t *Ticket) Wait(ctx context.Context) (*AIResponse, error) {
	select {
	case <-t.done:
		return t.resp, t.err
	default:
	}

	select {
	case <-t.done:
		return t.resp, t.err
	case <-ctx.Done():
		return nil, apperrors.NewRequestTimeoutError(t.RequestID, fmt.Errorf("%w: %v", ErrRequestTimeout, ctx.Err()))
	}
}
