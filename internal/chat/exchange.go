package chat

import (
	"context"
	"sort"

	"github.com/Nit2312/NyaySarthi/internal/domain"
)

// Exchange is the handle for one in-flight send. It resolves exactly once.
type Exchange struct {
	SessionID string
	// Request is the user message already recorded in the log.
	Request domain.Message

	done  chan struct{}
	reply domain.Message
	err   error
}

func newExchange(sessionID string, req domain.Message) *Exchange {
	return &Exchange{SessionID: sessionID, Request: req, done: make(chan struct{})}
}

func (e *Exchange) finish(reply domain.Message, err error) {
	e.reply = reply
	e.err = err
	close(e.done)
}

// Done is closed when the exchange has resolved.
func (e *Exchange) Done() <-chan struct{} { return e.done }

// Wait blocks until the exchange resolves or ctx ends. Giving up on the wait
// does not cancel the exchange.
func (e *Exchange) Wait(ctx context.Context) (domain.Message, error) {
	select {
	case <-e.done:
		return e.reply, e.err
	case <-ctx.Done():
		return domain.Message{}, ctx.Err()
	}
}

// OrderCitations clamps scores into [0,1] and sorts by score, highest first.
// Ties keep their original relative order.
func OrderCitations(in []domain.Citation) []domain.Citation {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Citation, len(in))
	for i, c := range in {
		c.Score = domain.Clamp01(c.Score)
		out[i] = c
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}
