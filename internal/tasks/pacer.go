package tasks

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/radiosync/internal/shared"
)

// Pacer spaces out remote calls.
//
// Each Wait returns no sooner than min after the previous one, then sleeps a further random jitter of up to
// max-min. A zero Pacer never waits.
type Pacer struct {
	limiter *rate.Limiter
	jitter  time.Duration
}

// NewPacer creates a pacer that keeps successive Wait calls between lo and hi apart.
func NewPacer(lo, hi time.Duration) *Pacer {
	if hi < lo {
		hi = lo
	}

	limit := rate.Inf
	if lo > 0 {
		limit = rate.Every(lo)
	}

	limiter := rate.NewLimiter(limit, 1)
	limiter.Allow()

	return &Pacer{limiter: limiter, jitter: hi - lo}
}

// Wait blocks until the next call may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if p == nil || p.limiter == nil {
		return nil
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	return sleep(ctx, shared.RandomDuration(0, p.jitter))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
