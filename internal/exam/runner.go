package exam

import (
	"context"
	"time"
)

// RunHooks receives session events from Run. Nil hooks are skipped.
type RunHooks struct {
	OnTick   func(remaining int)
	OnFinish func(out Outcome, err error)
}

// Run feeds ticks into the session until it finishes or ctx is done. Each
// value received on ticks counts as one elapsed second. OnFinish fires only
// for a timeout; a learner-initiated finish just stops the loop.
func Run(ctx context.Context, s *Session, ticks <-chan time.Time, hooks RunHooks) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ticks:
			if !ok {
				return
			}
			out, finished, err := s.Tick(ctx)
			if finished {
				if hooks.OnFinish != nil {
					hooks.OnFinish(out, err)
				}
				return
			}
			if s.State() != StateInProgress {
				return
			}
			if hooks.OnTick != nil {
				hooks.OnTick(s.Remaining())
			}
		}
	}
}
