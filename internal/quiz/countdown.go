package quiz

import (
	"context"
	"time"
)

// Countdown feeds periodic ticks into a session until it is submitted, the
// parent context ends or Stop is called.
type Countdown struct {
	session  *Session
	interval time.Duration
	cancel   context.CancelFunc
	done     chan struct{}
}

func StartCountdown(parent context.Context, s *Session, interval time.Duration) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	ctx, cancel := context.WithCancel(parent)
	c := &Countdown{
		session:  s,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

func (c *Countdown) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.session.Tick()
			if c.session.State() != StateReady {
				return
			}
		}
	}
}

// Stop cancels further ticks. It does not wait, so it is safe to call from a
// submit observer running on the ticking goroutine.
func (c *Countdown) Stop() {
	c.cancel()
}

// Done is closed once the ticking goroutine has exited.
func (c *Countdown) Done() <-chan struct{} {
	return c.done
}
