package async

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/taskcore/pkg/observability"
)

// DefaultTimeout bounds a single function when the group has none set.
const DefaultTimeout = 30 * time.Second

// Group tracks detached goroutines.
type Group struct {
	log     logrus.FieldLogger
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewGroup creates a group whose functions each run under timeout.
func NewGroup(log logrus.FieldLogger, timeout time.Duration) *Group {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Group{log: log, timeout: timeout}
}

// Go runs fn in a new goroutine. The context passed to fn is not derived
// from any request; it ends after the group timeout. A returned error or a
// panic is logged under name and never propagated.
func (g *Group) Go(name string, fn func(ctx context.Context) error) {
	log := g.log.WithField("task", name)

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer observability.RecoverPanic(log, name)

		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			log.WithError(err).Error("Background task failed")
		}
	}()
}

// Wait blocks until every started function returned or ctx ends.
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
