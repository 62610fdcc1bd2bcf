// Package async runs background work that must outlive the request that
// started it.
//
// A Group gives each function its own timeout, recovers and logs panics, and
// lets shutdown wait for outstanding work:
//
//	g := async.NewGroup(log, 30*time.Second)
//	g.Go("verification mail", func(ctx context.Context) error {
//		return sender.Send(ctx, msg)
//	})
//	...
//	err := g.Wait(shutdownCtx)
package async
