/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

/*
Package gate sequences outbound calls to a rate-limited remote service.

A Gate combines two primitives:

  - AdmissionQueue caps the number of simultaneously running tasks. Submissions over the limit
    wait in arrival order, and a released slot is handed directly to the oldest waiter.
  - RateLimiter keeps at least MinDelay between the starts of consecutive tasks. The first task
    starts immediately.

A task passes the queue first and the limiter second, so the delay is waited out while the slot is held.
Task errors are returned unchanged. The slot is released on every exit path, panics included.

Gates are explicit handles. Configure returns a new Gate and leaves the old one (and the work
submitted to it) intact:

	g, err := gate.New(2, 100*time.Millisecond)
	if err != nil {
		return err
	}
	rows, err := gate.Call(ctx, g, func(ctx context.Context) ([]Row, error) {
		return runQuery(ctx, q)
	})
*/
package gate
