// Package retry provides exponential backoff for transient failures.
//
// Do runs a function until it succeeds, the attempts run out, or the context is
// done. Errors wrapped with NonRetryable, and errors the errors package classifies
// as invalid or fatal, end the loop at once:
//
//	conn, err := retry.DoWithResult(ctx, retry.Quick(), func() (*nats.Conn, error) {
//		return nats.Connect(url)
//	})
//
// Presets:
//
//   - DefaultConfig(): 3 attempts, 100ms to 5s
//   - Quick(): 10 attempts, 50ms to 1s, for startup
//
// Set Config.OnRetry to log each failed attempt before the backoff sleep.
package retry
