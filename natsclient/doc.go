// Package natsclient wraps a NATS connection with a circuit breaker, health
// monitoring and header-aware publish and subscribe.
//
// The circuit opens after a threshold of consecutive connection failures
// (default 5). While open, Connect fails fast with ErrCircuitOpen; after the
// current backoff elapses the circuit half-opens and the next Connect tries
// again. Backoff doubles each round up to the configured maximum.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithLogger(logger),
//	    natsclient.WithMetrics(registry.CoreMetrics()),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := client.Connect(ctx); err != nil {
//	    return err
//	}
//	defer client.Close(ctx)
//
//	sub, err := client.Subscribe(ctx, "camera.left", func(ctx context.Context, msg *nats.Msg) {
//	    // msg.Header carries the buffer format
//	})
//
// NewTestClient starts a NATS server in a container through testcontainers-go
// for integration tests.
package natsclient
