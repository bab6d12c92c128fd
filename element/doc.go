// Package element assembles the port registry, join coordinator, transform
// dispatcher and output router into one lifecycle-managed media element.
//
// In push mode the framework calls OnBufferArrived from any goroutine and a
// complete set is transformed and routed on that caller's goroutine. In pull mode
// OnBufferArrived enqueues into bounded per-port queues and Start launches a loop
// that pops one buffer per port per cycle.
//
//	e, err := element.New(cfg, transform.Built{InPlace: transform.MeanMixer{}}, deps,
//	    element.WithSink(sink))
//	if err != nil {
//	    return err
//	}
//	if err := e.Initialize(); err != nil {
//	    return err
//	}
//	if err := e.Start(ctx); err != nil {
//	    return err
//	}
//	defer e.Stop(5 * time.Second)
package element
