// Package component defines the lifecycle and discovery contract shared by
// mediajoin elements: the State machine, the Discoverable inspection surface,
// injected Dependencies, and a reusable lifecycle test suite.
//
// Lifecycle:
//
//	created -> initialized -> started -> stopped
//	                 \            \
//	                  -> failed    -> failed
//
// Initialize validates wiring and may be repeated after Stop. Start launches
// background work bound to the supplied context. Stop waits at most timeout for
// that work to finish and is idempotent.
package component
