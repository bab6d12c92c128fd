// Package mediajoin synchronizes buffers arriving on several input ports and
// dispatches each complete set through one transform to several output ports.
//
// # Architecture
//
// An element is assembled from small packages, each owning one concern:
//
//   - format: pixel format table, caps parsing and byte layout of a buffer
//   - view: zero-copy typed array views over raw buffers
//   - port: named, directional ports and their registry
//   - join: the coordinator that holds one pending buffer per input and fires
//     when every active input is pending, fed by arrivals (push) or by polling a
//     Source (pull)
//   - dispatch: maps a joined set to input views, allocates outputs and runs
//     the transform
//   - transform: built-in transforms and the registry that creates them by name
//   - route: delivers each output to its port's sink
//   - subnet: links external producers and consumers to ports by name
//   - element: the lifecycle component tying the above together
//
// Around the element sit the ambient packages: errors (classified errors),
// metric (Prometheus registry and HTTP endpoint), natsclient (connection
// management), transport (NATS subject per port), config (layered JSON/YAML
// configuration) and cmd/mediajoin (the runnable process).
//
// # Delivery semantics
//
// A buffer is dispatched at most once. If a port receives a second buffer
// before its set completes, the newer buffer replaces the older one and the
// replacement is counted and reported as a drop. Dispatch runs under the
// coordinator lock, so sets are transformed strictly one at a time per element.
package mediajoin
