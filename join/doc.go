// Package join synchronizes buffers arriving on several input ports into aligned
// sets and hands each complete set to a handler exactly once.
//
// A Coordinator keeps one pending slot per input port. In push mode producers call
// Arrive from any goroutine; the arrival that fills the last empty slot captures
// the set, clears every slot, and runs the handler inline while the coordinator
// lock is held. In pull mode Cycle pops each port from a Source with a bounded
// wait and dispatches when every port produced a buffer.
//
// A slot holds at most one buffer. A second arrival on a pending port replaces the
// first (latest wins); the replaced buffer is reported to the drop hook.
package join
