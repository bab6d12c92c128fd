// Package testutil provides test doubles for mediajoin packages.
//
// RecordingSink records what an element routes and can refuse chosen ports.
// ScriptedSource feeds a pull-mode coordinator from per-port scripts.
// MockNATSClient is an in-memory stand-in for natsclient.Client used by the
// transport tests. The buffer builders create correctly sized test frames.
package testutil
