// Package events decouples pipeline diagnostics from their presentation.
//
// Pipeline components emit Event values into a Sink instead of calling a
// logger directly. LogSink renders events through log/slog; StoreSink persists
// them to the run history database; NATSSink publishes them for external
// consumers; Recorder keeps them in memory for tests. Multi fans one event out
// to several sinks.
package events
