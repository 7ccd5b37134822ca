// Package session houses concrete implementations of core.SessionSink and
// the asynchronous Writer that feeds them.
//
// Sinks are upserts keyed by session id, so the Writer may retry a save
// without creating duplicates. Backends:
//
//   - InMemorySink for tests and ephemeral demo servers
//   - GormSink writing service__session_tracing_t rows
//   - RedisSink storing JSON documents with a recency index
package session
