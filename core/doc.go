// Package core provides the foundational domain types, interfaces and execution
// contexts used by analystmesh. It defines the core abstractions for:
//
//   - Session state (immutable snapshots merged field by field under a
//     scalar / accumulating discipline table)
//   - Agents (specialists that consume a snapshot and return a partial update)
//   - Interactions and reasoning traces (append-only session history)
//   - InvocationContext / ToolContext (scoped execution & tool sandboxing)
//   - Session records and the sink interface used for durable tracing
//
// The package keeps implementation concerns (persistence, routing, concrete
// agents) out of scope, exposing small interfaces to enable custom backends.
package core
