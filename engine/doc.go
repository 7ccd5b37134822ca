// Package engine implements the workflow coordinator of analystmesh.
//
// The Engine hosts many concurrent sessions. Each session runs in its own
// goroutine and walks the agent graph one step at a time:
//
//	router -> gate -> specialist -> gate -> ... -> answer_summarizer | simple_qa
//
// # Key Components
//
// Engine:
//   - Thread-safe agent registry with name-based lookup
//   - Bounded concurrent sessions (golang.org/x/sync/semaphore)
//   - Per-session timeout and explicit cancellation
//   - Asynchronous persistence through a session.Writer, drained on Close
//
// Coordinator (one per session):
//   - Invokes the agent chosen by the flow.Gate
//   - Rejects writes outside the agent's authorized fields
//   - Merges the partial update into a new state snapshot
//   - Records interactions, reasoning traces and per-step snapshots
//
// Callback System:
//   - Hooks before and after each agent, on state changes, on errors and
//     at session end
//   - Built-in implementations for logging and delta validation
//
// # Usage
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.Sink = session.NewGormSink(db)
//	    o.Logger = logger
//	})
//	eng.Register(agent.NewRouter(llm), agent.NewSQLWriter(llm), ...)
//	defer eng.Close(ctx)
//
//	res := eng.Run(ctx, "What was the average ticket size last week by store?")
//	if res.Err != nil {
//	    return res.Err
//	}
//	fmt.Println(res.State.Answer)
//
// # Error Handling
//
// Agent, tool and schema failures are not retried by the coordinator. The
// session fails, its partial record is still persisted with status failed
// and the error is returned in Result.Err. Timeouts surface as
// core.ErrSessionTimeout.
package engine
