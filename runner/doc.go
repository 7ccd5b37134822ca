// Package runner provides the interactive conversation loop of the analyst.
//
// A Runner greets the user, reads one request per line, runs a session for
// each request and prints the answer, until the stop word
// (/stop_conversation) or end of input. Converse returns the session ids so
// callers can look up the persisted traces.
//
//	r := runner.New(eng, os.Stdin, os.Stdout)
//	ids, err := r.Converse(ctx)
package runner
