// Package testutil contains helper builders used across tests to reduce
// boilerplate when constructing state snapshots, invocation contexts and
// scripted model replies. It is not intended for production usage.
package testutil
