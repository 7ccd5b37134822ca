// Package artifact contains implementations of core.DataFileStore, the store
// for tabular files users upload before asking questions about them.
//
// The interface lives in the core package; callers should depend on it rather
// than on concrete types so they can swap persistence layers.
package artifact
