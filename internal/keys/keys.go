// Package keys centralizes Redis key construction.
// It is kept in internal to avoid leaking key formats to public API.
package keys

// Namespace holds all precomputed keys for a namespace.
// All keys share a hash tag so scripts touching them stay cluster-safe.
type Namespace struct {
	// Pending is the LIST of task ids in insertion order.
	Pending string
	// Tasks is the HASH mapping task id to its encoded record.
	Tasks string
	// Invalid is the HASH of records that could not be decoded, keyed by id.
	Invalid string
}

// For returns the keys for the provided namespace.
func For(ns string) Namespace {
	prefix := "uniqw:{" + ns + "}:"
	return Namespace{
		Pending: prefix + "pending",
		Tasks:   prefix + "tasks",
		Invalid: prefix + "invalid",
	}
}
