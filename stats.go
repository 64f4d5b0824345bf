package sdrshm

import "github.com/sdrshm/sdrshm/internal/ring"

// ReadStats opens ring path, snapshots its counters, and unmaps it
// again, independent of any active session. It is safe to call while
// a session owns the same ring: reads are concurrent-safe with the
// atomic counter protocol.
func ReadStats(path string) (Stats, error) {
	return ring.ReadStats(path)
}

// DeleteRing removes a ring file. Deleting an absent path is a no-op.
func DeleteRing(path string) error {
	return ring.DeleteRing(path)
}
