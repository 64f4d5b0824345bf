package ring

import "os"

// Stats is a point-in-time snapshot of a ring's header counters,
// returned by ReadStats.
type Stats struct {
	WriteIndex  uint64
	ReadIndex   uint64
	ErrorCount  uint64
	WriterDone  bool
}

// ReadStats opens an existing ring file, snapshots its counters, and
// unmaps it again. It is a read-only auxiliary operation independent
// of any active RX/TX session.
func ReadStats(path string) (Stats, error) {
	r, err := Open(path)
	if err != nil {
		return Stats{}, err
	}
	defer r.SyncAndUnmap()

	return Stats{
		WriteIndex: r.LoadWriteIndexAcquire(),
		ReadIndex:  r.LoadReadIndexAcquire(),
		ErrorCount: r.LoadErrorCount(),
		WriterDone: r.IsWriterDone(),
	}, nil
}

// DeleteRing removes a ring file. It is idempotent: deleting an
// absent path is a no-op, matching the supervisor's
// delete-stale-file-then-create startup sequence.
func DeleteRing(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
