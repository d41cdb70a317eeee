// Package sync provides the reconciliation orchestrator that drives the
// two one-way passes between the local record store and the remote
// document store.
package sync

import "context"

// Syncer reconciles local state with the remote store.
//
// Push and pull are independent one-way passes, never interleaved for the
// same collection in one invocation. There is no conflict state: the last
// local write wins on push, the last remote state wins on pull (except for
// tombstoned subjects). Overlapping invocations are tolerated because every
// underlying operation is an idempotent upsert and the pending queue has
// set semantics.
type Syncer interface {
	// SyncAll drains the pending-sync queue: for each collection, each
	// pending ID is resolved against the current local collection and
	// uploaded, then cleared from the queue only after the upload
	// succeeds. IDs whose record no longer exists locally are skipped
	// and their stale queue entries dropped.
	//
	// A failed upload leaves its ID pending and the pass continues with
	// the remaining IDs and collections; a single network blip must not
	// block unrelated pending writes. If any upload failed, an
	// aggregate error is returned after the pass completes, but the
	// successfully cleared IDs stay cleared. A missing authenticated
	// principal aborts the pass immediately.
	SyncAll(ctx context.Context) error

	// FetchAll downloads all four synced collections and writes every
	// record into the local store with sync-marking suppressed, so
	// hydration never re-queues records for upload. Subjects whose ID
	// is tombstoned are excluded: a local-only deletion survives a
	// cloud restore until the user explicitly opts back in.
	FetchAll(ctx context.Context) error

	// RestoreFromCloud clears the deleted-subject tombstone set and
	// then runs FetchAll, re-admitting previously deleted subjects
	// that still exist remotely.
	RestoreFromCloud(ctx context.Context) error

	// DeleteStudentCascade removes a student and every grade that
	// references them, locally and remotely, in one call.
	DeleteStudentCascade(ctx context.Context, studentID string) error

	// DeleteSubjectLocal removes a subject from this device only and
	// tombstones it so pull passes don't bring it back.
	DeleteSubjectLocal(ctx context.Context, subjectID string) error

	// DeleteSubjectEverywhere removes a subject locally and from the
	// remote store.
	DeleteSubjectEverywhere(ctx context.Context, subjectID string) error

	// WipeRemote permanently deletes every remote record in every
	// collection plus the principal's profile document.
	WipeRemote(ctx context.Context) error

	// WipeLocal clears every locally persisted key for a full reset.
	WipeLocal(ctx context.Context) error
}
