package store

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
)

// The pending-sync queue is a per-collection set of record IDs whose local
// state has not been confirmed uploaded. It is persisted alongside the
// record collections so an offline device that queues writes and is closed
// still sees them on next launch.

// loadPending reads the pending map, failing open to empty. Callers must
// hold s.mu when mutating and re-persisting.
func (s *Store) loadPending(ctx context.Context) map[string][]string {
	blob, found, err := s.kv.Get(ctx, keySyncPending)
	if err != nil {
		s.logger.Printf("Warning: failed to read pending-sync set: %v", err)
		return make(map[string][]string)
	}
	if !found {
		return make(map[string][]string)
	}

	pending := make(map[string][]string)
	if err := json.Unmarshal(blob, &pending); err != nil {
		s.logger.Printf("Warning: corrupt pending-sync set, treating as empty: %v", err)
		return make(map[string][]string)
	}
	return pending
}

func (s *Store) storePending(ctx context.Context, pending map[string][]string) error {
	blob, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending-sync set: %w", err)
	}
	if err := s.kv.Set(ctx, keySyncPending, blob); err != nil {
		return fmt.Errorf("failed to persist pending-sync set: %w", err)
	}
	return nil
}

// MarkPending adds a record ID to the collection's pending-sync set.
// Marking an already-pending ID is a no-op (set semantics).
func (s *Store) MarkPending(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.loadPending(ctx)
	if slices.Contains(pending[collection], id) {
		return nil
	}
	pending[collection] = append(pending[collection], id)
	return s.storePending(ctx, pending)
}

// Pending returns the full pending-sync mapping of collection name to
// record IDs awaiting upload. The returned map is a copy.
func (s *Store) Pending(ctx context.Context) map[string][]string {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.loadPending(ctx)
	out := make(map[string][]string, len(pending))
	for collection, ids := range pending {
		out[collection] = slices.Clone(ids)
	}
	return out
}

// ClearPending removes exactly one ID from one collection's pending set,
// typically after a confirmed upload. Absence of the ID is not an error.
func (s *Store) ClearPending(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := s.loadPending(ctx)
	ids := pending[collection]
	i := slices.Index(ids, id)
	if i < 0 {
		return nil
	}
	pending[collection] = slices.Delete(ids, i, i+1)
	return s.storePending(ctx, pending)
}

// AddDeletedSubject records that a subject was deleted on this device
// only. Tombstoned subjects are excluded from remote-fetch rehydration
// until the set is cleared.
func (s *Store) AddDeletedSubject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tombstones := s.loadTombstones(ctx)
	if slices.Contains(tombstones, id) {
		return nil
	}
	tombstones = append(tombstones, id)

	blob, err := json.Marshal(tombstones)
	if err != nil {
		return fmt.Errorf("failed to marshal tombstone set: %w", err)
	}
	if err := s.kv.Set(ctx, keyDeletedSubjects, blob); err != nil {
		return fmt.Errorf("failed to persist tombstone set: %w", err)
	}
	return nil
}

// DeletedSubjects returns the tombstoned subject IDs.
func (s *Store) DeletedSubjects(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadTombstones(ctx)
}

// ClearDeletedSubjects empties the tombstone set, re-admitting remote
// subjects on the next fetch. Called when the user accepts a cloud restore.
func (s *Store) ClearDeletedSubjects(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Remove(ctx, keyDeletedSubjects); err != nil {
		return fmt.Errorf("failed to clear tombstone set: %w", err)
	}
	return nil
}

func (s *Store) loadTombstones(ctx context.Context) []string {
	blob, found, err := s.kv.Get(ctx, keyDeletedSubjects)
	if err != nil {
		s.logger.Printf("Warning: failed to read tombstone set: %v", err)
		return nil
	}
	if !found {
		return nil
	}

	var tombstones []string
	if err := json.Unmarshal(blob, &tombstones); err != nil {
		s.logger.Printf("Warning: corrupt tombstone set, treating as empty: %v", err)
		return nil
	}
	return tombstones
}
