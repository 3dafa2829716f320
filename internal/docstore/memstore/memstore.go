// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

// Package memstore is an in-process document store implementing the
// docstore contract. It backs standalone deployments and serves as the
// store collaborator in tests, with hooks for failure injection, delayed
// snapshots and broken streams.
package memstore

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/mohae/deepcopy"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/logging"
)

// watch is one open subscription.
type watch struct {
	ref     docstore.Ref
	pipe    *docstore.Pipe
	pending bool // snapshot held back by HoldSnapshots
}

// Store keeps documents keyed by full slash path.
type Store struct {
	mu      sync.Mutex
	docs    map[string]docstore.Data
	watches map[*watch]struct{}
	closed  bool

	subscribeErr   error
	holdSnapshots  bool
	subscribeCalls map[string]int
}

var _ docstore.ReadWriteStore = (*Store)(nil)

// New returns an empty store.
func New() *Store {
	return &Store{
		docs:           make(map[string]docstore.Data),
		watches:        make(map[*watch]struct{}),
		subscribeCalls: make(map[string]int),
	}
}

// Subscribe implements docstore.Store. The snapshot is queued before
// Subscribe returns unless snapshots are held.
func (s *Store) Subscribe(ctx context.Context, ref docstore.Ref) (docstore.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := docstore.SplitPath(ref.Path); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, docstore.ErrClosed
	}
	s.subscribeCalls[ref.Path]++
	if s.subscribeErr != nil {
		return nil, fmt.Errorf("subscribe %s: %w", ref, s.subscribeErr)
	}

	w := &watch{ref: ref}
	w.pipe = docstore.NewPipe(func() error {
		s.mu.Lock()
		delete(s.watches, w)
		s.mu.Unlock()
		return nil
	})
	s.watches[w] = struct{}{}

	if s.holdSnapshots {
		w.pending = true
	} else {
		w.pipe.Push(s.snapshotLocked(ref))
	}

	logging.Debug().Str("ref", ref.String()).Msg("memstore subscription opened")
	return w.pipe, nil
}

// Close implements docstore.Store. Open streams are broken.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	for w := range s.watches {
		w.pipe.Break()
	}
	s.watches = make(map[*watch]struct{})
	return nil
}

// Get implements docstore.Writer.
func (s *Store) Get(_ context.Context, p string) (docstore.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, ok := s.docs[p]
	if !ok {
		return nil, fmt.Errorf("%s: %w", p, docstore.ErrNotFound)
	}
	return copyData(data), nil
}

// Set implements docstore.Writer.
func (s *Store) Set(_ context.Context, p string, data docstore.Data) error {
	if _, err := docstore.SplitPath(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return docstore.ErrClosed
	}
	old := s.docs[p]
	s.docs[p] = copyData(data)
	s.notifyLocked(p, old, s.docs[p])
	return nil
}

// Merge implements docstore.Writer. Missing documents are created.
func (s *Store) Merge(_ context.Context, p string, data docstore.Data) error {
	if _, err := docstore.SplitPath(p); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return docstore.ErrClosed
	}
	old := s.docs[p]
	merged := copyData(old)
	if merged == nil {
		merged = make(docstore.Data, len(data))
	}
	for k, v := range copyData(data) {
		merged[k] = v
	}
	s.docs[p] = merged
	s.notifyLocked(p, old, merged)
	return nil
}

// Delete implements docstore.Writer. Deleting a missing document is a no-op.
func (s *Store) Delete(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return docstore.ErrClosed
	}
	old, ok := s.docs[p]
	if !ok {
		return nil
	}
	delete(s.docs, p)
	s.notifyLocked(p, old, nil)
	return nil
}

// List implements docstore.Writer.
func (s *Store) List(_ context.Context, collection string) ([]docstore.Document, error) {
	if _, err := docstore.SplitPath(collection); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, docstore.ErrClosed
	}
	return s.snapshotLocked(docstore.CollectionRef(collection)).Documents, nil
}

// FailSubscribe makes every later Subscribe fail with err. A nil err
// restores normal behavior.
func (s *Store) FailSubscribe(err error) {
	s.mu.Lock()
	s.subscribeErr = err
	s.mu.Unlock()
}

// HoldSnapshots delays initial snapshots of new subscriptions until
// ReleaseSnapshots is called.
func (s *Store) HoldSnapshots() {
	s.mu.Lock()
	s.holdSnapshots = true
	s.mu.Unlock()
}

// ReleaseSnapshots delivers held snapshots, computed from current state.
func (s *Store) ReleaseSnapshots() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.holdSnapshots = false
	for w := range s.watches {
		if w.pending {
			w.pending = false
			w.pipe.Push(s.snapshotLocked(w.ref))
		}
	}
}

// BreakStreams breaks every open stream watching refPath, as a dropped
// connection would. It returns how many streams were broken.
func (s *Store) BreakStreams(refPath string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for w := range s.watches {
		if w.ref.Path == refPath {
			w.pipe.Break()
			delete(s.watches, w)
			n++
		}
	}
	return n
}

// SubscribeCalls returns how many times Subscribe was called for refPath.
func (s *Store) SubscribeCalls(refPath string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribeCalls[refPath]
}

// OpenStreams returns the number of streams not yet unsubscribed or broken.
func (s *Store) OpenStreams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watches)
}

func (s *Store) snapshotLocked(ref docstore.Ref) docstore.Batch {
	batch := docstore.Batch{Snapshot: true}

	if ref.Document {
		if data, ok := s.docs[ref.Path]; ok && ref.Filter.Matches(data) {
			batch.Documents = append(batch.Documents, docstore.Document{
				ID:   path.Base(ref.Path),
				Data: copyData(data),
			})
		}
		return batch
	}

	for p, data := range s.docs {
		if path.Dir(p) != ref.Path || !ref.Filter.Matches(data) {
			continue
		}
		batch.Documents = append(batch.Documents, docstore.Document{
			ID:   path.Base(p),
			Data: copyData(data),
		})
	}
	sort.Slice(batch.Documents, func(i, j int) bool {
		return batch.Documents[i].ID < batch.Documents[j].ID
	})
	return batch
}

func (s *Store) notifyLocked(p string, old, updated docstore.Data) {
	for w := range s.watches {
		if w.pending || !watches(w.ref, p) {
			continue
		}

		wasIn := old != nil && w.ref.Filter.Matches(old)
		isIn := updated != nil && w.ref.Filter.Matches(updated)

		var ch docstore.Change
		ch.ID = path.Base(p)
		switch {
		case !wasIn && isIn:
			ch.Type = docstore.Added
			ch.Data = copyData(updated)
		case wasIn && isIn:
			ch.Type = docstore.Modified
			ch.Data = copyData(updated)
		case wasIn && !isIn:
			ch.Type = docstore.Removed
			ch.Data = copyData(old)
		default:
			continue
		}
		w.pipe.Push(docstore.Batch{Changes: []docstore.Change{ch}})
	}
}

func watches(ref docstore.Ref, p string) bool {
	if ref.Document {
		return ref.Path == p
	}
	return path.Dir(p) == ref.Path
}

func copyData(d docstore.Data) docstore.Data {
	if d == nil {
		return nil
	}
	return deepcopy.Copy(d).(map[string]any)
}
