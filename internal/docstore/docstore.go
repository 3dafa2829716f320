// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Common errors returned by document store backends.
var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidPath is returned for empty paths, empty segments, or
	// segments containing characters the backend cannot address.
	ErrInvalidPath = errors.New("invalid document path")

	// ErrClosed is returned when the store has been closed.
	ErrClosed = errors.New("document store closed")
)

// ChangeType tags a single change delivered after the initial snapshot.
type ChangeType int

const (
	// Added means the document entered the result set.
	Added ChangeType = iota + 1
	// Modified means a document already in the result set changed.
	Modified
	// Removed means the document left the result set.
	Removed
)

// String implements fmt.Stringer.
func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Data is the decoded body of a document.
type Data = map[string]any

// Document is one document of a result set.
type Document struct {
	ID   string
	Data Data
}

// Change is one tagged change event. Data may be nil for Removed.
type Change struct {
	Type ChangeType
	Document
}

// Batch is the unit a Stream delivers. The first batch of every stream has
// Snapshot set and carries the full result set in Documents; every later
// batch carries ordered Changes.
type Batch struct {
	Snapshot  bool
	Documents []Document
	Changes   []Change
}

// Empty reports whether a non-snapshot batch carries no changes.
func (b Batch) Empty() bool {
	return !b.Snapshot && len(b.Changes) == 0
}

// Filter restricts a collection subscription to documents whose Field
// equals Value.
type Filter struct {
	Field string
	Value any
}

// Matches reports whether data satisfies the filter.
func (f *Filter) Matches(data Data) bool {
	if f == nil {
		return true
	}
	v, ok := data[f.Field]
	if !ok {
		return false
	}
	return fmt.Sprint(v) == fmt.Sprint(f.Value)
}

// Ref names what a subscription watches: a single document or the direct
// children of a collection, optionally filtered.
//
// Paths are slash separated, for example "users/u1" (document) or
// "users/u1/watchlists" (collection).
type Ref struct {
	Path     string
	Document bool
	Filter   *Filter
}

// DocumentRef returns a Ref to a single document.
func DocumentRef(path string) Ref {
	return Ref{Path: path, Document: true}
}

// CollectionRef returns a Ref to every document directly under path.
func CollectionRef(path string) Ref {
	return Ref{Path: path}
}

// Where returns a copy of r filtered on field == value.
func (r Ref) Where(field string, value any) Ref {
	r.Filter = &Filter{Field: field, Value: value}
	return r
}

// String implements fmt.Stringer for logging.
func (r Ref) String() string {
	if r.Filter != nil {
		return fmt.Sprintf("%s[%s==%v]", r.Path, r.Filter.Field, r.Filter.Value)
	}
	return r.Path
}

// JoinPath joins path segments with "/".
func JoinPath(segments ...string) string {
	return strings.Join(segments, "/")
}

// SplitPath splits and validates a slash separated path.
func SplitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	parts := strings.Split(path, "/")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: empty segment in %q", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

// Stream is a live subscription. Events delivers the initial snapshot and
// then ordered changes until Unsubscribe is called or the stream breaks, at
// which point the channel is closed.
type Stream interface {
	Events() <-chan Batch
	// IsClosed reports whether the stream stopped delivering for any reason
	// other than Unsubscribe.
	IsClosed() bool
	Unsubscribe() error
}

// Store opens change streams.
type Store interface {
	Subscribe(ctx context.Context, ref Ref) (Stream, error)
	Close() error
}

// Writer mutates documents. Writes are observed by matching streams.
type Writer interface {
	Get(ctx context.Context, path string) (Data, error)
	Set(ctx context.Context, path string, data Data) error
	Merge(ctx context.Context, path string, data Data) error
	Delete(ctx context.Context, path string) error

	// List returns the direct children of collection ordered by ID.
	List(ctx context.Context, collection string) ([]Document, error)
}

// ReadWriteStore is a Store that also accepts writes.
type ReadWriteStore interface {
	Store
	Writer
}
