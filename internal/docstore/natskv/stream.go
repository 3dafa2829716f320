// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package natskv

import (
	"sort"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/logging"
)

// stream adapts a KV watcher to docstore.Stream.
type stream struct {
	*docstore.Pipe
	ref     docstore.Ref
	watcher jetstream.KeyWatcher
}

// feed translates watcher entries into batches. Entries up to the nil
// marker are the initial values and become the snapshot. Filters are
// evaluated here, so a put that moves a document out of the filter is a
// removal for this stream.
func (st *stream) feed() {
	updates := st.watcher.Updates()
	initial := make(map[string]docstore.Data)
	known := make(map[string]bool)
	replaying := true

	for {
		var entry jetstream.KeyValueEntry
		var ok bool
		select {
		case entry, ok = <-updates:
		case <-st.Done():
			return
		}
		if !ok {
			// Channel ended without Unsubscribe.
			select {
			case <-st.Done():
			default:
				logging.Warn().Str("ref", st.ref.String()).Msg("KV watch ended unexpectedly")
				st.Break()
			}
			return
		}

		if entry == nil {
			if replaying {
				replaying = false
				st.Push(snapshot(initial))
				initial = nil
			}
			continue
		}

		id := docID(entry.Key())
		var data docstore.Data
		if entry.Operation() == jetstream.KeyValuePut {
			d, err := decode(entry.Value())
			if err != nil {
				logging.Warn().Err(err).Str("key", entry.Key()).Msg("Skipping undecodable document")
				continue
			}
			if st.ref.Filter.Matches(d) {
				data = d
			}
		}

		if replaying {
			if data != nil {
				initial[id] = data
				known[id] = true
			} else {
				delete(initial, id)
				delete(known, id)
			}
			continue
		}

		var ch docstore.Change
		ch.ID = id
		switch {
		case data != nil && known[id]:
			ch.Type, ch.Data = docstore.Modified, data
		case data != nil:
			ch.Type, ch.Data = docstore.Added, data
			known[id] = true
		case known[id]:
			ch.Type = docstore.Removed
			delete(known, id)
		default:
			continue
		}
		st.Push(docstore.Batch{Changes: []docstore.Change{ch}})
	}
}

func snapshot(docs map[string]docstore.Data) docstore.Batch {
	batch := docstore.Batch{Snapshot: true}
	for id, data := range docs {
		batch.Documents = append(batch.Documents, docstore.Document{ID: id, Data: data})
	}
	sort.Slice(batch.Documents, func(i, j int) bool {
		return batch.Documents[i].ID < batch.Documents[j].ID
	})
	return batch
}
