// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

/*
Package docstore defines the contract between the live cache and the remote
document store that holds user data.

A Store turns a Ref (a document, or the direct children of a collection with
an optional equality filter) into a Stream. Every Stream delivers one
snapshot Batch with the full result set, then ordered Batches of Added,
Modified and Removed changes, until Unsubscribe is called:

	stream, err := store.Subscribe(ctx, docstore.CollectionRef("users/u1/watchlists"))
	if err != nil {
	    return err
	}
	defer stream.Unsubscribe()

	for batch := range stream.Events() {
	    if batch.Snapshot {
	        // replace local view with batch.Documents
	        continue
	    }
	    for _, ch := range batch.Changes {
	        // apply ch.Type to ch.ID / ch.Data
	    }
	}

IsClosed is the liveness check used by the health monitor: it reports a
stream that ended without being unsubscribed (connection loss, server side
watcher termination).

Backends:
  - memstore: in-process documents, used for standalone mode and tests
  - natskv: NATS JetStream key-value bucket watches
*/
package docstore
