// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

package livecache

import (
	"fmt"
	"math"
	"strconv"

	"github.com/mohae/deepcopy"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/logging"
)

// Record is one cached document. The source document id is stored under
// "id".
type Record map[string]any

// ID returns the source document id.
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

func newRecord(id string, data docstore.Data) Record {
	rec := make(Record, len(data)+1)
	for k, v := range data {
		rec[k] = v
	}
	rec["id"] = id
	return rec
}

func (r Record) merge(id string, data docstore.Data) {
	for k, v := range data {
		r[k] = v
	}
	r["id"] = id
}

// view is the merged state of one cache entry. Callers hold the cache lock.
type view interface {
	apply(key Key, b docstore.Batch)
	// copy returns a deep copy of the current value.
	copy() any
}

func newView(kind Kind) view {
	switch kind {
	case KindProfile:
		return &docView{rec: Record{}}
	case KindRatings, KindFollowed:
		return newKeyedView(mediaKeyOf)
	case KindTVProgress:
		return newKeyedView(tvKeyOf)
	case KindComments:
		return &listView{records: []Record{}}
	case KindWatchlists:
		return &watchlistView{listView{records: []Record{}}}
	default:
		return nil
	}
}

// emptyValue is what an accessor returns before the first snapshot.
func emptyValue(kind Kind) any {
	switch kind {
	case KindProfile:
		return Record{}
	case KindRatings, KindFollowed, KindTVProgress:
		return map[string]Record{}
	default:
		return []Record{}
	}
}

func logModifiedFallback(key Key, id string) {
	logging.Warn().
		Str("key", key.String()).
		Str("doc_id", id).
		Msg("Modified event for unknown document, inserting")
}

// docView holds a single document.
type docView struct {
	rec Record
}

func (v *docView) apply(key Key, b docstore.Batch) {
	if b.Snapshot {
		v.rec = Record{}
		if len(b.Documents) > 0 {
			d := b.Documents[0]
			v.rec = newRecord(d.ID, d.Data)
		}
		return
	}
	for _, ch := range b.Changes {
		switch ch.Type {
		case docstore.Added:
			v.rec = newRecord(ch.ID, ch.Data)
		case docstore.Modified:
			if len(v.rec) == 0 {
				logModifiedFallback(key, ch.ID)
				v.rec = newRecord(ch.ID, ch.Data)
				continue
			}
			v.rec.merge(ch.ID, ch.Data)
		case docstore.Removed:
			v.rec = Record{}
		}
	}
}

func (v *docView) copy() any {
	return deepcopy.Copy(v.rec).(Record)
}

// keyedView holds records by document id and exposes them under a
// composite key derived from each document. When several documents share
// a composite key the most recently written one is visible; the others
// stay held and reappear once it moves away or is removed.
type keyedView struct {
	keyOf func(id string, data map[string]any) string
	docs  map[string]*keyedDoc
	seq   uint64
}

type keyedDoc struct {
	rec Record
	seq uint64
}

func newKeyedView(keyOf func(string, map[string]any) string) *keyedView {
	return &keyedView{
		keyOf: keyOf,
		docs:  make(map[string]*keyedDoc),
	}
}

func (v *keyedView) put(id string, rec Record) {
	v.seq++
	v.docs[id] = &keyedDoc{rec: rec, seq: v.seq}
}

func (v *keyedView) apply(key Key, b docstore.Batch) {
	if b.Snapshot {
		v.docs = make(map[string]*keyedDoc, len(b.Documents))
		for _, d := range b.Documents {
			v.put(d.ID, newRecord(d.ID, d.Data))
		}
		return
	}

	for _, ch := range b.Changes {
		switch ch.Type {
		case docstore.Added:
			v.put(ch.ID, newRecord(ch.ID, ch.Data))
		case docstore.Modified:
			doc, ok := v.docs[ch.ID]
			if !ok {
				logModifiedFallback(key, ch.ID)
				v.put(ch.ID, newRecord(ch.ID, ch.Data))
				continue
			}
			doc.rec.merge(ch.ID, ch.Data)
			v.put(ch.ID, doc.rec)
		case docstore.Removed:
			delete(v.docs, ch.ID)
		}
	}
}

// value returns the composite key map. Records are shared with the view.
func (v *keyedView) value() map[string]Record {
	out := make(map[string]Record, len(v.docs))
	seqs := make(map[string]uint64, len(v.docs))
	for id, doc := range v.docs {
		ck := v.keyOf(id, doc.rec)
		if s, taken := seqs[ck]; taken && s > doc.seq {
			continue
		}
		out[ck] = doc.rec
		seqs[ck] = doc.seq
	}
	return out
}

func (v *keyedView) copy() any {
	return deepcopy.Copy(v.value()).(map[string]Record)
}

// listView keeps records in arrival order.
type listView struct {
	records []Record
}

func (v *listView) find(id string) int {
	return indexOf(v.records, id)
}

func (v *listView) apply(key Key, b docstore.Batch) {
	v.records = mergeList(key, v.records, b)
}

func (v *listView) copy() any {
	return deepcopy.Copy(v.records).([]Record)
}

func indexOf(list []Record, id string) int {
	for i, r := range list {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

func mergeList(key Key, list []Record, b docstore.Batch) []Record {
	if b.Snapshot {
		out := make([]Record, 0, len(b.Documents))
		for _, d := range b.Documents {
			out = append(out, newRecord(d.ID, d.Data))
		}
		return out
	}

	if list == nil {
		list = []Record{}
	}
	for _, ch := range b.Changes {
		i := indexOf(list, ch.ID)
		switch ch.Type {
		case docstore.Added:
			if i >= 0 {
				list[i] = newRecord(ch.ID, ch.Data)
				continue
			}
			list = append(list, newRecord(ch.ID, ch.Data))
		case docstore.Modified:
			if i < 0 {
				logModifiedFallback(key, ch.ID)
				list = append(list, newRecord(ch.ID, ch.Data))
				continue
			}
			list[i].merge(ch.ID, ch.Data)
		case docstore.Removed:
			if i >= 0 {
				list = append(list[:i], list[i+1:]...)
			}
		}
	}
	return list
}

// mediaField holds a watchlist's media inside its record.
const mediaField = "media"

// watchlistView is a listView whose records carry the media of their own
// child subscription. Replacing a record keeps its media.
type watchlistView struct {
	listView
}

func (v *watchlistView) apply(key Key, b docstore.Batch) {
	media := make(map[string]any)
	for _, r := range v.records {
		if m, ok := r[mediaField]; ok {
			media[r.ID()] = m
		}
	}

	v.records = mergeList(key, v.records, b)

	for _, r := range v.records {
		if m, ok := media[r.ID()]; ok {
			r[mediaField] = m
		}
	}
}

// applyMedia merges a media batch into watchlist wlID. It reports false
// if the watchlist record is not cached.
func (v *watchlistView) applyMedia(key Key, wlID string, b docstore.Batch) bool {
	i := v.find(wlID)
	if i < 0 {
		return false
	}
	rec := v.records[i]
	cur, _ := rec[mediaField].([]Record)
	rec[mediaField] = mergeList(key, cur, b)
	return true
}

func (v *watchlistView) clearMedia(wlID string) {
	if i := v.find(wlID); i >= 0 {
		delete(v.records[i], mediaField)
	}
}

func (v *watchlistView) ids() []string {
	ids := make([]string, 0, len(v.records))
	for _, r := range v.records {
		ids = append(ids, r.ID())
	}
	return ids
}

// mediaKeyOf keys ratings and followed media as "<media_type>_<media_id>".
func mediaKeyOf(id string, data map[string]any) string {
	mt, ok1 := data["media_type"]
	mid, ok2 := data["media_id"]
	if !ok1 || !ok2 {
		return id
	}
	return FormatID(mt) + "_" + FormatID(mid)
}

// tvKeyOf keys episode progress as "tv_<tv_id>".
func tvKeyOf(id string, data map[string]any) string {
	tv, ok := data["tv_id"]
	if !ok {
		return id
	}
	return "tv_" + FormatID(tv)
}

// MediaRef returns the composite key used by Ratings and FollowedMedia.
func MediaRef(mediaType string, mediaID any) string {
	return mediaType + "_" + FormatID(mediaID)
}

// TVRef returns the key used by TVProgress.
func TVRef(tvID any) string {
	return "tv_" + FormatID(tvID)
}

// FormatID renders a document id field as a string. JSON numbers decoded
// as float64 render like integers.
func FormatID(v any) string {
	switch n := v.(type) {
	case string:
		return n
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
