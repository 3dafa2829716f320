// Teleshow - Personal Media Tracking Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/teleshow

// Package natskv implements the docstore contract on a NATS JetStream
// key-value bucket. Each document is one key holding a JSON object;
// subscriptions are KV watches whose initial values form the snapshot.
package natskv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/teleshow/internal/docstore"
	"github.com/tomtom215/teleshow/internal/logging"
	"github.com/tomtom215/teleshow/internal/metrics"
)

// Config configures the store connection.
type Config struct {
	// URL of the NATS server. Ignored when Embedded is set.
	URL string

	// Embedded starts an in-process server instead of dialing URL.
	Embedded bool
	Server   ServerConfig

	// Bucket is the KV bucket holding documents. Created if missing.
	Bucket string

	// FileStorage persists the bucket on disk instead of memory.
	FileStorage bool

	ConnectTimeout time.Duration

	// Subscribe circuit breaker.
	BreakerFailureThreshold uint32
	BreakerTimeout          time.Duration
}

// DefaultConfig returns settings for a local embedded server.
func DefaultConfig() Config {
	return Config{
		URL:      nats.DefaultURL,
		Embedded: true,
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4222,
		},
		Bucket:                  "teleshow",
		ConnectTimeout:          10 * time.Second,
		BreakerFailureThreshold: 5,
		BreakerTimeout:          30 * time.Second,
	}
}

// Store is a docstore.ReadWriteStore backed by a JetStream KV bucket.
type Store struct {
	nc       *nats.Conn
	kv       jetstream.KeyValue
	cb       *gobreaker.CircuitBreaker[jetstream.KeyWatcher]
	embedded *EmbeddedServer

	// watchCtx outlives request contexts; KV watchers stop when it ends.
	watchCtx    context.Context
	watchCancel context.CancelFunc

	mu      sync.Mutex
	streams map[*stream]struct{}
	closed  bool
}

var _ docstore.ReadWriteStore = (*Store)(nil)

// Open connects (starting the embedded server if configured) and ensures
// the bucket exists.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	s := &Store{streams: make(map[*stream]struct{})}
	s.watchCtx, s.watchCancel = context.WithCancel(context.Background())

	url := cfg.URL
	if cfg.Embedded {
		srv, err := NewEmbeddedServer(cfg.Server)
		if err != nil {
			s.watchCancel()
			return nil, err
		}
		s.embedded = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	nc, err := nats.Connect(url,
		nats.Name("teleshow-livecache"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			s.breakAll()
		}),
	)
	if err != nil {
		s.watchCancel()
		s.shutdownServer()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	s.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	storage := jetstream.MemoryStorage
	if cfg.FileStorage {
		storage = jetstream.FileStorage
	}
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "Teleshow user documents",
		History:     1,
		Storage:     storage,
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("ensure bucket %s: %w", cfg.Bucket, err)
	}
	s.kv = kv
	s.cb = newBreaker(cfg)

	logging.Info().Str("bucket", cfg.Bucket).Str("url", url).Msg("Document store ready")
	return s, nil
}

func newBreaker(cfg Config) *gobreaker.CircuitBreaker[jetstream.KeyWatcher] {
	threshold := cfg.BreakerFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	return gobreaker.NewCircuitBreaker[jetstream.KeyWatcher](gobreaker.Settings{
		Name:        "docstore-subscribe",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
			metrics.RecordBreakerTransition(name, from.String(), to.String())
		},
	})
}

// BreakerState reports the subscribe circuit breaker state.
func (s *Store) BreakerState() string {
	return s.cb.State().String()
}

// Subscribe implements docstore.Store.
func (s *Store) Subscribe(ctx context.Context, ref docstore.Ref) (docstore.Stream, error) {
	pattern, err := watchPattern(ref)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, docstore.ErrClosed
	}

	wctx, cancel := context.WithCancel(s.watchCtx)
	w, err := s.cb.Execute(func() (jetstream.KeyWatcher, error) {
		return s.kv.Watch(wctx, pattern)
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch %s: %w", ref, err)
	}

	st := &stream{ref: ref, watcher: w}
	st.Pipe = docstore.NewPipe(func() error {
		s.mu.Lock()
		delete(s.streams, st)
		s.mu.Unlock()

		err := w.Stop()
		cancel()
		if errors.Is(err, nats.ErrBadSubscription) || errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		return err
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = st.Unsubscribe()
		return nil, docstore.ErrClosed
	}
	s.streams[st] = struct{}{}
	s.mu.Unlock()

	go st.feed()

	logging.Debug().Str("ref", ref.String()).Str("pattern", pattern).Msg("KV watch opened")
	return st.Pipe, nil
}

// Close breaks open streams, closes the connection and stops the
// embedded server. Calling Close more than once is safe.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.breakAll()
	s.watchCancel()
	if s.nc != nil {
		s.nc.Close()
	}
	s.shutdownServer()
	return nil
}

func (s *Store) shutdownServer() {
	if s.embedded == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.embedded.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("Embedded NATS server shutdown")
	}
}

func (s *Store) breakAll() {
	s.mu.Lock()
	streams := make([]*stream, 0, len(s.streams))
	for st := range s.streams {
		streams = append(streams, st)
	}
	s.streams = make(map[*stream]struct{})
	s.mu.Unlock()

	for _, st := range streams {
		st.Break()
	}
}

// Get implements docstore.Writer.
func (s *Store) Get(ctx context.Context, p string) (docstore.Data, error) {
	key, err := keyFor(p)
	if err != nil {
		return nil, err
	}
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", p, docstore.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", p, err)
	}
	return decode(entry.Value())
}

// Set implements docstore.Writer.
func (s *Store) Set(ctx context.Context, p string, data docstore.Data) error {
	key, err := keyFor(p)
	if err != nil {
		return err
	}
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", p, err)
	}
	if _, err := s.kv.Put(ctx, key, body); err != nil {
		return fmt.Errorf("put %s: %w", p, err)
	}
	return nil
}

// Merge implements docstore.Writer. Missing documents are created. The
// read-modify-write is guarded by the entry revision and retried on
// conflict.
func (s *Store) Merge(ctx context.Context, p string, data docstore.Data) error {
	key, err := keyFor(p)
	if err != nil {
		return err
	}

	const attempts = 3
	for i := 0; ; i++ {
		err = s.mergeOnce(ctx, key, data)
		if err == nil || i == attempts-1 || !isConflict(err) {
			break
		}
	}
	if err != nil {
		return fmt.Errorf("merge %s: %w", p, err)
	}
	return nil
}

func (s *Store) mergeOnce(ctx context.Context, key string, data docstore.Data) error {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		body, err := json.Marshal(data)
		if err != nil {
			return err
		}
		_, err = s.kv.Create(ctx, key, body)
		return err
	}
	if err != nil {
		return err
	}

	merged, err := decode(entry.Value())
	if err != nil {
		return err
	}
	for k, v := range data {
		merged[k] = v
	}
	body, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	_, err = s.kv.Update(ctx, key, body, entry.Revision())
	return err
}

func isConflict(err error) bool {
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// Delete implements docstore.Writer.
func (s *Store) Delete(ctx context.Context, p string) error {
	key, err := keyFor(p)
	if err != nil {
		return err
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// List implements docstore.Writer with a one-shot watch over the
// collection's keys, stopped once the initial values are in.
func (s *Store) List(ctx context.Context, collection string) ([]docstore.Document, error) {
	pattern, err := watchPattern(docstore.CollectionRef(collection))
	if err != nil {
		return nil, err
	}
	w, err := s.kv.Watch(ctx, pattern, jetstream.IgnoreDeletes())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer func() { _ = w.Stop() }()

	var docs []docstore.Document
	for {
		select {
		case entry, ok := <-w.Updates():
			if !ok {
				return nil, fmt.Errorf("list %s: watch ended", collection)
			}
			if entry == nil {
				sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
				return docs, nil
			}
			data, err := decode(entry.Value())
			if err != nil {
				logging.Warn().Err(err).Str("key", entry.Key()).Msg("Skipping undecodable document")
				continue
			}
			docs = append(docs, docstore.Document{ID: docID(entry.Key()), Data: data})
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func decode(b []byte) (docstore.Data, error) {
	data := make(docstore.Data)
	if len(b) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return data, nil
}
