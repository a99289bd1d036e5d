// Package memstore is an in-process docstore backend. Transactions are optimistic:
// each read records a document version and the commit fails over to a retry when any
// of those versions changed in between.
package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roshankumar101/Portal-sub001/internal/docstore"
)

// maxTxAttempts bounds optimistic transaction retries.
const maxTxAttempts = 5

type entry struct {
	doc     *docstore.Document
	version int64
}

// Store keeps documents in memory.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*entry
	versions    int64
	hub         *docstore.Hub
	closed      bool
	now         func() time.Time
}

var _ docstore.Store = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]*entry),
		hub:         docstore.NewHub(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Get returns a copy of the document.
func (s *Store) Get(_ context.Context, collection, id string) (*docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}
	e, ok := s.collections[collection][id]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, id)
	}
	return e.doc.Clone(), nil
}

// Query evaluates q over the collection.
func (s *Store) Query(_ context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, docstore.ErrClosed
	}
	docs := make([]docstore.Document, 0, len(s.collections[q.Collection]))
	for _, e := range s.collections[q.Collection] {
		docs = append(docs, *e.doc.Clone())
	}
	return docstore.Apply(docs, q), nil
}

// Add creates a document under a generated id.
func (s *Store) Add(ctx context.Context, collection string, data docstore.Data) (string, error) {
	id := docstore.NewID()
	if err := s.Commit(ctx, docstore.Create(collection, id, data)); err != nil {
		return "", err
	}
	return id, nil
}

// Commit applies writes atomically.
func (s *Store) Commit(_ context.Context, writes ...docstore.Write) error {
	s.mu.Lock()
	touched, err := s.applyLocked(writes, nil)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.publish(touched)
	return nil
}

// RunTransaction runs fn with optimistic concurrency control.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tx := &transaction{store: s, reads: make(map[string]int64)}
		if err := fn(ctx, tx); err != nil {
			return err
		}

		s.mu.Lock()
		touched, err := s.applyLocked(tx.writes, tx.reads)
		s.mu.Unlock()
		if err == errConflict {
			continue
		}
		if err != nil {
			return err
		}
		s.publish(touched)
		return nil
	}
	return fmt.Errorf("%w: too much contention", docstore.ErrAborted)
}

// Listen streams snapshots of q.
func (s *Store) Listen(ctx context.Context, q docstore.Query) (<-chan docstore.Snapshot, error) {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, docstore.ErrClosed
	}
	return docstore.Stream(ctx, s.hub, q, s.Query)
}

// Close ends all listeners; further calls fail with ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.hub.Close()
	return nil
}

var errConflict = fmt.Errorf("transaction conflict")

// applyLocked validates reads, computes every write against a staged overlay and
// only then installs the results, so a failing write leaves the store untouched.
func (s *Store) applyLocked(writes []docstore.Write, reads map[string]int64) (map[string]struct{}, error) {
	if s.closed {
		return nil, docstore.ErrClosed
	}
	for key, version := range reads {
		if s.versionOf(key) != version {
			return nil, errConflict
		}
	}

	now := s.now()
	staged := make(map[string]*docstore.Document)
	order := make([]docstore.Write, 0, len(writes))
	for _, w := range writes {
		current, ok := staged[w.Key()]
		if !ok {
			if e, exists := s.collections[w.Collection][w.ID]; exists {
				current = e.doc
			}
		}
		next, err := docstore.ApplyWrite(current, w, now)
		if err != nil {
			return nil, err
		}
		staged[w.Key()] = next
		order = append(order, w)
	}

	touched := make(map[string]struct{})
	for _, w := range order {
		next := staged[w.Key()]
		coll := s.collections[w.Collection]
		if coll == nil {
			coll = make(map[string]*entry)
			s.collections[w.Collection] = coll
		}
		s.versions++
		if next == nil {
			delete(coll, w.ID)
		} else {
			coll[w.ID] = &entry{doc: next, version: s.versions}
		}
		touched[w.Collection] = struct{}{}
	}
	return touched, nil
}

func (s *Store) versionOf(key string) int64 {
	for coll, docs := range s.collections {
		prefix := coll + "/"
		if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if e, ok := docs[key[len(prefix):]]; ok {
			return e.version
		}
	}
	return 0
}

func (s *Store) publish(touched map[string]struct{}) {
	for coll := range touched {
		s.hub.Publish(coll)
	}
}

type transaction struct {
	store  *Store
	reads  map[string]int64
	writes []docstore.Write
}

func (t *transaction) Get(_ context.Context, collection, id string) (*docstore.Document, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if t.store.closed {
		return nil, docstore.ErrClosed
	}
	key := collection + "/" + id
	e, ok := t.store.collections[collection][id]
	if !ok {
		t.reads[key] = 0
		return nil, fmt.Errorf("%w: %s", docstore.ErrNotFound, key)
	}
	t.reads[key] = e.version
	return e.doc.Clone(), nil
}

func (t *transaction) Query(_ context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()
	if t.store.closed {
		return nil, docstore.ErrClosed
	}
	docs := make([]docstore.Document, 0, len(t.store.collections[q.Collection]))
	for id, e := range t.store.collections[q.Collection] {
		docs = append(docs, *e.doc.Clone())
		t.reads[q.Collection+"/"+id] = e.version
	}
	return docstore.Apply(docs, q), nil
}

func (t *transaction) Stage(writes ...docstore.Write) {
	t.writes = append(t.writes, writes...)
}
