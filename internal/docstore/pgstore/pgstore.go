// Package pgstore keeps documents in a single PostgreSQL JSONB table and
// delivers change signals through LISTEN/NOTIFY.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/docstore"
)

// NotifyChannel is the LISTEN/NOTIFY channel carrying collection names.
const NotifyChannel = "docstore_changes"

const maxTxAttempts = 5

//go:embed schema.sql
var schemaSQL string

// Postgres error codes handled by the store.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Store is a docstore backed by PostgreSQL.
type Store struct {
	pool   *pgxpool.Pool
	owned  bool
	logger *zap.Logger
	hub    *docstore.Hub

	listenOnce   sync.Once
	listenCtx    context.Context
	listenCancel context.CancelFunc
	listenDone   chan struct{}
}

var _ docstore.Store = (*Store)(nil)

// New wraps an existing pool. The caller keeps ownership of the pool.
func New(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		pool:         pool,
		logger:       logger.Named("pgstore"),
		hub:          docstore.NewHub(),
		listenCtx:    ctx,
		listenCancel: cancel,
		listenDone:   make(chan struct{}),
	}
}

// Connect establishes a connection pool to the database.
func Connect(ctx context.Context, databaseURL string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := New(pool, logger)
	s.owned = true
	return s, nil
}

// Migrate creates the documents table and its indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to migrate documents table: %w", err)
	}
	return nil
}

// Close stops the listener and, when the store opened the pool, closes it.
func (s *Store) Close() error {
	s.listenCancel()
	// a listener that never started has nothing to wait for
	s.listenOnce.Do(func() { close(s.listenDone) })
	<-s.listenDone
	s.hub.Close()
	if s.owned {
		s.pool.Close()
	}
	return nil
}

// querier is satisfied by the pool and by transactions.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Get returns docstore.ErrNotFound when the document is absent.
func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if s.listenCtx.Err() != nil {
		return nil, docstore.ErrClosed
	}
	doc, err := getDocument(ctx, s.pool, collection, id, false)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, id)
	}
	return doc, nil
}

// Query pushes equality filters down as a JSONB containment test and evaluates
// the rest of q in memory.
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if s.listenCtx.Err() != nil {
		return nil, docstore.ErrClosed
	}
	return queryDocuments(ctx, s.pool, q)
}

// Add creates a document with a generated id.
func (s *Store) Add(ctx context.Context, collection string, data docstore.Data) (string, error) {
	id := docstore.NewID()
	if err := s.Commit(ctx, docstore.Create(collection, id, data)); err != nil {
		return "", err
	}
	return id, nil
}

// Commit applies writes in one database transaction.
func (s *Store) Commit(ctx context.Context, writes ...docstore.Write) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		tx.Stage(writes...)
		return nil
	})
}

// RunTransaction runs fn inside a database transaction. Reads through tx.Get lock
// the row until commit. Serialization failures and deadlocks are retried.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	if s.listenCtx.Err() != nil {
		return docstore.ErrClosed
	}
	var lastErr error
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := s.runOnce(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryable(err) {
			return err
		}
		lastErr = err
		s.logger.Debug("retrying transaction", zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return fmt.Errorf("%w: %v", docstore.ErrAborted, lastErr)
}

func (s *Store) runOnce(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rErr := pgTx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			s.logger.Warn("rollback failed", zap.Error(rErr))
		}
	}()

	tx := &transaction{tx: pgTx}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := applyWrites(ctx, pgTx, tx.writes); err != nil {
		return err
	}
	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Listen streams snapshots of q, re-running it whenever a NOTIFY names its collection.
func (s *Store) Listen(ctx context.Context, q docstore.Query) (<-chan docstore.Snapshot, error) {
	if s.listenCtx.Err() != nil {
		return nil, docstore.ErrClosed
	}
	s.listenOnce.Do(func() { go s.listen() })
	return docstore.Stream(ctx, s.hub, q, s.Query)
}

// listen holds one pooled connection in LISTEN mode, reconnecting with backoff.
func (s *Store) listen() {
	defer close(s.listenDone)
	ctx := s.listenCtx
	backoff := 500 * time.Millisecond
	for {
		err := s.listenConn(ctx, func() { backoff = 500 * time.Millisecond })
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("notification listener disconnected", zap.Error(err), zap.Duration("retry_in", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (s *Store) listenConn(ctx context.Context, connected func()) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listener connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	connected()
	// anything committed while disconnected went unseen
	s.hub.PublishAll()

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.hub.Publish(n.Payload)
	}
}

type transaction struct {
	tx     pgx.Tx
	writes []docstore.Write
}

func (t *transaction) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	doc, err := getDocument(ctx, t.tx, collection, id, true)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, id)
	}
	return doc, nil
}

func (t *transaction) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	return queryDocuments(ctx, t.tx, q)
}

func (t *transaction) Stage(writes ...docstore.Write) {
	t.writes = append(t.writes, writes...)
}

// getDocument returns nil, nil when the row does not exist.
func getDocument(ctx context.Context, q querier, collection, id string, forUpdate bool) (*docstore.Document, error) {
	sql := `SELECT data, created_at, updated_at FROM documents WHERE collection = $1 AND id = $2`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var raw []byte
	doc := &docstore.Document{Collection: collection, ID: id}
	err := q.QueryRow(ctx, sql, collection, id).Scan(&raw, &doc.CreateTime, &doc.UpdateTime)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	if err := json.Unmarshal(raw, &doc.Data); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

func queryDocuments(ctx context.Context, q querier, query docstore.Query) ([]docstore.Document, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	sql := `SELECT id, data, created_at, updated_at FROM documents WHERE collection = $1`
	args := []any{query.Collection}
	if eq := query.EqualityFilters(); len(eq) > 0 {
		contains, err := containment(eq)
		if err != nil {
			return nil, err
		}
		sql += ` AND data @> $2::jsonb`
		args = append(args, contains)
	}

	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", query.Collection, err)
	}
	defer rows.Close()

	var docs []docstore.Document
	for rows.Next() {
		var raw []byte
		doc := docstore.Document{Collection: query.Collection}
		if err := rows.Scan(&doc.ID, &raw, &doc.CreateTime, &doc.UpdateTime); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", query.Collection, err)
		}
		if err := json.Unmarshal(raw, &doc.Data); err != nil {
			return nil, fmt.Errorf("failed to decode document %s/%s: %w", query.Collection, doc.ID, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", query.Collection, err)
	}
	return docstore.Apply(docs, query), nil
}

// containment builds the JSON object used with @> for a set of equality filters.
func containment(filters []docstore.Filter) (string, error) {
	obj := docstore.Data{}
	for _, f := range filters {
		docstore.SetPath(obj, f.Field, f.Value)
	}
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", fmt.Errorf("failed to encode filter: %w", err)
	}
	return string(raw), nil
}

type stagedDoc struct {
	collection string
	id         string
	doc        *docstore.Document
	existed    bool
	created    bool
}

// applyWrites resolves every write against the locked current rows, then persists
// the final state of each touched document and notifies listeners on commit.
func applyWrites(ctx context.Context, tx pgx.Tx, writes []docstore.Write) error {
	if len(writes) == 0 {
		return nil
	}
	now := time.Now().UTC()
	staged := make(map[string]*stagedDoc)
	var order []string
	collections := make(map[string]struct{})

	for _, w := range writes {
		if err := w.Validate(); err != nil {
			return err
		}
		st, ok := staged[w.Key()]
		if !ok {
			current, err := getDocument(ctx, tx, w.Collection, w.ID, true)
			if err != nil {
				return err
			}
			st = &stagedDoc{collection: w.Collection, id: w.ID, doc: current, existed: current != nil}
			staged[w.Key()] = st
			order = append(order, w.Key())
		}
		next, err := docstore.ApplyWrite(st.doc, w, now)
		if err != nil {
			return err
		}
		if w.Kind == docstore.WriteCreate {
			st.created = true
		}
		if next != nil {
			next.Collection = w.Collection
		}
		st.doc = next
		collections[w.Collection] = struct{}{}
	}

	for _, key := range order {
		if err := persist(ctx, tx, key, staged[key]); err != nil {
			return err
		}
	}

	for coll := range collections {
		if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, coll); err != nil {
			return fmt.Errorf("failed to notify %s: %w", coll, err)
		}
	}
	return nil
}

func persist(ctx context.Context, tx pgx.Tx, key string, st *stagedDoc) error {
	if st.doc == nil {
		if !st.existed {
			return nil
		}
		if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, st.collection, st.id); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
		return nil
	}

	raw, err := json.Marshal(st.doc.Data)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}

	switch {
	case st.existed:
		_, err = tx.Exec(ctx,
			`UPDATE documents SET data = $3, created_at = $4, updated_at = $5
			 WHERE collection = $1 AND id = $2`,
			st.doc.Collection, st.doc.ID, raw, st.doc.CreateTime, st.doc.UpdateTime)
	case st.created:
		_, err = tx.Exec(ctx,
			`INSERT INTO documents (collection, id, data, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			st.doc.Collection, st.doc.ID, raw, st.doc.CreateTime, st.doc.UpdateTime)
	default:
		_, err = tx.Exec(ctx,
			`INSERT INTO documents (collection, id, data, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (collection, id) DO UPDATE SET data = $3, updated_at = $5`,
			st.doc.Collection, st.doc.ID, raw, st.doc.CreateTime, st.doc.UpdateTime)
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return fmt.Errorf("%w: %s", docstore.ErrAlreadyExists, key)
		}
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}
