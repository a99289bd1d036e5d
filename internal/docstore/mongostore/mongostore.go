// Package mongostore keeps each docstore collection in a MongoDB collection of the
// same name. Transactions and change streams need a replica set deployment.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/roshankumar101/Portal-sub001/internal/docstore"
)

// fieldData holds the document content inside a stored record.
const fieldData = "data"

// record is the stored shape of a document.
type record struct {
	ID        string    `bson:"_id"`
	Data      bson.M    `bson:"data"`
	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// Store is a docstore backed by MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	owned  bool
	logger *zap.Logger
	hub    *docstore.Hub

	watchOnce   sync.Once
	watchCtx    context.Context
	watchCancel context.CancelFunc
	watchDone   chan struct{}
}

var _ docstore.Store = (*Store)(nil)

// New wraps a connected client. The caller keeps ownership of the client.
func New(client *mongo.Client, database string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		client:      client,
		db:          client.Database(database),
		logger:      logger.Named("mongostore"),
		hub:         docstore.NewHub(),
		watchCtx:    ctx,
		watchCancel: cancel,
		watchDone:   make(chan struct{}),
	}
}

// Connect dials MongoDB and verifies the connection.
func Connect(ctx context.Context, uri, database string, logger *zap.Logger) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}
	s := New(client, database, logger)
	s.owned = true
	return s, nil
}

// EnsureIndexes creates single-field ascending indexes on document fields.
func (s *Store) EnsureIndexes(ctx context.Context, collection string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	models := make([]mongo.IndexModel, 0, len(fields))
	for _, f := range fields {
		models = append(models, mongo.IndexModel{Keys: bson.D{{Key: fieldData + "." + f, Value: 1}}})
	}
	if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
	}
	return nil
}

// Close stops the change stream and disconnects an owned client.
func (s *Store) Close() error {
	s.watchCancel()
	s.watchOnce.Do(func() { close(s.watchDone) })
	<-s.watchDone
	s.hub.Close()
	if s.owned {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to disconnect mongodb: %w", err)
		}
	}
	return nil
}

// Get returns docstore.ErrNotFound when the document is absent.
func (s *Store) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	if s.watchCtx.Err() != nil {
		return nil, docstore.ErrClosed
	}
	return s.get(ctx, collection, id)
}

func (s *Store) get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	doc, err := s.find(ctx, collection, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: %s/%s", docstore.ErrNotFound, collection, id)
	}
	return doc, nil
}

// find returns nil, nil when the document does not exist.
func (s *Store) find(ctx context.Context, collection, id string) (*docstore.Document, error) {
	var rec record
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	return toDocument(collection, rec)
}

// Query pushes equality filters down to MongoDB and evaluates the rest of q in memory.
func (s *Store) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if s.watchCtx.Err() != nil {
		return nil, docstore.ErrClosed
	}
	return s.query(ctx, q)
}

func (s *Store) query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	filter := bson.M{}
	for _, f := range q.EqualityFilters() {
		filter[fieldData+"."+f.Field] = f.Value
	}

	cur, err := s.db.Collection(q.Collection).Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", q.Collection, err)
	}
	defer cur.Close(ctx)

	var docs []docstore.Document
	for cur.Next(ctx) {
		var rec record
		if err := cur.Decode(&rec); err != nil {
			return nil, fmt.Errorf("failed to decode %s document: %w", q.Collection, err)
		}
		doc, err := toDocument(q.Collection, rec)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", q.Collection, err)
	}
	return docstore.Apply(docs, q), nil
}

// Add creates a document with a generated id.
func (s *Store) Add(ctx context.Context, collection string, data docstore.Data) (string, error) {
	id := docstore.NewID()
	if err := s.Commit(ctx, docstore.Create(collection, id, data)); err != nil {
		return "", err
	}
	return id, nil
}

// Commit applies writes in one multi-document transaction.
func (s *Store) Commit(ctx context.Context, writes ...docstore.Write) error {
	return s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		tx.Stage(writes...)
		return nil
	})
}

// RunTransaction runs fn in a session transaction. The driver retries the whole
// callback on transient errors such as write conflicts.
func (s *Store) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx docstore.Tx) error) error {
	if s.watchCtx.Err() != nil {
		return docstore.ErrClosed
	}
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		tx := &transaction{store: s}
		if err := fn(sc, tx); err != nil {
			return nil, err
		}
		return nil, s.applyWrites(sc, tx.writes)
	})
	if err != nil {
		var cmdErr mongo.CommandError
		if errors.As(err, &cmdErr) && cmdErr.HasErrorLabel("TransientTransactionError") {
			return fmt.Errorf("%w: %v", docstore.ErrAborted, err)
		}
		return err
	}
	return nil
}

type staged struct {
	collection string
	id         string
	doc        *docstore.Document
	existed    bool
	created    bool
}

func (s *Store) applyWrites(ctx context.Context, writes []docstore.Write) error {
	now := time.Now().UTC().Truncate(time.Millisecond)
	byKey := make(map[string]*staged)
	var order []string

	for _, w := range writes {
		if err := w.Validate(); err != nil {
			return err
		}
		st, ok := byKey[w.Key()]
		if !ok {
			current, err := s.find(ctx, w.Collection, w.ID)
			if err != nil {
				return err
			}
			st = &staged{collection: w.Collection, id: w.ID, doc: current, existed: current != nil}
			byKey[w.Key()] = st
			order = append(order, w.Key())
		}
		next, err := docstore.ApplyWrite(st.doc, w, now)
		if err != nil {
			return err
		}
		if w.Kind == docstore.WriteCreate {
			st.created = true
		}
		st.doc = next
	}

	for _, key := range order {
		if err := s.persist(ctx, byKey[key]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) persist(ctx context.Context, st *staged) error {
	coll := s.db.Collection(st.collection)
	key := st.collection + "/" + st.id

	if st.doc == nil {
		if !st.existed {
			return nil
		}
		if _, err := coll.DeleteOne(ctx, bson.M{"_id": st.id}); err != nil {
			return fmt.Errorf("failed to delete %s: %w", key, err)
		}
		return nil
	}

	rec := record{
		ID:        st.id,
		Data:      bson.M(st.doc.Data),
		CreatedAt: st.doc.CreateTime,
		UpdatedAt: st.doc.UpdateTime,
	}

	var err error
	switch {
	case st.created && !st.existed:
		_, err = coll.InsertOne(ctx, rec)
	default:
		_, err = coll.ReplaceOne(ctx, bson.M{"_id": st.id}, rec, options.Replace().SetUpsert(true))
	}
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: %s", docstore.ErrAlreadyExists, key)
		}
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Listen streams snapshots of q, re-running it on every change stream event for
// its collection.
func (s *Store) Listen(ctx context.Context, q docstore.Query) (<-chan docstore.Snapshot, error) {
	if s.watchCtx.Err() != nil {
		return nil, docstore.ErrClosed
	}
	s.watchOnce.Do(func() { go s.watch() })
	return docstore.Stream(ctx, s.hub, q, s.Query)
}

type changeEvent struct {
	NS struct {
		Coll string `bson:"coll"`
	} `bson:"ns"`
}

func (s *Store) watch() {
	defer close(s.watchDone)
	ctx := s.watchCtx
	backoff := 500 * time.Millisecond
	for {
		err := s.watchStream(ctx, func() { backoff = 500 * time.Millisecond })
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("change stream interrupted", zap.Error(err), zap.Duration("retry_in", backoff))
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

func (s *Store) watchStream(ctx context.Context, opened func()) error {
	pipeline := mongo.Pipeline{
		{{Key: "$project", Value: bson.D{{Key: "ns", Value: 1}}}},
	}
	stream, err := s.db.Watch(ctx, pipeline)
	if err != nil {
		return fmt.Errorf("failed to open change stream: %w", err)
	}
	defer stream.Close(context.Background())
	opened()
	s.hub.PublishAll()

	for stream.Next(ctx) {
		var ev changeEvent
		if err := stream.Decode(&ev); err != nil {
			s.logger.Warn("undecodable change event", zap.Error(err))
			continue
		}
		if ev.NS.Coll != "" {
			s.hub.Publish(ev.NS.Coll)
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	return errors.New("change stream closed")
}

type transaction struct {
	store  *Store
	writes []docstore.Write
}

func (t *transaction) Get(ctx context.Context, collection, id string) (*docstore.Document, error) {
	return t.store.get(ctx, collection, id)
}

func (t *transaction) Query(ctx context.Context, q docstore.Query) ([]docstore.Document, error) {
	return t.store.query(ctx, q)
}

func (t *transaction) Stage(writes ...docstore.Write) {
	t.writes = append(t.writes, writes...)
}

// toDocument normalizes BSON values (int32, primitive.A, bson.M) into the JSON
// value types every backend exposes.
func toDocument(collection string, rec record) (*docstore.Document, error) {
	data, err := docstore.Normalize(docstore.Data(rec.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, rec.ID, err)
	}
	return &docstore.Document{
		Collection: collection,
		ID:         rec.ID,
		Data:       data,
		CreateTime: rec.CreatedAt.UTC(),
		UpdateTime: rec.UpdatedAt.UTC(),
	}, nil
}
