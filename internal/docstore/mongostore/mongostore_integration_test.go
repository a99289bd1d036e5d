//go:build integration

package mongostore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/roshankumar101/Portal-sub001/internal/docstore"
)

func setupTestStore(t *testing.T) *Store {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		// Default to local single node replica set
		uri = "mongodb://localhost:27017/?replicaSet=rs0&directConnection=true"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	s, err := Connect(ctx, uri, "portal_test", zaptest.NewLogger(t))
	if err != nil {
		t.Skipf("Skipping integration test: failed to connect to MongoDB: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestIntegration_CommitQueryAndConflicts(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	coll := "it_apps_" + docstore.NewID()
	t.Cleanup(func() { _ = s.db.Collection(coll).Drop(context.Background()) })

	require.NoError(t, s.EnsureIndexes(ctx, coll, "studentId"))
	require.NoError(t, s.Commit(ctx,
		docstore.Create(coll, "a1", docstore.Data{"studentId": "s1", "meta": map[string]any{"n": 1}}),
		docstore.Create(coll, "a2", docstore.Data{"studentId": "s2"}),
	))

	docs, err := s.Query(ctx, docstore.NewQuery(coll).Where("studentId", docstore.OpEqual, "s1"))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	n, ok := docstore.GetPath(docs[0].Data, "meta.n")
	require.True(t, ok)
	assert.Equal(t, 1.0, n)

	err = s.Commit(ctx, docstore.Create(coll, "a1", docstore.Data{}))
	assert.True(t, errors.Is(err, docstore.ErrAlreadyExists))

	require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		if _, err := tx.Get(ctx, coll, "a2"); err != nil {
			return err
		}
		tx.Stage(docstore.Update(coll, "a2", nil).Increment("count", 1))
		return nil
	}))
	doc, err := s.Get(ctx, coll, "a2")
	require.NoError(t, err)
	assert.Equal(t, 1.0, doc.Data["count"])
}

func TestIntegration_Listen(t *testing.T) {
	s := setupTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	coll := "it_listen_" + docstore.NewID()
	t.Cleanup(func() { _ = s.db.Collection(coll).Drop(context.Background()) })

	ch, err := s.Listen(ctx, docstore.NewQuery(coll))
	require.NoError(t, err)
	<-ch

	require.NoError(t, s.Commit(ctx, docstore.Create(coll, "x", docstore.Data{"v": 1})))
	for snap := range ch {
		if len(snap.Docs) == 1 {
			return
		}
	}
	t.Fatal("listener closed before seeing the write")
}
