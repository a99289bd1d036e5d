package pgstore

import (
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roshankumar101/Portal-sub001/internal/docstore"
)

func TestContainment(t *testing.T) {
	got, err := containment([]docstore.Filter{
		{Field: "studentId", Op: docstore.OpEqual, Value: "s1"},
		{Field: "stats.offers", Op: docstore.OpEqual, Value: 2},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"studentId":"s1","stats":{"offers":2}}`, got)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&pgconn.PgError{Code: codeSerializationFailure}))
	assert.True(t, isRetryable(&pgconn.PgError{Code: codeDeadlockDetected}))
	assert.False(t, isRetryable(&pgconn.PgError{Code: codeUniqueViolation}))
	assert.False(t, isRetryable(errors.New("plain")))
}

func TestSchemaEmbedded(t *testing.T) {
	assert.Contains(t, schemaSQL, "CREATE TABLE IF NOT EXISTS documents")
}
