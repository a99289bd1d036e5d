// Package docstore provides a schemaless document store with atomic batches,
// read-write transactions and push-based query listeners.
//
// Backends live in sub-packages (memstore, pgstore, mongostore). All of them share
// the write, filter and ordering semantics implemented in this package so that a
// query or batch behaves identically regardless of where the documents are kept.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("document not found")
	// ErrAlreadyExists is returned when a create targets an existing document.
	ErrAlreadyExists = errors.New("document already exists")
	// ErrPermissionDenied is returned by backends that enforce access rules.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrAborted is returned when a transaction could not commit after retries.
	ErrAborted = errors.New("transaction aborted")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")
)

// Data is the content of a document. Values are JSON-compatible; numbers are float64
// once a document has been written.
type Data map[string]any

// Document is a stored document.
type Document struct {
	Collection string    `json:"-"`
	ID         string    `json:"id"`
	Data       Data      `json:"data"`
	CreateTime time.Time `json:"create_time"`
	UpdateTime time.Time `json:"update_time"`
}

// DataTo decodes the document into v. The document id is exposed as the "id" field.
func (d *Document) DataTo(v any) error {
	payload := make(map[string]any, len(d.Data)+1)
	for k, val := range d.Data {
		payload[k] = val
	}
	payload["id"] = d.ID
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", d.Collection, d.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode document %s/%s: %w", d.Collection, d.ID, err)
	}
	return nil
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.Data = cloneData(d.Data)
	return &c
}

// Snapshot is one emission of a listener: the full result set at ReadTime.
type Snapshot struct {
	Docs     []Document
	ReadTime time.Time
}

// Store is implemented by every backend.
type Store interface {
	// Get returns ErrNotFound when the document is absent.
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	// Add creates a document with a generated id.
	Add(ctx context.Context, collection string, data Data) (string, error)
	// Commit applies all writes atomically or none of them.
	Commit(ctx context.Context, writes ...Write) error
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Listen emits the current result set, then a fresh snapshot after every committed
	// change to the collection. The channel closes when ctx is done.
	Listen(ctx context.Context, q Query) (<-chan Snapshot, error)
	Close() error
}

// Tx is a read-write transaction. Reads observe committed state only; staged writes
// are applied atomically when the transaction function returns nil.
type Tx interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	Query(ctx context.Context, q Query) ([]Document, error)
	Stage(writes ...Write)
}

// NewID returns a random 20 character document id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}

// ToData converts a struct into document data using its JSON encoding.
// The "id" field, if any, is dropped since ids live in the document key.
func ToData(v any) (Data, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document data: %w", err)
	}
	var data Data
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to decode document data: %w", err)
	}
	delete(data, "id")
	return data, nil
}

// Normalize returns a JSON round-tripped copy of data so that every backend
// stores the same value types.
func Normalize(data Data) (Data, error) {
	if data == nil {
		return Data{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize document data: %w", err)
	}
	var out Data
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to normalize document data: %w", err)
	}
	return out, nil
}

func normalizeValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func cloneData(d Data) Data {
	if d == nil {
		return nil
	}
	out := make(Data, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(cloneData(t))
	case Data:
		return cloneData(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	default:
		return v
	}
}
