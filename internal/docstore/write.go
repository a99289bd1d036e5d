package docstore

import (
	"fmt"
	"time"
)

// WriteKind is the kind of a staged write.
type WriteKind int

const (
	// WriteCreate fails with ErrAlreadyExists when the document exists.
	WriteCreate WriteKind = iota
	// WriteSet replaces the document, creating it if needed.
	WriteSet
	// WriteUpdate merges dotted field paths into an existing document.
	WriteUpdate
	// WriteDelete removes the document. Deleting a missing document is not an error.
	WriteDelete
)

func (k WriteKind) String() string {
	switch k {
	case WriteCreate:
		return "create"
	case WriteSet:
		return "set"
	case WriteUpdate:
		return "update"
	case WriteDelete:
		return "delete"
	default:
		return fmt.Sprintf("WriteKind(%d)", int(k))
	}
}

// deleteField is the sentinel stored in update data to remove a field.
type deleteField struct{}

// DeleteField removes the field when used as a value in Update.
var DeleteField any = deleteField{}

// Write is one mutation in a batch or transaction.
type Write struct {
	Kind       WriteKind
	Collection string
	ID         string
	// Data is the full document for create/set, or dotted path -> value for update.
	Data Data
	// Increments adds deltas to numeric fields (missing fields count as zero).
	// Only valid for update writes.
	Increments map[string]float64
}

// Create stages a create-only write.
func Create(collection, id string, data Data) Write {
	return Write{Kind: WriteCreate, Collection: collection, ID: id, Data: data}
}

// Set stages a replace/upsert write.
func Set(collection, id string, data Data) Write {
	return Write{Kind: WriteSet, Collection: collection, ID: id, Data: data}
}

// Update stages a merge of dotted field paths into an existing document.
func Update(collection, id string, fields Data) Write {
	return Write{Kind: WriteUpdate, Collection: collection, ID: id, Data: fields}
}

// Delete stages a delete.
func Delete(collection, id string) Write {
	return Write{Kind: WriteDelete, Collection: collection, ID: id}
}

// Increment returns a copy of an update write with a numeric delta added.
func (w Write) Increment(path string, delta float64) Write {
	inc := make(map[string]float64, len(w.Increments)+1)
	for k, v := range w.Increments {
		inc[k] = v
	}
	inc[path] += delta
	w.Increments = inc
	return w
}

// Key returns "collection/id".
func (w Write) Key() string {
	return w.Collection + "/" + w.ID
}

// Validate checks the write is well formed.
func (w Write) Validate() error {
	if w.Collection == "" {
		return fmt.Errorf("invalid %s write: collection is empty", w.Kind)
	}
	if w.ID == "" {
		return fmt.Errorf("invalid %s write on %s: id is empty", w.Kind, w.Collection)
	}
	if len(w.Increments) > 0 && w.Kind != WriteUpdate {
		return fmt.Errorf("invalid %s write on %s: increments require an update", w.Kind, w.Key())
	}
	return nil
}

// ApplyWrite computes the result of w against the current document (nil when absent).
// It returns nil for deletes. The input document is not modified.
func ApplyWrite(current *Document, w Write, now time.Time) (*Document, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	switch w.Kind {
	case WriteCreate:
		if current != nil {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, w.Key())
		}
		data, err := Normalize(w.Data)
		if err != nil {
			return nil, err
		}
		return &Document{Collection: w.Collection, ID: w.ID, Data: data, CreateTime: now, UpdateTime: now}, nil

	case WriteSet:
		data, err := Normalize(w.Data)
		if err != nil {
			return nil, err
		}
		created := now
		if current != nil {
			created = current.CreateTime
		}
		return &Document{Collection: w.Collection, ID: w.ID, Data: data, CreateTime: created, UpdateTime: now}, nil

	case WriteUpdate:
		if current == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, w.Key())
		}
		next := current.Clone()
		if next.Data == nil {
			next.Data = Data{}
		}
		for path, value := range w.Data {
			if _, ok := value.(deleteField); ok {
				DeletePath(next.Data, path)
				continue
			}
			SetPath(next.Data, path, normalizeValue(value))
		}
		for path, delta := range w.Increments {
			base := 0.0
			if v, ok := GetPath(next.Data, path); ok {
				if f, ok := toFloat(v); ok {
					base = f
				}
			}
			SetPath(next.Data, path, base+delta)
		}
		next.UpdateTime = now
		return next, nil

	case WriteDelete:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown write kind %d", int(w.Kind))
	}
}
