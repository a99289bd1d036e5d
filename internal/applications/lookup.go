package applications

import (
	"context"
	"sync"

	"github.com/roshankumar101/Portal-sub001/internal/types"
)

// lookupCache deduplicates directory reads within one enrichment pass, so a
// snapshot with many applications to the same job reads it once.
type lookupCache struct {
	dir Directory

	mu        sync.Mutex
	jobs      map[string]*call[*types.Job]
	companies map[string]*call[*types.Company]
}

type call[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newLookupCache(dir Directory) *lookupCache {
	return &lookupCache{
		dir:       dir,
		jobs:      make(map[string]*call[*types.Job]),
		companies: make(map[string]*call[*types.Company]),
	}
}

func (l *lookupCache) job(ctx context.Context, id string) (*types.Job, error) {
	if l.dir == nil || id == "" {
		return nil, nil
	}
	return once(&l.mu, l.jobs, id, func() (*types.Job, error) { return l.dir.GetJob(ctx, id) })
}

func (l *lookupCache) company(ctx context.Context, id string) (*types.Company, error) {
	if l.dir == nil || id == "" {
		return nil, nil
	}
	return once(&l.mu, l.companies, id, func() (*types.Company, error) { return l.dir.GetCompany(ctx, id) })
}

func once[T any](mu *sync.Mutex, m map[string]*call[T], key string, fn func() (T, error)) (T, error) {
	mu.Lock()
	if c, ok := m[key]; ok {
		mu.Unlock()
		<-c.done
		return c.val, c.err
	}
	c := &call[T]{done: make(chan struct{})}
	m[key] = c
	mu.Unlock()

	c.val, c.err = fn()
	close(c.done)
	return c.val, c.err
}
