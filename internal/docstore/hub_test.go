package docstore

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_CoalescesSignals(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("applications")
	defer cancel()

	h.Publish("applications")
	h.Publish("applications")
	h.Publish("students")

	select {
	case <-ch:
	default:
		t.Fatal("expected a pending signal")
	}
	select {
	case <-ch:
		t.Fatal("signals should coalesce")
	default:
	}
}

func TestHub_CloseEndsSubscriptions(t *testing.T) {
	h := NewHub()
	ch, cancel := h.Subscribe("x")
	h.Close()
	_, ok := <-ch
	assert.False(t, ok)
	cancel() // safe after close

	late, _ := h.Subscribe("x")
	_, ok = <-late
	assert.False(t, ok)
}

func TestStream_EmitsInitialAndOnChange(t *testing.T) {
	h := NewHub()
	var n atomic.Int32
	run := func(ctx context.Context, q Query) ([]Document, error) {
		i := n.Add(1)
		return make([]Document, i), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := Stream(ctx, h, NewQuery("applications"), run)
	require.NoError(t, err)

	first := <-out
	assert.Len(t, first.Docs, 1)

	h.Publish("applications")
	select {
	case snap := <-out:
		assert.Len(t, snap.Docs, 2)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after publish")
	}

	cancel()
	for range out {
	}
}

func TestStream_SkipsFailedReread(t *testing.T) {
	h := NewHub()
	var calls atomic.Int32
	run := func(ctx context.Context, q Query) ([]Document, error) {
		switch calls.Add(1) {
		case 2:
			return nil, errors.New("boom")
		default:
			return []Document{{ID: "ok"}}, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	out, err := Stream(ctx, h, NewQuery("c"), run)
	require.NoError(t, err)
	<-out

	h.Publish("c")
	select {
	case <-out:
		t.Fatal("failed re-read must not emit")
	case <-time.After(100 * time.Millisecond):
	}

	h.Publish("c")
	select {
	case snap := <-out:
		assert.Equal(t, "ok", snap.Docs[0].ID)
	case <-time.After(time.Second):
		t.Fatal("expected snapshot after recovery")
	}
}

func TestStream_InitialErrorReturned(t *testing.T) {
	h := NewHub()
	_, err := Stream(context.Background(), h, NewQuery("c"), func(context.Context, Query) ([]Document, error) {
		return nil, errors.New("down")
	})
	assert.Error(t, err)
}
