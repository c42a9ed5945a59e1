package events

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/docsmith/pkg/document"
	"github.com/matzehuels/docsmith/pkg/store"
)

func receive(t *testing.T, ch <-chan DocumentUpdated) DocumentUpdated {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "channel closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return DocumentUpdated{}
	}
}

func TestNewDocumentUpdated(t *testing.T) {
	e := NewDocumentUpdated("a", "b")
	_, err := uuid.Parse(e.ID)
	assert.NoError(t, err)
	assert.Equal(t, "a", e.Previous)
	assert.Equal(t, "b", e.Next)
	assert.False(t, e.At.IsZero())
	assert.NotEqual(t, e.ID, NewDocumentUpdated("a", "b").ID)
}

func TestMemoryBusFanOut(t *testing.T) {
	ctx := context.Background()
	bus := NewMemoryBus()
	defer bus.Close()

	ch1, cancel1 := bus.Subscribe(ctx)
	defer cancel1()
	ch2, cancel2 := bus.Subscribe(ctx)
	defer cancel2()

	first := NewDocumentUpdated("p1", "n1")
	second := NewDocumentUpdated("p2", "n2")
	require.NoError(t, bus.Publish(ctx, first))
	require.NoError(t, bus.Publish(ctx, second))

	for _, ch := range []<-chan DocumentUpdated{ch1, ch2} {
		assert.Equal(t, first.ID, receive(t, ch).ID)
		assert.Equal(t, second.ID, receive(t, ch).ID)
	}
}

func TestMemoryBusCancel(t *testing.T) {
	bus := NewMemoryBus()
	ch, cancel := bus.Subscribe(context.Background())
	cancel()
	cancel()

	_, ok := <-ch
	assert.False(t, ok, "channel closed after cancel")
	assert.NoError(t, bus.Publish(context.Background(), NewDocumentUpdated("a", "b")))
}

func TestMemoryBusContextEndsSubscription(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := bus.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after context cancel")
	}
}

func TestMemoryBusClose(t *testing.T) {
	bus := NewMemoryBus()
	ch, cancel := bus.Subscribe(context.Background())
	require.NoError(t, bus.Close())
	cancel()

	_, ok := <-ch
	assert.False(t, ok)

	late, _ := bus.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok, "subscribing to a closed bus yields a closed channel")
}

func TestApplier(t *testing.T) {
	ctx := context.Background()
	docs := store.NewDocuments(store.NewMemoryStore())
	a := NewApplier(docs, nil)

	applied, err := a.Apply(ctx, NewDocumentUpdated("x", "y"))
	require.NoError(t, err)
	assert.False(t, applied, "no document yet")

	prev := "```mermaid\ngraph TD\nA[[x]]\n```"
	next := "```mermaid\ngraph TD\nA[[\"x\"]]\n```"
	require.NoError(t, docs.SaveDocument(ctx, document.Document{TextContent: "# Doc\n" + prev + "\nend"}))

	applied, err = a.Apply(ctx, NewDocumentUpdated(prev, next))
	require.NoError(t, err)
	assert.True(t, applied)

	doc, err := docs.Document(ctx)
	require.NoError(t, err)
	assert.Equal(t, "# Doc\n"+next+"\nend", doc.TextContent)

	applied, err = a.Apply(ctx, NewDocumentUpdated(prev, next))
	require.NoError(t, err)
	assert.False(t, applied, "second apply is a no-op")

	applied, err = a.Apply(ctx, DocumentUpdated{Previous: "", Next: next})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestApplierVisualContent(t *testing.T) {
	ctx := context.Background()
	docs := store.NewDocuments(store.NewMemoryStore())
	require.NoError(t, docs.SaveDocument(ctx, document.Document{VisualContent: "graph LR\nA"}))

	applied, err := NewApplier(docs, nil).Apply(ctx, NewDocumentUpdated("graph LR\nA", "```mermaid\ngraph LR\nB\n```"))
	require.NoError(t, err)
	assert.True(t, applied)

	doc, err := docs.Document(ctx)
	require.NoError(t, err)
	assert.Equal(t, "```mermaid\ngraph LR\nB\n```", doc.VisualContent)
}

func TestApplierRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	docs := store.NewDocuments(store.NewMemoryStore())
	require.NoError(t, docs.SaveDocument(ctx, document.Document{TextContent: "old"}))

	bus := NewMemoryBus()
	done := make(chan struct{})
	go func() {
		NewApplier(docs, nil).Run(ctx, bus)
		close(done)
	}()

	require.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subs) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, bus.Publish(ctx, NewDocumentUpdated("old", "new")))
	require.Eventually(t, func() bool {
		doc, err := docs.Document(ctx)
		return err == nil && doc.TextContent == "new"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
