package shared

import (
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTrackedManager(d *Doc, origin any, opts UndoOptions) *UndoManager {
	opts.TrackedOrigins = mapset.NewSet[any](origin)
	return NewUndoManager(d, opts)
}

func TestUndoCapturesOnlyTrackedOrigins(t *testing.T) {
	d := NewDoc()
	txt := d.NewText()
	m := newTrackedManager(d, "me", UndoOptions{})

	d.Transact("me", func() { txt.InsertString(0, "mine", nil) })
	d.Transact("peer", func() { txt.InsertString(4, " theirs", nil) })
	txt.InsertString(0, "! ", nil) // nil origin, untracked

	assert.Equal(t, 1, m.UndoLen())
}

func TestUndoRedoRoundTrip(t *testing.T) {
	d := NewDoc()
	txt := d.NewText()
	m := newTrackedManager(d, "me", UndoOptions{})

	d.Transact("me", func() { txt.InsertString(0, "hello", nil) })
	d.Transact("me", func() { txt.InsertString(5, " world", nil) })

	require.True(t, m.Undo())
	assert.Equal(t, "hello", txt.String())
	require.True(t, m.Undo())
	assert.Equal(t, "", txt.String())
	assert.False(t, m.Undo())

	require.True(t, m.Redo())
	assert.Equal(t, "hello", txt.String())
	require.True(t, m.Redo())
	assert.Equal(t, "hello world", txt.String())
	assert.False(t, m.Redo())
}

func TestUndoReanchorsAfterConcurrentEdit(t *testing.T) {
	d := NewDoc()
	txt := d.NewText()
	m := newTrackedManager(d, "me", UndoOptions{})

	d.Transact("me", func() { txt.InsertString(0, "abc", nil) })
	// a foreign edit shifts every offset before the undo runs
	d.Transact("peer", func() { txt.InsertString(0, "123", nil) })

	require.True(t, m.Undo())
	assert.Equal(t, "123", txt.String(), "undo removes only its own units")

	require.True(t, m.Redo())
	assert.Equal(t, "123abc", txt.String())
}

func TestUndoDeleteRestoresInPlace(t *testing.T) {
	d := NewDoc()
	txt := d.NewText()
	m := newTrackedManager(d, "me", UndoOptions{})

	d.Transact("peer", func() { txt.InsertString(0, "hello world", nil) })
	d.Transact("me", func() { txt.Delete(5, 6) })
	assert.Equal(t, "hello", txt.String())

	require.True(t, m.Undo())
	assert.Equal(t, "hello world", txt.String())
}

func TestUndoReplayUsesManagerOrigin(t *testing.T) {
	d := NewDoc()
	txt := d.NewText()
	m := newTrackedManager(d, "me", UndoOptions{})

	d.Transact("me", func() { txt.InsertString(0, "x", nil) })

	var origins []any
	txt.Observe(func(ev TextEvent) { origins = append(origins, ev.Origin) })
	m.Undo()

	require.NotEmpty(t, origins)
	for _, o := range origins {
		assert.Same(t, m, o)
	}
}

func TestNewLocalEditClearsRedo(t *testing.T) {
	d := NewDoc()
	txt := d.NewText()
	m := newTrackedManager(d, "me", UndoOptions{})

	d.Transact("me", func() { txt.InsertString(0, "a", nil) })
	m.Undo()
	require.True(t, m.CanRedo())

	d.Transact("me", func() { txt.InsertString(0, "b", nil) })
	assert.False(t, m.CanRedo())
}

func TestCaptureTransactionFilter(t *testing.T) {
	d := NewDoc()
	txt := d.NewText()
	m := NewUndoManager(d, UndoOptions{
		TrackedOrigins:     mapset.NewSet[any]("a", "b"),
		CaptureTransaction: func(origin any) bool { return origin == "a" },
	})

	d.Transact("a", func() { txt.InsertString(0, "x", nil) })
	d.Transact("b", func() { txt.InsertString(0, "y", nil) })

	assert.Equal(t, 1, m.UndoLen())
}

func TestDropOldestHonorsDeleteFilter(t *testing.T) {
	d := NewDoc()
	txt := d.NewText()
	pinned := true
	m := newTrackedManager(d, "me", UndoOptions{
		DeleteFilter: func(e *StackEntry) bool { return !pinned },
	})

	d.Transact("me", func() { txt.InsertString(0, "a", nil) })
	d.Transact("me", func() { txt.InsertString(0, "b", nil) })

	_, ok := m.DropOldest()
	assert.False(t, ok, "every entry pinned")
	assert.Equal(t, 2, m.UndoLen())

	pinned = false
	i, ok := m.DropOldest()
	require.True(t, ok)
	assert.Equal(t, 0, i)
	assert.Equal(t, 1, m.UndoLen())
}

func TestClearKeepLast(t *testing.T) {
	d := NewDoc()
	txt := d.NewText()
	m := newTrackedManager(d, "me", UndoOptions{})

	for i := 0; i < 3; i++ {
		d.Transact("me", func() { txt.InsertString(0, "x", nil) })
	}
	m.Undo()
	require.True(t, m.CanRedo())

	m.Clear(true)
	assert.Equal(t, 1, m.UndoLen())
	assert.Equal(t, 0, m.RedoLen())

	m.Clear(false)
	assert.Equal(t, 0, m.UndoLen())
}

func TestStackEvents(t *testing.T) {
	d := NewDoc()
	txt := d.NewText()
	m := newTrackedManager(d, "me", UndoOptions{})

	var added, popped []StackEvent
	m.OnStackItemAdded(func(ev StackEvent) { added = append(added, ev) })
	m.OnStackItemPopped(func(ev StackEvent) { popped = append(popped, ev) })

	d.Transact("me", func() { txt.InsertString(0, "x", nil) })
	require.Len(t, added, 1)
	assert.Equal(t, StackUndo, added[0].Kind)
	assert.Equal(t, "me", added[0].Origin)

	m.Undo()
	require.Len(t, popped, 1)
	assert.Equal(t, StackUndo, popped[0].Kind)
	require.Len(t, added, 2)
	assert.Equal(t, StackRedo, added[1].Kind)
	assert.Same(t, m, added[1].Origin)

	m.Redo()
	require.Len(t, popped, 2)
	assert.Equal(t, StackRedo, popped[1].Kind)
	require.Len(t, added, 3)
	assert.Equal(t, StackUndo, added[2].Kind)
}

func TestDestroyStopsCapturing(t *testing.T) {
	d := NewDoc()
	txt := d.NewText()
	m := newTrackedManager(d, "me", UndoOptions{})

	m.Destroy()
	d.Transact("me", func() { txt.InsertString(0, "x", nil) })
	assert.Equal(t, 0, m.UndoLen())
}
