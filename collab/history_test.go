package collab

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lihrs/textbus/shared"
)

func TestBackForwardRoundTrip(t *testing.T) {
	session, e, body := newTestEngine(t, Options{})

	localEdit(session, func() { body.InsertText("hello", nil) })
	localEdit(session, func() { body.InsertText(" world", nil) })
	require.True(t, e.CanBack())

	e.Back()
	assert.Equal(t, "hello", body.String())
	e.Back()
	assert.Equal(t, "", body.String())
	assert.False(t, e.CanBack())

	require.True(t, e.CanForward())
	e.Forward()
	assert.Equal(t, "hello", body.String())
	e.Forward()
	assert.Equal(t, "hello world", body.String())
	assert.False(t, e.CanForward())

	// model and shared doc agree the whole way through
	assert.Equal(t, "hello world", bodyText(t, e, body).String())
}

func TestRemoteChangesAreNotUndoable(t *testing.T) {
	session, e, body := newTestEngine(t, Options{})
	localEdit(session, func() { body.InsertText("mine", nil) })

	text := bodyText(t, e, body)
	session.Doc.Transact(&peerOrigin{"alice"}, func() {
		text.InsertString(0, "theirs ", nil)
	})

	e.Back()
	assert.Equal(t, "theirs ", body.String(), "undo removes only the local edit")
	assert.False(t, e.CanBack())
}

func TestUndoSurvivesConcurrentRemoteEdit(t *testing.T) {
	session, e, body := newTestEngine(t, Options{})
	localEdit(session, func() { body.InsertText("abc", nil) })

	text := bodyText(t, e, body)
	session.Doc.Transact(&peerOrigin{"alice"}, func() {
		text.InsertString(0, "123", nil)
	})
	require.Equal(t, "123abc", body.String())

	e.Back()
	assert.Equal(t, "123", body.String())
	e.Forward()
	assert.Equal(t, "123abc", body.String())
}

func TestHistoryIsBounded(t *testing.T) {
	session, e, body := newTestEngine(t, Options{StackSize: 2})

	localEdit(session, func() { body.InsertText("a", nil) })
	localEdit(session, func() { body.InsertText("b", nil) })
	localEdit(session, func() { body.InsertText("c", nil) })

	e.Back()
	e.Back()
	assert.False(t, e.CanBack(), "oldest entry was evicted")
	assert.Equal(t, "a", body.String())
}

func TestEvictionKeepsCursorHistoryInLockstep(t *testing.T) {
	session, e, body := newTestEngine(t, Options{StackSize: 2})

	localEdit(session, func() { body.InsertText("hello", nil) })

	session.Selection.Select(body, 1, body, 1)
	localEdit(session, func() {
		body.Retain(body.Length())
		body.InsertText("A", nil)
	})

	session.Selection.Select(body, 2, body, 2)
	localEdit(session, func() {
		body.Retain(body.Length())
		body.InsertText("B", nil)
	})
	// third entry evicted the first, together with its cursor snapshot

	e.Back()
	assert.Equal(t, "helloA", body.String())
	assert.Equal(t, 2, session.Selection.Focus().Offset)

	e.Back()
	assert.Equal(t, "hello", body.String())
	assert.Equal(t, 1, session.Selection.Focus().Offset)

	assert.False(t, e.CanBack())
}

func TestDeleteFilterPinsEntries(t *testing.T) {
	session, e, body := newTestEngine(t, Options{
		StackSize:    1,
		DeleteFilter: func(*shared.StackEntry) bool { return false },
	})

	localEdit(session, func() { body.InsertText("a", nil) })
	localEdit(session, func() { body.InsertText("b", nil) })

	e.Back()
	e.Back()
	assert.Equal(t, "", body.String(), "pinned entries outlive the size bound")
}

func TestNewEditTruncatesForwardHistory(t *testing.T) {
	session, e, body := newTestEngine(t, Options{})

	localEdit(session, func() { body.InsertText("a", nil) })
	localEdit(session, func() { body.InsertText("b", nil) })
	e.Back()
	require.True(t, e.CanForward())

	localEdit(session, func() {
		body.Retain(body.Length())
		body.InsertText("c", nil)
	})
	assert.False(t, e.CanForward())
	assert.Equal(t, "ac", body.String())
}

func TestClearKeepsMostRecentEntry(t *testing.T) {
	session, e, body := newTestEngine(t, Options{})

	localEdit(session, func() { body.InsertText("a", nil) })
	localEdit(session, func() { body.InsertText("b", nil) })
	localEdit(session, func() { body.InsertText("c", nil) })

	e.Clear()
	require.True(t, e.CanBack())
	e.Back()
	assert.Equal(t, "ab", body.String())
	assert.False(t, e.CanBack())
}

func TestUndoRestoresSelection(t *testing.T) {
	session, e, body := newTestEngine(t, Options{})
	localEdit(session, func() { body.InsertText("hello", nil) })

	session.Selection.Select(body, 5, body, 5)
	localEdit(session, func() { body.InsertText(" world", nil) })

	session.Selection.Select(body, 0, body, 0)
	e.Back()
	assert.Equal(t, "hello", body.String())
	assert.Equal(t, 5, session.Selection.Focus().Offset, "selection returns to where the edit began")

	session.Selection.Select(body, 1, body, 1)
	e.Forward()
	assert.Equal(t, "hello world", body.String())
	assert.Equal(t, 5, session.Selection.Focus().Offset, "selection returns to where the edit ended")
}
