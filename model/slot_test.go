package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertTextEmitsRetainInsert(t *testing.T) {
	s := NewSlot(ContentText)
	var batches [][]Action
	s.Watch(func(a []Action) { batches = append(batches, a) })

	s.InsertText("hi", nil)
	s.InsertText("!", map[string]any{"bold": true})

	require.Len(t, batches, 2)
	assert.Equal(t, []Action{
		{Type: ActionRetain, Offset: 0},
		{Type: ActionInsert, Content: "hi"},
	}, batches[0])
	assert.Equal(t, ActionRetain, batches[1][0].Type)
	assert.Equal(t, 2, batches[1][0].Offset)
	assert.Equal(t, map[string]any{"bold": true}, batches[1][1].Formats)
	assert.Equal(t, "hi!", s.String())
}

func TestRetainIsNoOpAtCursor(t *testing.T) {
	s := NewSlot(ContentText)
	s.InsertText("abc", nil)

	count := 0
	s.Watch(func([]Action) { count++ })

	s.Retain(3)
	assert.Equal(t, 0, count)
	s.Retain(1)
	assert.Equal(t, 1, count)
}

func TestDeleteReturnsRemovedComponents(t *testing.T) {
	s := NewSlot(ContentText, ContentInlineComponent)
	c := NewComponent("img", nil)
	s.InsertText("ab", nil)
	s.InsertComponent(c, nil)
	s.InsertText("cd", nil)

	var batches [][]Action
	s.Watch(func(a []Action) { batches = append(batches, a) })

	s.Retain(1)
	removed := s.Delete(3)

	require.Len(t, removed, 1)
	assert.Same(t, c, removed[0])
	assert.Equal(t, "ad", s.String())

	last := batches[len(batches)-1]
	require.Len(t, last, 2)
	assert.Equal(t, ActionDelete, last[1].Type)
	assert.Equal(t, 3, last[1].Count)
	assert.Equal(t, []*Component{c}, last[1].Removed)
}

func TestDeleteClampsToLength(t *testing.T) {
	s := NewSlot(ContentText)
	s.InsertText("abc", nil)
	s.Retain(2)
	assert.Nil(t, s.Delete(0))
	s.Delete(99)
	assert.Equal(t, "ab", s.String())
}

func TestRetainFormatAppliesOverRange(t *testing.T) {
	s := NewSlot(ContentText)
	s.InsertText("abcd", nil)
	s.Retain(1)

	var batches [][]Action
	s.Watch(func(a []Action) { batches = append(batches, a) })

	s.RetainFormat(3, map[string]any{"bold": true})

	require.Len(t, batches, 1)
	assert.Equal(t, []Action{
		{Type: ActionRetain, Offset: 1},
		{Type: ActionRetain, Offset: 3, Formats: map[string]any{"bold": true}},
	}, batches[0])
	assert.Nil(t, s.FormatsAt(0))
	assert.Equal(t, map[string]any{"bold": true}, s.FormatsAt(1))
	assert.Equal(t, map[string]any{"bold": true}, s.FormatsAt(2))
	assert.Nil(t, s.FormatsAt(3))
}

func TestRetainFormatNilValueRemoves(t *testing.T) {
	s := NewSlot(ContentText)
	s.InsertText("ab", map[string]any{"bold": true})
	s.Retain(0)
	s.RetainFormat(2, map[string]any{"bold": nil})
	assert.Empty(t, s.FormatsAt(0))
	assert.Empty(t, s.FormatsAt(1))
}

func TestFragmentsGroupEqualFormats(t *testing.T) {
	s := NewSlot(ContentText, ContentInlineComponent)
	c := NewComponent("img", nil)
	s.InsertText("he", nil)
	s.InsertText("llo", nil)
	s.InsertText("!!", map[string]any{"bold": true})
	s.InsertComponent(c, nil)

	fs := s.Fragments()
	require.Len(t, fs, 3)
	assert.Equal(t, "hello", fs[0].Text)
	assert.Equal(t, "!!", fs[1].Text)
	assert.Equal(t, map[string]any{"bold": true}, fs[1].Formats)
	assert.Same(t, c, fs[2].Component)
}

func TestSlotAttributes(t *testing.T) {
	s := NewSlot(ContentText)
	var batches [][]Action
	s.Watch(func(a []Action) { batches = append(batches, a) })

	s.SetAttribute("align", "center")
	s.RemoveAttribute("align")
	s.RemoveAttribute("align") // already gone, no action

	require.Len(t, batches, 2)
	assert.Equal(t, ActionAttrSet, batches[0][0].Type)
	assert.Equal(t, ActionAttrDelete, batches[1][0].Type)
	assert.Equal(t, "center", batches[1][0].Old)
}

func TestUnsubscribeStopsWatching(t *testing.T) {
	s := NewSlot(ContentText)
	count := 0
	sub := s.Watch(func([]Action) { count++ })
	s.InsertText("a", nil)
	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent
	s.InsertText("b", nil)
	assert.Equal(t, 1, count)
}
