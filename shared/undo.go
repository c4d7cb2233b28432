package shared

import (
	mapset "github.com/deckarep/golang-set/v2"
)

type invOp interface {
	apply()
}

// StackEntry is one undoable unit: the identity-anchored inverse of a
// captured transaction.
type StackEntry struct {
	Origin any
	ops    []invOp
}

// StackKind says which stack an event concerns.
type StackKind int

const (
	StackUndo StackKind = iota + 1
	StackRedo
)

// StackEvent accompanies stack pushes and pops. Origin is the captured
// transaction's origin for organic pushes, or the manager itself when
// the push is part of an undo or redo replay.
type StackEvent struct {
	Kind   StackKind
	Origin any
}

// UndoOptions configures an UndoManager. Zero values mean: track
// nothing, capture everything, delete freely.
type UndoOptions struct {
	TrackedOrigins     mapset.Set[any]
	CaptureTransaction func(origin any) bool
	DeleteFilter       func(*StackEntry) bool
}

// UndoManager is the grouping/undo primitive over a Doc: each captured
// transaction with a tracked origin becomes one stack entry. Undo and
// redo apply inverses inside a transaction whose origin is the manager
// itself, so observers can tell history replay from everything else.
type UndoManager struct {
	doc       *Doc
	tracked   mapset.Set[any]
	capture   func(origin any) bool
	delFilter func(*StackEntry) bool

	undoStack []*StackEntry
	redoStack []*StackEntry
	applying  bool

	added  observerList[StackEvent]
	popped observerList[StackEvent]
	capSub *Subscription
}

func NewUndoManager(doc *Doc, opts UndoOptions) *UndoManager {
	tracked := opts.TrackedOrigins
	if tracked == nil {
		tracked = mapset.NewSet[any]()
	}
	m := &UndoManager{
		doc:       doc,
		tracked:   tracked,
		capture:   opts.CaptureTransaction,
		delFilter: opts.DeleteFilter,
	}
	m.capSub = doc.onCapture(m.onTransaction)
	return m
}

func (m *UndoManager) onTransaction(c capture) {
	if m.applying || c.origin == any(m) {
		return
	}
	if !m.tracked.Contains(c.origin) {
		return
	}
	if m.capture != nil && !m.capture(c.origin) {
		return
	}
	if len(c.inverse) == 0 {
		return
	}
	m.redoStack = nil
	m.undoStack = append(m.undoStack, &StackEntry{Origin: c.origin, ops: c.inverse})
	m.added.emit(StackEvent{Kind: StackUndo, Origin: c.origin})
}

func (m *UndoManager) CanUndo() bool { return len(m.undoStack) > 0 }
func (m *UndoManager) CanRedo() bool { return len(m.redoStack) > 0 }
func (m *UndoManager) UndoLen() int  { return len(m.undoStack) }
func (m *UndoManager) RedoLen() int  { return len(m.redoStack) }

// Undo pops the newest undo entry, applies its inverse and pushes the
// counter-entry onto the redo stack.
func (m *UndoManager) Undo() bool {
	if len(m.undoStack) == 0 {
		return false
	}
	entry := m.undoStack[len(m.undoStack)-1]
	m.undoStack = m.undoStack[:len(m.undoStack)-1]
	inverse := m.replay(entry)
	m.redoStack = append(m.redoStack, &StackEntry{Origin: m, ops: inverse})
	m.popped.emit(StackEvent{Kind: StackUndo, Origin: m})
	m.added.emit(StackEvent{Kind: StackRedo, Origin: m})
	return true
}

// Redo pops the newest redo entry, applies it and pushes the
// counter-entry back onto the undo stack.
func (m *UndoManager) Redo() bool {
	if len(m.redoStack) == 0 {
		return false
	}
	entry := m.redoStack[len(m.redoStack)-1]
	m.redoStack = m.redoStack[:len(m.redoStack)-1]
	inverse := m.replay(entry)
	m.undoStack = append(m.undoStack, &StackEntry{Origin: m, ops: inverse})
	m.popped.emit(StackEvent{Kind: StackRedo, Origin: m})
	m.added.emit(StackEvent{Kind: StackUndo, Origin: m})
	return true
}

// replay applies an entry's ops newest-first inside a manager-origin
// transaction and returns the recorded inverse.
func (m *UndoManager) replay(entry *StackEntry) []invOp {
	m.applying = true
	inverse := m.doc.transact(m, func() {
		for i := len(entry.ops) - 1; i >= 0; i-- {
			entry.ops[i].apply()
		}
	})
	m.applying = false
	return inverse
}

// DropOldest evicts the oldest undo entry that the delete filter allows.
// It returns the evicted stack index, or false when every entry is
// pinned.
func (m *UndoManager) DropOldest() (int, bool) {
	for i, entry := range m.undoStack {
		if m.delFilter != nil && !m.delFilter(entry) {
			continue
		}
		m.undoStack = append(m.undoStack[:i], m.undoStack[i+1:]...)
		return i, true
	}
	return 0, false
}

// Clear empties the redo stack and collapses the undo stack, keeping
// only the newest entry when keepLast is set.
func (m *UndoManager) Clear(keepLast bool) {
	if keepLast && len(m.undoStack) > 0 {
		m.undoStack = m.undoStack[len(m.undoStack)-1:]
	} else {
		m.undoStack = nil
	}
	m.redoStack = nil
}

func (m *UndoManager) OnStackItemAdded(fn func(StackEvent)) *Subscription {
	return m.added.add(fn)
}

func (m *UndoManager) OnStackItemPopped(fn func(StackEvent)) *Subscription {
	return m.popped.add(fn)
}

// Destroy releases the transaction capture and both stacks.
func (m *UndoManager) Destroy() {
	m.capSub.Unsubscribe()
	m.undoStack, m.redoStack = nil, nil
}
