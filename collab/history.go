package collab

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/lihrs/textbus/shared"
)

// historyItem pairs a stack entry with the cursor around it: Before is
// the selection just ahead of the captured edit, After the selection
// right behind it.
type historyItem struct {
	Before *PositionPair
	After  *PositionPair
}

// History drives the undo primitive for a session and restores the
// cursor alongside each replayed step. items runs parallel to the undo
// stack plus the redo tail; index is the count of live undo entries.
type History struct {
	engine    *Engine
	stackSize int
	capture   func(origin any) bool
	delFilter func(*shared.StackEntry) bool

	manager   *shared.UndoManager
	items     []historyItem
	index     int
	beforePos *PositionPair
	subs      []func()
}

func newHistory(e *Engine, opts Options) *History {
	size := opts.StackSize
	if size <= 0 {
		size = DefaultStackSize
	}
	return &History{
		engine:    e,
		stackSize: size,
		capture:   opts.CaptureTransaction,
		delFilter: opts.DeleteFilter,
	}
}

func (h *History) listen() {
	if h.manager != nil {
		return
	}
	e := h.engine
	h.manager = shared.NewUndoManager(e.doc, shared.UndoOptions{
		TrackedOrigins:     mapset.NewSet[any](any(e.doc)),
		CaptureTransaction: h.capture,
		DeleteFilter:       h.delFilter,
	})
	beforeSub := e.session.Scheduler.OnBeforeChange(func() {
		h.beforePos = e.caret.Capture()
	})
	addedSub := h.manager.OnStackItemAdded(h.onAdded)
	poppedSub := h.manager.OnStackItemPopped(h.onPopped)
	h.subs = append(h.subs,
		beforeSub.Unsubscribe, addedSub.Unsubscribe, poppedSub.Unsubscribe)
}

func (h *History) isOrigin(origin any) bool {
	return h.manager != nil && origin == any(h.manager)
}

func (h *History) onAdded(ev shared.StackEvent) {
	if ev.Kind != shared.StackUndo {
		return
	}
	if ev.Origin == any(h.manager) {
		// redo replay re-pushed an undo entry; its item is already in
		// the redo tail
		h.index++
		return
	}
	h.items = append(h.items[:h.index], historyItem{
		Before: h.beforePos,
		After:  h.engine.caret.Capture(),
	})
	h.index++
	for h.manager.UndoLen() > h.stackSize {
		i, ok := h.manager.DropOldest()
		if !ok {
			break
		}
		h.items = append(h.items[:i], h.items[i+1:]...)
		h.index--
	}
}

func (h *History) onPopped(ev shared.StackEvent) {
	switch ev.Kind {
	case shared.StackUndo:
		h.index--
		h.restore(h.items[h.index].Before)
	case shared.StackRedo:
		h.restore(h.items[h.index].After)
	}
}

// restore moves the selection to a snapshot, clearing it when the
// snapshot no longer resolves. Unresolvable positions are recovered
// locally, never surfaced as errors.
func (h *History) restore(p *PositionPair) {
	anchor, focus, ok := h.engine.caret.Resolve(p)
	if !ok {
		h.engine.session.Selection.Clear()
		return
	}
	h.engine.session.Selection.Select(anchor.Slot, anchor.Offset, focus.Slot, focus.Offset)
}

func (h *History) back() {
	if h.manager == nil {
		return
	}
	h.manager.Undo()
}

func (h *History) forward() {
	if h.manager == nil {
		return
	}
	h.manager.Redo()
}

func (h *History) canBack() bool    { return h.manager != nil && h.manager.CanUndo() }
func (h *History) canForward() bool { return h.manager != nil && h.manager.CanRedo() }

// clear collapses the history to its most recent entry, so a session
// checkpoint (a save, a mode switch) still leaves one step to undo.
func (h *History) clear() {
	if h.manager == nil {
		return
	}
	h.manager.Clear(true)
	if h.index > 0 {
		h.items = []historyItem{h.items[h.index-1]}
		h.index = 1
	} else {
		h.items = nil
		h.index = 0
	}
}

func (h *History) destroy() {
	for _, cancel := range h.subs {
		cancel()
	}
	h.subs = nil
	if h.manager != nil {
		h.manager.Destroy()
		h.manager = nil
	}
	h.items, h.index, h.beforePos = nil, 0, nil
}
