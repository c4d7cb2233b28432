// Package model implements the local document model: a mutable tree of
// slots, map and array containers and components. Every mutation emits a
// structured change action to registered watchers, synchronously and in
// order, which is what the sync engine consumes.
package model

import "github.com/lihrs/textbus/util"

// ActionType tags one entry of a change-action stream.
type ActionType int

const (
	ActionRetain ActionType = iota + 1
	ActionInsert
	ActionDelete
	ActionAttrSet
	ActionAttrDelete
	ActionPropSet
	ActionPropDelete
)

// Action is one step of a change-action stream. The meaningful fields
// depend on Type:
//
//	Retain      Offset (absolute cursor target), optional Formats
//	Insert      Content or Ref (slots), Value (arrays), optional Formats
//	Delete      Count, Removed (components torn out of the span), Old
//	AttrSet     Key, Value, Old
//	AttrDelete  Key, Old
//	PropSet     Key, Value, Old
//	PropDelete  Key, Old
type Action struct {
	Type    ActionType
	Offset  int
	Count   int
	Content string
	Ref     *Component
	Formats map[string]any
	Key     string
	Value   any
	Old     any
	Removed []*Component
}

// Subscription is the handle returned by a watcher registration.
// Unsubscribe is idempotent.
type Subscription struct {
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	if s != nil && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

type watcher[T any] struct {
	id int
	fn func(T)
}

type watcherList[T any] struct {
	ws   []watcher[T]
	next int
}

func (w *watcherList[T]) add(fn func(T)) *Subscription {
	id := w.next
	w.next++
	w.ws = append(w.ws, watcher[T]{id: id, fn: fn})
	return &Subscription{cancel: func() {
		w.ws = util.Filter(w.ws, func(x watcher[T]) bool { return x.id != id })
	}}
}

func (w *watcherList[T]) emit(v T) {
	// snapshot: a watcher may unsubscribe while being notified
	snapshot := make([]watcher[T], len(w.ws))
	copy(snapshot, w.ws)
	for _, x := range snapshot {
		x.fn(v)
	}
}

func copyFormats(formats map[string]any) map[string]any {
	if len(formats) == 0 {
		return nil
	}
	out := make(map[string]any, len(formats))
	for k, v := range formats {
		out[k] = v
	}
	return out
}
