package model

import "sort"

// MapModel is a key-value container node. Values may be scalars or other
// model nodes (Slot, Component, MapModel, ArrayModel).
type MapModel struct {
	m       map[string]any
	watched watcherList[[]Action]
}

func NewMapModel() *MapModel {
	return &MapModel{m: map[string]any{}}
}

func (m *MapModel) Watch(fn func([]Action)) *Subscription { return m.watched.add(fn) }

func (m *MapModel) Get(key string) (any, bool) {
	v, ok := m.m[key]
	return v, ok
}

func (m *MapModel) Len() int { return len(m.m) }

func (m *MapModel) Keys() []string {
	keys := make([]string, 0, len(m.m))
	for k := range m.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *MapModel) Set(key string, v any) {
	old, had := m.m[key]
	m.m[key] = v
	a := Action{Type: ActionPropSet, Key: key, Value: v}
	if had {
		a.Old = old
	}
	m.watched.emit([]Action{a})
}

func (m *MapModel) Remove(key string) {
	old, had := m.m[key]
	if !had {
		return
	}
	delete(m.m, key)
	m.watched.emit([]Action{{Type: ActionPropDelete, Key: key, Old: old}})
}

// ArrayModel is an ordered child container node.
type ArrayModel struct {
	items   []any
	watched watcherList[[]Action]
}

func NewArrayModel(items ...any) *ArrayModel {
	return &ArrayModel{items: append([]any(nil), items...)}
}

func (a *ArrayModel) Watch(fn func([]Action)) *Subscription { return a.watched.add(fn) }

func (a *ArrayModel) Len() int { return len(a.items) }

func (a *ArrayModel) Get(i int) (any, bool) {
	if i < 0 || i >= len(a.items) {
		return nil, false
	}
	return a.items[i], true
}

func (a *ArrayModel) Items() []any { return append([]any(nil), a.items...) }

func (a *ArrayModel) Insert(index int, v any) {
	if index < 0 {
		index = 0
	}
	if index > len(a.items) {
		index = len(a.items)
	}
	a.items = append(a.items[:index], append([]any{v}, a.items[index:]...)...)
	a.watched.emit([]Action{
		{Type: ActionRetain, Offset: index},
		{Type: ActionInsert, Value: v},
	})
}

func (a *ArrayModel) Remove(index int) any {
	if index < 0 || index >= len(a.items) {
		return nil
	}
	old := a.items[index]
	a.items = append(a.items[:index], a.items[index+1:]...)
	a.watched.emit([]Action{
		{Type: ActionRetain, Offset: index},
		{Type: ActionDelete, Count: 1, Old: old},
	})
	return old
}
