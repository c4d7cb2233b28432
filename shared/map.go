package shared

import (
	"sort"

	"github.com/lihrs/textbus/util"
)

// EntryAction tags a map event.
type EntryAction int

const (
	EntrySet EntryAction = iota + 1
	EntryUpdate
	EntryDelete
)

// MapEvent describes one key mutation, tagged with the transaction
// origin.
type MapEvent struct {
	Key      string
	Action   EntryAction
	Value    any
	OldValue any
	Origin   any
}

// Map is the replicated key-value container.
type Map struct {
	doc *Doc
	m   map[string]any
	obs observerList[MapEvent]
}

func (d *Doc) NewMap() *Map {
	return &Map{doc: d, m: map[string]any{}}
}

func (m *Map) Get(key string) (any, bool) {
	v, ok := m.m[key]
	return v, ok
}

func (m *Map) Len() int { return len(m.m) }

func (m *Map) Keys() []string {
	keys := make([]string, 0, len(m.m))
	for k := range m.m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (m *Map) Observe(fn func(MapEvent)) *Subscription { return m.obs.add(fn) }

func (m *Map) Set(key string, v any) {
	m.doc.ensure(func() {
		old, had := m.m[key]
		m.m[key] = v
		ev := MapEvent{
			Key:      key,
			Action:   util.Choose(had, EntryUpdate, EntrySet),
			Value:    v,
			OldValue: old,
		}
		m.doc.addEvent(func(origin any) {
			ev.Origin = origin
			m.obs.emit(ev)
		})
		m.doc.addInverse(&mapRestore{m: m, key: key, value: old, had: had})
	})
}

func (m *Map) Delete(key string) {
	m.doc.ensure(func() {
		old, had := m.m[key]
		if !had {
			return
		}
		delete(m.m, key)
		ev := MapEvent{Key: key, Action: EntryDelete, OldValue: old}
		m.doc.addEvent(func(origin any) {
			ev.Origin = origin
			m.obs.emit(ev)
		})
		m.doc.addInverse(&mapRestore{m: m, key: key, value: old, had: true})
	})
}

type mapRestore struct {
	m     *Map
	key   string
	value any
	had   bool
}

func (op *mapRestore) apply() {
	if op.had {
		op.m.Set(op.key, op.value)
		return
	}
	op.m.Delete(op.key)
}
