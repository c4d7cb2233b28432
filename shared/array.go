package shared

// ArrayEvent describes one splice of an array, tagged with the
// transaction origin.
type ArrayEvent struct {
	Index    int
	Inserted []any
	Deleted  int
	Origin   any
}

type arrayItem struct {
	id uint64
	v  any
}

// Array is the replicated ordered-sequence container. Every element
// carries a doc-unique identity so undo can re-anchor after concurrent
// edits.
type Array struct {
	doc   *Doc
	items []arrayItem
	obs   observerList[ArrayEvent]
}

func (d *Doc) NewArray() *Array {
	return &Array{doc: d}
}

func (a *Array) Len() int { return len(a.items) }

func (a *Array) Get(i int) (any, bool) {
	if i < 0 || i >= len(a.items) {
		return nil, false
	}
	return a.items[i].v, true
}

func (a *Array) Slice() []any {
	out := make([]any, len(a.items))
	for i, it := range a.items {
		out[i] = it.v
	}
	return out
}

func (a *Array) Observe(fn func(ArrayEvent)) *Subscription { return a.obs.add(fn) }

func (a *Array) Insert(index int, values ...any) {
	if len(values) == 0 {
		return
	}
	if index < 0 {
		index = 0
	}
	if index > len(a.items) {
		index = len(a.items)
	}
	a.doc.ensure(func() {
		items := make([]arrayItem, len(values))
		ids := make([]uint64, len(values))
		for i, v := range values {
			items[i] = arrayItem{id: a.doc.nextID(), v: v}
			ids[i] = items[i].id
		}
		a.spliceIn(index, items)
		a.doc.addInverse(&arrayDelete{a: a, ids: ids})
	})
}

func (a *Array) Delete(index, n int) {
	if index < 0 || index >= len(a.items) {
		return
	}
	if n > len(a.items)-index {
		n = len(a.items) - index
	}
	if n <= 0 {
		return
	}
	a.doc.ensure(func() {
		removed := make([]arrayItem, n)
		copy(removed, a.items[index:index+n])
		var afterID uint64
		if index > 0 {
			afterID = a.items[index-1].id
		}
		a.items = append(a.items[:index], a.items[index+n:]...)
		ev := ArrayEvent{Index: index, Deleted: n}
		a.doc.addEvent(func(origin any) {
			ev.Origin = origin
			a.obs.emit(ev)
		})
		a.doc.addInverse(&arrayInsert{a: a, afterID: afterID, items: removed})
	})
}

func (a *Array) indexOfID(id uint64) int {
	// linear scan; fine at editor scale
	for i, it := range a.items {
		if it.id == id {
			return i
		}
	}
	return -1
}

// spliceIn inserts already-identified items and records the event. The
// caller records the inverse.
func (a *Array) spliceIn(index int, items []arrayItem) {
	rest := append([]arrayItem(nil), a.items[index:]...)
	a.items = append(append(a.items[:index], items...), rest...)
	values := make([]any, len(items))
	for i, it := range items {
		values[i] = it.v
	}
	ev := ArrayEvent{Index: index, Inserted: values}
	a.doc.addEvent(func(origin any) {
		ev.Origin = origin
		a.obs.emit(ev)
	})
}

type arrayDelete struct {
	a   *Array
	ids []uint64
}

func (op *arrayDelete) apply() {
	for _, id := range op.ids {
		if i := op.a.indexOfID(id); i >= 0 {
			op.a.Delete(i, 1)
		}
	}
}

type arrayInsert struct {
	a       *Array
	afterID uint64
	items   []arrayItem
}

func (op *arrayInsert) apply() {
	a := op.a
	a.doc.ensure(func() {
		index := 0
		if op.afterID != 0 {
			if i := a.indexOfID(op.afterID); i >= 0 {
				index = i + 1
			}
		}
		items := make([]arrayItem, len(op.items))
		copy(items, op.items)
		ids := make([]uint64, len(items))
		for i, it := range items {
			ids[i] = it.id
		}
		a.spliceIn(index, items)
		a.doc.addInverse(&arrayDelete{a: a, ids: ids})
	})
}
