package shared

import "reflect"

// DeltaOp is one step of a text change. Exactly one of Retain,
// InsertText, InsertEmbed or Delete is meaningful; Formats accompanies
// retains (format application, nil value removes) and inserts.
type DeltaOp struct {
	Retain      int
	InsertText  string
	InsertEmbed any
	Delete      int
	Formats     map[string]any
}

func (op DeltaOp) IsInsert() bool {
	return op.InsertText != "" || op.InsertEmbed != nil
}

// AttrChange describes a text-level attribute mutation.
type AttrChange struct {
	Name     string
	Removed  bool
	Value    any
	OldValue any
}

// TextEvent carries either a content delta or an attribute change,
// tagged with the transaction origin.
type TextEvent struct {
	Delta  []DeltaOp
	Attr   *AttrChange
	Origin any
}

type textUnit struct {
	id      uint64
	r       rune
	embed   any
	formats map[string]any
}

func (u textUnit) isEmbed() bool { return u.embed != nil }

// Text is the replicated attributed-text container: a sequence of units
// (runes or embedded containers) with per-unit formats and text-level
// attributes. Every unit carries a doc-unique identity.
type Text struct {
	doc   *Doc
	units []textUnit
	attrs map[string]any
	obs   observerList[TextEvent]
}

func (d *Doc) NewText() *Text {
	return &Text{doc: d, attrs: map[string]any{}}
}

func (t *Text) Len() int { return len(t.units) }

// String renders runes only; embeds appear as U+FFFC.
func (t *Text) String() string {
	rs := make([]rune, len(t.units))
	for i, u := range t.units {
		if u.isEmbed() {
			rs[i] = '￼'
			continue
		}
		rs[i] = u.r
	}
	return string(rs)
}

// Embeds lists embedded values in content order.
func (t *Text) Embeds() []any {
	var out []any
	for _, u := range t.units {
		if u.isEmbed() {
			out = append(out, u.embed)
		}
	}
	return out
}

func (t *Text) Attribute(name string) (any, bool) {
	v, ok := t.attrs[name]
	return v, ok
}

func (t *Text) Attributes() map[string]any {
	out := make(map[string]any, len(t.attrs))
	for k, v := range t.attrs {
		out[k] = v
	}
	return out
}

func (t *Text) Observe(fn func(TextEvent)) *Subscription { return t.obs.add(fn) }

// Delta returns the current content as insert-only delta ops, with
// equal-format runes grouped into runs.
func (t *Text) Delta() []DeltaOp {
	return unitsToDelta(t.units)
}

func (t *Text) InsertString(index int, s string, formats map[string]any) {
	rs := []rune(s)
	if len(rs) == 0 {
		return
	}
	t.doc.ensure(func() {
		us := make([]textUnit, len(rs))
		for i, r := range rs {
			us[i] = textUnit{id: t.doc.nextID(), r: r, formats: copyFormats(formats)}
		}
		t.insertUnits(t.clamp(index), us)
	})
}

func (t *Text) InsertEmbed(index int, v any, formats map[string]any) {
	if v == nil {
		return
	}
	t.doc.ensure(func() {
		u := textUnit{id: t.doc.nextID(), embed: v, formats: copyFormats(formats)}
		t.insertUnits(t.clamp(index), []textUnit{u})
	})
}

func (t *Text) Delete(index, n int) {
	if index < 0 || index >= len(t.units) {
		return
	}
	if n > len(t.units)-index {
		n = len(t.units) - index
	}
	if n <= 0 {
		return
	}
	t.doc.ensure(func() {
		removed := make([]textUnit, n)
		copy(removed, t.units[index:index+n])
		var afterID uint64
		if index > 0 {
			afterID = t.units[index-1].id
		}
		t.units = append(t.units[:index], t.units[index+n:]...)
		ev := TextEvent{Delta: append(deltaRetain(index), DeltaOp{Delete: n})}
		t.doc.addEvent(func(origin any) {
			ev.Origin = origin
			t.obs.emit(ev)
		})
		t.doc.addInverse(&textInsert{t: t, afterID: afterID, units: removed})
	})
}

// Format applies formats over [index, index+n). A nil format value
// removes that format from the range.
func (t *Text) Format(index, n int, formats map[string]any) {
	if len(formats) == 0 || index < 0 || index >= len(t.units) {
		return
	}
	if n > len(t.units)-index {
		n = len(t.units) - index
	}
	if n <= 0 {
		return
	}
	t.doc.ensure(func() {
		var restores []formatRestore
		for i := index; i < index+n; i++ {
			u := &t.units[i]
			for k, v := range formats {
				old, had := u.formats[k]
				restores = append(restores, formatRestore{id: u.id, name: k, value: old, had: had})
				if v == nil {
					delete(u.formats, k)
					continue
				}
				if u.formats == nil {
					u.formats = map[string]any{}
				}
				u.formats[k] = v
			}
		}
		ev := TextEvent{Delta: append(deltaRetain(index), DeltaOp{Retain: n, Formats: copyFormats(formats)})}
		t.doc.addEvent(func(origin any) {
			ev.Origin = origin
			t.obs.emit(ev)
		})
		t.doc.addInverse(&textFormat{t: t, restores: restores})
	})
}

func (t *Text) SetAttribute(name string, v any) {
	t.doc.ensure(func() {
		old, had := t.attrs[name]
		t.attrs[name] = v
		ev := TextEvent{Attr: &AttrChange{Name: name, Value: v, OldValue: old}}
		t.doc.addEvent(func(origin any) {
			ev.Origin = origin
			t.obs.emit(ev)
		})
		t.doc.addInverse(&textAttr{t: t, name: name, value: old, had: had})
	})
}

func (t *Text) RemoveAttribute(name string) {
	t.doc.ensure(func() {
		old, had := t.attrs[name]
		if !had {
			return
		}
		delete(t.attrs, name)
		ev := TextEvent{Attr: &AttrChange{Name: name, Removed: true, OldValue: old}}
		t.doc.addEvent(func(origin any) {
			ev.Origin = origin
			t.obs.emit(ev)
		})
		t.doc.addInverse(&textAttr{t: t, name: name, value: old, had: true})
	})
}

func (t *Text) clamp(index int) int {
	if index < 0 {
		return 0
	}
	if index > len(t.units) {
		return len(t.units)
	}
	return index
}

func (t *Text) indexOfID(id uint64) int {
	// linear scan; fine at editor scale
	for i, u := range t.units {
		if u.id == id {
			return i
		}
	}
	return -1
}

// insertUnits splices already-identified units at index, recording the
// event and the delete-by-identity inverse. Must run inside an open
// transaction.
func (t *Text) insertUnits(index int, us []textUnit) {
	rest := append([]textUnit(nil), t.units[index:]...)
	t.units = append(append(t.units[:index], us...), rest...)
	ids := make([]uint64, len(us))
	for i, u := range us {
		ids[i] = u.id
	}
	ev := TextEvent{Delta: append(deltaRetain(index), unitsToDelta(us)...)}
	t.doc.addEvent(func(origin any) {
		ev.Origin = origin
		t.obs.emit(ev)
	})
	t.doc.addInverse(&textDelete{t: t, ids: ids})
}

func deltaRetain(n int) []DeltaOp {
	if n <= 0 {
		return nil
	}
	return []DeltaOp{{Retain: n}}
}

func unitsToDelta(us []textUnit) []DeltaOp {
	var out []DeltaOp
	for _, u := range us {
		if u.isEmbed() {
			out = append(out, DeltaOp{InsertEmbed: u.embed, Formats: copyFormats(u.formats)})
			continue
		}
		if n := len(out); n > 0 && out[n-1].InsertText != "" && reflect.DeepEqual(out[n-1].Formats, copyFormats(u.formats)) {
			out[n-1].InsertText += string(u.r)
			continue
		}
		out = append(out, DeltaOp{InsertText: string(u.r), Formats: copyFormats(u.formats)})
	}
	return out
}

type textDelete struct {
	t   *Text
	ids []uint64
}

func (op *textDelete) apply() {
	for _, id := range op.ids {
		if i := op.t.indexOfID(id); i >= 0 {
			op.t.Delete(i, 1)
		}
	}
}

type textInsert struct {
	t       *Text
	afterID uint64
	units   []textUnit
}

func (op *textInsert) apply() {
	t := op.t
	t.doc.ensure(func() {
		index := 0
		if op.afterID != 0 {
			if i := t.indexOfID(op.afterID); i >= 0 {
				index = i + 1
			}
		}
		us := make([]textUnit, len(op.units))
		copy(us, op.units)
		t.insertUnits(index, us)
	})
}

type formatRestore struct {
	id    uint64
	name  string
	value any
	had   bool
}

type textFormat struct {
	t        *Text
	restores []formatRestore
}

func (op *textFormat) apply() {
	for _, r := range op.restores {
		i := op.t.indexOfID(r.id)
		if i < 0 {
			continue
		}
		value := r.value
		if !r.had {
			value = nil
		}
		op.t.Format(i, 1, map[string]any{r.name: value})
	}
}

type textAttr struct {
	t     *Text
	name  string
	value any
	had   bool
}

func (op *textAttr) apply() {
	if op.had {
		op.t.SetAttribute(op.name, op.value)
		return
	}
	op.t.RemoveAttribute(op.name)
}
