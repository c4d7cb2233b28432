package model

import "reflect"

// ContentType describes one variant of content a slot accepts. A slot's
// schema is the set of accepted variants.
type ContentType int

const (
	ContentText ContentType = iota + 1
	ContentInlineComponent
	ContentBlockComponent
)

type slotUnit struct {
	r       rune
	comp    *Component
	formats map[string]any
}

// Fragment is a run of slot content sharing one format set. Either Text
// is non-empty or Component is non-nil.
type Fragment struct {
	Text      string
	Component *Component
	Formats   map[string]any
}

// Slot is an attributed content sequence: runes and embedded components
// with per-unit formats, slot-level attributes and an editing cursor.
type Slot struct {
	schema  []ContentType
	units   []slotUnit
	attrs   map[string]any
	cursor  int
	watched watcherList[[]Action]
}

func NewSlot(schema ...ContentType) *Slot {
	return &Slot{schema: schema, attrs: map[string]any{}}
}

func (s *Slot) Schema() []ContentType { return append([]ContentType(nil), s.schema...) }
func (s *Slot) Length() int           { return len(s.units) }
func (s *Slot) Cursor() int           { return s.cursor }

// Watch registers a change-action watcher. Actions are delivered
// synchronously, one batch per mutation, in mutation order.
func (s *Slot) Watch(fn func([]Action)) *Subscription { return s.watched.add(fn) }

func (s *Slot) clamp(offset int) int {
	if offset < 0 {
		return 0
	}
	if offset > len(s.units) {
		return len(s.units)
	}
	return offset
}

// Retain moves the cursor to an absolute offset.
func (s *Slot) Retain(offset int) {
	offset = s.clamp(offset)
	if offset == s.cursor {
		return
	}
	s.cursor = offset
	s.watched.emit([]Action{{Type: ActionRetain, Offset: offset}})
}

// RetainFormat moves the cursor forward to offset, applying formats to
// the passed-over range. A nil format value removes that format.
func (s *Slot) RetainFormat(offset int, formats map[string]any) {
	offset = s.clamp(offset)
	if offset <= s.cursor || len(formats) == 0 {
		s.Retain(offset)
		return
	}
	from := s.cursor
	for i := from; i < offset; i++ {
		u := &s.units[i]
		for k, v := range formats {
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
	s.cursor = offset
	s.watched.emit([]Action{
		{Type: ActionRetain, Offset: from},
		{Type: ActionRetain, Offset: offset, Formats: copyFormats(formats)},
	})
}

// InsertText inserts content at the cursor and advances it.
func (s *Slot) InsertText(content string, formats map[string]any) {
	rs := []rune(content)
	if len(rs) == 0 {
		return
	}
	pos := s.cursor
	units := make([]slotUnit, len(rs))
	for i, r := range rs {
		units[i] = slotUnit{r: r, formats: copyFormats(formats)}
	}
	s.units = spliceUnits(s.units, pos, 0, units)
	s.cursor = pos + len(rs)
	s.watched.emit([]Action{
		{Type: ActionRetain, Offset: pos},
		{Type: ActionInsert, Content: content, Formats: copyFormats(formats)},
	})
}

// InsertComponent embeds a component at the cursor.
func (s *Slot) InsertComponent(c *Component, formats map[string]any) {
	if c == nil {
		return
	}
	pos := s.cursor
	s.units = spliceUnits(s.units, pos, 0, []slotUnit{{comp: c, formats: copyFormats(formats)}})
	s.cursor = pos + 1
	s.watched.emit([]Action{
		{Type: ActionRetain, Offset: pos},
		{Type: ActionInsert, Ref: c, Formats: copyFormats(formats)},
	})
}

// Delete removes count units forward from the cursor and returns the
// components that were torn out of the range.
func (s *Slot) Delete(count int) []*Component {
	pos := s.cursor
	if count > len(s.units)-pos {
		count = len(s.units) - pos
	}
	if count <= 0 {
		return nil
	}
	var removed []*Component
	for _, u := range s.units[pos : pos+count] {
		if u.comp != nil {
			removed = append(removed, u.comp)
		}
	}
	s.units = spliceUnits(s.units, pos, count, nil)
	s.watched.emit([]Action{
		{Type: ActionRetain, Offset: pos},
		{Type: ActionDelete, Count: count, Removed: removed},
	})
	return removed
}

func (s *Slot) SetAttribute(name string, v any) {
	old, had := s.attrs[name]
	s.attrs[name] = v
	a := Action{Type: ActionAttrSet, Key: name, Value: v}
	if had {
		a.Old = old
	}
	s.watched.emit([]Action{a})
}

func (s *Slot) RemoveAttribute(name string) {
	old, had := s.attrs[name]
	if !had {
		return
	}
	delete(s.attrs, name)
	s.watched.emit([]Action{{Type: ActionAttrDelete, Key: name, Old: old}})
}

func (s *Slot) Attribute(name string) (any, bool) {
	v, ok := s.attrs[name]
	return v, ok
}

func (s *Slot) Attributes() map[string]any {
	out := make(map[string]any, len(s.attrs))
	for k, v := range s.attrs {
		out[k] = v
	}
	return out
}

// String renders runes only; embedded components appear as U+FFFC.
func (s *Slot) String() string {
	rs := make([]rune, len(s.units))
	for i, u := range s.units {
		if u.comp != nil {
			rs[i] = '￼'
			continue
		}
		rs[i] = u.r
	}
	return string(rs)
}

// Components lists embedded components in content order.
func (s *Slot) Components() []*Component {
	var out []*Component
	for _, u := range s.units {
		if u.comp != nil {
			out = append(out, u.comp)
		}
	}
	return out
}

// FormatsAt returns a copy of the format set of the unit at offset i.
func (s *Slot) FormatsAt(i int) map[string]any {
	if i < 0 || i >= len(s.units) {
		return nil
	}
	return copyFormats(s.units[i].formats)
}

// Fragments splits the content into runs of equal-format text, with each
// embedded component as its own fragment.
func (s *Slot) Fragments() []Fragment {
	var out []Fragment
	for _, u := range s.units {
		if u.comp != nil {
			out = append(out, Fragment{Component: u.comp, Formats: copyFormats(u.formats)})
			continue
		}
		if n := len(out); n > 0 && out[n-1].Component == nil && formatsEqual(out[n-1].Formats, u.formats) {
			out[n-1].Text += string(u.r)
			continue
		}
		out = append(out, Fragment{Text: string(u.r), Formats: copyFormats(u.formats)})
	}
	return out
}

func formatsEqual(a, b map[string]any) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	return reflect.DeepEqual(a, b)
}

func spliceUnits(units []slotUnit, at, del int, add []slotUnit) []slotUnit {
	out := make([]slotUnit, 0, len(units)-del+len(add))
	out = append(out, units[:at]...)
	out = append(out, add...)
	out = append(out, units[at+del:]...)
	return out
}
