package shared

// Position is an edit-resilient reference into a Text. It anchors to the
// identity of the unit at the referenced offset (or to the end of the
// text) rather than to the offset itself, so it stays resolvable after
// concurrent inserts and deletes elsewhere.
type Position struct {
	text   *Text
	unitID uint64 // 0 anchors to the end
}

func (p *Position) Text() *Text {
	if p == nil {
		return nil
	}
	return p.text
}

// CreatePosition captures an edit-resilient reference to offset in t.
func (d *Doc) CreatePosition(t *Text, offset int) *Position {
	if t == nil {
		return nil
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(t.units) {
		return &Position{text: t}
	}
	return &Position{text: t, unitID: t.units[offset].id}
}

// ResolvePosition maps a reference back to a current offset. It reports
// false when the anchoring unit has been deleted.
func (d *Doc) ResolvePosition(p *Position) (int, bool) {
	if p == nil || p.text == nil {
		return 0, false
	}
	if p.unitID == 0 {
		return len(p.text.units), true
	}
	if i := p.text.indexOfID(p.unitID); i >= 0 {
		return i, true
	}
	return 0, false
}
