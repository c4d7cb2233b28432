package model

// Endpoint is one end of an editing selection.
type Endpoint struct {
	Slot   *Slot
	Offset int
}

// Selection holds the current anchor and focus endpoints.
type Selection struct {
	anchor  *Endpoint
	focus   *Endpoint
	watched watcherList[struct{}]
}

func NewSelection() *Selection { return &Selection{} }

// Anchor returns a copy of the anchor endpoint, or nil when unset.
func (s *Selection) Anchor() *Endpoint { return cloneEndpoint(s.anchor) }

// Focus returns a copy of the focus endpoint, or nil when unset.
func (s *Selection) Focus() *Endpoint { return cloneEndpoint(s.focus) }

func (s *Selection) IsSet() bool { return s.anchor != nil && s.focus != nil }

func (s *Selection) Select(anchorSlot *Slot, anchorOffset int, focusSlot *Slot, focusOffset int) {
	s.anchor = &Endpoint{Slot: anchorSlot, Offset: anchorOffset}
	s.focus = &Endpoint{Slot: focusSlot, Offset: focusOffset}
	s.watched.emit(struct{}{})
}

func (s *Selection) SetAnchor(slot *Slot, offset int) {
	s.anchor = &Endpoint{Slot: slot, Offset: offset}
	s.watched.emit(struct{}{})
}

func (s *Selection) SetFocus(slot *Slot, offset int) {
	s.focus = &Endpoint{Slot: slot, Offset: offset}
	s.watched.emit(struct{}{})
}

func (s *Selection) Clear() {
	if s.anchor == nil && s.focus == nil {
		return
	}
	s.anchor, s.focus = nil, nil
	s.watched.emit(struct{}{})
}

// Watch registers a selection-change listener.
func (s *Selection) Watch(fn func()) *Subscription {
	return s.watched.add(func(struct{}) { fn() })
}

func cloneEndpoint(e *Endpoint) *Endpoint {
	if e == nil {
		return nil
	}
	c := *e
	return &c
}
