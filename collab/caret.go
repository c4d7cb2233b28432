package collab

import (
	"github.com/lihrs/textbus/model"
	"github.com/lihrs/textbus/shared"
)

// PositionPair is an edit-resilient snapshot of a selection.
type PositionPair struct {
	Anchor *shared.Position
	Focus  *shared.Position
}

// Caret translates between the live editing selection and stable
// position references in the shared document.
type Caret struct {
	doc       *shared.Doc
	bridge    *PositionBridge
	selection *model.Selection
}

// Capture snapshots the current selection. It returns nil unless both
// endpoints are set and anchored in slots with live shared counterparts.
func (c *Caret) Capture() *PositionPair {
	anchor, focus := c.selection.Anchor(), c.selection.Focus()
	if anchor == nil || focus == nil {
		return nil
	}
	anchorText, ok := c.bridge.TextOf(anchor.Slot)
	if !ok {
		return nil
	}
	focusText, ok := c.bridge.TextOf(focus.Slot)
	if !ok {
		return nil
	}
	return &PositionPair{
		Anchor: c.doc.CreatePosition(anchorText, anchor.Offset),
		Focus:  c.doc.CreatePosition(focusText, focus.Offset),
	}
}

// Resolve maps a snapshot back to live endpoints. It reports false when
// either reference points at deleted content or at a text without a live
// local counterpart.
func (c *Caret) Resolve(p *PositionPair) (anchor, focus model.Endpoint, ok bool) {
	if p == nil {
		return model.Endpoint{}, model.Endpoint{}, false
	}
	anchor, ok = c.resolveOne(p.Anchor)
	if !ok {
		return model.Endpoint{}, model.Endpoint{}, false
	}
	focus, ok = c.resolveOne(p.Focus)
	if !ok {
		return model.Endpoint{}, model.Endpoint{}, false
	}
	return anchor, focus, true
}

func (c *Caret) resolveOne(pos *shared.Position) (model.Endpoint, bool) {
	if pos == nil {
		return model.Endpoint{}, false
	}
	offset, ok := c.doc.ResolvePosition(pos)
	if !ok {
		return model.Endpoint{}, false
	}
	slot, ok := c.bridge.SlotOf(pos.Text())
	if !ok {
		return model.Endpoint{}, false
	}
	return model.Endpoint{Slot: slot, Offset: offset}, true
}
