package collab

import (
	"github.com/lihrs/textbus/model"
	"github.com/lihrs/textbus/shared"
)

// PositionBridge is the non-owning, bidirectional association between
// local slots and their shared text counterparts. Entries are removed
// explicitly on teardown; a stale association is a correctness bug, not
// a garbage collection concern.
type PositionBridge struct {
	texts map[*model.Slot]*shared.Text
	slots map[*shared.Text]*model.Slot
}

func NewPositionBridge() *PositionBridge {
	return &PositionBridge{
		texts: map[*model.Slot]*shared.Text{},
		slots: map[*shared.Text]*model.Slot{},
	}
}

func (b *PositionBridge) Bind(slot *model.Slot, text *shared.Text) {
	b.texts[slot] = text
	b.slots[text] = slot
}

func (b *PositionBridge) TextOf(slot *model.Slot) (*shared.Text, bool) {
	t, ok := b.texts[slot]
	return t, ok
}

func (b *PositionBridge) SlotOf(text *shared.Text) (*model.Slot, bool) {
	s, ok := b.slots[text]
	return s, ok
}

func (b *PositionBridge) Unbind(slot *model.Slot) {
	if t, ok := b.texts[slot]; ok {
		delete(b.slots, t)
		delete(b.texts, slot)
	}
}

func (b *PositionBridge) Reset() {
	b.texts = map[*model.Slot]*shared.Text{}
	b.slots = map[*shared.Text]*model.Slot{}
}

func (b *PositionBridge) Len() int { return len(b.texts) }
