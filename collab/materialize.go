package collab

import (
	"errors"
	"fmt"

	"github.com/lihrs/textbus/model"
	"github.com/lihrs/textbus/shared"
)

// schemaAttr is the reserved text attribute holding a slot's schema
// descriptor. It never reaches the local attribute set.
const schemaAttr = "schema"

var (
	// ErrUnexpectedDelta signals a non-insert delta entry while
	// materializing a slot from shared content. The document is corrupt
	// or foreign; the operation fails immediately.
	ErrUnexpectedDelta = errors.New("collab: non-insert delta entry in shared slot content")

	// ErrUnknownComponent signals a shared component whose factory name
	// is not registered. Schema compatibility must be ensured before
	// joining a session.
	ErrUnknownComponent = errors.New("collab: no factory registered for component")
)

// localToShared converts a local value to its shared counterpart,
// dispatching on the runtime variant.
func (e *Engine) localToShared(v any) any {
	switch n := v.(type) {
	case *model.Slot:
		return e.slotToShared(n)
	case *model.Component:
		return e.componentToShared(n)
	case *model.MapModel:
		return e.mapToShared(n)
	case *model.ArrayModel:
		return e.arrayToShared(n)
	default:
		return v
	}
}

func (e *Engine) slotToShared(s *model.Slot) *shared.Text {
	t := e.doc.NewText()
	t.SetAttribute(schemaAttr, s.Schema())
	for name, v := range s.Attributes() {
		t.SetAttribute(name, v)
	}
	index := 0
	for _, f := range s.Fragments() {
		if f.Component != nil {
			t.InsertEmbed(index, e.componentToShared(f.Component), e.encodeFormats(f.Formats))
			index++
			continue
		}
		t.InsertString(index, f.Text, e.encodeFormats(f.Formats))
		index += len([]rune(f.Text))
	}
	return t
}

// componentToShared renders a component as a shared map with its factory
// key under "name" and the converted state under "state".
func (e *Engine) componentToShared(c *model.Component) *shared.Map {
	m := e.doc.NewMap()
	m.Set("name", c.Name)
	m.Set("state", e.mapToShared(c.State))
	return m
}

func (e *Engine) mapToShared(mm *model.MapModel) *shared.Map {
	m := e.doc.NewMap()
	for _, k := range mm.Keys() {
		v, _ := mm.Get(k)
		m.Set(k, e.localToShared(v))
	}
	return m
}

func (e *Engine) arrayToShared(am *model.ArrayModel) *shared.Array {
	a := e.doc.NewArray()
	for i, v := range am.Items() {
		a.Insert(i, e.localToShared(v))
	}
	return a
}

// sharedToLocal converts a shared value back to its local counterpart,
// dispatching on the runtime variant. A map carrying "name" and "state"
// reconstructs as a component through the registry.
func (e *Engine) sharedToLocal(v any) (any, error) {
	switch n := v.(type) {
	case *shared.Text:
		return e.slotFromDelta(n.Delta(), n.Attributes())
	case *shared.Map:
		if _, hasName := n.Get("name"); hasName {
			if _, hasState := n.Get("state"); hasState {
				return e.componentFromShared(n)
			}
		}
		return e.mapFromShared(n)
	case *shared.Array:
		return e.arrayFromShared(n)
	default:
		return v, nil
	}
}

func (e *Engine) slotFromDelta(delta []shared.DeltaOp, attrs map[string]any) (*model.Slot, error) {
	var schema []model.ContentType
	if v, ok := attrs[schemaAttr]; ok {
		if s, ok := v.([]model.ContentType); ok {
			schema = s
		}
	}
	slot := model.NewSlot(schema...)
	for _, op := range delta {
		if !op.IsInsert() {
			return nil, fmt.Errorf("%w: retain/delete in snapshot", ErrUnexpectedDelta)
		}
		if op.InsertEmbed != nil {
			lv, err := e.sharedToLocal(op.InsertEmbed)
			if err != nil {
				return nil, err
			}
			c, ok := lv.(*model.Component)
			if !ok {
				return nil, fmt.Errorf("%w: embedded %T is not a component", ErrUnexpectedDelta, op.InsertEmbed)
			}
			slot.InsertComponent(c, e.decodeFormats(op.Formats))
			continue
		}
		slot.InsertText(op.InsertText, e.decodeFormats(op.Formats))
	}
	for name, v := range attrs {
		if name == schemaAttr {
			continue
		}
		slot.SetAttribute(name, v)
	}
	return slot, nil
}

func (e *Engine) componentFromShared(m *shared.Map) (*model.Component, error) {
	nameValue, _ := m.Get("name")
	name, _ := nameValue.(string)
	factory, ok := e.session.Registry.Component(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	stateValue, _ := m.Get("state")
	sm, _ := stateValue.(*shared.Map)
	state, err := e.mapFromShared(sm)
	if err != nil {
		return nil, err
	}
	return factory(state)
}

func (e *Engine) mapFromShared(m *shared.Map) (*model.MapModel, error) {
	mm := model.NewMapModel()
	if m == nil {
		return mm, nil
	}
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		lv, err := e.sharedToLocal(v)
		if err != nil {
			return nil, err
		}
		mm.Set(k, lv)
	}
	return mm, nil
}

func (e *Engine) arrayFromShared(a *shared.Array) (*model.ArrayModel, error) {
	am := model.NewArrayModel()
	for i, v := range a.Slice() {
		lv, err := e.sharedToLocal(v)
		if err != nil {
			return nil, err
		}
		am.Insert(i, lv)
	}
	return am, nil
}

// encodeFormats runs format values through their registered encoders on
// the way into the shared document. Unregistered formats pass through:
// they were authored locally and stay authoritative.
func (e *Engine) encodeFormats(formats map[string]any) map[string]any {
	if len(formats) == 0 {
		return nil
	}
	out := make(map[string]any, len(formats))
	for name, v := range formats {
		if f, ok := e.session.Registry.Formatter(name); ok && f.Encode != nil && v != nil {
			v = f.Encode(v)
		}
		out[name] = v
	}
	return out
}

// decodeFormats runs shared format values through their registered
// decoders on the way into the local model. Formats with no registered
// formatter are dropped, observable at debug level.
func (e *Engine) decodeFormats(formats map[string]any) map[string]any {
	if len(formats) == 0 {
		return nil
	}
	out := map[string]any{}
	for name, v := range formats {
		f, ok := e.session.Registry.Formatter(name)
		if !ok {
			e.logger.Debug().Str("format", name).Msg("dropping format with no registered formatter")
			continue
		}
		if f.Decode != nil && v != nil {
			v = f.Decode(v)
		}
		out[name] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
