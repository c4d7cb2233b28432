// Package collab is the bidirectional sync core of a collaborative
// editor session: it translates local model mutations into origin-tagged
// shared-document transactions, replays remote and history transactions
// back into the local model without echo loops, and preserves the
// editing selection across concurrent and historical edits.
package collab

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lihrs/textbus/model"
	"github.com/lihrs/textbus/shared"
	"github.com/lihrs/textbus/util"
)

// Mode is the engine's replay state. At most one of the applying modes
// is active at a time.
type Mode int

const (
	ModeIdle Mode = iota
	ModeApplyingRemote
	ModeApplyingHistory
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeApplyingRemote:
		return "applying-remote"
	case ModeApplyingHistory:
		return "applying-history"
	}
	return "unknown"
}

// Session aggregates the per-session collaborators. One session owns one
// shared document and one undo primitive; multiple sessions mean
// multiple aggregates, never shared engine state.
type Session struct {
	Doc       *shared.Doc
	Root      *model.Component
	Scheduler *model.Scheduler
	Registry  *model.Registry
	Selection *model.Selection
}

// Options configures an engine.
type Options struct {
	// StackSize bounds the undo depth. Zero means DefaultStackSize.
	StackSize int
	// CaptureTransaction filters which tracked transactions become undo
	// entries. Nil captures everything.
	CaptureTransaction func(origin any) bool
	// DeleteFilter filters which entries eviction may drop. Nil deletes
	// freely.
	DeleteFilter func(*shared.StackEntry) bool
	// Logger receives structured engine diagnostics. Nil means no-op.
	Logger *zerolog.Logger
}

// DefaultStackSize is the undo depth used when Options.StackSize is
// zero.
const DefaultStackSize = 500

type pendingItem struct {
	record bool
	apply  func()
}

type untrackedToken struct {
	id string
}

// Subscription is the handle returned by engine notifications.
type Subscription struct {
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	if s != nil && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Engine is the sync core for one session. Local mutations queue as
// pending items and flush on the batching signal, grouped into
// transactions by contiguous record runs. Shared-document events replay
// into the local model unless they are echoes of the engine's own
// writes.
type Engine struct {
	session   *Session
	doc       *shared.Doc
	bridge    *PositionBridge
	caret     *Caret
	history   *History
	logger    zerolog.Logger
	untracked *untrackedToken

	mode      Mode
	silent    bool
	pending   []pendingItem
	listening bool
	err       error

	bindings map[any][]func()
	subs     []func()

	applied     []appliedListener
	nextApplied int
}

type appliedListener struct {
	id int
	fn func()
}

func NewEngine(session *Session, opts Options) *Engine {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	e := &Engine{
		session:   session,
		doc:       session.Doc,
		bridge:    NewPositionBridge(),
		logger:    logger,
		untracked: &untrackedToken{id: uuid.NewString()},
		bindings:  map[any][]func(){},
	}
	e.caret = &Caret{doc: session.Doc, bridge: e.bridge, selection: session.Selection}
	e.history = newHistory(e, opts)
	return e
}

// Bridge exposes the slot/text association, mainly for embedding code
// that needs the shared counterpart of a slot.
func (e *Engine) Bridge() *PositionBridge { return e.bridge }

// Caret exposes the cursor translator.
func (e *Engine) Caret() *Caret { return e.caret }

// Mode reports the current replay state.
func (e *Engine) Mode() Mode { return e.mode }

// Err returns the first fatal replay error, if any. Such errors indicate
// a corrupt or schema-incompatible shared document.
func (e *Engine) Err() error { return e.err }

// Listen binds the shared root to the local root's state and subscribes
// to the batching signal and remote change events. It is idempotent.
func (e *Engine) Listen() {
	if e.listening {
		return
	}
	e.listening = true
	root := e.doc.Root()
	if stateValue, ok := root.Get("state"); ok {
		// joining a session that already has content
		if sm, ok := stateValue.(*shared.Map); ok {
			e.withMode(ModeApplyingRemote, func() {
				e.adoptState(e.session.Root.State, sm)
			})
		}
	} else {
		e.doc.Transact(e.untracked, func() {
			root.Set("name", e.session.Root.Name)
			root.Set("state", e.mapToShared(e.session.Root.State))
		})
	}
	e.bindComponent(e.session.Root, root)
	sub := e.session.Scheduler.OnDocChanged(e.flush)
	e.subs = append(e.subs, sub.Unsubscribe)
	e.history.listen()
	e.logger.Debug().Str("doc", e.doc.GUID()).Msg("engine listening")
}

// Back replays one undo step. No-op when the undo stack is empty.
func (e *Engine) Back() { e.history.back() }

// Forward replays one redo step. No-op when the redo stack is empty.
func (e *Engine) Forward() { e.history.forward() }

func (e *Engine) CanBack() bool    { return e.history.canBack() }
func (e *Engine) CanForward() bool { return e.history.canForward() }

// Clear collapses the history to at most its most recent entry.
func (e *Engine) Clear() { e.history.clear() }

// Destroy releases every subscription, the bridge and the undo
// primitive. The engine must not be used afterwards.
func (e *Engine) Destroy() {
	e.history.destroy()
	for node := range e.bindings {
		for _, cancel := range e.bindings[node] {
			cancel()
		}
	}
	e.bindings = map[any][]func(){}
	for _, cancel := range e.subs {
		cancel()
	}
	e.subs = nil
	e.bridge.Reset()
	e.pending = nil
	e.applied = nil
	e.mode = ModeIdle
	e.listening = false
}

// OnLocalChangesApplied registers a listener fired after each flush once
// every grouped transaction has been applied.
func (e *Engine) OnLocalChangesApplied(fn func()) *Subscription {
	id := e.nextApplied
	e.nextApplied++
	e.applied = append(e.applied, appliedListener{id: id, fn: fn})
	return &Subscription{cancel: func() {
		e.applied = util.Filter(e.applied, func(l appliedListener) bool { return l.id != id })
	}}
}

// adoptState rebuilds local state from an already-populated shared map,
// as a remote-scoped replay.
func (e *Engine) adoptState(mm *model.MapModel, sm *shared.Map) {
	e.session.Scheduler.RemoteTransact(func() {
		e.silently(func() {
			for _, k := range sm.Keys() {
				v, _ := sm.Get(k)
				lv, err := e.sharedToLocal(v)
				if err != nil {
					e.fail(err)
					continue
				}
				mm.Set(k, lv)
			}
		})
	})
}

// runLocalUpdate queues a local mutation for the next flush. Mutations
// made while a remote or history scope is active are untracked: they
// must reach the shared document but never the undo stack.
func (e *Engine) runLocalUpdate(apply func()) {
	e.pending = append(e.pending, pendingItem{
		record: e.session.Scheduler.Source() == model.SourceLocal,
		apply:  apply,
	})
}

// flush applies the pending queue on the batching signal: contiguous
// runs of equal record flags merge into one transaction each, in
// arrival order.
func (e *Engine) flush(source model.UpdateSource) {
	if source != model.SourceLocal || len(e.pending) == 0 {
		return
	}
	items := e.pending
	e.pending = nil
	groups := util.GroupBy(items, func(a, b pendingItem) bool { return a.record == b.record })
	for _, group := range groups {
		origin := util.Choose[any](group[0].record, e.doc, e.untracked)
		e.doc.Transact(origin, func() {
			for _, item := range group {
				item.apply()
			}
		})
	}
	e.logger.Debug().Int("items", len(items)).Int("transactions", len(groups)).Msg("local changes applied")
	for _, l := range append([]appliedListener(nil), e.applied...) {
		l.fn()
	}
}

// isEcho reports whether an event origin is one of the engine's own
// write tokens. Such events describe state the local model already has.
func (e *Engine) isEcho(origin any) bool {
	return origin == any(e.doc) || origin == any(e.untracked)
}

func (e *Engine) modeFor(origin any) Mode {
	if e.history.isOrigin(origin) {
		return ModeApplyingHistory
	}
	return ModeApplyingRemote
}

// withMode runs fn in an applying mode, scoped through the scheduler and
// with the engine's own watchers silenced. The three-state mode is
// strictly mutually exclusive.
func (e *Engine) withMode(mode Mode, fn func()) {
	if e.mode != ModeIdle && e.mode != mode {
		e.logger.Error().Stringer("active", e.mode).Stringer("requested", mode).
			Msg("reentrant replay with conflicting mode")
		return
	}
	prev := e.mode
	e.mode = mode
	transact := util.Choose(mode == ModeApplyingHistory,
		e.session.Scheduler.HistoryTransact, e.session.Scheduler.RemoteTransact)
	transact(func() {
		e.silently(fn)
	})
	e.mode = prev
}

func (e *Engine) silently(fn func()) {
	prev := e.silent
	e.silent = true
	fn()
	e.silent = prev
}

func (e *Engine) fail(err error) {
	if e.err == nil {
		e.err = err
	}
	e.logger.Error().Err(err).Msg("replay aborted")
}

// --- binding ---------------------------------------------------------

func (e *Engine) bindComponent(c *model.Component, m *shared.Map) {
	stateValue, _ := m.Get("state")
	sm, ok := stateValue.(*shared.Map)
	if !ok {
		return
	}
	e.bindMap(c.State, sm)
}

func (e *Engine) bindMap(mm *model.MapModel, sm *shared.Map) {
	if _, bound := e.bindings[mm]; bound {
		return
	}
	wSub := mm.Watch(func(actions []model.Action) { e.onLocalMapActions(mm, sm, actions) })
	oSub := sm.Observe(func(ev shared.MapEvent) { e.onSharedMapEvent(mm, ev) })
	e.bindings[mm] = []func(){wSub.Unsubscribe, oSub.Unsubscribe}
	for _, k := range mm.Keys() {
		lv, _ := mm.Get(k)
		if sv, ok := sm.Get(k); ok {
			e.bindValue(lv, sv)
		}
	}
}

func (e *Engine) bindArray(am *model.ArrayModel, sa *shared.Array) {
	if _, bound := e.bindings[am]; bound {
		return
	}
	wSub := am.Watch(func(actions []model.Action) { e.onLocalArrayActions(am, sa, actions) })
	oSub := sa.Observe(func(ev shared.ArrayEvent) { e.onSharedArrayEvent(am, ev) })
	e.bindings[am] = []func(){wSub.Unsubscribe, oSub.Unsubscribe}
	svs := sa.Slice()
	for i, lv := range am.Items() {
		if i < len(svs) {
			e.bindValue(lv, svs[i])
		}
	}
}

func (e *Engine) bindSlot(slot *model.Slot, text *shared.Text) {
	if _, bound := e.bindings[slot]; bound {
		return
	}
	e.bridge.Bind(slot, text)
	wSub := slot.Watch(func(actions []model.Action) { e.onLocalSlotActions(slot, text, actions) })
	oSub := text.Observe(func(ev shared.TextEvent) { e.onSharedTextEvent(slot, ev) })
	e.bindings[slot] = []func(){
		wSub.Unsubscribe,
		oSub.Unsubscribe,
		func() { e.bridge.Unbind(slot) },
	}
	embeds := text.Embeds()
	for i, c := range slot.Components() {
		if i < len(embeds) {
			if m, ok := embeds[i].(*shared.Map); ok {
				e.bindComponent(c, m)
			}
		}
	}
}

// bindValue pairs a freshly materialized local/shared couple, recursing
// per runtime variant.
func (e *Engine) bindValue(lv, sv any) {
	switch l := lv.(type) {
	case *model.Slot:
		if t, ok := sv.(*shared.Text); ok {
			e.bindSlot(l, t)
		}
	case *model.Component:
		if m, ok := sv.(*shared.Map); ok {
			e.bindComponent(l, m)
		}
	case *model.MapModel:
		if m, ok := sv.(*shared.Map); ok {
			e.bindMap(l, m)
		}
	case *model.ArrayModel:
		if a, ok := sv.(*shared.Array); ok {
			e.bindArray(l, a)
		}
	}
}

// unbindValue tears down the subtree rooted at a removed local value.
func (e *Engine) unbindValue(v any) {
	switch n := v.(type) {
	case *model.Component:
		e.release(n)
		e.unbindValue(n.State)
	case *model.Slot:
		for _, c := range n.Components() {
			e.unbindValue(c)
		}
		e.release(n)
	case *model.MapModel:
		for _, k := range n.Keys() {
			child, _ := n.Get(k)
			e.unbindValue(child)
		}
		e.release(n)
	case *model.ArrayModel:
		for _, item := range n.Items() {
			e.unbindValue(item)
		}
		e.release(n)
	}
}

func (e *Engine) release(node any) {
	for _, cancel := range e.bindings[node] {
		cancel()
	}
	delete(e.bindings, node)
}

// --- local -> shared -------------------------------------------------

func (e *Engine) onLocalSlotActions(slot *model.Slot, text *shared.Text, actions []model.Action) {
	if e.silent {
		return
	}
	e.runLocalUpdate(func() { e.applySlotActions(text, actions) })
	for _, a := range actions {
		if a.Type == model.ActionDelete {
			for _, c := range a.Removed {
				e.unbindValue(c)
			}
		}
	}
}

func (e *Engine) applySlotActions(text *shared.Text, actions []model.Action) {
	index := 0
	for _, a := range actions {
		switch a.Type {
		case model.ActionRetain:
			if a.Formats != nil {
				text.Format(index, a.Offset-index, e.encodeFormats(a.Formats))
			}
			index = a.Offset
		case model.ActionInsert:
			if a.Ref != nil {
				sm := e.componentToShared(a.Ref)
				text.InsertEmbed(index, sm, e.encodeFormats(a.Formats))
				e.bindComponent(a.Ref, sm)
				index++
				continue
			}
			text.InsertString(index, a.Content, e.encodeFormats(a.Formats))
			index += len([]rune(a.Content))
		case model.ActionDelete:
			text.Delete(index, a.Count)
		case model.ActionAttrSet:
			text.SetAttribute(a.Key, a.Value)
		case model.ActionAttrDelete:
			text.RemoveAttribute(a.Key)
		}
	}
}

func (e *Engine) onLocalMapActions(mm *model.MapModel, sm *shared.Map, actions []model.Action) {
	if e.silent {
		return
	}
	e.runLocalUpdate(func() { e.applyMapActions(sm, actions) })
	for _, a := range actions {
		if a.Type == model.ActionPropSet || a.Type == model.ActionPropDelete {
			e.unbindValue(a.Old)
		}
	}
}

func (e *Engine) applyMapActions(sm *shared.Map, actions []model.Action) {
	for _, a := range actions {
		switch a.Type {
		case model.ActionPropSet:
			sv := e.localToShared(a.Value)
			sm.Set(a.Key, sv)
			e.bindValue(a.Value, sv)
		case model.ActionPropDelete:
			sm.Delete(a.Key)
		}
	}
}

func (e *Engine) onLocalArrayActions(am *model.ArrayModel, sa *shared.Array, actions []model.Action) {
	if e.silent {
		return
	}
	e.runLocalUpdate(func() { e.applyArrayActions(sa, actions) })
	for _, a := range actions {
		if a.Type == model.ActionDelete {
			e.unbindValue(a.Old)
		}
	}
}

func (e *Engine) applyArrayActions(sa *shared.Array, actions []model.Action) {
	index := 0
	for _, a := range actions {
		switch a.Type {
		case model.ActionRetain:
			index = a.Offset
		case model.ActionInsert:
			sv := e.localToShared(a.Value)
			sa.Insert(index, sv)
			e.bindValue(a.Value, sv)
			index++
		case model.ActionDelete:
			sa.Delete(index, a.Count)
		}
	}
}

// --- shared -> local -------------------------------------------------

func (e *Engine) onSharedTextEvent(slot *model.Slot, ev shared.TextEvent) {
	if e.isEcho(ev.Origin) {
		return
	}
	mode := e.modeFor(ev.Origin)
	e.withMode(mode, func() { e.replayTextEvent(slot, ev) })
	if mode == ModeApplyingRemote {
		e.shiftSelection(slot, ev)
	}
}

func (e *Engine) replayTextEvent(slot *model.Slot, ev shared.TextEvent) {
	index := 0
	for _, op := range ev.Delta {
		switch {
		case op.Retain > 0:
			target := index + op.Retain
			if op.Formats != nil {
				slot.Retain(index)
				slot.RetainFormat(target, e.decodeFormats(op.Formats))
			}
			index = target
		case op.InsertText != "":
			slot.Retain(index)
			slot.InsertText(op.InsertText, e.decodeFormats(op.Formats))
			index += len([]rune(op.InsertText))
		case op.InsertEmbed != nil:
			lv, err := e.sharedToLocal(op.InsertEmbed)
			if err != nil {
				e.fail(err)
				return
			}
			c, ok := lv.(*model.Component)
			if !ok {
				e.logger.Debug().Msgf("skipping non-component embed %T", op.InsertEmbed)
				index++
				continue
			}
			slot.Retain(index)
			slot.InsertComponent(c, e.decodeFormats(op.Formats))
			if m, ok := op.InsertEmbed.(*shared.Map); ok {
				e.bindComponent(c, m)
			}
			index++
		case op.Delete > 0:
			slot.Retain(index)
			for _, removed := range slot.Delete(op.Delete) {
				e.unbindValue(removed)
			}
		}
	}
	if ev.Attr == nil || ev.Attr.Name == schemaAttr {
		return
	}
	if ev.Attr.Removed {
		slot.RemoveAttribute(ev.Attr.Name)
		return
	}
	slot.SetAttribute(ev.Attr.Name, ev.Attr.Value)
}

func (e *Engine) onSharedMapEvent(mm *model.MapModel, ev shared.MapEvent) {
	if e.isEcho(ev.Origin) {
		return
	}
	e.withMode(e.modeFor(ev.Origin), func() {
		switch ev.Action {
		case shared.EntrySet, shared.EntryUpdate:
			lv, err := e.sharedToLocal(ev.Value)
			if err != nil {
				e.fail(err)
				return
			}
			old, _ := mm.Get(ev.Key)
			mm.Set(ev.Key, lv)
			e.unbindValue(old)
			e.bindValue(lv, ev.Value)
		case shared.EntryDelete:
			old, _ := mm.Get(ev.Key)
			mm.Remove(ev.Key)
			e.unbindValue(old)
		}
	})
}

func (e *Engine) onSharedArrayEvent(am *model.ArrayModel, ev shared.ArrayEvent) {
	if e.isEcho(ev.Origin) {
		return
	}
	e.withMode(e.modeFor(ev.Origin), func() {
		if len(ev.Inserted) > 0 {
			for i, sv := range ev.Inserted {
				lv, err := e.sharedToLocal(sv)
				if err != nil {
					e.fail(err)
					return
				}
				am.Insert(ev.Index+i, lv)
				e.bindValue(lv, sv)
			}
			return
		}
		for i := 0; i < ev.Deleted; i++ {
			e.unbindValue(am.Remove(ev.Index))
		}
	})
}

// shiftSelection adjusts live selection endpoints in the affected slot
// after a non-history remote replay: inserts at or before an endpoint
// push it forward, deletes pull it back, clamped to the delete's start.
func (e *Engine) shiftSelection(slot *model.Slot, ev shared.TextEvent) {
	if len(ev.Delta) == 0 {
		return
	}
	sel := e.session.Selection
	shift := func(ep *model.Endpoint) (int, bool) {
		if ep == nil || ep.Slot != slot {
			return 0, false
		}
		offset := ep.Offset
		index := 0
		for _, op := range ev.Delta {
			switch {
			case op.Retain > 0:
				index += op.Retain
			case op.IsInsert():
				n := util.Choose(op.InsertEmbed != nil, 1, len([]rune(op.InsertText)))
				if offset >= index {
					offset += n
				}
				index += n
			case op.Delete > 0:
				if offset > index {
					offset = max(index, offset-op.Delete)
				}
			}
		}
		return offset, offset != ep.Offset
	}
	if offset, changed := shift(sel.Anchor()); changed {
		sel.SetAnchor(slot, offset)
	}
	if offset, changed := shift(sel.Focus()); changed {
		sel.SetFocus(slot, offset)
	}
}
