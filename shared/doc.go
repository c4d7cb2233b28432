// Package shared implements the replicated shared-document containers:
// a root map plus map, array and attributed-text variants, mutated only
// inside origin-tagged transactions and observable per container. How
// concurrent replicas converge is the replication layer's concern; this
// package guarantees atomic transactions, ordered commit-time events and
// identity-stable position references.
package shared

import (
	"github.com/google/uuid"

	"github.com/lihrs/textbus/util"
)

// Doc owns the container tree and the transaction machinery. One doc per
// editing session.
type Doc struct {
	guid  string
	root  *Map
	txn   *txn
	clock uint64

	txnObs   observerList[any]
	captures observerList[capture]
}

type capture struct {
	origin  any
	inverse []invOp
}

type txn struct {
	origin  any
	events  []func(origin any)
	inverse []invOp
}

func NewDoc() *Doc {
	d := &Doc{guid: uuid.NewString()}
	d.root = d.NewMap()
	return d
}

func (d *Doc) GUID() string { return d.guid }
func (d *Doc) Root() *Map   { return d.root }

// Transact runs fn inside an origin-tagged transaction. Nested calls
// join the open transaction and keep the outermost origin. Events are
// delivered synchronously at commit, in mutation order.
func (d *Doc) Transact(origin any, fn func()) {
	d.transact(origin, fn)
}

// OnTransaction registers a hook fired once per committed transaction
// with the transaction's origin.
func (d *Doc) OnTransaction(fn func(origin any)) *Subscription {
	return d.txnObs.add(fn)
}

func (d *Doc) transact(origin any, fn func()) []invOp {
	if d.txn != nil {
		fn()
		return nil
	}
	t := &txn{origin: origin}
	d.txn = t
	fn()
	d.txn = nil
	for _, fire := range t.events {
		fire(t.origin)
	}
	d.txnObs.emit(t.origin)
	d.captures.emit(capture{origin: t.origin, inverse: t.inverse})
	return t.inverse
}

// ensure wraps a single container mutation in an implicit transaction
// when none is open, so that every mutation commits inside exactly one.
func (d *Doc) ensure(fn func()) {
	if d.txn != nil {
		fn()
		return
	}
	d.transact(nil, fn)
}

func (d *Doc) addEvent(fire func(origin any)) {
	d.txn.events = append(d.txn.events, fire)
}

func (d *Doc) addInverse(op invOp) {
	d.txn.inverse = append(d.txn.inverse, op)
}

// onCapture feeds undo managers the inverse ops of each transaction.
func (d *Doc) onCapture(fn func(capture)) *Subscription {
	return d.captures.add(fn)
}

func (d *Doc) nextID() uint64 {
	d.clock++
	return d.clock
}

// Subscription is the handle returned by observer registrations.
// Unsubscribe is idempotent.
type Subscription struct {
	cancel func()
}

func (s *Subscription) Unsubscribe() {
	if s != nil && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

type observer[T any] struct {
	id int
	fn func(T)
}

type observerList[T any] struct {
	obs  []observer[T]
	next int
}

func (o *observerList[T]) add(fn func(T)) *Subscription {
	id := o.next
	o.next++
	o.obs = append(o.obs, observer[T]{id: id, fn: fn})
	return &Subscription{cancel: func() {
		o.obs = util.Filter(o.obs, func(x observer[T]) bool { return x.id != id })
	}}
}

func (o *observerList[T]) emit(v T) {
	snapshot := make([]observer[T], len(o.obs))
	copy(snapshot, o.obs)
	for _, x := range snapshot {
		x.fn(v)
	}
}

func copyFormats(formats map[string]any) map[string]any {
	if len(formats) == 0 {
		return nil
	}
	out := make(map[string]any, len(formats))
	for k, v := range formats {
		out[k] = v
	}
	return out
}
