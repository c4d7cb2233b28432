package model

// UpdateSource says what caused the current batch of model mutations.
type UpdateSource int

const (
	SourceLocal UpdateSource = iota
	SourceRemote
	SourceHistory
)

func (s UpdateSource) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceRemote:
		return "remote"
	case SourceHistory:
		return "history"
	}
	return "unknown"
}

// Scheduler coordinates edit cycles. The embedding editor fires
// BeforeChange ahead of a user edit and DocChanged(SourceLocal) as the
// batching signal afterwards. RemoteTransact and HistoryTransact scope
// replay execution so that mutations made inside them are attributable
// to their cause.
type Scheduler struct {
	source  UpdateSource
	before  watcherList[struct{}]
	changed watcherList[UpdateSource]
}

func NewScheduler() *Scheduler { return &Scheduler{} }

// Source reports the cause of mutations happening right now.
func (s *Scheduler) Source() UpdateSource { return s.source }

// OnBeforeChange registers for the pre-edit signal.
func (s *Scheduler) OnBeforeChange(fn func()) *Subscription {
	return s.before.add(func(struct{}) { fn() })
}

// OnDocChanged registers for the batched post-edit signal. Listeners
// filter by source themselves.
func (s *Scheduler) OnDocChanged(fn func(UpdateSource)) *Subscription {
	return s.changed.add(fn)
}

func (s *Scheduler) BeforeChange() { s.before.emit(struct{}{}) }

func (s *Scheduler) DocChanged(source UpdateSource) { s.changed.emit(source) }

// RemoteTransact runs fn with the source scoped to SourceRemote, then
// fires the post-edit signal tagged accordingly.
func (s *Scheduler) RemoteTransact(fn func()) { s.scoped(SourceRemote, fn) }

// HistoryTransact runs fn with the source scoped to SourceHistory, then
// fires the post-edit signal tagged accordingly.
func (s *Scheduler) HistoryTransact(fn func()) { s.scoped(SourceHistory, fn) }

func (s *Scheduler) scoped(source UpdateSource, fn func()) {
	prev := s.source
	s.source = source
	fn()
	s.source = prev
	s.DocChanged(source)
}
