package dubtrack

import (
	"regexp"
	"sync"

	"go.uber.org/zap"
)

// emitter is the exact-name event bus: listeners keyed by the literal event
// type string. Dispatch snapshots the listener list first, so a callback may
// register or remove listeners without corrupting the in-progress pass.
type emitter struct {
	mu       sync.Mutex
	seq      uint64
	handlers map[string][]*namedListener
	log      *zap.SugaredLogger
}

type namedListener struct {
	id   uint64
	fn   Handler
	once bool
}

func newEmitter(log *zap.SugaredLogger) *emitter {
	return &emitter{
		handlers: make(map[string][]*namedListener),
		log:      log,
	}
}

// On registers a listener for the exact event type name and returns its
// remover.
func (e *emitter) On(name string, fn Handler) (off func()) {
	return e.register(name, fn, false)
}

// Once registers a listener removed after its first invocation.
func (e *emitter) Once(name string, fn Handler) (off func()) {
	return e.register(name, fn, true)
}

func (e *emitter) register(name string, fn Handler, once bool) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	l := &namedListener{id: e.seq, fn: fn, once: once}
	e.handlers[name] = append(e.handlers[name], l)

	id := l.id
	return func() { e.remove(name, id) }
}

func (e *emitter) remove(name string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	list := e.handlers[name]
	for i, l := range list {
		if l.id == id {
			e.handlers[name] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

func (e *emitter) hasListeners(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handlers[name]) > 0
}

// emit invokes every listener registered for ev.Type, in registration order.
// A panicking listener is isolated so the rest of the pass still runs.
func (e *emitter) emit(ev *Event) {
	e.mu.Lock()
	list := e.handlers[ev.Type]
	snapshot := make([]*namedListener, len(list))
	copy(snapshot, list)
	kept := list[:0:0]
	for _, l := range list {
		if !l.once {
			kept = append(kept, l)
		}
	}
	if len(kept) != len(list) {
		e.handlers[ev.Type] = kept
	}
	e.mu.Unlock()

	for _, l := range snapshot {
		e.invoke(l.fn, ev)
	}
}

func (e *emitter) invoke(fn Handler, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorw("listener panicked", "event", ev.Type, "panic", r)
		}
	}()
	fn(ev)
}

// patternList is the pattern-listener registry: an ordered list matched
// against the event type string. Two registrations are equal iff their
// pattern sources are equal; equality drives both dedupe on add and removal
// by value.
type patternList struct {
	mu    sync.Mutex
	items []*patternListener
}

type patternListener struct {
	re *regexp.Regexp
	fn Handler
}

func newPatternList() *patternList {
	return &patternList{}
}

// add registers a pattern listener. Adding a pattern equal to an existing
// registration replaces that registration's callback in place, keeping its
// dispatch position.
func (p *patternList) add(re *regexp.Regexp, fn Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, item := range p.items {
		if item.re.String() == re.String() {
			item.fn = fn
			return
		}
	}
	p.items = append(p.items, &patternListener{re: re, fn: fn})
}

// remove deletes the registration whose pattern source equals re's. The
// supplied pattern may be a distinct object; removing an unknown pattern is a
// no-op.
func (p *patternList) remove(re *regexp.Regexp) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, item := range p.items {
		if item.re.String() == re.String() {
			p.items = append(p.items[:i:i], p.items[i+1:]...)
			return
		}
	}
}

// snapshot returns the registrations in registration order, detached from the
// live list so mutation during a dispatch pass cannot corrupt the iteration.
func (p *patternList) snapshot() []*patternListener {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*patternListener, len(p.items))
	copy(out, p.items)
	return out
}
