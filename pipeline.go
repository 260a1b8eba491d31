package dubtrack

import (
	"sync"

	"go.uber.org/zap"
)

const inboundBufferSize = 64

// pipeline is the event normalization and dispatch core. Inbound raw events
// are serialized onto one goroutine: dispatch of event N, including every
// synchronous listener callback, completes before event N+1 is classified.
type pipeline struct {
	emitter  *emitter
	patterns *patternList
	rules    []eventRule

	// onlyFirstMatch stops pattern dispatch after the first matching pattern
	// listener per event. Exact-name dispatch is unaffected.
	onlyFirstMatch bool
	// raw bypasses classification and transformation entirely.
	raw bool

	resolveUser userResolver

	inbound  chan RawEvent
	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once

	log *zap.SugaredLogger
}

func newPipeline(resolveUser userResolver, onlyFirstMatch, raw bool, log *zap.SugaredLogger) *pipeline {
	return &pipeline{
		emitter:        newEmitter(log),
		patterns:       newPatternList(),
		rules:          newEventRules(),
		onlyFirstMatch: onlyFirstMatch,
		raw:            raw,
		resolveUser:    resolveUser,
		inbound:        make(chan RawEvent, inboundBufferSize),
		stop:           make(chan struct{}),
		stopped:        make(chan struct{}),
		log:            log,
	}
}

// Run processes inbound events until Close. Call in its own goroutine.
func (p *pipeline) Run() {
	defer close(p.stopped)
	for {
		select {
		case raw := <-p.inbound:
			p.process(raw)
		case <-p.stop:
			// Drain what was already queued so Close does not drop events
			// accepted before it.
			for {
				select {
				case raw := <-p.inbound:
					p.process(raw)
				default:
					return
				}
			}
		}
	}
}

// Close stops the dispatch loop after draining queued events.
func (p *pipeline) Close() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.stopped
}

// Push enqueues a raw event for normalization and dispatch. Events pushed
// after Close are dropped.
func (p *pipeline) Push(raw RawEvent) {
	select {
	case <-p.stop:
	case p.inbound <- raw:
	}
}

// process runs the capture, classify, transform, dispatch sequence for one
// raw event.
func (p *pipeline) process(raw RawEvent) {
	ev := p.normalize(raw)
	p.dispatch(ev)
}

func (p *pipeline) normalize(raw RawEvent) *Event {
	ev := &Event{
		Type:   payloadString(raw, "type"),
		Raw:    RawEvent(deepCopyMap(raw)),
		Fields: make(map[string]any, len(raw)),
	}
	// Presence notifications arrive without an explicit tag.
	if ev.Type == "" {
		ev.Type = EventPresence
	}
	for k, v := range raw {
		if k == "type" {
			continue
		}
		ev.Fields[k] = v
	}

	if p.raw {
		return ev
	}

	for _, rule := range p.rules {
		if rule.match(ev.Type) {
			rule.transform(p, ev)
			break
		}
	}
	// No matching rule: the event passes through with only the flat field
	// copy. Mirrors the service client this was ported from; whether that is
	// forward compatibility or an omission upstream is unverified.
	return ev
}

func (p *pipeline) dispatch(ev *Event) {
	for _, l := range p.patterns.snapshot() {
		if !l.re.MatchString(ev.Type) {
			continue
		}
		p.emitter.invoke(l.fn, ev)
		if p.onlyFirstMatch {
			break
		}
	}
	// The normalized event always also goes out under its literal type name,
	// regardless of the pattern short-circuit.
	p.emitter.emit(ev)
}

// emitError routes a background failure to the error listeners when any are
// registered, and to the log otherwise. The event carries the rendered
// message, matching the "error" field of connection failure events.
func (p *pipeline) emitError(err error) {
	if p.emitter.hasListeners(EventError) {
		p.Push(RawEvent{"type": EventError, "error": err.Error()})
		return
	}
	p.log.Errorw("unhandled background error", "error", err)
}
