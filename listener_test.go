package dubtrack

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestEmitterOnOff(t *testing.T) {
	e := newEmitter(zap.NewNop().Sugar())

	var calls int
	off := e.On("x", func(*Event) { calls++ })

	e.emit(&Event{Type: "x"})
	off()
	e.emit(&Event{Type: "x"})

	assert.Equal(t, 1, calls)
}

func TestEmitterOnce(t *testing.T) {
	e := newEmitter(zap.NewNop().Sugar())

	var calls int
	e.Once("x", func(*Event) { calls++ })

	e.emit(&Event{Type: "x"})
	e.emit(&Event{Type: "x"})

	assert.Equal(t, 1, calls)
}

func TestEmitterRegistrationOrder(t *testing.T) {
	e := newEmitter(zap.NewNop().Sugar())

	var order []int
	e.On("x", func(*Event) { order = append(order, 1) })
	e.On("x", func(*Event) { order = append(order, 2) })
	e.On("x", func(*Event) { order = append(order, 3) })

	e.emit(&Event{Type: "x"})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEmitterPanicIsolation(t *testing.T) {
	e := newEmitter(zap.NewNop().Sugar())

	var survived bool
	e.On("x", func(*Event) { panic("listener bug") })
	e.On("x", func(*Event) { survived = true })

	e.emit(&Event{Type: "x"})
	assert.True(t, survived, "a panicking listener must not starve the rest of the pass")
}

func TestEmitterMutationDuringDispatch(t *testing.T) {
	e := newEmitter(zap.NewNop().Sugar())

	var calls int
	var off func()
	off = e.On("x", func(*Event) {
		calls++
		// Removing ourselves mid-pass must not corrupt the iteration.
		off()
		e.On("x", func(*Event) { calls += 10 })
	})

	e.emit(&Event{Type: "x"})
	assert.Equal(t, 1, calls)

	e.emit(&Event{Type: "x"})
	assert.Equal(t, 11, calls)
}

func TestPatternListRemoveByEquivalentObject(t *testing.T) {
	p := newPatternList()

	var calls int
	p.add(regexp.MustCompile(`^user-`), func(*Event) { calls++ })

	// A distinct pattern object with the same source removes the
	// registration.
	p.remove(regexp.MustCompile(`^user-`))
	assert.Empty(t, p.snapshot())
}

func TestPatternListRemoveUnknownIsNoop(t *testing.T) {
	p := newPatternList()
	p.add(regexp.MustCompile(`^user-`), func(*Event) {})

	p.remove(regexp.MustCompile(`^room-`))
	assert.Len(t, p.snapshot(), 1)
}

func TestPatternListDedupeKeepsPosition(t *testing.T) {
	p := newPatternList()

	var hits []string
	p.add(regexp.MustCompile(`a`), func(*Event) { hits = append(hits, "a-old") })
	p.add(regexp.MustCompile(`b`), func(*Event) { hits = append(hits, "b") })
	// Re-adding an equal pattern replaces the callback in place.
	p.add(regexp.MustCompile(`a`), func(*Event) { hits = append(hits, "a-new") })

	snapshot := p.snapshot()
	assert.Len(t, snapshot, 2)
	assert.Equal(t, "a", snapshot[0].re.String())

	for _, l := range snapshot {
		l.fn(&Event{})
	}
	assert.Equal(t, []string{"a-new", "b"}, hits)
}

func TestPatternListFlagsDistinguishPatterns(t *testing.T) {
	p := newPatternList()
	p.add(regexp.MustCompile(`(?i)chat`), func(*Event) {})

	// Same text, different flags: not equal, so nothing is removed.
	p.remove(regexp.MustCompile(`chat`))
	assert.Len(t, p.snapshot(), 1)
}
