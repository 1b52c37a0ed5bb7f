package hardware

import "sync"

// ButtonSource delivers edge-triggered button presses: ConsumePress
// returns true once per press and then clears the latch.
type ButtonSource interface {
	ConsumePress() bool
}

// Button latches presses from a GPIO interrupt handler or a simulation
// endpoint until the engine consumes them on its next tick.
type Button struct {
	mu      sync.Mutex
	pressed bool
}

func NewButton() *Button { return &Button{} }

// Press latches a press. Safe to call from any goroutine.
func (b *Button) Press() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pressed = true
}

// ConsumePress reports and clears a latched press.
func (b *Button) ConsumePress() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	pressed := b.pressed
	b.pressed = false
	return pressed
}
