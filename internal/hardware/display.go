package hardware

import (
	"log"
	"sync"
)

// LED patterns derived from the occupancy state.
const (
	PatternFree     = "free"     // green steady
	PatternOccupied = "occupied" // red steady
	PatternReserved = "reserved" // red/green alternating
	PatternWarning  = "warning"  // red blinking
)

// DisplaySnapshot is what the panel shows. Render with the same snapshot
// is a no-op, so calling it every tick is safe.
type DisplaySnapshot struct {
	State          string
	QueueSize      int
	OccupationTime string // "MM:SS" elapsed, empty when free
	NextUser       string
	LEDPattern     string
	Warning        string // transient message line, e.g. queue-active warning
}

// Display renders the panel. Failures are logged and swallowed by
// implementations; the tick never blocks on the display.
type Display interface {
	Render(snapshot DisplaySnapshot)
}

// LogDisplay is the simulation-mode panel: it logs state changes instead
// of driving an OLED and LEDs. Repeated identical snapshots are elided to
// keep the 1-second render loop quiet.
type LogDisplay struct {
	mu   sync.Mutex
	last DisplaySnapshot
	seen bool
}

func NewLogDisplay() *LogDisplay { return &LogDisplay{} }

func (d *LogDisplay) Render(snapshot DisplaySnapshot) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen && snapshot == d.last {
		return
	}
	d.last = snapshot
	d.seen = true
	log.Printf("display: state=%s queue=%d elapsed=%s next=%s led=%s warning=%q",
		snapshot.State, snapshot.QueueSize, snapshot.OccupationTime,
		snapshot.NextUser, snapshot.LEDPattern, snapshot.Warning)
}
