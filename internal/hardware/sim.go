package hardware

import "sync"

// Simulated sensors back the aggregator when no GPIO hardware is present
// (development machines, CI). Test hooks inject readings directly.

// SimMotionSensor is a settable PIR stand-in.
type SimMotionSensor struct {
	mu       sync.Mutex
	movement bool
}

func NewSimMotionSensor() *SimMotionSensor { return &SimMotionSensor{} }

// SetMovement injects a movement reading.
func (s *SimMotionSensor) SetMovement(moving bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.movement = moving
}

func (s *SimMotionSensor) Movement() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.movement, nil
}

// SimDistanceSensor is a settable ultrasonic stand-in.
type SimDistanceSensor struct {
	mu       sync.Mutex
	distance float64
}

func NewSimDistanceSensor() *SimDistanceSensor {
	return &SimDistanceSensor{distance: MaxDistanceCM}
}

// SetDistance injects a range reading in centimeters.
func (s *SimDistanceSensor) SetDistance(cm float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distance = cm
}

func (s *SimDistanceSensor) DistanceCM() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.distance, nil
}
