package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"office-queue-backend/internal/hardware"
)

// averageWindowDays is the trailing window for the historical average
// occupation duration used in wait estimates.
const averageWindowDays = 7

// QueueEntry is one waiting reservation as shown to clients.
type QueueEntry struct {
	Position             int    `json:"position"`
	UserCode             string `json:"user_code"`
	DisplayName          string `json:"display_name"`
	EstimatedWaitMinutes int    `json:"estimated_wait_minutes"`
}

// StatusSnapshot is the externally visible projection of the occupancy
// state. It is derived, never stored; computing it has no side effects, so
// it is safe to build on every tick and on every API request.
type StatusSnapshot struct {
	State                    State                     `json:"state"`
	OccupiedBy               *string                   `json:"occupied_by,omitempty"`
	OccupationStart          *time.Time                `json:"occupation_start,omitempty"`
	OccupationMinutes        int                       `json:"occupation_minutes"`
	ReservedFor              *string                   `json:"reserved_for,omitempty"`
	ReservationDeadline      *time.Time                `json:"reservation_deadline,omitempty"`
	ReservationSecondsLeft   *int                      `json:"reservation_seconds_left,omitempty"`
	Queue                    []QueueEntry              `json:"queue"`
	QueueSize                int                       `json:"queue_size"`
	EstimatedWaitMinutes     int                       `json:"estimated_wait_minutes"`
	AverageOccupationMinutes float64                   `json:"average_occupation_minutes"`
	Sensors                  hardware.PresenceSnapshot `json:"sensors"`
	OccupancyWarning         bool                      `json:"occupancy_warning"`
	QueueActiveWarning       bool                      `json:"queue_active_warning"`
	GeneratedAt              time.Time                 `json:"generated_at"`
}

// stateView is the lock-consistent copy of the mutable fields the
// projection reads.
type stateView struct {
	state               State
	occupationStart     *time.Time
	reservedForUser     string
	reservationDeadline *time.Time
	queueWarnedAt       *time.Time
}

func (e *Engine) view() stateView {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return stateView{
		state:               e.state,
		occupationStart:     e.occupationStart,
		reservedForUser:     e.reservedForUser,
		reservationDeadline: e.reservationDeadline,
		queueWarnedAt:       e.queueWarnedAt,
	}
}

// GetStatusSnapshot builds the status projection from the current state,
// the queue contents and the latest sensor reading. Two calls with no
// intervening tick yield identical results.
func (e *Engine) GetStatusSnapshot(ctx context.Context) StatusSnapshot {
	now := e.now()
	v := e.view()
	avg := e.averageOccupation(ctx)
	base := projectionBase(v, avg, now, e.cfg.ReservationTimeoutMinutes())

	snapshot := StatusSnapshot{
		State:                    v.state,
		Queue:                    []QueueEntry{},
		AverageOccupationMinutes: avg,
		Sensors:                  e.sensors.ReadPresence(),
		GeneratedAt:              now,
	}

	if v.state == StateDirectOccupied || v.state == StateReservedOccupied {
		snapshot.OccupationStart = v.occupationStart
		if v.occupationStart != nil {
			snapshot.OccupationMinutes = int(now.Sub(*v.occupationStart).Minutes())
			limit := e.cfg.MaxOccupancyMinutes()
			snapshot.OccupancyWarning = snapshot.OccupationMinutes >= limit
		}
		if v.state == StateReservedOccupied && v.reservedForUser != "" {
			code := v.reservedForUser
			snapshot.OccupiedBy = &code
		}
	}

	if v.state == StateReservedWaiting {
		code := v.reservedForUser
		snapshot.ReservedFor = &code
		snapshot.ReservationDeadline = v.reservationDeadline
		if v.reservationDeadline != nil {
			left := int(v.reservationDeadline.Sub(now).Seconds())
			if left < 0 {
				left = 0
			}
			snapshot.ReservationSecondsLeft = &left
		}
	}

	if v.queueWarnedAt != nil && now.Sub(*v.queueWarnedAt) < queueWarningSeconds*time.Second {
		snapshot.QueueActiveWarning = true
	}

	waiting, err := e.store.ListWaiting(ctx)
	if err != nil {
		log.Printf("Failed to list queue for status: %v", err)
	}
	for i, r := range waiting {
		name, err := e.store.GetUserName(ctx, r.UserCode)
		if err != nil {
			name = r.UserCode
		}
		snapshot.Queue = append(snapshot.Queue, QueueEntry{
			Position:             i + 1,
			UserCode:             r.UserCode,
			DisplayName:          name,
			EstimatedWaitMinutes: base + i*int(avg),
		})
	}
	snapshot.QueueSize = len(waiting)
	snapshot.EstimatedWaitMinutes = base + len(waiting)*int(avg)

	return snapshot
}

// averageOccupation returns the trailing average session duration, falling
// back to the occupancy limit when no history exists.
func (e *Engine) averageOccupation(ctx context.Context) float64 {
	avg, found, err := e.store.AverageOccupationMinutes(ctx, averageWindowDays)
	if err != nil {
		log.Printf("Failed to compute average occupation: %v", err)
		found = false
	}
	if !found || avg <= 0 {
		return float64(e.cfg.MaxOccupancyMinutes())
	}
	return avg
}

// projectionBase is the expected wait before the office next frees up:
// the current occupant's remaining time, the awaited user's entry window,
// or zero when free.
func projectionBase(v stateView, avg float64, now time.Time, reservationTimeoutMinutes int) int {
	switch v.state {
	case StateDirectOccupied, StateReservedOccupied:
		if v.occupationStart == nil {
			return int(avg)
		}
		remaining := avg - now.Sub(*v.occupationStart).Minutes()
		if remaining < 0 {
			return 0
		}
		return int(remaining)
	case StateReservedWaiting:
		return reservationTimeoutMinutes
	default:
		return 0
	}
}

// estimatedWaitForPosition estimates the wait for a reservation at the
// given 1-indexed position among held (waiting or active) entries. An
// active entry's occupancy is covered by the projection base, so one held
// slot is discounted when someone is being awaited.
func (e *Engine) estimatedWaitForPosition(ctx context.Context, position int) int {
	now := e.now()
	v := e.view()
	avg := e.averageOccupation(ctx)
	base := projectionBase(v, avg, now, e.cfg.ReservationTimeoutMinutes())

	ahead := position - 1
	if v.state == StateReservedWaiting && ahead > 0 {
		ahead--
	}
	return base + ahead*int(avg)
}

// ToDisplay derives the panel rendering from a status snapshot.
func (s StatusSnapshot) ToDisplay() hardware.DisplaySnapshot {
	d := hardware.DisplaySnapshot{
		State:     string(s.State),
		QueueSize: s.QueueSize,
	}

	switch s.State {
	case StateFree:
		d.LEDPattern = hardware.PatternFree
	case StateDirectOccupied, StateReservedOccupied:
		d.LEDPattern = hardware.PatternOccupied
		if s.OccupationStart != nil {
			elapsed := s.GeneratedAt.Sub(*s.OccupationStart)
			d.OccupationTime = fmt.Sprintf("%02d:%02d", int(elapsed.Minutes()), int(elapsed.Seconds())%60)
		}
	case StateReservedWaiting:
		d.LEDPattern = hardware.PatternReserved
		if s.ReservedFor != nil {
			d.NextUser = *s.ReservedFor
		}
	}

	if len(s.Queue) > 0 && d.NextUser == "" {
		d.NextUser = s.Queue[0].UserCode
	}
	if s.OccupancyWarning {
		d.LEDPattern = hardware.PatternWarning
		d.Warning = "Time limit exceeded"
	}
	if s.QueueActiveWarning {
		d.Warning = "Queue active - use the app to book"
	}
	return d
}
