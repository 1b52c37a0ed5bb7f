// Package engine owns the occupancy state machine: it turns sensor
// readings, button presses and timers into access decisions, reservation
// activations and no-show evictions. All occupancy state lives here and is
// mutated only under the engine's lock, driven by the periodic scheduler;
// the booking path enqueues and requests an expedited tick but never
// touches occupancy state itself.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"office-queue-backend/internal/dyncfg"
	"office-queue-backend/internal/hardware"
	"office-queue-backend/internal/model"
	"office-queue-backend/internal/notification"
	"office-queue-backend/internal/store"
)

// State is the occupancy state of the office.
type State string

const (
	StateFree             State = "FREE"
	StateDirectOccupied   State = "DIRECT_OCCUPIED"
	StateReservedOccupied State = "RESERVED_OCCUPIED"
	StateReservedWaiting  State = "RESERVED_WAITING"
)

// occupancyGraceMinutes is how long past the occupancy limit the warning
// escalates from a panel indication to a logged warning and notification.
const occupancyGraceMinutes = 5

// queueWarningSeconds is how long the "queue active" refusal message stays
// on the panel after a direct press loses to the queue.
const queueWarningSeconds = 3

// SensorReader yields the latest fused presence snapshot without blocking.
type SensorReader interface {
	ReadPresence() hardware.PresenceSnapshot
}

// Notifier dispatches a fire-and-forget notification.
type Notifier interface {
	Notify(kind notification.Kind, userCode string, params notification.Params)
}

// Engine is the occupancy state machine.
type Engine struct {
	store    store.Store
	cfg      *dyncfg.Provider
	sensors  SensorReader
	button   hardware.ButtonSource
	notifier Notifier

	mu                  sync.RWMutex
	state               State
	occupationStart     *time.Time
	reservedForUser     string
	activeReservationID int64
	reservationDeadline *time.Time
	sessionID           int64
	queueWarnedAt       *time.Time
	warningEscalated    bool

	kick chan struct{}
	now  func() time.Time
}

// New creates an engine in the FREE state.
func New(s store.Store, cfg *dyncfg.Provider, sensors SensorReader, button hardware.ButtonSource, notifier Notifier) *Engine {
	return &Engine{
		store:    s,
		cfg:      cfg,
		sensors:  sensors,
		button:   button,
		notifier: notifier,
		state:    StateFree,
		kick:     make(chan struct{}, 1),
		now:      time.Now,
	}
}

// Recover closes occupancy sessions left open by an unclean shutdown and
// records a recovery event. Called once before the scheduler starts.
func (e *Engine) Recover(ctx context.Context) error {
	closed, err := e.store.CloseDanglingSessions(ctx, e.now())
	if err != nil {
		return fmt.Errorf("session recovery failed: %w", err)
	}
	if closed > 0 {
		log.Printf("Recovered %d dangling occupancy session(s)", closed)
		e.logEvent(ctx, model.EventSystemRecovery, nil, nil, nil,
			fmt.Sprintf("closed %d dangling session(s)", closed))
	}
	return nil
}

// Kick requests an expedited tick. Non-blocking; a pending kick coalesces.
func (e *Engine) Kick() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Kicked is the channel the scheduler selects on for expedited ticks.
func (e *Engine) Kicked() <-chan struct{} {
	return e.kick
}

// Tick runs one evaluation cycle: state transitions first, then timeout
// checks. A panic is recovered and reported as an error so the scheduler
// can treat the tick as a no-op and keep ticking.
func (e *Engine) Tick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panicked: %v", r)
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	presence := e.sensors.ReadPresence().PresenceDetected
	// Consume the press in every state so one latched while occupied does
	// not grant access after the office later frees up.
	pressed := e.button.ConsumePress()

	switch e.state {
	case StateFree:
		if pressed {
			e.handleDirectAccess(ctx, now)
		} else if !presence {
			e.activateNext(ctx, now)
		}

	case StateDirectOccupied, StateReservedOccupied:
		if !presence {
			e.handleVacated(ctx, now)
		}

	case StateReservedWaiting:
		if presence {
			e.handleReservedEntry(ctx, now)
		}
	}

	e.checkTimeouts(ctx, now)
	return nil
}

// handleDirectAccess resolves a button press while FREE. The queue wins
// only when it is non-empty and conflict priority favors reservations.
func (e *Engine) handleDirectAccess(ctx context.Context, now time.Time) {
	front, err := e.store.PeekFront(ctx)
	if err != nil {
		log.Printf("Queue peek failed during direct access, granting entry: %v", err)
	}
	queueEmpty := front == nil

	if !queueEmpty && e.cfg.ConflictPriority() == dyncfg.PriorityReservation {
		t := now
		e.queueWarnedAt = &t
		log.Println("Direct access refused: queue active and reservations have priority")
		return
	}

	from := e.state
	e.state = StateDirectOccupied
	e.occupationStart = &now
	e.reservedForUser = ""
	e.activeReservationID = 0
	e.queueWarnedAt = nil
	e.openSession(ctx, now, model.AccessDirect, nil)
	e.logTransition(ctx, model.EventUserEntered, nil, from, e.state, "direct access via button")
	log.Println("Direct access granted")
}

// handleVacated closes the session when presence is lost and immediately
// re-evaluates queue activation so the next person is called in the same
// tick.
func (e *Engine) handleVacated(ctx context.Context, now time.Time) {
	from := e.state
	var userCode *string
	if e.reservedForUser != "" {
		code := e.reservedForUser
		userCode = &code
	}

	duration := 0
	if e.occupationStart != nil {
		duration = int(now.Sub(*e.occupationStart).Minutes())
	}
	e.closeSession(ctx, now, duration)

	e.state = StateFree
	e.occupationStart = nil
	e.reservedForUser = ""
	e.activeReservationID = 0
	e.warningEscalated = false

	e.logTransitionDuration(ctx, model.EventUserLeft, userCode, from, StateFree, duration,
		fmt.Sprintf("occupied for %d minutes", duration))
	log.Printf("Office vacated after %d minutes", duration)

	e.activateNext(ctx, now)
}

// handleReservedEntry confirms the awaited user arrived.
func (e *Engine) handleReservedEntry(ctx context.Context, now time.Time) {
	from := e.state
	e.state = StateReservedOccupied
	e.occupationStart = &now
	e.reservationDeadline = nil

	if e.activeReservationID != 0 {
		if err := e.store.MarkCompleted(ctx, e.activeReservationID, now); err != nil {
			log.Printf("Failed to mark reservation %d completed: %v", e.activeReservationID, err)
		}
	}
	code := e.reservedForUser
	e.openSession(ctx, now, model.AccessReservation, &code)
	e.logTransition(ctx, model.EventUserEntered, &code, from, e.state,
		fmt.Sprintf("user %s entered the office", code))
	log.Printf("User %s entered office", code)
}

// activateNext pops the front of the queue into RESERVED_WAITING. At most
// one activation happens per tick: every caller runs at most once within a
// single Tick.
func (e *Engine) activateNext(ctx context.Context, now time.Time) {
	front, err := e.store.PeekFront(ctx)
	if err != nil {
		log.Printf("Queue peek failed, retrying next tick: %v", err)
		return
	}
	if front == nil {
		return
	}

	if err := e.store.MarkActive(ctx, front.ID, now); err != nil {
		// Leave state untouched; the next tick re-activates the same entry.
		log.Printf("Failed to activate reservation %d, retrying next tick: %v", front.ID, err)
		return
	}

	timeoutMinutes := e.cfg.ReservationTimeoutMinutes()
	deadline := now.Add(time.Duration(timeoutMinutes) * time.Minute)

	from := e.state
	e.state = StateReservedWaiting
	e.reservedForUser = front.UserCode
	e.activeReservationID = front.ID
	e.reservationDeadline = &deadline

	e.notifier.Notify(notification.KindYourTurn, front.UserCode,
		notification.Params{"timeout_minutes": timeoutMinutes})
	e.logTransition(ctx, model.EventReservationActivated, &front.UserCode, from, e.state,
		fmt.Sprintf("reservation %d activated, %d minutes to enter", front.ID, timeoutMinutes))
	log.Printf("Activated reservation for %s", front.UserCode)
}

// checkTimeouts evaluates the reservation deadline and the occupancy
// limit. Pure time comparisons against stored deadlines, so a missed tick
// self-corrects on the next one.
func (e *Engine) checkTimeouts(ctx context.Context, now time.Time) {
	if e.state == StateReservedWaiting && e.reservationDeadline != nil && now.After(*e.reservationDeadline) {
		e.handleNoShow(ctx, now)
	}

	if (e.state == StateDirectOccupied || e.state == StateReservedOccupied) && e.occupationStart != nil {
		elapsed := now.Sub(*e.occupationStart)
		limit := time.Duration(e.cfg.MaxOccupancyMinutes()) * time.Minute
		if elapsed > limit+occupancyGraceMinutes*time.Minute && !e.warningEscalated {
			e.warningEscalated = true
			e.notifier.Notify(notification.KindTimeoutWarning, e.reservedForUser, nil)
			log.Printf("Office occupied for %.1f minutes - extended use", elapsed.Minutes())
		}
	}
}

// handleNoShow evicts an expired reservation and immediately re-evaluates
// queue activation.
func (e *Engine) handleNoShow(ctx context.Context, now time.Time) {
	code := e.reservedForUser
	log.Printf("Reservation timeout for %s", code)

	if err := e.store.MarkNoShow(ctx, code); err != nil {
		// The deadline is authoritative: evict anyway and log the failure.
		log.Printf("Failed to mark no-show for %s: %v", code, err)
	}
	e.notifier.Notify(notification.KindNoShow, code, nil)

	from := e.state
	e.state = StateFree
	e.reservedForUser = ""
	e.activeReservationID = 0
	e.reservationDeadline = nil

	e.logTransition(ctx, model.EventReservationExpired, &code, from, StateFree,
		fmt.Sprintf("user %s did not show up", code))

	e.activateNext(ctx, now)
}

// BookingResult is returned to a successful booking request.
type BookingResult struct {
	ReservationID        int64 `json:"reservation_id"`
	Position             int   `json:"position"`
	EstimatedWaitMinutes int   `json:"estimated_wait_minutes"`
}

// RequestBooking enqueues a reservation for the user. It never mutates
// occupancy state; when the office is free and this booking is first in
// line it requests an expedited tick so activation happens promptly.
// Returns store.ErrUnknownUser, store.ErrDuplicateActiveReservation or
// store.ErrQueueFull as typed values.
func (e *Engine) RequestBooking(ctx context.Context, userCode string) (*BookingResult, error) {
	reservation, position, err := e.store.Enqueue(ctx, userCode, e.cfg.MaxQueueSize())
	if err != nil {
		return nil, err
	}

	estimated := e.estimatedWaitForPosition(ctx, position)
	e.notifier.Notify(notification.KindReservationConfirmed, userCode,
		notification.Params{"position": position, "wait_minutes": estimated})
	e.logEvent(ctx, model.EventReservationCreated, &userCode, nil, nil,
		fmt.Sprintf("reservation %d, position %d", reservation.ID, position))
	log.Printf("Reservation booked for %s, position %d", userCode, position)

	e.mu.RLock()
	free := e.state == StateFree
	e.mu.RUnlock()
	if free && position == 1 {
		e.Kick()
	}

	return &BookingResult{
		ReservationID:        reservation.ID,
		Position:             position,
		EstimatedWaitMinutes: estimated,
	}, nil
}

// ForceReset clears the queue and forces the office back to FREE.
func (e *Engine) ForceReset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	from := e.state

	if e.reservedForUser != "" {
		if err := e.store.MarkNoShow(ctx, e.reservedForUser); err != nil {
			log.Printf("Failed to resolve active reservation during reset: %v", err)
		}
	}
	cleared, err := e.store.ClearQueue(ctx)
	if err != nil {
		return err
	}
	if e.sessionID != 0 && e.occupationStart != nil {
		e.closeSession(ctx, now, int(now.Sub(*e.occupationStart).Minutes()))
	}

	e.resetStateLocked()
	e.notifier.Notify(notification.KindSystemReset, "", nil)
	e.logTransition(ctx, model.EventSystemReset, nil, from, StateFree,
		fmt.Sprintf("system reset by admin, %d reservation(s) dropped", cleared))
	log.Println("System reset by admin")
	return nil
}

// ForceUnlock forces the office back to FREE without touching waiting
// reservations. An awaited user's active reservation is resolved as a
// no-show so it stops holding a queue slot.
func (e *Engine) ForceUnlock(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	from := e.state

	if e.state == StateReservedWaiting && e.reservedForUser != "" {
		if err := e.store.MarkNoShow(ctx, e.reservedForUser); err != nil {
			log.Printf("Failed to resolve active reservation during unlock: %v", err)
		}
	}
	if e.sessionID != 0 && e.occupationStart != nil {
		e.closeSession(ctx, now, int(now.Sub(*e.occupationStart).Minutes()))
	}

	e.resetStateLocked()
	e.logTransition(ctx, model.EventForceUnlock, nil, from, StateFree, "office force unlocked by admin")
	log.Println("Office force unlocked by admin")
	return nil
}

// ClearQueue drops all waiting reservations without changing occupancy.
func (e *Engine) ClearQueue(ctx context.Context) (int64, error) {
	cleared, err := e.store.ClearQueue(ctx)
	if err != nil {
		return 0, err
	}
	e.notifier.Notify(notification.KindQueueCleared, "", nil)
	e.logEvent(ctx, model.EventQueueCleared, nil, nil, nil,
		fmt.Sprintf("%d reservation(s) dropped", cleared))
	log.Printf("Queue cleared by admin (%d reservations)", cleared)
	return cleared, nil
}

func (e *Engine) resetStateLocked() {
	e.state = StateFree
	e.occupationStart = nil
	e.reservedForUser = ""
	e.activeReservationID = 0
	e.reservationDeadline = nil
	e.sessionID = 0
	e.queueWarnedAt = nil
	e.warningEscalated = false
}

// openSession records the start of an occupancy session, best-effort.
func (e *Engine) openSession(ctx context.Context, start time.Time, accessType string, userCode *string) {
	id, err := e.store.OpenSession(ctx, start, accessType, userCode)
	if err != nil {
		log.Printf("Failed to open occupancy session: %v", err)
		e.sessionID = 0
		return
	}
	e.sessionID = id
}

// closeSession finalizes the current session, best-effort.
func (e *Engine) closeSession(ctx context.Context, end time.Time, durationMinutes int) {
	if e.sessionID == 0 {
		return
	}
	if err := e.store.CloseSession(ctx, e.sessionID, end, durationMinutes); err != nil {
		log.Printf("Failed to close occupancy session %d: %v", e.sessionID, err)
	}
	e.sessionID = 0
}

// logEvent appends to the audit log, best-effort: a persistence failure
// never blocks the state transition that produced the event.
func (e *Engine) logEvent(ctx context.Context, eventType string, userCode *string, from, to *State, details string) {
	ev := &model.SystemEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		UserCode:  userCode,
		Details:   details,
	}
	if from != nil {
		s := string(*from)
		ev.StateFrom = &s
	}
	if to != nil {
		s := string(*to)
		ev.StateTo = &s
	}
	if err := e.store.RecordEvent(ctx, ev); err != nil {
		log.Printf("Failed to record event %s: %v", eventType, err)
	}
}

func (e *Engine) logTransition(ctx context.Context, eventType string, userCode *string, from, to State, details string) {
	e.logEvent(ctx, eventType, userCode, &from, &to, details)
}

func (e *Engine) logTransitionDuration(ctx context.Context, eventType string, userCode *string, from, to State, durationMinutes int, details string) {
	ev := &model.SystemEvent{
		Timestamp:       e.now().UTC(),
		EventType:       eventType,
		UserCode:        userCode,
		DurationMinutes: &durationMinutes,
		Details:         details,
	}
	f, t := string(from), string(to)
	ev.StateFrom = &f
	ev.StateTo = &t
	if err := e.store.RecordEvent(ctx, ev); err != nil {
		log.Printf("Failed to record event %s: %v", eventType, err)
	}
}
