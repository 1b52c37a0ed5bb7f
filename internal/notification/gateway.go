package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"gorm.io/gorm"

	"office-queue-backend/internal/model"
)

// Kind identifies a notification template.
type Kind string

const (
	KindReservationConfirmed Kind = "reservation_confirmed"
	KindYourTurn             Kind = "your_turn"
	KindNoShow               Kind = "no_show"
	KindQueueCleared         Kind = "queue_cleared"
	KindSystemReset          Kind = "system_reset"
	KindTimeoutWarning       Kind = "timeout_warning"
)

// Params carries template values for a notification.
type Params map[string]any

// job is one queued dispatch. An empty UserCode broadcasts to every
// registered subscription.
type job struct {
	Kind     Kind
	UserCode string
	Params   Params
}

// Sender sends a single web push message. Split out so tests can stub the
// network.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Gateway dispatches notifications through a pool of workers. Dispatch is
// fire-and-forget: a full queue drops the message with a log line, and no
// failure ever propagates back into the engine's tick.
type Gateway struct {
	enabled bool
	size    int
	jobs    chan job
	db      *gorm.DB
	webpush *webpush.Options
	sender  Sender
}

// NewGateway creates a notification gateway with the given worker count.
func NewGateway(enabled bool, size int, db *gorm.DB, webpushOptions *webpush.Options) *Gateway {
	return &Gateway{
		enabled: enabled,
		size:    size,
		jobs:    make(chan job, size*4),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// SetSender replaces the transport. For tests.
func (g *Gateway) SetSender(s Sender) { g.sender = s }

// Start launches the worker goroutines.
func (g *Gateway) Start(ctx context.Context) {
	if !g.enabled {
		log.Println("Notifications disabled, gateway not started")
		return
	}
	for i := 0; i < g.size; i++ {
		go g.worker(ctx, i)
	}
}

// Notify queues a notification. Never blocks.
func (g *Gateway) Notify(kind Kind, userCode string, params Params) {
	if !g.enabled {
		return
	}
	select {
	case g.jobs <- job{Kind: kind, UserCode: userCode, Params: params}:
	default:
		log.Printf("Notification queue full, dropping %s for %q", kind, userCode)
	}
}

func (g *Gateway) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case j := <-g.jobs:
			g.deliver(ctx, j)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// render produces the message body for a kind.
func render(kind Kind, params Params) string {
	get := func(key string) any {
		if params == nil {
			return "?"
		}
		if v, ok := params[key]; ok {
			return v
		}
		return "?"
	}
	switch kind {
	case KindReservationConfirmed:
		return fmt.Sprintf("Reservation confirmed. Queue position: %v. Estimated wait: %v min", get("position"), get("wait_minutes"))
	case KindYourTurn:
		return fmt.Sprintf("It's your turn! You have %v min to enter the office", get("timeout_minutes"))
	case KindNoShow:
		return "Reservation expired: you did not show up within the time limit"
	case KindQueueCleared:
		return "The queue was cleared by an administrator"
	case KindSystemReset:
		return "System reset: all reservations were cancelled"
	case KindTimeoutWarning:
		return "Occupancy time limit exceeded, please free the office"
	default:
		return string(kind)
	}
}

// deliver fans a job out to the matching subscriptions.
func (g *Gateway) deliver(ctx context.Context, j job) {
	query := g.db.WithContext(ctx)
	if j.UserCode != "" {
		query = query.Where("user_code = ?", j.UserCode)
	}

	var subscriptions []model.PushSubscription
	if err := query.Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching subscriptions for %q: %v", j.UserCode, err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload := []byte(render(j.Kind, j.Params))
	for _, sub := range subscriptions {
		g.send(ctx, sub, payload)
	}
}

// send pushes one message and prunes the subscription if the push service
// reports it gone.
func (g *Gateway) send(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := g.sender.Send(payload, wpSub, g.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription %s is expired. Deleting.", sub.Endpoint)
		if err := g.db.WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
