package notification

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// mockSender is a mock implementation of the Sender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGatewayNotifyQueues(t *testing.T) {
	db, _ := newTestDB(t)
	g := NewGateway(true, 1, db, &webpush.Options{})

	g.Notify(KindYourTurn, "07", Params{"timeout_minutes": 3})

	select {
	case j := <-g.jobs:
		assert.Equal(t, KindYourTurn, j.Kind)
		assert.Equal(t, "07", j.UserCode)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for job")
	}
}

func TestGatewayDisabledDropsJobs(t *testing.T) {
	db, _ := newTestDB(t)
	g := NewGateway(false, 1, db, &webpush.Options{})

	g.Notify(KindYourTurn, "07", nil)
	assert.Empty(t, g.jobs)
}

func TestGatewayWorkerDelivery(t *testing.T) {
	gormDB, mock := newTestDB(t)
	g := NewGateway(true, 1, gormDB, &webpush.Options{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	t.Run("sends notification to the user's subscriptions", func(t *testing.T) {
		var wg sync.WaitGroup
		wg.Add(1)

		g.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				assert.Equal(t, "https://example.com/push", sub.Endpoint)
				assert.Equal(t, "It's your turn! You have 3 min to enter the office", string(payload))
				wg.Done()
				return &http.Response{
					StatusCode: http.StatusCreated,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT .* FROM "push_subscriptions" WHERE user_code = \$1`).
			WithArgs("07").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_code", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/push", "07", "test_p256dh", "test_auth", time.Now()))

		g.Notify(KindYourTurn, "07", Params{"timeout_minutes": 3})
		wg.Wait()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deletes expired subscription", func(t *testing.T) {
		g.sender = &mockSender{
			SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusGone,
					Body:       io.NopCloser(bytes.NewBufferString("")),
				}, nil
			},
		}

		mock.ExpectQuery(`SELECT .* FROM "push_subscriptions" WHERE user_code = \$1`).
			WithArgs("08").
			WillReturnRows(sqlmock.NewRows([]string{"endpoint", "user_code", "p256dh", "auth", "created_at"}).
				AddRow("https://example.com/expired", "08", "p", "a", time.Now()))

		mock.ExpectBegin()
		mock.ExpectExec(`DELETE FROM "push_subscriptions" WHERE .*endpoint.* = \$1`).
			WithArgs("https://example.com/expired").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		g.Notify(KindNoShow, "08", nil)

		// The delete happens after the send returns; poll until the
		// expectation is met.
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if mock.ExpectationsWereMet() == nil {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRender(t *testing.T) {
	assert.Equal(t,
		"Reservation confirmed. Queue position: 2. Estimated wait: 15 min",
		render(KindReservationConfirmed, Params{"position": 2, "wait_minutes": 15}))
	assert.Equal(t,
		"Reservation expired: you did not show up within the time limit",
		render(KindNoShow, nil))
	assert.Equal(t,
		"It's your turn! You have ? min to enter the office",
		render(KindYourTurn, nil))
}
