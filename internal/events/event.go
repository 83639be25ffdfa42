// Package events carries reservation lifecycle events over RabbitMQ. The
// booking path publishes them; the notification consumer turns them into email
// and SMS.
package events

import (
	"context"
	"time"

	"parkspot/internal/db"
)

type Type string

const (
	ReservationCreated     Type = "reservation.created"
	ReservationConfirmed   Type = "reservation.confirmed"
	ReservationCancelled   Type = "reservation.cancelled"
	ReservationRescheduled Type = "reservation.rescheduled"
)

type ReservationEvent struct {
	Type        Type           `json:"type"`
	OccurredAt  time.Time      `json:"occurred_at"`
	Reservation db.Reservation `json:"reservation"`
	LotName     string         `json:"lot_name"`
	LotTimezone string         `json:"lot_timezone"`
}

// NewReservationEvent stamps the event with the current time.
func NewReservationEvent(t Type, res *db.Reservation, lot *db.ParkingLot) ReservationEvent {
	ev := ReservationEvent{Type: t, OccurredAt: time.Now().UTC(), Reservation: *res}
	if lot != nil {
		ev.LotName = lot.Name
		ev.LotTimezone = lot.Timezone
	}
	return ev
}

type Publisher interface {
	Publish(ctx context.Context, ev ReservationEvent) error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ReservationEvent) error { return nil }
