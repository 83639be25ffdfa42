package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"parkspot/internal/db"
)

func (r *ReservationRepository) UpdatePayment(ctx context.Context, id, paymentIntentID, paymentStatus string) error {
	query := `
		UPDATE reservations
		SET
			payment_intent_id = $2,
			payment_status = $3,
			updated_at = $4
		WHERE id = $1`

	result, err := conn(ctx, r.DB).ExecContext(ctx, query, id, paymentIntentID, paymentStatus, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("error updating payment info of reservation %s: %w", id, err)
	}
	return expectOneRow(result, "reservation "+id)
}

func (r *ReservationRepository) GetReservationByPaymentIntent(ctx context.Context, paymentIntentID string) (*db.Reservation, error) {
	row := conn(ctx, r.DB).QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE payment_intent_id = $1`, paymentIntentID)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("reservation for payment intent %s: %w", paymentIntentID, ErrNotFound)
		}
		return nil, fmt.Errorf("error querying reservation by payment intent: %w", err)
	}
	return res, nil
}
