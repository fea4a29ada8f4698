package repository

import (
	"context"

	"github.com/iliyamo/carpool-reservation/internal/model"
)

// PaymentRepo writes and reads the append-only payment ledger.  There is no
// update or delete.
type PaymentRepo struct {
	db Querier
}

func NewPaymentRepo(db Querier) *PaymentRepo { return &PaymentRepo{db: db} }

// Create inserts a payment.  The unique key on reservation_id turns a second
// payment for the same reservation into ErrDuplicate.
func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (reservation_id, amount_cents, status, reference) VALUES (?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, p.ReservationID, p.AmountCents, p.Status, p.Reference)
	if err != nil {
		return classify(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	fresh, err := r.GetByReservation(ctx, p.ReservationID)
	if err != nil {
		return err
	}
	fresh.ID = uint64(id)
	*p = *fresh
	return nil
}

// GetByReservation returns the payment settling a reservation.
func (r *PaymentRepo) GetByReservation(ctx context.Context, reservationID uint64) (*model.Payment, error) {
	var p model.Payment
	err := r.db.QueryRowContext(ctx,
		`SELECT id, reservation_id, amount_cents, status, reference, paid_at FROM payments WHERE reservation_id = ?`,
		reservationID).Scan(&p.ID, &p.ReservationID, &p.AmountCents, &p.Status, &p.Reference, &p.PaidAt)
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}
