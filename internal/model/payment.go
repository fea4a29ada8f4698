package model

import "time"

// PaymentCompleted is the only status produced by the simulated payment step.
const PaymentCompleted = "completed"

// Payment is an append-only ledger entry created exactly once when a
// reservation is confirmed.  AmountCents is the ride's price per seat read
// at confirmation time.
type Payment struct {
    ID            uint64    `json:"id"`             // payments.id
    ReservationID uint64    `json:"reservation_id"` // payments.reservation_id (unique)
    AmountCents   uint32    `json:"amount_cents"`   // payments.amount_cents
    Status        string    `json:"status"`         // payments.status
    Reference     string    `json:"reference"`      // payments.reference
    PaidAt        time.Time `json:"paid_at"`        // payments.paid_at
}
