package model

import "time"

// Status is the lifecycle state of a booking. The only transition is
// confirmed -> cancelled.
type Status string

const (
	StatusPending   Status = "pending" // server-side reserved value, never produced by checkout
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Booking is a finalized cart line owned by a user. Apart from Status it
// is immutable once created.
type Booking struct {
	CartItem
	UserID      string    `json:"userId"`
	BookingID   string    `json:"bookingId"`
	BookingDate time.Time `json:"bookingDate"`
	Status      Status    `json:"status"`
}

// Cancel flips a confirmed booking to cancelled. Any other status,
// including pending and unknown legacy values, is left as it is and
// Cancel reports false.
func (b *Booking) Cancel() bool {
	if b.Status != StatusConfirmed {
		return false
	}
	b.Status = StatusCancelled
	return true
}

// Cancelled reports whether the booking has been cancelled.
func (b Booking) Cancelled() bool { return b.Status == StatusCancelled }
