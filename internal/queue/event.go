// Package queue defines the booking events exchanged over the message
// broker and the consumer that records them.
package queue

import (
	"time"

	"github.com/iliyamo/cinema-ticket-cart/internal/model"
)

// BookingQueue is the durable queue carrying BookingConfirmedEvent.
const BookingQueue = "booking.confirmed"

// BookingConfirmedEvent is published once per booking after checkout
// commits (client) or after the API stores a booking (server). It carries
// enough to log or notify without reading the bookings table.
type BookingConfirmedEvent struct {
	BookingID   string  `json:"booking_id"`
	UserID      string  `json:"user_id"`
	MovieID     string  `json:"movie_id"`
	MovieTitle  string  `json:"movie_title"`
	Date        string  `json:"date"`
	Time        string  `json:"time"`
	Quantity    int     `json:"quantity"`
	TotalPrice  float64 `json:"total_price"`
	Status      string  `json:"status"`
	ConfirmedAt string  `json:"confirmed_at"`
}

// EventFromBooking builds the event for b.
func EventFromBooking(b model.Booking) BookingConfirmedEvent {
	at := b.BookingDate
	if at.IsZero() {
		at = time.Now()
	}
	return BookingConfirmedEvent{
		BookingID:   b.BookingID,
		UserID:      b.UserID,
		MovieID:     b.MovieID,
		MovieTitle:  b.MovieTitle,
		Date:        b.Date,
		Time:        b.Time,
		Quantity:    b.Quantity,
		TotalPrice:  b.TotalPrice,
		Status:      string(b.Status),
		ConfirmedAt: at.UTC().Format(time.RFC3339),
	}
}
