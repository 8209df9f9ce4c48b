package repository

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/iliyamo/cinema-ticket-cart/internal/model"
)

// BookingRepo stores bookings in the bookings table. Every read and write
// is scoped to the owning user.
type BookingRepo struct {
	db *sql.DB
}

func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// BookingRecord mirrors a row of the bookings table.
type BookingRecord struct {
	ID             uint64
	BookingID      string
	UserID         uint64
	MovieID        string
	MovieTitle     string
	MoviePoster    string
	ShowDate       string
	ShowTime       string
	Quantity       int
	PricePerTicket float64
	TotalPrice     float64
	TicketID       string
	Status         string
	CreatedAt      time.Time
}

// Booking converts the row into the shared booking shape.
func (r BookingRecord) Booking() model.Booking {
	return model.Booking{
		CartItem: model.CartItem{
			MovieID:        r.MovieID,
			MovieTitle:     r.MovieTitle,
			MoviePoster:    r.MoviePoster,
			Date:           r.ShowDate,
			Time:           r.ShowTime,
			Quantity:       r.Quantity,
			PricePerTicket: r.PricePerTicket,
			TotalPrice:     r.TotalPrice,
			TicketID:       r.TicketID,
		},
		UserID:      strconv.FormatUint(r.UserID, 10),
		BookingID:   r.BookingID,
		BookingDate: r.CreatedAt.UTC(),
		Status:      model.Status(r.Status),
	}
}

const bookingColumns = `id, booking_id, user_id, movie_id, movie_title, movie_poster, show_date, show_time,
	quantity, price_per_ticket, total_price, ticket_id, status, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(s scanner) (BookingRecord, error) {
	var b BookingRecord
	err := s.Scan(&b.ID, &b.BookingID, &b.UserID, &b.MovieID, &b.MovieTitle, &b.MoviePoster,
		&b.ShowDate, &b.ShowTime, &b.Quantity, &b.PricePerTicket, &b.TotalPrice, &b.TicketID,
		&b.Status, &b.CreatedAt)
	return b, err
}

// Create inserts rec and fills its generated id. A taken booking id
// returns ErrBookingExists.
func (r *BookingRepo) Create(ctx context.Context, rec *BookingRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO bookings (booking_id, user_id, movie_id, movie_title, movie_poster, show_date, show_time,
			quantity, price_per_ticket, total_price, ticket_id, status, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		rec.BookingID, rec.UserID, rec.MovieID, rec.MovieTitle, rec.MoviePoster, rec.ShowDate, rec.ShowTime,
		rec.Quantity, rec.PricePerTicket, rec.TotalPrice, rec.TicketID, rec.Status, rec.CreatedAt)
	if err != nil {
		if isDuplicate(err) {
			return ErrBookingExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	return nil
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]BookingRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE user_id=? ORDER BY created_at DESC, id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []BookingRecord{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetForUser returns one booking owned by userID or ErrBookingNotFound.
func (r *BookingRepo) GetForUser(ctx context.Context, userID uint64, bookingID string) (BookingRecord, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE booking_id=? AND user_id=? LIMIT 1", bookingID, userID))
	if err == sql.ErrNoRows {
		return BookingRecord{}, ErrBookingNotFound
	}
	return b, err
}

// CancelForUser flips a confirmed booking to cancelled and returns the
// row. Any other status, cancelled included, is returned unchanged.
func (r *BookingRepo) CancelForUser(ctx context.Context, userID uint64, bookingID string) (BookingRecord, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return BookingRecord{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := scanBooking(tx.QueryRowContext(ctx,
		"SELECT "+bookingColumns+" FROM bookings WHERE booking_id=? AND user_id=? FOR UPDATE", bookingID, userID))
	if err == sql.ErrNoRows {
		return BookingRecord{}, ErrBookingNotFound
	}
	if err != nil {
		return BookingRecord{}, err
	}
	if b.Status == string(model.StatusConfirmed) {
		if _, err := tx.ExecContext(ctx, "UPDATE bookings SET status=? WHERE id=?", string(model.StatusCancelled), b.ID); err != nil {
			return BookingRecord{}, err
		}
		b.Status = string(model.StatusCancelled)
	}
	if err := tx.Commit(); err != nil {
		return BookingRecord{}, err
	}
	committed = true
	return b, nil
}
