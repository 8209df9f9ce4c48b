package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/iliyamo/cinema-ticket-cart/internal/model"
	"github.com/iliyamo/cinema-ticket-cart/internal/session"
)

// TokenSource yields the bearer token for booking calls.
type TokenSource interface {
	Token(ctx context.Context) (string, bool)
}

// Bookings implements booking.Remote against /v1/bookings.
type Bookings struct {
	c      *Client
	tokens TokenSource
}

func NewBookings(c *Client, tokens TokenSource) *Bookings {
	return &Bookings{c: c, tokens: tokens}
}

func (b *Bookings) token(ctx context.Context) (string, error) {
	tok, ok := b.tokens.Token(ctx)
	if !ok {
		return "", session.ErrNotAuthenticated
	}
	return tok, nil
}

type bookingEnvelope struct {
	Booking model.Booking `json:"booking"`
}

func (b *Bookings) CreateBooking(ctx context.Context, bk model.Booking) (model.Booking, error) {
	tok, err := b.token(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	var res bookingEnvelope
	if err := b.c.do(ctx, http.MethodPost, "/v1/bookings", tok, bk, &res); err != nil {
		return model.Booking{}, err
	}
	return res.Booking, nil
}

func (b *Bookings) ListUserBookings(ctx context.Context) ([]model.Booking, error) {
	tok, err := b.token(ctx)
	if err != nil {
		return nil, err
	}
	var res struct {
		Bookings []model.Booking `json:"bookings"`
	}
	if err := b.c.do(ctx, http.MethodGet, "/v1/bookings", tok, nil, &res); err != nil {
		return nil, err
	}
	return res.Bookings, nil
}

// CancelBooking reports found=false when the server answers 404.
func (b *Bookings) CancelBooking(ctx context.Context, id string) (bool, error) {
	tok, err := b.token(ctx)
	if err != nil {
		return false, err
	}
	err = b.c.do(ctx, http.MethodPut, "/v1/bookings/"+url.PathEscape(id)+"/cancel", tok, nil, nil)
	if IsStatus(err, http.StatusNotFound) {
		return false, nil
	}
	return err == nil, err
}

// ErrBookingNotFound is returned by GetBooking and Ticket for a 404.
var ErrBookingNotFound = errors.New("booking not found")

func (b *Bookings) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	tok, err := b.token(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	var res bookingEnvelope
	err = b.c.do(ctx, http.MethodGet, "/v1/bookings/"+url.PathEscape(id), tok, nil, &res)
	if IsStatus(err, http.StatusNotFound) {
		return model.Booking{}, ErrBookingNotFound
	}
	return res.Booking, err
}

// Ticket streams the PDF ticket of booking id into w.
func (b *Bookings) Ticket(ctx context.Context, id string, w io.Writer) error {
	tok, err := b.token(ctx)
	if err != nil {
		return err
	}
	resp, err := b.c.send(ctx, http.MethodGet, "/v1/bookings/"+url.PathEscape(id)+"/ticket.pdf", tok, nil)
	if IsStatus(err, http.StatusNotFound) {
		return ErrBookingNotFound
	}
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download ticket: %w", err)
	}
	return nil
}
