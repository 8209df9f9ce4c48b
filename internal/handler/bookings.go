package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-cart/internal/middleware"
	"github.com/iliyamo/cinema-ticket-cart/internal/model"
	"github.com/iliyamo/cinema-ticket-cart/internal/queue"
	"github.com/iliyamo/cinema-ticket-cart/internal/repository"
	"github.com/iliyamo/cinema-ticket-cart/internal/ticket"
)

// EventPublisher sends booking.confirmed events.
type EventPublisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

// BookingHandler serves /v1/bookings. Every route runs behind JWTAuth and
// only ever sees the caller's own bookings.
type BookingHandler struct {
	Bookings *repository.BookingRepo
	Events   EventPublisher // optional
}

func NewBookingHandler(b *repository.BookingRepo, events EventPublisher) *BookingHandler {
	return &BookingHandler{Bookings: b, Events: events}
}

type createBookingReq struct {
	BookingID      string  `json:"bookingId" validate:"omitempty,max=191"`
	MovieID        string  `json:"movieId" validate:"required,max=64"`
	MovieTitle     string  `json:"movieTitle" validate:"max=255"`
	MoviePoster    string  `json:"moviePoster" validate:"omitempty,max=512"`
	Date           string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time           string  `json:"time" validate:"required,datetime=15:04"`
	Quantity       int     `json:"quantity" validate:"required,min=1,max=50"`
	PricePerTicket float64 `json:"pricePerTicket" validate:"gte=0"`
	TicketID       string  `json:"ticketId" validate:"max=191"`
}

func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
}

// Create stores a confirmed booking for the caller. A client-supplied
// bookingId is kept so local and remote ledgers share ids; the total is
// always recomputed.
func (h *BookingHandler) Create(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req createBookingReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	now := time.Now().UTC()
	if req.BookingID == "" {
		req.BookingID = fmt.Sprintf("booking_%d_%d_%s", uid, now.UnixMilli(), uuid.NewString()[:8])
	}
	if req.MovieTitle == "" {
		req.MovieTitle = req.MovieID
	}
	rec := repository.BookingRecord{
		BookingID:      req.BookingID,
		UserID:         uid,
		MovieID:        req.MovieID,
		MovieTitle:     req.MovieTitle,
		MoviePoster:    req.MoviePoster,
		ShowDate:       req.Date,
		ShowTime:       req.Time,
		Quantity:       req.Quantity,
		PricePerTicket: req.PricePerTicket,
		TotalPrice:     float64(req.Quantity) * req.PricePerTicket,
		TicketID:       req.TicketID,
		Status:         string(model.StatusConfirmed),
		CreatedAt:      now,
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Bookings.Create(ctx, &rec); err != nil {
		if errors.Is(err, repository.ErrBookingExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking already exists"})
		}
		c.Logger().Errorf("create booking: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create booking failed"})
	}

	b := rec.Booking()
	h.publish(c, b)
	return c.JSON(http.StatusCreated, echo.Map{"booking": b})
}

// publish sends the event in the background; failures are only logged.
func (h *BookingHandler) publish(c echo.Context, b model.Booking) {
	if h.Events == nil {
		return
	}
	logger := c.Logger()
	ctx := context.WithoutCancel(c.Request().Context())
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := h.Events.PublishBookingConfirmed(ctx, queue.EventFromBooking(b)); err != nil {
			logger.Warnf("publish booking %s: %v", b.BookingID, err)
		}
	}()
}

// List returns the caller's bookings, newest first.
func (h *BookingHandler) List(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	recs, err := h.Bookings.ListByUser(ctx, uid)
	if err != nil {
		c.Logger().Errorf("list bookings: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "list bookings failed"})
	}
	out := make([]model.Booking, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Booking())
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

func (h *BookingHandler) load(c echo.Context) (model.Booking, bool, error) {
	uid, ok := middleware.UserID(c)
	if !ok {
		return model.Booking{}, false, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	rec, err := h.Bookings.GetForUser(ctx, uid, c.Param("id"))
	if errors.Is(err, repository.ErrBookingNotFound) {
		return model.Booking{}, false, notFound(c)
	}
	if err != nil {
		c.Logger().Errorf("load booking: %v", err)
		return model.Booking{}, false, c.JSON(http.StatusInternalServerError, echo.Map{"error": "load booking failed"})
	}
	return rec.Booking(), true, nil
}

// Get returns one of the caller's bookings.
func (h *BookingHandler) Get(c echo.Context) error {
	b, ok, err := h.load(c)
	if !ok {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": b})
}

// Cancel flips one of the caller's bookings to cancelled. Repeating the
// call returns the same cancelled booking.
func (h *BookingHandler) Cancel(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	rec, err := h.Bookings.CancelForUser(ctx, uid, c.Param("id"))
	if errors.Is(err, repository.ErrBookingNotFound) {
		return notFound(c)
	}
	if err != nil {
		c.Logger().Errorf("cancel booking: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "cancel booking failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"booking": rec.Booking()})
}

// Ticket renders the booking as a PDF e-ticket.
func (h *BookingHandler) Ticket(c echo.Context) error {
	b, ok, err := h.load(c)
	if !ok {
		return err
	}
	data, filename, err := ticket.Render(b)
	if err != nil {
		c.Logger().Errorf("render ticket %s: %v", b.BookingID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "render ticket failed"})
	}
	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, filename))
	return c.Blob(http.StatusOK, "application/pdf", data)
}
