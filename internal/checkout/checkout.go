// Package checkout turns the cart into bookings for the logged-in user.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cinema-ticket-cart/internal/booking"
	"github.com/iliyamo/cinema-ticket-cart/internal/cart"
	"github.com/iliyamo/cinema-ticket-cart/internal/model"
	"github.com/iliyamo/cinema-ticket-cart/internal/queue"
	"github.com/iliyamo/cinema-ticket-cart/internal/storage"
)

// Precondition failures, checked in this order.
var (
	ErrNotLoggedIn        = errors.New("must be logged in")
	ErrCartEmpty          = errors.New("cart is empty")
	ErrUserIdentification = errors.New("user identification error")
)

const msgCheckoutFailed = "checkout failed"

// Session is the part of the session manager checkout reads.
type Session interface {
	IsLoggedIn() bool
	CurrentUser() (model.User, bool)
}

// Publisher receives one event per committed booking.
type Publisher interface {
	PublishBookingConfirmed(ctx context.Context, ev queue.BookingConfirmedEvent) error
}

type Options struct {
	// Delay stands in for a network round trip before the commit.
	Delay     time.Duration
	Publisher Publisher
	Logger    *log.Logger
	Now       func() time.Time
}

type Orchestrator struct {
	cart     *cart.Ledger
	bookings *booking.Ledger
	session  Session
	pub      Publisher
	delay    time.Duration
	now      func() time.Time
	log      *log.Logger

	loading atomic.Bool
	mu      sync.Mutex
	errMsg  string
}

func New(c *cart.Ledger, b *booking.Ledger, s Session, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New("checkout")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		cart:     c,
		bookings: b,
		session:  s,
		pub:      opts.Publisher,
		delay:    opts.Delay,
		now:      now,
		log:      logger,
	}
}

func (o *Orchestrator) Loading() bool { return o.loading.Load() }

// Err returns the message of the last failed commit.
func (o *Orchestrator) Err() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errMsg
}

func (o *Orchestrator) setErr(msg string) {
	o.mu.Lock()
	o.errMsg = msg
	o.mu.Unlock()
}

// NewBookingID returns "booking_<userId>_<unixms>_<8 hex>".
func NewBookingID(userID string, at time.Time) string {
	return fmt.Sprintf("booking_%s_%d_%s", userID, at.UnixMilli(), uuid.NewString()[:8])
}

// Checkout books every cart item for the current user and empties the
// cart. The bookings and the emptied cart are written in one batch: on
// any failure after the preconditions both ledgers keep their previous
// state and the call can be retried.
func (o *Orchestrator) Checkout(ctx context.Context) ([]model.Booking, error) {
	if !o.session.IsLoggedIn() {
		return nil, ErrNotLoggedIn
	}
	if o.cart.IsEmpty() {
		return nil, ErrCartEmpty
	}
	user, ok := o.session.CurrentUser()
	if !ok || user.ID == "" {
		return nil, ErrUserIdentification
	}

	o.loading.Store(true)
	defer o.loading.Store(false)
	o.setErr("")

	if err := o.wait(ctx); err != nil {
		o.setErr(msgCheckoutFailed)
		return nil, err
	}

	var booked []model.Booking
	err := o.cart.Drain(ctx, func(items []model.CartItem, emptied storage.Entry) error {
		if len(items) == 0 {
			return ErrCartEmpty
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		at := o.now()
		out := make([]model.Booking, 0, len(items))
		for _, it := range items {
			it.Normalize()
			out = append(out, model.Booking{
				CartItem:    it,
				UserID:      user.ID,
				BookingID:   NewBookingID(user.ID, at),
				BookingDate: at.UTC(),
				Status:      model.StatusConfirmed,
			})
		}
		if err := o.bookings.Append(ctx, user.ID, out, emptied); err != nil {
			return err
		}
		booked = out
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrCartEmpty) {
			o.log.Errorf("checkout for %s failed: %v", user.ID, err)
			o.setErr(msgCheckoutFailed)
		}
		return nil, err
	}

	o.log.Infof("checkout for %s booked %d item(s)", user.ID, len(booked))
	o.publish(ctx, booked)
	return booked, nil
}

func (o *Orchestrator) wait(ctx context.Context) error {
	if o.delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(o.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (o *Orchestrator) publish(ctx context.Context, booked []model.Booking) {
	if o.pub == nil {
		return
	}
	for _, b := range booked {
		if err := o.pub.PublishBookingConfirmed(ctx, queue.EventFromBooking(b)); err != nil {
			o.log.Warnf("publish booking %s: %v", b.BookingID, err)
		}
	}
}
