// Package booking keeps the finalized bookings of each user. Bookings are
// stored per user under "bookings:<userId>" and are only ever appended by
// checkout or flipped to cancelled.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cinema-ticket-cart/internal/model"
	"github.com/iliyamo/cinema-ticket-cart/internal/storage"
)

// GuestKey is the partition used when no user is known.
const GuestKey = "bookings:guest"

const (
	msgLoadFailed   = "unable to load your bookings"
	msgCancelFailed = "unable to cancel the booking"
)

// PartitionKey returns the storage key holding userID's bookings.
func PartitionKey(userID string) string {
	if userID == "" {
		return GuestKey
	}
	return "bookings:" + userID
}

// Identity supplies the current user id, "" when nobody is logged in.
type Identity interface {
	UserID() string
}

// Remote is the booking API. CancelBooking reports found=false when the
// service does not know the booking.
type Remote interface {
	CreateBooking(ctx context.Context, b model.Booking) (model.Booking, error)
	ListUserBookings(ctx context.Context) ([]model.Booking, error)
	CancelBooking(ctx context.Context, bookingID string) (bool, error)
}

type Options struct {
	// Remote switches the ledger to the booking API; the local partition
	// then acts as a cache of the last listing.
	Remote Remote
	Logger *log.Logger
}

// Ledger is the in-memory view of the current user's bookings plus the
// operations that change the persisted partitions.
type Ledger struct {
	store    storage.Store
	identity Identity
	remote   Remote
	log      *log.Logger

	// mu serializes read-modify-persist cycles on the partitions.
	mu sync.Mutex

	viewMu  sync.RWMutex
	view    []model.Booking
	errMsg  string
	loading atomic.Bool
}

func New(s storage.Store, id Identity, opts Options) *Ledger {
	logger := opts.Logger
	if logger == nil {
		logger = log.New("booking")
	}
	return &Ledger{store: s, identity: id, remote: opts.Remote, log: logger}
}

// UserBookings returns a copy of the loaded bookings.
func (l *Ledger) UserBookings() []model.Booking {
	l.viewMu.RLock()
	defer l.viewMu.RUnlock()
	out := make([]model.Booking, len(l.view))
	copy(out, l.view)
	return out
}

func (l *Ledger) Loading() bool { return l.loading.Load() }

// Err returns the last error message, "" when the last operation succeeded.
func (l *Ledger) Err() string {
	l.viewMu.RLock()
	defer l.viewMu.RUnlock()
	return l.errMsg
}

// Reset drops the in-memory view. Persisted partitions are untouched.
func (l *Ledger) Reset() {
	l.viewMu.Lock()
	l.view = nil
	l.errMsg = ""
	l.viewMu.Unlock()
}

func (l *Ledger) setView(v []model.Booking) {
	l.viewMu.Lock()
	l.view = v
	l.viewMu.Unlock()
}

func (l *Ledger) setErr(msg string) {
	l.viewMu.Lock()
	l.errMsg = msg
	l.viewMu.Unlock()
}

// FetchUserBookings reloads the view for the current user. Entries owned
// by anyone else are dropped even though the partition is per user.
// Without a user the view is empty.
func (l *Ledger) FetchUserBookings(ctx context.Context) ([]model.Booking, error) {
	l.loading.Store(true)
	defer l.loading.Store(false)
	l.setErr("")

	userID := l.identity.UserID()
	if userID == "" {
		l.setView(nil)
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var all []model.Booking
	if l.remote != nil {
		remote, err := l.remote.ListUserBookings(ctx)
		if err != nil {
			l.log.Errorf("list bookings for %s: %v", userID, err)
			l.setErr(msgLoadFailed)
			return nil, fmt.Errorf("list bookings: %w", err)
		}
		all = remote
		if err := storage.SetJSON(ctx, l.store, PartitionKey(userID), ownedBy(all, userID)); err != nil {
			l.log.Warnf("cache bookings for %s: %v", userID, err)
		}
	} else {
		local, err := l.load(ctx, userID)
		if err != nil {
			l.log.Errorf("load bookings for %s: %v", userID, err)
			l.setErr(msgLoadFailed)
			return nil, err
		}
		all = local
	}

	mine := ownedBy(all, userID)
	l.setView(mine)
	out := make([]model.Booking, len(mine))
	copy(out, mine)
	return out, nil
}

// InitUserBookings loads the bookings of a user who just authenticated.
func (l *Ledger) InitUserBookings(ctx context.Context) {
	if _, err := l.FetchUserBookings(ctx); err != nil {
		l.log.Warnf("init bookings: %v", err)
	}
}

// CancelBooking marks bookingID cancelled in the current user's partition.
// An unknown id is a no-op reported as found=false; cancelling twice
// leaves the booking cancelled and reports found=true.
func (l *Ledger) CancelBooking(ctx context.Context, bookingID string) (bool, error) {
	l.setErr("")
	userID := l.identity.UserID()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.remote != nil {
		found, err := l.remote.CancelBooking(ctx, bookingID)
		if err != nil {
			l.log.Errorf("cancel booking %s: %v", bookingID, err)
			l.setErr(msgCancelFailed)
			return false, fmt.Errorf("cancel booking: %w", err)
		}
		if !found {
			return false, nil
		}
	}

	part, err := l.load(ctx, userID)
	if err != nil && l.remote != nil {
		// The API already cancelled it; only the cache is out of reach.
		l.log.Warnf("cancel booking %s: cache not updated: %v", bookingID, err)
		l.markCancelled(bookingID)
		return true, nil
	}
	if err != nil {
		l.log.Errorf("cancel booking %s: %v", bookingID, err)
		l.setErr(msgCancelFailed)
		return false, err
	}
	idx := -1
	for i := range part {
		if part[i].BookingID == bookingID {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Remote-only bookings that were never cached still count as found.
		return l.remote != nil, nil
	}
	if part[idx].Cancel() {
		if err := storage.SetJSON(ctx, l.store, PartitionKey(userID), part); err != nil {
			l.log.Errorf("save bookings for %s: %v", userID, err)
			l.setErr(msgCancelFailed)
			return true, fmt.Errorf("save bookings: %w", err)
		}
		l.log.Infof("booking %s cancelled", bookingID)
	}
	l.markCancelled(bookingID)
	return true, nil
}

func (l *Ledger) markCancelled(bookingID string) {
	l.viewMu.Lock()
	defer l.viewMu.Unlock()
	for i := range l.view {
		if l.view[i].BookingID == bookingID {
			l.view[i].Cancel()
		}
	}
}

// Append adds bookings to userID's partition. The partition write and
// extra are applied in one batch, so either all of them land or none do.
// With a remote, every booking is created remotely first; if a remote
// create or the local write fails, the bookings already created remotely
// are cancelled again.
func (l *Ledger) Append(ctx context.Context, userID string, bookings []model.Booking, extra ...storage.Entry) error {
	if len(bookings) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var created []model.Booking
	if l.remote != nil {
		for _, b := range bookings {
			rb, err := l.remote.CreateBooking(ctx, b)
			if err != nil {
				l.compensate(ctx, created)
				return fmt.Errorf("create booking: %w", err)
			}
			if rb.BookingID == "" {
				rb = b
			}
			created = append(created, rb)
		}
		bookings = created
	}

	part, err := l.load(ctx, userID)
	if err != nil {
		l.compensate(ctx, created)
		return err
	}
	part = append(part, bookings...)
	entry, err := storage.PutJSON(PartitionKey(userID), part)
	if err != nil {
		l.compensate(ctx, created)
		return err
	}
	if err := l.store.Apply(ctx, append([]storage.Entry{entry}, extra...)...); err != nil {
		l.compensate(ctx, created)
		return fmt.Errorf("save bookings: %w", err)
	}

	if l.identity.UserID() == userID {
		l.setView(ownedBy(part, userID))
	}
	return nil
}

func (l *Ledger) compensate(ctx context.Context, created []model.Booking) {
	for _, b := range created {
		if _, err := l.remote.CancelBooking(context.WithoutCancel(ctx), b.BookingID); err != nil {
			l.log.Errorf("compensating cancel of %s failed: %v", b.BookingID, err)
		}
	}
}

// load reads a partition. A missing or corrupt partition is an empty
// list; any other read error is returned so callers never write over
// bookings they could not see.
func (l *Ledger) load(ctx context.Context, userID string) ([]model.Booking, error) {
	var part []model.Booking
	err := storage.GetJSON(ctx, l.store, PartitionKey(userID), &part)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, nil
	case errors.Is(err, storage.ErrCorrupt):
		l.log.Warnf("bookings for %q unreadable: %v", userID, err)
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("read bookings: %w", err)
	}
	return part, nil
}

func ownedBy(all []model.Booking, userID string) []model.Booking {
	out := make([]model.Booking, 0, len(all))
	for _, b := range all {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	return out
}

// SessionStarted reloads the view for the user who just authenticated.
func (l *Ledger) SessionStarted(ctx context.Context, _ model.User) {
	l.InitUserBookings(ctx)
}

// SessionEnded clears the view on logout.
func (l *Ledger) SessionEnded() { l.Reset() }
