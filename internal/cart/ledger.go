// Package cart holds the pending ticket selections. The cart is a single
// global list, not scoped to a user, persisted under one storage key.
package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cinema-ticket-cart/internal/model"
	"github.com/iliyamo/cinema-ticket-cart/internal/storage"
)

// Key is the storage key of the cart.
const Key = "cinema_cart"

// ErrInvalidItem is returned for items with no movie or a quantity below 1.
var ErrInvalidItem = errors.New("invalid cart item")

// Ledger is the ordered list of cart items. Every mutation persists the
// whole list before returning; a failed write restores the previous list.
type Ledger struct {
	store storage.Store
	log   *log.Logger

	mu    sync.Mutex
	items []model.CartItem
}

// New loads the cart from s. A missing or corrupt cart starts empty; any
// other read error is returned, since a ledger that started empty would
// overwrite the stored cart on its first write.
func New(ctx context.Context, s storage.Store, logger *log.Logger) (*Ledger, error) {
	if logger == nil {
		logger = log.New("cart")
	}
	l := &Ledger{store: s, log: logger}
	var items []model.CartItem
	err := storage.GetJSON(ctx, s, Key, &items)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case errors.Is(err, storage.ErrCorrupt):
		logger.Warnf("cart unreadable, starting empty: %v", err)
	case err != nil:
		return nil, fmt.Errorf("load cart: %w", err)
	default:
		for i := range items {
			items[i].Normalize()
		}
		l.items = items
	}
	return l, nil
}

// NewTicketID returns a fresh local ticket identifier.
func NewTicketID() string { return "ticket_" + uuid.NewString() }

// AddToCart appends item unless an item with the same (movieId, date,
// time, ticketId) already exists. A missing ticket id is generated. It
// returns the item as stored and whether it was added.
func (l *Ledger) AddToCart(ctx context.Context, item model.CartItem) (model.CartItem, bool, error) {
	if item.MovieID == "" || item.Quantity < 1 {
		return model.CartItem{}, false, ErrInvalidItem
	}
	if item.TicketID == "" {
		item.TicketID = NewTicketID()
	}
	item.Normalize()

	l.mu.Lock()
	defer l.mu.Unlock()
	key := item.Key()
	for _, existing := range l.items {
		if existing.Key() == key {
			return existing, false, nil
		}
	}
	next := append(l.snapshot(), item)
	if err := l.commit(ctx, next); err != nil {
		return model.CartItem{}, false, err
	}
	return item, true, nil
}

// RemoveFromCart removes the item at index. An index out of range is a
// no-op reported as found=false.
func (l *Ledger) RemoveFromCart(ctx context.Context, index int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.items) {
		return false, nil
	}
	next := l.snapshot()
	next = append(next[:index], next[index+1:]...)
	return true, l.commit(ctx, next)
}

// UpdateCartItem sets the quantity of the item at index and recomputes
// its total. An index out of range is a no-op reported as found=false.
func (l *Ledger) UpdateCartItem(ctx context.Context, index, quantity int) (bool, error) {
	if quantity < 1 {
		return false, ErrInvalidItem
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.items) {
		return false, nil
	}
	next := l.snapshot()
	next[index].SetQuantity(quantity)
	return true, l.commit(ctx, next)
}

// ClearCart empties the cart and persists the empty list.
func (l *Ledger) ClearCart(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.commit(ctx, []model.CartItem{})
}

// Drain runs fn with the current items while holding the cart lock. fn
// receives the write that empties the cart and must apply it together
// with its own writes; when fn returns nil the in-memory cart is emptied.
// A second Drain waits for the first and then sees the emptied cart.
func (l *Ledger) Drain(ctx context.Context, fn func(items []model.CartItem, emptied storage.Entry) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	emptied, err := storage.PutJSON(Key, []model.CartItem{})
	if err != nil {
		return err
	}
	if err := fn(l.snapshot(), emptied); err != nil {
		return err
	}
	l.items = nil
	return nil
}

// Items returns a copy of the cart items.
func (l *Ledger) Items() []model.CartItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

// ItemsCount is the number of lines in the cart.
func (l *Ledger) ItemsCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// CartTotal sums the line totals.
func (l *Ledger) CartTotal() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, it := range l.items {
		total += it.TotalPrice
	}
	return total
}

func (l *Ledger) IsEmpty() bool { return l.ItemsCount() == 0 }

func (l *Ledger) snapshot() []model.CartItem {
	out := make([]model.CartItem, len(l.items))
	copy(out, l.items)
	return out
}

// commit persists next and swaps it in. Callers hold l.mu.
func (l *Ledger) commit(ctx context.Context, next []model.CartItem) error {
	if next == nil {
		next = []model.CartItem{}
	}
	if err := storage.SetJSON(ctx, l.store, Key, next); err != nil {
		l.log.Errorf("save cart: %v", err)
		return fmt.Errorf("save cart: %w", err)
	}
	l.items = next
	return nil
}
