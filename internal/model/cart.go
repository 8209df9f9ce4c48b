package model

// CartItem is one pending ticket selection. TotalPrice is always
// Quantity * PricePerTicket; use SetQuantity or Normalize rather than
// assigning either field directly.
//
// Fields:
//  MovieID        – catalogue identifier of the film.
//  MovieTitle     – title shown to the user.
//  MoviePoster    – optional poster URL.
//  Date, Time     – show date (YYYY-MM-DD) and time (HH:MM).
//  Quantity       – number of tickets.
//  PricePerTicket – unit price.
//  TotalPrice     – computed line total.
//  TicketID       – locally generated identity, part of the dedup key.
type CartItem struct {
	MovieID        string  `json:"movieId"`
	MovieTitle     string  `json:"movieTitle"`
	MoviePoster    string  `json:"moviePoster,omitempty"`
	Date           string  `json:"date"`
	Time           string  `json:"time"`
	Quantity       int     `json:"quantity"`
	PricePerTicket float64 `json:"pricePerTicket"`
	TotalPrice     float64 `json:"totalPrice"`
	TicketID       string  `json:"ticketId"`
}

// CartKey is the uniqueness tuple of a cart line.
type CartKey struct {
	MovieID  string
	Date     string
	Time     string
	TicketID string
}

// Key returns the dedup tuple (movieId, date, time, ticketId).
func (c CartItem) Key() CartKey {
	return CartKey{MovieID: c.MovieID, Date: c.Date, Time: c.Time, TicketID: c.TicketID}
}

// SetQuantity updates the quantity and recomputes the line total.
func (c *CartItem) SetQuantity(q int) {
	c.Quantity = q
	c.Normalize()
}

// Normalize recomputes TotalPrice from Quantity and PricePerTicket.
func (c *CartItem) Normalize() {
	c.TotalPrice = float64(c.Quantity) * c.PricePerTicket
}
