package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/iliyamo/cinema-ticket-cart/internal/booking"
	"github.com/iliyamo/cinema-ticket-cart/internal/cart"
	"github.com/iliyamo/cinema-ticket-cart/internal/checkout"
	"github.com/iliyamo/cinema-ticket-cart/internal/model"
	"github.com/iliyamo/cinema-ticket-cart/internal/session"
	"github.com/iliyamo/cinema-ticket-cart/internal/ticket"
)

const usage = `usage: cinemacart <command> [flags]

commands:
  login -email E -password P
  register -name N -email E -password P [-avatar URL]
  logout
  whoami
  validate
  profile [-name N] [-email E] [-avatar URL]
  password -current P -new P
  cart add -movie ID -date YYYY-MM-DD -time HH:MM -qty N -price X [-title T] [-poster URL]
  cart rm INDEX
  cart qty INDEX N
  cart clear
  cart ls
  checkout
  bookings
  cancel BOOKING_ID
  ticket [-o FILE] BOOKING_ID
`

var errUsage = errors.New("invalid usage")

// ticketSource writes the PDF ticket of a booking.
type ticketSource interface {
	Ticket(ctx context.Context, bookingID string, w io.Writer) error
}

// localTickets renders tickets from the local booking ledger.
type localTickets struct{ bookings *booking.Ledger }

func (lt localTickets) Ticket(ctx context.Context, id string, w io.Writer) error {
	list, err := lt.bookings.FetchUserBookings(ctx)
	if err != nil {
		return err
	}
	for _, b := range list {
		if b.BookingID != id {
			continue
		}
		data, _, err := ticket.Render(b)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	}
	return fmt.Errorf("booking %s not found", id)
}

// app wires the ledgers behind the sub-commands.
type app struct {
	sess     *session.Manager
	cart     *cart.Ledger
	bookings *booking.Ledger
	checkout *checkout.Orchestrator
	tickets  ticketSource
	out      io.Writer
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return errUsage
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "register":
		return a.register(ctx, rest)
	case "logout":
		a.sess.Logout(ctx)
		return nil
	case "whoami":
		return a.whoami()
	case "validate":
		if !a.sess.ValidateAuth(ctx) {
			fmt.Fprintln(a.out, "session is not valid")
			return nil
		}
		fmt.Fprintln(a.out, "session is valid")
		return nil
	case "profile":
		return a.profile(ctx, rest)
	case "password":
		return a.password(ctx, rest)
	case "cart":
		return a.cartCmd(ctx, rest)
	case "checkout":
		return a.doCheckout(ctx)
	case "bookings":
		return a.listBookings(ctx)
	case "cancel":
		return a.cancel(ctx, rest)
	case "ticket":
		return a.ticket(ctx, rest)
	case "help", "-h", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	}
	fmt.Fprintf(a.out, "unknown command %q\n", cmd)
	fmt.Fprint(a.out, usage)
	return errUsage
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	u, err := a.sess.Login(ctx, session.Credentials{Email: *email, Password: *password})
	if err != nil {
		return errors.New(session.Message(err, "login failed"))
	}
	fmt.Fprintf(a.out, "logged in as %s (%s)\n", u.Name, u.Email)
	return nil
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := a.flags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	avatar := fs.String("avatar", "", "avatar URL")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	u, err := a.sess.Register(ctx, session.Registration{Name: *name, Email: *email, Password: *password, Avatar: *avatar})
	if err != nil {
		return errors.New(session.Message(err, "registration failed"))
	}
	fmt.Fprintf(a.out, "registered %s (%s)\n", u.Name, u.Email)
	return nil
}

func (a *app) whoami() error {
	u, ok := a.sess.CurrentUser()
	if !ok {
		fmt.Fprintln(a.out, "not logged in")
		return nil
	}
	fmt.Fprintf(a.out, "%s <%s> id=%s\n", u.Name, u.Email, u.ID)
	return nil
}

func (a *app) profile(ctx context.Context, args []string) error {
	fs := a.flags("profile")
	name := fs.String("name", "", "new display name")
	email := fs.String("email", "", "new email")
	avatar := fs.String("avatar", "", "new avatar URL")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	var p session.ProfilePatch
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "name":
			p.Name = name
		case "email":
			p.Email = email
		case "avatar":
			p.Avatar = avatar
		}
	})
	u, err := a.sess.UpdateProfile(ctx, p)
	if err != nil {
		return errors.New(session.Message(err, "profile update failed"))
	}
	fmt.Fprintf(a.out, "%s <%s> id=%s\n", u.Name, u.Email, u.ID)
	return nil
}

func (a *app) password(ctx context.Context, args []string) error {
	fs := a.flags("password")
	current := fs.String("current", "", "current password")
	next := fs.String("new", "", "new password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if err := a.sess.ChangePassword(ctx, *current, *next); err != nil {
		return errors.New(session.Message(err, "password change failed"))
	}
	fmt.Fprintln(a.out, "password changed")
	return nil
}

func (a *app) cartCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "add":
		fs := a.flags("cart add")
		var it model.CartItem
		fs.StringVar(&it.MovieID, "movie", "", "movie id")
		fs.StringVar(&it.MovieTitle, "title", "", "movie title")
		fs.StringVar(&it.MoviePoster, "poster", "", "poster URL")
		fs.StringVar(&it.Date, "date", "", "show date (YYYY-MM-DD)")
		fs.StringVar(&it.Time, "time", "", "show time (HH:MM)")
		fs.IntVar(&it.Quantity, "qty", 1, "number of tickets")
		fs.Float64Var(&it.PricePerTicket, "price", 0, "price per ticket")
		if err := fs.Parse(args[1:]); err != nil {
			return errUsage
		}
		stored, added, err := a.cart.AddToCart(ctx, it)
		if err != nil {
			return err
		}
		if !added {
			fmt.Fprintf(a.out, "already in cart: %s\n", stored.TicketID)
			return nil
		}
		fmt.Fprintf(a.out, "added %s x%d (%.2f)\n", stored.MovieID, stored.Quantity, stored.TotalPrice)
		return nil
	case "rm":
		idx, err := indexArg(args[1:], 1)
		if err != nil {
			return err
		}
		found, err := a.cart.RemoveFromCart(ctx, idx)
		return a.reportIndex(found, err, idx)
	case "qty":
		idx, err := indexArg(args[1:], 2)
		if err != nil {
			return err
		}
		q, err := strconv.Atoi(args[2])
		if err != nil {
			return errUsage
		}
		found, err := a.cart.UpdateCartItem(ctx, idx, q)
		return a.reportIndex(found, err, idx)
	case "clear":
		return a.cart.ClearCart(ctx)
	case "ls":
		return a.listCart()
	}
	return errUsage
}

// indexArg parses the 1-based line number in args[0].
func indexArg(args []string, want int) (int, error) {
	if len(args) != want {
		return 0, errUsage
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, errUsage
	}
	return n - 1, nil
}

func (a *app) reportIndex(found bool, err error, idx int) error {
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(a.out, "no cart line %d\n", idx+1)
	}
	return nil
}

func (a *app) listCart() error {
	items := a.cart.Items()
	if len(items) == 0 {
		fmt.Fprintln(a.out, "cart is empty")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tMOVIE\tSHOW\tQTY\tPRICE\tTOTAL")
	for i, it := range items {
		fmt.Fprintf(tw, "%d\t%s\t%s %s\t%d\t%.2f\t%.2f\n", i+1, title(it), it.Date, it.Time, it.Quantity, it.PricePerTicket, it.TotalPrice)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d line(s), total %.2f\n", a.cart.ItemsCount(), a.cart.CartTotal())
	return nil
}

func title(it model.CartItem) string {
	if it.MovieTitle != "" {
		return it.MovieTitle
	}
	return it.MovieID
}

func (a *app) doCheckout(ctx context.Context) error {
	booked, err := a.checkout.Checkout(ctx)
	if err != nil {
		return err
	}
	for _, b := range booked {
		fmt.Fprintf(a.out, "booked %s: %s %s %s x%d\n", b.BookingID, title(b.CartItem), b.Date, b.Time, b.Quantity)
	}
	return nil
}

func (a *app) listBookings(ctx context.Context) error {
	list, err := a.bookings.FetchUserBookings(ctx)
	if err != nil {
		return errors.New(a.bookings.Err())
	}
	if len(list) == 0 {
		fmt.Fprintln(a.out, "no bookings")
		return nil
	}
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BOOKING\tMOVIE\tSHOW\tQTY\tTOTAL\tSTATUS")
	for _, b := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s %s\t%d\t%.2f\t%s\n", b.BookingID, title(b.CartItem), b.Date, b.Time, b.Quantity, b.TotalPrice, b.Status)
	}
	return tw.Flush()
}

func (a *app) cancel(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage
	}
	found, err := a.bookings.CancelBooking(ctx, args[0])
	if err != nil {
		return err
	}
	if !found {
		fmt.Fprintf(a.out, "no booking %s\n", args[0])
		return nil
	}
	fmt.Fprintf(a.out, "cancelled %s\n", args[0])
	return nil
}

func (a *app) ticket(ctx context.Context, args []string) error {
	fs := a.flags("ticket")
	path := fs.String("o", "", "output file (default TICKET_<id>.pdf)")
	if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
		return errUsage
	}
	id := fs.Arg(0)
	if !a.sess.IsLoggedIn() {
		return checkout.ErrNotLoggedIn
	}
	if *path == "" {
		*path = ticket.Filename(model.Booking{BookingID: id})
	}
	f, err := os.Create(*path)
	if err != nil {
		return err
	}
	if err := a.tickets.Ticket(ctx, id, f); err != nil {
		f.Close()
		_ = os.Remove(*path)
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "wrote %s\n", *path)
	return nil
}
