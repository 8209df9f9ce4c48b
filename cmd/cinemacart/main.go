// Command cinemacart is the command-line front end of the ticket cart:
// it logs in, fills the cart, checks out and manages bookings. Without
// API_BASE_URL it runs entirely against local storage.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/cinema-ticket-cart/internal/booking"
	"github.com/iliyamo/cinema-ticket-cart/internal/cart"
	"github.com/iliyamo/cinema-ticket-cart/internal/checkout"
	"github.com/iliyamo/cinema-ticket-cart/internal/client"
	"github.com/iliyamo/cinema-ticket-cart/internal/config"
	"github.com/iliyamo/cinema-ticket-cart/internal/service"
	"github.com/iliyamo/cinema-ticket-cart/internal/session"
	"github.com/iliyamo/cinema-ticket-cart/internal/storage"
	"github.com/iliyamo/cinema-ticket-cart/internal/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := 0
	if err := run(ctx, config.LoadClient(), os.Args[1:]); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintln(os.Stderr, "cinemacart:", err)
		}
		code = 1
	}
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg config.ClientConfig, args []string) error {
	store, closer, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer closer.Close()

	a, err := newApp(ctx, cfg, store)
	if err != nil {
		return err
	}
	a.sess.InitAuth(ctx)
	return a.run(ctx, args)
}

// newApp builds the session, ledgers and checkout over store. A
// configured API base URL switches auth and bookings to the REST API.
func newApp(ctx context.Context, cfg config.ClientConfig, store storage.Store) (*app, error) {
	var auth session.Authenticator = session.Simulator{}
	var api *client.Client
	if !cfg.Simulated() {
		api = client.New(cfg.APIBaseURL, cfg.APITimeout)
		auth = client.NewAuth(api)
	}

	a := &app{out: os.Stdout}
	a.sess = session.NewManager(ctx, store, auth, session.Options{
		TokenTTL: cfg.TokenTTL,
		Logger:   utils.NewLogger("session", cfg.LogLevel),
		Navigator: session.NavigatorFunc(func() {
			fmt.Fprintln(a.out, "logged out")
		}),
	})

	opts := booking.Options{Logger: utils.NewLogger("booking", cfg.LogLevel)}
	if api != nil {
		remote := client.NewBookings(api, a.sess)
		opts.Remote = remote
		a.tickets = remote
	}
	a.bookings = booking.New(store, a.sess, opts)
	if a.tickets == nil {
		a.tickets = localTickets{bookings: a.bookings}
	}
	a.sess.Subscribe(a.bookings)

	c, err := cart.New(ctx, store, utils.NewLogger("cart", cfg.LogLevel))
	if err != nil {
		return nil, err
	}
	a.cart = c

	var pub checkout.Publisher
	if cfg.PublishEvents {
		pub = service.NewPublisher(cfg.AMQPURL, utils.NewLogger("queue", cfg.LogLevel))
	}
	a.checkout = checkout.New(a.cart, a.bookings, a.sess, checkout.Options{
		Delay:     cfg.CheckoutDelay,
		Publisher: pub,
		Logger:    utils.NewLogger("checkout", cfg.LogLevel),
	})
	return a, nil
}
