package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/labstack/gommon/log"

	"github.com/iliyamo/cinema-ticket-cart/internal/model"
	"github.com/iliyamo/cinema-ticket-cart/internal/storage"
)

// State is the session state seen by the rest of the application.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticating  State = "authenticating"
	StateAuthenticated   State = "authenticated"
	StateAuthError       State = "auth-error"
)

// Listener is told when a user session starts (login, registration,
// successful validation) and when it ends.
type Listener interface {
	SessionStarted(ctx context.Context, user model.User)
	SessionEnded()
}

// Navigator performs the "go to login" effect after an explicit logout.
type Navigator interface {
	ToLogin()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

func (f NavigatorFunc) ToLogin() { f() }

// Options tune a Manager. Zero values pick the defaults.
type Options struct {
	TokenTTL  time.Duration
	Navigator Navigator
	Logger    *log.Logger
	Now       func() time.Time
}

// ProfilePatch lists the profile fields to change. Nil fields are kept.
type ProfilePatch struct {
	Name   *string
	Email  *string
	Avatar *string
}

// Manager owns the token and profile state and drives login,
// registration, logout and token validation.
type Manager struct {
	store    storage.Store
	tokens   *TokenStore
	profiles *ProfileStore
	auth     Authenticator
	nav      Navigator
	log      *log.Logger

	mu        sync.Mutex
	state     State
	user      *model.User
	errMsg    string
	ready     bool
	listeners []Listener

	initOnce   sync.Once
	initResult bool
}

// NewManager builds a Manager and derives its initial state from the
// persisted token and profile: authenticated when both are present and
// the token has not expired, unauthenticated otherwise. The remote check
// happens later in InitAuth.
func NewManager(ctx context.Context, s storage.Store, auth Authenticator, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = log.New("session")
	}
	nav := opts.Navigator
	if nav == nil {
		nav = NavigatorFunc(func() {})
	}
	m := &Manager{
		store:    s,
		tokens:   NewTokenStore(s, opts.TokenTTL, opts.Now, logger),
		profiles: NewProfileStore(s, opts.Now, logger),
		auth:     auth,
		nav:      nav,
		log:      logger,
		state:    StateUnauthenticated,
	}
	_, hasToken := m.tokens.GetToken(ctx)
	if u, ok := m.profiles.GetUser(ctx); ok && hasToken {
		m.state = StateAuthenticated
		m.user = &u
	}
	return m
}

// Subscribe registers l for session transitions.
func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsLoggedIn reports whether a user is loaded.
func (m *Manager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.user != nil
}

// CurrentUser returns a copy of the loaded user.
func (m *Manager) CurrentUser() (model.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return model.User{}, false
	}
	return *m.user, true
}

// UserID returns the current user id, or "" without a session.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return ""
	}
	return m.user.ID
}

// Err returns the last auth error message.
func (m *Manager) Err() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errMsg
}

// Ready reports whether the startup auth check has settled.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// ClearError drops the last auth error message.
func (m *Manager) ClearError() {
	m.mu.Lock()
	m.errMsg = ""
	if m.state == StateAuthError {
		m.state = StateUnauthenticated
	}
	m.mu.Unlock()
}

// Token returns the stored, unexpired token for API calls.
func (m *Manager) Token(ctx context.Context) (string, bool) {
	return m.tokens.GetToken(ctx)
}

// Login authenticates against the remote service and persists the token
// and profile together.
func (m *Manager) Login(ctx context.Context, c Credentials) (model.User, error) {
	c.Email = strings.TrimSpace(c.Email)
	if c.Email == "" || c.Password == "" {
		return model.User{}, ErrMissingCredentials
	}
	m.begin()
	res, err := m.auth.Login(ctx, c)
	return m.complete(ctx, "login", c.Email, res, err)
}

// Register creates an account remotely and starts a session for it. The
// user id is derived from the email when the service does not return one.
func (m *Manager) Register(ctx context.Context, r Registration) (model.User, error) {
	r.Email = strings.TrimSpace(r.Email)
	if r.Email == "" || r.Password == "" {
		return model.User{}, ErrMissingCredentials
	}
	m.begin()
	res, err := m.auth.Register(ctx, r)
	return m.complete(ctx, "register", r.Email, res, err)
}

func (m *Manager) begin() {
	m.mu.Lock()
	m.state = StateAuthenticating
	m.errMsg = ""
	m.mu.Unlock()
}

func (m *Manager) complete(ctx context.Context, op, email string, res AuthResult, err error) (model.User, error) {
	if err == nil && res.User == nil {
		err = ErrMissingUser
	}
	if err == nil && res.Token == "" {
		err = ErrMissingToken
	}
	var user model.User
	if err == nil {
		user = *res.User
		if user.Email == "" {
			user.Email = email
		}
		user, err = m.persist(ctx, res.Token, user)
	}
	if err != nil {
		// The stored pair must not outlive the in-memory user, or the next
		// start would restore a session this failure already ended.
		if cerr := m.tokens.Clear(ctx); cerr != nil {
			m.log.Errorf("clear session: %v", cerr)
		}
		msg := Message(err, op+" failed")
		m.mu.Lock()
		hadUser := m.user != nil
		m.state = StateAuthError
		m.user = nil
		m.errMsg = msg
		m.ready = true
		listeners := append([]Listener(nil), m.listeners...)
		m.mu.Unlock()
		m.log.Warnf("%s failed for %s: %v", op, email, err)
		if hadUser {
			for _, l := range listeners {
				l.SessionEnded()
			}
		}
		return model.User{}, fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	m.state = StateAuthenticated
	m.user = &user
	m.errMsg = ""
	m.ready = true
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	m.log.Infof("%s succeeded for user %s", op, user.ID)
	for _, l := range listeners {
		l.SessionStarted(ctx, user)
	}
	return user, nil
}

// persist writes token and profile in one batch so a token is never
// stored without its profile.
func (m *Manager) persist(ctx context.Context, token string, u model.User) (model.User, error) {
	te, err := m.tokens.Entry(token)
	if err != nil {
		return model.User{}, err
	}
	pe, u, err := m.profiles.Entry(u)
	if err != nil {
		return model.User{}, err
	}
	if err := m.store.Apply(ctx, te, pe); err != nil {
		return model.User{}, fmt.Errorf("persist session: %w", err)
	}
	return u, nil
}

// Logout ends the session. The remote notification is best effort; local
// cleanup always runs and the navigator is sent to the login screen.
func (m *Manager) Logout(ctx context.Context) {
	if token, ok := m.tokens.GetToken(ctx); ok {
		if err := m.auth.Logout(ctx, token); err != nil {
			m.log.Warnf("remote logout failed: %v", err)
		}
	}
	m.endSession(ctx)
	m.nav.ToLogin()
}

func (m *Manager) endSession(ctx context.Context) {
	if err := m.tokens.Clear(ctx); err != nil {
		m.log.Errorf("clear session: %v", err)
	}
	m.mu.Lock()
	m.state = StateUnauthenticated
	m.user = nil
	m.errMsg = ""
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l.SessionEnded()
	}
}

// ValidateAuth asks the remote service whether the stored token is still
// accepted. Without a loaded user it returns false straight away. An
// invalid token, or any error while checking, ends the session without
// navigating; a valid one reloads the listeners for the user.
func (m *Manager) ValidateAuth(ctx context.Context) bool {
	m.mu.Lock()
	m.ready = true
	var user model.User
	loaded := m.user != nil
	if loaded {
		user = *m.user
	}
	m.mu.Unlock()
	if !loaded {
		return false
	}

	valid := false
	if token, ok := m.tokens.GetToken(ctx); ok {
		v, err := m.auth.ValidateToken(ctx, token)
		if err != nil {
			m.log.Warnf("token validation failed: %v", err)
		}
		valid = err == nil && v
	}
	if !valid {
		m.log.Infof("session for %s is no longer valid", user.ID)
		m.endSession(ctx)
		return false
	}

	m.mu.Lock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()
	for _, l := range listeners {
		l.SessionStarted(ctx, user)
	}
	return true
}

// InitAuth runs the startup check once per Manager: with a persisted user
// and token it marks the session authenticated and validates it remotely;
// otherwise it settles as ready with no user. Later calls return the
// first result.
func (m *Manager) InitAuth(ctx context.Context) bool {
	m.initOnce.Do(func() {
		m.mu.Lock()
		m.ready = false
		m.mu.Unlock()

		_, hasToken := m.tokens.GetToken(ctx)
		user, hasUser := m.profiles.GetUser(ctx)
		if hasToken && hasUser {
			m.mu.Lock()
			m.state = StateAuthenticated
			m.user = &user
			m.mu.Unlock()
			m.initResult = m.ValidateAuth(ctx)
			return
		}

		m.mu.Lock()
		m.state = StateUnauthenticated
		m.user = nil
		m.ready = true
		m.mu.Unlock()
	})
	return m.initResult
}

// UpdateProfile changes the stored profile. The user id never changes.
func (m *Manager) UpdateProfile(ctx context.Context, p ProfilePatch) (model.User, error) {
	m.mu.Lock()
	if m.user == nil {
		m.mu.Unlock()
		return model.User{}, ErrNotAuthenticated
	}
	u := *m.user
	m.mu.Unlock()

	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Email != nil {
		u.Email = *p.Email
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
	u, err := m.profiles.SetUser(ctx, u)
	if err != nil {
		return model.User{}, fmt.Errorf("update profile: %w", err)
	}

	m.mu.Lock()
	m.user = &u
	m.mu.Unlock()
	return u, nil
}

// ChangePassword changes the password remotely and then revalidates the
// session.
func (m *Manager) ChangePassword(ctx context.Context, current, next string) error {
	if !m.IsLoggedIn() {
		return ErrNotAuthenticated
	}
	if current == "" || next == "" {
		return ErrMissingCredentials
	}
	token, ok := m.tokens.GetToken(ctx)
	if !ok {
		m.endSession(ctx)
		return ErrNotAuthenticated
	}
	if err := m.auth.ChangePassword(ctx, token, current, next); err != nil {
		return fmt.Errorf("change password: %w", err)
	}
	m.ValidateAuth(ctx)
	return nil
}
