package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/cinema-ticket-cart/internal/model"
	"github.com/iliyamo/cinema-ticket-cart/internal/storage"
	"github.com/iliyamo/cinema-ticket-cart/internal/utils"
)

type remoteErr struct{ msg string }

func (e remoteErr) Error() string       { return "remote: " + e.msg }
func (e remoteErr) UserMessage() string { return e.msg }

type fakeAuth struct {
	mu         sync.Mutex
	result     AuthResult
	err        error
	valid      bool
	validErr   error
	logoutErr  error
	passErr    error
	logins     int
	validates  int
	logouts    int
	passChange int
}

func (f *fakeAuth) Login(_ context.Context, _ Credentials) (AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logins++
	return f.result, f.err
}

func (f *fakeAuth) Register(_ context.Context, _ Registration) (AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.err
}

func (f *fakeAuth) ValidateToken(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validates++
	return f.valid, f.validErr
}

func (f *fakeAuth) Logout(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logouts++
	return f.logoutErr
}

func (f *fakeAuth) ChangePassword(_ context.Context, _, _, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.passChange++
	return f.passErr
}

type recorder struct {
	started []model.User
	ended   int
}

func (r *recorder) SessionStarted(_ context.Context, u model.User) { r.started = append(r.started, u) }
func (r *recorder) SessionEnded()                                  { r.ended++ }

// failingApply rejects every batch write.
type failingApply struct{ *storage.Memory }

func (failingApply) Apply(context.Context, ...storage.Entry) error {
	return errors.New("disk full")
}

func newTestManager(t *testing.T, s storage.Store, auth Authenticator) (*Manager, *recorder, *int) {
	t.Helper()
	navs := 0
	m := NewManager(context.Background(), s, auth, Options{
		Logger:    utils.DiscardLogger("session"),
		Navigator: NavigatorFunc(func() { navs++ }),
	})
	rec := &recorder{}
	m.Subscribe(rec)
	return m, rec, &navs
}

func TestLoginPersistsSession(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	auth := &fakeAuth{result: AuthResult{User: &model.User{Name: "A", Email: "a@x.com"}, Token: "tok"}}
	m, rec, _ := newTestManager(t, mem, auth)

	u, err := m.Login(ctx, Credentials{Email: "a@x.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if u.ID != "a" {
		t.Fatalf("derived id = %q", u.ID)
	}
	if m.State() != StateAuthenticated || !m.IsLoggedIn() || !m.Ready() {
		t.Fatalf("state = %s loggedIn=%v ready=%v", m.State(), m.IsLoggedIn(), m.Ready())
	}
	if tok, ok := m.Token(ctx); !ok || tok != "tok" {
		t.Fatalf("token = %q, %v", tok, ok)
	}
	if len(rec.started) != 1 || rec.started[0].ID != "a" {
		t.Fatalf("listener calls = %+v", rec.started)
	}
}

func TestLoginValidationAbortsBeforeRemote(t *testing.T) {
	auth := &fakeAuth{}
	m, _, _ := newTestManager(t, storage.NewMemory(), auth)
	_, err := m.Login(context.Background(), Credentials{Email: "a@x.com"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v", err)
	}
	if auth.logins != 0 || m.State() != StateUnauthenticated {
		t.Fatalf("remote called %d times, state %s", auth.logins, m.State())
	}
}

func TestLoginFailureLeavesNoUser(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	auth := &fakeAuth{err: remoteErr{msg: "invalid credentials"}}
	m, rec, _ := newTestManager(t, mem, auth)

	if _, err := m.Login(ctx, Credentials{Email: "a@x.com", Password: "bad"}); err == nil {
		t.Fatalf("expected error")
	}
	if m.State() != StateAuthError || m.IsLoggedIn() {
		t.Fatalf("state = %s", m.State())
	}
	if m.Err() != "invalid credentials" {
		t.Fatalf("message = %q", m.Err())
	}
	if mem.Keys() != 0 || len(rec.started) != 0 {
		t.Fatalf("partial state: keys=%d started=%d", mem.Keys(), len(rec.started))
	}

	m.ClearError()
	if m.Err() != "" || m.State() != StateUnauthenticated {
		t.Fatalf("ClearError left %q / %s", m.Err(), m.State())
	}
}

func TestFailedLoginDropsPreviousSession(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	auth := &fakeAuth{result: AuthResult{User: &model.User{Email: "a@x.com"}, Token: "tok-a"}}
	m, rec, _ := newTestManager(t, mem, auth)
	if _, err := m.Login(ctx, Credentials{Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	auth.err = remoteErr{msg: "invalid credentials"}
	if _, err := m.Login(ctx, Credentials{Email: "b@x.com", Password: "bad"}); err == nil {
		t.Fatalf("expected error")
	}
	if _, ok := m.Token(ctx); ok {
		t.Fatalf("token of the previous user survived a failed login")
	}
	if mem.Keys() != 0 {
		t.Fatalf("stored keys = %d, want 0", mem.Keys())
	}
	if rec.ended != 1 {
		t.Fatalf("SessionEnded calls = %d, want 1", rec.ended)
	}

	// A restart must not bring the first user back.
	auth.err = nil
	auth.valid = true
	again, _, _ := newTestManager(t, mem, auth)
	if again.InitAuth(ctx) || again.IsLoggedIn() {
		u, _ := again.CurrentUser()
		t.Fatalf("restored %+v after failed login", u)
	}
}

func TestLoginMissingTokenIsError(t *testing.T) {
	auth := &fakeAuth{result: AuthResult{User: &model.User{Email: "a@x.com"}}}
	m, _, _ := newTestManager(t, storage.NewMemory(), auth)
	_, err := m.Login(context.Background(), Credentials{Email: "a@x.com", Password: "pw"})
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("err = %v", err)
	}
	if m.Err() != ErrMissingToken.Error() {
		t.Fatalf("message = %q", m.Err())
	}
}

func TestLoginPersistFailureIsAtomic(t *testing.T) {
	mem := storage.NewMemory()
	auth := &fakeAuth{result: AuthResult{User: &model.User{Email: "a@x.com"}, Token: "tok"}}
	m, _, _ := newTestManager(t, failingApply{mem}, auth)

	if _, err := m.Login(context.Background(), Credentials{Email: "a@x.com", Password: "pw"}); err == nil {
		t.Fatalf("expected persist error")
	}
	if m.IsLoggedIn() || mem.Keys() != 0 {
		t.Fatalf("loggedIn=%v keys=%d", m.IsLoggedIn(), mem.Keys())
	}
}

func TestRegisterKeepsServerID(t *testing.T) {
	auth := &fakeAuth{result: AuthResult{User: &model.User{ID: "42", Name: "Bo", Email: "bo@x.com"}, Token: "tok"}}
	m, _, _ := newTestManager(t, storage.NewMemory(), auth)
	u, err := m.Register(context.Background(), Registration{Name: "Bo", Email: "bo@x.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID != "42" || m.UserID() != "42" {
		t.Fatalf("id = %q / %q", u.ID, m.UserID())
	}
}

func TestLogoutSwallowsRemoteFailure(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	auth := &fakeAuth{
		result:    AuthResult{User: &model.User{Email: "a@x.com"}, Token: "tok"},
		logoutErr: errors.New("network down"),
	}
	m, rec, navs := newTestManager(t, mem, auth)
	if _, err := m.Login(ctx, Credentials{Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}

	m.Logout(ctx)
	if auth.logouts != 1 {
		t.Fatalf("remote logout calls = %d", auth.logouts)
	}
	if m.IsLoggedIn() || m.State() != StateUnauthenticated {
		t.Fatalf("still logged in")
	}
	if mem.Keys() != 0 {
		t.Fatalf("keys left = %d", mem.Keys())
	}
	if rec.ended != 1 || *navs != 1 {
		t.Fatalf("ended=%d navs=%d", rec.ended, *navs)
	}
}

func TestValidateAuth(t *testing.T) {
	ctx := context.Background()

	t.Run("no user", func(t *testing.T) {
		auth := &fakeAuth{valid: true}
		m, _, _ := newTestManager(t, storage.NewMemory(), auth)
		if m.ValidateAuth(ctx) {
			t.Fatalf("expected false without a user")
		}
		if auth.validates != 0 {
			t.Fatalf("remote consulted without a user")
		}
	})

	for name, auth := range map[string]*fakeAuth{
		"invalid": {valid: false},
		"error":   {valid: true, validErr: errors.New("timeout")},
	} {
		t.Run(name, func(t *testing.T) {
			mem := storage.NewMemory()
			auth.result = AuthResult{User: &model.User{Email: "a@x.com"}, Token: "tok"}
			m, rec, navs := newTestManager(t, mem, auth)
			if _, err := m.Login(ctx, Credentials{Email: "a@x.com", Password: "pw"}); err != nil {
				t.Fatalf("Login: %v", err)
			}
			if m.ValidateAuth(ctx) {
				t.Fatalf("expected false")
			}
			if m.IsLoggedIn() || mem.Keys() != 0 {
				t.Fatalf("session not cleared")
			}
			if rec.ended != 1 || *navs != 0 {
				t.Fatalf("ended=%d navs=%d", rec.ended, *navs)
			}
		})
	}

	t.Run("valid", func(t *testing.T) {
		auth := &fakeAuth{valid: true, result: AuthResult{User: &model.User{Email: "a@x.com"}, Token: "tok"}}
		m, rec, _ := newTestManager(t, storage.NewMemory(), auth)
		if _, err := m.Login(ctx, Credentials{Email: "a@x.com", Password: "pw"}); err != nil {
			t.Fatalf("Login: %v", err)
		}
		if !m.ValidateAuth(ctx) {
			t.Fatalf("expected true")
		}
		if len(rec.started) != 2 {
			t.Fatalf("reload not triggered: %d", len(rec.started))
		}
	})
}

func TestInitAuthRestoresAndRunsOnce(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	logger := utils.DiscardLogger("session")
	if err := NewTokenStore(mem, 0, nil, logger).SetToken(ctx, "tok"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if _, err := NewProfileStore(mem, nil, logger).SetUser(ctx, model.User{Email: "a@x.com"}); err != nil {
		t.Fatalf("SetUser: %v", err)
	}

	auth := &fakeAuth{valid: true}
	m, rec, _ := newTestManager(t, mem, auth)
	if m.State() != StateAuthenticated {
		t.Fatalf("initial state = %s", m.State())
	}
	if !m.InitAuth(ctx) || !m.InitAuth(ctx) {
		t.Fatalf("InitAuth should report true")
	}
	if auth.validates != 1 || len(rec.started) != 1 {
		t.Fatalf("validates=%d started=%d", auth.validates, len(rec.started))
	}
	if !m.Ready() {
		t.Fatalf("not ready")
	}
}

func TestInitAuthWithoutToken(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	if _, err := NewProfileStore(mem, nil, nil).SetUser(ctx, model.User{Email: "a@x.com"}); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	auth := &fakeAuth{valid: true}
	m, _, _ := newTestManager(t, mem, auth)
	if m.InitAuth(ctx) {
		t.Fatalf("expected false without a token")
	}
	if m.IsLoggedIn() || !m.Ready() || auth.validates != 0 {
		t.Fatalf("loggedIn=%v ready=%v validates=%d", m.IsLoggedIn(), m.Ready(), auth.validates)
	}
}

func TestExpiredTokenAtStartup(t *testing.T) {
	ctx := context.Background()
	mem := storage.NewMemory()
	past := time.Now().Add(-48 * time.Hour)
	if err := NewTokenStore(mem, 0, func() time.Time { return past }, nil).SetToken(ctx, "old"); err != nil {
		t.Fatalf("SetToken: %v", err)
	}
	if _, err := NewProfileStore(mem, nil, nil).SetUser(ctx, model.User{Email: "a@x.com"}); err != nil {
		t.Fatalf("SetUser: %v", err)
	}
	m, _, _ := newTestManager(t, mem, &fakeAuth{valid: true})
	if m.IsLoggedIn() {
		t.Fatalf("expired token must not authenticate")
	}
	if _, ok := NewProfileStore(mem, nil, nil).GetUser(ctx); ok {
		t.Fatalf("profile should be gone after the expired read")
	}
}

func TestUpdateProfileKeepsID(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{result: AuthResult{User: &model.User{Email: "a@x.com", Name: "A"}, Token: "tok"}}
	m, _, _ := newTestManager(t, storage.NewMemory(), auth)

	name := "Alice"
	if _, err := m.UpdateProfile(ctx, ProfilePatch{Name: &name}); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v", err)
	}
	if _, err := m.Login(ctx, Credentials{Email: "a@x.com", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	email := "alice@elsewhere.org"
	u, err := m.UpdateProfile(ctx, ProfilePatch{Name: &name, Email: &email})
	if err != nil {
		t.Fatalf("UpdateProfile: %v", err)
	}
	if u.ID != "a" || u.Name != "Alice" || u.Email != email {
		t.Fatalf("profile = %+v", u)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	auth := &fakeAuth{valid: true, result: AuthResult{User: &model.User{Email: "a@x.com"}, Token: "tok"}}
	m, _, _ := newTestManager(t, storage.NewMemory(), auth)
	if err := m.ChangePassword(ctx, "old", "new"); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("err = %v", err)
	}
	if _, err := m.Login(ctx, Credentials{Email: "a@x.com", Password: "old"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := m.ChangePassword(ctx, "old", "new"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if auth.passChange != 1 || auth.validates != 1 {
		t.Fatalf("passChange=%d validates=%d", auth.passChange, auth.validates)
	}

	auth.passErr = remoteErr{msg: "current password is wrong"}
	if err := m.ChangePassword(ctx, "bad", "new"); err == nil {
		t.Fatalf("expected error")
	}
	if !m.IsLoggedIn() {
		t.Fatalf("failed password change should keep the session")
	}
}

func TestSimulatorLogin(t *testing.T) {
	sim := Simulator{Now: func() time.Time { return time.UnixMilli(7) }}
	res, err := sim.Login(context.Background(), Credentials{Email: "Jo@x.com", Password: "pw"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.User.ID != "jo" || res.User.Name != "User Jo" {
		t.Fatalf("user = %+v", res.User)
	}
	if res.Token == "" {
		t.Fatalf("empty token")
	}
	if ok, _ := sim.ValidateToken(context.Background(), res.Token); !ok {
		t.Fatalf("simulator token should validate")
	}
}
