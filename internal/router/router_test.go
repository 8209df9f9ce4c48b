package router

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-cart/internal/config"
	"github.com/iliyamo/cinema-ticket-cart/internal/handler"
	"github.com/iliyamo/cinema-ticket-cart/internal/middleware"
	"github.com/iliyamo/cinema-ticket-cart/internal/repository"
	"github.com/iliyamo/cinema-ticket-cart/internal/utils"
)

const secret = "router-secret"

func newAPI(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{JWTSecret: secret, AccessTTL: time.Hour, BcryptCost: 4}
	tokens := repository.NewTokenRepo(db)
	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	RegisterRoutes(e)
	RegisterAPI(e,
		handler.NewAuthHandler(cfg, repository.NewUserRepo(db), tokens),
		handler.NewBookingHandler(repository.NewBookingRepo(db), nil),
		middleware.JWTAuth(secret, tokens),
		middleware.NewTokenBucket(config.RateLimitConfig{}, nil),
	)
	return e, mock
}

func do(e *echo.Echo, method, path, token, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func errorOf(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestHealth(t *testing.T) {
	e, _ := newAPI(t)
	if rec := do(e, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestRegisterValidation(t *testing.T) {
	e, _ := newAPI(t)
	cases := []struct {
		body string
		want string
	}{
		{`{"email":"a@x.com","password":"secret"}`, "name is required"},
		{`{"name":"A","email":"nope","password":"secret"}`, "email must be a valid email"},
		{`{"name":"A","email":"a@x.com","password":"123"}`, "password must be at least 6 characters"},
	}
	for _, tc := range cases {
		rec := do(e, http.MethodPost, "/v1/auth/register", "", tc.body)
		if rec.Code != http.StatusBadRequest || errorOf(t, rec) != tc.want {
			t.Fatalf("%s: %d %q", tc.body, rec.Code, rec.Body.String())
		}
	}
}

func TestRegisterValidateLogout(t *testing.T) {
	e, mock := newAPI(t)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(7, 1))
	rec := do(e, http.MethodPost, "/v1/auth/register", "", `{"name":"Ann","email":"Ann@X.com","password":"secret"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("register = %d %s", rec.Code, rec.Body.String())
	}
	var auth struct {
		User  struct{ ID, Email string }
		Token string
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &auth); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if auth.User.ID != "7" || auth.User.Email != "ann@x.com" || auth.Token == "" {
		t.Fatalf("auth = %+v", auth)
	}
	hash := utils.HashToken(auth.Token)

	mock.ExpectQuery("SELECT 1 FROM revoked_tokens").WithArgs(hash).WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("FROM users WHERE id").WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "avatar", "password_hash", "created_at", "updated_at"}).
			AddRow(uint64(7), "Ann", "ann@x.com", "", "x", now, now))
	if rec := do(e, http.MethodGet, "/v1/auth/validate", auth.Token, ""); rec.Code != http.StatusOK {
		t.Fatalf("validate = %d %s", rec.Code, rec.Body.String())
	}

	mock.ExpectQuery("SELECT 1 FROM revoked_tokens").WithArgs(hash).WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT IGNORE INTO revoked_tokens").WithArgs(hash, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	if rec := do(e, http.MethodPost, "/v1/auth/logout", auth.Token, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout = %d %s", rec.Code, rec.Body.String())
	}

	mock.ExpectQuery("SELECT 1 FROM revoked_tokens").WithArgs(hash).
		WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))
	rec = do(e, http.MethodGet, "/v1/auth/validate", auth.Token, "")
	if rec.Code != http.StatusUnauthorized || errorOf(t, rec) != "token revoked" {
		t.Fatalf("validate after logout = %d %s", rec.Code, rec.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLoginRejectsUnknownEmail(t *testing.T) {
	e, mock := newAPI(t)
	mock.ExpectQuery("FROM users WHERE email").WithArgs("who@x.com").WillReturnError(sql.ErrNoRows)
	rec := do(e, http.MethodPost, "/v1/auth/login", "", `{"email":"who@x.com","password":"secret"}`)
	if rec.Code != http.StatusUnauthorized || errorOf(t, rec) != "invalid credentials" {
		t.Fatalf("login = %d %s", rec.Code, rec.Body.String())
	}
}

func TestBookingRoutes(t *testing.T) {
	e, mock := newAPI(t)
	tok, err := utils.NewAccessToken(secret, 7, "ann@x.com", time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	hash := utils.HashToken(tok.Token)
	notRevoked := func() {
		mock.ExpectQuery("SELECT 1 FROM revoked_tokens").WithArgs(hash).WillReturnError(sql.ErrNoRows)
	}

	if rec := do(e, http.MethodGet, "/v1/bookings", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous list = %d", rec.Code)
	}

	notRevoked()
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(1, 1))
	body := `{"bookingId":"booking_7_1_abcdef01","movieId":"tt1","movieTitle":"Dune","date":"2025-04-15","time":"19:30","quantity":2,"pricePerTicket":12,"totalPrice":999}`
	rec := do(e, http.MethodPost, "/v1/bookings", tok.Token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Booking struct {
			BookingID  string  `json:"bookingId"`
			UserID     string  `json:"userId"`
			TotalPrice float64 `json:"totalPrice"`
			Status     string  `json:"status"`
		} `json:"booking"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b := created.Booking; b.BookingID != "booking_7_1_abcdef01" || b.UserID != "7" || b.TotalPrice != 24 || b.Status != "confirmed" {
		t.Fatalf("booking = %+v", b)
	}

	notRevoked()
	rec = do(e, http.MethodPost, "/v1/bookings", tok.Token, `{"movieId":"tt1","date":"15/04/2025","time":"19:30","quantity":1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad date = %d", rec.Code)
	}

	notRevoked()
	mock.ExpectQuery("FROM bookings WHERE booking_id").WithArgs("someone-else", uint64(7)).WillReturnError(sql.ErrNoRows)
	if rec := do(e, http.MethodGet, "/v1/bookings/someone-else", tok.Token, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign booking = %d", rec.Code)
	}

	notRevoked()
	mock.ExpectQuery("FROM bookings WHERE booking_id").WithArgs("b1", uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "booking_id", "user_id", "movie_id", "movie_title", "movie_poster",
			"show_date", "show_time", "quantity", "price_per_ticket", "total_price", "ticket_id", "status", "created_at"}).
			AddRow(uint64(1), "b1", uint64(7), "tt1", "Dune", "", "2025-04-15", "19:30", 2, 12.0, 24.0, "ticket_1", "confirmed", time.Now()))
	rec = do(e, http.MethodGet, "/v1/bookings/b1/ticket.pdf", tok.Token, "")
	if rec.Code != http.StatusOK || rec.Header().Get(echo.HeaderContentType) != "application/pdf" {
		t.Fatalf("ticket = %d %s", rec.Code, rec.Header().Get(echo.HeaderContentType))
	}
	if !strings.HasPrefix(rec.Body.String(), "%PDF") {
		t.Fatalf("ticket body is not a PDF")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
