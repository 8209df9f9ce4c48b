package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-cart/internal/config"
	"github.com/iliyamo/cinema-ticket-cart/internal/middleware"
	"github.com/iliyamo/cinema-ticket-cart/internal/model"
	"github.com/iliyamo/cinema-ticket-cart/internal/repository"
	"github.com/iliyamo/cinema-ticket-cart/internal/utils"
)

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t}
}

// ----- DTOs -----

type registerReq struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email,max=191"`
	Password string `json:"password" validate:"required,min=6"`
	Avatar   string `json:"avatar" validate:"omitempty,url,max=512"`
}
type loginReq struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}
type passwordReq struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type authResp struct {
	User      model.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

func publicUser(a model.Account) model.User {
	return model.User{ID: strconv.FormatUint(a.ID, 10), Name: a.Name, Email: a.Email, Avatar: a.Avatar}
}

func (h *AuthHandler) issue(c echo.Context, status int, a model.Account) error {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, a.ID, a.Email, h.Cfg.AccessTTL)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue token failed"})
	}
	return c.JSON(status, authResp{User: publicUser(a), Token: access.Token, ExpiresAt: access.Exp})
}

// Register: create the account and return a token immediately.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Name, req.Email, req.Avatar, req.Password, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		c.Logger().Errorf("create user: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}
	return h.issue(c, http.StatusCreated, model.Account{
		ID:     uid,
		Name:   req.Name,
		Email:  repository.NormalizeEmail(req.Email),
		Avatar: req.Avatar,
	})
}

// Login: verify credentials and return a fresh token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	a, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		c.Logger().Errorf("load user: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(a.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	return h.issue(c, http.StatusOK, a)
}

// account loads the authenticated user. A deleted account answers 401.
func (h *AuthHandler) account(c echo.Context) (model.Account, error) {
	uid, ok := middleware.UserID(c)
	if !ok {
		return model.Account{}, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	a, err := h.Users.GetByID(ctx, uid)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Account{}, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unknown user"})
	}
	if err != nil {
		c.Logger().Errorf("load user %d: %v", uid, err)
		return model.Account{}, c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	return a, nil
}

// Validate answers whether the bearer token is still accepted. It runs
// behind JWTAuth, so reaching it means the token verified and was not
// revoked.
func (h *AuthHandler) Validate(c echo.Context) error {
	a, err := h.account(c)
	if err != nil || a.ID == 0 {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": true, "user": publicUser(a)})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c echo.Context) error {
	a, err := h.account(c)
	if err != nil || a.ID == 0 {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{"user": publicUser(a)})
}

// Logout revokes the bearer token until it expires.
func (h *AuthHandler) Logout(c echo.Context) error {
	hash, _ := c.Get(middleware.CtxTokenHash).(string)
	exp, _ := c.Get(middleware.CtxTokenExp).(time.Time)
	if hash == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if exp.IsZero() {
		exp = time.Now().Add(h.Cfg.AccessTTL)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Tokens.Revoke(ctx, hash, exp); err != nil {
		c.Logger().Errorf("revoke token: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// ChangePassword replaces the password after checking the current one.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req passwordReq
	if err := bindValid(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	a, err := h.account(c)
	if err != nil || a.ID == 0 {
		return err
	}
	if !utils.VerifyPassword(a.PasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current password is incorrect"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Users.UpdatePassword(ctx, a.ID, req.NewPassword, h.Cfg.BcryptCost); err != nil {
		c.Logger().Errorf("update password for %d: %v", a.ID, err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update password failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
