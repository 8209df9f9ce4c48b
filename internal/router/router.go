// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/cinema-ticket-cart/internal/handler"
)

// RegisterRoutes registers routes that do not require authentication or
// rate limiting.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAPI registers the /v1 API. limiter wraps every /v1 route;
// jwtAuth guards everything except login and registration.
func RegisterAPI(e *echo.Echo, a *handler.AuthHandler, b *handler.BookingHandler, jwtAuth, limiter echo.MiddlewareFunc) {
	v1 := e.Group("/v1", limiter)

	pub := v1.Group("/auth")
	pub.POST("/register", a.Register)
	pub.POST("/login", a.Login)

	authed := v1.Group("", jwtAuth)
	authed.GET("/auth/validate", a.Validate)
	authed.POST("/auth/logout", a.Logout)
	authed.POST("/auth/password", a.ChangePassword)
	authed.GET("/me", a.Me)

	authed.POST("/bookings", b.Create)
	authed.GET("/bookings", b.List)
	authed.GET("/bookings/:id", b.Get)
	authed.PUT("/bookings/:id/cancel", b.Cancel)
	authed.GET("/bookings/:id/ticket.pdf", b.Ticket)
}
