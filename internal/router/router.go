// Package router wires the HTTP routes to their handlers and guards.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/valetpark/valetpark/internal/auth"
	"github.com/valetpark/valetpark/internal/handler"
	"github.com/valetpark/valetpark/internal/middleware"
)

// Register mounts all routes on the echo instance.  The public surface
// (health, booking submission, login) needs no session; everything under
// /v1/admin runs behind session verification, with user management
// additionally behind the manage-users permission.
func Register(e *echo.Echo, sessions *auth.Manager, perms auth.PermissionTable,
	authH *handler.AuthHandler, bookingH *handler.BookingHandler,
	adminH *handler.AdminReservationHandler, usersH *handler.UserHandler) {

	e.GET("/healthz", handler.Health)
	e.POST("/v1/reservations", bookingH.Submit)
	e.POST("/v1/auth/login", authH.Login)

	admin := e.Group("/v1/admin")
	admin.Use(middleware.Session(sessions))

	admin.GET("/reservations", adminH.List)
	admin.GET("/reservations/:id", adminH.Get)
	admin.PUT("/reservations/:id", adminH.Update)
	admin.DELETE("/reservations/:id", adminH.Delete)
	admin.POST("/reservations/:id/accept", adminH.Accept)
	admin.POST("/reservations/:id/cancel", adminH.Cancel)
	admin.POST("/reservations/:id/arrive", adminH.MarkArrived)
	admin.POST("/reservations/:id/no-show", adminH.MarkNoShow)
	admin.POST("/reservations/:id/checkout", adminH.Checkout)
	admin.GET("/capacity", adminH.Capacity)

	users := admin.Group("/users")
	users.Use(middleware.RequirePermission(perms, auth.PermManageUsers))
	users.POST("", usersH.Create)
	users.GET("", usersH.List)
	users.PUT("/:id", usersH.Update)
}
