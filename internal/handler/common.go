// Package handler contains the echo handlers for the public booking
// surface and the admin API.  Handlers translate between HTTP and the
// engine; every decision lives below this layer.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/valetpark/valetpark/internal/auth"
	"github.com/valetpark/valetpark/internal/engine"
	"github.com/valetpark/valetpark/internal/middleware"
)

// opTimeout bounds every store-touching request so no handler can hang on
// a stuck backend.
const opTimeout = 5 * time.Second

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), opTimeout)
}

func actor(c echo.Context) (auth.Actor, error) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		return auth.Actor{}, echo.NewHTTPError(http.StatusUnauthorized, "no session")
	}
	return a, nil
}

// respondError maps the engine's typed errors onto HTTP responses.  A
// capacity conflict is not treated as a failure: the response carries the
// full day breakdown so the client can offer the override choice.
func respondError(c echo.Context, err error) error {
	var (
		validation *engine.ValidationError
		transition *engine.InvalidTransitionError
		conflict   *engine.CapacityConflictError
		notFound   *engine.NotFoundError
		storage    *engine.StorageError
		authz      *auth.AuthorizationError
	)
	switch {
	case errors.As(err, &validation):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": validation.Message,
			"field": validation.Field,
		})
	case errors.As(err, &transition):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":            "invalid transition",
			"current_status":   transition.Current,
			"requested_status": transition.Requested,
		})
	case errors.As(err, &conflict):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":          "capacity conflict",
			"reservation_id": conflict.ReservationID,
			"days":           conflict.Evaluation.Days,
			"over_limit":     conflict.OverLimitDays(),
		})
	case errors.As(err, &notFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.As(err, &authz):
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":               authz.Reason,
			"required_permission": authz.RequiredPermission,
		})
	case errors.As(err, &storage):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "storage unavailable"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
