package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/valetpark/valetpark/internal/capacity"
	"github.com/valetpark/valetpark/internal/engine"
	"github.com/valetpark/valetpark/internal/model"
)

// AdminReservationHandler exposes the lifecycle operations and the
// administrative reservation endpoints to authenticated operators.
type AdminReservationHandler struct {
	Engine *engine.Engine
}

// NewAdminReservationHandler constructs an AdminReservationHandler.
func NewAdminReservationHandler(e *engine.Engine) *AdminReservationHandler {
	return &AdminReservationHandler{Engine: e}
}

// List handles GET /v1/admin/reservations with an optional ?status filter.
func (h *AdminReservationHandler) List(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	out, err := h.Engine.List(ctx, a, model.Status(c.QueryParam("status")))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"reservations": out})
}

// Get handles GET /v1/admin/reservations/:id.
func (h *AdminReservationHandler) Get(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Engine.Get(ctx, a, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type editReq struct {
	LicensePlates     []string             `json:"license_plates"`
	PassengerCount    *int                 `json:"passenger_count"`
	CarKeysHandedOver *bool                `json:"car_keys_handed_over"`
	PriceCents        *int64               `json:"price_cents"`
	PaymentStatus     *model.PaymentStatus `json:"payment_status"`
	Invoice           *model.Invoice       `json:"invoice"`
}

// Update handles PUT /v1/admin/reservations/:id, the administrative edit.
func (h *AdminReservationHandler) Update(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req editReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Engine.UpdateDetails(ctx, a, c.Param("id"), engine.EditRequest{
		LicensePlates:     req.LicensePlates,
		PassengerCount:    req.PassengerCount,
		CarKeysHandedOver: req.CarKeysHandedOver,
		PriceCents:        req.PriceCents,
		PaymentStatus:     req.PaymentStatus,
		Invoice:           req.Invoice,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Delete handles DELETE /v1/admin/reservations/:id.
func (h *AdminReservationHandler) Delete(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.Engine.Delete(ctx, a, c.Param("id")); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type acceptReq struct {
	Override bool `json:"override"`
}

// Accept handles POST /v1/admin/reservations/:id/accept.  A capacity
// conflict answers 409 with the per-day breakdown; the client may repeat
// the call with override set.
func (h *AdminReservationHandler) Accept(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req acceptReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Engine.Accept(ctx, a, c.Param("id"), req.Override)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

type reasonReq struct {
	Reason string `json:"reason"`
}

// Cancel handles POST /v1/admin/reservations/:id/cancel.
func (h *AdminReservationHandler) Cancel(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req reasonReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Engine.Cancel(ctx, a, c.Param("id"), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// MarkArrived handles POST /v1/admin/reservations/:id/arrive.
func (h *AdminReservationHandler) MarkArrived(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Engine.MarkArrived(ctx, a, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// MarkNoShow handles POST /v1/admin/reservations/:id/no-show.
func (h *AdminReservationHandler) MarkNoShow(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	var req reasonReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Engine.MarkNoShow(ctx, a, c.Param("id"), req.Reason)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Checkout handles POST /v1/admin/reservations/:id/checkout.
func (h *AdminReservationHandler) Checkout(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Engine.Checkout(ctx, a, c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Capacity handles GET /v1/admin/capacity?from=...&to=...&vehicles=N&keys=true.
// It previews an admission decision without touching any record.
func (h *AdminReservationHandler) Capacity(c echo.Context) error {
	a, err := actor(c)
	if err != nil {
		return err
	}
	from, err := time.Parse(time.RFC3339, c.QueryParam("from"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be RFC3339"})
	}
	to, err := time.Parse(time.RFC3339, c.QueryParam("to"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be RFC3339"})
	}
	vehicles := 1
	if raw := c.QueryParam("vehicles"); raw != "" {
		vehicles, err = strconv.Atoi(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "vehicles must be an integer"})
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	eval, err := h.Engine.PreviewCapacity(ctx, a, capacity.Request{
		Arrival:           from,
		Departure:         to,
		VehicleCount:      vehicles,
		CarKeysHandedOver: c.QueryParam("keys") == "true",
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, eval)
}
