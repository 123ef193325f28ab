package handler

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/valetpark/valetpark/internal/engine"
	"github.com/valetpark/valetpark/internal/model"
)

var validate = validator.New()

// BookingHandler serves the public submission endpoint.  It shapes the
// form payload into a submit request; the engine owns all further
// validation and assignment.
type BookingHandler struct {
	Engine *engine.Engine
}

// NewBookingHandler constructs a BookingHandler.
func NewBookingHandler(e *engine.Engine) *BookingHandler { return &BookingHandler{Engine: e} }

type invoiceReq struct {
	CompanyName string `json:"company_name" validate:"required"`
	VATNumber   string `json:"vat_number"`
	Street      string `json:"street" validate:"required"`
	PostalCode  string `json:"postal_code" validate:"required"`
	City        string `json:"city" validate:"required"`
	Country     string `json:"country" validate:"required"`
}

type submitReq struct {
	Arrival           string      `json:"arrival" validate:"required"`
	Departure         string      `json:"departure" validate:"required"`
	VehicleCount      int         `json:"vehicle_count" validate:"min=1,max=5"`
	LicensePlates     []string    `json:"license_plates" validate:"required,dive,required"`
	PassengerCount    int         `json:"passenger_count" validate:"min=0"`
	CarKeysHandedOver bool        `json:"car_keys_handed_over"`
	PriceCents        int64       `json:"price_cents" validate:"min=0"`
	Invoice           *invoiceReq `json:"invoice"`
}

// Submit handles POST /v1/reservations.  On success it returns the created
// record, including the booking code the customer keeps.
func (h *BookingHandler) Submit(c echo.Context) error {
	var req submitReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := validate.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	arrival, err := time.Parse(time.RFC3339, req.Arrival)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "arrival must be RFC3339"})
	}
	departure, err := time.Parse(time.RFC3339, req.Departure)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "departure must be RFC3339"})
	}

	var invoice *model.Invoice
	if req.Invoice != nil {
		invoice = &model.Invoice{
			CompanyName: req.Invoice.CompanyName,
			VATNumber:   req.Invoice.VATNumber,
			Street:      req.Invoice.Street,
			PostalCode:  req.Invoice.PostalCode,
			City:        req.Invoice.City,
			Country:     req.Invoice.Country,
		}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := h.Engine.Submit(ctx, engine.SubmitRequest{
		Arrival:           arrival,
		Departure:         departure,
		VehicleCount:      req.VehicleCount,
		LicensePlates:     req.LicensePlates,
		PassengerCount:    req.PassengerCount,
		CarKeysHandedOver: req.CarKeysHandedOver,
		PriceCents:        req.PriceCents,
		Invoice:           invoice,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}
