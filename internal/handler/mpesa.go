package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"comolor-pos/internal/dto"
	"comolor-pos/internal/model"
	"comolor-pos/internal/service"

	"github.com/labstack/echo/v4"
)

const signatureHeader = "X-Mpesa-Signature"

type MpesaHandler struct {
	paymentService service.PaymentService
	licenseService service.LicenseService
}

func NewMpesaHandler(paymentService service.PaymentService, licenseService service.LicenseService) *MpesaHandler {
	return &MpesaHandler{
		paymentService: paymentService,
		licenseService: licenseService,
	}
}

// C2BConfirmation receives the gateway's payment notification. The response
// shape {ResultCode, ResultDesc} is a gateway compatibility requirement;
// code 0 acknowledges, anything else rejects.
func (h *MpesaHandler) C2BConfirmation(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, model.C2BFailure("No data received"))
	}

	if signature := c.Request().Header.Get(signatureHeader); signature != "" {
		if !h.paymentService.VerifySignature(body, signature) {
			log.Println("invalid webhook signature")
			return c.JSON(http.StatusUnauthorized, model.C2BFailure("Invalid signature"))
		}
	}

	var payload model.C2BPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.JSON(http.StatusBadRequest, model.C2BFailure("No data received"))
	}

	err = h.paymentService.ProcessNotification(ctx, &payload)
	switch {
	case errors.Is(err, service.ErrDuplicateTransaction):
		// Gateway retries must be acknowledged, not re-processed.
		log.Printf("transaction %s already exists", payload.TransID)
		return c.JSON(http.StatusOK, model.C2BSuccess("Transaction already processed"))
	case errors.Is(err, service.ErrMalformedNotification):
		return c.JSON(http.StatusBadRequest, model.C2BFailure("Payment processing failed"))
	case err != nil:
		log.Printf("error processing mpesa callback: %v", err)
		return c.JSON(http.StatusInternalServerError, model.C2BFailure("Internal server error"))
	}

	return c.JSON(http.StatusOK, model.C2BSuccess("Success"))
}

// C2BValidation pre-screens a payment before the confirmation call. Accepts
// by default; ambiguous input must not be rejected.
func (h *MpesaHandler) C2BValidation(c echo.Context) error {
	ctx := c.Request().Context()

	var payload model.C2BPayload
	if err := c.Bind(&payload); err != nil {
		return c.JSON(http.StatusBadRequest, model.C2BFailure("No data received"))
	}

	err := h.paymentService.ValidateNotification(ctx, &payload)
	if errors.Is(err, service.ErrShopNotFound) {
		return c.JSON(http.StatusOK, model.C2BFailure("Invalid Till Number"))
	}
	if err != nil {
		log.Printf("error in mpesa validation: %v", err)
		return c.JSON(http.StatusInternalServerError, model.C2BFailure("Validation failed"))
	}

	log.Printf("mpesa validation passed: bill ref %s amount %s", payload.BillRefNumber, payload.TransAmount)
	return c.JSON(http.StatusOK, model.C2BSuccess("Success"))
}

// C2BTimeout notes that the gateway gave up on a delivery. Log only.
func (h *MpesaHandler) C2BTimeout(c echo.Context) error {
	body, _ := io.ReadAll(c.Request().Body)
	log.Printf("mpesa timeout received: %s", string(body))

	return c.JSON(http.StatusOK, model.C2BSuccess("Timeout received"))
}

func (h *MpesaHandler) PaymentStatus(c echo.Context) error {
	ctx := c.Request().Context()

	saleID, err := strconv.ParseUint(c.Param("sale_id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid sale id")
	}

	status, err := h.paymentService.PaymentStatus(ctx, uint(saleID))
	if errors.Is(err, service.ErrSaleNotFound) {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	if err != nil {
		log.Printf("error checking payment status: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to check payment status")
	}

	return c.JSON(http.StatusOK, status)
}

func (h *MpesaHandler) SimulatePayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.SimulatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.Phone == "" {
		req.Phone = "254712345678"
	}

	err := h.paymentService.SimulatePayment(ctx, req.SaleID, req.Phone)
	switch {
	case errors.Is(err, service.ErrSaleNotFound):
		return echo.NewHTTPError(http.StatusNotFound)
	case errors.Is(err, service.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusBadRequest, "shop till number not configured")
	case err != nil:
		log.Printf("error simulating payment: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "payment simulation failed")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Payment simulation initiated",
	})
}

func (h *MpesaHandler) RegisterShopWebhooks(c echo.Context) error {
	ctx := c.Request().Context()

	shopID, err := strconv.ParseUint(c.Param("shop_id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid shop id")
	}

	baseURL := c.Scheme() + "://" + c.Request().Host

	err = h.paymentService.RegisterShopWebhooks(ctx, uint(shopID), baseURL)
	switch {
	case errors.Is(err, service.ErrShopNotFound):
		return echo.NewHTTPError(http.StatusNotFound)
	case errors.Is(err, service.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusBadRequest, "shop till number not configured")
	case err != nil:
		log.Printf("error registering webhook: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to register webhook urls")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Webhook URLs registered",
	})
}

func (h *MpesaHandler) PayLicense(c echo.Context) error {
	ctx := c.Request().Context()

	shopID, err := strconv.ParseUint(c.Param("shop_id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid shop id")
	}

	instructions, err := h.licenseService.Instructions(ctx, uint(shopID))
	switch {
	case errors.Is(err, service.ErrNotConfigured):
		return echo.NewHTTPError(http.StatusBadRequest, "license payment not configured, contact system administrator")
	case errors.Is(err, service.ErrShopNotFound):
		return echo.NewHTTPError(http.StatusNotFound)
	case err != nil:
		return err
	}

	return c.JSON(http.StatusOK, instructions)
}

func (h *MpesaHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "Comolor POS MPesa Integration",
	})
}
