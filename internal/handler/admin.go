package handler

import (
	"errors"
	"net/http"

	"comolor-pos/internal/dto"
	"comolor-pos/internal/middleware"
	"comolor-pos/internal/service"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// AdminHandler is the operator surface for the manual reconciliation queue.
type AdminHandler struct {
	licenseService service.LicenseService
}

func NewAdminHandler(licenseService service.LicenseService) *AdminHandler {
	return &AdminHandler{
		licenseService: licenseService,
	}
}

func (h *AdminHandler) PendingLicensePayments(c echo.Context) error {
	ctx := c.Request().Context()

	pending, err := h.licenseService.PendingReview(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, pending)
}

// ApproveLicensePayment binds a reviewed transaction to a shop. A
// transaction consumed by a concurrent automatic path is reported
// distinctly, not retried.
func (h *AdminHandler) ApproveLicensePayment(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ManualApprovalRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}
	if req.TransactionID == "" || req.ShopID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "transaction_id and shop_id are required")
	}

	err := h.licenseService.ManualApprove(ctx, req.TransactionID, req.ShopID, middleware.OperatorID(c))
	switch {
	case errors.Is(err, service.ErrAlreadyProcessed):
		return echo.NewHTTPError(http.StatusConflict, "transaction already processed")
	case errors.Is(err, service.ErrShopNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "shop not found")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "transaction not found")
	case err != nil:
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status": "approved",
	})
}

func (h *AdminHandler) LicenseStats(c echo.Context) error {
	ctx := c.Request().Context()

	stats, err := h.licenseService.Stats(ctx)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, stats)
}
