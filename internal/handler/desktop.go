package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"comolor-pos/internal/dto"
	"comolor-pos/internal/service"

	"github.com/labstack/echo/v4"
)

type DesktopHandler struct {
	desktopService service.DesktopService
}

func NewDesktopHandler(desktopService service.DesktopService) *DesktopHandler {
	return &DesktopHandler{
		desktopService: desktopService,
	}
}

func (h *DesktopHandler) Authenticate(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.AuthenticateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	resp, err := h.desktopService.Authenticate(ctx, &req)
	if err != nil {
		log.Printf("desktop authentication error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "authentication system error")
	}

	if resp.Status != "authorized" {
		return c.JSON(http.StatusUnauthorized, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *DesktopHandler) Heartbeat(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.HeartbeatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	resp, err := h.desktopService.Heartbeat(ctx, &req)
	if errors.Is(err, service.ErrSessionInvalid) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid session token")
	}
	if err != nil {
		log.Printf("heartbeat error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "heartbeat failed")
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *DesktopHandler) Sync(c echo.Context) error {
	ctx := c.Request().Context()

	shopID, err := strconv.ParseUint(c.Param("shop_id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid shop id")
	}

	var req dto.SyncRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	resp, err := h.desktopService.Sync(ctx, uint(shopID), &req)
	if errors.Is(err, service.ErrSessionInvalid) {
		return echo.NewHTTPError(http.StatusUnauthorized)
	}
	if err != nil {
		log.Printf("sync error for shop %d: %v", shopID, err)
		return echo.NewHTTPError(http.StatusInternalServerError, "sync failed")
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *DesktopHandler) LicenseCheck(c echo.Context) error {
	ctx := c.Request().Context()

	shopID, err := strconv.ParseUint(c.Param("shop_id"), 10, 32)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid shop id")
	}

	resp, err := h.desktopService.LicenseCheck(ctx, uint(shopID))
	if errors.Is(err, service.ErrShopNotFound) {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	if err != nil {
		log.Printf("license check error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "license check failed")
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *DesktopHandler) RemoteCommand(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.RemoteCommandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	err := h.desktopService.QueueRemoteCommand(ctx, &req)
	if errors.Is(err, service.ErrShopNotFound) {
		return echo.NewHTTPError(http.StatusNotFound)
	}
	if err != nil {
		log.Printf("remote command error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "command failed")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Command queued for shop",
	})
}
