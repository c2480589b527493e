package server

import (
	"comolor-pos/internal/handler"
	"comolor-pos/internal/middleware"
	"comolor-pos/internal/service"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo           *echo.Echo
	mpesaHandler   *handler.MpesaHandler
	desktopHandler *handler.DesktopHandler
	adminHandler   *handler.AdminHandler
}

func NewServer(
	paymentService service.PaymentService,
	licenseService service.LicenseService,
	desktopService service.DesktopService,
) *Server {
	e := echo.New()

	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	e.Use(echomw.CORS())

	s := &Server{
		echo:           e,
		mpesaHandler:   handler.NewMpesaHandler(paymentService, licenseService),
		desktopHandler: handler.NewDesktopHandler(desktopService),
		adminHandler:   handler.NewAdminHandler(licenseService),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// -------- mpesa gateway callbacks --------
	mpesa := s.echo.Group("/mpesa")
	mpesa.POST("/c2b/confirmation", s.mpesaHandler.C2BConfirmation)
	mpesa.POST("/c2b/validation", s.mpesaHandler.C2BValidation)
	mpesa.POST("/c2b/timeout", s.mpesaHandler.C2BTimeout)

	mpesa.GET("/payment/status/:sale_id", s.mpesaHandler.PaymentStatus)
	mpesa.POST("/payment/simulate", s.mpesaHandler.SimulatePayment)
	mpesa.GET("/register/shop/:shop_id", s.mpesaHandler.RegisterShopWebhooks)
	mpesa.GET("/pay-license/:shop_id", s.mpesaHandler.PayLicense)
	mpesa.GET("/health", s.mpesaHandler.Health)

	// -------- desktop app channel --------
	desktop := s.echo.Group("/api/desktop")
	desktop.POST("/authenticate", s.desktopHandler.Authenticate)
	desktop.POST("/heartbeat", s.desktopHandler.Heartbeat)
	desktop.POST("/sync/:shop_id", s.desktopHandler.Sync)
	desktop.GET("/license-check/:shop_id", s.desktopHandler.LicenseCheck)
	desktop.POST("/remote-command", s.desktopHandler.RemoteCommand, middleware.RequireSuperAdmin())

	// -------- operator review queue --------
	admin := s.echo.Group("/api/admin", middleware.RequireSuperAdmin())
	admin.GET("/license/pending", s.adminHandler.PendingLicensePayments)
	admin.POST("/license/approve", s.adminHandler.ApproveLicensePayment)
	admin.GET("/license/stats", s.adminHandler.LicenseStats)
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
