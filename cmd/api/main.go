package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"comolor-pos/internal/client"
	"comolor-pos/internal/config"
	"comolor-pos/internal/repository"
	"comolor-pos/internal/server"
	"comolor-pos/internal/service"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Printf("Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	db := client.InitSqliteClient(cfg.DatabaseURL)
	mpesaClient := client.NewMpesaClient(&cfg.Mpesa)

	transactionRepo := repository.NewTransactionRepository(db)
	saleRepo := repository.NewSaleRepository(db)
	shopRepo := repository.NewShopRepository(db)
	productRepo := repository.NewProductRepository(db)
	licensePaymentRepo := repository.NewLicensePaymentRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	licenseService := service.NewLicenseService(
		db,
		transactionRepo,
		shopRepo,
		licensePaymentRepo,
		settingRepo,
	)
	paymentService := service.NewPaymentService(
		db,
		mpesaClient,
		licenseService,
		transactionRepo,
		saleRepo,
		shopRepo,
		settingRepo,
	)
	desktopService := service.NewDesktopService(&cfg.Desktop, cfg.BaseURL, shopRepo, productRepo)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port

	// Init HTTP server
	srv := server.NewServer(paymentService, licenseService, desktopService)

	log.Println("Starting HTTP server on", serverAddr)
	go func() {
		if err := srv.Start(serverAddr); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	<-sigChan
	log.Println("Signal received, starting graceful shutdown...")

	_, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(); err != nil {
		log.Fatal("HTTP server shutdown error")
	}
}
