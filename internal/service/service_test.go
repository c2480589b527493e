package service

import (
	"context"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"comolor-pos/internal/config"
	"comolor-pos/internal/model"
	"comolor-pos/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}

	if err := db.AutoMigrate(
		&model.Shop{},
		&model.Product{},
		&model.Sale{},
		&model.MpesaTransaction{},
		&model.LicensePayment{},
		&model.SystemSetting{},
	); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	return db
}

// fakeMpesaClient stands in for the Daraja gateway; outbound calls are
// recorded, signature checks always pass.
type fakeMpesaClient struct {
	simulated  []string
	registered []string
}

func (f *fakeMpesaClient) GetAccessToken(ctx context.Context) (string, error) {
	return "test-token", nil
}

func (f *fakeMpesaClient) RegisterC2BURLs(ctx context.Context, tillNumber, confirmationURL, validationURL string) error {
	f.registered = append(f.registered, tillNumber)
	return nil
}

func (f *fakeMpesaClient) SimulateC2BPayment(ctx context.Context, amount, msisdn, billRefNumber string) error {
	f.simulated = append(f.simulated, billRefNumber)
	return nil
}

func (f *fakeMpesaClient) ValidateWebhookSignature(payload []byte, signature string) bool {
	return true
}

type engine struct {
	db       *gorm.DB
	gateway  *fakeMpesaClient
	payments PaymentService
	licenses LicenseService
	desktop  DesktopService

	txns     repository.TransactionRepository
	sales    repository.SaleRepository
	shops    repository.ShopRepository
	products repository.ProductRepository
	charges  repository.LicensePaymentRepository
	settings repository.SettingRepository
}

func newEngine(t *testing.T) *engine {
	t.Helper()

	db := newTestDB(t)
	gateway := &fakeMpesaClient{}

	txns := repository.NewTransactionRepository(db)
	sales := repository.NewSaleRepository(db)
	shops := repository.NewShopRepository(db)
	products := repository.NewProductRepository(db)
	charges := repository.NewLicensePaymentRepository(db)
	settings := repository.NewSettingRepository(db)

	licenses := NewLicenseService(db, txns, shops, charges, settings)
	payments := NewPaymentService(db, gateway, licenses, txns, sales, shops, settings)
	desktop := NewDesktopService(&config.Desktop{
		SecretKey:  "test-secret",
		APIVersion: "1.0.0",
		MinVersion: "1.0.0",
	}, "http://localhost:8080", shops, products)

	return &engine{
		db:       db,
		gateway:  gateway,
		payments: payments,
		licenses: licenses,
		desktop:  desktop,
		txns:     txns,
		sales:    sales,
		shops:    shops,
		products: products,
		charges:  charges,
		settings: settings,
	}
}

func (e *engine) configureLicenseCollection(t *testing.T, payType, number, amount string) {
	t.Helper()
	ctx := context.Background()

	for key, value := range map[string]string{
		model.SettingKeyLicensePaymentType:   payType,
		model.SettingKeyLicensePaymentNumber: number,
		model.SettingKeyLicenseAmount:        amount,
	} {
		if err := e.settings.Set(ctx, key, value); err != nil {
			t.Fatalf("set setting %s: %v", key, err)
		}
	}
}

func (e *engine) createShop(t *testing.T, name, phone, till string) *model.Shop {
	t.Helper()

	shop := &model.Shop{
		Name:       name,
		OwnerName:  name + " Owner",
		Email:      name + "@example.com",
		Phone:      phone,
		TillNumber: till,
	}
	if err := e.shops.Create(context.Background(), shop); err != nil {
		t.Fatalf("create shop: %v", err)
	}
	return shop
}

func (e *engine) createSale(t *testing.T, shopID uint, amount string, createdAt time.Time) *model.Sale {
	t.Helper()

	sale := &model.Sale{
		ReceiptNumber: uuid.NewString(),
		ShopID:        shopID,
		TotalAmount:   decimal.RequireFromString(amount),
		PaymentMethod: model.PaymentMethodMpesa,
		Status:        model.SaleStatusCompleted,
		CreatedAt:     createdAt,
	}
	if err := e.sales.Create(context.Background(), e.db, sale); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	return sale
}

func (e *engine) reloadTransaction(t *testing.T, transactionID string) *model.MpesaTransaction {
	t.Helper()

	txn, err := e.txns.FindByTransactionID(context.Background(), transactionID)
	if err != nil {
		t.Fatalf("reload transaction %s: %v", transactionID, err)
	}
	return txn
}

func (e *engine) reloadSale(t *testing.T, saleID uint) *model.Sale {
	t.Helper()

	sale, err := e.sales.FindByID(context.Background(), saleID)
	if err != nil {
		t.Fatalf("reload sale %d: %v", saleID, err)
	}
	return sale
}

func (e *engine) reloadShop(t *testing.T, shopID uint) *model.Shop {
	t.Helper()

	shop, err := e.shops.FindByID(context.Background(), shopID)
	if err != nil {
		t.Fatalf("reload shop %d: %v", shopID, err)
	}
	return shop
}

func salePayload(transID, till, amount, phone string) *model.C2BPayload {
	return &model.C2BPayload{
		TransactionType:   "Pay Bill",
		TransID:           transID,
		TransTime:         model.FormatTransTime(time.Now().UTC()),
		TransAmount:       amount,
		BusinessShortCode: till,
		MSISDN:            phone,
		FirstName:         "John",
		LastName:          "Doe",
	}
}

func licensePayload(transID, collectionNumber, ref, amount, phone string) *model.C2BPayload {
	p := salePayload(transID, collectionNumber, amount, phone)
	p.BillRefNumber = ref
	return p
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
