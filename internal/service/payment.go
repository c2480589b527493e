package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"comolor-pos/internal/client"
	"comolor-pos/internal/dto"
	"comolor-pos/internal/model"
	"comolor-pos/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// amountTolerance absorbs currency rounding between the gateway and the
// recorded sale total. Strictly less than one minor unit cent.
var amountTolerance = decimal.New(1, -2) // 0.01

// saleMatchWindow bounds the status-poll re-match: only transactions seen
// this close to (or after) the sale's creation are considered.
const saleMatchWindow = 5 * time.Minute

type PaymentService interface {
	// ProcessNotification ingests one C2B confirmation: classify, dedup,
	// persist, then hand off to the license activator or the sale matcher.
	// An unmatchable payment is not an error here; it stays in the ledger
	// unprocessed for later reconciliation.
	ProcessNotification(ctx context.Context, payload *model.C2BPayload) error

	// ValidateNotification pre-screens a payment for the gateway's
	// validation callback. Default is accept; only a TILL-prefixed
	// reference naming no shop is rejected.
	ValidateNotification(ctx context.Context, payload *model.C2BPayload) error

	// PaymentStatus reports whether a sale has been paid, opportunistically
	// re-running the match against unprocessed ledger entries first.
	PaymentStatus(ctx context.Context, saleID uint) (*dto.PaymentStatusResponse, error)

	SimulatePayment(ctx context.Context, saleID uint, phone string) error
	RegisterShopWebhooks(ctx context.Context, shopID uint, baseURL string) error
	VerifySignature(payload []byte, signature string) bool
}

type paymentServiceImpl struct {
	db              *gorm.DB
	mpesaClient     client.MpesaClient
	licenseService  LicenseService
	transactionRepo repository.TransactionRepository
	saleRepo        repository.SaleRepository
	shopRepo        repository.ShopRepository
	settingRepo     repository.SettingRepository
}

func NewPaymentService(
	db *gorm.DB,
	mpesaClient client.MpesaClient,
	licenseService LicenseService,
	transactionRepo repository.TransactionRepository,
	saleRepo repository.SaleRepository,
	shopRepo repository.ShopRepository,
	settingRepo repository.SettingRepository,
) PaymentService {
	return &paymentServiceImpl{
		db:              db,
		mpesaClient:     mpesaClient,
		licenseService:  licenseService,
		transactionRepo: transactionRepo,
		saleRepo:        saleRepo,
		shopRepo:        shopRepo,
		settingRepo:     settingRepo,
	}
}

func (s *paymentServiceImpl) ProcessNotification(ctx context.Context, payload *model.C2BPayload) error {
	if payload.TransID == "" || payload.BusinessShortCode == "" || payload.TransAmount == "" {
		return ErrMalformedNotification
	}

	amount, err := decimal.NewFromString(payload.TransAmount)
	if err != nil || amount.IsNegative() {
		return ErrMalformedNotification
	}

	txType, err := s.classify(ctx, payload)
	if err != nil {
		return fmt.Errorf("classify notification: %w", err)
	}

	exists, err := s.transactionRepo.Exists(ctx, payload.TransID)
	if err != nil {
		return fmt.Errorf("ledger lookup: %w", err)
	}
	if exists {
		return ErrDuplicateTransaction
	}

	txn := &model.MpesaTransaction{
		TransactionType: txType,
		TransactionID:   payload.TransID,
		BillRefNumber:   strings.ToUpper(strings.TrimSpace(payload.BillRefNumber)),
		Amount:          amount,
		MSISDN:          payload.MSISDN,
		FirstName:       payload.FirstName,
		MiddleName:      payload.MiddleName,
		LastName:        payload.LastName,
		TransactionTime: model.ParseTransTime(payload.TransTime),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transactionRepo.Create(ctx, tx, txn); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		switch txType {
		case model.TransactionTypeLicense:
			return s.licenseService.ProcessLicenseTransaction(ctx, tx, txn)
		default:
			return s.matchSalePayment(ctx, tx, txn, payload.BusinessShortCode)
		}
	})

	if err != nil {
		// The unique index on transaction_id is the dedup backstop when two
		// deliveries race past the Exists check.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateTransaction
		}
		return err
	}

	return nil
}

// classify decides license vs sale. The operator's collection number is
// resolved from settings on every call; when none is configured everything
// is a sale payment.
func (s *paymentServiceImpl) classify(ctx context.Context, payload *model.C2BPayload) (string, error) {
	number, err := s.settingRepo.Get(ctx, model.SettingKeyLicensePaymentNumber, "")
	if err != nil {
		return "", err
	}

	if number != "" && payload.BusinessShortCode == number {
		return model.TransactionTypeLicense, nil
	}
	return model.TransactionTypeSale, nil
}

// matchSalePayment links the transaction to the shop owning the target till
// and tries to claim that shop's most recent unpaid sale with a fitting
// amount. Losing the claim race retries the search once; after that the
// transaction is left unprocessed for the poll path or manual lookup.
func (s *paymentServiceImpl) matchSalePayment(ctx context.Context, tx *gorm.DB, txn *model.MpesaTransaction, businessCode string) error {
	shop, err := s.shopRepo.FindByTillNumber(ctx, businessCode)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("sale payment %s: no shop owns till %s, leaving unmatched", txn.TransactionID, businessCode)
			return nil
		}
		return fmt.Errorf("find shop by till: %w", err)
	}

	if err := s.transactionRepo.LinkShop(ctx, tx, txn.TransactionID, shop.ID); err != nil {
		return fmt.Errorf("link transaction to shop: %w", err)
	}
	txn.ShopID = &shop.ID

	for attempt := 0; attempt < 2; attempt++ {
		sales, err := s.saleRepo.FindMatchable(ctx, tx, shop.ID)
		if err != nil {
			return fmt.Errorf("find matchable sales: %w", err)
		}

		sale := firstAmountFit(sales, txn.Amount)
		if sale == nil {
			log.Printf("sale payment %s: no pending sale at shop %d for %s", txn.TransactionID, shop.ID, txn.Amount)
			return nil
		}

		err = s.saleRepo.Claim(ctx, tx, sale.ID, txn.TransactionID, txn.MSISDN, txn.CustomerName())
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// A concurrent matcher claimed this sale; its winner may have
			// freed a different candidate, so search once more.
			continue
		}
		if err != nil {
			return fmt.Errorf("claim sale: %w", err)
		}

		if err := s.transactionRepo.MarkProcessed(ctx, tx, txn.TransactionID, &shop.ID, &sale.ID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrAlreadyProcessed
			}
			return fmt.Errorf("mark transaction processed: %w", err)
		}

		txn.SaleID = &sale.ID
		txn.IsProcessed = true
		log.Printf("matched mpesa payment %s to sale %d", txn.TransactionID, sale.ID)
		return nil
	}

	log.Printf("sale payment %s: lost claim race twice, leaving unmatched", txn.TransactionID)
	return nil
}

func firstAmountFit(sales []*model.Sale, amount decimal.Decimal) *model.Sale {
	for _, sale := range sales {
		if amountsMatch(sale.TotalAmount, amount) {
			return sale
		}
	}
	return nil
}

func amountsMatch(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(amountTolerance)
}

func (s *paymentServiceImpl) ValidateNotification(ctx context.Context, payload *model.C2BPayload) error {
	ref := strings.TrimSpace(payload.BillRefNumber)

	// Ambiguous references are accepted; only a TILL-prefixed reference
	// that names no shop is refused.
	if strings.HasPrefix(ref, "TILL") {
		_, err := s.shopRepo.FindByTillNumber(ctx, ref)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrShopNotFound
		}
		if err != nil {
			return fmt.Errorf("validate till reference: %w", err)
		}
	}

	return nil
}

func (s *paymentServiceImpl) PaymentStatus(ctx context.Context, saleID uint) (*dto.PaymentStatusResponse, error) {
	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("find sale: %w", err)
	}

	if sale.MpesaReceipt != nil {
		return &dto.PaymentStatusResponse{
			Status:        "completed",
			MpesaReceipt:  *sale.MpesaReceipt,
			CustomerPhone: sale.CustomerPhone,
			CustomerName:  sale.CustomerName,
			Amount:        sale.TotalAmount,
		}, nil
	}

	// Opportunistic re-match: a notification that arrived slightly out of
	// order gets picked up by the next poll. Same claim guards as the
	// webhook path.
	matched, err := s.rematch(ctx, sale)
	if err != nil {
		return nil, err
	}
	if matched != nil {
		return matched, nil
	}

	resp := &dto.PaymentStatusResponse{
		Status: "pending",
		Amount: sale.TotalAmount,
	}
	if shop, err := s.shopRepo.FindByID(ctx, sale.ShopID); err == nil {
		resp.TillNumber = shop.TillNumber
	}

	return resp, nil
}

func (s *paymentServiceImpl) rematch(ctx context.Context, sale *model.Sale) (*dto.PaymentStatusResponse, error) {
	since := sale.CreatedAt.Add(-saleMatchWindow)
	txns, err := s.transactionRepo.FindRecentUnprocessed(ctx, sale.ShopID, since)
	if err != nil {
		return nil, fmt.Errorf("find recent transactions: %w", err)
	}

	for _, txn := range txns {
		if !amountsMatch(sale.TotalAmount, txn.Amount) {
			continue
		}

		claimErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.saleRepo.Claim(ctx, tx, sale.ID, txn.TransactionID, txn.MSISDN, txn.CustomerName()); err != nil {
				return err
			}
			return s.transactionRepo.MarkProcessed(ctx, tx, txn.TransactionID, &sale.ShopID, &sale.ID)
		})

		if errors.Is(claimErr, gorm.ErrRecordNotFound) {
			// Lost to a concurrent matcher on either side; try the next
			// candidate.
			continue
		}
		if claimErr != nil {
			return nil, fmt.Errorf("claim during poll: %w", claimErr)
		}

		log.Printf("poll matched mpesa payment %s to sale %d", txn.TransactionID, sale.ID)
		return &dto.PaymentStatusResponse{
			Status:        "completed",
			MpesaReceipt:  txn.TransactionID,
			CustomerPhone: txn.MSISDN,
			CustomerName:  txn.CustomerName(),
			Amount:        sale.TotalAmount,
		}, nil
	}

	return nil, nil
}

func (s *paymentServiceImpl) SimulatePayment(ctx context.Context, saleID uint, phone string) error {
	sale, err := s.saleRepo.FindByID(ctx, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSaleNotFound
		}
		return fmt.Errorf("find sale: %w", err)
	}

	shop, err := s.shopRepo.FindByID(ctx, sale.ShopID)
	if err != nil {
		return fmt.Errorf("find shop: %w", err)
	}
	if shop.TillNumber == "" {
		return ErrNotConfigured
	}

	return s.mpesaClient.SimulateC2BPayment(ctx, sale.TotalAmount.StringFixed(2), phone, shop.TillNumber)
}

func (s *paymentServiceImpl) RegisterShopWebhooks(ctx context.Context, shopID uint, baseURL string) error {
	shop, err := s.shopRepo.FindByID(ctx, shopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrShopNotFound
		}
		return fmt.Errorf("find shop: %w", err)
	}
	if shop.TillNumber == "" {
		return ErrNotConfigured
	}

	confirmationURL := baseURL + "/mpesa/c2b/confirmation"
	validationURL := baseURL + "/mpesa/c2b/validation"

	return s.mpesaClient.RegisterC2BURLs(ctx, shop.TillNumber, confirmationURL, validationURL)
}

func (s *paymentServiceImpl) VerifySignature(payload []byte, signature string) bool {
	return s.mpesaClient.ValidateWebhookSignature(payload, signature)
}
