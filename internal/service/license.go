package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"comolor-pos/internal/dto"
	"comolor-pos/internal/model"
	"comolor-pos/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// shopRefPrefix tags a bill reference that names a shop id directly, e.g.
// "SHOP42". Payment instructions hand this reference to the shop owner.
const shopRefPrefix = "SHOP"

const licensePeriodDays = 30

const defaultLicenseAmount = "3000"

type LicenseService interface {
	// ProcessLicenseTransaction runs the automatic activation path for a
	// freshly recorded license transaction inside the caller's db
	// transaction. An unidentifiable shop is not an error; the transaction
	// stays unprocessed in the review queue.
	ProcessLicenseTransaction(ctx context.Context, tx *gorm.DB, txn *model.MpesaTransaction) error

	// ManualApprove binds a reviewed transaction to a shop and activates
	// it. Fails with ErrAlreadyProcessed when an automatic or concurrent
	// path consumed the transaction first.
	ManualApprove(ctx context.Context, transactionID string, shopID uint, approvedBy string) error

	PendingReview(ctx context.Context) ([]*model.MpesaTransaction, error)
	Stats(ctx context.Context) (*dto.LicenseStats, error)

	// Instructions builds the shop-facing payment steps for the operator's
	// configured collection channel.
	Instructions(ctx context.Context, shopID uint) (*dto.PaymentInstructions, error)
}

type licenseServiceImpl struct {
	db                 *gorm.DB
	transactionRepo    repository.TransactionRepository
	shopRepo           repository.ShopRepository
	licensePaymentRepo repository.LicensePaymentRepository
	settingRepo        repository.SettingRepository
}

func NewLicenseService(
	db *gorm.DB,
	transactionRepo repository.TransactionRepository,
	shopRepo repository.ShopRepository,
	licensePaymentRepo repository.LicensePaymentRepository,
	settingRepo repository.SettingRepository,
) LicenseService {
	return &licenseServiceImpl{
		db:                 db,
		transactionRepo:    transactionRepo,
		shopRepo:           shopRepo,
		licensePaymentRepo: licensePaymentRepo,
		settingRepo:        settingRepo,
	}
}

func (s *licenseServiceImpl) ProcessLicenseTransaction(ctx context.Context, tx *gorm.DB, txn *model.MpesaTransaction) error {
	shop, err := s.resolveShop(ctx, txn)
	if err != nil {
		return fmt.Errorf("resolve paying shop: %w", err)
	}

	if shop == nil {
		log.Printf("license payment %s: no shop identified, queued for manual review", txn.TransactionID)
		return nil
	}

	if err := s.approve(ctx, tx, txn, shop, "system"); err != nil {
		return fmt.Errorf("approve license payment: %w", err)
	}

	log.Printf("license payment %s auto-approved for shop %d", txn.TransactionID, shop.ID)
	return nil
}

// resolveShop tries the identification heuristics in strict priority order:
// shop-id reference tag, then till number, then payer phone. First match
// wins; nil means manual review.
func (s *licenseServiceImpl) resolveShop(ctx context.Context, txn *model.MpesaTransaction) (*model.Shop, error) {
	ref := strings.ToUpper(strings.TrimSpace(txn.BillRefNumber))

	if digits, ok := strings.CutPrefix(ref, shopRefPrefix); ok {
		if id, err := strconv.ParseUint(digits, 10, 32); err == nil {
			shop, err := s.shopRepo.FindByID(ctx, uint(id))
			if err == nil {
				return shop, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, err
			}
		}
	}

	if ref != "" {
		shop, err := s.shopRepo.FindByTillNumber(ctx, ref)
		if err == nil {
			return shop, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if txn.MSISDN != "" {
		shop, err := s.shopRepo.FindByPhone(ctx, txn.MSISDN)
		if err == nil {
			return shop, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	return nil, nil
}

// approve consumes the transaction and applies the new license window. The
// guarded processed-flag update runs first so a concurrent activation of the
// same transaction rolls this one back before any credit is written.
func (s *licenseServiceImpl) approve(ctx context.Context, tx *gorm.DB, txn *model.MpesaTransaction, shop *model.Shop, approvedBy string) error {
	if err := s.transactionRepo.MarkProcessed(ctx, tx, txn.TransactionID, &shop.ID, nil); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAlreadyProcessed
		}
		return fmt.Errorf("mark transaction processed: %w", err)
	}

	periods, err := s.licensePeriods(ctx, txn.Amount)
	if err != nil {
		return err
	}

	start := time.Now().UTC()
	end := start.Add(time.Duration(periods) * licensePeriodDays * 24 * time.Hour)

	payment := &model.LicensePayment{
		ShopID:             shop.ID,
		Amount:             txn.Amount,
		MpesaTransactionID: txn.TransactionID,
		PaymentDate:        txn.TransactionTime,
		LicenseStart:       start,
		LicenseEnd:         end,
		ApprovedBy:         approvedBy,
		Status:             model.LicenseStatusApproved,
	}
	if err := s.licensePaymentRepo.Create(ctx, tx, payment); err != nil {
		return fmt.Errorf("create license payment record: %w", err)
	}

	if err := s.shopRepo.ActivateLicense(ctx, tx, shop.ID, end); err != nil {
		return fmt.Errorf("activate shop license: %w", err)
	}

	txn.IsProcessed = true
	txn.ShopID = &shop.ID
	return nil
}

// licensePeriods converts the paid amount to whole 30-day periods at the
// configured period price, never less than one. An underpayment still buys a
// single period rather than a zero-length window.
func (s *licenseServiceImpl) licensePeriods(ctx context.Context, amount decimal.Decimal) (int64, error) {
	priceStr, err := s.settingRepo.Get(ctx, model.SettingKeyLicenseAmount, defaultLicenseAmount)
	if err != nil {
		return 0, fmt.Errorf("read license amount setting: %w", err)
	}

	price, err := decimal.NewFromString(priceStr)
	if err != nil || !price.IsPositive() {
		price = decimal.RequireFromString(defaultLicenseAmount)
	}

	periods := amount.Div(price).IntPart()
	if periods < 1 {
		periods = 1
	}
	return periods, nil
}

func (s *licenseServiceImpl) ManualApprove(ctx context.Context, transactionID string, shopID uint, approvedBy string) error {
	txn, err := s.transactionRepo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("transaction %s: %w", transactionID, gorm.ErrRecordNotFound)
		}
		return fmt.Errorf("find transaction: %w", err)
	}
	if txn.IsProcessed {
		return ErrAlreadyProcessed
	}

	shop, err := s.shopRepo.FindByID(ctx, shopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrShopNotFound
		}
		return fmt.Errorf("find shop: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.approve(ctx, tx, txn, shop, approvedBy)
	})
}

func (s *licenseServiceImpl) PendingReview(ctx context.Context) ([]*model.MpesaTransaction, error) {
	return s.transactionRepo.ListUnprocessedLicense(ctx)
}

func (s *licenseServiceImpl) Stats(ctx context.Context) (*dto.LicenseStats, error) {
	count, err := s.licensePaymentRepo.CountApproved(ctx)
	if err != nil {
		return nil, fmt.Errorf("count approved payments: %w", err)
	}

	revenue, err := s.licensePaymentRepo.SumApprovedAmount(ctx)
	if err != nil {
		return nil, fmt.Errorf("sum approved payments: %w", err)
	}

	pending, err := s.transactionRepo.ListUnprocessedLicense(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}

	pendingAmount := decimal.Zero
	for _, txn := range pending {
		pendingAmount = pendingAmount.Add(txn.Amount)
	}

	return &dto.LicenseStats{
		TotalPayments: count,
		TotalRevenue:  revenue,
		PendingCount:  len(pending),
		PendingAmount: pendingAmount,
	}, nil
}

func (s *licenseServiceImpl) Instructions(ctx context.Context, shopID uint) (*dto.PaymentInstructions, error) {
	payType, err := s.settingRepo.Get(ctx, model.SettingKeyLicensePaymentType, "phone")
	if err != nil {
		return nil, err
	}
	number, err := s.settingRepo.Get(ctx, model.SettingKeyLicensePaymentNumber, "")
	if err != nil {
		return nil, err
	}
	name, err := s.settingRepo.Get(ctx, model.SettingKeyLicensePaymentName, "Super Admin")
	if err != nil {
		return nil, err
	}
	amount, err := s.settingRepo.Get(ctx, model.SettingKeyLicenseAmount, defaultLicenseAmount)
	if err != nil {
		return nil, err
	}

	if number == "" {
		return nil, ErrNotConfigured
	}

	if _, err := s.shopRepo.FindByID(ctx, shopID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, fmt.Errorf("find shop: %w", err)
	}

	reference := fmt.Sprintf("%s%d", shopRefPrefix, shopID)

	steps := []string{
		"1. Go to M-Pesa menu on your phone",
		"2. Select 'Send Money'",
		fmt.Sprintf("3. Enter phone number: %s", number),
		fmt.Sprintf("4. Enter amount: KES %s", amount),
		fmt.Sprintf("5. For reference/reason: %s", reference),
		"6. Complete with your M-Pesa PIN",
	}
	if payType == "till" {
		steps = []string{
			"1. Go to M-Pesa menu on your phone",
			"2. Select 'Lipa na M-Pesa'",
			"3. Select 'Buy Goods and Services'",
			fmt.Sprintf("4. Enter till number: %s", number),
			fmt.Sprintf("5. Enter amount: KES %s", amount),
			fmt.Sprintf("6. For reference: %s", reference),
			"7. Complete with your M-Pesa PIN",
		}
	}

	return &dto.PaymentInstructions{
		Type:         payType,
		Number:       number,
		Name:         name,
		Amount:       amount,
		Reference:    reference,
		Instructions: steps,
		USSD:         fmt.Sprintf("*150*01*%s*%s#", number, amount),
		Note:         "Payment will be processed automatically once received",
	}, nil
}
