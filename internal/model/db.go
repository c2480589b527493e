package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// TransactionType* classify an inbound C2B notification.
const (
	TransactionTypeLicense = "license"
	TransactionTypeSale    = "sale"
)

// Sale statuses. A sale is recorded "completed" at checkout time whether or
// not the mpesa payment has landed yet; "paid" is signalled separately by a
// non-nil MpesaReceipt.
const (
	SaleStatusCompleted = "completed"
	SaleStatusRefunded  = "refunded"
	SaleStatusVoid      = "void"
)

const (
	PaymentMethodCash  = "cash"
	PaymentMethodMpesa = "mpesa"
)

// License payment statuses.
const (
	LicenseStatusPending  = "pending"
	LicenseStatusApproved = "approved"
	LicenseStatusRejected = "rejected"
)

// Enumerated keys of the shop settings side-channel. The desktop channel is
// the only writer of these; nothing else should invent keys.
const (
	SettingDesktopLastAuth      = "desktop_last_auth"
	SettingDesktopLastHeartbeat = "desktop_last_heartbeat"
	SettingDesktopMachineID     = "desktop_machine_id"
	SettingDesktopAppVersion    = "desktop_app_version"
	SettingDesktopSessionToken  = "desktop_session_token"
	SettingDesktopStatus        = "desktop_status"
	SettingDesktopOnline        = "desktop_online"
	SettingPendingCommands      = "pending_commands"
)

// System setting keys read by the payment classifier and license activator.
const (
	SettingKeyLicensePaymentType   = "license_payment_type" // "phone" or "till"
	SettingKeyLicensePaymentNumber = "license_payment_number"
	SettingKeyLicensePaymentName   = "license_payment_name"
	SettingKeyLicenseAmount        = "license_amount"
)

type Shop struct {
	ID             uint   `gorm:"primaryKey"`
	Name           string `gorm:"size:100;not null"`
	OwnerName      string `gorm:"size:100;not null"`
	Email          string `gorm:"size:120;not null"`
	Phone          string `gorm:"size:15;index;not null"`
	Address        string
	TillNumber     string `gorm:"size:20;uniqueIndex"`
	LicenseExpires *time.Time
	IsActive       bool              `gorm:"default:false"`
	Settings       datatypes.JSONMap `gorm:"type:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsLicenseActive is the single gate used everywhere shop-level operations
// are allowed. A shop with no expiry is never active.
func (s *Shop) IsLicenseActive() bool {
	return s.IsActive && s.LicenseExpires != nil && s.LicenseExpires.After(time.Now().UTC())
}

type Product struct {
	ID            uint   `gorm:"primaryKey"`
	Name          string `gorm:"size:200;not null"`
	Description   string
	Price         decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Barcode       string          `gorm:"size:100;uniqueIndex"`
	SKU           string          `gorm:"size:100"`
	StockQuantity int             `gorm:"default:0"`
	ShopID        uint            `gorm:"index;not null"`
	IsActive      bool            `gorm:"default:true"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Sale struct {
	ID            uint            `gorm:"primaryKey"`
	ReceiptNumber string          `gorm:"size:50;uniqueIndex;not null"`
	ShopID        uint            `gorm:"index;not null"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	PaymentMethod string          `gorm:"size:20;not null"`
	MpesaReceipt  *string         `gorm:"size:100"`
	CustomerPhone string          `gorm:"size:15"`
	CustomerName  string          `gorm:"size:100"`
	Status        string          `gorm:"size:20;default:completed"`
	CreatedAt     time.Time
}

// MpesaTransaction is the durable ledger entry for one inbound C2B
// notification. TransactionID is the gateway-issued dedup key; IsProcessed
// flips to true at most once, when the payment is matched and consumed.
type MpesaTransaction struct {
	ID              uint            `gorm:"primaryKey"`
	TransactionType string          `gorm:"size:20;not null"`
	TransactionID   string          `gorm:"size:100;uniqueIndex;not null"`
	BillRefNumber   string          `gorm:"size:100"`
	Amount          decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	MSISDN          string          `gorm:"size:15;not null"`
	FirstName       string          `gorm:"size:100"`
	MiddleName      string          `gorm:"size:100"`
	LastName        string          `gorm:"size:100"`
	TransactionTime time.Time       `gorm:"not null"`
	ShopID          *uint           `gorm:"index"`
	SaleID          *uint           `gorm:"index"`
	IsProcessed     bool            `gorm:"default:false"`
	CreatedAt       time.Time
}

// CustomerName joins the payer name parts the way the gateway splits them.
func (t *MpesaTransaction) CustomerName() string {
	name := t.FirstName
	if t.MiddleName != "" {
		name += " " + t.MiddleName
	}
	if t.LastName != "" {
		name += " " + t.LastName
	}
	return name
}

type LicensePayment struct {
	ID                 uint            `gorm:"primaryKey"`
	ShopID             uint            `gorm:"index;not null"`
	Amount             decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	MpesaTransactionID string          `gorm:"size:100;uniqueIndex"`
	PaymentDate        time.Time       `gorm:"not null"`
	LicenseStart       time.Time       `gorm:"not null"`
	LicenseEnd         time.Time       `gorm:"not null"`
	ApprovedBy         string          `gorm:"size:100"` // "system" for the automatic path
	Status             string          `gorm:"size:20;default:pending"`
	CreatedAt          time.Time
}

type SystemSetting struct {
	ID          uint   `gorm:"primaryKey"`
	Key         string `gorm:"size:100;uniqueIndex;not null"`
	Value       string
	Description string
	UpdatedAt   time.Time
}
