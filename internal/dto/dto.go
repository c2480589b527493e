package dto

import "github.com/shopspring/decimal"

type PaymentStatusResponse struct {
	Status        string          `json:"status"` // pending | completed
	MpesaReceipt  string          `json:"mpesa_receipt,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	TillNumber    string          `json:"till_number,omitempty"`
}

type SimulatePaymentRequest struct {
	SaleID uint   `json:"sale_id"`
	Phone  string `json:"phone"`
}

type ManualApprovalRequest struct {
	TransactionID string `json:"transaction_id"`
	ShopID        uint   `json:"shop_id"`
}

type PaymentInstructions struct {
	Type         string   `json:"type"` // phone | till
	Number       string   `json:"number"`
	Name         string   `json:"name"`
	Amount       string   `json:"amount"`
	Reference    string   `json:"reference"`
	Instructions []string `json:"instructions"`
	USSD         string   `json:"ussd"`
	Note         string   `json:"note"`
}

type LicenseStats struct {
	TotalPayments int64           `json:"total_payments"`
	TotalRevenue  decimal.Decimal `json:"total_revenue"`
	PendingCount  int             `json:"pending_count"`
	PendingAmount decimal.Decimal `json:"pending_amount"`
}

type AuthenticateRequest struct {
	ShopID          uint   `json:"shop_id"`
	InstallationKey string `json:"installation_key"`
	AppVersion      string `json:"app_version"`
	MachineID       string `json:"machine_id"`
}

type AuthenticateResponse struct {
	Status       string      `json:"status"`
	Message      string      `json:"message"`
	SessionToken string      `json:"session_token,omitempty"`
	Config       *ShopConfig `json:"config,omitempty"`
	ServerTime   string      `json:"server_time,omitempty"`
}

type ShopConfig struct {
	ShopID       uint           `json:"shop_id"`
	ShopName     string         `json:"shop_name"`
	TillNumber   string         `json:"till_number"`
	OwnerName    string         `json:"owner_name"`
	Settings     map[string]any `json:"settings"`
	ServerConfig ServerConfig   `json:"server_config"`
}

type ServerConfig struct {
	BaseURL           string `json:"base_url"`
	APIVersion        string `json:"api_version"`
	HeartbeatInterval int    `json:"heartbeat_interval"` // seconds
	SyncInterval      int    `json:"sync_interval"`
	OfflineDuration   int    `json:"offline_duration"`
}

type HeartbeatRequest struct {
	ShopID       uint           `json:"shop_id"`
	SessionToken string         `json:"session_token"`
	MachineID    string         `json:"machine_id"`
	Status       map[string]any `json:"status"`
}

type HeartbeatResponse struct {
	Status        string          `json:"status"`
	ServerTime    string          `json:"server_time"`
	LicenseStatus string          `json:"license_status"` // active | expired
	Commands      []RemoteCommand `json:"commands"`
	ForceSync     bool            `json:"force_sync"`
}

type RemoteCommand struct {
	ID        string         `json:"id"`
	Command   string         `json:"command"`
	Params    map[string]any `json:"params"`
	CreatedAt string         `json:"created_at"`
	Executed  bool           `json:"executed"`
}

type SyncRequest struct {
	SessionToken string         `json:"session_token"`
	MachineID    string         `json:"machine_id"`
	SyncData     map[string]any `json:"sync_data"`
	LastSync     string         `json:"last_sync"`
}

type SyncResponse struct {
	Status           string      `json:"status"`
	Changes          SyncChanges `json:"changes"`
	SyncTimestamp    string      `json:"sync_timestamp"`
	NextSyncInterval int         `json:"next_sync_interval"`
}

type SyncChanges struct {
	Products []ProductChange `json:"products"`
}

type ProductChange struct {
	ID            uint            `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	IsActive      bool            `json:"is_active"`
	Action        string          `json:"action"`
}

type LicenseCheckResponse struct {
	ShopID          uint    `json:"shop_id"`
	LicenseActive   bool    `json:"license_active"`
	LicenseExpires  *string `json:"license_expires"`
	DaysRemaining   int     `json:"days_remaining"`
	GracePeriod     bool    `json:"grace_period"`
	RenewalRequired bool    `json:"renewal_required"`
}

type RemoteCommandRequest struct {
	ShopID  uint           `json:"shop_id"`
	Command string         `json:"command"`
	Params  map[string]any `json:"params"`
}
