package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"comolor-pos/internal/config"
	"comolor-pos/internal/dto"
	"comolor-pos/internal/model"
	"comolor-pos/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	heartbeatInterval = 60    // seconds
	syncInterval      = 300   // 5 minutes
	offlineDuration   = 86400 // 24 hours max offline
)

// graceDays is the read-only window a desktop client keeps past expiry.
// Policy of this endpoint only; the license gate itself stays strict.
const graceDays = 7

// DesktopService is the heartbeat/sync channel for installed POS clients.
// It reads license state and delivers queued operator commands; it never
// mutates license state itself.
type DesktopService interface {
	Authenticate(ctx context.Context, req *dto.AuthenticateRequest) (*dto.AuthenticateResponse, error)
	Heartbeat(ctx context.Context, req *dto.HeartbeatRequest) (*dto.HeartbeatResponse, error)
	Sync(ctx context.Context, shopID uint, req *dto.SyncRequest) (*dto.SyncResponse, error)
	LicenseCheck(ctx context.Context, shopID uint) (*dto.LicenseCheckResponse, error)
	QueueRemoteCommand(ctx context.Context, req *dto.RemoteCommandRequest) error
}

type desktopServiceImpl struct {
	cfg         *config.Desktop
	baseURL     string
	shopRepo    repository.ShopRepository
	productRepo repository.ProductRepository
}

func NewDesktopService(cfg *config.Desktop, baseURL string, shopRepo repository.ShopRepository, productRepo repository.ProductRepository) DesktopService {
	return &desktopServiceImpl{
		cfg:         cfg,
		baseURL:     baseURL,
		shopRepo:    shopRepo,
		productRepo: productRepo,
	}
}

// InstallationKey derives the per-shop key a desktop install authenticates
// with. Deterministic so the operator can regenerate it for a shop.
func InstallationKey(shopID uint, tillNumber, secret string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s:%s", shopID, tillNumber, secret)))
	return hex.EncodeToString(sum[:])[:24]
}

func sessionToken(shopID uint, machineID, secret string) string {
	timestamp := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d:%s:%s", shopID, machineID, timestamp)
	return hex.EncodeToString(mac.Sum(nil))[:32]
}

func (s *desktopServiceImpl) Authenticate(ctx context.Context, req *dto.AuthenticateRequest) (*dto.AuthenticateResponse, error) {
	if req.ShopID == 0 || req.InstallationKey == "" || req.MachineID == "" {
		return unauthorized("Missing required authentication data"), nil
	}

	shop, err := s.shopRepo.FindByID(ctx, req.ShopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return unauthorized("Shop not found"), nil
		}
		return nil, fmt.Errorf("find shop: %w", err)
	}

	if !shop.IsActive {
		return unauthorized("Shop is inactive"), nil
	}
	if !shop.IsLicenseActive() {
		return unauthorized("License expired - please renew"), nil
	}
	if req.InstallationKey != InstallationKey(shop.ID, shop.TillNumber, s.cfg.SecretKey) {
		return unauthorized("Invalid installation key"), nil
	}
	if req.AppVersion < s.cfg.MinVersion {
		return unauthorized(fmt.Sprintf("App version %s outdated. Minimum required: %s", req.AppVersion, s.cfg.MinVersion)), nil
	}

	token := sessionToken(shop.ID, req.MachineID, s.cfg.SecretKey)

	settings := shop.Settings
	if settings == nil {
		settings = datatypes.JSONMap{}
	}
	settings[model.SettingDesktopLastAuth] = time.Now().UTC().Format(time.RFC3339)
	settings[model.SettingDesktopMachineID] = req.MachineID
	settings[model.SettingDesktopAppVersion] = req.AppVersion
	settings[model.SettingDesktopSessionToken] = token

	if err := s.shopRepo.UpdateSettings(ctx, shop.ID, settings); err != nil {
		return nil, fmt.Errorf("store desktop session: %w", err)
	}

	log.Printf("desktop app authenticated: shop_id=%d machine_id=%s", shop.ID, req.MachineID)

	return &dto.AuthenticateResponse{
		Status:       "authorized",
		Message:      "Authentication successful",
		SessionToken: token,
		Config: &dto.ShopConfig{
			ShopID:     shop.ID,
			ShopName:   shop.Name,
			TillNumber: shop.TillNumber,
			OwnerName:  shop.OwnerName,
			Settings:   settings,
			ServerConfig: dto.ServerConfig{
				BaseURL:           s.baseURL,
				APIVersion:        s.cfg.APIVersion,
				HeartbeatInterval: heartbeatInterval,
				SyncInterval:      syncInterval,
				OfflineDuration:   offlineDuration,
			},
		},
		ServerTime: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func unauthorized(message string) *dto.AuthenticateResponse {
	return &dto.AuthenticateResponse{
		Status:  "unauthorized",
		Message: message,
	}
}

func (s *desktopServiceImpl) verifySession(shop *model.Shop, token, machineID string) bool {
	if shop.Settings == nil || token == "" {
		return false
	}
	storedToken, _ := shop.Settings[model.SettingDesktopSessionToken].(string)
	storedMachine, _ := shop.Settings[model.SettingDesktopMachineID].(string)
	return token == storedToken && machineID == storedMachine
}

func (s *desktopServiceImpl) Heartbeat(ctx context.Context, req *dto.HeartbeatRequest) (*dto.HeartbeatResponse, error) {
	shop, err := s.shopRepo.FindByID(ctx, req.ShopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("find shop: %w", err)
	}

	if !s.verifySession(shop, req.SessionToken, req.MachineID) {
		return nil, ErrSessionInvalid
	}

	settings := shop.Settings
	settings[model.SettingDesktopLastHeartbeat] = time.Now().UTC().Format(time.RFC3339)
	settings[model.SettingDesktopStatus] = req.Status
	settings[model.SettingDesktopOnline] = true

	if err := s.shopRepo.UpdateSettings(ctx, shop.ID, settings); err != nil {
		return nil, fmt.Errorf("store heartbeat: %w", err)
	}

	licenseStatus := "expired"
	if shop.IsLicenseActive() {
		licenseStatus = "active"
	}

	// At-least-once delivery: commands stay queued until the client clears
	// them through its own acknowledgement call.
	return &dto.HeartbeatResponse{
		Status:        "success",
		ServerTime:    time.Now().UTC().Format(time.RFC3339),
		LicenseStatus: licenseStatus,
		Commands:      pendingCommands(settings),
		ForceSync:     false,
	}, nil
}

func pendingCommands(settings datatypes.JSONMap) []dto.RemoteCommand {
	raw, _ := settings[model.SettingPendingCommands].([]interface{})
	commands := make([]dto.RemoteCommand, 0, len(raw))
	for _, item := range raw {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		cmd := dto.RemoteCommand{}
		cmd.ID, _ = entry["id"].(string)
		cmd.Command, _ = entry["command"].(string)
		cmd.Params, _ = entry["params"].(map[string]interface{})
		cmd.CreatedAt, _ = entry["created_at"].(string)
		cmd.Executed, _ = entry["executed"].(bool)
		commands = append(commands, cmd)
	}
	return commands
}

func (s *desktopServiceImpl) Sync(ctx context.Context, shopID uint, req *dto.SyncRequest) (*dto.SyncResponse, error) {
	shop, err := s.shopRepo.FindByID(ctx, shopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionInvalid
		}
		return nil, fmt.Errorf("find shop: %w", err)
	}

	if !s.verifySession(shop, req.SessionToken, req.MachineID) {
		return nil, ErrSessionInvalid
	}

	// Data pushed from the client's local cache is accepted but not merged;
	// the server copy stays authoritative.
	if len(req.SyncData) > 0 {
		log.Printf("sync: ignoring %d pushed entries from shop %d", len(req.SyncData), shopID)
	}

	since := time.Now().UTC().Add(-24 * time.Hour)
	if req.LastSync != "" {
		if parsed, err := time.Parse(time.RFC3339, req.LastSync); err == nil {
			since = parsed
		}
	}

	products, err := s.productRepo.ChangedSince(ctx, shopID, since)
	if err != nil {
		return nil, fmt.Errorf("load changed products: %w", err)
	}

	changes := dto.SyncChanges{Products: make([]dto.ProductChange, 0, len(products))}
	for _, p := range products {
		changes.Products = append(changes.Products, dto.ProductChange{
			ID:            p.ID,
			Name:          p.Name,
			Price:         p.Price,
			StockQuantity: p.StockQuantity,
			IsActive:      p.IsActive,
			Action:        "update",
		})
	}

	return &dto.SyncResponse{
		Status:           "success",
		Changes:          changes,
		SyncTimestamp:    time.Now().UTC().Format(time.RFC3339),
		NextSyncInterval: syncInterval,
	}, nil
}

func (s *desktopServiceImpl) LicenseCheck(ctx context.Context, shopID uint) (*dto.LicenseCheckResponse, error) {
	shop, err := s.shopRepo.FindByID(ctx, shopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, fmt.Errorf("find shop: %w", err)
	}

	resp := &dto.LicenseCheckResponse{
		ShopID:        shopID,
		LicenseActive: shop.IsLicenseActive(),
	}

	if shop.LicenseExpires != nil {
		expires := shop.LicenseExpires.UTC().Format(time.RFC3339)
		resp.LicenseExpires = &expires

		daysRemaining := int(time.Until(*shop.LicenseExpires).Hours() / 24)
		if daysRemaining > 0 {
			resp.DaysRemaining = daysRemaining
		}
		resp.GracePeriod = daysRemaining >= -graceDays
		resp.RenewalRequired = daysRemaining <= graceDays
	} else {
		resp.RenewalRequired = true
	}

	return resp, nil
}

func (s *desktopServiceImpl) QueueRemoteCommand(ctx context.Context, req *dto.RemoteCommandRequest) error {
	shop, err := s.shopRepo.FindByID(ctx, req.ShopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrShopNotFound
		}
		return fmt.Errorf("find shop: %w", err)
	}

	settings := shop.Settings
	if settings == nil {
		settings = datatypes.JSONMap{}
	}

	queue, _ := settings[model.SettingPendingCommands].([]interface{})
	queue = append(queue, map[string]interface{}{
		"id":         uuid.NewString(),
		"command":    req.Command,
		"params":     req.Params,
		"created_at": time.Now().UTC().Format(time.RFC3339),
		"executed":   false,
	})
	settings[model.SettingPendingCommands] = queue

	if err := s.shopRepo.UpdateSettings(ctx, shop.ID, settings); err != nil {
		return fmt.Errorf("queue command: %w", err)
	}

	log.Printf("queued command %q for shop %d", req.Command, req.ShopID)
	return nil
}
