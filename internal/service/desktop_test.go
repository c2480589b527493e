package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"comolor-pos/internal/dto"
	"comolor-pos/internal/model"

	"github.com/shopspring/decimal"
)

// licenseShop creates a shop with a live license window.
func (e *engine) licenseShop(t *testing.T, name, phone, till string, expires time.Time) *model.Shop {
	t.Helper()

	shop := e.createShop(t, name, phone, till)
	if err := e.shops.ActivateLicense(context.Background(), e.db, shop.ID, expires); err != nil {
		t.Fatalf("activate license: %v", err)
	}
	return e.reloadShop(t, shop.ID)
}

// authenticate runs the full desktop handshake and returns the session token.
func (e *engine) authenticate(t *testing.T, shop *model.Shop, machineID string) string {
	t.Helper()

	resp, err := e.desktop.Authenticate(context.Background(), &dto.AuthenticateRequest{
		ShopID:          shop.ID,
		InstallationKey: InstallationKey(shop.ID, shop.TillNumber, "test-secret"),
		AppVersion:      "1.0.0",
		MachineID:       machineID,
	})
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if resp.Status != "authorized" {
		t.Fatalf("expected authorized, got %s (%s)", resp.Status, resp.Message)
	}
	return resp.SessionToken
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a licensed shop When credentials are valid Then session established with config", func(t *testing.T) {
		// Given
		e := newEngine(t)
		shop := e.licenseShop(t, "Desktop Duka", "254722100001", "710100", time.Now().UTC().Add(30*day))

		// When
		resp, err := e.desktop.Authenticate(ctx, &dto.AuthenticateRequest{
			ShopID:          shop.ID,
			InstallationKey: InstallationKey(shop.ID, shop.TillNumber, "test-secret"),
			AppVersion:      "1.0.0",
			MachineID:       "machine-a",
		})
		if err != nil {
			t.Fatalf("authenticate: %v", err)
		}

		// Then
		if resp.Status != "authorized" || resp.SessionToken == "" {
			t.Fatalf("expected authorized session, got %+v", resp)
		}
		if resp.Config == nil || resp.Config.ShopID != shop.ID || resp.Config.TillNumber != shop.TillNumber {
			t.Fatalf("unexpected shop config: %+v", resp.Config)
		}
		if resp.Config.ServerConfig.HeartbeatInterval != heartbeatInterval {
			t.Errorf("unexpected heartbeat interval %d", resp.Config.ServerConfig.HeartbeatInterval)
		}

		updated := e.reloadShop(t, shop.ID)
		if got, _ := updated.Settings[model.SettingDesktopMachineID].(string); got != "machine-a" {
			t.Errorf("machine id not stored, got %q", got)
		}
		if got, _ := updated.Settings[model.SettingDesktopSessionToken].(string); got != resp.SessionToken {
			t.Error("session token not stored against the shop")
		}
	})

	t.Run("Given bad credentials Then unauthorized without error", func(t *testing.T) {
		e := newEngine(t)
		live := e.licenseShop(t, "Live", "254722100002", "710200", time.Now().UTC().Add(30*day))
		expired := e.licenseShop(t, "Expired", "254722100003", "710300", time.Now().UTC().Add(-1*day))
		inactive := e.createShop(t, "Inactive", "254722100004", "710400")

		goodKey := func(s *model.Shop) string { return InstallationKey(s.ID, s.TillNumber, "test-secret") }

		cases := []struct {
			name    string
			req     *dto.AuthenticateRequest
			message string
		}{
			{
				"missing machine id",
				&dto.AuthenticateRequest{ShopID: live.ID, InstallationKey: goodKey(live), AppVersion: "1.0.0"},
				"Missing required authentication data",
			},
			{
				"unknown shop",
				&dto.AuthenticateRequest{ShopID: 9999, InstallationKey: "whatever", AppVersion: "1.0.0", MachineID: "m"},
				"Shop not found",
			},
			{
				"inactive shop",
				&dto.AuthenticateRequest{ShopID: inactive.ID, InstallationKey: goodKey(inactive), AppVersion: "1.0.0", MachineID: "m"},
				"Shop is inactive",
			},
			{
				"expired license",
				&dto.AuthenticateRequest{ShopID: expired.ID, InstallationKey: goodKey(expired), AppVersion: "1.0.0", MachineID: "m"},
				"License expired - please renew",
			},
			{
				"wrong installation key",
				&dto.AuthenticateRequest{ShopID: live.ID, InstallationKey: "deadbeefdeadbeefdeadbeef", AppVersion: "1.0.0", MachineID: "m"},
				"Invalid installation key",
			},
			{
				"outdated app version",
				&dto.AuthenticateRequest{ShopID: live.ID, InstallationKey: goodKey(live), AppVersion: "0.9.0", MachineID: "m"},
				"App version 0.9.0 outdated. Minimum required: 1.0.0",
			},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				resp, err := e.desktop.Authenticate(ctx, tc.req)
				if err != nil {
					t.Fatalf("authenticate: %v", err)
				}
				if resp.Status != "unauthorized" {
					t.Fatalf("expected unauthorized, got %s", resp.Status)
				}
				if resp.Message != tc.message {
					t.Errorf("expected %q, got %q", tc.message, resp.Message)
				}
				if resp.SessionToken != "" {
					t.Error("no session token may be issued")
				}
			})
		}
	})
}

func TestHeartbeat(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a session When the client heartbeats Then presence recorded and commands delivered until acknowledged", func(t *testing.T) {
		// Given
		e := newEngine(t)
		shop := e.licenseShop(t, "Beating", "254722100010", "720100", time.Now().UTC().Add(30*day))
		token := e.authenticate(t, shop, "machine-a")

		if err := e.desktop.QueueRemoteCommand(ctx, &dto.RemoteCommandRequest{
			ShopID:  shop.ID,
			Command: "update_config",
			Params:  map[string]any{"sync_interval": float64(600)},
		}); err != nil {
			t.Fatalf("queue command: %v", err)
		}

		beat := func() *dto.HeartbeatResponse {
			resp, err := e.desktop.Heartbeat(ctx, &dto.HeartbeatRequest{
				ShopID:       shop.ID,
				SessionToken: token,
				MachineID:    "machine-a",
				Status:       map[string]any{"version": "1.0.0"},
			})
			if err != nil {
				t.Fatalf("heartbeat: %v", err)
			}
			return resp
		}

		// When
		first := beat()

		// Then
		if first.LicenseStatus != "active" {
			t.Errorf("expected active license status, got %s", first.LicenseStatus)
		}
		if len(first.Commands) != 1 || first.Commands[0].Command != "update_config" {
			t.Fatalf("expected queued command delivered, got %+v", first.Commands)
		}
		if first.Commands[0].ID == "" {
			t.Error("delivered command must carry an id")
		}

		// Undelivered commands are redelivered on the next heartbeat; the
		// client clears them through its acknowledgement call.
		second := beat()
		if len(second.Commands) != 1 || second.Commands[0].ID != first.Commands[0].ID {
			t.Errorf("expected same command redelivered, got %+v", second.Commands)
		}

		updated := e.reloadShop(t, shop.ID)
		if _, ok := updated.Settings[model.SettingDesktopLastHeartbeat]; !ok {
			t.Error("last heartbeat not recorded")
		}
		if online, _ := updated.Settings[model.SettingDesktopOnline].(bool); !online {
			t.Error("shop not marked online")
		}
	})

	t.Run("Given a wrong token or machine Then ErrSessionInvalid", func(t *testing.T) {
		e := newEngine(t)
		shop := e.licenseShop(t, "Guarded", "254722100011", "720200", time.Now().UTC().Add(30*day))
		token := e.authenticate(t, shop, "machine-a")

		for name, req := range map[string]*dto.HeartbeatRequest{
			"forged token":  {ShopID: shop.ID, SessionToken: "forged", MachineID: "machine-a"},
			"wrong machine": {ShopID: shop.ID, SessionToken: token, MachineID: "machine-b"},
			"unknown shop":  {ShopID: 9999, SessionToken: token, MachineID: "machine-a"},
		} {
			if _, err := e.desktop.Heartbeat(ctx, req); !errors.Is(err, ErrSessionInvalid) {
				t.Errorf("%s: expected ErrSessionInvalid, got %v", name, err)
			}
		}
	})
}

func TestSync(t *testing.T) {
	ctx := context.Background()

	t.Run("Given changed products When syncing Then only changes after the client's last sync point", func(t *testing.T) {
		// Given
		e := newEngine(t)
		shop := e.licenseShop(t, "Synced", "254722100020", "730100", time.Now().UTC().Add(30*day))
		token := e.authenticate(t, shop, "machine-a")

		stale := &model.Product{Name: "Old Soap", Price: decimal.RequireFromString("120.00"), ShopID: shop.ID, IsActive: true}
		fresh := &model.Product{Name: "New Soap", Price: decimal.RequireFromString("150.00"), StockQuantity: 12, ShopID: shop.ID, IsActive: true}
		for _, p := range []*model.Product{stale, fresh} {
			if err := e.products.Create(ctx, p); err != nil {
				t.Fatalf("create product: %v", err)
			}
		}
		if err := e.db.Model(stale).UpdateColumn("updated_at", time.Now().UTC().Add(-48*time.Hour)).Error; err != nil {
			t.Fatalf("backdate product: %v", err)
		}

		// When
		resp, err := e.desktop.Sync(ctx, shop.ID, &dto.SyncRequest{
			SessionToken: token,
			MachineID:    "machine-a",
			LastSync:     time.Now().UTC().Add(-1 * time.Hour).Format(time.RFC3339),
			SyncData:     map[string]any{"sales": []any{}},
		})
		if err != nil {
			t.Fatalf("sync: %v", err)
		}

		// Then
		if resp.Status != "success" || resp.NextSyncInterval != syncInterval {
			t.Fatalf("unexpected sync envelope: %+v", resp)
		}
		if len(resp.Changes.Products) != 1 {
			t.Fatalf("expected 1 changed product, got %d", len(resp.Changes.Products))
		}
		change := resp.Changes.Products[0]
		if change.ID != fresh.ID || change.Name != "New Soap" || change.Action != "update" {
			t.Errorf("unexpected change payload: %+v", change)
		}
	})

	t.Run("Given a bad session Then ErrSessionInvalid", func(t *testing.T) {
		e := newEngine(t)
		shop := e.licenseShop(t, "Locked", "254722100021", "730200", time.Now().UTC().Add(30*day))
		e.authenticate(t, shop, "machine-a")

		_, err := e.desktop.Sync(ctx, shop.ID, &dto.SyncRequest{SessionToken: "forged", MachineID: "machine-a"})
		if !errors.Is(err, ErrSessionInvalid) {
			t.Fatalf("expected ErrSessionInvalid, got %v", err)
		}
	})
}

func TestLicenseCheck(t *testing.T) {
	ctx := context.Background()

	t.Run("Given a live license Then active and outside the renewal window", func(t *testing.T) {
		e := newEngine(t)
		shop := e.licenseShop(t, "Healthy", "254722100030", "740100", time.Now().UTC().Add(20*day))

		resp, err := e.desktop.LicenseCheck(ctx, shop.ID)
		if err != nil {
			t.Fatalf("license check: %v", err)
		}
		if !resp.LicenseActive || resp.LicenseExpires == nil {
			t.Fatalf("expected active license, got %+v", resp)
		}
		if resp.DaysRemaining < 19 || resp.DaysRemaining > 20 {
			t.Errorf("expected ~20 days remaining, got %d", resp.DaysRemaining)
		}
		if !resp.GracePeriod || resp.RenewalRequired {
			t.Errorf("unexpected renewal flags: %+v", resp)
		}
	})

	t.Run("Given a license expiring soon Then renewal required while still active", func(t *testing.T) {
		e := newEngine(t)
		shop := e.licenseShop(t, "Closing", "254722100031", "740200", time.Now().UTC().Add(3*day))

		resp, err := e.desktop.LicenseCheck(ctx, shop.ID)
		if err != nil {
			t.Fatalf("license check: %v", err)
		}
		if !resp.LicenseActive || !resp.RenewalRequired {
			t.Errorf("expected active license needing renewal, got %+v", resp)
		}
	})

	t.Run("Given a recently expired license Then inactive but inside the grace window", func(t *testing.T) {
		e := newEngine(t)
		shop := e.licenseShop(t, "Grace", "254722100032", "740300", time.Now().UTC().Add(-3*day))

		resp, err := e.desktop.LicenseCheck(ctx, shop.ID)
		if err != nil {
			t.Fatalf("license check: %v", err)
		}
		if resp.LicenseActive {
			t.Error("expired license must not report active")
		}
		if !resp.GracePeriod || !resp.RenewalRequired {
			t.Errorf("expected grace window with renewal required, got %+v", resp)
		}
		if resp.DaysRemaining != 0 {
			t.Errorf("days remaining must not go negative, got %d", resp.DaysRemaining)
		}
	})

	t.Run("Given a long expired license Then grace exhausted", func(t *testing.T) {
		e := newEngine(t)
		shop := e.licenseShop(t, "Lapsed", "254722100033", "740400", time.Now().UTC().Add(-30*day))

		resp, err := e.desktop.LicenseCheck(ctx, shop.ID)
		if err != nil {
			t.Fatalf("license check: %v", err)
		}
		if resp.LicenseActive || resp.GracePeriod || !resp.RenewalRequired {
			t.Errorf("expected fully lapsed license, got %+v", resp)
		}
	})

	t.Run("Given a shop that never had a license Then renewal required", func(t *testing.T) {
		e := newEngine(t)
		shop := e.createShop(t, "Fresh", "254722100034", "740500")

		resp, err := e.desktop.LicenseCheck(ctx, shop.ID)
		if err != nil {
			t.Fatalf("license check: %v", err)
		}
		if resp.LicenseActive || !resp.RenewalRequired || resp.LicenseExpires != nil {
			t.Errorf("expected unlicensed shop, got %+v", resp)
		}
	})

	t.Run("Given an unknown shop Then ErrShopNotFound", func(t *testing.T) {
		e := newEngine(t)
		if _, err := e.desktop.LicenseCheck(ctx, 9999); !errors.Is(err, ErrShopNotFound) {
			t.Fatalf("expected ErrShopNotFound, got %v", err)
		}
	})
}
