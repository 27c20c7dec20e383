package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/config"
	"github.com/CedricCorazza/vpn-user-portal/internal/crypto"
	"github.com/CedricCorazza/vpn-user-portal/internal/database"
	"github.com/CedricCorazza/vpn-user-portal/internal/database/models"
	"github.com/CedricCorazza/vpn-user-portal/internal/openvpn"
)

// setupTestDB creates a test database with migrations
func setupTestDB(t *testing.T) *database.Database {
	dbPath := t.TempDir() + "/test.db"

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type: "sqlite",
			SQLite: config.SQLiteConfig{
				Path: dbPath,
			},
		},
	}

	db, err := database.New(cfg)
	require.NoError(t, err, "Failed to create test database")
	t.Cleanup(func() { db.Close() })

	err = db.Migrate()
	require.NoError(t, err, "Failed to run migrations")

	return db
}

func testProfiles() map[string]*config.ProfileConfig {
	return map[string]*config.ProfileConfig{
		"internet": {
			DisplayName:   "Internet Access",
			Hostname:      "vpn.example.org",
			VPNProtoPorts: []string{"udp/1194", "tcp/443"},
		},
		"employees": {
			DisplayName:       "Employees",
			EnableACL:         true,
			ACLPermissionList: []string{"employee"},
			Hostname:          "vpn.example.org",
			VPNProtoPorts:     []string{"udp/1195"},
		},
	}
}

func newTestCA(t *testing.T) *crypto.CA {
	caResult, err := crypto.GenerateCA("Test VPN CA", 5*365*24*time.Hour, time.Now().UTC())
	require.NoError(t, err)
	ca, err := crypto.NewCA(caResult.CertificatePEM, caResult.PrivateKeyDER)
	require.NoError(t, err)
	return ca
}

func newTestCertService(t *testing.T, db *database.Database) *CertificateService {
	tlsCrypt, err := crypto.LoadTlsCrypt(t.TempDir())
	require.NoError(t, err)
	return NewCertificateService(db, newTestCA(t), tlsCrypt, 90*24*time.Hour, zap.NewNop())
}

func addTestUser(t *testing.T, db *database.Database, userID string, disabled bool) {
	err := db.CreateUser(&models.User{
		UserID:           userID,
		IsDisabled:       disabled,
		SessionExpiresAt: time.Now().UTC().Add(90 * 24 * time.Hour),
		PermissionList:   []string{},
		CreatedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)
}

func addTestCertificate(t *testing.T, db *database.Database, commonName, userID, clientID string) {
	now := time.Now().UTC()
	err := db.AddCertificate(&models.Certificate{
		CommonName:  commonName,
		UserID:      userID,
		ClientID:    clientID,
		DisplayName: clientID,
		ValidFrom:   now.Add(-time.Hour),
		ValidTo:     now.Add(24 * time.Hour),
		CreatedAt:   now,
	})
	require.NoError(t, err)
}

// mockServerManager mocks the OpenVPN management interface client
type mockServerManager struct {
	mock.Mock
}

func (m *mockServerManager) Connections(ctx context.Context) (map[string][]openvpn.ClientConnection, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string][]openvpn.ClientConnection), args.Error(1)
}

func (m *mockServerManager) Kill(ctx context.Context, commonName string) (int, error) {
	args := m.Called(ctx, commonName)
	return args.Int(0), args.Error(1)
}
