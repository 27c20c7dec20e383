package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/api/middleware"
	"github.com/CedricCorazza/vpn-user-portal/internal/auth"
	"github.com/CedricCorazza/vpn-user-portal/internal/config"
	"github.com/CedricCorazza/vpn-user-portal/internal/crypto"
	"github.com/CedricCorazza/vpn-user-portal/internal/database"
	"github.com/CedricCorazza/vpn-user-portal/internal/database/models"
	"github.com/CedricCorazza/vpn-user-portal/internal/openvpn"
	"github.com/CedricCorazza/vpn-user-portal/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testJWTSecret    = "test-secret"
	testNodeUsername = "vpn-server-node"
	testNodePassword = "node-password"
	testCommonName   = "aabbccddeeff00112233445566778899"
)

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

type testEnv struct {
	cfg               *config.Config
	db                *database.Database
	manager           *mockServerManager
	certService       *service.CertificateService
	connectionService *service.ConnectionService
	userService       *service.UserService
	messageService    *service.MessageService
}

func newTestEnv(t *testing.T) *testEnv {
	dataDir := t.TempDir()

	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Type: "sqlite",
			SQLite: config.SQLiteConfig{
				Path: dataDir + "/test.db",
			},
		},
		JWT: config.JWTConfig{
			Secret:     testJWTSecret,
			Expiration: time.Hour,
			Issuer:     "vpn-user-portal",
		},
		Portal: config.PortalConfig{
			DataDir:         dataDir,
			SessionExpiry:   90 * 24 * time.Hour,
			ReturnParameter: "ReturnTo",
			AdminUserIDList: []string{"admin"},
		},
		NodeAPI: config.NodeAPIConfig{
			Username: testNodeUsername,
			Password: testNodePassword,
		},
		Profiles: map[string]*config.ProfileConfig{
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
			"hidden": {
				DisplayName:   "Hidden",
				HideProfile:   true,
				Hostname:      "vpn.example.org",
				VPNProtoPorts: []string{"udp/1196"},
			},
		},
	}

	db, err := database.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate())

	caResult, err := crypto.GenerateCA("Test VPN CA", 5*365*24*time.Hour, time.Now().UTC())
	require.NoError(t, err)
	ca, err := crypto.NewCA(caResult.CertificatePEM, caResult.PrivateKeyDER)
	require.NoError(t, err)

	tlsCrypt, err := crypto.LoadTlsCrypt(dataDir)
	require.NoError(t, err)

	logger := zap.NewNop()
	manager := new(mockServerManager)

	certService := service.NewCertificateService(db, ca, tlsCrypt, cfg.Portal.SessionExpiry, logger)
	connectionService := service.NewConnectionService(db, cfg.Profiles, manager, logger)
	userService := service.NewUserService(db, connectionService, manager, cfg.Portal.SessionExpiry, logger)
	messageService := service.NewMessageService(db, logger)

	return &testEnv{
		cfg:               cfg,
		db:                db,
		manager:           manager,
		certService:       certService,
		connectionService: connectionService,
		userService:       userService,
		messageService:    messageService,
	}
}

func (e *testEnv) logger() *zap.Logger {
	return zap.NewNop()
}

// nodeRouter wires the node API group the way the real router does.
func (e *testEnv) nodeRouter() *gin.Engine {
	router := gin.New()
	nodeHandler := NewNodeHandler(e.certService, e.connectionService, e.cfg.Profiles, e.logger())

	nodeAPI := router.Group("/node_api")
	nodeAPI.Use(middleware.NodeAuthMiddleware(e.cfg))
	{
		nodeAPI.POST("/connect", nodeHandler.Connect)
		nodeAPI.POST("/disconnect", nodeHandler.Disconnect)
		nodeAPI.POST("/add_server_certificate", nodeHandler.AddServerCertificate)
		nodeAPI.GET("/profile_list", nodeHandler.ProfileList)
	}
	return router
}

// apiRouter wires the client API group.
func (e *testEnv) apiRouter() *gin.Engine {
	router := gin.New()
	vpnApiHandler := NewVpnApiHandler(e.certService, e.userService, e.messageService, e.cfg.Profiles, e.logger())

	vpnAPI := router.Group("/api")
	vpnAPI.Use(middleware.TokenAuthMiddleware(e.cfg))
	{
		vpnAPI.GET("/profile_list", vpnApiHandler.ProfileList)
		vpnAPI.GET("/user_info", vpnApiHandler.UserInfo)
		vpnAPI.POST("/create_keypair", vpnApiHandler.CreateKeypair)
		vpnAPI.GET("/check_certificate", vpnApiHandler.CheckCertificate)
		vpnAPI.GET("/profile_config", vpnApiHandler.ProfileConfig)
		vpnAPI.GET("/user_messages", vpnApiHandler.UserMessages)
		vpnAPI.GET("/system_messages", vpnApiHandler.SystemMessages)
	}
	return router
}

// portalRouter wires the portal API group: login, the two-factor challenge
// and the admin routes.
func (e *testEnv) portalRouter() *gin.Engine {
	router := gin.New()
	authHandler := NewAuthHandler(e.userService, e.cfg, e.logger())
	adminHandler := NewAdminHandler(e.userService, e.connectionService, e.certService, e.messageService, e.db, e.cfg.Profiles, e.cfg.Portal.DataDir, e.logger())

	portalAPI := router.Group("/portal_api")
	{
		portalAPI.POST("/auth/login", authHandler.Login)
	}

	session := router.Group("/portal_api")
	session.Use(middleware.SessionAuthMiddleware(e.cfg))
	{
		session.POST("/auth/verify_totp", authHandler.VerifyTotp)

		verified := session.Group("")
		verified.Use(middleware.RequireTwoFactorVerified())
		{
			verified.GET("/auth/me", authHandler.GetCurrentUser)
			verified.POST("/auth/logout", authHandler.Logout)
			verified.POST("/auth/enroll_totp", authHandler.EnrollTotp)
		}

		admin := session.Group("")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("/connections", adminHandler.Connections)
			admin.GET("/info", adminHandler.Info)
			admin.GET("/users", adminHandler.Users)
			admin.GET("/user", adminHandler.User)
			admin.POST("/user", adminHandler.UserAction)
			admin.POST("/log", adminHandler.Log)
			admin.GET("/stats", adminHandler.Stats)
			admin.GET("/messages", adminHandler.Messages)
			admin.POST("/messages", adminHandler.MessageAction)
		}
	}
	return router
}

func (e *testEnv) sessionToken(t *testing.T, userID, role string, verified bool) string {
	token, err := auth.GenerateSessionToken(userID, role, verified, testJWTSecret, "vpn-user-portal", time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) accessToken(t *testing.T, userID, clientID string, isLocal bool) string {
	token, err := auth.GenerateAccessToken(&auth.AccessTokenInfo{
		UserID:   userID,
		ClientID: clientID,
		Scope:    "config",
		IsLocal:  isLocal,
	}, testJWTSecret, time.Hour)
	require.NoError(t, err)
	return token
}

func (e *testEnv) addUser(t *testing.T, userID string, disabled bool) {
	now := time.Now().UTC()
	require.NoError(t, e.db.CreateUser(&models.User{
		UserID:           userID,
		IsDisabled:       disabled,
		SessionExpiresAt: now.Add(90 * 24 * time.Hour),
		PermissionList:   []string{},
		CreatedAt:        now,
	}))
}

func (e *testEnv) addCertificate(t *testing.T, commonName, userID, clientID string) {
	now := time.Now().UTC()
	require.NoError(t, e.db.AddCertificate(&models.Certificate{
		CommonName:  commonName,
		UserID:      userID,
		ClientID:    clientID,
		DisplayName: clientID,
		ValidFrom:   now.Add(-time.Hour),
		ValidTo:     now.Add(24 * time.Hour),
		CreatedAt:   now,
	}))
}

type requestOption func(*http.Request)

func withBasicAuth(username, password string) requestOption {
	return func(req *http.Request) {
		req.SetBasicAuth(username, password)
	}
}

func withBearer(token string) requestOption {
	return func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func performForm(router *gin.Engine, method, path string, form url.Values, opts ...requestOption) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func performJSON(router *gin.Engine, method, path, body string, opts ...requestOption) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func unmarshalBody(w *httptest.ResponseRecorder, v interface{}) error {
	return json.Unmarshal(w.Body.Bytes(), v)
}

// envelope decodes {"<action>": {...}} and returns the inner object.
func envelope(t *testing.T, w *httptest.ResponseRecorder, action string) map[string]interface{} {
	var response map[string]map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), "body: %s", w.Body.String())
	inner, ok := response[action]
	require.True(t, ok, "response has no %q key: %s", action, w.Body.String())
	return inner
}
