// Package api provides HTTP routing and server configuration for the VPN
// user portal. It wires together handlers, middleware, and services to
// create the node API, the client API and the portal/admin API.
package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/api/handlers"
	"github.com/CedricCorazza/vpn-user-portal/internal/api/middleware"
	"github.com/CedricCorazza/vpn-user-portal/internal/config"
	"github.com/CedricCorazza/vpn-user-portal/internal/crypto"
	"github.com/CedricCorazza/vpn-user-portal/internal/database"
	"github.com/CedricCorazza/vpn-user-portal/internal/openvpn"
	"github.com/CedricCorazza/vpn-user-portal/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, db *database.Database, ca *crypto.CA, tlsCrypt *crypto.TlsCrypt, manager openvpn.ServerManager, logger *zap.Logger) *gin.Engine {
	// Set Gin mode
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(gin.Recovery())
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.CORSMiddleware(cfg))
	router.Use(middleware.RateLimitMiddleware(cfg))

	// Initialize services
	certService := service.NewCertificateService(db, ca, tlsCrypt, cfg.Portal.SessionExpiry, logger)
	connectionService := service.NewConnectionService(db, cfg.Profiles, manager, logger)
	userService := service.NewUserService(db, connectionService, manager, cfg.Portal.SessionExpiry, logger)
	messageService := service.NewMessageService(db, logger)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, cfg, logger)
	nodeHandler := handlers.NewNodeHandler(certService, connectionService, cfg.Profiles, logger)
	vpnApiHandler := handlers.NewVpnApiHandler(certService, userService, messageService, cfg.Profiles, logger)
	adminHandler := handlers.NewAdminHandler(userService, connectionService, certService, messageService, db, cfg.Profiles, cfg.Portal.DataDir, logger)

	// Node API, authenticated with the node service credential
	nodeAPI := router.Group("/node_api")
	nodeAPI.Use(middleware.NodeAuthMiddleware(cfg))
	{
		nodeAPI.POST("/connect", nodeHandler.Connect)
		nodeAPI.POST("/disconnect", nodeHandler.Disconnect)
		nodeAPI.POST("/add_server_certificate", nodeHandler.AddServerCertificate)
		nodeAPI.GET("/profile_list", nodeHandler.ProfileList)
	}

	// Client API, authenticated with an OAuth access token
	vpnAPI := router.Group("/api")
	vpnAPI.Use(middleware.TokenAuthMiddleware(cfg))
	{
		vpnAPI.GET("/profile_list", vpnApiHandler.ProfileList)
		vpnAPI.GET("/user_info", vpnApiHandler.UserInfo)
		vpnAPI.POST("/create_keypair", vpnApiHandler.CreateKeypair)
		vpnAPI.GET("/check_certificate", vpnApiHandler.CheckCertificate)
		vpnAPI.GET("/profile_config", vpnApiHandler.ProfileConfig)
		vpnAPI.GET("/user_messages", vpnApiHandler.UserMessages)
		vpnAPI.GET("/system_messages", vpnApiHandler.SystemMessages)
	}

	// Portal API, session authenticated
	portalAPI := router.Group("/portal_api")
	{
		portalAPI.POST("/auth/login", authHandler.Login)
	}

	session := router.Group("/portal_api")
	session.Use(middleware.SessionAuthMiddleware(cfg))
	{
		// the two-factor challenge itself only needs a session
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

	// Serve static frontend files
	router.Static("/assets", "./static/assets")

	// SPA fallback - serve index.html for all other routes
	router.NoRoute(func(c *gin.Context) {
		c.File("./static/index.html")
	})

	return router
}
