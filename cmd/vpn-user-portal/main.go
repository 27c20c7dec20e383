package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/api"
	"github.com/CedricCorazza/vpn-user-portal/internal/config"
	"github.com/CedricCorazza/vpn-user-portal/internal/crypto"
	"github.com/CedricCorazza/vpn-user-portal/internal/database"
	"github.com/CedricCorazza/vpn-user-portal/internal/openvpn"
	"github.com/CedricCorazza/vpn-user-portal/internal/service"
)

const version = "0.1.0"

func main() {
	// Parse command line flags
	flags, configFile, showVersion := config.ParseFlags()

	// Handle version flag
	if showVersion {
		fmt.Printf("vpn-user-portal v%s\n", version)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := initLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting vpn-user-portal",
		zap.String("version", version),
		zap.String("database", cfg.Database.Type),
	)

	// Initialize database
	db, err := database.New(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Load the CA and the tls-crypt key, generating both on first run
	ca, err := service.LoadCA(db, cfg.Portal.DataDir, time.Now().UTC())
	if err != nil {
		logger.Fatal("Failed to load CA", zap.Error(err))
	}
	tlsCrypt, err := crypto.LoadTlsCrypt(cfg.Portal.DataDir)
	if err != nil {
		logger.Fatal("Failed to load tls-crypt key", zap.Error(err))
	}

	// OpenVPN management interface client
	managementAddresses := make(map[string][]string, len(cfg.Profiles))
	for profileID, profileConfig := range cfg.Profiles {
		managementAddresses[profileID] = profileConfig.ManagementAddressList
	}
	manager := openvpn.NewManager(managementAddresses, logger)

	// Initialize router
	router := api.NewRouter(cfg, db, ca, tlsCrypt, manager, logger)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting HTTP server",
			zap.String("address", srv.Addr),
			zap.Bool("tls", cfg.Server.TLSEnabled),
		)

		var err error
		if cfg.Server.TLSEnabled {
			err = srv.ListenAndServeTLS(cfg.Server.TLSCert, cfg.Server.TLSKey)
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}

func initLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.Logging.Format == "json" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	switch cfg.Logging.Level {
	case "debug":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapConfig.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return zapConfig.Build()
}
