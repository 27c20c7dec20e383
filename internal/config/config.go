// Package config provides configuration management for the VPN user portal.
// It handles loading configuration from YAML files, applying environment
// variable and command line overrides, and validating configuration values
// for the server, database, JWT, VPN profiles, node API and logging settings.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig              `yaml:"server"`
	Database DatabaseConfig            `yaml:"database"`
	JWT      JWTConfig                 `yaml:"jwt"`
	Portal   PortalConfig              `yaml:"portal"`
	NodeAPI  NodeAPIConfig             `yaml:"node_api"`
	Profiles map[string]*ProfileConfig `yaml:"profiles"`
	Logging  LoggingConfig             `yaml:"logging"`
	Security SecurityConfig            `yaml:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `yaml:"port"`
	Host         string        `yaml:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled"`
	TLSCert      string        `yaml:"tls_cert"`
	TLSKey       string        `yaml:"tls_key"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig holds PostgreSQL-specific configuration
type PostgresConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Database     string `yaml:"database"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// JWTConfig holds session token configuration
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	Expiration time.Duration `yaml:"expiration"`
	Issuer     string        `yaml:"issuer"`
}

// PortalConfig holds portal-wide settings
type PortalConfig struct {
	// DataDir holds the tls-crypt key and the stats.json file.
	DataDir string `yaml:"data_dir"`
	// SessionExpiry bounds the certificate lifetime for federated
	// (non-local) identities.
	SessionExpiry time.Duration `yaml:"session_expiry"`
	// LogoutURL, when set, is where the browser is sent after logout,
	// with the referrer in ReturnParameter.
	LogoutURL       string `yaml:"logout_url"`
	ReturnParameter string `yaml:"return_parameter"`
	// AdminUserIDList lists the user IDs that get the admin role.
	AdminUserIDList []string `yaml:"admin_user_id_list"`
}

// IsAdmin reports whether the user ID is on the admin list.
func (p *PortalConfig) IsAdmin(userID string) bool {
	for _, adminUserID := range p.AdminUserIDList {
		if adminUserID == userID {
			return true
		}
	}
	return false
}

// NodeAPIConfig holds the service credential the VPN server nodes use
type NodeAPIConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ProfileConfig holds the static configuration of one VPN profile. It is
// owned by configuration and read-only at runtime.
type ProfileConfig struct {
	DisplayName       string   `yaml:"display_name"`
	EnableACL         bool     `yaml:"enable_acl"`
	ACLPermissionList []string `yaml:"acl_permission_list"`
	HideProfile       bool     `yaml:"hide_profile"`
	Hostname          string   `yaml:"hostname"`
	VPNProtoPorts     []string `yaml:"vpn_proto_ports"`
	// ManagementAddressList lists the OpenVPN management interface
	// addresses (host:port) of the server processes behind this profile.
	ManagementAddressList []string `yaml:"management_address_list"`
}

// ToMap renders the profile configuration as a plain map; encoding/json
// marshals map keys in sorted order, which the node API relies on.
func (p *ProfileConfig) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"display_name":            p.DisplayName,
		"enable_acl":              p.EnableACL,
		"acl_permission_list":     p.ACLPermissionList,
		"hide_profile":            p.HideProfile,
		"hostname":                p.Hostname,
		"vpn_proto_ports":         p.VPNProtoPorts,
		"management_address_list": p.ManagementAddressList,
	}
}

// ProfileIDs returns the configured profile IDs in sorted order
func (c *Config) ProfileIDs() []string {
	ids := make([]string, 0, len(c.Profiles))
	for profileID := range c.Profiles {
		ids = append(ids, profileID)
	}
	sort.Strings(ids)
	return ids
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSEnabled       bool          `yaml:"cors_enabled"`
	CORSOrigins       []string      `yaml:"cors_origins"`
	RateLimitEnabled  bool          `yaml:"rate_limit_enabled"`
	RateLimitRequests int           `yaml:"rate_limit_requests"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
}

// Load reads and parses the configuration file, then applies environment
// variable and command line overrides
func Load(path string, flags *Flags) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()
	if flags != nil {
		cfg.applyFlagOverrides(flags)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.JWT.Expiration == 0 {
		c.JWT.Expiration = 8 * time.Hour
	}
	if c.JWT.Issuer == "" {
		c.JWT.Issuer = "vpn-user-portal"
	}
	if c.Portal.SessionExpiry == 0 {
		c.Portal.SessionExpiry = 90 * 24 * time.Hour
	}
	if c.Portal.DataDir == "" {
		c.Portal.DataDir = "./data"
	}
	if c.Portal.ReturnParameter == "" {
		c.Portal.ReturnParameter = "ReturnTo"
	}
	if c.NodeAPI.Username == "" {
		c.NodeAPI.Username = "vpn-server-node"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration
func (c *Config) applyEnvOverrides() {
	if port := os.Getenv("PORTAL_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}
	if host := os.Getenv("PORTAL_SERVER_HOST"); host != "" {
		c.Server.Host = host
	}
	if dbType := os.Getenv("PORTAL_DB_TYPE"); dbType != "" {
		c.Database.Type = dbType
	}
	if dbPath := os.Getenv("PORTAL_DB_SQLITE_PATH"); dbPath != "" {
		c.Database.SQLite.Path = dbPath
	}
	if pgHost := os.Getenv("PORTAL_DB_POSTGRES_HOST"); pgHost != "" {
		c.Database.Postgres.Host = pgHost
	}
	if pgPassword := os.Getenv("PORTAL_DB_POSTGRES_PASSWORD"); pgPassword != "" {
		c.Database.Postgres.Password = pgPassword
	}
	if jwtSecret := os.Getenv("PORTAL_JWT_SECRET"); jwtSecret != "" {
		c.JWT.Secret = jwtSecret
	}
	if nodePassword := os.Getenv("PORTAL_NODE_API_PASSWORD"); nodePassword != "" {
		c.NodeAPI.Password = nodePassword
	}
	if logLevel := os.Getenv("PORTAL_LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
}

func (c *Config) applyFlagOverrides(flags *Flags) {
	if v, ok := flags.GetServerPort(); ok {
		c.Server.Port = v
	}
	if v, ok := flags.GetServerHost(); ok {
		c.Server.Host = v
	}
	if v, ok := flags.GetDBType(); ok {
		c.Database.Type = v
	}
	if v, ok := flags.GetDBSQLitePath(); ok {
		c.Database.SQLite.Path = v
	}
	if v, ok := flags.GetDataDir(); ok {
		c.Portal.DataDir = v
	}
	if v, ok := flags.GetLogLevel(); ok {
		c.Logging.Level = v
	}
	if v, ok := flags.GetLogFormat(); ok {
		c.Logging.Format = v
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.TLSEnabled {
		if c.Server.TLSCert == "" || c.Server.TLSKey == "" {
			return fmt.Errorf("TLS enabled but cert or key not specified")
		}
	}

	if c.Database.Type != "sqlite" && c.Database.Type != "postgres" {
		return fmt.Errorf("invalid database type: %s (must be 'sqlite' or 'postgres')", c.Database.Type)
	}
	if c.Database.Type == "sqlite" && c.Database.SQLite.Path == "" {
		return fmt.Errorf("SQLite path not specified")
	}
	if c.Database.Type == "postgres" {
		if c.Database.Postgres.Host == "" || c.Database.Postgres.Database == "" {
			return fmt.Errorf("PostgreSQL host and database must be specified")
		}
	}

	if c.NodeAPI.Password == "" {
		return fmt.Errorf("node API password not specified")
	}

	if len(c.Profiles) == 0 {
		return fmt.Errorf("at least one VPN profile must be configured")
	}
	for profileID, profileConfig := range c.Profiles {
		if profileConfig.Hostname == "" {
			return fmt.Errorf("profile %q: hostname not specified", profileID)
		}
		if profileConfig.EnableACL && len(profileConfig.ACLPermissionList) == 0 {
			return fmt.Errorf("profile %q: ACL enabled but permission list empty", profileID)
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	return nil
}

// GetDSN returns the database connection string based on the configured type
func (c *Config) GetDSN() string {
	switch c.Database.Type {
	case "sqlite":
		return c.Database.SQLite.Path
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			c.Database.Postgres.Host,
			c.Database.Postgres.Port,
			c.Database.Postgres.User,
			c.Database.Postgres.Password,
			c.Database.Postgres.Database,
			c.Database.Postgres.SSLMode,
		)
	default:
		return ""
	}
}
