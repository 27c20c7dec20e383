package config

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"
)

// Flags holds all command line flag values
type Flags struct {
	configFile *string
	version    *bool

	serverPort *int
	serverHost *string

	dbType       *string
	dbSQLitePath *string

	dataDir *string

	logLevel  *string
	logFormat *string
}

// ParseFlags defines and parses all command line flags
func ParseFlags() (*Flags, string, bool) {
	f := &Flags{}

	f.configFile = flag.StringP("config", "c", "config.yaml", "Path to configuration file")
	f.version = flag.BoolP("version", "v", false, "Print version and exit")

	f.serverPort = flag.Int("server.port", 0, "HTTP server port")
	f.serverHost = flag.String("server.host", "", "HTTP server bind address")

	f.dbType = flag.String("db.type", "", "Database type (sqlite or postgres)")
	f.dbSQLitePath = flag.String("db.sqlite.path", "", "SQLite database file path")

	f.dataDir = flag.String("portal.data-dir", "", "Directory for the tls-crypt key and stats data")

	f.logLevel = flag.StringP("log.level", "l", "", "Log level (debug, info, warn, error)")
	f.logFormat = flag.String("log.format", "", "Log format (json or console)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "VPN User Portal - admin and API server for an OpenVPN deployment\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nConfiguration priority (highest to lowest):\n")
		fmt.Fprintf(os.Stderr, "  1. Command line flags\n")
		fmt.Fprintf(os.Stderr, "  2. Environment variables (PORTAL_*)\n")
		fmt.Fprintf(os.Stderr, "  3. Configuration file (default: config.yaml)\n")
	}

	flag.Parse()

	return f, *f.configFile, *f.version
}

// GetServerPort returns the server port flag value and whether it was set
func (f *Flags) GetServerPort() (int, bool) {
	return *f.serverPort, flag.Lookup("server.port").Changed
}

// GetServerHost returns the server host flag value and whether it was set
func (f *Flags) GetServerHost() (string, bool) {
	return *f.serverHost, flag.Lookup("server.host").Changed
}

// GetDBType returns the database type flag value and whether it was set
func (f *Flags) GetDBType() (string, bool) {
	return *f.dbType, flag.Lookup("db.type").Changed
}

// GetDBSQLitePath returns the SQLite path flag value and whether it was set
func (f *Flags) GetDBSQLitePath() (string, bool) {
	return *f.dbSQLitePath, flag.Lookup("db.sqlite.path").Changed
}

// GetDataDir returns the data directory flag value and whether it was set
func (f *Flags) GetDataDir() (string, bool) {
	return *f.dataDir, flag.Lookup("portal.data-dir").Changed
}

// GetLogLevel returns the log level flag value and whether it was set
func (f *Flags) GetLogLevel() (string, bool) {
	return *f.logLevel, flag.Lookup("log.level").Changed
}

// GetLogFormat returns the log format flag value and whether it was set
func (f *Flags) GetLogFormat() (string, bool) {
	return *f.logFormat, flag.Lookup("log.format").Changed
}
