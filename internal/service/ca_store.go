package service

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/CedricCorazza/vpn-user-portal/internal/crypto"
	"github.com/CedricCorazza/vpn-user-portal/internal/database"
)

const (
	caCertConfigKey = "ca_certificate"
	caKeyConfigKey  = "ca_private_key"
	masterKeyFile   = "master.key"

	caCommonName = "VPN Root CA"
	caValidity   = 10 * 365 * 24 * time.Hour
)

// LoadCA loads the certificate authority from storage, generating it on
// first run. The CA private key is stored AES-256-GCM encrypted under a
// master key kept in the data directory.
func LoadCA(db *database.Database, dataDir string, now time.Time) (*crypto.CA, error) {
	masterKey, err := loadOrCreateMasterKey(dataDir)
	if err != nil {
		return nil, err
	}

	certPEM, err := db.GetSystemConfig(caCertConfigKey)
	if errors.Is(err, database.ErrNotFound) {
		return generateCA(db, masterKey, now)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load CA certificate: %w", err)
	}

	encryptedKey, err := db.GetSystemConfig(caKeyConfigKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load CA key: %w", err)
	}
	encrypted, err := base64.StdEncoding.DecodeString(encryptedKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decode CA key: %w", err)
	}
	keyDER, err := crypto.Decrypt(encrypted, masterKey, caKeyConfigKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt CA key: %w", err)
	}

	return crypto.NewCA(certPEM, keyDER)
}

func generateCA(db *database.Database, masterKey []byte, now time.Time) (*crypto.CA, error) {
	caResult, err := crypto.GenerateCA(caCommonName, caValidity, now)
	if err != nil {
		return nil, err
	}

	encrypted, err := crypto.Encrypt(caResult.PrivateKeyDER, masterKey, caKeyConfigKey)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt CA key: %w", err)
	}

	if err := db.SetSystemConfig(caCertConfigKey, caResult.CertificatePEM); err != nil {
		return nil, fmt.Errorf("failed to store CA certificate: %w", err)
	}
	if err := db.SetSystemConfig(caKeyConfigKey, base64.StdEncoding.EncodeToString(encrypted)); err != nil {
		return nil, fmt.Errorf("failed to store CA key: %w", err)
	}

	return crypto.NewCA(caResult.CertificatePEM, caResult.PrivateKeyDER)
}

func loadOrCreateMasterKey(dataDir string) ([]byte, error) {
	keyPath := filepath.Join(dataDir, masterKeyFile)

	data, err := os.ReadFile(keyPath)
	if err == nil {
		masterKey, err := hex.DecodeString(string(data))
		if err != nil || len(masterKey) != 32 {
			return nil, fmt.Errorf("malformed master key file %s", keyPath)
		}
		return masterKey, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read master key: %w", err)
	}

	masterKey, err := crypto.GenerateMasterKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(masterKey)), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write master key: %w", err)
	}

	return masterKey, nil
}
