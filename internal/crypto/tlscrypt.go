package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const tlsCryptKeyFile = "tls_crypt.key"

// TlsCrypt holds the OpenVPN tls-crypt key shared between the server nodes
// and every issued client configuration.
type TlsCrypt struct {
	keyData string
}

// LoadTlsCrypt reads the tls-crypt key from dataDir, generating and
// persisting a new one on first use.
func LoadTlsCrypt(dataDir string) (*TlsCrypt, error) {
	keyPath := filepath.Join(dataDir, tlsCryptKeyFile)

	data, err := os.ReadFile(keyPath)
	if err == nil {
		return &TlsCrypt{keyData: string(data)}, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read tls-crypt key: %w", err)
	}

	keyData, err := generateTlsCryptKey()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if err := os.WriteFile(keyPath, []byte(keyData), 0o600); err != nil {
		return nil, fmt.Errorf("failed to write tls-crypt key: %w", err)
	}

	return &TlsCrypt{keyData: keyData}, nil
}

// Get returns the tls-crypt key in OpenVPN static key file format.
func (t *TlsCrypt) Get() string {
	return t.keyData
}

// generateTlsCryptKey produces a 2048-bit OpenVPN static key: 16 lines of
// 16 hex-encoded bytes between the V1 markers.
func generateTlsCryptKey() (string, error) {
	raw := make([]byte, 256)
	if _, err := io.ReadFull(rand.Reader, raw); err != nil {
		return "", fmt.Errorf("failed to generate tls-crypt key: %w", err)
	}

	var b strings.Builder
	b.WriteString("#\n# 2048 bit OpenVPN static key\n#\n")
	b.WriteString("-----BEGIN OpenVPN Static key V1-----\n")
	for i := 0; i < len(raw); i += 16 {
		b.WriteString(hex.EncodeToString(raw[i : i+16]))
		b.WriteString("\n")
	}
	b.WriteString("-----END OpenVPN Static key V1-----\n")

	return b.String(), nil
}
