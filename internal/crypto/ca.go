// Package crypto provides the cryptographic operations of the portal: the
// certificate authority issuing client and server certificates, the OpenVPN
// tls-crypt key, AES-256-GCM encryption for CA key storage, and random
// common name generation.
package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"time"
)

// CA is a certificate authority that signs client and server leaf
// certificates for the VPN deployment.
type CA struct {
	cert    *x509.Certificate
	certPEM string
	key     *ecdsa.PrivateKey
}

// CAResult contains a freshly generated CA certificate and private key in
// their persistable forms.
type CAResult struct {
	CertificatePEM string
	PrivateKeyDER  []byte
}

// LeafCertificate contains an issued leaf certificate and its private key.
type LeafCertificate struct {
	CertificatePEM string
	PrivateKeyPEM  string
	ValidFrom      time.Time
	ValidTo        time.Time
}

// GenerateCA generates a self-signed ECDSA P-256 root CA.
func GenerateCA(commonName string, validity time.Duration, now time.Time) (*CAResult, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CA key: %w", err)
	}

	serialNumber, err := generateSerialNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             now,
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
		MaxPathLenZero:        true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create CA certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal CA key: %w", err)
	}

	return &CAResult{
		CertificatePEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})),
		PrivateKeyDER:  keyDER,
	}, nil
}

// NewCA loads a CA from its persisted certificate PEM and private key DER.
func NewCA(certPEM string, keyDER []byte) (*CA, error) {
	cert, err := ParseCertificatePEM([]byte(certPEM))
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA certificate: %w", err)
	}
	if !cert.IsCA {
		return nil, fmt.Errorf("certificate is not a CA certificate")
	}

	key, err := x509.ParseECPrivateKey(keyDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CA key: %w", err)
	}

	return &CA{cert: cert, certPEM: certPEM, key: key}, nil
}

// CertificatePEM returns the CA root certificate in PEM form.
func (ca *CA) CertificatePEM() string {
	return ca.certPEM
}

// ExpiresAt returns the expiry of the CA root certificate.
func (ca *CA) ExpiresAt() time.Time {
	return ca.cert.NotAfter
}

// IssueClientCertificate signs a client-auth leaf certificate for the given
// common name with an explicit validity window.
func (ca *CA) IssueClientCertificate(commonName string, validFrom, validTo time.Time) (*LeafCertificate, error) {
	return ca.issue(commonName, validFrom, validTo, x509.ExtKeyUsageClientAuth)
}

// IssueServerCertificate signs a server-auth leaf certificate for a VPN
// server node.
func (ca *CA) IssueServerCertificate(commonName string, validFrom, validTo time.Time) (*LeafCertificate, error) {
	return ca.issue(commonName, validFrom, validTo, x509.ExtKeyUsageServerAuth)
}

func (ca *CA) issue(commonName string, validFrom, validTo time.Time, extKeyUsage x509.ExtKeyUsage) (*LeafCertificate, error) {
	// a leaf cannot outlive the CA root
	if validTo.After(ca.cert.NotAfter) {
		validTo = ca.cert.NotAfter
	}
	if !validTo.After(validFrom) {
		return nil, fmt.Errorf("certificate validity window is empty")
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}

	serialNumber, err := generateSerialNumber()
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber:          serialNumber,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             validFrom,
		NotAfter:              validTo,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{extKeyUsage},
		BasicConstraintsValid: true,
	}
	if extKeyUsage == x509.ExtKeyUsageServerAuth {
		template.KeyUsage |= x509.KeyUsageKeyEncipherment
		template.DNSNames = []string{commonName}
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, ca.cert, &key.PublicKey, ca.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}

	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}

	return &LeafCertificate{
		CertificatePEM: string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})),
		PrivateKeyPEM:  string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})),
		ValidFrom:      validFrom,
		ValidTo:        validTo,
	}, nil
}

// ParseCertificatePEM parses a PEM-encoded X.509 certificate.
func ParseCertificatePEM(certPEM []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, fmt.Errorf("failed to decode certificate PEM")
	}
	return x509.ParseCertificate(block.Bytes)
}

func generateSerialNumber() (*big.Int, error) {
	serialNumberLimit := new(big.Int).Lsh(big.NewInt(1), 128)
	return rand.Int(rand.Reader, serialNumberLimit)
}
