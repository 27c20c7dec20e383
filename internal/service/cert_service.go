package service

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/crypto"
	"github.com/CedricCorazza/vpn-user-portal/internal/database"
	"github.com/CedricCorazza/vpn-user-portal/internal/database/models"
)

// Certificate validity failure reasons reported to the VPN server nodes.
const (
	ReasonCertificateMissing     = "certificate_missing"
	ReasonCertificateNotYetValid = "certificate_not_yet_valid"
	ReasonCertificateExpired     = "certificate_expired"
)

// CertificateService issues and validates VPN certificates.
type CertificateService struct {
	db            *database.Database
	ca            *crypto.CA
	tlsCrypt      *crypto.TlsCrypt
	sessionExpiry time.Duration
	logger        *zap.Logger
}

// NewCertificateService creates a new certificate service
func NewCertificateService(db *database.Database, ca *crypto.CA, tlsCrypt *crypto.TlsCrypt, sessionExpiry time.Duration, logger *zap.Logger) *CertificateService {
	return &CertificateService{
		db:            db,
		ca:            ca,
		tlsCrypt:      tlsCrypt,
		sessionExpiry: sessionExpiry,
		logger:        logger,
	}
}

// ClientCertificate is an issued client certificate with its key material.
type ClientCertificate struct {
	CommonName     string
	CertificatePEM string
	PrivateKeyPEM  string
	ValidFrom      time.Time
	ValidTo        time.Time
}

// ServerCertificate is an issued server certificate bundled with the CA
// certificate and the tls-crypt key a node needs to start serving.
type ServerCertificate struct {
	CertificatePEM string
	PrivateKeyPEM  string
	CAPEM          string
	TlsCrypt       string
	ValidTo        time.Time
}

// CheckResult is the outcome of a certificate validity check. Reason is
// empty when the certificate is valid.
type CheckResult struct {
	IsValid bool
	Reason  string
}

// ClientCertificateExpiry determines how long a new client certificate may
// live. A locally authenticated identity is bounded by the session expiry
// recorded at login; any other identity gets the configured session length
// counted from now.
func (s *CertificateService) ClientCertificateExpiry(userID string, isLocal bool, now time.Time) (time.Time, error) {
	if !isLocal {
		return now.Add(s.sessionExpiry), nil
	}
	expiresAt, err := s.db.GetSessionExpiresAt(userID)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to determine session expiry: %w", err)
	}
	return expiresAt, nil
}

// IssueClientCertificate issues a client certificate under a freshly
// generated random common name and records it. The CA signs before the
// record is stored, a failed signing operation leaves no trace.
func (s *CertificateService) IssueClientCertificate(userID, clientID, displayName string, validTo, now time.Time) (*ClientCertificate, error) {
	commonName, err := crypto.RandomCommonName()
	if err != nil {
		return nil, err
	}

	leaf, err := s.ca.IssueClientCertificate(commonName, now, validTo)
	if err != nil {
		return nil, fmt.Errorf("failed to issue certificate: %w", err)
	}

	cert := &models.Certificate{
		CommonName:  commonName,
		UserID:      userID,
		ClientID:    clientID,
		DisplayName: displayName,
		ValidFrom:   leaf.ValidFrom,
		ValidTo:     leaf.ValidTo,
		CreatedAt:   now,
	}
	if err := s.db.AddCertificate(cert); err != nil {
		return nil, fmt.Errorf("failed to store certificate: %w", err)
	}

	message := fmt.Sprintf("new certificate generated by application %q", clientID)
	if err := s.db.AddUserMessage(userID, "notification", message, now); err != nil {
		s.logger.Warn("failed to record certificate notification",
			zap.String("user_id", userID),
			zap.Error(err))
	}

	s.logger.Info("client certificate issued",
		zap.String("user_id", userID),
		zap.String("client_id", clientID),
		zap.String("common_name", commonName),
		zap.Time("valid_to", leaf.ValidTo))

	return &ClientCertificate{
		CommonName:     commonName,
		CertificatePEM: leaf.CertificatePEM,
		PrivateKeyPEM:  leaf.PrivateKeyPEM,
		ValidFrom:      leaf.ValidFrom,
		ValidTo:        leaf.ValidTo,
	}, nil
}

// IssueServerCertificate issues a server certificate for a VPN node. Server
// certificates are not tracked in storage, the node holds the only copy and
// requests a new one on redeploy.
func (s *CertificateService) IssueServerCertificate(commonName string, now time.Time) (*ServerCertificate, error) {
	leaf, err := s.ca.IssueServerCertificate(commonName, now, s.ca.ExpiresAt())
	if err != nil {
		return nil, fmt.Errorf("failed to issue server certificate: %w", err)
	}

	s.logger.Info("server certificate issued",
		zap.String("common_name", commonName),
		zap.Time("valid_to", leaf.ValidTo))

	return &ServerCertificate{
		CertificatePEM: leaf.CertificatePEM,
		PrivateKeyPEM:  leaf.PrivateKeyPEM,
		CAPEM:          s.ca.CertificatePEM(),
		TlsCrypt:       s.tlsCrypt.Get(),
		ValidTo:        leaf.ValidTo,
	}, nil
}

// CheckCertificate verifies that a client certificate exists and is inside
// its validity window at the given moment.
func (s *CertificateService) CheckCertificate(commonName string, now time.Time) (*CheckResult, error) {
	info, err := s.db.GetUserCertificateInfo(commonName)
	if errors.Is(err, database.ErrNotFound) {
		return &CheckResult{IsValid: false, Reason: ReasonCertificateMissing}, nil
	}
	if err != nil {
		return nil, err
	}

	if now.Before(info.ValidFrom) {
		return &CheckResult{IsValid: false, Reason: ReasonCertificateNotYetValid}, nil
	}
	if now.After(info.ValidTo) {
		return &CheckResult{IsValid: false, Reason: ReasonCertificateExpired}, nil
	}

	return &CheckResult{IsValid: true}, nil
}

// UserCertificates lists the certificates of a user, newest first.
func (s *CertificateService) UserCertificates(userID string) ([]*models.Certificate, error) {
	return s.db.GetCertificates(userID)
}

// CACertificatePEM returns the CA root certificate in PEM form.
func (s *CertificateService) CACertificatePEM() string {
	return s.ca.CertificatePEM()
}

// TlsCryptKey returns the tls-crypt key in OpenVPN static key format.
func (s *CertificateService) TlsCryptKey() string {
	return s.tlsCrypt.Get()
}
