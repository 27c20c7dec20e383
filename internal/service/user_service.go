package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/auth"
	"github.com/CedricCorazza/vpn-user-portal/internal/database"
	"github.com/CedricCorazza/vpn-user-portal/internal/database/models"
	"github.com/CedricCorazza/vpn-user-portal/internal/openvpn"
)

// UserAction is an administrative action on a user account. The set is
// closed: anything else is rejected before any state is touched.
type UserAction int

const (
	UserActionDisable UserAction = iota
	UserActionEnable
	UserActionDeleteTotpSecret
)

// ErrUnsupportedUserAction is returned for a user_action outside the
// supported set.
var ErrUnsupportedUserAction = errors.New(`unsupported "user_action"`)

// ErrInvalidCredentials is returned when password authentication fails. It
// covers both an unknown user and a wrong password, the caller cannot tell
// the two apart.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrInvalidOtpKey is returned when a TOTP code does not verify.
var ErrInvalidOtpKey = errors.New("invalid OTP key")

// ParseUserAction maps the wire value of a user_action onto the closed
// action set.
func ParseUserAction(userAction string) (UserAction, error) {
	switch userAction {
	case "disableUser":
		return UserActionDisable, nil
	case "enableUser":
		return UserActionEnable, nil
	case "deleteTotpSecret":
		return UserActionDeleteTotpSecret, nil
	default:
		return 0, ErrUnsupportedUserAction
	}
}

// UserService manages user accounts: authentication, two-factor enrollment
// and the administrative account actions.
type UserService struct {
	db            *database.Database
	connections   *ConnectionService
	manager       openvpn.ServerManager
	sessionExpiry time.Duration
	logger        *zap.Logger
}

// NewUserService creates a new user service
func NewUserService(db *database.Database, connections *ConnectionService, manager openvpn.ServerManager, sessionExpiry time.Duration, logger *zap.Logger) *UserService {
	return &UserService{
		db:            db,
		connections:   connections,
		manager:       manager,
		sessionExpiry: sessionExpiry,
		logger:        logger,
	}
}

// Authenticate verifies a user ID and password against the stored hash.
func (s *UserService) Authenticate(userID, password string) (*models.User, error) {
	user, err := s.db.GetUser(userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.PasswordHash.Valid {
		return nil, ErrInvalidCredentials
	}
	if err := auth.VerifyPassword(password, user.PasswordHash.String); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// EnsureUser creates the account record for an externally authenticated
// identity on first sight. Existing accounts are left untouched.
func (s *UserService) EnsureUser(userID string, now time.Time) error {
	_, err := s.db.GetUser(userID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	return s.db.CreateUser(&models.User{
		UserID:           userID,
		SessionExpiresAt: now.Add(s.sessionExpiry),
		PermissionList:   []string{},
		CreatedAt:        now,
	})
}

// GetUser retrieves a user account
func (s *UserService) GetUser(userID string) (*models.User, error) {
	return s.db.GetUser(userID)
}

// PermissionList returns the permissions of a user. A missing user has the
// empty permission set.
func (s *UserService) PermissionList(userID string) ([]string, error) {
	return s.db.GetPermissionList(userID)
}

// UpdateSessionExpiry restarts the session window of a locally
// authenticated user at login. Certificates issued during the session never
// outlive the returned timestamp.
func (s *UserService) UpdateSessionExpiry(userID string, now time.Time) (time.Time, error) {
	expiresAt := now.Add(s.sessionExpiry)
	if err := s.db.SetSessionExpiresAt(userID, expiresAt); err != nil {
		return time.Time{}, err
	}
	return expiresAt, nil
}

// ListUsers retrieves all user accounts
func (s *UserService) ListUsers() ([]*models.User, error) {
	return s.db.ListUsers()
}

// DisableUser disables a user account. The active connections of the user
// are snapshotted first, while the certificate records still attribute
// them; then the account is disabled and its authorizations and
// certificates removed in one transaction; finally every snapshotted
// connection is terminated.
func (s *UserService) DisableUser(ctx context.Context, userID string, now time.Time) error {
	clientConnections, err := s.connections.Connections(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list connections: %w", err)
	}

	if err := s.db.DisableUserCascade(userID, now); err != nil {
		return err
	}

	for profileID, connectionList := range clientConnections {
		for _, connection := range connectionList {
			if _, err := s.manager.Kill(ctx, connection.CommonName); err != nil {
				s.logger.Warn("failed to kill connection",
					zap.String("profile_id", profileID),
					zap.String("common_name", connection.CommonName),
					zap.Error(err))
			}
		}
	}

	s.logger.Info("user disabled", zap.String("user_id", userID))

	return nil
}

// EnableUser re-enables a disabled user account.
func (s *UserService) EnableUser(userID string, now time.Time) error {
	if err := s.db.SetUserDisabled(userID, false); err != nil {
		return err
	}
	if err := s.db.AddUserMessage(userID, "notification", "account (re)enabled", now); err != nil {
		return err
	}

	s.logger.Info("user enabled", zap.String("user_id", userID))

	return nil
}

// DeleteTotpSecret removes the two-factor enrollment of a user.
func (s *UserService) DeleteTotpSecret(userID string, now time.Time) error {
	if err := s.db.DeleteOtpSecret(userID); err != nil {
		return err
	}
	return s.db.AddUserMessage(userID, "notification", "TOTP secret deleted", now)
}

// RegisterTotpSecret enrolls a user for two-factor authentication. The
// secret only sticks when the submitted code proves the user holds it, and
// an already enrolled user must delete the old secret first.
func (s *UserService) RegisterTotpSecret(userID, otpSecret, totpKey string, now time.Time) error {
	if _, err := s.db.GetOtpSecret(userID); err == nil {
		return errors.New("user already enrolled")
	} else if !errors.Is(err, database.ErrNotFound) {
		return err
	}

	if !validateTotpKey(otpSecret, totpKey, now) {
		s.recordOtpFailure(userID, now)
		return ErrInvalidOtpKey
	}

	return s.db.SetOtpSecret(userID, otpSecret)
}

// VerifyTotpKey checks a TOTP code against the enrolled secret of a user. A
// failed attempt lands in the user's message history.
func (s *UserService) VerifyTotpKey(userID, totpKey string, now time.Time) error {
	otpSecret, err := s.db.GetOtpSecret(userID)
	if errors.Is(err, database.ErrNotFound) {
		return errors.New("user not enrolled")
	}
	if err != nil {
		return err
	}

	if !validateTotpKey(otpSecret, totpKey, now) {
		s.recordOtpFailure(userID, now)
		return ErrInvalidOtpKey
	}

	return nil
}

// HasTotpSecret reports whether a user is enrolled for two-factor
// authentication.
func (s *UserService) HasTotpSecret(userID string) (bool, error) {
	_, err := s.db.GetOtpSecret(userID)
	if errors.Is(err, database.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GenerateTotpSecret generates a new TOTP enrollment secret for a user.
func (s *UserService) GenerateTotpSecret(userID, issuer string) (string, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: userID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	return key.Secret(), nil
}

func (s *UserService) recordOtpFailure(userID string, now time.Time) {
	message := "OTP validation failed: " + ErrInvalidOtpKey.Error()
	if err := s.db.AddUserMessage(userID, "notification", message, now); err != nil {
		s.logger.Warn("failed to record OTP failure message",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}

func validateTotpKey(otpSecret, totpKey string, now time.Time) bool {
	valid, err := totp.ValidateCustom(totpKey, otpSecret, now, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}
