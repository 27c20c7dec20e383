package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/config"
	"github.com/CedricCorazza/vpn-user-portal/internal/database"
	"github.com/CedricCorazza/vpn-user-portal/internal/openvpn"
)

// Denied connection messages. These exact strings go to the VPN server node
// and into the message history of the affected user.
const (
	MsgCertificateUnknown = "user or certificate does not exist"
	MsgAccountDisabled    = "[VPN] unable to connect, account is disabled"
	MsgNoPermission       = "[VPN] unable to connect, user does not have required permissions"
)

// ConnectError is a denied connection attempt. It carries the message the
// node relays to the OpenVPN process, as opposed to a storage failure.
type ConnectError struct {
	Message string
}

func (e *ConnectError) Error() string {
	return e.Message
}

// Connection is a live VPN connection attributed to a portal user.
type Connection struct {
	UserID         string   `json:"user_id"`
	CommonName     string   `json:"common_name"`
	VirtualAddress []string `json:"virtual_address"`
}

// ConnectionService verifies connection attempts, records connection
// accounting and attributes live connections to users.
type ConnectionService struct {
	db       *database.Database
	profiles map[string]*config.ProfileConfig
	manager  openvpn.ServerManager
	logger   *zap.Logger
}

// NewConnectionService creates a new connection service
func NewConnectionService(db *database.Database, profiles map[string]*config.ProfileConfig, manager openvpn.ServerManager, logger *zap.Logger) *ConnectionService {
	return &ConnectionService{
		db:       db,
		profiles: profiles,
		manager:  manager,
		logger:   logger,
	}
}

// Connect verifies a connection attempt and records the accounting row. The
// checks run in a fixed order: certificate existence, account disabled,
// profile ACL. A denied attempt records no accounting row; denials caused by
// the account state are also appended to the user's message history.
func (s *ConnectionService) Connect(profileID, commonName, ip4, ip6 string, connectedAt time.Time) error {
	info, err := s.db.GetUserCertificateInfo(commonName)
	if errors.Is(err, database.ErrNotFound) {
		return &ConnectError{Message: MsgCertificateUnknown}
	}
	if err != nil {
		return err
	}

	if info.UserIsDisabled {
		s.notifyDenied(info.UserID, MsgAccountDisabled, connectedAt)
		return &ConnectError{Message: MsgAccountDisabled}
	}

	profile, ok := s.profiles[profileID]
	if !ok {
		return fmt.Errorf("profile %q does not exist", profileID)
	}
	if profile.EnableACL {
		permissionList, err := s.db.GetPermissionList(info.UserID)
		if err != nil {
			return err
		}
		if !HasProfileAccess(profile, permissionList) {
			s.notifyDenied(info.UserID, MsgNoPermission, connectedAt)
			return &ConnectError{Message: MsgNoPermission}
		}
	}

	return s.db.ClientConnect(profileID, commonName, ip4, ip6, connectedAt)
}

// Disconnect records the end of a connection. It runs unconditionally: the
// traffic happened even if the account was disabled in the meantime, so the
// accounting row is always closed.
func (s *ConnectionService) Disconnect(profileID, commonName, ip4, ip6 string, connectedAt, disconnectedAt time.Time, bytesTransferred int64) error {
	return s.db.ClientDisconnect(profileID, commonName, ip4, ip6, connectedAt, disconnectedAt, bytesTransferred)
}

// Connections returns the live connections per profile, attributed to their
// users. When userID is non-empty only that user's connections are kept. A
// connection whose common name has no certificate record is dropped: the
// portal cannot attribute it, reconciliation is up to the operator.
func (s *ConnectionService) Connections(ctx context.Context, userID string) (map[string][]*Connection, error) {
	managed, err := s.manager.Connections(ctx)
	if err != nil {
		return nil, err
	}

	connections := make(map[string][]*Connection, len(s.profiles))
	for profileID := range s.profiles {
		profileConnections := []*Connection{}
		for _, clientConnection := range managed[profileID] {
			info, err := s.db.GetUserCertificateInfo(clientConnection.CommonName)
			if errors.Is(err, database.ErrNotFound) {
				s.logger.Warn("connection without certificate record",
					zap.String("profile_id", profileID),
					zap.String("common_name", clientConnection.CommonName))
				continue
			}
			if err != nil {
				return nil, err
			}
			if userID != "" && info.UserID != userID {
				continue
			}
			profileConnections = append(profileConnections, &Connection{
				UserID:         info.UserID,
				CommonName:     clientConnection.CommonName,
				VirtualAddress: []string{clientConnection.VirtualIP4, clientConnection.VirtualIP6},
			})
		}
		connections[profileID] = profileConnections
	}

	return connections, nil
}

func (s *ConnectionService) notifyDenied(userID, message string, now time.Time) {
	if err := s.db.AddUserMessage(userID, "notification", message, now); err != nil {
		s.logger.Warn("failed to record denied connection message",
			zap.String("user_id", userID),
			zap.Error(err))
	}
}
