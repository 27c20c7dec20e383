// Package models defines the data structures for database entities in the
// VPN user portal: users, client certificates, OAuth authorizations,
// connection accounting rows, messages and system configuration.
package models

import (
	"database/sql"
	"time"
)

// User represents a portal account. Accounts are created on first
// authentication and are never hard-deleted; disabling an account cascades
// to its authorizations and certificates instead.
type User struct {
	UserID           string         `db:"user_id"`
	PasswordHash     sql.NullString `db:"password_hash"`
	IsDisabled       bool           `db:"is_disabled"`
	SessionExpiresAt time.Time      `db:"session_expires_at"`
	PermissionList   []string       `db:"permission_list"`
	OtpSecret        sql.NullString `db:"otp_secret"`
	CreatedAt        time.Time      `db:"created_at"`
}

// HasOtpSecret reports whether a TOTP secret is enrolled for the user.
func (u *User) HasOtpSecret() bool {
	return u.OtpSecret.Valid && u.OtpSecret.String != ""
}

// Certificate represents an issued client certificate. The common name is
// globally unique and is the join key to live VPN connections.
type Certificate struct {
	CommonName  string    `db:"common_name" json:"common_name"`
	UserID      string    `db:"user_id" json:"user_id"`
	ClientID    string    `db:"client_id" json:"client_id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	ValidFrom   time.Time `db:"valid_from" json:"valid_from"`
	ValidTo     time.Time `db:"valid_to" json:"valid_to"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// UserCertificateInfo is the certificate row joined with the owning user,
// as needed by connect verification and live-connection listings.
type UserCertificateInfo struct {
	CommonName     string    `json:"common_name"`
	UserID         string    `json:"user_id"`
	ClientID       string    `json:"client_id"`
	ValidFrom      time.Time `json:"valid_from"`
	ValidTo        time.Time `json:"valid_to"`
	UserIsDisabled bool      `json:"user_is_disabled"`
}

// Authorization represents an OAuth grant for a user/client pair. Deleting
// it cascades to the certificates issued under that client for the user.
type Authorization struct {
	AuthKey   string    `db:"auth_key"`
	UserID    string    `db:"user_id"`
	ClientID  string    `db:"client_id"`
	Scope     string    `db:"scope"`
	CreatedAt time.Time `db:"created_at"`
}

// ConnectionLogEntry is one accounting row: opened by a connect event,
// closed by the matching disconnect event.
type ConnectionLogEntry struct {
	ID               int64         `db:"id" json:"id"`
	ProfileID        string        `db:"profile_id" json:"profile_id"`
	CommonName       string        `db:"common_name" json:"common_name"`
	IP4              string        `db:"ip4" json:"ip4"`
	IP6              string        `db:"ip6" json:"ip6"`
	ConnectedAt      time.Time     `db:"connected_at" json:"connected_at"`
	DisconnectedAt   sql.NullTime  `db:"disconnected_at" json:"disconnected_at"`
	BytesTransferred sql.NullInt64 `db:"bytes_transferred" json:"bytes_transferred"`
}

// UserMessage is a per-user notification, append-only.
type UserMessage struct {
	ID        int64     `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Type      string    `db:"type" json:"type"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SystemMessage is an admin-authored message shown to all users. At most one
// message of type "motd" exists at a time.
type SystemMessage struct {
	ID        int64     `db:"id" json:"id"`
	Type      string    `db:"type" json:"type"`
	Message   string    `db:"message" json:"message"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SystemConfig represents system-wide configuration stored in the database
type SystemConfig struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}
