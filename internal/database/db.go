// Package database provides database connection management, migrations, and
// data access methods for the VPN user portal.
package database

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CedricCorazza/vpn-user-portal/internal/config"
	"github.com/CedricCorazza/vpn-user-portal/internal/database/models"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a requested row does not exist. Callers use it
// to distinguish "not found" (an expected steady-state outcome for
// certificate and user lookups) from other storage failures.
var ErrNotFound = errors.New("not found")

// Database represents the database connection and operations
type Database struct {
	db     *sql.DB
	dbType string
}

// New creates a new database connection
func New(cfg *config.Config) (*Database, error) {
	var db *sql.DB
	var err error

	switch cfg.Database.Type {
	case "sqlite":
		db, err = sql.Open("sqlite3", cfg.Database.SQLite.Path+"?_foreign_keys=on")
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		// SQLite only allows one writer at a time
		db.SetMaxOpenConns(1)
	case "postgres":
		db, err = sql.Open("postgres", cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.Postgres.MaxOpenConns)
		db.SetMaxIdleConns(cfg.Database.Postgres.MaxIdleConns)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		db:     db,
		dbType: cfg.Database.Type,
	}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// Migrate runs database migrations
func (d *Database) Migrate() error {
	var migrationFiles []string
	if d.dbType == "postgres" {
		migrationFiles = []string{
			"migrations/000001_init_schema.postgres.up.sql",
		}
	} else {
		migrationFiles = []string{
			"migrations/000001_init_schema.up.sql",
		}
	}

	for _, migrationFile := range migrationFiles {
		content, err := migrationsFS.ReadFile(migrationFile)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", migrationFile, err)
		}

		// Remove comments and split into statements
		var statements []string
		var currentStmt strings.Builder
		for _, line := range strings.Split(string(content), "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "--") || line == "" {
				continue
			}

			currentStmt.WriteString(line)
			currentStmt.WriteString("\n")

			if strings.HasSuffix(line, ";") {
				stmt := strings.TrimSpace(currentStmt.String())
				if stmt != "" {
					statements = append(statements, stmt)
				}
				currentStmt.Reset()
			}
		}

		for _, stmt := range statements {
			if _, err := d.db.Exec(stmt); err != nil {
				if !strings.Contains(err.Error(), "already exists") {
					return fmt.Errorf("migration %s failed: %w\nStatement: %s", migrationFile, err, stmt)
				}
			}
		}
	}

	return nil
}

// DB returns the underlying database connection for direct queries
func (d *Database) DB() *sql.DB {
	return d.db
}

// notFound maps sql.ErrNoRows onto the ErrNotFound sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// User operations

// CreateUser creates a new user account
func (d *Database) CreateUser(user *models.User) error {
	permissions, err := json.Marshal(user.PermissionList)
	if err != nil {
		return fmt.Errorf("failed to marshal permission list: %w", err)
	}

	query := `INSERT INTO users (user_id, password_hash, is_disabled, session_expires_at, permission_list, otp_secret, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	if d.dbType == "postgres" {
		query = `INSERT INTO users (user_id, password_hash, is_disabled, session_expires_at, permission_list, otp_secret, created_at)
		         VALUES ($1, $2, $3, $4, $5, $6, $7)`
	}

	_, err = d.db.Exec(query, user.UserID, user.PasswordHash, user.IsDisabled,
		user.SessionExpiresAt, string(permissions), user.OtpSecret, user.CreatedAt)
	return err
}

// GetUser retrieves a user by ID
func (d *Database) GetUser(userID string) (*models.User, error) {
	query := `SELECT user_id, password_hash, is_disabled, session_expires_at, permission_list, otp_secret, created_at
	          FROM users WHERE user_id = ?`
	if d.dbType == "postgres" {
		query = `SELECT user_id, password_hash, is_disabled, session_expires_at, permission_list, otp_secret, created_at
		         FROM users WHERE user_id = $1`
	}

	var user models.User
	var permissions string
	err := d.db.QueryRow(query, userID).Scan(
		&user.UserID, &user.PasswordHash, &user.IsDisabled,
		&user.SessionExpiresAt, &permissions, &user.OtpSecret, &user.CreatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	if err := json.Unmarshal([]byte(permissions), &user.PermissionList); err != nil {
		return nil, fmt.Errorf("failed to unmarshal permission list: %w", err)
	}
	return &user, nil
}

// ListUsers retrieves all user accounts
func (d *Database) ListUsers() ([]*models.User, error) {
	query := `SELECT user_id, password_hash, is_disabled, session_expires_at, permission_list, otp_secret, created_at
	          FROM users ORDER BY user_id`

	rows, err := d.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var user models.User
		var permissions string
		err := rows.Scan(&user.UserID, &user.PasswordHash, &user.IsDisabled,
			&user.SessionExpiresAt, &permissions, &user.OtpSecret, &user.CreatedAt)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(permissions), &user.PermissionList); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permission list: %w", err)
		}
		users = append(users, &user)
	}

	return users, rows.Err()
}

// SetUserDisabled updates the disabled flag of a user
func (d *Database) SetUserDisabled(userID string, isDisabled bool) error {
	query := `UPDATE users SET is_disabled = ? WHERE user_id = ?`
	if d.dbType == "postgres" {
		query = `UPDATE users SET is_disabled = $1 WHERE user_id = $2`
	}

	result, err := d.db.Exec(query, isDisabled, userID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSessionExpiresAt records the session expiry of a locally authenticated
// user; certificates issued to local sessions never outlive this timestamp.
func (d *Database) SetSessionExpiresAt(userID string, expiresAt time.Time) error {
	query := `UPDATE users SET session_expires_at = ? WHERE user_id = ?`
	if d.dbType == "postgres" {
		query = `UPDATE users SET session_expires_at = $1 WHERE user_id = $2`
	}

	_, err := d.db.Exec(query, expiresAt, userID)
	return err
}

// GetSessionExpiresAt retrieves the recorded session expiry of a user
func (d *Database) GetSessionExpiresAt(userID string) (time.Time, error) {
	query := `SELECT session_expires_at FROM users WHERE user_id = ?`
	if d.dbType == "postgres" {
		query = `SELECT session_expires_at FROM users WHERE user_id = $1`
	}

	var expiresAt time.Time
	if err := d.db.QueryRow(query, userID).Scan(&expiresAt); err != nil {
		return time.Time{}, notFound(err)
	}
	return expiresAt, nil
}

// SetPermissionList replaces the permission set of a user
func (d *Database) SetPermissionList(userID string, permissionList []string) error {
	permissions, err := json.Marshal(permissionList)
	if err != nil {
		return fmt.Errorf("failed to marshal permission list: %w", err)
	}

	query := `UPDATE users SET permission_list = ? WHERE user_id = ?`
	if d.dbType == "postgres" {
		query = `UPDATE users SET permission_list = $1 WHERE user_id = $2`
	}

	_, err = d.db.Exec(query, string(permissions), userID)
	return err
}

// GetPermissionList retrieves the permission set of a user. A missing user
// has the empty permission set.
func (d *Database) GetPermissionList(userID string) ([]string, error) {
	user, err := d.GetUser(userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return []string{}, nil
		}
		return nil, err
	}
	return user.PermissionList, nil
}

// SetOtpSecret stores the TOTP secret of a user
func (d *Database) SetOtpSecret(userID, otpSecret string) error {
	query := `UPDATE users SET otp_secret = ? WHERE user_id = ?`
	if d.dbType == "postgres" {
		query = `UPDATE users SET otp_secret = $1 WHERE user_id = $2`
	}

	_, err := d.db.Exec(query, otpSecret, userID)
	return err
}

// GetOtpSecret retrieves the TOTP secret of a user
func (d *Database) GetOtpSecret(userID string) (string, error) {
	query := `SELECT otp_secret FROM users WHERE user_id = ?`
	if d.dbType == "postgres" {
		query = `SELECT otp_secret FROM users WHERE user_id = $1`
	}

	var otpSecret sql.NullString
	if err := d.db.QueryRow(query, userID).Scan(&otpSecret); err != nil {
		return "", notFound(err)
	}
	if !otpSecret.Valid || otpSecret.String == "" {
		return "", ErrNotFound
	}
	return otpSecret.String, nil
}

// DeleteOtpSecret removes the TOTP secret of a user
func (d *Database) DeleteOtpSecret(userID string) error {
	query := `UPDATE users SET otp_secret = NULL WHERE user_id = ?`
	if d.dbType == "postgres" {
		query = `UPDATE users SET otp_secret = NULL WHERE user_id = $1`
	}

	_, err := d.db.Exec(query, userID)
	return err
}

// Certificate operations

// AddCertificate stores an issued client certificate
func (d *Database) AddCertificate(cert *models.Certificate) error {
	query := `INSERT INTO certificates (common_name, user_id, client_id, display_name, valid_from, valid_to, created_at)
	          VALUES (?, ?, ?, ?, ?, ?, ?)`
	if d.dbType == "postgres" {
		query = `INSERT INTO certificates (common_name, user_id, client_id, display_name, valid_from, valid_to, created_at)
		         VALUES ($1, $2, $3, $4, $5, $6, $7)`
	}

	_, err := d.db.Exec(query, cert.CommonName, cert.UserID, cert.ClientID,
		cert.DisplayName, cert.ValidFrom, cert.ValidTo, cert.CreatedAt)
	return err
}

// GetUserCertificateInfo retrieves a certificate joined with its owning user
func (d *Database) GetUserCertificateInfo(commonName string) (*models.UserCertificateInfo, error) {
	query := `SELECT c.common_name, c.user_id, c.client_id, c.valid_from, c.valid_to, u.is_disabled
	          FROM certificates c JOIN users u ON u.user_id = c.user_id
	          WHERE c.common_name = ?`
	if d.dbType == "postgres" {
		query = `SELECT c.common_name, c.user_id, c.client_id, c.valid_from, c.valid_to, u.is_disabled
		         FROM certificates c JOIN users u ON u.user_id = c.user_id
		         WHERE c.common_name = $1`
	}

	var info models.UserCertificateInfo
	err := d.db.QueryRow(query, commonName).Scan(
		&info.CommonName, &info.UserID, &info.ClientID,
		&info.ValidFrom, &info.ValidTo, &info.UserIsDisabled,
	)
	if err != nil {
		return nil, notFound(err)
	}
	return &info, nil
}

// GetCertificates retrieves all certificates of a user
func (d *Database) GetCertificates(userID string) ([]*models.Certificate, error) {
	query := `SELECT common_name, user_id, client_id, display_name, valid_from, valid_to, created_at
	          FROM certificates WHERE user_id = ? ORDER BY created_at DESC`
	if d.dbType == "postgres" {
		query = `SELECT common_name, user_id, client_id, display_name, valid_from, valid_to, created_at
		         FROM certificates WHERE user_id = $1 ORDER BY created_at DESC`
	}

	rows, err := d.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var certificates []*models.Certificate
	for rows.Next() {
		var cert models.Certificate
		err := rows.Scan(&cert.CommonName, &cert.UserID, &cert.ClientID,
			&cert.DisplayName, &cert.ValidFrom, &cert.ValidTo, &cert.CreatedAt)
		if err != nil {
			return nil, err
		}
		certificates = append(certificates, &cert)
	}

	return certificates, rows.Err()
}

// DeleteCertificate deletes a certificate by common name
func (d *Database) DeleteCertificate(commonName string) error {
	query := `DELETE FROM certificates WHERE common_name = ?`
	if d.dbType == "postgres" {
		query = `DELETE FROM certificates WHERE common_name = $1`
	}

	result, err := d.db.Exec(query, commonName)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Authorization operations

// AddAuthorization stores an OAuth grant
func (d *Database) AddAuthorization(authorization *models.Authorization) error {
	query := `INSERT INTO authorizations (auth_key, user_id, client_id, scope, created_at)
	          VALUES (?, ?, ?, ?, ?)`
	if d.dbType == "postgres" {
		query = `INSERT INTO authorizations (auth_key, user_id, client_id, scope, created_at)
		         VALUES ($1, $2, $3, $4, $5)`
	}

	_, err := d.db.Exec(query, authorization.AuthKey, authorization.UserID,
		authorization.ClientID, authorization.Scope, authorization.CreatedAt)
	return err
}

// GetAuthorizations retrieves all OAuth grants of a user
func (d *Database) GetAuthorizations(userID string) ([]*models.Authorization, error) {
	query := `SELECT auth_key, user_id, client_id, scope, created_at
	          FROM authorizations WHERE user_id = ? ORDER BY created_at`
	if d.dbType == "postgres" {
		query = `SELECT auth_key, user_id, client_id, scope, created_at
		         FROM authorizations WHERE user_id = $1 ORDER BY created_at`
	}

	rows, err := d.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var authorizations []*models.Authorization
	for rows.Next() {
		var authorization models.Authorization
		err := rows.Scan(&authorization.AuthKey, &authorization.UserID,
			&authorization.ClientID, &authorization.Scope, &authorization.CreatedAt)
		if err != nil {
			return nil, err
		}
		authorizations = append(authorizations, &authorization)
	}

	return authorizations, rows.Err()
}

// DeleteAuthorization deletes an OAuth grant by its key
func (d *Database) DeleteAuthorization(authKey string) error {
	query := `DELETE FROM authorizations WHERE auth_key = ?`
	if d.dbType == "postgres" {
		query = `DELETE FROM authorizations WHERE auth_key = $1`
	}

	_, err := d.db.Exec(query, authKey)
	return err
}

// DisableUserCascade marks a user disabled, appends the "account disabled"
// notification, and deletes every authorization of the user together with
// the certificates issued under each authorization's client. The storage
// mutations run in a single transaction; terminating live connections is the
// caller's responsibility and happens after the transaction commits.
func (d *Database) DisableUserCascade(userID string, now time.Time) error {
	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	disableQuery := `UPDATE users SET is_disabled = ? WHERE user_id = ?`
	messageQuery := `INSERT INTO user_messages (user_id, type, message, created_at) VALUES (?, ?, ?, ?)`
	authQuery := `SELECT auth_key, client_id FROM authorizations WHERE user_id = ?`
	deleteAuthQuery := `DELETE FROM authorizations WHERE auth_key = ?`
	deleteCertsQuery := `DELETE FROM certificates WHERE user_id = ? AND client_id = ?`
	if d.dbType == "postgres" {
		disableQuery = `UPDATE users SET is_disabled = $1 WHERE user_id = $2`
		messageQuery = `INSERT INTO user_messages (user_id, type, message, created_at) VALUES ($1, $2, $3, $4)`
		authQuery = `SELECT auth_key, client_id FROM authorizations WHERE user_id = $1`
		deleteAuthQuery = `DELETE FROM authorizations WHERE auth_key = $1`
		deleteCertsQuery = `DELETE FROM certificates WHERE user_id = $1 AND client_id = $2`
	}

	result, err := tx.Exec(disableQuery, true, userID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.Exec(messageQuery, userID, "notification", "account disabled", now); err != nil {
		return err
	}

	rows, err := tx.Query(authQuery, userID)
	if err != nil {
		return err
	}
	type grant struct{ authKey, clientID string }
	var grants []grant
	for rows.Next() {
		var g grant
		if err := rows.Scan(&g.authKey, &g.clientID); err != nil {
			rows.Close()
			return err
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, g := range grants {
		if _, err := tx.Exec(deleteAuthQuery, g.authKey); err != nil {
			return err
		}
		if _, err := tx.Exec(deleteCertsQuery, userID, g.clientID); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Connection accounting operations

// ClientConnect records a connection-open accounting row
func (d *Database) ClientConnect(profileID, commonName, ip4, ip6 string, connectedAt time.Time) error {
	query := `INSERT INTO connection_log (profile_id, common_name, ip4, ip6, connected_at)
	          VALUES (?, ?, ?, ?, ?)`
	if d.dbType == "postgres" {
		query = `INSERT INTO connection_log (profile_id, common_name, ip4, ip6, connected_at)
		         VALUES ($1, $2, $3, $4, $5)`
	}

	_, err := d.db.Exec(query, profileID, commonName, ip4, ip6, connectedAt)
	return err
}

// ClientDisconnect closes the matching connection-open row with the
// disconnect timestamp and transferred byte count. If no open row matches, a
// complete row is inserted so the accounting history stays intact.
func (d *Database) ClientDisconnect(profileID, commonName, ip4, ip6 string, connectedAt, disconnectedAt time.Time, bytesTransferred int64) error {
	query := `UPDATE connection_log SET disconnected_at = ?, bytes_transferred = ?
	          WHERE profile_id = ? AND common_name = ? AND ip4 = ? AND ip6 = ? AND connected_at = ? AND disconnected_at IS NULL`
	if d.dbType == "postgres" {
		query = `UPDATE connection_log SET disconnected_at = $1, bytes_transferred = $2
		         WHERE profile_id = $3 AND common_name = $4 AND ip4 = $5 AND ip6 = $6 AND connected_at = $7 AND disconnected_at IS NULL`
	}

	result, err := d.db.Exec(query, disconnectedAt, bytesTransferred, profileID, commonName, ip4, ip6, connectedAt)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	insertQuery := `INSERT INTO connection_log (profile_id, common_name, ip4, ip6, connected_at, disconnected_at, bytes_transferred)
	                VALUES (?, ?, ?, ?, ?, ?, ?)`
	if d.dbType == "postgres" {
		insertQuery = `INSERT INTO connection_log (profile_id, common_name, ip4, ip6, connected_at, disconnected_at, bytes_transferred)
		               VALUES ($1, $2, $3, $4, $5, $6, $7)`
	}

	_, err = d.db.Exec(insertQuery, profileID, commonName, ip4, ip6, connectedAt, disconnectedAt, bytesTransferred)
	return err
}

// GetLogEntries retrieves the accounting rows that had the given IP address
// assigned at the given moment
func (d *Database) GetLogEntries(dateTime time.Time, ipAddress string) ([]*models.ConnectionLogEntry, error) {
	query := `SELECT id, profile_id, common_name, ip4, ip6, connected_at, disconnected_at, bytes_transferred
	          FROM connection_log
	          WHERE (ip4 = ? OR ip6 = ?) AND connected_at <= ? AND (disconnected_at IS NULL OR disconnected_at >= ?)
	          ORDER BY connected_at DESC`
	if d.dbType == "postgres" {
		query = `SELECT id, profile_id, common_name, ip4, ip6, connected_at, disconnected_at, bytes_transferred
		         FROM connection_log
		         WHERE (ip4 = $1 OR ip6 = $2) AND connected_at <= $3 AND (disconnected_at IS NULL OR disconnected_at >= $4)
		         ORDER BY connected_at DESC`
	}

	rows, err := d.db.Query(query, ipAddress, ipAddress, dateTime, dateTime)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.ConnectionLogEntry
	for rows.Next() {
		var entry models.ConnectionLogEntry
		err := rows.Scan(&entry.ID, &entry.ProfileID, &entry.CommonName, &entry.IP4,
			&entry.IP6, &entry.ConnectedAt, &entry.DisconnectedAt, &entry.BytesTransferred)
		if err != nil {
			return nil, err
		}
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Message operations

// AddUserMessage appends a notification to the message history of a user
func (d *Database) AddUserMessage(userID, messageType, message string, now time.Time) error {
	query := `INSERT INTO user_messages (user_id, type, message, created_at) VALUES (?, ?, ?, ?)`
	if d.dbType == "postgres" {
		query = `INSERT INTO user_messages (user_id, type, message, created_at) VALUES ($1, $2, $3, $4)`
	}

	_, err := d.db.Exec(query, userID, messageType, message, now)
	return err
}

// UserMessages retrieves the message history of a user, newest first
func (d *Database) UserMessages(userID string) ([]*models.UserMessage, error) {
	query := `SELECT id, user_id, type, message, created_at
	          FROM user_messages WHERE user_id = ? ORDER BY created_at DESC, id DESC`
	if d.dbType == "postgres" {
		query = `SELECT id, user_id, type, message, created_at
		         FROM user_messages WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	}

	rows, err := d.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.UserMessage
	for rows.Next() {
		var message models.UserMessage
		err := rows.Scan(&message.ID, &message.UserID, &message.Type, &message.Message, &message.CreatedAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, &message)
	}

	return messages, rows.Err()
}

// AddSystemMessage stores a system message
func (d *Database) AddSystemMessage(messageType, message string, now time.Time) error {
	query := `INSERT INTO system_messages (type, message, created_at) VALUES (?, ?, ?)`
	if d.dbType == "postgres" {
		query = `INSERT INTO system_messages (type, message, created_at) VALUES ($1, $2, $3)`
	}

	_, err := d.db.Exec(query, messageType, message, now)
	return err
}

// SystemMessages retrieves all system messages of the given type
func (d *Database) SystemMessages(messageType string) ([]*models.SystemMessage, error) {
	query := `SELECT id, type, message, created_at
	          FROM system_messages WHERE type = ? ORDER BY created_at`
	if d.dbType == "postgres" {
		query = `SELECT id, type, message, created_at
		         FROM system_messages WHERE type = $1 ORDER BY created_at`
	}

	rows, err := d.db.Query(query, messageType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*models.SystemMessage
	for rows.Next() {
		var message models.SystemMessage
		err := rows.Scan(&message.ID, &message.Type, &message.Message, &message.CreatedAt)
		if err != nil {
			return nil, err
		}
		messages = append(messages, &message)
	}

	return messages, rows.Err()
}

// DeleteSystemMessagesOfType deletes all system messages of the given type.
// Used to keep the MOTD a singleton when a new one is set.
func (d *Database) DeleteSystemMessagesOfType(messageType string) error {
	query := `DELETE FROM system_messages WHERE type = ?`
	if d.dbType == "postgres" {
		query = `DELETE FROM system_messages WHERE type = $1`
	}

	_, err := d.db.Exec(query, messageType)
	return err
}

// DeleteSystemMessage deletes a system message by ID
func (d *Database) DeleteSystemMessage(messageID int64) error {
	query := `DELETE FROM system_messages WHERE id = ?`
	if d.dbType == "postgres" {
		query = `DELETE FROM system_messages WHERE id = $1`
	}

	result, err := d.db.Exec(query, messageID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// System config operations

// SetSystemConfig sets a system configuration value
func (d *Database) SetSystemConfig(key, value string) error {
	query := `INSERT OR REPLACE INTO system_config (key, value, updated_at) VALUES (?, ?, ?)`
	if d.dbType == "postgres" {
		query = `INSERT INTO system_config (key, value, updated_at)
		         VALUES ($1, $2, $3)
		         ON CONFLICT (key) DO UPDATE SET value = $2, updated_at = $3`
	}

	_, err := d.db.Exec(query, key, value, time.Now().UTC())
	return err
}

// GetSystemConfig retrieves a system configuration value
func (d *Database) GetSystemConfig(key string) (string, error) {
	query := `SELECT value FROM system_config WHERE key = ?`
	if d.dbType == "postgres" {
		query = `SELECT value FROM system_config WHERE key = $1`
	}

	var value string
	if err := d.db.QueryRow(query, key).Scan(&value); err != nil {
		return "", notFound(err)
	}
	return value, nil
}
