// Package validation parses untrusted request fields into typed values. No
// field reaches storage or a cryptographic operation without passing through
// one of these functions first.
package validation

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"
)

// FieldError reports which field failed validation and the violated
// constraint.
type FieldError struct {
	Field  string
	Detail string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid value for %q: %s", e.Field, e.Detail)
}

func fieldError(field, detail string) error {
	return &FieldError{Field: field, Detail: detail}
}

var (
	userIDRegexp       = regexp.MustCompile(`^[\x20-\x7E]+$`)
	profileIDRegexp    = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)
	commonNameRegexp   = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)
	serverNameRegexp   = regexp.MustCompile(`^[a-zA-Z0-9.-]+$`)
	totpKeyRegexp      = regexp.MustCompile(`^[0-9]{6}$`)
	dateTimeLayout     = "2006-01-02 15:04:05"
	maxUserIDLength    = 256
	maxProfileIDLength = 64
)

// UserID validates a user identifier: printable ASCII, 1-256 characters.
func UserID(userID string) (string, error) {
	if len(userID) == 0 || len(userID) > maxUserIDLength {
		return "", fieldError("user_id", "length must be between 1 and 256 characters")
	}
	if !userIDRegexp.MatchString(userID) {
		return "", fieldError("user_id", "must consist of printable ASCII characters")
	}
	return userID, nil
}

// ProfileID validates a profile identifier.
func ProfileID(profileID string) (string, error) {
	if len(profileID) == 0 || len(profileID) > maxProfileIDLength {
		return "", fieldError("profile_id", "length must be between 1 and 64 characters")
	}
	if !profileIDRegexp.MatchString(profileID) {
		return "", fieldError("profile_id", "must consist of alphanumeric characters, dots or dashes")
	}
	return profileID, nil
}

// CommonName validates a client certificate common name: the fixed-length
// random hex token generated at issuance.
func CommonName(commonName string) (string, error) {
	if !commonNameRegexp.MatchString(commonName) {
		return "", fieldError("common_name", "must be 32 hexadecimal characters")
	}
	return commonName, nil
}

// ServerCommonName validates a server certificate common name (a hostname).
func ServerCommonName(commonName string) (string, error) {
	if len(commonName) == 0 || len(commonName) > 255 {
		return "", fieldError("common_name", "length must be between 1 and 255 characters")
	}
	if !serverNameRegexp.MatchString(commonName) {
		return "", fieldError("common_name", "must consist of alphanumeric characters, dots or dashes")
	}
	return commonName, nil
}

// IP4 validates an IPv4 address.
func IP4(ip4 string) (string, error) {
	ip := net.ParseIP(ip4)
	if ip == nil || ip.To4() == nil {
		return "", fieldError("ip4", "must be an IPv4 address")
	}
	return ip.String(), nil
}

// IP6 validates an IPv6 address.
func IP6(ip6 string) (string, error) {
	ip := net.ParseIP(ip6)
	if ip == nil || ip.To4() != nil {
		return "", fieldError("ip6", "must be an IPv6 address")
	}
	return ip.String(), nil
}

// IPAddress validates an IPv4 or IPv6 address.
func IPAddress(ipAddress string) (string, error) {
	ip := net.ParseIP(ipAddress)
	if ip == nil {
		return "", fieldError("ip_address", "must be an IP address")
	}
	return ip.String(), nil
}

// ConnectedAt validates a connect timestamp (non-negative unix seconds).
func ConnectedAt(connectedAt string) (time.Time, error) {
	return unixTime("connected_at", connectedAt)
}

// DisconnectedAt validates a disconnect timestamp.
func DisconnectedAt(disconnectedAt string) (time.Time, error) {
	return unixTime("disconnected_at", disconnectedAt)
}

func unixTime(field, value string) (time.Time, error) {
	ts, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, fieldError(field, "must be a unix timestamp")
	}
	if ts < 0 {
		return time.Time{}, fieldError(field, "must not be negative")
	}
	return time.Unix(ts, 0).UTC(), nil
}

// BytesTransferred validates a transferred byte count.
func BytesTransferred(bytesTransferred string) (int64, error) {
	n, err := strconv.ParseInt(bytesTransferred, 10, 64)
	if err != nil {
		return 0, fieldError("bytes_transferred", "must be an integer")
	}
	if n < 0 {
		return 0, fieldError("bytes_transferred", "must not be negative")
	}
	return n, nil
}

// MessageID validates a system message identifier.
func MessageID(messageID string) (int64, error) {
	id, err := strconv.ParseInt(messageID, 10, 64)
	if err != nil || id < 1 {
		return 0, fieldError("message_id", "must be a positive integer")
	}
	return id, nil
}

// DateTime validates a "YYYY-MM-DD HH:MM:SS" timestamp.
func DateTime(dateTime string) (time.Time, error) {
	t, err := time.Parse(dateTimeLayout, dateTime)
	if err != nil {
		return time.Time{}, fieldError("date_time", "must be formatted as YYYY-MM-DD HH:MM:SS")
	}
	return t.UTC(), nil
}

// TotpKey validates a 6-digit TOTP code.
func TotpKey(totpKey string) (string, error) {
	if !totpKeyRegexp.MatchString(totpKey) {
		return "", fieldError("totp_key", "must be 6 digits")
	}
	return totpKey, nil
}
