package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Plain identifier", "alice", false},
		{"Email style", "alice@example.org", false},
		{"Spaces are printable ASCII", "alice smith", false},
		{"Empty", "", true},
		{"Too long", strings.Repeat("a", 257), true},
		{"Control character", "alice\x00", true},
		{"Non-ASCII", "ålice", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UserID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, got)
		})
	}
}

func TestProfileID(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Simple", "internet", false},
		{"With dots and dashes", "office.vpn-2", false},
		{"Empty", "", true},
		{"Too long", strings.Repeat("a", 65), true},
		{"Slash", "internet/0", true},
		{"Space", "internet 0", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ProfileID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCommonName(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"Lowercase hex", "aabbccddeeff00112233445566778899", false},
		{"Uppercase hex", "AABBCCDDEEFF00112233445566778899", false},
		{"Too short", "aabbccddeeff", true},
		{"Too long", "aabbccddeeff00112233445566778899aa", true},
		{"Non-hex", "zzbbccddeeff00112233445566778899", true},
		{"Empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CommonName(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServerCommonName(t *testing.T) {
	_, err := ServerCommonName("vpn.example.org")
	assert.NoError(t, err)

	_, err = ServerCommonName("")
	assert.Error(t, err)

	_, err = ServerCommonName("vpn example org")
	assert.Error(t, err)
}

func TestIPAddresses(t *testing.T) {
	t.Run("IP4", func(t *testing.T) {
		got, err := IP4("10.0.0.5")
		require.NoError(t, err)
		assert.Equal(t, "10.0.0.5", got)

		_, err = IP4("fd00::5")
		assert.Error(t, err)
		_, err = IP4("not an ip")
		assert.Error(t, err)
	})

	t.Run("IP6", func(t *testing.T) {
		got, err := IP6("fd00::5")
		require.NoError(t, err)
		assert.Equal(t, "fd00::5", got)

		_, err = IP6("10.0.0.5")
		assert.Error(t, err)
		_, err = IP6("not an ip")
		assert.Error(t, err)
	})

	t.Run("IPAddress accepts both families", func(t *testing.T) {
		_, err := IPAddress("10.0.0.5")
		assert.NoError(t, err)
		_, err = IPAddress("fd00::5")
		assert.NoError(t, err)
		_, err = IPAddress("10.0.0")
		assert.Error(t, err)
	})
}

func TestTimestamps(t *testing.T) {
	t.Run("ConnectedAt", func(t *testing.T) {
		got, err := ConnectedAt("1700000000")
		require.NoError(t, err)
		assert.Equal(t, time.Unix(1700000000, 0).UTC(), got)

		_, err = ConnectedAt("-1")
		assert.Error(t, err)
		_, err = ConnectedAt("yesterday")
		assert.Error(t, err)
	})

	t.Run("DisconnectedAt", func(t *testing.T) {
		got, err := DisconnectedAt("1700003600")
		require.NoError(t, err)
		assert.Equal(t, time.Unix(1700003600, 0).UTC(), got)
	})

	t.Run("DateTime", func(t *testing.T) {
		got, err := DateTime("2023-11-14 22:13:20")
		require.NoError(t, err)
		assert.Equal(t, time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC), got)

		_, err = DateTime("2023-11-14T22:13:20Z")
		assert.Error(t, err)
		_, err = DateTime("")
		assert.Error(t, err)
	})
}

func TestBytesTransferred(t *testing.T) {
	got, err := BytesTransferred("4096")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), got)

	got, err = BytesTransferred("0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), got)

	_, err = BytesTransferred("-1")
	assert.Error(t, err)
	_, err = BytesTransferred("lots")
	assert.Error(t, err)
}

func TestMessageID(t *testing.T) {
	got, err := MessageID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), got)

	_, err = MessageID("0")
	assert.Error(t, err)
	_, err = MessageID("-5")
	assert.Error(t, err)
	_, err = MessageID("abc")
	assert.Error(t, err)
}

func TestTotpKey(t *testing.T) {
	_, err := TotpKey("123456")
	assert.NoError(t, err)

	for _, invalid := range []string{"", "12345", "1234567", "12345a"} {
		_, err := TotpKey(invalid)
		assert.Error(t, err, "totp_key %q should be rejected", invalid)
	}
}

func TestFieldError(t *testing.T) {
	_, err := ProfileID("")
	require.Error(t, err)

	var fieldErr *FieldError
	require.ErrorAs(t, err, &fieldErr)
	assert.Equal(t, "profile_id", fieldErr.Field)
	assert.Contains(t, err.Error(), `"profile_id"`)
}
