package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/openvpn"
)

const (
	testCommonName  = "aabbccddeeff00112233445566778899"
	ghostCommonName = "99887766554433221100ffeeddccbbaa"
)

func TestConnectionService_Connect(t *testing.T) {
	connectedAt := time.Unix(1700000000, 0).UTC()

	t.Run("Unknown certificate is rejected without side effects", func(t *testing.T) {
		db := setupTestDB(t)
		connectionService := NewConnectionService(db, testProfiles(), new(mockServerManager), zap.NewNop())

		err := connectionService.Connect("internet", testCommonName, "10.0.0.5", "fd00::5", connectedAt)
		require.Error(t, err)
		assert.EqualError(t, err, "user or certificate does not exist")

		entries, err := db.GetLogEntries(connectedAt, "10.0.0.5")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("Disabled account is rejected with a notification", func(t *testing.T) {
		db := setupTestDB(t)
		connectionService := NewConnectionService(db, testProfiles(), new(mockServerManager), zap.NewNop())

		addTestUser(t, db, "alice", true)
		addTestCertificate(t, db, testCommonName, "alice", "app")

		err := connectionService.Connect("internet", testCommonName, "10.0.0.5", "fd00::5", connectedAt)
		require.Error(t, err)
		assert.EqualError(t, err, "[VPN] unable to connect, account is disabled")

		// no accounting row
		entries, err := db.GetLogEntries(connectedAt, "10.0.0.5")
		require.NoError(t, err)
		assert.Empty(t, entries)

		// but the user got notified
		messages, err := db.UserMessages("alice")
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "[VPN] unable to connect, account is disabled", messages[0].Message)
	})

	t.Run("Missing ACL permission is rejected with a notification", func(t *testing.T) {
		db := setupTestDB(t)
		connectionService := NewConnectionService(db, testProfiles(), new(mockServerManager), zap.NewNop())

		addTestUser(t, db, "bob", false)
		addTestCertificate(t, db, testCommonName, "bob", "app")

		err := connectionService.Connect("employees", testCommonName, "10.0.0.5", "fd00::5", connectedAt)
		require.Error(t, err)
		assert.EqualError(t, err, "[VPN] unable to connect, user does not have required permissions")

		messages, err := db.UserMessages("bob")
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "[VPN] unable to connect, user does not have required permissions", messages[0].Message)
	})

	t.Run("ACL permission holder may connect", func(t *testing.T) {
		db := setupTestDB(t)
		connectionService := NewConnectionService(db, testProfiles(), new(mockServerManager), zap.NewNop())

		addTestUser(t, db, "carol", false)
		require.NoError(t, db.SetPermissionList("carol", []string{"employee"}))
		addTestCertificate(t, db, testCommonName, "carol", "app")

		err := connectionService.Connect("employees", testCommonName, "10.0.0.5", "fd00::5", connectedAt)
		require.NoError(t, err)

		entries, err := db.GetLogEntries(connectedAt, "10.0.0.5")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, testCommonName, entries[0].CommonName)
		assert.Equal(t, "employees", entries[0].ProfileID)
	})

	t.Run("Profile without ACL admits any valid certificate", func(t *testing.T) {
		db := setupTestDB(t)
		connectionService := NewConnectionService(db, testProfiles(), new(mockServerManager), zap.NewNop())

		addTestUser(t, db, "dave", false)
		addTestCertificate(t, db, testCommonName, "dave", "app")

		err := connectionService.Connect("internet", testCommonName, "10.0.0.5", "fd00::5", connectedAt)
		require.NoError(t, err)
	})
}

func TestConnectionService_Disconnect(t *testing.T) {
	connectedAt := time.Unix(1700000000, 0).UTC()
	disconnectedAt := time.Unix(1700003600, 0).UTC()

	t.Run("Disconnect closes the open accounting row", func(t *testing.T) {
		db := setupTestDB(t)
		connectionService := NewConnectionService(db, testProfiles(), new(mockServerManager), zap.NewNop())

		addTestUser(t, db, "alice", false)
		addTestCertificate(t, db, testCommonName, "alice", "app")
		require.NoError(t, connectionService.Connect("internet", testCommonName, "10.0.0.5", "fd00::5", connectedAt))

		err := connectionService.Disconnect("internet", testCommonName, "10.0.0.5", "fd00::5", connectedAt, disconnectedAt, 1024)
		require.NoError(t, err)

		entries, err := db.GetLogEntries(connectedAt.Add(time.Minute), "10.0.0.5")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.True(t, entries[0].DisconnectedAt.Valid)
		assert.Equal(t, int64(1024), entries[0].BytesTransferred.Int64)
	})

	t.Run("Disconnect is recorded even without certificate or connect row", func(t *testing.T) {
		db := setupTestDB(t)
		connectionService := NewConnectionService(db, testProfiles(), new(mockServerManager), zap.NewNop())

		err := connectionService.Disconnect("internet", testCommonName, "10.0.0.5", "fd00::5", connectedAt, disconnectedAt, 2048)
		require.NoError(t, err)

		entries, err := db.GetLogEntries(connectedAt.Add(time.Minute), "10.0.0.5")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, int64(2048), entries[0].BytesTransferred.Int64)
	})
}

func TestConnectionService_Connections(t *testing.T) {
	t.Run("Every configured profile appears as a key", func(t *testing.T) {
		db := setupTestDB(t)
		mockManager := new(mockServerManager)
		connectionService := NewConnectionService(db, testProfiles(), mockManager, zap.NewNop())

		mockManager.On("Connections", mock.Anything).Return(map[string][]openvpn.ClientConnection{}, nil)

		connections, err := connectionService.Connections(context.Background(), "")
		require.NoError(t, err)
		assert.Len(t, connections, 2)
		assert.Empty(t, connections["internet"])
		assert.Empty(t, connections["employees"])
	})

	t.Run("Connections are attributed to their users", func(t *testing.T) {
		db := setupTestDB(t)
		mockManager := new(mockServerManager)
		connectionService := NewConnectionService(db, testProfiles(), mockManager, zap.NewNop())

		addTestUser(t, db, "alice", false)
		addTestCertificate(t, db, testCommonName, "alice", "app")

		mockManager.On("Connections", mock.Anything).Return(map[string][]openvpn.ClientConnection{
			"internet": {
				{CommonName: testCommonName, VirtualIP4: "10.0.0.5", VirtualIP6: "fd00::5"},
			},
		}, nil)

		connections, err := connectionService.Connections(context.Background(), "")
		require.NoError(t, err)
		require.Len(t, connections["internet"], 1)
		assert.Equal(t, "alice", connections["internet"][0].UserID)
		assert.Equal(t, []string{"10.0.0.5", "fd00::5"}, connections["internet"][0].VirtualAddress)
	})

	t.Run("Ghost connections are dropped", func(t *testing.T) {
		db := setupTestDB(t)
		mockManager := new(mockServerManager)
		connectionService := NewConnectionService(db, testProfiles(), mockManager, zap.NewNop())

		addTestUser(t, db, "alice", false)
		addTestCertificate(t, db, testCommonName, "alice", "app")

		mockManager.On("Connections", mock.Anything).Return(map[string][]openvpn.ClientConnection{
			"internet": {
				{CommonName: testCommonName, VirtualIP4: "10.0.0.5", VirtualIP6: "fd00::5"},
				{CommonName: ghostCommonName, VirtualIP4: "10.0.0.6", VirtualIP6: "fd00::6"},
			},
		}, nil)

		connections, err := connectionService.Connections(context.Background(), "")
		require.NoError(t, err)
		require.Len(t, connections["internet"], 1)
		assert.Equal(t, testCommonName, connections["internet"][0].CommonName)
	})

	t.Run("User filter keeps only that user's connections", func(t *testing.T) {
		db := setupTestDB(t)
		mockManager := new(mockServerManager)
		connectionService := NewConnectionService(db, testProfiles(), mockManager, zap.NewNop())

		addTestUser(t, db, "alice", false)
		addTestUser(t, db, "bob", false)
		addTestCertificate(t, db, testCommonName, "alice", "app")
		addTestCertificate(t, db, ghostCommonName, "bob", "app")

		mockManager.On("Connections", mock.Anything).Return(map[string][]openvpn.ClientConnection{
			"internet": {
				{CommonName: testCommonName, VirtualIP4: "10.0.0.5", VirtualIP6: "fd00::5"},
				{CommonName: ghostCommonName, VirtualIP4: "10.0.0.6", VirtualIP6: "fd00::6"},
			},
		}, nil)

		connections, err := connectionService.Connections(context.Background(), "bob")
		require.NoError(t, err)
		require.Len(t, connections["internet"], 1)
		assert.Equal(t, "bob", connections["internet"][0].UserID)
	})
}
