package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CedricCorazza/vpn-user-portal/internal/config"
)

func TestHasProfileAccess(t *testing.T) {
	t.Run("Profile without ACL is open to everyone", func(t *testing.T) {
		profile := &config.ProfileConfig{EnableACL: false}

		assert.True(t, HasProfileAccess(profile, nil))
		assert.True(t, HasProfileAccess(profile, []string{}))
		assert.True(t, HasProfileAccess(profile, []string{"anything"}))
	})

	t.Run("ACL profile requires a matching permission", func(t *testing.T) {
		profile := &config.ProfileConfig{
			EnableACL:         true,
			ACLPermissionList: []string{"employee", "admin"},
		}

		assert.True(t, HasProfileAccess(profile, []string{"employee"}))
		assert.True(t, HasProfileAccess(profile, []string{"guest", "admin"}))
	})

	t.Run("ACL profile rejects a user without matching permission", func(t *testing.T) {
		profile := &config.ProfileConfig{
			EnableACL:         true,
			ACLPermissionList: []string{"employee"},
		}

		assert.False(t, HasProfileAccess(profile, []string{"guest"}))
		assert.False(t, HasProfileAccess(profile, []string{}))
		assert.False(t, HasProfileAccess(profile, nil))
	})

	t.Run("Permission match is exact", func(t *testing.T) {
		profile := &config.ProfileConfig{
			EnableACL:         true,
			ACLPermissionList: []string{"employee"},
		}

		assert.False(t, HasProfileAccess(profile, []string{"Employee"}))
		assert.False(t, HasProfileAccess(profile, []string{"employees"}))
	})
}
