// Package service implements the business logic of the portal: profile
// access control, certificate lifecycle, connection handling, user account
// management and message handling.
package service

import (
	"github.com/CedricCorazza/vpn-user-portal/internal/config"
)

// HasProfileAccess reports whether a user holding the given permissions may
// use the profile. A profile without ACL is open to every user; with ACL it
// requires at least one of the profile's permissions.
func HasProfileAccess(profile *config.ProfileConfig, permissionList []string) bool {
	if !profile.EnableACL {
		return true
	}
	for _, userPermission := range permissionList {
		for _, aclPermission := range profile.ACLPermissionList {
			if userPermission == aclPermission {
				return true
			}
		}
	}
	return false
}
