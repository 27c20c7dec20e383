package handlers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/api/middleware"
	"github.com/CedricCorazza/vpn-user-portal/internal/auth"
	"github.com/CedricCorazza/vpn-user-portal/internal/config"
	"github.com/CedricCorazza/vpn-user-portal/internal/openvpn"
	"github.com/CedricCorazza/vpn-user-portal/internal/service"
	"github.com/CedricCorazza/vpn-user-portal/internal/validation"
)

// VpnApiHandler serves the API the VPN client applications call with an
// OAuth access token.
type VpnApiHandler struct {
	certService    *service.CertificateService
	userService    *service.UserService
	messageService *service.MessageService
	profiles       map[string]*config.ProfileConfig
	logger         *zap.Logger
}

// NewVpnApiHandler creates a new client API handler
func NewVpnApiHandler(certService *service.CertificateService, userService *service.UserService, messageService *service.MessageService, profiles map[string]*config.ProfileConfig, logger *zap.Logger) *VpnApiHandler {
	return &VpnApiHandler{
		certService:    certService,
		userService:    userService,
		messageService: messageService,
		profiles:       profiles,
		logger:         logger,
	}
}

// ProfileList handles GET /profile_list: the profiles this user may see and
// use. The two_factor field is retained for wire compatibility and is
// always false, two-factor authentication runs through the portal now.
func (h *VpnApiHandler) ProfileList(c *gin.Context) {
	tokenInfo, ok := middleware.TokenInfo(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "profile_list", "no token info")
		return
	}

	userPermissions, err := h.permissionList(tokenInfo)
	if err != nil {
		h.logger.Error("permission lookup failed", zap.String("user_id", tokenInfo.UserID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "profile_list", "internal server error")
		return
	}

	userProfileList := []gin.H{}
	for _, profileID := range h.sortedProfileIDs() {
		profileConfig := h.profiles[profileID]
		if profileConfig.HideProfile {
			continue
		}
		if !service.HasProfileAccess(profileConfig, userPermissions) {
			continue
		}
		userProfileList = append(userProfileList, gin.H{
			"profile_id":   profileID,
			"display_name": profileConfig.DisplayName,
			"two_factor":   false,
		})
	}

	respond(c, "profile_list", userProfileList)
}

// UserInfo handles GET /user_info. Deprecated: two-factor state is portal
// business now and a disabled user cannot hold a working token, so all
// fields except user_id are hardcoded.
func (h *VpnApiHandler) UserInfo(c *gin.Context) {
	tokenInfo, ok := middleware.TokenInfo(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "user_info", "no token info")
		return
	}

	respond(c, "user_info", gin.H{
		"user_id":                      tokenInfo.UserID,
		"two_factor_enrolled":          false,
		"two_factor_enrolled_with":     []string{},
		"two_factor_supported_methods": []string{},
		"is_disabled":                  false,
	})
}

// CreateKeypair handles POST /create_keypair
func (h *VpnApiHandler) CreateKeypair(c *gin.Context) {
	tokenInfo, ok := middleware.TokenInfo(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "create_keypair", "no token info")
		return
	}

	now := time.Now().UTC()

	if err := h.userService.EnsureUser(tokenInfo.UserID, now); err != nil {
		h.logger.Error("user provisioning failed", zap.String("user_id", tokenInfo.UserID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "create_keypair", "internal server error")
		return
	}

	expiresAt, err := h.certService.ClientCertificateExpiry(tokenInfo.UserID, tokenInfo.IsLocal, now)
	if err != nil {
		h.logger.Error("expiry lookup failed", zap.String("user_id", tokenInfo.UserID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "create_keypair", "internal server error")
		return
	}

	clientCert, err := h.certService.IssueClientCertificate(tokenInfo.UserID, tokenInfo.ClientID, tokenInfo.ClientID, expiresAt, now)
	if err != nil {
		h.logger.Error("certificate issuance failed", zap.String("user_id", tokenInfo.UserID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "create_keypair", "internal server error")
		return
	}

	respond(c, "create_keypair", gin.H{
		"certificate": clientCert.CertificatePEM,
		"private_key": clientCert.PrivateKeyPEM,
	})
}

// CheckCertificate handles GET /check_certificate
func (h *VpnApiHandler) CheckCertificate(c *gin.Context) {
	commonName, err := validation.CommonName(c.Query("common_name"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "check_certificate", err.Error())
		return
	}

	result, err := h.certService.CheckCertificate(commonName, time.Now().UTC())
	if err != nil {
		h.logger.Error("certificate check failed", zap.String("common_name", commonName), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "check_certificate", "internal server error")
		return
	}

	responseData := gin.H{"is_valid": result.IsValid}
	if !result.IsValid {
		responseData["reason"] = result.Reason
	}

	respond(c, "check_certificate", responseData)
}

// ProfileConfig handles GET /profile_config: an OpenVPN client profile for
// a profile this user has access to, with CRLF line endings.
func (h *VpnApiHandler) ProfileConfig(c *gin.Context) {
	tokenInfo, ok := middleware.TokenInfo(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "profile_config", "no token info")
		return
	}

	requestedProfileID, err := validation.ProfileID(c.Query("profile_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "profile_config", err.Error())
		return
	}

	userPermissions, err := h.permissionList(tokenInfo)
	if err != nil {
		h.logger.Error("permission lookup failed", zap.String("user_id", tokenInfo.UserID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "profile_config", "internal server error")
		return
	}

	profileConfig, available := h.profiles[requestedProfileID]
	if available {
		available = !profileConfig.HideProfile && service.HasProfileAccess(profileConfig, userPermissions)
	}
	if !available {
		respondError(c, http.StatusBadRequest, "profile_config", "user has no access to this profile")
		return
	}

	clientConfig, err := openvpn.BuildClientConfig(profileConfig, h.certService.CACertificatePEM(), h.certService.TlsCryptKey(), true)
	if err != nil {
		h.logger.Error("profile config rendering failed", zap.String("profile_id", requestedProfileID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "profile_config", "internal server error")
		return
	}
	clientConfig = strings.ReplaceAll(clientConfig, "\n", "\r\n")

	c.Data(http.StatusOK, "application/x-openvpn-profile", []byte(clientConfig))
}

// UserMessages handles GET /user_messages. The application API has no use
// for the portal message history, the list is always empty.
func (h *VpnApiHandler) UserMessages(c *gin.Context) {
	respond(c, "user_messages", []gin.H{})
}

// SystemMessages handles GET /system_messages. The MOTD is delivered as a
// notification, the application API has no motd type.
func (h *VpnApiHandler) SystemMessages(c *gin.Context) {
	motdMessages, err := h.messageService.SystemMessages("motd")
	if err != nil {
		h.logger.Error("system message lookup failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "system_messages", "internal server error")
		return
	}

	msgList := []gin.H{}
	for _, motdMessage := range motdMessages {
		msgList = append(msgList, gin.H{
			"type":      "notification",
			"date_time": motdMessage.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
			"message":   motdMessage.Message,
		})
	}

	respond(c, "system_messages", msgList)
}

// permissionList resolves the permissions behind an access token. Only a
// locally issued token maps onto portal permissions, a federated identity
// gets none.
func (h *VpnApiHandler) permissionList(tokenInfo *auth.AccessTokenInfo) ([]string, error) {
	if !tokenInfo.IsLocal {
		return []string{}, nil
	}
	return h.userService.PermissionList(tokenInfo.UserID)
}

func (h *VpnApiHandler) sortedProfileIDs() []string {
	profileIDs := make([]string, 0, len(h.profiles))
	for profileID := range h.profiles {
		profileIDs = append(profileIDs, profileID)
	}
	sort.Strings(profileIDs)
	return profileIDs
}
