package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/config"
	"github.com/CedricCorazza/vpn-user-portal/internal/service"
	"github.com/CedricCorazza/vpn-user-portal/internal/validation"
)

// NodeHandler serves the API the VPN server nodes call: connection
// verification and accounting, server certificate provisioning and profile
// distribution.
type NodeHandler struct {
	certService       *service.CertificateService
	connectionService *service.ConnectionService
	profiles          map[string]*config.ProfileConfig
	logger            *zap.Logger
}

// NewNodeHandler creates a new node API handler
func NewNodeHandler(certService *service.CertificateService, connectionService *service.ConnectionService, profiles map[string]*config.ProfileConfig, logger *zap.Logger) *NodeHandler {
	return &NodeHandler{
		certService:       certService,
		connectionService: connectionService,
		profiles:          profiles,
		logger:            logger,
	}
}

// Connect handles POST /connect
func (h *NodeHandler) Connect(c *gin.Context) {
	profileID, err := validation.ProfileID(c.PostForm("profile_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "connect", err.Error())
		return
	}
	commonName, err := validation.CommonName(c.PostForm("common_name"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "connect", err.Error())
		return
	}
	ip4, err := validation.IP4(c.PostForm("ip4"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "connect", err.Error())
		return
	}
	ip6, err := validation.IP6(c.PostForm("ip6"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "connect", err.Error())
		return
	}
	connectedAt, err := validation.ConnectedAt(c.PostForm("connected_at"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "connect", err.Error())
		return
	}

	if err := h.connectionService.Connect(profileID, commonName, ip4, ip6, connectedAt); err != nil {
		var connectErr *service.ConnectError
		if errors.As(err, &connectErr) {
			respondError(c, http.StatusBadRequest, "connect", connectErr.Message)
			return
		}
		h.logger.Error("connect failed", zap.String("common_name", commonName), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "connect", "internal server error")
		return
	}

	respond(c, "connect", nil)
}

// Disconnect handles POST /disconnect
func (h *NodeHandler) Disconnect(c *gin.Context) {
	profileID, err := validation.ProfileID(c.PostForm("profile_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "disconnect", err.Error())
		return
	}
	commonName, err := validation.CommonName(c.PostForm("common_name"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "disconnect", err.Error())
		return
	}
	ip4, err := validation.IP4(c.PostForm("ip4"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "disconnect", err.Error())
		return
	}
	ip6, err := validation.IP6(c.PostForm("ip6"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "disconnect", err.Error())
		return
	}
	connectedAt, err := validation.ConnectedAt(c.PostForm("connected_at"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "disconnect", err.Error())
		return
	}
	disconnectedAt, err := validation.DisconnectedAt(c.PostForm("disconnected_at"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "disconnect", err.Error())
		return
	}
	bytesTransferred, err := validation.BytesTransferred(c.PostForm("bytes_transferred"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "disconnect", err.Error())
		return
	}

	if err := h.connectionService.Disconnect(profileID, commonName, ip4, ip6, connectedAt, disconnectedAt, bytesTransferred); err != nil {
		h.logger.Error("disconnect failed", zap.String("common_name", commonName), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "disconnect", "internal server error")
		return
	}

	respond(c, "disconnect", nil)
}

// AddServerCertificate handles POST /add_server_certificate
func (h *NodeHandler) AddServerCertificate(c *gin.Context) {
	commonName, err := validation.ServerCommonName(c.PostForm("common_name"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "add_server_certificate", err.Error())
		return
	}

	serverCert, err := h.certService.IssueServerCertificate(commonName, time.Now().UTC())
	if err != nil {
		h.logger.Error("server certificate issuance failed", zap.String("common_name", commonName), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "add_server_certificate", "internal server error")
		return
	}

	respondStatus(c, http.StatusCreated, "add_server_certificate", gin.H{
		"certificate": serverCert.CertificatePEM,
		"private_key": serverCert.PrivateKeyPEM,
		"tls_crypt":   serverCert.TlsCrypt,
		"ca":          serverCert.CAPEM,
	})
}

// ProfileList handles GET /profile_list for the node API. Every profile is
// included, the node needs the hidden ones too.
func (h *NodeHandler) ProfileList(c *gin.Context) {
	profileList := make(map[string]map[string]interface{}, len(h.profiles))
	for profileID, profileConfig := range h.profiles {
		profileList[profileID] = profileConfig.ToMap()
	}

	respond(c, "profile_list", profileList)
}
