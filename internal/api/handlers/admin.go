package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/api/middleware"
	"github.com/CedricCorazza/vpn-user-portal/internal/config"
	"github.com/CedricCorazza/vpn-user-portal/internal/database"
	"github.com/CedricCorazza/vpn-user-portal/internal/service"
	"github.com/CedricCorazza/vpn-user-portal/internal/validation"
)

// AdminHandler serves the admin API behind the portal dashboard: live
// connections, user management, the connection log, aggregated statistics
// and the message of the day.
type AdminHandler struct {
	userService       *service.UserService
	connectionService *service.ConnectionService
	certService       *service.CertificateService
	messageService    *service.MessageService
	db                *database.Database
	profiles          map[string]*config.ProfileConfig
	dataDir           string
	logger            *zap.Logger
}

// NewAdminHandler creates a new admin API handler
func NewAdminHandler(userService *service.UserService, connectionService *service.ConnectionService, certService *service.CertificateService, messageService *service.MessageService, db *database.Database, profiles map[string]*config.ProfileConfig, dataDir string, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		userService:       userService,
		connectionService: connectionService,
		certService:       certService,
		messageService:    messageService,
		db:                db,
		profiles:          profiles,
		dataDir:           dataDir,
		logger:            logger,
	}
}

// Connections handles GET /connections: the live connections per profile.
func (h *AdminHandler) Connections(c *gin.Context) {
	connections, err := h.connectionService.Connections(c.Request.Context(), "")
	if err != nil {
		h.logger.Error("connection listing failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "connections", "internal server error")
		return
	}

	respond(c, "connections", connections)
}

// Info handles GET /info: the configured profiles.
func (h *AdminHandler) Info(c *gin.Context) {
	profileList := make(map[string]map[string]interface{}, len(h.profiles))
	for profileID, profileConfig := range h.profiles {
		profileList[profileID] = profileConfig.ToMap()
	}

	respond(c, "info", gin.H{"profile_list": profileList})
}

// Users handles GET /users
func (h *AdminHandler) Users(c *gin.Context) {
	users, err := h.userService.ListUsers()
	if err != nil {
		h.logger.Error("user listing failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "users", "internal server error")
		return
	}

	userList := []gin.H{}
	for _, user := range users {
		userList = append(userList, gin.H{
			"user_id":            user.UserID,
			"is_disabled":        user.IsDisabled,
			"has_totp_secret":    user.HasOtpSecret(),
			"session_expires_at": user.SessionExpiresAt,
		})
	}

	respond(c, "users", userList)
}

// User handles GET /user?user_id=: the account detail view.
func (h *AdminHandler) User(c *gin.Context) {
	userID, err := validation.UserID(c.Query("user_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "user", err.Error())
		return
	}

	user, err := h.userService.GetUser(userID)
	if errors.Is(err, database.ErrNotFound) {
		respondError(c, http.StatusNotFound, "user", "user not found")
		return
	}
	if err != nil {
		h.logger.Error("user lookup failed", zap.String("user_id", userID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "user", "internal server error")
		return
	}

	certificates, err := h.certService.UserCertificates(userID)
	if err != nil {
		h.logger.Error("certificate listing failed", zap.String("user_id", userID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "user", "internal server error")
		return
	}

	messages, err := h.messageService.UserMessages(userID)
	if err != nil {
		h.logger.Error("message listing failed", zap.String("user_id", userID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "user", "internal server error")
		return
	}

	respond(c, "user", gin.H{
		"user_id":          user.UserID,
		"is_disabled":      user.IsDisabled,
		"has_totp_secret":  user.HasOtpSecret(),
		"is_self":          userID == c.GetString(middleware.ContextUserID),
		"certificate_list": certificates,
		"message_list":     messages,
	})
}

// UserAction handles POST /user: the account state machine. Admins cannot
// target their own account, the check runs before anything else mutates.
func (h *AdminHandler) UserAction(c *gin.Context) {
	adminUserID := c.GetString(middleware.ContextUserID)

	userID, err := validation.UserID(c.PostForm("user_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "user", err.Error())
		return
	}

	if adminUserID == userID {
		respondError(c, http.StatusBadRequest, "user", "cannot manage own account")
		return
	}

	userAction, err := service.ParseUserAction(c.PostForm("user_action"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "user", err.Error())
		return
	}

	now := time.Now().UTC()
	switch userAction {
	case service.UserActionDisable:
		err = h.userService.DisableUser(c.Request.Context(), userID, now)
	case service.UserActionEnable:
		err = h.userService.EnableUser(userID, now)
	case service.UserActionDeleteTotpSecret:
		err = h.userService.DeleteTotpSecret(userID, now)
	}

	if errors.Is(err, database.ErrNotFound) {
		respondError(c, http.StatusNotFound, "user", "user not found")
		return
	}
	if err != nil {
		h.logger.Error("user action failed", zap.String("user_id", userID), zap.Error(err))
		respondError(c, http.StatusInternalServerError, "user", "internal server error")
		return
	}

	respond(c, "user", nil)
}

// Log handles POST /log: which certificate held an IP address at a given
// moment.
func (h *AdminHandler) Log(c *gin.Context) {
	dateTime, err := validation.DateTime(c.PostForm("date_time"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "log", err.Error())
		return
	}
	ipAddress, err := validation.IPAddress(c.PostForm("ip_address"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "log", err.Error())
		return
	}

	entries, err := h.db.GetLogEntries(dateTime, ipAddress)
	if err != nil {
		h.logger.Error("log lookup failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "log", "internal server error")
		return
	}

	respond(c, "log", entries)
}

// Stats handles GET /stats. The statistics are aggregated out of band into
// a JSON file in the data directory; no file means no statistics yet.
func (h *AdminHandler) Stats(c *gin.Context) {
	statsFile := filepath.Join(h.dataDir, "stats.json")
	data, err := os.ReadFile(statsFile)
	if err != nil {
		respond(c, "stats", gin.H{})
		return
	}

	var statsData json.RawMessage
	if err := json.Unmarshal(data, &statsData); err != nil {
		h.logger.Warn("stats file is not valid JSON", zap.String("path", statsFile), zap.Error(err))
		respond(c, "stats", gin.H{})
		return
	}

	respond(c, "stats", statsData)
}

// Messages handles GET /messages: the current message of the day.
func (h *AdminHandler) Messages(c *gin.Context) {
	motdMessage, err := h.messageService.Motd()
	if err != nil {
		h.logger.Error("motd lookup failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "messages", "internal server error")
		return
	}

	respond(c, "messages", gin.H{"motd": motdMessage})
}

// MessageAction handles POST /messages
func (h *AdminHandler) MessageAction(c *gin.Context) {
	messageAction, err := service.ParseMessageAction(c.PostForm("message_action"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "messages", err.Error())
		return
	}

	switch messageAction {
	case service.MessageActionSet:
		// the message body is free-form, anything goes
		err = h.messageService.SetMotd(c.PostForm("message_body"), time.Now().UTC())
	case service.MessageActionDelete:
		var messageID int64
		messageID, err = validation.MessageID(c.PostForm("message_id"))
		if err != nil {
			respondError(c, http.StatusBadRequest, "messages", err.Error())
			return
		}
		err = h.messageService.DeleteSystemMessage(messageID)
	}

	if errors.Is(err, database.ErrNotFound) {
		respondError(c, http.StatusNotFound, "messages", "message not found")
		return
	}
	if err != nil {
		h.logger.Error("message action failed", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "messages", "internal server error")
		return
	}

	respond(c, "messages", nil)
}
