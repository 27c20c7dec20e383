package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/CedricCorazza/vpn-user-portal/internal/database"
	"github.com/CedricCorazza/vpn-user-portal/internal/database/models"
)

// MessageAction is an administrative action on the system messages. The set
// is closed.
type MessageAction int

const (
	MessageActionSet MessageAction = iota
	MessageActionDelete
)

// ErrUnsupportedMessageAction is returned for a message_action outside the
// supported set.
var ErrUnsupportedMessageAction = errors.New(`unsupported "message_action"`)

// ParseMessageAction maps the wire value of a message_action onto the
// closed action set.
func ParseMessageAction(messageAction string) (MessageAction, error) {
	switch messageAction {
	case "set":
		return MessageActionSet, nil
	case "delete":
		return MessageActionDelete, nil
	default:
		return 0, ErrUnsupportedMessageAction
	}
}

// MessageService manages the message of the day and the per-user message
// histories.
type MessageService struct {
	db     *database.Database
	logger *zap.Logger
}

// NewMessageService creates a new message service
func NewMessageService(db *database.Database, logger *zap.Logger) *MessageService {
	return &MessageService{db: db, logger: logger}
}

// Motd returns the current message of the day, or nil when none is set.
func (s *MessageService) Motd() (*models.SystemMessage, error) {
	messages, err := s.db.SystemMessages("motd")
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, nil
	}
	return messages[0], nil
}

// SetMotd replaces the message of the day. There can be only one, existing
// entries are removed first.
func (s *MessageService) SetMotd(messageBody string, now time.Time) error {
	if err := s.db.DeleteSystemMessagesOfType("motd"); err != nil {
		return err
	}
	return s.db.AddSystemMessage("motd", messageBody, now)
}

// DeleteSystemMessage removes a system message by ID.
func (s *MessageService) DeleteSystemMessage(messageID int64) error {
	return s.db.DeleteSystemMessage(messageID)
}

// SystemMessages returns all system messages of the given type.
func (s *MessageService) SystemMessages(messageType string) ([]*models.SystemMessage, error) {
	return s.db.SystemMessages(messageType)
}

// UserMessages returns the message history of a user, newest first.
func (s *MessageService) UserMessages(userID string) ([]*models.UserMessage, error) {
	return s.db.UserMessages(userID)
}
