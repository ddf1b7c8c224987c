package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/notify"
)

// RecalledMessageText replaces the body of recalled messages.
const RecalledMessageText = "Message recalled"

// MessageService handles sending, recalling and reading chat messages.
type MessageService struct {
	db        *gorm.DB
	publisher notify.Publisher
}

// NewMessageService creates a new message service.
func NewMessageService(db *gorm.DB, publisher notify.Publisher) *MessageService {
	return &MessageService{db: db, publisher: publisher}
}

// Send stores a message in a chat the sender is a member of and fans it out.
// replyTo, when set, must name a message of the same chat.
func (s *MessageService) Send(user *models.User, chatID uint, text string, replyTo *uint) (*models.ChatMessage, error) {
	if text == "" {
		return nil, apperrors.BadRequest("Message cannot be empty")
	}
	if len(text) > models.MaxMessageLength {
		return nil, apperrors.BadRequest("Message too long")
	}

	chat, _, err := s.membership(user, chatID)
	if err != nil {
		return nil, err
	}

	msg := models.ChatMessage{
		ChatID:    chatID,
		SenderID:  user.ID,
		Message:   text,
		SendTime:  time.Now(),
		ReplyToID: replyTo,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if replyTo != nil {
			var parent models.ChatMessage
			if err := tx.First(&parent, *replyTo).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperrors.BadRequest("Replied message not found")
				}
				return err
			}
			if parent.ChatID != chatID {
				return apperrors.BadRequest("Replied message belongs to another chat")
			}
		}

		if err := tx.Create(&msg).Error; err != nil {
			return err
		}

		// The sender has read their own message
		return tx.Create(&models.MessageRead{MessageID: msg.ID, UserID: user.ID}).Error
	})
	if err != nil {
		return nil, err
	}

	msg.Sender = *user
	publishMessage(s.db, s.publisher, chat, &msg)
	return &msg, nil
}

// Recall tombstones a message. Only the sender may recall, and only their
// own messages; the row is kept so replies stay resolvable.
func (s *MessageService) Recall(user *models.User, messageID uint) error {
	var msg models.ChatMessage
	if err := s.db.Preload("Chat").First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.BadRequest("Message not found")
		}
		return err
	}

	if msg.SenderID != user.ID {
		return apperrors.Forbidden("You can only recall your own messages")
	}
	if msg.Recalled {
		return apperrors.BadRequest("Message already recalled")
	}

	if err := s.db.Model(&msg).Updates(map[string]any{
		"recalled": true,
		"message":  RecalledMessageText,
	}).Error; err != nil {
		return err
	}

	event := notify.Event{
		Action: notify.ActionMessageRecalled,
		Data:   notify.RecallData{ChatID: msg.ChatID, MessageID: msg.ID},
	}
	if msg.Chat.IsPrivate() {
		var members []models.ChatMember
		if err := s.db.Where("chat_id = ?", msg.ChatID).Find(&members).Error; err != nil {
			return nil
		}
		for _, m := range members {
			s.publisher.Publish(notify.PrivateChatChannel(m.UserID), event)
		}
	} else {
		s.publisher.Publish(notify.ChatChannel(msg.ChatID), event)
	}
	return nil
}

// ListDetailed returns the messages of a chat, newest first, with read
// receipts and reply threads resolved.
func (s *MessageService) ListDetailed(user *models.User, chatID uint) ([]models.ChatMessageDetail, error) {
	if _, _, err := s.membership(user, chatID); err != nil {
		return nil, err
	}

	var messages []models.ChatMessage
	if err := s.db.Preload("Sender").Where("chat_id = ?", chatID).
		Order("send_time DESC, id DESC").Find(&messages).Error; err != nil {
		return nil, err
	}

	result := make([]models.ChatMessageDetail, 0, len(messages))
	for i := range messages {
		detail, err := s.DetailOf(&messages[i])
		if err != nil {
			return nil, err
		}
		result = append(result, *detail)
	}
	return result, nil
}

// DetailOf expands a message into its detailed API shape. Sender must be
// preloaded.
func (s *MessageService) DetailOf(msg *models.ChatMessage) (*models.ChatMessageDetail, error) {
	detail := &models.ChatMessageDetail{
		ChatMessageBasic: msg.ToBasicStruct(),
		ReadUsers:        []models.UserBasic{},
		RepliedBy:        []models.ChatMessageBasic{},
	}

	var reads []models.MessageRead
	if err := s.db.Preload("User").Where("message_id = ?", msg.ID).
		Order("id ASC").Find(&reads).Error; err != nil {
		return nil, err
	}
	for _, r := range reads {
		detail.ReadUsers = append(detail.ReadUsers, r.User.ToBasicStruct())
	}

	if msg.ReplyToID != nil {
		var parent models.ChatMessage
		if err := s.db.Preload("Sender").First(&parent, *msg.ReplyToID).Error; err == nil {
			basic := parent.ToBasicStruct()
			detail.ReplyTo = &basic
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	var replies []models.ChatMessage
	if err := s.db.Preload("Sender").Where("reply_to_id = ?", msg.ID).
		Order("send_time ASC, id ASC").Find(&replies).Error; err != nil {
		return nil, err
	}
	for i := range replies {
		detail.RepliedBy = append(detail.RepliedBy, replies[i].ToBasicStruct())
	}

	return detail, nil
}

// MarkChatRead advances the caller's unread watermark to now, records read
// receipts for every message they had not read, and announces the catch-up.
func (s *MessageService) MarkChatRead(user *models.User, chatID uint) error {
	chat, member, err := s.membership(user, chatID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(member).Update("unread_after", time.Now()).Error; err != nil {
			return err
		}

		var unreadIDs []uint
		if err := tx.Model(&models.ChatMessage{}).
			Where("chat_id = ? AND id NOT IN (?)", chatID,
				tx.Model(&models.MessageRead{}).Select("message_id").Where("user_id = ?", user.ID)).
			Pluck("id", &unreadIDs).Error; err != nil {
			return err
		}

		for _, id := range unreadIDs {
			if err := tx.Create(&models.MessageRead{MessageID: id, UserID: user.ID}).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	event := notify.Event{
		Action: notify.ActionMessagesRead,
		Data:   notify.ReadData{ChatID: chatID, UserID: user.ID},
	}
	if chat.IsPrivate() {
		var members []models.ChatMember
		if err := s.db.Where("chat_id = ?", chatID).Find(&members).Error; err != nil {
			return nil
		}
		for _, m := range members {
			s.publisher.Publish(notify.PrivateChatChannel(m.UserID), event)
		}
	} else {
		s.publisher.Publish(notify.ChatChannel(chatID), event)
	}
	return nil
}

// membership checks chat existence and the caller's membership, mirroring the
// chat service's rules.
func (s *MessageService) membership(user *models.User, chatID uint) (*models.Chat, *models.ChatMember, error) {
	var chat models.Chat
	if err := s.db.First(&chat, chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.NotFound("Chat not found")
		}
		return nil, nil, err
	}

	var member models.ChatMember
	err := s.db.Where("chat_id = ? AND user_id = ?", chatID, user.ID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.Forbidden("Forbidden")
		}
		return nil, nil, err
	}

	return &chat, &member, nil
}
