package models

import (
	"time"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
)

// Chat stores chat information. A chat with an empty name is a private
// two-person chat; all other chats are group chats.
type Chat struct {
	BaseModel
	ID   uint   `gorm:"primaryKey" json:"chat_id"`
	Name string `gorm:"size:60" json:"chat_name"`

	// Owner of the chat. Admin status lives on ChatMember; the owner is a
	// member but never an admin.
	OwnerID uint `json:"-"`
	Owner   User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// IsPrivate reports whether this is a private two-person chat.
func (c *Chat) IsPrivate() bool {
	return c.Name == ""
}

// ChatMember links a user to a chat and carries the per-member state: admin
// flag, chat nickname and the last-read watermark for unread counts.
type ChatMember struct {
	BaseModel
	ID uint `gorm:"primaryKey" json:"-"`

	ChatID uint `gorm:"index:idx_chat_member,unique" json:"-"`
	Chat   Chat `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	UserID uint `gorm:"index:idx_chat_member,unique" json:"-"`
	User   User `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	IsAdmin bool `json:"-"`

	// Nickname of the chat shown to the user; empty means display the chat
	// name instead.
	Nickname string `gorm:"size:100" json:"nickname"`

	// Messages sent after this instant count as unread for the member.
	UnreadAfter time.Time `json:"-"`
}

// ChatStruct is the API shape of a chat, including the member roster and the
// most recent message.
type ChatStruct struct {
	ID          uint              `json:"chat_id"`
	Name        string            `json:"chat_name"`
	Owner       UserBasic         `json:"chat_owner"`
	Admins      []UserBasic       `json:"chat_admins"`
	Members     []UserBasic       `json:"chat_members"`
	LastMessage *ChatMessageBasic `json:"last_message"`
}

// ChatRelationStruct is the API shape of a user's view of a chat.
type ChatRelationStruct struct {
	Chat        ChatStruct `json:"chat"`
	Nickname    string     `json:"nickname"`
	UnreadCount int64      `json:"unread_count"`
}

// ValidateChatName checks a group chat name: non-empty, at most 60
// characters.
func ValidateChatName(name *string) error {
	if name == nil {
		return apperrors.FieldMissing("chat_name")
	}
	if *name == "" {
		return apperrors.BadRequest("Chat name cannot be empty")
	}
	if len(*name) > MaxChatNameLength {
		return apperrors.BadRequest("Chat name too long")
	}
	return nil
}
