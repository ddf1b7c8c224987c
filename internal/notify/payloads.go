package notify

import "github.com/84634E1A607A/nova210se-backend/internal/models"

// Payload shapes carried by Event.Data. They survive a JSON round trip
// unchanged, which the Redis relay depends on.

// NewChatData announces a group chat to one of its members.
type NewChatData struct {
	ChatID uint `json:"chat_id"`
}

// MessageData carries a new message.
type MessageData struct {
	Message models.ChatMessageBasic `json:"message"`
}

// RecallData announces a recalled message.
type RecallData struct {
	ChatID    uint `json:"chat_id"`
	MessageID uint `json:"message_id"`
}

// ReadData announces that a member caught up on a chat.
type ReadData struct {
	ChatID uint `json:"chat_id"`
	UserID uint `json:"user_id"`
}

// AdminStateData announces an admin grant or revocation.
type AdminStateData struct {
	ChatID  uint `json:"chat_id"`
	UserID  uint `json:"user_id"`
	IsAdmin bool `json:"is_admin"`
}

// OwnerStateData announces an ownership transfer.
type OwnerStateData struct {
	ChatID  uint `json:"chat_id"`
	OwnerID uint `json:"owner_id"`
}

// MemberData announces a membership change.
type MemberData struct {
	ChatID uint `json:"chat_id"`
	UserID uint `json:"user_id"`
}

// ChatInvitationData carries a pending chat invitation to approvers.
type ChatInvitationData struct {
	Invitation models.ChatInvitationStruct `json:"invitation"`
}

// FriendData announces a friendship removal.
type FriendData struct {
	UserID uint `json:"user_id"`
}
