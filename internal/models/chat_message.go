package models

import "time"

// ChatMessage stores a single chat message. Recalled messages are kept as
// tombstones with their text replaced.
type ChatMessage struct {
	BaseModel
	ID uint `gorm:"primaryKey" json:"message_id"`

	ChatID uint `gorm:"index" json:"chat_id"`
	Chat   Chat `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	SenderID uint `json:"-"`
	Sender   User `gorm:"constraint:OnDelete:SET NULL" json:"-"`

	Message  string    `json:"message"`
	SendTime time.Time `gorm:"index" json:"-"`

	ReplyToID *uint        `json:"-"`
	ReplyTo   *ChatMessage `gorm:"foreignKey:ReplyToID;constraint:OnDelete:SET NULL" json:"-"`

	Recalled bool `json:"-"`
}

// MessageRead records that a user has read a message.
type MessageRead struct {
	BaseModel
	ID uint `gorm:"primaryKey"`

	MessageID uint        `gorm:"index:idx_message_read,unique"`
	Message   ChatMessage `gorm:"constraint:OnDelete:CASCADE"`

	UserID uint `gorm:"index:idx_message_read,unique"`
	User   User `gorm:"constraint:OnDelete:CASCADE"`
}

// ChatMessageBasic is the compact API shape of a message.
type ChatMessageBasic struct {
	ID       uint      `json:"message_id"`
	ChatID   uint      `json:"chat_id"`
	Message  string    `json:"message"`
	SendTime float64   `json:"send_time"`
	Sender   UserBasic `json:"sender"`
}

// ChatMessageDetail extends the basic shape with read receipts and the reply
// thread. ReplyTo stays basic to avoid recursion.
type ChatMessageDetail struct {
	ChatMessageBasic
	ReadUsers []UserBasic        `json:"read_users"`
	ReplyTo   *ChatMessageBasic  `json:"reply_to"`
	RepliedBy []ChatMessageBasic `json:"replied_by"`
}

// ToBasicStruct converts a ChatMessage to its compact API struct. Sender
// must be preloaded.
func (m *ChatMessage) ToBasicStruct() ChatMessageBasic {
	return ChatMessageBasic{
		ID:       m.ID,
		ChatID:   m.ChatID,
		Message:  m.Message,
		SendTime: UnixSeconds(m.SendTime),
		Sender:   m.Sender.ToBasicStruct(),
	}
}
