package models

// ChatInvitation stores a pending group chat invitation awaiting approval by
// the chat owner or an admin.
type ChatInvitation struct {
	BaseModel
	ID uint `gorm:"primaryKey" json:"invitation_id"`

	ChatID uint `gorm:"index:idx_chat_invitation,unique" json:"chat_id"`
	Chat   Chat `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	UserID uint `gorm:"index:idx_chat_invitation,unique" json:"-"`
	User   User `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	InvitedByID uint `json:"-"`
	InvitedBy   User `gorm:"foreignKey:InvitedByID;constraint:OnDelete:CASCADE" json:"-"`
}

// ChatInvitationStruct is the API shape of a chat invitation.
type ChatInvitationStruct struct {
	ID        uint      `json:"invitation_id"`
	ChatID    uint      `json:"chat_id"`
	User      UserBasic `json:"user"`
	InvitedBy UserBasic `json:"invited_by"`
	CreatedAt float64   `json:"created_at"`
}

// ToStruct converts a ChatInvitation to its API struct. User and InvitedBy
// must be preloaded.
func (i *ChatInvitation) ToStruct() ChatInvitationStruct {
	return ChatInvitationStruct{
		ID:        i.ID,
		ChatID:    i.ChatID,
		User:      i.User.ToBasicStruct(),
		InvitedBy: i.InvitedBy.ToBasicStruct(),
		CreatedAt: UnixSeconds(i.CreatedAt),
	}
}
