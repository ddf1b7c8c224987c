package models

import "github.com/84634E1A607A/nova210se-backend/internal/apperrors"

// FriendInvitation stores a pending friend invitation. Source is -1 for
// search-originated invitations, or the id of the group chat the users share.
type FriendInvitation struct {
	BaseModel
	ID uint `gorm:"primaryKey" json:"id"`

	SenderID uint `gorm:"index" json:"-"`
	Sender   User `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	ReceiverID uint `gorm:"index" json:"-"`
	Receiver   User `gorm:"foreignKey:ReceiverID;constraint:OnDelete:CASCADE" json:"-"`

	Comment string `gorm:"size:500" json:"comment"`
	Source  int64  `json:"-"`
}

// FriendInvitationStruct is the API shape of a friend invitation. Source is
// rendered as the string "search" or the numeric chat id.
type FriendInvitationStruct struct {
	ID       uint      `json:"id"`
	Sender   UserBasic `json:"sender"`
	Receiver UserBasic `json:"receiver"`
	Comment  string    `json:"comment"`
	Source   any       `json:"source"`
}

// ToStruct converts a FriendInvitation to its API struct. Sender and
// Receiver must be preloaded.
func (i *FriendInvitation) ToStruct() FriendInvitationStruct {
	var source any = i.Source
	if i.Source < 0 {
		source = "search"
	}
	return FriendInvitationStruct{
		ID:       i.ID,
		Sender:   i.Sender.ToBasicStruct(),
		Receiver: i.Receiver.ToBasicStruct(),
		Comment:  i.Comment,
		Source:   source,
	}
}

// ValidateComment checks an invitation comment: at most 500 characters.
func ValidateComment(comment *string) error {
	if comment == nil {
		return apperrors.FieldMissing("comment")
	}
	if len(*comment) > MaxCommentLength {
		return apperrors.BadRequest("Comment too long")
	}
	return nil
}
