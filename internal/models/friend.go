package models

import "github.com/84634E1A607A/nova210se-backend/internal/apperrors"

// Friend stores one direction of a friendship. A friendship is always two
// mirrored rows so each side keeps its own nickname and group assignment.
type Friend struct {
	BaseModel
	ID uint `gorm:"primaryKey" json:"-"`

	// User who possesses this friend relationship
	UserID uint `gorm:"index:idx_friend_pair,unique" json:"-"`
	User   User `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	// User who is friend with the user
	FriendID uint `gorm:"index:idx_friend_pair,unique" json:"-"`
	Friend   User `gorm:"foreignKey:FriendID;constraint:OnDelete:CASCADE" json:"-"`

	Nickname string `gorm:"size:100" json:"nickname"`

	GroupID uint        `json:"-"`
	Group   FriendGroup `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// FriendStruct is the API shape of a friend entry.
type FriendStruct struct {
	Friend   UserDetail        `json:"friend"`
	Nickname string            `json:"nickname"`
	Group    FriendGroupStruct `json:"group"`
}

// ToStruct converts a Friend to its API struct. Friend and Group must be
// preloaded.
func (f *Friend) ToStruct() FriendStruct {
	return FriendStruct{
		Friend:   f.Friend.ToDetailedStruct(),
		Nickname: f.Nickname,
		Group:    f.Group.ToStruct(),
	}
}

// ValidateNickname checks a friend or chat nickname: at most 100 characters.
func ValidateNickname(nickname *string) error {
	if nickname == nil {
		return apperrors.FieldMissing("nickname")
	}
	if len(*nickname) > MaxNicknameLength {
		return apperrors.BadRequest("Nickname too long")
	}
	return nil
}
