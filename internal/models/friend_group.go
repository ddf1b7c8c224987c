package models

import "github.com/84634E1A607A/nova210se-backend/internal/apperrors"

// FriendGroup stores a user's friend groups. Every user owns exactly one
// default group (empty name) created at registration.
type FriendGroup struct {
	BaseModel
	ID     uint `gorm:"primaryKey" json:"group_id"`
	UserID uint `gorm:"index" json:"-"`
	User   User `gorm:"constraint:OnDelete:CASCADE" json:"-"`

	IsDefault bool   `json:"-"`
	Name      string `gorm:"size:100" json:"group_name"`
}

// FriendGroupStruct is the API shape of a friend group.
type FriendGroupStruct struct {
	ID   uint   `json:"group_id"`
	Name string `json:"group_name"`
}

// ToStruct converts a FriendGroup to its API struct.
func (g *FriendGroup) ToStruct() FriendGroupStruct {
	return FriendGroupStruct{ID: g.ID, Name: g.Name}
}

// ValidateGroupName checks a non-default group name: non-empty, at most 99
// characters.
func ValidateGroupName(name *string) error {
	if name == nil {
		return apperrors.FieldMissing("group_name")
	}
	if *name == "" {
		return apperrors.BadRequest("Group name cannot be empty")
	}
	if len(*name) > MaxGroupNameLength {
		return apperrors.BadRequest("Group name too long")
	}
	return nil
}
