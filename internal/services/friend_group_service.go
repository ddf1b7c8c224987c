package services

import (
	"errors"

	"gorm.io/gorm"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
)

// FriendGroupService manages a user's friend groups.
type FriendGroupService struct {
	db *gorm.DB
}

// NewFriendGroupService creates a new friend group service.
func NewFriendGroupService(db *gorm.DB) *FriendGroupService {
	return &FriendGroupService{db: db}
}

// Create adds a named (non-default) group for the user.
func (s *FriendGroupService) Create(user *models.User, name string) (*models.FriendGroup, error) {
	if err := models.ValidateGroupName(&name); err != nil {
		return nil, err
	}

	group := &models.FriendGroup{UserID: user.ID, Name: name}
	if err := s.db.Create(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}

// Get fetches a group; 404 when unknown, 403 when owned by someone else.
func (s *FriendGroupService) Get(user *models.User, groupID uint) (*models.FriendGroup, error) {
	var group models.FriendGroup
	if err := s.db.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Group not found")
		}
		return nil, err
	}

	if group.UserID != user.ID {
		return nil, apperrors.Forbidden("Forbidden")
	}

	return &group, nil
}

// Rename changes a group's name. The default group cannot be renamed.
func (s *FriendGroupService) Rename(user *models.User, groupID uint, name string) (*models.FriendGroup, error) {
	group, err := s.lookupForEdit(user, groupID)
	if err != nil {
		return nil, err
	}

	if group.IsDefault {
		return nil, apperrors.BadRequest("Cannot change name of default group")
	}

	if err := models.ValidateGroupName(&name); err != nil {
		return nil, err
	}

	group.Name = name
	if err := s.db.Save(group).Error; err != nil {
		return nil, err
	}
	return group, nil
}

// Delete removes a group. The default group cannot be deleted; friends
// assigned to the deleted group fall back to the default group.
func (s *FriendGroupService) Delete(user *models.User, groupID uint) error {
	group, err := s.lookupForEdit(user, groupID)
	if err != nil {
		return err
	}

	if group.IsDefault {
		return apperrors.BadRequest("Default group cannot be deleted")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if user.DefaultGroupID != nil {
			if err := tx.Model(&models.Friend{}).Where("group_id = ?", group.ID).
				Update("group_id", *user.DefaultGroupID).Error; err != nil {
				return err
			}
		}
		return tx.Delete(group).Error
	})
}

// List returns every group of the user, the default group included.
func (s *FriendGroupService) List(user *models.User) ([]models.FriendGroup, error) {
	var groups []models.FriendGroup
	if err := s.db.Where("user_id = ?", user.ID).Order("id ASC").Find(&groups).Error; err != nil {
		return nil, err
	}
	return groups, nil
}

// lookupForEdit fetches a group for mutation: 400 when unknown, 403 when not
// owned. Mutating endpoints report unknown groups as 400, unlike Get.
func (s *FriendGroupService) lookupForEdit(user *models.User, groupID uint) (*models.FriendGroup, error) {
	var group models.FriendGroup
	if err := s.db.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.BadRequest("Group not found")
		}
		return nil, err
	}

	if group.UserID != user.ID {
		return nil, apperrors.Forbidden("Forbidden")
	}

	return &group, nil
}
