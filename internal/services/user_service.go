package services

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/avatar"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/notify"
)

// UserService handles account registration, authentication and profile
// management.
type UserService struct {
	db        *gorm.DB
	publisher notify.Publisher
}

// NewUserService creates a new user service.
func NewUserService(db *gorm.DB, publisher notify.Publisher) *UserService {
	return &UserService{db: db, publisher: publisher}
}

// UpdateProfileRequest is a partial profile update. Nil fields stay
// untouched. OldPassword is required whenever NewPassword, Email or Phone is
// present.
type UpdateProfileRequest struct {
	OldPassword *string `json:"old_password"`
	NewPassword *string `json:"new_password"`
	Username    *string `json:"user_name"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	AvatarURL   *string `json:"avatar_url"`
}

// Register creates an account with a generated identicon avatar and a
// default friend group, all in one transaction.
func (s *UserService) Register(username, password string) (*models.User, error) {
	if err := models.ValidateUsername(&username); err != nil {
		return nil, err
	}
	if err := models.ValidatePassword(&password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     username,
		PasswordHash: string(hash),
		AvatarURL:    avatar.Generate(username),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.Conflict("User already exists")
		}

		if err := tx.Create(user).Error; err != nil {
			return err
		}

		group := &models.FriendGroup{UserID: user.ID, IsDefault: true}
		if err := tx.Create(group).Error; err != nil {
			return err
		}

		user.DefaultGroupID = &group.ID
		return tx.Model(user).Update("default_group_id", group.ID).Error
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}

// Authenticate verifies a username/password pair. Unknown users and wrong
// passwords report the same error so usernames cannot be probed.
func (s *UserService) Authenticate(username, password string) (*models.User, error) {
	loginFailed := apperrors.Forbidden("User does not exist or password is incorrect")

	var user models.User
	if err := s.db.Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, loginFailed
		}
		return nil, err
	}

	if user.IsReserved() {
		return nil, loginFailed
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, loginFailed
	}

	return &user, nil
}

// GetByID fetches a user by id.
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("User not found")
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfile applies a partial update. All validations run before any
// change is written, so a failed request changes nothing.
func (s *UserService) UpdateProfile(user *models.User, req UpdateProfileRequest) (*models.User, error) {
	needsOldPassword := req.NewPassword != nil || req.Email != nil || req.Phone != nil
	if needsOldPassword {
		if req.OldPassword == nil {
			return nil, apperrors.FieldMissing("old_password")
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(*req.OldPassword)) != nil {
			return nil, apperrors.Forbidden("Old password is incorrect")
		}
	}

	if req.NewPassword != nil {
		if err := models.ValidatePassword(req.NewPassword); err != nil {
			return nil, err
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.NewPassword), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if req.Email != nil {
		if err := models.ValidateEmail(req.Email); err != nil {
			return nil, err
		}
		user.Email = *req.Email
	}

	if req.Phone != nil {
		if err := models.ValidatePhone(req.Phone); err != nil {
			return nil, err
		}
		user.Phone = *req.Phone
	}

	if req.Username != nil && *req.Username != user.Username {
		if err := models.ValidateUsername(req.Username); err != nil {
			return nil, err
		}
		var count int64
		if err := s.db.Model(&models.User{}).Where("username = ?", *req.Username).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, apperrors.Conflict("User already exists")
		}
		user.Username = *req.Username
	}

	if req.AvatarURL != nil {
		if err := models.ValidateAvatarURL(req.AvatarURL); err != nil {
			return nil, err
		}
		if *req.AvatarURL == "" {
			user.AvatarURL = avatar.Generate(user.Username)
		} else {
			user.AvatarURL = *req.AvatarURL
		}
	}

	if err := s.db.Save(user).Error; err != nil {
		return nil, err
	}

	s.publisher.Publish(notify.UserChannel(user.ID), notify.Event{
		Action: notify.ActionProfileChange,
	})

	return user, nil
}

// Delete removes an account and everything hanging off it: owned chats are
// deleted whole, other memberships are left, friendships are dissolved, and
// every open socket of the user is told to close.
func (s *UserService) Delete(user *models.User) error {
	// Collect notification targets before the rows disappear
	var relations []models.ChatMember
	if err := s.db.Preload("Chat").Where("user_id = ?", user.ID).Find(&relations).Error; err != nil {
		return err
	}

	var friends []models.Friend
	if err := s.db.Where("user_id = ? OR friend_id = ?", user.ID, user.ID).Find(&friends).Error; err != nil {
		return err
	}

	deleted, err := s.reservedUser(models.DeletedUsername)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Tombstone the user's messages instead of dropping chat history
		if err := tx.Model(&models.ChatMessage{}).Where("sender_id = ?", user.ID).
			Update("sender_id", deleted.ID).Error; err != nil {
			return err
		}

		// Chats owned by the user go away entirely
		var ownedChats []models.Chat
		if err := tx.Where("owner_id = ?", user.ID).Find(&ownedChats).Error; err != nil {
			return err
		}
		for _, chat := range ownedChats {
			if err := deleteChat(tx, &chat); err != nil {
				return err
			}
		}

		for _, m := range []any{
			&models.ChatMember{}, &models.MessageRead{}, &models.ChatInvitation{}, &models.Session{},
		} {
			if err := tx.Where("user_id = ?", user.ID).Delete(m).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("user_id = ? OR friend_id = ?", user.ID, user.ID).
			Delete(&models.Friend{}).Error; err != nil {
			return err
		}
		if err := tx.Where("sender_id = ? OR receiver_id = ?", user.ID, user.ID).
			Delete(&models.FriendInvitation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("invited_by_id = ?", user.ID).
			Delete(&models.ChatInvitation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.FriendGroup{}).Error; err != nil {
			return err
		}

		return tx.Delete(user).Error
	})
	if err != nil {
		return err
	}

	for _, rel := range relations {
		if rel.Chat.IsPrivate() {
			continue
		}
		s.publisher.Publish(notify.ChatChannel(rel.ChatID), notify.Event{
			Action: notify.ActionMemberDeleted,
			Data:   notify.MemberData{ChatID: rel.ChatID, UserID: user.ID},
		})
	}

	for _, f := range friends {
		other := f.FriendID
		if other == user.ID {
			other = f.UserID
		}
		s.publisher.Publish(notify.UserChannel(other), notify.Event{
			Action: notify.ActionFriendDeleted,
			Data:   notify.FriendData{UserID: user.ID},
		})
	}

	// Close all of the user's sockets
	s.publisher.Publish(notify.UserChannel(user.ID), notify.Event{
		Action: notify.ActionLogout,
	})

	return nil
}

func (s *UserService) reservedUser(name string) (*models.User, error) {
	var user models.User
	if err := s.db.Where("username = ?", name).First(&user).Error; err != nil {
		return nil, fmt.Errorf("reserved user %s not found: %w", name, err)
	}
	return &user, nil
}
