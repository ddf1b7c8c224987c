package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/notify"
)

// FriendService manages friendships and friend invitations.
type FriendService struct {
	db        *gorm.DB
	publisher notify.Publisher
}

// NewFriendService creates a new friend service.
func NewFriendService(db *gorm.DB, publisher notify.Publisher) *FriendService {
	return &FriendService{db: db, publisher: publisher}
}

// FindUsers filters users by exact id or by case-sensitive name substring.
// The id filter wins when both are present; the requester is never returned.
func (s *FriendService) FindUsers(user *models.User, id *uint, nameContains *string) ([]models.UserBasic, error) {
	if id != nil {
		var found models.User
		if err := s.db.First(&found, *id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return []models.UserBasic{}, nil
			}
			return nil, err
		}
		if found.ID == user.ID || found.IsReserved() {
			return []models.UserBasic{}, nil
		}
		return []models.UserBasic{found.ToBasicStruct()}, nil
	}

	if nameContains != nil {
		var users []models.User
		if err := s.db.Where("username LIKE ?", "%"+*nameContains+"%").Find(&users).Error; err != nil {
			return nil, err
		}
		result := make([]models.UserBasic, 0, len(users))
		for _, u := range users {
			if u.ID == user.ID || u.IsReserved() {
				continue
			}
			result = append(result, u.ToBasicStruct())
		}
		return result, nil
	}

	return nil, apperrors.BadRequest("No filter provided")
}

// SendInvitation invites another user. A pending invitation in the opposite
// direction is accepted instead. Source is InvitationSourceSearch or the id
// of a group chat both users are members of.
func (s *FriendService) SendInvitation(user *models.User, targetID uint, comment string, source int64) error {
	if err := models.ValidateComment(&comment); err != nil {
		return err
	}

	var target models.User
	if err := s.db.First(&target, targetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.BadRequest("User not found")
		}
		return err
	}

	if target.ID == user.ID {
		return apperrors.BadRequest("Cannot invite yourself as a friend")
	}
	if target.IsReserved() {
		return apperrors.BadRequest("User not found")
	}

	var count int64
	if err := s.db.Model(&models.Friend{}).
		Where("user_id = ? AND friend_id = ?", user.ID, target.ID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperrors.Conflict("User is already a friend")
	}

	// Mutual pending invitations auto-accept
	var reverse models.FriendInvitation
	err := s.db.Where("sender_id = ? AND receiver_id = ?", target.ID, user.ID).First(&reverse).Error
	if err == nil {
		return s.acceptInvitation(&reverse, user, &target)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if source != models.InvitationSourceSearch {
		if err := s.checkGroupSource(user, &target, source); err != nil {
			return err
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		// A re-sent invitation replaces the previous one
		if err := tx.Where("sender_id = ? AND receiver_id = ?", user.ID, target.ID).
			Delete(&models.FriendInvitation{}).Error; err != nil {
			return err
		}
		return tx.Create(&models.FriendInvitation{
			SenderID:   user.ID,
			ReceiverID: target.ID,
			Comment:    comment,
			Source:     source,
		}).Error
	})
}

// checkGroupSource validates a group-sourced invitation: the named chat must
// be a group chat that both users belong to.
func (s *FriendService) checkGroupSource(user, target *models.User, source int64) error {
	if source < 0 {
		return apperrors.BadRequest("Invalid source")
	}

	var chat models.Chat
	if err := s.db.First(&chat, uint(source)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.BadRequest("Invalid source")
		}
		return err
	}
	if chat.IsPrivate() {
		return apperrors.BadRequest("Invalid source")
	}

	var count int64
	if err := s.db.Model(&models.ChatMember{}).
		Where("chat_id = ? AND user_id IN ?", chat.ID, []uint{user.ID, target.ID}).
		Count(&count).Error; err != nil {
		return err
	}
	if count != 2 {
		return apperrors.BadRequest("Invalid source")
	}

	return nil
}

// ListInvitations returns invitations received by the user.
func (s *FriendService) ListInvitations(user *models.User) ([]models.FriendInvitation, error) {
	var invitations []models.FriendInvitation
	if err := s.db.Preload("Sender").Preload("Receiver").
		Where("receiver_id = ?", user.ID).Order("id ASC").Find(&invitations).Error; err != nil {
		return nil, err
	}
	return invitations, nil
}

// AcceptInvitation accepts an invitation by id; only the receiver may do so.
func (s *FriendService) AcceptInvitation(user *models.User, invitationID uint) error {
	var invitation models.FriendInvitation
	if err := s.db.Preload("Sender").First(&invitation, invitationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.BadRequest("Invitation not found")
		}
		return err
	}

	if invitation.ReceiverID != user.ID {
		return apperrors.Forbidden("Forbidden")
	}

	return s.acceptInvitation(&invitation, user, &invitation.Sender)
}

// acceptInvitation creates the mirrored friendship rows, the backing
// private chat, and removes the invitation.
func (s *FriendService) acceptInvitation(invitation *models.FriendInvitation, a, b *models.User) error {
	var chat models.Chat

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if a.DefaultGroupID == nil || b.DefaultGroupID == nil {
			return fmt.Errorf("user %d or %d has no default group", a.ID, b.ID)
		}

		pairs := []models.Friend{
			{UserID: a.ID, FriendID: b.ID, GroupID: *a.DefaultGroupID},
			{UserID: b.ID, FriendID: a.ID, GroupID: *b.DefaultGroupID},
		}
		for i := range pairs {
			if err := tx.Create(&pairs[i]).Error; err != nil {
				return err
			}
		}

		if err := tx.Delete(invitation).Error; err != nil {
			return err
		}

		// Private chat backing the friendship; owner is only nominal
		chat = models.Chat{Name: "", OwnerID: a.ID}
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		for _, uid := range []uint{a.ID, b.ID} {
			if err := tx.Create(&models.ChatMember{ChatID: chat.ID, UserID: uid}).Error; err != nil {
				return err
			}
		}

		return createSystemMessage(tx, &chat, "You are now friends")
	})
	if err != nil {
		return err
	}

	s.publishLastMessage(&chat)
	return nil
}

// publishLastMessage fans out the most recent message of a chat, used after
// system messages are written inside a transaction.
func (s *FriendService) publishLastMessage(chat *models.Chat) {
	var msg models.ChatMessage
	if err := s.db.Preload("Sender").Where("chat_id = ?", chat.ID).
		Order("send_time DESC").First(&msg).Error; err != nil {
		return
	}
	publishMessage(s.db, s.publisher, chat, &msg)
}

// Get fetches a friend entry; 404 when the user is not a friend.
func (s *FriendService) Get(user *models.User, friendUserID uint) (*models.Friend, error) {
	var friend models.Friend
	err := s.db.Preload("Friend").Preload("Group").
		Where("user_id = ? AND friend_id = ?", user.ID, friendUserID).First(&friend).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("Friend not found")
		}
		return nil, err
	}
	return &friend, nil
}

// Update changes a friend's nickname and/or group assignment.
func (s *FriendService) Update(user *models.User, friendUserID uint, nickname *string, groupID *uint) (*models.Friend, error) {
	var friend models.Friend
	err := s.db.Where("user_id = ? AND friend_id = ?", user.ID, friendUserID).First(&friend).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.BadRequest("Friend not found")
		}
		return nil, err
	}

	if nickname != nil {
		if err := models.ValidateNickname(nickname); err != nil {
			return nil, err
		}
		friend.Nickname = *nickname
	}

	if groupID != nil {
		var group models.FriendGroup
		if err := s.db.First(&group, *groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.BadRequest("Group not found")
			}
			return nil, err
		}
		if group.UserID != user.ID {
			return nil, apperrors.Forbidden("Forbidden")
		}
		friend.GroupID = group.ID
	}

	if err := s.db.Save(&friend).Error; err != nil {
		return nil, err
	}

	return s.Get(user, friendUserID)
}

// Delete dissolves a friendship in both directions.
func (s *FriendService) Delete(user *models.User, friendUserID uint) error {
	var friend models.Friend
	err := s.db.Where("user_id = ? AND friend_id = ?", user.ID, friendUserID).First(&friend).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.BadRequest("Friend not found")
		}
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Where(
			"(user_id = ? AND friend_id = ?) OR (user_id = ? AND friend_id = ?)",
			user.ID, friendUserID, friendUserID, user.ID,
		).Delete(&models.Friend{}).Error
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(notify.UserChannel(friendUserID), notify.Event{
		Action: notify.ActionFriendDeleted,
		Data:   notify.FriendData{UserID: user.ID},
	})

	return nil
}

// List returns the user's friends with nicknames and group assignments.
func (s *FriendService) List(user *models.User) ([]models.Friend, error) {
	var friends []models.Friend
	if err := s.db.Preload("Friend").Preload("Group").
		Where("user_id = ?", user.ID).Order("id ASC").Find(&friends).Error; err != nil {
		return nil, err
	}
	return friends, nil
}
