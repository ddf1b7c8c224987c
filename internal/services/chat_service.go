package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/notify"
)

// ChatService manages group chats: creation, membership, roles and
// invitations. Private chats are created by the friend service and only
// read here.
type ChatService struct {
	db        *gorm.DB
	publisher notify.Publisher
}

// NewChatService creates a new chat service.
func NewChatService(db *gorm.DB, publisher notify.Publisher) *ChatService {
	return &ChatService{db: db, publisher: publisher}
}

// CreateGroup creates a group chat owned by the caller. Every initial member
// must be a friend of the caller; the caller is added implicitly.
func (s *ChatService) CreateGroup(user *models.User, name string, memberIDs []uint) (*models.ChatStruct, error) {
	if err := models.ValidateChatName(&name); err != nil {
		return nil, err
	}

	members := map[uint]struct{}{user.ID: {}}
	for _, id := range memberIDs {
		if id == user.ID {
			continue
		}
		var count int64
		if err := s.db.Model(&models.Friend{}).
			Where("user_id = ? AND friend_id = ?", user.ID, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, apperrors.BadRequest("Chat members must be friends of you")
		}
		members[id] = struct{}{}
	}

	chat := models.Chat{Name: name, OwnerID: user.ID}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&chat).Error; err != nil {
			return err
		}
		for id := range members {
			if err := tx.Create(&models.ChatMember{ChatID: chat.ID, UserID: id}).Error; err != nil {
				return err
			}
		}
		return createSystemMessage(tx, &chat, fmt.Sprintf("%s created the chat", user.Username))
	})
	if err != nil {
		return nil, err
	}

	for id := range members {
		s.publisher.Publish(notify.UserChannel(id), notify.Event{
			Action: notify.ActionNewGroupChat,
			Data:   notify.NewChatData{ChatID: chat.ID},
		})
	}

	return s.structOf(&chat)
}

// Invite asks to add a friend to a group chat. The invitation waits for
// approval by the owner or an admin.
func (s *ChatService) Invite(user *models.User, chatID, targetID uint) error {
	chat, _, err := s.membership(user, chatID)
	if err != nil {
		return err
	}
	if chat.IsPrivate() {
		return apperrors.BadRequest("Cannot invite to a private chat")
	}

	var count int64
	if err := s.db.Model(&models.Friend{}).
		Where("user_id = ? AND friend_id = ?", user.ID, targetID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperrors.BadRequest("You can only invite your friends")
	}

	if err := s.db.Model(&models.ChatMember{}).
		Where("chat_id = ? AND user_id = ?", chatID, targetID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperrors.BadRequest("User is already a member of the chat")
	}

	invitation := models.ChatInvitation{ChatID: chatID, UserID: targetID, InvitedByID: user.ID}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		// Re-inviting replaces the pending invitation
		if err := tx.Where("chat_id = ? AND user_id = ?", chatID, targetID).
			Delete(&models.ChatInvitation{}).Error; err != nil {
			return err
		}
		return tx.Create(&invitation).Error
	})
	if err != nil {
		return err
	}

	s.notifyApprovers(chat, &invitation)
	return nil
}

// notifyApprovers delivers a pending invitation to the owner and admins.
func (s *ChatService) notifyApprovers(chat *models.Chat, invitation *models.ChatInvitation) {
	var full models.ChatInvitation
	if err := s.db.Preload("User").Preload("InvitedBy").First(&full, invitation.ID).Error; err != nil {
		return
	}

	event := notify.Event{
		Action: notify.ActionChatInvitation,
		Data:   notify.ChatInvitationData{Invitation: full.ToStruct()},
	}

	s.publisher.Publish(notify.UserChannel(chat.OwnerID), event)

	var admins []models.ChatMember
	if err := s.db.Where("chat_id = ? AND is_admin = ?", chat.ID, true).Find(&admins).Error; err != nil {
		return
	}
	for _, a := range admins {
		s.publisher.Publish(notify.UserChannel(a.UserID), event)
	}
}

// ListInvitations returns the pending invitations of a chat. Only the owner
// and admins may list them.
func (s *ChatService) ListInvitations(user *models.User, chatID uint) ([]models.ChatInvitation, error) {
	chat, member, err := s.membership(user, chatID)
	if err != nil {
		return nil, err
	}
	if chat.OwnerID != user.ID && !member.IsAdmin {
		return nil, apperrors.Forbidden("Forbidden")
	}

	var invitations []models.ChatInvitation
	if err := s.db.Preload("User").Preload("InvitedBy").
		Where("chat_id = ?", chatID).Order("id ASC").Find(&invitations).Error; err != nil {
		return nil, err
	}
	return invitations, nil
}

// Respond approves or declines the pending invitation of a user. Only the
// owner and admins of the chat may respond.
func (s *ChatService) Respond(user *models.User, chatID, targetID uint, approve bool) error {
	chat, member, err := s.membership(user, chatID)
	if err != nil {
		return err
	}
	if chat.OwnerID != user.ID && !member.IsAdmin {
		return apperrors.Forbidden("Forbidden")
	}

	var invitation models.ChatInvitation
	err = s.db.Preload("User").
		Where("chat_id = ? AND user_id = ?", chatID, targetID).First(&invitation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.BadRequest("Invitation not found")
		}
		return err
	}

	if !approve {
		return s.db.Delete(&invitation).Error
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&invitation).Error; err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.ChatMember{}).
			Where("chat_id = ? AND user_id = ?", chatID, invitation.UserID).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return apperrors.BadRequest("User is already a member of the chat")
		}

		if err := tx.Create(&models.ChatMember{ChatID: chatID, UserID: invitation.UserID}).Error; err != nil {
			return err
		}

		return createSystemMessage(tx, chat,
			fmt.Sprintf("%s joined the chat", invitation.User.Username))
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(notify.ChatChannel(chatID), notify.Event{
		Action: notify.ActionMemberAdded,
		Data:   notify.MemberData{ChatID: chatID, UserID: invitation.UserID},
	})
	s.publisher.Publish(notify.UserChannel(invitation.UserID), notify.Event{
		Action: notify.ActionNewGroupChat,
		Data:   notify.NewChatData{ChatID: chatID},
	})

	s.publishChatMessage(chat)
	return nil
}

// List returns the caller's chats, private chats included, each with the
// caller's nickname and unread count.
func (s *ChatService) List(user *models.User) ([]models.ChatRelationStruct, error) {
	var memberships []models.ChatMember
	if err := s.db.Preload("Chat").Where("user_id = ?", user.ID).
		Order("id ASC").Find(&memberships).Error; err != nil {
		return nil, err
	}

	result := make([]models.ChatRelationStruct, 0, len(memberships))
	for i := range memberships {
		rel, err := s.relationStructOf(&memberships[i])
		if err != nil {
			return nil, err
		}
		result = append(result, *rel)
	}
	return result, nil
}

// Relation returns the caller's view of one chat. Unknown chats and chats
// the caller is not in are indistinguishable here: both are 400.
func (s *ChatService) Relation(user *models.User, chatID uint) (*models.ChatRelationStruct, error) {
	var member models.ChatMember
	err := s.db.Preload("Chat").
		Where("chat_id = ? AND user_id = ?", chatID, user.ID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.BadRequest("User is not a member of the chat")
		}
		return nil, err
	}
	return s.relationStructOf(&member)
}

// Leave removes the caller from a group chat. The owner leaving deletes the
// chat for everyone. Private chats cannot be left; delete the friend instead.
func (s *ChatService) Leave(user *models.User, chatID uint) error {
	chat, member, err := s.membership(user, chatID)
	if err != nil {
		return err
	}
	if chat.IsPrivate() {
		return apperrors.BadRequest("Cannot leave a private chat")
	}

	if chat.OwnerID == user.ID {
		var members []models.ChatMember
		if err := s.db.Where("chat_id = ?", chatID).Find(&members).Error; err != nil {
			return err
		}

		if err := s.db.Transaction(func(tx *gorm.DB) error {
			return deleteChat(tx, chat)
		}); err != nil {
			return err
		}

		for _, m := range members {
			s.publisher.Publish(notify.UserChannel(m.UserID), notify.Event{
				Action: notify.ActionMemberDeleted,
				Data:   notify.MemberData{ChatID: chatID, UserID: m.UserID},
			})
		}
		return nil
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(member).Error; err != nil {
			return err
		}
		return createSystemMessage(tx, chat, fmt.Sprintf("%s left the chat", user.Username))
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(notify.ChatChannel(chatID), notify.Event{
		Action: notify.ActionMemberDeleted,
		Data:   notify.MemberData{ChatID: chatID, UserID: user.ID},
	})
	s.publishChatMessage(chat)
	return nil
}

// SetAdmin grants or revokes admin on a member. Owner only; the owner's own
// role cannot be changed this way.
func (s *ChatService) SetAdmin(user *models.User, chatID, targetID uint, isAdmin bool) error {
	chat, _, err := s.membership(user, chatID)
	if err != nil {
		return err
	}
	if chat.IsPrivate() {
		return apperrors.BadRequest("Private chats have no roles")
	}
	if chat.OwnerID != user.ID {
		return apperrors.Forbidden("Forbidden")
	}
	if targetID == user.ID {
		return apperrors.BadRequest("Cannot change your own role")
	}

	target, err := s.memberOf(chatID, targetID)
	if err != nil {
		return err
	}
	if target.IsAdmin == isAdmin {
		return apperrors.BadRequest("Admin state unchanged")
	}

	target.IsAdmin = isAdmin
	if err := s.db.Save(target).Error; err != nil {
		return err
	}

	s.publisher.Publish(notify.ChatChannel(chatID), notify.Event{
		Action: notify.ActionAdminStateChange,
		Data:   notify.AdminStateData{ChatID: chatID, UserID: targetID, IsAdmin: isAdmin},
	})
	return nil
}

// SetOwner transfers ownership to another member. The old owner stays in the
// chat as an admin.
func (s *ChatService) SetOwner(user *models.User, chatID, targetID uint) error {
	chat, member, err := s.membership(user, chatID)
	if err != nil {
		return err
	}
	if chat.IsPrivate() {
		return apperrors.BadRequest("Private chats have no roles")
	}
	if chat.OwnerID != user.ID {
		return apperrors.Forbidden("Forbidden")
	}
	if targetID == user.ID {
		return apperrors.BadRequest("You are already the owner")
	}

	target, err := s.memberOf(chatID, targetID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(chat).Update("owner_id", targetID).Error; err != nil {
			return err
		}
		// The new owner's admin flag is cleared; the old owner becomes admin
		if target.IsAdmin {
			if err := tx.Model(target).Update("is_admin", false).Error; err != nil {
				return err
			}
		}
		return tx.Model(member).Update("is_admin", true).Error
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(notify.ChatChannel(chatID), notify.Event{
		Action: notify.ActionOwnerStateChange,
		Data:   notify.OwnerStateData{ChatID: chatID, OwnerID: targetID},
	})
	return nil
}

// RemoveMember kicks a member out of a group chat. Admins may remove plain
// members; only the owner may remove admins. The owner cannot be removed.
func (s *ChatService) RemoveMember(user *models.User, chatID, targetID uint) error {
	chat, member, err := s.membership(user, chatID)
	if err != nil {
		return err
	}
	if chat.IsPrivate() {
		return apperrors.BadRequest("Cannot remove members of a private chat")
	}
	if targetID == user.ID {
		return apperrors.BadRequest("Use leave to remove yourself")
	}
	if targetID == chat.OwnerID {
		return apperrors.Forbidden("Forbidden")
	}

	target, err := s.memberOf(chatID, targetID)
	if err != nil {
		return err
	}

	isOwner := chat.OwnerID == user.ID
	if !isOwner && !member.IsAdmin {
		return apperrors.Forbidden("Forbidden")
	}
	if target.IsAdmin && !isOwner {
		return apperrors.Forbidden("Forbidden")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(target).Error; err != nil {
			return err
		}
		return createSystemMessage(tx, chat,
			fmt.Sprintf("%s was removed from the chat", target.User.Username))
	})
	if err != nil {
		return err
	}

	s.publisher.Publish(notify.ChatChannel(chatID), notify.Event{
		Action: notify.ActionMemberDeleted,
		Data:   notify.MemberData{ChatID: chatID, UserID: targetID},
	})
	s.publisher.Publish(notify.UserChannel(targetID), notify.Event{
		Action: notify.ActionMemberDeleted,
		Data:   notify.MemberData{ChatID: chatID, UserID: targetID},
	})
	s.publishChatMessage(chat)
	return nil
}

// membership loads a chat and the caller's membership row: 404 when the chat
// does not exist, 403 when the caller is not a member.
func (s *ChatService) membership(user *models.User, chatID uint) (*models.Chat, *models.ChatMember, error) {
	var chat models.Chat
	if err := s.db.First(&chat, chatID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.NotFound("Chat not found")
		}
		return nil, nil, err
	}

	var member models.ChatMember
	err := s.db.Where("chat_id = ? AND user_id = ?", chatID, user.ID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperrors.Forbidden("Forbidden")
		}
		return nil, nil, err
	}

	return &chat, &member, nil
}

// memberOf loads another user's membership row; 400 when they are not in the
// chat.
func (s *ChatService) memberOf(chatID, userID uint) (*models.ChatMember, error) {
	var member models.ChatMember
	err := s.db.Preload("User").
		Where("chat_id = ? AND user_id = ?", chatID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.BadRequest("User is not a member of the chat")
		}
		return nil, err
	}
	return &member, nil
}

// structOf assembles the full API shape of a chat.
func (s *ChatService) structOf(chat *models.Chat) (*models.ChatStruct, error) {
	return chatStructOf(s.db, chat)
}

// relationStructOf assembles a member's view of their chat, with the unread
// count derived from the member's watermark.
func (s *ChatService) relationStructOf(member *models.ChatMember) (*models.ChatRelationStruct, error) {
	chat := member.Chat
	if chat.ID == 0 {
		if err := s.db.First(&chat, member.ChatID).Error; err != nil {
			return nil, err
		}
	}

	chatStruct, err := chatStructOf(s.db, &chat)
	if err != nil {
		return nil, err
	}

	var unread int64
	if err := s.db.Model(&models.ChatMessage{}).
		Where("chat_id = ? AND send_time > ?", chat.ID, member.UnreadAfter).
		Count(&unread).Error; err != nil {
		return nil, err
	}

	return &models.ChatRelationStruct{
		Chat:        *chatStruct,
		Nickname:    member.Nickname,
		UnreadCount: unread,
	}, nil
}

// publishChatMessage fans out the latest message of a chat, used after a
// system message is written.
func (s *ChatService) publishChatMessage(chat *models.Chat) {
	var msg models.ChatMessage
	if err := s.db.Preload("Sender").Where("chat_id = ?", chat.ID).
		Order("send_time DESC").First(&msg).Error; err != nil {
		return
	}
	publishMessage(s.db, s.publisher, chat, &msg)
}

// chatStructOf builds the API shape of a chat: owner, roster split into
// admins and members, and the most recent message.
func chatStructOf(db *gorm.DB, chat *models.Chat) (*models.ChatStruct, error) {
	var owner models.User
	if err := db.First(&owner, chat.OwnerID).Error; err != nil {
		return nil, err
	}

	var memberships []models.ChatMember
	if err := db.Preload("User").Where("chat_id = ?", chat.ID).
		Order("id ASC").Find(&memberships).Error; err != nil {
		return nil, err
	}

	admins := []models.UserBasic{}
	members := []models.UserBasic{}
	for _, m := range memberships {
		basic := m.User.ToBasicStruct()
		members = append(members, basic)
		if m.IsAdmin {
			admins = append(admins, basic)
		}
	}

	result := &models.ChatStruct{
		ID:      chat.ID,
		Name:    chat.Name,
		Owner:   owner.ToBasicStruct(),
		Admins:  admins,
		Members: members,
	}

	var last models.ChatMessage
	err := db.Preload("Sender").Where("chat_id = ?", chat.ID).
		Order("send_time DESC").First(&last).Error
	if err == nil {
		basic := last.ToBasicStruct()
		result.LastMessage = &basic
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	return result, nil
}

// deleteChat removes a chat and everything referencing it. Runs inside the
// caller's transaction.
func deleteChat(tx *gorm.DB, chat *models.Chat) error {
	var messageIDs []uint
	if err := tx.Model(&models.ChatMessage{}).Where("chat_id = ?", chat.ID).
		Pluck("id", &messageIDs).Error; err != nil {
		return err
	}
	if len(messageIDs) > 0 {
		if err := tx.Where("message_id IN ?", messageIDs).
			Delete(&models.MessageRead{}).Error; err != nil {
			return err
		}
	}

	for _, m := range []any{
		&models.ChatMessage{}, &models.ChatMember{}, &models.ChatInvitation{},
	} {
		if err := tx.Where("chat_id = ?", chat.ID).Delete(m).Error; err != nil {
			return err
		}
	}

	return tx.Delete(chat).Error
}

// createSystemMessage writes a message authored by the reserved system user.
// Runs inside the caller's transaction.
func createSystemMessage(tx *gorm.DB, chat *models.Chat, text string) error {
	var system models.User
	if err := tx.Where("username = ?", models.SystemUsername).First(&system).Error; err != nil {
		return fmt.Errorf("system user not found: %w", err)
	}

	return tx.Create(&models.ChatMessage{
		ChatID:   chat.ID,
		SenderID: system.ID,
		Message:  text,
		SendTime: time.Now(),
	}).Error
}

// publishMessage fans a message out to the chat's notification channels.
// Private chats deliver on each member's private_chat channel; group chats
// use the shared chat channel.
func publishMessage(db *gorm.DB, publisher notify.Publisher, chat *models.Chat, msg *models.ChatMessage) {
	event := notify.Event{
		Action: notify.ActionNewMessage,
		Data:   notify.MessageData{Message: msg.ToBasicStruct()},
	}

	if !chat.IsPrivate() {
		publisher.Publish(notify.ChatChannel(chat.ID), event)
		return
	}

	var members []models.ChatMember
	if err := db.Where("chat_id = ?", chat.ID).Find(&members).Error; err != nil {
		return
	}
	for _, m := range members {
		publisher.Publish(notify.PrivateChatChannel(m.UserID), event)
	}
}
