package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/notify"
)

func TestRegister(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewUserService(db, &recordingPublisher{})

	user, err := svc.Register("alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.True(t, strings.HasPrefix(user.AvatarURL, "data:image/png;base64,"))
	assert.NotEqual(t, "password123", user.PasswordHash)

	// Default group created and linked
	require.NotNil(t, user.DefaultGroupID)
	var group models.FriendGroup
	require.NoError(t, db.First(&group, *user.DefaultGroupID).Error)
	assert.True(t, group.IsDefault)
	assert.Equal(t, user.ID, group.UserID)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewUserService(db, &recordingPublisher{})

	_, err := svc.Register("alice", "password123")
	require.NoError(t, err)

	_, err = svc.Register("alice", "otherpassword")
	assert.Equal(t, 409, apperrors.StatusOf(err))
}

func TestRegisterInvalidInput(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewUserService(db, &recordingPublisher{})

	_, err := svc.Register("has spaces", "password123")
	assert.Equal(t, 400, apperrors.StatusOf(err))

	_, err = svc.Register("alice", "short")
	assert.Equal(t, 400, apperrors.StatusOf(err))

	_, err = svc.Register(strings.Repeat("a", 33), "password123")
	assert.Equal(t, 400, apperrors.StatusOf(err))
}

func TestAuthenticate(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewUserService(db, &recordingPublisher{})

	_, err := svc.Register("alice", "password123")
	require.NoError(t, err)

	user, err := svc.Authenticate("alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	// Wrong password and unknown user report the same error
	_, badPass := svc.Authenticate("alice", "wrongpassword")
	_, noUser := svc.Authenticate("bob", "password123")
	assert.Equal(t, 403, apperrors.StatusOf(badPass))
	assert.Equal(t, apperrors.MessageOf(badPass, false), apperrors.MessageOf(noUser, false))

	// Reserved accounts can never log in
	_, err = svc.Authenticate(models.SystemUsername, "")
	assert.Equal(t, 403, apperrors.StatusOf(err))
}

func TestUpdateProfile(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	pub := &recordingPublisher{}
	svc := NewUserService(db, pub)

	user, err := svc.Register("alice", "password123")
	require.NoError(t, err)

	email := "alice@example.com"
	old := "password123"

	// Email change requires the old password
	_, err = svc.UpdateProfile(user, UpdateProfileRequest{Email: &email})
	assert.Equal(t, 400, apperrors.StatusOf(err))

	wrong := "wrongpassword"
	_, err = svc.UpdateProfile(user, UpdateProfileRequest{OldPassword: &wrong, Email: &email})
	assert.Equal(t, 403, apperrors.StatusOf(err))

	updated, err := svc.UpdateProfile(user, UpdateProfileRequest{OldPassword: &old, Email: &email})
	require.NoError(t, err)
	assert.Equal(t, email, updated.Email)
	assert.True(t, pub.has(notify.UserChannel(user.ID), notify.ActionProfileChange))
}

func TestUpdateProfileUsernameConflict(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewUserService(db, &recordingPublisher{})

	_, err := svc.Register("bob", "password123")
	require.NoError(t, err)
	alice, err := svc.Register("alice", "password123")
	require.NoError(t, err)

	taken := "bob"
	_, err = svc.UpdateProfile(alice, UpdateProfileRequest{Username: &taken})
	assert.Equal(t, 409, apperrors.StatusOf(err))
}

func TestUpdateProfileEmptyAvatarRegenerates(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewUserService(db, &recordingPublisher{})

	user, err := svc.Register("alice", "password123")
	require.NoError(t, err)

	custom := "https://example.com/avatar.png"
	updated, err := svc.UpdateProfile(user, UpdateProfileRequest{AvatarURL: &custom})
	require.NoError(t, err)
	assert.Equal(t, custom, updated.AvatarURL)

	empty := ""
	updated, err = svc.UpdateProfile(user, UpdateProfileRequest{AvatarURL: &empty})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(updated.AvatarURL, "data:image/png;base64,"))
}

func TestDeleteUser(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	pub := &recordingPublisher{}
	svc := NewUserService(db, pub)

	alice := registerTestUser(t, db, "alice")
	bob := registerTestUser(t, db, "bob")
	makeFriends(t, db, alice, bob)

	chats := NewChatService(db, &recordingPublisher{})
	chat, err := chats.CreateGroup(alice, "room", []uint{bob.ID})
	require.NoError(t, err)

	messages := NewMessageService(db, &recordingPublisher{})
	msg, err := messages.Send(bob, chat.ID, "hello", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(bob))

	// Bob's message is tombstoned to the #DELETED sender, not dropped
	var stored models.ChatMessage
	require.NoError(t, db.Preload("Sender").First(&stored, msg.ID).Error)
	assert.Equal(t, models.DeletedUsername, stored.Sender.Username)

	// All of bob's relations are gone
	var friendCount, memberCount int64
	db.Model(&models.Friend{}).Where("user_id = ? OR friend_id = ?", bob.ID, bob.ID).Count(&friendCount)
	db.Model(&models.ChatMember{}).Where("user_id = ?", bob.ID).Count(&memberCount)
	assert.Zero(t, friendCount)
	assert.Zero(t, memberCount)

	// Friends and chats were notified; bob's sockets were told to close
	assert.True(t, pub.has(notify.UserChannel(alice.ID), notify.ActionFriendDeleted))
	assert.True(t, pub.has(notify.ChatChannel(chat.ID), notify.ActionMemberDeleted))
	assert.True(t, pub.has(notify.UserChannel(bob.ID), notify.ActionLogout))
}

func TestDeleteUserRemovesOwnedChats(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewUserService(db, &recordingPublisher{})

	alice := registerTestUser(t, db, "alice")
	bob := registerTestUser(t, db, "bob")
	makeFriends(t, db, alice, bob)

	chats := NewChatService(db, &recordingPublisher{})
	chat, err := chats.CreateGroup(alice, "room", []uint{bob.ID})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(alice))

	var count int64
	db.Model(&models.Chat{}).Where("id = ?", chat.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&models.ChatMember{}).Where("chat_id = ?", chat.ID).Count(&count)
	assert.Zero(t, count)
}
