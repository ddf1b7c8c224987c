package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/notify"
)

func TestFindUsers(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewFriendService(db, &recordingPublisher{})

	alice := registerTestUser(t, db, "alice")
	bob := registerTestUser(t, db, "bobcat")
	registerTestUser(t, db, "bobby")

	// Exact id
	found, err := svc.FindUsers(alice, &bob.ID, nil)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "bobcat", found[0].Username)

	// Substring match excludes the requester
	name := "bob"
	found, err = svc.FindUsers(alice, nil, &name)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	self := "alice"
	found, err = svc.FindUsers(alice, nil, &self)
	require.NoError(t, err)
	assert.Empty(t, found)

	// Reserved accounts never appear
	system := "#SYSTEM"
	found, err = svc.FindUsers(alice, nil, &system)
	require.NoError(t, err)
	assert.Empty(t, found)

	// No filter at all
	_, err = svc.FindUsers(alice, nil, nil)
	assert.Equal(t, 400, apperrors.StatusOf(err))
}

func TestInvitationAcceptCreatesFriendshipAndPrivateChat(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewFriendService(db, &recordingPublisher{})

	alice := registerTestUser(t, db, "alice")
	bob := registerTestUser(t, db, "bob")

	require.NoError(t, svc.SendInvitation(alice, bob.ID, "hi bob", models.InvitationSourceSearch))

	invitations, err := svc.ListInvitations(bob)
	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.Equal(t, "hi bob", invitations[0].Comment)
	assert.Equal(t, "search", invitations[0].ToStruct().Source)

	require.NoError(t, svc.AcceptInvitation(bob, invitations[0].ID))

	// Mirrored rows in each side's default group
	var rows []models.Friend
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 2)

	// A private chat with a system message backs the friendship
	var chat models.Chat
	require.NoError(t, db.Where("name = ''").First(&chat).Error)
	var msg models.ChatMessage
	require.NoError(t, db.Preload("Sender").Where("chat_id = ?", chat.ID).First(&msg).Error)
	assert.Equal(t, models.SystemUsername, msg.Sender.Username)

	// The invitation is consumed
	invitations, err = svc.ListInvitations(bob)
	require.NoError(t, err)
	assert.Empty(t, invitations)
}

func TestInvitationValidation(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewFriendService(db, &recordingPublisher{})

	alice := registerTestUser(t, db, "alice")
	bob := registerTestUser(t, db, "bob")

	// Self, unknown target, bad source
	assert.Equal(t, 400, apperrors.StatusOf(svc.SendInvitation(alice, alice.ID, "", models.InvitationSourceSearch)))
	assert.Equal(t, 400, apperrors.StatusOf(svc.SendInvitation(alice, 9999, "", models.InvitationSourceSearch)))
	assert.Equal(t, 400, apperrors.StatusOf(svc.SendInvitation(alice, bob.ID, "", 9999)))

	// Already friends
	makeFriends(t, db, alice, bob)
	assert.Equal(t, 409, apperrors.StatusOf(svc.SendInvitation(alice, bob.ID, "", models.InvitationSourceSearch)))
}

func TestMutualInvitationAutoAccepts(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewFriendService(db, &recordingPublisher{})

	alice := registerTestUser(t, db, "alice")
	bob := registerTestUser(t, db, "bob")

	require.NoError(t, svc.SendInvitation(alice, bob.ID, "", models.InvitationSourceSearch))
	require.NoError(t, svc.SendInvitation(bob, alice.ID, "", models.InvitationSourceSearch))

	var count int64
	db.Model(&models.Friend{}).Count(&count)
	assert.EqualValues(t, 2, count)

	db.Model(&models.FriendInvitation{}).Count(&count)
	assert.Zero(t, count)
}

func TestResendInvitationReplaces(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewFriendService(db, &recordingPublisher{})

	alice := registerTestUser(t, db, "alice")
	bob := registerTestUser(t, db, "bob")

	require.NoError(t, svc.SendInvitation(alice, bob.ID, "first", models.InvitationSourceSearch))
	require.NoError(t, svc.SendInvitation(alice, bob.ID, "second", models.InvitationSourceSearch))

	invitations, err := svc.ListInvitations(bob)
	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.Equal(t, "second", invitations[0].Comment)
}

func TestGroupSourcedInvitation(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewFriendService(db, &recordingPublisher{})

	alice := registerTestUser(t, db, "alice")
	bob := registerTestUser(t, db, "bob")
	carol := registerTestUser(t, db, "carol")
	makeFriends(t, db, alice, bob)
	makeFriends(t, db, bob, carol)

	chats := NewChatService(db, &recordingPublisher{})
	chat, err := chats.CreateGroup(bob, "room", []uint{alice.ID, carol.ID})
	require.NoError(t, err)

	// Alice and carol share the chat, so the chat is a valid source
	require.NoError(t, svc.SendInvitation(alice, carol.ID, "met in room", int64(chat.ID)))

	invitations, err := svc.ListInvitations(carol)
	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.EqualValues(t, chat.ID, invitations[0].ToStruct().Source)
}

func TestAcceptInvitationPermissions(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewFriendService(db, &recordingPublisher{})

	alice := registerTestUser(t, db, "alice")
	bob := registerTestUser(t, db, "bob")
	carol := registerTestUser(t, db, "carol")

	require.NoError(t, svc.SendInvitation(alice, bob.ID, "", models.InvitationSourceSearch))

	var invitation models.FriendInvitation
	require.NoError(t, db.First(&invitation).Error)

	// Only the receiver may accept
	assert.Equal(t, 403, apperrors.StatusOf(svc.AcceptInvitation(carol, invitation.ID)))
	assert.Equal(t, 400, apperrors.StatusOf(svc.AcceptInvitation(bob, 9999)))
}

func TestFriendUpdateAndGet(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	svc := NewFriendService(db, &recordingPublisher{})

	alice := registerTestUser(t, db, "alice")
	bob := registerTestUser(t, db, "bob")
	makeFriends(t, db, alice, bob)

	nickname := "bobby"
	friend, err := svc.Update(alice, bob.ID, &nickname, nil)
	require.NoError(t, err)
	assert.Equal(t, "bobby", friend.Nickname)
	assert.Equal(t, "bob", friend.Friend.Username)

	// The other direction keeps its own nickname
	mirror, err := svc.Get(bob, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, mirror.Nickname)

	// Assigning to someone else's group is forbidden
	groups := NewFriendGroupService(db)
	bobGroup, err := groups.Create(bob, "mine")
	require.NoError(t, err)
	_, err = svc.Update(alice, bob.ID, nil, &bobGroup.ID)
	assert.Equal(t, 403, apperrors.StatusOf(err))

	_, err = svc.Get(alice, 9999)
	assert.Equal(t, 404, apperrors.StatusOf(err))
}

func TestFriendDelete(t *testing.T) {
	db := SetupSQLiteTestDB(t)
	pub := &recordingPublisher{}
	svc := NewFriendService(db, pub)

	alice := registerTestUser(t, db, "alice")
	bob := registerTestUser(t, db, "bob")
	makeFriends(t, db, alice, bob)

	require.NoError(t, svc.Delete(alice, bob.ID))

	var count int64
	db.Model(&models.Friend{}).Count(&count)
	assert.Zero(t, count)
	assert.True(t, pub.has(notify.UserChannel(bob.ID), notify.ActionFriendDeleted))

	assert.Equal(t, 400, apperrors.StatusOf(svc.Delete(alice, bob.ID)))
}
