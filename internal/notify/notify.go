// Package notify implements the notification fan-out that backs the
// websocket interface. Subscribers (socket clients) join named channels;
// events published to a channel reach every subscriber on it.
//
// Channels:
//   - user_{id}: account and friend events for one user
//   - private_chat_{id}: private chat messages for one user
//   - chat_{id}: group chat events
//   - session_{id}: events targeting one login session (forced logout)
package notify

import "fmt"

// Event is a single notification payload delivered to socket clients.
type Event struct {
	Action string `json:"action"`
	Data   any    `json:"data"`
}

// Notification action names.
const (
	ActionLogout           = "logout"
	ActionProfileChange    = "profile_change"
	ActionNewGroupChat     = "new_group_chat"
	ActionNewMessage       = "new_message"
	ActionMessageRecalled  = "message_recalled"
	ActionMessagesRead     = "messages_read"
	ActionAdminStateChange = "admin_state_change"
	ActionOwnerStateChange = "owner_state_change"
	ActionMemberAdded      = "member_added"
	ActionMemberDeleted    = "member_deleted"
	ActionChatInvitation   = "chat_invitation"
	ActionFriendDeleted    = "friend_deleted"
)

// Publisher is the write side of the bus, the only part the service layer
// depends on.
type Publisher interface {
	Publish(channel string, event Event)
}

// Subscriber receives events for the channels it has joined.
type Subscriber interface {
	Deliver(channel string, event Event)
}

// Broker is the full bus interface used by the websocket layer.
type Broker interface {
	Publisher
	Join(channel string, s Subscriber)
	Leave(channel string, s Subscriber)
	LeaveAll(s Subscriber)
}

// UserChannel names the account-event channel of a user.
func UserChannel(userID uint) string {
	return fmt.Sprintf("user_%d", userID)
}

// PrivateChatChannel names the private-message channel of a user.
func PrivateChatChannel(userID uint) string {
	return fmt.Sprintf("private_chat_%d", userID)
}

// ChatChannel names the event channel of a group chat.
func ChatChannel(chatID uint) string {
	return fmt.Sprintf("chat_%d", chatID)
}

// SessionChannel names the channel of a single login session.
func SessionChannel(sessionID string) string {
	return fmt.Sprintf("session_%s", sessionID)
}
