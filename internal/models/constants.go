package models

// Field length limits enforced by validation and mirrored in column sizes.
const (
	MaxUsernameLength  = 32
	MinPasswordLength  = 6
	MaxPasswordLength  = 100
	MaxEmailLength     = 100
	MaxPhoneLength     = 20
	MinPhoneLength     = 5
	MaxAvatarURLLength = 100000 // allows a 100KB base64 encoded image
	MaxHTTPAvatarURL   = 490
	MaxNicknameLength  = 100
	MaxGroupNameLength = 99
	MaxChatNameLength  = 60
	MaxCommentLength   = 500
	MaxMessageLength   = 5000
)

// Reserved usernames. The leading '#' is outside the username charset, so
// neither can be registered or collide with a real account.
const (
	SystemUsername  = "#SYSTEM"
	DeletedUsername = "#DELETED"
)

// InvitationSourceSearch marks a friend invitation that originated from user
// search rather than from a group chat.
const InvitationSourceSearch = -1
