package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func str(s string) *string { return &s }

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername(str("alice-01_(a)@b.c")))

	assert.Error(t, ValidateUsername(nil))
	assert.Error(t, ValidateUsername(str("")))
	assert.Error(t, ValidateUsername(str("has spaces")))
	assert.Error(t, ValidateUsername(str("#SYSTEM")))
	assert.Error(t, ValidateUsername(str(strings.Repeat("a", MaxUsernameLength+1))))
}

func TestValidatePassword(t *testing.T) {
	assert.NoError(t, ValidatePassword(str("hunter2!")))

	assert.Error(t, ValidatePassword(nil))
	assert.Error(t, ValidatePassword(str("short")))
	assert.Error(t, ValidatePassword(str(strings.Repeat("a", MaxPasswordLength+1))))
}

func TestValidateEmailAndPhone(t *testing.T) {
	assert.NoError(t, ValidateEmail(str("")))
	assert.NoError(t, ValidateEmail(str("alice@example.com")))
	assert.Error(t, ValidateEmail(str("not-an-email")))

	assert.NoError(t, ValidatePhone(str("")))
	assert.NoError(t, ValidatePhone(str("13800000000")))
	assert.Error(t, ValidatePhone(str("123")))
	assert.Error(t, ValidatePhone(str("12345abcde")))
}

func TestValidateAvatarURL(t *testing.T) {
	assert.NoError(t, ValidateAvatarURL(str("")))
	assert.NoError(t, ValidateAvatarURL(str("data:image/png;base64,AAAA")))
	assert.NoError(t, ValidateAvatarURL(str("https://example.com/a.png")))

	assert.Error(t, ValidateAvatarURL(str("ftp://example.com/a.png")))
	assert.Error(t, ValidateAvatarURL(str("https://example.com/"+strings.Repeat("a", MaxHTTPAvatarURL))))
	assert.Error(t, ValidateAvatarURL(str("data:image/png;base64,"+strings.Repeat("A", MaxAvatarURLLength))))
}

func TestIsReserved(t *testing.T) {
	assert.True(t, (&User{Username: SystemUsername}).IsReserved())
	assert.True(t, (&User{Username: DeletedUsername}).IsReserved())
	assert.False(t, (&User{Username: "alice"}).IsReserved())
}

func TestChatIsPrivate(t *testing.T) {
	assert.True(t, (&Chat{Name: ""}).IsPrivate())
	assert.False(t, (&Chat{Name: "room"}).IsPrivate())
}

func TestInvitationSourceRendering(t *testing.T) {
	searched := FriendInvitation{Source: InvitationSourceSearch}
	assert.Equal(t, "search", searched.ToStruct().Source)

	fromChat := FriendInvitation{Source: 42}
	assert.EqualValues(t, 42, fromChat.ToStruct().Source)
}
