package models

import (
	"regexp"
	"strings"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
)

// User stores account information. The password is kept as a bcrypt hash and
// never leaves the model in any API struct.
type User struct {
	BaseModel
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"uniqueIndex;size:64" json:"user_name"`
	PasswordHash string `gorm:"size:128" json:"-"`

	// Inline data URL, generated identicon by default
	AvatarURL string `gorm:"size:100000" json:"avatar_url"`

	Email string `gorm:"size:100" json:"email"`
	Phone string `gorm:"size:20" json:"phone"`

	// Nullable so that user and group creation need not be circular
	DefaultGroupID *uint `json:"-"`
}

// UserBasic is the struct returned for users other than the requester's
// friends: id, name and avatar only.
type UserBasic struct {
	ID        uint   `json:"id"`
	Username  string `json:"user_name"`
	AvatarURL string `json:"avatar_url"`
}

// UserDetail is the full profile struct (everything but the password hash),
// returned for the user's own account and for friends.
type UserDetail struct {
	ID        uint   `json:"id"`
	Username  string `json:"user_name"`
	AvatarURL string `json:"avatar_url"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// ToBasicStruct converts a User to the basic API struct.
func (u *User) ToBasicStruct() UserBasic {
	return UserBasic{ID: u.ID, Username: u.Username, AvatarURL: u.AvatarURL}
}

// ToDetailedStruct converts a User to the detailed API struct.
func (u *User) ToDetailedStruct() UserDetail {
	return UserDetail{
		ID:        u.ID,
		Username:  u.Username,
		AvatarURL: u.AvatarURL,
		Email:     u.Email,
		Phone:     u.Phone,
	}
}

// IsReserved reports whether this is one of the seeded system accounts.
func (u *User) IsReserved() bool {
	return u.Username == SystemUsername || u.Username == DeletedUsername
}

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9\-_()@.]+$`)
	emailRe    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	phoneRe    = regexp.MustCompile(`^[0-9]+$`)
)

// ValidateUsername checks the username rules: non-empty, at most 32
// characters, charset a-zA-Z0-9-_()@. only.
func ValidateUsername(name *string) error {
	if name == nil {
		return apperrors.FieldMissing("user_name")
	}
	if *name == "" {
		return apperrors.BadRequest("User name cannot be empty")
	}
	if len(*name) > MaxUsernameLength {
		return apperrors.BadRequest("User name too long")
	}
	if !usernameRe.MatchString(*name) {
		return apperrors.BadRequest("User name contains invalid characters")
	}
	return nil
}

// ValidatePassword checks the password length bounds.
func ValidatePassword(password *string) error {
	if password == nil {
		return apperrors.FieldMissing("password")
	}
	if len(*password) < MinPasswordLength {
		return apperrors.BadRequest("Password too short")
	}
	if len(*password) > MaxPasswordLength {
		return apperrors.BadRequest("Password too long")
	}
	return nil
}

// ValidateEmail accepts an empty string (clears the field) or an address of
// at most 100 characters in name@host.tld shape.
func ValidateEmail(email *string) error {
	if email == nil {
		return apperrors.FieldMissing("email")
	}
	if *email == "" {
		return nil
	}
	if len(*email) > MaxEmailLength {
		return apperrors.BadRequest("Email too long")
	}
	if !emailRe.MatchString(*email) {
		return apperrors.BadRequest("Invalid email format")
	}
	return nil
}

// ValidatePhone accepts an empty string or 5-20 digits.
func ValidatePhone(phone *string) error {
	if phone == nil {
		return apperrors.FieldMissing("phone")
	}
	if *phone == "" {
		return nil
	}
	if len(*phone) < MinPhoneLength || len(*phone) > MaxPhoneLength {
		return apperrors.BadRequest("Invalid phone number")
	}
	if !phoneRe.MatchString(*phone) {
		return apperrors.BadRequest("Invalid phone number")
	}
	return nil
}

// ValidateAvatarURL accepts an empty string (regenerate the identicon), an
// inline data URL of at most 100KB, or an http(s) URL of at most 490 chars.
func ValidateAvatarURL(url *string) error {
	if url == nil {
		return apperrors.FieldMissing("avatar_url")
	}
	if *url == "" {
		return nil
	}
	if strings.HasPrefix(*url, "data:image/") {
		if len(*url) > MaxAvatarURLLength {
			return apperrors.BadRequest("Avatar image too large")
		}
		return nil
	}
	if strings.HasPrefix(*url, "http://") || strings.HasPrefix(*url, "https://") {
		if len(*url) > MaxHTTPAvatarURL {
			return apperrors.BadRequest("Avatar URL too long")
		}
		return nil
	}
	return apperrors.BadRequest("Invalid avatar URL")
}
