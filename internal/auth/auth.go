// Package auth issues and verifies session credentials. A credential is an
// HS256 JWT whose ID claim is a row in the sessions table, so revoking the
// row invalidates the token immediately (logout, password change, account
// deletion).
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/84634E1A607A/nova210se-backend/internal/apperrors"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
)

// ErrInvalidSession is returned for missing, malformed, expired or revoked
// credentials. The message matches the API contract.
var ErrInvalidSession = apperrors.Forbidden("Invalid Session")

// Manager issues and verifies session tokens.
type Manager struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
}

// NewManager creates a session manager.
func NewManager(db *gorm.DB, secret string, ttl time.Duration) *Manager {
	return &Manager{db: db, secret: []byte(secret), ttl: ttl}
}

// Issue starts a new session for the user and returns the signed token.
func (m *Manager) Issue(user *models.User) (string, *models.Session, error) {
	session := &models.Session{
		UserID:    user.ID,
		ExpiresAt: time.Now().Add(m.ttl),
	}
	if err := m.db.Create(session).Error; err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	claims := jwt.RegisteredClaims{
		ID:        session.ID.String(),
		Subject:   fmt.Sprintf("%d", user.ID),
		IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}

	return token, session, nil
}

// Verify parses a token and loads its live session with the user preloaded.
// Any failure maps to ErrInvalidSession.
func (m *Manager) Verify(tokenString string) (*models.Session, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidSession
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, ErrInvalidSession
	}

	sessionID, err := uuid.Parse(claims.ID)
	if err != nil {
		return nil, ErrInvalidSession
	}

	var session models.Session
	if err := m.db.Preload("User").First(&session, "id = ?", sessionID).Error; err != nil {
		return nil, ErrInvalidSession
	}

	if session.Expired() {
		// Lazy cleanup; the row is already useless
		m.db.Delete(&session)
		return nil, ErrInvalidSession
	}

	return &session, nil
}

// Revoke deletes a single session.
func (m *Manager) Revoke(sessionID uuid.UUID) error {
	return m.db.Delete(&models.Session{}, "id = ?", sessionID).Error
}

// RevokeAllForUser deletes every session of a user, used on account
// deletion and password change.
func (m *Manager) RevokeAllForUser(userID uint) error {
	return m.db.Delete(&models.Session{}, "user_id = ?", userID).Error
}

// RevokeOthers deletes every session of a user except the one to keep and
// returns the revoked ids, so each of their sockets can be told to close.
func (m *Manager) RevokeOthers(userID uint, keep uuid.UUID) ([]uuid.UUID, error) {
	var sessions []models.Session
	if err := m.db.Where("user_id = ? AND id <> ?", userID, keep).Find(&sessions).Error; err != nil {
		return nil, err
	}

	revoked := make([]uuid.UUID, 0, len(sessions))
	for _, s := range sessions {
		if err := m.db.Delete(&models.Session{}, "id = ?", s.ID).Error; err != nil {
			return revoked, err
		}
		revoked = append(revoked, s.ID)
	}
	return revoked, nil
}
