package services

import (
	"sync"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/notify"
)

// SetupSQLiteTestDB creates an in-memory SQLite database with the full
// schema and the reserved accounts seeded.
func SetupSQLiteTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect to SQLite test database: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.FriendGroup{},
		&models.Friend{},
		&models.FriendInvitation{},
		&models.Chat{},
		&models.ChatMember{},
		&models.ChatMessage{},
		&models.MessageRead{},
		&models.ChatInvitation{},
		&models.Session{},
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	for _, name := range []string{models.SystemUsername, models.DeletedUsername} {
		if err := db.Create(&models.User{Username: name}).Error; err != nil {
			t.Fatalf("Failed to seed reserved user %s: %v", name, err)
		}
	}

	return db
}

// recordedEvent is one captured Publish call.
type recordedEvent struct {
	Channel string
	Event   notify.Event
}

// recordingPublisher captures notifications for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(channel string, event notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{Channel: channel, Event: event})
}

// Events returns a snapshot of the captured notifications.
func (p *recordingPublisher) Events() []recordedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]recordedEvent(nil), p.events...)
}

// has reports whether an event with the action was published on the channel.
func (p *recordingPublisher) has(channel, action string) bool {
	return p.count(channel, action) > 0
}

// count returns how many events with the action went out on the channel.
func (p *recordingPublisher) count(channel, action string) int {
	n := 0
	for _, e := range p.Events() {
		if e.Channel == channel && e.Event.Action == action {
			n++
		}
	}
	return n
}

// registerTestUser creates an account through the user service.
func registerTestUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user, err := NewUserService(db, &recordingPublisher{}).Register(username, "password123")
	if err != nil {
		t.Fatalf("Failed to register test user %s: %v", username, err)
	}
	return user
}

// makeFriends runs the invitation flow so the two users end up friends, with
// the backing private chat created.
func makeFriends(t *testing.T, db *gorm.DB, a, b *models.User) {
	t.Helper()

	svc := NewFriendService(db, &recordingPublisher{})
	if err := svc.SendInvitation(a, b.ID, "hi", models.InvitationSourceSearch); err != nil {
		t.Fatalf("Failed to send invitation: %v", err)
	}

	var invitation models.FriendInvitation
	if err := db.Where("sender_id = ? AND receiver_id = ?", a.ID, b.ID).First(&invitation).Error; err != nil {
		t.Fatalf("Invitation not found: %v", err)
	}
	if err := svc.AcceptInvitation(b, invitation.ID); err != nil {
		t.Fatalf("Failed to accept invitation: %v", err)
	}
}
