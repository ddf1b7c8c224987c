package ws_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/84634E1A607A/nova210se-backend/internal/auth"
	"github.com/84634E1A607A/nova210se-backend/internal/models"
	"github.com/84634E1A607A/nova210se-backend/internal/notify"
	"github.com/84634E1A607A/nova210se-backend/internal/services"
	"github.com/84634E1A607A/nova210se-backend/internal/ws"
)

type wsTestEnv struct {
	srv      *httptest.Server
	db       *gorm.DB
	bus      *notify.Bus
	sessions *auth.Manager
}

func newWSTestEnv(t *testing.T) *wsTestEnv {
	t.Helper()

	db := services.SetupSQLiteTestDB(t)
	bus := notify.NewBus()
	sessions := auth.NewManager(db, "test-secret", time.Hour)
	messages := services.NewMessageService(db, bus)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws", ws.NewHandler(db, bus, sessions, messages).Serve)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &wsTestEnv{srv: srv, db: db, bus: bus, sessions: sessions}
}

func (e *wsTestEnv) wsURL() string {
	return "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
}

// dial connects a socket, optionally authenticated with a Bearer token.
func (e *wsTestEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, _, err := websocket.DefaultDialer.Dial(e.wsURL(), header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// packet is the decoded server packet shape.
type packet struct {
	Action    string          `json:"action"`
	RequestID *int64          `json:"request_id"`
	OK        bool            `json:"ok"`
	Code      int             `json:"code"`
	Error     string          `json:"error"`
	Data      json.RawMessage `json:"data"`
}

// readUntil reads packets until one with the wanted action arrives.
func readUntil(t *testing.T, conn *websocket.Conn, action string) packet {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var p packet
		require.NoError(t, conn.ReadJSON(&p))
		if p.Action == action {
			return p
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, action string, requestID int64, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{
		"action": action, "request_id": requestID, "data": data,
	}))
}

// registerUser creates an account and an authenticated session for it.
func (e *wsTestEnv) registerUser(t *testing.T, username string) (*models.User, string) {
	t.Helper()

	user, err := services.NewUserService(e.db, e.bus).Register(username, "password123")
	require.NoError(t, err)
	token, _, err := e.sessions.Issue(user)
	require.NoError(t, err)
	return user, token
}

// privateChatOf sets up a friendship and returns the backing private chat.
func (e *wsTestEnv) privateChatOf(t *testing.T, a, b *models.User) *models.Chat {
	t.Helper()

	friends := services.NewFriendService(e.db, e.bus)
	require.NoError(t, friends.SendInvitation(a, b.ID, "hi", models.InvitationSourceSearch))

	var invitation models.FriendInvitation
	require.NoError(t, e.db.Where("sender_id = ?", a.ID).First(&invitation).Error)
	require.NoError(t, friends.AcceptInvitation(b, invitation.ID))

	var chat models.Chat
	require.NoError(t, e.db.Where("name = ''").First(&chat).Error)
	return &chat
}

func TestInvalidSessionReportedOnSocket(t *testing.T) {
	env := newWSTestEnv(t)

	conn := env.dial(t, "")
	p := readUntil(t, conn, "error")
	assert.False(t, p.OK)
	assert.Equal(t, 403, p.Code)
	assert.Equal(t, "Invalid Session", p.Error)
}

func TestPingPong(t *testing.T) {
	env := newWSTestEnv(t)
	_, token := env.registerUser(t, "alice")

	conn := env.dial(t, token)
	send(t, conn, "ping", 7, nil)

	p := readUntil(t, conn, "pong")
	assert.True(t, p.OK)
	require.NotNil(t, p.RequestID)
	assert.EqualValues(t, 7, *p.RequestID)
}

func TestUnknownActionAndMalformedPacket(t *testing.T) {
	env := newWSTestEnv(t)
	_, token := env.registerUser(t, "alice")

	conn := env.dial(t, token)

	send(t, conn, "dance", 1, nil)
	p := readUntil(t, conn, "error")
	assert.Equal(t, 400, p.Code)
	assert.Equal(t, "Unknown action", p.Error)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	p = readUntil(t, conn, "error")
	assert.Equal(t, "Malformed packet", p.Error)
}

func TestSendMessageFanOut(t *testing.T) {
	env := newWSTestEnv(t)
	alice, aliceToken := env.registerUser(t, "alice")
	bob, bobToken := env.registerUser(t, "bob")
	chat := env.privateChatOf(t, alice, bob)

	aliceConn := env.dial(t, aliceToken)
	bobConn := env.dial(t, bobToken)

	// Both sockets must be subscribed before the message goes out
	send(t, aliceConn, "ping", 1, nil)
	readUntil(t, aliceConn, "pong")
	send(t, bobConn, "ping", 1, nil)
	readUntil(t, bobConn, "pong")

	send(t, aliceConn, "send_message", 2, map[string]any{
		"chat_id": chat.ID, "content": "hello bob",
	})

	// The sender gets a reply with the stored message
	reply := readUntil(t, aliceConn, "send_message")
	require.True(t, reply.OK)
	var sent struct {
		ID      uint   `json:"message_id"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(reply.Data, &sent))
	assert.Equal(t, "hello bob", sent.Message)

	// The peer receives the fan-out notification
	note := readUntil(t, bobConn, "new_message")
	var pushed struct {
		Message struct {
			ID      uint   `json:"message_id"`
			Message string `json:"message"`
		} `json:"message"`
	}
	require.NoError(t, json.Unmarshal(note.Data, &pushed))
	assert.Equal(t, sent.ID, pushed.Message.ID)
	assert.Equal(t, "hello bob", pushed.Message.Message)
}

func TestSendMessageToForeignChat(t *testing.T) {
	env := newWSTestEnv(t)
	alice, _ := env.registerUser(t, "alice")
	bob, _ := env.registerUser(t, "bob")
	chat := env.privateChatOf(t, alice, bob)

	_, carolToken := env.registerUser(t, "carol")
	conn := env.dial(t, carolToken)

	send(t, conn, "send_message", 1, map[string]any{
		"chat_id": chat.ID, "content": "let me in",
	})
	p := readUntil(t, conn, "error")
	assert.Equal(t, 403, p.Code)
}

func TestMarkChatReadOverSocket(t *testing.T) {
	env := newWSTestEnv(t)
	alice, aliceToken := env.registerUser(t, "alice")
	bob, bobToken := env.registerUser(t, "bob")
	chat := env.privateChatOf(t, alice, bob)

	messages := services.NewMessageService(env.db, env.bus)
	_, err := messages.Send(alice, chat.ID, "unread", nil)
	require.NoError(t, err)

	aliceConn := env.dial(t, aliceToken)
	bobConn := env.dial(t, bobToken)
	send(t, aliceConn, "ping", 1, nil)
	readUntil(t, aliceConn, "pong")

	send(t, bobConn, "mark_chat_read", 2, map[string]any{"chat_id": chat.ID})
	reply := readUntil(t, bobConn, "mark_chat_read")
	assert.True(t, reply.OK)

	// The peer is told the chat was caught up
	note := readUntil(t, aliceConn, "messages_read")
	var read struct {
		ChatID uint `json:"chat_id"`
		UserID uint `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(note.Data, &read))
	assert.Equal(t, chat.ID, read.ChatID)
	assert.Equal(t, bob.ID, read.UserID)
}

func TestLogoutClosesSocket(t *testing.T) {
	env := newWSTestEnv(t)
	_, token := env.registerUser(t, "alice")

	conn := env.dial(t, token)
	send(t, conn, "ping", 1, nil)
	readUntil(t, conn, "pong")

	session, err := env.sessions.Verify(token)
	require.NoError(t, err)
	env.bus.Publish(notify.SessionChannel(session.ID.String()), notify.Event{
		Action: notify.ActionLogout,
	})

	readUntil(t, conn, "logout")

	// The server hangs up after the farewell packet
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var p packet
	err = conn.ReadJSON(&p)
	assert.Error(t, err)
}
