package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository"
	"github.com/rocketscienceinc/gomoku-backend/internal/room"
	"github.com/rocketscienceinc/gomoku-backend/internal/usecase"
)

const readTimeout = 2 * time.Second

type memoryResults struct {
	mu      sync.Mutex
	results map[string]entity.GameResult
}

func (that *memoryResults) Save(_ context.Context, result *entity.GameResult, _ time.Duration) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.results[result.RoomID] = *result

	return nil
}

func (that *memoryResults) GetByID(_ context.Context, roomID string) (*entity.GameResult, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	result, ok := that.results[roomID]
	if !ok {
		return nil, repository.ErrGameNotFound
	}

	return &result, nil
}

func (that *memoryResults) DeleteByID(_ context.Context, roomID string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, ok := that.results[roomID]; !ok {
		return repository.ErrGameNotFound
	}

	delete(that.results, roomID)

	return nil
}

type testServer struct {
	url     string
	clock   *clock.Mock
	results *memoryResults
}

func newTestServer(t *testing.T, origins ...string) *testServer {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	clk := clock.NewMock()
	results := &memoryResults{results: make(map[string]entity.GameResult)}

	manager := usecase.NewGameManager(logger, clk, room.DefaultConfig(), results, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	go manager.Run(ctx)
	t.Cleanup(cancel)

	if len(origins) == 0 {
		origins = []string{"*"}
	}

	server := New(logger, manager, NewOriginPolicy(logger, origins))
	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	return &testServer{
		url:     "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws",
		clock:   clk,
		results: results,
	}
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (that *testServer) dial(t *testing.T) *client {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(that.url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &client{t: t, conn: conn}
}

func (that *client) send(frame string) {
	that.t.Helper()

	require.NoError(that.t, that.conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

// next returns the next message that is not a turn_timer tick.
func (that *client) next() map[string]any {
	that.t.Helper()

	for {
		require.NoError(that.t, that.conn.SetReadDeadline(time.Now().Add(readTimeout)))

		_, data, err := that.conn.ReadMessage()
		require.NoError(that.t, err)

		var msg map[string]any
		require.NoError(that.t, json.Unmarshal(data, &msg))

		if msg["type"] != "turn_timer" {
			return msg
		}
	}
}

func (that *client) expect(msgType string) map[string]any {
	that.t.Helper()

	msg := that.next()
	require.Equal(that.t, msgType, msg["type"], "unexpected message %v", msg)

	return msg
}

// startGame creates a room with a and joins it with b.
func startGame(t *testing.T, a, b *client) (string, string) {
	t.Helper()

	a.send(`{"type":"create_room"}`)
	created := a.expect("room_created")
	roomID := created["room_id"].(string)
	token := created["player_token"].(string)

	b.send(fmt.Sprintf(`{"type":"join_room","room_id":%q}`, roomID))
	b.expect("room_created")
	b.expect("game_started")
	a.expect("player_joined")
	a.expect("game_started")

	return roomID, token
}

func TestServer_GameFlow(t *testing.T) {
	srv := newTestServer(t)
	a, b := srv.dial(t), srv.dial(t)

	// When: A creates a room
	a.send(`{"type":"create_room"}`)

	// Then: A is black and gets a token
	created := a.expect("room_created")
	assert.Equal(t, "black", created["color"])
	assert.Regexp(t, `^[0-9a-f]{6}$`, created["room_id"])
	assert.NotEmpty(t, created["player_token"])
	roomID := created["room_id"].(string)

	// When: B joins
	b.send(fmt.Sprintf(`{"type":"join_room","room_id":%q}`, roomID))

	// Then: B is white and both sides learn the game started
	joined := b.expect("room_created")
	assert.Equal(t, "white", joined["color"])
	assert.Equal(t, roomID, joined["room_id"])
	assert.Equal(t, "white", b.expect("game_started")["your_color"])
	assert.Equal(t, "white", a.expect("player_joined")["color"])
	assert.Equal(t, "black", a.expect("game_started")["your_color"])

	// When: A plays the centre
	a.send(`{"type":"place_stone","row":7,"col":7}`)

	// Then: both players see it
	for _, c := range []*client{a, b} {
		placed := c.expect("stone_placed")
		assert.InDelta(t, 7, placed["row"], 0)
		assert.InDelta(t, 7, placed["col"], 0)
		assert.Equal(t, "black", placed["color"])
		assert.Equal(t, "white", placed["next_turn"])
	}

	// When: B finishes the game by leaving
	b.send(`{"type":"leave_room"}`)

	// Then: A wins and the result is archived
	over := a.expect("game_over")
	assert.Equal(t, "black", over["winner"])
	assert.Equal(t, entity.ReasonOpponentLeft, over["reason"])

	require.Eventually(t, func() bool {
		result, err := srv.results.GetByID(context.Background(), roomID)
		return err == nil && result.Winner == entity.ColorBlack
	}, readTimeout, 10*time.Millisecond)

	// And: a stale move is answered with an error
	a.send(`{"type":"place_stone","row":0,"col":0}`)
	assert.Equal(t, apperror.ErrGameFinished.Error(), a.expect("error")["message"])
}

func TestServer_Errors(t *testing.T) {
	t.Run("Unknown and malformed messages", func(t *testing.T) {
		srv := newTestServer(t)
		a := srv.dial(t)

		a.send(`{"type":"chat"}`)
		assert.Equal(t, apperror.ErrUnknownMessage.Error(), a.expect("error")["message"])

		a.send(`{"type":"place_stone","row":"x"}`)
		assert.Equal(t, apperror.ErrMalformedMessage.Error(), a.expect("error")["message"])

		a.send(`garbage`)
		assert.Equal(t, apperror.ErrMalformedMessage.Error(), a.expect("error")["message"])
	})

	t.Run("Move outside a room", func(t *testing.T) {
		srv := newTestServer(t)
		a := srv.dial(t)

		a.send(`{"type":"place_stone","row":7,"col":7}`)

		assert.Equal(t, apperror.ErrNotInRoom.Error(), a.expect("error")["message"])
	})

	t.Run("Join an unknown room", func(t *testing.T) {
		srv := newTestServer(t)
		a := srv.dial(t)

		a.send(`{"type":"join_room","room_id":"zzzzzz"}`)

		assert.Equal(t, apperror.ErrRoomNotFound.Error(), a.expect("error")["message"])
	})

	t.Run("Wrong turn and occupied cell go to the actor only", func(t *testing.T) {
		srv := newTestServer(t)
		a, b := srv.dial(t), srv.dial(t)
		startGame(t, a, b)

		// When: white moves first
		b.send(`{"type":"place_stone","row":7,"col":7}`)

		// Then: only white gets an error
		assert.Equal(t, apperror.ErrNotYourTurn.Error(), b.expect("error")["message"])

		// When: black plays and white answers on the same cell
		a.send(`{"type":"place_stone","row":7,"col":7}`)
		a.expect("stone_placed")
		b.expect("stone_placed")
		b.send(`{"type":"place_stone","row":7,"col":7}`)

		// Then: white is told the move is invalid and black hears nothing more than the next valid move
		assert.Equal(t, apperror.ErrInvalidMove.Error(), b.expect("error")["message"])
		b.send(`{"type":"place_stone","row":0,"col":0}`)
		placed := a.expect("stone_placed")
		assert.Equal(t, "white", placed["color"])
	})

	t.Run("Creating a room while playing", func(t *testing.T) {
		srv := newTestServer(t)
		a, b := srv.dial(t), srv.dial(t)
		startGame(t, a, b)

		a.send(`{"type":"create_room"}`)

		assert.Equal(t, apperror.ErrAlreadyInRoom.Error(), a.expect("error")["message"])
	})

	t.Run("A finished game does not block a new room", func(t *testing.T) {
		srv := newTestServer(t)
		a, b := srv.dial(t), srv.dial(t)
		startGame(t, a, b)

		b.send(`{"type":"leave_room"}`)
		a.expect("game_over")

		a.send(`{"type":"create_room"}`)
		assert.Equal(t, "black", a.expect("room_created")["color"])
	})
}

func TestServer_Reconnect(t *testing.T) {
	// Given: a running game with one stone on the board
	srv := newTestServer(t)
	a, b := srv.dial(t), srv.dial(t)
	roomID, token := startGame(t, a, b)

	a.send(`{"type":"place_stone","row":7,"col":7}`)
	a.expect("stone_placed")
	b.expect("stone_placed")

	// When: A's connection drops
	require.NoError(t, a.conn.Close())

	// Then: B is told
	b.expect("opponent_disconnected")

	// When: A comes back on a new connection with its token
	a2 := srv.dial(t)
	a2.send(fmt.Sprintf(`{"type":"reconnect","room_id":%q,"player_token":%q}`, roomID, token))

	// Then: A gets the full state and B is told
	state := a2.expect("state_sync")
	assert.Equal(t, "white", state["current_turn"])
	assert.Equal(t, "black", state["your_color"])
	assert.InDelta(t, 1, state["move_count"], 0)
	assert.GreaterOrEqual(t, state["timer_remaining"], 0.0)

	board := state["board"].([]any)
	require.Len(t, board, entity.BoardSize)
	assert.Equal(t, "black", board[7].([]any)[7])
	assert.Nil(t, board[0].([]any)[0])

	b.expect("opponent_reconnected")

	// And: play continues on the new connection
	b.send(`{"type":"place_stone","row":0,"col":0}`)
	assert.Equal(t, "white", a2.expect("stone_placed")["color"])
}

func TestServer_ReconnectWithBadToken(t *testing.T) {
	srv := newTestServer(t)
	a, b := srv.dial(t), srv.dial(t)
	roomID, _ := startGame(t, a, b)

	c := srv.dial(t)
	c.send(fmt.Sprintf(`{"type":"reconnect","room_id":%q,"player_token":"nope"}`, roomID))

	assert.Equal(t, apperror.ErrInvalidToken.Error(), c.expect("error")["message"])
}

func TestServer_OriginPolicy(t *testing.T) {
	srv := newTestServer(t, "http://localhost:5173")

	t.Run("Allowed origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"http://LOCALHOST:5173"}}

		conn, resp, err := websocket.DefaultDialer.Dial(srv.url, header)

		require.NoError(t, err)
		_ = resp.Body.Close()
		_ = conn.Close()
	})

	t.Run("Disallowed origin", func(t *testing.T) {
		header := http.Header{"Origin": []string{"https://evil.example"}}

		_, resp, err := websocket.DefaultDialer.Dial(srv.url, header)

		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		_ = resp.Body.Close()
	})
}
