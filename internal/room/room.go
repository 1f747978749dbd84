package room

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/protocol"
)

type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

// Peer is the outbound side of a player's connection. Send must only enqueue: it is called while
// the room is locked and must never block or call back into the room.
type Peer interface {
	Send(msg protocol.ServerMessage)
}

// FinishFunc receives the result of every finished game. It is called without the room lock held.
type FinishFunc func(result entity.GameResult)

type Config struct {
	TurnTimeout     time.Duration
	TickInterval    time.Duration
	ReconnectWindow time.Duration
	FinishedRoomTTL time.Duration
	SweepInterval   time.Duration
}

func DefaultConfig() Config {
	return Config{
		TurnTimeout:     30 * time.Second,
		TickInterval:    time.Second,
		ReconnectWindow: 60 * time.Second,
		FinishedRoomTTL: 2 * time.Minute,
		SweepInterval:   10 * time.Second,
	}
}

type seat struct {
	player    *entity.Player
	peer      Peer
	left      bool
	window    *ReconnectWindow
	windowGen uint64
}

// Room is a single game between two players. Every operation and every timer callback holds mu
// for its whole duration.
type Room struct {
	mu sync.Mutex

	id       string
	clock    clock.Clock
	config   Config
	logger   *slog.Logger
	onFinish FinishFunc

	status      Status
	discarded   bool
	closed      bool
	board       *entity.Board
	seats       [2]*seat
	currentTurn entity.Color

	turnClock *TurnClock
	turnGen   uint64

	result    *entity.GameResult
	reported  bool
	idleSince time.Time
}

// New creates a waiting room with the creator seated as black and sends room_created to it.
func New(id string, peer Peer, clk clock.Clock, config Config, logger *slog.Logger, onFinish FinishFunc) (*Room, *entity.Player) {
	player := &entity.Player{
		Token: uuid.NewString(),
		Color: entity.ColorBlack,
	}

	room := &Room{
		id:       id,
		clock:    clk,
		config:   config,
		logger:   logger.With("room_id", id),
		onFinish: onFinish,
		status:   StatusWaiting,
		board:    entity.NewBoard(),
		seats:    [2]*seat{{player: player, peer: peer}},
	}

	peer.Send(protocol.RoomCreated{
		RoomID:      id,
		PlayerToken: player.Token,
		Color:       player.Color,
	})

	room.logger.Info("room created")

	return room, player
}

func (that *Room) ID() string {
	return that.id
}

// Join seats the second player as white and starts the game.
func (that *Room) Join(peer Peer) (*entity.Player, error) {
	var player *entity.Player

	err := that.do(func() error {
		if that.discarded {
			return apperror.ErrRoomNotFound
		}

		if that.status != StatusWaiting || that.seats[1] != nil {
			return apperror.ErrRoomFull
		}

		player = &entity.Player{
			Token: uuid.NewString(),
			Color: entity.ColorWhite,
		}
		that.seats[1] = &seat{player: player, peer: peer}

		that.status = StatusInProgress
		that.currentTurn = entity.ColorBlack

		host := that.seats[0]

		peer.Send(protocol.RoomCreated{RoomID: that.id, PlayerToken: player.Token, Color: player.Color})
		that.sendTo(host, protocol.PlayerJoined{Color: player.Color})

		for _, s := range that.seats {
			that.sendTo(s, protocol.GameStarted{YourColor: s.player.Color})
		}

		that.startTurn()

		that.logger.Info("game started")

		return nil
	})
	if err != nil {
		return nil, err
	}

	return player, nil
}

// PlaceStone applies a move by the player holding token.
func (that *Room) PlaceStone(token string, row, col int) error {
	return that.do(func() error {
		if that.discarded {
			return apperror.ErrRoomNotFound
		}

		s := that.seatByToken(token)
		if s == nil {
			return apperror.ErrNotInRoom
		}

		switch that.status {
		case StatusWaiting:
			return apperror.ErrGameIsNotStarted
		case StatusFinished:
			return apperror.ErrGameFinished
		case StatusInProgress:
		}

		color := s.player.Color
		if color != that.currentTurn {
			return apperror.ErrNotYourTurn
		}

		outcome, err := that.board.Place(row, col, color)
		if err != nil {
			return fmt.Errorf("failed to place stone: %w", err)
		}

		switch outcome {
		case entity.OutcomeWin:
			that.broadcast(protocol.NewStonePlaced(row, col, color, entity.ColorNone))
			that.finish(color, entity.ReasonFiveInARow)
		case entity.OutcomeDraw:
			that.broadcast(protocol.NewStonePlaced(row, col, color, entity.ColorNone))
			that.finish(entity.ColorNone, entity.ReasonBoardFull)
		case entity.OutcomeContinue:
			that.currentTurn = color.Opponent()
			that.broadcast(protocol.NewStonePlaced(row, col, color, that.currentTurn))
			that.startTurn()
		}

		return nil
	})
}

// Leave forfeits a running game, discards a waiting room and marks the seat as gone once finished.
func (that *Room) Leave(token string) error {
	return that.do(func() error {
		if that.discarded {
			return apperror.ErrRoomNotFound
		}

		s := that.seatByToken(token)
		if s == nil {
			return apperror.ErrNotInRoom
		}

		that.detach(s)
		s.left = true

		switch that.status {
		case StatusWaiting:
			that.discard()
		case StatusInProgress:
			that.finish(s.player.Color.Opponent(), entity.ReasonOpponentLeft)
		case StatusFinished:
			that.markIdle()
		}

		return nil
	})
}

// Disconnect handles a dropped connection. It does nothing unless peer is still the seat's live peer.
func (that *Room) Disconnect(token string, peer Peer) {
	_ = that.do(func() error {
		if that.discarded {
			return nil
		}

		s := that.seatByToken(token)
		if s == nil || s.peer == nil || s.peer != peer {
			return nil
		}

		s.peer = nil

		switch that.status {
		case StatusWaiting:
			that.discard()

		case StatusFinished:
			that.markIdle()

		case StatusInProgress:
			opponent := that.opponentOf(s)
			if opponent.peer == nil {
				that.finish(entity.ColorNone, entity.ReasonAbandoned)
				return nil
			}

			that.openWindow(s)
			that.sendTo(opponent, protocol.OpponentDisconnected{})

			that.logger.Info("player disconnected", "color", s.player.Color)
		}

		return nil
	})
}

// Reconnect re-attaches a disconnected player and sends it a full state_sync.
func (that *Room) Reconnect(token string, peer Peer) error {
	return that.do(func() error {
		if that.discarded {
			return apperror.ErrRoomNotFound
		}

		s := that.seatByToken(token)
		if s == nil {
			return apperror.ErrInvalidToken
		}

		now := that.clock.Now()

		if s.player.IsDisconnected() && !now.Before(s.player.DisconnectDeadline) {
			if that.status == StatusInProgress {
				that.expireWindow(s)
			}

			return apperror.ErrReconnectExpired
		}

		if that.status == StatusFinished {
			return apperror.ErrGameFinished
		}

		if !s.player.IsDisconnected() {
			return apperror.ErrInvalidToken
		}

		that.closeWindow(s)
		s.player.DisconnectDeadline = time.Time{}
		s.peer = peer

		that.sendTo(that.opponentOf(s), protocol.OpponentReconnected{})

		var remaining float64
		if that.turnClock != nil {
			remaining = that.turnClock.Remaining(now).Seconds()
		}

		peer.Send(protocol.StateSync{
			Board:          protocol.BoardRows(that.board.Snapshot()),
			CurrentTurn:    that.currentTurn,
			MoveCount:      that.board.MoveCount(),
			YourColor:      s.player.Color,
			TimerRemaining: remaining,
		})

		that.logger.Info("player reconnected", "color", s.player.Color)

		return nil
	})
}

// Close cancels every timer. Any callback still in flight becomes a no-op.
func (that *Room) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true
	that.stopTimers()
}

func (that *Room) Status() Status {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.status
}

func (that *Room) CurrentTurn() entity.Color {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.currentTurn
}

func (that *Room) MoveCount() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.board.MoveCount()
}

// Board returns a copy of the grid.
func (that *Room) Board() [entity.BoardSize][entity.BoardSize]entity.Color {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.board.Snapshot()
}

// Result is nil until the room is finished.
func (that *Room) Result() *entity.GameResult {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.result == nil {
		return nil
	}

	result := *that.result

	return &result
}

// Released reports whether the room can be dropped right away: it was discarded, or both players
// left after the game ended.
func (that *Room) Released() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.released()
}

// Reclaimable reports whether the room can be evicted at now.
func (that *Room) Reclaimable(now time.Time) bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.released() {
		return true
	}

	if that.status != StatusFinished || that.connected() > 0 {
		return false
	}

	return !now.Before(that.idleSince.Add(that.config.FinishedRoomTTL))
}

func (that *Room) released() bool {
	if that.discarded {
		return true
	}

	if that.status != StatusFinished {
		return false
	}

	for _, s := range that.seats {
		if s != nil && !s.left {
			return false
		}
	}

	return true
}

// do runs fn under the room lock and reports a result produced by fn after unlocking.
func (that *Room) do(fn func() error) error {
	that.mu.Lock()

	err := fn()

	var result *entity.GameResult
	if that.result != nil && !that.reported {
		that.reported = true
		copied := *that.result
		result = &copied
	}

	that.mu.Unlock()

	if result != nil && that.onFinish != nil {
		that.onFinish(*result)
	}

	return err
}

func (that *Room) startTurn() {
	that.stopTurnClock()

	gen := that.turnGen
	that.turnClock = StartTurnClock(that.clock, that.config.TurnTimeout, that.config.TickInterval,
		func() { that.onTurnTick(gen) },
		func() { that.onTurnExpired(gen) },
	)
}

func (that *Room) stopTurnClock() {
	that.turnGen++

	if that.turnClock != nil {
		that.turnClock.Stop()
	}
}

func (that *Room) turnArmed(gen uint64) bool {
	return !that.closed && that.status == StatusInProgress && gen == that.turnGen
}

func (that *Room) onTurnTick(gen uint64) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.turnArmed(gen) {
		return
	}

	remaining := that.turnClock.Remaining(that.clock.Now())
	that.broadcast(protocol.TurnTimer{Remaining: int(math.Ceil(remaining.Seconds()))})
}

func (that *Room) onTurnExpired(gen uint64) {
	_ = that.do(func() error {
		if !that.turnArmed(gen) {
			return nil
		}

		that.logger.Info("turn timed out", "color", that.currentTurn)
		that.finish(that.currentTurn.Opponent(), entity.ReasonTimeout)

		return nil
	})
}

func (that *Room) openWindow(s *seat) {
	that.closeWindow(s)

	gen := s.windowGen
	s.window = StartReconnectWindow(that.clock, that.config.ReconnectWindow, func() {
		that.onWindowExpired(s, gen)
	})
	s.player.DisconnectDeadline = s.window.Deadline()
}

func (that *Room) closeWindow(s *seat) {
	s.windowGen++

	if s.window != nil {
		s.window.Stop()
		s.window = nil
	}
}

func (that *Room) onWindowExpired(s *seat, gen uint64) {
	_ = that.do(func() error {
		if that.closed || that.status != StatusInProgress || gen != s.windowGen || !s.player.IsDisconnected() {
			return nil
		}

		that.expireWindow(s)

		return nil
	})
}

func (that *Room) expireWindow(s *seat) {
	that.logger.Info("reconnect window expired", "color", s.player.Color)
	that.finish(s.player.Color.Opponent(), entity.ReasonDisconnectTimeout)
}

func (that *Room) stopTimers() {
	that.stopTurnClock()

	for _, s := range that.seats {
		if s != nil {
			that.closeWindow(s)
		}
	}
}

// finish moves the room to FINISHED and tells every connected player.
func (that *Room) finish(winner entity.Color, reason string) {
	that.stopTimers()

	that.status = StatusFinished
	that.result = &entity.GameResult{
		RoomID:     that.id,
		Winner:     winner,
		Reason:     reason,
		MoveCount:  that.board.MoveCount(),
		FinishedAt: that.clock.Now(),
	}

	that.broadcast(protocol.NewGameOver(winner, reason))
	that.markIdle()

	that.logger.Info("game finished", "winner", winner, "reason", reason)
}

func (that *Room) discard() {
	that.stopTimers()
	that.discarded = true

	that.logger.Info("room discarded")
}

func (that *Room) markIdle() {
	if that.connected() == 0 {
		that.idleSince = that.clock.Now()
	}
}

func (that *Room) detach(s *seat) {
	s.peer = nil
	that.closeWindow(s)
}

func (that *Room) connected() int {
	count := 0
	for _, s := range that.seats {
		if s != nil && s.peer != nil {
			count++
		}
	}

	return count
}

func (that *Room) seatByToken(token string) *seat {
	if token == "" {
		return nil
	}

	for _, s := range that.seats {
		if s != nil && s.player.Token == token {
			return s
		}
	}

	return nil
}

func (that *Room) opponentOf(s *seat) *seat {
	if that.seats[0] == s {
		return that.seats[1]
	}

	return that.seats[0]
}

func (that *Room) sendTo(s *seat, msg protocol.ServerMessage) {
	if s != nil && s.peer != nil {
		s.peer.Send(msg)
	}
}

func (that *Room) broadcast(msg protocol.ServerMessage) {
	for _, s := range that.seats {
		that.sendTo(s, msg)
	}
}
