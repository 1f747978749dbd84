package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/room"
)

type resultRepo interface {
	Save(ctx context.Context, result *entity.GameResult, ttl time.Duration) error
	GetByID(ctx context.Context, roomID string) (*entity.GameResult, error)
	DeleteByID(ctx context.Context, roomID string) error
}

// Seat is what a connection needs to remember about its place in a room.
type Seat struct {
	RoomID string
	Token  string
	Color  entity.Color
}

// GameManager fronts the room registry for the transport layer and archives finished games.
type GameManager struct {
	registry   *room.Registry
	archiver   *archiver
	resultRepo resultRepo
}

func NewGameManager(logger *slog.Logger, clk clock.Clock, roomConfig room.Config, resultRepo resultRepo, resultTTL time.Duration) *GameManager {
	manager := &GameManager{
		archiver:   newArchiver(logger, resultRepo, resultTTL),
		resultRepo: resultRepo,
	}

	manager.registry = room.NewRegistry(clk, roomConfig, logger, manager.archiver.save)

	return manager
}

// Run sweeps idle rooms until ctx is done, then flushes pending archive writes.
func (that *GameManager) Run(ctx context.Context) {
	that.registry.Run(ctx)
	that.archiver.stop()
}

// Stop drops every room and waits for pending archive writes.
func (that *GameManager) Stop() {
	that.registry.Stop()
	that.archiver.stop()
}

// CreateRoom seats peer in a new room. Room ids are reused over time, so any result archived under
// the new id by an earlier room is dropped.
func (that *GameManager) CreateRoom(peer room.Peer) (*Seat, error) {
	created, player, err := that.registry.Create(peer)
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	that.archiver.forget(created.ID())

	return &Seat{RoomID: created.ID(), Token: player.Token, Color: player.Color}, nil
}

func (that *GameManager) JoinRoom(roomID string, peer room.Peer) (*Seat, error) {
	target, err := that.registry.Get(roomID)
	if err != nil {
		return nil, err
	}

	player, err := target.Join(peer)
	if err != nil {
		return nil, fmt.Errorf("room %s: %w", roomID, err)
	}

	return &Seat{RoomID: roomID, Token: player.Token, Color: player.Color}, nil
}

func (that *GameManager) PlaceStone(roomID, token string, row, col int) error {
	target, err := that.registry.Get(roomID)
	if err != nil {
		return err
	}

	if err = target.PlaceStone(token, row, col); err != nil {
		return fmt.Errorf("room %s: %w", roomID, err)
	}

	return nil
}

func (that *GameManager) LeaveRoom(roomID, token string) error {
	target, err := that.registry.Get(roomID)
	if err != nil {
		return err
	}

	if err = target.Leave(token); err != nil {
		return fmt.Errorf("room %s: %w", roomID, err)
	}

	that.registry.Release(roomID)

	return nil
}

// Disconnect reports a dropped connection. Unknown rooms are ignored.
func (that *GameManager) Disconnect(roomID, token string, peer room.Peer) {
	target, err := that.registry.Get(roomID)
	if err != nil {
		return
	}

	target.Disconnect(token, peer)
	that.registry.Release(roomID)
}

func (that *GameManager) Reconnect(roomID, token string, peer room.Peer) (*Seat, error) {
	target, err := that.registry.Get(roomID)
	if err != nil {
		return nil, err
	}

	if err = target.Reconnect(token, peer); err != nil {
		return nil, fmt.Errorf("room %s: %w", roomID, err)
	}

	return &Seat{RoomID: roomID, Token: token}, nil
}

// IsActive reports whether the room exists and its game has not finished.
func (that *GameManager) IsActive(roomID string) bool {
	target, err := that.registry.Get(roomID)
	if err != nil {
		return false
	}

	return target.Status() != room.StatusFinished
}

func (that *GameManager) GetResult(ctx context.Context, roomID string) (*entity.GameResult, error) {
	result, err := that.resultRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	return result, nil
}

func (that *GameManager) Rooms() int {
	return that.registry.Len()
}
