package room

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/benbjohnson/clock"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

const (
	roomIDBytes   = 3
	maxIDAttempts = 16
)

// IDFunc produces candidate room ids.
type IDFunc func() (string, error)

// RandomID returns six lowercase hex characters.
func RandomID() (string, error) {
	buf := make([]byte, roomIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// Registry maps room ids to live rooms. An id is never handed out twice while its room is registered.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	clock      clock.Clock
	config     Config
	logger     *slog.Logger
	roomLogger *slog.Logger
	onFinish   FinishFunc
	newID      IDFunc
}

func NewRegistry(clk clock.Clock, config Config, logger *slog.Logger, onFinish FinishFunc) *Registry {
	return &Registry{
		rooms:      make(map[string]*Room),
		clock:      clk,
		config:     config,
		logger:     logger.With("component", "room_registry"),
		roomLogger: logger.With("component", "room"),
		onFinish:   onFinish,
		newID:      RandomID,
	}
}

// WithIDFunc replaces the id generator.
func (that *Registry) WithIDFunc(fn IDFunc) *Registry {
	that.newID = fn
	return that
}

// Create registers a new waiting room for peer.
func (that *Registry) Create(peer Peer) (*Room, *entity.Player, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	for range maxIDAttempts {
		id, err := that.newID()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to generate room id: %w", err)
		}

		if _, exists := that.rooms[id]; exists {
			continue
		}

		room, player := New(id, peer, that.clock, that.config, that.roomLogger, that.onFinish)
		that.rooms[id] = room

		return room, player, nil
	}

	return nil, nil, fmt.Errorf("failed to allocate a free room id after %d attempts", maxIDAttempts)
}

func (that *Registry) Get(id string) (*Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room, ok := that.rooms[id]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", id, apperror.ErrRoomNotFound)
	}

	return room, nil
}

// Remove unregisters the room and cancels its timers. A game still running is dropped without a result.
func (that *Registry) Remove(id string) bool {
	that.mu.RLock()
	room, ok := that.rooms[id]
	that.mu.RUnlock()

	if !ok {
		return false
	}

	return that.remove(id, room)
}

// Release removes the room if it is discarded or both players left after the game ended.
func (that *Registry) Release(id string) bool {
	room, err := that.Get(id)
	if err != nil || !room.Released() {
		return false
	}

	if !that.remove(id, room) {
		return false
	}

	that.logger.Debug("room released", "room_id", id)

	return true
}

// Sweep evicts every reclaimable room and returns how many were removed.
func (that *Registry) Sweep() int {
	now := that.clock.Now()

	that.mu.RLock()
	candidates := make(map[string]*Room)
	for id, room := range that.rooms {
		candidates[id] = room
	}
	that.mu.RUnlock()

	evicted := 0
	for id, room := range candidates {
		if room.Reclaimable(now) && that.remove(id, room) {
			evicted++
		}
	}

	if evicted > 0 {
		that.logger.Info("evicted rooms", "count", evicted, "remaining", that.Len())
	}

	return evicted
}

// remove deletes id only while it still maps to room, so a reused id is never evicted by mistake.
func (that *Registry) remove(id string, room *Room) bool {
	that.mu.Lock()
	if that.rooms[id] != room {
		that.mu.Unlock()
		return false
	}

	delete(that.rooms, id)
	that.mu.Unlock()

	room.Close()

	return true
}

// Run sweeps on every interval until ctx is done, then stops all rooms.
func (that *Registry) Run(ctx context.Context) {
	ticker := that.clock.Ticker(that.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			that.Stop()
			return
		case <-ticker.C:
			that.Sweep()
		}
	}
}

// Stop removes every room and cancels its timers.
func (that *Registry) Stop() {
	that.mu.Lock()
	rooms := that.rooms
	that.rooms = make(map[string]*Room)
	that.mu.Unlock()

	for _, room := range rooms {
		room.Close()
	}
}

func (that *Registry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.rooms)
}
