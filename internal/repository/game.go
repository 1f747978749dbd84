package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

var ErrGameNotFound = errors.New("game not found")

type GameRepository interface {
	Save(ctx context.Context, result *entity.GameResult, ttl time.Duration) error
	GetByID(ctx context.Context, roomID string) (*entity.GameResult, error)
	DeleteByID(ctx context.Context, roomID string) error
}

type dbGame struct {
	client *redis.Client
}

func NewGameRepository(client *redis.Client) GameRepository {
	return &dbGame{
		client: client,
	}
}

func gameKey(roomID string) string {
	return "game:" + roomID
}

// Save stores a finished game. A zero ttl keeps it forever.
func (that *dbGame) Save(ctx context.Context, result *entity.GameResult, ttl time.Duration) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("could not marshal game result: %w", err)
	}

	if err = that.client.Set(ctx, gameKey(result.RoomID), resultJSON, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set game result: %w", err)
	}

	return nil
}

func (that *dbGame) GetByID(ctx context.Context, roomID string) (*entity.GameResult, error) {
	response, err := that.client.Get(ctx, gameKey(roomID)).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrGameNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game result by id: %w", err)
	}

	var result entity.GameResult
	if err = json.Unmarshal([]byte(response), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game result: %w", err)
	}

	return &result, nil
}

func (that *dbGame) DeleteByID(ctx context.Context, roomID string) error {
	deleted, err := that.client.Del(ctx, gameKey(roomID)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete game result by id: %w", err)
	}

	if deleted == 0 {
		return ErrGameNotFound
	}

	return nil
}
