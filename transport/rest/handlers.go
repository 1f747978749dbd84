package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
	"github.com/rocketscienceinc/gomoku-backend/internal/repository"
)

type resultService interface {
	GetResult(ctx context.Context, roomID string) (*entity.GameResult, error)
}

type gameResultResponse struct {
	RoomID     string        `json:"room_id"`
	Winner     *entity.Color `json:"winner"`
	Reason     string        `json:"reason"`
	MoveCount  int           `json:"move_count"`
	FinishedAt time.Time     `json:"finished_at"`
}

type gameHandler struct {
	logger        *slog.Logger
	resultService resultService
}

// getGame serves the archived result of a finished game.
func (that *gameHandler) getGame(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	log := that.logger.With("method", "getGame", "room_id", roomID)

	result, err := that.resultService.GetResult(r.Context(), roomID)
	if errors.Is(err, repository.ErrGameNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "game not found"})
		return
	}

	if err != nil {
		log.Error("failed to get game result", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	response := gameResultResponse{
		RoomID:     result.RoomID,
		Reason:     result.Reason,
		MoveCount:  result.MoveCount,
		FinishedAt: result.FinishedAt,
	}
	if !result.IsDraw() {
		response.Winner = &result.Winner
	}

	writeJSON(w, http.StatusOK, response)
}
