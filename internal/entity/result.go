package entity

import "time"

const (
	ReasonFiveInARow        = "five_in_a_row"
	ReasonBoardFull         = "board_full"
	ReasonTimeout           = "timeout"
	ReasonOpponentLeft      = "opponent_left"
	ReasonDisconnectTimeout = "disconnect_timeout"
	ReasonAbandoned         = "abandoned"
)

// GameResult is the final record of a finished room.
type GameResult struct {
	RoomID     string    `json:"room_id"`
	Winner     Color     `json:"winner,omitempty"`
	Reason     string    `json:"reason"`
	MoveCount  int       `json:"move_count"`
	FinishedAt time.Time `json:"finished_at"`
}

func (that *GameResult) IsDraw() bool {
	return that.Winner == ColorNone
}
