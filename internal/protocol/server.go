package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/entity"
)

// ServerMessage is an outbound event. The set of implementations is closed to this package.
type ServerMessage interface {
	MessageType() string
	serverMessage()
}

type RoomCreated struct {
	RoomID      string       `json:"room_id"`
	PlayerToken string       `json:"player_token"`
	Color       entity.Color `json:"color"`
}

type PlayerJoined struct {
	Color entity.Color `json:"color"`
}

type GameStarted struct {
	YourColor entity.Color `json:"your_color"`
}

// StonePlaced carries a nil NextTurn when the move ended the game.
type StonePlaced struct {
	Row      int           `json:"row"`
	Col      int           `json:"col"`
	Color    entity.Color  `json:"color"`
	NextTurn *entity.Color `json:"next_turn"`
}

// GameOver carries a nil Winner for a draw or an abandoned game.
type GameOver struct {
	Winner *entity.Color `json:"winner"`
	Reason string        `json:"reason"`
}

// StateSync is the full snapshot sent to a player who reconnected. Empty cells are null.
type StateSync struct {
	Board          [][]*entity.Color `json:"board"`
	CurrentTurn    entity.Color      `json:"current_turn"`
	MoveCount      int               `json:"move_count"`
	YourColor      entity.Color      `json:"your_color"`
	TimerRemaining float64           `json:"timer_remaining"`
}

// TurnTimer reports the whole seconds left for the current move.
type TurnTimer struct {
	Remaining int `json:"remaining"`
}

type OpponentDisconnected struct{}

type OpponentReconnected struct{}

type Error struct {
	Message string `json:"message"`
}

func (RoomCreated) MessageType() string          { return "room_created" }
func (PlayerJoined) MessageType() string         { return "player_joined" }
func (GameStarted) MessageType() string          { return "game_started" }
func (StonePlaced) MessageType() string          { return "stone_placed" }
func (GameOver) MessageType() string             { return "game_over" }
func (StateSync) MessageType() string            { return "state_sync" }
func (TurnTimer) MessageType() string            { return "turn_timer" }
func (OpponentDisconnected) MessageType() string { return "opponent_disconnected" }
func (OpponentReconnected) MessageType() string  { return "opponent_reconnected" }
func (Error) MessageType() string                { return "error" }

func (RoomCreated) serverMessage()          {}
func (PlayerJoined) serverMessage()         {}
func (GameStarted) serverMessage()          {}
func (StonePlaced) serverMessage()          {}
func (GameOver) serverMessage()             {}
func (StateSync) serverMessage()            {}
func (TurnTimer) serverMessage()            {}
func (OpponentDisconnected) serverMessage() {}
func (OpponentReconnected) serverMessage()  {}
func (Error) serverMessage()                {}

// NewGameOver builds a game_over event; ColorNone becomes a null winner.
func NewGameOver(winner entity.Color, reason string) GameOver {
	msg := GameOver{Reason: reason}
	if winner != entity.ColorNone {
		msg.Winner = &winner
	}

	return msg
}

// NewStonePlaced builds a stone_placed event; ColorNone becomes a null next_turn.
func NewStonePlaced(row, col int, color, next entity.Color) StonePlaced {
	msg := StonePlaced{Row: row, Col: col, Color: color}
	if next != entity.ColorNone {
		msg.NextTurn = &next
	}

	return msg
}

// BoardRows converts a board snapshot into rows of nullable colours.
func BoardRows(cells [entity.BoardSize][entity.BoardSize]entity.Color) [][]*entity.Color {
	rows := make([][]*entity.Color, entity.BoardSize)
	for r := range cells {
		rows[r] = make([]*entity.Color, entity.BoardSize)
		for c := range cells[r] {
			if cells[r][c] != entity.ColorNone {
				color := cells[r][c]
				rows[r][c] = &color
			}
		}
	}

	return rows
}

// Encode renders msg as a flat JSON object whose first field is "type".
func Encode(msg ServerMessage) ([]byte, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", msg.MessageType(), err)
	}

	msgType, err := json.Marshal(msg.MessageType())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message type: %w", err)
	}

	var buf bytes.Buffer
	buf.Grow(len(body) + len(msgType) + 10)
	buf.WriteString(`{"type":`)
	buf.Write(msgType)

	fields := bytes.TrimSpace(body)
	fields = fields[1 : len(fields)-1]
	if len(bytes.TrimSpace(fields)) > 0 {
		buf.WriteByte(',')
		buf.Write(fields)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}
