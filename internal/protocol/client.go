package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
)

const (
	TypeCreateRoom = "create_room"
	TypeJoinRoom   = "join_room"
	TypePlaceStone = "place_stone"
	TypeLeaveRoom  = "leave_room"
	TypeReconnect  = "reconnect"
)

// ClientMessage is one of CreateRoom, JoinRoom, PlaceStone, LeaveRoom or Reconnect.
type ClientMessage interface {
	clientMessage()
}

type CreateRoom struct{}

type JoinRoom struct {
	RoomID string
}

type PlaceStone struct {
	Row int
	Col int
}

type LeaveRoom struct{}

type Reconnect struct {
	RoomID      string
	PlayerToken string
}

func (CreateRoom) clientMessage() {}
func (JoinRoom) clientMessage()   {}
func (PlaceStone) clientMessage() {}
func (LeaveRoom) clientMessage()  {}
func (Reconnect) clientMessage()  {}

type envelope struct {
	Type string `json:"type"`
}

type joinRoomPayload struct {
	RoomID *string `json:"room_id"`
}

type placeStonePayload struct {
	Row *int `json:"row"`
	Col *int `json:"col"`
}

type reconnectPayload struct {
	RoomID      *string `json:"room_id"`
	PlayerToken *string `json:"player_token"`
}

// Decode parses one inbound text frame.
func Decode(data []byte) (ClientMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedMessage, err)
	}

	switch env.Type {
	case TypeCreateRoom:
		return CreateRoom{}, nil

	case TypeLeaveRoom:
		return LeaveRoom{}, nil

	case TypeJoinRoom:
		var payload joinRoomPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedMessage, err)
		}

		if payload.RoomID == nil || *payload.RoomID == "" {
			return nil, fmt.Errorf("%w: room_id is required", apperror.ErrMalformedMessage)
		}

		return JoinRoom{RoomID: *payload.RoomID}, nil

	case TypePlaceStone:
		var payload placeStonePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedMessage, err)
		}

		if payload.Row == nil || payload.Col == nil {
			return nil, fmt.Errorf("%w: row and col are required", apperror.ErrMalformedMessage)
		}

		return PlaceStone{Row: *payload.Row, Col: *payload.Col}, nil

	case TypeReconnect:
		var payload reconnectPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, fmt.Errorf("%w: %w", apperror.ErrMalformedMessage, err)
		}

		if payload.RoomID == nil || payload.PlayerToken == nil {
			return nil, fmt.Errorf("%w: room_id and player_token are required", apperror.ErrMalformedMessage)
		}

		return Reconnect{RoomID: *payload.RoomID, PlayerToken: *payload.PlayerToken}, nil

	default:
		return nil, fmt.Errorf("%w: %q", apperror.ErrUnknownMessage, env.Type)
	}
}
