package apperror

import "errors"

var (
	ErrInvalidMove      = errors.New("invalid move")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrInvalidToken     = errors.New("invalid player token")
	ErrNotInRoom        = errors.New("not in a room")
	ErrAlreadyInRoom    = errors.New("already in a room")
	ErrReconnectExpired = errors.New("reconnect window has expired")
	ErrGameFinished     = errors.New("game is already finished")
	ErrGameIsNotStarted = errors.New("game is not started")
	ErrUnknownMessage   = errors.New("unknown message type")
	ErrMalformedMessage = errors.New("malformed message")
)
