package websocket

import (
	"errors"
	"log/slog"

	"github.com/rocketscienceinc/gomoku-backend/internal/apperror"
	"github.com/rocketscienceinc/gomoku-backend/internal/protocol"
	"github.com/rocketscienceinc/gomoku-backend/internal/room"
	"github.com/rocketscienceinc/gomoku-backend/internal/usecase"
)

const internalErrorMessage = "internal error"

type gameManager interface {
	CreateRoom(peer room.Peer) (*usecase.Seat, error)
	JoinRoom(roomID string, peer room.Peer) (*usecase.Seat, error)
	PlaceStone(roomID, token string, row, col int) error
	LeaveRoom(roomID, token string) error
	Disconnect(roomID, token string, peer room.Peer)
	Reconnect(roomID, token string, peer room.Peer) (*usecase.Seat, error)
	IsActive(roomID string) bool
}

// clientErrors are the failures a client is told about by name, in match order.
var clientErrors = []error{
	apperror.ErrInvalidMove,
	apperror.ErrNotYourTurn,
	apperror.ErrRoomNotFound,
	apperror.ErrRoomFull,
	apperror.ErrInvalidToken,
	apperror.ErrNotInRoom,
	apperror.ErrAlreadyInRoom,
	apperror.ErrReconnectExpired,
	apperror.ErrGameFinished,
	apperror.ErrGameIsNotStarted,
	apperror.ErrUnknownMessage,
	apperror.ErrMalformedMessage,
}

// Router turns decoded client messages into game manager calls. Rule violations go back to the
// acting session as an error message; everything else is sent by the rooms themselves.
type Router struct {
	logger  *slog.Logger
	manager gameManager
}

func NewRouter(logger *slog.Logger, manager gameManager) *Router {
	return &Router{
		logger:  logger.With("component", "router"),
		manager: manager,
	}
}

// Handle decodes one frame and routes it.
func (that *Router) Handle(session *Session, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		that.reply(session, err)
		return
	}

	that.Route(session, msg)
}

func (that *Router) Route(session *Session, msg protocol.ClientMessage) {
	var err error

	switch msg := msg.(type) {
	case protocol.CreateRoom:
		err = that.createRoom(session)
	case protocol.JoinRoom:
		err = that.joinRoom(session, msg)
	case protocol.PlaceStone:
		err = that.placeStone(session, msg)
	case protocol.LeaveRoom:
		err = that.leaveRoom(session)
	case protocol.Reconnect:
		err = that.reconnect(session, msg)
	default:
		err = apperror.ErrUnknownMessage
	}

	if err != nil {
		that.reply(session, err)
	}
}

// Disconnect is called once the session's read loop has ended.
func (that *Router) Disconnect(session *Session) {
	if !session.inRoom() {
		return
	}

	that.manager.Disconnect(session.roomID, session.token, session)
	session.vacate()
}

func (that *Router) createRoom(session *Session) error {
	if err := that.release(session); err != nil {
		return err
	}

	seat, err := that.manager.CreateRoom(session)
	if err != nil {
		return err
	}

	session.seat(seat.RoomID, seat.Token)

	return nil
}

func (that *Router) joinRoom(session *Session, msg protocol.JoinRoom) error {
	if err := that.release(session); err != nil {
		return err
	}

	seat, err := that.manager.JoinRoom(msg.RoomID, session)
	if err != nil {
		return err
	}

	session.seat(seat.RoomID, seat.Token)

	return nil
}

func (that *Router) placeStone(session *Session, msg protocol.PlaceStone) error {
	if !session.inRoom() {
		return apperror.ErrNotInRoom
	}

	return that.manager.PlaceStone(session.roomID, session.token, msg.Row, msg.Col)
}

func (that *Router) leaveRoom(session *Session) error {
	if !session.inRoom() {
		return apperror.ErrNotInRoom
	}

	err := that.manager.LeaveRoom(session.roomID, session.token)
	session.vacate()

	if errors.Is(err, apperror.ErrRoomNotFound) {
		return nil
	}

	return err
}

func (that *Router) reconnect(session *Session, msg protocol.Reconnect) error {
	if err := that.release(session); err != nil {
		return err
	}

	seat, err := that.manager.Reconnect(msg.RoomID, msg.PlayerToken, session)
	if err != nil {
		return err
	}

	session.seat(seat.RoomID, seat.Token)

	return nil
}

// release frees the session for a new room. A session still playing an unfinished game must
// leave it first.
func (that *Router) release(session *Session) error {
	if !session.inRoom() {
		return nil
	}

	if that.manager.IsActive(session.roomID) {
		return apperror.ErrAlreadyInRoom
	}

	_ = that.manager.LeaveRoom(session.roomID, session.token)
	session.vacate()

	return nil
}

func (that *Router) reply(session *Session, err error) {
	session.Send(protocol.Error{Message: clientMessage(err)})

	if isClientError(err) {
		that.logger.Debug("rejected client message", "room_id", session.roomID, "error", err)
		return
	}

	that.logger.Error("failed to handle client message", "room_id", session.roomID, "error", err)
}

func isClientError(err error) bool {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			return true
		}
	}

	return false
}

// clientMessage hides wrapping details and internal failures from clients.
func clientMessage(err error) string {
	for _, known := range clientErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	return internalErrorMessage
}
