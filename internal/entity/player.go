package entity

import "time"

// Player is a seat in a room. DisconnectDeadline is zero while the player is connected.
type Player struct {
	Token              string    `json:"-"`
	Color              Color     `json:"color"`
	DisconnectDeadline time.Time `json:"-"`
}

func (that *Player) IsDisconnected() bool {
	return !that.DisconnectDeadline.IsZero()
}
