/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"github.com/google/uuid"
)

// Room is a named group of connections that see each other's presence
// and chat. It only exists while it has at least one member.
type Room struct {
	ID      string
	members map[string]*Presence
}

func newRoom(id string) *Room {
	return &Room{
		ID:      id,
		members: make(map[string]*Presence),
	}
}

func newRoomID() string {
	return uuid.NewString()
}

func (r *Room) empty() bool {
	return len(r.members) == 0
}

// snapshot copies every presence record, keyed by connection id.
func (r *Room) snapshot() map[string]Presence {
	users := make(map[string]Presence, len(r.members))
	for id, p := range r.members {
		users[id] = *p
	}

	return users
}
