/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
)

// Events sent by clients
const (
	eventJoin      = "join"
	eventUserMoved = "user moved"
	eventChat      = "chat message"
)

// Events sent by the server
const (
	eventConnected        = "connected"
	eventJoinedRoom       = "joined room"
	eventUserJoined       = "user joined"
	eventUserDisconnected = "user disconnected"
)

// Envelope is the shape of every websocket frame, in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Presence is what room peers can see of a connection. Name, icon and
// position belong to the client and are relayed exactly as received.
type Presence struct {
	ID       string          `json:"id"`
	Name     json.RawMessage `json:"name,omitempty"`
	Icon     json.RawMessage `json:"icon,omitempty"`
	Position json.RawMessage `json:"position,omitempty"`
}

// JoinRequest is the payload of a "join" event.
type JoinRequest struct {
	Name     json.RawMessage `json:"name,omitempty"`
	Icon     json.RawMessage `json:"icon,omitempty"`
	Position json.RawMessage `json:"position,omitempty"`
	RoomID   string          `json:"roomId,omitempty"`
}

type ConnectedMessage struct {
	ID string `json:"id"`
}

// JoinedRoomMessage is sent only to the joining connection.
type JoinedRoomMessage struct {
	RoomID string              `json:"roomId"`
	Users  map[string]Presence `json:"users"`
}

type UserMovedMessage struct {
	ID       string          `json:"id"`
	Position json.RawMessage `json:"position"`
}

// encode wraps data in an Envelope for the given event. Raw payloads are
// embedded as-is.
func encode(event string, data any) ([]byte, error) {
	var raw json.RawMessage

	switch d := data.(type) {
	case json.RawMessage:
		raw = d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	return json.Marshal(Envelope{Event: event, Data: raw})
}

func decode(frame []byte) (Envelope, error) {
	var env Envelope

	err := json.Unmarshal(frame, &env)

	return env, err
}
