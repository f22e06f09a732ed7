/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"sync"
)

// connection is the relay's view of a socket: an id and a bounded send queue.
type connection interface {
	ID() string
	// Queue returns false when the connection cannot keep up.
	Queue(frame []byte) bool
	Close()
}

type peer struct {
	conn    connection
	room    string // empty until the first join
	dropped bool
}

type inbound struct {
	from connection
	env  Envelope
}

// Stats is a point-in-time view of the registry.
type Stats struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
	Members     int `json:"members"`
}

// Relay owns every room and presence record. All mutation happens on the
// goroutine running Run, so the registry itself is unlocked.
type Relay struct {
	cfg *Config

	rooms map[string]*Room
	peers map[string]*peer

	register   chan connection
	unregister chan connection
	inbound    chan inbound
	done       chan struct{}

	// peers whose queue overflowed while handling the current event
	slow []*peer

	newRoomID func() string
	metrics   *relayMetrics

	mu    sync.RWMutex
	stats Stats
}

type handlerFunc func(*Relay, *peer, json.RawMessage)

var handlers = map[string]handlerFunc{
	eventJoin:      (*Relay).handleJoin,
	eventUserMoved: (*Relay).handleMove,
	eventChat:      (*Relay).handleChat,
}

func newRelay(cfg *Config, metrics *relayMetrics) *Relay {
	return &Relay{
		cfg:        cfg,
		rooms:      make(map[string]*Room),
		peers:      make(map[string]*peer),
		register:   make(chan connection),
		unregister: make(chan connection),
		inbound:    make(chan inbound),
		done:       make(chan struct{}),
		newRoomID:  newRoomID,
		metrics:    metrics,
	}
}

// Run processes events one at a time until ctx is cancelled, then closes
// every remaining connection.
func (r *Relay) Run(ctx context.Context) {
	defer close(r.done)

	for {
		select {
		case c := <-r.register:
			r.connect(c)
		case c := <-r.unregister:
			r.disconnect(c.ID())
		case in := <-r.inbound:
			r.receive(in.from, in.env)
		case <-ctx.Done():
			r.closeAll()

			return
		}
	}
}

// Register, Unregister and Submit hand events to Run. Each returns false
// once Run has exited.
func (r *Relay) Register(c connection) bool {
	select {
	case r.register <- c:
		return true
	case <-r.done:
		return false
	}
}

func (r *Relay) Unregister(c connection) bool {
	select {
	case r.unregister <- c:
		return true
	case <-r.done:
		return false
	}
}

func (r *Relay) Submit(c connection, env Envelope) bool {
	select {
	case r.inbound <- inbound{from: c, env: env}:
		return true
	case <-r.done:
		return false
	}
}

func (r *Relay) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.stats
}

func (r *Relay) connect(c connection) {
	p := &peer{conn: c}
	r.peers[c.ID()] = p

	logf(r.cfg, "ROOMS: Connection %s opened", c.ID())

	r.send(p, eventConnected, ConnectedMessage{ID: c.ID()})

	r.settle()
}

func (r *Relay) disconnect(id string) {
	p, ok := r.peers[id]
	if !ok {
		return
	}

	r.leave(p)
	delete(r.peers, id)
	p.conn.Close()

	logf(r.cfg, "ROOMS: Connection %s closed", id)

	r.settle()
}

func (r *Relay) receive(c connection, env Envelope) {
	if r.metrics != nil {
		r.metrics.countEvent(env.Event)
	}

	p, ok := r.peers[c.ID()]
	if !ok {
		return
	}

	h, ok := handlers[env.Event]
	if !ok {
		logf(r.cfg, "ROOMS: Ignoring unknown event %q from %s", env.Event, c.ID())

		return
	}

	h(r, p, env.Data)

	r.settle()
}

func (r *Relay) handleJoin(p *peer, data json.RawMessage) {
	var req JoinRequest
	if err := json.Unmarshal(data, &req); err != nil {
		logf(r.cfg, "ROOMS: Malformed join from %s: %v", p.conn.ID(), err)

		return
	}

	id := p.conn.ID()

	roomID := req.RoomID
	if roomID == "" {
		roomID = r.newRoomID()
	}

	// A connection lives in one room at a time.
	if p.room != "" && p.room != roomID {
		r.leave(p)
	}

	room, ok := r.rooms[roomID]
	if !ok {
		room = newRoom(roomID)
		r.rooms[roomID] = room

		logf(r.cfg, "ROOMS: Room %s created", roomID)
	}

	presence := &Presence{
		ID:       id,
		Name:     req.Name,
		Icon:     req.Icon,
		Position: req.Position,
	}
	room.members[id] = presence
	p.room = roomID

	logf(r.cfg, "ROOMS: %s (%s) joined room %s", id, req.Name, roomID)

	r.send(p, eventJoinedRoom, JoinedRoomMessage{
		RoomID: roomID,
		Users:  room.snapshot(),
	})

	r.broadcast(room, id, eventUserJoined, *presence)
}

func (r *Relay) handleMove(p *peer, data json.RawMessage) {
	room, presence := r.membership(p)
	if presence == nil {
		return
	}

	if len(data) == 0 || string(data) == "null" {
		return
	}

	presence.Position = data

	r.broadcast(room, presence.ID, eventUserMoved, UserMovedMessage{
		ID:       presence.ID,
		Position: data,
	})
}

// handleChat echoes the payload to the whole room, sender included.
func (r *Relay) handleChat(p *peer, data json.RawMessage) {
	room, presence := r.membership(p)
	if presence == nil {
		return
	}

	if len(data) == 0 {
		return
	}

	r.broadcast(room, "", eventChat, data)
}

func (r *Relay) membership(p *peer) (*Room, *Presence) {
	if p.room == "" {
		return nil, nil
	}

	room, ok := r.rooms[p.room]
	if !ok {
		return nil, nil
	}

	return room, room.members[p.conn.ID()]
}

// leave removes p from its room, announcing the departure to whoever is
// left and deleting the room once nobody is.
func (r *Relay) leave(p *peer) {
	room, presence := r.membership(p)
	p.room = ""

	if presence == nil {
		return
	}

	delete(room.members, presence.ID)

	if room.empty() {
		delete(r.rooms, room.ID)

		logf(r.cfg, "ROOMS: Room %s deleted", room.ID)

		return
	}

	r.broadcast(room, presence.ID, eventUserDisconnected, presence.ID)
}

func (r *Relay) send(p *peer, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		logf(r.cfg, "ERROR: Encoding %q: %v", event, err)

		return
	}

	r.queue(p, frame)
}

// broadcast sends one frame to every member of room except the one with
// id exclude.
func (r *Relay) broadcast(room *Room, exclude, event string, data any) {
	frame, err := encode(event, data)
	if err != nil {
		logf(r.cfg, "ERROR: Encoding %q: %v", event, err)

		return
	}

	for id := range room.members {
		if id == exclude {
			continue
		}

		if p, ok := r.peers[id]; ok {
			r.queue(p, frame)
		}
	}
}

func (r *Relay) queue(p *peer, frame []byte) {
	if p.dropped {
		return
	}

	if !p.conn.Queue(frame) {
		p.dropped = true
		r.slow = append(r.slow, p)
	}
}

// settle disconnects peers that fell behind during the last event, then
// publishes fresh stats.
func (r *Relay) settle() {
	for len(r.slow) > 0 {
		p := r.slow[0]
		r.slow = r.slow[1:]

		logf(r.cfg, "ROOMS: Dropping slow connection %s", p.conn.ID())

		if r.metrics != nil {
			r.metrics.dropped.Inc()
		}

		if _, ok := r.peers[p.conn.ID()]; !ok {
			continue
		}

		r.leave(p)
		delete(r.peers, p.conn.ID())
		p.conn.Close()
	}

	members := 0
	for _, room := range r.rooms {
		members += len(room.members)
	}

	s := Stats{
		Rooms:       len(r.rooms),
		Connections: len(r.peers),
		Members:     members,
	}

	r.mu.Lock()
	r.stats = s
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.observe(s)
	}
}

func (r *Relay) closeAll() {
	for id, p := range r.peers {
		p.conn.Close()
		delete(r.peers, id)
	}

	clear(r.rooms)
	r.slow = nil

	r.settle()

	logf(r.cfg, "ROOMS: Relay stopped")
}
