/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const writeWait = 10 * time.Second

// Client is one websocket connection. Frames queued by the relay are
// written by writePump; readPump feeds inbound events to the relay.
type Client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func newClient(conn *websocket.Conn, buffer int) *Client {
	return &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, buffer),
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) Queue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// Close stops writePump, which closes the socket after sending a close frame.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func (c *Client) readPump(cfg *Config, relay *Relay) {
	defer func() {
		relay.Unregister(c)
		_ = c.conn.Close()
	}()

	pongWait := cfg.pingInterval * 10 / 9

	c.conn.SetReadLimit(cfg.maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				logf(cfg, "ERROR: Reading from %s: %v", c.id, err)
			}

			return
		}

		env, err := decode(frame)
		if err != nil {
			logf(cfg, "ROOMS: Dropping malformed frame from %s: %v", c.id, err)

			continue
		}

		if !relay.Submit(c, env) {
			return
		}
	}
}

func (c *Client) writePump(cfg *Config) {
	ticker := time.NewTicker(cfg.pingInterval)

	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))

				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func newUpgrader(cfg *Config) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(cfg.allowedOrigins) == 0 {
				return true
			}

			return slices.Contains(cfg.allowedOrigins, r.Header.Get("Origin"))
		},
	}
}

func serveWS(cfg *Config, relay *Relay) httprouter.Handle {
	upgrader := newUpgrader(cfg)

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Upgrading connection from %s: %v", realIP(r), err)

			return
		}

		client := newClient(conn, cfg.sendBuffer)

		if !relay.Register(client) {
			_ = conn.Close()

			return
		}

		logf(cfg, "SERVE: Websocket %s to %s", client.id, realIP(r))

		go client.writePump(cfg)
		client.readPump(cfg, relay)
	}
}
