package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/npezzotti/staffchat/internal/stats"
	"github.com/npezzotti/staffchat/internal/types"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	eventTimeout   = 10 * time.Second
)

// MaxMessageSize is the largest inbound frame a client may send.
const MaxMessageSize = 4096

// Client is one channel connection. state is owned by the Read goroutine.
type Client struct {
	id         string
	conn       *websocket.Conn
	chatServer *ChatServer
	log        zerolog.Logger
	state      ConnState
	send       chan *ServerEvent
	stop       chan struct{}
	stopOnce   sync.Once
}

func NewClient(identity types.Identity, conn *websocket.Conn, cs *ChatServer) *Client {
	id := uuid.NewString()
	return &Client{
		id:         id,
		conn:       conn,
		chatServer: cs,
		log: cs.log.With().
			Str("connection_id", id).
			Str("user_id", identity.UserId).
			Logger(),
		state: ConnState{
			ConnectionId: id,
			Identity:     identity,
		},
		send: make(chan *ServerEvent, 256),
		stop: make(chan struct{}),
	}
}

// Serve registers the connection with the hub and runs both pumps. It
// returns once the read pump exits.
func (c *Client) Serve() {
	if !c.chatServer.register(c) {
		c.conn.Close()
		return
	}

	go c.Write()
	c.Read()
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Debug().Msg("write exiting")
	}()

	for {
		select {
		case ev := <-c.send:
			bytes, err := serializeEvent(ev)
			if err != nil {
				c.log.Error().Err(err).Msg("serialize event")
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Debug().Msg("read exiting")
	}()

	c.connect()

	c.conn.SetReadLimit(MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("ws read")
			}
			return
		}

		c.handleRaw(raw)
	}
}

func (c *Client) connect() {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var effects []Effect
	c.state, effects = handleConnect(ctx, c.state, c.chatServer.deps)
	c.apply(effects)
	c.log.Info().Str("role", string(c.state.Identity.Role)).Msg("user connected")
}

func (c *Client) handleRaw(raw []byte) {
	ev, err := decodeEvent(raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("decode event")
		c.apply([]Effect{reply(ErrInvalidMessage())})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var effects []Effect
	c.state, effects = handleEvent(ctx, c.state, ev, c.chatServer.deps)
	c.apply(effects)
}

func (c *Client) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var effects []Effect
	c.state, effects = handleDisconnect(ctx, c.state, c.chatServer.deps)
	c.apply(effects)

	c.chatServer.deregister(c)
	c.stopClient()
	c.log.Info().Msg("user disconnected")
}

func (c *Client) apply(effects []Effect) {
	cs := c.chatServer
	for _, e := range effects {
		switch e.Kind {
		case EffectReply:
			if e.Event.Event == EventError {
				cs.stats.Incr(stats.EventErrors)
			}
			c.queueMessage(e.Event)
		case EffectPublish:
			if e.Event.Event == EventNewMessage {
				cs.stats.Incr(stats.MessagesSent)
			}
			req := &publishReq{group: e.Group, event: e.Event}
			if e.SkipSelf {
				req.skip = c
			}
			cs.publish(req)
		case EffectBroadcast:
			cs.publish(&publishReq{all: true, event: e.Event, skip: c})
		case EffectSubscribe:
			cs.changeGroup(c, e.Group, true)
		case EffectUnsubscribe:
			cs.changeGroup(c, e.Group, false)
		}
	}
}

func (c *Client) queueMessage(ev *ServerEvent) bool {
	select {
	case c.send <- ev:
	default:
		c.log.Warn().Str("event", ev.Event).Msg("send queue full, dropping event")
		return false
	}

	return true
}

func serializeEvent(ev *ServerEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Warn().Err(err).Msg("ws write")
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}
