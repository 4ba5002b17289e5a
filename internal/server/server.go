package server

import (
	"context"

	"github.com/npezzotti/staffchat/internal/presence"
	"github.com/npezzotti/staffchat/internal/stats"
	"github.com/rs/zerolog"
)

type groupReq struct {
	client    *Client
	group     string
	subscribe bool
}

// publishReq delivers event to the members of group, or to every connection
// when all is set. skip is never delivered to.
type publishReq struct {
	group string
	all   bool
	event *ServerEvent
	skip  *Client
}

type stopReq struct {
	done chan struct{}
}

// ChatServer is the hub. Its Run goroutine exclusively owns the connection
// set and group membership.
type ChatServer struct {
	log            zerolog.Logger
	deps           Deps
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	groups         map[string]map[*Client]struct{}
	registerChan   chan *Client
	deregisterChan chan *Client
	groupChan      chan groupReq
	publishChan    chan *publishReq
	stop           chan stopReq
	done           chan struct{}
}

func NewChatServer(logger zerolog.Logger, svc ChatService, registry presence.Registry, su stats.StatsProvider) *ChatServer {
	stats.RegisterAll(su, stats.GatewayCounters...)

	logger = logger.With().Str("component", "gateway").Logger()
	return &ChatServer{
		log: logger,
		deps: Deps{
			Chat:     svc,
			Presence: registry,
			Log:      logger,
		},
		stats:          su,
		clients:        make(map[*Client]struct{}),
		groups:         make(map[string]map[*Client]struct{}),
		registerChan:   make(chan *Client),
		deregisterChan: make(chan *Client),
		groupChan:      make(chan groupReq),
		publishChan:    make(chan *publishReq),
		stop:           make(chan stopReq),
		done:           make(chan struct{}),
	}
}

func (cs *ChatServer) Run() {
	for {
		select {
		case c := <-cs.registerChan:
			cs.addClient(c)
		case c := <-cs.deregisterChan:
			cs.removeClient(c)
		case req := <-cs.groupChan:
			if req.subscribe {
				cs.addToGroup(req.client, req.group)
			} else {
				cs.removeFromGroup(req.client, req.group)
			}
		case req := <-cs.publishChan:
			cs.handlePublish(req)
		case req := <-cs.stop:
			cs.log.Info().Int("clients", len(cs.clients)).Msg("closing connections")
			for c := range cs.clients {
				c.stopClient()
				cs.removeClient(c)
			}

			close(cs.done)
			close(req.done)
			return
		}
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clients[c] = struct{}{}
	cs.stats.Incr(stats.TotalConnections)
	cs.stats.Incr(stats.ActiveConnections)
	cs.log.Debug().Str("connection_id", c.id).Msg("connection registered")
}

func (cs *ChatServer) removeClient(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	for group := range cs.groups {
		cs.removeFromGroup(c, group)
	}
	cs.stats.Decr(stats.ActiveConnections)
	cs.log.Debug().Str("connection_id", c.id).Msg("connection removed")
}

func (cs *ChatServer) addToGroup(c *Client, group string) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	members, ok := cs.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		cs.groups[group] = members
	}
	members[c] = struct{}{}
}

func (cs *ChatServer) removeFromGroup(c *Client, group string) {
	members, ok := cs.groups[group]
	if !ok {
		return
	}

	delete(members, c)
	if len(members) == 0 {
		delete(cs.groups, group)
	}
}

func (cs *ChatServer) handlePublish(req *publishReq) {
	targets := cs.clients
	if !req.all {
		targets = cs.groups[req.group]
	}

	for c := range targets {
		if c == req.skip {
			continue
		}
		c.queueMessage(req.event)
	}
}

// The methods below are called from client goroutines. They give up once
// the hub has stopped.

func (cs *ChatServer) register(c *Client) bool {
	select {
	case cs.registerChan <- c:
		return true
	case <-cs.done:
		return false
	}
}

func (cs *ChatServer) deregister(c *Client) {
	select {
	case cs.deregisterChan <- c:
	case <-cs.done:
	}
}

func (cs *ChatServer) changeGroup(c *Client, group string, subscribe bool) {
	select {
	case cs.groupChan <- groupReq{client: c, group: group, subscribe: subscribe}:
	case <-cs.done:
	}
}

func (cs *ChatServer) publish(req *publishReq) {
	select {
	case cs.publishChan <- req:
	case <-cs.done:
	}
}

// Shutdown stops the hub and closes every connection.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Info().Msg("shutting down chat server")
	req := stopReq{done: make(chan struct{})}

	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
