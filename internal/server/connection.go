package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gravitas-games/orp/internal/network"
	"github.com/gravitas-games/orp/internal/protection"
	"github.com/gravitas-games/orp/pkg/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192

	sendBufferSize = 256
)

// Connection is a websocket link to one game host
type Connection struct {
	// WebSocket connection
	ws *websocket.Conn

	// Server reference
	server *Server

	// Host identity (token subject, or remote address without auth)
	hostID string

	// Buffered channel for outbound messages
	send chan []byte

	mu     sync.Mutex
	closed bool
	once   sync.Once

	// Serializes player registration against Close
	players sync.Mutex

	log zerolog.Logger
}

// NewConnection creates a new connection
func NewConnection(ws *websocket.Conn, server *Server, hostID string) *Connection {
	return &Connection{
		ws:     ws,
		server: server,
		hostID: hostID,
		send:   make(chan []byte, sendBufferSize),
		log:    server.log.With().Str("host_id", hostID).Logger(),
	}
}

// Handle manages the connection lifecycle
func (c *Connection) Handle() {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.writePump()
	c.readPump() // Blocking
}

// readPump pumps messages from the WebSocket connection to the engine
func (c *Connection) readPump() {
	defer c.Close()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Warn().Err(err).Msg("websocket read error")
			}
			break
		}

		var clientMsg network.ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			c.log.Warn().Err(err).Msg("failed to parse host message")
			c.SendError("invalid_message", "Failed to parse message")
			continue
		}

		c.handleMessage(&clientMsg)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Warn().Err(err).Msg("websocket write error")
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.server.ctx.Done():
			return
		}
	}
}

// handleMessage routes host messages to the engine
func (c *Connection) handleMessage(msg *network.ClientMessage) {
	switch msg.Type {
	case network.MsgTypePlayerConnected:
		c.handlePlayerConnected(msg.Payload)

	case network.MsgTypePlayerDisconnected:
		c.handlePlayerDisconnected(msg.Payload)

	case network.MsgTypeDamage:
		c.handleDamage(msg.Payload)

	case network.MsgTypeStatus:
		c.handleStatus(msg.Payload)

	case network.MsgTypePing:
		c.handlePing()

	default:
		c.log.Warn().Str("type", msg.Type).Msg("unknown message type")
		c.SendError("unknown_message_type", "Unknown message type")
	}
}

func (c *Connection) handlePlayerConnected(payload json.RawMessage) {
	var p network.PlayerConnectedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.SendError("invalid_player", "Invalid player_connected payload")
		return
	}

	player := &models.Player{
		ID:          p.PlayerID,
		Tribe:       p.TribeID,
		Name:        p.Name,
		HostID:      c.hostID,
		ConnectedAt: time.Now(),
	}

	c.players.Lock()
	defer c.players.Unlock()

	if c.isClosed() {
		c.log.Debug().Uint64("player_id", p.PlayerID).Msg("player connected on closed host ignored")
		return
	}

	// Register first so the connect notice can be routed back to this host.
	c.server.session.AddPlayer(player, c)
	c.server.engine.OnPlayerConnected(player)

	c.log.Info().Uint64("player_id", p.PlayerID).Int("tribe_id", p.TribeID).Msg("player connected")
}

func (c *Connection) handlePlayerDisconnected(payload json.RawMessage) {
	var p network.PlayerDisconnectedPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.SendError("invalid_player", "Invalid player_disconnected payload")
		return
	}

	c.server.session.RemovePlayer(p.PlayerID)
	// The tribe reported with the event wins over anything remembered.
	c.server.engine.OnPlayerDisconnected(&models.Player{ID: p.PlayerID, Tribe: p.TribeID})

	c.log.Info().Uint64("player_id", p.PlayerID).Int("tribe_id", p.TribeID).Msg("player disconnected")
}

func (c *Connection) handleDamage(payload json.RawMessage) {
	var p network.DamagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.SendError("invalid_damage", "Invalid damage payload")
		return
	}

	damage := p.Damage
	if p.Victim != nil {
		victim := targetFromPayload(p.Victim)

		var attacker protection.Player
		if p.Attacker != nil {
			attacker = &models.Player{ID: p.Attacker.PlayerID, Tribe: p.Attacker.TribeID}
		}

		damage = c.server.engine.ApplyOutgoingDamage(damage, victim, attacker)
		damage = c.server.engine.ApplyIncomingDamage(damage, victim)
	}

	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeDamageResult,
		Payload: network.DamageResultPayload{
			RequestID: p.RequestID,
			Damage:    damage,
		},
	})
}

func (c *Connection) handleStatus(payload json.RawMessage) {
	var p network.StatusPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		c.SendError("invalid_status", "Invalid status payload")
		return
	}

	var text string
	if p.Target != nil {
		text = c.server.engine.BuildStatusText(targetFromPayload(p.Target))
	}

	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeStatusResult,
		Payload: network.StatusResultPayload{
			RequestID: p.RequestID,
			Text:      text,
		},
	})
}

func (c *Connection) handlePing() {
	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypePong,
		Payload: map[string]interface{}{"timestamp": time.Now().Unix()},
	})
}

func targetFromPayload(p *network.TargetPayload) *models.Target {
	return models.NewTarget(p.TribeID, p.Kind, p.Name, p.Category)
}

// SendMessage queues a message for the host. It never blocks; messages are
// dropped when the buffer is full or the connection is closed.
func (c *Connection) SendMessage(msg *network.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to marshal message")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	select {
	case c.send <- data:
	default:
		c.log.Warn().Str("type", msg.Type).Msg("send buffer full, dropping message")
	}
}

// SendError sends an error message to the host
func (c *Connection) SendError(code, message string) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeError,
		Payload: network.ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Close disconnects every player this host reported, then closes the link.
// A host that drops is treated as a logout of all its players. Players
// reported after Close are ignored.
func (c *Connection) Close() {
	c.once.Do(func() {
		c.players.Lock()
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		for _, player := range c.server.session.ReleaseConnection(c) {
			c.server.engine.OnPlayerDisconnected(player)
		}
		c.players.Unlock()

		if c.ws != nil {
			c.ws.Close()
		}
	})
}
