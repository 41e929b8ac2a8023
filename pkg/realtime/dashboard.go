// Package realtime implements the Real-time Channels component (C10):
// a dashboard WebSocket channel (per tenant, topic-filtered, fed from
// the event bus's Redis Pub/Sub fan-out) and an edge WebSocket channel
// for remote log-shipping agents, authenticated the same way and
// exchanging HMAC-signed action frames.
//
// The dashboard channel's connection-registry shape — connection map,
// subscription sets, broadcast-with-dead-socket-cleanup, ping/pong —
// is ported from the teacher's pkg/events.ConnectionManager, adapted
// from per-channel Postgres LISTEN/NOTIFY to a single Redis Pub/Sub
// subscription fanned out locally by tenant and topic.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/hornet-sec/hornet/pkg/eventbus"
	"github.com/hornet-sec/hornet/pkg/metrics"
)

// DefaultWriteTimeout bounds how long a single WebSocket send may
// block before the connection is treated as dead.
const DefaultWriteTimeout = 5 * time.Second

// ClientMessage is a frame received from a dashboard client.
type ClientMessage struct {
	Action  string `json:"action"`
	Channel string `json:"channel,omitempty"`
}

// connection is a single dashboard WebSocket client. subscriptions is
// accessed without a lock: all reads and writes happen on the single
// goroutine owning the connection (HandleConnection's read loop and
// its deferred cleanup), matching the teacher's Connection contract.
type connection struct {
	id            string
	tenantID      string
	conn          *websocket.Conn
	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc
}

// DashboardManager tracks connected dashboard sockets, grouped by
// tenant, and fans out frames read from the event bus's realtime
// channel to the sockets subscribed to their topic.
type DashboardManager struct {
	bus *eventbus.Bus

	mu          sync.RWMutex
	connections map[string]*connection

	tenantMu sync.RWMutex
	byTenant map[string]map[string]bool // tenant_id -> connection ids

	writeTimeout time.Duration
	log          *slog.Logger
}

// NewDashboardManager returns a DashboardManager. Call Run once to
// start consuming the bus's realtime channel.
func NewDashboardManager(bus *eventbus.Bus) *DashboardManager {
	return &DashboardManager{
		bus:          bus,
		connections:  make(map[string]*connection),
		byTenant:     make(map[string]map[string]bool),
		writeTimeout: DefaultWriteTimeout,
		log:          slog.Default().With("component", "realtime.dashboard"),
	}
}

// Run subscribes to the bus's realtime channel and fans out every
// frame to registered dashboard connections until ctx is cancelled.
func (m *DashboardManager) Run(ctx context.Context) {
	sub := m.bus.SubscribeRealtime(ctx)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			m.dispatch(msg.Payload)
		}
	}
}

func (m *DashboardManager) dispatch(raw string) {
	var frame struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal([]byte(raw), &frame); err != nil {
		m.log.Warn("discarding malformed realtime frame", "error", err)
		return
	}
	tenantID, _ := frame.Data["tenant_id"].(string)
	if tenantID == "" {
		return
	}
	m.broadcastToTenant(tenantID, frame.Type, []byte(raw))
}

func (m *DashboardManager) broadcastToTenant(tenantID, topic string, payload []byte) {
	m.tenantMu.RLock()
	ids, ok := m.byTenant[tenantID]
	if !ok {
		m.tenantMu.RUnlock()
		return
	}
	connIDs := make([]string, 0, len(ids))
	for id := range ids {
		connIDs = append(connIDs, id)
	}
	m.tenantMu.RUnlock()

	m.mu.RLock()
	conns := make([]*connection, 0, len(connIDs))
	for _, id := range connIDs {
		if c, ok := m.connections[id]; ok {
			conns = append(conns, c)
		}
	}
	m.mu.RUnlock()

	for _, c := range conns {
		if len(c.subscriptions) > 0 && !c.subscriptions[topic] {
			continue
		}
		if err := m.sendRaw(c, payload); err != nil {
			m.log.Warn("dead dashboard socket during broadcast", "connection_id", c.id, "error", err)
		}
	}
}

// HandleConnection owns a single dashboard WebSocket's lifecycle:
// registration, the read loop, and cleanup. Callers must have already
// verified the credential's tenant matches tenantID (spec §4.9).
func (m *DashboardManager) HandleConnection(parentCtx context.Context, tenantID string, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &connection{
		id:            uuid.NewString(),
		tenantID:      tenantID,
		conn:          conn,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}

	m.register(c)
	defer m.unregister(c)

	m.sendJSON(c, map[string]string{"type": "connection.established", "connection_id": c.id})

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.log.Warn("invalid dashboard client message", "connection_id", c.id, "error", err)
			continue
		}
		m.handleClientMessage(c, &msg)
	}
}

func (m *DashboardManager) handleClientMessage(c *connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Channel == "" {
			m.sendJSON(c, map[string]string{"type": "error", "message": "channel is required for subscribe"})
			return
		}
		c.subscriptions[msg.Channel] = true
		m.sendJSON(c, map[string]string{"type": "subscription.confirmed", "channel": msg.Channel})
	case "unsubscribe":
		delete(c.subscriptions, msg.Channel)
	case "ping":
		m.sendJSON(c, map[string]string{"type": "pong"})
	}
}

func (m *DashboardManager) register(c *connection) {
	m.mu.Lock()
	m.connections[c.id] = c
	m.mu.Unlock()

	m.tenantMu.Lock()
	if m.byTenant[c.tenantID] == nil {
		m.byTenant[c.tenantID] = make(map[string]bool)
	}
	m.byTenant[c.tenantID][c.id] = true
	m.tenantMu.Unlock()

	metrics.SetDashboardConnections(m.ActiveConnections())
}

func (m *DashboardManager) unregister(c *connection) {
	m.mu.Lock()
	delete(m.connections, c.id)
	m.mu.Unlock()

	m.tenantMu.Lock()
	if subs, ok := m.byTenant[c.tenantID]; ok {
		delete(subs, c.id)
		if len(subs) == 0 {
			delete(m.byTenant, c.tenantID)
		}
	}
	m.tenantMu.Unlock()

	metrics.SetDashboardConnections(m.ActiveConnections())

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

// ActiveConnections returns the number of currently registered sockets.
func (m *DashboardManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// TenantConnections returns the number of sockets registered for tenantID.
func (m *DashboardManager) TenantConnections(tenantID string) int {
	m.tenantMu.RLock()
	defer m.tenantMu.RUnlock()
	return len(m.byTenant[tenantID])
}

func (m *DashboardManager) sendJSON(c *connection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		m.log.Warn("failed to marshal dashboard message", "connection_id", c.id, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		m.log.Warn("failed to send dashboard message", "connection_id", c.id, "error", err)
	}
}

func (m *DashboardManager) sendRaw(c *connection, data []byte) error {
	ctx, cancel := context.WithTimeout(c.ctx, m.writeTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}
