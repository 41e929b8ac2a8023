package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/hornet-sec/hornet/pkg/eventbus"
	"github.com/hornet-sec/hornet/pkg/executor"
	"github.com/hornet-sec/hornet/pkg/metrics"
	"github.com/hornet-sec/hornet/pkg/models"
)

// EdgeFrame is the envelope every message on the edge channel uses;
// Type selects which of the optional fields are populated.
type EdgeFrame struct {
	Type         string         `json:"type"`
	Hostname     string         `json:"hostname,omitempty"`
	Version      string         `json:"version,omitempty"`
	Capabilities []string       `json:"capabilities,omitempty"`
	Events       []map[string]any `json:"events,omitempty"`
	ActionID     string         `json:"action_id,omitempty"`
	Status       string         `json:"status,omitempty"`
	Detail       string         `json:"detail,omitempty"`
}

// SignedAction is an outbound action request to an edge agent, signed
// so the receiver can authenticate the server and detect tampering or
// replay (spec §4.9).
type SignedAction struct {
	ActionID   string         `json:"action_id"`
	TenantID   string         `json:"tenant_id"`
	IncidentID string         `json:"incident_id"`
	ActionType string         `json:"action_type"`
	Target     string         `json:"target"`
	Parameters map[string]any `json:"parameters"`
	ExpiresAt  time.Time      `json:"expires_at"`
	Nonce      string         `json:"nonce"`
	Signature  string         `json:"signature"`
}

// BuildSignedAction constructs and signs a SignedAction. The signature
// is an HMAC-SHA256 (via pkg/executor's shared signer) over the
// canonical JSON of every field except the signature itself.
func BuildSignedAction(secret, tenantID, incidentID, actionType, target string, parameters map[string]any, ttl time.Duration) (SignedAction, error) {
	sa := SignedAction{
		ActionID:   uuid.NewString(),
		TenantID:   tenantID,
		IncidentID: incidentID,
		ActionType: actionType,
		Target:     target,
		Parameters: parameters,
		ExpiresAt:  time.Now().UTC().Add(ttl),
		Nonce:      uuid.NewString(),
	}
	payload, err := executor.CanonicalJSON(sa.signablePayload())
	if err != nil {
		return SignedAction{}, err
	}
	sa.Signature = executor.SignHMAC(secret, payload)
	return sa, nil
}

// Verify recomputes the signature over sa's fields and compares it
// against sa.Signature, also rejecting an expired action. Exposed for
// the edge-side receiver (and for tests exercising the same contract
// the edge process implements independently).
func (sa SignedAction) Verify(secret string) error {
	if time.Now().UTC().After(sa.ExpiresAt) {
		return fmt.Errorf("realtime: signed action %s expired at %s", sa.ActionID, sa.ExpiresAt)
	}
	payload, err := executor.CanonicalJSON(sa.signablePayload())
	if err != nil {
		return err
	}
	want := executor.SignHMAC(secret, payload)
	if want != sa.Signature {
		return fmt.Errorf("realtime: signed action %s signature mismatch", sa.ActionID)
	}
	return nil
}

func (sa SignedAction) signablePayload() map[string]any {
	return map[string]any{
		"action_id":   sa.ActionID,
		"tenant_id":   sa.TenantID,
		"incident_id": sa.IncidentID,
		"action_type": sa.ActionType,
		"target":      sa.Target,
		"parameters":  sa.Parameters,
		"expires_at":  sa.ExpiresAt.Format(time.RFC3339Nano),
		"nonce":       sa.Nonce,
	}
}

// edgeConnection is one connected remote log-shipper.
type edgeConnection struct {
	id           string
	tenantID     string
	hostname     string
	conn         *websocket.Conn
	registered   bool
	ctx          context.Context
	cancel       context.CancelFunc
}

// pendingAction tracks a SignedAction awaiting an action_result.
type pendingAction struct {
	tenantID  string
	expiresAt time.Time
}

// EdgeManager owns edge-agent WebSocket connections, normalizes and
// publishes log_batch events to the bus, and tracks outbound signed
// actions pending an action_result.
type EdgeManager struct {
	bus    *eventbus.Bus
	secret string

	mu          sync.RWMutex
	connections map[string]*edgeConnection
	byTenant    map[string]map[string]bool

	pendingMu sync.Mutex
	pending   map[string]pendingAction

	seenMu sync.Mutex
	seen   map[string]time.Time // nonce -> observed time, for replay rejection

	log *slog.Logger
}

// NewEdgeManager returns an EdgeManager. secret is the HMAC key shared
// with registered edge agents for this deployment.
func NewEdgeManager(bus *eventbus.Bus, secret string) *EdgeManager {
	return &EdgeManager{
		bus:         bus,
		secret:      secret,
		connections: make(map[string]*edgeConnection),
		byTenant:    make(map[string]map[string]bool),
		pending:     make(map[string]pendingAction),
		seen:        make(map[string]time.Time),
		log:         slog.Default().With("component", "realtime.edge"),
	}
}

// HandleConnection owns one edge WebSocket's lifecycle. tenantID comes
// from the already-verified API key credential used to connect.
func (m *EdgeManager) HandleConnection(parentCtx context.Context, tenantID string, conn *websocket.Conn) {
	ctx, cancel := context.WithCancel(parentCtx)
	c := &edgeConnection{
		id:       uuid.NewString(),
		tenantID: tenantID,
		conn:     conn,
		ctx:      ctx,
		cancel:   cancel,
	}
	defer m.unregister(c)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var frame EdgeFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			m.log.Warn("invalid edge frame", "connection_id", c.id, "error", err)
			continue
		}

		if !c.registered {
			if frame.Type != "register" {
				m.sendJSON(c, EdgeFrame{Type: "error", Detail: "first frame must be register"})
				continue
			}
			c.hostname = frame.Hostname
			c.registered = true
			m.register(c)
			m.sendJSON(c, EdgeFrame{Type: "registered"})
			continue
		}

		m.handleFrame(ctx, c, &frame)
	}
}

func (m *EdgeManager) handleFrame(ctx context.Context, c *edgeConnection, frame *EdgeFrame) {
	switch frame.Type {
	case "log_batch":
		m.handleLogBatch(ctx, c, frame.Events)
	case "heartbeat":
		m.sendJSON(c, EdgeFrame{Type: "heartbeat_ack", Detail: time.Now().UTC().Format(time.RFC3339Nano)})
	case "action_result":
		m.handleActionResult(c, frame)
	default:
		m.sendJSON(c, EdgeFrame{Type: "error", Detail: fmt.Sprintf("unknown frame type %q", frame.Type)})
	}
}

func (m *EdgeManager) handleLogBatch(ctx context.Context, c *edgeConnection, events []map[string]any) {
	count := 0
	for _, raw := range events {
		ev := normalizeEdgeEvent(raw, c)
		if _, err := m.bus.PublishEvent(ctx, ev); err != nil {
			m.log.Error("failed to publish edge-sourced event", "connection_id", c.id, "error", err)
			continue
		}
		count++
	}
	m.sendJSON(c, EdgeFrame{Type: "batch_ack", Detail: fmt.Sprintf("%d", count)})
}

// normalizeEdgeEvent stamps a raw edge-shipped event with a fresh id,
// timestamp, tenant id and edge source tag, matching the bus's
// normalized event map shape (the same shape pkg/dispatcher's
// normalizeEvent produces from HTTP-ingested events).
func normalizeEdgeEvent(raw map[string]any, c *edgeConnection) map[string]any {
	ev := make(map[string]any, len(raw)+4)
	for k, v := range raw {
		ev[k] = v
	}
	ev["id"] = uuid.NewString()
	ev["tenant_id"] = c.tenantID
	ev["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	ev["source"] = fmt.Sprintf("edge:%s", c.hostname)
	if _, ok := ev["severity"]; !ok {
		ev["severity"] = string(models.SeverityLow)
	}
	return ev
}

func (m *EdgeManager) handleActionResult(c *edgeConnection, frame *EdgeFrame) {
	m.pendingMu.Lock()
	pa, ok := m.pending[frame.ActionID]
	if ok {
		delete(m.pending, frame.ActionID)
	}
	m.pendingMu.Unlock()

	if !ok {
		m.log.Warn("action_result for unknown or expired action", "action_id", frame.ActionID, "connection_id", c.id)
		m.sendJSON(c, EdgeFrame{Type: "error", ActionID: frame.ActionID, Detail: "unknown or expired action_id"})
		return
	}
	if pa.tenantID != c.tenantID {
		m.log.Warn("action_result tenant mismatch", "action_id", frame.ActionID, "connection_id", c.id)
		return
	}
	m.log.Info("edge action result", "action_id", frame.ActionID, "status", frame.Status, "detail", frame.Detail)
}

// SendAction delivers a signed action to every registered edge socket
// for the action's tenant and records it as pending an action_result.
// Returns the number of sockets the frame was sent to.
func (m *EdgeManager) SendAction(sa SignedAction) int {
	if !m.checkAndRecordNonce(sa.Nonce) {
		m.log.Warn("refusing to send action with reused nonce", "action_id", sa.ActionID)
		return 0
	}

	m.pendingMu.Lock()
	m.pending[sa.ActionID] = pendingAction{tenantID: sa.TenantID, expiresAt: sa.ExpiresAt}
	m.pendingMu.Unlock()

	m.mu.RLock()
	ids := m.byTenant[sa.TenantID]
	conns := make([]*edgeConnection, 0, len(ids))
	for id := range ids {
		if c, ok := m.connections[id]; ok {
			conns = append(conns, c)
		}
	}
	m.mu.RUnlock()

	frame := EdgeFrame{Type: "action", ActionID: sa.ActionID}
	sent := 0
	for _, c := range conns {
		data, err := json.Marshal(struct {
			EdgeFrame
			Action SignedAction `json:"action"`
		}{EdgeFrame: frame, Action: sa})
		if err != nil {
			continue
		}
		if err := m.sendRaw(c, data); err != nil {
			m.log.Warn("dead edge socket while sending action", "connection_id", c.id, "error", err)
			continue
		}
		sent++
	}
	return sent
}

// checkAndRecordNonce rejects a nonce already seen, and opportunistically
// evicts expired entries so the map does not grow unbounded.
func (m *EdgeManager) checkAndRecordNonce(nonce string) bool {
	m.seenMu.Lock()
	defer m.seenMu.Unlock()
	now := time.Now()
	if seenAt, ok := m.seen[nonce]; ok && now.Sub(seenAt) < 24*time.Hour {
		return false
	}
	m.seen[nonce] = now
	for n, t := range m.seen {
		if now.Sub(t) > 24*time.Hour {
			delete(m.seen, n)
		}
	}
	return true
}

func (m *EdgeManager) register(c *edgeConnection) {
	m.mu.Lock()
	m.connections[c.id] = c
	if m.byTenant[c.tenantID] == nil {
		m.byTenant[c.tenantID] = make(map[string]bool)
	}
	m.byTenant[c.tenantID][c.id] = true
	n := len(m.connections)
	m.mu.Unlock()
	metrics.SetEdgeConnections(n)
}

func (m *EdgeManager) unregister(c *edgeConnection) {
	m.mu.Lock()
	delete(m.connections, c.id)
	if subs, ok := m.byTenant[c.tenantID]; ok {
		delete(subs, c.id)
		if len(subs) == 0 {
			delete(m.byTenant, c.tenantID)
		}
	}
	n := len(m.connections)
	m.mu.Unlock()
	metrics.SetEdgeConnections(n)
	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")
}

func (m *EdgeManager) sendJSON(c *edgeConnection, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = m.sendRaw(c, data)
}

func (m *EdgeManager) sendRaw(c *edgeConnection, data []byte) error {
	ctx, cancel := context.WithTimeout(c.ctx, DefaultWriteTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, data)
}
