// Package eventbus implements HORNET's durable event delivery and
// real-time fan-out on top of Redis Streams and Redis Pub/Sub.
package eventbus

import (
	"encoding/json"
	"time"
)

// SwarmMessage is the envelope carried on a per-incident substream for
// inter-agent traffic. The event/detection stream itself carries raw
// event maps, not SwarmMessages — this envelope is for the narrower,
// post-incident-creation conversation between coordinator phases and
// agents.
type SwarmMessage struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	EventID     string         `json:"event_id"`
	IncidentID  string         `json:"incident_id"`
	Source      string         `json:"source"`
	Target      string         `json:"target,omitempty"`
	MessageType string         `json:"message_type"`
	Payload     map[string]any `json:"payload"`
	TenantID    string         `json:"tenant_id"`
}

func (m SwarmMessage) serialize() (map[string]any, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return map[string]any{"data": string(b)}, nil
}

func deserializeSwarmMessage(data map[string]any) (SwarmMessage, error) {
	var m SwarmMessage
	raw, _ := data["data"].(string)
	if raw == "" {
		return m, errEmptyMessage
	}
	err := json.Unmarshal([]byte(raw), &m)
	return m, err
}
