package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Stream and channel names. These are process-wide constants, not
// per-tenant — tenant scoping lives in the payload (every event and
// incident row already carries a tenant_id) rather than in the Redis
// key space, matching how the original ingestion pipeline shared a
// single stream across tenants.
const (
	EventsStream         = "hornet:events"
	IncidentsStream      = "hornet:incidents"
	messageStreamPrefix  = "hornet:incident:"
	agentStreamPrefix    = "hornet:agent:"
	incidentStatePrefix  = "hornet:incident_state:"
	incidentTokensPrefix = "hornet:incident_tokens:"
	lockPrefix           = "hornet:lock:"
	RealtimeChannel      = "hornet:realtime"

	// incidentMessagesMaxLen caps the per-incident substream so a
	// long-running incident doesn't grow its stream unbounded.
	incidentMessagesMaxLen = 1000
	agentStreamMaxLen      = 100

	incidentStateTTL = 24 * time.Hour
)

// Message is a single delivered entry from a consumer-group read: the
// raw event payload plus the stream id needed to Ack it.
type Message struct {
	StreamID string
	Event    map[string]any
}

// Bus wraps a Redis client with the stream, lock, counter and pub/sub
// primitives the dispatcher, coordinator and realtime layers need. One
// Bus is shared process-wide; ConsumerName identifies this process
// among others reading the same consumer group.
type Bus struct {
	rdb          *redis.Client
	ConsumerName string
}

// Config holds the Redis connection parameters.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// New dials Redis and ensures the events stream's consumer groups
// exist, tolerating the case where they were already created by
// another process (Redis's BUSYGROUP error).
func New(ctx context.Context, cfg Config, groups ...string) (*Bus, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("eventbus: connect: %w", err)
	}

	b := &Bus{rdb: rdb, ConsumerName: "worker_" + uuid.NewString()[:8]}
	for _, group := range groups {
		if err := b.ensureGroup(ctx, EventsStream, group); err != nil {
			return nil, err
		}
	}
	slog.Info("event bus connected", "addr", cfg.Addr, "groups", groups)
	return b, nil
}

func (b *Bus) ensureGroup(ctx context.Context, stream, group string) error {
	err := b.rdb.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("eventbus: create group %s on %s: %w", group, stream, err)
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (b *Bus) Close() error {
	return b.rdb.Close()
}

// PublishEvent appends a normalized event map to the ingress stream
// and returns the assigned stream message id.
func (b *Bus) PublishEvent(ctx context.Context, event map[string]any) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", err
	}
	id, err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: EventsStream,
		Values: map[string]any{"data": string(data)},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("eventbus: publish event: %w", err)
	}
	slog.Debug("event published", "stream", EventsStream, "message_id", id)
	return id, nil
}

// Consume pulls up to count entries never yet delivered to group (the
// ">" cursor) using this Bus's consumer name, blocking up to block for
// new entries if none are immediately available. Entries delivered
// earlier but not acked are not read again. An empty, non-error result
// means the block window elapsed with nothing to deliver.
func (b *Bus) Consume(ctx context.Context, group string, count int, block time.Duration) ([]Message, error) {
	res, err := b.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: b.ConsumerName,
		Streams:  []string{EventsStream, ">"},
		Count:    int64(count),
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("eventbus: consume: %w", err)
	}

	var out []Message
	for _, stream := range res {
		for _, entry := range stream.Messages {
			raw, _ := entry.Values["data"].(string)
			var event map[string]any
			if err := json.Unmarshal([]byte(raw), &event); err != nil {
				slog.Warn("eventbus: dropping malformed entry", "id", entry.ID, "error", err)
				continue
			}
			out = append(out, Message{StreamID: entry.ID, Event: event})
		}
	}
	return out, nil
}

// Ack acknowledges processing completion for a message in group.
func (b *Bus) Ack(ctx context.Context, group, messageID string) error {
	return b.rdb.XAck(ctx, EventsStream, group, messageID).Err()
}

// PublishMessage appends a SwarmMessage to its incident's substream,
// and additionally to the target agent's stream when the message is
// directed at one.
func (b *Bus) PublishMessage(ctx context.Context, msg SwarmMessage) error {
	fields, err := msg.serialize()
	if err != nil {
		return err
	}

	stream := messageStreamPrefix + msg.IncidentID
	if err := b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: incidentMessagesMaxLen,
		Approx: true,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("eventbus: publish message: %w", err)
	}

	if msg.Target != "" {
		agentStream := agentStreamPrefix + msg.Target
		if err := b.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: agentStream,
			MaxLen: agentStreamMaxLen,
			Approx: true,
			Values: fields,
		}).Err(); err != nil {
			return fmt.Errorf("eventbus: publish message to agent stream: %w", err)
		}
	}
	return nil
}

// IncidentMessages returns messages on an incident's substream after
// sinceID ("0" for the beginning), oldest first.
func (b *Bus) IncidentMessages(ctx context.Context, incidentID, sinceID string, count int) ([]SwarmMessage, error) {
	if sinceID == "" {
		sinceID = "0"
	}
	entries, err := b.rdb.XRangeN(ctx, messageStreamPrefix+incidentID, sinceID, "+", int64(count)).Result()
	if err != nil {
		return nil, fmt.Errorf("eventbus: range incident messages: %w", err)
	}
	out := make([]SwarmMessage, 0, len(entries))
	for _, e := range entries {
		msg, err := deserializeSwarmMessage(e.Values)
		if err != nil {
			slog.Warn("eventbus: dropping malformed swarm message", "id", e.ID, "error", err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// SetIncidentState caches an incident's current FSM state for fast,
// non-authoritative reads (the row in C2 remains the source of truth).
func (b *Bus) SetIncidentState(ctx context.Context, incidentID, state string) error {
	key := incidentStatePrefix + incidentID
	if err := b.rdb.HSet(ctx, key, map[string]any{
		"state":      state,
		"updated_at": time.Now().UTC().Format(time.RFC3339),
	}).Err(); err != nil {
		return err
	}
	return b.rdb.Expire(ctx, key, incidentStateTTL).Err()
}

// IncidentState returns the cached state, or ("", false) if absent.
func (b *Bus) IncidentState(ctx context.Context, incidentID string) (string, bool, error) {
	data, err := b.rdb.HGetAll(ctx, incidentStatePrefix+incidentID).Result()
	if err != nil {
		return "", false, err
	}
	state, ok := data["state"]
	return state, ok, nil
}

// IncTokens atomically increments an incident's token counter and
// returns the new total. This is the counter spec's budget-gate checks
// read; it tolerates a stale read under concurrent writers by design —
// callers must re-check after a FORCE_TRANSITION decision.
func (b *Bus) IncTokens(ctx context.Context, incidentID string, n int) (int64, error) {
	return b.rdb.IncrBy(ctx, incidentTokensPrefix+incidentID, int64(n)).Result()
}

// GetTokens returns the current token counter for an incident, 0 if unset.
func (b *Bus) GetTokens(ctx context.Context, incidentID string) (int64, error) {
	v, err := b.rdb.Get(ctx, incidentTokensPrefix+incidentID).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// TryAcquire attempts to take a distributed lock on resource for ttl,
// returning false (no error) if another holder already has it.
func (b *Bus) TryAcquire(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	ok, err := b.rdb.SetNX(ctx, lockPrefix+resource, b.ConsumerName, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("eventbus: acquire lock %s: %w", resource, err)
	}
	return ok, nil
}

// Release releases a lock this Bus holds. It is a compare-and-delete
// run as one Lua script, so the check and the delete are atomic: if
// another holder has since taken the lock (e.g. this one expired),
// Release does nothing and returns ErrLockNotHeld rather than evicting
// someone else's lock.
func (b *Bus) Release(ctx context.Context, resource string) error {
	res, err := b.rdb.Eval(ctx, `
local v = redis.call("GET", KEYS[1])
if not v then return 0 end
if v ~= ARGV[1] then return -1 end
return redis.call("DEL", KEYS[1])`, []string{lockPrefix + resource}, b.ConsumerName).Int64()
	if err != nil {
		return err
	}
	if res == -1 {
		return ErrLockNotHeld
	}
	return nil
}

// QueueDepth returns the number of entries ever appended to the events
// stream (Redis XLEN, not "unprocessed" depth).
func (b *Bus) QueueDepth(ctx context.Context) (int64, error) {
	return b.rdb.XLen(ctx, EventsStream).Result()
}

// PendingCount returns the number of events delivered to group but not
// yet acked.
func (b *Bus) PendingCount(ctx context.Context, group string) (int64, error) {
	summary, err := b.rdb.XPending(ctx, EventsStream, group).Result()
	if err != nil {
		return 0, err
	}
	return summary.Count, nil
}

// PublishRealtime broadcasts a JSON-encoded frame on the dashboard
// fan-out channel. Subscribers (pkg/realtime) decide their own
// per-tenant routing from the payload's tenant_id field.
func (b *Bus) PublishRealtime(ctx context.Context, eventType string, data map[string]any) error {
	frame, err := json.Marshal(map[string]any{
		"type":      eventType,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := b.rdb.Publish(ctx, RealtimeChannel, frame).Err(); err != nil {
		return fmt.Errorf("eventbus: publish realtime: %w", err)
	}
	slog.Debug("realtime published", "event_type", eventType)
	return nil
}

// SubscribeRealtime returns a Redis Pub/Sub subscription on the
// dashboard channel. Callers read via sub.Channel() and must Close it.
func (b *Bus) SubscribeRealtime(ctx context.Context) *redis.PubSub {
	return b.rdb.Subscribe(ctx, RealtimeChannel)
}
