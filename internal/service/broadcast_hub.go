package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/fortress-api/internal/dto"
	"github.com/noah-isme/fortress-api/internal/observability"
)

const (
	defaultHubBufferSize   = 32
	defaultHubRelayTimeout = 2 * time.Second
)

// ErrHubClosed is returned when subscribing to a hub that has been shut down.
var ErrHubClosed = errors.New("broadcast hub closed")

// HubConfig configures buffering and the optional cross-node relay.
type HubConfig struct {
	BufferSize int
	// ChannelBase names the Redis channel and NATS subject used to relay events
	// between nodes. Empty disables relaying.
	ChannelBase  string
	RelayTimeout time.Duration
}

// BroadcastHub fans battle events out to the live subscribers of each team.
// Delivery is at most once: nothing is stored, nothing is retried, and a
// subscriber whose buffer is full misses the event.
type BroadcastHub struct {
	mu       sync.RWMutex
	channels map[uint]map[*Subscription]struct{}
	closed   bool
	relays   sync.WaitGroup

	buffer       int
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	relayTimeout time.Duration
	nodeID       string
	logger       zerolog.Logger
}

// Subscription is one live listener on a team channel.
type Subscription struct {
	TeamID uint
	events chan dto.BattleEvent
	hub    *BroadcastHub
	once   sync.Once
}

type hubEnvelope struct {
	Source string          `json:"source"`
	TeamID uint            `json:"team_id"`
	Event  dto.BattleEvent `json:"event"`
	SentAt time.Time       `json:"sent_at"`
}

// NewBroadcastHub constructs a hub. redisClient and natsConn are optional relays.
func NewBroadcastHub(redisClient *redis.Client, natsConn *nats.Conn, cfg HubConfig, logger zerolog.Logger) *BroadcastHub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultHubBufferSize
	}
	if cfg.RelayTimeout <= 0 {
		cfg.RelayTimeout = defaultHubRelayTimeout
	}

	hub := &BroadcastHub{
		channels:     make(map[uint]map[*Subscription]struct{}),
		buffer:       cfg.BufferSize,
		relayTimeout: cfg.RelayTimeout,
		nodeID:       uuid.NewString(),
		logger:       logger.With().Str("component", "broadcast_hub").Logger(),
	}

	if base := strings.TrimSpace(cfg.ChannelBase); base != "" {
		if redisClient != nil {
			hub.redis = redisClient
			hub.redisChannel = base + ":battles"
		}
		if natsConn != nil {
			hub.nats = natsConn
			hub.natsSubject = strings.ReplaceAll(base, ":", ".") + ".battles"
		}
	}

	return hub
}

// Start consumes events relayed by other nodes until ctx is cancelled.
func (h *BroadcastHub) Start(ctx context.Context) {
	if h.redis != nil {
		go h.consumeRedis(ctx)
	}
	if h.nats != nil {
		go h.consumeNATS(ctx)
	}
}

// Subscribe registers a listener for teamID. The first event on the returned
// subscription is always the connection acknowledgement.
func (h *BroadcastHub) Subscribe(teamID uint) (*Subscription, error) {
	sub := &Subscription{
		TeamID: teamID,
		events: make(chan dto.BattleEvent, h.buffer+1),
		hub:    h,
	}
	// Queued before registration so no broadcast can overtake it.
	sub.events <- dto.NewConnectionEvent(teamID)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}
	if _, ok := h.channels[teamID]; !ok {
		h.channels[teamID] = make(map[*Subscription]struct{})
	}
	h.channels[teamID][sub] = struct{}{}

	observability.BattleSubscribersActive().Inc()
	h.logger.Debug().Uint("team_id", teamID).Msg("battle subscriber connected")
	return sub, nil
}

// Publish delivers event to the current subscribers of teamID and forwards it to
// other nodes in the background. It never blocks on slow consumers and never fails.
func (h *BroadcastHub) Publish(ctx context.Context, teamID uint, event dto.BattleEvent) {
	if !h.deliver(teamID, event, true) {
		return
	}
	go h.forward(context.WithoutCancel(ctx), teamID, event)
}

// SubscriberCount returns the number of live subscribers of teamID.
func (h *BroadcastHub) SubscriberCount(teamID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[teamID])
}

// Close disconnects every subscriber and waits for in-flight relays.
func (h *BroadcastHub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for teamID, subs := range h.channels {
		for sub := range subs {
			close(sub.events)
			observability.BattleSubscribersActive().Dec()
		}
		delete(h.channels, teamID)
	}
	h.mu.Unlock()

	h.relays.Wait()
}

// deliver fans the event out locally. With relay set it also reserves a relay slot,
// reporting whether the caller must forward the event.
func (h *BroadcastHub) deliver(teamID uint, event dto.BattleEvent, relay bool) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return false
	}

	for sub := range h.channels[teamID] {
		select {
		case sub.events <- event:
			observability.BroadcastEventsTotal().WithLabelValues("delivered").Inc()
		default:
			observability.BroadcastEventsTotal().WithLabelValues("dropped").Inc()
			h.logger.Warn().Uint("team_id", teamID).Str("type", event.Type).Msg("dropping battle event for slow subscriber")
		}
	}

	if !relay || (h.redis == nil && h.nats == nil) {
		return false
	}
	h.relays.Add(1)
	return true
}

func (h *BroadcastHub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.channels[sub.TeamID]
	if !ok {
		return
	}
	if _, ok := subs[sub]; !ok {
		return
	}
	delete(subs, sub)
	close(sub.events)
	if len(subs) == 0 {
		delete(h.channels, sub.TeamID)
	}

	observability.BattleSubscribersActive().Dec()
	h.logger.Debug().Uint("team_id", sub.TeamID).Msg("battle subscriber disconnected")
}

func (h *BroadcastHub) forward(ctx context.Context, teamID uint, event dto.BattleEvent) {
	defer h.relays.Done()
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().Interface("panic", r).Msg("battle event relay panicked")
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, h.relayTimeout)
	defer cancel()

	payload, err := json.Marshal(hubEnvelope{
		Source: h.nodeID,
		TeamID: teamID,
		Event:  event,
		SentAt: time.Now().UTC(),
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode battle event for relay")
		return
	}

	if h.redis != nil {
		if err := h.redis.Publish(ctx, h.redisChannel, payload).Err(); err != nil {
			observability.BroadcastRelayErrors().WithLabelValues("redis").Inc()
			h.logger.Warn().Err(err).Uint("team_id", teamID).Msg("failed to relay battle event to redis")
		}
	}

	if h.nats != nil {
		if err := h.nats.Publish(h.natsSubject, payload); err != nil {
			observability.BroadcastRelayErrors().WithLabelValues("nats").Inc()
			h.logger.Warn().Err(err).Uint("team_id", teamID).Msg("failed to relay battle event to nats")
		}
	}
}

func (h *BroadcastHub) consumeRedis(ctx context.Context) {
	pubsub := h.redis.Subscribe(ctx, h.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			h.logger.Error().Err(err).Msg("battle redis subscription closed")
			return
		}
		h.handleRelayed([]byte(msg.Payload))
	}
}

func (h *BroadcastHub) consumeNATS(ctx context.Context) {
	sub, err := h.nats.Subscribe(h.natsSubject, func(msg *nats.Msg) {
		h.handleRelayed(msg.Data)
	})
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to subscribe to nats battle subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			h.logger.Warn().Err(err).Msg("failed to drain battle nats subscription")
		}
	}()
}

func (h *BroadcastHub) handleRelayed(data []byte) {
	var envelope hubEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		h.logger.Warn().Err(err).Msg("invalid relayed battle event")
		return
	}
	if envelope.Source == h.nodeID {
		return
	}
	h.deliver(envelope.TeamID, envelope.Event, false)
}

// Events returns the stream of events for this subscription. It is closed when the
// subscription or the hub is closed.
func (s *Subscription) Events() <-chan dto.BattleEvent {
	return s.events
}

// Close removes the subscription from its hub. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.unsubscribe(s)
	})
}
