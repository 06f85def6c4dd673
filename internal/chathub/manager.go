package chathub

import (
	"context"
	"encoding/json"
	"fmt"
	"sparkchat/backend/internal/metrics"
	"sparkchat/backend/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ManagerService joins the local Registry to the fan-out Bus. Emissions go
// out through the bus and come back through Run, on this instance and on
// every other one.
type ManagerService struct {
	Registry *Registry
	Bus      Bus

	origin  string
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewManagerService(registry *Registry, bus Bus, log *zap.Logger, m *metrics.Metrics) *ManagerService {
	if log == nil {
		log = zap.NewNop()
	}
	origin := uuid.NewString()
	return &ManagerService{
		Registry: registry,
		Bus:      bus,
		origin:   origin,
		log:      log.Named("hub").With(zap.String("instance", origin)),
		metrics:  m,
	}
}

// Origin identifies this instance on the bus.
func (m *ManagerService) Origin() string { return m.origin }

// Start subscribes to the bus and delivers envelopes until ctx ends or the
// bus closes. The subscription is live when Start returns.
func (m *ManagerService) Start(ctx context.Context) (<-chan struct{}, error) {
	envelopes, err := m.Bus.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(envelopes)
	}()
	return done, nil
}

// Run delivers every envelope to the local members of its room.
func (m *ManagerService) Run(envelopes <-chan Envelope) {
	for env := range envelopes {
		m.deliver(env)
	}
	m.log.Info("fanout subscription ended")
}

func (m *ManagerService) deliver(env Envelope) int {
	frame, err := json.Marshal(models.OutboundFrame{Event: env.Event, Room: env.Room, Data: env.Data})
	if err != nil {
		m.log.Error("encode frame", zap.String("event", env.Event), zap.Error(err))
		return 0
	}
	n := m.Registry.Deliver(env.Room, frame)
	m.metrics.Delivered(n)
	return n
}

// Emit sends event to every socket in room on every instance. If the bus is
// unavailable the emission still reaches this instance's sockets.
func (m *ManagerService) Emit(ctx context.Context, room, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", event, err)
	}
	env := Envelope{Origin: m.origin, Room: room, Event: event, Data: raw}
	if err := m.Bus.Publish(ctx, env); err != nil {
		m.log.Warn("publish failed, delivering locally only",
			zap.String("event", event), zap.String("room", room), zap.Error(err))
		m.deliver(env)
		return nil
	}
	m.metrics.Published()
	return nil
}
