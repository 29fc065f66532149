// Package publisher fans simulated bus positions out to subscribers over NATS.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/resilience"
	"github.com/nagarbus/nagarbus/internal/simulator"
)

// DefaultSubjectPrefix is the subject root for position messages.
const DefaultSubjectPrefix = "nagarbus.positions"

// Conn is the subset of *nats.Conn the publisher needs.
type Conn interface {
	Publish(subject string, data []byte) error
}

// Metrics receives publish outcomes. *simulator.Collector implements it.
type Metrics interface {
	PublishOK()
	PublishFailed()
}

// Config holds configuration for a Publisher.
type Config struct {
	// Conn carries the messages.
	Conn Conn

	// SubjectPrefix is prepended to "<route>.<bus>". Default: DefaultSubjectPrefix
	SubjectPrefix string

	// MaxConcurrency bounds in-flight publishes per pass. Default: 4
	MaxConcurrency int

	// Guard wraps each publish with breaker and retry. Optional.
	Guard *resilience.Guard

	// Metrics is optional.
	Metrics Metrics

	// Logger for publisher operations.
	Logger zerolog.Logger
}

// PositionMessage is the payload published for each bus after a pass.
type PositionMessage struct {
	BusID            string            `json:"busId"`
	RouteID          string            `json:"routeId"`
	BusNumber        string            `json:"busNumber"`
	Lat              float64           `json:"lat"`
	Lon              float64           `json:"lon"`
	CurrentStopIndex int               `json:"currentStopIndex"`
	NextStopIndex    int               `json:"nextStopIndex"`
	Status           network.BusStatus `json:"status"`
	DelayMinutes     int               `json:"delayMinutes"`
	EstimatedArrival time.Time         `json:"estimatedArrival"`
	Timestamp        time.Time         `json:"timestamp"`
	Trigger          simulator.Trigger `json:"trigger"`
}

// NewPositionMessage builds the message for one bus.
func NewPositionMessage(b network.Bus, trigger simulator.Trigger) PositionMessage {
	return PositionMessage{
		BusID:            b.ID,
		RouteID:          b.RouteID,
		BusNumber:        b.BusNumber,
		Lat:              b.Coordinates.Latitude,
		Lon:              b.Coordinates.Longitude,
		CurrentStopIndex: b.CurrentStopIndex,
		NextStopIndex:    b.NextStopIndex,
		Status:           b.Status,
		DelayMinutes:     b.DelayMinutes,
		EstimatedArrival: b.EstimatedArrival,
		Timestamp:        b.LastUpdated,
		Trigger:          trigger,
	}
}

// Publisher publishes bus positions.
type Publisher struct {
	conn        Conn
	prefix      string
	concurrency int
	guard       *resilience.Guard
	metrics     Metrics
	logger      zerolog.Logger
}

// New creates a publisher.
func New(cfg Config) *Publisher {
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = DefaultSubjectPrefix
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	return &Publisher{
		conn:        cfg.Conn,
		prefix:      strings.TrimSuffix(cfg.SubjectPrefix, "."),
		concurrency: cfg.MaxConcurrency,
		guard:       cfg.Guard,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// Subject returns the subject a bus's positions are published on.
func (p *Publisher) Subject(b network.Bus) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, subjectToken(b.RouteID), subjectToken(b.ID))
}

// PublishPositions publishes one message per bus concurrently and returns
// the joined publish errors.
func (p *Publisher) PublishPositions(ctx context.Context, trigger simulator.Trigger, buses []network.Bus) error {
	wg := pool.New().WithMaxGoroutines(p.concurrency).WithContext(ctx)
	for _, b := range buses {
		wg.Go(func(ctx context.Context) error {
			return p.publish(ctx, b, trigger)
		})
	}
	return wg.Wait()
}

// OnPass publishes the fleet after a simulation pass. Failures are logged.
func (p *Publisher) OnPass(ctx context.Context, trigger simulator.Trigger, buses []network.Bus) {
	if err := p.PublishPositions(ctx, trigger, buses); err != nil {
		p.logger.Warn().Err(err).Str("trigger", string(trigger)).Msg("failed to publish positions")
	}
}

func (p *Publisher) publish(ctx context.Context, b network.Bus, trigger simulator.Trigger) error {
	data, err := json.Marshal(NewPositionMessage(b, trigger))
	if err != nil {
		return err
	}
	subject := p.Subject(b)

	send := func(context.Context) error {
		return p.conn.Publish(subject, data)
	}
	if p.guard != nil {
		err = p.guard.Do(ctx, send)
	} else {
		err = send(ctx)
	}

	if p.metrics != nil {
		if err != nil {
			p.metrics.PublishFailed()
		} else {
			p.metrics.PublishOK()
		}
	}
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

// subjectToken makes s safe as a single NATS subject token.
func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
