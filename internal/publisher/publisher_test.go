package publisher_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagarbus/nagarbus/internal/network"
	"github.com/nagarbus/nagarbus/internal/publisher"
	"github.com/nagarbus/nagarbus/internal/simulator"
)

type recordingConn struct {
	mu       sync.Mutex
	messages map[string][]byte
	fail     map[string]bool
}

func (c *recordingConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail[subject] {
		return errors.New("no responders")
	}
	if c.messages == nil {
		c.messages = make(map[string][]byte)
	}
	c.messages[subject] = data
	return nil
}

type countingMetrics struct {
	mu       sync.Mutex
	ok, fail int
}

func (m *countingMetrics) PublishOK()     { m.mu.Lock(); m.ok++; m.mu.Unlock() }
func (m *countingMetrics) PublishFailed() { m.mu.Lock(); m.fail++; m.mu.Unlock() }

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func fleet() []network.Bus {
	return []network.Bus{
		{ID: "bus1", RouteID: "route1", BusNumber: "UP-78-1234", Coordinates: network.Coordinates{Latitude: 26.47, Longitude: 80.32}, Status: network.StatusOnTime, LastUpdated: t0},
		{ID: "bus2", RouteID: "route1", Status: network.StatusDelayed, DelayMinutes: 6, LastUpdated: t0},
		{ID: "bus.3", RouteID: "route 2", Status: network.StatusOnTime, LastUpdated: t0},
	}
}

func TestPublishPositions(t *testing.T) {
	conn := &recordingConn{}
	metrics := &countingMetrics{}
	p := publisher.New(publisher.Config{Conn: conn, Metrics: metrics, Logger: zerolog.Nop()})

	require.NoError(t, p.PublishPositions(context.Background(), simulator.TriggerBackground, fleet()))

	subjects := make([]string, 0, len(conn.messages))
	for s := range conn.messages {
		subjects = append(subjects, s)
	}
	sort.Strings(subjects)
	assert.Equal(t, []string{
		"nagarbus.positions.route1.bus1",
		"nagarbus.positions.route1.bus2",
		"nagarbus.positions.route_2.bus_3",
	}, subjects)
	assert.Equal(t, 3, metrics.ok)

	var msg publisher.PositionMessage
	require.NoError(t, json.Unmarshal(conn.messages["nagarbus.positions.route1.bus1"], &msg))
	assert.Equal(t, "UP-78-1234", msg.BusNumber)
	assert.Equal(t, 26.47, msg.Lat)
	assert.Equal(t, simulator.TriggerBackground, msg.Trigger)
	assert.Equal(t, t0, msg.Timestamp)
}

func TestPublishPositions_Failure(t *testing.T) {
	conn := &recordingConn{fail: map[string]bool{"fleet.route1.bus2": true}}
	metrics := &countingMetrics{}
	p := publisher.New(publisher.Config{Conn: conn, SubjectPrefix: "fleet.", Metrics: metrics, Logger: zerolog.Nop()})

	err := p.PublishPositions(context.Background(), simulator.TriggerFocused, fleet())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fleet.route1.bus2")
	assert.Equal(t, 1, metrics.fail)
	assert.Equal(t, 2, metrics.ok)

	// OnPass swallows the error.
	p.OnPass(context.Background(), simulator.TriggerFocused, fleet())
}

func TestSubject(t *testing.T) {
	p := publisher.New(publisher.Config{Conn: &recordingConn{}})
	assert.Equal(t, "nagarbus.positions._.b_1", p.Subject(network.Bus{ID: "b*1"}))
}
