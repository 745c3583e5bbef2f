// Package health runs a periodic liveness publisher: it samples the
// real-time loop's cycle counter, jitter, and watchdog state, and
// publishes a retained snapshot on the shared bus at a configurable
// interval so a supervisor or UI can tell the process is alive without
// scraping Prometheus.
package health

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runtimevic/fieldbusd/bus"
)

var topicConfigHealth = bus.T("config", "health")

var log = logrus.WithField("subsystem", "health")

// Snapshot is a point-in-time report of the real-time loop's condition.
type Snapshot struct {
	Timestamp           time.Time     `json:"timestamp"`
	CyclesTotal         uint64        `json:"cycles_total"`
	ConsecutiveFailures int           `json:"consecutive_txrx_failures"`
	MeanCycleJitter     time.Duration `json:"mean_cycle_jitter_ns"`
	MachinesActive      int           `json:"machines_active"`
}

// Source supplies the current snapshot fields. rtloop.Loop implements
// this.
type Source interface {
	HealthSnapshot() Snapshot
}

// Service publishes a Source's snapshot on a retained bus topic,
// defaulting to once per second. An operator can retune the interval at
// runtime by publishing {"interval_seconds": n} on config/health.
type Service struct {
	src   Source
	topic bus.Topic
}

// New creates a Service publishing src's snapshots on topic.
func New(src Source, topic bus.Topic) *Service {
	return &Service{src: src, topic: topic}
}

// Run publishes until ctx is cancelled. It is meant to be started in its
// own goroutine.
func (s *Service) Run(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHealth)
	defer cfgSub.Unsubscribe()

	tick := time.NewTicker(time.Second)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("health publisher stopping")
			return
		case t := <-tick.C:
			snap := s.src.HealthSnapshot()
			snap.Timestamp = t
			conn.Publish(conn.NewMessage(s.topic, snap, true))
		case msg := <-cfgSub.Channel():
			if m, ok := msg.Payload.(map[string]any); ok {
				if iv, ok := m["interval_seconds"]; ok {
					if seconds, ok := iv.(float64); ok && seconds > 0 {
						tick.Reset(time.Duration(seconds * float64(time.Second)))
						log.WithField("interval_seconds", seconds).Info("health publish interval changed")
					}
				}
			}
		}
	}
}
