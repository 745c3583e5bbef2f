package health

import (
	"context"
	"testing"
	"time"

	"github.com/runtimevic/fieldbusd/bus"
)

type fakeSource struct{ snap Snapshot }

func (f fakeSource) HealthSnapshot() Snapshot { return f.snap }

func TestRunPublishesRetainedSnapshot(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	topic := bus.T("health")

	svc := New(fakeSource{snap: Snapshot{CyclesTotal: 42, MachinesActive: 3}}, topic)

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Run(ctx, conn)

	sub := conn.Subscribe(topic)
	defer sub.Unsubscribe()

	select {
	case msg := <-sub.Channel():
		snap, ok := msg.Payload.(Snapshot)
		if !ok {
			t.Fatalf("payload = %T, want Snapshot", msg.Payload)
		}
		if snap.CyclesTotal != 42 || snap.MachinesActive != 3 {
			t.Fatalf("snapshot = %+v, want CyclesTotal=42 MachinesActive=3", snap)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("expected a health snapshot within one tick")
	}

	cancel()
}

func TestRunAppliesConfiguredInterval(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("test")
	cfgConn := b.NewConnection("configurer")
	topic := bus.T("health")

	svc := New(fakeSource{snap: Snapshot{CyclesTotal: 1}}, topic)

	// Retained, so Run receives it as soon as it subscribes to config/health.
	cfgConn.Publish(cfgConn.NewMessage(bus.T("config", "health"), map[string]any{"interval_seconds": float64(10)}, true))

	sub := conn.Subscribe(topic)
	defer sub.Unsubscribe()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx, conn)

	select {
	case <-sub.Channel():
		t.Fatalf("snapshot published within 1.5s; the configured 10s interval should replace the default 1s tick")
	case <-time.After(1500 * time.Millisecond):
	}
}
