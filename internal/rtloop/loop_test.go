package rtloop

import (
	"context"
	"testing"
	"time"

	"github.com/runtimevic/fieldbusd/internal/devices"
	"github.com/runtimevic/fieldbusd/internal/ethercat"
	"github.com/runtimevic/fieldbusd/internal/identify"
	"github.com/runtimevic/fieldbusd/internal/machine"
	"github.com/runtimevic/fieldbusd/x/bitbuf"
)

type stubTransport struct {
	txrxCalls int
	failAfter int // 0 = never fails
}

func (s *stubTransport) EnumerateSlaves(ctx context.Context) ([]ethercat.SlaveInfo, error) {
	return nil, nil
}
func (s *stubTransport) SlaveCount() int { return 1 }
func (s *stubTransport) ReadNV(ctx context.Context, addr ethercat.SlaveAddr, word uint16) (uint16, error) {
	return 0, nil
}
func (s *stubTransport) WriteNV(ctx context.Context, addr ethercat.SlaveAddr, word uint16, value uint16) error {
	return nil
}
func (s *stubTransport) ToPreOp(ctx context.Context) error  { return nil }
func (s *stubTransport) ToSafeOp(ctx context.Context) error { return nil }
func (s *stubTransport) ToOp(ctx context.Context) error     { return nil }

func (s *stubTransport) TxRx(ctx context.Context) error {
	s.txrxCalls++
	if s.failAfter != 0 && s.txrxCalls > s.failAfter {
		return errBoom
	}
	return nil
}
func (s *stubTransport) InputsRaw(slave int) []byte     { return make([]byte, 1) }
func (s *stubTransport) OutputsRawMut(slave int) []byte { return make([]byte, 1) }

var errBoom = errString("boom")

type errString string

func (e errString) Error() string { return string(e) }

type countingMachine struct {
	acts int
	id   identify.MachineIdentificationUnique
}

func (m *countingMachine) Identification() identify.MachineIdentificationUnique { return m.id }
func (m *countingMachine) Act(now time.Time)                                   { m.acts++ }
func (m *countingMachine) ActMessage(msg machine.Message)                      {}
func (m *countingMachine) Inbox() chan<- machine.Message                       { return nil }

func TestOnceCallsActOncePerCycle(t *testing.T) {
	st := &stubTransport{}
	el2008 := devices.NewEL2008()
	el2008.SetUsed(true)
	setup := &ethercat.Setup{
		Transport: st,
		Devices:   []ethercat.DeviceTableEntry{{Driver: el2008}},
	}
	m := &countingMachine{}
	l := New(setup, []machine.Machine{m}, time.Millisecond, nil)

	if err := l.once(context.Background(), time.Now()); err != nil {
		t.Fatalf("once: %v", err)
	}
	if m.acts != 1 {
		t.Fatalf("acts = %d, want 1", m.acts)
	}
	if st.txrxCalls != 1 {
		t.Fatalf("txrxCalls = %d, want 1", st.txrxCalls)
	}
}

// failingDevice is a minimal devices.Device fake whose Input always fails,
// used to exercise once()'s fatal propagation of per-driver decode errors.
type failingDevice struct {
	used bool
	err  error
}

func (d *failingDevice) InputLen() int  { return 8 }
func (d *failingDevice) OutputLen() int { return 0 }

func (d *failingDevice) Input(v bitbuf.View) error      { return d.err }
func (d *failingDevice) Output(mv bitbuf.MutView) error { return nil }

func (d *failingDevice) InputPostProcess() error { return nil }
func (d *failingDevice) OutputPreProcess() error { return nil }

func (d *failingDevice) IsUsed() bool   { return d.used }
func (d *failingDevice) SetUsed(b bool) { d.used = b }
func (d *failingDevice) IsModule() bool { return false }

// failOnceTransport fails exactly its first TxRx call, then succeeds: a
// transient blip well under the watchdog threshold.
type failOnceTransport struct {
	*stubTransport
	failed bool
}

func (s *failOnceTransport) TxRx(ctx context.Context) error {
	s.txrxCalls++
	if !s.failed {
		s.failed = true
		return errBoom
	}
	return nil
}

func TestTransientTxRxFailureStillRunsActAndOutput(t *testing.T) {
	st := &failOnceTransport{stubTransport: &stubTransport{}}
	el2008 := devices.NewEL2008()
	el2008.SetUsed(true)
	setup := &ethercat.Setup{
		Transport: st,
		Devices:   []ethercat.DeviceTableEntry{{Driver: el2008}},
	}
	m := &countingMachine{}
	l := New(setup, []machine.Machine{m}, time.Millisecond, nil)

	if err := l.once(context.Background(), time.Now()); err != nil {
		t.Fatalf("once: %v", err)
	}
	if m.acts != 1 {
		t.Fatalf("acts = %d, want 1 (a transient tx/rx failure must not skip machine Act)", m.acts)
	}
	if l.consecutiveFailures != 1 {
		t.Fatalf("consecutiveFailures = %d, want 1", l.consecutiveFailures)
	}
}

func TestPerDriverDecodeErrorTerminatesLoop(t *testing.T) {
	st := &stubTransport{}
	bad := &failingDevice{used: true, err: errBoom}
	setup := &ethercat.Setup{
		Transport: st,
		Devices:   []ethercat.DeviceTableEntry{{Driver: bad}},
	}
	m := &countingMachine{}
	l := New(setup, []machine.Machine{m}, time.Millisecond, nil)

	err := l.once(context.Background(), time.Now())
	if err == nil {
		t.Fatalf("expected once to return an error when a driver's Input fails")
	}
	if m.acts != 0 {
		t.Fatalf("acts = %d, want 0 (the loop must terminate before Act on a decode error)", m.acts)
	}
}

func TestWatchdogTripsAfterConsecutiveFailures(t *testing.T) {
	st := &stubTransport{failAfter: 0}
	st.failAfter = 1 // the first call succeeds; every call after it fails
	setup := &ethercat.Setup{Transport: st}
	l := New(setup, nil, time.Millisecond, nil)

	var err error
	for i := 0; i < maxConsecutiveFailures+5; i++ {
		err = l.once(context.Background(), time.Now())
		if err != nil {
			break
		}
	}
	if err == nil {
		t.Fatalf("expected watchdog to trip within %d cycles", maxConsecutiveFailures+5)
	}
}
