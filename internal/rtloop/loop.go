// Package rtloop runs the fixed-period real-time cycle: process-data
// exchange, input decode, machine act(), output encode, sleep. It is the
// only thing allowed to mutate device or machine state.
package rtloop

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/runtimevic/fieldbusd/errcode"
	"github.com/runtimevic/fieldbusd/internal/ethercat"
	"github.com/runtimevic/fieldbusd/internal/health"
	"github.com/runtimevic/fieldbusd/internal/machine"
	"github.com/runtimevic/fieldbusd/internal/metrics"
	"github.com/runtimevic/fieldbusd/x/bitbuf"
)

var log = logrus.WithField("subsystem", "rtloop")

// maxConsecutiveFailures is the watchdog threshold: this many consecutive
// TxRx failures in a row exits the process with code 2.
const maxConsecutiveFailures = 20

// HotThreadMessage is something the control plane asks the real-time
// thread to do at the top of its next cycle. The loop drains at most one
// per cycle so a burst of control-plane activity never steals cycle time
// from the bus.
type HotThreadMessage interface{ isHotThreadMessage() }

type AddMachines struct{ Machines []machine.Machine }
type DeleteMachine struct{ Unique any }
type WriteMachineDeviceInfo struct{ Apply func() error }

func (AddMachines) isHotThreadMessage()            {}
func (DeleteMachine) isHotThreadMessage()          {}
func (WriteMachineDeviceInfo) isHotThreadMessage() {}

// Loop owns the machines slice and the bus setup for the lifetime of one
// run. It is constructed once, after ethercat.Run has produced a Setup.
type Loop struct {
	setup       *ethercat.Setup
	machines    []machine.Machine
	cycleTarget time.Duration
	hotQueue    <-chan HotThreadMessage

	consecutiveFailures uint32
	jitter              jitterHistogram

	// snapshot fields, updated at the end of every cycle and read from
	// other goroutines (e.g. internal/health) via HealthSnapshot.
	cyclesTotal    atomic.Uint64
	failuresReport atomic.Uint32
	meanJitterNS   atomic.Int64
	machinesCount  atomic.Int32
}

func New(setup *ethercat.Setup, machines []machine.Machine, cycleTarget time.Duration, hotQueue <-chan HotThreadMessage) *Loop {
	return &Loop{setup: setup, machines: machines, cycleTarget: cycleTarget, hotQueue: hotQueue}
}

// Run pins the calling goroutine's OS thread to cpu (best-effort; failures
// are logged, not fatal) and executes cycles until ctx is cancelled or the
// watchdog trips. A tripped watchdog returns an errcode.TxRx error, which
// cmd/fieldbusd turns into exit code 2; ctx cancellation returns nil.
func (l *Loop) Run(ctx context.Context, cpu int) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if err := pinToCPU(cpu); err != nil {
		log.WithError(err).Warn("failed to pin real-time thread to cpu, continuing unpinned")
	}
	if err := setRealtimePriority(); err != nil {
		log.WithError(err).Warn("failed to raise real-time scheduling priority, continuing at default priority")
	}

	var prevCycleStart time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		select {
		case msg := <-l.hotQueue:
			l.applyHotThreadMessage(msg)
		default:
		}

		cycleStart := time.Now()
		if !prevCycleStart.IsZero() {
			jitter := cycleStart.Sub(prevCycleStart) - l.cycleTarget
			l.jitter.Observe(jitter)
			metrics.CycleJitterSeconds.Observe(math.Abs(jitter.Seconds()))
		}
		prevCycleStart = cycleStart

		if err := l.once(ctx, cycleStart); err != nil {
			return err
		}
		metrics.CyclesTotal.Inc()
		metrics.ConsecutiveTxRxFailures.Set(float64(l.consecutiveFailures))
		metrics.MachinesActive.Set(float64(len(l.machines)))

		l.cyclesTotal.Add(1)
		l.failuresReport.Store(l.consecutiveFailures)
		_, _, mean := l.jitter.Snapshot()
		l.meanJitterNS.Store(int64(mean))
		l.machinesCount.Store(int32(len(l.machines)))

		l.sleepRemainder(cycleStart)
	}
}

// HealthSnapshot reports the loop's condition as of the last completed
// cycle. It is safe to call from any goroutine; internal/health polls it
// on its own schedule, off the real-time thread.
func (l *Loop) HealthSnapshot() health.Snapshot {
	return health.Snapshot{
		CyclesTotal:         l.cyclesTotal.Load(),
		ConsecutiveFailures: int(l.failuresReport.Load()),
		MeanCycleJitter:     time.Duration(l.meanJitterNS.Load()),
		MachinesActive:      int(l.machinesCount.Load()),
	}
}

func (l *Loop) applyHotThreadMessage(msg HotThreadMessage) {
	switch m := msg.(type) {
	case AddMachines:
		l.machines = append(l.machines, m.Machines...)
	case DeleteMachine:
		kept := l.machines[:0]
		for _, mm := range l.machines {
			if mm.Identification() != m.Unique {
				kept = append(kept, mm)
			}
		}
		l.machines = kept
	case WriteMachineDeviceInfo:
		if err := m.Apply(); err != nil {
			log.WithError(err).Error("write machine device info failed")
		}
	}
}

// once runs exactly one cycle: TxRx, input decode, machine act, output
// encode. A transient TxRx failure (below the watchdog threshold) is
// absorbed: the cycle still runs act/output without fresh inputs, so
// machines keep advancing and the control plane keeps draining messages
// through Act. Per-driver decode/encode errors are not absorbed: they
// terminate the loop, matching errcode.ShortBuffer/PostProcessFailed's
// fatal-to-loop disposition.
func (l *Loop) once(ctx context.Context, now time.Time) error {
	freshInputs := true
	if err := l.setup.Transport.TxRx(ctx); err != nil {
		l.consecutiveFailures++
		if l.consecutiveFailures >= maxConsecutiveFailures {
			log.WithField("consecutive_failures", l.consecutiveFailures).Error("tx/rx watchdog tripped, exiting")
			return errcode.Wrap(errcode.TxRx, "tx/rx watchdog", err)
		}
		log.WithError(err).WithField("consecutive_failures", l.consecutiveFailures).Warn("tx/rx failed, continuing cycle without fresh inputs")
		freshInputs = false
	} else {
		l.consecutiveFailures = 0
	}

	if freshInputs {
		for i, entry := range l.setup.Devices {
			if !entry.Driver.IsUsed() {
				continue
			}
			raw := l.setup.Transport.InputsRaw(i)
			if err := entry.Driver.Input(bitbuf.NewView(raw)); err != nil {
				op := fmt.Sprintf("input decode subdevice %d", i)
				log.WithError(err).WithField("subdevice", i).Error("input decode failed, terminating loop")
				return errcode.Wrap(errcode.Of(err), op, err)
			}
			if err := entry.Driver.InputPostProcess(); err != nil {
				op := fmt.Sprintf("input post-process subdevice %d", i)
				log.WithError(err).WithField("subdevice", i).Error("input post-process failed, terminating loop")
				return errcode.Wrap(errcode.Of(err), op, err)
			}
		}
	}

	for _, m := range l.machines {
		m.Act(now)
	}

	for i, entry := range l.setup.Devices {
		if !entry.Driver.IsUsed() {
			continue
		}
		if err := entry.Driver.OutputPreProcess(); err != nil {
			op := fmt.Sprintf("output pre-process subdevice %d", i)
			log.WithError(err).WithField("subdevice", i).Error("output pre-process failed, terminating loop")
			return errcode.Wrap(errcode.Of(err), op, err)
		}
		raw := l.setup.Transport.OutputsRawMut(i)
		if err := entry.Driver.Output(bitbuf.NewMutView(raw)); err != nil {
			op := fmt.Sprintf("output encode subdevice %d", i)
			log.WithError(err).WithField("subdevice", i).Error("output encode failed, terminating loop")
			return errcode.Wrap(errcode.Of(err), op, err)
		}
	}

	return nil
}

// sleepRemainder waits until cycleTarget has elapsed since cycleStart.
// While more than 2ms remain it sleeps coarsely, waking 1ms early; the
// final stretch is a busy-wait that yields the processor, trading CPU for
// timing accuracy instead of relying on the scheduler to wake it precisely
// out of time.Sleep.
func (l *Loop) sleepRemainder(cycleStart time.Time) {
	deadline := cycleStart.Add(l.cycleTarget)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if remaining > 2*time.Millisecond {
			time.Sleep(remaining - time.Millisecond)
			continue
		}
		runtime.Gosched()
	}
}
