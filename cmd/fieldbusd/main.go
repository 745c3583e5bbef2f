// Command fieldbusd brings an EtherCAT bus to Op, builds machines from the
// identified device groups, and runs the real-time cycle alongside an
// HTTP control plane.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	flags "github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/runtimevic/fieldbusd/bus"
	"github.com/runtimevic/fieldbusd/errcode"
	"github.com/runtimevic/fieldbusd/internal/config"
	"github.com/runtimevic/fieldbusd/internal/controlplane"
	"github.com/runtimevic/fieldbusd/internal/ethercat"
	"github.com/runtimevic/fieldbusd/internal/health"
	"github.com/runtimevic/fieldbusd/internal/identify"
	"github.com/runtimevic/fieldbusd/internal/machine"
	"github.com/runtimevic/fieldbusd/internal/machines"
	"github.com/runtimevic/fieldbusd/internal/rtloop"
)

var topicHealth = bus.T("health")

var log = logrus.WithField("subsystem", "main")

type options struct {
	ConfigPath string `short:"c" long:"config" default:"/etc/fieldbusd/fieldbusd.toml" description:"path to the TOML configuration file"`
}

func main() {
	var opts options
	if _, err := flags.Parse(&opts); err != nil {
		os.Exit(1)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	cyclePeriod, err := cfg.CyclePeriod()
	if err != nil {
		log.WithError(err).Fatal("invalid cycle period")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	transport, err := ethercat.Dial(cfg.Ethercat.Interface)
	if err != nil {
		log.WithError(err).Fatal("failed to open ethercat transport")
	}
	defer transport.Close()

	hotQueue := make(chan rtloop.HotThreadMessage, 16)
	bridge := controlplane.New(hotQueue)

	mreg := machine.NewRegistry()
	machines.RegisterAll(mreg)

	events := make(chan machine.Event, 256)
	go func() {
		for ev := range events {
			bridge.PushEvent(ev)
		}
	}()

	setup, built, err := ethercat.Run(ctx, transport, mreg, events)
	if err != nil {
		log.WithError(err).Fatal("ethercat setup failed")
	}
	for _, m := range built {
		bridge.RegisterMachine(m)
	}
	bridge.SetIdentificationWriter(func(subdeviceIndex int, tag identify.DeviceMachineIdentification) error {
		return setup.WriteIdentification(ctx, subdeviceIndex, tag)
	})

	loop := rtloop.New(setup, built, cyclePeriod, hotQueue)

	loopErrCh := make(chan error, 1)
	go func() { loopErrCh <- loop.Run(ctx, cfg.Ethercat.RTCore) }()

	healthSvc := health.New(loop, topicHealth)
	go healthSvc.Run(ctx, bridge.NewConnection("health"))

	server := &http.Server{Addr: cfg.HTTP.ListenAddr, Handler: bridge.Router()}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server stopped")
		}
	}()

	select {
	case <-ctx.Done():
		_ = server.Shutdown(context.Background())
	case err := <-loopErrCh:
		if err != nil {
			if errcode.Of(err).Disposition() == errcode.Watchdog {
				log.WithError(err).Error("real-time loop exited: ethercat connection lost beyond watchdog threshold")
				os.Exit(2)
			}
			log.WithError(err).Error("real-time loop exited with an unrecoverable error")
			os.Exit(1)
		}
	}
}
