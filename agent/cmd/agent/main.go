package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/linkwatch/linkwatch/agent/internal/api"
	"github.com/linkwatch/linkwatch/agent/internal/apiclient"
	"github.com/linkwatch/linkwatch/agent/internal/compute"
	"github.com/linkwatch/linkwatch/agent/internal/config"
	"github.com/linkwatch/linkwatch/agent/internal/logger"
	"github.com/linkwatch/linkwatch/agent/internal/pinger"
	"github.com/linkwatch/linkwatch/agent/internal/prober"
	"github.com/linkwatch/linkwatch/agent/internal/registry"
	"github.com/linkwatch/linkwatch/agent/internal/runner"
	"github.com/linkwatch/linkwatch/agent/internal/sampler"
	"github.com/linkwatch/linkwatch/agent/internal/shipper"
	"github.com/linkwatch/linkwatch/agent/internal/spool"
	"github.com/linkwatch/linkwatch/agent/internal/status"
	"github.com/linkwatch/linkwatch/agent/internal/ws"
)

const (
	shutdownTimeout = 5 * time.Second

	// statusTTL hides services that stopped reporting, e.g. after removal
	// from the registry.
	statusTTL = time.Hour
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "linkwatch-agent: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "linkwatch-agent: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *configPath, log); err != nil {
		log.Error().Err(err).Msg("agent exited")
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, log zerolog.Logger) error {
	a := cfg.Agent
	log.Info().
		Str("config", configPath).
		Str("monitor_id", a.MonitorID).
		Str("server_url", a.ServerURL).
		Str("interface", a.Interface).
		Str("registry", a.Registry).
		Str("transport", a.Transport.Type).
		Dur("sample_interval", a.SampleInterval).
		Msg("linkwatch-agent starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The server client is shared by the HTTP transport and the server registry.
	var client *apiclient.Client
	if a.ServerURL != "" {
		c, err := apiclient.New(a)
		if err != nil {
			return err
		}
		client = c
	}

	// Sink stack: queue → transport → shipper.
	queue, closeQueue, err := buildQueue(a, logger.Component(log, "spool"))
	if err != nil {
		return err
	}
	defer closeQueue()

	transport, err := buildTransport(a, client, logger.Component(log, "shipper"))
	if err != nil {
		return err
	}
	defer transport.Close() //nolint:errcheck

	ship := shipper.New(a.MonitorID, queue, transport, logger.Component(log, "shipper"))

	// Registry.
	var (
		reg     prober.Registry
		fileReg *registry.File
	)
	switch a.Registry {
	case config.RegistryFile:
		fileReg = registry.NewFile(a.Services)
		reg = fileReg
	default:
		reg = registry.NewServer(client, a.MonitorID, logger.Component(log, "registry"))
	}

	store := status.New(a.MonitorID, statusTTL, logger.Component(log, "status"))

	// Sampler and runner. The runner doubles as the prober's sink so check
	// results reach the status store.
	src, err := sampler.New(a, logger.Component(log, "sampler"))
	if err != nil {
		return err
	}
	detector := compute.NewDetector(logger.Component(log, "detector"))
	loop := runner.New(src, detector, ship, store, a.SampleInterval, logger.Component(log, "runner"))

	checkers := prober.DefaultCheckers(prober.CheckerOptions{
		InsecureSkipVerify: a.Probe.InsecureSkipVerify,
		Ping:               pinger.ExecRunner,
	})
	probe := prober.New(reg, loop, checkers, prober.Options{
		PollInterval: a.PollInterval,
		FetchBackoff: a.FetchBackoff,
	}, logger.Component(log, "prober"))

	var wg sync.WaitGroup
	spawn := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	spawn(ship.Run)
	spawn(func(ctx context.Context) { ship.RunHeartbeat(ctx, a.HeartbeatInterval) })
	spawn(probe.Run)
	spawn(loop.Run)
	spawn(store.Run)

	// Local status API.
	var srv *http.Server
	if a.Listen != "" {
		hub := ws.New(store, ws.DefaultInterval, logger.Component(log, "ws"))
		spawn(hub.Run)

		srv = &http.Server{
			Addr:              a.Listen,
			Handler:           api.New(store, hub, ship.QueueDepth),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info().Str("addr", a.Listen).Msg("status api listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("status api stopped")
			}
		}()
	}

	// Config watcher. Only the static service list is hot-reloaded.
	go func() {
		watchLog := logger.Component(log, "config")
		err := config.Watch(ctx, configPath, watchLog, func(updated *config.Config) {
			if fileReg != nil {
				fileReg.OnConfig(updated)
			}
			watchLog.Info().Int("services", len(updated.Agent.Services)).Msg("config hot-reloaded")
		})
		if err != nil {
			watchLog.Error().Err(err).Msg("config watcher stopped")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("linkwatch-agent shutting down")

	if srv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		_ = srv.Shutdown(sctx)
	}
	wg.Wait()
	probe.Wait()
	return nil
}

// buildQueue returns the SQLite outbox when a path is configured, otherwise
// the in-memory queue.
func buildQueue(a config.AgentConfig, log zerolog.Logger) (shipper.Queue, func(), error) {
	if a.Outbox.Path == "" {
		return shipper.NewMemQueue(a.BufferSize, log), func() {}, nil
	}
	ob, err := spool.Open(a.Outbox.Path, a.Outbox.MaxRows, log)
	if err != nil {
		return nil, nil, err
	}
	return ob, func() {
		if err := ob.Close(); err != nil {
			log.Warn().Err(err).Msg("close outbox")
		}
	}, nil
}

func buildTransport(a config.AgentConfig, client *apiclient.Client, log zerolog.Logger) (shipper.Transport, error) {
	switch a.Transport.Type {
	case config.TransportNATS:
		return shipper.NewNATSTransport(a.Transport.NATSURL, a.Transport.SubjectPrefix, a.MonitorID, log)
	default:
		if client == nil {
			return nil, fmt.Errorf("http transport requires agent.server_url")
		}
		return shipper.NewHTTPTransport(client, log), nil
	}
}
