package main

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/grupoevolution/perfect-webhook-system/config"
	"github.com/grupoevolution/perfect-webhook-system/correlator"
	"github.com/grupoevolution/perfect-webhook-system/cron"
	"github.com/grupoevolution/perfect-webhook-system/dispatcher"
	"github.com/grupoevolution/perfect-webhook-system/httpapi"
	"github.com/grupoevolution/perfect-webhook-system/journal"
	"github.com/grupoevolution/perfect-webhook-system/logging"
	"github.com/grupoevolution/perfect-webhook-system/metrics"
)

// CLI is the command line surface. Flags and environment override the file.
type CLI struct {
	Config        string        `help:"YAML configuration file." type:"path" env:"RELAY_CONFIG"`
	Addr          string        `help:"Listen address or bare port." env:"PORT"`
	DownstreamURL string        `name:"downstream-url" help:"n8n webhook URL." env:"N8N_WEBHOOK_URL"`
	Delay         time.Duration `help:"Wait before a pending PIX order escalates." env:"PIX_TIMEOUT"`
	LogLevel      string        `name:"log-level" help:"debug, info, warn or error." env:"LOG_LEVEL"`
	LogFormat     string        `name:"log-format" help:"json or text." env:"LOG_FORMAT"`
}

// Resolve loads the file and applies flag overrides.
func (c CLI) Resolve() (config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		return cfg, err
	}
	if addr := strings.TrimSpace(c.Addr); addr != "" {
		if !strings.Contains(addr, ":") {
			addr = ":" + addr
		}
		cfg.Server.Addr = addr
	}
	if c.DownstreamURL != "" {
		cfg.Downstream.URL = c.DownstreamURL
	}
	if c.Delay > 0 {
		cfg.Escalation.Delay = c.Delay
	}
	if c.LogLevel != "" {
		cfg.Log.Level = c.LogLevel
	}
	if c.LogFormat != "" {
		cfg.Log.Format = c.LogFormat
	}
	return cfg, cfg.Validate()
}

func (c CLI) Run(ctx context.Context) error {
	cfg, err := c.Resolve()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, os.Stdout)
	if err != nil {
		return err
	}
	return a.run(ctx)
}

type app struct {
	cfg        config.Config
	logger     logging.Logger
	registry   *prometheus.Registry
	target     *config.Target
	journal    *journal.Journal
	scheduler  *cron.Scheduler
	dispatcher *dispatcher.Dispatcher
	controller *correlator.Controller
	server     *httpapi.Server
}

func newApp(cfg config.Config, out io.Writer) (*app, error) {
	logger := logging.New(out, cfg.Log.Level, cfg.Log.Format)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder, err := metrics.NewRecorder(registry)
	if err != nil {
		return nil, err
	}

	target := config.NewTarget(cfg.Downstream.URL)
	events := journal.New(cfg.Journal.Capacity, journal.WithRetention(cfg.Journal.Retention))

	scheduler := cron.NewScheduler(
		cron.WithLogger(logger.WithFields(map[string]any{"component": "scheduler"})),
		cron.WithErrorHandler(func(err error) {
			logger.Error("scheduled job failed: %v", err)
		}),
	)
	if cfg.Journal.SweepSchedule != "" {
		if _, err := events.ScheduleSweep(scheduler, cfg.Journal.SweepSchedule); err != nil {
			return nil, err
		}
	}

	dispatchOpts := []dispatcher.Option{
		dispatcher.WithTimeout(cfg.Downstream.Timeout),
		dispatcher.WithLogger(logger.WithFields(map[string]any{"component": "dispatcher"})),
		dispatcher.WithJournal(events),
		dispatcher.WithMetrics(recorder),
	}
	if cfg.Downstream.Breaker.Enabled {
		dispatchOpts = append(dispatchOpts,
			dispatcher.WithBreaker(cfg.Downstream.Breaker.MaxFailures, cfg.Downstream.Breaker.OpenTimeout))
	}
	d := dispatcher.NewDispatcher(target, dispatchOpts...)

	controller := correlator.New(d, scheduler,
		correlator.WithDelay(cfg.Escalation.Delay),
		correlator.WithLogger(logger.WithFields(map[string]any{"component": "correlator"})),
		correlator.WithJournal(events),
		correlator.WithMetrics(recorder),
	)

	server := httpapi.NewServer(controller,
		httpapi.WithTarget(target),
		httpapi.WithStats(d),
		httpapi.WithJournal(events),
		httpapi.WithLogger(logger.WithFields(map[string]any{"component": "http"})),
		httpapi.WithMetrics(recorder),
		httpapi.WithGatherer(registry),
		httpapi.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)

	return &app{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		target:     target,
		journal:    events,
		scheduler:  scheduler,
		dispatcher: d,
		controller: controller,
		server:     server,
	}, nil
}

// run serves until ctx is done, then cancels pending escalations and stops
// the scheduler.
func (a *app) run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return err
	}
	if a.target.URL() == "" {
		a.logger.Warn("no downstream url configured, dispatches fail until one is set")
	}
	a.logger.Info("relay starting on %s, escalation delay %s", a.cfg.Server.Addr, a.cfg.Escalation.Delay)
	a.journal.Record(journal.CategoryInfo, "Servidor iniciado", map[string]any{
		"addr":  a.cfg.Server.Addr,
		"delay": a.cfg.Escalation.Delay.String(),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(gctx, a.cfg.Server.Addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		pending := a.controller.PendingCount()
		err := errors.Join(a.controller.Stop(stopCtx), a.scheduler.Stop(stopCtx))
		a.logger.Info("relay stopped, %d pending orders dropped", pending)
		return err
	})
	return g.Wait()
}
