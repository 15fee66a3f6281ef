package httpapi

import (
	"context"
	_ "embed"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	relay "github.com/grupoevolution/perfect-webhook-system"
	"github.com/grupoevolution/perfect-webhook-system/correlator"
	"github.com/grupoevolution/perfect-webhook-system/dispatcher"
	"github.com/grupoevolution/perfect-webhook-system/journal"
	"github.com/grupoevolution/perfect-webhook-system/logging"
	"github.com/grupoevolution/perfect-webhook-system/metrics"
	"github.com/grupoevolution/perfect-webhook-system/pending"
)

//go:embed dashboard.html
var dashboardHTML []byte

// Relay is the correlation surface the transport drives.
type Relay interface {
	Handle(ctx context.Context, n relay.Notification) correlator.Ack
	Pending() []pending.Pending
	PendingCount() int
}

// Target exposes the runtime downstream URL.
type Target interface {
	URL() string
	Set(raw string) error
}

// StatsSource reports dispatch totals.
type StatsSource interface {
	Stats() dispatcher.Stats
}

// JournalReader lists recent diagnostic entries.
type JournalReader interface {
	Entries(limit int) []journal.Entry
}

// Server is the relay HTTP surface.
type Server struct {
	router *gin.Engine

	relay   Relay
	target  Target
	stats   StatsSource
	journal JournalReader
	sink    journal.Sink

	logger   logging.Logger
	metrics  metrics.Metrics
	gatherer prometheus.Gatherer
	now      func() time.Time

	readTimeout     time.Duration
	writeTimeout    time.Duration
	shutdownTimeout time.Duration
	maxBodyBytes    int64
}

// NewServer builds the router around r.
func NewServer(r Relay, opts ...Option) *Server {
	s := &Server{
		relay:           r,
		logger:          logging.Discard(),
		metrics:         metrics.Noop(),
		sink:            journal.Discard(),
		now:             time.Now,
		readTimeout:     15 * time.Second,
		writeTimeout:    30 * time.Second,
		shutdownTimeout: 15 * time.Second,
		maxBodyBytes:    1 << 20,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	router := gin.New()
	router.Use(
		s.recovery(),
		s.requestID(),
		s.instrument(),
		s.accessLog(),
	)

	router.GET("/", s.handleDashboard)
	router.POST("/webhook/perfect", s.handleWebhook)
	router.GET("/status", s.handleStatus)
	router.POST("/config/n8n-url", s.handleConfigURL)
	router.GET("/health", s.handleHealth)
	router.GET("/logs", s.handleLogs)
	if s.gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	s.router = router
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening on %s", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
