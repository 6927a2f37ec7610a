// Package runtime assembles the daemon: telemetry, the message bus, the
// stores, the capture manager, the providers, and the scribe service, plus
// the health/metrics HTTP endpoints.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scribelabs/scribe-core/internal/bus"
	"github.com/scribelabs/scribe-core/internal/capture"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/natsserver"
	"github.com/scribelabs/scribe-core/internal/note"
	"github.com/scribelabs/scribe-core/internal/runstore"
	"github.com/scribelabs/scribe-core/internal/scribe"
	"github.com/scribelabs/scribe-core/internal/summarize"
	"github.com/scribelabs/scribe-core/internal/template"
	"github.com/scribelabs/scribe-core/internal/transcribe"
	"github.com/scribelabs/scribe-core/internal/vault"
)

// Version is stamped at build time via -ldflags.
var Version = "0.1.0-dev"

type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	ready         atomic.Bool
	wg            sync.WaitGroup

	embedded *natsserver.EmbeddedServer
	busConn  *bus.Client
	runs     *runstore.Store
	service  *scribe.Service
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the daemon up and blocks until ctx is cancelled, then tears
// everything down in reverse order.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	r.embedded = embedded

	busCfg := r.cfg.Bus
	if embedded != nil && len(busCfg.Servers) == 0 {
		busCfg.Servers = []string{embedded.ClientURL()}
	}
	busConn, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	r.busConn = busConn

	runs, err := runstore.Open(ctx, r.cfg.RunStore, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open run store: %w", err)
	}
	r.runs = runs

	v, err := vault.NewDirVault(r.cfg.Notes.VaultDirectory)
	if err != nil {
		return fmt.Errorf("failed to open vault: %w", err)
	}

	templates, err := template.NewStore(r.cfg.Templates.Directory)
	if err != nil {
		return fmt.Errorf("failed to open template store: %w", err)
	}

	transcriber, err := transcribe.New(r.cfg.Transcription)
	if err != nil {
		return fmt.Errorf("failed to build transcriber: %w", err)
	}
	summarizer, err := summarize.New(r.cfg.Summarization)
	if err != nil {
		return fmt.Errorf("failed to build summarizer: %w", err)
	}

	sessions := capture.NewManager(r.deviceFactory(), r.logger)
	assembler := note.NewAssembler(v, transcriber, summarizer, r.cfg.Notes, r.cfg.Transcription.MaxChunkBytes, r.logger)

	r.service = scribe.NewService(ctx, r.cfg, busConn, sessions, assembler, v, templates, runs, r.logger)
	if err := r.service.Start(); err != nil {
		return fmt.Errorf("failed to start scribe service: %w", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	// Metrics scrape endpoint on its own listener so operational traffic
	// stays off the health port.
	if metricHandler != nil {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metricHandler)
		r.metricsServer = &http.Server{
			Addr:              r.cfg.Telemetry.PrometheusBind,
			Handler:           metricsMux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				r.logger.Error("metrics server failed", slog.String("error", err.Error()))
			}
		}()
		r.logger.Info("metrics endpoint started", slog.String("addr", r.cfg.Telemetry.PrometheusBind))
	}

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	r.service.Close()
	if err := r.runs.Close(); err != nil {
		r.logger.Error("run store close error", slog.String("error", err.Error()))
	}
	r.busConn.Close()
	r.embedded.Shutdown()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// deviceFactory picks the capture backend from config. A fresh device is
// created per session; devices are single-use.
func (r *Runtime) deviceFactory() func() (capture.Device, error) {
	cfg := r.cfg.Capture
	if cfg.Mode == "mock" {
		return func() (capture.Device, error) {
			return capture.NewMockDevice(), nil
		}
	}
	return func() (capture.Device, error) {
		return capture.NewExecDevice(cfg)
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if r.busConn.Healthy() && r.service.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("unhealthy"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
