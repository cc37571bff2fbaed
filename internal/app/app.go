// Package app wires all Calliope subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the device gateway until the context is cancelled,
// and Shutdown tears everything down in order.
//
// For testing, inject doubles via functional options (WithDialogueStore,
// WithMetrics). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/calliope-voice/calliope/internal/config"
	"github.com/calliope-voice/calliope/internal/health"
	"github.com/calliope-voice/calliope/internal/observe"
	"github.com/calliope-voice/calliope/internal/server"
	"github.com/calliope-voice/calliope/internal/store"
	"github.com/calliope-voice/calliope/internal/store/memstore"
	"github.com/calliope-voice/calliope/internal/store/postgres"
	"github.com/calliope-voice/calliope/internal/transcript"
	"github.com/calliope-voice/calliope/pkg/provider/asr"
	"github.com/calliope-voice/calliope/pkg/provider/llm"
	"github.com/calliope-voice/calliope/pkg/provider/tts"
	"github.com/calliope-voice/calliope/pkg/provider/vad"
)

// httpShutdownTimeout bounds the graceful drain of in-flight requests when
// Run's context is cancelled.
const httpShutdownTimeout = 10 * time.Second

// Providers holds one interface value per provider slot. All four are
// required for a dialogue turn. Populated by main.go via the config registry.
type Providers struct {
	VAD vad.Engine
	ASR asr.Provider
	LLM llm.Provider
	TTS tts.Provider
}

// App owns all subsystem lifetimes and serves the Calliope device gateway.
type App struct {
	cfg       *config.Config
	providers *Providers

	dialogue  store.DialogueStore
	corrector *transcript.Corrector
	metrics   *observe.Metrics
	gateway   *server.Server
	httpSrv   *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithDialogueStore injects a dialogue store instead of creating one from
// config.
func WithDialogueStore(s store.DialogueStore) Option {
	return func(a *App) { a.dialogue = s }
}

// WithMetrics injects a metrics bundle instead of initialising the global
// telemetry provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: config must not be nil")
	}
	if providers == nil || providers.VAD == nil || providers.ASR == nil || providers.LLM == nil || providers.TTS == nil {
		return nil, fmt.Errorf("app: vad, asr, llm and tts providers are all required")
	}

	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	if err := a.initDialogueStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init dialogue store: %w", err)
	}
	a.initCorrector()
	if err := a.initGateway(); err != nil {
		return nil, fmt.Errorf("app: init gateway: %w", err)
	}
	a.initHTTPServer()

	return a, nil
}

// initTelemetry installs the global OTel meter provider with a Prometheus
// exporter, unless a metrics bundle was injected.
func (a *App) initTelemetry(ctx context.Context) error {
	if a.metrics != nil {
		return nil
	}

	shutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdown(ctx)
	})

	a.metrics = observe.DefaultMetrics()
	return nil
}

// initDialogueStore connects to PostgreSQL when a DSN is configured and falls
// back to the in-memory store otherwise.
func (a *App) initDialogueStore(ctx context.Context) error {
	if a.dialogue != nil {
		return nil
	}

	dsn := a.cfg.Dialogue.PostgresDSN
	if dsn == "" {
		slog.Info("no postgres_dsn configured, using in-memory dialogue store")
		a.dialogue = memstore.New()
		return nil
	}

	pg, err := postgres.New(ctx, dsn)
	if err != nil {
		return err
	}
	a.dialogue = pg
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	slog.Info("connected to postgres dialogue store")
	return nil
}

// initCorrector builds the hotword corrector when hotwords are configured.
func (a *App) initCorrector() {
	if len(a.cfg.Pipeline.Hotwords) == 0 {
		return
	}
	a.corrector = transcript.NewCorrector(a.cfg.Pipeline.Hotwords)
	slog.Info("hotword correction enabled", "hotwords", len(a.cfg.Pipeline.Hotwords))
}

// initGateway creates the WebSocket device gateway.
func (a *App) initGateway() error {
	gw, err := server.New(a.cfg, server.Deps{
		VAD:       a.providers.VAD,
		ASR:       a.providers.ASR,
		LLM:       a.providers.LLM,
		TTS:       a.providers.TTS,
		Store:     a.dialogue,
		Corrector: a.corrector,
		Metrics:   a.metrics,
	})
	if err != nil {
		return err
	}
	a.gateway = gw
	return nil
}

// initHTTPServer assembles the HTTP mux: the device gateway on /ws, the
// Prometheus scrape endpoint on /metrics, and health probes.
func (a *App) initHTTPServer() {
	mux := http.NewServeMux()
	mux.Handle("/ws", a.gateway.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())

	h := health.New(health.Checker{
		Name: "dialogue_store",
		Check: func(ctx context.Context) error {
			_, err := a.dialogue.History(ctx, "readyz-probe", 1)
			return err
		},
	})
	h.Register(mux)

	a.httpSrv = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Handler returns the fully assembled HTTP handler. Exposed for tests that
// serve the app via httptest instead of binding the configured address.
func (a *App) Handler() http.Handler {
	return a.httpSrv.Handler
}

// Run serves the gateway and blocks until ctx is cancelled or the listener
// fails. On cancellation, in-flight requests are drained before returning
// ctx.Err().
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			slog.Info("gateway listening", "addr", a.httpSrv.Addr, "tls", true)
			err = a.httpSrv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			slog.Info("gateway listening", "addr", a.httpSrv.Addr)
			err = a.httpSrv.ListenAndServe()
		}
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-ctx.Done()
		drainCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
		defer cancel()
		if err := a.httpSrv.Shutdown(drainCtx); err != nil {
			slog.Warn("http shutdown error", "err", err)
		}
		return ctx.Err()
	})

	return g.Wait()
}

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
