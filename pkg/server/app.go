package server

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	drepo "AlphaFuse/internal/domain/repository"
	"AlphaFuse/internal/service/marketdata"
	"AlphaFuse/internal/usecase"
	pkgch "AlphaFuse/pkg/clickhouse"
	"AlphaFuse/pkg/config"
	xhttp "AlphaFuse/pkg/http"
	pkgkafka "AlphaFuse/pkg/kafka"
	applogger "AlphaFuse/pkg/logger"
)

// App encapsulates the entire application lifecycle: market data collection,
// the entry decision cycle, the exit sweep, the fills consumer, and the
// operator HTTP surface.
type App struct {
	cfg         *config.Config
	collector   *marketdata.TickCollector
	decisions   *usecase.DecisionCycle
	exits       *usecase.ExitCycle
	consumer    *pkgkafka.Consumer
	fills       pkgkafka.MessageHandler
	sink        drepo.DecisionSink
	chClient    *pkgch.Client
	httpServer  *xhttp.Server
	httpHandler xhttp.Handler
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	collector *marketdata.TickCollector,
	decisions *usecase.DecisionCycle,
	exits *usecase.ExitCycle,
	consumer *pkgkafka.Consumer,
	fills pkgkafka.MessageHandler,
	sink drepo.DecisionSink,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:       cfg,
		collector: collector,
		decisions: decisions,
		exits:     exits,
		consumer:  consumer,
		fills:     fills,
		sink:      sink,
		chClient:  chClient,
	}
}

// SetHTTPHandler allows DI to inject the operator HTTP handler.
func (a *App) SetHTTPHandler(h xhttp.Handler) { a.httpHandler = h }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l, _ := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	)

	// Market data first: decision and exit cycles read prices from its cache.
	go func() {
		if err := a.collector.Start(ctx); err != nil {
			l.Error("collector error", applogger.Error(err))
		}
	}()
	l.Info("market data collector started",
		applogger.Strings("symbols", a.cfg.MarketData.Symbols))

	if a.consumer != nil && a.fills != nil {
		a.consumer.RegisterHandler(a.fills)
		go func() {
			if err := a.consumer.Start(); err != nil {
				l.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		l.Info("fills consumer started", applogger.String("topic", a.fills.Topic()))
	}

	go a.decisions.Run(ctx)
	l.Info("decision cycle started",
		applogger.Duration("interval", a.cfg.Decision.Interval))

	go a.exits.Run(ctx)
	l.Info("exit cycle started",
		applogger.Duration("interval", a.cfg.Exit.Interval))

	if err := a.httpServer.Start(); err != nil {
		l.Error("http server start error", applogger.Error(err))
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	l.Info("shutdown signal received")
	cancel()
	return a.shutdown(context.Background())
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	l, err := applogger.New(&applogger.Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		log.Printf("failed to create logger: %v", err)
		return err
	}
	l.Info("shutting down...")

	// Stop collector (pipeline + stream)
	if err := a.collector.Shutdown(ctx); err != nil {
		l.Warn("collector stop error", applogger.Error(err))
	}

	// Shutdown HTTP server
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if a.httpServer != nil {
		if err := a.httpServer.Stop(shutdownCtx); err != nil {
			l.Error("http shutdown error", applogger.Error(err))
		}
	}

	// Stop consumer before closing the producer-backed sink
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			l.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.sink != nil {
		if err := a.sink.Close(); err != nil {
			l.Warn("decision sink close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			l.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	l.Info("shutdown complete")
	return nil
}
