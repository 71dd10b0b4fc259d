// Package app wires the dashboard together and owns its lifecycle.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"nse-alerts-dashboard/api"
	"nse-alerts-dashboard/auth"
	"nse-alerts-dashboard/backend"
	"nse-alerts-dashboard/cache"
	"nse-alerts-dashboard/config"
	"nse-alerts-dashboard/handlers"
	"nse-alerts-dashboard/jobs"
	"nse-alerts-dashboard/notify"
	"nse-alerts-dashboard/realtime"
	"nse-alerts-dashboard/schedtask"
	"nse-alerts-dashboard/store"
	"nse-alerts-dashboard/view"
	"nse-alerts-dashboard/websocket"
)

// App represents the dashboard application.
type App struct {
	config *config.Config

	redis    *cache.RedisClient
	creds    *auth.CredentialStore
	guard    *auth.Guard
	totp     *auth.TOTPEntry
	client   *backend.Client
	broker   *realtime.Broker
	notifier *notify.Notifier

	messages *store.Announcements
	metrics  *store.Metrics
	analyses *store.Analyses

	selector *view.Selector
	filterMu sync.Mutex
	filter   view.Filter

	tracker   *jobs.Tracker
	recorder  *schedtask.Recorder
	push      *handlers.Dashboard
	channel   *websocket.Channel
	apiServer *api.Server
}

// New creates the application instance. Connections are established in Start.
func New(cfg *config.Config) *App {
	return &App{
		config:   cfg,
		messages: store.NewAnnouncements(),
		metrics:  store.NewMetrics(),
		analyses: store.NewAnalyses(),
		selector: view.NewSelector(),
	}
}

// Start runs the application until a shutdown signal or session expiry.
func (a *App) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Redis connection (persisted client-side state)
	log.Println("🧠 Connecting to Redis...")
	a.redis = cache.NewRedisClient(a.config.RedisHost, a.config.RedisPort, a.config.RedisPassword)
	if a.redis == nil {
		return fmt.Errorf("redis connection failed, persisted state unavailable")
	}

	// 2. Display surface
	a.broker = realtime.NewBroker()
	go a.broker.Run(ctx)

	a.notifier = notify.New(a.broker)
	go a.notifier.Run(ctx)

	// 3. Session guard. A missing or rejected credential halts startup;
	// expiry at runtime cancels the root context.
	a.creds = auth.NewCredentialStore(a.redis)
	a.client = backend.NewClient(a.config.APIBaseURL, a.creds.Token)
	a.guard = auth.NewGuard(a.client, a.creds, a.broker, a.config.SessionCheckInterval, cancel)
	if err := a.guard.Start(ctx); err != nil {
		return fmt.Errorf("session check failed: %w", err)
	}
	log.Println("✅ Session verified")

	a.totp = auth.NewTOTPEntry(a.client, a.broker, a.config.TOTPDebounce)
	a.totp.RestoreSessionState(ctx)

	// 4. Domain components
	a.tracker = jobs.NewTracker(a.client, a.broker, a.notifier, a.config.JobPollInterval, a.config.JobMaxPollAttempts)
	a.recorder = schedtask.NewRecorder(a.redis, a.broker, a.notifier, a.config.ScheduledTaskName)
	a.recorder.Restore(ctx)

	// 5. Initial bulk loads. Failures degrade to empty tables; the push
	// channel repairs state once it connects.
	a.loadInitialData(ctx)

	// 6. Push channel
	dispatcher := handlers.NewDispatcher()
	a.push = handlers.NewDashboard(a.messages, a.metrics, a.analyses, a.tracker, a.recorder, a.notifier, a, a.broker)
	a.push.Register(dispatcher)

	a.channel = websocket.NewChannel(a.config.WSURL, a.creds.Token, dispatcher.Dispatch, a.broker, a.config.ReconnectDelay)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.channel.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.guard.Run(ctx)
	}()

	// 7. HTTP surface (SSE stream + control endpoints)
	a.apiServer = api.NewServer(a.broker, a, a.tracker, a.totp, a.guard, a.notifier)
	go func() {
		if err := a.apiServer.Start(a.config.ListenAddr); err != nil {
			log.Printf("⚠️  API server failed: %v", err)
			cancel()
		}
	}()

	err := a.waitForShutdown(ctx, cancel)
	wg.Wait()
	return err
}

// loadInitialData fetches the message backlog and financial metrics once at
// startup.
func (a *App) loadInitialData(ctx context.Context) {
	msgs, err := a.client.FetchMessages(ctx, a.config.MessageLimit)
	if err != nil {
		log.Printf("⚠️  Initial message load failed: %v", err)
	} else {
		a.messages.ReplaceAll(msgs)
		log.Printf("📥 Loaded %d announcements", len(msgs))
	}
	a.RenderMessages()

	metrics, err := a.client.FetchFinancialMetrics(ctx)
	if err != nil {
		log.Printf("⚠️  Initial metrics load failed: %v", err)
	} else {
		a.metrics.ReplaceAll(metrics)
		log.Printf("📥 Loaded %d financial metrics", len(metrics))
	}
	a.RenderMetrics()
	a.RenderAnalyses()
}

// waitForShutdown blocks until an interrupt arrives or the root context is
// cancelled (session expiry, API server failure), then shuts down with a
// timeout.
func (a *App) waitForShutdown(ctx context.Context, cancel context.CancelFunc) error {
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	select {
	case <-interrupt:
		fmt.Println("\n🛑 Shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Println("🛑 Shutting down...")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	shutdownComplete := make(chan struct{})
	go func() {
		a.tracker.Shutdown()
		if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("⚠️  API server shutdown: %v", err)
		}
		if err := a.redis.Close(); err != nil {
			log.Printf("⚠️  Redis close: %v", err)
		}
		close(shutdownComplete)
	}()

	select {
	case <-shutdownComplete:
		log.Println("✅ Graceful shutdown complete")
		return nil
	case <-shutdownCtx.Done():
		log.Println("⚠️  Shutdown timed out")
		return shutdownCtx.Err()
	}
}

// currentFilter returns a copy of the active message filter.
func (a *App) currentFilter() view.Filter {
	a.filterMu.Lock()
	defer a.filterMu.Unlock()
	return a.filter
}

// RenderMessages publishes the filtered announcement table and its stats.
func (a *App) RenderMessages() {
	snapshot := a.messages.Snapshot()
	table := view.ProjectMessages(snapshot, a.currentFilter())
	a.broker.Publish(realtime.EventMessages, table)
	a.broker.Publish(realtime.EventMessageStats, a.messages.Stats())
}

// RenderMetrics publishes the financial metrics table.
func (a *App) RenderMetrics() {
	a.broker.Publish(realtime.EventFinancialMetrics, view.ProjectMetrics(a.metrics.Snapshot(), 0))
}

// RenderAnalyses publishes the analysis results table.
func (a *App) RenderAnalyses() {
	a.broker.Publish(realtime.EventAnalysisResults, view.ProjectAnalyses(a.analyses.Snapshot(), 0))
}

// SelectView switches the active view and triggers the selection's on-demand
// data load.
func (a *App) SelectView(name string) {
	sel := view.Selection(name)
	visibility := a.selector.Select(sel)
	a.broker.Publish(realtime.EventViewSelection, visibility)

	switch sel {
	case view.SelectionResultConcall:
		if a.metrics.Len() == 0 {
			go a.refreshMetrics()
		}
	case view.SelectionPlaceOrder:
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := a.LoadOrderSheet(ctx); err != nil {
				log.Printf("⚠️  Order sheet load failed: %v", err)
			}
		}()
	}

	if sel.ShowsAnnouncements() {
		// Option selections narrow the announcement table to their tag.
		a.filterMu.Lock()
		if sel == view.SelectionAll {
			a.filter.Option = ""
		} else {
			a.filter.Option = name
		}
		a.filterMu.Unlock()
		a.RenderMessages()
	}
}

// SetFilter replaces the announcement filter and re-renders.
func (a *App) SetFilter(symbol, option string, limit int) {
	a.filterMu.Lock()
	a.filter = view.Filter{Symbol: symbol, Option: option, Limit: limit}
	a.filterMu.Unlock()
	a.RenderMessages()
}

func (a *App) refreshMetrics() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	metrics, err := a.client.FetchFinancialMetrics(ctx)
	if err != nil {
		log.Printf("⚠️  Metrics refresh failed: %v", err)
		return
	}
	a.metrics.ReplaceAll(metrics)
	a.RenderMetrics()
}

// LoadOrderSheet fetches the order sheet and publishes its projection.
func (a *App) LoadOrderSheet(ctx context.Context) error {
	columns, rows, err := a.client.FetchOrderSheet(ctx)
	if err != nil {
		return fmt.Errorf("order sheet fetch failed: %w", err)
	}

	a.broker.Publish(realtime.EventOrderSheet, view.ProjectSheet(columns, rows))
	return nil
}

// Analyze uploads a document to the analyzer and folds the returned figures
// into the analysis store.
func (a *App) Analyze(ctx context.Context, filename string, file io.Reader) error {
	a.broker.Publish(realtime.EventAnalysisStatus, map[string]string{
		"level":   string(notify.CategoryProgress),
		"message": "Analyzing " + filename + "...",
	})

	payload, err := a.client.AnalyzeDocument(ctx, filename, file)
	if err != nil {
		a.broker.Publish(realtime.EventAnalysisStatus, map[string]string{
			"level":   string(notify.CategoryError),
			"message": err.Error(),
		})
		return err
	}

	a.push.ApplyAnalysis(*payload)
	return nil
}
