package gdrivestorage

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/cyberxapi/gdrive-storage-api/internal/auth"
	"github.com/cyberxapi/gdrive-storage-api/internal/config"
	"github.com/cyberxapi/gdrive-storage-api/internal/database"
	"github.com/cyberxapi/gdrive-storage-api/internal/metrics"
	"github.com/cyberxapi/gdrive-storage-api/internal/relay"
	"github.com/cyberxapi/gdrive-storage-api/internal/scheduler"
	"github.com/cyberxapi/gdrive-storage-api/internal/server"
	"github.com/cyberxapi/gdrive-storage-api/internal/tracing"
	"github.com/cyberxapi/gdrive-storage-api/pkg/gdrive"
	"github.com/cyberxapi/gdrive-storage-api/pkg/notification"
	"github.com/prometheus/client_golang/prometheus/collectors"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Version is reported by the root endpoint and the version command
const Version = "1.0.0"

// Manager owns every long lived component of the storage API
type Manager struct {
	config           config.Config
	gate             *auth.Gate
	authService      *auth.Service
	driveService     *gdrive.Service
	dbService        *database.Service
	notifications    *notification.Manager
	schedulerService *scheduler.Service
	metrics          *metrics.Metrics
	tracerProvider   *sdktrace.TracerProvider
	relay            *relay.Relay
	server           *server.Server
}

// NewManager validates cfg and wires the relay, its stores and the HTTP server
func NewManager(ctx context.Context, cfg config.Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	m := &Manager{
		config: cfg,
		gate:   auth.NewGate(cfg.APIKey),
	}

	if cfg.Tracing.Enabled {
		tp, err := tracing.SetupTracerProvider(ctx, tracing.Config{
			Enabled:     cfg.Tracing.Enabled,
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
			SampleRatio: cfg.Tracing.SampleRatio,
		}, Version)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		m.tracerProvider = tp
	}

	if cfg.Metrics.Enabled {
		m.metrics = metrics.New()
		m.metrics.Registry().MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	var authOpts []auth.Option
	if cfg.Tracing.Enabled {
		authOpts = append(authOpts, auth.WithBaseClient(&http.Client{
			Transport: tracing.Transport(http.DefaultTransport),
		}))
	}
	m.authService = auth.NewService(cfg.CredentialsJSON(), authOpts...)
	m.driveService = gdrive.NewService(m.authService,
		gdrive.WithUploadChunkSize(cfg.Drive.UploadChunkSize),
		gdrive.WithDownloadChunkSize(cfg.Drive.DownloadChunkSize),
	)

	if cfg.History.Enabled {
		dbConfig := cfg.DatabaseConfig()
		dbService, err := database.NewService(&dbConfig)
		if err != nil {
			m.shutdownTracing()
			return nil, fmt.Errorf("failed to initialize database service: %w", err)
		}
		m.dbService = dbService
	}

	notifications, err := notification.NewManager(cfg.Notifications)
	if err != nil {
		m.closeDatabase()
		m.shutdownTracing()
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}
	m.notifications = notifications

	relayOpts := []relay.Option{
		relay.WithNotifier(m.notifications),
		relay.WithMetrics(m.metrics),
	}
	var pruner scheduler.HistoryPruner
	if m.dbService != nil {
		relayOpts = append(relayOpts, relay.WithHistory(m.dbService))
		pruner = m.dbService
	}
	m.schedulerService = scheduler.NewService(cfg.SchedulerJobs(), m.driveService, pruner, m.notifications, m.metrics)

	m.relay = relay.New(m.gate, m.driveService, relayOpts...)
	m.server = server.New(m.relay, server.Config{
		Version:      Version,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
		Metrics:      m.metrics,
		Tracing:      cfg.Tracing.Enabled,
	})

	return m, nil
}

// Initialize reports configuration problems that do not stop the service and starts the scheduler
func (m *Manager) Initialize() error {
	log.Println("Initializing storage API...")

	if !m.gate.Enabled() {
		log.Println("API_KEY is not set, every request will be rejected")
	}
	info, err := m.authService.GetCredentialInfo()
	switch {
	case err != nil:
		log.Printf("Service account credentials are unreadable: %v", err)
	case !info.HasCredentials:
		log.Printf("%v, Drive operations will fail", auth.ErrCredentialsMissing)
	default:
		log.Printf("Using service account %s", info.ClientEmail)
	}

	if m.config.Scheduler.Enabled {
		if err := m.schedulerService.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	} else {
		log.Println("Scheduler is disabled")
	}

	log.Println("Storage API initialized successfully")
	return nil
}

// Handler returns the HTTP handler serving the API
func (m *Manager) Handler() http.Handler {
	return m.server.Handler()
}

// Run serves HTTP until ctx is cancelled, then shuts the listener down gracefully
func (m *Manager) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.server.Start(m.config.Server.Address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := m.config.Server.ShutdownTimeoutDuration()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Println("Shutting down HTTP server...")
	if err := m.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	return <-errCh
}

// CheckCredentials verifies the service account can reach Drive and returns its email
func (m *Manager) CheckCredentials(ctx context.Context) (string, error) {
	return m.driveService.CheckAccess(ctx)
}

// CredentialInfo describes the configured service account
func (m *Manager) CredentialInfo() (*auth.CredentialInfo, error) {
	return m.authService.GetCredentialInfo()
}

// History returns recorded operations, newest first
func (m *Manager) History(limit, offset int) ([]database.OperationHistory, int64, error) {
	if m.dbService == nil {
		return nil, 0, fmt.Errorf("operation history is disabled")
	}

	operations, err := m.dbService.GetOperationHistory(limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := m.dbService.CountOperations()
	if err != nil {
		return nil, 0, err
	}
	return operations, total, nil
}

// PruneHistory deletes history older than the configured retention
func (m *Manager) PruneHistory() (int64, error) {
	if m.dbService == nil {
		return 0, fmt.Errorf("operation history is disabled")
	}
	return m.schedulerService.PruneHistory()
}

// CheckHistory pings the history store
func (m *Manager) CheckHistory() error {
	if m.dbService == nil {
		return fmt.Errorf("operation history is disabled")
	}
	return m.dbService.Ping()
}

// PlannedJobs lists the background jobs and their next run, whether or not the scheduler is enabled
func (m *Manager) PlannedJobs() ([]scheduler.JobInfo, error) {
	return m.schedulerService.Planned()
}

// TestNotification sends a test message through one configured channel
func (m *Manager) TestNotification(name string) error {
	return m.notifications.TestNotification(name)
}

// Close stops background work and releases the history store and tracer
func (m *Manager) Close() error {
	log.Println("Shutting down storage API...")

	m.schedulerService.Stop()
	m.notifications.Wait()

	if err := m.closeDatabase(); err != nil {
		return fmt.Errorf("failed to close database service: %w", err)
	}
	if err := m.shutdownTracing(); err != nil {
		return fmt.Errorf("failed to shut down tracer provider: %w", err)
	}

	log.Println("Storage API shut down successfully")
	return nil
}

func (m *Manager) closeDatabase() error {
	if m.dbService == nil {
		return nil
	}
	return m.dbService.Close()
}

func (m *Manager) shutdownTracing() error {
	if m.tracerProvider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.tracerProvider.Shutdown(ctx)
}
