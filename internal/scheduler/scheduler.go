package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cyberxapi/gdrive-storage-api/internal/metrics"
	"github.com/cyberxapi/gdrive-storage-api/pkg/notification"
	"github.com/robfig/cron/v3"
)

// Job names registered by Start
const (
	JobCredentialProbe = "credential_probe"
	JobHistoryPrune    = "history_prune"
)

const defaultProbeTimeout = 30 * time.Second

var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CredentialProber validates the provider credentials, returning the account they act as
type CredentialProber interface {
	CheckAccess(ctx context.Context) (string, error)
}

// HistoryPruner removes operation history recorded before a cutoff
type HistoryPruner interface {
	DeleteOperationsBefore(cutoff time.Time) (int64, error)
}

// Notifier receives a message when the credential probe starts failing
type Notifier interface {
	Dispatch(data *notification.OperationNotificationData)
}

// Service handles scheduled maintenance jobs
type Service struct {
	cron     *cron.Cron
	config   Config
	prober   CredentialProber
	pruner   HistoryPruner
	notifier Notifier
	metrics  *metrics.Metrics
	mutex    sync.RWMutex
	jobs     map[string]cron.EntryID

	lastProbeOK *bool
}

// NewService creates a new scheduler service. A nil prober or pruner disables its job.
func NewService(config Config, prober CredentialProber, pruner HistoryPruner, notifier Notifier, m *metrics.Metrics) *Service {
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = defaultProbeTimeout
	}

	return &Service{
		cron:     cron.New(cron.WithSeconds()),
		config:   config,
		prober:   prober,
		pruner:   pruner,
		notifier: notifier,
		metrics:  m,
		jobs:     make(map[string]cron.EntryID),
	}
}

type plannedJob struct {
	name string
	spec string
	fn   func()
}

// plannedJobs lists the jobs whose dependency and schedule are configured
func (s *Service) plannedJobs() []plannedJob {
	var jobs []plannedJob
	if s.prober != nil && s.config.CredentialProbe != "" {
		jobs = append(jobs, plannedJob{JobCredentialProbe, s.config.CredentialProbe, s.runCredentialProbe})
	}
	if s.pruner != nil && s.config.HistoryPrune != "" && s.config.HistoryRetention > 0 {
		jobs = append(jobs, plannedJob{JobHistoryPrune, s.config.HistoryPrune, s.runHistoryPrune})
	}
	return jobs
}

// Start registers the configured jobs and starts the scheduler
func (s *Service) Start() error {
	for _, job := range s.plannedJobs() {
		if err := s.AddJob(job.name, job.spec, job.fn); err != nil {
			return err
		}
	}

	s.cron.Start()
	log.Printf("Scheduler started with %d jobs", len(s.GetScheduledJobs()))
	return nil
}

// Planned returns the jobs Start registers with their next run time, without starting anything
func (s *Service) Planned() ([]JobInfo, error) {
	var jobs []JobInfo
	for _, job := range s.plannedJobs() {
		next, err := GetNextRunTimes(job.spec, 1)
		if err != nil {
			return nil, fmt.Errorf("invalid schedule for job '%s': %w", job.name, err)
		}
		jobs = append(jobs, JobInfo{Name: job.name, Spec: job.spec, Next: next[0]})
	}
	return jobs, nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (s *Service) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

// AddJob adds or replaces a named job
func (s *Service) AddJob(name, spec string, fn func()) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	// Remove existing job if it exists
	if entryID, exists := s.jobs[name]; exists {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
	}

	entryID, err := s.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("failed to add cron job '%s': %w", name, err)
	}

	s.jobs[name] = entryID
	log.Printf("Added scheduled job '%s' with schedule '%s'", name, spec)

	return nil
}

// GetScheduledJobs returns information about currently scheduled jobs
func (s *Service) GetScheduledJobs() []JobInfo {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var jobs []JobInfo
	for name, entryID := range s.jobs {
		entry := s.cron.Entry(entryID)
		jobs = append(jobs, JobInfo{
			Name:     name,
			EntryID:  entryID,
			Next:     entry.Next,
			Previous: entry.Prev,
		})
	}

	return jobs
}

// ProbeCredentials runs the credential check once and updates the credentials gauge
func (s *Service) ProbeCredentials(ctx context.Context) (string, error) {
	if s.prober == nil {
		return "", fmt.Errorf("credential probe is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.ProbeTimeout)
	defer cancel()

	started := time.Now()
	account, err := s.prober.CheckAccess(ctx)
	s.metrics.SetCredentialsValid(err == nil)

	s.mutex.Lock()
	wasOK := s.lastProbeOK == nil || *s.lastProbeOK
	ok := err == nil
	s.lastProbeOK = &ok
	s.mutex.Unlock()

	if err != nil {
		if wasOK && s.notifier != nil {
			s.notifier.Dispatch(&notification.OperationNotificationData{
				Operation:    JobCredentialProbe,
				ErrorMessage: err.Error(),
				StartedAt:    started,
				CompletedAt:  time.Now(),
			})
		}
		return "", err
	}

	return account, nil
}

// PruneHistory deletes history entries older than the configured retention
func (s *Service) PruneHistory() (int64, error) {
	if s.pruner == nil || s.config.HistoryRetention <= 0 {
		return 0, nil
	}

	cutoff := time.Now().Add(-s.config.HistoryRetention)
	return s.pruner.DeleteOperationsBefore(cutoff)
}

func (s *Service) runCredentialProbe() {
	account, err := s.ProbeCredentials(context.Background())
	if err != nil {
		log.Printf("Credential probe failed: %v", err)
		return
	}
	log.Printf("Credential probe succeeded for %s", account)
}

func (s *Service) runHistoryPrune() {
	deleted, err := s.PruneHistory()
	if err != nil {
		log.Printf("Failed to prune operation history: %v", err)
		return
	}
	log.Printf("Pruned %d operation history entries", deleted)
}

// ValidateCronExpression validates a cron expression
func ValidateCronExpression(expr string) error {
	_, err := parser.Parse(expr)
	return err
}

// GetNextRunTimes returns the next N run times for a cron expression
func GetNextRunTimes(cronExpr string, count int) ([]time.Time, error) {
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, err
	}

	var times []time.Time
	now := time.Now()

	for i := 0; i < count; i++ {
		now = schedule.Next(now)
		times = append(times, now)
	}

	return times, nil
}
