package cron

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stgeorges/biolms/model"
	"gorm.io/gorm"
)

// Job is a scheduled maintenance task. Every run is recorded in
// cron_job_logs with its outcome.
type Job struct {
	Name     string
	Schedule string // Standard 5-field cron expression
	Run      func(ctx context.Context) (string, error)
}

// Manager owns the cron scheduler and the run log
type Manager struct {
	cron *cron.Cron
	db   *gorm.DB
	jobs []Job
}

// NewManager creates a cron manager with the given jobs registered
func NewManager(db *gorm.DB, jobs []Job) *Manager {
	return &Manager{
		cron: cron.New(),
		db:   db,
		jobs: jobs,
	}
}

// Start registers every job with the scheduler and starts it
func (m *Manager) Start() error {
	for _, job := range m.jobs {
		job := job
		_, err := m.cron.AddFunc(job.Schedule, func() {
			m.execute(job)
		})
		if err != nil {
			return err
		}
		log.Printf("Registered cron job %q with schedule %q", job.Name, job.Schedule)
	}
	m.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs to finish
func (m *Manager) Stop() {
	ctx := m.cron.Stop()
	<-ctx.Done()
}

// RunNow executes a job by name outside its schedule. Used by tests and
// the admin trigger endpoint.
func (m *Manager) RunNow(name string) error {
	for _, job := range m.jobs {
		if job.Name == name {
			m.execute(job)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *Manager) execute(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	entry := model.CronJobLog{
		JobName:   job.Name,
		Status:    model.CronJobStatusStarted,
		StartedAt: time.Now(),
	}
	if err := m.db.Create(&entry).Error; err != nil {
		log.Printf("Cron job %q: failed to record start: %v", job.Name, err)
	}

	message, err := job.Run(ctx)
	now := time.Now()
	entry.CompletedAt = &now
	if err != nil {
		entry.Status = model.CronJobStatusFailed
		entry.ErrorMsg = err.Error()
		log.Printf("Cron job %q failed: %v", job.Name, err)
	} else {
		entry.Status = model.CronJobStatusCompleted
		entry.Message = message
		log.Printf("Cron job %q completed: %s", job.Name, message)
	}
	if err := m.db.Save(&entry).Error; err != nil {
		log.Printf("Cron job %q: failed to record outcome: %v", job.Name, err)
	}
}

// RecentLogs returns the latest run records, newest first
func (m *Manager) RecentLogs(ctx context.Context, limit int) ([]model.CronJobLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var logs []model.CronJobLog
	err := m.db.WithContext(ctx).
		Order("started_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}
