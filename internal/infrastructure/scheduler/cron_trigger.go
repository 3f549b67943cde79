package scheduler

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// VillageProvider provides a list of villages for scheduling
type VillageProvider interface {
	GetAllActiveVillageIDs(ctx context.Context) ([]uuid.UUID, error)
}

// CronTriggerConfig holds configuration for the cron trigger
type CronTriggerConfig struct {
	// DailyRunHour is the hour (0-23) to run the nightly jobs
	DailyRunHour int
	// DailyRunMinute is the minute (0-59) to run the nightly jobs
	DailyRunMinute int

	// CheckInterval is how often to check if it's time to run
	CheckInterval time.Duration
}

// DefaultCronTriggerConfig returns default cron trigger configuration
func DefaultCronTriggerConfig() CronTriggerConfig {
	return CronTriggerConfig{
		DailyRunHour:   2, // 2am
		DailyRunMinute: 0,
		CheckInterval:  time.Minute,
	}
}

// ParseCronSchedule parses a cron expression "minute hour * * *" to extract hour and minute.
// Returns defaults (2:00) if parsing fails or the expression is empty.
func ParseCronSchedule(cronExpr string) (hour, minute int, err error) {
	hour = 2
	minute = 0

	if cronExpr == "" {
		return hour, minute, nil
	}

	parts := strings.Fields(cronExpr)
	if len(parts) < 2 {
		return hour, minute, nil
	}

	if parts[0] != "*" {
		if val, parseErr := strconv.Atoi(parts[0]); parseErr == nil && val >= 0 && val <= 59 {
			minute = val
		}
	}
	if parts[1] != "*" {
		if val, parseErr := strconv.Atoi(parts[1]); parseErr == nil && val >= 0 && val <= 23 {
			hour = val
		}
	}

	return hour, minute, nil
}

// CronTrigger triggers the nightly overdue sweep and trial balance jobs
type CronTrigger struct {
	config          CronTriggerConfig
	scheduler       *Scheduler
	villageProvider VillageProvider
	logger          *zap.Logger

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	mu          sync.Mutex
	isRunning   bool
	lastRunDate string // Track which date we last ran for
}

// NewCronTrigger creates a new cron trigger
func NewCronTrigger(
	config CronTriggerConfig,
	scheduler *Scheduler,
	villageProvider VillageProvider,
	logger *zap.Logger,
) *CronTrigger {
	return &CronTrigger{
		config:          config,
		scheduler:       scheduler,
		villageProvider: villageProvider,
		logger:          logger,
	}
}

// Start starts the cron trigger
func (c *CronTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Cron trigger started",
		zap.Int("daily_hour", c.config.DailyRunHour),
		zap.Int("daily_minute", c.config.DailyRunMinute),
		zap.Duration("check_interval", c.config.CheckInterval),
	)

	return nil
}

// Stop stops the cron trigger
func (c *CronTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("Cron trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runLoop checks periodically if it's time to run the nightly jobs
func (c *CronTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndTrigger(ctx)
		}
	}
}

// checkAndTrigger checks if it's time to run and triggers the nightly jobs
func (c *CronTrigger) checkAndTrigger(ctx context.Context) {
	now := time.Now()
	currentDate := now.Format("2006-01-02")

	// Skip if we already ran today
	c.mu.Lock()
	if c.lastRunDate == currentDate {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	// Check if it's the right time
	if now.Hour() != c.config.DailyRunHour || now.Minute() != c.config.DailyRunMinute {
		return
	}

	// It's time to run!
	c.mu.Lock()
	c.lastRunDate = currentDate
	c.mu.Unlock()

	c.logger.Info("Triggering nightly accounting jobs")
	c.triggerDailyJobs(ctx)
}

// triggerDailyJobs schedules the sweep and per-village trial balance jobs
func (c *CronTrigger) triggerDailyJobs(ctx context.Context) {
	villageIDs, err := c.villageProvider.GetAllActiveVillageIDs(ctx)
	if err != nil {
		c.logger.Error("Failed to get village IDs for nightly jobs", zap.Error(err))
		return
	}

	c.logger.Info("Scheduling nightly jobs for villages",
		zap.Int("village_count", len(villageIDs)),
	)

	if err := c.scheduler.ScheduleDailyJobs(villageIDs); err != nil {
		c.logger.Error("Failed to schedule nightly jobs", zap.Error(err))
	}
}

// TriggerManualRun allows manual triggering of a job outside the nightly schedule
func (c *CronTrigger) TriggerManualRun(ctx context.Context, villageID *uuid.UUID, jobType JobType, asOf time.Time) error {
	return c.scheduler.ScheduleJob(villageID, jobType, asOf)
}
