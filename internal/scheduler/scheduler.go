// Package scheduler runs the recurring pipeline jobs: feed collection,
// edge cache sync, trending refresh and source health audits. Jobs are
// dispatched through a recover wrapper so a panicking job never takes
// the process down, and every run logs its name, elapsed time and
// outcome.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"baobab/internal/collector"
	"baobab/internal/edgesync"
	"baobab/internal/logger"
	"baobab/internal/sourcehealth"
	"baobab/internal/trending"
)

const defaultJobTimeout = 10 * time.Minute

var log *slog.Logger = logger.Component("scheduler")

// Job is one scheduled pipeline entry.
type Job struct {
	Name    string
	Spec    string
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// Scheduler owns the cron loop and tracks in-flight jobs for shutdown.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context
	wg   sync.WaitGroup
}

// New builds a scheduler. ctx is the root context jobs inherit; cancel
// it to signal in-flight jobs to stop.
func New(ctx context.Context) *Scheduler {
	return &Scheduler{cron: cron.New(), ctx: ctx}
}

// Add registers a job under its cron spec.
func (s *Scheduler) Add(job Job) error {
	if job.Timeout <= 0 {
		job.Timeout = defaultJobTimeout
	}
	_, err := s.cron.AddFunc(job.Spec, func() {
		s.wg.Add(1)
		defer s.wg.Done()

		jobCtx, cancel := context.WithTimeout(s.ctx, job.Timeout)
		defer cancel()
		Dispatch(jobCtx, job.Name, job.Run)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job.Name, err)
	}
	return nil
}

// Start begins triggering jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info("scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop halts scheduling and waits up to wait for in-flight jobs.
func (s *Scheduler) Stop(wait time.Duration) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(wait):
		log.Warn("scheduler stop timed out")
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Info("scheduler stopped")
	case <-time.After(wait):
		log.Warn("timed out waiting for in-flight jobs")
	}
}

// Dispatch runs one job, recovering panics and logging the outcome.
func Dispatch(ctx context.Context, name string, run func(ctx context.Context) error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "error", fmt.Sprintf("%v", r),
				"job", name, "elapsed_ms", time.Since(start).Milliseconds())
		}
	}()

	log.Info("job triggered", "job", name)
	err := run(ctx)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		log.Error("job failed", "error", err.Error(), "job", name, "elapsed_ms", elapsed)
		return
	}
	log.Info("job completed", "job", name, "elapsed_ms", elapsed, "status", "ok")
}

// Pipelines carries the components driven by the standard schedule.
type Pipelines struct {
	Collector *collector.Collector
	Syncer    *edgesync.Syncer
	Trending  *trending.Engine
	Health    *sourcehealth.Monitor
}

// Register wires the standard schedule: collection every 15 minutes,
// edge sync hourly, trending every 30 minutes, health audits every 6
// hours. Nil pipelines are skipped.
func Register(s *Scheduler, p Pipelines) error {
	if p.Collector != nil {
		err := s.Add(Job{Name: "feed_collector", Spec: "*/15 * * * *", Timeout: 10 * time.Minute,
			Run: func(ctx context.Context) error {
				summary, err := p.Collector.Collect(ctx)
				if err != nil {
					return err
				}
				log.Info("collection summary",
					"sources_checked", summary.SourcesChecked,
					"new_articles", summary.NewArticles,
					"errors", summary.Errors)
				return nil
			}})
		if err != nil {
			return err
		}
	}
	if p.Syncer != nil {
		err := s.Add(Job{Name: "edge_cache_sync", Spec: "0 * * * *", Timeout: 10 * time.Minute,
			Run: func(ctx context.Context) error {
				stats := p.Syncer.Sync(ctx)
				log.Info("edge sync summary",
					"articles", stats.Articles, "keywords", stats.Keywords,
					"categories", stats.Categories, "errors", stats.Errors)
				return nil
			}})
		if err != nil {
			return err
		}
	}
	if p.Trending != nil {
		err := s.Add(Job{Name: "trending", Spec: "*/30 * * * *", Timeout: 5 * time.Minute,
			Run: func(ctx context.Context) error {
				result := p.Trending.Refresh(ctx)
				log.Info("trending summary",
					"global_topics", len(result.Global), "countries", len(result.Countries))
				return nil
			}})
		if err != nil {
			return err
		}
	}
	if p.Health != nil {
		err := s.Add(Job{Name: "source_health", Spec: "0 */6 * * *", Timeout: 10 * time.Minute,
			Run: func(ctx context.Context) error {
				result, err := p.Health.Audit(ctx)
				if err != nil {
					return err
				}
				log.Info("health audit summary",
					"sources", result.Sources, "alerts", len(result.Alerts),
					"critical", result.Critical)
				return nil
			}})
		if err != nil {
			return err
		}
	}
	return nil
}
