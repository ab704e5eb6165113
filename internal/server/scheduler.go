package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	syncer "github.com/voiceline-ai/voiceline/internal/sync"
)

// Scheduler periodically re-runs agent and knowledge-base sync so local
// records track the platform without manual triggers.
type Scheduler struct {
	Orch   *syncer.Orchestrator
	Rdb    *redis.Client
	Cron   string
	Stop   chan struct{}
	Logger *log.Logger

	lastRun time.Time
}

func (s *Scheduler) Start() {
	if s.Logger == nil {
		s.Logger = log.New(log.Writer(), "[SCHED] ", log.LstdFlags)
	}
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	if !isDue(s.Cron, s.lastRun) {
		return
	}
	ctx := context.Background()

	// distributed lock to avoid duplicate runs across replicas
	if s.Rdb != nil {
		ok, _ := s.Rdb.SetNX(ctx, "sched:lock:auto-sync", "1", 2*time.Minute).Result()
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, "sched:lock:auto-sync")
	}

	s.lastRun = time.Now()
	if res, err := s.Orch.SyncAgents(ctx); err != nil {
		s.Logger.Printf("auto sync agents: %v", err)
	} else {
		s.Logger.Printf("auto sync agents: imported %d, errors %d", res.NewlyImported, res.Errors)
	}
	if res, err := s.Orch.SyncKnowledgeBases(ctx); err != nil {
		s.Logger.Printf("auto sync knowledge bases: %v", err)
	} else {
		s.Logger.Printf("auto sync knowledge bases: imported %d, errors %d", res.NewlyImported, res.Errors)
	}
}

// isDue determines if the sync with cronSpec should run now based on the last
// run time. Supports "@daily", "@hourly", and standard 5-field cron
// expressions.
func isDue(cronSpec string, last time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last.IsZero() {
			return true
		}
		return now.Sub(last) >= 24*time.Hour
	case "", "@hourly":
		if last.IsZero() {
			return true
		}
		return now.Sub(last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Fallback: treat as @hourly if invalid
			if last.IsZero() {
				return true
			}
			return now.Sub(last) >= time.Hour
		}
		if last.IsZero() {
			return true
		}
		next := expr.Next(last)
		return !next.After(now)
	}
}
