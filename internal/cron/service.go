package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Service schedules digest jobs. Jobs persist as a best-effort JSON
// file; this is deliberately not a durable queue.
type Service struct {
	storePath string
	mu        sync.Mutex
	jobs      []DigestJob
	cron      *rcron.Cron
	entryMap  map[string]rcron.EntryID
	cancel    context.CancelFunc

	// OnCommand runs the job's command line and returns the reply
	// text. Set by the gateway before Start.
	OnCommand func(job DigestJob) (string, error)
}

func NewService(storePath string) *Service {
	return &Service{
		storePath: storePath,
		entryMap:  make(map[string]rcron.EntryID),
	}
}

// Load reads the job store without starting any scheduler. The CLI uses
// this to manage digests while the gateway is not running.
func (s *Service) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// ValidateSchedule rejects schedules that Start would fail to register,
// so a bad digest is caught when it is added rather than at the next
// gateway boot.
func ValidateSchedule(schedule Schedule) error {
	switch schedule.Kind {
	case "cron":
		parser := rcron.NewParser(rcron.Second | rcron.Minute | rcron.Hour | rcron.Dom | rcron.Month | rcron.Dow | rcron.Descriptor)
		if _, err := parser.Parse(schedule.Expr); err != nil {
			return fmt.Errorf("invalid cron expression %q: %w", schedule.Expr, err)
		}
		return nil
	case "every":
		if schedule.EveryMs <= 0 {
			return fmt.Errorf("interval must be positive")
		}
		return nil
	default:
		return fmt.Errorf("unknown schedule kind %q", schedule.Kind)
	}
}

func (s *Service) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	if err := s.load(); err != nil {
		log.Printf("[cron] warning: failed to load jobs: %v", err)
	}

	s.cron = rcron.New(rcron.WithSeconds())

	s.mu.Lock()
	for i := range s.jobs {
		if s.jobs[i].Enabled && s.jobs[i].Schedule.Kind == "cron" {
			s.registerJob(&s.jobs[i])
		}
	}
	count := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	go s.intervalLoop(runCtx)
	log.Printf("[cron] started with %d jobs", count)
	return nil
}

func (s *Service) registerJob(job *DigestJob) {
	jobCopy := *job
	id, err := s.cron.AddFunc(job.Schedule.Expr, func() {
		s.executeJob(jobCopy)
	})
	if err != nil {
		log.Printf("[cron] failed to register job %s (%s): %v", job.Name, job.Schedule.Expr, err)
		return
	}
	s.entryMap[job.ID] = id
}

func (s *Service) executeJob(job DigestJob) {
	log.Printf("[cron] running digest %s: %s", job.Name, job.Payload.Command)

	if s.OnCommand == nil {
		log.Printf("[cron] no OnCommand handler set")
		return
	}

	result, err := s.OnCommand(job)

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.jobs {
		if s.jobs[i].ID != job.ID {
			continue
		}
		s.jobs[i].State.LastRunAtMs = time.Now().UnixMilli()
		if err != nil {
			s.jobs[i].State.LastStatus = "error"
			s.jobs[i].State.LastError = err.Error()
			log.Printf("[cron] digest %s error: %v", job.Name, err)
		} else {
			s.jobs[i].State.LastStatus = "ok"
			s.jobs[i].State.LastError = ""
			log.Printf("[cron] digest %s ok (%d chars)", job.Name, len(result))
		}
		break
	}

	_ = s.save()
}

// intervalLoop runs "every"-kind jobs on a one-second tick.
func (s *Service) intervalLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now().UnixMilli()
			s.mu.Lock()
			due := make([]DigestJob, 0)
			for i := range s.jobs {
				job := &s.jobs[i]
				if !job.Enabled || job.Schedule.Kind != "every" || job.Schedule.EveryMs <= 0 {
					continue
				}
				if now >= job.State.LastRunAtMs+job.Schedule.EveryMs {
					// Mark before running so a slow digest is not
					// re-queued on the next tick.
					job.State.LastRunAtMs = now
					due = append(due, *job)
				}
			}
			s.mu.Unlock()

			for _, job := range due {
				s.executeJob(job)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if s.cron != nil {
		stopCtx := s.cron.Stop()
		select {
		case <-stopCtx.Done():
		case <-time.After(5 * time.Second):
			log.Printf("[cron] stop timeout waiting for running jobs")
		}
	}
	log.Printf("[cron] stopped")
}

func (s *Service) AddJob(name string, schedule Schedule, payload Payload) (*DigestJob, error) {
	if err := ValidateSchedule(schedule); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job := NewDigestJob(name, schedule, payload)
	s.jobs = append(s.jobs, job)

	if job.Schedule.Kind == "cron" && s.cron != nil {
		s.registerJob(&s.jobs[len(s.jobs)-1])
	}

	if err := s.save(); err != nil {
		return nil, fmt.Errorf("save jobs: %w", err)
	}
	return &job, nil
}

func (s *Service) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, job := range s.jobs {
		if job.ID == id {
			if entryID, ok := s.entryMap[id]; ok && s.cron != nil {
				s.cron.Remove(entryID)
				delete(s.entryMap, id)
			}
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			_ = s.save()
			return true
		}
	}
	return false
}

func (s *Service) ListJobs() []DigestJob {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]DigestJob, len(s.jobs))
	copy(result, s.jobs)
	return result
}

func (s *Service) load() error {
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &s.jobs)
}

func (s *Service) save() error {
	dir := filepath.Dir(s.storePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(s.jobs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.storePath, data, 0644)
}
