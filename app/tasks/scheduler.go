package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lassebenni/amsterdam-events/app/database"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

var (
	ErrQueueFull        = errors.New("task queue is full")
	ErrScrapeInProgress = errors.New("scrape already queued or running")
	ErrSchedulerStopped = errors.New("scheduler stopped")
)

const (
	queueSize          = 300
	defaultTaskTimeout = 5 * time.Minute
)

type SchedulerOptions struct {
	WorkerCount int
	Interval    time.Duration
	TaskTimeout time.Duration
	FeedURL     string // warmed on startup when set
	MaxItems    int
	Scrape      ScrapeOptions
}

type Scheduler struct {
	configs    ConfigProvider
	collector  EventCollector
	sourceRepo database.SourceRepository
	eventRepo  database.EventRepository
	publisher  *Publisher
	feedCache  FeedCache
	opts       SchedulerOptions

	scrapePending atomic.Bool

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
}

func NewScheduler(configs ConfigProvider, collector EventCollector, sourceRepo database.SourceRepository,
	eventRepo database.EventRepository, publisher *Publisher, feedCache FeedCache, opts SchedulerOptions) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = defaultTaskTimeout
	}

	return &Scheduler{
		configs:    configs,
		collector:  collector,
		sourceRepo: sourceRepo,
		eventRepo:  eventRepo,
		publisher:  publisher,
		feedCache:  feedCache,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		taskQueue:  make(chan TaskInterface, queueSize),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.opts.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

// Stop cancels running tasks and waits for workers and pending retries.
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

// EnqueueTask fails fast when the queue is full.
func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	if s.ctx.Err() != nil {
		return ErrSchedulerStopped
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// EnqueueScrape queues a scrape unless one is already queued or running.
func (s *Scheduler) EnqueueScrape() (TaskInterface, error) {
	if !s.scrapePending.CompareAndSwap(false, true) {
		return nil, ErrScrapeInProgress
	}

	task := s.newScrapeTask()
	if err := s.EnqueueTask(task); err != nil {
		s.scrapePending.Store(false)
		return nil, err
	}
	return task, nil
}

func (s *Scheduler) newScrapeTask() *ScrapeEventsTask {
	return NewScrapeEventsTask(s.configs, s.collector, s.sourceRepo, s.eventRepo, s.publisher, s.opts.Scrape)
}

func (s *Scheduler) enqueueStartupTasks() {
	if s.opts.FeedURL != "" && s.feedCache != nil {
		warmTask := NewWarmCacheTask(s.opts.FeedURL, s.feedCache, s.opts.MaxItems)
		if err := s.EnqueueTask(warmTask); err != nil {
			slog.Warn("Failed to enqueue WarmCacheTask", "feed_url", s.opts.FeedURL, "error", err)
		}
	}

	s.enqueueTasks()
}

func (s *Scheduler) enqueueTasks() {
	if len(s.configs.GetEnabledConfigs()) == 0 {
		slog.Debug("No enabled source configurations found")
		return
	}

	due, err := s.scrapeDue()
	if err != nil {
		slog.Warn("Failed to read scrape schedule, skipping", "error", err)
		return
	}
	if !due {
		return
	}

	if _, err := s.EnqueueScrape(); err != nil && !errors.Is(err, ErrScrapeInProgress) {
		slog.Warn("Failed to enqueue ScrapeEventsTask", "error", err)
	}
}

func (s *Scheduler) scrapeDue() (bool, error) {
	next, err := s.sourceRepo.GetNextScrapeAt()
	if err != nil {
		return false, err
	}

	now := time.Now().UTC()
	if next != nil && next.After(now) {
		slog.Debug("Sources not due for scraping yet", "next_scrape_at", next)
		return false, nil
	}
	return true, nil
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.opts.TaskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.finish(task)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() || s.ctx.Err() != nil {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		s.finish(task)
		return
	}

	task.IncrementRetryCount()
	delay := retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "target", task.GetTarget(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", delay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.finish(task)
		case <-time.After(delay):
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
				s.finish(task)
			}
		}
	}()
}

func (s *Scheduler) finish(task TaskInterface) {
	if task.GetType() == TaskTypeScrapeEvents {
		s.scrapePending.Store(false)
	}
}
