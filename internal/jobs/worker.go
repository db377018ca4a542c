package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sjperalta/kredim-api/pkg/logger"
)

// Job represents a background task
type Job func(ctx context.Context) error

// Worker manages background jobs and scheduled tasks
type Worker struct {
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	queue         chan Job
	asyncSem      chan struct{}
	maxConcurrent int
	stats         WorkerStats
	statsMu       sync.RWMutex

	cronMu    sync.Mutex
	cron      *cron.Cron
	location  *time.Location
	scheduled map[string]*ScheduledJobStatus
}

// WorkerStats holds statistics about the worker
type WorkerStats struct {
	ActiveJobs    int                  `json:"active_jobs"`
	CompletedJobs int64                `json:"completed_jobs"`
	FailedJobs    int64                `json:"failed_jobs"`
	QueueLength   int                  `json:"queue_length"`
	MaxConcurrent int                  `json:"max_concurrent"`
	Scheduled     []ScheduledJobStatus `json:"scheduled"`
}

// ScheduledJobStatus describes one named recurring job
type ScheduledJobStatus struct {
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Runs      int64      `json:"runs"`
	Failures  int64      `json:"failures"`
	LastRunAt *time.Time `json:"last_run_at"`
	LastError string     `json:"last_error,omitempty"`
	NextRunAt *time.Time `json:"next_run_at,omitempty"`

	entryID cron.EntryID
}

// NewWorker creates a worker with N concurrent processors
func NewWorker(numWorkers int) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	// Allow 2x workers for async jobs
	asyncLimit := numWorkers * 2
	if asyncLimit < 10 {
		asyncLimit = 10
	}

	w := &Worker{
		ctx:           ctx,
		cancel:        cancel,
		queue:         make(chan Job, 100),
		asyncSem:      make(chan struct{}, asyncLimit),
		maxConcurrent: asyncLimit,
		location:      time.Local,
		scheduled:     make(map[string]*ScheduledJobStatus),
	}

	for i := 0; i < numWorkers; i++ {
		w.wg.Add(1)
		go w.process(i)
	}

	return w
}

// SetLocation sets the time zone cron expressions are evaluated in. Call before ScheduleCron.
func (w *Worker) SetLocation(loc *time.Location) {
	w.cronMu.Lock()
	defer w.cronMu.Unlock()
	if loc != nil {
		w.location = loc
	}
}

// Enqueue adds a job to be processed by the worker pool
func (w *Worker) Enqueue(job Job) {
	select {
	case w.queue <- job:
	default:
		logger.Warn("[Worker] Queue full, running job synchronously")
		if err := job(w.ctx); err != nil {
			logger.Error("[Worker] Job error", "error", err)
		}
	}
}

// EnqueueAsync runs a job in a new goroutine (fire-and-forget), bounded by semaphore
func (w *Worker) EnqueueAsync(job Job) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		w.asyncSem <- struct{}{}
		defer func() { <-w.asyncSem }()

		w.trackJobStart()
		defer w.trackJobEnd()

		defer func() {
			if r := recover(); r != nil {
				logger.Error("[Worker] Async job panic", "panic", fmt.Sprint(r))
				w.trackJobFailure()
			}
		}()

		if err := job(w.ctx); err != nil {
			logger.Error("[Worker] Async job error", "error", err)
			w.trackJobFailure()
		}
	}()
}

// process handles jobs from the queue
func (w *Worker) process(workerID int) {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case job, ok := <-w.queue:
			if !ok {
				return
			}
			w.trackJobStart()
			start := time.Now()
			if err := job(w.ctx); err != nil {
				logger.Error("[Worker] Job error", "worker", workerID, "error", err)
				w.trackJobFailure()
			} else {
				logger.Debug("[Worker] Job completed", "worker", workerID, "duration", time.Since(start))
			}
			w.trackJobEnd()
		}
	}
}

// ScheduleEvery runs a named job at fixed intervals. The first run happens after the interval.
func (w *Worker) ScheduleEvery(name string, interval time.Duration, job Job) {
	w.register(name, "@every "+interval.String(), 0)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.runScheduledJob(name, job)
			}
		}
	}()
}

// ScheduleEveryImmediate runs a named job once at startup, then at fixed intervals. Use this
// when the process may restart often so jobs run soon after start.
func (w *Worker) ScheduleEveryImmediate(name string, interval time.Duration, job Job) {
	w.register(name, "@every "+interval.String(), 0)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.runScheduledJob(name, job)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-w.ctx.Done():
				return
			case <-ticker.C:
				w.runScheduledJob(name, job)
			}
		}
	}()
}

// ScheduleCron runs a named job on a standard five field cron expression
// (e.g. "0 9 * * *" every day at 09:00) in the worker's location.
func (w *Worker) ScheduleCron(name, spec string, job Job) error {
	w.cronMu.Lock()
	if w.cron == nil {
		w.cron = cron.New(cron.WithLocation(w.location))
		w.cron.Start()
	}
	c := w.cron
	w.cronMu.Unlock()

	id, err := c.AddFunc(spec, func() {
		if w.ctx.Err() != nil {
			return
		}
		w.runScheduledJob(name, job)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q for %s: %w", spec, name, err)
	}

	w.register(name, spec, id)
	logger.Info("[Scheduler] cron job registered", "job", name, "schedule", spec)
	return nil
}

func (w *Worker) register(name, schedule string, id cron.EntryID) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.scheduled[name] = &ScheduledJobStatus{Name: name, Schedule: schedule, entryID: id}
}

func (w *Worker) runScheduledJob(name string, job Job) {
	w.trackJobStart()
	start := time.Now()
	log := logger.With("job", name)
	var err error

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
		if err != nil {
			log.Error("[Scheduler] Job error", "error", err)
			w.trackJobFailure()
		} else {
			log.Info("[Scheduler] Job completed", "duration", time.Since(start))
		}
		w.trackScheduledRun(name, start, err)
		w.trackJobEnd()
	}()

	err = job(w.ctx)
}

// Shutdown gracefully stops all workers
func (w *Worker) Shutdown() {
	w.cronMu.Lock()
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
	w.cronMu.Unlock()

	w.cancel()
	close(w.queue)
	w.wg.Wait()
}

// Context returns the worker's context for checking cancellation
func (w *Worker) Context() context.Context {
	return w.ctx
}

// GetStats returns the current worker statistics
func (w *Worker) GetStats() WorkerStats {
	var next map[cron.EntryID]time.Time
	w.cronMu.Lock()
	if w.cron != nil {
		next = make(map[cron.EntryID]time.Time)
		for _, e := range w.cron.Entries() {
			next[e.ID] = e.Next
		}
	}
	w.cronMu.Unlock()

	w.statsMu.RLock()
	defer w.statsMu.RUnlock()
	stats := w.stats
	stats.QueueLength = len(w.queue)
	stats.MaxConcurrent = w.maxConcurrent
	stats.Scheduled = make([]ScheduledJobStatus, 0, len(w.scheduled))
	for _, s := range w.scheduled {
		status := *s
		if t, ok := next[s.entryID]; ok && s.entryID != 0 && !t.IsZero() {
			status.NextRunAt = &t
		}
		stats.Scheduled = append(stats.Scheduled, status)
	}
	sort.Slice(stats.Scheduled, func(i, j int) bool {
		return stats.Scheduled[i].Name < stats.Scheduled[j].Name
	})
	return stats
}

func (w *Worker) trackJobStart() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs++
}

// trackJobEnd counts every finished job; FailedJobs is the failing subset.
func (w *Worker) trackJobEnd() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.ActiveJobs--
	w.stats.CompletedJobs++
}

func (w *Worker) trackJobFailure() {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	w.stats.FailedJobs++
}

func (w *Worker) trackScheduledRun(name string, at time.Time, err error) {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	s, ok := w.scheduled[name]
	if !ok {
		return
	}
	s.Runs++
	s.LastRunAt = &at
	s.LastError = ""
	if err != nil {
		s.Failures++
		s.LastError = err.Error()
	}
}
