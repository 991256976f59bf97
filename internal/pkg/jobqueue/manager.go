package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// ListingExpirer moves listings past their expiry out of the published state.
type ListingExpirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

// CounterFlusher writes buffered counters to the database.
type CounterFlusher interface {
	Flush(ctx context.Context) (int, error)
}

// ManagerConfig wires the manager's periodic tasks. Queue, Expirer and
// Flusher are all optional.
type ManagerConfig struct {
	Queue            *Queue
	Expirer          ListingExpirer
	Flusher          CounterFlusher
	ExpirySweepEvery time.Duration
	CounterFlush     time.Duration
}

// Manager runs the cleanup queue workers and the periodic listing tasks.
type Manager struct {
	queue   *Queue
	expirer ListingExpirer
	flusher CounterFlusher

	expiryInterval time.Duration
	flushInterval  time.Duration

	expiryTicker       *time.Ticker
	counterFlushTicker *time.Ticker
	stopCh             chan struct{}
	wg                 sync.WaitGroup
	mu                 sync.Mutex
	running            bool
}

// NewManager creates a stopped manager.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.ExpirySweepEvery <= 0 {
		cfg.ExpirySweepEvery = 5 * time.Minute
	}
	if cfg.CounterFlush <= 0 {
		cfg.CounterFlush = 10 * time.Second
	}
	return &Manager{
		queue:          cfg.Queue,
		expirer:        cfg.Expirer,
		flusher:        cfg.Flusher,
		expiryInterval: cfg.ExpirySweepEvery,
		flushInterval:  cfg.CounterFlush,
		stopCh:         make(chan struct{}),
	}
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// Recreate stop channel for each start cycle so manager can be restarted safely.
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	if m.queue != nil {
		m.queue.Start()
	}

	if m.expirer != nil {
		m.expiryTicker = time.NewTicker(m.expiryInterval)
		m.wg.Add(1)
		go m.expiryWorker(m.stopCh)
	}

	if m.flusher != nil {
		m.counterFlushTicker = time.NewTicker(m.flushInterval)
		m.wg.Add(1)
		go m.counterFlushWorker(m.stopCh)
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks. The counters are flushed
// one last time so buffered views survive a restart.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")

	if m.expiryTicker != nil {
		m.expiryTicker.Stop()
	}
	if m.counterFlushTicker != nil {
		m.counterFlushTicker.Stop()
	}

	// Signal workers to stop
	close(m.stopCh)
	m.running = false

	// Wait for background workers to finish
	m.wg.Wait()

	if m.flusher != nil {
		if err := m.flushCountersOnce(); err != nil {
			log.Errorf("[JobQueue Manager] Final counter flush error: %v", err)
		}
	}

	if m.queue != nil {
		m.queue.Stop()
	}

	log.Info("[JobQueue Manager] Stopped successfully")
}

// expiryWorker periodically expires published listings whose time is up
func (m *Manager) expiryWorker(stopCh <-chan struct{}) {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started expiry sweeper (interval: %s)", m.expiryInterval)

	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Expiry sweeper stopping")
			return
		case <-m.expiryTicker.C:
			if _, err := m.sweepExpiredOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Expiry sweep error: %v", err)
			}
		}
	}
}

// counterFlushWorker periodically flushes view counters from Redis to DB
func (m *Manager) counterFlushWorker(stopCh <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Counter flush worker stopping")
			return
		case <-m.counterFlushTicker.C:
			if err := m.flushCountersOnce(); err != nil {
				log.Errorf("[JobQueue Manager] Counter flush error: %v", err)
			}
		}
	}
}

func (m *Manager) flushCountersOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := m.flusher.Flush(ctx)
	if n > 0 {
		log.Debugf("[JobQueue Manager] Flushed view counters for %d listings", n)
	}
	return err
}

func (m *Manager) sweepExpiredOnce() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	return m.expirer.ExpireDue(ctx)
}

// Report is what one maintenance pass did.
type Report struct {
	Expired int
	Flushed int
	Cleaned int
}

// RunOnce performs every periodic task a single time: the expiry sweep, the
// counter flush and a drain of the cleanup queue. Deployments without a
// long-running server call it from a scheduled task instead of Start.
func (m *Manager) RunOnce(ctx context.Context) (Report, error) {
	var report Report
	var errs []error
	if m.expirer != nil {
		n, err := m.expirer.ExpireDue(ctx)
		report.Expired = n
		if err != nil {
			errs = append(errs, fmt.Errorf("expiry sweep: %w", err))
		}
	}
	if m.flusher != nil {
		n, err := m.flusher.Flush(ctx)
		report.Flushed = n
		if err != nil {
			errs = append(errs, fmt.Errorf("counter flush: %w", err))
		}
	}
	if m.queue != nil {
		n, err := m.queue.DrainOnce(ctx)
		report.Cleaned = n
		if err != nil {
			errs = append(errs, fmt.Errorf("cleanup queue: %w", err))
		}
	}
	return report, errors.Join(errs...)
}
