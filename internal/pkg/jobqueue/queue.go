package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/americavendas/marketplace/internal/pkg/storage"
)

const (
	// Redis keys
	JobKeyPrefix  = "cleanup:job:"
	PendingKey    = "cleanup:pending"
	ProcessingKey = "cleanup:processing"
	RetryKey      = "cleanup:retry"
	DeadLetterKey = "cleanup:dead"
	StatsKey      = "cleanup:stats"

	DeadLetterLimit    = 500
	DefaultWorkers     = 3
	DefaultMaxAttempts = 4
	JobTTL             = 7 * 24 * time.Hour
)

// Queue runs storage cleanup jobs out of Redis. Failed jobs wait in a sorted
// set until their retry is due; jobs out of attempts land in a capped
// dead-letter list together with their listing id.
type Queue struct {
	client       *redis.Client
	store        storage.Store
	workers      int
	retryBackoff time.Duration
	staleAfter   time.Duration
	now          func() time.Time
	newID        func() string

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewQueue creates a stopped queue. Jobs are kept in client; store is the
// object storage the jobs delete from.
func NewQueue(client *redis.Client, store storage.Store, workers int) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Queue{
		client:       client,
		store:        store,
		workers:      workers,
		retryBackoff: time.Minute,
		staleAfter:   10 * time.Minute,
		now:          time.Now,
		newID:        func() string { return uuid.New().String() },
		stopCh:       make(chan struct{}),
	}
}

// Start requeues jobs a previous process left in processing and starts the workers.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.running {
		return
	}
	q.stopCh = make(chan struct{})
	q.running = true

	if n, err := q.requeueStale(context.Background()); err != nil {
		log.Errorf("[CleanupQueue] Stale job recovery failed: %v", err)
	} else if n > 0 {
		log.Warnf("[CleanupQueue] Requeued %d stale jobs", n)
	}

	log.Infof("[CleanupQueue] Starting %d workers", q.workers)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(i, q.stopCh)
	}
}

// Stop waits for the workers to finish their current job.
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.running {
		return
	}
	log.Info("[CleanupQueue] Stopping workers...")
	close(q.stopCh)
	q.running = false
	q.wg.Wait()
	log.Info("[CleanupQueue] All workers stopped")
}

func (q *Queue) worker(id int, stopCh <-chan struct{}) {
	defer q.wg.Done()
	ctx := context.Background()

	for {
		select {
		case <-stopCh:
			log.Debugf("[CleanupQueue] Worker %d stopping", id)
			return
		default:
		}

		if _, err := q.promoteDue(ctx); err != nil {
			log.Errorf("[CleanupQueue] Worker %d: promote retries: %v", id, err)
		}

		job, err := q.dequeue(ctx, time.Second)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			log.Errorf("[CleanupQueue] Worker %d: dequeue: %v", id, err)
			time.Sleep(time.Second)
			continue
		}
		if job != nil {
			q.process(ctx, job)
		}
	}
}

// DrainOnce runs every job that is due right now and returns how many ran.
// Deployments without a long-running worker call it from a scheduled task.
func (q *Queue) DrainOnce(ctx context.Context) (int, error) {
	if _, err := q.requeueStale(ctx); err != nil {
		return 0, err
	}
	if _, err := q.promoteDue(ctx); err != nil {
		return 0, err
	}

	ran := 0
	for {
		if err := ctx.Err(); err != nil {
			return ran, err
		}
		job, err := q.dequeue(ctx, 0)
		if errors.Is(err, redis.Nil) {
			return ran, nil
		}
		if err != nil {
			return ran, err
		}
		if job != nil {
			q.process(ctx, job)
			ran++
		}
	}
}

func (q *Queue) enqueue(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL)
	pipe.LPush(ctx, PendingKey, job.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue cleanup job: %w", err)
	}
	return nil
}

// dequeue moves the oldest pending job to processing. A zero wait does not
// block. redis.Nil means the queue is empty.
func (q *Queue) dequeue(ctx context.Context, wait time.Duration) (*Job, error) {
	var id string
	var err error
	if wait > 0 {
		id, err = q.client.BRPopLPush(ctx, PendingKey, ProcessingKey, wait).Result()
	} else {
		id, err = q.client.RPopLPush(ctx, PendingKey, ProcessingKey).Result()
	}
	if err != nil {
		return nil, err
	}

	job, err := q.load(ctx, id)
	if err != nil {
		// Expired or corrupt: nothing left to run.
		log.Warnf("[CleanupQueue] Dropping job %s: %v", id, err)
		q.client.LRem(ctx, ProcessingKey, 1, id)
		return nil, nil
	}
	return job, nil
}

func (q *Queue) load(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, JobKeyPrefix+id).Result()
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

func (q *Queue) save(ctx context.Context, pipe redis.Cmdable, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}
	pipe.Set(ctx, JobKeyPrefix+job.ID, data, JobTTL)
	return nil
}

// process runs one attempt and moves the job to its next place: gone on
// success, the retry set while attempts remain, the dead-letter list after.
func (q *Queue) process(ctx context.Context, job *Job) {
	job.start(q.now())
	if err := q.save(ctx, q.client, job); err != nil {
		log.Errorf("[CleanupQueue] %v", err)
	}

	runErr := q.deleteObjects(ctx, job)

	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, ProcessingKey, 1, job.ID)
	switch {
	case runErr == nil:
		pipe.Del(ctx, JobKeyPrefix+job.ID)
		pipe.HIncrBy(ctx, StatsKey, "completed", 1)
	case job.fail(q.now(), runErr):
		due := q.now().Add(q.retryBackoff * time.Duration(job.Attempts))
		log.Warnf("[CleanupQueue] Job %s for listing %s failed (attempt %d/%d), retry at %s: %v",
			job.ID, job.ListingID, job.Attempts, job.MaxAttempts, due.Format(time.RFC3339), runErr)
		if err := q.save(ctx, pipe, job); err != nil {
			log.Errorf("[CleanupQueue] %v", err)
		}
		pipe.ZAdd(ctx, RetryKey, redis.Z{Score: float64(due.UnixMilli()), Member: job.ID})
	default:
		log.Errorf("[CleanupQueue] Giving up on %d objects of listing %s after %d attempts: %v",
			len(job.Keys), job.ListingID, job.Attempts, runErr)
		data, err := json.Marshal(job)
		if err == nil {
			pipe.LPush(ctx, DeadLetterKey, data)
			pipe.LTrim(ctx, DeadLetterKey, 0, DeadLetterLimit-1)
		}
		pipe.Del(ctx, JobKeyPrefix+job.ID)
		pipe.HIncrBy(ctx, StatsKey, "failed", 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.Errorf("[CleanupQueue] Failed to record outcome of job %s: %v", job.ID, err)
	}
}

// promoteDue moves retries whose time has come back to pending. ZRem decides
// which caller owns a job when several workers race.
func (q *Queue) promoteDue(ctx context.Context) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, RetryKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(q.now().UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	promoted := 0
	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, RetryKey, id).Result()
		if err != nil {
			return promoted, err
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, PendingKey, id).Err(); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// requeueStale returns jobs abandoned in the processing list to pending.
func (q *Queue) requeueStale(ctx context.Context) (int, error) {
	ids, err := q.client.LRange(ctx, ProcessingKey, 0, -1).Result()
	if err != nil {
		return 0, err
	}
	now := q.now()
	requeued := 0
	for _, id := range ids {
		job, err := q.load(ctx, id)
		if err != nil {
			q.client.LRem(ctx, ProcessingKey, 1, id)
			continue
		}
		if !job.stale(now, q.staleAfter) {
			continue
		}
		job.Status = JobStatusPending
		job.UpdatedAt = now
		pipe := q.client.TxPipeline()
		if err := q.save(ctx, pipe, job); err != nil {
			return requeued, err
		}
		pipe.LRem(ctx, ProcessingKey, 1, id)
		pipe.RPush(ctx, PendingKey, id)
		if _, err := pipe.Exec(ctx); err != nil {
			return requeued, err
		}
		requeued++
	}
	return requeued, nil
}

// Stats counts the jobs in every state.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.client.Pipeline()
	pending := pipe.LLen(ctx, PendingKey)
	processing := pipe.LLen(ctx, ProcessingKey)
	retrying := pipe.ZCard(ctx, RetryKey)
	dead := pipe.LLen(ctx, DeadLetterKey)
	totals := pipe.HGetAll(ctx, StatsKey)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, err
	}

	stats := Stats{
		Pending:    pending.Val(),
		Processing: processing.Val(),
		Retrying:   retrying.Val(),
		Dead:       dead.Val(),
	}
	stats.Completed, _ = strconv.ParseInt(totals.Val()["completed"], 10, 64)
	stats.Failed, _ = strconv.ParseInt(totals.Val()["failed"], 10, 64)
	return stats, nil
}

// DeadLetters returns up to limit of the most recently abandoned jobs.
func (q *Queue) DeadLetters(ctx context.Context, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	raw, err := q.client.LRange(ctx, DeadLetterKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	jobs := make([]Job, 0, len(raw))
	for _, data := range raw {
		var job Job
		if err := json.Unmarshal([]byte(data), &job); err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}
