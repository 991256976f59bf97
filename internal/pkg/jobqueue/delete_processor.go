package jobqueue

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2/log"
)

// ScheduleStorageCleanup enqueues an asynchronous delete of the storage keys
// a listing dropped. Listing deletes and image replacements call this after
// their database transaction commits.
func (q *Queue) ScheduleStorageCleanup(ctx context.Context, listingID string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	now := q.now()
	job := &Job{
		ID:          q.newID(),
		ListingID:   listingID,
		Keys:        keys,
		Status:      JobStatusPending,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := q.enqueue(ctx, job); err != nil {
		return err
	}
	log.Infof("[CleanupQueue] Scheduled %d objects of listing %s (job %s)", len(keys), listingID, job.ID)
	return nil
}

// deleteObjects removes the job's keys from object storage. Deleting a key
// that is already gone is not an error, so retries are safe.
func (q *Queue) deleteObjects(ctx context.Context, job *Job) error {
	if len(job.Keys) == 0 {
		return nil
	}
	if q.store == nil {
		return errors.New("object storage is not configured")
	}
	if err := q.store.Delete(ctx, job.Keys...); err != nil {
		return fmt.Errorf("delete %d objects: %w", len(job.Keys), err)
	}
	log.Infof("[CleanupQueue] Removed %d objects of listing %s", len(job.Keys), job.ListingID)
	return nil
}
