package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/americavendas/marketplace/internal/pkg/apperrors"
	"github.com/americavendas/marketplace/internal/pkg/jobqueue"
)

// CleanupQueue is the read side of the storage cleanup queue.
type CleanupQueue interface {
	Stats(ctx context.Context) (jobqueue.Stats, error)
	DeadLetters(ctx context.Context, limit int) ([]jobqueue.Job, error)
}

// QueueController reports the cleanup queue on the metrics endpoint.
type QueueController struct {
	queue CleanupQueue
}

func NewQueueController(queue CleanupQueue) *QueueController {
	return &QueueController{queue: queue}
}

// HandleQueueStats returns the job counts and the latest dead letters, so an
// operator can find the listings whose objects were left in storage.
func (qc *QueueController) HandleQueueStats(c *fiber.Ctx) error {
	stats, err := qc.queue.Stats(c.UserContext())
	if err != nil {
		return respondError(c, apperrors.Persistence(err, "cleanup queue unavailable"))
	}
	dead, err := qc.queue.DeadLetters(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		return respondError(c, apperrors.Persistence(err, "cleanup queue unavailable"))
	}
	return c.JSON(fiber.Map{
		"stats":       stats,
		"deadLetters": dead,
	})
}
