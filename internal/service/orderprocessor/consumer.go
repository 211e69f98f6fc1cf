package orderprocessor

import (
	"context"
	"errors"
	"sync"

	"github.com/nkiryanov/farmbox/internal/apperrors"
	"github.com/nkiryanov/farmbox/internal/logger"
	"github.com/nkiryanov/farmbox/internal/models"
)

type Consumer struct {
	countWorkers int

	orderService orderService
	logger       logger.Logger
}

func (c *Consumer) Consume(ctx context.Context, in <-chan models.Order) <-chan struct{} {
	idleStopped := make(chan struct{})

	var wg sync.WaitGroup
	for i := 0; i < c.countWorkers; i++ {
		wg.Add(1)
		go func() {
			c.worker(ctx, in)
			wg.Done()
		}()
	}

	go func() {
		defer close(idleStopped)
		wg.Wait()
		c.logger.Debug("Consumer stopped")
	}()

	return idleStopped
}

func (c *Consumer) worker(ctx context.Context, in <-chan models.Order) {
	for {
		select {
		case <-ctx.Done():
			return

		case order, ok := <-in:
			if !ok {
				c.logger.Debug("Consumer worker stopped, input channel closed")
				return
			}

			err := c.orderService.CancelPending(ctx, order.ID)
			switch {
			case err == nil:
				c.logger.Info("Stale order cancelled", "order_id", order.ID, "user_id", order.UserID, "created_at", order.CreatedAt)
			case errors.Is(err, apperrors.ErrOrderNotFound):
				// paid or cancelled meanwhile
				c.logger.Debug("Order is not pending anymore", "order_id", order.ID)
			default:
				c.logger.Error("Failed to cancel stale order", "error", err, "order_id", order.ID)
			}
		}
	}
}
