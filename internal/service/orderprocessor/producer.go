package orderprocessor

import (
	"context"
	"time"

	"github.com/nkiryanov/farmbox/internal/logger"
	"github.com/nkiryanov/farmbox/internal/models"
)

type Producer struct {
	interval     time.Duration
	pendingTTL   time.Duration
	batchSize    int
	now          func() time.Time
	logger       logger.Logger
	orderService orderService
}

func (p *Producer) Produce(ctx context.Context, out chan<- models.Order) <-chan struct{} {
	idleStopped := make(chan struct{})
	p.logger.Debug("Starting producer", "interval", p.interval, "batch_size", p.batchSize, "pending_ttl", p.pendingTTL)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				p.logger.Debug("Producer stopped by context")
				return

			case <-ticker.C:
				if !p.produceOnce(ctx, out) {
					return
				}
			}
		}
	}()

	return idleStopped
}

// Send one batch of stale orders, false if ctx is done
func (p *Producer) produceOnce(ctx context.Context, out chan<- models.Order) bool {
	orders, err := p.orderService.ListStalePending(ctx, p.now().Add(-p.pendingTTL), p.batchSize)
	if err != nil {
		p.logger.Error("Failed to list stale orders", "error", err)
		return ctx.Err() == nil
	}

	for _, order := range orders {
		select {
		case <-ctx.Done():
			p.logger.Debug("Producer stopped by context while sending orders")
			return false
		case out <- order:
			p.logger.Debug("Stale order sent to channel", "order_id", order.ID)
		}
	}

	return true
}
