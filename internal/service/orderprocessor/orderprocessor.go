package orderprocessor

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/farmbox/internal/logger"
	"github.com/nkiryanov/farmbox/internal/models"
)

const (
	defaultCountWorkers    = 4               // Number of workers to cancel orders
	defaultProduceInterval = 5 * time.Minute // Interval for looking up stale orders
	defaultBatchSize       = 100             // Orders fetched per tick
	defaultPendingTTL      = 24 * time.Hour  // Pending order lifetime
)

type orderService interface {
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]models.Order, error)
	CancelPending(ctx context.Context, orderID uuid.UUID) error
}

type Config struct {
	// Pending orders older than TTL are cancelled
	PendingTTL time.Duration

	Interval     time.Duration
	CountWorkers int
	BatchSize    int

	// Clock, time.Now if not set
	Now func() time.Time
}

// Processor cancels orders left pending for too long
type Processor struct {
	consumer *Consumer
	producer *Producer
}

func New(cfg Config, logger logger.Logger, orderService orderService) *Processor {
	setDefault := func(field *int, def int) {
		if *field <= 0 {
			*field = def
		}
	}
	setDefault(&cfg.CountWorkers, defaultCountWorkers)
	setDefault(&cfg.BatchSize, defaultBatchSize)

	if cfg.Interval <= 0 {
		cfg.Interval = defaultProduceInterval
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = defaultPendingTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Processor{
		consumer: &Consumer{
			countWorkers: cfg.CountWorkers,
			orderService: orderService,
			logger:       logger,
		},
		producer: &Producer{
			interval:     cfg.Interval,
			pendingTTL:   cfg.PendingTTL,
			batchSize:    cfg.BatchSize,
			now:          cfg.Now,
			orderService: orderService,
			logger:       logger,
		},
	}
}

// Start producer and consumer
// Returned channel is closed when both stopped after ctx is done
func (op *Processor) Process(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})

	orderChan := make(chan models.Order)

	// Start producer to find stale orders
	producerStopped := op.producer.Produce(ctx, orderChan)

	// Start consumer to cancel them
	consumerStopped := op.consumer.Consume(ctx, orderChan)

	go func() {
		defer close(idleStopped)
		<-producerStopped
		close(orderChan)
		<-consumerStopped
		op.consumer.logger.Debug("OrderProcessor stopped")
	}()

	return idleStopped
}
