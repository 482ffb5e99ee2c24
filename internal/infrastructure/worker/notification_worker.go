package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/garyjia/erp-approvals/internal/application/port"
)

// ErrQueueFull is returned by Enqueue when the delivery buffer is saturated
var ErrQueueFull = errors.New("notification queue full")

// ErrNotRunning is returned by Enqueue before Start or after Stop
var ErrNotRunning = errors.New("notification worker not running")

// NotificationWorkerConfig holds configuration for the notification worker
type NotificationWorkerConfig struct {
	QueueSize     int
	RatePerSecond float64
	Burst         int
	MaxAttempts   int
	RetryDelay    time.Duration
	SendTimeout   time.Duration
	RecordTimeout time.Duration
}

// DefaultNotificationWorkerConfig returns default configuration
func DefaultNotificationWorkerConfig() NotificationWorkerConfig {
	return NotificationWorkerConfig{
		QueueSize:     256,
		RatePerSecond: 5,
		Burst:         5,
		MaxAttempts:   3,
		RetryDelay:    2 * time.Second,
		SendTimeout:   10 * time.Second,
		RecordTimeout: 5 * time.Second,
	}
}

// WorkerStats is a snapshot of delivery counters
type WorkerStats struct {
	Running   bool      `json:"running"`
	Queued    int       `json:"queued"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	LastError string    `json:"last_error,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// NotificationWorker drains queued chat deliveries at a bounded rate
// and records each outcome on its notification row.
type NotificationWorker struct {
	config           NotificationWorkerConfig
	notifier         port.ChatNotifier
	notificationRepo port.NotificationRepository
	limiter          *rate.Limiter
	queue            chan port.Delivery
	logger           *zap.Logger

	mu        sync.RWMutex
	wg        sync.WaitGroup
	cancel    context.CancelFunc
	isRunning bool
	sent      int
	failed    int
	lastError error
	startTime time.Time
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	config NotificationWorkerConfig,
	notifier port.ChatNotifier,
	notificationRepo port.NotificationRepository,
	logger *zap.Logger,
) *NotificationWorker {
	defaults := DefaultNotificationWorkerConfig()
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}
	if config.RatePerSecond <= 0 {
		config.RatePerSecond = defaults.RatePerSecond
	}
	if config.Burst <= 0 {
		config.Burst = defaults.Burst
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = defaults.SendTimeout
	}
	if config.RecordTimeout <= 0 {
		config.RecordTimeout = defaults.RecordTimeout
	}

	return &NotificationWorker{
		config:           config,
		notifier:         notifier,
		notificationRepo: notificationRepo,
		limiter:          rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		queue:            make(chan port.Delivery, config.QueueSize),
		logger:           logger,
	}
}

// Enqueue hands a delivery to the worker without blocking
func (w *NotificationWorker) Enqueue(ctx context.Context, delivery port.Delivery) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.isRunning {
		return ErrNotRunning
	}

	select {
	case w.queue <- delivery:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

// Start begins draining the queue
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.isRunning {
		w.mu.Unlock()
		return fmt.Errorf("notification worker already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.isRunning = true
	w.startTime = time.Now()
	w.mu.Unlock()

	w.logger.Info("NotificationWorker started",
		zap.Int("queue_size", w.config.QueueSize),
		zap.Float64("rate_per_second", w.config.RatePerSecond))

	w.wg.Add(1)
	go w.run(runCtx)

	return nil
}

// Stop cancels the drain loop and waits for the in-flight delivery.
// Deliveries still queued stay PENDING in the notifications table.
func (w *NotificationWorker) Stop() error {
	w.mu.Lock()
	if !w.isRunning {
		w.mu.Unlock()
		return nil
	}
	w.isRunning = false
	w.mu.Unlock()

	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()

	stats := w.Stats()
	w.logger.Info("NotificationWorker stopped",
		zap.Int("sent", stats.Sent),
		zap.Int("failed", stats.Failed),
		zap.Int("left_queued", stats.Queued))

	return nil
}

// Name returns the worker name for identification
func (w *NotificationWorker) Name() string {
	return "NotificationWorker"
}

// Stats returns the current delivery counters
func (w *NotificationWorker) Stats() WorkerStats {
	w.mu.RLock()
	defer w.mu.RUnlock()

	stats := WorkerStats{
		Running:   w.isRunning,
		Queued:    len(w.queue),
		Sent:      w.sent,
		Failed:    w.failed,
		StartedAt: w.startTime,
	}
	if w.lastError != nil {
		stats.LastError = w.lastError.Error()
	}
	return stats
}

func (w *NotificationWorker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case delivery := <-w.queue:
			w.deliver(ctx, delivery)
		}
	}
}

func (w *NotificationWorker) deliver(ctx context.Context, delivery port.Delivery) {
	var err error
	for attempt := 1; attempt <= w.config.MaxAttempts; attempt++ {
		if err = w.limiter.Wait(ctx); err != nil {
			// Shutting down; the row stays PENDING.
			return
		}

		err = w.send(ctx, delivery)
		if err == nil {
			break
		}

		w.logger.Error("Notification delivery attempt failed",
			zap.Int64("notification_id", delivery.NotificationID),
			zap.String("recipient", delivery.Recipient),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < w.config.MaxAttempts && !sleep(ctx, w.config.RetryDelay) {
			return
		}
	}

	w.record(delivery, err)
}

func (w *NotificationWorker) send(ctx context.Context, delivery port.Delivery) error {
	sendCtx, cancel := context.WithTimeout(ctx, w.config.SendTimeout)
	defer cancel()
	return w.notifier.SendText(sendCtx, delivery.Recipient, delivery.Text)
}

// record stores the outcome on a fresh context so a shutdown does not lose it
func (w *NotificationWorker) record(delivery port.Delivery, sendErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), w.config.RecordTimeout)
	defer cancel()

	var err error
	if sendErr == nil {
		err = w.notificationRepo.MarkSent(ctx, delivery.NotificationID, time.Now())
	} else {
		err = w.notificationRepo.MarkFailed(ctx, delivery.NotificationID, sendErr.Error())
	}
	if err != nil {
		w.logger.Error("Failed to record notification outcome",
			zap.Int64("notification_id", delivery.NotificationID),
			zap.Error(err))
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if sendErr == nil {
		w.sent++
		return
	}
	w.failed++
	w.lastError = sendErr
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Verify interface compliance
var (
	_ port.DeliveryQueue = (*NotificationWorker)(nil)
	_ Worker             = (*NotificationWorker)(nil)
)
