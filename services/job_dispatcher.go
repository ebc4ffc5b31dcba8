package services

import (
	"context"
	"encoding/json"
	"time"

	"ngo-report-api/config"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrEnqueue wraps failures to hand a job to the queue. The job has not started.
var ErrEnqueue = errors.New("enqueue bulk upload job")

type jobProcessor interface {
	Process(ctx context.Context, jobID string, content []byte) error
}

// JobDispatcher decides where a created job runs.
type JobDispatcher interface {
	Dispatch(ctx context.Context, jobID string, content []byte) error
	Mode() string
}

// InlineDispatcher runs the job on the caller's goroutine and returns its error.
type InlineDispatcher struct {
	processor jobProcessor
}

func NewInlineDispatcher(processor jobProcessor) *InlineDispatcher {
	return &InlineDispatcher{processor: processor}
}

func (d *InlineDispatcher) Dispatch(ctx context.Context, jobID string, content []byte) error {
	return d.processor.Process(ctx, jobID, content)
}

func (d *InlineDispatcher) Mode() string { return config.IngestModeInline }

type redisQueueClient interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

type queuedJob struct {
	JobID   string `json:"job_id"`
	Content []byte `json:"content"`
}

// RedisQueueDispatcher pushes jobs onto a Redis list for QueueWorker to pick up.
type RedisQueueDispatcher struct {
	client redisQueueClient
	key    string
}

func NewRedisQueueDispatcher(client redisQueueClient, key string) *RedisQueueDispatcher {
	return &RedisQueueDispatcher{client: client, key: key}
}

func (d *RedisQueueDispatcher) Dispatch(ctx context.Context, jobID string, content []byte) error {
	payload, err := json.Marshal(queuedJob{JobID: jobID, Content: content})
	if err != nil {
		return errors.Wrapf(ErrEnqueue, "encode job %s: %v", jobID, err)
	}
	if err := d.client.LPush(ctx, d.key, payload).Err(); err != nil {
		return errors.Wrapf(ErrEnqueue, "push job %s: %v", jobID, err)
	}
	return nil
}

func (d *RedisQueueDispatcher) Mode() string { return config.IngestModeQueue }

// Depth returns the number of queued jobs not yet picked up.
func (d *RedisQueueDispatcher) Depth(ctx context.Context) (int64, error) {
	return d.client.LLen(ctx, d.key).Result()
}

// QueueWorker pops queued jobs and runs them one at a time. BRPOP hands each
// payload to a single worker, and the pending->processing guard in the job
// tracker rejects a job id that is delivered twice.
type QueueWorker struct {
	client    redisQueueClient
	key       string
	processor jobProcessor
	timeout   time.Duration
	logger    logrus.FieldLogger
}

func NewQueueWorker(client redisQueueClient, key string, processor jobProcessor, timeout time.Duration) *QueueWorker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &QueueWorker{
		client:    client,
		key:       key,
		processor: processor,
		timeout:   timeout,
		logger:    config.Logger,
	}
}

// Run blocks until ctx is done.
func (w *QueueWorker) Run(ctx context.Context) error {
	w.logger.WithField("queue", w.key).Info("ingest worker started")
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := w.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.WithError(err).Error("ingest worker poll failed")
			if !sleepWithContext(ctx, w.timeout) {
				return nil
			}
		}
	}
}

// RunOnce waits up to the poll timeout for one job and processes it. handled is
// false when the queue stayed empty. Job failures are logged, not returned.
func (w *QueueWorker) RunOnce(ctx context.Context) (handled bool, err error) {
	res, err := w.client.BRPop(ctx, w.timeout, w.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "pop ingest queue")
	}
	if len(res) != 2 {
		return false, errors.Errorf("unexpected BRPOP reply of %d items", len(res))
	}

	var job queuedJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		w.logger.WithError(err).Error("dropping undecodable ingest payload")
		return true, nil
	}

	logger := w.logger.WithField("job_id", job.JobID)
	if err := w.processor.Process(ctx, job.JobID, job.Content); err != nil {
		logger.WithError(err).Error("queued bulk upload failed")
	}
	return true, nil
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
