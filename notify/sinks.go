package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// LogSink writes notifications to a logger.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Deliver(_ context.Context, n Notification) error {
	logger := s.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	entry := logger.WithFields(log.Fields{
		"board": n.Board,
		"level": string(n.Level),
	})
	if n.TaskID != "" {
		entry = entry.WithField("task", n.TaskID.String())
	}
	if n.Kind != "" {
		entry = entry.WithField("kind", string(n.Kind))
	}
	switch n.Level {
	case LevelError:
		entry.Error(n.Message)
	case LevelWarning:
		entry.Warn(n.Message)
	default:
		entry.Info(n.Message)
	}
	return nil
}

// RedisSink publishes notifications as JSON on a pub/sub channel. An empty
// channel name publishes per board on "notifications:<board>".
type RedisSink struct {
	client  *redis.Client
	channel string
}

func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	if client == nil {
		panic("notify.NewRedisSink: client is nil")
	}
	return &RedisSink{client: client, channel: channel}
}

// Channel returns the channel a notification for board is published on.
func (s *RedisSink) Channel(board string) string {
	if s.channel != "" {
		return s.channel
	}
	return "notifications:" + board
}

func (s *RedisSink) Deliver(ctx context.Context, n Notification) error {
	data, err := sonic.Marshal(n)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.Channel(n.Board), data).Err()
}

type queueAPI interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

// QueueSink enqueues notifications on an Azure Storage queue.
type QueueSink struct {
	queue  queueAPI
	client *azqueue.QueueClient
}

func NewQueueSink(connStr, queue string) (*QueueSink, error) {
	opts := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    30 * time.Second,
				RetryDelay:    time.Second,
				MaxRetryDelay: 15 * time.Second,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, &opts)
	if err != nil {
		return nil, err
	}
	return &QueueSink{queue: q, client: q}, nil
}

// EnsureQueue creates the queue unless it already exists.
func (s *QueueSink) EnsureQueue(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	_, err := s.client.Create(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == "QueueAlreadyExists") {
			return err
		}
	}
	return nil
}

func (s *QueueSink) Deliver(ctx context.Context, n Notification) error {
	data, err := sonic.Marshal(n)
	if err != nil {
		return err
	}
	if _, err := s.queue.EnqueueMessage(ctx, string(data), nil); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}

// Fanout delivers to every sink in parallel and returns the first error.
type Fanout []Sink

func (f Fanout) Deliver(ctx context.Context, n Notification) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range f {
		g.Go(func() error { return s.Deliver(gctx, n) })
	}
	return g.Wait()
}
