package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChangeNotifier publishes and subscribes license change notifications over
// a Redis pub/sub channel. The payload is informational only; subscribers
// refetch the whole snapshot regardless of what changed.
type ChangeNotifier struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

func NewChangeNotifier(client *redis.Client, channel string, logger *zap.Logger) *ChangeNotifier {
	return &ChangeNotifier{
		client:  client,
		channel: channel,
		logger:  logger.Named("ChangeNotifier"),
	}
}

func (n *ChangeNotifier) NotifyChanged(ctx context.Context, reason string) error {
	if err := n.client.Publish(ctx, n.channel, reason).Err(); err != nil {
		n.logger.Warn("Failed to publish change notification", zap.String("reason", reason), zap.Error(err))
		return fmt.Errorf("redis publish error: %w", err)
	}
	return nil
}

// Subscribe delivers one signal per published notification until ctx is
// canceled. The returned channel closes when the subscription ends.
func (n *ChangeNotifier) Subscribe(ctx context.Context) (<-chan struct{}, error) {
	sub := n.client.Subscribe(ctx, n.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe error: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				n.logger.Debug("Change notification received", zap.String("payload", msg.Payload))
				select {
				case out <- struct{}{}:
				default:
					// A refresh is already pending; collapsing signals is
					// fine because refresh always refetches everything.
				}
			}
		}
	}()
	return out, nil
}
