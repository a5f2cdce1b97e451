package cache

import (
	"context"
	"errors"

	"github.com/campusbite/canteen/pkg/logger"
)

// ErrDisabled is returned by relay calls on a Store without a live client.
var ErrDisabled = errors.New("cache: redis disabled")

// Publish sends payload on a Redis pub/sub channel.
func (s *Store) Publish(ctx context.Context, channel string, payload []byte) error {
	if !s.Enabled() {
		return ErrDisabled
	}
	return s.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe calls fn for every message on channel until ctx is done. It
// blocks, so run it in its own goroutine.
func (s *Store) Subscribe(ctx context.Context, channel string, fn func([]byte)) error {
	if !s.Enabled() {
		return ErrDisabled
	}

	sub := s.rdb.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	logger.Info("cache: subscribed", "channel", channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn([]byte(msg.Payload))
		}
	}
}
