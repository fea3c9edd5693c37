// Package events moves issued codes from the API to the SMS delivery worker.
package events

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

const (
	TopicOTPRequested = "otp.requested"

	deliveryConsumerGroup = "otp-delivery"
)

// PubSub pairs a publisher with the subscriber reading the same transport.
type PubSub struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber
	close      func() error
}

// NewGoChannel keeps messages in process. Nothing survives a restart.
func NewGoChannel(logger *slog.Logger) *PubSub {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NewSlogLogger(logger))
	return &PubSub{Publisher: ch, Subscriber: ch, close: ch.Close}
}

// NewRedisStream publishes to a Redis stream consumed by a shared consumer group,
// so several API instances split delivery work.
func NewRedisStream(client *redis.Client, logger *slog.Logger) (*PubSub, error) {
	wlog := watermill.NewSlogLogger(logger)

	pub, err := redisstream.NewPublisher(redisstream.PublisherConfig{Client: client}, wlog)
	if err != nil {
		return nil, fmt.Errorf("create redis stream publisher: %w", err)
	}
	sub, err := redisstream.NewSubscriber(redisstream.SubscriberConfig{
		Client:        client,
		ConsumerGroup: deliveryConsumerGroup,
	}, wlog)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create redis stream subscriber: %w", err)
	}
	return &PubSub{
		Publisher:  pub,
		Subscriber: sub,
		close:      func() error { return errors.Join(pub.Close(), sub.Close()) },
	}, nil
}

// Close shuts down the publisher and subscriber.
func (p *PubSub) Close() error {
	return p.close()
}
