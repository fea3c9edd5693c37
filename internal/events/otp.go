package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"otp_expense_tracker/internal/metrics"
	"otp_expense_tracker/internal/model"
	"otp_expense_tracker/internal/sms"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// OTPPublisher hands issued codes to the delivery topic.
type OTPPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewOTPPublisher creates a new OTPPublisher writing to publisher.
func NewOTPPublisher(publisher message.Publisher) *OTPPublisher {
	return &OTPPublisher{publisher: publisher, topic: TopicOTPRequested}
}

// DispatchOTP publishes the delivery request. It does not wait for the SMS.
func (p *OTPPublisher) DispatchOTP(_ context.Context, d model.OTPDelivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal otp event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("user_id", d.UserID)

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish otp event: %w", err)
	}
	return nil
}

// DeliveryWorker consumes delivery requests and sends them as SMS.
// Failed sends are logged and acked; the user can ask for a new code.
type DeliveryWorker struct {
	subscriber  message.Subscriber
	sender      sms.Sender
	logger      *slog.Logger
	topic       string
	sendTimeout time.Duration
	now         func() time.Time
}

// NewDeliveryWorker creates a new DeliveryWorker that sends codes read from
// subscriber through sender.
func NewDeliveryWorker(subscriber message.Subscriber, sender sms.Sender, logger *slog.Logger) *DeliveryWorker {
	return &DeliveryWorker{
		subscriber:  subscriber,
		sender:      sender,
		logger:      logger.With("component", "otp_delivery"),
		topic:       TopicOTPRequested,
		sendTimeout: 15 * time.Second,
		now:         time.Now,
	}
}

// Run blocks until ctx is cancelled or the subscription closes.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	msgs, err := w.subscriber.Subscribe(ctx, w.topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", w.topic, err)
	}
	w.logger.Info("otp delivery worker started", "topic", w.topic)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *DeliveryWorker) handle(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var d model.OTPDelivery
	if err := json.Unmarshal(msg.Payload, &d); err != nil {
		w.logger.Error("dropping malformed otp event", "message_uuid", msg.UUID, "error", err)
		return
	}
	if !d.ExpiresAt.IsZero() && !w.now().Before(d.ExpiresAt) {
		w.logger.Warn("skipping expired otp event", "message_uuid", msg.UUID, "user_id", d.UserID)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, w.sendTimeout)
	defer cancel()

	if err := w.sender.Send(sendCtx, d.Phone, sms.OTPText(d.Code)); err != nil {
		metrics.RecordOTPDelivery(false)
		w.logger.Warn("otp delivery failed", "user_id", d.UserID, "phone", sms.MaskPhone(d.Phone), "error", err)
		return
	}
	metrics.RecordOTPDelivery(true)
	w.logger.Debug("otp delivered", "user_id", d.UserID, "phone", sms.MaskPhone(d.Phone))
}
