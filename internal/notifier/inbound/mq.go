package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/classifyhq/classify-auth/internal/notifier/usecase"
	"github.com/classifyhq/classify-auth/internal/pkg/config"
	"github.com/classifyhq/classify-auth/internal/pkg/goroutine"
	"github.com/classifyhq/classify-auth/internal/pkg/instrument"
	"github.com/classifyhq/classify-auth/internal/pkg/messaging"
	"github.com/classifyhq/classify-auth/internal/pkg/uid"
	"github.com/classifyhq/classify-auth/internal/shared/event"
)

type uc interface {
	ConsumeOtpIssued(ctx context.Context, in usecase.ConsumeOtpIssuedInput) error
	ConsumeDeviceTrusted(ctx context.Context, in usecase.ConsumeDeviceTrustedInput) error
}

func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Messaging,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enableConsumerNames := cfg.GetArray("modules.notifier.consumer_names")

	var consumers = []struct {
		name               string
		topic              string // destination where publisher sent message
		nsqConsumerName    string // for nsq
		natsConsumerName   string // for nats
		kafkaConsumerName  string // for kafka
		pubsubConsumerName string // for google pubusb
		handler            messaging.Handler
	}{
		{
			name:               event.OtpIssuedConsumerAudit,
			topic:              event.OtpIssuedDestination,
			nsqConsumerName:    event.OtpIssuedConsumerAudit,
			natsConsumerName:   event.OtpIssuedConsumerAudit,
			kafkaConsumerName:  event.OtpIssuedConsumerAudit,
			pubsubConsumerName: event.OtpIssuedConsumerAudit,
			handler:            mqHandler.OtpIssuedAudit,
		},
		{
			name:               event.DeviceTrustedConsumerNotification,
			topic:              event.DeviceTrustedDestination,
			nsqConsumerName:    event.DeviceTrustedConsumerNotification,
			natsConsumerName:   event.DeviceTrustedConsumerNotification,
			kafkaConsumerName:  event.DeviceTrustedConsumerNotification,
			pubsubConsumerName: event.DeviceTrustedConsumerNotification,
			handler:            mqHandler.DeviceTrustedNotification,
		},
	}

	for _, consumer := range consumers {
		if len(enableConsumerNames) > 0 && slices.Contains(enableConsumerNames, consumer.name) {
			routine.Go(ctx, func(pCtx context.Context) error {
				slog.InfoContext(ctx, "Running job for handling consumer", "consumer", consumer.name)
				return messenger.Consume(pCtx,
					consumer.topic,
					consumer.handler,
					messaging.WithChannel(consumer.nsqConsumerName),
					messaging.WithQueueGroup(consumer.natsConsumerName),
					messaging.WithGroup(consumer.kafkaConsumerName),
					messaging.WithSubscription(consumer.pubsubConsumerName),
					messaging.WithAutoAck(true),
					messaging.WithConcurrency(10),
					messaging.WithMaxInFlight(10),
				)
			})
		}
	}
}
