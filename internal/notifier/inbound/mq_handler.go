package inbound

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/classifyhq/classify-auth/internal/notifier/usecase"
	"github.com/classifyhq/classify-auth/internal/pkg/instrument"
	"github.com/classifyhq/classify-auth/internal/pkg/messaging"
	"github.com/classifyhq/classify-auth/internal/pkg/uid"
	"github.com/classifyhq/classify-auth/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header) context.Context {
	for i := range headers {
		if headers[i].Key == keyOfCorrelationID {
			return instrument.SetCorrelationID(ctx, string(headers[i].Value))
		}
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func (h *MQHandler) OtpIssuedAudit(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("notifier.inbound.mq").Start(ctx, "OtpIssuedAudit")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: otp issued audit", "msg_body", string(body))

	var payload event.OtpIssuedMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of otp issued audit", "msg_body", string(body), "error", err)
		return nil
	}

	if err := h.uc.ConsumeOtpIssued(ctx, usecase.ConsumeOtpIssuedInput{
		OtpID:       payload.OtpID,
		Purpose:     payload.Purpose,
		Method:      payload.Method,
		Destination: payload.Destination,
		Provider:    payload.Provider,
		IssuedAt:    time.Unix(payload.IssuedAt, 0),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume otp issued", "msg_body", string(body), "error", err)
		return err
	}

	return nil
}

func (h *MQHandler) DeviceTrustedNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("notifier.inbound.mq").Start(ctx, "DeviceTrustedNotification")
	defer span.End()

	body := msg.Body()
	slog.InfoContext(ctx, "consume: device trusted notification", "msg_body", string(body))

	var payload event.DeviceTrustedMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of device trusted notification", "msg_body", string(body), "error", err)
		return nil
	}

	if err := h.uc.ConsumeDeviceTrusted(ctx, usecase.ConsumeDeviceTrustedInput{
		OwnerID:   payload.OwnerID,
		Email:     payload.Email,
		DeviceID:  payload.DeviceID,
		Label:     payload.Label,
		TrustedAt: time.Unix(payload.TrustedAt, 0),
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume device trusted", "msg_body", string(body), "error", err)
		return err
	}

	return nil
}
