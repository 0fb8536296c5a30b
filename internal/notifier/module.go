package notifier

import (
	"context"

	"github.com/classifyhq/classify-auth/internal/notifier/inbound"
	"github.com/classifyhq/classify-auth/internal/notifier/outbound/email"
	"github.com/classifyhq/classify-auth/internal/notifier/usecase"
	"github.com/classifyhq/classify-auth/internal/pkg/clock"
	"github.com/classifyhq/classify-auth/internal/pkg/config"
	"github.com/classifyhq/classify-auth/internal/pkg/goroutine"
	"github.com/classifyhq/classify-auth/internal/pkg/idempotency"
	"github.com/classifyhq/classify-auth/internal/pkg/instrument"
	"github.com/classifyhq/classify-auth/internal/pkg/mail"
	"github.com/classifyhq/classify-auth/internal/pkg/messaging"
	"github.com/classifyhq/classify-auth/internal/pkg/uid"
	"github.com/classifyhq/classify-auth/internal/pkg/validator"
)

type Dependency struct {
	Ctx         context.Context
	Messaging   messaging.Messaging
	Config      config.Config
	Instrument  instrument.Instrumentation
	UUID        uid.StringID
	Clock       clock.Clocker
	Goroutine   *goroutine.Manager
	Validator   validator.Validator
	Idempotency idempotency.Idempotency
	Mail        mail.Mail
}

func New(dep Dependency) error {
	repoMail := email.New(dep.Mail, dep.Instrument)

	uc := usecase.NewNotifier(usecase.Dependency{
		Config:      dep.Config,
		Clock:       dep.Clock,
		Validator:   dep.Validator,
		Idempotency: dep.Idempotency,
		RepoMail:    repoMail,
		Instrument:  dep.Instrument,
	})

	if dep.Ctx != nil {
		inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)
	}

	return nil
}
