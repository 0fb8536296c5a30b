package app

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/classifyhq/classify-auth/internal/notifier"
	"github.com/classifyhq/classify-auth/internal/otpauth"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.otpauth.enabled") {
		uc, err := otpauth.New(otpauth.Dependency{
			Config:     a.config,
			Instrument: a.ins,
			UID:        a.uid,
			OID:        a.oid,
			Bcrypt:     a.bcrypt,
			HMAC:       a.hmac,
			Argon2ID:   a.argon2id,
			Clock:      a.clock,
			CodeGen:    a.codeGen,
			Validator:  a.validator,
			Router:     a.router,
			DBConn:     a.dbConn,
			CacheConn:  a.cacheConn,
			Messaging:  a.messaging,
			Registry:   a.registry,
			Goroutine:  a.goroutine,
			JWT:        a.jwt,
		})
		if err != nil {
			slog.Error("failed to init module otpauth", "error", err)
			os.Exit(1)
		}

		// the registry starts with every built provider active; the
		// operator-managed table takes over once it loads
		reloadCtx, cancel := context.WithTimeout(a.ctx, 10*time.Second)
		defer cancel()
		if err := uc.ReloadProviders(reloadCtx); err != nil {
			slog.Warn("failed to load delivery providers, using built-in defaults", "error", err)
		}
	}

	if a.config.GetBool("modules.notifier.enabled") {
		if err := notifier.New(notifier.Dependency{
			Ctx:         a.ctx,
			Messaging:   a.messaging,
			Config:      a.config,
			Instrument:  a.ins,
			UUID:        a.uuid,
			Clock:       a.clock,
			Goroutine:   a.goroutine,
			Validator:   a.validator,
			Idempotency: a.idemp,
			Mail:        a.mail,
		}); err != nil {
			slog.Error("failed to init module notifier", "error", err)
			os.Exit(1)
		}
	}
}
