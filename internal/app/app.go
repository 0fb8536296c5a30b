package app

import (
	"context"
	"net/http"

	"github.com/classifyhq/classify-auth/internal/otpauth/outbound/delivery"
	"github.com/classifyhq/classify-auth/internal/pkg/clock"
	"github.com/classifyhq/classify-auth/internal/pkg/config"
	"github.com/classifyhq/classify-auth/internal/pkg/goroutine"
	"github.com/classifyhq/classify-auth/internal/pkg/hash"
	"github.com/classifyhq/classify-auth/internal/pkg/idempotency"
	"github.com/classifyhq/classify-auth/internal/pkg/instrument"
	"github.com/classifyhq/classify-auth/internal/pkg/jwt"
	"github.com/classifyhq/classify-auth/internal/pkg/mail"
	"github.com/classifyhq/classify-auth/internal/pkg/messaging"
	"github.com/classifyhq/classify-auth/internal/pkg/otp"
	"github.com/classifyhq/classify-auth/internal/pkg/router"
	"github.com/classifyhq/classify-auth/internal/pkg/uid"
	"github.com/classifyhq/classify-auth/internal/pkg/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine *goroutine.Manager
	validator validator.Validator
	clock     clock.Clocker
	hmac      hash.Hash
	argon2id  hash.Hash
	bcrypt    hash.Hash
	uid       uid.NumberID
	oid       uid.StringID
	uuid      uid.StringID
	codeGen   otp.Generator
	jwt       jwt.JWT

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	mail      mail.Mail
	messaging messaging.Messaging
	registry  *delivery.Registry

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initJWT()
	app.initDatabase()
	app.initCache()
	app.initMail()
	app.initMessaging()
	app.initDelivery()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
