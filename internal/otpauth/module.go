package otpauth

import (
	"github.com/classifyhq/classify-auth/internal/otpauth/inbound"
	"github.com/classifyhq/classify-auth/internal/otpauth/outbound/db"
	"github.com/classifyhq/classify-auth/internal/otpauth/outbound/delivery"
	"github.com/classifyhq/classify-auth/internal/otpauth/outbound/mq"
	"github.com/classifyhq/classify-auth/internal/otpauth/usecase"
	"github.com/classifyhq/classify-auth/internal/pkg/clock"
	"github.com/classifyhq/classify-auth/internal/pkg/config"
	"github.com/classifyhq/classify-auth/internal/pkg/goroutine"
	"github.com/classifyhq/classify-auth/internal/pkg/hash"
	"github.com/classifyhq/classify-auth/internal/pkg/instrument"
	"github.com/classifyhq/classify-auth/internal/pkg/jwt"
	"github.com/classifyhq/classify-auth/internal/pkg/messaging"
	"github.com/classifyhq/classify-auth/internal/pkg/otp"
	"github.com/classifyhq/classify-auth/internal/pkg/ratelimit"
	"github.com/classifyhq/classify-auth/internal/pkg/router"
	"github.com/classifyhq/classify-auth/internal/pkg/uid"
	"github.com/classifyhq/classify-auth/internal/pkg/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Dependency struct {
	DBConn     *pgxpool.Pool              `validate:"required"`
	CacheConn  *redis.Client              `validate:"required"`
	Goroutine  *goroutine.Manager         `validate:"required"`
	Router     *router.Router             `validate:"required"`
	Messaging  messaging.Messaging        `validate:"required"`
	Registry   *delivery.Registry         `validate:"required"`
	Config     config.Config              `validate:"required"`
	Instrument instrument.Instrumentation `validate:"required"`
	UID        uid.NumberID               `validate:"required"`
	OID        uid.StringID               `validate:"required"`
	HMAC       hash.Hash                  `validate:"required"`
	Bcrypt     hash.Hash                  `validate:"required"`
	Argon2ID   hash.Hash                  `validate:"required"`
	Clock      clock.Clocker              `validate:"required"`
	CodeGen    otp.Generator              `validate:"required"`
	Validator  validator.Validator        `validate:"required"`
	JWT        jwt.JWT                    `validate:"required"`
}

// Usecase is returned so the app can run the initial provider reload after
// wiring completes.
func New(dep Dependency) (*usecase.Usecase, error) {
	if err := dep.Validator.Validate(dep); err != nil {
		return nil, err
	}

	dbAuth := db.NewDB(dep.DBConn, dep.Instrument)
	repoMsg := mq.NewMessaging(dep.Messaging, dep.Instrument)

	limiter := ratelimit.NewFixedWindow(
		dep.CacheConn,
		"otpauth:verify",
		dep.Config.GetInt64("modules.otpauth.verify_limit_per_minute"),
		dep.Config.GetMinute("modules.otpauth.verify_limit_window_minutes"),
	)

	uc := usecase.New(usecase.Dependency{
		RepoDB:        dbAuth,
		RepoMessaging: repoMsg,
		Deliverer:     dep.Registry,
		VerifyLimiter: limiter,
		Validator:     dep.Validator,
		Config:        dep.Config,
		HMAC:          dep.HMAC,
		Bcrypt:        dep.Bcrypt,
		Argon2ID:      dep.Argon2ID,
		UID:           dep.UID,
		OID:           dep.OID,
		CodeGen:       dep.CodeGen,
		Clock:         dep.Clock,
		JWT:           dep.JWT,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return uc, nil
}
