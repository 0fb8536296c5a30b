package usecase

import (
	"context"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
	"github.com/classifyhq/classify-auth/internal/pkg/clock"
	"github.com/classifyhq/classify-auth/internal/pkg/config"
	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
	"github.com/classifyhq/classify-auth/internal/pkg/goroutine"
	"github.com/classifyhq/classify-auth/internal/pkg/hash"
	"github.com/classifyhq/classify-auth/internal/pkg/instrument"
	"github.com/classifyhq/classify-auth/internal/pkg/jwt"
	"github.com/classifyhq/classify-auth/internal/pkg/otp"
	"github.com/classifyhq/classify-auth/internal/pkg/ratelimit"
	"github.com/classifyhq/classify-auth/internal/pkg/uid"
	"github.com/classifyhq/classify-auth/internal/pkg/validator"
	"go.opentelemetry.io/otel/trace"
)

type OtpIssuedEvent struct {
	OtpID       int64
	Purpose     string
	Method      string
	Destination string
	Provider    string
	IssuedAt    time.Time
}

type DeviceTrustedEvent struct {
	OwnerID   int64
	Email     string
	DeviceID  string
	Label     string
	TrustedAt time.Time
}

type repoMessaging interface {
	PublishOtpIssued(ctx context.Context, msg OtpIssuedEvent) error
	PublishDeviceTrusted(ctx context.Context, msg DeviceTrustedEvent) error
}

type repoDB interface {
	GetOtpByID(ctx context.Context, id int64, destination string, purpose entity.Purpose) (*entity.OtpRecord, error)
	GetLatestPendingOtp(ctx context.Context, destination string, purpose entity.Purpose) (*entity.OtpRecord, error)
	GetNewestOtpCreatedAt(ctx context.Context, destination string, purpose entity.Purpose) (time.Time, error)
	CountRequests(ctx context.Context, destination, ip string, since time.Time) (int64, error)

	IssueOtp(ctx context.Context, in entity.IssueOtp) error
	MarkOtpExpired(ctx context.Context, id int64) error
	IncrementOtpAttempts(ctx context.Context, id int64) (int32, bool, error)
	BlockOtp(ctx context.Context, id int64) error
	MarkOtpVerified(ctx context.Context, id int64, at time.Time) (bool, error)

	GetAccountByDestination(ctx context.Context, destination string) (*entity.Account, error)
	GetAccountByID(ctx context.Context, id int64) (*entity.Account, error)
	RecordFailedLogin(ctx context.Context, accountID int64, threshold int32, lockUntil time.Time) error
	ResetFailedLogins(ctx context.Context, accountID int64) error

	CreateTrustedDevice(ctx context.Context, dev entity.TrustedDevice) error
	ListActiveTrustedDevices(ctx context.Context, ownerID int64, now time.Time) ([]entity.TrustedDevice, error)
	GetTrustedDeviceByHash(ctx context.Context, deviceIDHash string) (*entity.TrustedDevice, error)
	RotateDeviceToken(ctx context.Context, in entity.RotateDeviceToken) (bool, error)
	RevokeTrustedDevice(ctx context.Context, ownerID, deviceRowID int64, at time.Time) (string, bool, error)

	UpsertSession(ctx context.Context, sess entity.Session) error
	DeleteSessionsByDevice(ctx context.Context, ownerID int64, deviceIDHash string) error

	ListProviderSettings(ctx context.Context) ([]entity.ProviderSetting, error)
}

type deliverer interface {
	Deliver(ctx context.Context, method entity.DeliveryMethod, destination, code string, ttl time.Duration) (string, error)
	Reload(ctx context.Context, settings []entity.ProviderSetting)
	Active(method entity.DeliveryMethod) []string
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	deliverer     deliverer
	verifyLimiter ratelimit.Limiter
	validator     validator.Validator
	cfg           config.Config
	hmac          hash.Hash
	bcrypt        hash.Hash
	argon2id      hash.Hash
	uid           uid.NumberID
	oid           uid.StringID
	codeGen       otp.Generator
	clock         clock.Clocker
	jwt           jwt.JWT
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	Deliverer     deliverer
	VerifyLimiter ratelimit.Limiter
	Validator     validator.Validator
	Config        config.Config
	HMAC          hash.Hash
	Bcrypt        hash.Hash
	Argon2ID      hash.Hash
	UID           uid.NumberID
	OID           uid.StringID
	CodeGen       otp.Generator
	Clock         clock.Clocker
	JWT           jwt.JWT
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		deliverer:     dep.Deliverer,
		verifyLimiter: dep.VerifyLimiter,
		validator:     dep.Validator,
		cfg:           dep.Config,
		hmac:          dep.HMAC,
		bcrypt:        dep.Bcrypt,
		argon2id:      dep.Argon2ID,
		uid:           dep.UID,
		oid:           dep.OID,
		codeGen:       dep.CodeGen,
		clock:         dep.Clock,
		jwt:           dep.JWT,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("otpauth.usecase").Start(ctx, name)
}

func (s *Usecase) authenticated(ctx context.Context) (*jwt.Claims, error) {
	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return nil, goerror.NewBusiness("Authentication required", goerror.CodeUnauthorized)
	}

	return clm, nil
}
