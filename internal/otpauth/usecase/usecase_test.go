package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/classifyhq/classify-auth/internal/otpauth/entity"
	"github.com/classifyhq/classify-auth/internal/pkg/config"
	"github.com/classifyhq/classify-auth/internal/pkg/goerror"
	"github.com/classifyhq/classify-auth/internal/pkg/goroutine"
	"github.com/classifyhq/classify-auth/internal/pkg/hash"
	"github.com/classifyhq/classify-auth/internal/pkg/instrument"
	"github.com/classifyhq/classify-auth/internal/pkg/jwt"
	"github.com/classifyhq/classify-auth/internal/pkg/otp"
	"github.com/classifyhq/classify-auth/internal/pkg/uid"
	"github.com/classifyhq/classify-auth/internal/pkg/validator"
)

const testConfigYAML = `
modules:
  otpauth:
    code_length: 6
    otp_ttl_minutes: 5
    max_attempts: 5
    cooldown_seconds: 60
    quota_limit: 3
    quota_window_minutes: 10
    session_ttl_hours: 24
    device_trust_ttl_days: 30
    max_trusted_devices: 5
    lockout_threshold: 5
    lockout_minutes: 15
`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type fakeRepo struct {
	mu sync.Mutex

	otps     map[int64]*entity.OtpRecord
	log      []entity.RequestLogEntry
	accounts map[int64]*entity.Account
	devices  map[int64]*entity.TrustedDevice
	sessions map[string]entity.Session
	settings []entity.ProviderSetting

	issueErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		otps:     map[int64]*entity.OtpRecord{},
		accounts: map[int64]*entity.Account{},
		devices:  map[int64]*entity.TrustedDevice{},
		sessions: map[string]entity.Session{},
	}
}

func (r *fakeRepo) GetOtpByID(_ context.Context, id int64, destination string, purpose entity.Purpose) (*entity.OtpRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.otps[id]
	if !ok || rec.Destination != destination || rec.Purpose != purpose {
		return nil, goerror.ErrNotFound
	}

	cp := *rec

	return &cp, nil
}

func (r *fakeRepo) GetLatestPendingOtp(_ context.Context, destination string, purpose entity.Purpose) (*entity.OtpRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newest *entity.OtpRecord
	for _, rec := range r.otps {
		if rec.Destination != destination || rec.Purpose != purpose || rec.Status != entity.OtpStatusPending {
			continue
		}
		if newest == nil || rec.CreatedAt.After(newest.CreatedAt) {
			newest = rec
		}
	}

	if newest == nil {
		return nil, goerror.ErrNotFound
	}

	cp := *newest

	return &cp, nil
}

func (r *fakeRepo) GetNewestOtpCreatedAt(_ context.Context, destination string, purpose entity.Purpose) (time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newest time.Time
	var found bool
	for _, rec := range r.otps {
		if rec.Destination != destination || rec.Purpose != purpose {
			continue
		}
		if !found || rec.CreatedAt.After(newest) {
			newest = rec.CreatedAt
			found = true
		}
	}

	if !found {
		return time.Time{}, goerror.ErrNotFound
	}

	return newest, nil
}

func (r *fakeRepo) CountRequests(_ context.Context, destination, ip string, since time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, e := range r.log {
		if e.Destination == destination && e.IPAddress == ip && e.CreatedAt.After(since) {
			n++
		}
	}

	return n, nil
}

func (r *fakeRepo) IssueOtp(_ context.Context, in entity.IssueOtp) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.issueErr != nil {
		return r.issueErr
	}

	for _, rec := range r.otps {
		if rec.Destination == in.Record.Destination && rec.Purpose == in.Record.Purpose && rec.Status == entity.OtpStatusPending {
			rec.Status = entity.OtpStatusSuperseded
		}
	}

	cp := in.Record
	r.otps[cp.ID] = &cp
	r.log = append(r.log, in.Log)

	return nil
}

func (r *fakeRepo) MarkOtpExpired(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.otps[id]; ok && rec.Status == entity.OtpStatusPending {
		rec.Status = entity.OtpStatusExpired
	}

	return nil
}

func (r *fakeRepo) IncrementOtpAttempts(_ context.Context, id int64) (int32, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.otps[id]
	if !ok || rec.Status != entity.OtpStatusPending {
		return 0, false, nil
	}

	rec.Attempts++

	return rec.Attempts, true, nil
}

func (r *fakeRepo) BlockOtp(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.otps[id]; ok {
		rec.Status = entity.OtpStatusBlocked
	}

	return nil
}

func (r *fakeRepo) MarkOtpVerified(_ context.Context, id int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.otps[id]
	if !ok || rec.Status != entity.OtpStatusPending {
		return false, nil
	}

	rec.Status = entity.OtpStatusVerified
	rec.VerifiedAt = &at

	return true, nil
}

func (r *fakeRepo) GetAccountByDestination(_ context.Context, destination string) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, acc := range r.accounts {
		if acc.Email == destination || acc.Phone == destination {
			cp := *acc
			return &cp, nil
		}
	}

	return nil, goerror.ErrNotFound
}

func (r *fakeRepo) GetAccountByID(_ context.Context, id int64) (*entity.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}

	cp := *acc

	return &cp, nil
}

func (r *fakeRepo) RecordFailedLogin(_ context.Context, accountID int64, threshold int32, lockUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[accountID]
	if !ok {
		return goerror.ErrNotFound
	}

	acc.FailedLoginAttempts++
	if acc.FailedLoginAttempts >= threshold {
		acc.LockedUntil = &lockUntil
	}

	return nil
}

func (r *fakeRepo) ResetFailedLogins(_ context.Context, accountID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if acc, ok := r.accounts[accountID]; ok {
		acc.FailedLoginAttempts = 0
		acc.LockedUntil = nil
	}

	return nil
}

func (r *fakeRepo) CreateTrustedDevice(_ context.Context, dev entity.TrustedDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := dev
	r.devices[cp.ID] = &cp

	return nil
}

func (r *fakeRepo) ListActiveTrustedDevices(_ context.Context, ownerID int64, now time.Time) ([]entity.TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []entity.TrustedDevice
	for _, dev := range r.devices {
		if dev.OwnerID == ownerID && dev.RevokedAt == nil && dev.ExpiresAt.After(now) {
			out = append(out, *dev)
		}
	}

	// oldest use first, matching the eviction order of the real query
	for i := range out {
		for j := i + 1; j < len(out); j++ {
			if out[j].LastUsedAt.Before(out[i].LastUsedAt) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}

	return out, nil
}

func (r *fakeRepo) GetTrustedDeviceByHash(_ context.Context, deviceIDHash string) (*entity.TrustedDevice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var newest *entity.TrustedDevice
	for _, dev := range r.devices {
		if dev.DeviceIDHash != deviceIDHash {
			continue
		}
		if newest == nil || dev.CreatedAt.After(newest.CreatedAt) {
			newest = dev
		}
	}

	if newest == nil {
		return nil, goerror.ErrNotFound
	}

	cp := *newest

	return &cp, nil
}

func (r *fakeRepo) RotateDeviceToken(_ context.Context, in entity.RotateDeviceToken) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[in.DeviceRowID]
	if !ok || dev.OwnerID != in.OwnerID || dev.RevokedAt != nil || dev.RefreshTokenHash != in.OldTokenHash {
		return false, nil
	}

	dev.RefreshTokenHash = in.NewTokenHash
	dev.ExpiresAt = in.NewExpiresAt
	dev.LastUsedAt = in.LastUsedAt

	return true, nil
}

func (r *fakeRepo) RevokeTrustedDevice(_ context.Context, ownerID, deviceRowID int64, at time.Time) (string, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dev, ok := r.devices[deviceRowID]
	if !ok || dev.OwnerID != ownerID || dev.RevokedAt != nil {
		return "", false, nil
	}

	dev.RevokedAt = &at

	return dev.DeviceIDHash, true, nil
}

func (r *fakeRepo) UpsertSession(_ context.Context, sess entity.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sess.DeviceIDHash] = sess

	return nil
}

func (r *fakeRepo) DeleteSessionsByDevice(_ context.Context, ownerID int64, deviceIDHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.sessions[deviceIDHash]; ok && sess.OwnerID == ownerID {
		delete(r.sessions, deviceIDHash)
	}

	return nil
}

func (r *fakeRepo) ListProviderSettings(_ context.Context) ([]entity.ProviderSetting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]entity.ProviderSetting(nil), r.settings...), nil
}

type fakeDeliverer struct {
	mu       sync.Mutex
	err      error
	codes    []string
	dests    []string
	reloaded [][]entity.ProviderSetting
}

func (d *fakeDeliverer) Deliver(_ context.Context, _ entity.DeliveryMethod, destination, code string, _ time.Duration) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.err != nil {
		return "", d.err
	}

	d.codes = append(d.codes, code)
	d.dests = append(d.dests, destination)

	return "smtp", nil
}

func (d *fakeDeliverer) Reload(_ context.Context, settings []entity.ProviderSetting) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.reloaded = append(d.reloaded, settings)
}

func (d *fakeDeliverer) Active(entity.DeliveryMethod) []string {
	return []string{"smtp"}
}

func (d *fakeDeliverer) lastCode() string {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.codes) == 0 {
		return ""
	}

	return d.codes[len(d.codes)-1]
}

type fakeLimiter struct {
	mu         sync.Mutex
	denied     bool
	retryAfter time.Duration
	calls      int
}

func (l *fakeLimiter) Allow(_ context.Context, _ string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++

	return !l.denied, l.retryAfter, nil
}

type fakeMessaging struct {
	mu      sync.Mutex
	issued  []OtpIssuedEvent
	trusted []DeviceTrustedEvent
}

func (m *fakeMessaging) PublishOtpIssued(_ context.Context, msg OtpIssuedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.issued = append(m.issued, msg)

	return nil
}

func (m *fakeMessaging) PublishDeviceTrusted(_ context.Context, msg DeviceTrustedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.trusted = append(m.trusted, msg)

	return nil
}

type fixture struct {
	uc        *Usecase
	repo      *fakeRepo
	deliverer *fakeDeliverer
	limiter   *fakeLimiter
	msg       *fakeMessaging
	clock     *fakeClock
	gm        *goroutine.Manager
	bcrypt    hash.Hash
	argon2id  hash.Hash
	hmac      hash.Hash
	uid       uid.NumberID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfigYAML))
	if err != nil {
		t.Fatalf("failed to load test config: %v", err)
	}

	vld, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("failed to build validator: %v", err)
	}

	sf, err := uid.NewSnowflake()
	if err != nil {
		t.Fatalf("failed to build snowflake: %v", err)
	}

	clk := newFakeClock()

	token, err := jwt.NewHS512(jwt.Config{
		Secret:     []byte(strings.Repeat("k", 64)),
		Issuer:     "classify-auth",
		Audiences:  []string{"classify-app"},
		TTLMinutes: 30 * time.Minute,
		Clock:      clk,
		UUID:       uid.NewUUID(),
	})
	if err != nil {
		t.Fatalf("failed to build jwt: %v", err)
	}

	f := &fixture{
		repo:      newFakeRepo(),
		deliverer: &fakeDeliverer{},
		limiter:   &fakeLimiter{},
		msg:       &fakeMessaging{},
		clock:     clk,
		gm:        goroutine.NewManager(10),
		bcrypt:    hash.NewBcrypt(4, ""),
		argon2id:  hash.NewArgon2id("test-pepper"),
		hmac:      hash.NewHMACSHA256("test-secret"),
		uid:       sf,
	}

	f.uc = New(Dependency{
		RepoDB:        f.repo,
		RepoMessaging: f.msg,
		Deliverer:     f.deliverer,
		VerifyLimiter: f.limiter,
		Validator:     vld,
		Config:        cfg,
		HMAC:          f.hmac,
		Bcrypt:        f.bcrypt,
		Argon2ID:      f.argon2id,
		UID:           sf,
		OID:           uid.NewUUID(),
		CodeGen:       otp.NewNumericCode(6),
		Clock:         clk,
		JWT:           token,
		Instrument:    instrument.NewNoop(),
		Goroutine:     f.gm,
	})

	return f
}

// addAccount seeds a known account and returns its id.
func (f *fixture) addAccount(t *testing.T, email, password string) int64 {
	t.Helper()

	hashed, err := f.bcrypt.Hash(password)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	id := f.uid.Generate()

	f.repo.mu.Lock()
	f.repo.accounts[id] = &entity.Account{ID: id, Email: email, Password: string(hashed)}
	f.repo.mu.Unlock()

	return id
}

// deviceHash returns the session/trust lookup key for a raw device id.
func (f *fixture) deviceHash(t *testing.T, deviceID string) string {
	t.Helper()

	h, err := f.hmac.Hash(deviceID)
	if err != nil {
		t.Fatalf("failed to hash device id: %v", err)
	}

	return string(h)
}

// asGoError unwraps err into the service error envelope or fails the test.
func asGoError(t *testing.T, err error) *goerror.Error {
	t.Helper()

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected *goerror.Error, got %T: %v", err, err)
	}

	return gerr
}
