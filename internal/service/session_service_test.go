package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarhq/storefront-api/internal/identity"
	"github.com/bazaarhq/storefront-api/internal/models"
	"github.com/bazaarhq/storefront-api/internal/session"
	"github.com/bazaarhq/storefront-api/internal/utils"
)

// fakeIdentity is an in-memory identity store. Principals stay live until
// EndSession is called.
type fakeIdentity struct {
	mu        sync.Mutex
	passwords map[string]string
	live      map[string]bool
	counter   int
	downErr   error
}

func newFakeIdentity() *fakeIdentity {
	return &fakeIdentity{
		passwords: make(map[string]string),
		live:      make(map[string]bool),
	}
}

func (f *fakeIdentity) VerifyPassword(_ context.Context, email, password string) (string, error) {
	if f.downErr != nil {
		return "", f.downErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.passwords[email]
	if !ok || stored != password {
		return "", identity.ErrPasswordRejected
	}
	f.counter++
	principal := fmt.Sprintf("principal-%d", f.counter)
	f.live[principal] = true
	return principal, nil
}

func (f *fakeIdentity) VerifySession(_ context.Context, principal string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.live[principal] {
		return identity.ErrSessionNotLive
	}
	return nil
}

func (f *fakeIdentity) EndSession(_ context.Context, principal string) error {
	f.mu.Lock()
	delete(f.live, principal)
	f.mu.Unlock()
	return nil
}

func (f *fakeIdentity) liveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

// fakeDirectory is an in-memory admin directory.
type fakeDirectory struct {
	mu      sync.Mutex
	byEmail map[string]*models.Administrator
	byID    map[string]*models.Administrator
	downErr error
}

func newFakeDirectory(admins ...*models.Administrator) *fakeDirectory {
	d := &fakeDirectory{
		byEmail: make(map[string]*models.Administrator),
		byID:    make(map[string]*models.Administrator),
	}
	for _, a := range admins {
		d.byEmail[a.Email] = a
		d.byID[a.ID] = a
	}
	return d
}

func (d *fakeDirectory) GetByEmail(_ context.Context, email string) (*models.Administrator, error) {
	if d.downErr != nil {
		return nil, d.downErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	admin, ok := d.byEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return admin, nil
}

func (d *fakeDirectory) GetByID(_ context.Context, id string) (*models.Administrator, error) {
	if d.downErr != nil {
		return nil, d.downErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	admin, ok := d.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return admin, nil
}

func (d *fakeDirectory) UpdateLastLogin(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if admin, ok := d.byID[id]; ok {
		admin.LastLoginAt = sql.NullTime{Time: time.Now(), Valid: true}
	}
	return nil
}

func (d *fakeDirectory) setActive(id string, active bool) {
	d.mu.Lock()
	d.byID[id].IsActive = active
	d.mu.Unlock()
}

// fakeCodes is an in-memory second-factor code store whose ConsumeIfValid is
// an atomic check-and-set, like the real conditional UPDATE.
type fakeCodes struct {
	mu    sync.Mutex
	codes []*models.SecondFactorCode
}

func (f *fakeCodes) ConsumeIfValid(_ context.Context, administratorID, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.codes {
		if c.AdministratorID == administratorID && c.Code == code && !c.Used && time.Now().Before(c.ExpiresAt) {
			c.Used = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCodes) Create(_ context.Context, administratorID, code string, ttl time.Duration) error {
	f.mu.Lock()
	f.codes = append(f.codes, &models.SecondFactorCode{
		AdministratorID: administratorID,
		Code:            code,
		ExpiresAt:       time.Now().Add(ttl),
	})
	f.mu.Unlock()
	return nil
}

func (f *fakeCodes) seed(administratorID, code string, ttl time.Duration) {
	_ = f.Create(context.Background(), administratorID, code, ttl)
}

// fakeAudit records appended events and can be forced to fail.
type fakeAudit struct {
	mu        sync.Mutex
	events    []*models.AuditEvent
	appendErr error
}

func (f *fakeAudit) Append(_ context.Context, event *models.AuditEvent) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Action)
	}
	return out
}

// fakeNotifier captures issued second-factor codes.
type fakeNotifier struct {
	mu    sync.Mutex
	codes []string
}

func (f *fakeNotifier) Deliver(_ context.Context, _ *models.Administrator, code string) error {
	f.mu.Lock()
	f.codes = append(f.codes, code)
	f.mu.Unlock()
	return nil
}

type testEnv struct {
	svc   *SessionService
	idp   *fakeIdentity
	dir   *fakeDirectory
	codes *fakeCodes
	audit *fakeAudit

	mu  sync.Mutex
	now time.Time
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	e.now = e.now.Add(d)
	e.mu.Unlock()
}

var testMeta = RequestMeta{SourceAddress: "203.0.113.9", ClientAgent: "admin-panel/2.1"}

const durationLimit = 4 * time.Hour

func newTestEnv(t *testing.T, opts ...func(*SessionServiceParams)) *testEnv {
	t.Helper()

	env := &testEnv{
		idp:   newFakeIdentity(),
		codes: &fakeCodes{},
		audit: &fakeAudit{},
		now:   time.Now(),
	}

	admins := []*models.Administrator{
		{ID: "adm-manager", Email: "manager@store.test", Role: models.RoleManager,
			Permissions: []string{"view_orders"}, IsActive: true},
		{ID: "adm-2fa", Email: "guarded@store.test", Role: models.RoleAdmin,
			Permissions: []string{"view_orders", "view_audit_log"}, IsActive: true, TwoFactorEnabled: true},
		{ID: "adm-inactive", Email: "former@store.test", Role: models.RoleAdmin,
			Permissions: []string{"view_orders"}, IsActive: false},
		{ID: "adm-root", Email: "root@store.test", Role: models.RoleSuperAdmin, IsActive: true},
	}
	env.dir = newFakeDirectory(admins...)

	env.idp.passwords["manager@store.test"] = "manager-pass"
	env.idp.passwords["guarded@store.test"] = "guarded-pass"
	env.idp.passwords["former@store.test"] = "former-pass"
	env.idp.passwords["root@store.test"] = "root-pass"
	// Valid identity credentials with no administrator record behind them.
	env.idp.passwords["shopper@store.test"] = "shopper-pass"

	params := SessionServiceParams{
		IdentityStore: env.idp,
		Directory:     env.dir,
		Codes:         env.codes,
		Audit:         NewAuditLogger(env.audit),
		Codec:         session.NewCodec("test-secret"),
		DurationLimit: durationLimit,
	}
	for _, opt := range opts {
		opt(&params)
	}

	env.svc = NewSessionService(params)
	env.svc.now = func() time.Time {
		env.mu.Lock()
		defer env.mu.Unlock()
		return env.now
	}
	return env
}

func login(t *testing.T, env *testEnv, email, password string) *LoginResult {
	t.Helper()
	result, err := env.svc.Login(context.Background(), Credentials{Email: email, Password: password}, testMeta)
	require.NoError(t, err)
	require.Equal(t, LoginSuccess, result.Status)
	require.NotEmpty(t, result.Token)
	return result
}

func TestLoginSuccess(t *testing.T) {
	env := newTestEnv(t)
	result := login(t, env, "manager@store.test", "manager-pass")

	assert.Equal(t, "adm-manager", result.Administrator.ID)
	assert.Equal(t, "adm-manager", result.Session.AdministratorID)
	assert.True(t, result.Administrator.LastLoginAt.Valid, "last login should be stamped")
	assert.Equal(t, []string{models.AuditActionLogin}, env.audit.actions())
	assert.Equal(t, testMeta.SourceAddress, env.audit.events[0].SourceAddress)
}

func TestLoginRejectionsAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, unknownErr := env.svc.Login(ctx, Credentials{Email: "nobody@store.test", Password: "whatever"}, testMeta)
	_, wrongErr := env.svc.Login(ctx, Credentials{Email: "manager@store.test", Password: "wrong"}, testMeta)

	assert.ErrorIs(t, unknownErr, utils.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, utils.ErrInvalidCredentials)
	assert.Zero(t, env.idp.liveCount())
}

func TestLoginValidPasswordWithoutAdministrator(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Login(context.Background(),
		Credentials{Email: "shopper@store.test", Password: "shopper-pass"}, testMeta)

	assert.ErrorIs(t, err, utils.ErrUnauthorized)
	assert.Zero(t, env.idp.liveCount(), "identity session must be revoked")
	assert.Empty(t, env.audit.actions())
}

func TestLoginInactiveAdministrator(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Login(context.Background(),
		Credentials{Email: "former@store.test", Password: "former-pass"}, testMeta)

	assert.ErrorIs(t, err, utils.ErrUnauthorized)
	assert.Zero(t, env.idp.liveCount())
}

func TestLoginIdentityStoreDown(t *testing.T) {
	env := newTestEnv(t)
	env.idp.downErr = fmt.Errorf("connection refused")

	_, err := env.svc.Login(context.Background(),
		Credentials{Email: "manager@store.test", Password: "manager-pass"}, testMeta)

	assert.ErrorIs(t, err, utils.ErrServiceUnavailable)
}

func TestLoginDirectoryDown(t *testing.T) {
	env := newTestEnv(t)
	env.dir.downErr = fmt.Errorf("connection refused")

	_, err := env.svc.Login(context.Background(),
		Credentials{Email: "manager@store.test", Password: "manager-pass"}, testMeta)

	assert.ErrorIs(t, err, utils.ErrServiceUnavailable)
	assert.Zero(t, env.idp.liveCount())
}

func TestTwoFactorGating(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	creds := Credentials{Email: "guarded@store.test", Password: "guarded-pass"}

	// Without a code: pending, no session, no lingering identity session.
	result, err := env.svc.Login(ctx, creds, testMeta)
	require.NoError(t, err)
	assert.Equal(t, LoginRequiresTwoFactor, result.Status)
	assert.Empty(t, result.Token)
	assert.Zero(t, env.idp.liveCount())

	// Wrong code.
	env.codes.seed("adm-2fa", "111111", 5*time.Minute)
	creds.SecondFactorCode = "222222"
	_, err = env.svc.Login(ctx, creds, testMeta)
	assert.ErrorIs(t, err, utils.ErrInvalidTwoFactorCode)
	assert.Zero(t, env.idp.liveCount())

	// Correct code.
	creds.SecondFactorCode = "111111"
	result, err = env.svc.Login(ctx, creds, testMeta)
	require.NoError(t, err)
	assert.Equal(t, LoginSuccess, result.Status)

	// The same code never validates twice.
	_, err = env.svc.Login(ctx, creds, testMeta)
	assert.ErrorIs(t, err, utils.ErrInvalidTwoFactorCode)
}

func TestTwoFactorExpiredCode(t *testing.T) {
	env := newTestEnv(t)
	env.codes.seed("adm-2fa", "111111", -time.Minute)

	_, err := env.svc.Login(context.Background(), Credentials{
		Email: "guarded@store.test", Password: "guarded-pass", SecondFactorCode: "111111",
	}, testMeta)

	assert.ErrorIs(t, err, utils.ErrInvalidTwoFactorCode)
}

func TestTwoFactorCodeSingleUseUnderRace(t *testing.T) {
	env := newTestEnv(t)
	env.codes.seed("adm-2fa", "654321", 5*time.Minute)

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.Login(context.Background(), Credentials{
				Email: "guarded@store.test", Password: "guarded-pass", SecondFactorCode: "654321",
			}, testMeta)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
		} else {
			assert.ErrorIs(t, err, utils.ErrInvalidTwoFactorCode)
		}
	}
	assert.Equal(t, 1, successes, "exactly one racing attempt may consume the code")
}

func TestSecondFactorIssuance(t *testing.T) {
	notifier := &fakeNotifier{}
	env := newTestEnv(t, func(p *SessionServiceParams) {
		p.Notifier = notifier
		p.CodeLength = 6
	})
	ctx := context.Background()

	result, err := env.svc.Login(ctx, Credentials{Email: "guarded@store.test", Password: "guarded-pass"}, testMeta)
	require.NoError(t, err)
	require.Equal(t, LoginRequiresTwoFactor, result.Status)

	require.Len(t, notifier.codes, 1)
	require.Len(t, notifier.codes[0], 6)
	assert.Contains(t, env.audit.actions(), models.AuditActionTwoFactorIssue)

	// The delivered code completes the login.
	result, err = env.svc.Login(ctx, Credentials{
		Email: "guarded@store.test", Password: "guarded-pass", SecondFactorCode: notifier.codes[0],
	}, testMeta)
	require.NoError(t, err)
	assert.Equal(t, LoginSuccess, result.Status)
}

func TestValidateExpiryBoundary(t *testing.T) {
	env := newTestEnv(t)
	result := login(t, env, "manager@store.test", "manager-pass")
	ctx := context.Background()

	env.advance(durationLimit - time.Second)
	_, admin, err := env.svc.Validate(ctx, result.Token)
	require.NoError(t, err)
	assert.Equal(t, "adm-manager", admin.ID)

	env.advance(2 * time.Second)
	_, _, err = env.svc.Validate(ctx, result.Token)
	assert.ErrorIs(t, err, utils.ErrSessionExpired)
}

func TestValidateDeactivationRevokesLiveSession(t *testing.T) {
	env := newTestEnv(t)
	result := login(t, env, "manager@store.test", "manager-pass")

	env.dir.setActive("adm-manager", false)

	_, _, err := env.svc.Validate(context.Background(), result.Token)
	assert.ErrorIs(t, err, utils.ErrUnauthenticated)
}

func TestValidateIdentitySessionEnded(t *testing.T) {
	env := newTestEnv(t)
	result := login(t, env, "manager@store.test", "manager-pass")

	require.NoError(t, env.idp.EndSession(context.Background(), result.Session.Principal))

	_, _, err := env.svc.Validate(context.Background(), result.Token)
	assert.ErrorIs(t, err, utils.ErrUnauthenticated)
}

func TestValidateRejectsBadTokens(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.svc.Validate(ctx, "")
	assert.ErrorIs(t, err, utils.ErrUnauthenticated)

	_, _, err = env.svc.Validate(ctx, "not-a-session-token")
	assert.ErrorIs(t, err, utils.ErrUnauthenticated)
}

func TestSuperAdminPassesEveryPermissionCheck(t *testing.T) {
	env := newTestEnv(t)
	result := login(t, env, "root@store.test", "root-pass")
	ctx := context.Background()

	for _, permission := range []string{"view_orders", "delete_products", "made_up_permission"} {
		assert.True(t, env.svc.HasPermission(ctx, result.Token, permission), permission)
	}
}

func TestHasPermissionUsesIssuanceSnapshot(t *testing.T) {
	env := newTestEnv(t)
	result := login(t, env, "manager@store.test", "manager-pass")
	ctx := context.Background()

	// Permissions granted after issuance are not visible to this session.
	env.dir.byID["adm-manager"].Permissions = []string{"delete_products"}

	assert.True(t, env.svc.HasPermission(ctx, result.Token, "view_orders"))
	assert.False(t, env.svc.HasPermission(ctx, result.Token, "delete_products"))
}

func TestHasPermissionWithoutSession(t *testing.T) {
	env := newTestEnv(t)
	assert.False(t, env.svc.HasPermission(context.Background(), "", "view_orders"))
}

func TestLogoutIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	result := login(t, env, "manager@store.test", "manager-pass")
	ctx := context.Background()

	require.NoError(t, env.svc.Logout(ctx, result.Token, testMeta))
	require.NoError(t, env.svc.Logout(ctx, result.Token, testMeta))
	require.NoError(t, env.svc.Logout(ctx, "", testMeta))

	_, _, err := env.svc.Validate(ctx, result.Token)
	assert.ErrorIs(t, err, utils.ErrUnauthenticated)
	assert.Contains(t, env.audit.actions(), models.AuditActionLogout)
}

func TestAuditFailureDoesNotBlockLogin(t *testing.T) {
	env := newTestEnv(t)
	env.audit.appendErr = fmt.Errorf("sink unavailable")

	login(t, env, "manager@store.test", "manager-pass")
}

func TestThrottleHookBlocksRepeatedFailures(t *testing.T) {
	env := newTestEnv(t, func(p *SessionServiceParams) {
		p.Throttle = NewMemoryThrottle(2, time.Minute)
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := env.svc.Login(ctx, Credentials{Email: "manager@store.test", Password: "wrong"}, testMeta)
		assert.ErrorIs(t, err, utils.ErrInvalidCredentials)
	}

	// Even the right password is refused once the window is exhausted.
	_, err := env.svc.Login(ctx, Credentials{Email: "manager@store.test", Password: "manager-pass"}, testMeta)
	assert.ErrorIs(t, err, utils.ErrTooManyAttempts)
}

// Mirrors the reference walkthrough: a manager logs in, checks permissions,
// and loses the session once the duration limit lapses.
func TestManagerSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	result := login(t, env, "manager@store.test", "manager-pass")

	assert.True(t, env.svc.HasPermission(ctx, result.Token, "view_orders"))
	assert.False(t, env.svc.HasPermission(ctx, result.Token, "delete_products"))
	assert.NotNil(t, env.svc.CurrentAdministrator(ctx, result.Token))

	env.advance(durationLimit + time.Minute)

	_, _, err := env.svc.Validate(ctx, result.Token)
	assert.ErrorIs(t, err, utils.ErrSessionExpired)
	assert.Nil(t, env.svc.CurrentAdministrator(ctx, result.Token))
}
