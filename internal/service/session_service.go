package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/bazaarhq/storefront-api/internal/identity"
	"github.com/bazaarhq/storefront-api/internal/models"
	"github.com/bazaarhq/storefront-api/internal/session"
	"github.com/bazaarhq/storefront-api/internal/utils"
)

// AdminDirectory is the slice of the administrator repository the session
// service depends on.
type AdminDirectory interface {
	GetByEmail(ctx context.Context, email string) (*models.Administrator, error)
	GetByID(ctx context.Context, id string) (*models.Administrator, error)
	UpdateLastLogin(ctx context.Context, id string) error
}

// SecondFactorCodes is the code store contract. ConsumeIfValid must be
// atomic: a code can validate at most once even under concurrent calls.
type SecondFactorCodes interface {
	ConsumeIfValid(ctx context.Context, administratorID, code string) (bool, error)
	Create(ctx context.Context, administratorID, code string, ttl time.Duration) error
}

// Throttle is the pluggable failed-attempt hook. The service consults it
// before verifying credentials and feeds it on failures; what policy it
// applies (or none) is the implementation's business.
type Throttle interface {
	Allow(ctx context.Context, subject string) bool
	RecordFailure(ctx context.Context, subject string)
	Reset(ctx context.Context, subject string)
}

// CodeNotifier delivers a freshly issued second-factor code to the
// administrator over mail, SMS or similar. When nil, the service
// assumes codes are provisioned externally and issues none itself.
type CodeNotifier interface {
	Deliver(ctx context.Context, admin *models.Administrator, code string) error
}

// RequestMeta carries request-layer facts (source address, user agent) into
// audit events. The service never collects these itself.
type RequestMeta struct {
	SourceAddress string
	ClientAgent   string
}

// Credentials is a login request.
type Credentials struct {
	Email            string
	Password         string
	SecondFactorCode string
}

// Login outcomes. Failures are reported as errors; RequiresTwoFactor is a
// pending state, not a failure.
const (
	LoginSuccess           = "success"
	LoginRequiresTwoFactor = "requires_two_factor"
)

// LoginResult is the outcome of a successful or pending login.
type LoginResult struct {
	Status        string
	Token         string
	Session       *session.Session
	Administrator *models.Administrator
}

// SessionService orchestrates admin login, session issuance and validation,
// logout, and permission checks. It keeps no per-session state: the session
// is the signed token the caller holds.
type SessionService struct {
	identityStore identity.Store
	directory     AdminDirectory
	codes         SecondFactorCodes
	audit         *AuditLogger
	throttle      Throttle
	notifier      CodeNotifier
	codec         *session.Codec

	durationLimit time.Duration
	codeTTL       time.Duration
	codeLength    int

	now func() time.Time
}

// SessionServiceParams bundles the collaborators for NewSessionService.
type SessionServiceParams struct {
	IdentityStore identity.Store
	Directory     AdminDirectory
	Codes         SecondFactorCodes
	Audit         *AuditLogger
	Throttle      Throttle
	Notifier      CodeNotifier
	Codec         *session.Codec
	DurationLimit time.Duration
	CodeTTL       time.Duration
	CodeLength    int
}

// NewSessionService constructs a SessionService.
func NewSessionService(p SessionServiceParams) *SessionService {
	if p.Throttle == nil {
		p.Throttle = NoopThrottle{}
	}
	if p.DurationLimit <= 0 {
		p.DurationLimit = 4 * time.Hour
	}
	if p.CodeTTL <= 0 {
		p.CodeTTL = 5 * time.Minute
	}
	if p.CodeLength <= 0 {
		p.CodeLength = 6
	}
	return &SessionService{
		identityStore: p.IdentityStore,
		directory:     p.Directory,
		codes:         p.Codes,
		audit:         p.Audit,
		throttle:      p.Throttle,
		notifier:      p.Notifier,
		codec:         p.Codec,
		durationLimit: p.DurationLimit,
		codeTTL:       p.CodeTTL,
		codeLength:    p.CodeLength,
		now:           time.Now,
	}
}

// Login runs the full login state machine: password check, admin directory
// check, optional second factor, then session issuance.
func (s *SessionService) Login(ctx context.Context, creds Credentials, meta RequestMeta) (*LoginResult, error) {
	log.Debug().Str("email", creds.Email).Msg("Login attempt")

	if !s.throttle.Allow(ctx, creds.Email) {
		log.Warn().Str("email", creds.Email).Msg("Login attempt throttled")
		return nil, utils.ErrTooManyAttempts
	}

	// 1. Password verification is the identity store's job. Unknown email and
	// wrong password come back as the same rejection.
	principal, err := s.identityStore.VerifyPassword(ctx, creds.Email, creds.Password)
	if err != nil {
		if errors.Is(err, identity.ErrPasswordRejected) {
			s.throttle.RecordFailure(ctx, creds.Email)
			return nil, utils.ErrInvalidCredentials
		}
		log.Error().Err(err).Msg("Identity store unavailable during login")
		return nil, utils.ErrServiceUnavailable
	}

	// 2. A valid password alone is not enough: the principal must map to an
	// active administrator. Otherwise the identity session just opened is
	// revoked before anything is issued.
	admin, err := s.directory.GetByEmail(ctx, creds.Email)
	if err != nil {
		s.endIdentitySession(ctx, principal)
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn().Str("email", creds.Email).Msg("Valid password for non-administrator")
			return nil, utils.ErrUnauthorized
		}
		log.Error().Err(err).Msg("Admin directory unavailable during login")
		return nil, utils.ErrServiceUnavailable
	}
	if !admin.IsActive {
		s.endIdentitySession(ctx, principal)
		log.Warn().Str("email", creds.Email).Msg("Login rejected for inactive administrator")
		return nil, utils.ErrUnauthorized
	}

	// 3. Second factor gate.
	if admin.TwoFactorEnabled && creds.SecondFactorCode == "" {
		s.endIdentitySession(ctx, principal)
		s.issueSecondFactorCode(ctx, admin, meta)
		return &LoginResult{Status: LoginRequiresTwoFactor}, nil
	}

	if admin.TwoFactorEnabled {
		ok, err := s.codes.ConsumeIfValid(ctx, admin.ID, creds.SecondFactorCode)
		if err != nil {
			s.endIdentitySession(ctx, principal)
			log.Error().Err(err).Msg("Second-factor store unavailable during login")
			return nil, utils.ErrServiceUnavailable
		}
		if !ok {
			// Wrong, expired, or already used. The caller learns no more
			// than that.
			s.endIdentitySession(ctx, principal)
			s.throttle.RecordFailure(ctx, creds.Email)
			return nil, utils.ErrInvalidTwoFactorCode
		}
	}

	// 4. Issue the session.
	sessionID, err := session.NewSessionID()
	if err != nil {
		s.endIdentitySession(ctx, principal)
		return nil, utils.ErrServiceUnavailable
	}

	sess := &session.Session{
		ID:              sessionID,
		AdministratorID: admin.ID,
		Email:           admin.Email,
		Role:            admin.Role,
		Permissions:     admin.Permissions,
		Principal:       principal,
		IssuedAt:        s.now(),
	}
	token, err := s.codec.Mint(sess)
	if err != nil {
		s.endIdentitySession(ctx, principal)
		log.Error().Err(err).Msg("Failed to mint session token")
		return nil, utils.ErrServiceUnavailable
	}

	// last_login_at is telemetry; a failed stamp must not undo the login.
	if err := s.directory.UpdateLastLogin(ctx, admin.ID); err != nil {
		log.Error().Err(err).Str("administrator_id", admin.ID).Msg("Failed to update last login")
	}

	s.throttle.Reset(ctx, creds.Email)
	s.audit.Record(ctx, admin.ID, models.AuditActionLogin, meta, map[string]string{
		"session_id": sessionID,
	})

	log.Info().Str("email", admin.Email).Str("role", admin.Role).Msg("Login successful")
	return &LoginResult{
		Status:        LoginSuccess,
		Token:         token,
		Session:       sess,
		Administrator: admin,
	}, nil
}

// Validate checks a session token: signature, lazy expiry against the
// embedded issue time, then a live directory and identity-store re-check so
// a deactivated administrator cannot ride out an unexpired session. Any
// failure invalidates; the caller is expected to drop the token.
func (s *SessionService) Validate(ctx context.Context, token string) (*session.Session, *models.Administrator, error) {
	if token == "" {
		return nil, nil, utils.ErrUnauthenticated
	}

	sess, err := s.codec.Parse(token)
	if err != nil {
		return nil, nil, utils.ErrUnauthenticated
	}

	if sess.Expired(s.now(), s.durationLimit) {
		return nil, nil, utils.ErrSessionExpired
	}

	admin, err := s.directory.GetByID(ctx, sess.AdministratorID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Msg("Admin directory unavailable during validation")
		}
		return nil, nil, utils.ErrUnauthenticated
	}
	if !admin.IsActive {
		return nil, nil, utils.ErrUnauthenticated
	}

	if err := s.identityStore.VerifySession(ctx, sess.Principal); err != nil {
		if !errors.Is(err, identity.ErrSessionNotLive) {
			log.Error().Err(err).Msg("Identity store unavailable during validation")
		}
		return nil, nil, utils.ErrUnauthenticated
	}

	return sess, admin, nil
}

// Logout ends the session: audit event, identity-store session teardown.
// Calling it without a live session is a no-op, not an error.
func (s *SessionService) Logout(ctx context.Context, token string, meta RequestMeta) error {
	if token == "" {
		return nil
	}
	sess, err := s.codec.Parse(token)
	if err != nil {
		return nil
	}

	s.audit.Record(ctx, sess.AdministratorID, models.AuditActionLogout, meta, map[string]string{
		"session_id": sess.ID,
	})
	s.endIdentitySession(ctx, sess.Principal)

	log.Info().Str("email", sess.Email).Msg("Logout")
	return nil
}

// HasPermission reports whether the session grants the permission token.
// super_admin passes every check; everyone else is judged against the
// permission snapshot taken at issuance, not a live directory read.
func (s *SessionService) HasPermission(ctx context.Context, token, permission string) bool {
	sess, _, err := s.Validate(ctx, token)
	if err != nil {
		return false
	}
	if sess.Role == models.RoleSuperAdmin {
		return true
	}
	for _, p := range sess.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CurrentAdministrator returns the administrator behind a valid session, or
// nil when there is none.
func (s *SessionService) CurrentAdministrator(ctx context.Context, token string) *models.Administrator {
	_, admin, err := s.Validate(ctx, token)
	if err != nil {
		return nil
	}
	return admin
}

// DurationLimit exposes the session lifetime policy.
func (s *SessionService) DurationLimit() time.Duration {
	return s.durationLimit
}

// issueSecondFactorCode creates and delivers a fresh code when a login is
// pending on the second factor. Best effort: codes may equally be provisioned
// by an external process, so failure here only gets logged.
func (s *SessionService) issueSecondFactorCode(ctx context.Context, admin *models.Administrator, meta RequestMeta) {
	if s.notifier == nil {
		return
	}

	code, err := utils.GenerateNumericCode(s.codeLength)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate second-factor code")
		return
	}
	if err := s.codes.Create(ctx, admin.ID, code, s.codeTTL); err != nil {
		log.Error().Err(err).Msg("Failed to store second-factor code")
		return
	}
	if err := s.notifier.Deliver(ctx, admin, code); err != nil {
		log.Error().Err(err).Msg("Failed to deliver second-factor code")
		return
	}
	s.audit.Record(ctx, admin.ID, models.AuditActionTwoFactorIssue, meta, nil)
}

// endIdentitySession tears down an identity-store session best effort.
func (s *SessionService) endIdentitySession(ctx context.Context, principal string) {
	if err := s.identityStore.EndSession(ctx, principal); err != nil {
		log.Error().Err(err).Msg("Failed to end identity store session")
	}
}
