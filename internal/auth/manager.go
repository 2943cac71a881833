package auth

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// MinClientIDLength is the shortest client ID accepted by New.
const MinClientIDLength = 10

// Manager owns the application and user credentials and keeps them renewed
// on independent timers. Readers get the cached values and never trigger a
// network call.
type Manager struct {
	clientID string
	app      *slot
	user     *slot

	requester   TokenRequester
	clock       Clock
	logger      zerolog.Logger
	appInterval time.Duration
	hooks       []func(RenewalEvent)
	// baseCtx is used by timer-driven renewals.
	baseCtx context.Context
	closed  atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for renewal diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRequester replaces the token endpoint client.
func WithRequester(requester TokenRequester) Option {
	return func(m *Manager) {
		if requester != nil {
			m.requester = requester
		}
	}
}

// WithClock overrides the clock used for scheduling (testing).
func WithClock(clock Clock) Option {
	return func(m *Manager) {
		if clock != nil {
			m.clock = clock
		}
	}
}

// WithApplicationRenewInterval overrides ApplicationRenewInterval.
func WithApplicationRenewInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.appInterval = d
		}
	}
}

// WithRenewalHook registers fn to be called after every renewal attempt.
// Hooks run on the renewing goroutine, outside any manager lock.
func WithRenewalHook(fn func(RenewalEvent)) Option {
	return func(m *Manager) {
		if fn != nil {
			m.hooks = append(m.hooks, fn)
		}
	}
}

// New validates cfg and creates a Manager. No network call is made; use
// Initialize to perform the opted-in initial renewals.
func New(cfg Config, opts ...Option) (*Manager, error) {
	if len(cfg.ClientID) < MinClientIDLength {
		return nil, &ValidationError{
			Field:  "client ID",
			Reason: "must be at least 10 characters",
		}
	}

	m := &Manager{
		clientID: cfg.ClientID,
		app: newSlot(KindApplication, cfg.Tokens.AppToken, cfg.Secrets.ClientSecret,
			cfg.Secrets.ClientSecret != "" && cfg.Secrets.RefreshAppToken),
		user: newSlot(KindUser, cfg.Tokens.UserToken, cfg.Tokens.RefreshToken,
			cfg.Tokens.RefreshToken != "" && cfg.Secrets.RefreshUserToken),
		clock:       realClock{},
		logger:      zerolog.Nop(),
		appInterval: ApplicationRenewInterval,
		baseCtx:     context.Background(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.requester == nil {
		m.requester = NewOAuth2Requester(DefaultTokenURL, nil)
	}

	m.reportCapabilities(cfg)
	return m, nil
}

func (m *Manager) reportCapabilities(cfg Config) {
	t, s := cfg.Tokens, cfg.Secrets
	if t.AppToken == "" && t.UserToken == "" && t.RefreshToken == "" && s.ClientSecret == "" {
		m.logger.Warn().
			Str("client_id", m.clientID).
			Msg("⚠️  No tokens or secrets configured, only JWT-authenticated calls will work")
		return
	}
	if t.AppToken == "" && s.ClientSecret == "" {
		m.logger.Info().Msg("No app token or client secret, app-token calls are unavailable")
	}
	if t.UserToken == "" && t.RefreshToken == "" {
		m.logger.Info().Msg("No user token or refresh token, user-token calls are unavailable")
	}
	if t.AppToken == "" && s.ClientSecret != "" {
		m.logger.Info().Msg("No app token yet, one is obtained on the first app renewal")
	}
	if t.UserToken == "" && t.RefreshToken != "" {
		m.logger.Info().Msg("No user token yet, one is obtained on the first user renewal")
	}
	if s.RefreshAppToken && s.ClientSecret == "" {
		m.logger.Info().Msg("App token auto-renew requested without a client secret, ignoring")
	}
	if s.RefreshUserToken && t.RefreshToken == "" {
		m.logger.Info().Msg("User token auto-renew requested without a refresh token, ignoring")
	}
}

// Initialize performs one renewal cycle for every slot that opted into
// auto-renew, in parallel, and returns once both have completed.
func (m *Manager) Initialize(ctx context.Context) {
	// Renewal failures are recorded per slot, so the group only joins.
	var g errgroup.Group
	if m.app.autoRenew {
		g.Go(func() error {
			m.StartApplicationTokenRefresh(ctx)
			return nil
		})
	}
	if m.user.autoRenew {
		g.Go(func() error {
			m.StartUserTokenRefresh(ctx)
			return nil
		})
	}
	_ = g.Wait()
}

// StartApplicationTokenRefresh renews the application token now and, on
// success, schedules recurring renewals.
func (m *Manager) StartApplicationTokenRefresh(ctx context.Context) {
	m.start(ctx, m.app)
}

// StartUserTokenRefresh renews the user token now and, on success, schedules
// the next renewal ahead of the reported expiry.
func (m *Manager) StartUserTokenRefresh(ctx context.Context) {
	m.start(ctx, m.user)
}

// StopApplicationTokenRefresh cancels scheduled application renewals. An
// in-flight renewal completes but does not schedule another.
func (m *Manager) StopApplicationTokenRefresh() {
	m.stop(m.app)
}

// StopUserTokenRefresh cancels scheduled user renewals.
func (m *Manager) StopUserTokenRefresh() {
	m.stop(m.user)
}

// RenewApplicationTokenOnce renews the application token without touching
// the recurring schedule.
func (m *Manager) RenewApplicationTokenOnce(ctx context.Context) {
	m.renew(ctx, m.app, 0, false)
}

// RenewUserTokenOnce renews the user token without touching the recurring
// schedule.
func (m *Manager) RenewUserTokenOnce(ctx context.Context) {
	m.renew(ctx, m.user, 0, false)
}

// Close cancels both schedules. Renewals in flight finish but never re-arm.
func (m *Manager) Close() {
	m.closed.Store(true)
	m.stop(m.app)
	m.stop(m.user)
}

// ClientID returns the identifier the manager was created with.
func (m *Manager) ClientID() string {
	return m.clientID
}

// ApplicationToken returns the cached application token, or "".
func (m *Manager) ApplicationToken() string {
	return m.Token(KindApplication)
}

// UserToken returns the cached user token, or "".
func (m *Manager) UserToken() string {
	return m.Token(KindUser)
}

// Token returns the cached token of the given kind, or "".
func (m *Manager) Token(kind Kind) string {
	s := m.slot(kind)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// ClientSecret returns the application secret. Exposed for diagnostics only.
func (m *Manager) ClientSecret() string {
	return m.secret(m.app)
}

// RefreshToken returns the user refresh token. Exposed for diagnostics only.
func (m *Manager) RefreshToken() string {
	return m.secret(m.user)
}

// SetApplicationToken overwrites the cached application token.
func (m *Manager) SetApplicationToken(token string) {
	m.setValue(m.app, token)
}

// SetUserToken overwrites the cached user token.
func (m *Manager) SetUserToken(token string) {
	m.setValue(m.user, token)
}

// SetClientSecret replaces the application secret. An empty secret cancels
// application renewals; replacing an existing secret restarts the cycle.
func (m *Manager) SetClientSecret(ctx context.Context, secret string) {
	m.setSecret(ctx, m.app, secret)
}

// SetRefreshToken replaces the user refresh token. An empty token cancels
// user renewals; replacing an existing token restarts the cycle.
func (m *Manager) SetRefreshToken(ctx context.Context, token string) {
	m.setSecret(ctx, m.user, token)
}

// Status reports the state of one slot.
func (m *Manager) Status(kind Kind) SlotStatus {
	return m.slot(kind).status()
}

func (m *Manager) slot(kind Kind) *slot {
	if kind == KindUser {
		return m.user
	}
	return m.app
}

func (m *Manager) secret(s *slot) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secret
}

func (m *Manager) setValue(s *slot, value string) {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
}

func (m *Manager) setSecret(ctx context.Context, s *slot, secret string) {
	s.mu.Lock()
	if secret == "" {
		hadTimer := s.timer != nil
		s.secret = ""
		s.stopLocked()
		s.mu.Unlock()
		m.logger.Info().
			Str("kind", s.kind.String()).
			Bool("cancelled_timer", hadTimer).
			Msg("Renewal secret cleared, automatic renewal stopped")
		return
	}
	previous := s.secret
	s.secret = secret
	if errors.Is(s.lastErr, ErrMissingCapability) {
		s.lastErr = nil
	}
	s.mu.Unlock()

	if previous != "" {
		m.logger.Info().Str("kind", s.kind.String()).Msg("Renewal secret replaced, restarting renewal")
		m.start(ctx, s)
	}
}

func (m *Manager) stop(s *slot) {
	s.mu.Lock()
	s.stopLocked()
	s.mu.Unlock()
}
