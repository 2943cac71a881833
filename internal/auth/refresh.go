package auth

import (
	"context"
	"errors"
	"time"
)

var errEmptyAccessToken = errors.New("response contained no access token")

func (m *Manager) start(ctx context.Context, s *slot) {
	s.mu.Lock()
	if s.secret == "" {
		s.mu.Unlock()
		m.reportMissing(s)
		return
	}
	s.cancelLocked()
	epoch := s.epoch
	s.mu.Unlock()

	m.renew(ctx, s, epoch, true)
}

// renew performs one renewal of s. When schedule is set and nothing stopped
// the slot since epoch was read, the next renewal is armed on success.
func (m *Manager) renew(ctx context.Context, s *slot, epoch uint64, schedule bool) {
	if ctx == nil {
		ctx = m.baseCtx
	}

	grant, ok := m.grant(s)
	if !ok {
		m.reportMissing(s)
		return
	}

	log := m.logger.With().Str("kind", s.kind.String()).Str("grant", grant.GrantType()).Logger()
	log.Debug().Msg("🔄 Renewing token")

	res, err := m.requester.RequestToken(ctx, grant)
	if err == nil && (res == nil || res.AccessToken == "") {
		err = &TransportError{Err: errEmptyAccessToken}
	}
	if err != nil {
		s.mu.Lock()
		s.lastErr = err
		s.failures++
		failures := s.failures
		s.mu.Unlock()

		log.Error().Err(err).Int("consecutive_failures", failures).Msg("❌ Failed to renew token, keeping previous value")
		m.emit(RenewalEvent{Kind: s.kind, Err: err})
		return
	}

	delay := m.nextDelay(s.kind, res.ExpiresIn)

	s.mu.Lock()
	s.value = res.AccessToken
	if s.kind == KindUser && res.RefreshToken != "" && s.secret != "" {
		s.secret = res.RefreshToken
	}
	s.lastRenewal = m.clock.Now()
	s.lastErr = nil
	s.failures = 0
	armed := false
	if schedule && !m.closed.Load() && s.epoch == epoch && s.secret != "" {
		m.armLocked(s, delay)
		armed = true
	}
	refreshToken := ""
	if s.kind == KindUser {
		refreshToken = s.secret
	}
	s.mu.Unlock()

	ev := log.Info().Dur("expires_in", res.ExpiresIn)
	if armed {
		ev = ev.Dur("next_renewal_in", delay)
	}
	ev.Msg("✅ Token renewed successfully")

	m.emit(RenewalEvent{
		Kind:         s.kind,
		Token:        res.AccessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    res.ExpiresIn,
	})
}

// armLocked replaces any scheduled renewal of s with one firing after delay.
func (m *Manager) armLocked(s *slot, delay time.Duration) {
	s.cancelLocked()
	s.armID++
	id, epoch := s.armID, s.epoch
	s.nextRenewal = m.clock.Now().Add(delay)
	s.timer = m.clock.AfterFunc(delay, func() {
		m.tick(s, id, epoch)
	})
}

func (m *Manager) tick(s *slot, id, epoch uint64) {
	s.mu.Lock()
	if m.closed.Load() || s.epoch != epoch || s.armID != id || s.timer == nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.nextRenewal = time.Time{}
	s.mu.Unlock()

	m.renew(m.baseCtx, s, epoch, true)
}

func (m *Manager) grant(s *slot) (Grant, bool) {
	secret := m.secret(s)
	if secret == "" {
		return nil, false
	}
	if s.kind == KindApplication {
		return ClientCredentialsGrant{ClientID: m.clientID, ClientSecret: secret}, true
	}
	return RefreshTokenGrant{
		ClientID:     m.clientID,
		ClientSecret: m.secret(m.app),
		RefreshToken: secret,
	}, true
}

func (m *Manager) nextDelay(kind Kind, expiresIn time.Duration) time.Duration {
	if kind == KindApplication {
		return m.appInterval
	}
	return userRenewDelay(expiresIn)
}

// userRenewDelay schedules ahead of expiry by UserTokenExpiryMargin. The
// result is always positive and never later than expiresIn.
func userRenewDelay(expiresIn time.Duration) time.Duration {
	if expiresIn <= 0 {
		expiresIn = DefaultUserTokenLifetime
	}
	delay := expiresIn - UserTokenExpiryMargin
	if delay >= MinRenewDelay {
		return delay
	}
	delay = MinRenewDelay
	if delay > expiresIn {
		delay = expiresIn / 2
	}
	if delay <= 0 {
		delay = expiresIn
	}
	return delay
}

func (m *Manager) reportMissing(s *slot) {
	err := &MissingCapabilityError{Kind: s.kind}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	m.logger.Warn().Err(err).Str("kind", s.kind.String()).Msg("Renewal skipped")
}

func (m *Manager) emit(ev RenewalEvent) {
	for _, hook := range m.hooks {
		hook(ev)
	}
}
