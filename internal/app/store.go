package app

import (
	"fmt"
	"time"

	"github.com/dvcrn/helix-auth/internal/auth"
	"github.com/dvcrn/helix-auth/internal/config"
	"github.com/dvcrn/helix-auth/internal/credentials"
	"github.com/rs/zerolog"
)

// OpenStore builds the credential store selected by cfg.Store.
func OpenStore(cfg *config.Config, logger zerolog.Logger) (credentials.Store, error) {
	switch cfg.Store {
	case config.StoreFS:
		path := cfg.FSCredsPath
		if path == "" {
			path = credentials.DefaultCredsPath()
		}
		logger.Info().Str("path", path).Msg("📄 Using filesystem credentials store")
		return credentials.NewFSStore(path), nil
	case config.StoreKeychain:
		logger.Info().Msg("🔑 Using keychain credentials store")
		return credentials.NewKeychainStoreWithLogger(cfg.KeychainService, logger), nil
	case config.StoreEnv:
		logger.Info().Msg("📝 Using environment credentials store")
		return credentials.NewEnvStore(), nil
	default:
		return nil, fmt.Errorf("unknown credential store %q", cfg.Store)
	}
}

// PersistHook writes successfully renewed tokens to store. Failures are
// logged and otherwise ignored.
func PersistHook(store credentials.Store, clientID string, logger zerolog.Logger) func(auth.RenewalEvent) {
	return func(ev auth.RenewalEvent) {
		if ev.Err != nil {
			return
		}

		creds := &credentials.Credentials{ClientID: clientID}
		switch ev.Kind {
		case auth.KindApplication:
			creds.AppToken = ev.Token
		case auth.KindUser:
			creds.UserToken = ev.Token
			creds.RefreshToken = ev.RefreshToken
			if ev.ExpiresIn > 0 {
				creds.UserTokenExpiresAt = time.Now().Add(ev.ExpiresIn).UnixMilli()
			}
		}

		if err := store.Save(creds); err != nil {
			logger.Warn().Err(err).Str("kind", ev.Kind.String()).Msg("Failed to persist renewed token")
			return
		}
		logger.Debug().Str("kind", ev.Kind.String()).Msg("Persisted renewed token")
	}
}
