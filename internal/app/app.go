package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/dvcrn/helix-auth/internal/auth"
	"github.com/dvcrn/helix-auth/internal/config"
	"github.com/dvcrn/helix-auth/internal/credentials"
	"github.com/dvcrn/helix-auth/internal/server"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired credential manager, its store and the admin server.
type App struct {
	Manager *auth.Manager
	Store   credentials.Store
	Server  *server.Server

	cfg    *config.Config
	logger zerolog.Logger
}

// New wires cfg into a ready-to-run App. requester may be nil to use the
// OAuth2 token endpoint from cfg.
func New(cfg *config.Config, logger zerolog.Logger, requester auth.TokenRequester) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	stored, err := store.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("⚠️  Failed to load stored credentials, using configuration only")
		stored = nil
	}

	seed := credentials.Credentials{
		ClientID:     cfg.ClientID,
		AppToken:     cfg.AppToken,
		UserToken:    cfg.UserToken,
		RefreshToken: cfg.RefreshToken,
	}.Merge(stored)

	// Renewals rotate the refresh token into the store, so the stored one is newer.
	if stored != nil && stored.RefreshToken != "" && stored.RefreshToken != seed.RefreshToken {
		logger.Info().Msg("🔄 Using stored refresh token in place of the configured one")
		seed.RefreshToken = stored.RefreshToken
	}

	if requester == nil {
		requester = auth.NewOAuth2Requester(cfg.TokenURL, NewHTTPClient())
	}

	opts := []auth.Option{
		auth.WithLogger(logger),
		auth.WithRequester(requester),
	}
	if _, readOnly := store.(*credentials.EnvStore); !readOnly {
		opts = append(opts, auth.WithRenewalHook(PersistHook(store, seed.ClientID, logger)))
	}
	if d, _ := cfg.AppRenewDuration(); d > 0 {
		opts = append(opts, auth.WithApplicationRenewInterval(d))
	}

	manager, err := auth.New(auth.Config{
		ClientID: seed.ClientID,
		Tokens: auth.Tokens{
			AppToken:     seed.AppToken,
			UserToken:    seed.UserToken,
			RefreshToken: seed.RefreshToken,
		},
		Secrets: auth.Secrets{
			ClientSecret:     cfg.ClientSecret,
			RefreshAppToken:  cfg.RefreshAppToken,
			RefreshUserToken: cfg.RefreshUserToken,
		},
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create credential manager: %w", err)
	}

	return &App{
		Manager: manager,
		Store:   store,
		Server:  server.New(logger, manager, cfg.AdminAPIKey),
		cfg:     cfg,
		logger:  logger,
	}, nil
}

// Run performs the initial renewals, serves the admin API on ln and blocks
// until ctx is cancelled or the server fails.
func (a *App) Run(ctx context.Context, ln net.Listener) error {
	defer a.Manager.Close()

	a.Manager.Initialize(ctx)
	logStatus(a.logger, a.Manager.Status(auth.KindApplication))
	logStatus(a.logger, a.Manager.Status(auth.KindUser))

	srv := &http.Server{Handler: a.Server, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	a.logger.Info().Str("addr", ln.Addr().String()).Msg("Admin API listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("admin server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	a.logger.Info().Msg("Shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin server shutdown: %w", err)
	}
	return nil
}

// NewHTTPClient creates the HTTP client used for token requests
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
	}
}

func logStatus(logger zerolog.Logger, st auth.SlotStatus) {
	var ev *zerolog.Event
	if st.Stale() {
		ev = logger.Warn().Str("last_error", st.LastError)
	} else {
		ev = logger.Info()
	}
	ev.Str("kind", st.Kind).
		Bool("has_token", st.HasToken).
		Bool("renewable", st.Renewable).
		Bool("refreshing", st.Refreshing).
		Msg("Credential status")
}
