package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dvcrn/helix-auth/internal/auth"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CredentialManager is the subset of *auth.Manager the admin API drives.
type CredentialManager interface {
	ClientID() string
	Status(kind auth.Kind) auth.SlotStatus

	StartApplicationTokenRefresh(ctx context.Context)
	StartUserTokenRefresh(ctx context.Context)
	StopApplicationTokenRefresh()
	StopUserTokenRefresh()
	RenewApplicationTokenOnce(ctx context.Context)
	RenewUserTokenOnce(ctx context.Context)

	SetApplicationToken(token string)
	SetUserToken(token string)
	SetClientSecret(ctx context.Context, secret string)
	SetRefreshToken(ctx context.Context, token string)
}

type Server struct {
	manager     CredentialManager
	adminAPIKey string
	mux         *http.ServeMux
	logger      zerolog.Logger
}

func New(logger zerolog.Logger, manager CredentialManager, adminAPIKey string) *Server {
	s := &Server{
		manager:     manager,
		adminAPIKey: adminAPIKey,
		mux:         http.NewServeMux(),
		logger:      logger,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/admin/credentials", s.adminMiddleware(s.credentialsHandler))
	s.mux.HandleFunc("/admin/credentials/status", s.adminMiddleware(s.credentialsStatusHandler))
	s.mux.HandleFunc("POST /admin/credentials/{kind}/renew", s.adminMiddleware(s.renewHandler))
	s.mux.HandleFunc("POST /admin/credentials/{kind}/refresh", s.adminMiddleware(s.startRefreshHandler))
	s.mux.HandleFunc("DELETE /admin/credentials/{kind}/refresh", s.adminMiddleware(s.stopRefreshHandler))
	s.mux.HandleFunc("/", s.notFoundHandler)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.loggingMiddleware(s.mux).ServeHTTP(w, r)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Str("remote_addr", r.RemoteAddr).
			Str("user_agent", r.UserAgent()).
			Msg("Incoming request")
		next.ServeHTTP(w, r)
		s.logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("uri", r.RequestURI).
			Dur("duration", time.Since(start)).
			Msg("Finished request")
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status": "ok"}`))
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Warn().
		Str("method", r.Method).
		Str("uri", r.RequestURI).
		Str("remote_addr", r.RemoteAddr).
		Str("user_agent", r.UserAgent()).
		Msg("Unhandled route")
	http.NotFound(w, r)
}

type statusResponse struct {
	ClientID    string          `json:"clientID"`
	Application auth.SlotStatus `json:"application"`
	User        auth.SlotStatus `json:"user"`
}

func (s *Server) credentialsStatusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		ClientID:    s.manager.ClientID(),
		Application: s.manager.Status(auth.KindApplication),
		User:        s.manager.Status(auth.KindUser),
	})
}

// credentialsUpdate fields are applied only when present; an empty
// clientSecret or refreshToken clears it and stops that slot's renewals.
type credentialsUpdate struct {
	AppToken     *string `json:"appToken"`
	UserToken    *string `json:"userToken"`
	ClientSecret *string `json:"clientSecret"`
	RefreshToken *string `json:"refreshToken"`
}

func (s *Server) credentialsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var reqBody credentialsUpdate
	if err := json.NewDecoder(r.Body).Decode(&reqBody); err != nil {
		s.logger.Error().Err(err).Msg("Failed to parse request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if reqBody.AppToken == nil && reqBody.UserToken == nil && reqBody.ClientSecret == nil && reqBody.RefreshToken == nil {
		http.Error(w, "Nothing to update: expected appToken, userToken, clientSecret or refreshToken", http.StatusBadRequest)
		return
	}

	// Secret changes may restart a renewal cycle; it must outlive the request.
	ctx := context.WithoutCancel(r.Context())
	var updated []string
	if reqBody.AppToken != nil {
		s.manager.SetApplicationToken(*reqBody.AppToken)
		updated = append(updated, "appToken")
	}
	if reqBody.UserToken != nil {
		s.manager.SetUserToken(*reqBody.UserToken)
		updated = append(updated, "userToken")
	}
	if reqBody.ClientSecret != nil {
		s.manager.SetClientSecret(ctx, *reqBody.ClientSecret)
		updated = append(updated, "clientSecret")
	}
	if reqBody.RefreshToken != nil {
		s.manager.SetRefreshToken(ctx, *reqBody.RefreshToken)
		updated = append(updated, "refreshToken")
	}

	s.logger.Info().Strs("fields", updated).Msg("Credentials updated")

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"updated": updated,
	})
}

func (s *Server) renewHandler(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindFromPath(w, r)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if kind == auth.KindApplication {
		s.manager.RenewApplicationTokenOnce(ctx)
	} else {
		s.manager.RenewUserTokenOnce(ctx)
	}

	s.writeSlotStatus(w, kind)
}

func (s *Server) startRefreshHandler(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindFromPath(w, r)
	if !ok {
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if kind == auth.KindApplication {
		s.manager.StartApplicationTokenRefresh(ctx)
	} else {
		s.manager.StartUserTokenRefresh(ctx)
	}

	s.writeSlotStatus(w, kind)
}

func (s *Server) stopRefreshHandler(w http.ResponseWriter, r *http.Request) {
	kind, ok := s.kindFromPath(w, r)
	if !ok {
		return
	}

	if kind == auth.KindApplication {
		s.manager.StopApplicationTokenRefresh()
	} else {
		s.manager.StopUserTokenRefresh()
	}

	s.writeSlotStatus(w, kind)
}

func (s *Server) kindFromPath(w http.ResponseWriter, r *http.Request) (auth.Kind, bool) {
	kind, ok := auth.ParseKind(r.PathValue("kind"))
	if !ok {
		s.notFoundHandler(w, r)
		return 0, false
	}
	return kind, true
}

// writeSlotStatus answers 502 when the slot's last renewal attempt failed.
func (s *Server) writeSlotStatus(w http.ResponseWriter, kind auth.Kind) {
	status := s.manager.Status(kind)
	code := http.StatusOK
	if status.Stale() {
		code = http.StatusBadGateway
	}
	writeJSON(w, code, status)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
