package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// DefaultTokenURL is the identity provider's token endpoint
	DefaultTokenURL = "https://id.twitch.tv/oauth2/token"
	// UserTokenExpiryMargin is how long before the user token expires the next renewal runs (60 minutes)
	UserTokenExpiryMargin = 60 * time.Minute
	// DefaultUserTokenLifetime is assumed when a refresh response carries no expiry
	DefaultUserTokenLifetime = 4 * time.Hour
	// ApplicationRenewInterval is the fixed renewal period of the application token
	ApplicationRenewInterval = 50 * 24 * time.Hour
	// MinRenewDelay is the smallest delay ever scheduled for a user renewal
	MinRenewDelay = 30 * time.Second
)

// Grant describes a token request sent to the identity provider.
type Grant interface {
	GrantType() string
}

// ClientCredentialsGrant obtains an application token.
type ClientCredentialsGrant struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
}

func (ClientCredentialsGrant) GrantType() string { return "client_credentials" }

// RefreshTokenGrant obtains a fresh user token from a refresh token.
type RefreshTokenGrant struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (RefreshTokenGrant) GrantType() string { return "refresh_token" }

// TokenResult is the outcome of a successful token request.
type TokenResult struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// TokenRequester performs token requests against the identity provider.
type TokenRequester interface {
	RequestToken(ctx context.Context, grant Grant) (*TokenResult, error)
}

// OAuth2Requester is the default TokenRequester built on golang.org/x/oauth2.
type OAuth2Requester struct {
	tokenURL   string
	httpClient *http.Client
	now        func() time.Time
}

// NewOAuth2Requester creates a requester posting to tokenURL. A nil httpClient
// leaves the oauth2 package default in place.
func NewOAuth2Requester(tokenURL string, httpClient *http.Client) *OAuth2Requester {
	if tokenURL == "" {
		tokenURL = DefaultTokenURL
	}
	return &OAuth2Requester{
		tokenURL:   tokenURL,
		httpClient: httpClient,
		now:        time.Now,
	}
}

// TokenURL returns the endpoint this requester posts to.
func (r *OAuth2Requester) TokenURL() string {
	return r.tokenURL
}

// RequestToken issues the grant and converts the response.
func (r *OAuth2Requester) RequestToken(ctx context.Context, grant Grant) (*TokenResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if r.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, r.httpClient)
	}

	endpoint := oauth2.Endpoint{TokenURL: r.tokenURL, AuthStyle: oauth2.AuthStyleInParams}

	var (
		tok *oauth2.Token
		err error
	)
	switch g := grant.(type) {
	case ClientCredentialsGrant:
		cfg := clientcredentials.Config{
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			TokenURL:     endpoint.TokenURL,
			Scopes:       g.Scopes,
			AuthStyle:    endpoint.AuthStyle,
		}
		tok, err = cfg.Token(ctx)
	case RefreshTokenGrant:
		cfg := &oauth2.Config{
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			Endpoint:     endpoint,
		}
		tok, err = cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: g.RefreshToken}).Token()
	default:
		return nil, fmt.Errorf("unsupported grant type %T", grant)
	}
	if err != nil {
		return nil, toTransportError(err)
	}

	result := &TokenResult{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
	}
	if !tok.Expiry.IsZero() {
		result.ExpiresIn = tok.Expiry.Sub(r.now()).Round(time.Second)
	}
	return result, nil
}

func toTransportError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return &TransportError{StatusCode: retrieveErr.Response.StatusCode, Err: err}
	}
	return &TransportError{Err: err}
}
