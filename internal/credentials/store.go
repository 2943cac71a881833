package credentials

import "errors"

// ErrReadOnly is returned by stores that cannot persist tokens.
var ErrReadOnly = errors.New("credential store is read-only")

// Credentials is the token set a store holds for one client ID.
type Credentials struct {
	ClientID           string `json:"client_id"`
	AppToken           string `json:"app_token,omitempty"`
	UserToken          string `json:"user_token,omitempty"`
	RefreshToken       string `json:"refresh_token,omitempty"`
	UserTokenExpiresAt int64  `json:"user_token_expires_at,omitempty"`
}

// Store loads seed credentials at startup and receives renewed tokens.
type Store interface {
	Load() (*Credentials, error)
	Save(creds *Credentials) error
}

// Merge returns a copy of c with empty fields filled in from other.
func (c Credentials) Merge(other *Credentials) Credentials {
	if other == nil {
		return c
	}
	if c.ClientID == "" {
		c.ClientID = other.ClientID
	}
	if c.AppToken == "" {
		c.AppToken = other.AppToken
	}
	if c.UserToken == "" {
		c.UserToken = other.UserToken
	}
	if c.RefreshToken == "" {
		c.RefreshToken = other.RefreshToken
	}
	if c.UserTokenExpiresAt == 0 {
		c.UserTokenExpiresAt = other.UserTokenExpiresAt
	}
	return c
}
