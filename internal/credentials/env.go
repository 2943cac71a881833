package credentials

import "os"

// EnvStore reads credentials from environment variables. It never persists.
type EnvStore struct{}

// NewEnvStore creates a new environment-based credentials store
func NewEnvStore() *EnvStore {
	return &EnvStore{}
}

// Load reads HELIX_CLIENT_ID, HELIX_APP_TOKEN, HELIX_USER_TOKEN and HELIX_REFRESH_TOKEN
func (e *EnvStore) Load() (*Credentials, error) {
	return &Credentials{
		ClientID:     os.Getenv("HELIX_CLIENT_ID"),
		AppToken:     os.Getenv("HELIX_APP_TOKEN"),
		UserToken:    os.Getenv("HELIX_USER_TOKEN"),
		RefreshToken: os.Getenv("HELIX_REFRESH_TOKEN"),
	}, nil
}

// Save always fails, environment credentials cannot be updated
func (e *EnvStore) Save(*Credentials) error {
	return ErrReadOnly
}
