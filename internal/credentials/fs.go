package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

type fsAuth struct {
	ClientID string `json:"client_id"`
	Tokens   struct {
		AppToken     string `json:"app_token,omitempty"`
		UserToken    string `json:"user_token,omitempty"`
		RefreshToken string `json:"refresh_token,omitempty"`
		ExpiresAt    int64  `json:"expiresAt,omitempty"`
	} `json:"tokens"`
}

// FSStore keeps credentials in a JSON file readable only by the owner.
type FSStore struct {
	Path string
	mu   sync.Mutex
}

func NewFSStore(path string) *FSStore {
	return &FSStore{Path: path}
}

// Load reads the credentials file. A missing file yields empty credentials.
func (f *FSStore) Load() (*Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, err := f.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Credentials{}, nil
		}
		return nil, err
	}
	return &Credentials{
		ClientID:           a.ClientID,
		AppToken:           a.Tokens.AppToken,
		UserToken:          a.Tokens.UserToken,
		RefreshToken:       a.Tokens.RefreshToken,
		UserTokenExpiresAt: a.Tokens.ExpiresAt,
	}, nil
}

// Save updates the non-empty fields of creds in the credentials file, creating it if needed
func (f *FSStore) Save(creds *Credentials) error {
	if creds == nil {
		return fmt.Errorf("credentials are nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	a, err := f.read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		a = &fsAuth{}
	}

	if creds.ClientID != "" {
		a.ClientID = creds.ClientID
	}
	if creds.AppToken != "" {
		a.Tokens.AppToken = creds.AppToken
	}
	if creds.UserToken != "" {
		a.Tokens.UserToken = creds.UserToken
	}
	if creds.RefreshToken != "" {
		a.Tokens.RefreshToken = creds.RefreshToken
	}
	if creds.UserTokenExpiresAt != 0 {
		a.Tokens.ExpiresAt = creds.UserTokenExpiresAt
	}

	if err := EnsureParentDir(f.Path); err != nil {
		return err
	}

	updatedData, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.WriteFile(f.Path, updatedData, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}

	return nil
}

func (f *FSStore) read() (*fsAuth, error) {
	b, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}
	var a fsAuth
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return &a, nil
}
